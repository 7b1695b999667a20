package monitoring

import (
	"net/http"
	"time"

	"github.com/mezonai/walletd/logx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type walletPromMetrics struct {
	upUnixSeconds      prometheus.Gauge
	commandsReceived   *prometheus.CounterVec
	commandsProcessed  *prometheus.CounterVec
	commandsRejected   prometheus.Counter
	eventsPublished    *prometheus.CounterVec
	eventsDelivered    prometheus.Counter
	walletErrors       prometheus.Counter
	heartbeatCount     prometheus.Gauge
	syncDuration       prometheus.Histogram
	syncing            prometheus.Gauge
	subscriberCount    prometheus.Gauge
	subscriberBacklog  prometheus.Gauge
	inboxDepth         prometheus.Gauge
	panicCount         prometheus.Counter
	esploraRequestTime *prometheus.HistogramVec
}

func newWalletPromMetrics() *walletPromMetrics {
	return &walletPromMetrics{
		upUnixSeconds: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "walletd_up_timestamp_unix_seconds",
				Help: "Unix timestamp at which the daemon started",
			},
		),
		commandsReceived: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "walletd_commands_received_total",
				Help: "Commands accepted by the dispatcher",
			},
			[]string{"command"},
		),
		commandsProcessed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "walletd_commands_processed_total",
				Help: "Commands fully handled by the worker loop",
			},
			[]string{"command"},
		),
		commandsRejected: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "walletd_commands_rejected_total",
				Help: "Commands refused because the worker was unavailable",
			},
		),
		eventsPublished: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "walletd_events_published_total",
				Help: "Events published on the bus",
			},
			[]string{"event"},
		),
		eventsDelivered: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "walletd_events_delivered_total",
				Help: "Event copies handed to subscribers",
			},
		),
		walletErrors: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "walletd_wallet_errors_total",
				Help: "Wallet engine failures converted to wallet-error events",
			},
		),
		heartbeatCount: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "walletd_heartbeat_count",
				Help: "Last heartbeat counter value",
			},
		),
		syncDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "walletd_sync_duration_seconds",
				Help:    "Duration of wallet chain syncs",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
			},
		),
		syncing: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "walletd_syncing",
				Help: "1 while a sync is in progress",
			},
		),
		subscriberCount: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "walletd_eventbus_subscribers",
				Help: "Active event bus subscriptions",
			},
		),
		subscriberBacklog: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "walletd_eventbus_max_backlog",
				Help: "Largest pending queue among subscribers at last publish",
			},
		),
		inboxDepth: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "walletd_worker_inbox_depth",
				Help: "Commands waiting in the worker inbox",
			},
		),
		panicCount: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "walletd_panic_count",
				Help: "Recovered panics in background goroutines",
			},
		),
		esploraRequestTime: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "walletd_esplora_request_seconds",
				Help: "Latency of Esplora REST calls",
			},
			[]string{"endpoint"},
		),
	}
}

var walletMetrics = newWalletPromMetrics()

// InitMetrics stamps the start time; collectors are registered at import.
func InitMetrics() {
	walletMetrics.upUnixSeconds.SetToCurrentTime()
}

func RegisterMetrics(mux *http.ServeMux) {
	logx.Info("MONITORING", "Registering prometheus metrics")
	mux.Handle("/metrics", promhttp.Handler())
}

func IncreaseCommandReceived(command string) {
	walletMetrics.commandsReceived.With(prometheus.Labels{"command": command}).Inc()
}

func IncreaseCommandProcessed(command string) {
	walletMetrics.commandsProcessed.With(prometheus.Labels{"command": command}).Inc()
}

func IncreaseCommandRejected() {
	walletMetrics.commandsRejected.Inc()
}

func IncreaseEventPublished(event string) {
	walletMetrics.eventsPublished.With(prometheus.Labels{"event": event}).Inc()
}

func AddEventsDelivered(n int) {
	walletMetrics.eventsDelivered.Add(float64(n))
}

func IncreaseWalletError() {
	walletMetrics.walletErrors.Inc()
}

func SetHeartbeatCount(count uint64) {
	walletMetrics.heartbeatCount.Set(float64(count))
}

func RecordSyncDuration(duration time.Duration) {
	walletMetrics.syncDuration.Observe(duration.Seconds())
}

func SetSyncing(syncing bool) {
	if syncing {
		walletMetrics.syncing.Set(1)
		return
	}
	walletMetrics.syncing.Set(0)
}

func SetSubscriberCount(n int) {
	walletMetrics.subscriberCount.Set(float64(n))
}

func SetSubscriberBacklog(n int) {
	walletMetrics.subscriberBacklog.Set(float64(n))
}

func SetInboxDepth(n int) {
	walletMetrics.inboxDepth.Set(float64(n))
}

func IncreasePanicCount() {
	walletMetrics.panicCount.Inc()
}

func RecordEsploraRequest(endpoint string, duration time.Duration) {
	walletMetrics.esploraRequestTime.With(prometheus.Labels{"endpoint": endpoint}).Observe(duration.Seconds())
}
