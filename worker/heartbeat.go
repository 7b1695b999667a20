package worker

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/mezonai/walletd/events"
	"github.com/mezonai/walletd/logx"
	"github.com/mezonai/walletd/messages"
	"github.com/mezonai/walletd/monitoring"
)

const DefaultHeartbeatInterval = 10 * time.Second

// Heartbeat emits Heartbeat(n) every interval, n counting from 1. The
// counter is never reset.
type Heartbeat struct {
	interval time.Duration
	bus      events.Publisher
	count    atomic.Uint64
}

func NewHeartbeat(interval time.Duration, bus events.Publisher) *Heartbeat {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	return &Heartbeat{interval: interval, bus: bus}
}

// Run ticks until ctx is done.
func (h *Heartbeat) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	logx.Info("HEARTBEAT", fmt.Sprintf("Heartbeat started | interval=%s", h.interval))

	for {
		select {
		case <-ctx.Done():
			logx.Info("HEARTBEAT", fmt.Sprintf("Heartbeat stopped | count=%d", h.count.Load()))
			return
		case <-ticker.C:
			h.beat()
		}
	}
}

func (h *Heartbeat) beat() {
	n := h.count.Add(1)
	monitoring.SetHeartbeatCount(n)
	logx.Debug("HEARTBEAT", "tick ", n)
	h.bus.Publish(messages.NewHeartbeat(n))
}

func (h *Heartbeat) Count() uint64 {
	return h.count.Load()
}
