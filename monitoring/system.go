package monitoring

import (
	"context"
	"os"
	"time"

	"github.com/mezonai/walletd/logx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

const DefaultSystemInterval = 15 * time.Second

var (
	hostCPUPercent = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "walletd_host_cpu_percent",
		Help: "Host CPU usage since the previous sample",
	})
	hostMemUsedPercent = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "walletd_host_memory_used_percent",
		Help: "Host memory in use",
	})
	processRSSBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "walletd_process_rss_bytes",
		Help: "Resident set size of the daemon",
	})
)

// SystemStats is one sample of host and process usage.
type SystemStats struct {
	CPUPercent     float64
	MemUsedPercent float64
	RSSBytes       uint64
}

// CollectSystemMetrics samples host CPU, host memory and the daemon's RSS
// and updates the gauges.
func CollectSystemMetrics(ctx context.Context) (SystemStats, error) {
	var stats SystemStats

	percents, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return stats, err
	}
	if len(percents) > 0 {
		stats.CPUPercent = percents[0]
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return stats, err
	}
	stats.MemUsedPercent = vm.UsedPercent

	proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
	if err != nil {
		return stats, err
	}
	info, err := proc.MemoryInfoWithContext(ctx)
	if err != nil {
		return stats, err
	}
	stats.RSSBytes = info.RSS

	hostCPUPercent.Set(stats.CPUPercent)
	hostMemUsedPercent.Set(stats.MemUsedPercent)
	processRSSBytes.Set(float64(stats.RSSBytes))
	return stats, nil
}

// RunSystemMetrics samples every interval until ctx ends.
func RunSystemMetrics(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSystemInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := CollectSystemMetrics(ctx); err != nil && ctx.Err() == nil {
			logx.Warn("MONITORING", "system metrics sample failed: ", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
