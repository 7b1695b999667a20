package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mezonai/walletd/logx"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

// Default returns a configuration that runs against public signet.
func Default() *Config {
	return &Config{
		Network: NetworkSignet,
		Descriptors: DescriptorConfig{
			External: DefaultExternalDescriptor,
			Internal: DefaultInternalDescriptor,
		},
		Esplora: EsploraConfig{
			URL:              DefaultEsploraURL,
			StopGap:          DefaultStopGap,
			ParallelRequests: DefaultParallelRequests,
			TimeoutMs:        DefaultEsploraTimeoutMs,
		},
		Wallet:  WalletConfig{FeeRate: DefaultFeeRate},
		Store:   StoreConfig{Type: DefaultStoreType, Directory: DefaultStoreDirectory},
		API:     ListenConfig{ListenAddr: DefaultAPIListenAddr},
		Metrics: ListenConfig{ListenAddr: DefaultMetricsListenAddr},
		Log:     LogConfig{Level: "info"},
	}
}

// DefaultWorker returns the worker tuning used when no ini file is given.
func DefaultWorker() *WorkerConfig {
	return &WorkerConfig{
		HeartbeatIntervalMs: DefaultHeartbeatIntervalMs,
		ErrorClearMs:        DefaultErrorClearMs,
		SubscriberBuffer:    DefaultSubscriberBuffer,
	}
}

// LoadConfig reads walletd.yml on top of Default. Keys missing from the
// file keep their default values.
func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", path, err)
	}
	defer file.Close()

	cfg := Default()
	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	logx.Info("CONFIG", fmt.Sprintf("Loaded config | path=%s | network=%s | esplora=%s | store=%s", path, cfg.Network, cfg.Esplora.URL, cfg.Store.Type))
	return cfg, nil
}

// LoadWorkerConfig reads the [worker] section of an ini file. Missing keys
// keep their defaults.
func LoadWorkerConfig(path string) (*WorkerConfig, error) {
	file, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load worker config %s: %w", path, err)
	}
	workerCfg := DefaultWorker()
	if err := file.Section("worker").MapTo(workerCfg); err != nil {
		return nil, fmt.Errorf("map worker config %s: %w", path, err)
	}
	if err := workerCfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid worker config %s: %w", path, err)
	}
	return workerCfg, nil
}

func (c *Config) Validate() error {
	switch c.Network {
	case NetworkSignet, NetworkTestnet, NetworkRegtest, NetworkMainnet:
	default:
		return fmt.Errorf("unsupported network %q", c.Network)
	}
	if strings.TrimSpace(c.Descriptors.External) == "" || strings.TrimSpace(c.Descriptors.Internal) == "" {
		return fmt.Errorf("both descriptors are required")
	}
	if c.Esplora.URL == "" {
		return fmt.Errorf("esplora url cannot be empty")
	}
	if c.Esplora.StopGap <= 0 {
		return fmt.Errorf("esplora stop_gap must be positive, got %d", c.Esplora.StopGap)
	}
	if c.Esplora.ParallelRequests <= 0 {
		return fmt.Errorf("esplora parallel_requests must be positive, got %d", c.Esplora.ParallelRequests)
	}
	if c.Wallet.FeeRate == 0 {
		return fmt.Errorf("wallet fee_rate must be positive")
	}
	return nil
}

func (c *Config) EsploraTimeout() time.Duration {
	return time.Duration(c.Esplora.TimeoutMs) * time.Millisecond
}

func (w *WorkerConfig) Validate() error {
	if w.HeartbeatIntervalMs <= 0 {
		return fmt.Errorf("heartbeat_interval_ms must be positive, got %d", w.HeartbeatIntervalMs)
	}
	if w.ErrorClearMs <= 0 {
		return fmt.Errorf("error_clear_ms must be positive, got %d", w.ErrorClearMs)
	}
	if w.SubscriberBuffer < 0 {
		return fmt.Errorf("subscriber_buffer cannot be negative, got %d", w.SubscriberBuffer)
	}
	return nil
}

func (w *WorkerConfig) HeartbeatInterval() time.Duration {
	return time.Duration(w.HeartbeatIntervalMs) * time.Millisecond
}

func (w *WorkerConfig) ErrorClearAfter() time.Duration {
	return time.Duration(w.ErrorClearMs) * time.Millisecond
}
