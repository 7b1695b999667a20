package config

// DescriptorConfig holds the two keychain descriptors of the wallet
type DescriptorConfig struct {
	External string `yaml:"external"`
	Internal string `yaml:"internal"`
}

// EsploraConfig points the engine at an Esplora REST endpoint
type EsploraConfig struct {
	URL              string `yaml:"url"`
	StopGap          int    `yaml:"stop_gap"`
	ParallelRequests int    `yaml:"parallel_requests"`
	TimeoutMs        int    `yaml:"timeout_ms"`
}

type WalletConfig struct {
	// FeeRate in sat/vB used when building transactions
	FeeRate uint64 `yaml:"fee_rate"`
	// SendTo overrides the recipient of SendTransaction. Empty pays the
	// wallet's own next external address.
	SendTo string `yaml:"send_to"`
}

type StoreConfig struct {
	Type      string `yaml:"type"`
	Directory string `yaml:"directory"`
}

type ListenConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

type LogConfig struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Stdout     bool   `yaml:"stdout"`
	Level      string `yaml:"level"`
}

// Config is the top-level structure of walletd.yml
type Config struct {
	Network     string           `yaml:"network"`
	Descriptors DescriptorConfig `yaml:"descriptors"`
	Esplora     EsploraConfig    `yaml:"esplora"`
	Wallet      WalletConfig     `yaml:"wallet"`
	Store       StoreConfig      `yaml:"store"`
	API         ListenConfig     `yaml:"api"`
	Metrics     ListenConfig     `yaml:"metrics"`
	Log         LogConfig        `yaml:"log"`
	// WorkerConfig is the path of the [worker] ini file, optional
	WorkerConfig string `yaml:"worker_config"`
}

// WorkerConfig is the [worker] section of the tuning ini file
type WorkerConfig struct {
	HeartbeatIntervalMs int `ini:"heartbeat_interval_ms"`
	ErrorClearMs        int `ini:"error_clear_ms"`
	SubscriberBuffer    int `ini:"subscriber_buffer"`
}
