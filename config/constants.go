package config

const (
	NetworkSignet  = "signet"
	NetworkTestnet = "testnet"
	NetworkRegtest = "regtest"
	NetworkMainnet = "mainnet"
)

const (
	DefaultEsploraURL       = "http://signet.bitcoindevkit.net"
	DefaultStopGap          = 5
	DefaultParallelRequests = 5
	DefaultEsploraTimeoutMs = 15000
	DefaultFeeRate          = 2

	DefaultStoreType      = "leveldb"
	DefaultStoreDirectory = "./data/wallet"

	DefaultAPIListenAddr     = "127.0.0.1:8740"
	DefaultMetricsListenAddr = "127.0.0.1:9740"

	DefaultHeartbeatIntervalMs = 10000
	DefaultErrorClearMs        = 5000
	DefaultSubscriberBuffer    = 64
)

// Signet test keys. Funds on these descriptors are public.
const (
	DefaultExternalDescriptor = "wpkh(tprv8ZgxMBicQKsPdy6LMhUtFHAgpocR8GC6QmwMSFpZs7h6Eziw3SpThFfczTDh5rW2krkqffa11UpX3XkeTTB2FvzZKWXqPY54Y6Rq4AQ5R8L/84'/1'/0'/0/*)"
	DefaultInternalDescriptor = "wpkh(tprv8ZgxMBicQKsPdy6LMhUtFHAgpocR8GC6QmwMSFpZs7h6Eziw3SpThFfczTDh5rW2krkqffa11UpX3XkeTTB2FvzZKWXqPY54Y6Rq4AQ5R8L/84'/1'/0'/1/*)"
)
