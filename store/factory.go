package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mezonai/walletd/db"
)

// StoreType represents the type of store implementation
type StoreType string

const (
	// LevelDBStoreType keeps the wallet in a LevelDB directory
	LevelDBStoreType StoreType = "leveldb"

	// BoltStoreType keeps the wallet in a single bbolt file inside Directory
	BoltStoreType StoreType = "bolt"

	// MemoryStoreType loses everything on exit
	MemoryStoreType StoreType = "memory"
)

const boltFileName = "wallet.bolt"

// StoreConfig holds configuration for creating store instances
type StoreConfig struct {
	Type StoreType `json:"type" yaml:"type"`

	// Directory is the database directory path, unused for memory
	Directory string `json:"directory" yaml:"directory"`
}

// Validate validates the store configuration
func (sc *StoreConfig) Validate() error {
	switch sc.Type {
	case MemoryStoreType:
		return nil
	case LevelDBStoreType, BoltStoreType:
		if sc.Directory == "" {
			return fmt.Errorf("directory cannot be empty")
		}
		return nil
	case "":
		return fmt.Errorf("store type cannot be empty")
	default:
		return fmt.Errorf("unsupported store type: %s", sc.Type)
	}
}

// StoreFactory take responsibility to create store instances
type StoreFactory struct{}

func NewStoreFactory() *StoreFactory {
	return &StoreFactory{}
}

// CreateProvider creates a database provider based on the configuration
func (sf *StoreFactory) CreateProvider(config *StoreConfig) (db.IterableProvider, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	switch config.Type {
	case LevelDBStoreType:
		return db.NewLevelDBProvider(config.Directory)
	case BoltStoreType:
		if err := os.MkdirAll(config.Directory, 0o700); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
		return db.NewBoltDBProvider(filepath.Join(config.Directory, boltFileName))
	case MemoryStoreType:
		return db.NewMemoryProvider(), nil
	default:
		return nil, fmt.Errorf("unsupported store type: %s", config.Type)
	}
}

// CreateWalletStore opens the provider and wraps it in a wallet store
func (sf *StoreFactory) CreateWalletStore(config *StoreConfig) (WalletStore, error) {
	provider, err := sf.CreateProvider(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider: %w", err)
	}
	ws, err := NewGenericWalletStore(provider)
	if err != nil {
		_ = provider.Close()
		return nil, fmt.Errorf("failed to create wallet store: %w", err)
	}
	return ws, nil
}

// Global factory instance
var globalFactory = NewStoreFactory()

func CreateStore(config *StoreConfig) (WalletStore, error) {
	return globalFactory.CreateWalletStore(config)
}
