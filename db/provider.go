package db

import "errors"

// ErrClosed is returned by a provider after Close.
var ErrClosed = errors.New("database provider closed")

// DatabaseProvider abstracts the key-value backend under the wallet store.
// Get returns nil, nil when the key does not exist.
type DatabaseProvider interface {
	Get(key []byte) ([]byte, error)

	Put(key, value []byte) error

	Delete(key []byte) error

	Has(key []byte) (bool, error)

	Close() error

	// Batch returns a new batch for atomic operations
	Batch() DatabaseBatch
}

// IterableProvider extends DatabaseProvider with ordered prefix scans
type IterableProvider interface {
	DatabaseProvider

	// IteratePrefix visits keys with the given prefix in ascending order.
	// The callback returns false to stop. key and value are only valid
	// during the callback.
	IteratePrefix(prefix []byte, callback func(key, value []byte) bool) error
}

// DatabaseBatch collects writes that are applied together by Write
type DatabaseBatch interface {
	Put(key, value []byte)

	Delete(key []byte)

	Write() error

	// Reset clears the batch
	Reset()

	// Close releases batch resources
	Close()
}
