package db

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

var walletBucket = []byte("walletd")

// BoltDBProvider implements IterableProvider on a single bbolt file with
// one bucket.
type BoltDBProvider struct {
	once sync.Once
	db   *bolt.DB
}

func NewBoltDBProvider(path string) (*BoltDBProvider, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db at %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(walletBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}
	return &BoltDBProvider{db: db}, nil
}

func (p *BoltDBProvider) Get(key []byte) ([]byte, error) {
	var value []byte
	err := p.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(walletBucket).Get(key); v != nil {
			// bolt memory is only valid inside the transaction
			value = bytes.Clone(v)
		}
		return nil
	})
	if err == bolt.ErrDatabaseNotOpen {
		return nil, ErrClosed
	}
	return value, err
}

func (p *BoltDBProvider) Put(key, value []byte) error {
	return p.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(walletBucket).Put(key, value)
	})
}

func (p *BoltDBProvider) Delete(key []byte) error {
	return p.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(walletBucket).Delete(key)
	})
}

func (p *BoltDBProvider) Has(key []byte) (bool, error) {
	value, err := p.Get(key)
	return value != nil, err
}

func (p *BoltDBProvider) Close() error {
	var err error
	p.once.Do(func() {
		err = p.db.Close()
	})
	return err
}

func (p *BoltDBProvider) Batch() DatabaseBatch {
	return &boltBatch{db: p.db}
}

func (p *BoltDBProvider) IteratePrefix(prefix []byte, callback func(key, value []byte) bool) error {
	return p.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(walletBucket).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			if !callback(k, v) {
				break
			}
		}
		return nil
	})
}

type batchOp struct {
	key   []byte
	value []byte
	del   bool
}

type boltBatch struct {
	db  *bolt.DB
	ops []batchOp
}

func (b *boltBatch) Put(key, value []byte) {
	b.ops = append(b.ops, batchOp{key: bytes.Clone(key), value: bytes.Clone(value)})
}

func (b *boltBatch) Delete(key []byte) {
	b.ops = append(b.ops, batchOp{key: bytes.Clone(key), del: true})
}

// Write applies every queued operation in one bolt transaction.
func (b *boltBatch) Write() error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(walletBucket)
		for _, op := range b.ops {
			var err error
			if op.del {
				err = bucket.Delete(op.key)
			} else {
				err = bucket.Put(op.key, op.value)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *boltBatch) Reset() {
	b.ops = b.ops[:0]
}

func (b *boltBatch) Close() {
	b.ops = nil
}

var _ IterableProvider = (*BoltDBProvider)(nil)
