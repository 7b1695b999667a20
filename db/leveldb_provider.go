package db

import (
	"fmt"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// LevelDBProvider implements IterableProvider on a LevelDB directory
type LevelDBProvider struct {
	once sync.Once
	db   *leveldb.DB
	sync bool
}

// NewLevelDBProvider opens or creates the database in directory. Writes are
// fsynced so a crash never loses a revealed address index.
func NewLevelDBProvider(directory string) (*LevelDBProvider, error) {
	db, err := leveldb.OpenFile(directory, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open LevelDB at %s: %w", directory, err)
	}
	return &LevelDBProvider{db: db, sync: true}, nil
}

func (p *LevelDBProvider) writeOptions() *opt.WriteOptions {
	return &opt.WriteOptions{Sync: p.sync}
}

func (p *LevelDBProvider) Get(key []byte) ([]byte, error) {
	value, err := p.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, nil
	}
	if err == leveldb.ErrClosed {
		return nil, ErrClosed
	}
	return value, err
}

func (p *LevelDBProvider) Put(key, value []byte) error {
	return p.db.Put(key, value, p.writeOptions())
}

func (p *LevelDBProvider) Delete(key []byte) error {
	return p.db.Delete(key, p.writeOptions())
}

func (p *LevelDBProvider) Has(key []byte) (bool, error) {
	return p.db.Has(key, nil)
}

// Close is idempotent; several stores may share one provider.
func (p *LevelDBProvider) Close() error {
	var err error
	p.once.Do(func() {
		err = p.db.Close()
	})
	return err
}

func (p *LevelDBProvider) Batch() DatabaseBatch {
	return &levelDBBatch{batch: new(leveldb.Batch), provider: p}
}

func (p *LevelDBProvider) IteratePrefix(prefix []byte, callback func(key, value []byte) bool) error {
	iter := p.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()

	for iter.Next() {
		if !callback(iter.Key(), iter.Value()) {
			break
		}
	}
	return iter.Error()
}

type levelDBBatch struct {
	batch    *leveldb.Batch
	provider *LevelDBProvider
}

func (b *levelDBBatch) Put(key, value []byte) {
	b.batch.Put(key, value)
}

func (b *levelDBBatch) Delete(key []byte) {
	b.batch.Delete(key)
}

func (b *levelDBBatch) Write() error {
	return b.provider.db.Write(b.batch, b.provider.writeOptions())
}

func (b *levelDBBatch) Reset() {
	b.batch.Reset()
}

// Close is a no-op, LevelDB batches hold no external resources
func (b *levelDBBatch) Close() {}

var _ IterableProvider = (*LevelDBProvider)(nil)
