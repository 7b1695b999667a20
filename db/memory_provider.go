package db

import (
	"bytes"
	"sort"
	"strings"
	"sync"
)

// MemoryProvider is an in-process IterableProvider for tests and offline runs.
type MemoryProvider struct {
	mu     sync.RWMutex
	data   map[string][]byte
	closed bool
}

func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{data: make(map[string][]byte)}
}

func (p *MemoryProvider) Get(key []byte) ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil, ErrClosed
	}
	value, ok := p.data[string(key)]
	if !ok {
		return nil, nil
	}
	return bytes.Clone(value), nil
}

func (p *MemoryProvider) Put(key, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	p.data[string(key)] = bytes.Clone(value)
	return nil
}

func (p *MemoryProvider) Delete(key []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	delete(p.data, string(key))
	return nil
}

func (p *MemoryProvider) Has(key []byte) (bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false, ErrClosed
	}
	_, ok := p.data[string(key)]
	return ok, nil
}

func (p *MemoryProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *MemoryProvider) Batch() DatabaseBatch {
	return &memoryBatch{provider: p}
}

// IteratePrefix works on a snapshot so the callback may write to p.
func (p *MemoryProvider) IteratePrefix(prefix []byte, callback func(key, value []byte) bool) error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return ErrClosed
	}
	keys := make([]string, 0)
	for k := range p.data {
		if strings.HasPrefix(k, string(prefix)) {
			keys = append(keys, k)
		}
	}
	values := make(map[string][]byte, len(keys))
	for _, k := range keys {
		values[k] = p.data[k]
	}
	p.mu.RUnlock()

	sort.Strings(keys)
	for _, k := range keys {
		if !callback([]byte(k), values[k]) {
			break
		}
	}
	return nil
}

type memoryBatch struct {
	provider *MemoryProvider
	ops      []batchOp
}

func (b *memoryBatch) Put(key, value []byte) {
	b.ops = append(b.ops, batchOp{key: bytes.Clone(key), value: bytes.Clone(value)})
}

func (b *memoryBatch) Delete(key []byte) {
	b.ops = append(b.ops, batchOp{key: bytes.Clone(key), del: true})
}

func (b *memoryBatch) Write() error {
	p := b.provider
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	for _, op := range b.ops {
		if op.del {
			delete(p.data, string(op.key))
		} else {
			p.data[string(op.key)] = op.value
		}
	}
	return nil
}

func (b *memoryBatch) Reset() {
	b.ops = b.ops[:0]
}

func (b *memoryBatch) Close() {
	b.ops = nil
}

var _ IterableProvider = (*MemoryProvider)(nil)
