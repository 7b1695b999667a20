// Package queue holds the unbounded FIFO used between producers that must
// never block and a single consuming goroutine.
package queue

import (
	"context"
	"sync"
)

// Mailbox is an unbounded FIFO. Push never blocks; Pop blocks until an item
// is available, the mailbox is closed and drained, or ctx is done.
type Mailbox[T any] struct {
	mu     sync.Mutex
	items  []T
	notify chan struct{}
	closed bool
}

func NewMailbox[T any]() *Mailbox[T] {
	return &Mailbox[T]{
		items:  make([]T, 0, 16),
		notify: make(chan struct{}, 1),
	}
}

// Push appends v. It returns false once the mailbox is closed.
func (m *Mailbox[T]) Push(v T) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	m.items = append(m.items, v)
	select {
	case m.notify <- struct{}{}:
	default:
	}
	return true
}

// Pop removes the oldest item. ok is false when the mailbox is closed and
// empty, or ctx ended first.
func (m *Mailbox[T]) Pop(ctx context.Context) (v T, ok bool) {
	for {
		m.mu.Lock()
		if len(m.items) > 0 {
			v = m.items[0]
			var zero T
			m.items[0] = zero
			m.items = m.items[1:]
			m.mu.Unlock()
			return v, true
		}
		if m.closed {
			m.mu.Unlock()
			return v, false
		}
		m.mu.Unlock()

		select {
		case <-m.notify:
		case <-ctx.Done():
			return v, false
		}
	}
}

// Len returns the number of queued items.
func (m *Mailbox[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// Close rejects further pushes. Items already queued can still be popped.
func (m *Mailbox[T]) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	close(m.notify)
}

func (m *Mailbox[T]) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
