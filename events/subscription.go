package events

import (
	"context"
	"sync"

	"github.com/mezonai/walletd/messages"
	"github.com/mezonai/walletd/queue"
)

// Subscription is one registered listener. Events arrive on C in publish
// order; C is closed after Close.
type Subscription struct {
	ID SubscriberID

	bus     *EventBus
	names   map[messages.EventName]struct{}
	mailbox *queue.Mailbox[messages.Event]
	ch      chan messages.Event
	ctx     context.Context
	cancel  context.CancelFunc
	once    sync.Once

	pumped chan struct{}
	// handlerDone is set for SubscribeFunc subscriptions and closed when
	// the handler goroutine returns
	handlerDone chan struct{}
}

func newSubscription(bus *EventBus, id SubscriberID, names []messages.EventName, buffer int, handled bool) *Subscription {
	ctx, cancel := context.WithCancel(context.Background())
	sub := &Subscription{
		ID:      id,
		bus:     bus,
		mailbox: queue.NewMailbox[messages.Event](),
		ch:      make(chan messages.Event, buffer),
		ctx:     ctx,
		cancel:  cancel,
		pumped:  make(chan struct{}),
	}
	if handled {
		sub.handlerDone = make(chan struct{})
	}
	if len(names) > 0 {
		sub.names = make(map[messages.EventName]struct{}, len(names))
		for _, n := range names {
			sub.names[n] = struct{}{}
		}
	}
	return sub
}

func (s *Subscription) C() <-chan messages.Event {
	return s.ch
}

// Close deregisters the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	if s.ctx.Err() != nil {
		return
	}
	s.bus.remove(s.ID)
	s.stop()
}

// Drain deregisters the subscription but first delivers everything already
// published to it. For SubscribeFunc subscriptions it returns once the
// handler has seen the last event. If ctx ends first the backlog is dropped.
func (s *Subscription) Drain(ctx context.Context) error {
	s.bus.remove(s.ID)
	s.mailbox.Close()

	done := s.pumped
	if s.handlerDone != nil {
		done = s.handlerDone
	}
	defer s.stop()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed once the subscription has been released.
func (s *Subscription) Done() <-chan struct{} {
	return s.ctx.Done()
}

func (s *Subscription) wants(name messages.EventName) bool {
	if s.names == nil {
		return true
	}
	_, ok := s.names[name]
	return ok
}

func (s *Subscription) stop() {
	s.once.Do(func() {
		s.mailbox.Close()
		s.cancel()
	})
}

func (s *Subscription) pump() {
	defer close(s.pumped)
	defer close(s.ch)
	for {
		ev, ok := s.mailbox.Pop(s.ctx)
		if !ok {
			return
		}
		select {
		case s.ch <- ev:
		case <-s.ctx.Done():
			return
		}
	}
}
