package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/mezonai/walletd/exception"
	"github.com/mezonai/walletd/logx"
	"github.com/mezonai/walletd/messages"
	"github.com/mezonai/walletd/monitoring"
	"github.com/mezonai/walletd/queue"
)

const DefaultSubscriberBuffer = 64

type SubscriberID string

// Publisher is the side of the bus the worker sees.
type Publisher interface {
	Publish(event messages.Event)
}

type EventBus struct {
	subscribers map[SubscriberID]*Subscription
	buffer      int
	mu          sync.RWMutex
}

func NewEventBus() *EventBus {
	return NewEventBusWithBuffer(DefaultSubscriberBuffer)
}

// NewEventBusWithBuffer sets the channel capacity handed to each subscriber.
// Events beyond it wait in the subscriber's mailbox, never in Publish.
func NewEventBusWithBuffer(buffer int) *EventBus {
	if buffer < 0 {
		buffer = 0
	}
	return &EventBus{
		subscribers: make(map[SubscriberID]*Subscription),
		buffer:      buffer,
	}
}

func (eb *EventBus) generateUUIDID() SubscriberID {
	id := uuid.Must(uuid.NewV7())
	return SubscriberID(id.String())
}

// Subscribe registers for the named events, or for every event when names
// is empty. Only events published after this call are delivered.
func (eb *EventBus) Subscribe(names ...messages.EventName) *Subscription {
	return eb.subscribe(false, names)
}

func (eb *EventBus) subscribe(handled bool, names []messages.EventName) *Subscription {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	id := eb.generateUUIDID()
	sub := newSubscription(eb, id, names, eb.buffer, handled)
	eb.subscribers[id] = sub
	exception.SafeGo("eventbus-pump-"+string(id), sub.pump)

	monitoring.SetSubscriberCount(len(eb.subscribers))
	logx.Info("EVENTBUS", fmt.Sprintf("Client subscribed to wallet events | subscriber_id=%s | names=%v | total_subscribers=%d", id, names, len(eb.subscribers)))

	return sub
}

// SubscribeFunc runs handler for each delivered event on its own goroutine
// and releases the subscription when ctx ends or the handler panics.
func (eb *EventBus) SubscribeFunc(ctx context.Context, handler func(messages.Event), names ...messages.EventName) *Subscription {
	sub := eb.subscribe(true, names)
	exception.SafeGo("eventbus-handler-"+string(sub.ID), func() {
		defer close(sub.handlerDone)
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub.C():
				if !ok {
					return
				}
				handler(ev)
			}
		}
	})
	return sub
}

// Unsubscribe removes a subscription by ID
func (eb *EventBus) Unsubscribe(id SubscriberID) bool {
	subscriber, ok := eb.remove(id)
	if !ok {
		logx.Warn("EVENTBUS", fmt.Sprintf("Attempted to unsubscribe non-existent subscriber | subscriber_id=%s", id))
		return false
	}
	subscriber.stop()
	return true
}

// remove deregisters id so later publishes skip it.
func (eb *EventBus) remove(id SubscriberID) (*Subscription, bool) {
	eb.mu.Lock()
	subscriber, exists := eb.subscribers[id]
	if !exists {
		eb.mu.Unlock()
		return nil, false
	}
	delete(eb.subscribers, id)
	remaining := len(eb.subscribers)
	eb.mu.Unlock()

	monitoring.SetSubscriberCount(remaining)
	logx.Info("EVENTBUS", fmt.Sprintf("Client unsubscribed from events | subscriber_id=%s | remaining_subscribers=%d", id, remaining))
	return subscriber, true
}

// Publish hands a copy of event to every current subscriber that asked for
// its name. It never waits on a subscriber.
func (eb *EventBus) Publish(event messages.Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	monitoring.IncreaseEventPublished(string(event.Name()))

	if len(eb.subscribers) == 0 {
		logx.Debug("EVENTBUS", fmt.Sprintf("No subscribers for event | event=%s", event.Name()))
		return
	}

	delivered, backlog := 0, 0
	for id, subscriber := range eb.subscribers {
		if !subscriber.wants(event.Name()) {
			continue
		}
		if !subscriber.mailbox.Push(event) {
			logx.Warn("EVENTBUS", fmt.Sprintf("Subscriber closed during publish | subscriber_id=%s | event=%s", id, event.Name()))
			continue
		}
		delivered++
		if n := subscriber.mailbox.Len(); n > backlog {
			backlog = n
		}
	}

	monitoring.AddEventsDelivered(delivered)
	monitoring.SetSubscriberBacklog(backlog)
	logx.Debug("EVENTBUS", fmt.Sprintf("Published event | event=%s | delivered=%d | max_backlog=%d", event.Name(), delivered, backlog))
}

// GetTotalSubscriptions returns the total number of active subscriptions
func (eb *EventBus) GetTotalSubscriptions() int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	return len(eb.subscribers)
}

// GetSubscriberIDs returns a slice of all active subscriber IDs
func (eb *EventBus) GetSubscriberIDs() []SubscriberID {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	ids := make([]SubscriberID, 0, len(eb.subscribers))
	for id := range eb.subscribers {
		ids = append(ids, id)
	}
	return ids
}

// HasSubscriber checks if a subscriber with the given ID exists
func (eb *EventBus) HasSubscriber(id SubscriberID) bool {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	_, exists := eb.subscribers[id]
	return exists
}

// Close drops every subscription; their channels are closed.
func (eb *EventBus) Close() {
	for _, id := range eb.GetSubscriberIDs() {
		eb.Unsubscribe(id)
	}
}

var _ Publisher = (*EventBus)(nil)

// mailboxFor is used by tests to inspect pending deliveries.
func (eb *EventBus) mailboxFor(id SubscriberID) *queue.Mailbox[messages.Event] {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	if sub, ok := eb.subscribers[id]; ok {
		return sub.mailbox
	}
	return nil
}
