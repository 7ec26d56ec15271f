// Package events is the in-process notification channel for ledger mutations.
//
// The ledger publishes one Event per successful write; list views, the stats
// cache and the broker forwarder subscribe. Handlers run synchronously on the
// publishing goroutine, so they must not block.
package events

import (
	"context"
	"slices"
	"sync"
	"time"

	"hisab/internal/log"
)

// Type identifies what happened to a record.
type Type string

const (
	TransactionCreated Type = "transaction.created"
	TransactionDeleted Type = "transaction.deleted"
	DebtCreated        Type = "debt.created"
	DebtSettled        Type = "debt.settled"
	DebtDeleted        Type = "debt.deleted"
)

// Event describes a committed ledger mutation.
type Event struct {
	Type       Type           `json:"type"`
	Collection string         `json:"collection"`
	RecordID   string         `json:"record_id"`
	UserID     string         `json:"user_id"`
	Record     map[string]any `json:"record,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// Handler receives events.
type Handler func(ctx context.Context, e Event)

type subscription struct {
	id          uint64
	collections []string
	handler     Handler
}

// Bus fans events out to subscribers.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   []subscription
	logger *log.Logger
}

func NewBus() *Bus {
	return &Bus{logger: log.WithComponent(log.ComponentEvents)}
}

// Subscribe registers h for events on the given collections, or on every
// collection when none are named. The returned func removes the subscription.
func (b *Bus) Subscribe(h Handler, collections ...string) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, collections: collections, handler: h})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			b.subs = slices.DeleteFunc(b.subs, func(s subscription) bool { return s.id == id })
		})
	}
}

// Publish delivers e to every matching subscriber. A panicking handler is
// logged and does not stop delivery to the others.
func (b *Bus) Publish(ctx context.Context, e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	b.mu.RLock()
	targets := make([]Handler, 0, len(b.subs))
	for _, s := range b.subs {
		if len(s.collections) == 0 || slices.Contains(s.collections, e.Collection) {
			targets = append(targets, s.handler)
		}
	}
	b.mu.RUnlock()

	for _, h := range targets {
		b.deliver(ctx, h, e)
	}
}

func (b *Bus) deliver(ctx context.Context, h Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.ErrorContext(ctx, "Event handler panicked",
				log.FieldEvent, string(e.Type),
				"panic", r)
		}
	}()
	h(ctx, e)
}

// Subscribers returns the number of live subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
