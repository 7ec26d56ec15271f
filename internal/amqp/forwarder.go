package amqp

import (
	"context"
	"sync"

	"hisab/internal/events"
	"hisab/internal/log"
)

// Publisher sends ledger messages to the broker.
type Publisher interface {
	PublishLedgerEvent(ctx context.Context, msg *LedgerMessage) error
}

const defaultForwardBuffer = 256

// Forwarder relays bus events to the broker from a background goroutine, so
// a slow or dead broker never holds up the request that caused the event.
// Events arriving while the buffer is full are dropped and logged.
type Forwarder struct {
	pub    Publisher
	queue  chan events.Event
	unsub  func()
	done   chan struct{}
	mu     sync.RWMutex
	closed bool
	logger *log.Logger
}

// NewForwarder subscribes to every ledger event on bus and starts relaying.
func NewForwarder(pub Publisher, bus *events.Bus, buffer int) *Forwarder {
	if buffer <= 0 {
		buffer = defaultForwardBuffer
	}
	f := &Forwarder{
		pub:    pub,
		queue:  make(chan events.Event, buffer),
		done:   make(chan struct{}),
		logger: log.WithComponent(log.ComponentAMQP),
	}
	f.unsub = bus.Subscribe(f.enqueue)
	go f.run()
	return f
}

func (f *Forwarder) enqueue(ctx context.Context, e events.Event) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return
	}
	select {
	case f.queue <- e:
	default:
		f.logger.WarnContext(ctx, "Forward buffer full, dropping ledger event",
			log.FieldEvent, string(e.Type),
			log.FieldID, e.RecordID)
	}
}

func (f *Forwarder) run() {
	defer close(f.done)
	for e := range f.queue {
		// The request context is gone by now; the publish carries its own timeout.
		if err := f.pub.PublishLedgerEvent(context.Background(), NewLedgerMessage(e)); err != nil {
			f.logger.Error("Failed to forward ledger event",
				log.FieldError, err,
				log.FieldEvent, string(e.Type),
				log.FieldID, e.RecordID)
		}
	}
}

// Close unsubscribes, drains what is already queued and waits for the relay
// goroutine to finish or ctx to expire.
func (f *Forwarder) Close(ctx context.Context) error {
	f.unsub()
	f.mu.Lock()
	if !f.closed {
		f.closed = true
		close(f.queue)
	}
	f.mu.Unlock()

	select {
	case <-f.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
