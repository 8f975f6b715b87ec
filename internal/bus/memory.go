package bus

import (
	"context"
	"sync"

	"github.com/vecbench/vecbench/internal/pkg/errors"
)

// MemoryBus is an in-memory event bus using synchronous handler dispatch.
// Benchmark phases publish from a single goroutine per topic, so handlers
// run inline and in order, which keeps progress output deterministic. Every
// handler has returned by the time Publish does, so Close never has to wait.
type MemoryBus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	closed   bool
}

// NewMemoryBus creates a new in-memory event bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{
		handlers: make(map[string][]Handler),
	}
}

// Publish delivers an event to all subscribers of a topic.
func (b *MemoryBus) Publish(ctx context.Context, topic string, event Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return errors.New(errors.CodeUnavailable, "bus is closed")
	}

	for _, handler := range b.handlers[topic] {
		// Handler errors don't fail the publish; events are advisory
		_ = handler(ctx, event)
	}

	return nil
}

// Subscribe registers a handler for events on a topic.
func (b *MemoryBus) Subscribe(ctx context.Context, topic string, handler Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return errors.New(errors.CodeUnavailable, "bus is closed")
	}

	b.handlers[topic] = append(b.handlers[topic], handler)
	return nil
}

// Close closes the bus and drops all subscriptions.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	b.handlers = nil
	return nil
}
