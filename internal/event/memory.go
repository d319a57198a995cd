package event

import (
	"context"
	"errors"
	"sync"
)

// MemoryBus delivers events synchronously and in order to every subscribed
// handler. It backs single-process deployments and tests, where the
// registration saga runs in the same process as the publisher.
type MemoryBus struct {
	mu       sync.RWMutex
	handlers []Handler
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{}
}

func (b *MemoryBus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// Publish invokes each handler with the event. Every handler sees the event
// even when an earlier one fails; the errors are joined.
func (b *MemoryBus) Publish(ctx context.Context, e Event) error {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	var errs []error
	for _, h := range handlers {
		if err := h(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
