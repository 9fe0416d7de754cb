package events

import (
	"context"
	"sync"
)

// LocalBus is an in-process Publisher/Subscriber. It backs the memory storage
// mode, where no redis is configured, and records everything it publishes.
type LocalBus struct {
	mu        sync.Mutex
	published []Event
	handlers  map[string][]func(Event)
}

func NewLocalBus() *LocalBus {
	return &LocalBus{handlers: make(map[string][]func(Event))}
}

func (b *LocalBus) Publish(_ context.Context, stream string, event Event) error {
	b.mu.Lock()
	b.published = append(b.published, event)
	hs := append([]func(Event){}, b.handlers[stream]...)
	b.mu.Unlock()

	for _, h := range hs {
		h(event)
	}
	return nil
}

func (b *LocalBus) Subscribe(_ context.Context, stream string, handler func(Event)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[stream] = append(b.handlers[stream], handler)
	return nil
}

// Published returns a copy of every event seen so far.
func (b *LocalBus) Published() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Event(nil), b.published...)
}
