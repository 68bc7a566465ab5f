// Package lifecycle carries application state transitions to the engine.
package lifecycle

import (
	"context"
	"sync"

	"notification-engine/internal/models"
)

// Listener is called for every published transition
type Listener func(ctx context.Context, state models.AppState)

// Source is anything that emits lifecycle transitions
type Source interface {
	Subscribe(l Listener) (unsubscribe func())
}

// Bus is an in-process lifecycle signal. Publish fans out synchronously.
type Bus struct {
	mu        sync.RWMutex
	nextID    int
	listeners map[int]Listener
}

// NewBus creates a bus with no listeners
func NewBus() *Bus {
	return &Bus{listeners: make(map[int]Listener)}
}

// Subscribe registers l. The returned func removes it and may be called more than once.
func (b *Bus) Subscribe(l Listener) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = l
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.listeners, id)
			b.mu.Unlock()
		})
	}
}

// Publish delivers state to every current listener
func (b *Bus) Publish(ctx context.Context, state models.AppState) {
	b.mu.RLock()
	listeners := make([]Listener, 0, len(b.listeners))
	for _, l := range b.listeners {
		listeners = append(listeners, l)
	}
	b.mu.RUnlock()

	for _, l := range listeners {
		l(ctx, state)
	}
}

// Listeners returns the number of subscribed listeners
func (b *Bus) Listeners() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}
