package fastview

import (
	"sync"

	channerics "github.com/niceyeti/channerics/channels"
)

// Hub fans a single update stream out to any number of clients. Each subscriber has
// a one-item buffer; a new item is merged into any unread one, so a slow client never
// blocks the source or other clients.
type Hub[T any] struct {
	mu    sync.Mutex
	subs  map[chan T]struct{}
	merge func(pending, next T) T
}

// NewHub returns a hub that combines unread items with merge. A nil merge keeps only
// the newest item.
func NewHub[T any](merge func(pending, next T) T) *Hub[T] {
	if merge == nil {
		merge = func(_, next T) T { return next }
	}
	return &Hub[T]{
		subs:  map[chan T]struct{}{},
		merge: merge,
	}
}

// Subscribe returns a channel of updates and the func that unsubscribes it.
func (hub *Hub[T]) Subscribe() (<-chan T, func()) {
	sub := make(chan T, 1)
	hub.mu.Lock()
	hub.subs[sub] = struct{}{}
	hub.mu.Unlock()

	var once sync.Once
	return sub, func() {
		once.Do(func() {
			hub.mu.Lock()
			delete(hub.subs, sub)
			hub.mu.Unlock()
		})
	}
}

// Run forwards the source to all subscribers until the source closes or done fires,
// then closes every subscriber channel.
func (hub *Hub[T]) Run(done <-chan struct{}, source <-chan T) {
	for item := range channerics.OrDone(done, source) {
		hub.mu.Lock()
		for sub := range hub.subs {
			next := item
			select {
			case pending := <-sub:
				next = hub.merge(pending, item)
			default:
			}
			// Run is the only sender, so after draining this cannot block.
			sub <- next
		}
		hub.mu.Unlock()
	}

	hub.mu.Lock()
	defer hub.mu.Unlock()
	for sub := range hub.subs {
		close(sub)
		delete(hub.subs, sub)
	}
}
