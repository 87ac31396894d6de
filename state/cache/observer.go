package cache

import (
	"time"

	"github.com/sasha-s/go-deadlock"
)

// invalidator coalesces change notifications. A burst of ingestion collapses
// into a single signal delivered after a short delay; with nobody attached
// the signal is dropped on the floor, there is no backlog.
type invalidator struct {
	mu          deadlock.Mutex
	delay       time.Duration
	subscribers map[chan struct{}]struct{}
	pending     bool
}

func newInvalidator(delay time.Duration) *invalidator {
	return &invalidator{
		delay:       delay,
		subscribers: make(map[chan struct{}]struct{}),
	}
}

func (i *invalidator) subscribe() chan struct{} {
	// Buffered by one so the delivery never blocks a slow observer; the
	// observer re-queries current state, a second queued signal would carry
	// no information.
	ch := make(chan struct{}, 1)
	i.mu.Lock()
	defer i.mu.Unlock()
	i.subscribers[ch] = struct{}{}
	return ch
}

func (i *invalidator) unsubscribe(ch chan struct{}) {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.subscribers, ch)
}

func (i *invalidator) invalidate() {
	i.mu.Lock()
	if len(i.subscribers) == 0 || i.pending {
		i.mu.Unlock()
		return
	}
	i.pending = true
	i.mu.Unlock()
	time.AfterFunc(i.delay, i.fire)
}

func (i *invalidator) fire() {
	i.mu.Lock()
	i.pending = false
	subs := make([]chan struct{}, 0, len(i.subscribers))
	for ch := range i.subscribers {
		subs = append(subs, ch)
	}
	i.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Subscribe attaches an observer. The returned channel receives one opaque
// signal per coalescing window; consumers re-query the cache.
func (c *Cache) Subscribe() chan struct{} {
	return c.live.subscribe()
}

func (c *Cache) Unsubscribe(ch chan struct{}) {
	c.live.unsubscribe(ch)
}

func (c *Cache) invalidate() {
	c.live.invalidate()
}
