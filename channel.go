package sift

import (
	"sync"
	"sync/atomic"
)

// Channel is the smallest unit of observability: a monotonically
// increasing version counter for one tracked field. The counter
// advances exactly once per dispatch in which the field's comparator
// reports a difference; it never decreases.
//
// A Channel's lifetime is its store's lifetime. Stores create one
// channel per registry entry at construction and never resize the set.
type Channel struct {
	version atomic.Uint64

	mu        sync.Mutex
	observers map[*Observer]struct{}
}

func newChannel() *Channel {
	return &Channel{observers: make(map[*Observer]struct{})}
}

// Version returns the channel's current counter value. Safe to call
// from any goroutine.
func (c *Channel) Version() uint64 {
	return c.version.Load()
}

// bump advances the counter and signals every attached observer.
// Called by the store with the dispatch lock held, so observers never
// see a partially applied diff.
func (c *Channel) bump() uint64 {
	v := c.version.Add(1)

	c.mu.Lock()
	for o := range c.observers {
		o.notify()
	}
	c.mu.Unlock()

	return v
}

// attach registers an observer for future bumps.
func (c *Channel) attach(o *Observer) {
	c.mu.Lock()
	c.observers[o] = struct{}{}
	c.mu.Unlock()

	o.track(c)
}

// detach removes an observer.
func (c *Channel) detach(o *Observer) {
	c.mu.Lock()
	delete(c.observers, o)
	c.mu.Unlock()
}
