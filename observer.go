package sift

import "sync"

// Observer is an observation context. Passing one to Read or Snapshot
// registers it against the channels of the fields it touched; any later
// change to one of those fields signals Changed.
//
// The signal is coalesced: several field changes between two receives
// collapse into a single wakeup, which suits a consumer that re-reads
// everything it cares about on each pass (a render loop, for example).
type Observer struct {
	changed chan struct{}

	mu       sync.Mutex
	channels map[*Channel]struct{}
}

// NewObserver creates an observer with no registrations.
func NewObserver() *Observer {
	return &Observer{
		changed:  make(chan struct{}, 1),
		channels: make(map[*Channel]struct{}),
	}
}

// Changed returns the observer's wakeup channel. It receives one value
// after any registered field changes; pending signals are coalesced.
func (o *Observer) Changed() <-chan struct{} {
	return o.changed
}

// Reset drops every registration accumulated so far. A consumer that
// re-reads on each wakeup calls Reset first so registrations track only
// the fields touched by the latest pass.
func (o *Observer) Reset() {
	o.mu.Lock()
	channels := make([]*Channel, 0, len(o.channels))
	for c := range o.channels {
		channels = append(channels, c)
	}
	o.channels = make(map[*Channel]struct{})
	o.mu.Unlock()

	for _, c := range channels {
		c.detach(o)
	}
}

// notify delivers a coalesced wakeup. Non-blocking: if a signal is
// already pending the new one folds into it.
func (o *Observer) notify() {
	select {
	case o.changed <- struct{}{}:
	default:
	}
}

// track records a channel this observer is attached to, so Reset can
// detach from it later.
func (o *Observer) track(c *Channel) {
	o.mu.Lock()
	o.channels[c] = struct{}{}
	o.mu.Unlock()
}
