package sift

import "context"

// Operation is the body of a Run effect. It may perform asynchronous
// work of unbounded latency and deliver zero or more follow-up actions
// through send. The context is the store's effect context; it is
// cancelled when the store closes.
type Operation[A any] func(ctx context.Context, send Send[A])

// Effect describes work to perform after a state transition. It is a
// closed two-case value: None (nothing further) or Run (execute an
// operation off the dispatch path). An Effect is produced once by a
// reducer and consumed exactly once by the store.
type Effect[A any] struct {
	op Operation[A]
}

// None returns the effect that performs no further work.
// The zero Effect value is equivalent.
func None[A any]() Effect[A] {
	return Effect[A]{}
}

// Run returns an effect that executes op in a detached goroutine with
// a Send handle bound to the dispatching store. Run(nil) is None.
func Run[A any](op Operation[A]) Effect[A] {
	return Effect[A]{op: op}
}

// IsNone reports whether the effect carries no operation.
func (e Effect[A]) IsNone() bool {
	return e.op == nil
}

// Send delivers follow-up actions from an effect operation back into
// the originating store's dispatch pipeline. Actions are marshaled onto
// the store's mailbox and dispatched in FIFO order by a single
// consumer, preserving the single-writer contract.
//
// A Send may be retained beyond its operation's lifetime and called
// from any goroutine. Once the store is closed every Send it issued is
// inert: Send becomes a silent no-op and never resurrects the store.
type Send[A any] struct {
	box *mailbox[A]
}

// Send enqueues one action for dispatch. It does not block on the
// dispatch itself and returns immediately.
func (s Send[A]) Send(action A) {
	if s.box == nil {
		return
	}
	s.box.put(action)
}
