package sift

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Reducer is the pure transition function supplied by the application:
// given the current state and an action, it returns the new state and
// an effect describing any follow-up work. It must be deterministic and
// must not perform I/O; nondeterministic work belongs inside the
// effect's operation.
//
// A reducer has no error channel. Domain failures are modeled as action
// variants (for example a "request failed" action carrying the error)
// and delivered through the same pipeline via Send.
type Reducer[S, A any] func(state S, action A) (S, Effect[A])

// Store owns one feature's state and orchestrates the dispatch
// pipeline: reducer invocation, per-field diffing against the registry,
// channel notification, and effect execution.
//
// Dispatch, Read, and Snapshot are serialized by an internal mutex, so
// an observer never sees a partially applied diff. Effect operations
// run in detached goroutines and re-enter the pipeline through Send,
// which marshals actions onto a single consumer to preserve the
// single-writer contract.
type Store[S, A any] struct {
	reducer  Reducer[S, A]
	registry *Registry[S]

	mu    sync.Mutex
	state S

	// One channel per registry entry, created at construction and
	// never resized.
	channels map[FieldID]*Channel

	obs          Observability
	panicHandler PanicHandler
	parentCtx    context.Context

	effectCtx context.Context
	cancel    context.CancelFunc

	box    *mailbox[A]
	busy   sync.WaitGroup // in-flight effects and queued actions
	closed atomic.Bool
}

// New creates a store holding initial, bound to the given reducer and
// field registry. Every tracked field gets exactly one channel,
// initialized to version zero.
//
// A nil reducer or registry is a configuration error and fails here,
// not at dispatch time.
func New[S, A any](initial S, reducer Reducer[S, A], registry *Registry[S], opts ...Option[S, A]) (*Store[S, A], error) {
	if reducer == nil {
		return nil, fmt.Errorf("sift: reducer cannot be nil")
	}
	if registry == nil {
		return nil, fmt.Errorf("sift: registry cannot be nil")
	}

	s := &Store[S, A]{
		reducer:   reducer,
		registry:  registry,
		state:     initial,
		channels:  make(map[FieldID]*Channel, registry.Len()),
		obs:       nopObservability{},
		parentCtx: context.Background(),
	}

	for _, opt := range opts {
		opt(s)
	}

	for _, d := range registry.fields {
		s.channels[d.ID] = newChannel()
	}

	s.effectCtx, s.cancel = context.WithCancel(s.parentCtx)
	s.box = newMailbox[A](&s.busy)

	go s.consumeMailbox()

	return s, nil
}

// Dispatch runs one step of the pipeline: it invokes the reducer,
// replaces the current state, bumps the channel of every field whose
// comparator reports a difference, and hands any Run effect to a
// detached goroutine. Dispatch returns without waiting for the effect.
//
// Dispatch never fails; a panicking reducer is a programming defect in
// the supplied reducer, not a runtime condition the store recovers
// from. After Close, Dispatch is a no-op.
func (s *Store[S, A]) Dispatch(action A) {
	if s.closed.Load() {
		return
	}

	actionType := ActionType(action)
	ctx := s.obs.OnDispatchStart(s.effectCtx, actionType)
	start := time.Now()

	type fieldChange struct {
		id      FieldID
		version uint64
	}
	var changes []fieldChange

	s.mu.Lock()
	old := s.state
	next, effect := s.reducer(old, action)
	s.state = next

	// Each comparator runs exactly once per dispatch. Bumps happen
	// under the dispatch lock so the diff is atomic to observers.
	for _, d := range s.registry.fields {
		if d.Equal(old, next) {
			continue
		}
		v := s.channels[d.ID].bump()
		changes = append(changes, fieldChange{id: d.ID, version: v})
	}
	s.mu.Unlock()

	for _, c := range changes {
		s.obs.OnFieldChanged(ctx, c.id, c.version)
	}
	s.obs.OnDispatchComplete(ctx, time.Since(start), len(changes))

	if !effect.IsNone() {
		s.runEffect(effect.op, actionType)
	}
}

// Read returns the current value of field f. A non-nil observer is
// registered against f's channel first, so any change after this read
// signals it. This is the primary read path for external consumers.
func Read[S, A any, V comparable](s *Store[S, A], o *Observer, f Field[S, V]) V {
	if o != nil {
		if ch := s.channels[f.id]; ch != nil {
			ch.attach(o)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return f.get(s.state)
}

// Snapshot returns the entire current state. A non-nil observer is
// attached to every field's channel, so any change at all signals it.
//
// An observer that uses Snapshot as its sole read path is effectively
// subscribed at whole-object granularity and wakes on every dispatch
// that changes anything. Prefer Read for field-level granularity.
func (s *Store[S, A]) Snapshot(o *Observer) S {
	if o != nil {
		for _, ch := range s.channels {
			ch.attach(o)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Version returns the current counter of the identified field's
// channel, or 0 for an unknown identifier.
func (s *Store[S, A]) Version(id FieldID) uint64 {
	if ch := s.channels[id]; ch != nil {
		return ch.Version()
	}
	return 0
}

// Close shuts the store down: the effect context is cancelled, queued
// actions are dropped, and every Send handle the store ever issued
// becomes a silent no-op. Close is idempotent. Effect operations that
// ignore their context keep running, but nothing they send is
// delivered.
func (s *Store[S, A]) Close() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	s.cancel()
	s.box.close()
}

// WaitEffects blocks until every in-flight effect operation has
// returned and every action it sent has been dispatched. Useful in
// tests and during shutdown sequencing.
//
// Do not call WaitEffects concurrently with a retained Send: a send
// that races the wait may land after the counter reaches zero.
func (s *Store[S, A]) WaitEffects() {
	s.busy.Wait()
}

// runEffect executes an operation in a detached goroutine with a Send
// handle bound back to this store. Panics are recovered so a failing
// effect cannot take the process down.
func (s *Store[S, A]) runEffect(op Operation[A], actionType string) {
	s.busy.Add(1)
	go func() {
		defer s.busy.Done()

		ctx := s.obs.OnEffectStart(s.effectCtx, actionType)
		start := time.Now()

		var err error
		func() {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("sift: effect panic: %v", r)
					if s.panicHandler != nil {
						s.panicHandler(actionType, r)
					}
				}
			}()
			op(ctx, Send[A]{box: s.box})
		}()

		s.obs.OnEffectComplete(ctx, time.Since(start), err)
	}()
}

// consumeMailbox is the re-entry point for effect-sent actions: a
// single consumer drains the mailbox in FIFO order, so each dispatch
// completes before the next begins.
func (s *Store[S, A]) consumeMailbox() {
	for {
		select {
		case <-s.effectCtx.Done():
			return
		case <-s.box.wake:
		}

		for {
			action, ok := s.box.take()
			if !ok {
				break
			}
			s.Dispatch(action)
			s.busy.Done()
		}
	}
}

// mailbox is an unbounded FIFO queue carrying effect-sent actions back
// to the store's consumer goroutine.
type mailbox[A any] struct {
	mu     sync.Mutex
	queue  []A
	wake   chan struct{}
	closed bool
	busy   *sync.WaitGroup
}

func newMailbox[A any](busy *sync.WaitGroup) *mailbox[A] {
	return &mailbox[A]{
		wake: make(chan struct{}, 1),
		busy: busy,
	}
}

// put enqueues an action. Dropped silently once the mailbox is closed.
func (m *mailbox[A]) put(action A) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.queue = append(m.queue, action)
	m.busy.Add(1)
	m.mu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// take removes the oldest queued action, if any.
func (m *mailbox[A]) take() (A, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.queue) == 0 {
		var zero A
		return zero, false
	}
	action := m.queue[0]
	m.queue = m.queue[1:]
	return action, true
}

// close drops all queued actions and rejects future puts.
func (m *mailbox[A]) close() {
	m.mu.Lock()
	dropped := len(m.queue)
	m.queue = nil
	m.closed = true
	m.mu.Unlock()

	for range dropped {
		m.busy.Done()
	}
}
