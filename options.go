package sift

import "context"

// Option configures a Store at construction.
type Option[S, A any] func(*Store[S, A])

// WithObservability installs an Observability implementation. The
// default is a no-op.
func WithObservability[S, A any](obs Observability) Option[S, A] {
	return func(s *Store[S, A]) {
		if obs != nil {
			s.obs = obs
		}
	}
}

// WithPanicHandler sets a function to be called when an effect
// operation panics. Without one, a recovered panic is silently
// discarded after the OnEffectComplete hook fires.
func WithPanicHandler[S, A any](h PanicHandler) Option[S, A] {
	return func(s *Store[S, A]) {
		s.panicHandler = h
	}
}

// WithEffectContext sets the parent context for effect operations.
// The store derives its own cancellable context from it, so Close
// still cancels in-flight effects. Defaults to context.Background().
func WithEffectContext[S, A any](ctx context.Context) Option[S, A] {
	return func(s *Store[S, A]) {
		if ctx != nil {
			s.parentCtx = ctx
		}
	}
}
