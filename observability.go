package sift

import (
	"context"
	"reflect"
	"time"
)

// Observability defines hooks for monitoring store activity.
// Implementations can add tracing, metrics, or logging around dispatch
// and effect execution. All methods must be safe for concurrent use.
//
// The contexts returned by the Start hooks are threaded into the
// matching Complete hooks, so an implementation can carry spans or
// timers across a dispatch or an effect.
type Observability interface {
	// OnDispatchStart is called at the top of Dispatch, before the
	// reducer runs.
	OnDispatchStart(ctx context.Context, actionType string) context.Context

	// OnFieldChanged is called once per field whose comparator reported
	// a difference, with the channel's new version.
	OnFieldChanged(ctx context.Context, id FieldID, version uint64)

	// OnDispatchComplete is called after the diff finishes, with the
	// dispatch duration and the number of fields that changed. The
	// effect, if any, has been handed off but not necessarily started.
	OnDispatchComplete(ctx context.Context, duration time.Duration, changed int)

	// OnEffectStart is called in the effect's goroutine before the
	// operation runs.
	OnEffectStart(ctx context.Context, actionType string) context.Context

	// OnEffectComplete is called when the operation returns. err is
	// non-nil only if the operation panicked and was recovered.
	OnEffectComplete(ctx context.Context, duration time.Duration, err error)
}

// nopObservability is the default: every hook does nothing.
type nopObservability struct{}

func (nopObservability) OnDispatchStart(ctx context.Context, actionType string) context.Context {
	return ctx
}
func (nopObservability) OnFieldChanged(ctx context.Context, id FieldID, version uint64) {}
func (nopObservability) OnDispatchComplete(ctx context.Context, duration time.Duration, changed int) {
}
func (nopObservability) OnEffectStart(ctx context.Context, actionType string) context.Context {
	return ctx
}
func (nopObservability) OnEffectComplete(ctx context.Context, duration time.Duration, err error) {}

// PanicHandler is called when an effect operation panics. The recovered
// value is passed through unchanged.
type PanicHandler func(actionType string, panicValue any)

// ActionType returns the type name of an action for hook attribution,
// e.g. "counter.IncrementTapped". Returns "nil" for a nil action.
func ActionType(action any) string {
	if action == nil {
		return "nil"
	}
	return reflect.TypeOf(action).String()
}
