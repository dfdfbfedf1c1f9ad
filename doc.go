// Package sift is a unidirectional state-management core with
// fine-grained change tracking. A Store holds one feature's state,
// accepts discrete actions, delegates transitions to a pure reducer,
// executes resulting effects off the dispatch path, and notifies
// observers only about the specific fields that actually changed.
//
// # Fields and the Registry
//
// Each state type declares its tracked fields once, as typed selector
// tokens, and collects them into a Registry:
//
//	type CounterState struct {
//	    Count     int
//	    IsLoading bool
//	}
//
//	var (
//	    countField   = sift.NewField("count", func(s CounterState) int { return s.Count })
//	    loadingField = sift.NewField("isLoading", func(s CounterState) bool { return s.IsLoading })
//	)
//
//	registry, err := sift.NewRegistry(
//	    countField.Descriptor(),
//	    loadingField.Descriptor(),
//	)
//
// The registry is static metadata: computed once per state type,
// exhaustive over its state-affecting fields, and never mutated.
//
// # Reducers and Effects
//
// A reducer maps (state, action) to (state, effect), with no side
// effects of its own:
//
//	func reduce(s CounterState, a CounterAction) (CounterState, sift.Effect[CounterAction]) {
//	    switch a.(type) {
//	    case Increment:
//	        s.Count++
//	        return s, sift.None[CounterAction]()
//	    case FetchFact:
//	        s.IsLoading = true
//	        return s, sift.Run(func(ctx context.Context, send sift.Send[CounterAction]) {
//	            fact, err := loadFact(ctx, s.Count)
//	            if err != nil {
//	                send.Send(FactFailed{Err: err})
//	                return
//	            }
//	            send.Send(FactLoaded{Fact: fact})
//	        })
//	    }
//	    return s, sift.None[CounterAction]()
//	}
//
// Effects run in detached goroutines and feed follow-up actions back
// through Send, which marshals them onto the store's single dispatch
// consumer. Errors inside an effect are not thrown anywhere; they are
// converted into ordinary actions (FactFailed above) and flow through
// the same pipeline.
//
// # Stores and Observation
//
//	store, err := sift.New(CounterState{}, reduce, registry)
//	defer store.Close()
//
//	store.Dispatch(Increment{})
//
// Reading through a typed field token with an Observer registers
// interest at field granularity:
//
//	obs := sift.NewObserver()
//	count := sift.Read(store, obs, countField)
//
//	<-obs.Changed() // wakes only when a field this observer read changes
//
// Dispatches that leave a field untouched never signal that field's
// observers; a dispatch that changes nothing signals nobody.
//
// Store.Snapshot returns the whole state and, when given an observer,
// subscribes it to every field. That is an escape hatch for coarse
// consumers and wakes on every change; prefer Read.
//
// # Lifetime
//
// Close cancels the effect context and renders every outstanding Send
// inert. A retained Send called after Close is a silent no-op: it never
// panics and never resurrects the store. WaitEffects blocks until all
// in-flight effects and their follow-up dispatches have settled.
//
// # Instrumentation
//
// The Observability interface exposes hooks around dispatch, field
// changes, and effect execution. The sift/otel package implements it
// with OpenTelemetry metrics and traces:
//
//	obs, _ := otel.New()
//	store, _ := sift.New(initial, reduce, registry,
//	    sift.WithObservability[CounterState, CounterAction](obs))
package sift
