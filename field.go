package sift

import "fmt"

// FieldID identifies one logical field of a state type.
// IDs are typically string literals matching the struct field name,
// produced by the same step that builds the Registry.
type FieldID string

// Descriptor pairs a field identifier with an equality test bound to
// that field's accessor. It is the type-erased form of Field, suitable
// for storage in a Registry.
type Descriptor[S any] struct {
	// ID is the field's identifier, unique within a Registry.
	ID FieldID
	// Equal reports whether the field holds the same value in both states.
	Equal func(old, new S) bool
}

// Field is a typed selector token for one field of a state type.
// It carries the field's identifier and its accessor, and is the unit
// consumers hand to Read to fetch a value while registering interest.
//
// Example:
//
//	countField := sift.NewField("count", func(s CounterState) int { return s.Count })
type Field[S any, V comparable] struct {
	id  FieldID
	get func(S) V
}

// NewField creates a field token from an identifier and an accessor.
// The field's equality test is == on the accessed value.
func NewField[S any, V comparable](id FieldID, get func(S) V) Field[S, V] {
	return Field[S, V]{id: id, get: get}
}

// ID returns the field's identifier.
func (f Field[S, V]) ID() FieldID { return f.id }

// Get returns the field's value in the given state.
func (f Field[S, V]) Get(state S) V { return f.get(state) }

// Descriptor returns the type-erased form of the field for Registry
// construction.
func (f Field[S, V]) Descriptor() Descriptor[S] {
	get := f.get
	return Descriptor[S]{
		ID: f.id,
		Equal: func(old, new S) bool {
			return get(old) == get(new)
		},
	}
}

// NewFieldEqual creates a descriptor for a field whose value type is
// not comparable with ==, using a caller-supplied equality function.
//
// Example:
//
//	itemsField := sift.NewFieldEqual("items",
//	    func(s TodoState) []Item { return s.Items },
//	    slices.Equal)
func NewFieldEqual[S, V any](id FieldID, get func(S) V, eq func(V, V) bool) Descriptor[S] {
	return Descriptor[S]{
		ID: id,
		Equal: func(old, new S) bool {
			return eq(get(old), get(new))
		},
	}
}

// Registry is the complete, order-stable table of tracked fields for a
// state type. It is built once per state type and never mutated; a
// Store uses it to create its channels and to drive diffing.
type Registry[S any] struct {
	fields []Descriptor[S]
	index  map[FieldID]int
}

// NewRegistry builds a registry from the given descriptors.
// The descriptor order is preserved for the life of the registry.
//
// A registry with zero fields, a duplicate identifier, or a nil
// equality function is a configuration error and is rejected here
// rather than surfacing during dispatch.
func NewRegistry[S any](fields ...Descriptor[S]) (*Registry[S], error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("sift: registry requires at least one field")
	}

	index := make(map[FieldID]int, len(fields))
	for i, f := range fields {
		if f.ID == "" {
			return nil, fmt.Errorf("sift: field identifier cannot be empty")
		}
		if f.Equal == nil {
			return nil, fmt.Errorf("sift: field %q has no equality function", f.ID)
		}
		if _, dup := index[f.ID]; dup {
			return nil, fmt.Errorf("sift: duplicate field %q", f.ID)
		}
		index[f.ID] = i
	}

	// Copy so later mutation of the caller's slice cannot reorder the
	// registry.
	owned := make([]Descriptor[S], len(fields))
	copy(owned, fields)

	return &Registry[S]{fields: owned, index: index}, nil
}

// Fields returns the registry's descriptors in registration order.
// The returned slice is a copy.
func (r *Registry[S]) Fields() []Descriptor[S] {
	out := make([]Descriptor[S], len(r.fields))
	copy(out, r.fields)
	return out
}

// Len returns the number of tracked fields.
func (r *Registry[S]) Len() int {
	return len(r.fields)
}

// HasChanged reports whether the identified field differs between the
// two states. Unknown identifiers report false; field IDs normally come
// from the same step that built the registry, so an unknown ID is not
// worth failing a dispatch over.
func (r *Registry[S]) HasChanged(id FieldID, old, new S) bool {
	i, ok := r.index[id]
	if !ok {
		return false
	}
	return !r.fields[i].Equal(old, new)
}
