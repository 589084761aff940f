package ecs

import (
	"iter"
	"reflect"
	"slices"
	"unsafe"
)

// Query caches the entities whose masks contain a required component signature.
// The type T should be a struct with embedded pointer fields for each component type.
// Named fields can be marked as optional using the `ecs:"optional"` struct tag.
//
// A Query is refreshed between ticks, either incrementally from the storage's
// drained dirty set (Update) or by a full scan (Rescan). Entities that start
// matching become visible at the next refresh, never halfway through an iteration.
type Query[T any] struct {
	storage  *Storage
	fields   []queryField
	required Mask
	resolved bool

	entities []Entity
	version  uint64
}

type queryField struct {
	typ      reflect.Type
	offset   uintptr
	optional bool
	id       ComponentId
	known    bool
}

// NewQuery creates a Query over storage and fills it with a full scan.
func NewQuery[T any](storage *Storage) *Query[T] {
	q := &Query[T]{}
	q.Init(storage)
	q.Rescan()
	return q
}

// Init initializes or re-initializes the Query with a storage.
// Called by the Scheduler during system registration.
func (q *Query[T]) Init(storage *Storage) {
	structType := reflect.TypeFor[T]()
	if structType.Kind() != reflect.Struct {
		panic("Query type parameter must be a struct")
	}

	fields := make([]queryField, 0, structType.NumField())
	for i := 0; i < structType.NumField(); i++ {
		field := structType.Field(i)
		if field.Type.Kind() != reflect.Ptr {
			panic("Query struct fields must be pointer types")
		}

		// Embedded fields (field.Anonymous) are always required
		isOptional := false
		if !field.Anonymous {
			if tag := field.Tag.Get("ecs"); tag != "" {
				if tag != "optional" {
					panic("invalid ecs tag value: \"" + tag + "\" (only \"optional\" is supported)")
				}
				isOptional = true
			}
		}
		fields = append(fields, queryField{
			typ:      field.Type.Elem(),
			offset:   field.Offset,
			optional: isOptional,
		})
	}

	q.storage = storage
	q.fields = fields
	q.required = 0
	q.resolved = false
	q.entities = q.entities[:0]
	q.version++
}

// resolve looks up ids for field types registered since the last call. Until
// every required type is registered no entity can match.
func (q *Query[T]) resolve() bool {
	if q.resolved {
		return true
	}
	all := true
	for i := range q.fields {
		f := &q.fields[i]
		if !f.known {
			f.id, f.known = q.storage.registry.IdOf(f.typ)
		}
		if !f.known && !f.optional {
			all = false
		}
	}
	if !all {
		return false
	}
	q.required = 0
	for _, f := range q.fields {
		if !f.optional {
			q.required = q.required.With(f.id)
		}
	}
	allKnown := true
	for _, f := range q.fields {
		allKnown = allKnown && f.known
	}
	q.resolved = allKnown
	return true
}

// Mask returns the required signature. It is empty until every required
// component type has been registered.
func (q *Query[T]) Mask() Mask {
	q.resolve()
	return q.required
}

func (q *Query[T]) matches(e Entity) bool {
	rec, err := q.storage.record(e)
	return err == nil && rec.mask.Contains(q.required)
}

// Rescan rebuilds the entity list by testing every live entity.
func (q *Query[T]) Rescan() {
	if !q.resolve() {
		if len(q.entities) > 0 {
			q.entities = q.entities[:0]
			q.version++
		}
		return
	}
	next := make([]Entity, 0, len(q.entities))
	for e := range q.storage.Entities() {
		if q.matches(e) {
			next = append(next, e)
		}
	}
	if !slices.Equal(next, q.entities) {
		q.version++
	}
	q.entities = next
}

// Update re-tests only the given entities, which must be sorted by index as
// returned by Storage.DrainDirty, and adjusts the cached list.
func (q *Query[T]) Update(dirty []Entity) {
	if !q.resolve() {
		return
	}
	changed := false
	for _, e := range dirty {
		i, found := slices.BinarySearchFunc(q.entities, e.Index(), func(c Entity, index uint32) int {
			return int(c.Index()) - int(index)
		})
		match := q.matches(e)
		switch {
		case found && match:
			if q.entities[i].id != e.id {
				q.entities[i] = e
				changed = true
			}
		case found && !match:
			if q.entities[i].id == e.id || !q.entities[i].Valid() {
				q.entities = slices.Delete(q.entities, i, i+1)
				changed = true
			}
		case !found && match:
			q.entities = slices.Insert(q.entities, i, e)
			changed = true
		}
	}
	if changed {
		q.version++
	}
}

// Version changes whenever the set of matching entities changes.
func (q *Query[T]) Version() uint64 {
	return q.version
}

// Len returns the number of matching entities as of the last refresh.
func (q *Query[T]) Len() int {
	return len(q.entities)
}

// Entities returns the matching entities in ascending index order. The slice is
// owned by the query and valid until the next refresh.
func (q *Query[T]) Entities() []Entity {
	return q.entities
}

// populate points result's fields at e's components. Components are resolved
// at this point rather than cached, so an entity that lost a required component
// since the last refresh is reported as not matching.
func (q *Query[T]) populate(resultPtr unsafe.Pointer, e Entity) bool {
	rec, err := q.storage.record(e)
	if err != nil {
		return false
	}
	for _, f := range q.fields {
		fieldPtr := unsafe.Pointer(uintptr(resultPtr) + f.offset)

		var component any
		if f.known && rec.mask.Has(f.id) {
			slot, _ := rec.slotOf(f.id)
			component = q.storage.pool(f.id).Get(slot)
		}
		if component == nil {
			if !f.optional {
				return false
			}
			*(*unsafe.Pointer)(fieldPtr) = nil
			continue
		}

		componentPtr := (*iface)(unsafe.Pointer(&component)).data
		*(*unsafe.Pointer)(fieldPtr) = componentPtr
	}
	return true
}

// Get returns a populated view struct for e, or nil if e lacks a required component.
func (q *Query[T]) Get(e Entity) *T {
	q.resolve()
	var result T
	if !q.populate(unsafe.Pointer(&result), e) {
		return nil
	}
	return &result
}

// Iter returns an iterator over the matching entities and their component views
// in ascending entity index order.
func (q *Query[T]) Iter() iter.Seq2[Entity, T] {
	q.resolve()
	entities := q.entities
	return func(yield func(Entity, T) bool) {
		var result T
		resultPtr := unsafe.Pointer(&result)
		for _, e := range entities {
			if !q.populate(resultPtr, e) {
				continue
			}
			if !yield(e, result) {
				return
			}
		}
	}
}

// Values returns an iterator over component data only.
func (q *Query[T]) Values() iter.Seq[T] {
	return func(yield func(T) bool) {
		for _, value := range q.Iter() {
			if !yield(value) {
				return
			}
		}
	}
}

// iface mirrors the runtime layout of a non-empty interface value so populate can
// lift the data pointer out of a type-erased component.
type iface struct {
	typ  unsafe.Pointer
	data unsafe.Pointer
}
