package ecs

import (
	"iter"
	"math/bits"
	"reflect"

	"github.com/rotisserie/eris"
)

// ComponentId is the small integer a ComponentRegistry assigns to a component type.
// It doubles as the component's bit index in a Mask.
type ComponentId uint8

// ComponentRegistry maps component types to stable ids. Each Storage built from the
// registry owns its own pools, so several independent worlds can share one registry.
type ComponentRegistry struct {
	ids          map[reflect.Type]ComponentId
	names        map[string]ComponentId
	types        []reflect.Type
	factories    []func() iComponentStorage
	poolCapacity int
}

// RegistryOption configures a ComponentRegistry.
type RegistryOption func(*ComponentRegistry)

// WithPoolCapacity caps the number of live slots in every pool. Zero means unbounded.
func WithPoolCapacity(n int) RegistryOption {
	return func(r *ComponentRegistry) {
		r.poolCapacity = n
	}
}

// NewComponentRegistry creates a new component registry.
func NewComponentRegistry(opts ...RegistryOption) *ComponentRegistry {
	r := &ComponentRegistry{
		ids:   make(map[reflect.Type]ComponentId),
		names: make(map[string]ComponentId),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RegisterComponent registers T and returns its id. Registering the same type again
// returns the id it was given the first time.
func RegisterComponent[T any](r *ComponentRegistry) (ComponentId, error) {
	t := reflect.TypeFor[T]()
	if id, ok := r.ids[t]; ok {
		return id, nil
	}
	if len(r.types) >= MaxComponentTypes {
		return 0, eris.Wrapf(ErrComponentLimit, "register %s", t)
	}

	id := ComponentId(len(r.types))
	capacity := r.poolCapacity
	r.ids[t] = id
	r.names[t.String()] = id
	r.types = append(r.types, t)
	r.factories = append(r.factories, func() iComponentStorage {
		return &genericComponentStorage[T]{capacity: capacity}
	})
	return id, nil
}

// MustRegisterComponent is RegisterComponent for startup code: overflowing the
// registry is a configuration error and panics.
func MustRegisterComponent[T any](r *ComponentRegistry) ComponentId {
	id, err := RegisterComponent[T](r)
	if err != nil {
		panic(err)
	}
	return id
}

// ComponentIdOf returns the id of T if it has been registered.
func ComponentIdOf[T any](r *ComponentRegistry) (ComponentId, bool) {
	id, ok := r.ids[reflect.TypeFor[T]()]
	return id, ok
}

// IdOf returns the id registered for t.
func (r *ComponentRegistry) IdOf(t reflect.Type) (ComponentId, bool) {
	id, ok := r.ids[t]
	return id, ok
}

// IdByName resolves a type name as produced by reflect.Type.String.
func (r *ComponentRegistry) IdByName(name string) (ComponentId, bool) {
	id, ok := r.names[name]
	return id, ok
}

// Type returns the component type registered under id, or nil.
func (r *ComponentRegistry) Type(id ComponentId) reflect.Type {
	if int(id) >= len(r.types) {
		return nil
	}
	return r.types[id]
}

// Len returns the number of registered component types.
func (r *ComponentRegistry) Len() int {
	return len(r.types)
}

const (
	genericBlockSize = 64
)

// genericComponentStorage is a generic implementation of iComponentStorage.
// It stores components of a specific type `T` in fixed blocks held by pointer, so
// growing the pool never moves an existing instance.
type genericComponentStorage[T any] struct {
	blocks    []*[genericBlockSize]T
	filled    []uint64
	freeSlots []int32
	nextIndex int32
	count     int
	capacity  int
}

// Allocate reserves a zeroed slot and returns its index.
func (cs *genericComponentStorage[T]) Allocate() (int32, error) {
	if cs.capacity > 0 && cs.count >= cs.capacity {
		return -1, eris.Wrapf(ErrPoolExhausted, "%s pool holds %d", cs.Type(), cs.count)
	}

	var index int32
	if len(cs.freeSlots) > 0 {
		index = cs.freeSlots[len(cs.freeSlots)-1]
		cs.freeSlots = cs.freeSlots[:len(cs.freeSlots)-1]
	} else {
		index = cs.nextIndex
		cs.nextIndex++
	}

	blockIdx := index / genericBlockSize
	slotIdx := index % genericBlockSize

	if int(blockIdx) >= len(cs.blocks) {
		cs.blocks = append(cs.blocks, new([genericBlockSize]T))
		cs.filled = append(cs.filled, 0)
	}

	cs.filled[blockIdx] |= 1 << slotIdx
	cs.count++
	return index, nil
}

// Release zeroes the slot and returns it to the free list.
func (cs *genericComponentStorage[T]) Release(slot int32) {
	if !cs.Has(slot) {
		return
	}

	blockIdx := slot / genericBlockSize
	slotIdx := slot % genericBlockSize

	var zero T
	cs.blocks[blockIdx][slotIdx] = zero
	cs.filled[blockIdx] &^= 1 << slotIdx
	cs.freeSlots = append(cs.freeSlots, slot)
	cs.count--
}

// Get returns a pointer to the component at the given slot.
func (cs *genericComponentStorage[T]) Get(slot int32) any {
	if p := cs.at(slot); p != nil {
		return p
	}
	return nil
}

func (cs *genericComponentStorage[T]) at(slot int32) *T {
	if !cs.Has(slot) {
		return nil
	}
	return &cs.blocks[slot/genericBlockSize][slot%genericBlockSize]
}

// Set copies item (a T or *T) into an allocated slot.
func (cs *genericComponentStorage[T]) Set(slot int32, item any) bool {
	p := cs.at(slot)
	if p == nil {
		return false
	}
	switch v := item.(type) {
	case *T:
		*p = *v
	case T:
		*p = v
	default:
		return false
	}
	return true
}

// Has checks if a component exists at the given slot.
func (cs *genericComponentStorage[T]) Has(slot int32) bool {
	if slot < 0 {
		return false
	}
	blockIdx := slot / genericBlockSize
	if int(blockIdx) >= len(cs.filled) {
		return false
	}
	return cs.filled[blockIdx]&(1<<(slot%genericBlockSize)) != 0
}

func (cs *genericComponentStorage[T]) Len() int {
	return cs.count
}

func (cs *genericComponentStorage[T]) Type() reflect.Type {
	return reflect.TypeFor[T]()
}

// Iter yields every occupied slot in ascending order.
func (cs *genericComponentStorage[T]) Iter() iter.Seq[int32] {
	return func(yield func(int32) bool) {
		for blockIdx, word := range cs.filled {
			for ; word != 0; word &= word - 1 {
				slot := int32(blockIdx*genericBlockSize + bits.TrailingZeros64(word))
				if !yield(slot) {
					return
				}
			}
		}
	}
}
