package ecs

import (
	"iter"
	"reflect"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// AddComponent attaches a copy of value to e and returns a pointer to the stored
// instance. T is registered on first use. If e already owns a T, the existing
// instance is returned unchanged and value is ignored.
func AddComponent[T any](e Entity, value T) (*T, error) {
	s := e.storage
	if s == nil {
		return nil, ErrStaleHandle
	}
	id, err := RegisterComponent[T](s.registry)
	if err != nil {
		return nil, err
	}
	rec, err := s.record(e)
	if err != nil {
		return nil, err
	}
	slot, created, err := s.allocate(e, rec, id)
	if err != nil {
		return nil, eris.Wrapf(err, "add %s to %q", reflect.TypeFor[T](), rec.name)
	}
	p := typedPool[T](s, id).at(slot)
	if created {
		*p = value
	}
	return p, nil
}

// TryGetComponent returns e's T, ErrComponentNotFound if it has none, or
// ErrStaleHandle if e is no longer live.
func TryGetComponent[T any](e Entity) (*T, error) {
	s := e.storage
	if s == nil {
		return nil, ErrStaleHandle
	}
	rec, err := s.record(e)
	if err != nil {
		return nil, err
	}
	id, ok := ComponentIdOf[T](s.registry)
	if !ok || !rec.mask.Has(id) {
		return nil, eris.Wrapf(ErrComponentNotFound, "entity %q has no %s", rec.name, reflect.TypeFor[T]())
	}
	slot, _ := rec.slotOf(id)
	c := typedPool[T](s, id).at(slot)
	if c == nil {
		return nil, eris.Wrapf(ErrComponentNotFound, "entity %q has released its %s", rec.name, reflect.TypeFor[T]())
	}
	return c, nil
}

// GetComponent returns e's T. A missing component or stale handle is logged as a
// warning and yields nil.
func GetComponent[T any](e Entity) *T {
	c, err := TryGetComponent[T](e)
	if err != nil {
		if e.storage != nil {
			e.storage.log.Warn("component lookup missed", zap.Stringer("entity", e), zap.Error(err))
		}
		return nil
	}
	return c
}

// MustGetComponent is GetComponent for callers that treat absence as a bug.
func MustGetComponent[T any](e Entity) *T {
	c, err := TryGetComponent[T](e)
	if err != nil {
		panic(err)
	}
	return c
}

// HasComponent reports whether e is live and owns a T.
func HasComponent[T any](e Entity) bool {
	if e.storage == nil {
		return false
	}
	id, ok := ComponentIdOf[T](e.storage.registry)
	return ok && e.storage.Mask(e).Has(id)
}

// RemoveComponent detaches e's T. It is a no-op if e has none.
func RemoveComponent[T any](e Entity) error {
	if e.storage == nil {
		return ErrStaleHandle
	}
	id, ok := ComponentIdOf[T](e.storage.registry)
	if !ok {
		_, err := e.storage.record(e)
		return err
	}
	return e.storage.RemoveComponentById(e, id)
}

func typedPool[T any](s *Storage, id ComponentId) *genericComponentStorage[T] {
	return s.pool(id).(*genericComponentStorage[T])
}

// ComponentRef is a stable reference to one component instance: the owning entity
// plus the pool slot. Resolve it with Get at the point of use instead of caching
// the pointer across structural changes.
type ComponentRef[T any] struct {
	entity Entity
	id     ComponentId
	slot   int32
}

// RefOf returns a reference to e's T.
func RefOf[T any](e Entity) (ComponentRef[T], error) {
	if _, err := TryGetComponent[T](e); err != nil {
		return ComponentRef[T]{}, err
	}
	id, _ := ComponentIdOf[T](e.storage.registry)
	rec, _ := e.storage.record(e)
	slot, _ := rec.slotOf(id)
	return ComponentRef[T]{entity: e, id: id, slot: slot}, nil
}

func (r ComponentRef[T]) Entity() Entity { return r.entity }

// Get resolves the reference, returning nil if the entity died or the component
// was removed (even if the slot has since been reused).
func (r ComponentRef[T]) Get() *T {
	s := r.entity.storage
	if s == nil {
		return nil
	}
	rec, err := s.record(r.entity)
	if err != nil {
		return nil
	}
	if slot, ok := rec.slotOf(r.id); !ok || slot != r.slot {
		return nil
	}
	return typedPool[T](s, r.id).at(r.slot)
}

// Components iterates every live T in the storage in pool slot order, without
// regard to which entity owns it.
func Components[T any](s *Storage) iter.Seq[*T] {
	return func(yield func(*T) bool) {
		id, ok := ComponentIdOf[T](s.registry)
		if !ok {
			return
		}
		pool := typedPool[T](s, id)
		for slot := range pool.Iter() {
			if !yield(pool.at(slot)) {
				return
			}
		}
	}
}
