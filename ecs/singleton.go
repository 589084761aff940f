package ecs

import "reflect"

// singletonEntry holds a *T for the singleton of type T. The pointer is fixed for
// the lifetime of the storage; replacing the value copies into it.
type singletonEntry struct {
	ptr reflect.Value
}

func (e *singletonEntry) value() any { return e.ptr.Interface() }

// AddSingleton stores value (a T or *T) as the storage-wide instance of its type.
// Adding a type that already exists overwrites the stored value in place, so
// outstanding Singleton accessors keep pointing at live data.
func (s *Storage) AddSingleton(value any) {
	t := componentType(value)
	src := reflect.ValueOf(value)
	if src.Kind() == reflect.Ptr {
		src = src.Elem()
	}

	if entry, ok := s.singletons[t]; ok {
		entry.ptr.Elem().Set(src)
		return
	}
	ptr := reflect.New(t)
	ptr.Elem().Set(src)
	s.singletons[t] = &singletonEntry{ptr: ptr}
}

// GetSingleton returns a pointer to the singleton of type t, or nil.
func (s *Storage) GetSingleton(t reflect.Type) any {
	if entry, ok := s.singletons[t]; ok {
		return entry.value()
	}
	return nil
}

// ReadSingleton stores the singleton matching out's element type into out, which
// must be a **T. It reports whether the singleton exists.
func (s *Storage) ReadSingleton(out any) bool {
	v := reflect.ValueOf(out)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Ptr {
		return false
	}
	entry, ok := s.singletons[v.Elem().Type().Elem()]
	if !ok {
		return false
	}
	v.Elem().Set(entry.ptr)
	return true
}

// Singleton is a typed accessor for one storage-wide value, such as world
// settings or gravity, that belongs to no entity. A Singleton field on a system
// is bound by Scheduler.Register; the value itself may be added later.
type Singleton[T any] struct {
	storage *Storage
	ptr     *T
}

// NewSingleton returns an accessor for T, creating the singleton from initializer
// (or the zero value) if the storage does not hold one yet.
func NewSingleton[T any](storage *Storage, initializer ...T) *Singleton[T] {
	if _, ok := storage.singletons[reflect.TypeFor[T]()]; !ok {
		var value T
		if len(initializer) > 0 {
			value = initializer[0]
		}
		storage.AddSingleton(&value)
	}
	s := &Singleton[T]{}
	s.Init(storage)
	return s
}

// Init binds the accessor to storage.
func (s *Singleton[T]) Init(storage *Storage) {
	s.storage = storage
	s.ptr = nil
	s.resolve()
}

func (s *Singleton[T]) resolve() {
	if s.ptr != nil || s.storage == nil {
		return
	}
	if p, ok := s.storage.GetSingleton(reflect.TypeFor[T]()).(*T); ok {
		s.ptr = p
	}
}

// Get returns the singleton, or nil if it has not been added.
func (s *Singleton[T]) Get() *T {
	s.resolve()
	return s.ptr
}

// Exists reports whether the singleton has been added to the storage.
func (s *Singleton[T]) Exists() bool {
	return s.Get() != nil
}
