package ecs

import (
	"iter"
	"reflect"
	"slices"
	"strconv"

	"github.com/kamstrup/intmap"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Storage is the entity registry. It owns the entity table, one pool per component
// type, the script groups and the dirty set consumed by queries.
// Storage is not safe for concurrent use; hand work to its goroutine through an Inbox.
type Storage struct {
	registry   *ComponentRegistry
	pools      []iComponentStorage
	entities   []entityRecord
	freeList   []uint32
	live       int
	dirty      *intmap.Map[EntityId, struct{}]
	dirtyList  []Entity
	scripts    *ScriptManager
	singletons map[reflect.Type]*singletonEntry
	log        *zap.Logger
}

// Option configures a Storage.
type Option func(*Storage)

// WithLogger sets the logger used for lookup misses and entity lifecycle events.
func WithLogger(log *zap.Logger) Option {
	return func(s *Storage) {
		if log != nil {
			s.log = log
		}
	}
}

// WithInitialCapacity preallocates room for n entity records.
func WithInitialCapacity(n int) Option {
	return func(s *Storage) {
		if n > 0 {
			s.entities = make([]entityRecord, 0, n)
		}
	}
}

// NewStorage creates a new ECS storage system with the given component registry
func NewStorage(registry *ComponentRegistry, opts ...Option) *Storage {
	s := &Storage{
		registry:   registry,
		dirty:      intmap.New[EntityId, struct{}](256),
		singletons: make(map[reflect.Type]*singletonEntry),
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.scripts = newScriptManager(s.log)
	return s
}

func (s *Storage) Registry() *ComponentRegistry { return s.registry }
func (s *Storage) Scripts() *ScriptManager      { return s.scripts }
func (s *Storage) Logger() *zap.Logger          { return s.log }

// CreateEntity reuses a free slot if one exists, otherwise appends a new one.
// An empty name is replaced by "entity_<index>".
func (s *Storage) CreateEntity(name string) Entity {
	var index uint32
	if len(s.freeList) > 0 {
		index = s.freeList[len(s.freeList)-1]
		s.freeList = s.freeList[:len(s.freeList)-1]
	} else {
		index = uint32(len(s.entities))
		s.entities = append(s.entities, entityRecord{scripts: noScripts})
	}

	rec := &s.entities[index]
	rec.alive = true
	rec.mask = 0
	if name == "" {
		name = "entity_" + strconv.FormatUint(uint64(index), 10)
	}
	rec.name = name
	s.live++

	e := Entity{storage: s, id: NewEntityId(index, rec.generation)}
	s.log.Debug("created entity", zap.String("name", name), zap.Stringer("entity", e))
	return e
}

// Spawn creates an unnamed entity holding copies of the given components, which
// must be of registered types. Components that cannot be attached are logged
// and skipped.
func (s *Storage) Spawn(components ...any) Entity {
	e := s.CreateEntity("")
	for _, c := range components {
		if _, err := s.AddComponentValue(e, c); err != nil {
			s.log.Warn("spawn component failed", zap.Stringer("entity", e), zap.Error(err))
		}
	}
	return e
}

// Entity wraps a raw id into a handle bound to this storage. The handle is not
// checked; operations on it fail with ErrStaleHandle if the slot has moved on.
func (s *Storage) Entity(id EntityId) Entity {
	return Entity{storage: s, id: id}
}

func (s *Storage) record(e Entity) (*entityRecord, error) {
	if e.storage != s {
		return nil, eris.Wrapf(ErrStaleHandle, "%s belongs to another storage", e)
	}
	index := e.id.Index()
	if int(index) >= len(s.entities) {
		return nil, eris.Wrapf(ErrStaleHandle, "%s was never created", e)
	}
	rec := &s.entities[index]
	if !rec.alive || rec.generation != e.id.Generation() {
		return nil, eris.Wrapf(ErrStaleHandle, "%s was destroyed", e)
	}
	return rec, nil
}

// Alive reports whether e refers to a live entity of this storage.
func (s *Storage) Alive(e Entity) bool {
	_, err := s.record(e)
	return err == nil
}

// Len returns the number of live entities.
func (s *Storage) Len() int {
	return s.live
}

// Destroy runs the Destroyed callbacks of e's scripts, then releases its
// components and frees its slot. Callbacks still see the components; a nested
// Destroy of the same entity fails with ErrStaleHandle. The slot generation is
// bumped so outstanding handles become stale.
func (s *Storage) Destroy(e Entity) error {
	rec, err := s.record(e)
	if err != nil {
		return err
	}
	if rec.destroying {
		return eris.Wrapf(ErrStaleHandle, "%s is being destroyed", e)
	}
	rec.destroying = true
	s.log.Debug("destroyed entity", zap.String("name", rec.name), zap.Stringer("entity", e))

	s.scripts.releaseGroup(rec.scripts)

	// callbacks may have grown the entity table
	index := e.id.Index()
	rec = &s.entities[index]
	for _, c := range rec.components {
		s.pool(c.id).Release(c.slot)
	}
	if len(rec.components) > 0 {
		s.MarkDirty(e)
	}

	rec.reset()
	rec.generation++
	s.freeList = append(s.freeList, index)
	s.live--
	return nil
}

// pool returns the pool for id, creating it from the registry on first use.
func (s *Storage) pool(id ComponentId) iComponentStorage {
	if int(id) < len(s.pools) && s.pools[id] != nil {
		return s.pools[id]
	}
	for len(s.pools) <= int(id) {
		s.pools = append(s.pools, nil)
	}
	s.pools[id] = s.registry.factories[id]()
	return s.pools[id]
}

// allocate attaches a fresh slot of component id to rec. It returns false if the
// entity already owned the component.
func (s *Storage) allocate(e Entity, rec *entityRecord, id ComponentId) (int32, bool, error) {
	if rec.mask.Has(id) {
		slot, _ := rec.slotOf(id)
		return slot, false, nil
	}
	slot, err := s.pool(id).Allocate()
	if err != nil {
		return -1, false, err
	}
	rec.mask = rec.mask.With(id)
	rec.components = append(rec.components, componentSlot{id: id, slot: slot})
	s.MarkDirty(e)
	return slot, true, nil
}

// AllocateSlot reserves a zeroed instance in the pool of id without attaching it
// to any entity. The caller fills the returned pointer and later hands the slot
// back with ReleaseSlot.
func (s *Storage) AllocateSlot(id ComponentId) (any, int32, error) {
	if int(id) >= s.registry.Len() {
		return nil, -1, eris.Wrapf(ErrNotRegistered, "component id %d", id)
	}
	pool := s.pool(id)
	slot, err := pool.Allocate()
	if err != nil {
		return nil, -1, err
	}
	return pool.Get(slot), slot, nil
}

// ReleaseSlot returns a slot obtained from AllocateSlot. Releasing a slot twice,
// or one that an entity still references, corrupts that entity.
func (s *Storage) ReleaseSlot(id ComponentId, slot int32) {
	if int(id) >= s.registry.Len() {
		return
	}
	s.pool(id).Release(slot)
}

// Slot returns the instance held in a pool slot, or nil if it is free.
func (s *Storage) Slot(id ComponentId, slot int32) any {
	if int(id) >= s.registry.Len() {
		return nil
	}
	return s.pool(id).Get(slot)
}

// AddComponentById attaches a zero-valued component of the given id and returns a
// pointer to it. If the entity already owns it, the existing instance is returned.
func (s *Storage) AddComponentById(e Entity, id ComponentId) (any, error) {
	if int(id) >= s.registry.Len() {
		return nil, eris.Wrapf(ErrNotRegistered, "component id %d", id)
	}
	rec, err := s.record(e)
	if err != nil {
		return nil, err
	}
	slot, _, err := s.allocate(e, rec, id)
	if err != nil {
		return nil, err
	}
	return s.pool(id).Get(slot), nil
}

// AddComponentValue attaches a copy of value (a T or *T of a registered type).
// If the entity already owns that type, the existing instance is returned unchanged.
func (s *Storage) AddComponentValue(e Entity, value any) (any, error) {
	t := componentType(value)
	id, ok := s.registry.IdOf(t)
	if !ok {
		return nil, eris.Wrapf(ErrNotRegistered, "%s", t)
	}
	rec, err := s.record(e)
	if err != nil {
		return nil, err
	}
	slot, created, err := s.allocate(e, rec, id)
	if err != nil {
		return nil, err
	}
	pool := s.pool(id)
	if created {
		pool.Set(slot, value)
	}
	return pool.Get(slot), nil
}

// RemoveComponentById detaches component id from e. Removing a component the
// entity does not own changes nothing.
func (s *Storage) RemoveComponentById(e Entity, id ComponentId) error {
	rec, err := s.record(e)
	if err != nil {
		return err
	}
	if !rec.mask.Has(id) {
		return nil
	}

	slot, _ := rec.slotOf(id)
	s.pool(id).Release(slot)
	rec.mask = rec.mask.Without(id)
	rec.components = slices.DeleteFunc(rec.components, func(c componentSlot) bool {
		return c.id == id
	})
	s.MarkDirty(e)
	return nil
}

// RemoveComponentByType is RemoveComponentById keyed by reflect.Type.
func (s *Storage) RemoveComponentByType(e Entity, t reflect.Type) error {
	id, ok := s.registry.IdOf(t)
	if !ok {
		return nil
	}
	return s.RemoveComponentById(e, id)
}

// ComponentById returns a pointer to e's component id, or nil with a logged warning.
func (s *Storage) ComponentById(e Entity, id ComponentId) any {
	rec, err := s.record(e)
	if err != nil {
		s.log.Warn("component lookup on stale handle", zap.Stringer("entity", e))
		return nil
	}
	if !rec.mask.Has(id) {
		s.log.Warn("entity doesn't have component",
			zap.String("name", rec.name),
			zap.Stringer("component", s.registry.Type(id)))
		return nil
	}
	slot, _ := rec.slotOf(id)
	return s.pool(id).Get(slot)
}

// GetComponent returns the component for the given entity ID and component type
func (s *Storage) GetComponent(id EntityId, compType reflect.Type) any {
	cid, ok := s.registry.IdOf(compType)
	if !ok {
		return nil
	}
	rec, err := s.record(s.Entity(id))
	if err != nil || !rec.mask.Has(cid) {
		return nil
	}
	slot, _ := rec.slotOf(cid)
	return s.pool(cid).Get(slot)
}

// HasComponent checks if an entity has a specific component type
func (s *Storage) HasComponent(id EntityId, compType reflect.Type) bool {
	cid, ok := s.registry.IdOf(compType)
	if !ok {
		return false
	}
	rec, err := s.record(s.Entity(id))
	return err == nil && rec.mask.Has(cid)
}

// ComponentTypes lists the types owned by e in attachment order.
func (s *Storage) ComponentTypes(e Entity) []reflect.Type {
	rec, err := s.record(e)
	if err != nil {
		return nil
	}
	types := make([]reflect.Type, 0, len(rec.components))
	for _, c := range rec.components {
		types = append(types, s.registry.Type(c.id))
	}
	return types
}

// Mask returns the component mask of e; a stale handle has an empty mask.
func (s *Storage) Mask(e Entity) Mask {
	rec, err := s.record(e)
	if err != nil {
		return 0
	}
	return rec.mask
}

// MarkDirty queues e for re-matching at the next query refresh. Marking twice is a no-op.
func (s *Storage) MarkDirty(e Entity) {
	if _, ok := s.dirty.Get(e.id); ok {
		return
	}
	s.dirty.Put(e.id, struct{}{})
	s.dirtyList = append(s.dirtyList, e)
}

// DrainDirty returns every entity marked since the previous drain, in ascending
// index order, and clears the set. It returns false when nothing is pending.
func (s *Storage) DrainDirty() ([]Entity, bool) {
	if len(s.dirtyList) == 0 {
		return nil, false
	}
	drained := s.dirtyList
	s.dirtyList = nil
	s.dirty.Clear()

	slices.SortFunc(drained, func(a, b Entity) int {
		if a.id.Index() != b.id.Index() {
			return int(a.id.Index()) - int(b.id.Index())
		}
		return int(a.id.Generation()) - int(b.id.Generation())
	})
	return drained, true
}

// DirtyLen returns the number of entities waiting to be drained.
func (s *Storage) DirtyLen() int {
	return len(s.dirtyList)
}

// Name returns the display name of e, or "" for a stale handle.
func (s *Storage) Name(e Entity) string {
	rec, err := s.record(e)
	if err != nil {
		return ""
	}
	return rec.name
}

func (s *Storage) SetName(e Entity, name string) error {
	rec, err := s.record(e)
	if err != nil {
		return err
	}
	rec.name = name
	return nil
}

// LookupByName scans for the first live entity with the given name. It is a
// convenience for tools and setup code, not for per-tick use.
func (s *Storage) LookupByName(name string) (Entity, bool) {
	for i := range s.entities {
		rec := &s.entities[i]
		if rec.alive && rec.name == name {
			return Entity{storage: s, id: NewEntityId(uint32(i), rec.generation)}, true
		}
	}
	s.log.Warn("didn't find entity", zap.String("name", name))
	return Entity{}, false
}

// Entities iterates live entities in ascending index order.
func (s *Storage) Entities() iter.Seq[Entity] {
	return func(yield func(Entity) bool) {
		for i := range s.entities {
			rec := &s.entities[i]
			if !rec.alive {
				continue
			}
			if !yield(Entity{storage: s, id: NewEntityId(uint32(i), rec.generation)}) {
				return
			}
		}
	}
}

func componentType(value any) reflect.Type {
	t := reflect.TypeOf(value)
	if t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

type ComponentReader interface {
	GetComponent(EntityId, reflect.Type) any
}

// ReadComponent returns the T owned by entityId, or nil.
func ReadComponent[T any](reader ComponentReader, entityId EntityId) *T {
	c, _ := reader.GetComponent(entityId, reflect.TypeFor[T]()).(*T)
	return c
}
