package ecs

import "fmt"

// EntityId encodes both the slot generation (upper 32 bits) and the slot index (lower 32 bits)
type EntityId uint64

// NewEntityId creates an EntityId from a slot index and generation
func NewEntityId(index uint32, generation uint32) EntityId {
	return EntityId(uint64(generation)<<32 | uint64(index))
}

// Generation extracts the slot generation from the entity ID
func (e EntityId) Generation() uint32 {
	return uint32(e >> 32)
}

// Index extracts the slot index from the entity ID
func (e EntityId) Index() uint32 {
	return uint32(e & 0xFFFFFFFF)
}

// Entity is a lightweight handle to a row in a Storage. It is passed by value and
// owns nothing; every mutating call is forwarded to the storage it came from.
// The zero Entity is never valid.
type Entity struct {
	storage *Storage
	id      EntityId
}

func (e Entity) Id() EntityId       { return e.id }
func (e Entity) Index() uint32      { return e.id.Index() }
func (e Entity) Generation() uint32 { return e.id.Generation() }
func (e Entity) Storage() *Storage  { return e.storage }

// Valid reports whether the handle still refers to a live entity.
func (e Entity) Valid() bool {
	return e.storage != nil && e.storage.Alive(e)
}

// Name returns the display name, or "" for a stale handle.
func (e Entity) Name() string {
	if e.storage == nil {
		return ""
	}
	return e.storage.Name(e)
}

func (e Entity) SetName(name string) error {
	if e.storage == nil {
		return ErrStaleHandle
	}
	return e.storage.SetName(e, name)
}

func (e Entity) Mask() Mask {
	if e.storage == nil {
		return 0
	}
	return e.storage.Mask(e)
}

func (e Entity) MarkDirty() {
	if e.storage != nil {
		e.storage.MarkDirty(e)
	}
}

func (e Entity) Destroy() error {
	if e.storage == nil {
		return ErrStaleHandle
	}
	return e.storage.Destroy(e)
}

func (e Entity) String() string {
	return fmt.Sprintf("entity(%d:%d)", e.id.Index(), e.id.Generation())
}

// componentSlot links a component type to the pool slot holding the entity's instance.
type componentSlot struct {
	id   ComponentId
	slot int32
}

const noScripts int32 = -1

// entityRecord is the per-slot bookkeeping kept by Storage.
type entityRecord struct {
	generation uint32
	alive      bool
	destroying bool
	mask       Mask
	components []componentSlot
	scripts    int32
	name       string
}

func (r *entityRecord) slotOf(id ComponentId) (int32, bool) {
	for _, c := range r.components {
		if c.id == id {
			return c.slot, true
		}
	}
	return 0, false
}

func (r *entityRecord) reset() {
	r.alive = false
	r.destroying = false
	r.mask = 0
	r.components = r.components[:0]
	r.scripts = noScripts
	r.name = ""
}
