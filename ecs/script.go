package ecs

import (
	"reflect"
	"slices"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Script is a behaviour object attached to an entity. Implementations embed
// ScriptBase and opt into callbacks by implementing Initializer, Updater,
// InputHandler or Destroyer.
type Script interface {
	scriptBase() *ScriptBase
}

// Initializer is called once, before the script's first Update.
type Initializer interface {
	Init()
}

// Updater is called once per tick while the script is active.
type Updater interface {
	Update(dt float64)
}

// InputHandler receives input events while the script is active.
type InputHandler interface {
	HandleInput(ev InputEvent)
}

// Destroyer is called when the script leaves its entity, either by removal or
// because the entity was destroyed.
type Destroyer interface {
	Destroyed()
}

// ScriptBase carries the state every script shares. Embed it by value.
type ScriptBase struct {
	entity      Entity
	inactive    bool
	initialized bool
	doomed      bool
}

func (b *ScriptBase) scriptBase() *ScriptBase { return b }

// Entity returns the entity the script is attached to.
func (b *ScriptBase) Entity() Entity { return b.entity }

// Active reports whether the script currently receives callbacks.
func (b *ScriptBase) Active() bool { return !b.inactive }

// Remove asks for the script to be detached. It is safe to call from inside a
// callback; the removal happens after the current dispatch finishes.
func (b *ScriptBase) Remove() {
	b.doomed = true
	if s := b.entity.storage; s != nil {
		s.scripts.pendingSweep = true
	}
}

// InputKind enumerates the input events scripts can receive.
type InputKind uint8

const (
	MouseLeftPress InputKind = iota
	MouseLeftRelease
	MouseRightPress
	MouseRightRelease
	MouseMove
	KeyPress
)

var inputKindNames = [...]string{
	MouseLeftPress:    "mouse_left_press",
	MouseLeftRelease:  "mouse_left_release",
	MouseRightPress:   "mouse_right_press",
	MouseRightRelease: "mouse_right_release",
	MouseMove:         "mouse_move",
	KeyPress:          "key_press",
}

func (k InputKind) String() string {
	if int(k) < len(inputKindNames) {
		return inputKindNames[k]
	}
	return "unknown"
}

// InputEvent is a window-system independent input notification.
type InputEvent struct {
	Kind InputKind
	X, Y float64
	Key  rune
}

// ScriptManager owns the per-entity script groups. Groups are addressed by an
// index stored on the entity record and recycled through a free list.
type ScriptManager struct {
	groups       [][]Script
	freeGroups   []int32
	dispatching  int
	pendingSweep bool
	log          *zap.Logger
}

func newScriptManager(log *zap.Logger) *ScriptManager {
	return &ScriptManager{log: log}
}

func (m *ScriptManager) addScript(group *int32, script Script) {
	if *group == noScripts {
		if n := len(m.freeGroups); n > 0 {
			*group = m.freeGroups[n-1]
			m.freeGroups = m.freeGroups[:n-1]
		} else {
			*group = int32(len(m.groups))
			m.groups = append(m.groups, nil)
		}
	}
	m.groups[*group] = append(m.groups[*group], script)
}

func (m *ScriptManager) group(index int32) []Script {
	if index == noScripts || int(index) >= len(m.groups) {
		return nil
	}
	return m.groups[index]
}

// releaseGroup detaches every script of a group and recycles the group index at
// once. A dispatch in progress skips the detached scripts because they are doomed.
func (m *ScriptManager) releaseGroup(index int32) {
	if index == noScripts {
		return
	}
	scripts := m.groups[index]
	for _, sc := range scripts {
		m.detach(sc)
	}
	m.groups[index] = nil
	m.freeGroups = append(m.freeGroups, index)
}

func (m *ScriptManager) detach(sc Script) {
	b := sc.scriptBase()
	b.doomed = true
	if d, ok := sc.(Destroyer); ok {
		d.Destroyed()
	}
	b.entity = Entity{}
}

// Len returns the number of attached scripts across all groups.
func (m *ScriptManager) Len() int {
	n := 0
	for _, g := range m.groups {
		n += len(g)
	}
	return n
}

// each calls fn for every active, attached script. Structural changes made by fn
// are deferred to sweep.
func (m *ScriptManager) each(fn func(Script)) {
	m.dispatching++
	defer func() { m.dispatching-- }()

	for gi := 0; gi < len(m.groups); gi++ {
		group := m.groups[gi]
		for i := 0; i < len(group); i++ {
			sc := group[i]
			b := sc.scriptBase()
			if b.doomed || b.inactive {
				continue
			}
			fn(sc)
		}
	}
}

// Update initializes scripts that have not run yet and then updates every
// active script.
func (m *ScriptManager) Update(dt float64) {
	m.each(func(sc Script) {
		b := sc.scriptBase()
		if !b.initialized {
			b.initialized = true
			if in, ok := sc.(Initializer); ok {
				in.Init()
			}
			if b.doomed {
				return
			}
		}
		if u, ok := sc.(Updater); ok {
			u.Update(dt)
		}
	})
	m.Sweep()
}

// Dispatch delivers ev to every active script implementing InputHandler.
func (m *ScriptManager) Dispatch(ev InputEvent) {
	m.each(func(sc Script) {
		if h, ok := sc.(InputHandler); ok {
			h.HandleInput(ev)
		}
	})
	m.Sweep()
}

// Sweep drops scripts whose removal was requested. It does nothing while a
// dispatch is in progress.
func (m *ScriptManager) Sweep() {
	if m.dispatching > 0 || !m.pendingSweep {
		return
	}
	m.pendingSweep = false
	var detached []Script
	for gi, group := range m.groups {
		if len(group) == 0 {
			continue
		}
		m.groups[gi] = slices.DeleteFunc(group, func(sc Script) bool {
			b := sc.scriptBase()
			if !b.doomed {
				return false
			}
			if b.entity.storage != nil {
				detached = append(detached, sc)
			}
			return true
		})
	}
	// Destroyed callbacks may destroy entities and release groups, so they run
	// once every group is compacted.
	for _, sc := range detached {
		m.detach(sc)
	}
}

// AddScript attaches script to e, creating the entity's script group if needed.
func AddScript(e Entity, script Script) error {
	s := e.storage
	if s == nil {
		return ErrStaleHandle
	}
	rec, err := s.record(e)
	if err != nil {
		return err
	}
	if rec.destroying {
		return eris.Wrapf(ErrStaleHandle, "%s is being destroyed", e)
	}
	b := script.scriptBase()
	b.entity = e
	b.doomed = false
	s.scripts.addScript(&rec.scripts, script)
	return nil
}

// GetScript returns the first script of type T attached to e.
func GetScript[T Script](e Entity) (T, bool) {
	var zero T
	s := e.storage
	if s == nil {
		return zero, false
	}
	rec, err := s.record(e)
	if err != nil {
		s.log.Warn("script lookup on stale handle", zap.Stringer("entity", e))
		return zero, false
	}
	for _, sc := range s.scripts.group(rec.scripts) {
		if t, ok := sc.(T); ok && !sc.scriptBase().doomed {
			return t, true
		}
	}
	s.log.Warn("entity doesn't have script attached",
		zap.String("name", rec.name),
		zap.Stringer("script", reflect.TypeFor[T]()))
	return zero, false
}

// RemoveScript detaches the first script of type T from e. Inside a callback the
// removal is deferred until the dispatch ends.
func RemoveScript[T Script](e Entity) {
	s := e.storage
	if s == nil {
		return
	}
	rec, err := s.record(e)
	if err != nil {
		return
	}
	for _, sc := range s.scripts.group(rec.scripts) {
		if _, ok := sc.(T); ok && !sc.scriptBase().doomed {
			sc.scriptBase().Remove()
			break
		}
	}
	s.scripts.Sweep()
}

// SetScriptActive toggles callbacks for every script of type T on e.
func SetScriptActive[T Script](e Entity, active bool) {
	s := e.storage
	if s == nil {
		return
	}
	rec, err := s.record(e)
	if err != nil {
		return
	}
	for _, sc := range s.scripts.group(rec.scripts) {
		if _, ok := sc.(T); ok {
			sc.scriptBase().inactive = !active
		}
	}
}

// Scripts returns the scripts attached to e in attachment order.
func Scripts(e Entity) []Script {
	if e.storage == nil {
		return nil
	}
	rec, err := e.storage.record(e)
	if err != nil {
		return nil
	}
	return slices.Clone(e.storage.scripts.group(rec.scripts))
}
