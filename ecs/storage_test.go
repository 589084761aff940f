package ecs_test

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/plus3/arkecs/ecs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestEntityIdEncoding(t *testing.T) {
	tests := []struct {
		index      uint32
		generation uint32
	}{
		{0, 0},
		{0xFFFFFFFF, 0xFFFFFFFF},
		{1, 0},
		{0, 1},
		{0x12345678, 0x9ABCDEF0},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("index=%d,generation=%d", tt.index, tt.generation), func(t *testing.T) {
			id := ecs.NewEntityId(tt.index, tt.generation)
			assert.Equal(t, tt.index, id.Index())
			assert.Equal(t, tt.generation, id.Generation())
		})
	}
}

func TestCreateEntity(t *testing.T) {
	storage := ecs.NewStorage(newTestRegistry())

	seen := make(map[ecs.EntityId]bool)
	for i := 0; i < 100; i++ {
		e := storage.CreateEntity("")
		assert.False(t, seen[e.Id()], "duplicate id %v", e)
		seen[e.Id()] = true
		assert.Equal(t, uint32(i), e.Index())
		assert.Equal(t, fmt.Sprintf("entity_%d", i), e.Name())
	}
	assert.Equal(t, 100, storage.Len())

	named := storage.CreateEntity("hero")
	assert.Equal(t, "hero", named.Name())
	assert.True(t, named.Valid())
}

func TestSlotReuse(t *testing.T) {
	storage := ecs.NewStorage(newTestRegistry())

	e0 := storage.CreateEntity("")
	e1 := storage.CreateEntity("")
	e2 := storage.CreateEntity("")

	require.NoError(t, e1.Destroy())
	assert.False(t, e1.Valid())
	assert.Equal(t, 2, storage.Len())

	e3 := storage.CreateEntity("")
	assert.Equal(t, uint32(1), e3.Index())
	assert.Equal(t, e1.Generation()+1, e3.Generation())
	assert.Equal(t, "entity_1", e3.Name())
	assert.NotEqual(t, e1.Id(), e3.Id())

	assert.True(t, e0.Valid())
	assert.True(t, e2.Valid())
	assert.False(t, e1.Valid())

	_, err := ecs.AddComponent(e1, Position{X: 1})
	assert.ErrorIs(t, err, ecs.ErrStaleHandle)
	assert.ErrorIs(t, e1.Destroy(), ecs.ErrStaleHandle)
	assert.ErrorIs(t, e1.SetName("ghost"), ecs.ErrStaleHandle)
	assert.Equal(t, "", e1.Name())
	assert.Equal(t, ecs.Mask(0), e1.Mask())
	assert.False(t, ecs.HasComponent[Position](e1))
}

func TestZeroEntity(t *testing.T) {
	var e ecs.Entity
	assert.False(t, e.Valid())
	assert.ErrorIs(t, e.Destroy(), ecs.ErrStaleHandle)
	_, err := ecs.AddComponent(e, Position{})
	assert.ErrorIs(t, err, ecs.ErrStaleHandle)
	_, err = ecs.TryGetComponent[Position](e)
	assert.ErrorIs(t, err, ecs.ErrStaleHandle)
	assert.Nil(t, ecs.GetComponent[Position](e))
}

func TestForeignHandle(t *testing.T) {
	registry := newTestRegistry()
	a := ecs.NewStorage(registry)
	b := ecs.NewStorage(registry)

	e := a.CreateEntity("")
	b.CreateEntity("")

	assert.True(t, a.Alive(e))
	assert.False(t, b.Alive(e))
	assert.ErrorIs(t, b.Destroy(e), ecs.ErrStaleHandle)
}

func TestAddComponent(t *testing.T) {
	storage := ecs.NewStorage(newTestRegistry())
	e := storage.CreateEntity("")

	pos, err := ecs.AddComponent(e, Position{X: 1, Y: 2})
	require.NoError(t, err)
	assert.Equal(t, Position{X: 1, Y: 2}, *pos)

	t.Run("existing instance is returned unchanged", func(t *testing.T) {
		again, err := ecs.AddComponent(e, Position{X: 9, Y: 9})
		require.NoError(t, err)
		assert.Same(t, pos, again)
		assert.Equal(t, Position{X: 1, Y: 2}, *again)
	})

	t.Run("mask and component list agree", func(t *testing.T) {
		_, err := ecs.AddComponent(e, Velocity{DX: 3})
		require.NoError(t, err)

		posId, _ := ecs.ComponentIdOf[Position](storage.Registry())
		velId, _ := ecs.ComponentIdOf[Velocity](storage.Registry())
		assert.Equal(t, ecs.MaskOf(posId, velId), e.Mask())
		assert.Equal(t,
			[]reflect.Type{reflect.TypeFor[Position](), reflect.TypeFor[Velocity]()},
			storage.ComponentTypes(e))
	})

	t.Run("unregistered types register on first use", func(t *testing.T) {
		type Marker struct{ N int }
		m, err := ecs.AddComponent(e, Marker{N: 4})
		require.NoError(t, err)
		assert.Equal(t, 4, m.N)
		_, ok := ecs.ComponentIdOf[Marker](storage.Registry())
		assert.True(t, ok)
	})

	t.Run("components survive pool growth", func(t *testing.T) {
		for i := 0; i < 500; i++ {
			other := storage.CreateEntity("")
			_, err := ecs.AddComponent(other, Position{X: float32(i)})
			require.NoError(t, err)
		}
		assert.Same(t, pos, ecs.GetComponent[Position](e))
		assert.Equal(t, Position{X: 1, Y: 2}, *pos)
	})
}

func TestGetComponent(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	storage := ecs.NewStorage(newTestRegistry(), ecs.WithLogger(zap.New(core)))

	e := storage.CreateEntity("hero")
	_, err := ecs.AddComponent(e, Health{Current: 10, Max: 10})
	require.NoError(t, err)

	h, err := ecs.TryGetComponent[Health](e)
	require.NoError(t, err)
	assert.Equal(t, 10, h.Current)

	_, err = ecs.TryGetComponent[Velocity](e)
	assert.ErrorIs(t, err, ecs.ErrComponentNotFound)

	assert.Nil(t, ecs.GetComponent[Velocity](e))
	assert.Equal(t, 1, logs.FilterMessage("component lookup missed").Len())

	assert.Panics(t, func() { ecs.MustGetComponent[Velocity](e) })
	assert.NotPanics(t, func() { ecs.MustGetComponent[Health](e) })

	assert.Nil(t, storage.ComponentById(e, 1))
	assert.Equal(t, 1, logs.FilterMessage("entity doesn't have component").Len())

	healthId, _ := ecs.ComponentIdOf[Health](storage.Registry())
	assert.Same(t, h, storage.ComponentById(e, healthId))
	assert.Same(t, h, ecs.ReadComponent[Health](storage, e.Id()))
	assert.True(t, storage.HasComponent(e.Id(), reflect.TypeFor[Health]()))
	assert.False(t, storage.HasComponent(e.Id(), reflect.TypeFor[Velocity]()))
}

func TestRemoveComponent(t *testing.T) {
	storage := ecs.NewStorage(newTestRegistry())
	e := storage.CreateEntity("")
	_, err := ecs.AddComponent(e, Position{X: 1})
	require.NoError(t, err)
	_, err = ecs.AddComponent(e, Velocity{DX: 1})
	require.NoError(t, err)
	storage.DrainDirty()

	require.NoError(t, ecs.RemoveComponent[Position](e))
	assert.False(t, ecs.HasComponent[Position](e))
	assert.True(t, ecs.HasComponent[Velocity](e))
	assert.Equal(t, 1, storage.DirtyLen())

	storage.DrainDirty()
	require.NoError(t, ecs.RemoveComponent[Position](e))
	require.NoError(t, ecs.RemoveComponent[Inventory](e))
	assert.Equal(t, 0, storage.DirtyLen(), "removing an absent component changes nothing")

	type Unregistered struct{}
	require.NoError(t, ecs.RemoveComponent[Unregistered](e))

	require.NoError(t, e.Destroy())
	assert.ErrorIs(t, ecs.RemoveComponent[Velocity](e), ecs.ErrStaleHandle)
}

func TestDirtySet(t *testing.T) {
	storage := ecs.NewStorage(newTestRegistry())

	_, ok := storage.DrainDirty()
	assert.False(t, ok)

	a := storage.CreateEntity("a")
	b := storage.CreateEntity("b")
	c := storage.CreateEntity("c")

	_, err := ecs.AddComponent(c, Position{})
	require.NoError(t, err)
	_, err = ecs.AddComponent(a, Position{})
	require.NoError(t, err)
	_, err = ecs.AddComponent(a, Velocity{})
	require.NoError(t, err)
	b.MarkDirty()
	b.MarkDirty()

	dirty, ok := storage.DrainDirty()
	require.True(t, ok)
	assert.Equal(t, []ecs.Entity{a, b, c}, dirty)

	_, ok = storage.DrainDirty()
	assert.False(t, ok, "entities are drained exactly once")

	t.Run("destroy marks entities with components", func(t *testing.T) {
		require.NoError(t, c.Destroy())
		dirty, ok := storage.DrainDirty()
		require.True(t, ok)
		assert.Equal(t, []ecs.Entity{c}, dirty)

		require.NoError(t, b.Destroy())
		assert.Equal(t, 0, storage.DirtyLen())
	})
}

func TestHeroScenario(t *testing.T) {
	storage := ecs.NewStorage(newTestRegistry())

	hero := storage.CreateEntity("hero")
	_, err := ecs.AddComponent(hero, Hero{Title: "knight", Level: 1})
	require.NoError(t, err)
	_, err = ecs.AddComponent(hero, Position{X: 5, Y: 5})
	require.NoError(t, err)
	_, err = ecs.AddComponent(hero, Health{Current: 30, Max: 30})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		goblin := storage.CreateEntity(fmt.Sprintf("goblin_%d", i))
		_, err := ecs.AddComponent(goblin, Position{X: float32(i)})
		require.NoError(t, err)
		_, err = ecs.AddComponent(goblin, Health{Current: 5, Max: 5})
		require.NoError(t, err)
	}

	living := ecs.NewQuery[struct {
		*Position
		*Health
	}](storage)
	heroes := ecs.NewQuery[struct{ *Hero }](storage)
	assert.Equal(t, 4, living.Len())
	assert.Equal(t, 1, heroes.Len())

	found, ok := storage.LookupByName("hero")
	require.True(t, ok)
	assert.Equal(t, hero, found)

	ecs.MustGetComponent[Hero](found).Level++
	assert.Equal(t, 2, ecs.GetComponent[Hero](hero).Level)

	goblin, ok := storage.LookupByName("goblin_1")
	require.True(t, ok)
	require.NoError(t, goblin.Destroy())
	require.NoError(t, ecs.RemoveComponent[Health](hero))

	dirty, ok := storage.DrainDirty()
	require.True(t, ok)
	living.Update(dirty)
	heroes.Update(dirty)

	assert.Equal(t, 2, living.Len())
	assert.Equal(t, 1, heroes.Len())
	for e := range living.Iter() {
		assert.Contains(t, []string{"goblin_0", "goblin_2"}, e.Name())
	}

	_, ok = storage.LookupByName("goblin_1")
	assert.False(t, ok)
}

func TestSpawn(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	storage := ecs.NewStorage(newTestRegistry(), ecs.WithLogger(zap.New(core)))

	type Unregistered struct{}
	e := storage.Spawn(Position{X: 1}, &Velocity{DX: 2}, Unregistered{})

	assert.Equal(t, float32(1), ecs.GetComponent[Position](e).X)
	assert.Equal(t, float32(2), ecs.GetComponent[Velocity](e).DX)
	assert.Equal(t, 2, e.Mask().Count())
	assert.Equal(t, 1, logs.FilterMessage("spawn component failed").Len())
}

func TestComponentLimit(t *testing.T) {
	registry := ecs.NewComponentRegistry()
	for i, register := range limitTypes {
		_, err := register(registry)
		if i < ecs.MaxComponentTypes {
			require.NoError(t, err, "type %d", i)
		} else {
			assert.ErrorIs(t, err, ecs.ErrComponentLimit)
		}
	}
	assert.Equal(t, ecs.MaxComponentTypes, registry.Len())

	id, err := ecs.RegisterComponent[[1]byte](registry)
	require.NoError(t, err, "registering a known type still succeeds")
	assert.Equal(t, ecs.ComponentId(0), id)

	assert.Panics(t, func() { ecs.MustRegisterComponent[Position](registry) })
}

func TestPoolExhaustion(t *testing.T) {
	registry := ecs.NewComponentRegistry(ecs.WithPoolCapacity(2))
	storage := ecs.NewStorage(registry)

	a := storage.Spawn()
	b := storage.Spawn()
	c := storage.Spawn()

	_, err := ecs.AddComponent(a, Position{})
	require.NoError(t, err)
	_, err = ecs.AddComponent(b, Position{})
	require.NoError(t, err)
	_, err = ecs.AddComponent(c, Position{})
	assert.ErrorIs(t, err, ecs.ErrPoolExhausted)
	assert.False(t, ecs.HasComponent[Position](c))

	require.NoError(t, a.Destroy())
	_, err = ecs.AddComponent(c, Position{X: 3})
	require.NoError(t, err)
	assert.Equal(t, float32(3), ecs.GetComponent[Position](c).X)
}

func TestRawSlots(t *testing.T) {
	registry := newTestRegistry()
	storage := ecs.NewStorage(registry)
	id, _ := ecs.ComponentIdOf[Position](registry)

	first, s0, err := storage.AllocateSlot(id)
	require.NoError(t, err)
	first.(*Position).X = 7
	_, s1, err := storage.AllocateSlot(id)
	require.NoError(t, err)
	assert.NotEqual(t, s0, s1)
	assert.Equal(t, float32(7), storage.Slot(id, s0).(*Position).X)

	storage.ReleaseSlot(id, s0)
	storage.ReleaseSlot(id, s1)
	assert.Nil(t, storage.Slot(id, s0))

	reused, s2, err := storage.AllocateSlot(id)
	require.NoError(t, err)
	assert.Equal(t, s1, s2, "free slots are reused most recent first")
	assert.Equal(t, Position{}, *reused.(*Position))

	_, _, err = storage.AllocateSlot(60)
	assert.ErrorIs(t, err, ecs.ErrNotRegistered)
	assert.Nil(t, storage.Slot(60, 0))
}

func TestAddComponentById(t *testing.T) {
	registry := newTestRegistry()
	storage := ecs.NewStorage(registry)
	e := storage.CreateEntity("")

	id, ok := registry.IdByName("ecs_test.Health")
	require.True(t, ok)
	c, err := storage.AddComponentById(e, id)
	require.NoError(t, err)
	c.(*Health).Max = 12
	assert.Equal(t, 12, ecs.GetComponent[Health](e).Max)

	_, err = storage.AddComponentById(e, 63)
	assert.ErrorIs(t, err, ecs.ErrNotRegistered)

	v, err := storage.AddComponentValue(e, &Velocity{DX: 1})
	require.NoError(t, err)
	assert.Equal(t, float32(1), v.(*Velocity).DX)

	_, err = storage.AddComponentValue(e, struct{ Nope int }{})
	assert.ErrorIs(t, err, ecs.ErrNotRegistered)

	require.NoError(t, storage.RemoveComponentByType(e, reflect.TypeFor[Velocity]()))
	assert.False(t, ecs.HasComponent[Velocity](e))
}

func TestComponentRef(t *testing.T) {
	storage := ecs.NewStorage(newTestRegistry())
	a := storage.Spawn(Position{X: 1})
	b := storage.Spawn()

	ref, err := ecs.RefOf[Position](a)
	require.NoError(t, err)
	assert.Equal(t, a, ref.Entity())
	assert.Equal(t, float32(1), ref.Get().X)

	require.NoError(t, ecs.RemoveComponent[Position](a))
	_, err = ecs.AddComponent(b, Position{X: 2})
	require.NoError(t, err)
	assert.Nil(t, ref.Get(), "a reused slot is not resolved through an old reference")

	_, err = ecs.AddComponent(a, Position{X: 3})
	require.NoError(t, err)
	assert.Nil(t, ref.Get())

	_, err = ecs.RefOf[Velocity](a)
	assert.ErrorIs(t, err, ecs.ErrComponentNotFound)
}

func TestComponentsIter(t *testing.T) {
	storage := ecs.NewStorage(newTestRegistry())
	for i := 0; i < 5; i++ {
		storage.Spawn(Score(i))
	}
	storage.Spawn(Position{})

	var total Score
	for s := range ecs.Components[Score](storage) {
		total += *s
	}
	assert.Equal(t, Score(10), total)

	count := 0
	for range ecs.Components[Score](storage) {
		count++
		if count == 2 {
			break
		}
	}
	assert.Equal(t, 2, count)

	type Unregistered struct{}
	for range ecs.Components[Unregistered](storage) {
		t.Fatal("no instances expected")
	}
}

func TestEntitiesIter(t *testing.T) {
	storage := ecs.NewStorage(newTestRegistry())
	all := []ecs.Entity{storage.Spawn(), storage.Spawn(), storage.Spawn()}
	require.NoError(t, all[1].Destroy())

	var seen []ecs.Entity
	for e := range storage.Entities() {
		seen = append(seen, e)
	}
	assert.Equal(t, []ecs.Entity{all[0], all[2]}, seen)
}

func TestReleasedSlotIsNotFound(t *testing.T) {
	storage := ecs.NewStorage(newTestRegistry())
	e := storage.Spawn(Position{X: 1})
	id, _ := ecs.ComponentIdOf[Position](storage.Registry())

	storage.ReleaseSlot(id, 0)
	_, err := ecs.TryGetComponent[Position](e)
	assert.ErrorIs(t, err, ecs.ErrComponentNotFound)
	assert.Nil(t, ecs.GetComponent[Position](e))
	assert.Panics(t, func() { ecs.MustGetComponent[Position](e) })
}

func TestSetName(t *testing.T) {
	storage := ecs.NewStorage(newTestRegistry())
	e := storage.CreateEntity("")
	require.NoError(t, e.SetName("renamed"))

	found, ok := storage.LookupByName("renamed")
	require.True(t, ok)
	assert.Equal(t, e, found)
	assert.Equal(t, "renamed", storage.Name(e))
}

func TestCollectStats(t *testing.T) {
	registry := newTestRegistry()
	storage := ecs.NewStorage(registry)

	a := storage.Spawn(Position{}, Velocity{})
	storage.Spawn(Position{})
	require.NoError(t, ecs.AddScript(a, &counter{}))
	storage.AddSingleton(Score(1))
	require.NoError(t, storage.Spawn().Destroy())

	stats := storage.CollectStats()
	assert.Equal(t, 2, stats.EntityCount)
	assert.Equal(t, 1, stats.FreeSlots)
	assert.Equal(t, 2, stats.DirtyCount)
	assert.Equal(t, 1, stats.ScriptCount)
	assert.Equal(t, 1, stats.SingletonCount)
	assert.Equal(t, registry.Len(), stats.ComponentTypes)

	live := make(map[string]int)
	for _, p := range stats.Pools {
		live[p.Name] = p.Live
	}
	assert.Equal(t, map[string]int{"ecs_test.Position": 2, "ecs_test.Velocity": 1}, live)
}

func TestMask(t *testing.T) {
	m := ecs.MaskOf(1, 5, 63)
	assert.True(t, m.Has(5))
	assert.False(t, m.Has(4))
	assert.Equal(t, 3, m.Count())
	assert.Equal(t, []ecs.ComponentId{1, 5, 63}, m.Ids())

	assert.True(t, m.Contains(ecs.MaskOf(1, 63)))
	assert.False(t, m.Contains(ecs.MaskOf(1, 2)))
	assert.True(t, m.Contains(0))

	m = m.Without(5).With(2)
	assert.Equal(t, []ecs.ComponentId{1, 2, 63}, m.Ids())
	assert.True(t, ecs.Mask(0).IsEmpty())
	assert.Empty(t, ecs.Mask(0).Ids())
}
