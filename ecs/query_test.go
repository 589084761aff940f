package ecs_test

import (
	"math/rand/v2"
	"testing"

	"github.com/plus3/arkecs/ecs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type moving struct {
	*Position
	*Velocity
}

func TestQuery(t *testing.T) {
	storage := ecs.NewStorage(newTestRegistry())

	storage.Spawn(Position{X: 1, Y: 2}, Velocity{DX: 0.5, DY: 0.5})
	storage.Spawn(Position{X: 3, Y: 4}, Velocity{DX: 1.0, DY: 1.0})
	storage.Spawn(Position{X: 5, Y: 6}, Velocity{DX: 1.5, DY: 1.5}, Health{Current: 100, Max: 100})
	storage.Spawn(Position{X: 7, Y: 8})

	query := ecs.NewQuery[moving](storage)

	t.Run("matches entities with every required component", func(t *testing.T) {
		assert.Equal(t, 3, query.Len())
		var xs []float32
		for _, item := range query.Iter() {
			xs = append(xs, item.Position.X)
		}
		assert.Equal(t, []float32{1, 3, 5}, xs)
	})

	t.Run("mutations go through to storage", func(t *testing.T) {
		for item := range query.Values() {
			item.Position.X += item.Velocity.DX
		}
		var xs []float32
		for p := range ecs.Components[Position](storage) {
			xs = append(xs, p.X)
		}
		assert.Equal(t, []float32{1.5, 4, 6.5, 7}, xs)
	})

	t.Run("get", func(t *testing.T) {
		first := query.Entities()[0]
		item := query.Get(first)
		require.NotNil(t, item)
		assert.Equal(t, float32(0.5), item.Velocity.DX)

		last, ok := storage.LookupByName("entity_3")
		require.True(t, ok)
		assert.Nil(t, query.Get(last))
	})

	t.Run("early break", func(t *testing.T) {
		count := 0
		for range query.Iter() {
			count++
			break
		}
		assert.Equal(t, 1, count)
	})
}

func TestQueryOptionalFields(t *testing.T) {
	storage := ecs.NewStorage(newTestRegistry())
	storage.Spawn(Position{X: 1}, Health{Current: 5})
	storage.Spawn(Position{X: 2})
	storage.Spawn(Health{Current: 9})

	query := ecs.NewQuery[struct {
		*Position
		Health *Health `ecs:"optional"`
	}](storage)
	require.Equal(t, 2, query.Len())

	var withHealth, without int
	for _, item := range query.Iter() {
		require.NotNil(t, item.Position)
		if item.Health != nil {
			withHealth++
			assert.Equal(t, 5, item.Health.Current)
		} else {
			without++
		}
	}
	assert.Equal(t, 1, withHealth)
	assert.Equal(t, 1, without)

	posId, _ := ecs.ComponentIdOf[Position](storage.Registry())
	assert.Equal(t, ecs.MaskOf(posId), query.Mask())
}

func TestQueryBadSignature(t *testing.T) {
	storage := ecs.NewStorage(newTestRegistry())
	assert.Panics(t, func() { ecs.NewQuery[Position](storage) })
	assert.Panics(t, func() { ecs.NewQuery[struct{ P Position }](storage) })
	assert.Panics(t, func() {
		ecs.NewQuery[struct {
			P *Position `ecs:"maybe"`
		}](storage)
	})
}

func TestQueryIncrementalUpdate(t *testing.T) {
	storage := ecs.NewStorage(newTestRegistry())
	query := ecs.NewQuery[moving](storage)
	assert.Equal(t, 0, query.Len())
	storage.DrainDirty()

	a := storage.Spawn(Position{}, Velocity{})
	b := storage.Spawn(Position{})
	assert.Equal(t, 0, query.Len(), "new entities appear at the next refresh")

	v0 := query.Version()
	dirty, _ := storage.DrainDirty()
	query.Update(dirty)
	assert.Equal(t, []ecs.Entity{a}, query.Entities())
	assert.NotEqual(t, v0, query.Version())

	_, err := ecs.AddComponent(b, Velocity{})
	require.NoError(t, err)
	require.NoError(t, ecs.RemoveComponent[Velocity](a))
	dirty, _ = storage.DrainDirty()
	query.Update(dirty)
	assert.Equal(t, []ecs.Entity{b}, query.Entities())

	t.Run("version is stable when nothing changes", func(t *testing.T) {
		v := query.Version()
		a.MarkDirty()
		dirty, _ := storage.DrainDirty()
		query.Update(dirty)
		query.Rescan()
		assert.Equal(t, v, query.Version())
	})

	t.Run("reused index replaces the old handle", func(t *testing.T) {
		require.NoError(t, b.Destroy())
		c := storage.Spawn(Position{}, Velocity{})
		require.Equal(t, b.Index(), c.Index())

		dirty, _ := storage.DrainDirty()
		query.Update(dirty)
		assert.Equal(t, []ecs.Entity{c}, query.Entities())
	})
}

func TestQuerySkipsEntitiesChangedMidIteration(t *testing.T) {
	storage := ecs.NewStorage(newTestRegistry())
	var all []ecs.Entity
	for i := 0; i < 4; i++ {
		all = append(all, storage.Spawn(Position{X: float32(i)}, Velocity{}))
	}
	query := ecs.NewQuery[moving](storage)

	var seen []float32
	for e, item := range query.Iter() {
		if e == all[0] {
			require.NoError(t, ecs.RemoveComponent[Velocity](all[2]))
			require.NoError(t, all[3].Destroy())
		}
		seen = append(seen, item.Position.X)
	}
	assert.Equal(t, []float32{0, 1}, seen)
	assert.Equal(t, 4, query.Len(), "the cached list changes only on refresh")
}

func TestQueryLazyRegistration(t *testing.T) {
	registry := ecs.NewComponentRegistry()
	storage := ecs.NewStorage(registry)

	type Late struct{ N int }
	query := ecs.NewQuery[struct{ *Late }](storage)
	assert.Equal(t, ecs.Mask(0), query.Mask())
	assert.Equal(t, 0, query.Len())

	e := storage.CreateEntity("")
	_, err := ecs.AddComponent(e, Late{N: 1})
	require.NoError(t, err)

	dirty, ok := storage.DrainDirty()
	require.True(t, ok)
	query.Update(dirty)
	assert.Equal(t, []ecs.Entity{e}, query.Entities())
	assert.False(t, query.Mask().IsEmpty())
}

func TestQueryEmptySignatureMatchesAll(t *testing.T) {
	storage := ecs.NewStorage(newTestRegistry())
	storage.Spawn()
	storage.Spawn(Position{})

	query := ecs.NewQuery[struct{}](storage)
	assert.Equal(t, 2, query.Len())
}

// Under random churn, incremental refresh must agree with a full rescan.
func TestQueryIncrementalMatchesRescan(t *testing.T) {
	storage := ecs.NewStorage(newTestRegistry())
	incremental := ecs.NewQuery[moving](storage)
	rescan := ecs.NewQuery[moving](storage)
	optional := ecs.NewQuery[struct {
		*Position
		Health *Health `ecs:"optional"`
	}](storage)
	optionalRescan := ecs.NewQuery[struct {
		*Position
		Health *Health `ecs:"optional"`
	}](storage)

	rng := rand.New(rand.NewPCG(7, 11))
	var live []ecs.Entity

	for round := 0; round < 200; round++ {
		for op := 0; op < 10; op++ {
			switch n := rng.IntN(6); {
			case n == 0 || len(live) == 0:
				live = append(live, storage.Spawn(Position{}, Velocity{}))
			case n == 1:
				live = append(live, storage.Spawn(Position{}, Health{}))
			case n == 2:
				i := rng.IntN(len(live))
				require.NoError(t, live[i].Destroy())
				live = append(live[:i], live[i+1:]...)
			case n == 3:
				_, err := ecs.AddComponent(live[rng.IntN(len(live))], Velocity{})
				require.NoError(t, err)
			case n == 4:
				require.NoError(t, ecs.RemoveComponent[Velocity](live[rng.IntN(len(live))]))
			default:
				require.NoError(t, ecs.RemoveComponent[Position](live[rng.IntN(len(live))]))
			}
		}

		dirty, _ := storage.DrainDirty()
		incremental.Update(dirty)
		optional.Update(dirty)
		rescan.Rescan()
		optionalRescan.Rescan()

		require.Equal(t, rescan.Entities(), incremental.Entities(), "round %d", round)
		require.Equal(t, optionalRescan.Entities(), optional.Entities(), "round %d", round)
	}
}
