package main

import (
	"math/rand/v2"
	"reflect"

	"github.com/plus3/arkecs/ecs"
)

type Position struct {
	X, Y float64
}

type Velocity struct {
	DX, DY float64
}

type Health struct {
	Current, Max int
}

type Tag struct {
	Group int
}

// spawnRandom creates an entity with Position plus a random subset of the
// other components.
func spawnRandom(storage *ecs.Storage, rng *rand.Rand) ecs.Entity {
	e := storage.CreateEntity("")
	ecs.AddComponent(e, Position{X: rng.Float64() * 1000, Y: rng.Float64() * 1000})
	if rng.IntN(2) == 0 {
		ecs.AddComponent(e, Velocity{DX: rng.Float64() - 0.5, DY: rng.Float64() - 0.5})
	}
	if rng.IntN(3) == 0 {
		ecs.AddComponent(e, Health{Current: 100, Max: 100})
	}
	if rng.IntN(4) == 0 {
		ecs.AddComponent(e, Tag{Group: rng.IntN(8)})
	}
	return e
}

type MovementSystem struct {
	Movers ecs.Query[struct {
		*Position
		*Velocity
	}]
}

func (s *MovementSystem) Execute(frame *ecs.UpdateFrame) {
	for _, m := range s.Movers.Iter() {
		m.Position.X += m.Velocity.DX * frame.DeltaTime
		m.Position.Y += m.Velocity.DY * frame.DeltaTime
	}
}

// DecaySystem drains health and queues the removal of Health at zero, which
// moves entities out of its own query at the next refresh.
type DecaySystem struct {
	Living ecs.Query[struct {
		*Health
		Tag *Tag `ecs:"optional"`
	}]
}

func (s *DecaySystem) Execute(frame *ecs.UpdateFrame) {
	for e, v := range s.Living.Iter() {
		v.Health.Current--
		if v.Tag != nil {
			v.Health.Current--
		}
		if v.Health.Current <= 0 {
			frame.Commands.RemoveComponent(e, reflect.TypeFor[Health]())
		}
	}
}

// ChurnSystem destroys a fraction of the tracked entities each tick and spawns
// the same number of replacements through the command buffer.
type ChurnSystem struct {
	Rate float64
	rng  *rand.Rand

	storage   *ecs.Storage
	live      []ecs.Entity
	Created   int
	Destroyed int
}

func newChurnSystem(storage *ecs.Storage, rate float64, seed uint64, initial []ecs.Entity) *ChurnSystem {
	return &ChurnSystem{
		Rate:    rate,
		rng:     rand.New(rand.NewPCG(seed, seed+1)),
		storage: storage,
		live:    initial,
	}
}

func (s *ChurnSystem) Execute(frame *ecs.UpdateFrame) {
	n := int(float64(len(s.live)) * s.Rate)
	for range n {
		i := s.rng.IntN(len(s.live))
		frame.Commands.Destroy(s.live[i])
		s.live[i] = s.live[len(s.live)-1]
		s.live = s.live[:len(s.live)-1]
		s.Destroyed++
	}
	for range n {
		frame.Commands.Defer(func() {
			s.live = append(s.live, spawnRandom(s.storage, s.rng))
			s.Created++
		})
	}
}
