package ecs_test

import "github.com/plus3/arkecs/ecs"

type Position struct {
	X, Y float32
}

type Velocity struct {
	DX, DY float32
}

type Name struct {
	Value string
}

type Health struct {
	Current int
	Max     int
}

// Score checks that non-struct types work as components.
type Score int32

type Inventory struct {
	Items []string
}

type Hero struct {
	Title string
	Level int
}

// Singletons.
type GameConfig struct {
	MaxPlayers int
	Difficulty string
}

type GameScore struct {
	Points int
	Level  int
}

type Gravity struct {
	DY float32
}

// newTestRegistry registers Position, Velocity, Name and Health first so their
// ids are 0 to 3.
func newTestRegistry() *ecs.ComponentRegistry {
	registry := ecs.NewComponentRegistry()
	ecs.MustRegisterComponent[Position](registry)
	ecs.MustRegisterComponent[Velocity](registry)
	ecs.MustRegisterComponent[Name](registry)
	ecs.MustRegisterComponent[Health](registry)
	ecs.MustRegisterComponent[Score](registry)
	ecs.MustRegisterComponent[Inventory](registry)
	ecs.MustRegisterComponent[Hero](registry)
	return registry
}
