package ecs_test

import (
	"fmt"

	"github.com/plus3/arkecs/ecs"
)

type fallSystem struct {
	Bodies  ecs.Query[moving]
	Gravity ecs.Singleton[Gravity]
}

func (s *fallSystem) Execute(frame *ecs.UpdateFrame) {
	g := s.Gravity.Get()
	if g == nil {
		return
	}
	dt := float32(frame.DeltaTime)
	for item := range s.Bodies.Values() {
		item.Velocity.DY += g.DY * dt
		item.Position.Y += item.Velocity.DY * dt
	}
}

// A Singleton field is bound at registration and resolves once the value is
// added, so systems can be registered before world settings are loaded.
func ExampleSingleton() {
	storage := ecs.NewStorage(newTestRegistry())
	body := storage.Spawn(Position{}, Velocity{})

	scheduler := ecs.NewScheduler(storage)
	system := &fallSystem{}
	scheduler.Register(system)

	scheduler.Once(0.5)
	fmt.Println("gravity set:", system.Gravity.Exists())

	storage.AddSingleton(Gravity{DY: 10})
	scheduler.Once(0.5)
	scheduler.Once(0.5)
	fmt.Printf("y=%.1f\n", ecs.GetComponent[Position](body).Y)

	// Output:
	// gravity set: false
	// y=7.5
}

// Adding a singleton that already exists overwrites it in place; accessors
// keep pointing at the live value.
func ExampleNewSingleton() {
	storage := ecs.NewStorage(newTestRegistry())

	gravity := ecs.NewSingleton(storage, Gravity{DY: 9.8})
	before := gravity.Get()
	fmt.Println("gravity:", before.DY)

	storage.AddSingleton(Gravity{DY: 1.6})
	fmt.Println("same value:", before == gravity.Get(), before.DY)

	// An initializer is ignored once the singleton exists.
	again := ecs.NewSingleton(storage, Gravity{DY: 100})
	fmt.Println("again:", again.Get().DY)

	// Output:
	// gravity: 9.8
	// same value: true 1.6
	// again: 1.6
}

func ExampleStorage_ReadSingleton() {
	storage := ecs.NewStorage(newTestRegistry())
	storage.AddSingleton(GameConfig{MaxPlayers: 8, Difficulty: "Expert"})

	var config *GameConfig
	if storage.ReadSingleton(&config) {
		fmt.Printf("%d players, %s\n", config.MaxPlayers, config.Difficulty)
	}

	var score *GameScore
	fmt.Println("score found:", storage.ReadSingleton(&score))

	// Output:
	// 8 players, Expert
	// score found: false
}
