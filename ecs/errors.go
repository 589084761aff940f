package ecs

import "github.com/rotisserie/eris"

var (
	// ErrStaleHandle is returned when an Entity refers to a destroyed, never-created
	// or foreign slot.
	ErrStaleHandle = eris.New("ecs: stale entity handle")

	// ErrComponentNotFound is returned when an entity does not own the requested component.
	ErrComponentNotFound = eris.New("ecs: component not found")

	// ErrComponentLimit is returned when more than MaxComponentTypes distinct types are registered.
	ErrComponentLimit = eris.New("ecs: component type limit reached")

	// ErrPoolExhausted is returned when a component pool cannot hand out another slot.
	ErrPoolExhausted = eris.New("ecs: component pool exhausted")

	// ErrNotRegistered is returned for type-erased operations on unknown component types.
	ErrNotRegistered = eris.New("ecs: component type not registered")

	// ErrInboxFull is returned by Inbox.TryPost when the channel buffer is full.
	ErrInboxFull = eris.New("ecs: inbox full")
)
