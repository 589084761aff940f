package ecs

import (
	"reflect"

	"go.uber.org/zap"
)

// Commands provides a buffer for deferred ECS operations that are executed at the end of a frame.
// This prevents structural changes to the ECS storage during system execution.
type Commands struct {
	spawns   []spawnCommand
	destroys []Entity
	adds     []addComponentCommand
	removes  []removeComponentCommand
	defers   []deferCommand
}

func newCommands() *Commands {
	return &Commands{}
}

type deferCommand struct {
	fn func()
}

type spawnCommand struct {
	name       string
	components []any
	done       func(Entity)
}

type addComponentCommand struct {
	entity    Entity
	component any
}

type removeComponentCommand struct {
	entity   Entity
	compType reflect.Type
}

// Defer queues a function execution operation.
func (c *Commands) Defer(fn func()) {
	c.defers = append(c.defers, deferCommand{fn: fn})
}

// Spawn queues the creation of an entity with the given components. done, if not
// nil, receives the new entity after the flush.
func (c *Commands) Spawn(name string, done func(Entity), components ...any) {
	c.spawns = append(c.spawns, spawnCommand{name: name, components: components, done: done})
}

// Destroy queues an entity destruction.
func (c *Commands) Destroy(entity Entity) {
	c.destroys = append(c.destroys, entity)
}

// AddComponent queues a component addition operation.
func (c *Commands) AddComponent(entity Entity, component any) {
	c.adds = append(c.adds, addComponentCommand{
		entity:    entity,
		component: component,
	})
}

// RemoveComponent queues a component removal operation.
func (c *Commands) RemoveComponent(entity Entity, compType reflect.Type) {
	c.removes = append(c.removes, removeComponentCommand{
		entity:   entity,
		compType: compType,
	})
}

// Len returns the number of queued operations.
func (c *Commands) Len() int {
	return len(c.spawns) + len(c.destroys) + len(c.adds) + len(c.removes) + len(c.defers)
}

// Flush flushes all commands to the provided storage, reseting the buffer state.
// Failures are logged; one failed command does not stop the rest.
func (c *Commands) Flush(storage *Storage) {
	log := storage.log
	destroyed := make(map[EntityId]bool)

	for _, e := range c.destroys {
		if destroyed[e.id] {
			continue
		}
		if err := storage.Destroy(e); err != nil {
			log.Warn("deferred destroy failed", zap.Stringer("entity", e), zap.Error(err))
		}
		destroyed[e.id] = true
	}

	for _, cmd := range c.removes {
		if destroyed[cmd.entity.id] {
			continue
		}
		if err := storage.RemoveComponentByType(cmd.entity, cmd.compType); err != nil {
			log.Warn("deferred remove failed", zap.Stringer("entity", cmd.entity), zap.Error(err))
		}
	}

	for _, cmd := range c.adds {
		if destroyed[cmd.entity.id] {
			continue
		}
		if _, err := storage.AddComponentValue(cmd.entity, cmd.component); err != nil {
			log.Warn("deferred add failed", zap.Stringer("entity", cmd.entity), zap.Error(err))
		}
	}

	for _, cmd := range c.spawns {
		e := storage.CreateEntity(cmd.name)
		for _, comp := range cmd.components {
			if _, err := storage.AddComponentValue(e, comp); err != nil {
				log.Warn("deferred spawn component failed", zap.Stringer("entity", e), zap.Error(err))
			}
		}
		if cmd.done != nil {
			cmd.done(e)
		}
	}

	for _, df := range c.defers {
		df.fn()
	}

	c.spawns = c.spawns[:0]
	c.destroys = c.destroys[:0]
	c.adds = c.adds[:0]
	c.removes = c.removes[:0]
	c.defers = c.defers[:0]
}
