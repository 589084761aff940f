package ecs

import (
	"iter"
	"reflect"
)

// iComponentStorage is an interface for a type-erased component pool.
// Slots are meaningful only relative to the pool that handed them out.
type iComponentStorage interface {
	Allocate() (int32, error)
	Release(slot int32)
	Get(slot int32) any
	Set(slot int32, item any) bool
	Has(slot int32) bool
	Len() int
	Type() reflect.Type
	Iter() iter.Seq[int32]
}
