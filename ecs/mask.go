package ecs

import "math/bits"

// MaxComponentTypes is the width of Mask and therefore the number of distinct
// component types one ComponentRegistry can hold.
const MaxComponentTypes = 64

// Mask is a fixed-width bitset with one bit per registered component type.
type Mask uint64

// MaskOf builds a mask with the given component bits set.
func MaskOf(ids ...ComponentId) Mask {
	var m Mask
	for _, id := range ids {
		m = m.With(id)
	}
	return m
}

func (m Mask) Has(id ComponentId) bool {
	return m&(1<<id) != 0
}

func (m Mask) With(id ComponentId) Mask {
	return m | 1<<id
}

func (m Mask) Without(id ComponentId) Mask {
	return m &^ (1 << id)
}

// Contains reports whether every bit of sub is also set in m.
func (m Mask) Contains(sub Mask) bool {
	return m&sub == sub
}

func (m Mask) Count() int {
	return bits.OnesCount64(uint64(m))
}

func (m Mask) IsEmpty() bool {
	return m == 0
}

// Ids returns the set component ids in ascending order.
func (m Mask) Ids() []ComponentId {
	ids := make([]ComponentId, 0, m.Count())
	for v := uint64(m); v != 0; v &= v - 1 {
		ids = append(ids, ComponentId(bits.TrailingZeros64(v)))
	}
	return ids
}
