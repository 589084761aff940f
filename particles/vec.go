package particles

import "math"

// Vec2 is a 2D position or velocity in screen units.
type Vec2 struct {
	X, Y float64
}

func (v Vec2) Add(o Vec2) Vec2      { return Vec2{v.X + o.X, v.Y + o.Y} }
func (v Vec2) Sub(o Vec2) Vec2      { return Vec2{v.X - o.X, v.Y - o.Y} }
func (v Vec2) Scale(f float64) Vec2 { return Vec2{v.X * f, v.Y * f} }
func (v Vec2) Len() float64         { return math.Hypot(v.X, v.Y) }
func (v Vec2) Angle() float64       { return math.Atan2(v.Y, v.X) }

// FromPolar builds a vector of the given length pointing at angle radians.
func FromPolar(length, angle float64) Vec2 {
	return Vec2{math.Cos(angle) * length, math.Sin(angle) * length}
}
