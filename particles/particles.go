// Package particles is a point-sprite particle emitter built on the ecs package.
// Each entity with a Particles component owns one contiguous span of particle
// state inside the System's buffers.
package particles

import (
	"math"
	"time"

	"github.com/plus3/arkecs/ecs"
	"github.com/plus3/arkecs/ecs/serialize"
)

// DistributionType selects how a Distribution draws numbers.
type DistributionType uint8

const (
	// Uniform draws from [Values[0], Values[1]].
	Uniform DistributionType = iota
	// Normal draws with mean Values[0] and standard deviation Values[1].
	Normal
)

func (t DistributionType) String() string {
	switch t {
	case Uniform:
		return "uniform"
	case Normal:
		return "normal"
	}
	return "unknown"
}

func init() {
	serialize.RegisterEnum[DistributionType]("uniform", "normal")
}

type Distribution struct {
	Type   DistributionType
	Values [2]float64
}

// ColorRange bounds each RGB channel of freshly spawned particles. Alpha is
// driven by remaining lifetime.
type ColorRange struct {
	Lo, Hi ecs.Color
}

// Particles is the emitter component.
type Particles struct {
	Count     int
	Emitter   Vec2
	Spawn     bool
	Fireworks bool
	// LifeTime caps particle lifetime and is the reference for alpha fading.
	LifeTime time.Duration
	// AngleDistribution is in radians.
	AngleDistribution Distribution
	SpeedDistribution Distribution
	// LifeTimeDistribution is in seconds for Normal and milliseconds for Uniform.
	LifeTimeDistribution Distribution
	Colors               ColorRange
}

// NewParticles returns an emitter spraying count white particles in every direction.
func NewParticles(count int) Particles {
	return Particles{
		Count:                count,
		Spawn:                true,
		LifeTime:             time.Second,
		AngleDistribution:    Distribution{Type: Uniform, Values: [2]float64{0, 2 * math.Pi}},
		SpeedDistribution:    Distribution{Type: Uniform, Values: [2]float64{0, 100}},
		LifeTimeDistribution: Distribution{Type: Uniform, Values: [2]float64{0, 1000}},
		Colors: ColorRange{
			Lo: ecs.Color{R: 255, G: 255, B: 255, A: 255},
			Hi: ecs.Color{R: 255, G: 255, B: 255, A: 255},
		},
	}
}

// Gravity is a storage singleton. With Universal set every particle accelerates
// by Vector; otherwise particles fall toward Point with strength Magnitude.
type Gravity struct {
	Universal bool
	Vector    Vec2
	Point     Vec2
	Magnitude float64
}
