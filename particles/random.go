package particles

import (
	"math/rand/v2"

	"github.com/plus3/arkecs/ecs"
)

// Random draws particle parameters. It is seeded explicitly so runs can be
// replayed.
type Random struct {
	r *rand.Rand
}

func NewRandom(seed uint64) *Random {
	return &Random{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Number draws one value from d.
func (rn *Random) Number(d Distribution) float64 {
	if d.Type == Normal {
		return rn.r.NormFloat64()*d.Values[1] + d.Values[0]
	}
	lo, hi := d.Values[0], d.Values[1]
	if hi < lo {
		lo, hi = hi, lo
	}
	return lo + rn.r.Float64()*(hi-lo)
}

// Color draws each RGB channel uniformly from cr, fully opaque.
func (rn *Random) Color(cr ColorRange) ecs.Color {
	return ecs.Color{
		R: rn.channel(cr.Lo.R, cr.Hi.R),
		G: rn.channel(cr.Lo.G, cr.Hi.G),
		B: rn.channel(cr.Lo.B, cr.Hi.B),
		A: 255,
	}
}

func (rn *Random) channel(lo, hi uint8) uint8 {
	if hi < lo {
		lo, hi = hi, lo
	}
	return lo + uint8(rn.r.IntN(int(hi-lo)+1))
}
