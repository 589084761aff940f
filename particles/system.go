package particles

import (
	"math"
	"time"

	"github.com/plus3/arkecs/ecs"
	"go.uber.org/zap"
)

// Emitter is the query view over particle emitters.
type Emitter struct {
	*Particles
}

type span struct {
	entity ecs.Entity
	start  int
	count  int
}

// maxLifeTimeDraws bounds the rejection sampling of normally distributed lifetimes.
const maxLifeTimeDraws = 16

// System simulates every emitter. Particle state lives in flat buffers, one span
// per emitter in ascending entity order, so the hot loop never chases pointers.
type System struct {
	Emitters ecs.Query[Emitter]
	Gravity  ecs.Singleton[Gravity]

	rng        *Random
	log        *zap.Logger
	version    uint64
	spans      []span
	vertices   []ecs.Vertex
	velocities []Vec2
	lifeTimes  []time.Duration
}

// NewSystem creates a System whose random draws derive from seed.
func NewSystem(seed uint64, log *zap.Logger) *System {
	if log == nil {
		log = zap.NewNop()
	}
	return &System{rng: NewRandom(seed), log: log}
}

// Execute advances every emitter by frame.DeltaTime.
func (s *System) Execute(frame *ecs.UpdateFrame) {
	s.layout()

	var gravity Gravity
	if g := s.Gravity.Get(); g != nil {
		gravity = *g
	}

	for _, sp := range s.spans {
		view := s.Emitters.Get(sp.entity)
		if view == nil {
			continue
		}
		end := sp.start + sp.count
		s.updateBatch(view.Particles, &gravity, frame.DeltaTime,
			s.vertices[sp.start:end], s.velocities[sp.start:end], s.lifeTimes[sp.start:end])
	}
}

// Render draws each emitter's particles as points.
func (s *System) Render(target ecs.DrawTarget) {
	for _, sp := range s.spans {
		if sp.count == 0 || !sp.entity.Valid() {
			continue
		}
		target.DrawPoints(s.vertices[sp.start : sp.start+sp.count])
	}
}

// Alive counts particles with lifetime left.
func (s *System) Alive() int {
	n := 0
	for _, lt := range s.lifeTimes {
		if lt > 0 {
			n++
		}
	}
	return n
}

// Len returns the total number of particle slots across all emitters.
func (s *System) Len() int {
	return len(s.lifeTimes)
}

// layout rebuilds the spans when the set of emitters or any emitter's Count has
// changed. Surviving emitters keep their particles.
func (s *System) layout() {
	if s.rng == nil {
		s.rng = NewRandom(1)
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}

	entities := s.Emitters.Entities()
	stale := s.version != s.Emitters.Version() || len(entities) != len(s.spans)
	if !stale {
		for _, sp := range s.spans {
			if view := s.Emitters.Get(sp.entity); view != nil && view.Count != sp.count {
				stale = true
				break
			}
		}
	}
	if !stale {
		return
	}

	old := make(map[ecs.EntityId]span, len(s.spans))
	for _, sp := range s.spans {
		old[sp.entity.Id()] = sp
	}

	spans := make([]span, 0, len(entities))
	total := 0
	for _, e := range entities {
		view := s.Emitters.Get(e)
		if view == nil {
			continue
		}
		count := max(view.Count, 0)
		spans = append(spans, span{entity: e, start: total, count: count})
		total += count
	}

	vertices := make([]ecs.Vertex, total)
	velocities := make([]Vec2, total)
	lifeTimes := make([]time.Duration, total)
	for _, sp := range spans {
		prev, ok := old[sp.entity.Id()]
		if !ok {
			continue
		}
		n := min(prev.count, sp.count)
		copy(vertices[sp.start:sp.start+n], s.vertices[prev.start:prev.start+n])
		copy(velocities[sp.start:sp.start+n], s.velocities[prev.start:prev.start+n])
		copy(lifeTimes[sp.start:sp.start+n], s.lifeTimes[prev.start:prev.start+n])
	}

	s.spans = spans
	s.vertices = vertices
	s.velocities = velocities
	s.lifeTimes = lifeTimes
	s.version = s.Emitters.Version()
	s.log.Debug("particle buffers laid out", zap.Int("emitters", len(spans)), zap.Int("particles", total))
}

func (s *System) updateBatch(ps *Particles, gravity *Gravity, dt float64, vertices []ecs.Vertex, velocities []Vec2, lifeTimes []time.Duration) {
	step := time.Duration(dt * float64(time.Second))
	for i := range vertices {
		lifeTimes[i] -= step
		if lifeTimes[i] > 0 {
			pos := Vec2{vertices[i].X, vertices[i].Y}
			if gravity.Universal {
				velocities[i] = velocities[i].Add(gravity.Vector.Scale(dt))
			} else if gravity.Magnitude != 0 {
				r := gravity.Point.Sub(pos)
				if dist := r.Len(); dist > 0 {
					g := r.Scale(1 / (dist * dist))
					velocities[i] = velocities[i].Add(g.Scale(gravity.Magnitude * 1000 * dt))
				}
			}
			pos = pos.Add(velocities[i].Scale(dt))
			vertices[i].X, vertices[i].Y = pos.X, pos.Y
			vertices[i].Color.A = fade(lifeTimes[i], ps.LifeTime)
		} else if ps.Spawn {
			s.respawn(ps, &vertices[i], &velocities[i], &lifeTimes[i])
		} else {
			lifeTimes[i] = 0
			vertices[i].Color.A = 0
		}
	}
}

func (s *System) respawn(ps *Particles, vertex *ecs.Vertex, velocity *Vec2, lifeTime *time.Duration) {
	angle := s.rng.Number(ps.AngleDistribution)
	speed := s.rng.Number(ps.SpeedDistribution)

	vertex.X, vertex.Y = ps.Emitter.X, ps.Emitter.Y
	vertex.Color = s.rng.Color(ps.Colors)
	*velocity = FromPolar(speed, angle)

	if ps.Fireworks {
		*lifeTime = ps.LifeTime
		return
	}

	t := math.Abs(s.rng.Number(ps.LifeTimeDistribution))
	if ps.LifeTimeDistribution.Type == Normal {
		limit := ps.LifeTime.Seconds()
		for i := 0; t > limit && i < maxLifeTimeDraws; i++ {
			t = math.Abs(s.rng.Number(ps.LifeTimeDistribution))
		}
		*lifeTime = min(time.Duration(t*float64(time.Second)), ps.LifeTime)
		return
	}
	*lifeTime = time.Duration(t) * time.Millisecond
}

func fade(left, total time.Duration) uint8 {
	if total <= 0 {
		return 255
	}
	ratio := float64(left) / float64(total)
	return uint8(math.Max(0, math.Min(1, ratio)) * 255)
}
