package particles

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/plus3/arkecs/ecs"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

func emitterOf(b *ecs.ScriptBase) *Particles {
	return ecs.GetComponent[Particles](b.Entity())
}

// FollowCursor moves the emitter to the mouse position.
type FollowCursor struct {
	ecs.ScriptBase
}

func (f *FollowCursor) HandleInput(ev ecs.InputEvent) {
	if ev.Kind != ecs.MouseMove {
		return
	}
	if p := emitterOf(&f.ScriptBase); p != nil {
		p.Emitter = Vec2{ev.X, ev.Y}
	}
}

// TrailingEffect sprays particles opposite to the cursor's motion, faster the
// faster the cursor moves. It only emits while the cursor is moving.
type TrailingEffect struct {
	ecs.ScriptBase
	Disabled bool
	cursor   Vec2
	prev     Vec2
}

func (t *TrailingEffect) HandleInput(ev ecs.InputEvent) {
	if ev.Kind == ecs.MouseMove {
		t.cursor = Vec2{ev.X, ev.Y}
	}
}

func (t *TrailingEffect) Update(dt float64) {
	if t.Disabled {
		return
	}
	p := emitterOf(&t.ScriptBase)
	if p == nil {
		return
	}
	back := t.prev.Sub(t.cursor)
	speed, angle := back.Len(), back.Angle()
	p.Spawn = speed != 0
	speed = min(speed, 5)
	p.AngleDistribution.Values = [2]float64{angle - math.Pi/6, angle + math.Pi/6}
	p.SpeedDistribution.Values = [2]float64{5 * speed, 20 * speed}
	t.prev = t.cursor
}

// SpawnLater holds the emitter off for Delay, then turns spawning on and
// removes itself.
type SpawnLater struct {
	ecs.ScriptBase
	Delay   time.Duration
	elapsed time.Duration
}

func (s *SpawnLater) Init() {
	if p := emitterOf(&s.ScriptBase); p != nil {
		p.Spawn = false
	}
}

func (s *SpawnLater) Update(dt float64) {
	s.elapsed += time.Duration(dt * float64(time.Second))
	if s.elapsed < s.Delay {
		return
	}
	if p := emitterOf(&s.ScriptBase); p != nil {
		p.Spawn = true
	}
	s.Remove()
}

// MouseButton picks which button a click script reacts to.
type MouseButton uint8

const (
	LeftButton MouseButton = iota
	RightButton
)

func (b MouseButton) press() ecs.InputKind {
	if b == RightButton {
		return ecs.MouseRightPress
	}
	return ecs.MouseLeftPress
}

func (b MouseButton) release() ecs.InputKind {
	if b == RightButton {
		return ecs.MouseRightRelease
	}
	return ecs.MouseLeftRelease
}

// SpawnOnClick emits only while Button is held.
type SpawnOnClick struct {
	ecs.ScriptBase
	Button MouseButton
}

func (s *SpawnOnClick) Init() {
	if p := emitterOf(&s.ScriptBase); p != nil {
		p.Spawn = false
	}
}

func (s *SpawnOnClick) HandleInput(ev ecs.InputEvent) {
	p := emitterOf(&s.ScriptBase)
	if p == nil {
		return
	}
	switch ev.Kind {
	case s.Button.press():
		p.Spawn = true
	case s.Button.release():
		p.Spawn = false
	}
}

// DespawnOnClick pauses the emitter while either mouse button is held.
type DespawnOnClick struct {
	ecs.ScriptBase
}

func (d *DespawnOnClick) HandleInput(ev ecs.InputEvent) {
	p := emitterOf(&d.ScriptBase)
	if p == nil {
		return
	}
	switch ev.Kind {
	case ecs.MouseLeftPress, ecs.MouseRightPress:
		p.Spawn = false
	case ecs.MouseLeftRelease, ecs.MouseRightRelease:
		p.Spawn = true
	}
}

// RecordPath collects cursor positions while the right button is held and
// writes them to File when the script is destroyed.
type RecordPath struct {
	ecs.ScriptBase
	File string

	recording bool
	path      []Vec2
}

func (r *RecordPath) HandleInput(ev ecs.InputEvent) {
	switch ev.Kind {
	case ecs.MouseRightPress:
		r.recording = true
		r.path = append(r.path, Vec2{ev.X, ev.Y})
	case ecs.MouseRightRelease:
		r.recording = false
	case ecs.MouseMove:
		if r.recording {
			r.path = append(r.path, Vec2{ev.X, ev.Y})
		}
	}
}

// Path returns the positions recorded so far.
func (r *RecordPath) Path() []Vec2 {
	return r.path
}

func (r *RecordPath) Destroyed() {
	if err := WritePath(r.File, r.path); err != nil {
		if s := r.Entity().Storage(); s != nil {
			s.Logger().Error("failed to save mouse path", zap.String("file", r.File), zap.Error(err))
		}
	}
}

// PlayPath replays a path written by RecordPath, moving the emitter one point
// per tick and emitting only while the path lasts.
type PlayPath struct {
	ecs.ScriptBase
	File string

	path []Vec2
	next int
}

func (p *PlayPath) Init() {
	path, err := ReadPath(p.File)
	if err != nil {
		p.Entity().Storage().Logger().Error("failed to load mouse path", zap.String("file", p.File), zap.Error(err))
		p.Remove()
		return
	}
	p.path = path
	if ps := emitterOf(&p.ScriptBase); ps != nil {
		ps.Spawn = false
	}
}

func (p *PlayPath) Update(dt float64) {
	ps := emitterOf(&p.ScriptBase)
	if ps == nil {
		return
	}
	if p.next < len(p.path) {
		ps.Spawn = true
		ps.Emitter = p.path[p.next]
		p.next++
		return
	}
	ps.Spawn = false
}

// WritePath stores points as "<n> x0 y0 x1 y1 ...".
func WritePath(file string, path []Vec2) error {
	f, err := os.Create(file)
	if err != nil {
		return eris.Wrapf(err, "create %s", file)
	}
	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "%d", len(path))
	for _, v := range path {
		fmt.Fprintf(w, " %g %g", v.X, v.Y)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return eris.Wrapf(err, "write %s", file)
	}
	if err := f.Close(); err != nil {
		return eris.Wrapf(err, "close %s", file)
	}
	return nil
}

// ReadPath loads points written by WritePath.
func ReadPath(file string) ([]Vec2, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, eris.Wrapf(err, "open %s", file)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var n int
	if _, err := fmt.Fscan(r, &n); err != nil {
		return nil, eris.Wrapf(err, "read point count from %s", file)
	}
	if n < 0 {
		return nil, eris.Errorf("negative point count %d in %s", n, file)
	}
	// the count is untrusted, so the slice grows with the points actually read
	var path []Vec2
	for i := 0; i < n; i++ {
		var p Vec2
		if _, err := fmt.Fscan(r, &p.X, &p.Y); err != nil {
			return nil, eris.Wrapf(err, "read point %d from %s", i, file)
		}
		path = append(path, p)
	}
	return path, nil
}
