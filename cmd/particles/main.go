package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/plus3/arkecs/ecs"
	"github.com/plus3/arkecs/ecs/luascript"
	"github.com/plus3/arkecs/ecs/serialize"
	"github.com/plus3/arkecs/internal/config"
	"github.com/plus3/arkecs/internal/logging"
	"github.com/plus3/arkecs/particles"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "Path to a TOML config file (default $ARKECS_CONFIG).")
	scene := flag.String("scene", "", "Scene file to load instead of the built-in emitters.")
	save := flag.String("save", "", "Write the final scene to this .json or .yaml file.")
	script := flag.String("lua", "", "Lua script attached to every emitter.")
	ticks := flag.Int("ticks", -1, "Stop after this many ticks (0 runs until interrupted).")
	noConsole := flag.Bool("no-console", false, "Do not read colour commands from stdin.")
	colors := flag.String("colors", "", "File of colour commands applied at startup.")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *scene != "" {
		cfg.Particles.Scene = *scene
	}
	if *script != "" {
		cfg.Particles.Script = *script
	}
	if *ticks >= 0 {
		cfg.Scheduler.MaxTicks = *ticks
	}
	if *noConsole {
		cfg.Console.Enabled = false
	}

	log, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sim, err := newSimulation(cfg, log)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	if cfg.Console.Enabled {
		g.Go(func() error {
			log.Info("reading colour commands from stdin", zap.String("format", "[target] r_lo r_hi g_lo g_hi b_lo b_hi"))
			return particles.WatchConsole(gctx, os.Stdin, sim.scheduler.Inbox(), log.Named("console"))
		})
	}
	if *colors != "" {
		g.Go(func() error {
			return particles.WatchColorFile(gctx, *colors, sim.scheduler.Inbox(), log.Named("colors"))
		})
	}
	g.Go(func() error {
		defer cancel()
		return sim.run(gctx, cfg.Scheduler.TickRate, cfg.Scheduler.MaxTicks)
	})

	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("simulation stopped",
		zap.Uint64("ticks", sim.ticks),
		zap.Int("points_drawn", sim.target.points))

	if *save != "" {
		saved, err := serialize.SaveScene(sim.storage)
		if err != nil {
			return fmt.Errorf("save scene: %w", err)
		}
		if err := serialize.WriteSceneFile(*save, saved); err != nil {
			return err
		}
		log.Info("scene saved", zap.String("file", *save), zap.Int("entities", len(saved.Entities)))
	}
	return nil
}

type simulation struct {
	storage   *ecs.Storage
	scheduler *ecs.Scheduler
	system    *particles.System
	target    *countingTarget
	log       *zap.Logger
	ticks     uint64
}

func newSimulation(cfg *config.Config, log *zap.Logger) (*simulation, error) {
	registry := ecs.NewComponentRegistry(ecs.WithPoolCapacity(cfg.Registry.PoolCapacity))
	if _, err := ecs.RegisterComponent[particles.Particles](registry); err != nil {
		return nil, fmt.Errorf("register components: %w", err)
	}
	storage := ecs.NewStorage(registry,
		ecs.WithLogger(log.Named("ecs")),
		ecs.WithInitialCapacity(cfg.Registry.InitialEntities))
	storage.AddSingleton(particles.Gravity{Universal: true, Vector: particles.Vec2{Y: 98}})

	scheduler := ecs.NewScheduler(storage,
		ecs.WithRefreshMode(cfg.RefreshMode()),
		ecs.WithInboxSize(cfg.Scheduler.InboxSize))
	system := particles.NewSystem(cfg.Particles.Seed, log.Named("particles"))
	scheduler.Register(system)

	sim := &simulation{
		storage:   storage,
		scheduler: scheduler,
		system:    system,
		target:    &countingTarget{},
		log:       log,
	}

	var emitters []ecs.Entity
	if cfg.Particles.Scene != "" {
		scene, err := serialize.ReadSceneFile(cfg.Particles.Scene)
		if err != nil {
			return nil, err
		}
		emitters, err = serialize.LoadScene(storage, scene)
		if err != nil {
			return nil, fmt.Errorf("load scene %s: %w", cfg.Particles.Scene, err)
		}
		log.Info("scene loaded", zap.String("file", cfg.Particles.Scene), zap.Int("entities", len(emitters)))
	} else {
		var err error
		emitters, err = spawnDefaultEmitters(storage, cfg.Particles)
		if err != nil {
			return nil, err
		}
	}

	if cfg.Particles.Script != "" {
		for _, e := range emitters {
			sc, err := luascript.NewFromFile(cfg.Particles.Script, luascript.Options{Logger: log.Named("lua")})
			if err != nil {
				return nil, err
			}
			if err := ecs.AddScript(e, sc); err != nil {
				return nil, fmt.Errorf("attach lua script: %w", err)
			}
		}
	}
	return sim, nil
}

// spawnDefaultEmitters builds a cursor-following fountain, a delayed burst and a
// click-driven trail.
func spawnDefaultEmitters(storage *ecs.Storage, cfg config.ParticlesConfig) ([]ecs.Entity, error) {
	var emitters []ecs.Entity
	for i := range cfg.Emitters {
		e := storage.CreateEntity(fmt.Sprintf("emitter_%d", i))
		p := particles.NewParticles(cfg.Count)
		p.Emitter = particles.Vec2{X: float64(200 + 200*i), Y: 300}

		var script ecs.Script
		switch i % 3 {
		case 0:
			p.Colors = particles.ColorRange{Lo: ecs.Color{R: 200, G: 80, A: 255}, Hi: ecs.Color{R: 255, G: 160, B: 40, A: 255}}
			script = &particles.FollowCursor{}
		case 1:
			p.Fireworks = true
			p.LifeTime = 3 * time.Second
			script = &particles.SpawnLater{Delay: 2 * time.Second}
		case 2:
			p.LifeTimeDistribution = particles.Distribution{Type: particles.Normal, Values: [2]float64{0.5, 0.2}}
			script = &particles.TrailingEffect{}
		}
		if _, err := ecs.AddComponent(e, p); err != nil {
			return nil, fmt.Errorf("spawn %s: %w", e.Name(), err)
		}
		if err := ecs.AddScript(e, script); err != nil {
			return nil, fmt.Errorf("spawn %s: %w", e.Name(), err)
		}
		emitters = append(emitters, e)
	}
	return emitters, nil
}

// run ticks until ctx is done or maxTicks have elapsed. A synthetic cursor
// circles the scene so cursor-driven scripts have input without a window.
func (s *simulation) run(ctx context.Context, interval time.Duration, maxTicks int) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now
			s.tick(dt)

			tick := s.ticks
			if tick%120 == 0 {
				s.log.Debug("tick",
					zap.Uint64("tick", tick),
					zap.Int("alive", s.system.Alive()),
					zap.Int("points_drawn", s.target.points))
			}
			if maxTicks > 0 && tick >= uint64(maxTicks) {
				return nil
			}
		}
	}
}

func (s *simulation) tick(dt float64) {
	s.ticks++
	angle := float64(s.ticks) / 30
	s.scheduler.Dispatch(ecs.InputEvent{
		Kind: ecs.MouseMove,
		X:    400 + 150*math.Cos(angle),
		Y:    300 + 150*math.Sin(angle),
	})
	s.scheduler.Once(dt)
	s.scheduler.Render(s.target)
}

// countingTarget stands in for a window: it tallies what would be drawn.
type countingTarget struct {
	batches int
	points  int
	visible int
}

func (t *countingTarget) DrawPoints(points []ecs.Vertex) {
	t.batches++
	t.points += len(points)
	for _, p := range points {
		if p.Color.A > 0 {
			t.visible++
		}
	}
}
