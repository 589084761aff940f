package main

import (
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"runtime"
	"time"

	"github.com/pkg/profile"
	"github.com/plus3/arkecs/ecs"
	"github.com/plus3/arkecs/internal/config"
	"github.com/plus3/arkecs/internal/logging"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "Path to a TOML config file (default $ARKECS_CONFIG).")
	entityCount := flag.Int("entities", 0, "The initial number of entities to create (overrides stress.entities).")
	ticks := flag.Int("ticks", 0, "Number of ticks to run (overrides stress.ticks).")
	churn := flag.Float64("churn", -1, "Fraction of entities replaced per tick (overrides stress.churn).")
	refresh := flag.String("refresh", "", "Query refresh strategy: incremental or rescan.")
	profileMode := flag.String("profile", "", "Write a cpu or mem profile to the working directory.")
	gcPauseMetrics := flag.Bool("gc-pause-metrics", false, "Enable detailed GC pause metrics in the report.")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *entityCount > 0 {
		cfg.Stress.Entities = *entityCount
	}
	if *ticks > 0 {
		cfg.Stress.Ticks = *ticks
	}
	if *churn >= 0 {
		cfg.Stress.Churn = *churn
	}
	if *refresh != "" {
		cfg.Scheduler.RefreshMode = *refresh
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer log.Sync()

	switch *profileMode {
	case "":
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.Quiet).Stop()
	case "mem":
		defer profile.Start(profile.MemProfile, profile.ProfilePath("."), profile.Quiet).Stop()
	default:
		return fmt.Errorf("unknown profile mode %q", *profileMode)
	}

	report, err := stress(cfg, log)
	if err != nil {
		return err
	}
	report.GCPauseMetrics = *gcPauseMetrics

	fmt.Println("\n\n--- Stress Test Report ---")
	if err := report.Generate(os.Stdout); err != nil {
		return fmt.Errorf("generate report: %w", err)
	}
	fmt.Println("--- End of Report ---")
	return nil
}

func stress(cfg *config.Config, log *zap.Logger) (*Report, error) {
	log.Info("starting ECS stress test",
		zap.Int("entities", cfg.Stress.Entities),
		zap.Int("ticks", cfg.Stress.Ticks),
		zap.Float64("churn", cfg.Stress.Churn),
		zap.String("refresh", cfg.Scheduler.RefreshMode))

	registry := ecs.NewComponentRegistry(ecs.WithPoolCapacity(cfg.Registry.PoolCapacity))
	for _, err := range []error{
		registerErr(ecs.RegisterComponent[Position](registry)),
		registerErr(ecs.RegisterComponent[Velocity](registry)),
		registerErr(ecs.RegisterComponent[Health](registry)),
		registerErr(ecs.RegisterComponent[Tag](registry)),
	} {
		if err != nil {
			return nil, fmt.Errorf("register components: %w", err)
		}
	}
	storage := ecs.NewStorage(registry,
		ecs.WithLogger(log.Named("ecs")),
		ecs.WithInitialCapacity(cfg.Registry.InitialEntities))
	scheduler := ecs.NewScheduler(storage, ecs.WithRefreshMode(cfg.RefreshMode()))

	rng := rand.New(rand.NewPCG(cfg.Particles.Seed, cfg.Particles.Seed+1))
	initial := make([]ecs.Entity, 0, cfg.Stress.Entities)
	for range cfg.Stress.Entities {
		initial = append(initial, spawnRandom(storage, rng))
	}
	log.Info("population complete", zap.Int("entities", storage.Len()))

	churn := newChurnSystem(storage, cfg.Stress.Churn, cfg.Particles.Seed, initial)
	scheduler.Register(&MovementSystem{})
	scheduler.Register(&DecaySystem{})
	scheduler.Register(churn)

	report := &Report{
		Ticks:       cfg.Stress.Ticks,
		Entities:    cfg.Stress.Entities,
		Churn:       cfg.Stress.Churn,
		RefreshMode: cfg.Scheduler.RefreshMode,
		UpdateTime: Stats{
			Samples: make([]time.Duration, 0, cfg.Stress.Ticks),
		},
	}
	runtime.ReadMemStats(&report.MemStatsStart)

	startTime := time.Now()
	dt := cfg.Scheduler.TickRate.Seconds()
	for range cfg.Stress.Ticks {
		updateStart := time.Now()
		scheduler.Once(dt)
		report.UpdateTime.Samples = append(report.UpdateTime.Samples, time.Since(updateStart))
	}

	report.TotalTime = time.Since(startTime)
	report.UpdateTime.Finalize()
	runtime.ReadMemStats(&report.MemStatsEnd)
	report.Created = churn.Created
	report.Destroyed = churn.Destroyed
	report.Storage = storage.CollectStats()
	report.Scheduler = scheduler.GetStats()

	log.Info("simulation finished", zap.Duration("elapsed", report.TotalTime))
	return report, nil
}

func registerErr(_ ecs.ComponentId, err error) error {
	return err
}
