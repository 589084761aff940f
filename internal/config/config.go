package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/plus3/arkecs/ecs"
)

// EnvPath names the environment variable consulted when no config path is given.
const EnvPath = "ARKECS_CONFIG"

type Config struct {
	Registry  RegistryConfig  `toml:"registry"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Logging   LoggingConfig   `toml:"logging"`
	Particles ParticlesConfig `toml:"particles"`
	Console   ConsoleConfig   `toml:"console"`
	Stress    StressConfig    `toml:"stress"`
}

type RegistryConfig struct {
	PoolCapacity    int `toml:"pool_capacity"`    // 0 = unbounded
	InitialEntities int `toml:"initial_entities"` // entity table preallocation
}

type SchedulerConfig struct {
	TickRate    time.Duration `toml:"tick_rate"`
	RefreshMode string        `toml:"refresh_mode"` // "incremental" or "rescan"
	InboxSize   int           `toml:"inbox_size"`
	MaxTicks    int           `toml:"max_ticks"` // 0 = run until interrupted
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

type ParticlesConfig struct {
	Seed     uint64 `toml:"seed"`
	Scene    string `toml:"scene"`  // .json or .yaml scene file, optional
	Script   string `toml:"script"` // Lua script attached to every emitter, optional
	Emitters int    `toml:"emitters"`
	Count    int    `toml:"count"`
}

type ConsoleConfig struct {
	Enabled bool `toml:"enabled"`
}

type StressConfig struct {
	Entities int     `toml:"entities"`
	Ticks    int     `toml:"ticks"`
	Churn    float64 `toml:"churn"` // fraction of entities destroyed and recreated per tick
}

// Load reads the TOML file at path over the defaults. An empty path falls back
// to $ARKECS_CONFIG, and to the defaults alone if that is unset too.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvPath)
	}
	cfg := defaults()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects settings the runtime cannot honour.
func (c *Config) Validate() error {
	if _, ok := ecs.ParseRefreshMode(c.Scheduler.RefreshMode); !ok {
		return fmt.Errorf("scheduler.refresh_mode %q: want incremental or rescan", c.Scheduler.RefreshMode)
	}
	if c.Scheduler.TickRate <= 0 {
		return fmt.Errorf("scheduler.tick_rate must be positive, got %s", c.Scheduler.TickRate)
	}
	if c.Registry.PoolCapacity < 0 {
		return fmt.Errorf("registry.pool_capacity must not be negative")
	}
	if c.Stress.Churn < 0 || c.Stress.Churn > 1 {
		return fmt.Errorf("stress.churn %v outside 0..1", c.Stress.Churn)
	}
	return nil
}

// RefreshMode returns the parsed scheduler.refresh_mode.
func (c *Config) RefreshMode() ecs.RefreshMode {
	mode, _ := ecs.ParseRefreshMode(c.Scheduler.RefreshMode)
	return mode
}

func defaults() *Config {
	return &Config{
		Registry: RegistryConfig{
			PoolCapacity:    0,
			InitialEntities: 1024,
		},
		Scheduler: SchedulerConfig{
			TickRate:    16 * time.Millisecond,
			RefreshMode: "incremental",
			InboxSize:   64,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Particles: ParticlesConfig{
			Seed:     1,
			Emitters: 3,
			Count:    1000,
		},
		Console: ConsoleConfig{
			Enabled: true,
		},
		Stress: StressConfig{
			Entities: 10000,
			Ticks:    500,
			Churn:    0.05,
		},
	}
}
