package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/plus3/arkecs/ecs"
	"github.com/plus3/arkecs/ecs/luascript"
	"github.com/plus3/arkecs/ecs/serialize"
	"github.com/plus3/arkecs/internal/config"
	"github.com/plus3/arkecs/particles"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv(config.EnvPath, "")
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Particles.Count = 50
	return cfg
}

func TestDefaultEmitters(t *testing.T) {
	cfg := testConfig(t)
	sim, err := newSimulation(cfg, zap.NewNop())
	require.NoError(t, err)
	require.Equal(t, 3, sim.storage.Len())

	require.NoError(t, sim.run(context.Background(), time.Millisecond, 30))
	assert.Equal(t, uint64(30), sim.ticks)
	assert.Equal(t, 150, sim.system.Len())
	assert.Positive(t, sim.target.points)
	assert.Positive(t, sim.target.visible)

	fountain, ok := sim.storage.LookupByName("emitter_0")
	require.True(t, ok)
	p := ecs.MustGetComponent[particles.Particles](fountain)
	assert.NotEqual(t, particles.Vec2{X: 200, Y: 300}, p.Emitter, "the fountain follows the cursor")
}

func TestSceneAndLuaScript(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t)

	src, err := newSimulation(cfg, zap.NewNop())
	require.NoError(t, err)
	scene, err := serialize.SaveScene(src.storage)
	require.NoError(t, err)
	cfg.Particles.Scene = filepath.Join(dir, "scene.yaml")
	require.NoError(t, serialize.WriteSceneFile(cfg.Particles.Scene, scene))

	cfg.Particles.Script = filepath.Join(dir, "grow.lua")
	require.NoError(t, os.WriteFile(cfg.Particles.Script, []byte(`
function update(dt)
  set("particles.Particles", "Count", get("particles.Particles", "Count") + 1)
end
`), 0o644))

	sim, err := newSimulation(cfg, zap.NewNop())
	require.NoError(t, err)
	require.Equal(t, 3, sim.storage.Len())

	e, ok := sim.storage.LookupByName("emitter_1")
	require.True(t, ok)
	assert.True(t, ecs.MustGetComponent[particles.Particles](e).Fireworks)

	_, ok = ecs.GetScript[*luascript.Script](e)
	assert.True(t, ok)

	sim.tick(0.016)
	sim.tick(0.016)
	assert.Equal(t, 52, ecs.MustGetComponent[particles.Particles](e).Count)
	assert.Equal(t, 3*52, sim.system.Len())
}

func TestRunStopsOnCancel(t *testing.T) {
	sim, err := newSimulation(testConfig(t), zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, sim.run(ctx, time.Hour, 0))
	assert.Zero(t, sim.ticks)
}

func TestColorCommandThroughInbox(t *testing.T) {
	sim, err := newSimulation(testConfig(t), zap.NewNop())
	require.NoError(t, err)

	cmd, err := particles.ParseColorCommand("emitter_2 0 0 10 20 30 40")
	require.NoError(t, err)
	require.NoError(t, sim.scheduler.Inbox().TryPost(cmd.Apply))
	sim.tick(0.016)

	e, _ := sim.storage.LookupByName("emitter_2")
	assert.Equal(t, cmd.Colors, ecs.MustGetComponent[particles.Particles](e).Colors)
}
