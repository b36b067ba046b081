package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"lingotask/internal/env"
	"lingotask/internal/task"
)

func clearEnv(t *testing.T) {
	t.Setenv("LINGOTASK_STORE", "")
	t.Setenv("LINGOTASK_DB_PATH", "")
	t.Setenv("LINGOTASK_LOG_LEVEL", "")
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	envCfg, err := cfg.EnvConfig()
	require.NoError(t, err)
	require.Equal(t, env.DefaultConfig(task.KindReach), envCfg)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "lingotask.yaml")

	cfg := DefaultConfig()
	cfg.Seed = 11
	cfg.Task.Kind = "lift"
	cfg.Task.Mode = "colorshape"
	cfg.Task.UseRepairs = true
	cfg.Store.Kind = "sqlite"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, loaded)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), cfg)
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "partial.yaml")
	require.NoError(t, os.WriteFile(path, []byte("seed: 5\ntask:\n  kind: push\n  num_obj: 3\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.EqualValues(t, 5, cfg.Seed)
	require.Equal(t, "push", cfg.Task.Kind)
	require.Equal(t, 3, cfg.Task.NumObj)
	require.Equal(t, "color", cfg.Task.Mode)
	require.True(t, cfg.Task.UseSynonyms)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("task: [unclosed\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LINGOTASK_STORE", "sqlite")
	t.Setenv("LINGOTASK_DB_PATH", "/tmp/override.db")
	t.Setenv("LINGOTASK_LOG_LEVEL", "debug")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.Equal(t, "sqlite", cfg.Store.Kind)
	require.Equal(t, "/tmp/override.db", cfg.Store.DBPath)
	require.Equal(t, "debug", cfg.Logging.Level)
}

func TestEnvIDOverridesTaskFields(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnvID = "PandaNLGrasp3ColorShapePixelEgoHI-v0"
	cfg.Task.MaxEpisodeSteps = 20

	envCfg, err := cfg.EnvConfig()
	require.NoError(t, err)
	require.Equal(t, task.KindGrasp, envCfg.Task.Kind)
	require.Equal(t, 3, envCfg.Task.NumObj)
	require.True(t, envCfg.Task.Catalog.ShapeMode)
	require.True(t, envCfg.Task.UseHindsight)
	require.Equal(t, env.ObsPixel, envCfg.ObsType)
	require.Equal(t, 20, envCfg.MaxEpisodeSteps)
	require.LessOrEqual(t, envCfg.Task.MaxGoalHeight, task.GraspMaxGoalHeight)
}

func TestGoalEnvIDKeepsTaskSection(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnvID = "PandaReachDense-v0"
	cfg.Task.MaxEpisodeSteps = 7

	envCfg, err := cfg.EnvConfig()
	require.NoError(t, err)
	require.Equal(t, 7, envCfg.MaxEpisodeSteps)
	require.Equal(t, task.KindReach, envCfg.Task.Kind)
}

func TestKindAliases(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Task.Kind = "NL_Lift"
	envCfg, err := cfg.EnvConfig()
	require.NoError(t, err)
	require.Equal(t, task.KindLift, envCfg.Task.Kind)
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"unknown kind":        func(c *Config) { c.Task.Kind = "stack" },
		"unknown layout":      func(c *Config) { c.Task.Layout = "spiral" },
		"unknown obs":         func(c *Config) { c.Task.ObsType = "lidar" },
		"unknown reward":      func(c *Config) { c.Task.RewardType = "shaped" },
		"no objects":          func(c *Config) { c.Task.NumObj = 0 },
		"no templates":        func(c *Config) { c.Task.UseBase, c.Task.UseSynonyms = false, false },
		"zero steps":          func(c *Config) { c.Task.MaxEpisodeSteps = 0 },
		"bad probability":     func(c *Config) { c.Task.HindsightProbability = 1.5 },
		"bad env id":          func(c *Config) { c.EnvID = "CartPole-v1" },
		"unknown store":       func(c *Config) { c.Store.Kind = "redis" },
		"sqlite without path": func(c *Config) { c.Store.Kind, c.Store.DBPath = "sqlite", "" },
		"bad log level":       func(c *Config) { c.Logging.Level = "loud" },
		"bad log format":      func(c *Config) { c.Logging.Format = "xml" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			require.True(t, errors.Is(err, ErrInvalid), "expected ErrInvalid, got %v", err)
		})
	}
}
