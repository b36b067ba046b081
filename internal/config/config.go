package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"lingotask/internal/catalog"
	"lingotask/internal/env"
	"lingotask/internal/storage"
	"lingotask/internal/task"
	"lingotask/internal/taskid"
)

var ErrInvalid = errors.New("invalid configuration")

// Config is the on-disk configuration of lingotaskctl.
type Config struct {
	EnvID        string        `yaml:"env_id"`
	Seed         int64         `yaml:"seed"`
	Task         TaskConfig    `yaml:"task"`
	Store        StoreConfig   `yaml:"store"`
	ArtifactsDir string        `yaml:"artifacts_dir"`
	Logging      LoggingConfig `yaml:"logging"`
}

// TaskConfig mirrors task.Config plus the environment step limit and
// observation type.
type TaskConfig struct {
	Kind                 string  `yaml:"kind"`
	Mode                 string  `yaml:"mode"` // any combination of color, shape, size and weight
	Layout               string  `yaml:"layout"`
	NumObj               int     `yaml:"num_obj"`
	ObjXYRange           float64 `yaml:"obj_xy_range"`
	ObjectSize           float64 `yaml:"object_size"`
	RewardType           string  `yaml:"reward_type"`
	UseHindsight         bool    `yaml:"use_hindsight_instructions"`
	HindsightProbability float64 `yaml:"hindsight_probability"`
	UseRepairs           bool    `yaml:"use_repairs"`
	UseBase              bool    `yaml:"use_base"`
	UseSynonyms          bool    `yaml:"use_synonyms"`
	MinGoalHeight        float64 `yaml:"min_goal_height"`
	MaxGoalHeight        float64 `yaml:"max_goal_height"` // grasp forces 0.01
	MaxEpisodeSteps      int     `yaml:"max_episode_steps"`
	ObsType              string  `yaml:"obs_type"`
}

type StoreConfig struct {
	Kind   string `yaml:"kind"` // memory, sqlite
	DBPath string `yaml:"db_path"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// DefaultConfig returns the two-object color reach task with an in-memory store.
func DefaultConfig() *Config {
	return &Config{
		Task: TaskConfig{
			Kind:                 string(task.KindReach),
			Mode:                 "color",
			Layout:               string(catalog.LayoutProduct),
			NumObj:               2,
			ObjXYRange:           0.3,
			ObjectSize:           0.04,
			RewardType:           string(task.RewardSparse),
			HindsightProbability: task.DefaultHindsightProbability,
			UseBase:              true,
			UseSynonyms:          true,
			MaxGoalHeight:        0.1,
			MaxEpisodeSteps:      env.DefaultMaxEpisodeSteps,
			ObsType:              string(env.ObsState),
		},
		Store: StoreConfig{
			Kind:   storage.DefaultStoreKind(),
			DBPath: "lingotask.db",
		},
		ArtifactsDir: "runs",
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads a YAML configuration on top of the defaults. A missing file
// yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration as YAML, creating parent directories.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if kind := os.Getenv("LINGOTASK_STORE"); kind != "" {
		c.Store.Kind = kind
	}
	if path := os.Getenv("LINGOTASK_DB_PATH"); path != "" {
		c.Store.DBPath = path
	}
	if level := os.Getenv("LINGOTASK_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// Validate checks the whole configuration, including the task it resolves to.
func (c *Config) Validate() error {
	switch c.Store.Kind {
	case "", storage.KindMemory:
	case storage.KindSQLite:
		if c.Store.DBPath == "" {
			return fmt.Errorf("%w: sqlite store requires db_path", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown store kind %q", ErrInvalid, c.Store.Kind)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: unknown log level %q", ErrInvalid, c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "json", "console":
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrInvalid, c.Logging.Format)
	}

	envCfg, err := c.EnvConfig()
	if err != nil {
		return err
	}
	if envCfg.MaxEpisodeSteps < 1 {
		return fmt.Errorf("%w: max_episode_steps must be positive, got %d", ErrInvalid, envCfg.MaxEpisodeSteps)
	}
	if err := envCfg.Task.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// EnvConfig resolves the task section, then applies env_id when set. A
// goal-conditioned env_id is left to the caller; only max_episode_steps of
// the task section applies to it.
func (c *Config) EnvConfig() (env.Config, error) {
	kind, err := task.ParseKind(taskid.NormalizeKind(c.Task.Kind))
	if err != nil {
		return env.Config{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	layout, err := catalog.ParseLayout(c.Task.Layout)
	if err != nil {
		return env.Config{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	obs, err := env.ParseObsType(c.Task.ObsType)
	if err != nil {
		return env.Config{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	reward := task.RewardType(strings.ToLower(c.Task.RewardType))
	if reward == "" {
		reward = task.RewardSparse
	}

	opts := catalog.ParseMode(c.Task.Mode)
	opts.Layout = layout

	cfg := env.Config{
		Task: task.Config{
			Kind:                 kind,
			Catalog:              opts,
			NumObj:               c.Task.NumObj,
			ObjXYRange:           c.Task.ObjXYRange,
			ObjectSize:           c.Task.ObjectSize,
			RewardType:           reward,
			UseHindsight:         c.Task.UseHindsight,
			HindsightProbability: c.Task.HindsightProbability,
			UseRepairs:           c.Task.UseRepairs,
			UseBase:              c.Task.UseBase,
			UseSynonyms:          c.Task.UseSynonyms,
			MinGoalHeight:        c.Task.MinGoalHeight,
			MaxGoalHeight:        c.Task.MaxGoalHeight,
		},
		ObsType:         obs,
		MaxEpisodeSteps: c.Task.MaxEpisodeSteps,
	}

	if c.EnvID != "" && !taskid.IsGoal(c.EnvID) {
		id, err := taskid.Parse(c.EnvID)
		if err != nil {
			return env.Config{}, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		id.Apply(&cfg)
	}
	if cfg.Task.Kind == task.KindGrasp && cfg.Task.MaxGoalHeight > task.GraspMaxGoalHeight {
		cfg.Task.MaxGoalHeight = task.GraspMaxGoalHeight
		cfg.Task.MinGoalHeight = min(cfg.Task.MinGoalHeight, task.GraspMaxGoalHeight)
	}
	return cfg, nil
}
