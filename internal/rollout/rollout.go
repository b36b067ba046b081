package rollout

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"lingotask/internal/catalog"
	"lingotask/internal/env"
	"lingotask/internal/model"
	"lingotask/internal/sim"
	"lingotask/internal/storage"
)

// Robot is the name recorded for the kinematic arm.
const Robot = "panda"

var ErrInvalidOptions = errors.New("invalid rollout options")

// Home is where the end effector waits between episodes.
var Home = sim.Vec3{0, 0, 0.3}

// Runner drives a LanguageEnv over the kinematic scene with a scripted
// policy that handles the described object, or with probability
// MistakeRate one of the distractors.
type Runner struct {
	env         *env.LanguageEnv
	scene       *sim.Scene
	arm         *sim.Arm
	rng         *rand.Rand
	mistakeRate float64
	log         *zap.Logger
	now         func() time.Time
}

type Option func(*Runner)

func WithLogger(log *zap.Logger) Option {
	return func(r *Runner) {
		if log != nil {
			r.log = log
		}
	}
}

func WithMistakeRate(rate float64) Option {
	return func(r *Runner) { r.mistakeRate = rate }
}

func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

func NewRunner(cfg env.Config, opts ...Option) (*Runner, error) {
	scene := sim.NewScene()
	r := &Runner{
		scene: scene,
		arm:   scene.NewArm(Robot, Home),
		log:   zap.NewNop(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.mistakeRate < 0 || r.mistakeRate > 1 {
		return nil, fmt.Errorf("%w: mistake rate %v outside [0,1]", ErrInvalidOptions, r.mistakeRate)
	}

	e, err := env.New(cfg, scene, r.arm, env.WithLogger(r.log))
	if err != nil {
		return nil, err
	}
	r.env = e
	r.Seed(0)
	return r, nil
}

func (r *Runner) Env() *env.LanguageEnv { return r.env }

// Seed reseeds both the environment and the policy.
func (r *Runner) Seed(seed int64) {
	r.env.Seed(seed)
	r.rng = rand.New(rand.NewSource(seed + 1))
}

// Result is a finished run in persisted form.
type Result struct {
	Run      model.RunRecord
	Episodes []model.EpisodeRecord
	Metrics  model.MetricsSnapshot
}

// Run plays the given number of episodes. An empty runID gets a fresh one.
func (r *Runner) Run(ctx context.Context, runID string, seed int64, episodes int) (Result, error) {
	if episodes < 1 {
		return Result{}, fmt.Errorf("%w: episodes must be positive, got %d", ErrInvalidOptions, episodes)
	}
	if runID == "" {
		runID = uuid.NewString()
	}
	r.Seed(seed)

	res := Result{
		Run: model.RunRecord{
			VersionedRecord: storage.CurrentVersion(),
			ID:              runID,
			Seed:            seed,
			Settings:        Settings(r.env.Config()),
			Episodes:        episodes,
			CreatedAt:       r.now().UTC().Format(time.RFC3339Nano),
		},
		Episodes: make([]model.EpisodeRecord, 0, episodes),
	}
	for i := 0; i < episodes; i++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		ep, err := r.Episode(ctx, runID, i)
		if err != nil {
			return Result{}, fmt.Errorf("episode %d: %w", i, err)
		}
		res.Episodes = append(res.Episodes, ep)
	}
	res.Metrics = model.MetricsSnapshot{
		VersionedRecord: storage.CurrentVersion(),
		RunID:           runID,
		Values:          r.env.Metrics(),
	}
	r.log.Info("rollout finished",
		zap.String("run_id", runID),
		zap.Int("episodes", episodes),
		zap.Float64("vocab_discovery_rate", res.Metrics.Values["vocab_discovery_rate"]),
	)
	return res, nil
}

// Episode resets the environment and steps it until done.
func (r *Runner) Episode(ctx context.Context, runID string, index int) (model.EpisodeRecord, error) {
	r.arm.Release()
	r.arm.MoveTo(Home)
	if _, err := r.env.Reset(ctx); err != nil {
		return model.EpisodeRecord{}, err
	}
	t := r.env.Task()

	ep := model.EpisodeRecord{
		VersionedRecord: storage.CurrentVersion(),
		ID:              EpisodeID(runID, index),
		RunID:           runID,
		Index:           index,
		Goal:            t.Goal(),
		GoalIndex:       t.GoalIndex(),
		Selection:       t.Selection(),
	}

	target := r.pickTarget()
	actions, err := r.planFor(target)
	if err != nil {
		return model.EpisodeRecord{}, err
	}
	r.log.Debug("episode started",
		zap.Int("index", index),
		zap.String("goal", ep.Goal),
		zap.Bool("mistake", target != t.GoalIndex()),
	)

	for {
		if len(actions) > 0 {
			actions[0](r.arm)
			actions = actions[1:]
		}
		step, err := r.env.Step(ctx)
		if err != nil {
			return model.EpisodeRecord{}, err
		}
		r.scene.Settle()
		ep.Steps++
		ep.Return += step.Reward

		if step.Repaired && target != t.GoalIndex() {
			// Feedback names the right object; start over on it.
			r.arm.Release()
			target = t.GoalIndex()
			if actions, err = r.planFor(target); err != nil {
				return model.EpisodeRecord{}, err
			}
		}
		if step.Done {
			ep.Success = step.Success
			ep.Hindsight = step.Hindsight
			ep.Timeout = step.Timeout
			break
		}
	}
	ep.HindsightInstruction = t.HindsightInstruction()
	ep.Repaired = t.Repaired()
	return ep, nil
}

func (r *Runner) pickTarget() int {
	t := r.env.Task()
	goal := t.GoalIndex()
	if r.rng.Float64() >= r.mistakeRate {
		return goal
	}
	var others []int
	for _, idx := range t.Selection() {
		if idx != goal {
			others = append(others, idx)
		}
	}
	if len(others) == 0 {
		return goal
	}
	return others[r.rng.Intn(len(others))]
}

func (r *Runner) planFor(target int) ([]action, error) {
	pos, ok := r.env.Task().InitialPosition(target)
	if !ok {
		return nil, fmt.Errorf("object %d was not placed", target)
	}
	return plan(r.env.Config().Task.Kind, pos), nil
}

// EpisodeID derives a stable id from the run id and the episode index.
func EpisodeID(runID string, index int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("lingotask:%s:%d", runID, index))).String()
}

// Settings flattens an environment configuration into its persisted form.
func Settings(cfg env.Config) model.TaskSettings {
	t := cfg.Task
	layout := t.Catalog.Layout
	if layout == "" {
		layout = catalog.LayoutProduct
	}
	return model.TaskSettings{
		Robot:                Robot,
		Kind:                 string(t.Kind),
		Mode:                 t.Catalog.Mode(),
		Layout:               string(layout),
		NumObj:               t.NumObj,
		ObjXYRange:           t.ObjXYRange,
		ObjectSize:           t.ObjectSize,
		RewardType:           string(t.RewardType),
		UseHindsight:         t.UseHindsight,
		HindsightProbability: t.HindsightProbability,
		UseRepairs:           t.UseRepairs,
		UseBase:              t.UseBase,
		UseSynonyms:          t.UseSynonyms,
		MinGoalHeight:        t.MinGoalHeight,
		MaxGoalHeight:        t.MaxGoalHeight,
		MaxEpisodeSteps:      cfg.MaxEpisodeSteps,
		ObsType:              string(cfg.ObsType),
	}
}
