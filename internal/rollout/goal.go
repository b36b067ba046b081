package rollout

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"lingotask/internal/env"
	"lingotask/internal/model"
	"lingotask/internal/sim"
	"lingotask/internal/storage"
	"lingotask/internal/task"
)

// missOffset is how far a mistaken move lands from the goal.
const missOffset = 0.1

// GoalRunner drives a GoalEnv with a scripted policy. With probability
// MistakeRate an episode aims missOffset beside the goal instead.
type GoalRunner struct {
	env         *env.GoalEnv
	scene       *sim.Scene
	arm         *sim.Arm
	rng         *rand.Rand
	mistakeRate float64
	log         *zap.Logger
	now         func() time.Time
}

// NewGoalRunner accepts the same options as NewRunner.
func NewGoalRunner(cfg env.GoalConfig, opts ...Option) (*GoalRunner, error) {
	base := &Runner{log: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(base)
	}
	if base.mistakeRate < 0 || base.mistakeRate > 1 {
		return nil, fmt.Errorf("%w: mistake rate %v outside [0,1]", ErrInvalidOptions, base.mistakeRate)
	}
	scene := sim.NewScene()
	r := &GoalRunner{
		scene:       scene,
		arm:         scene.NewArm(Robot, Home),
		mistakeRate: base.mistakeRate,
		log:         base.log,
		now:         base.now,
	}
	e, err := env.NewGoal(cfg, scene, r.arm, env.WithGoalLogger(r.log))
	if err != nil {
		return nil, err
	}
	r.env = e
	r.Seed(0)
	return r, nil
}

func (r *GoalRunner) Env() *env.GoalEnv { return r.env }

func (r *GoalRunner) Seed(seed int64) {
	r.env.Seed(seed)
	r.rng = rand.New(rand.NewSource(seed + 1))
}

// Run plays the given number of episodes, each until the step limit.
func (r *GoalRunner) Run(ctx context.Context, runID string, seed int64, episodes int) (Result, error) {
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
			Settings:        GoalSettings(r.env.Config()),
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
	r.log.Info("goal rollout finished",
		zap.String("run_id", runID),
		zap.Int("episodes", episodes),
		zap.Float64("avg_terminal_goal_distance", res.Metrics.Values["avg_terminal_goal_distance"]),
	)
	return res, nil
}

// Episode resets the environment and steps it until the step limit. The
// episode counts as solved when the last step is a success.
func (r *GoalRunner) Episode(ctx context.Context, runID string, index int) (model.EpisodeRecord, error) {
	r.arm.Release()
	r.arm.MoveTo(Home)
	obs, err := r.env.Reset(ctx)
	if err != nil {
		return model.EpisodeRecord{}, err
	}
	desired := obs.DesiredGoal
	ep := model.EpisodeRecord{
		VersionedRecord: storage.CurrentVersion(),
		ID:              EpisodeID(runID, index),
		RunID:           runID,
		Index:           index,
		Goal:            fmt.Sprintf("%.4f %.4f %.4f", desired[0], desired[1], desired[2]),
		GoalIndex:       -1,
	}

	aim := desired
	mistake := r.rng.Float64() < r.mistakeRate
	if mistake {
		aim[0] += missOffset
	}
	actions := goalPlan(r.env.Config().Task.Kind, obs.AchievedGoal, aim)
	r.log.Debug("goal episode started", zap.Int("index", index), zap.Bool("mistake", mistake))

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
		if step.Done {
			ep.Success = step.Success
			ep.Timeout = step.Timeout
			break
		}
	}
	ep.FinalDistance = r.env.Task().LastDistance()
	return ep, nil
}

// goalPlan moves the end effector onto aim for reach. For push it touches
// the object at start and pushes it horizontally onto aim.
func goalPlan(kind task.Kind, start, aim sim.Vec3) []action {
	if kind == task.KindReach {
		return []action{func(arm *sim.Arm) { arm.MoveTo(aim) }}
	}
	above := sim.Vec3{start[0], start[1], start[2] + approachHeight}
	return []action{
		func(arm *sim.Arm) { arm.MoveTo(above) },
		func(arm *sim.Arm) { arm.MoveTo(start) },
		func(arm *sim.Arm) { arm.Push(aim[0]-start[0], aim[1]-start[1]) },
	}
}

// GoalSettings flattens a goal environment configuration into its persisted
// form.
func GoalSettings(cfg env.GoalConfig) model.TaskSettings {
	t := cfg.Task
	s := model.TaskSettings{
		Robot:             Robot,
		Kind:              string(t.Kind),
		RewardType:        string(t.RewardType),
		ObjectSize:        t.ObjectSize,
		MaxEpisodeSteps:   cfg.MaxEpisodeSteps,
		ObsType:           string(env.ObsState),
		DistanceThreshold: t.DistanceThreshold,
	}
	if t.Kind == task.KindReach {
		s.GoalRange = t.GoalRange
	} else {
		s.GoalRange = t.GoalXYRange
		s.ObjXYRange = t.ObjXYRange
	}
	return s
}
