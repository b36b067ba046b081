package env

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"lingotask/internal/sim"
	"lingotask/internal/task"
)

type GoalConfig struct {
	Task            task.GoalConfig
	MaxEpisodeSteps int
}

func DefaultGoalConfig(kind task.Kind) GoalConfig {
	return GoalConfig{Task: task.DefaultGoalConfig(kind), MaxEpisodeSteps: DefaultMaxEpisodeSteps}
}

// GoalObservation carries the achieved and desired goals next to the
// end effector and task state.
type GoalObservation struct {
	Vector       []float64
	AchievedGoal sim.Vec3
	DesiredGoal  sim.Vec3
}

type GoalStepResult struct {
	Observation GoalObservation
	Reward      float64
	Success     bool
	Done        bool
	Timeout     bool
}

// GoalEnv wraps a GoalTask with a step limit. Success does not end an
// episode; only the step limit does.
type GoalEnv struct {
	cfg   GoalConfig
	task  *task.GoalTask
	robot sim.Robot
	log   *zap.Logger

	started   bool
	done      bool
	steps     int
	epCtr     int
	terminals []float64
}

type GoalOption func(*GoalEnv)

func WithGoalLogger(log *zap.Logger) GoalOption {
	return func(e *GoalEnv) {
		if log != nil {
			e.log = log
		}
	}
}

func NewGoal(cfg GoalConfig, simulator sim.Simulator, robot sim.Robot, opts ...GoalOption) (*GoalEnv, error) {
	if cfg.MaxEpisodeSteps <= 0 {
		return nil, fmt.Errorf("%w: max_episode_steps must be positive, got %d", ErrInvalidEnv, cfg.MaxEpisodeSteps)
	}
	e := &GoalEnv{cfg: cfg, robot: robot, log: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	t, err := task.NewGoalTask(cfg.Task, simulator, robot)
	if err != nil {
		return nil, err
	}
	e.task = t
	e.log.Debug("goal task built",
		zap.String("kind", string(cfg.Task.Kind)),
		zap.Float64("distance_threshold", cfg.Task.DistanceThreshold),
	)
	return e, nil
}

func (e *GoalEnv) Task() *task.GoalTask { return e.task }
func (e *GoalEnv) Config() GoalConfig   { return e.cfg }
func (e *GoalEnv) Steps() int           { return e.steps }

func (e *GoalEnv) Seed(seed int64) []int64 {
	return e.task.Seed(seed)
}

// Reset records the terminal distance of the episode that just ended and
// starts a new one.
func (e *GoalEnv) Reset(ctx context.Context) (GoalObservation, error) {
	if e.started && e.steps > 0 {
		e.terminals = append(e.terminals, e.task.LastDistance())
	}
	e.started, e.done, e.steps = false, false, 0
	if err := e.task.Reset(ctx); err != nil {
		return GoalObservation{}, err
	}
	e.started = true
	e.epCtr++
	return e.observe()
}

// Step scores the state the external controller left behind.
func (e *GoalEnv) Step(ctx context.Context) (GoalStepResult, error) {
	if err := ctx.Err(); err != nil {
		return GoalStepResult{}, err
	}
	if !e.started {
		return GoalStepResult{}, task.ErrNotReset
	}
	if e.done {
		return GoalStepResult{}, ErrEpisodeOver
	}
	e.steps++

	obs, err := e.observe()
	if err != nil {
		return GoalStepResult{}, err
	}
	res := GoalStepResult{
		Observation: obs,
		Success:     e.task.IsSuccess(obs.AchievedGoal, obs.DesiredGoal),
		Reward:      e.task.ComputeReward(obs.AchievedGoal, obs.DesiredGoal),
		Timeout:     e.steps >= e.cfg.MaxEpisodeSteps,
	}
	res.Done = res.Timeout
	e.done = res.Done
	return res, nil
}

func (e *GoalEnv) observe() (GoalObservation, error) {
	state, err := e.task.Obs()
	if err != nil {
		return GoalObservation{}, err
	}
	achieved, err := e.task.AchievedGoal()
	if err != nil {
		return GoalObservation{}, err
	}
	desired, err := e.task.Goal()
	if err != nil {
		return GoalObservation{}, err
	}
	ee := e.robot.EEPosition()
	return GoalObservation{
		Vector:       append(ee[:], state...),
		AchievedGoal: achieved,
		DesiredGoal:  desired,
	}, nil
}

// ComputeReward scores an arbitrary goal pair with the task reward.
func (e *GoalEnv) ComputeReward(achieved, desired sim.Vec3) float64 {
	return e.task.ComputeReward(achieved, desired)
}

// Metrics reports the episode counter and the mean final goal distance of
// the stepped episodes, rounded to three places.
func (e *GoalEnv) Metrics() map[string]float64 {
	avg := 0.0
	if d := e.TerminalDistances(); len(d) > 0 {
		avg = math.Round(stat.Mean(d, nil)*1000) / 1000
	}
	return map[string]float64{
		"ep_ctr":                     float64(e.epCtr),
		"avg_terminal_goal_distance": avg,
	}
}

// TerminalDistances is the final goal distance of every stepped episode,
// including the current one once it is done.
func (e *GoalEnv) TerminalDistances() []float64 {
	out := append([]float64(nil), e.terminals...)
	if e.started && e.done {
		out = append(out, e.task.LastDistance())
	}
	return out
}
