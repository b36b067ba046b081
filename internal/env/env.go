package env

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"lingotask/internal/sim"
	"lingotask/internal/task"
	"lingotask/internal/vocab"
)

var (
	ErrEpisodeOver = errors.New("episode is over; call Reset")
	ErrInvalidEnv  = errors.New("invalid environment configuration")
)

// ObsType selects what the observation vector carries besides the instruction.
type ObsType string

const (
	ObsState ObsType = "state"
	ObsPixel ObsType = "pixel"
)

func ParseObsType(name string) (ObsType, error) {
	switch strings.TrimSpace(strings.ToLower(name)) {
	case "", "state":
		return ObsState, nil
	case "pixel", "pixelego":
		return ObsPixel, nil
	default:
		return "", fmt.Errorf("%w: unknown obs type %q", ErrInvalidEnv, name)
	}
}

const DefaultMaxEpisodeSteps = 50

type Config struct {
	Task            task.Config
	ObsType         ObsType
	MaxEpisodeSteps int
}

func DefaultConfig(kind task.Kind) Config {
	return Config{Task: task.DefaultConfig(kind), ObsType: ObsState, MaxEpisodeSteps: DefaultMaxEpisodeSteps}
}

// Observation is what the agent receives after Reset and every Step.
type Observation struct {
	// Vector holds the end effector position followed by the task state.
	// It is empty for pixel observations.
	Vector      []float64
	Pixels      []uint8
	Instruction []int
}

type StepResult struct {
	Observation          Observation
	Reward               float64
	Done                 bool
	Success              bool
	Timeout              bool
	Hindsight            bool
	HindsightInstruction []int
	Repaired             bool
}

// LanguageEnv wraps a LanguageTask with the shared vocabulary, a step limit
// and vocabulary coverage bookkeeping.
type LanguageEnv struct {
	cfg    Config
	task   *task.LanguageTask
	robot  sim.Robot
	vocab  *vocab.Vocabulary
	maxLen int
	log    *zap.Logger

	started    bool
	done       bool
	steps      int
	epCtr      int
	discovered map[int]struct{}
}

type Option func(*LanguageEnv)

func WithLogger(log *zap.Logger) Option {
	return func(e *LanguageEnv) {
		if log != nil {
			e.log = log
		}
	}
}

// New builds the task and the vocabulary over every instruction the task
// can emit.
func New(cfg Config, simulator sim.Simulator, robot sim.Robot, opts ...Option) (*LanguageEnv, error) {
	if cfg.ObsType == "" {
		cfg.ObsType = ObsState
	}
	if _, err := ParseObsType(string(cfg.ObsType)); err != nil {
		return nil, err
	}
	if cfg.MaxEpisodeSteps <= 0 {
		return nil, fmt.Errorf("%w: max_episode_steps must be positive, got %d", ErrInvalidEnv, cfg.MaxEpisodeSteps)
	}
	e := &LanguageEnv{cfg: cfg, robot: robot, log: zap.NewNop(), discovered: map[int]struct{}{}}
	for _, opt := range opts {
		opt(e)
	}

	t, err := task.New(cfg.Task, simulator, robot, task.WithLogger(e.log))
	if err != nil {
		return nil, err
	}
	corpus, err := t.Corpus()
	if err != nil {
		return nil, err
	}
	v, err := vocab.New(corpus.Words())
	if err != nil {
		return nil, err
	}
	e.task, e.vocab, e.maxLen = t, v, corpus.MaxLen()
	e.log.Debug("vocabulary built", zap.Int("size", v.Len()), zap.Int("max_len", e.maxLen))
	return e, nil
}

func (e *LanguageEnv) Task() *task.LanguageTask     { return e.task }
func (e *LanguageEnv) Vocabulary() *vocab.Vocabulary { return e.vocab }
func (e *LanguageEnv) MaxInstructionLen() int        { return e.maxLen }
func (e *LanguageEnv) Config() Config                { return e.cfg }
func (e *LanguageEnv) Steps() int                    { return e.steps }

func (e *LanguageEnv) Seed(seed int64) []int64 {
	return e.task.Seed(seed)
}

// Reset starts a new episode.
func (e *LanguageEnv) Reset(ctx context.Context) (Observation, error) {
	e.started, e.done, e.steps = false, false, 0
	if err := e.task.Reset(ctx); err != nil {
		return Observation{}, err
	}
	e.started = true
	e.epCtr++
	return e.observe()
}

// Step evaluates the simulator state the external controller left behind.
func (e *LanguageEnv) Step(ctx context.Context) (StepResult, error) {
	if err := ctx.Err(); err != nil {
		return StepResult{}, err
	}
	if !e.started {
		return StepResult{}, task.ErrNotReset
	}
	if e.done {
		return StepResult{}, ErrEpisodeOver
	}
	e.steps++

	out, err := e.task.Evaluate()
	if err != nil {
		return StepResult{}, err
	}
	res := StepResult{
		Reward:    out.Reward,
		Success:   out.Success,
		Hindsight: out.Hindsight,
		Repaired:  out.Repaired,
	}
	if out.Hindsight {
		res.HindsightInstruction, err = e.encodeEmitted(out.HindsightInstruction)
		if err != nil {
			return StepResult{}, err
		}
	}
	if !res.Success && !res.Hindsight && e.steps >= e.cfg.MaxEpisodeSteps {
		e.task.MarkTimeout()
		res.Timeout = true
	}
	res.Done = res.Success || res.Hindsight || res.Timeout
	e.done = res.Done

	res.Observation, err = e.observe()
	if err != nil {
		return StepResult{}, err
	}
	return res, nil
}

func (e *LanguageEnv) observe() (Observation, error) {
	var obs Observation
	switch e.cfg.ObsType {
	case ObsPixel:
		img, err := e.robot.CameraImage()
		if err != nil {
			return Observation{}, err
		}
		obs.Pixels = img.Pixels
	default:
		state, err := e.task.Obs()
		if err != nil {
			return Observation{}, err
		}
		ee := e.robot.EEPosition()
		obs.Vector = append(ee[:], state...)
	}
	instr, err := e.encodeEmitted(e.task.Goal())
	if err != nil {
		return Observation{}, err
	}
	obs.Instruction = instr
	return obs, nil
}

// encodeEmitted pads and encodes an instruction shown to the agent and
// records its words for coverage.
func (e *LanguageEnv) encodeEmitted(sentence string) ([]int, error) {
	padded, err := e.PadInstruction(sentence)
	if err != nil {
		return nil, err
	}
	idx, err := e.vocab.Encode(padded)
	if err != nil {
		return nil, err
	}
	for _, i := range idx {
		if i != 0 {
			e.discovered[i] = struct{}{}
		}
	}
	return idx, nil
}

func (e *LanguageEnv) EncodeInstruction(sentence string) ([]int, error) {
	return e.vocab.Encode(sentence)
}

func (e *LanguageEnv) DecodeInstruction(indices []int) (string, error) {
	return e.vocab.Decode(indices)
}

// PadInstruction pads to the longest instruction of the task.
func (e *LanguageEnv) PadInstruction(sentence string) (string, error) {
	return vocab.PadSentence(sentence, e.maxLen)
}

// Metrics merges the episode counter and vocabulary coverage with the task
// counters.
func (e *LanguageEnv) Metrics() map[string]float64 {
	m := e.task.Metrics()
	m["ep_ctr"] = float64(e.epCtr)
	rate := 0.0
	if n := e.vocab.Len() - 1; n > 0 {
		rate = math.Round(float64(len(e.discovered))/float64(n)*100) / 100
	}
	m["vocab_discovery_rate"] = rate
	return m
}
