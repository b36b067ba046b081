package task

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"

	"go.uber.org/zap"

	"lingotask/internal/catalog"
	"lingotask/internal/command"
	"lingotask/internal/sim"
)

var (
	ErrInvalidConfig    = errors.New("invalid task configuration")
	ErrPositionSampling = errors.New("object positions could not satisfy the minimum separation")
	ErrNotReset         = errors.New("task has not been reset")
)

// Kind names a task variant.
type Kind string

const (
	KindReach Kind = "reach"
	KindPush  Kind = "push"
	KindGrasp Kind = "grasp"
	KindLift  Kind = "lift"
)

// Kinds lists the supported variants.
var Kinds = []Kind{KindReach, KindPush, KindGrasp, KindLift}

func ParseKind(name string) (Kind, error) {
	k := Kind(strings.TrimSpace(strings.ToLower(name)))
	for _, known := range Kinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: unknown kind %q", ErrInvalidConfig, name)
}

type RewardType string

const (
	RewardSparse RewardType = "sparse"
	RewardDense  RewardType = "dense"
)

const (
	// DefaultHindsightProbability is the chance an episode is armed.
	DefaultHindsightProbability = 0.25
	// GraspMaxGoalHeight caps the height threshold of the grasp variant.
	GraspMaxGoalHeight = 0.01

	failureReward   = -1.0
	hindsightSignal = -10.0
	successReward   = 0.0

	zeroThresholdProbability = 0.3
	maxPositionAttempts      = 10000
)

// Config parameterizes a LanguageTask.
type Config struct {
	Kind                 Kind
	Catalog              catalog.Options
	NumObj               int
	ObjXYRange           float64
	ObjectSize           float64
	RewardType           RewardType
	UseHindsight         bool
	HindsightProbability float64
	UseRepairs           bool
	UseBase              bool
	UseSynonyms          bool
	MinGoalHeight        float64
	MaxGoalHeight        float64
}

// DefaultConfig mirrors the standard two-object color task of a kind.
func DefaultConfig(kind Kind) Config {
	cfg := Config{
		Kind:                 kind,
		Catalog:              catalog.Options{ColorMode: true, Layout: catalog.LayoutProduct},
		NumObj:               2,
		ObjXYRange:           0.3,
		ObjectSize:           0.04,
		RewardType:           RewardSparse,
		HindsightProbability: DefaultHindsightProbability,
		UseBase:              true,
		UseSynonyms:          true,
		MaxGoalHeight:        0.1,
	}
	if kind == KindGrasp {
		cfg.MaxGoalHeight = GraspMaxGoalHeight
	}
	return cfg
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if _, err := ParseKind(string(c.Kind)); err != nil {
		return err
	}
	switch {
	case c.NumObj < 1:
		return fmt.Errorf("%w: num_obj must be positive, got %d", ErrInvalidConfig, c.NumObj)
	case c.ObjectSize <= 0:
		return fmt.Errorf("%w: object_size must be positive, got %v", ErrInvalidConfig, c.ObjectSize)
	case c.ObjXYRange < 0:
		return fmt.Errorf("%w: obj_xy_range must not be negative, got %v", ErrInvalidConfig, c.ObjXYRange)
	case c.RewardType != RewardSparse && c.RewardType != RewardDense:
		return fmt.Errorf("%w: unknown reward type %q", ErrInvalidConfig, c.RewardType)
	case c.HindsightProbability < 0 || c.HindsightProbability > 1:
		return fmt.Errorf("%w: hindsight_probability %v outside [0,1]", ErrInvalidConfig, c.HindsightProbability)
	case !c.UseBase && !c.UseSynonyms:
		return fmt.Errorf("%w: use_base and use_synonyms are both disabled", ErrInvalidConfig)
	case c.MinGoalHeight < 0 || c.MinGoalHeight > c.MaxGoalHeight:
		return fmt.Errorf("%w: goal height range [%v,%v]", ErrInvalidConfig, c.MinGoalHeight, c.MaxGoalHeight)
	}
	return nil
}

// Phase is the episode lifecycle state.
type Phase int

const (
	Uninitialized Phase = iota
	ObjectsPlaced
	GoalSelected
	Running
	Success
	Hindsight
	Timeout
)

func (p Phase) String() string {
	switch p {
	case Uninitialized:
		return "uninitialized"
	case ObjectsPlaced:
		return "objects_placed"
	case GoalSelected:
		return "goal_selected"
	case Running:
		return "running"
	case Success:
		return "success"
	case Hindsight:
		return "hindsight"
	case Timeout:
		return "timeout"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Terminal reports whether the episode has ended.
func (p Phase) Terminal() bool {
	return p == Success || p == Hindsight || p == Timeout
}

// LanguageTask owns the catalog, the episode state and the cumulative
// hindsight counters of one task instance. It is not safe for concurrent use.
type LanguageTask struct {
	cfg     Config
	sim     sim.Simulator
	robot   sim.Robot
	log     *zap.Logger
	catalog *catalog.Catalog
	gen     command.Generator
	variant variant
	rng     *rand.Rand

	phase                Phase
	selection            []int
	goalIdx              int
	nonGoal              []int
	instruction          string
	initPos              map[int]sim.Vec3
	heightThreshold      float64
	armed                bool
	fired                bool
	hindsightInstruction string
	repaired             bool
	lastDistance         float64

	hiEpisodes    int
	hiDiscoveries int
	repairs       int
}

type Option func(*LanguageTask)

func WithLogger(log *zap.Logger) Option {
	return func(t *LanguageTask) {
		if log != nil {
			t.log = log
		}
	}
}

// WithRand replaces the task RNG. Seed reseeds it afterwards.
func WithRand(rng *rand.Rand) Option {
	return func(t *LanguageTask) {
		if rng != nil {
			t.rng = rng
		}
	}
}

// New builds the catalog and verifies that NumObj mutually valid objects
// exist before any episode is run.
func New(cfg Config, simulator sim.Simulator, robot sim.Robot, opts ...Option) (*LanguageTask, error) {
	if cfg.Kind == KindGrasp && cfg.MaxGoalHeight > GraspMaxGoalHeight {
		cfg.MaxGoalHeight = GraspMaxGoalHeight
		cfg.MinGoalHeight = min(cfg.MinGoalHeight, GraspMaxGoalHeight)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if simulator == nil || robot == nil {
		return nil, fmt.Errorf("%w: simulator and robot are required", ErrInvalidConfig)
	}
	cat, err := catalog.New(cfg.Catalog)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	t := &LanguageTask{
		cfg:     cfg,
		sim:     simulator,
		robot:   robot,
		log:     zap.NewNop(),
		catalog: cat,
		gen:     command.NewGenerator(cfg.UseBase, cfg.UseSynonyms),
		variant: variantFor(cfg.Kind),
		rng:     rand.New(rand.NewSource(0)),
		goalIdx: -1,
	}
	for _, opt := range opts {
		opt(t)
	}
	if err := cat.Feasible(cfg.NumObj); err != nil {
		if !errors.Is(err, catalog.ErrSearchExhausted) {
			return nil, err
		}
		// Unproven either way; Reset reports the error if sampling fails too.
		t.log.Warn("object selection feasibility unproven", zap.Int("num_obj", cfg.NumObj), zap.Error(err))
	}
	t.log.Debug("catalog built",
		zap.String("kind", string(cfg.Kind)),
		zap.String("mode", cfg.Catalog.Mode()),
		zap.String("layout", string(cat.Options().Layout)),
		zap.Int("size", cat.Len()),
	)
	return t, nil
}

// Seed reseeds the task RNG. The next Reset reproduces the same object
// selection, positions, goal, instruction and arming for the same seed.
func (t *LanguageTask) Seed(seed int64) []int64 {
	t.rng.Seed(seed)
	return []int64{seed}
}

func (t *LanguageTask) Config() Config               { return t.cfg }
func (t *LanguageTask) Catalog() *catalog.Catalog    { return t.catalog }
func (t *LanguageTask) Generator() command.Generator { return t.gen }
func (t *LanguageTask) Phase() Phase                 { return t.phase }
func (t *LanguageTask) Armed() bool                  { return t.armed }
func (t *LanguageTask) Repaired() bool               { return t.repaired }
func (t *LanguageTask) HeightThreshold() float64     { return t.heightThreshold }
func (t *LanguageTask) LastDistance() float64        { return t.lastDistance }

// Verbs returns the action verbs of the variant.
func (t *LanguageTask) Verbs() []string {
	return append([]string(nil), t.variant.verbs()...)
}

// Selection returns the catalog indices placed in the current episode.
func (t *LanguageTask) Selection() []int {
	return append([]int(nil), t.selection...)
}

// GoalIndex is the catalog index of the goal object, or -1 before a reset.
func (t *LanguageTask) GoalIndex() int {
	return t.goalIdx
}

// Goal returns the instruction the agent currently sees.
func (t *LanguageTask) Goal() string {
	return t.instruction
}

// HindsightInstruction is the instruction describing the unintended goal the
// agent satisfied, or empty.
func (t *LanguageTask) HindsightInstruction() string {
	return t.hindsightInstruction
}

// MarkTimeout ends a running episode because the step limit was reached.
func (t *LanguageTask) MarkTimeout() {
	if t.phase == Running {
		t.phase = Timeout
	}
}

// BodyName is the simulator name of the body for a catalog index.
func BodyName(idx int) string {
	return fmt.Sprintf("object%d", idx)
}

func isObjectBody(name string) bool {
	return strings.HasPrefix(name, "object")
}
