package task

import (
	"context"
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/floats"

	"lingotask/internal/sim"
)

const (
	// TargetBody is the ghost marker placed at the desired goal.
	TargetBody = "target"
	// ObjectBody is the box the push variant moves onto the target.
	ObjectBody = "object"

	ReachDistanceThreshold = 0.025
	PushDistanceThreshold  = 0.05

	goalObjectMass = 2.0
)

var (
	targetColor = [4]float64{1, 0, 0, 0.3}
	objectColor = [4]float64{1, 0, 0, 1}
)

// GoalKinds lists the variants that have a goal-conditioned form.
var GoalKinds = []Kind{KindReach, KindPush}

// GoalConfig parameterizes a GoalTask. GoalRange bounds the reach target
// cube; GoalXYRange and ObjXYRange bound the push target and object squares.
type GoalConfig struct {
	Kind              Kind
	RewardType        RewardType
	DistanceThreshold float64
	GoalRange         float64
	GoalXYRange       float64
	ObjXYRange        float64
	ObjectSize        float64
}

func DefaultGoalConfig(kind Kind) GoalConfig {
	cfg := GoalConfig{
		Kind:              kind,
		RewardType:        RewardSparse,
		DistanceThreshold: ReachDistanceThreshold,
		GoalRange:         0.3,
		GoalXYRange:       0.3,
		ObjXYRange:        0.3,
		ObjectSize:        0.04,
	}
	if kind == KindPush {
		cfg.DistanceThreshold = PushDistanceThreshold
	}
	return cfg
}

func (c GoalConfig) Validate() error {
	if c.Kind != KindReach && c.Kind != KindPush {
		return fmt.Errorf("%w: no goal-conditioned form of %q", ErrInvalidConfig, c.Kind)
	}
	switch {
	case c.RewardType != RewardSparse && c.RewardType != RewardDense:
		return fmt.Errorf("%w: unknown reward type %q", ErrInvalidConfig, c.RewardType)
	case c.DistanceThreshold <= 0:
		return fmt.Errorf("%w: distance_threshold must be positive, got %v", ErrInvalidConfig, c.DistanceThreshold)
	case c.GoalRange < 0 || c.GoalXYRange < 0 || c.ObjXYRange < 0:
		return fmt.Errorf("%w: goal and object ranges must not be negative", ErrInvalidConfig)
	case c.ObjectSize <= 0:
		return fmt.Errorf("%w: object_size must be positive, got %v", ErrInvalidConfig, c.ObjectSize)
	}
	return nil
}

// GoalTask is the goal-conditioned counterpart of LanguageTask: the desired
// goal is a position marked by a ghost body, and the achieved goal is the
// end effector (reach) or the object (push).
type GoalTask struct {
	cfg   GoalConfig
	sim   sim.Simulator
	robot sim.Robot
	rng   *rand.Rand

	started      bool
	goal         sim.Vec3
	lastDistance float64
}

// NewGoalTask creates the scene bodies once; Reset only moves them.
func NewGoalTask(cfg GoalConfig, simulator sim.Simulator, robot sim.Robot) (*GoalTask, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if simulator == nil || robot == nil {
		return nil, fmt.Errorf("%w: simulator and robot are required", ErrInvalidConfig)
	}
	t := &GoalTask{cfg: cfg, sim: simulator, robot: robot, rng: rand.New(rand.NewSource(0))}
	if err := simulator.NoRendering(t.createScene); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *GoalTask) createScene() error {
	if t.cfg.Kind == KindReach {
		return t.sim.CreateSphere(TargetBody, t.cfg.DistanceThreshold, sim.BodySpec{RGBA: targetColor, Ghost: true})
	}
	half := t.cfg.ObjectSize / 2
	extents := sim.Vec3{half, half, half}
	rest := sim.Pose{Position: sim.Vec3{0, 0, half}, Orientation: sim.Identity}
	if err := t.sim.CreateBox(ObjectBody, extents, sim.BodySpec{Mass: goalObjectMass, Pose: rest, RGBA: objectColor}); err != nil {
		return err
	}
	return t.sim.CreateBox(TargetBody, extents, sim.BodySpec{Pose: rest, RGBA: targetColor, Ghost: true})
}

func (t *GoalTask) Config() GoalConfig    { return t.cfg }
func (t *GoalTask) LastDistance() float64 { return t.lastDistance }

func (t *GoalTask) Seed(seed int64) []int64 {
	t.rng.Seed(seed)
	return []int64{seed}
}

// Reset samples a new goal, and for push a new object position, and moves
// the bodies there.
func (t *GoalTask) Reset(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.lastDistance = 0
	return t.sim.NoRendering(func() error {
		if t.cfg.Kind == KindReach {
			r := t.cfg.GoalRange
			t.goal = t.uniform(sim.Vec3{-r / 2, -r / 2, 0}, sim.Vec3{r / 2, r / 2, r})
		} else {
			half := t.cfg.ObjectSize / 2
			t.goal = t.onTable(t.cfg.GoalXYRange, half)
			object := t.onTable(t.cfg.ObjXYRange, half)
			if err := t.sim.SetBasePose(ObjectBody, object, sim.Identity); err != nil {
				return err
			}
		}
		if err := t.sim.SetBasePose(TargetBody, t.goal, sim.Identity); err != nil {
			return err
		}
		t.started = true
		return nil
	})
}

func (t *GoalTask) onTable(xyRange, z float64) sim.Vec3 {
	r := xyRange / 2
	p := t.uniform(sim.Vec3{-r, -r, 0}, sim.Vec3{r, r, 0})
	p[2] += z
	return p
}

func (t *GoalTask) uniform(low, high sim.Vec3) sim.Vec3 {
	var p sim.Vec3
	for i := range p {
		p[i] = low[i] + t.rng.Float64()*(high[i]-low[i])
	}
	return p
}

// Goal is the desired goal position.
func (t *GoalTask) Goal() (sim.Vec3, error) {
	if !t.started {
		return sim.Vec3{}, ErrNotReset
	}
	return t.goal, nil
}

// AchievedGoal is the end effector position for reach and the object
// position for push.
func (t *GoalTask) AchievedGoal() (sim.Vec3, error) {
	if !t.started {
		return sim.Vec3{}, ErrNotReset
	}
	if t.cfg.Kind == KindReach {
		return t.robot.EEPosition(), nil
	}
	return t.sim.BasePosition(ObjectBody)
}

// Obs is empty for reach. For push it is the object position, rotation,
// velocity and angular velocity.
func (t *GoalTask) Obs() ([]float64, error) {
	if !t.started {
		return nil, ErrNotReset
	}
	if t.cfg.Kind == KindReach {
		return []float64{}, nil
	}
	out := make([]float64, 0, 12)
	for _, read := range []func(string) (sim.Vec3, error){
		t.sim.BasePosition,
		t.sim.BaseRotation,
		t.sim.BaseVelocity,
		t.sim.BaseAngularVelocity,
	} {
		v, err := read(ObjectBody)
		if err != nil {
			return nil, err
		}
		out = append(out, v[:]...)
	}
	return out, nil
}

// ObsLen is the length of Obs.
func (t *GoalTask) ObsLen() int {
	if t.cfg.Kind == KindReach {
		return 0
	}
	return 12
}

// GoalDistance is the Euclidean distance between two goals.
func GoalDistance(achieved, desired sim.Vec3) float64 {
	return floats.Distance(achieved[:], desired[:], 2)
}

// IsSuccess reports whether achieved lies strictly within the distance
// threshold of desired.
func (t *GoalTask) IsSuccess(achieved, desired sim.Vec3) bool {
	return GoalDistance(achieved, desired) < t.cfg.DistanceThreshold
}

// ComputeReward is -1 beyond the threshold and 0 within it for sparse
// rewards, the negated distance for dense ones. It records the distance.
func (t *GoalTask) ComputeReward(achieved, desired sim.Vec3) float64 {
	d := GoalDistance(achieved, desired)
	t.lastDistance = d
	return t.reward(d)
}

// ComputeRewards scores a batch of goal pairs, as relabeling replay buffers
// do. It does not touch LastDistance.
func (t *GoalTask) ComputeRewards(achieved, desired []sim.Vec3) ([]float64, error) {
	if len(achieved) != len(desired) {
		return nil, fmt.Errorf("%w: %d achieved goals for %d desired goals", ErrInvalidConfig, len(achieved), len(desired))
	}
	out := make([]float64, len(achieved))
	for i := range achieved {
		out[i] = t.reward(GoalDistance(achieved[i], desired[i]))
	}
	return out, nil
}

func (t *GoalTask) reward(d float64) float64 {
	if t.cfg.RewardType == RewardDense {
		return -d
	}
	if d > t.cfg.DistanceThreshold {
		return failureReward
	}
	return successReward
}
