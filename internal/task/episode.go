package task

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"lingotask/internal/command"
	"lingotask/internal/sim"
	"lingotask/internal/taskobject"
)

// Reset discards the previous episode and runs the setup chain: object
// selection, placement, goal selection, instruction draw, height threshold
// and hindsight arming. All randomness comes from the task RNG in that order.
func (t *LanguageTask) Reset(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.phase = Uninitialized
	t.selection, t.nonGoal = nil, nil
	t.goalIdx = -1
	t.instruction = ""
	t.hindsightInstruction = ""
	t.armed, t.fired, t.repaired = false, false, false
	t.lastDistance = 0

	if err := t.removeObjects(); err != nil {
		return err
	}
	selection, err := t.catalog.Sample(t.rng, t.cfg.NumObj)
	if err != nil {
		return err
	}
	positions, err := t.samplePositions(ctx, selection)
	if err != nil {
		return err
	}
	if err := t.placeObjects(selection, positions); err != nil {
		return err
	}
	t.selection = selection
	t.phase = ObjectsPlaced

	t.goalIdx = selection[t.rng.Intn(len(selection))]
	for _, idx := range selection {
		if idx != t.goalIdx {
			t.nonGoal = append(t.nonGoal, idx)
		}
	}
	instructions, err := t.gen.Instructions(t.variant.verbs(), t.pairOf(t.goalIdx))
	if err != nil {
		return err
	}
	t.instruction = instructions[t.rng.Intn(len(instructions))]
	t.phase = GoalSelected

	if t.cfg.Kind == KindLift || t.cfg.Kind == KindGrasp {
		t.heightThreshold = t.cfg.MinGoalHeight + t.rng.Float64()*(t.cfg.MaxGoalHeight-t.cfg.MinGoalHeight)
		if t.rng.Float64() < zeroThresholdProbability {
			t.heightThreshold = 0
		}
	}

	if t.cfg.UseHindsight {
		t.armed = t.rng.Float64() < t.cfg.HindsightProbability
		if t.armed {
			t.hiEpisodes++
		}
	}
	t.phase = Running

	t.log.Debug("episode reset",
		zap.Ints("selection", selection),
		zap.Int("goal", t.goalIdx),
		zap.String("instruction", t.instruction),
		zap.Bool("armed", t.armed),
	)
	return nil
}

func (t *LanguageTask) removeObjects() error {
	for _, name := range t.sim.Bodies() {
		if !isObjectBody(name) {
			continue
		}
		if err := t.sim.RemoveBody(name); err != nil {
			return fmt.Errorf("remove %s: %w", name, err)
		}
	}
	return nil
}

// samplePositions draws every position of the batch uniformly in the square
// and redraws the whole batch until all pairwise distances exceed three
// object sizes.
func (t *LanguageTask) samplePositions(ctx context.Context, selection []int) ([]sim.Vec3, error) {
	half := t.cfg.ObjXYRange / 2
	minDist := 3 * t.cfg.ObjectSize
	positions := make([]sim.Vec3, len(selection))
	for attempt := 0; attempt < maxPositionAttempts; attempt++ {
		if attempt%100 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		for i, idx := range selection {
			d, _ := t.catalog.At(idx)
			positions[i] = sim.Vec3{
				-half + t.rng.Float64()*2*half,
				-half + t.rng.Float64()*2*half,
				restHeight(d.Geometry(t.cfg.ObjectSize)),
			}
		}
		if MinSeparation(positions) > minDist {
			return positions, nil
		}
	}
	return nil, fmt.Errorf("%w: %d objects, range %v, object size %v", ErrPositionSampling, len(selection), t.cfg.ObjXYRange, t.cfg.ObjectSize)
}

// MinSeparation is the smallest Euclidean distance between any two
// positions; +Inf for fewer than two.
func MinSeparation(positions []sim.Vec3) float64 {
	best := 0.0
	first := true
	for i := 0; i < len(positions); i++ {
		for j := i + 1; j < len(positions); j++ {
			d := floats.Distance(positions[i][:], positions[j][:], 2)
			if first || d < best {
				best, first = d, false
			}
		}
	}
	if first {
		return math.Inf(1)
	}
	return best
}

func restHeight(g taskobject.Geometry) float64 {
	if g.Kind == taskobject.KindCylinder {
		return g.Height / 2
	}
	return g.HalfExtents[2]
}

func (t *LanguageTask) placeObjects(selection []int, positions []sim.Vec3) error {
	t.initPos = make(map[int]sim.Vec3, len(selection))
	return t.sim.NoRendering(func() error {
		for i, idx := range selection {
			d, err := t.catalog.At(idx)
			if err != nil {
				return err
			}
			spec := sim.BodySpec{
				Mass: d.Mass(),
				Pose: sim.Pose{Position: positions[i], Orientation: sim.Identity},
				RGBA: d.RGBA(),
			}
			g := d.Geometry(t.cfg.ObjectSize)
			name := BodyName(idx)
			if g.Kind == taskobject.KindCylinder {
				err = t.sim.CreateCylinder(name, g.Radius, g.Height, spec)
			} else {
				err = t.sim.CreateBox(name, sim.Vec3(g.HalfExtents), spec)
			}
			if err != nil {
				return fmt.Errorf("load %s (%s): %w", name, d, err)
			}
			t.initPos[idx] = positions[i]
		}
		return nil
	})
}

func (t *LanguageTask) pairOf(idx int) command.Pair {
	d, _ := t.catalog.At(idx)
	return command.Pair{d.Primary, d.Secondary}
}

// Descriptor returns the catalog descriptor of a selected object.
func (t *LanguageTask) Descriptor(idx int) (taskobject.Descriptor, error) {
	return t.catalog.At(idx)
}

// InitialPosition is where a selected object was placed at reset.
func (t *LanguageTask) InitialPosition(idx int) (sim.Vec3, bool) {
	p, ok := t.initPos[idx]
	return p, ok
}

// Obs concatenates, per selected object, position, rotation, velocity,
// angular velocity and one-hot.
func (t *LanguageTask) Obs() ([]float64, error) {
	if t.phase == Uninitialized {
		return nil, ErrNotReset
	}
	var out []float64
	for _, idx := range t.selection {
		name := BodyName(idx)
		for _, read := range []func(string) (sim.Vec3, error){
			t.sim.BasePosition,
			t.sim.BaseRotation,
			t.sim.BaseVelocity,
			t.sim.BaseAngularVelocity,
		} {
			v, err := read(name)
			if err != nil {
				return nil, err
			}
			out = append(out, v[:]...)
		}
		d, _ := t.catalog.At(idx)
		out = append(out, d.OneHot...)
	}
	return out, nil
}

// ObsLen is the length of Obs for the configured object count.
func (t *LanguageTask) ObsLen() int {
	return t.cfg.NumObj * (4*3 + t.catalog.OneHotLen())
}

// AchievedGoal is the current position of the goal object.
func (t *LanguageTask) AchievedGoal() (sim.Vec3, error) {
	if t.goalIdx < 0 {
		return sim.Vec3{}, ErrNotReset
	}
	return t.sim.BasePosition(BodyName(t.goalIdx))
}
