package task

import (
	"context"
	"errors"
	"math"
	"testing"

	"lingotask/internal/sim"
)

func newGoalFixture(t *testing.T, cfg GoalConfig, seed int64) (*GoalTask, *sim.Scene, *sim.Arm) {
	t.Helper()
	scene := sim.NewScene()
	arm := scene.NewArm("panda", sim.Vec3{0, 0, 0.3})
	gt, err := NewGoalTask(cfg, scene, arm)
	if err != nil {
		t.Fatalf("new goal task: %v", err)
	}
	gt.Seed(seed)
	if err := gt.Reset(context.Background()); err != nil {
		t.Fatalf("reset: %v", err)
	}
	return gt, scene, arm
}

func TestGoalReachSamplesTargetInRange(t *testing.T) {
	cfg := DefaultGoalConfig(KindReach)
	gt, scene, _ := newGoalFixture(t, cfg, 7)
	if got := scene.Bodies(); len(got) != 1 || got[0] != TargetBody {
		t.Fatalf("unexpected bodies: %v", got)
	}
	for i := 0; i < 20; i++ {
		goal, err := gt.Goal()
		if err != nil {
			t.Fatalf("goal: %v", err)
		}
		if math.Abs(goal[0]) > 0.15 || math.Abs(goal[1]) > 0.15 || goal[2] < 0 || goal[2] > 0.3 {
			t.Fatalf("goal %v outside the reach range", goal)
		}
		marker, _ := scene.BasePosition(TargetBody)
		if marker != goal {
			t.Fatalf("target marker at %v, goal %v", marker, goal)
		}
		if err := gt.Reset(context.Background()); err != nil {
			t.Fatalf("reset: %v", err)
		}
	}
	obs, err := gt.Obs()
	if err != nil || len(obs) != 0 || gt.ObsLen() != 0 {
		t.Fatalf("reach observation must be empty: %v %v", obs, err)
	}
}

func TestGoalReachRewards(t *testing.T) {
	gt, _, arm := newGoalFixture(t, DefaultGoalConfig(KindReach), 3)
	goal, _ := gt.Goal()

	arm.MoveTo(sim.Vec3{goal[0] + 0.1, goal[1], goal[2]})
	achieved, _ := gt.AchievedGoal()
	if gt.IsSuccess(achieved, goal) {
		t.Fatal("10cm away must not count as reached")
	}
	if r := gt.ComputeReward(achieved, goal); r != -1 {
		t.Fatalf("sparse reward far from goal = %v", r)
	}
	if math.Abs(gt.LastDistance()-0.1) > 1e-9 {
		t.Fatalf("last distance = %v", gt.LastDistance())
	}

	arm.MoveTo(sim.Vec3{goal[0] + 0.01, goal[1], goal[2]})
	achieved, _ = gt.AchievedGoal()
	if !gt.IsSuccess(achieved, goal) || gt.ComputeReward(achieved, goal) != 0 {
		t.Fatal("1cm away is within the reach threshold")
	}

	cfg := DefaultGoalConfig(KindReach)
	cfg.RewardType = RewardDense
	dense, _, _ := newGoalFixture(t, cfg, 3)
	if r := dense.ComputeReward(sim.Vec3{0, 0, 0}, sim.Vec3{0, 0.3, 0.4}); math.Abs(r+0.5) > 1e-12 {
		t.Fatalf("dense reward = %v, want -0.5", r)
	}
}

func TestGoalThresholdIsStrictForSuccess(t *testing.T) {
	gt, _, _ := newGoalFixture(t, DefaultGoalConfig(KindPush), 1)
	a, d := sim.Vec3{0, 0, 0}, sim.Vec3{0.05, 0, 0}
	if gt.IsSuccess(a, d) {
		t.Fatal("distance equal to the threshold is not a success")
	}
	if r := gt.ComputeReward(a, d); r != 0 {
		t.Fatalf("distance equal to the threshold is not penalized, got %v", r)
	}
}

func TestGoalRewardsBatch(t *testing.T) {
	gt, _, _ := newGoalFixture(t, DefaultGoalConfig(KindReach), 5)
	achieved := []sim.Vec3{{0, 0, 0}, {0.1, 0, 0}, {0, 0.02, 0}}
	desired := []sim.Vec3{{0, 0, 0}, {0, 0, 0}, {0, 0, 0}}
	got, err := gt.ComputeRewards(achieved, desired)
	if err != nil {
		t.Fatalf("batch rewards: %v", err)
	}
	want := []float64{0, -1, 0}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("reward %d = %v, want %v", i, got[i], want[i])
		}
	}
	if gt.LastDistance() != 0 {
		t.Fatalf("batch scoring changed last distance to %v", gt.LastDistance())
	}
	if _, err := gt.ComputeRewards(achieved, desired[:1]); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected length mismatch error, got %v", err)
	}
}

func TestGoalPushMovesObjectOntoTarget(t *testing.T) {
	cfg := DefaultGoalConfig(KindPush)
	gt, scene, arm := newGoalFixture(t, cfg, 11)
	if got := scene.Bodies(); len(got) != 2 {
		t.Fatalf("expected object and target, got %v", got)
	}
	goal, _ := gt.Goal()
	object, _ := gt.AchievedGoal()
	half := cfg.ObjectSize / 2
	if goal[2] != half || object[2] != half {
		t.Fatalf("goal %v and object %v must rest on the table", goal, object)
	}
	obs, err := gt.Obs()
	if err != nil || len(obs) != gt.ObsLen() || len(obs) != 12 {
		t.Fatalf("push observation: %v %v", obs, err)
	}
	if obs[0] != object[0] || obs[1] != object[1] || obs[2] != object[2] {
		t.Fatalf("observation must start with the object position: %v", obs)
	}

	arm.MoveTo(object)
	arm.Push(goal[0]-object[0], goal[1]-object[1])
	achieved, _ := gt.AchievedGoal()
	if !gt.IsSuccess(achieved, goal) {
		t.Fatalf("object at %v did not reach goal %v", achieved, goal)
	}
	if marker, _ := scene.BasePosition(TargetBody); marker != goal {
		t.Fatalf("pushing dragged the ghost target to %v", marker)
	}
}

func TestGoalSeedReproducesGoals(t *testing.T) {
	a, _, _ := newGoalFixture(t, DefaultGoalConfig(KindPush), 42)
	b, _, _ := newGoalFixture(t, DefaultGoalConfig(KindPush), 42)
	for i := 0; i < 5; i++ {
		ga, _ := a.Goal()
		gb, _ := b.Goal()
		oa, _ := a.AchievedGoal()
		ob, _ := b.AchievedGoal()
		if ga != gb || oa != ob {
			t.Fatalf("reset %d differs: %v/%v vs %v/%v", i, ga, oa, gb, ob)
		}
		_ = a.Reset(context.Background())
		_ = b.Reset(context.Background())
	}
}

func TestGoalTaskErrors(t *testing.T) {
	scene := sim.NewScene()
	arm := scene.NewArm("panda", sim.Vec3{})
	if _, err := NewGoalTask(DefaultGoalConfig(KindLift), scene, arm); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for lift, got %v", err)
	}
	cfg := DefaultGoalConfig(KindReach)
	cfg.DistanceThreshold = 0
	if _, err := NewGoalTask(cfg, scene, arm); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for zero threshold, got %v", err)
	}
	gt, err := NewGoalTask(DefaultGoalConfig(KindReach), scene, arm)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := gt.Goal(); !errors.Is(err, ErrNotReset) {
		t.Fatalf("expected ErrNotReset, got %v", err)
	}
	if _, err := NewGoalTask(DefaultGoalConfig(KindReach), scene, arm); !errors.Is(err, sim.ErrDuplicateBody) {
		t.Fatalf("expected duplicate target body, got %v", err)
	}
}
