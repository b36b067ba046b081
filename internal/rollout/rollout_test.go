package rollout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"lingotask/internal/env"
	"lingotask/internal/task"
)

func fixedClock() time.Time {
	return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
}

func newRunner(t *testing.T, cfg env.Config, opts ...Option) *Runner {
	t.Helper()
	r, err := NewRunner(cfg, append([]Option{WithClock(fixedClock)}, opts...)...)
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	return r
}

func TestScriptedPolicySolvesEveryKind(t *testing.T) {
	for _, kind := range task.Kinds {
		t.Run(string(kind), func(t *testing.T) {
			r := newRunner(t, env.DefaultConfig(kind))
			res, err := r.Run(context.Background(), "run-"+string(kind), 5, 10)
			if err != nil {
				t.Fatalf("run: %v", err)
			}
			if len(res.Episodes) != 10 {
				t.Fatalf("expected 10 episodes, got %d", len(res.Episodes))
			}
			for _, ep := range res.Episodes {
				if !ep.Success || ep.Timeout || ep.Hindsight {
					t.Fatalf("episode %d not solved: %+v", ep.Index, ep)
				}
				if ep.Steps > len(plan(kind, [3]float64{})) {
					t.Fatalf("episode %d took %d steps", ep.Index, ep.Steps)
				}
				if ep.Return != -float64(ep.Steps-1) {
					t.Fatalf("episode %d return %v after %d steps", ep.Index, ep.Return, ep.Steps)
				}
				if ep.Goal == "" || len(ep.Selection) != 2 {
					t.Fatalf("episode %d missing goal data: %+v", ep.Index, ep)
				}
			}
			if res.Metrics.Values["ep_ctr"] != 10 {
				t.Fatalf("unexpected metrics: %+v", res.Metrics.Values)
			}
		})
	}
}

func TestMistakesEarnHindsightInstructions(t *testing.T) {
	cfg := env.DefaultConfig(task.KindReach)
	cfg.Task.UseHindsight = true
	cfg.Task.HindsightProbability = 1

	r := newRunner(t, cfg, WithMistakeRate(1))
	res, err := r.Run(context.Background(), "run-hi", 3, 6)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, ep := range res.Episodes {
		if ep.Success || !ep.Hindsight || ep.HindsightInstruction == "" {
			t.Fatalf("episode %d expected hindsight: %+v", ep.Index, ep)
		}
		if ep.Steps != 2 || ep.Return != -2 {
			t.Fatalf("episode %d unexpected steps/return: %d %v", ep.Index, ep.Steps, ep.Return)
		}
	}
	if res.Metrics.Values["hi_episodes"] != 6 || res.Metrics.Values["hi_discoveries"] != 6 {
		t.Fatalf("unexpected hindsight metrics: %+v", res.Metrics.Values)
	}
}

func TestRepairFeedbackRedirectsPolicy(t *testing.T) {
	cfg := env.DefaultConfig(task.KindReach)
	cfg.Task.UseRepairs = true

	r := newRunner(t, cfg, WithMistakeRate(1))
	res, err := r.Run(context.Background(), "run-repair", 4, 5)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, ep := range res.Episodes {
		if !ep.Repaired || !ep.Success {
			t.Fatalf("episode %d expected repaired success: %+v", ep.Index, ep)
		}
		if ep.Steps != 4 || ep.Return != -3 {
			t.Fatalf("episode %d unexpected steps/return: %d %v", ep.Index, ep.Steps, ep.Return)
		}
	}
	if res.Metrics.Values["repairs"] != 5 {
		t.Fatalf("unexpected repair count: %+v", res.Metrics.Values)
	}
}

func TestUnhelpedMistakeTimesOut(t *testing.T) {
	cfg := env.DefaultConfig(task.KindReach)
	cfg.MaxEpisodeSteps = 6

	r := newRunner(t, cfg, WithMistakeRate(1))
	res, err := r.Run(context.Background(), "run-timeout", 2, 2)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, ep := range res.Episodes {
		if !ep.Timeout || ep.Success || ep.Steps != 6 || ep.Return != -6 {
			t.Fatalf("episode %d expected timeout: %+v", ep.Index, ep)
		}
	}
}

func TestRunIsReproducible(t *testing.T) {
	cfg := env.DefaultConfig(task.KindLift)
	cfg.Task.UseHindsight = true

	first, err := newRunner(t, cfg, WithMistakeRate(0.5)).Run(context.Background(), "run-same", 21, 8)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := newRunner(t, cfg, WithMistakeRate(0.5)).Run(context.Background(), "run-same", 21, 8)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("runs differ (-first +second):\n%s", diff)
	}
	if first.Run.CreatedAt != "2026-01-02T03:04:05Z" {
		t.Fatalf("unexpected created at: %s", first.Run.CreatedAt)
	}
	if first.Run.Settings.Kind != "lift" || first.Run.Settings.Robot != Robot {
		t.Fatalf("unexpected settings: %+v", first.Run.Settings)
	}
}

func TestRunGeneratesRunID(t *testing.T) {
	r := newRunner(t, env.DefaultConfig(task.KindReach))
	res, err := r.Run(context.Background(), "", 1, 1)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Run.ID == "" || res.Episodes[0].RunID != res.Run.ID {
		t.Fatalf("expected generated run id, got %+v", res.Run)
	}
}

func TestInvalidOptions(t *testing.T) {
	if _, err := NewRunner(env.DefaultConfig(task.KindReach), WithMistakeRate(1.5)); !errors.Is(err, ErrInvalidOptions) {
		t.Fatalf("expected ErrInvalidOptions, got %v", err)
	}
	r := newRunner(t, env.DefaultConfig(task.KindReach))
	if _, err := r.Run(context.Background(), "run", 1, 0); !errors.Is(err, ErrInvalidOptions) {
		t.Fatalf("expected ErrInvalidOptions, got %v", err)
	}
}

func TestRunHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := newRunner(t, env.DefaultConfig(task.KindReach))
	if _, err := r.Run(ctx, "run", 1, 3); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestEpisodeIDIsStable(t *testing.T) {
	a := EpisodeID("run-1", 0)
	if a != EpisodeID("run-1", 0) {
		t.Fatal("episode id is not deterministic")
	}
	if a == EpisodeID("run-1", 1) || a == EpisodeID("run-2", 0) {
		t.Fatal("episode ids collide")
	}
}

func TestPushDirectionPointsOutward(t *testing.T) {
	dx, dy := pushDirection([3]float64{0.1, 0, 0.02})
	if dx != pushStroke || dy != 0 {
		t.Fatalf("unexpected direction: %v %v", dx, dy)
	}
	dx, dy = pushDirection([3]float64{})
	if dx != pushStroke || dy != 0 {
		t.Fatalf("unexpected direction at origin: %v %v", dx, dy)
	}
}
