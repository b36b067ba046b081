package task

import (
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"lingotask/internal/command"
)

// Outcome is the result of evaluating the current simulator state against
// the episode goal.
type Outcome struct {
	// Reward is what the agent sees: 0 on success, -1 otherwise in sparse
	// mode. The hindsight signal is never surfaced.
	Reward               float64
	Success              bool
	Hindsight            bool
	HindsightInstruction string
	Repaired             bool
	Distance             float64
}

// IsSuccess evaluates the variant predicate on the goal object only.
func (t *LanguageTask) IsSuccess() (bool, error) {
	if t.phase == Uninitialized {
		return false, ErrNotReset
	}
	return t.variant.achieved(t, t.goalIdx)
}

// ComputeReward evaluates the step and returns the surfaced reward.
func (t *LanguageTask) ComputeReward() (float64, error) {
	o, err := t.Evaluate()
	return o.Reward, err
}

// Evaluate checks the goal, fires at most one hindsight instruction per armed
// episode, applies repair feedback and updates the episode phase.
func (t *LanguageTask) Evaluate() (Outcome, error) {
	raw, out, err := t.evaluate()
	if err != nil {
		return Outcome{}, err
	}
	out.Reward = surface(raw)
	return out, nil
}

// surface maps the internal hindsight signal onto the ordinary failure reward
// so hindsight and plain variants share one reward scale.
func surface(raw float64) float64 {
	if raw == hindsightSignal {
		return failureReward
	}
	return raw
}

func (t *LanguageTask) evaluate() (float64, Outcome, error) {
	if t.phase == Uninitialized {
		return 0, Outcome{}, ErrNotReset
	}
	var out Outcome
	dist, err := t.goalDistance()
	if err != nil {
		return 0, out, err
	}
	t.lastDistance = dist
	out.Distance = dist

	ok, err := t.variant.achieved(t, t.goalIdx)
	if err != nil {
		return 0, out, err
	}
	if ok {
		if t.phase == Running {
			t.phase = Success
		}
		out.Success = true
		return successReward, out, nil
	}

	if t.armed && !t.fired {
		for _, idx := range t.nonGoal {
			hit, err := t.variant.incidental(t, idx)
			if err != nil {
				return 0, out, err
			}
			if !hit {
				continue
			}
			if err := t.fireHindsight(idx); err != nil {
				return 0, out, err
			}
			out.Hindsight = true
			out.HindsightInstruction = t.hindsightInstruction
			return hindsightSignal, out, nil
		}
	}

	if t.cfg.UseRepairs && !t.armed && !t.repaired {
		for _, idx := range t.nonGoal {
			hit, err := t.variant.incidental(t, idx)
			if err != nil {
				return 0, out, err
			}
			if !hit {
				continue
			}
			if err := t.repair(idx); err != nil {
				return 0, out, err
			}
			out.Repaired = true
			break
		}
	}

	if t.cfg.RewardType == RewardDense {
		return -dist, out, nil
	}
	return failureReward, out, nil
}

func (t *LanguageTask) goalDistance() (float64, error) {
	pos, err := t.sim.BasePosition(BodyName(t.goalIdx))
	if err != nil {
		return 0, err
	}
	ee := t.robot.EEPosition()
	return floats.Distance(ee[:], pos[:], 2), nil
}

func (t *LanguageTask) fireHindsight(idx int) error {
	sentences, err := t.gen.Instructions(t.variant.verbs(), t.pairOf(idx))
	if err != nil {
		return err
	}
	t.hindsightInstruction = sentences[t.rng.Intn(len(sentences))]
	t.fired = true
	t.hiDiscoveries++
	if t.phase == Running {
		t.phase = Hindsight
	}
	t.log.Info("hindsight instruction discovered",
		zap.Int("object", idx),
		zap.Int("goal", t.goalIdx),
		zap.String("instruction", t.hindsightInstruction),
	)
	return nil
}

// repair replaces the current instruction with feedback about the wrongly
// handled object x and the goal y.
func (t *LanguageTask) repair(x int) error {
	options, err := t.repairUtterances(t.pairOf(x), t.pairOf(t.goalIdx))
	if err != nil {
		return err
	}
	t.instruction = options[t.rng.Intn(len(options))]
	t.repaired = true
	t.repairs++
	t.log.Info("repair feedback",
		zap.Int("object", x),
		zap.Int("goal", t.goalIdx),
		zap.String("instruction", t.instruction),
	)
	return nil
}

func (t *LanguageTask) repairUtterances(wrong, goal command.Pair) ([]string, error) {
	var out []string
	for _, class := range t.repairClasses() {
		req := command.Request{Class: class, Verbs: t.variant.verbs(), Target: goal, Other: wrong}
		if class == command.Negation {
			req.Target = wrong
		}
		sentences, err := t.gen.Generate(req)
		if err != nil {
			return nil, err
		}
		out = append(out, sentences...)
	}
	return out, nil
}

// repairClasses lists the feedback classes; negation only disambiguates when
// exactly one other object remains.
func (t *LanguageTask) repairClasses() []command.Class {
	classes := []command.Class{command.Repair, command.ActionRepair}
	if t.cfg.NumObj == 2 {
		classes = append(classes, command.Negation)
	}
	return classes
}

// Metrics returns the cumulative counters of the enabled features: hindsight
// keys only with hindsight instructions on, repairs only with repairs on.
func (t *LanguageTask) Metrics() map[string]float64 {
	m := map[string]float64{}
	if t.cfg.UseHindsight {
		rate := 0.0
		if t.hiEpisodes > 0 {
			rate = round2(float64(t.hiDiscoveries) / float64(t.hiEpisodes))
		}
		m["hi_episodes"] = float64(t.hiEpisodes)
		m["hi_discoveries"] = float64(t.hiDiscoveries)
		m["hi_discovery_rate"] = rate
	}
	if t.cfg.UseRepairs {
		m["repairs"] = float64(t.repairs)
	}
	return m
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
