package stats

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"lingotask/internal/model"
)

// Summary aggregates the outcomes of a run's episodes.
type Summary struct {
	Episodes      int     `json:"episodes"`
	Successes     int     `json:"successes"`
	SuccessRate   float64 `json:"success_rate"`
	Hindsight     int     `json:"hindsight"`
	HindsightRate float64 `json:"hindsight_rate"`
	Repairs       int     `json:"repairs"`
	Timeouts      int     `json:"timeouts"`
	MeanReturn    float64 `json:"mean_return"`
	StdReturn     float64 `json:"std_return"`
	MinReturn     float64 `json:"min_return"`
	MaxReturn     float64 `json:"max_return"`
	MeanSteps     float64 `json:"mean_steps"`
}

func Summarize(episodes []model.EpisodeRecord) Summary {
	s := Summary{Episodes: len(episodes)}
	if len(episodes) == 0 {
		return s
	}

	returns := make([]float64, len(episodes))
	steps := make([]float64, len(episodes))
	for i, ep := range episodes {
		returns[i] = ep.Return
		steps[i] = float64(ep.Steps)
		if ep.Success {
			s.Successes++
		}
		if ep.Hindsight {
			s.Hindsight++
		}
		if ep.Repaired {
			s.Repairs++
		}
		if ep.Timeout {
			s.Timeouts++
		}
	}

	n := float64(len(episodes))
	s.SuccessRate = round(float64(s.Successes)/n, 4)
	s.HindsightRate = round(float64(s.Hindsight)/n, 4)
	if len(returns) > 1 {
		s.MeanReturn, s.StdReturn = stat.MeanStdDev(returns, nil)
	} else {
		s.MeanReturn = returns[0]
	}
	s.MinReturn = floats.Min(returns)
	s.MaxReturn = floats.Max(returns)
	s.MeanSteps = stat.Mean(steps, nil)
	return s
}

func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
