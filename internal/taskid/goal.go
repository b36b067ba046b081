package taskid

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"lingotask/internal/env"
	"lingotask/internal/task"
)

var goalPattern = regexp.MustCompile(`^([A-Z][a-z0-9]*)(Reach|Push)(Dense)?-v(\d+)$`)

// GoalID is the decoded form of a goal-conditioned registry id such as
// PandaPushDense-v0.
type GoalID struct {
	Robot      string
	Kind       task.Kind
	RewardType task.RewardType
	Version    int
}

// IsGoal reports whether raw names a goal-conditioned environment.
func IsGoal(raw string) bool {
	return goalPattern.MatchString(strings.TrimSpace(raw))
}

func ParseGoal(raw string) (GoalID, error) {
	m := goalPattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return GoalID{}, fmt.Errorf("%w: %q", ErrUnknownID, raw)
	}
	version, err := strconv.Atoi(m[4])
	if err != nil {
		return GoalID{}, fmt.Errorf("%w: bad version in %q", ErrUnknownID, raw)
	}
	reward := task.RewardSparse
	if m[3] != "" {
		reward = task.RewardDense
	}
	return GoalID{
		Robot:      strings.ToLower(m[1]),
		Kind:       task.Kind(NormalizeKind(m[2])),
		RewardType: reward,
		Version:    version,
	}, nil
}

func (id GoalID) String() string {
	robot := id.Robot
	if robot == "" {
		robot = "panda"
	}
	kind := string(id.Kind)
	s := strings.ToUpper(robot[:1]) + robot[1:] + strings.ToUpper(kind[:1]) + kind[1:]
	if id.RewardType == task.RewardDense {
		s += "Dense"
	}
	return s + "-v" + strconv.Itoa(id.Version)
}

func (id GoalID) Config() env.GoalConfig {
	cfg := env.DefaultGoalConfig(id.Kind)
	cfg.Task.RewardType = id.RewardType
	return cfg
}
