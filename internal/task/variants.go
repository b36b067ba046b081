package task

import (
	"gonum.org/v1/gonum/floats"
)

const (
	// reachTolerance bounds the total displacement of all objects while reaching.
	reachTolerance = 0.025
	// pushDistance is the horizontal displacement that counts as a push.
	pushDistance = 0.05
)

// variant is the kind-specific part of a task: its verbs and the geometric
// predicates evaluated on the goal and on the other selected objects.
type variant interface {
	verbs() []string
	achieved(t *LanguageTask, idx int) (bool, error)
	// incidental reports whether a non-goal object was handled in a way that
	// earns a hindsight instruction.
	incidental(t *LanguageTask, idx int) (bool, error)
}

func variantFor(k Kind) variant {
	switch k {
	case KindPush:
		return push{}
	case KindGrasp:
		return lift{words: []string{"grasp", "grip", "grab"}}
	case KindLift:
		return lift{words: []string{"lift", "raise", "hoist"}}
	default:
		return reach{}
	}
}

type reach struct{}

func (reach) verbs() []string { return []string{"touch", "reach", "contact"} }

func (reach) achieved(t *LanguageTask, idx int) (bool, error) {
	touched, err := t.anyFingerContact(idx)
	if err != nil || !touched {
		return false, err
	}
	var initial, current []float64
	for _, sel := range t.selection {
		pos, err := t.sim.BasePosition(BodyName(sel))
		if err != nil {
			return false, err
		}
		start := t.initPos[sel]
		initial = append(initial, start[:]...)
		current = append(current, pos[:]...)
	}
	return floats.Distance(initial, current, 2) < reachTolerance, nil
}

func (reach) incidental(t *LanguageTask, idx int) (bool, error) {
	return t.anyFingerContact(idx)
}

type push struct{}

func (push) verbs() []string { return []string{"push", "shove", "nudge"} }

func (push) achieved(t *LanguageTask, idx int) (bool, error) {
	pos, err := t.sim.BasePosition(BodyName(idx))
	if err != nil {
		return false, err
	}
	start := t.initPos[idx]
	return floats.Distance(start[:2], pos[:2], 2) >= pushDistance, nil
}

func (p push) incidental(t *LanguageTask, idx int) (bool, error) {
	return p.achieved(t, idx)
}

// lift covers grasping too; grasp only differs in its verbs and the capped
// height threshold.
type lift struct {
	words []string
}

func (l lift) verbs() []string { return l.words }

func (lift) achieved(t *LanguageTask, idx int) (bool, error) {
	name := BodyName(idx)
	pos, err := t.sim.BasePosition(name)
	if err != nil {
		return false, err
	}
	id, err := t.sim.ObjectID(name)
	if err != nil {
		return false, err
	}
	both, err := t.allFingerContact(idx)
	if err != nil {
		return false, err
	}
	return both && pos[2] > t.heightThreshold && t.robot.GripperRay() == id, nil
}

func (l lift) incidental(t *LanguageTask, idx int) (bool, error) {
	return l.achieved(t, idx)
}

func (t *LanguageTask) fingerContacts(idx int) ([2]bool, error) {
	var out [2]bool
	for i, link := range t.robot.FingerLinks() {
		n, err := t.sim.ContactPoints(BodyName(idx), t.robot.BodyName(), link)
		if err != nil {
			return out, err
		}
		out[i] = n > 0
	}
	return out, nil
}

func (t *LanguageTask) anyFingerContact(idx int) (bool, error) {
	c, err := t.fingerContacts(idx)
	return c[0] || c[1], err
}

func (t *LanguageTask) allFingerContact(idx int) (bool, error) {
	c, err := t.fingerContacts(idx)
	return c[0] && c[1], err
}
