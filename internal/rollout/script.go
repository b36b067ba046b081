package rollout

import (
	"math"

	"lingotask/internal/sim"
	"lingotask/internal/task"
)

const (
	approachHeight = 0.1
	liftHeight     = 0.15
	pushStroke     = 0.06
)

// action is one controller move applied before a Step.
type action func(arm *sim.Arm)

// plan returns the scripted moves that make the arm perform the task
// variant on the object resting at pos.
func plan(kind task.Kind, pos sim.Vec3) []action {
	above := sim.Vec3{pos[0], pos[1], pos[2] + approachHeight}
	approach := func(arm *sim.Arm) { arm.MoveTo(above) }
	touch := func(arm *sim.Arm) { arm.MoveTo(pos) }

	switch kind {
	case task.KindPush:
		dx, dy := pushDirection(pos)
		return []action{approach, touch, func(arm *sim.Arm) { arm.Push(dx, dy) }}
	case task.KindGrasp, task.KindLift:
		return []action{
			approach,
			touch,
			func(arm *sim.Arm) { arm.Grip() },
			func(arm *sim.Arm) { arm.MoveTo(sim.Vec3{pos[0], pos[1], pos[2] + liftHeight}) },
		}
	default:
		return []action{approach, touch}
	}
}

// pushDirection points away from the table center so pushed objects do not
// run into each other.
func pushDirection(pos sim.Vec3) (float64, float64) {
	norm := math.Hypot(pos[0], pos[1])
	if norm == 0 {
		return pushStroke, 0
	}
	return pushStroke * pos[0] / norm, pushStroke * pos[1] / norm
}
