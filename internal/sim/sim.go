// Package sim declares the simulator and robot capabilities the task engine
// consumes, plus a deterministic kinematic implementation of both.
package sim

import (
	"errors"
	"math"
)

var (
	ErrUnknownBody   = errors.New("unknown body")
	ErrDuplicateBody = errors.New("body already exists")
	ErrInvalidShape  = errors.New("invalid body geometry")
)

type Vec3 [3]float64

// Quat is an (x, y, z, w) quaternion.
type Quat [4]float64

// Identity is the unrotated orientation.
var Identity = Quat{0, 0, 0, 1}

type Pose struct {
	Position    Vec3
	Orientation Quat
}

// BodySpec carries the physical properties shared by every primitive.
type BodySpec struct {
	Mass  float64
	Pose  Pose
	RGBA  [4]float64
	Ghost bool
}

// Simulator is the physics backend. Names identify bodies; ids are the
// backend's integer handles as reported by raycasts.
type Simulator interface {
	CreateBox(name string, halfExtents Vec3, spec BodySpec) error
	CreateCylinder(name string, radius, height float64, spec BodySpec) error
	CreateSphere(name string, radius float64, spec BodySpec) error
	BasePosition(name string) (Vec3, error)
	// BaseRotation returns roll, pitch and yaw.
	BaseRotation(name string) (Vec3, error)
	BaseVelocity(name string) (Vec3, error)
	BaseAngularVelocity(name string) (Vec3, error)
	RemoveBody(name string) error
	SetBasePose(name string, pos Vec3, orn Quat) error
	// ContactPoints counts contacts between bodyA and link of bodyB.
	ContactPoints(bodyA, bodyB string, link int) (int, error)
	ObjectID(name string) (int, error)
	Bodies() []string
	// NoRendering runs fn with rendering suspended.
	NoRendering(fn func() error) error
}

// Robot is the manipulator the agent controls.
type Robot interface {
	BodyName() string
	EEPosition() Vec3
	// FingerLinks returns the link indices of the two gripper fingers.
	FingerLinks() [2]int
	// GripperRay returns the id of the body between the fingers, or -1.
	GripperRay() int
	CameraImage() (Image, error)
}

// Image is an interleaved RGB raster.
type Image struct {
	Width  int
	Height int
	Pixels []uint8
}

// Euler converts an orientation to roll, pitch and yaw.
func Euler(q Quat) Vec3 {
	x, y, z, w := q[0], q[1], q[2], q[3]
	roll := math.Atan2(2*(w*x+y*z), 1-2*(x*x+y*y))
	sinp := 2 * (w*y - z*x)
	var pitch float64
	if math.Abs(sinp) >= 1 {
		pitch = math.Copysign(math.Pi/2, sinp)
	} else {
		pitch = math.Asin(sinp)
	}
	yaw := math.Atan2(2*(w*z+x*y), 1-2*(y*y+z*z))
	return Vec3{roll, pitch, yaw}
}
