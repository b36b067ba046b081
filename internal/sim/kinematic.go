package sim

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

const (
	// StepDuration is the time one kinematic move represents.
	StepDuration = 1.0 / 25.0
	// ContactMargin is the gap within which a finger counts as touching.
	ContactMargin = 0.01

	imageSide  = 32
	imageRange = 0.5
)

type kind int

const (
	kindBox kind = iota
	kindCylinder
	kindSphere
)

type body struct {
	id     int
	name   string
	kind   kind
	extent Vec3 // half extents of the bounding box
	spec   BodySpec
	vel    Vec3
	angVel Vec3
}

// Scene is a kinematic Simulator: bodies only move when the arm moves them
// or a pose is set. It has no dynamics.
type Scene struct {
	bodies    map[string]*body
	nextID    int
	rendering bool
	arm       *Arm
}

// NewScene returns an empty scene. Body ids start at 1; 0 is reserved for
// the robot.
func NewScene() *Scene {
	return &Scene{bodies: map[string]*body{}, nextID: 1, rendering: true}
}

func (s *Scene) add(name string, k kind, extent Vec3, spec BodySpec) error {
	if _, ok := s.bodies[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateBody, name)
	}
	for _, e := range extent {
		if e <= 0 || math.IsNaN(e) {
			return fmt.Errorf("%w: %s extent %v", ErrInvalidShape, name, extent)
		}
	}
	if spec.Pose.Orientation == (Quat{}) {
		spec.Pose.Orientation = Identity
	}
	s.bodies[name] = &body{id: s.nextID, name: name, kind: k, extent: extent, spec: spec}
	s.nextID++
	return nil
}

func (s *Scene) CreateBox(name string, halfExtents Vec3, spec BodySpec) error {
	return s.add(name, kindBox, halfExtents, spec)
}

func (s *Scene) CreateCylinder(name string, radius, height float64, spec BodySpec) error {
	return s.add(name, kindCylinder, Vec3{radius, radius, height / 2}, spec)
}

func (s *Scene) CreateSphere(name string, radius float64, spec BodySpec) error {
	return s.add(name, kindSphere, Vec3{radius, radius, radius}, spec)
}

func (s *Scene) get(name string) (*body, error) {
	b, ok := s.bodies[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBody, name)
	}
	return b, nil
}

func (s *Scene) BasePosition(name string) (Vec3, error) {
	b, err := s.get(name)
	if err != nil {
		return Vec3{}, err
	}
	return b.spec.Pose.Position, nil
}

func (s *Scene) BaseRotation(name string) (Vec3, error) {
	b, err := s.get(name)
	if err != nil {
		return Vec3{}, err
	}
	return Euler(b.spec.Pose.Orientation), nil
}

func (s *Scene) BaseVelocity(name string) (Vec3, error) {
	b, err := s.get(name)
	if err != nil {
		return Vec3{}, err
	}
	return b.vel, nil
}

func (s *Scene) BaseAngularVelocity(name string) (Vec3, error) {
	b, err := s.get(name)
	if err != nil {
		return Vec3{}, err
	}
	return b.angVel, nil
}

func (s *Scene) RemoveBody(name string) error {
	if _, err := s.get(name); err != nil {
		return err
	}
	if s.arm != nil && s.arm.held == name {
		s.arm.held = ""
	}
	delete(s.bodies, name)
	return nil
}

func (s *Scene) SetBasePose(name string, pos Vec3, orn Quat) error {
	b, err := s.get(name)
	if err != nil {
		return err
	}
	b.spec.Pose = Pose{Position: pos, Orientation: orn}
	b.vel = Vec3{}
	b.angVel = Vec3{}
	return nil
}

// ContactPoints reports one contact when the named finger link of the robot
// touches the body. Order of the two body names does not matter.
func (s *Scene) ContactPoints(bodyA, bodyB string, link int) (int, error) {
	if s.arm == nil {
		return 0, nil
	}
	object := bodyA
	switch s.arm.name {
	case bodyA:
		object = bodyB
	case bodyB:
	default:
		return 0, nil
	}
	b, err := s.get(object)
	if err != nil {
		return 0, err
	}
	if s.arm.fingerTouches(b, link) {
		return 1, nil
	}
	return 0, nil
}

func (s *Scene) ObjectID(name string) (int, error) {
	b, err := s.get(name)
	if err != nil {
		return -1, err
	}
	return b.id, nil
}

// Bodies returns the body names in sorted order.
func (s *Scene) Bodies() []string {
	out := make([]string, 0, len(s.bodies))
	for name := range s.bodies {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (s *Scene) NoRendering(fn func() error) error {
	prev := s.rendering
	s.rendering = false
	defer func() { s.rendering = prev }()
	return fn()
}

// Rendering reports whether rendering is currently enabled.
func (s *Scene) Rendering() bool {
	return s.rendering
}

// Settle zeroes every body velocity.
func (s *Scene) Settle() {
	for _, b := range s.bodies {
		b.vel = Vec3{}
		b.angVel = Vec3{}
	}
}

func (s *Scene) move(b *body, to Vec3) {
	from := b.spec.Pose.Position
	for i := range to {
		b.vel[i] = (to[i] - from[i]) / StepDuration
	}
	b.spec.Pose.Position = to
}

// Arm is a kinematic gripper whose end effector teleports between targets.
type Arm struct {
	scene  *Scene
	name   string
	ee     Vec3
	closed bool
	held   string
}

// NewArm attaches an arm to the scene with its end effector at home.
func (s *Scene) NewArm(name string, home Vec3) *Arm {
	a := &Arm{scene: s, name: name, ee: home}
	s.arm = a
	return a
}

func (a *Arm) BodyName() string    { return a.name }
func (a *Arm) EEPosition() Vec3    { return a.ee }
func (a *Arm) FingerLinks() [2]int { return [2]int{9, 10} }
func (a *Arm) Holding() string     { return a.held }
func (a *Arm) Closed() bool        { return a.closed }

// GripperRay reports the body the closed fingers enclose.
func (a *Arm) GripperRay() int {
	if a.held == "" {
		return -1
	}
	b, err := a.scene.get(a.held)
	if err != nil {
		return -1
	}
	return b.id
}

// near reports whether the end effector is within reach of b. Ghost bodies
// are never within reach.
func (a *Arm) near(b *body) bool {
	if b.spec.Ghost {
		return false
	}
	pos := b.spec.Pose.Position
	for i := range pos {
		if math.Abs(a.ee[i]-pos[i]) > b.extent[i]+ContactMargin {
			return false
		}
	}
	return true
}

func (a *Arm) fingerTouches(b *body, link int) bool {
	links := a.FingerLinks()
	if link != links[0] && link != links[1] {
		return false
	}
	if a.held == b.name {
		return true
	}
	return link == links[0] && a.near(b)
}

// MoveTo teleports the end effector. A held body travels with it.
func (a *Arm) MoveTo(target Vec3) {
	delta := floats.Distance(target[:], a.ee[:], 2)
	a.ee = target
	if a.held == "" || delta == 0 {
		return
	}
	if b, err := a.scene.get(a.held); err == nil {
		a.scene.move(b, target)
	}
}

// Push translates the end effector horizontally and drags every body it is
// touching along.
func (a *Arm) Push(dx, dy float64) {
	var touched []*body
	for _, name := range a.scene.Bodies() {
		b := a.scene.bodies[name]
		if name != a.held && a.near(b) {
			touched = append(touched, b)
		}
	}
	a.MoveTo(Vec3{a.ee[0] + dx, a.ee[1] + dy, a.ee[2]})
	for _, b := range touched {
		p := b.spec.Pose.Position
		a.scene.move(b, Vec3{p[0] + dx, p[1] + dy, p[2]})
	}
}

// Grip closes the fingers and picks up the nearest body within reach.
func (a *Arm) Grip() string {
	a.closed = true
	best, bestDist := "", math.Inf(1)
	for _, name := range a.scene.Bodies() {
		b := a.scene.bodies[name]
		if !a.near(b) {
			continue
		}
		pos := b.spec.Pose.Position
		if d := floats.Distance(pos[:], a.ee[:], 2); d < bestDist {
			best, bestDist = name, d
		}
	}
	a.held = best
	return best
}

// Release opens the fingers and puts the held body back on the table.
func (a *Arm) Release() {
	a.closed = false
	if a.held == "" {
		return
	}
	if b, err := a.scene.get(a.held); err == nil {
		p := b.spec.Pose.Position
		a.scene.move(b, Vec3{p[0], p[1], b.extent[2]})
	}
	a.held = ""
}

// CameraImage renders a top-down view with every body drawn as its
// bounding square in its own color.
func (a *Arm) CameraImage() (Image, error) {
	img := Image{Width: imageSide, Height: imageSide, Pixels: make([]uint8, imageSide*imageSide*3)}
	toPixel := func(v float64) int {
		return int(math.Floor((v + imageRange) / (2 * imageRange) * imageSide))
	}
	for _, name := range a.scene.Bodies() {
		b := a.scene.bodies[name]
		pos := b.spec.Pose.Position
		x0, x1 := toPixel(pos[0]-b.extent[0]), toPixel(pos[0]+b.extent[0])
		y0, y1 := toPixel(pos[1]-b.extent[1]), toPixel(pos[1]+b.extent[1])
		for y := max(y0, 0); y <= min(y1, imageSide-1); y++ {
			for x := max(x0, 0); x <= min(x1, imageSide-1); x++ {
				off := (y*imageSide + x) * 3
				for c := 0; c < 3; c++ {
					img.Pixels[off+c] = uint8(math.Round(b.spec.RGBA[c] * 255))
				}
			}
		}
	}
	return img, nil
}
