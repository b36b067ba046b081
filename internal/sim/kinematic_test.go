package sim

import (
	"errors"
	"math"
	"testing"
)

func newTestScene(t *testing.T) (*Scene, *Arm) {
	t.Helper()
	s := NewScene()
	arm := s.NewArm("panda", Vec3{0, 0, 0.3})
	err := s.NoRendering(func() error {
		if s.Rendering() {
			t.Fatal("rendering should be suspended during setup")
		}
		if err := s.CreateBox("object0", Vec3{0.02, 0.02, 0.02}, BodySpec{Mass: 2, Pose: Pose{Position: Vec3{0.1, 0, 0.02}}, RGBA: [4]float64{1, 0, 0, 1}}); err != nil {
			return err
		}
		return s.CreateCylinder("object1", 0.02, 0.03, BodySpec{Mass: 8, Pose: Pose{Position: Vec3{-0.1, 0, 0.015}}, RGBA: [4]float64{0, 0, 1, 1}})
	})
	if err != nil {
		t.Fatalf("setup scene: %v", err)
	}
	if !s.Rendering() {
		t.Fatal("rendering should be restored")
	}
	return s, arm
}

func TestBodyRegistry(t *testing.T) {
	s, _ := newTestScene(t)
	if got := s.Bodies(); len(got) != 2 || got[0] != "object0" || got[1] != "object1" {
		t.Fatalf("unexpected bodies: %v", got)
	}
	if err := s.CreateSphere("object0", 0.01, BodySpec{}); !errors.Is(err, ErrDuplicateBody) {
		t.Fatalf("expected ErrDuplicateBody, got %v", err)
	}
	if _, err := s.BasePosition("ghost"); !errors.Is(err, ErrUnknownBody) {
		t.Fatalf("expected ErrUnknownBody, got %v", err)
	}
	if err := s.CreateBox("flat", Vec3{0.1, 0, 0.1}, BodySpec{}); !errors.Is(err, ErrInvalidShape) {
		t.Fatalf("expected ErrInvalidShape, got %v", err)
	}
	if err := s.RemoveBody("object1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(s.Bodies()) != 1 {
		t.Fatalf("expected one body left, got %v", s.Bodies())
	}
}

func TestTouchContactsOneFinger(t *testing.T) {
	s, arm := newTestScene(t)
	links := arm.FingerLinks()
	arm.MoveTo(Vec3{0.1, 0, 0.04})
	n, err := s.ContactPoints("object0", "panda", links[0])
	if err != nil || n != 1 {
		t.Fatalf("expected first finger contact, got %d %v", n, err)
	}
	n, _ = s.ContactPoints("object0", "panda", links[1])
	if n != 0 {
		t.Fatal("second finger should not touch an ungripped body")
	}
	n, _ = s.ContactPoints("object1", "panda", links[0])
	if n != 0 {
		t.Fatal("far body must not be touched")
	}
}

func TestGripLiftAndRelease(t *testing.T) {
	s, arm := newTestScene(t)
	arm.MoveTo(Vec3{0.1, 0, 0.02})
	if got := arm.Grip(); got != "object0" {
		t.Fatalf("expected to grip object0, got %q", got)
	}
	id, _ := s.ObjectID("object0")
	if arm.GripperRay() != id {
		t.Fatalf("gripper ray %d, want %d", arm.GripperRay(), id)
	}
	arm.MoveTo(Vec3{0.1, 0, 0.12})
	pos, _ := s.BasePosition("object0")
	if math.Abs(pos[2]-0.12) > 1e-12 {
		t.Fatalf("held body should follow the gripper, z=%v", pos[2])
	}
	vel, _ := s.BaseVelocity("object0")
	if vel[2] <= 0 {
		t.Fatalf("expected upward velocity, got %v", vel)
	}
	for _, link := range arm.FingerLinks() {
		if n, _ := s.ContactPoints("panda", "object0", link); n != 1 {
			t.Fatalf("link %d should touch the held body", link)
		}
	}
	arm.Release()
	pos, _ = s.BasePosition("object0")
	if math.Abs(pos[2]-0.02) > 1e-12 || arm.GripperRay() != -1 {
		t.Fatalf("released body should rest on the table: %v", pos)
	}
	s.Settle()
	if vel, _ := s.BaseVelocity("object0"); vel != (Vec3{}) {
		t.Fatalf("settle should zero velocity, got %v", vel)
	}
}

func TestPushDragsTouchedBody(t *testing.T) {
	s, arm := newTestScene(t)
	arm.MoveTo(Vec3{-0.1, 0, 0.02})
	arm.Push(0.06, 0)
	pos, _ := s.BasePosition("object1")
	if math.Abs(pos[0]-(-0.04)) > 1e-12 {
		t.Fatalf("pushed body x=%v", pos[0])
	}
	other, _ := s.BasePosition("object0")
	if other != (Vec3{0.1, 0, 0.02}) {
		t.Fatalf("untouched body moved: %v", other)
	}
}

func TestRotationAndImage(t *testing.T) {
	s, arm := newTestScene(t)
	half := math.Sqrt2 / 2
	if err := s.SetBasePose("object0", Vec3{0, 0.1, 0.02}, Quat{0, 0, half, half}); err != nil {
		t.Fatalf("set pose: %v", err)
	}
	rot, _ := s.BaseRotation("object0")
	if math.Abs(rot[2]-math.Pi/2) > 1e-9 {
		t.Fatalf("expected yaw pi/2, got %v", rot)
	}
	img, err := arm.CameraImage()
	if err != nil {
		t.Fatalf("camera: %v", err)
	}
	if len(img.Pixels) != img.Width*img.Height*3 {
		t.Fatalf("unexpected image size %d", len(img.Pixels))
	}
	lit := 0
	for _, p := range img.Pixels {
		if p != 0 {
			lit++
		}
	}
	if lit == 0 {
		t.Fatal("expected bodies to be drawn")
	}
}

func TestGhostBodiesAreIntangible(t *testing.T) {
	s, arm := newTestScene(t)
	target := Vec3{0, 0.1, 0.02}
	if err := s.CreateSphere("target", 0.025, BodySpec{Pose: Pose{Position: target}, Ghost: true}); err != nil {
		t.Fatalf("create ghost: %v", err)
	}
	arm.MoveTo(target)
	n, err := s.ContactPoints("target", "panda", arm.FingerLinks()[0])
	if err != nil || n != 0 {
		t.Fatalf("ghost must not report contacts, got %d %v", n, err)
	}
	if held := arm.Grip(); held != "" {
		t.Fatalf("gripped ghost body %q", held)
	}
	arm.Release()
	arm.Push(0.05, 0)
	if pos, _ := s.BasePosition("target"); pos != target {
		t.Fatalf("pushing moved the ghost to %v", pos)
	}
	if err := s.SetBasePose("target", Vec3{0.2, 0.2, 0.1}, Identity); err != nil {
		t.Fatalf("set pose: %v", err)
	}
	if pos, _ := s.BasePosition("target"); pos != (Vec3{0.2, 0.2, 0.1}) {
		t.Fatalf("ghost not moved by SetBasePose: %v", pos)
	}
}
