package itersolve

import (
	"math"
	"testing"

	"gopper-motion/segq"
	"gopper-motion/stepcompress"
)

func approxEqual(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

func newXStepper(stepDist float64) (*StepperKinematics, *segq.Queue, *stepcompress.Compressor) {
	sk := &StepperKinematics{
		CalcPos:     func(seg *segq.Segment, t float64) float64 { return segq.GetCoord(seg, t).X },
		ActiveFlags: AFX,
	}
	q := segq.NewQueue()
	sc := stepcompress.NewCompressor(0)
	sc.Fill(1, false, 1, 2, 3)
	sc.SetTime(0, 1e6)
	sk.SetSegq(q)
	sk.SetStepcompress(sc, stepDist)
	return sk, q, sc
}

func TestGenerateStepsConstantVelocity(t *testing.T) {
	stepDist := 0.1
	sk, q, _ := newXStepper(stepDist)

	// 10 steps of 0.1mm at 0.05ms intervals => 1mm over 0.5ms at v=2000mm/s (S4-style scenario).
	q.Append(0, 0, 0.0005, 0, 0, 0, 0, 1, 0, 0, 2000, 2000, 0)

	if err := sk.GenerateSteps(0.0005); err != nil {
		t.Fatalf("GenerateSteps: %v", err)
	}
	if !approxEqual(sk.GetCommandedPos(), 1.0, 1e-6) {
		t.Errorf("commanded position = %v, want ~1.0", sk.GetCommandedPos())
	}
}

func TestCheckActiveFindsMovingSegment(t *testing.T) {
	sk, q, _ := newXStepper(0.1)
	// A stationary segment followed by a moving one.
	q.Append(0, 0, 1.0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0)
	q.Append(1.0, 0, 1.0, 0, 0, 0, 0, 1, 0, 0, 10, 10, 0)

	active := sk.CheckActive(2.0)
	if !approxEqual(active, 1.0, 1e-9) {
		t.Errorf("CheckActive() = %v, want 1.0", active)
	}
}

func TestIsActiveAxis(t *testing.T) {
	sk := &StepperKinematics{ActiveFlags: AFX | AFZ}
	if !sk.IsActiveAxis('x') {
		t.Errorf("expected x active")
	}
	if sk.IsActiveAxis('y') {
		t.Errorf("expected y inactive")
	}
	if !sk.IsActiveAxis('z') {
		t.Errorf("expected z active")
	}
}

func TestSetPositionSeedsCommandedPos(t *testing.T) {
	sk, _, _ := newXStepper(0.1)
	sk.SetPosition(5, 0, 0)
	if !approxEqual(sk.GetCommandedPos(), 5.0, 1e-9) {
		t.Errorf("GetCommandedPos() = %v, want 5.0", sk.GetCommandedPos())
	}
}
