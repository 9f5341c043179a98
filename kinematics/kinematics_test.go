package kinematics

import (
	"math"
	"testing"

	"gopper-motion/segq"
)

func approxEqual(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

func straightSegment() *segq.Segment {
	q := segq.NewQueue()
	q.Append(0, 1.0, 0, 0, 0, 0, 0, 1, 1, 0, 0, 10, 10)
	return q.First()
}

func TestCartesianAxes(t *testing.T) {
	k := NewCartesian()
	seg := straightSegment()

	for _, axis := range []string{"x", "y", "z"} {
		f, err := k.StepperCalcPosition(axis)
		if err != nil {
			t.Fatalf("StepperCalcPosition(%q): %v", axis, err)
		}
		_ = f(seg, 0.5)
	}
	if _, err := k.StepperCalcPosition("w"); err == nil {
		t.Errorf("expected error for unknown axis")
	}
}

func TestCoreXYCombinesXAndY(t *testing.T) {
	k := NewCoreXY()
	seg := straightSegment()

	a, err := k.StepperCalcPosition("a")
	if err != nil {
		t.Fatalf("a axis: %v", err)
	}
	b, err := k.StepperCalcPosition("b")
	if err != nil {
		t.Fatalf("b axis: %v", err)
	}
	c := segq.GetCoord(seg, 0.5)
	if !approxEqual(a(seg, 0.5), c.X+c.Y, 1e-9) {
		t.Errorf("a stepper position mismatch")
	}
	if !approxEqual(b(seg, 0.5), c.X-c.Y, 1e-9) {
		t.Errorf("b stepper position mismatch")
	}
}

func TestDeltaTowersSymmetric(t *testing.T) {
	k := NewDelta(100, 200)
	if len(k.GetAxisNames()) != 3 {
		t.Fatalf("expected 3 tower axes")
	}

	q := segq.NewQueue()
	// Effector at the origin, stationary: every tower carriage should sit at
	// the same height since the towers are placed symmetrically.
	q.Append(0, 1.0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0)
	seg := q.First()

	var heights [3]float64
	for i, axis := range k.GetAxisNames() {
		f, err := k.StepperCalcPosition(axis)
		if err != nil {
			t.Fatalf("%s: %v", axis, err)
		}
		heights[i] = f(seg, 0.5)
	}
	for i := 1; i < 3; i++ {
		if !approxEqual(heights[i], heights[0], 1e-9) {
			t.Errorf("tower heights should match at a centered stationary effector: %v", heights)
		}
	}
}
