package planner

import (
	"math"
	"testing"

	"gopper-motion/move"
)

func approxEqual(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

// TestTrapezoidalReachesCruiseSpeed exercises S1: a 10mm move at 100mm/s and
// 1000mm/s^2 reaches its cruise speed exactly at the midpoint, so it splits
// into equal 5mm accel/decel phases with no cruise segment in between.
func TestTrapezoidalReachesCruiseSpeed(t *testing.T) {
	q, err := move.NewQueue(4)
	if err != nil {
		t.Fatalf("NewQueue: %v", err)
	}
	m, err := q.Reserve([4]float64{0, 0, 0, 0}, [4]float64{10, 0, 0, 0}, 100, 1000, 1000, 0)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	q.Commit()

	p := NewTrapezoidal(q)
	flushed := p.Flush(false)
	if flushed != 1 {
		t.Fatalf("expected 1 move flushed, got %d", flushed)
	}

	if !approxEqual(m.CruiseV, 100, 1e-6) {
		t.Errorf("cruise_v = %v, want ~100", m.CruiseV)
	}
	if m.AccelT <= 0 || m.DecelT <= 0 || m.CruiseT != 0 {
		t.Errorf("expected accel and decel phases with no cruise phase, got accel_t=%v cruise_t=%v decel_t=%v", m.AccelT, m.CruiseT, m.DecelT)
	}
	total := m.AccelT + m.CruiseT + m.DecelT
	if !approxEqual(total, 0.2, 1e-3) {
		t.Errorf("total time = %v, want ~0.2s", total)
	}

	distTraveled := 0.5*(m.StartV+m.CruiseV)*m.AccelT + m.CruiseV*m.CruiseT + 0.5*(m.EndV+m.CruiseV)*m.DecelT
	if !approxEqual(distTraveled, m.MoveD, 1e-9*math.Max(1, m.MoveD)) {
		t.Errorf("integrated distance = %v, want %v", distTraveled, m.MoveD)
	}
}

// TestTrapezoidalJunctionVelocity exercises S2: a right-angle corner at
// junction_deviation=0.05 should cap the junction speed near 10.99 and the
// first move should decelerate into it while the second accelerates away.
func TestTrapezoidalJunctionVelocity(t *testing.T) {
	q, err := move.NewQueue(4)
	if err != nil {
		t.Fatalf("NewQueue: %v", err)
	}
	m1, err := q.Reserve([4]float64{0, 0, 0, 0}, [4]float64{10, 0, 0, 0}, 100, 1000, 1000, 0)
	if err != nil {
		t.Fatalf("Reserve m1: %v", err)
	}
	q.Commit()
	m2, err := q.Reserve([4]float64{10, 0, 0, 0}, [4]float64{10, 10, 0, 0}, 100, 1000, 1000, 0)
	if err != nil {
		t.Fatalf("Reserve m2: %v", err)
	}
	m2.CalcJunction(m1, 0.05, 0)
	q.Commit()

	wantJunctionV := 10.99
	gotJunctionV := math.Sqrt(m2.MaxJunctionV2)
	if !approxEqual(gotJunctionV, wantJunctionV, 0.05) {
		t.Errorf("junction v = %v, want ~%v", gotJunctionV, wantJunctionV)
	}

	p := NewTrapezoidal(q)
	flushed := p.Flush(false)
	if flushed != 2 {
		t.Fatalf("expected 2 moves flushed, got %d", flushed)
	}

	if !approxEqual(m1.EndV, gotJunctionV, 1e-6) {
		t.Errorf("m1.end_v = %v, want %v (matching junction speed)", m1.EndV, gotJunctionV)
	}
	if !approxEqual(m2.StartV, gotJunctionV, 1e-6) {
		t.Errorf("m2.start_v = %v, want %v (matching junction speed)", m2.StartV, gotJunctionV)
	}
}
