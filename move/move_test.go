package move

import (
	"math"
	"testing"
)

func approxEqual(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

func TestInitStraightMove(t *testing.T) {
	var m Move
	m.Init([4]float64{0, 0, 0, 0}, [4]float64{10, 0, 0, 0}, 100, 1000, 1000, 0)

	if !m.IsKinematicMove {
		t.Fatalf("expected kinematic move")
	}
	if !approxEqual(m.MoveD, 10, 1e-9) {
		t.Errorf("move_d = %v, want 10", m.MoveD)
	}
	if !approxEqual(m.AxesR[0], 1.0, 1e-9) {
		t.Errorf("axes_r.x = %v, want 1.0", m.AxesR[0])
	}
	if m.MaxCruiseV2 != 10000 {
		t.Errorf("max_cruise_v2 = %v, want 10000", m.MaxCruiseV2)
	}
}

func TestInitExtrudeOnlyMove(t *testing.T) {
	var m Move
	m.Init([4]float64{0, 0, 0, 0}, [4]float64{0, 0, 0, 5}, 10, 1000, 1000, 0)

	if m.IsKinematicMove {
		t.Fatalf("expected extrude-only move to not be kinematic")
	}
	if !approxEqual(m.MoveD, 5, 1e-9) {
		t.Errorf("move_d = %v, want 5", m.MoveD)
	}
	for i := 0; i < 3; i++ {
		if m.AxesD[i] != 0 {
			t.Errorf("axes_d[%d] = %v, want 0", i, m.AxesD[i])
		}
	}
}

func TestLimitSpeedMonotonic(t *testing.T) {
	var m Move
	m.Init([4]float64{0, 0, 0, 0}, [4]float64{10, 0, 0, 0}, 100, 1000, 1000, 0)
	before := m.MaxCruiseV2
	m.LimitSpeed(200, 2000, 2000)
	if m.MaxCruiseV2 != before {
		t.Errorf("limit_speed should only shrink, got %v from %v", m.MaxCruiseV2, before)
	}
	m.LimitSpeed(50, 2000, 2000)
	if m.MaxCruiseV2 >= before {
		t.Errorf("limit_speed with smaller speed should shrink max_cruise_v2")
	}
}

func TestCalcJunctionCollinear(t *testing.T) {
	var prev, cur Move
	prev.Init([4]float64{0, 0, 0, 0}, [4]float64{10, 0, 0, 0}, 100, 1000, 1000, 0)
	cur.Init([4]float64{10, 0, 0, 0}, [4]float64{20, 0, 0, 0}, 100, 1000, 1000, 0)

	cur.CalcJunction(&prev, 0.05, 1.0)
	if cur.MaxJunctionV2 != cur.MaxCruiseV2 {
		t.Errorf("collinear junction should only be limited by max_cruise_v2 (%v), got %v", cur.MaxCruiseV2, cur.MaxJunctionV2)
	}
}

func TestCalcJunctionRightAngle(t *testing.T) {
	var prev, cur Move
	prev.Init([4]float64{0, 0, 0, 0}, [4]float64{10, 0, 0, 0}, 100, 1000, 1000, 0)
	cur.Init([4]float64{10, 0, 0, 0}, [4]float64{10, 10, 0, 0}, 100, 1000, 1000, 0)

	cur.CalcJunction(&prev, 0.05, 1.0)

	// S2 from spec: R ~= 0.1207, max_junction_v2 = min(R*a, 0.5*d*tan*a) = min(120.7, 5000)
	wantMin := 120.7
	if !approxEqual(cur.MaxJunctionV2, wantMin, 1.0) {
		t.Errorf("max_junction_v2 = %v, want ~%v", cur.MaxJunctionV2, wantMin)
	}
}

func TestCalculateTrapezoidalPureCruise(t *testing.T) {
	var m Move
	m.Init([4]float64{0, 0, 0, 0}, [4]float64{10, 0, 0, 0}, 100, 1000, 1000, 0)
	m.CalculateTrapezoidal(100, 100)

	total := m.AccelT*(m.StartV+m.CruiseV)/2 + m.CruiseT*m.CruiseV + m.DecelT*(m.EndV+m.CruiseV)/2
	if !approxEqual(total, m.MoveD, 1e-9*math.Max(1, m.MoveD)) {
		t.Errorf("distance mismatch: got %v want %v", total, m.MoveD)
	}
	if m.AccelT < 0 || m.CruiseT < 0 || m.DecelT < 0 {
		t.Errorf("segment times must be non-negative: %v %v %v", m.AccelT, m.CruiseT, m.DecelT)
	}
}

func TestCalculateJerkConstantProfile(t *testing.T) {
	var m Move
	m.Init([4]float64{0, 0, 0, 0}, [4]float64{10, 0, 0, 0}, 5, 1000, 1000, 100000)
	m.CalculateJerk(5, 5)

	if !approxEqual(m.CruiseV, 5, 1e-9) {
		t.Errorf("cruise_v = %v, want 5", m.CruiseV)
	}
	for i, jt := range m.JerkT {
		if i == 3 {
			continue
		}
		if jt != 0 {
			t.Errorf("jerk_t[%d] = %v, want 0 for a constant-speed profile", i, jt)
		}
	}
	if !approxEqual(m.JerkT[3], m.MoveD/5, 1e-9) {
		t.Errorf("cruise_t = %v, want %v", m.JerkT[3], m.MoveD/5)
	}
}

func TestCalculateJerkAccelDecelProfile(t *testing.T) {
	var m Move
	m.Init([4]float64{0, 0, 0, 0}, [4]float64{100, 0, 0, 0}, 50, 1000, 1000, 100000)
	m.CalculateJerk(0, 0)

	total := 0.0
	for _, jt := range m.JerkT {
		if jt < 0 {
			t.Errorf("jerk_t has negative segment time: %v", m.JerkT)
		}
		total += jt
	}
	if total <= 0 {
		t.Errorf("expected positive total move time, got %v", total)
	}
	if m.CruiseV <= 0 || m.CruiseV > math.Sqrt(m.MaxCruiseV2)+1e-6 {
		t.Errorf("cruise_v = %v out of expected range", m.CruiseV)
	}
}

func TestCalculateJerkShortMoveTypeII(t *testing.T) {
	// A move too short to reach max jerk/accel on both ends forces the
	// Type II (no cruise phase) or further Type IIII adaptation.
	var m Move
	m.Init([4]float64{0, 0, 0, 0}, [4]float64{1, 0, 0, 0}, 50, 1000, 1000, 100000)
	m.CalculateJerk(0, 0)

	total := 0.0
	for _, jt := range m.JerkT {
		if jt < 0 {
			t.Errorf("jerk_t has negative segment time: %v", m.JerkT)
		}
		total += jt
	}
	if total <= 0 {
		t.Errorf("expected positive total move time, got %v", total)
	}
}

func TestGetMaxAllowedJerkEndSpeedMonotonicInDistance(t *testing.T) {
	short := GetMaxAllowedJerkEndSpeed(1, 0, 50, 1000, 100000)
	long := GetMaxAllowedJerkEndSpeed(10, 0, 50, 1000, 100000)
	if long < short {
		t.Errorf("longer distance should allow reaching at least as high an end speed: short=%v long=%v", short, long)
	}
}

func TestCanAccelerateFully(t *testing.T) {
	if CanAccelerateFully(1000, 0, 50, 1000, 100000) {
		t.Errorf("a long move reaches 50 before its end, so it should not accelerate over its full length")
	}
	if !CanAccelerateFully(0.001, 0, 50, 1000, 100000) {
		t.Errorf("a tiny move cannot reach 50, so it should accelerate over its full length")
	}
}

func TestQueueReserveCommitFlush(t *testing.T) {
	q, err := NewQueue(4)
	if err != nil {
		t.Fatalf("NewQueue: %v", err)
	}
	if q.Size() != 0 {
		t.Fatalf("new queue should be empty")
	}

	m, err := q.Reserve([4]float64{0, 0, 0, 0}, [4]float64{1, 0, 0, 0}, 10, 100, 100, 0)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if q.Size() != 0 {
		t.Fatalf("reserve without commit must not advance size")
	}
	q.Commit()
	if q.Size() != 1 {
		t.Fatalf("commit should advance size to 1, got %d", q.Size())
	}
	if q.At(0) != m {
		t.Fatalf("At(0) should return the reserved move")
	}

	q.Flush(1)
	if q.Size() != 0 {
		t.Fatalf("flush should drop the committed move")
	}
}

func TestQueueRequiresPowerOfTwo(t *testing.T) {
	if _, err := NewQueue(3); err == nil {
		t.Fatalf("expected error for non-power-of-two capacity")
	}
}

func TestQueueFullError(t *testing.T) {
	q, _ := NewQueue(2)
	for i := 0; i < 2; i++ {
		if _, err := q.Reserve([4]float64{}, [4]float64{1, 0, 0, 0}, 10, 100, 100, 0); err != nil {
			t.Fatalf("Reserve %d: %v", i, err)
		}
		q.Commit()
	}
	if _, err := q.Reserve([4]float64{}, [4]float64{1, 0, 0, 0}, 10, 100, 100, 0); err == nil {
		t.Fatalf("expected move queue full error")
	}
}
