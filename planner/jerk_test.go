package planner

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"gopper-motion/move"
)

func jerkApproxEqual(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

// TestJerkPlannerSingleMoveReachesCruise exercises the S3-style scenario: a
// single move, long enough to fully realize its jerk-limited profile, should
// flush with a start/end velocity of zero and a cruise velocity matching its
// speed limit.
func TestJerkPlannerSingleMoveReachesCruise(t *testing.T) {
	q, err := move.NewQueue(4)
	if err != nil {
		t.Fatalf("NewQueue: %v", err)
	}
	m, err := q.Reserve([4]float64{0, 0, 0, 0}, [4]float64{100, 0, 0, 0}, 50, 1000, 1000, 100000)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	q.Commit()

	p := NewJerkPlanner(q)
	flushed := p.Flush(false)

	if flushed != 1 {
		t.Fatalf("expected 1 move flushed, got %d", flushed)
	}
	if !jerkApproxEqual(m.StartV, 0, 1e-6) {
		t.Errorf("start_v = %v, want ~0", m.StartV)
	}
	if !jerkApproxEqual(m.EndV, 0, 1e-6) {
		t.Errorf("end_v = %v, want ~0", m.EndV)
	}
	if m.CruiseV <= 0 {
		t.Errorf("cruise_v = %v, want > 0", m.CruiseV)
	}

	total := 0.0
	for _, jt := range m.JerkT {
		total += jt
	}
	if total <= 0 {
		t.Errorf("expected non-zero total segment time, got %v", total)
	}
}

// TestJerkPlannerChainCombinesThroughJunctions checks that a straight-line
// chain of moves with generous junction speed is planned through its
// junctions in one flush: every move gets non-negative phase times, the
// chain starts from rest and ends at rest.
func TestJerkPlannerChainCombinesThroughJunctions(t *testing.T) {
	q, err := move.NewQueue(4)
	if err != nil {
		t.Fatalf("NewQueue: %v", err)
	}
	positions := [][4]float64{
		{0, 0, 0, 0},
		{10, 0, 0, 0},
		{20, 0, 0, 0},
		{30, 0, 0, 0},
	}
	var moves []*move.Move
	for i := 0; i < 3; i++ {
		m, err := q.Reserve(positions[i], positions[i+1], 50, 1000, 1000, 100000)
		if err != nil {
			t.Fatalf("Reserve %d: %v", i, err)
		}
		q.Commit()
		moves = append(moves, m)
	}
	for i := 1; i < len(moves); i++ {
		moves[i].CalcJunction(moves[i-1], 0.05, 1.0)
	}

	p := NewJerkPlanner(q)
	flushed := p.Flush(false)
	if flushed != 3 {
		t.Fatalf("expected 3 moves flushed, got %d", flushed)
	}

	for i, m := range moves {
		for j, jt := range m.JerkT {
			if jt < 0 {
				t.Errorf("move %d segment %d has negative time %v", i, j, jt)
			}
		}
	}
	if moves[0].StartV != 0 {
		t.Errorf("first move start_v = %v, want 0", moves[0].StartV)
	}
	if moves[len(moves)-1].EndV != 0 {
		t.Errorf("last move end_v = %v, want 0", moves[len(moves)-1].EndV)
	}
}

// TestFixUpRatiosPreservesDistance checks that, for a chain of moves planned
// together, each move's emitted jerk_t phases integrate to its own move_d
// within 1e-6, so the drift that fixUpRatios folds into axes_r stays small.
func TestFixUpRatiosPreservesDistance(t *testing.T) {
	q, err := move.NewQueue(4)
	assert.NoError(t, err)

	positions := [][4]float64{
		{0, 0, 0, 0},
		{7, 0, 0, 0},
		{19, 0, 0, 0},
		{30, 0, 0, 0},
	}
	var moves []*move.Move
	for i := 0; i < 3; i++ {
		m, err := q.Reserve(positions[i], positions[i+1], 50, 1000, 1000, 100000)
		assert.NoError(t, err)
		q.Commit()
		moves = append(moves, m)
	}
	for i := 1; i < len(moves); i++ {
		moves[i].CalcJunction(moves[i-1], 0.05, 1.0)
	}

	p := NewJerkPlanner(q)
	flushed := p.Flush(false)
	assert.Equal(t, 3, flushed)

	for i, m := range moves {
		x, v, a := 0.0, m.StartV, m.StartA
		for s, dt := range m.JerkT {
			if dt == 0 {
				continue
			}
			j := jerkMultipliers[s] * m.Jerk
			x = calculateX(x, v, a, j, dt)
			v = calculateV(v, a, j, dt)
			a = calculateA(a, j, dt)
		}
		assert.InDelta(t, m.MoveD, x, 1e-6*math.Max(1, m.MoveD), "move %d traversed distance", i)
	}
}

func TestTrapezoidalFlushSingleMove(t *testing.T) {
	q, err := move.NewQueue(4)
	if err != nil {
		t.Fatalf("NewQueue: %v", err)
	}
	if _, err := q.Reserve([4]float64{0, 0, 0, 0}, [4]float64{10, 0, 0, 0}, 100, 1000, 1000, 0); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	q.Commit()

	p := NewTrapezoidal(q)
	flushed := p.Flush(false)
	if flushed != 1 {
		t.Fatalf("expected 1 move flushed, got %d", flushed)
	}
	if q.Size() != 0 {
		t.Fatalf("queue should be drained after non-lazy flush")
	}
}
