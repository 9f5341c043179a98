// Package segq is the segment queue: it expands a planned move's solved
// velocity profile (accel/cruise/decel phases) into fixed-kinematic
// Segments with absolute print_time, queues them on a doubly linked list
// with head/tail sentinels, and answers position/distance queries against
// them for the step generator. Mirrors segq.c.
package segq

import "gopper-motion/move"

// NeverTime is the sentinel print_time used by the tail sentinel when the
// queue is empty or its real end has not yet been recomputed.
const NeverTime = 9999999999999999.9

// MaxNullMove caps the first gap-filling null move so an unexpectedly long
// initial delay doesn't destabilize downstream numerical integration.
const MaxNullMove = 1.0

// Coord is a 3-axis position/ratio vector.
type Coord struct {
	X, Y, Z float64
}

// Segment is one fixed-kinematic slice of motion: from PrintTime for MoveT
// seconds, starting at StartPos with velocity StartV along AxesR,
// accelerating at 2*HalfAccel. SixthJerk is non-zero only for the ramp
// phases of a 7-segment jerk-limited move, where acceleration itself varies
// linearly over the segment (distance becomes cubic in moveTime rather than
// the quadratic trapezoidal case); it is the direct third-order extension of
// segq.c's constant-acceleration model needed to queue jerk_t[0..6] phases
// without losing exactness.
type Segment struct {
	PrintTime, MoveT  float64
	StartV, HalfAccel float64
	SixthJerk         float64
	StartPos, AxesR   Coord

	prev, next *Segment
}

// GetDistance returns the distance traveled moveTime into the segment.
func GetDistance(m *Segment, moveTime float64) float64 {
	return (m.StartV + (m.HalfAccel+m.SixthJerk*moveTime)*moveTime) * moveTime
}

// GetCoord returns the XYZ coordinate moveTime into the segment.
func GetCoord(m *Segment, moveTime float64) Coord {
	d := GetDistance(m, moveTime)
	return Coord{
		X: m.StartPos.X + m.AxesR.X*d,
		Y: m.StartPos.Y + m.AxesR.Y*d,
		Z: m.StartPos.Z + m.AxesR.Z*d,
	}
}

// Queue is a segment queue bounded by head and tail sentinel nodes; only
// the nodes strictly between the sentinels are real segments.
type Queue struct {
	head, tail *Segment
}

// NewQueue allocates an empty segment queue (head/tail sentinels only).
func NewQueue() *Queue {
	head := &Segment{}
	tail := &Segment{PrintTime: NeverTime, MoveT: NeverTime}
	head.next = tail
	tail.prev = head
	return &Queue{head: head, tail: tail}
}

// checkSentinels recomputes the tail sentinel's print_time/start_pos from
// the last real segment, if it has gone stale (print_time reset to 0 by the
// most recent Add). Mirrors segq_check_sentinels' lazy recomputation.
func (q *Queue) checkSentinels() {
	if q.tail.PrintTime != 0 {
		return
	}
	m := q.tail.prev
	if m == q.head {
		q.tail.PrintTime = NeverTime
		return
	}
	q.tail.PrintTime = m.PrintTime + m.MoveT
	q.tail.StartPos = GetCoord(m, m.MoveT)
}

// add inserts m immediately before the tail sentinel, filling any gap
// between the previous real segment and m's print_time with a null
// (zero-velocity) move so later position queries never see a hole.
func (q *Queue) add(m *Segment) {
	prev := q.tail.prev
	if prev.PrintTime+prev.MoveT < m.PrintTime {
		nullMove := &Segment{StartPos: m.StartPos}
		if prev == q.head && m.PrintTime > MaxNullMove {
			nullMove.PrintTime = m.PrintTime - MaxNullMove
		} else {
			nullMove.PrintTime = prev.PrintTime + prev.MoveT
		}
		nullMove.MoveT = m.PrintTime - nullMove.PrintTime
		q.insertBeforeTail(nullMove)
	}
	q.insertBeforeTail(m)
	q.tail.PrintTime = 0.0
}

func (q *Queue) insertBeforeTail(m *Segment) {
	prev := q.tail.prev
	prev.next = m
	m.prev = prev
	m.next = q.tail
	q.tail.prev = m
}

// Append appends a solved trapezoidal profile (accel/cruise/decel phases)
// to the queue as up to three fixed-kinematic segments, mirroring
// segq_append.
func (q *Queue) Append(printTime, accelT, cruiseT, decelT float64,
	startPosX, startPosY, startPosZ, axesRX, axesRY, axesRZ,
	startV, cruiseV, accel float64) {

	startPos := Coord{X: startPosX, Y: startPosY, Z: startPosZ}
	axesR := Coord{X: axesRX, Y: axesRY, Z: axesRZ}

	if accelT != 0 {
		m := &Segment{
			PrintTime: printTime,
			MoveT:     accelT,
			StartV:    startV,
			HalfAccel: 0.5 * accel,
			StartPos:  startPos,
			AxesR:     axesR,
		}
		q.add(m)

		printTime += accelT
		startPos = GetCoord(m, accelT)
	}
	if cruiseT != 0 {
		m := &Segment{
			PrintTime: printTime,
			MoveT:     cruiseT,
			StartV:    cruiseV,
			HalfAccel: 0.0,
			StartPos:  startPos,
			AxesR:     axesR,
		}
		q.add(m)

		printTime += cruiseT
		startPos = GetCoord(m, cruiseT)
	}
	if decelT != 0 {
		m := &Segment{
			PrintTime: printTime,
			MoveT:     decelT,
			StartV:    cruiseV,
			HalfAccel: -0.5 * accel,
			StartPos:  startPos,
			AxesR:     axesR,
		}
		q.add(m)
	}
}

// AppendMove appends a kinematic (XYZ) move's solved profile, mirroring
// segq_append_move.
func (q *Queue) AppendMove(printTime float64, m *move.Move) {
	q.Append(printTime, m.AccelT, m.CruiseT, m.DecelT,
		m.StartPos[0], m.StartPos[1], m.StartPos[2],
		m.AxesR[0], m.AxesR[1], m.AxesR[2],
		m.StartV, m.CruiseV, m.Accel)
}

// AppendExtrudeMove appends the extruder axis' solved profile, scaled by
// its axes_r ratio and carrying pressureAdvance in the Y slot of AxesR for
// the extruder stepper's pressure-advance integration (X is extruder
// position, Y is pressure advance, mirroring trapq_append_extrude_move's
// layout convention). pressureAdvance is only applied when the move also
// has XY motion, matching the original's "don't push extra filament on a
// pure retraction/priming move" behavior.
func (q *Queue) AppendExtrudeMove(printTime float64, m *move.Move, pressureAdvance float64) {
	axisR := m.AxesR[3]
	accel := m.Accel * axisR
	startV := m.StartV * axisR
	cruiseV := m.CruiseV * axisR

	pa := 0.0
	if axisR > 0.0 && (m.AxesD[0] != 0 || m.AxesD[1] != 0) {
		pa = pressureAdvance
	}

	q.Append(printTime, m.AccelT, m.CruiseT, m.DecelT,
		m.StartPos[3], 0.0, 0.0,
		1.0, pa, 0.0,
		startV, cruiseV, accel)
}

// AppendJerkMove appends a solved 7-segment jerk-limited profile
// (+J, 0, -J, 0, -J, 0, +J over jerkT[0..6]) as up to seven segments, each a
// constant-jerk ramp or constant-acceleration/cruise plateau. Acceleration
// and velocity are integrated forward analytically across phase boundaries
// starting from the move's own StartV and StartA (StartA is non-zero for an
// interior slice of a combined virtual move), so each segment's (StartV,
// HalfAccel, SixthJerk) is exact for its phase.
func (q *Queue) AppendJerkMove(printTime float64, m *move.Move,
	startPosX, startPosY, startPosZ, axesRX, axesRY, axesRZ float64) {

	startPos := Coord{X: startPosX, Y: startPosY, Z: startPosZ}
	axesR := Coord{X: axesRX, Y: axesRY, Z: axesRZ}

	j := m.Jerk
	phaseJerk := [7]float64{j, 0, -j, 0, -j, 0, j}
	// Interior slices of a combined virtual move can begin mid-ramp (e.g.
	// partway through the constant-accel plateau), so the starting
	// acceleration is whatever the profile has accumulated by this move's
	// start, not necessarily 0.
	v, a := m.StartV, m.StartA

	for i, dur := range m.JerkT {
		if dur == 0 {
			continue
		}
		pj := phaseJerk[i]
		seg := &Segment{
			PrintTime: printTime,
			MoveT:     dur,
			StartV:    v,
			HalfAccel: 0.5 * a,
			SixthJerk: pj / 6.0,
			StartPos:  startPos,
			AxesR:     axesR,
		}
		q.add(seg)

		v = v + a*dur + 0.5*pj*dur*dur
		a = a + pj*dur
		printTime += dur
		startPos = GetCoord(seg, dur)
	}
}

// AppendJerkKinematicMove appends a kinematic (XYZ) move's solved 7-segment
// jerk profile, mirroring AppendMove's trapezoidal counterpart.
func (q *Queue) AppendJerkKinematicMove(printTime float64, m *move.Move) {
	q.AppendJerkMove(printTime, m,
		m.StartPos[0], m.StartPos[1], m.StartPos[2],
		m.AxesR[0], m.AxesR[1], m.AxesR[2])
}

// AppendJerkExtrudeMove appends the extruder axis' solved 7-segment jerk
// profile, mirroring AppendExtrudeMove's trapezoidal counterpart. Since the
// per-phase jerk is uniform across the whole move, the extruder's axis_r
// scaling and pressure-advance gating are identical to the trapezoidal case;
// only the distance polynomial itself gains the cubic term.
func (q *Queue) AppendJerkExtrudeMove(printTime float64, m *move.Move, pressureAdvance float64) {
	axisR := m.AxesR[3]
	pa := 0.0
	if axisR > 0.0 && (m.AxesD[0] != 0 || m.AxesD[1] != 0) {
		pa = pressureAdvance
	}

	scaled := *m
	scaled.StartV *= axisR
	scaled.StartA *= axisR
	scaled.Jerk *= axisR

	q.AppendJerkMove(printTime, &scaled,
		m.StartPos[3], 0.0, 0.0,
		1.0, pa, 0.0)
}

// CheckSentinels recomputes the tail sentinel if stale. Exported so callers
// (itersolve) can force the lazy tail recomputation before reading the
// queue's apparent end time.
func (q *Queue) CheckSentinels() {
	q.checkSentinels()
}

// FreeMoves drops any segment that ends at or before printTime, mirroring
// segq_free_moves.
func (q *Queue) FreeMoves(printTime float64) {
	for {
		m := q.head.next
		if m == q.tail {
			q.tail.PrintTime = NeverTime
			return
		}
		if m.PrintTime+m.MoveT > printTime {
			return
		}
		q.head.next = m.next
		m.next.prev = q.head
	}
}

// First returns the first real segment, or nil if the queue holds none.
func (q *Queue) First() *Segment {
	if q.head.next == q.tail {
		return nil
	}
	return q.head.next
}

// Next returns the segment following m, or nil at the tail sentinel.
func (q *Queue) Next(m *Segment) *Segment {
	if m.next == q.tail {
		return nil
	}
	return m.next
}

// Prev returns the segment preceding m, or nil at the head sentinel.
func (q *Queue) Prev(m *Segment) *Segment {
	if m.prev == q.head {
		return nil
	}
	return m.prev
}

// EndTime returns the queue's apparent end print_time (NeverTime if empty),
// recomputing the tail sentinel first if it is stale.
func (q *Queue) EndTime() float64 {
	q.checkSentinels()
	return q.tail.PrintTime
}

// LastCoord returns the tail sentinel's start position (the queue's
// apparent end position), recomputing it first if stale.
func (q *Queue) LastCoord() Coord {
	q.checkSentinels()
	return q.tail.StartPos
}

