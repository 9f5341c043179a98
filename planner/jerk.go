package planner

import (
	"math"

	"gopper-motion/move"
	"gopper-motion/rootfind"
)

const jerkTolerance = 1e-9

// jerkMultipliers gives the signed jerk applied during each of the 7
// profile segments (accel-jerk, accel-const, decel-jerk-to-cruise, cruise,
// decel-jerk, decel-const, decel-jerk-to-end).
var jerkMultipliers = [7]float64{1.0, 0.0, -1.0, 0.0, -1.0, 0.0, 1.0}

// virtualMove represents a run of queued moves sharing accel/jerk that the
// forward/backward passes coalesce into a single solved 7-segment profile,
// later redistributed back over its constituent moves.
type virtualMove struct {
	moveCount      int
	startMoveIndex int

	startV   float64
	accel    float64
	distance float64
	jerk     float64
	endV     float64
	cruiseV  float64

	x, v, a                            float64
	segmentStartX, segmentStartV, segmentStartA float64
	segmentEndX, segmentEndV, segmentEndA       float64

	currentSegment       int
	currentSegmentOffset float64

	move move.Move
}

func initVirtualMove(vmove *virtualMove, startV, accel, jerk float64) {
	vmove.startV = startV
	vmove.accel = accel
	vmove.distance = 0.0
	vmove.jerk = jerk
	vmove.endV = 0.0
	vmove.cruiseV = 0.0
	vmove.moveCount = 0
	vmove.startMoveIndex = 0

	vmove.x = 0.0
	vmove.v = 0.0
	vmove.a = 0.0
	vmove.segmentStartX = 0.0
	vmove.segmentStartV = 0.0
	vmove.segmentStartA = 0.0
	vmove.segmentEndX = 0.0
	vmove.segmentEndV = 0.0
	vmove.segmentEndA = 0.0

	vmove.currentSegment = 0
	vmove.currentSegmentOffset = 0.0
}

func appendMove(vmove *virtualMove, index int) {
	if vmove.moveCount == 0 {
		vmove.moveCount = 1
		vmove.startMoveIndex = index
	} else {
		vmove.moveCount++
	}
}

// appendMoves merges the move count of a virtual move that was combined
// backward into an earlier, distance-extended virtual move.
func appendMoves(to, from *virtualMove) {
	to.moveCount += from.moveCount
}

func calculateX(x, v, a, j, t float64) float64 {
	t2 := t * t
	t3 := t2 * t
	x += v * t
	x += 0.5 * a * t2
	x += j * t3 / 6.0
	return x
}

func calculateV(v, a, j, t float64) float64 {
	v += a * t
	v += 0.5 * j * t * t
	return v
}

func calculateA(a, j, t float64) float64 {
	return a + j*t
}

func calculateSegmentEnd(vmove *virtualMove) {
	j := jerkMultipliers[vmove.currentSegment] * vmove.jerk
	t := vmove.move.JerkT[vmove.currentSegment]

	x := vmove.segmentStartX
	v := vmove.segmentStartV
	a := vmove.segmentStartA

	vmove.segmentEndX = calculateX(x, v, a, j, t)
	vmove.segmentEndV = calculateV(v, a, j, t)
	vmove.segmentEndA = calculateA(a, j, t)

	vmove.currentSegmentOffset = 0.0
}

func calculateFirstSegment(vmove *virtualMove) {
	vmove.x = 0.0
	vmove.v = vmove.startV
	vmove.a = 0.0
	vmove.segmentStartX = vmove.x
	vmove.segmentStartV = vmove.v
	vmove.segmentStartA = vmove.a
	vmove.currentSegment = 0
	calculateSegmentEnd(vmove)
}

func calculateNextSegment(vmove *virtualMove) {
	vmove.x = vmove.segmentEndX
	vmove.v = vmove.segmentEndV
	vmove.a = vmove.segmentEndA
	vmove.segmentStartX = vmove.x
	vmove.segmentStartV = vmove.v
	vmove.segmentStartA = vmove.a
	vmove.currentSegment++
	calculateSegmentEnd(vmove)
}

// moveTo inverts the current segment's position polynomial to find the time
// at which the virtual move reaches distance d, via Newton-Raphson, and
// returns the time elapsed since the segment's last queried offset.
func moveTo(vmove *virtualMove, d float64) float64 {
	const moveToTolerance = 1e-16

	x0 := vmove.segmentStartX - d
	v0 := vmove.segmentStartV
	a0 := vmove.segmentStartA
	j0 := jerkMultipliers[vmove.currentSegment] * vmove.jerk

	eval := func(result *rootfind.Result) {
		t := result.X
		result.Y = calculateX(x0, v0, a0, j0, t)
		result.Dy = calculateV(v0, a0, j0, t)
	}

	res := rootfind.NewtonRaphson(eval, 0, vmove.move.JerkT[vmove.currentSegment], moveToTolerance, 16)

	t := res.X
	vmove.x = res.Y
	vmove.v = res.Dy
	vmove.a = calculateA(a0, j0, t)
	ret := t - vmove.currentSegmentOffset
	vmove.currentSegmentOffset = t
	return ret
}

// calculateProfile solves the 7-segment jerk profile for the virtual
// move's coalesced distance, using a scratch move.Move purely as the
// profile solver's output (its positions are synthetic, 0..distance).
func calculateProfile(vmove *virtualMove) {
	startPos := [4]float64{0, 0, 0, 0}
	endPos := [4]float64{vmove.distance, 0, 0, 0}
	vmove.move.Init(startPos, endPos, vmove.cruiseV, vmove.accel, vmove.accel, vmove.jerk)
	vmove.move.CalculateJerk(vmove.startV, vmove.endV)
}

// tryCombine decides whether a move/virtual-move boundary can be merged
// with whatever follows it (sharing the same accel/jerk), mirroring
// try_combine_with_next. next present/accel/jerk/max_cruise_v2 are passed
// explicitly so both the real-move and virtual-move callers can share this
// logic without reading fields of a possibly-absent neighbor.
func tryCombine(nextPresent bool, nextAccel, nextJerk, nextMaxCruiseV2,
	distance, startV, endV, endV2, accel, jerk float64) (combine bool, reachableSpeed float64) {

	reachableEndV := move.GetMaxAllowedJerkEndSpeed(distance, startV, endV, accel, jerk)

	if !nextPresent || nextAccel != accel || nextJerk != jerk {
		return false, reachableEndV
	}

	if reachableEndV >= endV {
		return false, reachableEndV
	}

	if nextMaxCruiseV2 == endV2 {
		return true, endV
	}

	return move.CanAccelerateFully(distance, startV, endV, accel, jerk), reachableEndV
}

func tryCombineWithNextMove(nextMove *move.Move, distance, startV, endV, endV2, accel, jerk float64) (bool, float64) {
	var nextAccel, nextJerk, nextMaxCruiseV2 float64
	if nextMove != nil {
		nextAccel = nextMove.Accel
		nextJerk = nextMove.Jerk
		nextMaxCruiseV2 = nextMove.MaxCruiseV2
	}
	return tryCombine(nextMove != nil, nextAccel, nextJerk, nextMaxCruiseV2, distance, startV, endV, endV2, accel, jerk)
}

func tryCombineWithNextVMove(nextMove *virtualMove, distance, startV, endV, endV2, accel, jerk float64) (bool, float64) {
	var nextAccel, nextJerk, nextMaxCruiseV2 float64
	if nextMove != nil {
		nextAccel = nextMove.accel
		nextJerk = nextMove.jerk
		nextMaxCruiseV2 = nextMove.cruiseV * nextMove.cruiseV
	}
	return tryCombine(nextMove != nil, nextAccel, nextJerk, nextMaxCruiseV2, distance, startV, endV, endV2, accel, jerk)
}

// JerkPlanner is the two-pass look-ahead planner that coalesces runs of
// queued moves sharing accel/jerk into virtual moves, solves each virtual
// move's 7-segment profile once, and redistributes the segment timings back
// over the constituent moves. Mirrors planner_jerk.c's jerk_planner.
type JerkPlanner struct {
	queue    *move.Queue
	currentV float64
}

// NewJerkPlanner creates a planner bound to queue.
func NewJerkPlanner(queue *move.Queue) *JerkPlanner {
	return &JerkPlanner{queue: queue}
}

// Reset clears the carried-over cruise velocity (used after an e-stop or
// when the queue has been drained to a stop).
func (p *JerkPlanner) Reset() {
	p.currentV = 0.0
}

// forwardPass groups queued moves into virtual moves, closing a virtual
// move out whenever it cannot be combined with what follows.
func forwardPass(p *JerkPlanner) []*virtualMove {
	queueSize := p.queue.Size()
	vms := make([]*virtualMove, 0, queueSize)
	var vMove *virtualMove
	currentV := p.currentV

	for i := 0; i < queueSize; i++ {
		mv := p.queue.At(i)

		var nextMove *move.Move
		var endV2 float64
		if i != queueSize-1 {
			nextMove = p.queue.At(i + 1)
			endV2 = nextMove.MaxJunctionV2
		} else {
			nextMove = nil
			endV2 = mv.MaxCruiseV2
		}

		if vMove == nil {
			vMove = &virtualMove{}
			initVirtualMove(vMove, currentV, mv.Accel, mv.Jerk)
			vms = append(vms, vMove)
		}
		endV := math.Sqrt(endV2)

		appendMove(vMove, i)
		vMove.distance += mv.MoveD

		canCombine, reachableEndV := tryCombineWithNextMove(
			nextMove, vMove.distance, vMove.startV, endV, endV2, vMove.accel, vMove.jerk)

		if !canCombine {
			currentV = math.Min(endV, reachableEndV)
			vMove.endV = currentV
			vMove.cruiseV = math.Max(vMove.endV, math.Sqrt(mv.MaxCruiseV2))
			vMove = nil
		}
	}
	return vms
}

// backwardPass walks the virtual moves in reverse, merging any that can
// still combine with what precedes them and collecting the survivors (the
// boundaries where deceleration genuinely must start) into an output list,
// in reverse time order.
func backwardPass(vms []*virtualMove) []*virtualMove {
	output := make([]*virtualMove, 0, len(vms))
	currentV := 0.0

	for idx := len(vms) - 1; idx >= 0; idx-- {
		mv := vms[idx]
		var prevMove *virtualMove
		if idx > 0 {
			prevMove = vms[idx-1]
		}

		if mv.endV > currentV {
			mv.endV = currentV
		}

		startV := mv.startV
		startV2 := startV * startV

		canCombine, reachableStartV := tryCombineWithNextVMove(
			prevMove, mv.distance, mv.endV, startV, startV2, mv.accel, mv.jerk)

		if !canCombine {
			currentV = math.Min(startV, reachableStartV)
			mv.startV = currentV
			output = append(output, mv)
		} else {
			prevMove.distance += mv.distance
			appendMoves(prevMove, mv)
		}
	}
	return output
}

// generateOutputMove redistributes a slice of a solved virtual move's
// 7-segment profile onto a single constituent real move, advancing through
// segments as the accumulated distance crosses each segment boundary.
func generateOutputMove(p *JerkPlanner, mv *move.Move, vmove *virtualMove,
	queueSize int, moveCount, flushCount *int, distance *float64) {

	*moveCount = *moveCount + 1
	mv.Jerk = vmove.jerk

	d := *distance
	d += mv.MoveD

	mv.StartV = vmove.v
	mv.StartA = vmove.a
	for j := range mv.JerkT {
		mv.JerkT[j] = 0.0
	}

	cruiseV := vmove.segmentEndV
	atEnd := false
	for d >= vmove.segmentEndX-jerkTolerance {
		s := vmove.currentSegment
		mv.JerkT[s] = vmove.move.JerkT[s] - vmove.currentSegmentOffset
		cruiseV = math.Max(cruiseV, vmove.segmentStartV)
		if s == 6 {
			atEnd = true
			break
		}
		calculateNextSegment(vmove)
	}

	if d < vmove.segmentEndX-jerkTolerance {
		mv.JerkT[vmove.currentSegment] = moveTo(vmove, d)
		mv.EndV = vmove.v
	} else {
		mv.EndV = vmove.segmentEndV
	}

	mv.CruiseV = math.Max(cruiseV, vmove.v)

	targetEndV2 := mv.MaxCruiseV2
	if *moveCount < queueSize {
		targetEndV2 = p.queue.At(*moveCount).MaxJunctionV2
	}
	// Flush once the top speed is reached with no further acceleration
	// pending (a cruise segment, or the very end of the profile).
	if vmove.currentSegment == 3 || atEnd {
		if math.Abs(mv.EndV*mv.EndV-targetEndV2) < jerkTolerance {
			*flushCount = *moveCount
		}
	}

	mv.StartV = math.Max(0, mv.StartV)
	mv.EndV = math.Max(0, mv.EndV)
	*distance = d

	fixUpRatios(mv)
}

// fixUpRatios recomputes a move's actual traversed distance by integrating
// its own emitted jerk_t phases forward from (start_v, start_a), then
// rescales axes_r by move_d/actual_d so floating-point drift across the
// vmove-to-move slicing shows up as a velocity discontinuity rather than a
// position error, mirroring move_calculate_jerk's final "fix up ratios"
// step.
func fixUpRatios(mv *move.Move) {
	x, v, a := 0.0, mv.StartV, mv.StartA
	for s, t := range mv.JerkT {
		if t == 0 {
			continue
		}
		j := jerkMultipliers[s] * mv.Jerk
		x = calculateX(x, v, a, j, t)
		v = calculateV(v, a, j, t)
		a = calculateA(a, j, t)
	}
	if x <= 0 || mv.MoveD <= 0 {
		return
	}
	ratio := mv.MoveD / x
	for i := 0; i < 4; i++ {
		mv.AxesR[i] *= ratio
	}
}

func generateOutputMoves(p *JerkPlanner, output []*virtualMove, queueSize int, moveCount, flushCount *int) {
	for idx := len(output) - 1; idx >= 0; idx-- {
		vmove := output[idx]

		calculateProfile(vmove)
		calculateFirstSegment(vmove)

		d := 0.0
		for i := 0; i < vmove.moveCount; i++ {
			mv := p.queue.At(vmove.startMoveIndex + i)
			generateOutputMove(p, mv, vmove, queueSize, moveCount, flushCount, &d)
		}
	}
}

// Flush runs the forward and backward coalescing passes, solves each
// surviving virtual move's profile, redistributes segment timings back onto
// the real moves, and flushes everything up to the resulting boundary (or
// the whole queue, if lazy is false).
func (p *JerkPlanner) Flush(lazy bool) int {
	queueSize := p.queue.Size()
	if queueSize == 0 {
		return 0
	}

	vms := forwardPass(p)
	output := backwardPass(vms)

	flushCount := 0
	moveCount := 0
	generateOutputMoves(p, output, queueSize, &moveCount, &flushCount)

	if !lazy {
		flushCount = moveCount
	}
	if flushCount > 0 {
		lastFlushed := p.queue.At(flushCount - 1)
		p.currentV = lastFlushed.EndV
		p.queue.Flush(flushCount)
	}
	return flushCount
}
