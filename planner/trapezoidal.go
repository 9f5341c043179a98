package planner

import (
	"math"

	"gopper-motion/move"
)

// delayedMove holds a move whose trapezoidal times cannot yet be computed
// because the governing peak_cruise_v2 of its run of full-accel moves is
// not yet known.
type delayedMove struct {
	m      *move.Move
	startV2 float64
	endV2   float64
}

// Trapezoidal is the backward look-ahead planner (one backward pass) that assigns
// (start_v2, cruise_v2, end_v2) to each queued move under the 3-segment
// trapezoidal profile, mirroring planner_trapezoidal.c.
type Trapezoidal struct {
	queue   *move.Queue
	delayed []delayedMove
}

// NewTrapezoidal creates a planner bound to queue.
func NewTrapezoidal(queue *move.Queue) *Trapezoidal {
	return &Trapezoidal{
		queue:   queue,
		delayed: make([]delayedMove, 0, queue.Capacity()),
	}
}

// Flush runs the backward pass and commits trapezoidal times to every move
// up to the flush boundary, returning the number of moves flushed (and
// dropping them from the queue). In lazy mode, only moves strictly before
// the latest still-unresolved boundary are flushed; a non-lazy flush
// resolves and flushes everything.
func (p *Trapezoidal) Flush(lazy bool) int {
	updateFlushCount := lazy
	flushCount := p.queue.Size()

	p.delayed = p.delayed[:0]
	nextEndV2 := 0.0
	nextSmoothedV2 := 0.0
	peakCruiseV2 := 0.0

	size := p.queue.Size()
	for i := size - 1; i >= 0; i-- {
		mv := p.queue.At(i)
		reachableStartV2 := nextEndV2 + mv.DeltaV2
		startV2 := math.Min(mv.MaxStartV2, reachableStartV2)
		reachableSmoothedV2 := nextSmoothedV2 + mv.SmoothDeltaV2
		smoothedV2 := math.Min(mv.MaxSmoothedV2, reachableSmoothedV2)

		if smoothedV2 < reachableSmoothedV2 {
			// It's possible for this move to accelerate.
			if smoothedV2+mv.SmoothDeltaV2 > nextSmoothedV2 || len(p.delayed) > 0 {
				if updateFlushCount && peakCruiseV2 > 0.0 {
					flushCount = i
					updateFlushCount = false
				}
				peakCruiseV2 = math.Min(mv.MaxCruiseV2, (smoothedV2+reachableSmoothedV2)*0.5)
				if len(p.delayed) > 0 {
					if !updateFlushCount && i < flushCount {
						mcV2 := peakCruiseV2
						for j := len(p.delayed) - 1; j >= 0; j-- {
							dm := p.delayed[j]
							mcV2 = math.Min(mcV2, dm.startV2)
							dm.m.SetTrapezoidalTimes(dm.m.MoveD, dm.startV2, mcV2, dm.endV2, dm.m.Accel)
						}
					}
					p.delayed = p.delayed[:0]
				}
			}
			if !updateFlushCount && i < flushCount {
				cruiseV2 := math.Min(math.Min(
					(startV2+reachableStartV2)*0.5,
					mv.MaxCruiseV2),
					peakCruiseV2)
				mv.SetTrapezoidalTimes(mv.MoveD, startV2, cruiseV2, nextEndV2, mv.Accel)
			}
		} else {
			p.delayed = append(p.delayed, delayedMove{m: mv, startV2: startV2, endV2: nextEndV2})
		}

		nextEndV2 = startV2
		nextSmoothedV2 = smoothedV2
	}

	if updateFlushCount {
		return 0
	}
	if flushCount > 0 {
		p.queue.Flush(flushCount)
	}
	return flushCount
}
