package itersolve

import "gopper-motion/segq"

// ExtruderKinematics is the extruder stepper's step generator. It reads the
// extruder's own segq (whose segments carry extruder position in StartPos.X
// and a pressure-advance ratio in AxesR.Y, per segq.AppendExtrudeMove) and,
// when pressure-advance smoothing is enabled, convolves a triangular window
// over the surrounding segments instead of reading the raw position.
// Mirrors kin_extruder.c.
type ExtruderKinematics struct {
	StepperKinematics

	halfSmoothTime     float64
	invHalfSmoothTime2 float64
}

// NewExtruderKinematics builds an extruder stepper driven along the X axis
// of its own segq, mirroring extruder_stepper_alloc.
func NewExtruderKinematics() *ExtruderKinematics {
	e := &ExtruderKinematics{}
	e.ActiveFlags = AFX
	e.CalcPos = e.calcPosition
	return e
}

// SetSmoothTime configures the pressure-advance smoothing window (seconds);
// 0 disables smoothing, mirroring extruder_set_smooth_time.
func (e *ExtruderKinematics) SetSmoothTime(smoothTime float64) {
	hst := smoothTime * 0.5
	e.halfSmoothTime = hst
	e.GenStepsPreActive = hst
	e.GenStepsPostActive = hst
	if hst == 0 {
		e.invHalfSmoothTime2 = 0
		return
	}
	e.invHalfSmoothTime2 = 1.0 / (hst * hst)
}

func (e *ExtruderKinematics) calcPosition(seg *segq.Segment, moveTime float64) float64 {
	hst := e.halfSmoothTime
	if hst == 0 {
		return seg.StartPos.X + segq.GetDistance(seg, moveTime)
	}
	area := e.paRangeIntegrate(seg, moveTime, hst)
	return area * e.invHalfSmoothTime2
}

// extruderIntegrate is the closed-form integral over [start, end] of the
// constant-acceleration position profile base + startV*t + halfAccel*t^2,
// mirroring extruder_integrate.
func extruderIntegrate(base, startV, halfAccel, start, end float64) float64 {
	halfV := 0.5 * startV
	sixthA := (1.0 / 3.0) * halfAccel
	si := start * (base + start*(halfV+start*sixthA))
	ei := end * (base + end*(halfV+end*sixthA))
	return ei - si
}

// extruderIntegrateTime is the closed-form integral weighted by time,
// mirroring extruder_integrate_time.
func extruderIntegrateTime(base, startV, halfAccel, start, end float64) float64 {
	halfB := 0.5 * base
	thirdV := (1.0 / 3.0) * startV
	eighthA := 0.25 * halfAccel
	si := start * start * (halfB + start*(thirdV+start*eighthA))
	ei := end * end * (halfB + end*(thirdV+end*eighthA))
	return ei - si
}

// paMoveIntegrate integrates one segment's contribution to the
// pressure-advance window over [start, end], weighted around timeOffset,
// mirroring pa_move_integrate.
func paMoveIntegrate(m *segq.Segment, start, end, timeOffset float64) float64 {
	if start < 0 {
		start = 0
	}
	if end > m.MoveT {
		end = m.MoveT
	}
	if start >= end {
		return 0
	}

	pa := m.AxesR.Y
	base := m.StartPos.X + pa*m.StartV
	startV := m.StartV + pa*2.0*m.HalfAccel
	ha := m.HalfAccel

	iext := extruderIntegrate(base, startV, ha, start, end)
	wgtExt := extruderIntegrateTime(base, startV, ha, start, end)
	return wgtExt - timeOffset*iext
}

// paRangeIntegrate integrates the pressure-advance window
// [moveTime-hst, moveTime+hst], walking backward/forward across segment
// boundaries when the window extends past m, mirroring pa_range_integrate.
func (e *ExtruderKinematics) paRangeIntegrate(m *segq.Segment, moveTime, hst float64) float64 {
	res := 0.0
	start := moveTime - hst
	end := moveTime + hst

	res += paMoveIntegrate(m, start, moveTime, start)
	res -= paMoveIntegrate(m, moveTime, end, end)

	prev := m
	for start < 0 {
		p := e.queue.Prev(prev)
		if p == nil {
			break
		}
		prev = p
		start += prev.MoveT
		res += paMoveIntegrate(prev, start, prev.MoveT, start)
	}

	cur := m
	for end > cur.MoveT {
		end -= cur.MoveT
		n := e.queue.Next(cur)
		if n == nil {
			break
		}
		cur = n
		res -= paMoveIntegrate(cur, 0, end, end)
	}
	return res
}
