// Package itersolve walks a segq segment queue forward in time and, for one
// stepper's forward-kinematic position function, emits the step clocks that
// function crosses at half-step intervals. Mirrors itersolve.c.
package itersolve

import (
	"math"

	"gopper-motion/kinematics"
	"gopper-motion/segq"
	"gopper-motion/stepcompress"
)

// Active-axis flags, mirroring itersolve.c's AF_X/AF_Y/AF_Z.
const (
	AFX = 1 << iota
	AFY
	AFZ
)

// seekTimeReset bounds how far genStepsRange's bracket-growing search jumps
// after a direction change, mirroring SEEK_TIME_RESET.
const seekTimeReset = 0.000100

const findStepTolerance = 0.000000001

type timepos struct {
	time, position float64
}

// StepperKinematics drives step generation for one stepper: CalcPos maps a
// segq segment and a move-local time to this stepper's commanded position.
type StepperKinematics struct {
	CalcPos                               kinematics.AxisPosition
	StepDist                               float64
	ActiveFlags                            int
	GenStepsPreActive, GenStepsPostActive float64
	PostCB                                 func()

	commandedPos  float64
	lastFlushTime float64
	lastMoveTime  float64

	queue *segq.Queue
	sc    *stepcompress.Compressor
}

// SetSegq attaches the segment queue this stepper reads from.
func (sk *StepperKinematics) SetSegq(q *segq.Queue) {
	sk.queue = q
}

// SetStepcompress attaches the step compressor this stepper writes to and
// the physical distance covered by one step.
func (sk *StepperKinematics) SetStepcompress(sc *stepcompress.Compressor, stepDist float64) {
	sk.sc = sc
	sk.StepDist = stepDist
}

// SetPosition seeds the stepper's commanded position from a stationary
// synthetic segment at (x, y, z), mirroring itersolve_set_position.
func (sk *StepperKinematics) SetPosition(x, y, z float64) {
	seg := &segq.Segment{StartPos: segq.Coord{X: x, Y: y, Z: z}, MoveT: 1000}
	sk.commandedPos = sk.CalcPos(seg, 500)
}

// GetCommandedPos returns the stepper's last computed position.
func (sk *StepperKinematics) GetCommandedPos() float64 {
	return sk.commandedPos
}

// IsActiveAxis reports whether this stepper moves along the named XYZ axis
// ('x', 'y', or 'z'), mirroring itersolve_is_active_axis.
func (sk *StepperKinematics) IsActiveAxis(axis byte) bool {
	if axis < 'x' || axis > 'z' {
		return false
	}
	return sk.ActiveFlags&(AFX<<(axis-'x')) != 0
}

func (sk *StepperKinematics) checkActive(seg *segq.Segment) bool {
	af := sk.ActiveFlags
	return (af&AFX != 0 && seg.AxesR.X != 0) ||
		(af&AFY != 0 && seg.AxesR.Y != 0) ||
		(af&AFZ != 0 && seg.AxesR.Z != 0)
}

// CheckActive returns the print_time of the first segment at or after the
// stepper's last flush that actually moves it, or 0 if none is found before
// flushTime, mirroring itersolve_check_active.
func (sk *StepperKinematics) CheckActive(flushTime float64) float64 {
	if sk.queue == nil {
		return 0
	}
	sk.queue.CheckSentinels()
	m := sk.queue.First()
	if m == nil {
		return 0
	}
	for sk.lastFlushTime >= m.PrintTime+m.MoveT {
		next := sk.queue.Next(m)
		if next == nil {
			break
		}
		m = next
	}
	for {
		if sk.checkActive(m) {
			return m.PrintTime
		}
		if flushTime <= m.PrintTime+m.MoveT {
			return 0
		}
		next := sk.queue.Next(m)
		if next == nil {
			return 0
		}
		m = next
	}
}

// findStep locates, by false-position (regula falsi) iteration, the time in
// [low.time, high.time] at which CalcPos(seg, t) first crosses target,
// mirroring itersolve_find_step.
func (sk *StepperKinematics) findStep(seg *segq.Segment, low, high timepos, target float64) timepos {
	bestGuess := high
	low.position -= target
	high.position -= target
	if high.position == 0 {
		return bestGuess
	}

	highSign := math.Signbit(high.position)
	if highSign == math.Signbit(low.position) {
		return timepos{time: low.time, position: target}
	}

	for {
		guessTime := (low.time*high.position - high.time*low.position) / (high.position - low.position)
		if math.Abs(guessTime-bestGuess.time) <= findStepTolerance {
			break
		}
		bestGuess.time = guessTime
		bestGuess.position = sk.CalcPos(seg, guessTime)

		guessPosition := bestGuess.position - target
		if math.Signbit(guessPosition) == highSign {
			high.time, high.position = guessTime, guessPosition
		} else {
			low.time, low.position = guessTime, guessPosition
		}
	}
	return bestGuess
}

// genStepsRange emits every step crossed while walking seg from moveStart
// to moveEnd, mirroring itersolve_gen_steps_range.
func (sk *StepperKinematics) genStepsRange(seg *segq.Segment, moveStart, moveEnd float64) error {
	halfStep := 0.5 * sk.StepDist
	start := moveStart - seg.PrintTime
	end := moveEnd - seg.PrintTime

	last := timepos{time: start, position: sk.commandedPos}
	low, high := last, last
	seekDelta := seekTimeReset
	sdir := sk.sc.GetStepDir()
	if sdir < 0 {
		// No direction has been sent yet; start the search forward.
		sdir = 1
	}
	isDirChange := false

	for {
		diff := high.position - last.position
		if sdir == 0 {
			diff = -diff
		}

		switch {
		case diff >= halfStep:
			target := last.position + halfStep
			if sdir == 0 {
				target = last.position - halfStep
			}
			next := sk.findStep(seg, low, high, target)
			if err := sk.sc.Append(sdir, seg.PrintTime, next.time); err != nil {
				return err
			}

			seekDelta = next.time - last.time
			if seekDelta < findStepTolerance {
				seekDelta = findStepTolerance
			}
			if isDirChange && seekDelta > seekTimeReset {
				seekDelta = seekTimeReset
			}
			isDirChange = false

			if sdir != 0 {
				last.position = target + halfStep
			} else {
				last.position = target - halfStep
			}
			last.time = next.time
			low = next
			if low.time < high.time {
				continue
			}

		case diff > 0:
			sk.sc.Commit()

		case diff < -(halfStep + findStepTolerance):
			isDirChange = true
			if seekDelta > seekTimeReset {
				seekDelta = seekTimeReset
			}
			if low.time > last.time {
				if sdir == 0 {
					sdir = 1
				} else {
					sdir = 0
				}
				continue
			}
			if high.time > last.time+findStepTolerance {
				high.time = (last.time + high.time) * 0.5
				high.position = sk.CalcPos(seg, high.time)
				continue
			}
		}

		if high.time >= end {
			break
		}
		low = high
		for {
			high.time = last.time + seekDelta
			seekDelta += seekDelta
			if high.time > low.time {
				break
			}
		}
		if high.time > end {
			high.time = end
		}
		high.position = sk.CalcPos(seg, high.time)
	}

	sk.commandedPos = last.position
	if sk.PostCB != nil {
		sk.PostCB()
	}
	return nil
}

// GenerateSteps walks the segment queue forward from the stepper's last
// flush time up to flushTime, emitting steps for active segments (and for
// any inactive segment still within the extruder-style smoothing window),
// mirroring itersolve_generate_steps.
func (sk *StepperKinematics) GenerateSteps(flushTime float64) error {
	lastFlushTime := sk.lastFlushTime
	sk.lastFlushTime = flushTime
	if sk.queue == nil {
		return nil
	}

	sk.queue.CheckSentinels()
	m := sk.queue.First()
	if m == nil {
		return nil
	}
	for lastFlushTime >= m.PrintTime+m.MoveT {
		next := sk.queue.Next(m)
		if next == nil {
			break
		}
		m = next
	}

	forceStepsTime := sk.lastMoveTime + sk.GenStepsPostActive
	for {
		if lastFlushTime >= flushTime {
			return nil
		}

		start := m.PrintTime
		end := start + m.MoveT
		if start < lastFlushTime {
			start = lastFlushTime
		}
		if end > flushTime {
			end = flushTime
		}

		if sk.checkActive(m) {
			if sk.GenStepsPreActive != 0 && start > lastFlushTime+findStepTolerance {
				forceStepsTime = start
				if lastFlushTime < start-sk.GenStepsPreActive {
					lastFlushTime = start - sk.GenStepsPreActive
				}
				for m.PrintTime > lastFlushTime {
					prev := sk.queue.Prev(m)
					if prev == nil {
						break
					}
					m = prev
				}
				continue
			}
			if err := sk.genStepsRange(m, start, end); err != nil {
				return err
			}
			sk.lastMoveTime = end
			lastFlushTime = end
			forceStepsTime = end + sk.GenStepsPostActive
		} else if start < forceStepsTime {
			if end > forceStepsTime {
				end = forceStepsTime
			}
			if err := sk.genStepsRange(m, start, end); err != nil {
				return err
			}
			lastFlushTime = end
		}

		if flushTime+sk.GenStepsPreActive <= m.PrintTime+m.MoveT {
			return nil
		}
		next := sk.queue.Next(m)
		if next == nil {
			return nil
		}
		m = next
	}
}
