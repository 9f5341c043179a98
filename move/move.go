// Package move implements the planner's basic unit of work: a linear
// segment in 4D (XYZ plus extruder), its speed/accel/jerk limits, and the
// solved velocity profile (trapezoidal or 7-segment jerk) that the segment
// queue expands into sub-segments.
package move

import (
	"math"

	"gopper-motion/rootfind"
)

const (
	tolerance     = 1e-13
	timeTolerance = 1e-6
)

// Move is a single queued linear segment plus everything the planner needs
// to solve its velocity profile.
type Move struct {
	StartPos [4]float64
	EndPos   [4]float64
	AxesD    [4]float64
	AxesR    [4]float64

	MoveD           float64
	IsKinematicMove bool

	StartV  float64
	CruiseV float64
	EndV    float64
	StartA  float64

	AccelT  float64
	CruiseT float64
	DecelT  float64
	JerkT   [7]float64

	MaxJunctionV2  float64
	MaxStartV2     float64
	MaxSmoothedV2  float64
	Accel          float64
	Jerk           float64
	MaxCruiseV2    float64
	DeltaV2        float64
	SmoothDeltaV2  float64
	MinMoveT       float64
}

// Init populates m from raw endpoints and limits, mirroring move_init. Speed
// is the requested cruise speed, accel the requested acceleration limit,
// accelToDecel the smoothing accel limit (smooth_delta_v2), jerk the jerk
// limit used by the 7-segment planner (0 disables jerk limiting for this
// move, i.e. the trapezoidal planner is used instead).
func (m *Move) Init(startPos, endPos [4]float64, speed, accel, accelToDecel, jerk float64) {
	m.StartPos = startPos
	m.EndPos = endPos
	for i := 0; i < 4; i++ {
		m.AxesD[i] = endPos[i] - startPos[i]
	}

	sum := 0.0
	for i := 0; i < 3; i++ {
		d := m.AxesD[i]
		sum += d * d
	}
	moveD := math.Sqrt(sum)
	m.MoveD = moveD
	m.IsKinematicMove = true

	if moveD < 1e-9 {
		for i := 0; i < 3; i++ {
			m.EndPos[i] = m.StartPos[i]
			m.AxesD[i] = 0.0
		}
		moveD = math.Abs(m.AxesD[3])
		m.MoveD = moveD
		accel = 99999999.9
		m.IsKinematicMove = false
	}

	invMoveD := 0.0
	if moveD > 0 {
		invMoveD = 1.0 / moveD
	}
	for i := 0; i < 4; i++ {
		m.AxesR[i] = m.AxesD[i] * invMoveD
	}

	m.StartA = 0.0
	m.AccelT = 0.0
	m.CruiseT = 0.0
	m.DecelT = 0.0
	for i := range m.JerkT {
		m.JerkT[i] = 0.0
	}

	m.MaxJunctionV2 = 0.0
	m.MaxStartV2 = 0.0
	m.MaxSmoothedV2 = 0.0

	m.Accel = math.MaxFloat64
	m.Jerk = jerk
	m.MaxCruiseV2 = math.MaxFloat64
	m.SmoothDeltaV2 = math.MaxFloat64
	m.MinMoveT = 0.0

	m.LimitSpeed(speed, accel, accelToDecel)
}

// LimitSpeed monotonically tightens the move's velocity/accel limits;
// repeated calls only shrink them, mirroring move_limit_speed.
func (m *Move) LimitSpeed(speed, accel, maxAccelToDecel float64) {
	speed2 := speed * speed
	if speed2 < m.MaxCruiseV2 {
		m.MaxCruiseV2 = speed2
		m.MinMoveT = m.MoveD / speed
	}
	m.Accel = math.Min(m.Accel, accel)
	m.DeltaV2 = 2.0 * m.MoveD * m.Accel
	if maxAccelToDecel > 0 {
		smoothDeltaV2 := 2.0 * m.MoveD * maxAccelToDecel
		m.SmoothDeltaV2 = math.Min(m.SmoothDeltaV2, smoothDeltaV2)
	}
	m.SmoothDeltaV2 = math.Min(m.SmoothDeltaV2, m.DeltaV2)
}

func calcExtruderJunction(m, prev *Move, instantCornerV float64) float64 {
	diffR := m.AxesR[3] - prev.AxesR[3]
	if diffR != 0 {
		v := instantCornerV / math.Abs(diffR)
		return v * v
	}
	return m.MaxCruiseV2
}

// CalcJunction computes max_junction_v2/max_start_v2/max_smoothed_v2 for m
// given its immediate predecessor, mirroring move_calc_junction's
// approximated-centripetal-acceleration formula.
func (m *Move) CalcJunction(prev *Move, junctionDeviation, extruderInstantV float64) {
	if !m.IsKinematicMove || !prev.IsKinematicMove {
		return
	}
	extruderV2 := calcExtruderJunction(m, prev, extruderInstantV)

	axesR := m.AxesR
	prevAxesR := prev.AxesR
	junctionCosTheta := -(axesR[0]*prevAxesR[0] + axesR[1]*prevAxesR[1] + axesR[2]*prevAxesR[2])
	if junctionCosTheta > 0.999999 {
		return
	}
	junctionCosTheta = math.Max(junctionCosTheta, -0.999999)
	sinThetaD2 := math.Sqrt(0.5 * (1.0 - junctionCosTheta))
	r := junctionDeviation * sinThetaD2 / (1.0 - sinThetaD2)
	tanThetaD2 := sinThetaD2 / math.Sqrt(0.5*(1.0+junctionCosTheta))
	moveCentripetalV2 := 0.5 * m.MoveD * tanThetaD2 * m.Accel
	prevMoveCentripetalV2 := 0.5 * prev.MoveD * tanThetaD2 * prev.Accel

	m.MaxJunctionV2 = math.Min(math.Min(math.Min(
		math.Min(r*m.Accel, r*prev.Accel),
		math.Min(moveCentripetalV2, prevMoveCentripetalV2)),
		math.Min(extruderV2, m.MaxCruiseV2)),
		prev.MaxCruiseV2)
	m.MaxStartV2 = math.Min(m.MaxJunctionV2, prev.MaxStartV2+prev.DeltaV2)
	m.MaxSmoothedV2 = math.Min(m.MaxStartV2, prev.MaxSmoothedV2+prev.SmoothDeltaV2)
}

// SetTrapezoidalTimes derives accel_t/cruise_t/decel_t given an already
// chosen (start_v2, cruise_v2, end_v2, accel), mirroring
// move_set_trapezoidal_times.
func (m *Move) SetTrapezoidalTimes(distance, startV2, cruiseV2, endV2, accel float64) {
	startV2 = math.Min(startV2, cruiseV2)
	endV2 = math.Min(endV2, cruiseV2)
	m.Accel = accel
	m.Jerk = 0.0

	halfInvAccel := 0.5 / accel
	accelD := (cruiseV2 - startV2) * halfInvAccel
	decelD := (cruiseV2 - endV2) * halfInvAccel
	cruiseD := distance - accelD - decelD
	if accelD < tolerance {
		accelD = 0
	}
	if decelD < tolerance {
		decelD = 0
	}
	if cruiseD < tolerance {
		cruiseD = 0
	}

	startV := math.Sqrt(startV2)
	m.StartV = startV
	cruiseV := math.Sqrt(cruiseV2)
	m.CruiseV = cruiseV
	endV := math.Sqrt(endV2)
	m.EndV = endV

	m.AccelT = accelD / ((startV + cruiseV) * 0.5)
	m.CruiseT = cruiseD / cruiseV
	m.DecelT = decelD / ((endV + cruiseV) * 0.5)
}

// CalculateTrapezoidal solves the closed-form 3-segment profile for the
// given endpoint velocities, mirroring move_calculate_trapezoidal.
func (m *Move) CalculateTrapezoidal(startV, endV float64) {
	maxV2 := m.MaxCruiseV2
	startV2 := startV * startV
	endV2 := endV * endV
	accel := m.Accel
	distance := m.MoveD

	cruiseV2 := distance*accel + 0.5*(startV2+endV2)
	cruiseV2 = math.Min(maxV2, cruiseV2)
	m.SetTrapezoidalTimes(distance, startV2, cruiseV2, endV2, accel)
}

func evalTypeIIIIa(x0, x1, startV, startV2, endV, endV2, jerk, distance, decel, decel2 float64) rootfind.Eval {
	return func(result *rootfind.Result) {
		maxV := result.X

		y0 := maxV * maxV
		y1 := maxV - startV
		y2 := jerk * y1
		y3 := math.Sqrt(y2)
		y4 := x0 * y1

		y := -distance
		y += (y0 - startV2) / (2.0 * y3)
		y += (y0 - endV2) / x1
		y += maxV * y3 / jerk
		y += (decel*(maxV+endV) - y3*y1) / x0
		result.Y = y

		dy := decel2 * y1
		dy += decel * y3 * (3.0*maxV - startV)
		dy += y4 * maxV
		dy /= y4 * decel
		result.Dy = dy
	}
}

func evalTypeIIIIb(x0, x1, startV, startV2, endV, endV2, jerk, distance, accel float64) rootfind.Eval {
	return func(result *rootfind.Result) {
		maxV := result.X

		y0 := maxV * maxV
		y1 := maxV - endV
		y2 := jerk * y1
		y3 := math.Sqrt(y2)
		y4 := x0 * y1

		y := -distance
		y += (y0 - endV2) / (2.0 * y3)
		y += (y0 - startV2) / x1
		y += accel * maxV / jerk
		y += (accel*(startV-maxV) + y3*(maxV+endV)) / x0
		result.Y = y

		dy := accel * y1
		dy += accel * y3 * (3.0*maxV - endV)
		dy += y4 * maxV
		dy /= y4 * accel
		result.Dy = dy
	}
}

func evalTypeIIIIc(x0, x1, x2, x3, jerk, distance, startV2, endV2 float64) rootfind.Eval {
	return func(result *rootfind.Result) {
		maxV := result.X

		y0 := jerk * maxV
		y1 := y0 - x0
		y2 := y0 - x1
		y3 := math.Sqrt(y0 - x0)
		y4 := math.Sqrt(y0 - x1)
		y5 := 2.0 * y1 * y3
		y6 := 2.0 * y2 * y4
		y7 := maxV * maxV
		y8 := jerk * y7
		y9 := 2.0 * maxV

		y := distance
		y += (startV2 - y7) / y3
		y += (endV2 - y7) / y4
		result.Y = y

		dy := (y8 - x2) / y5
		dy += (y8 - x3) / y6
		dy -= y9 / y3
		dy -= y9 / y4
		result.Dy = dy
	}
}

// CalculateJerk solves the 7-segment jerk-limited profile for the given
// endpoint velocities, adapting through Type III/II/IIII-a/b/c as needed,
// mirroring move_calculate_jerk's case analysis from the Besset-Béarée
// FIR-filter trajectory generation paper.
func (m *Move) CalculateJerk(startV, endV float64) {
	maxV := math.Max(math.Max(math.Sqrt(m.MaxCruiseV2), startV), endV)
	distance := m.MoveD
	jerk := m.Jerk
	accel := m.Accel
	absMaxV := maxV

	if math.Abs(startV-endV) <= tolerance && math.Abs(startV-maxV) <= tolerance {
		cruiseT := distance / maxV
		m.Jerk = jerk
		m.StartV = startV
		m.CruiseV = maxV
		m.EndV = endV
		m.JerkT[0] = 0.0
		m.JerkT[1] = 0.0
		m.JerkT[2] = 0.0
		m.JerkT[3] = cruiseT
		m.JerkT[4] = 0.0
		m.JerkT[5] = 0.0
		m.JerkT[6] = 0.0
		return
	}

	decel := accel

	accelJerkT := accel / jerk
	decelJerkT := decel / jerk
	deltaAccelV := maxV - startV
	deltaDecelV := maxV - endV
	accelT := deltaAccelV / accel
	decelT := deltaDecelV / decel
	accelConstT := accelT - accelJerkT
	decelConstT := decelT - decelJerkT

	// Type III adaptations
	if accelConstT < 0.0 {
		accel = math.Sqrt(jerk * deltaAccelV)
	}
	if decelConstT < 0 {
		decel = math.Sqrt(jerk * deltaDecelV)
	}

	distCruise := 0.0
	if accel > 0.0 && decel > 0.0 {
		startV2 := startV * startV
		maxV2 := maxV * maxV
		endV2 := endV * endV
		accelDecel := accel * decel

		twoAccelDecel := 2.0 * accelDecel
		twoAccelDecelJerk := twoAccelDecel * jerk
		twoAccelDecelDistanceJerk := twoAccelDecelJerk * distance

		distCruise = accel*startV + accel*maxV + decel*maxV + decel*endV
		distCruise *= -accelDecel
		distCruise += twoAccelDecelDistanceJerk
		distCruise += accel * jerk * (endV2 - maxV2)
		distCruise += decel * jerk * (startV2 - maxV2)
		distCruise /= twoAccelDecelJerk

		if distCruise < 0 {
			// Type II
			distCruise = 0.0

			mAccelMDecel := -accel - decel
			accel2 := accel * accel
			decel2 := decel * decel

			a := mAccelMDecel / twoAccelDecel

			b := mAccelMDecel / (2.0 * jerk)

			c := -accel2*decel*startV - decel2*accel*endV
			c += twoAccelDecelDistanceJerk
			c += accel * jerk * endV2
			c += decel * jerk * startV2
			c /= twoAccelDecelJerk

			// b is always negative, use Citardauq formulation for stability.
			maxV = 2.0 * c / (-b + math.Sqrt(b*b-4.0*a*c))

			accelJerkT = accel / jerk
			decelJerkT = decel / jerk
			deltaAccelV = maxV - startV
			deltaDecelV = maxV - endV
			accelT = deltaAccelV / accel
			decelT = deltaDecelV / decel
			accelConstT = accelT - accelJerkT
			decelConstT = decelT - decelJerkT

			if accelConstT < 0 {
				if decelConstT < 0 {
					// Type IIII-c
					maxV = math.Max(startV, endV) + tolerance
					res := rootfind.NewtonRaphson(
						evalTypeIIIIc(jerk*startV, jerk*endV, jerk*startV2, jerk*endV2, jerk, distance, startV2, endV2),
						maxV, absMaxV, tolerance, 16)
					maxV = res.X
					accel = math.Sqrt(jerk * (maxV - startV))
					decel = math.Sqrt(jerk * (maxV - endV))
				} else {
					// Type IIII-a
					maxV = math.Max(startV, endV) + tolerance
					res := rootfind.NewtonRaphson(
						evalTypeIIIIa(2.0*jerk, 2.0*decel, startV, startV2, endV, endV2, jerk, distance, decel, decel2),
						maxV, absMaxV, tolerance, 16)
					maxV = res.X
					accel = math.Sqrt(jerk * (maxV - startV))
				}
			} else if decelConstT < 0 {
				// Type IIII-b
				maxV = math.Max(startV, endV) + tolerance
				res := rootfind.NewtonRaphson(
					evalTypeIIIIb(2.0*jerk, 2.0*accel, startV, startV2, endV, endV2, jerk, distance, accel),
					maxV, absMaxV, tolerance, 16)
				maxV = res.X
				decel = math.Sqrt(jerk * (maxV - endV))
			}
		}
	} else if decel > 0 {
		distCruise = distance
		distCruise -= (maxV*maxV - endV*endV) / (2.0 * decel)
		distCruise -= (decel * (maxV + endV)) / (2.0 * jerk)
	} else {
		distCruise = distance
		distCruise -= (maxV*maxV - startV*startV) / (2.0 * accel)
		distCruise -= (accel * (startV - maxV)) / (2.0 * jerk)
		distCruise -= (accel * maxV) / jerk
	}

	accelJerkT = accel / jerk
	if accelJerkT < timeTolerance {
		accelJerkT = 0.0
	}
	decelJerkT = decel / jerk
	if decelJerkT < timeTolerance {
		decelJerkT = 0.0
	}
	deltaAccelV = maxV - startV
	deltaDecelV = maxV - endV
	if accel > 0.0 {
		accelT = deltaAccelV / accel
	} else {
		accelT = 0.0
	}
	if decel > 0.0 {
		decelT = deltaDecelV / decel
	} else {
		decelT = 0.0
	}
	accelConstT = accelT - accelJerkT
	decelConstT = decelT - decelJerkT

	m.Jerk = jerk
	m.StartV = startV
	m.CruiseV = maxV
	m.EndV = endV
	cruiseT := distCruise / maxV

	if accelConstT < timeTolerance {
		accelConstT = 0.0
	}
	if cruiseT < timeTolerance {
		cruiseT = 0.0
	}
	if decelConstT < timeTolerance {
		decelConstT = 0.0
	}

	m.JerkT[0] = accelJerkT
	m.JerkT[1] = accelConstT
	m.JerkT[2] = accelJerkT
	m.JerkT[3] = cruiseT
	m.JerkT[4] = decelJerkT
	m.JerkT[5] = decelConstT
	m.JerkT[6] = decelJerkT
}

// GetMaxAllowedJerkEndSpeed solves for the maximum end speed reachable over
// distance given startV and the jerk/accel limits, mirroring
// move_get_max_allowed_jerk_end_speed. It dispatches to a Newton-Raphson
// solve when the move is too short to reach max_a, and a closed form
// otherwise.
func GetMaxAllowedJerkEndSpeed(distance, startV, endV, maxA, jerk float64) float64 {
	const solveTolerance = 1e-6

	maxA2 := maxA * maxA
	maxA3 := maxA2 * maxA
	maxADist := maxA3/(jerk*jerk) + 2.0*maxA*startV/jerk
	if distance < maxADist {
		d2 := distance * distance
		eval := func(result *rootfind.Result) {
			v := result.X
			x0 := v - startV
			x1 := v + startV
			y := (x1/jerk)*x0*x1 - d2
			result.Y = y

			dy := x1 * (3.0*v - startV)
			dy /= jerk
			result.Dy = dy
		}
		res := rootfind.NewtonRaphson(eval, startV, endV, solveTolerance, 16)
		return res.X
	}

	maxA4 := maxA3 * maxA
	v := 8.0*maxA*distance + 4.0*startV*startV
	v *= jerk
	v -= 4.0 * maxA2 * startV
	v *= jerk
	v += maxA4

	v = math.Sqrt(v)
	v -= maxA2
	v /= 2.0 * jerk
	return v
}

// CanAccelerateFully reports whether a move of the given distance
// accelerates over its full length: it returns true when the minimum
// distance needed to go from startV to endV exceeds distance, mirroring
// move_can_accelerate_fully.
func CanAccelerateFully(distance, startV, endV, accel, jerk float64) bool {
	jerkT2 := (endV - startV) / jerk * 2.0

	aDivJerk := accel / jerk

	var d float64
	if jerkT2 > aDivJerk*aDivJerk {
		d1 := (endV*endV - startV*startV) / (2.0 * accel)

		d2 := accel*accel/(12.0*jerk) + startV
		d2 *= accel / (2.0 * jerk)
		d = d1 + d2
	} else {
		d = math.Sqrt(jerkT2)
		d *= 2.0*startV + endV
		d /= 3.0
	}
	return d > distance
}
