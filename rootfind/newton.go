// Package rootfind provides the Newton-Raphson root finder with fail-safe
// bisection shared by the jerk planner's profile solving and move.c's
// jerk-profile case analysis (move_get_max_allowed_jerk_end_speed and the
// Type IIII eval functions). It has no dependency on move/planner so both
// can import it without a cycle.
package rootfind

import "math"

// Result carries a candidate x together with f(x) and f'(x), filled in by
// an Eval callback.
type Result struct {
	X  float64
	Y  float64
	Dy float64
}

// Eval evaluates f and f' at result.X, storing the outputs back into result.
type Eval func(result *Result)

// NewtonRaphson finds a root of f in [low, high] using Newton-Raphson with
// fail-safe bisection: a Newton step is rejected (in favor of bisection)
// whenever it would leave the current bracket or is converging too slowly.
// f is assumed to bracket a sign change in [low, high]; if it does not, the
// best endpoint is returned. This mirrors mathutil.c's newton_raphson
// verbatim.
func NewtonRaphson(f Eval, low, high, tolerance float64, maxiter int) Result {
	resLow := Result{X: low}
	resHigh := Result{X: high}
	f(&resLow)
	f(&resHigh)

	if resLow.Y == 0.0 {
		return resLow
	}
	if resHigh.Y == 0.0 {
		return resHigh
	}

	if resLow.Y < 0.0 && resHigh.Y < 0.0 {
		if resLow.Y > resHigh.Y {
			return resLow
		}
		return resHigh
	}
	if resLow.Y > 0.0 && resHigh.Y > 0.0 {
		if resLow.Y > resHigh.Y {
			return resHigh
		}
		return resLow
	}

	var xLow, xHigh float64
	if resLow.Y < 0.0 {
		xLow, xHigh = low, high
	} else {
		xLow, xHigh = high, low
	}

	result := Result{X: 0.5 * (low + high)}
	dx := high - low
	dxOld := dx

	f(&result)

	for i := 0; i < maxiter; i++ {
		x := result.X
		dy := result.Dy
		y := result.Y

		var nx float64
		if ((x-xHigh)*dy-y)*((x-xLow)*dy-y) > 0.0 || math.Abs(2.0*y) > math.Abs(dxOld*dy) {
			dxOld = dx
			dx = 0.5 * (xHigh - xLow)
			nx = xLow + dx
		} else {
			dxOld = dx
			dx = y / dy
			nx = x - dx
		}

		if math.Abs(dx) < tolerance {
			return result
		}
		result.X = nx
		f(&result)

		if result.Y < 0.0 {
			xLow = nx
		} else {
			xHigh = nx
		}
	}

	return result
}
