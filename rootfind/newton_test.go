package rootfind

import (
	"math"
	"testing"
)

// TestNewtonRaphsonFindsSquareRoot solves x^2 - 2 = 0 over [0, 2], which
// should converge to sqrt(2).
func TestNewtonRaphsonFindsSquareRoot(t *testing.T) {
	eval := func(result *Result) {
		x := result.X
		result.Y = x*x - 2.0
		result.Dy = 2.0 * x
	}
	res := NewtonRaphson(eval, 0, 2, 1e-12, 50)
	want := math.Sqrt(2)
	if math.Abs(res.X-want) > 1e-6 {
		t.Errorf("NewtonRaphson = %v, want ~%v", res.X, want)
	}
}

// TestNewtonRaphsonHandlesFlatDerivative checks the fail-safe bisection
// branch: a derivative that makes a pure Newton step overshoot the bracket
// should still converge via bisection.
func TestNewtonRaphsonHandlesFlatDerivative(t *testing.T) {
	// f(x) = x^3 - x - 2, root near x=1.5213
	eval := func(result *Result) {
		x := result.X
		result.Y = x*x*x - x - 2.0
		result.Dy = 1e-3 // deliberately flat, so Newton steps leave the bracket
	}
	res := NewtonRaphson(eval, 1, 2, 1e-10, 50)
	if math.Abs(res.Y) > 1e-5 {
		t.Errorf("residual too large: f(%v) = %v", res.X, res.Y)
	}
}

func TestNewtonRaphsonSameSignBracketReturnsCloserEndpoint(t *testing.T) {
	eval := func(result *Result) {
		x := result.X
		result.Y = x*x + 1.0
		result.Dy = 2.0 * x
	}
	res := NewtonRaphson(eval, 0, 1, 1e-9, 20)
	if res.X != 0 && res.X != 1 {
		t.Errorf("expected an endpoint to be returned, got %v", res.X)
	}
}
