package kinematics

import (
	"fmt"

	"gopper-motion/segq"
)

// CoreXY drives the X/Y plane with two belt steppers (A, B) whose positions
// are the sum and difference of the cartesian X/Y travel; Z stays direct.
type CoreXY struct{}

// NewCoreXY builds a CoreXY kinematics.
func NewCoreXY() *CoreXY {
	return &CoreXY{}
}

func (k *CoreXY) Name() string { return "corexy" }

func (k *CoreXY) GetAxisNames() []string { return []string{"a", "b", "z"} }

func (k *CoreXY) StepperCalcPosition(axis string) (AxisPosition, error) {
	switch axis {
	case "a":
		return func(seg *segq.Segment, t float64) float64 {
			c := segq.GetCoord(seg, t)
			return c.X + c.Y
		}, nil
	case "b":
		return func(seg *segq.Segment, t float64) float64 {
			c := segq.GetCoord(seg, t)
			return c.X - c.Y
		}, nil
	case "z":
		return func(seg *segq.Segment, t float64) float64 { return segq.GetCoord(seg, t).Z }, nil
	}
	return nil, fmt.Errorf("kinematics: corexy has no axis %q", axis)
}

// ActiveAxes reports that the A/B belt steppers both move whenever either X
// or Y moves (their position is X+Y or X-Y), while Z stays independent.
func (k *CoreXY) ActiveAxes(axis string) (x, y, z bool) {
	switch axis {
	case "a", "b":
		return true, true, false
	case "z":
		return false, false, true
	}
	return false, false, false
}
