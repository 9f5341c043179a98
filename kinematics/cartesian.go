package kinematics

import (
	"fmt"

	"gopper-motion/segq"
)

// Cartesian is a direct XYZ machine: each stepper tracks one spatial axis
// one-to-one, mirroring the teacher's standalone/kinematics.Cartesian.
type Cartesian struct{}

// NewCartesian builds a cartesian kinematics.
func NewCartesian() *Cartesian {
	return &Cartesian{}
}

func (k *Cartesian) Name() string { return "cartesian" }

func (k *Cartesian) GetAxisNames() []string { return []string{"x", "y", "z"} }

func (k *Cartesian) StepperCalcPosition(axis string) (AxisPosition, error) {
	switch axis {
	case "x":
		return func(seg *segq.Segment, t float64) float64 { return segq.GetCoord(seg, t).X }, nil
	case "y":
		return func(seg *segq.Segment, t float64) float64 { return segq.GetCoord(seg, t).Y }, nil
	case "z":
		return func(seg *segq.Segment, t float64) float64 { return segq.GetCoord(seg, t).Z }, nil
	}
	return nil, fmt.Errorf("kinematics: cartesian has no axis %q", axis)
}

// ActiveAxes reports that each cartesian stepper depends on exactly its own
// spatial axis.
func (k *Cartesian) ActiveAxes(axis string) (x, y, z bool) {
	switch axis {
	case "x":
		return true, false, false
	case "y":
		return false, true, false
	case "z":
		return false, false, true
	}
	return false, false, false
}
