// Package kinematics maps a machine's physical axis layout onto the
// per-stepper position functions itersolve needs. It generalizes the
// teacher's single-machine Kinematics interface into a family of forward
// kinematics (cartesian, corexy, delta) that each hand back a closure
// evaluating a segq segment's position along one stepper's axis.
package kinematics

import "gopper-motion/segq"

// AxisPosition evaluates a stepper's scalar commanded position moveTime
// seconds into seg, the same role as itersolve.c's calc_position callback.
type AxisPosition func(seg *segq.Segment, moveTime float64) float64

// Kinematics describes a machine's forward kinematics: the named axes it
// drives and, for each, the stepper position function derived from a segq
// segment's XYZ coordinate.
type Kinematics interface {
	Name() string
	GetAxisNames() []string
	StepperCalcPosition(axis string) (AxisPosition, error)

	// ActiveAxes reports which of the machine's XYZ motion axes this
	// stepper's position depends on, used to derive itersolve's
	// active-axis flags without a kinematics->itersolve import cycle.
	ActiveAxes(axis string) (x, y, z bool)
}
