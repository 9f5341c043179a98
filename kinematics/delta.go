package kinematics

import (
	"fmt"
	"math"

	"gopper-motion/segq"
)

// DeltaTower is one tower's fixed XY anchor position.
type DeltaTower struct {
	X, Y float64
}

// Delta is a three-tower linear-delta machine: each stepper's position is
// the carriage height that keeps its tower's fixed-length arm reaching the
// effector's current XYZ position.
type Delta struct {
	Towers    [3]DeltaTower
	ArmLength float64
}

// NewDelta builds a delta kinematics with towers spaced 120 degrees apart
// on a circle of towerRadius, each carrying an arm of armLength.
func NewDelta(towerRadius, armLength float64) *Delta {
	var towers [3]DeltaTower
	for i := 0; i < 3; i++ {
		angle := math.Pi/2 + 2*math.Pi*float64(i)/3
		towers[i] = DeltaTower{
			X: towerRadius * math.Cos(angle),
			Y: towerRadius * math.Sin(angle),
		}
	}
	return &Delta{Towers: towers, ArmLength: armLength}
}

func (k *Delta) Name() string { return "delta" }

func (k *Delta) GetAxisNames() []string { return []string{"tower0", "tower1", "tower2"} }

func (k *Delta) StepperCalcPosition(axis string) (AxisPosition, error) {
	idx := -1
	switch axis {
	case "tower0":
		idx = 0
	case "tower1":
		idx = 1
	case "tower2":
		idx = 2
	default:
		return nil, fmt.Errorf("kinematics: delta has no axis %q", axis)
	}
	tower := k.Towers[idx]
	armLen2 := k.ArmLength * k.ArmLength
	return func(seg *segq.Segment, t float64) float64 {
		c := segq.GetCoord(seg, t)
		dx := tower.X - c.X
		dy := tower.Y - c.Y
		return c.Z + math.Sqrt(armLen2-dx*dx-dy*dy)
	}, nil
}

// ActiveAxes reports that every tower's height depends on all three
// effector axes, since each tower's reach equation mixes X, Y, and Z.
func (k *Delta) ActiveAxes(axis string) (x, y, z bool) {
	switch axis {
	case "tower0", "tower1", "tower2":
		return true, true, true
	}
	return false, false, false
}
