package kinematics

import "fmt"

// New builds the named kinematics. deltaTowerRadius/deltaArmLength are only
// consulted when name is "delta"; mirrors the teacher's
// standalone.Manager.Initialize switch on config.Kinematics.
func New(name string, deltaTowerRadius, deltaArmLength float64) (Kinematics, error) {
	switch name {
	case "", "cartesian":
		return NewCartesian(), nil
	case "corexy":
		return NewCoreXY(), nil
	case "delta":
		return NewDelta(deltaTowerRadius, deltaArmLength), nil
	}
	return nil, fmt.Errorf("kinematics: unknown kinematics %q", name)
}
