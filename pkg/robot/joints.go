// Package robot provides the session to a Universal Robots arm controller:
// the script connection, the pose read-back channels and the configuration.
package robot

// JointName identifies a joint in the arm.
type JointName string

// Joint names for a UR arm, base first.
const (
	Base     JointName = "base"
	Shoulder JointName = "shoulder"
	Elbow    JointName = "elbow"
	Wrist1   JointName = "wrist1"
	Wrist2   JointName = "wrist2"
	Wrist3   JointName = "wrist3"
)

// AllJoints returns all joint names in wire order.
func AllJoints() []JointName {
	return []JointName{
		Base,
		Shoulder,
		Elbow,
		Wrist1,
		Wrist2,
		Wrist3,
	}
}

// PoseAxis names one component of a TCP pose.
type PoseAxis string

// TCP pose components in wire order.
const (
	AxisX  PoseAxis = "x"
	AxisY  PoseAxis = "y"
	AxisZ  PoseAxis = "z"
	AxisRX PoseAxis = "rx"
	AxisRY PoseAxis = "ry"
	AxisRZ PoseAxis = "rz"
)

// AllAxes returns the pose components in wire order.
func AllAxes() []PoseAxis {
	return []PoseAxis{AxisX, AxisY, AxisZ, AxisRX, AxisRY, AxisRZ}
}
