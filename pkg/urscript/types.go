// Package urscript encodes motion requests as URScript text for the arm's
// script port and parses the pose replies the controller sends back.
// Nothing in this package performs I/O.
package urscript

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/golang/geo/s1"

	"github.com/gwillem/urmotion/pkg/faults"
)

// NumJoints is the number of arm joints.
const NumJoints = 6

// JointConfiguration holds the six joint angles in degrees, base first.
type JointConfiguration [NumJoints]float64

// Radians converts each angle from degrees to radians.
func (j JointConfiguration) Radians() [NumJoints]float64 {
	var out [NumJoints]float64
	for i, deg := range j {
		out[i] = (s1.Angle(deg) * s1.Degree).Radians()
	}
	return out
}

// Validate rejects non-finite angles. Ranges are left to the controller.
func (j JointConfiguration) Validate() error {
	for i, v := range j {
		if !finite(v) {
			return faults.Newf(faults.ErrInvalid, "joint configuration", "joint %d is %v", i, v)
		}
	}
	return nil
}

// CartesianPose is a tool-center-point pose: position in meters and an
// axis-angle rotation vector in radians.
type CartesianPose struct {
	Position r3.Vector
	Rotation r3.Vector
}

// NewPose builds a pose from the six values in wire order.
func NewPose(x, y, z, rx, ry, rz float64) CartesianPose {
	return CartesianPose{
		Position: r3.Vector{X: x, Y: y, Z: z},
		Rotation: r3.Vector{X: rx, Y: ry, Z: rz},
	}
}

// PoseFromSlice builds a pose from exactly six values.
func PoseFromSlice(v []float64) (CartesianPose, error) {
	if len(v) != 6 {
		return CartesianPose{}, faults.Newf(faults.ErrInvalid, "pose", "need 6 values, got %d", len(v))
	}
	return NewPose(v[0], v[1], v[2], v[3], v[4], v[5]), nil
}

// Values returns x, y, z, rx, ry, rz.
func (p CartesianPose) Values() [6]float64 {
	return [6]float64{p.Position.X, p.Position.Y, p.Position.Z, p.Rotation.X, p.Rotation.Y, p.Rotation.Z}
}

// Validate rejects non-finite components.
func (p CartesianPose) Validate() error {
	for i, v := range p.Values() {
		if !finite(v) {
			return faults.Newf(faults.ErrInvalid, "pose", "component %d is %v", i, v)
		}
	}
	return nil
}

// MotionParameters are the kinematic arguments of a move: acceleration A,
// velocity V, time T and blend radius R. Zero T and R mean "unused".
type MotionParameters struct {
	A float64
	V float64
	T float64
	R float64
}

// Defaults per motion kind.
var (
	JointMoveDefaults  = MotionParameters{A: 1, V: 0.5}
	PoseMoveDefaults   = MotionParameters{A: 1.2, V: 0.25}
	LinearMoveDefaults = MotionParameters{A: 1.2, V: 0.11}
)

// Validate requires every parameter to be finite and non-negative.
func (m MotionParameters) Validate() error {
	for _, p := range []struct {
		name string
		v    float64
	}{{"a", m.A}, {"v", m.V}, {"t", m.T}, {"r", m.R}} {
		if !finite(p.v) || p.v < 0 {
			return faults.Newf(faults.ErrInvalid, "motion parameters", "%s=%v must be finite and >= 0", p.name, p.v)
		}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
