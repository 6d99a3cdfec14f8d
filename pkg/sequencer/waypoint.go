package sequencer

import (
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/gwillem/urmotion/pkg/gripper"
	"github.com/gwillem/urmotion/pkg/robot"
	"github.com/gwillem/urmotion/pkg/urscript"
)

// Waypoint is one step of the sequence: a joint configuration, a
// Cartesian pose, or a gripper target. Exactly one of Joints, Pose and Grip
// is set.
type Waypoint struct {
	Name   string
	Joints *urscript.JointConfiguration
	Pose   *urscript.CartesianPose
	Grip   *GripTarget
	Params urscript.MotionParameters
	Linear bool           // movel instead of movej; only for Pose
	Settle *time.Duration // overrides Config.Settle after this step
}

// GripTarget is a gripper opening in millimeters and force in newtons.
// A nil ID selects the gripper's configured index.
type GripTarget struct {
	ID    *int
	Width float64
	Force float64
}

// JointWaypoint returns a joint-space target. Angles are in degrees.
func JointWaypoint(name string, j urscript.JointConfiguration, params urscript.MotionParameters) Waypoint {
	return Waypoint{Name: name, Joints: &j, Params: params}
}

// PoseWaypoint returns a Cartesian target reached with movej, or movel
// when linear is set.
func PoseWaypoint(name string, p urscript.CartesianPose, params urscript.MotionParameters, linear bool) Waypoint {
	return Waypoint{Name: name, Pose: &p, Params: params, Linear: linear}
}

// GripWaypoint returns a gripper step.
func GripWaypoint(name string, width, force float64) Waypoint {
	return Waypoint{Name: name, Grip: &GripTarget{Width: width, Force: force}}
}

// Home is the upright joint configuration the arm is parked in.
var Home = urscript.JointConfiguration{0, -90, 0, -90, 0, 0}

// Encode renders the waypoint as a script-port command. Grip steps have
// none and return an error.
func (w Waypoint) Encode() (string, error) {
	switch {
	case w.Grip != nil:
		return "", errors.Errorf("waypoint %q: grip steps are not script commands", w.Name)
	case w.Joints != nil && w.Pose != nil:
		return "", errors.Errorf("waypoint %q: both joints and pose set", w.Name)
	case w.Joints != nil:
		return urscript.EncodeJointMove(*w.Joints, w.Params.A, w.Params.V)
	case w.Pose != nil:
		return urscript.EncodePoseMove(*w.Pose, w.Params, w.Linear)
	}
	return "", errors.Errorf("waypoint %q: no target", w.Name)
}

// Kind names the step: "joint", "pose", "linear" or "grip".
func (w Waypoint) Kind() string {
	switch {
	case w.Grip != nil:
		return "grip"
	case w.Joints != nil:
		return "joint"
	case w.Linear:
		return "linear"
	}
	return "pose"
}

// FromConfig converts waypoints read from the config file. Parameters
// left unset take the defaults of the motion kind.
func FromConfig(cfgs []robot.WaypointConfig) ([]Waypoint, error) {
	out := make([]Waypoint, 0, len(cfgs))
	for i, c := range cfgs {
		name := c.Name
		if name == "" {
			name = fmt.Sprintf("waypoint %d", i+1)
		}

		var w Waypoint
		switch c.Kind {
		case "joint":
			if len(c.Joints) != urscript.NumJoints {
				return nil, errors.Errorf("%s: need %d joints, got %d", name, urscript.NumJoints, len(c.Joints))
			}
			var j urscript.JointConfiguration
			copy(j[:], c.Joints)
			w = JointWaypoint(name, j, overrides(urscript.JointMoveDefaults, c))
		case "pose", "linear":
			p, err := urscript.PoseFromSlice(c.Pose)
			if err != nil {
				return nil, errors.Wrap(err, name)
			}
			defaults := urscript.PoseMoveDefaults
			if c.Kind == "linear" {
				defaults = urscript.LinearMoveDefaults
			}
			w = PoseWaypoint(name, p, overrides(defaults, c), c.Kind == "linear")
		case "grip":
			if c.Width == nil {
				return nil, errors.Errorf("%s: grip needs a width", name)
			}
			force := gripper.DefaultForce
			if c.Force != nil {
				force = *c.Force
			}
			w = GripWaypoint(name, *c.Width, force)
			w.Grip.ID = c.GripperID
		default:
			return nil, errors.Errorf("%s: unknown kind %q", name, c.Kind)
		}
		if c.Settle != nil {
			if *c.Settle < 0 {
				return nil, errors.Errorf("%s: settle must be >= 0", name)
			}
			d := time.Duration(*c.Settle)
			w.Settle = &d
		}
		out = append(out, w)
	}
	return out, nil
}

func overrides(m urscript.MotionParameters, c robot.WaypointConfig) urscript.MotionParameters {
	if c.A != nil {
		m.A = *c.A
	}
	if c.V != nil {
		m.V = *c.V
	}
	if c.T != nil {
		m.T = *c.T
	}
	if c.R != nil {
		m.R = *c.R
	}
	return m
}
