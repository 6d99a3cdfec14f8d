package main

import (
	"testing"

	"go.viam.com/test"

	"github.com/gwillem/urmotion/pkg/gripper"
	"github.com/gwillem/urmotion/pkg/sequencer"
	"github.com/gwillem/urmotion/pkg/urscript"
)

func TestParseFloats(t *testing.T) {
	v, err := parseFloats("0, -90,0,-90, 0,0", 6)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, v, test.ShouldResemble, []float64{0, -90, 0, -90, 0, 0})

	_, err = parseFloats("1,2,3", 6)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = parseFloats("1,2,x,4,5,6", 6)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestMoveWaypoint(t *testing.T) {
	w, err := (&MoveCommand{Home: true}).waypoint()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, *w.Joints, test.ShouldResemble, sequencer.Home)

	w, err = (&MoveCommand{Pose: "0.3,0,0.35,2.2185,-2.2185,0.0006", Linear: true, Speed: 0.05}).waypoint()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, w.Kind(), test.ShouldEqual, "linear")
	test.That(t, w.Params, test.ShouldResemble, urscript.MotionParameters{A: 1.2, V: 0.05})

	_, err = (&MoveCommand{Home: true, Joints: "0,0,0,0,0,0"}).waypoint()
	test.That(t, err, test.ShouldNotBeNil)

	_, err = (&MoveCommand{}).waypoint()
	test.That(t, err, test.ShouldNotBeNil)
}

func TestPoseStats(t *testing.T) {
	var s poseStats
	s.add(urscript.NewPose(0.1, 0.2, 0.3, 0, 0, 0), "realtime")
	s.add(urscript.NewPose(-0.1, 0.4, 0.3, 1, 0, 0), "script")

	test.That(t, s.samples, test.ShouldEqual, 2)
	test.That(t, s.source, test.ShouldEqual, "script")
	test.That(t, s.min, test.ShouldResemble, [6]float64{-0.1, 0.2, 0.3, 0, 0, 0})
	test.That(t, s.max, test.ShouldResemble, [6]float64{0.1, 0.4, 0.3, 1, 0, 0})
	test.That(t, s.cur, test.ShouldResemble, [6]float64{-0.1, 0.4, 0.3, 1, 0, 0})
}

func TestGripperID(t *testing.T) {
	cfg := gripper.DefaultConfig("10.1.63.11")
	cfg.ID = 1
	g, err := gripper.New(cfg)
	test.That(t, err, test.ShouldBeNil)

	test.That(t, gripperID(-1, g), test.ShouldEqual, 1)
	test.That(t, gripperID(0, g), test.ShouldEqual, 0)
	test.That(t, gripperID(2, g), test.ShouldEqual, 2)
}
