package urscript

import (
	"math"
	"strconv"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/gwillem/urmotion/pkg/faults"
)

// bracketed returns the numbers inside the first list opened by open.
func bracketed(t *testing.T, cmd, open string) []float64 {
	t.Helper()
	start := strings.Index(cmd, open)
	test.That(t, start, test.ShouldBeGreaterThanOrEqualTo, 0)
	end := strings.Index(cmd[start:], "]")
	test.That(t, end, test.ShouldBeGreaterThan, 0)

	var out []float64
	for _, f := range strings.Split(cmd[start+len(open):start+end], ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		test.That(t, err, test.ShouldBeNil)
		out = append(out, v)
	}
	return out
}

func TestEncodeJointMoveRadians(t *testing.T) {
	tests := []JointConfiguration{
		{0, -90, 0, -90, 0, 0},
		{0, -90, -90, -90, 90, 0},
		{12.5, -33.3, 180, -180, 359.9, -0.001},
		{1e-9, 720, -720, 45, 30, 60},
	}

	for _, joints := range tests {
		cmd, err := EncodeJointMove(joints, 1, 0.5)
		test.That(t, err, test.ShouldBeNil)

		got := bracketed(t, cmd, "movej([")
		test.That(t, len(got), test.ShouldEqual, 6)
		for i, deg := range joints {
			test.That(t, got[i], test.ShouldAlmostEqual, deg*math.Pi/180, 1e-12)
		}
	}
}

func TestEncodeJointMoveProgramBlock(t *testing.T) {
	cmd, err := EncodeJointMove(JointConfiguration{0, -90, 0, -90, 0, 0}, 1, 0.5)
	test.That(t, err, test.ShouldBeNil)

	want := "def urmotion():\n" +
		"  movej([0, -1.5707963267948966, 0, -1.5707963267948966, 0, 0], a=1, v=0.5)\n" +
		"end\n"
	test.That(t, cmd, test.ShouldEqual, want)
}

func TestEncodeJointMoveRejectsNonFinite(t *testing.T) {
	_, err := EncodeJointMove(JointConfiguration{0, math.NaN(), 0, 0, 0, 0}, 1, 0.5)
	test.That(t, errors.Is(err, faults.ErrInvalid), test.ShouldBeTrue)

	_, err = EncodeJointMove(JointConfiguration{}, math.Inf(1), 0.5)
	test.That(t, errors.Is(err, faults.ErrInvalid), test.ShouldBeTrue)
}

func TestEncodePoseMoveKeyword(t *testing.T) {
	pose := NewPose(0.3, -0.1415, 0.35, 2.2185, -2.2185, 0.0006)
	params := MotionParameters{A: 1.2, V: 0.25, T: 0.5, R: 0.01}

	joint, err := EncodePoseMove(pose, params, false)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, joint, test.ShouldEqual,
		"movej(p[0.3, -0.1415, 0.35, 2.2185, -2.2185, 0.0006], a=1.2, v=0.25, t=0.5, r=0.01)\n")

	linear, err := EncodePoseMove(pose, params, true)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, strings.HasPrefix(linear, "movel(p["), test.ShouldBeTrue)
	test.That(t, strings.HasSuffix(linear, "\n"), test.ShouldBeTrue)
	test.That(t, strings.Contains(linear, "def "), test.ShouldBeFalse)

	// a, v, t, r must appear in that order
	ia := strings.Index(linear, "a=")
	iv := strings.Index(linear, "v=")
	it := strings.Index(linear, "t=")
	ir := strings.Index(linear, "r=")
	test.That(t, ia < iv && iv < it && it < ir, test.ShouldBeTrue)

	vals := bracketed(t, linear, "p[")
	test.That(t, vals, test.ShouldResemble, []float64{0.3, -0.1415, 0.35, 2.2185, -2.2185, 0.0006})
}

func TestEncodePoseMoveRejectsNegativeParameters(t *testing.T) {
	_, err := EncodePoseMove(NewPose(0, 0, 0, 0, 0, 0), MotionParameters{A: 1, V: -0.1}, true)
	test.That(t, errors.Is(err, faults.ErrInvalid), test.ShouldBeTrue)
}

func TestEncodeStop(t *testing.T) {
	cmd, err := EncodeStop(2)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cmd, test.ShouldEqual, "def urmotion():\n  stopj(2)\nend\n")

	_, err = EncodeStop(0)
	test.That(t, errors.Is(err, faults.ErrInvalid), test.ShouldBeTrue)
}

func TestParsePose(t *testing.T) {
	pose, err := ParsePose("Robot pose: p[0.1, 0.2, 0.3, 0.0, 3.14, 0.0]\n")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pose.Values(), test.ShouldResemble, [6]float64{0.1, 0.2, 0.3, 0, 3.14, 0})

	for _, bad := range []string{
		"",
		"Connected: Universal Robots Dashboard Server",
		"p[0.1, 0.2, 0.3",
		"p[0.1, 0.2, 0.3, 0.0, 3.14]",
		"p[0.1, 0.2, x, 0.0, 3.14, 0]",
		"p[0.1, 0.2, NaN, 0.0, 3.14, 0]",
	} {
		_, err := ParsePose(bad)
		test.That(t, errors.Is(err, faults.ErrParse), test.ShouldBeTrue)
	}
}
