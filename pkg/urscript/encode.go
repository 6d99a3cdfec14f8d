package urscript

import (
	"strconv"
	"strings"

	"github.com/gwillem/urmotion/pkg/faults"
)

// ProgramName is the procedure name used for program-block commands.
const ProgramName = "urmotion"

// GetActualTCPPose asks the script interpreter for the current TCP pose.
const GetActualTCPPose = "get_actual_tcp_pose()\n"

// EncodeJointMove converts the degrees in j to radians and wraps a movej
// statement in a program block, ready to be sent as one unit.
func EncodeJointMove(j JointConfiguration, a, v float64) (string, error) {
	if err := j.Validate(); err != nil {
		return "", err
	}
	if err := (MotionParameters{A: a, V: v}).Validate(); err != nil {
		return "", err
	}

	rad := j.Radians()
	stmt := "movej(" + list("[", rad[:]) + ", a=" + num(a) + ", v=" + num(v) + ")"
	return program(stmt), nil
}

// EncodePoseMove formats a movej (linear=false) or movel (linear=true) to a
// Cartesian pose as a bare newline-terminated statement.
func EncodePoseMove(p CartesianPose, m MotionParameters, linear bool) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}
	if err := m.Validate(); err != nil {
		return "", err
	}

	keyword := "movej"
	if linear {
		keyword = "movel"
	}
	vals := p.Values()

	var sb strings.Builder
	sb.WriteString(keyword)
	sb.WriteString("(")
	sb.WriteString(list("p[", vals[:]))
	sb.WriteString(", a=" + num(m.A))
	sb.WriteString(", v=" + num(m.V))
	sb.WriteString(", t=" + num(m.T))
	sb.WriteString(", r=" + num(m.R))
	sb.WriteString(")\n")
	return sb.String(), nil
}

// EncodeStop wraps a stopj with the given deceleration in a program block.
func EncodeStop(deceleration float64) (string, error) {
	if !finite(deceleration) || deceleration <= 0 {
		return "", faults.Newf(faults.ErrInvalid, "stop", "deceleration %v must be finite and > 0", deceleration)
	}
	return program("stopj(" + num(deceleration) + ")"), nil
}

func program(stmt string) string {
	return "def " + ProgramName + "():\n  " + stmt + "\nend\n"
}

func list(open string, vals []float64) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = num(v)
	}
	return open + strings.Join(parts, ", ") + "]"
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
