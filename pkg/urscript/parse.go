package urscript

import (
	"strconv"
	"strings"

	"github.com/gwillem/urmotion/pkg/faults"
)

// ParsePose extracts the first "p[x, y, z, rx, ry, rz]" list in text.
func ParsePose(text string) (CartesianPose, error) {
	start := strings.Index(text, "p[")
	if start == -1 {
		return CartesianPose{}, faults.Newf(faults.ErrParse, "parse pose", "no pose list in %q", clip(text))
	}
	end := strings.Index(text[start:], "]")
	if end == -1 {
		return CartesianPose{}, faults.Newf(faults.ErrParse, "parse pose", "unterminated pose list in %q", clip(text))
	}

	fields := strings.Split(text[start+2:start+end], ",")
	if len(fields) != 6 {
		return CartesianPose{}, faults.Newf(faults.ErrParse, "parse pose", "need 6 values, got %d", len(fields))
	}
	vals := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return CartesianPose{}, faults.New(faults.ErrParse, "parse pose", err)
		}
		vals[i] = v
	}

	pose, _ := PoseFromSlice(vals)
	if err := pose.Validate(); err != nil {
		return CartesianPose{}, faults.New(faults.ErrParse, "parse pose", err)
	}
	return pose, nil
}

func clip(s string) string {
	const max = 64
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
