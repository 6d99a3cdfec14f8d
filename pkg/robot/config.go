package robot

import (
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"

	"github.com/gwillem/urmotion/pkg/gripper"
	"github.com/gwillem/urmotion/pkg/logging"
)

const DefaultConfigFile = "urmotion.toml"

// Well-known UR controller ports.
const (
	DefaultScriptPort    = 30002
	DefaultRealtimePort  = 30003
	DefaultDashboardPort = 29999
)

// Duration is a time.Duration written as a string ("5s", "100ms") in TOML.
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Config holds the cell configuration.
type Config struct {
	Arm       ArmConfig        `toml:"arm"`
	Gripper   gripper.Config   `toml:"gripper"`
	Sequence  SequenceConfig   `toml:"sequence"`
	Logging   logging.Config   `toml:"logging"`
	Waypoints []WaypointConfig `toml:"waypoint,omitempty"`
}

// ArmConfig holds the arm controller endpoints and read-back settings.
type ArmConfig struct {
	Host             string      `toml:"host"`
	ScriptPort       int         `toml:"script_port"`
	RealtimePort     int         `toml:"realtime_port"`
	DashboardPort    int         `toml:"dashboard_port"`
	DialTimeout      Duration    `toml:"dial_timeout"`
	ReadTimeout      Duration    `toml:"read_timeout"`
	ScriptReplyDelay Duration    `toml:"script_reply_delay"`
	ReplySize        int         `toml:"reply_size"`
	Firmware         string      `toml:"firmware,omitempty"` // overrides Frame when set
	Frame            FrameLayout `toml:"frame"`
}

// SequenceConfig controls how waypoints are driven.
type SequenceConfig struct {
	Settle              Duration `toml:"settle"`
	StopDeceleration    float64  `toml:"stop_deceleration"`
	ContinueOnSendError bool     `toml:"continue_on_send_error"`
	MaxSendFailures     int      `toml:"max_send_failures"` // consecutive failures that abort a continuing run
	Repeat              int      `toml:"repeat"`            // 0 repeats until interrupted
}

// WaypointConfig is one target as written in the config file. Joints are
// in degrees; Pose is x, y, z in meters then rx, ry, rz in radians.
// Unset kinematic parameters take the defaults of the motion kind.
// Grip steps use Width (mm), Force (N) and GripperID instead.
type WaypointConfig struct {
	Name      string    `toml:"name"`
	Kind      string    `toml:"kind"` // "joint", "pose", "linear" or "grip"
	Joints    []float64 `toml:"joints,omitempty"`
	Pose      []float64 `toml:"pose,omitempty"`
	A         *float64  `toml:"a,omitempty"`
	V         *float64  `toml:"v,omitempty"`
	T         *float64  `toml:"t,omitempty"`
	R         *float64  `toml:"r,omitempty"`
	Width     *float64  `toml:"width,omitempty"`
	Force     *float64  `toml:"force,omitempty"`
	GripperID *int      `toml:"gripper_id,omitempty"`
	Settle    *Duration `toml:"settle,omitempty"`
}

// DefaultConfig returns the values used whenever the file omits a field.
func DefaultConfig() Config {
	return Config{
		Arm:      DefaultArmConfig(""),
		Gripper:  gripper.DefaultConfig(""),
		Sequence: DefaultSequenceConfig(),
		Logging:  logging.DefaultConfig(),
	}
}

// DefaultArmConfig returns the standard ports and timeouts for host.
func DefaultArmConfig(host string) ArmConfig {
	return ArmConfig{
		Host:             host,
		ScriptPort:       DefaultScriptPort,
		RealtimePort:     DefaultRealtimePort,
		DashboardPort:    DefaultDashboardPort,
		DialTimeout:      Duration(2 * time.Second),
		ReadTimeout:      Duration(time.Second),
		ScriptReplyDelay: Duration(100 * time.Millisecond),
		ReplySize:        1024,
		Frame:            DefaultFrameLayout(),
	}
}

// DefaultSequenceConfig settles 5s after each move and runs the list once.
func DefaultSequenceConfig() SequenceConfig {
	return SequenceConfig{
		Settle:           Duration(5 * time.Second),
		StopDeceleration: 2.0,
		MaxSendFailures:  3,
		Repeat:           1,
	}
}

// FrameLayout resolves the firmware preset, falling back to Frame.
func (a ArmConfig) FrameLayout() (FrameLayout, error) {
	if a.Firmware == "" {
		return a.Frame, a.Frame.Validate()
	}
	l, ok := LookupFrameLayout(a.Firmware)
	if !ok {
		return FrameLayout{}, errors.Errorf("arm.firmware %q unknown (known: %v)", a.Firmware, FirmwareNames())
	}
	return l, nil
}

// Validate checks the arm section.
func (a ArmConfig) Validate() error {
	if a.Host == "" {
		return errors.New("arm.host must not be empty")
	}
	for name, p := range map[string]int{
		"arm.script_port":    a.ScriptPort,
		"arm.realtime_port":  a.RealtimePort,
		"arm.dashboard_port": a.DashboardPort,
	} {
		if p <= 0 || p > 65535 {
			return errors.Errorf("%s must be between 1 and 65535, got %d", name, p)
		}
	}
	if a.ReplySize <= 0 {
		return errors.New("arm.reply_size must be > 0")
	}
	if a.ReadTimeout < 0 || a.DialTimeout < 0 || a.ScriptReplyDelay < 0 {
		return errors.New("arm timeouts must be >= 0")
	}
	_, err := a.FrameLayout()
	return errors.Wrap(err, "arm.frame")
}

// Validate checks the sequence section.
func (s SequenceConfig) Validate() error {
	if s.Settle < 0 {
		return errors.New("sequence.settle must be >= 0")
	}
	if s.StopDeceleration <= 0 {
		return errors.New("sequence.stop_deceleration must be > 0")
	}
	if s.Repeat < 0 {
		return errors.New("sequence.repeat must be >= 0")
	}
	if s.MaxSendFailures < 1 {
		return errors.New("sequence.max_send_failures must be >= 1")
	}
	return nil
}

// Validate checks every section. A config without a gripper host is valid;
// gripper commands check for it themselves.
func (c *Config) Validate() error {
	if err := c.Arm.Validate(); err != nil {
		return err
	}
	if c.Gripper.Host != "" {
		if err := c.Gripper.Validate(); err != nil {
			return err
		}
	}
	if err := c.Sequence.Validate(); err != nil {
		return err
	}
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	for i, w := range c.Waypoints {
		switch w.Kind {
		case "joint":
			if len(w.Joints) != len(AllJoints()) {
				return errors.Errorf("waypoint %d (%s): need %d joints, got %d", i, w.Name, len(AllJoints()), len(w.Joints))
			}
		case "pose", "linear":
			if len(w.Pose) != len(AllAxes()) {
				return errors.Errorf("waypoint %d (%s): need %d pose values, got %d", i, w.Name, len(AllAxes()), len(w.Pose))
			}
		case "grip":
			if w.Width == nil {
				return errors.Errorf("waypoint %d (%s): grip needs a width", i, w.Name)
			}
			if c.Gripper.Host == "" {
				return errors.Errorf("waypoint %d (%s): grip needs gripper.host", i, w.Name)
			}
			if w.GripperID != nil && *w.GripperID < 0 {
				return errors.Errorf("waypoint %d (%s): gripper_id must be >= 0", i, w.Name)
			}
		default:
			return errors.Errorf("waypoint %d (%s): kind must be joint, pose, linear or grip, got %q", i, w.Name, w.Kind)
		}
		if w.Settle != nil && *w.Settle < 0 {
			return errors.Errorf("waypoint %d (%s): settle must be >= 0", i, w.Name)
		}
	}
	return nil
}

// LoadConfigFrom reads path, layers it on top of the defaults, and validates the result.
func LoadConfigFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid %s", path)
	}
	return &cfg, nil
}

// SaveTo saves configuration to a specific file
func (c *Config) SaveTo(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ConfigExists reports whether path names an existing regular file.
func ConfigExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
