package robot

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.viam.com/test"
)

func TestConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultConfigFile)

	a := 0.8
	cfg := DefaultConfig()
	cfg.Arm.Host = "10.1.63.10"
	cfg.Gripper.Host = "10.1.63.11"
	cfg.Sequence.Settle = Duration(2500 * time.Millisecond)
	cfg.Waypoints = []WaypointConfig{
		{Name: "home", Kind: "joint", Joints: []float64{0, -90, 0, -90, 0, 0}, A: &a},
		{Name: "above", Kind: "linear", Pose: []float64{0.3, 0, 0.35, 2.2185, -2.2185, 0.0006}},
	}
	test.That(t, cfg.SaveTo(path), test.ShouldBeNil)

	got, err := LoadConfigFrom(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got.Arm, test.ShouldResemble, cfg.Arm)
	test.That(t, got.Gripper, test.ShouldResemble, cfg.Gripper)
	test.That(t, got.Sequence, test.ShouldResemble, cfg.Sequence)
	test.That(t, len(got.Waypoints), test.ShouldEqual, 2)
	test.That(t, *got.Waypoints[0].A, test.ShouldEqual, 0.8)
	test.That(t, got.Waypoints[0].V, test.ShouldBeNil)
	test.That(t, got.Waypoints[1].Pose, test.ShouldResemble, cfg.Waypoints[1].Pose)
}

func TestLoadConfigDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "min.toml")
	data := "[arm]\nhost = \"ur5.local\"\nfirmware = \"cb3.0\"\n\n[sequence]\nsettle = \"250ms\"\n"
	test.That(t, os.WriteFile(path, []byte(data), 0o644), test.ShouldBeNil)

	cfg, err := LoadConfigFrom(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.Arm.ScriptPort, test.ShouldEqual, DefaultScriptPort)
	test.That(t, cfg.Arm.RealtimePort, test.ShouldEqual, DefaultRealtimePort)
	test.That(t, cfg.Arm.DashboardPort, test.ShouldEqual, DefaultDashboardPort)
	test.That(t, time.Duration(cfg.Sequence.Settle), test.ShouldEqual, 250*time.Millisecond)
	test.That(t, cfg.Sequence.Repeat, test.ShouldEqual, 1)

	layout, err := cfg.Arm.FrameLayout()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, layout.Size, test.ShouldEqual, 1044)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing host", func(c *Config) { c.Arm.Host = "" }},
		{"bad port", func(c *Config) { c.Arm.DashboardPort = 70000 }},
		{"unknown firmware", func(c *Config) { c.Arm.Firmware = "cb2" }},
		{"negative settle", func(c *Config) { c.Sequence.Settle = Duration(-time.Second) }},
		{"zero deceleration", func(c *Config) { c.Sequence.StopDeceleration = 0 }},
		{"bad waypoint kind", func(c *Config) {
			c.Waypoints = []WaypointConfig{{Name: "x", Kind: "circle"}}
		}},
		{"short joints", func(c *Config) {
			c.Waypoints = []WaypointConfig{{Name: "x", Kind: "joint", Joints: []float64{0, 0, 0}}}
		}},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }},
		{"zero max send failures", func(c *Config) { c.Sequence.MaxSendFailures = 0 }},
		{"grip without width", func(c *Config) {
			c.Gripper.Host = "10.1.63.10"
			c.Waypoints = []WaypointConfig{{Name: "x", Kind: "grip"}}
		}},
		{"grip without gripper host", func(c *Config) {
			w := 50.0
			c.Waypoints = []WaypointConfig{{Name: "x", Kind: "grip", Width: &w}}
		}},
		{"negative waypoint settle", func(c *Config) {
			d := Duration(-time.Second)
			c.Waypoints = []WaypointConfig{{Name: "x", Kind: "joint", Joints: []float64{0, -90, 0, -90, 0, 0}, Settle: &d}}
		}},
	}

	base := DefaultConfig()
	base.Arm.Host = "10.1.63.10"
	test.That(t, base.Validate(), test.ShouldBeNil)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Arm.Host = "10.1.63.10"
			tt.mutate(&cfg)
			test.That(t, cfg.Validate(), test.ShouldNotBeNil)
		})
	}
}

func TestLoadConfigGripSteps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grip.toml")
	data := `[arm]
host = "10.1.63.10"

[gripper]
host = "10.1.63.10"

[[waypoint]]
name = "open"
kind = "grip"
width = 100.0
force = 40.0
settle = "3s"

[[waypoint]]
name = "close"
kind = "grip"
width = 10.0
gripper_id = 1
`
	test.That(t, os.WriteFile(path, []byte(data), 0o644), test.ShouldBeNil)

	cfg, err := LoadConfigFrom(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(cfg.Waypoints), test.ShouldEqual, 2)
	test.That(t, *cfg.Waypoints[0].Width, test.ShouldEqual, 100.0)
	test.That(t, *cfg.Waypoints[0].Force, test.ShouldEqual, 40.0)
	test.That(t, time.Duration(*cfg.Waypoints[0].Settle), test.ShouldEqual, 3*time.Second)
	test.That(t, cfg.Waypoints[1].Force, test.ShouldBeNil)
	test.That(t, *cfg.Waypoints[1].GripperID, test.ShouldEqual, 1)
	test.That(t, cfg.Sequence.MaxSendFailures, test.ShouldEqual, 3)
}

func TestLoadConfigMissing(t *testing.T) {
	_, err := LoadConfigFrom(filepath.Join(t.TempDir(), "nope.toml"))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestConfigExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultConfigFile)
	test.That(t, ConfigExists(path), test.ShouldBeFalse)
	test.That(t, ConfigExists(dir), test.ShouldBeFalse)

	cfg := DefaultConfig()
	cfg.Arm.Host = "10.1.63.10"
	test.That(t, cfg.SaveTo(path), test.ShouldBeNil)
	test.That(t, ConfigExists(path), test.ShouldBeTrue)
}
