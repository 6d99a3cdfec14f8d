package main

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/gwillem/urmotion/pkg/gripper"
	"github.com/gwillem/urmotion/pkg/robot"
	"github.com/gwillem/urmotion/pkg/sequencer"
	"github.com/gwillem/urmotion/pkg/urscript"
)

type PoseCommand struct{}

func (c *PoseCommand) Execute(args []string) error {
	return withArm(func(ctx context.Context, arm *robot.Arm, _ *robot.Config) error {
		reading, ok := arm.QueryPose(ctx)
		if !ok {
			return errors.New("pose unknown: no read-back channel answered")
		}
		v := reading.Pose.Values()
		for i, axis := range robot.AllAxes() {
			fmt.Printf("%-3s %10.4f\n", axis, v[i])
		}
		fmt.Println(dimStyle.Render("via " + reading.Source))
		return nil
	})
}

type MoveCommand struct {
	Home   bool    `long:"home" description:"Move to the upright joint configuration (0,-90,0,-90,0,0)"`
	Joints string  `long:"joints" description:"Six joint angles in degrees, comma separated"`
	Pose   string  `long:"pose" description:"x,y,z in meters and rx,ry,rz in radians, comma separated"`
	Linear bool    `long:"linear" description:"Move linearly in tool space (with --pose)"`
	Accel  float64 `short:"a" long:"accel" description:"Acceleration (default: per motion kind)"`
	Speed  float64 `short:"v" long:"speed" description:"Velocity (default: per motion kind)"`
}

// waypoint builds the single target named on the command line.
func (c *MoveCommand) waypoint() (sequencer.Waypoint, error) {
	set := 0
	for _, b := range []bool{c.Home, c.Joints != "", c.Pose != ""} {
		if b {
			set++
		}
	}
	if set != 1 {
		return sequencer.Waypoint{}, errors.New("give exactly one of --home, --joints or --pose")
	}

	switch {
	case c.Home:
		return sequencer.JointWaypoint("home", sequencer.Home, c.params(urscript.JointMoveDefaults)), nil
	case c.Joints != "":
		v, err := parseFloats(c.Joints, urscript.NumJoints)
		if err != nil {
			return sequencer.Waypoint{}, errors.Wrap(err, "--joints")
		}
		var j urscript.JointConfiguration
		copy(j[:], v)
		return sequencer.JointWaypoint("joints", j, c.params(urscript.JointMoveDefaults)), nil
	}

	v, err := parseFloats(c.Pose, 6)
	if err != nil {
		return sequencer.Waypoint{}, errors.Wrap(err, "--pose")
	}
	p, _ := urscript.PoseFromSlice(v)
	defaults := urscript.PoseMoveDefaults
	if c.Linear {
		defaults = urscript.LinearMoveDefaults
	}
	return sequencer.PoseWaypoint("pose", p, c.params(defaults), c.Linear), nil
}

func (c *MoveCommand) params(m urscript.MotionParameters) urscript.MotionParameters {
	if c.Accel > 0 {
		m.A = c.Accel
	}
	if c.Speed > 0 {
		m.V = c.Speed
	}
	return m
}

func (c *MoveCommand) Execute(args []string) error {
	w, err := c.waypoint()
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, flush, err := newLogger(cfg.Logging, false)
	if err != nil {
		return err
	}
	defer flush()

	arm, err := robot.NewArm(cfg.Arm, robot.WithLogger(logger.Named("arm")))
	if err != nil {
		return err
	}
	seqCfg := sequencer.ConfigFrom(cfg.Sequence)
	seqCfg.Repeat = 1
	ctrl, err := sequencer.NewController(arm, []sequencer.Waypoint{w}, seqCfg, sequencer.WithLogger(logger.Named("sequencer")))
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()
	return runPlain(ctx, ctrl)
}

type StopCommand struct {
	Deceleration float64 `long:"decel" description:"Joint deceleration in rad/s² (default: from config)"`
}

func (c *StopCommand) Execute(args []string) error {
	return withArm(func(ctx context.Context, arm *robot.Arm, cfg *robot.Config) error {
		decel := cfg.Sequence.StopDeceleration
		if c.Deceleration > 0 {
			decel = c.Deceleration
		}
		if err := arm.Stop(ctx, decel); err != nil {
			return err
		}
		fmt.Println(successStyle.Render("Stop sent"))
		return nil
	})
}

type GripCommand struct {
	Width float64 `short:"w" long:"width" default:"100" description:"Target width in mm, clamped to 0..100"`
	Force float64 `short:"f" long:"force" default:"10" description:"Grip force in N, clamped to 0..40"`
	ID    int     `long:"id" default:"-1" description:"Gripper index on the controller (default: gripper.id from config)"`
}

func (c *GripCommand) Execute(args []string) error {
	return withGripper(func(ctx context.Context, g *gripper.Gripper) error {
		id := gripperID(c.ID, g)
		if err := g.Grip(ctx, id, c.Width, c.Force); err != nil {
			return err
		}
		w, f := gripper.ClampTarget(c.Width, c.Force)
		fmt.Println(successStyle.Render(fmt.Sprintf("Grip sent to gripper %d: width %.1f mm, force %.1f N", id, w, f)))
		return nil
	})
}

type WidthCommand struct {
	ID int `long:"id" default:"-1" description:"Gripper index on the controller (default: gripper.id from config)"`
}

func (c *WidthCommand) Execute(args []string) error {
	return withGripper(func(ctx context.Context, g *gripper.Gripper) error {
		w, err := g.Width(ctx, gripperID(c.ID, g))
		if err != nil {
			return err
		}
		fmt.Printf("%.1f mm\n", w)
		return nil
	})
}

// gripperID picks the --id flag when given and the configured id otherwise.
func gripperID(flag int, g *gripper.Gripper) int {
	if flag >= 0 {
		return flag
	}
	return g.ID()
}

// withArm loads the config, connects, runs fn and disconnects.
func withArm(fn func(ctx context.Context, arm *robot.Arm, cfg *robot.Config) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, flush, err := newLogger(cfg.Logging, false)
	if err != nil {
		return err
	}
	defer flush()

	arm, err := robot.NewArm(cfg.Arm, robot.WithLogger(logger.Named("arm")))
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, 30*time.Second)
	defer cancelTimeout()

	if err := arm.Connect(ctx); err != nil {
		return err
	}
	defer arm.Disconnect()
	return fn(ctx, arm, cfg)
}

// withGripper loads the config and runs fn against the configured gripper.
func withGripper(fn func(ctx context.Context, g *gripper.Gripper) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Gripper.Host == "" {
		return errors.Errorf("no gripper host in %s", opts.Config)
	}
	logger, flush, err := newLogger(cfg.Logging, false)
	if err != nil {
		return err
	}
	defer flush()

	g, err := gripper.New(cfg.Gripper, gripper.WithLogger(logger.Named("gripper")))
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()
	return fn(ctx, g)
}
