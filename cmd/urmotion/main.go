package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/gwillem/urmotion/pkg/logging"
	"github.com/gwillem/urmotion/pkg/robot"
)

type Options struct {
	Config string `short:"c" long:"config" default:"urmotion.toml" description:"Configuration file"`

	Setup SetupCommand `command:"setup" description:"Enter controller addresses, probe the ports and write the config"`
	Run   RunCommand   `command:"run" description:"Drive the configured waypoints"`
	Pose  PoseCommand  `command:"pose" description:"Print the current TCP pose"`
	Watch WatchCommand `command:"watch" description:"Live table of the TCP pose"`
	Move  MoveCommand  `command:"move" description:"Move to a single joint configuration or pose"`
	Stop  StopCommand  `command:"stop" description:"Send a joint-space stop"`
	Grip  GripCommand  `command:"grip" description:"Command the gripper to a width and force"`
	Width WidthCommand `command:"width" description:"Print the gripper width"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

func main() {
	parser.LongDescription = "urmotion - waypoint sequencer for UR arms and RG grippers"

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}
}

// loadConfig reads the file named by --config.
func loadConfig() (*robot.Config, error) {
	cfg, err := robot.LoadConfigFrom(opts.Config)
	if err != nil {
		if os.IsNotExist(errors.Cause(err)) {
			return nil, errors.Errorf("no configuration at %s, run 'urmotion setup' first", opts.Config)
		}
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the logger for a command. quiet discards console output
// so that a full-screen UI is not overwritten; the log file is still written.
func newLogger(cfg logging.Config, quiet bool) (*zap.SugaredLogger, func(), error) {
	if quiet {
		return logging.NewTo(cfg, zapcore.AddSync(io.Discard))
	}
	return logging.New(cfg)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// parseFloats parses exactly n comma-separated numbers.
func parseFloats(s string, n int) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, errors.Errorf("need %d comma-separated values, got %d", n, len(parts))
	}
	out := make([]float64, n)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, errors.Wrapf(err, "value %d", i+1)
		}
		out[i] = v
	}
	return out, nil
}
