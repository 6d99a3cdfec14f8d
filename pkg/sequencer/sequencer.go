// Package sequencer drives a list of waypoints through an arm session.
package sequencer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/gwillem/urmotion/pkg/robot"
	"github.com/gwillem/urmotion/pkg/urscript"
)

// Session is the part of an arm session the sequencer needs. *robot.Arm
// implements it.
type Session interface {
	Connect(ctx context.Context) error
	Disconnect() error
	SendMotion(ctx context.Context, cmd string) error
	QueryPose(ctx context.Context) (robot.PoseReading, bool)
}

// Gripper drives grip steps. *gripper.Gripper implements it.
type Gripper interface {
	ID() int
	Grip(ctx context.Context, id int, width, force float64) error
}

// Sleeper waits between motions.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// ClockSleeper sleeps on a clock and wakes early when ctx is done.
type ClockSleeper struct {
	Clock clock.Clock
}

func (s ClockSleeper) Sleep(ctx context.Context, d time.Duration) error {
	t := s.Clock.Timer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// State is published after every waypoint and once when the run ends.
type State struct {
	Iteration int // 1-based
	Index     int // 0-based position in the waypoint list
	Name      string
	Pose      *urscript.CartesianPose // nil when the pose is unknown
	Source    string
	Timestamp time.Time
	Error     error
	Done      bool
}

// Config controls how the waypoint list is driven.
type Config struct {
	Settle              time.Duration
	StopDeceleration    float64
	ContinueOnSendError bool
	MaxSendFailures     int           // consecutive failures that abort even when continuing
	Repeat              int           // 0 repeats until interrupted
	TeardownTimeout     time.Duration // bounds the stop and pose query after an interrupt
}

// ConfigFrom converts the config file section.
func ConfigFrom(s robot.SequenceConfig) Config {
	return Config{
		Settle:              time.Duration(s.Settle),
		StopDeceleration:    s.StopDeceleration,
		ContinueOnSendError: s.ContinueOnSendError,
		MaxSendFailures:     s.MaxSendFailures,
		Repeat:              s.Repeat,
		TeardownTimeout:     5 * time.Second,
	}
}

// Controller runs the sequence. It is single-use per Run but may be run
// again after Run returns.
type Controller struct {
	session   Session
	waypoints []Waypoint
	commands  []string
	stopCmd   string
	cfg       Config
	gripper   Gripper
	sleeper   Sleeper
	clock     clock.Clock
	logger    *zap.SugaredLogger

	mu      sync.Mutex
	running bool
	stateCh chan State
	logCh   chan string
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithGripper sets the gripper used by grip steps.
func WithGripper(g Gripper) Option {
	return func(c *Controller) { c.gripper = g }
}

// WithSleeper replaces the settle sleeper.
func WithSleeper(s Sleeper) Option {
	return func(c *Controller) { c.sleeper = s }
}

// WithClock sets the clock used for the settle wait and timestamps.
func WithClock(cl clock.Clock) Option {
	return func(c *Controller) { c.clock = cl }
}

// NewController encodes every waypoint up front so that a bad target is
// rejected before anything is sent.
func NewController(session Session, waypoints []Waypoint, cfg Config, opts ...Option) (*Controller, error) {
	if len(waypoints) == 0 {
		return nil, errors.New("no waypoints")
	}
	if cfg.Settle < 0 {
		return nil, errors.New("settle must be >= 0")
	}
	if cfg.Repeat < 0 {
		return nil, errors.New("repeat must be >= 0")
	}
	if cfg.TeardownTimeout <= 0 {
		cfg.TeardownTimeout = 5 * time.Second
	}
	if cfg.MaxSendFailures <= 0 {
		cfg.MaxSendFailures = 3
	}

	stopCmd, err := urscript.EncodeStop(cfg.StopDeceleration)
	if err != nil {
		return nil, err
	}
	commands := make([]string, len(waypoints))
	hasGrip := false
	for i, w := range waypoints {
		if w.Settle != nil && *w.Settle < 0 {
			return nil, errors.Errorf("waypoint %d (%s): settle must be >= 0", i+1, w.Name)
		}
		if w.Grip != nil {
			if w.Joints != nil || w.Pose != nil {
				return nil, errors.Errorf("waypoint %d (%s): grip step with a motion target", i+1, w.Name)
			}
			hasGrip = true
			continue
		}
		if commands[i], err = w.Encode(); err != nil {
			return nil, errors.Wrapf(err, "waypoint %d (%s)", i+1, w.Name)
		}
	}

	c := &Controller{
		session:   session,
		waypoints: waypoints,
		commands:  commands,
		stopCmd:   stopCmd,
		cfg:       cfg,
		clock:     clock.New(),
		logger:    zap.NewNop().Sugar(),
		stateCh:   make(chan State, 1),
		logCh:     make(chan string, 32),
	}
	for _, opt := range opts {
		opt(c)
	}
	if hasGrip && c.gripper == nil {
		return nil, errors.New("grip steps need a gripper")
	}
	if c.sleeper == nil {
		c.sleeper = ClockSleeper{Clock: c.clock}
	}
	return c, nil
}

// States returns a channel holding the newest state.
func (c *Controller) States() <-chan State {
	return c.stateCh
}

// Logs returns a channel of human-readable progress lines. Lines are
// dropped when nobody reads them.
func (c *Controller) Logs() <-chan string {
	return c.logCh
}

// Waypoints returns the list being driven.
func (c *Controller) Waypoints() []Waypoint {
	return c.waypoints
}

// Run connects, drives every waypoint, and disconnects. Each waypoint is
// sent, followed by a fixed settle wait and a pose read-back. When ctx is
// cancelled no further waypoint is sent; the pose is queried once, a stop
// is sent, and the session is disconnected. Run then returns ctx.Err().
func (c *Controller) Run(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return errors.New("already running")
	}
	c.running = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}()

	if err := c.session.Connect(ctx); err != nil {
		c.log("Connect failed: %v", err)
		c.sendState(State{Error: err, Timestamp: c.clock.Now(), Done: true})
		return errors.Wrap(err, "connect")
	}
	c.log("Connected, %d waypoints", len(c.waypoints))
	c.logger.Infow("settle is a fixed wait, not a motion-complete signal", "settle", c.cfg.Settle)

	failures := 0
	for iter := 1; c.cfg.Repeat == 0 || iter <= c.cfg.Repeat; iter++ {
		for i, w := range c.waypoints {
			if ctx.Err() != nil {
				return c.interrupt(ctx)
			}
			err := c.step(ctx, iter, i, w)
			if err == nil {
				failures = 0
				continue
			}
			if ctx.Err() != nil {
				return c.interrupt(ctx)
			}
			var se sendError
			if !errors.As(err, &se) || !c.cfg.ContinueOnSendError {
				return c.abort(ctx, err)
			}
			failures++
			if failures >= c.cfg.MaxSendFailures {
				c.log("%d consecutive send failures", failures)
				return c.abort(ctx, err)
			}
			if err := c.sleeper.Sleep(ctx, c.settle(w)); err != nil {
				return c.interrupt(ctx)
			}
		}
	}

	err := c.session.Disconnect()
	c.log("Sequence complete")
	c.sendState(State{Timestamp: c.clock.Now(), Error: err, Done: true})
	return err
}

// sendError marks a step whose command did not reach the arm or gripper.
type sendError struct {
	err error
}

func (e sendError) Error() string { return e.err.Error() }
func (e sendError) Unwrap() error { return e.err }

// step sends one waypoint, waits, and reads the pose back. A failed send is
// returned as a sendError.
func (c *Controller) step(ctx context.Context, iter, i int, w Waypoint) error {
	c.log("[%d/%d] %s (%s)", i+1, len(c.waypoints), w.Name, w.Kind())
	c.logger.Infow("waypoint", "iteration", iter, "index", i, "name", w.Name, "kind", w.Kind())

	var err error
	if w.Grip != nil {
		err = c.grip(ctx, w.Grip)
	} else {
		err = c.session.SendMotion(ctx, c.commands[i])
	}
	if err != nil {
		c.log("Send failed: %v", err)
		c.sendState(State{Iteration: iter, Index: i, Name: w.Name, Error: err, Timestamp: c.clock.Now()})
		return sendError{err: err}
	}

	if err := c.sleeper.Sleep(ctx, c.settle(w)); err != nil {
		return err
	}

	s := State{Iteration: iter, Index: i, Name: w.Name, Timestamp: c.clock.Now()}
	if reading, ok := c.session.QueryPose(ctx); ok {
		s.Pose = &reading.Pose
		s.Source = reading.Source
		s.Timestamp = reading.At
		c.log("Pose %s via %s", formatPose(reading.Pose), reading.Source)
	} else {
		c.log("Pose unknown")
	}
	c.sendState(s)
	return nil
}

func (c *Controller) grip(ctx context.Context, t *GripTarget) error {
	id := c.gripper.ID()
	if t.ID != nil {
		id = *t.ID
	}
	return c.gripper.Grip(ctx, id, t.Width, t.Force)
}

func (c *Controller) settle(w Waypoint) time.Duration {
	if w.Settle != nil {
		return *w.Settle
	}
	return c.cfg.Settle
}

// interrupt queries the pose once, sends one stop and disconnects.
func (c *Controller) interrupt(ctx context.Context) error {
	c.log("Interrupted, stopping arm")
	tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.TeardownTimeout)
	defer cancel()

	s := State{Timestamp: c.clock.Now(), Error: ctx.Err(), Done: true}
	if reading, ok := c.session.QueryPose(tctx); ok {
		s.Pose = &reading.Pose
		s.Source = reading.Source
		c.log("Last pose %s via %s", formatPose(reading.Pose), reading.Source)
	} else {
		c.log("Last pose unknown")
	}
	c.teardown(tctx)
	c.sendState(s)
	return ctx.Err()
}

// abort stops the arm after a failed send; the controller's motion queue
// is in an unknown state.
func (c *Controller) abort(ctx context.Context, cause error) error {
	c.log("Aborting sequence")
	tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.TeardownTimeout)
	defer cancel()
	c.teardown(tctx)
	c.sendState(State{Timestamp: c.clock.Now(), Error: cause, Done: true})
	return errors.Wrap(cause, "send")
}

func (c *Controller) teardown(ctx context.Context) {
	if err := c.session.SendMotion(ctx, c.stopCmd); err != nil {
		c.log("Stop failed: %v", err)
		c.logger.Warnw("stop failed", "error", err)
	} else {
		c.log("Stop sent (decel %g)", c.cfg.StopDeceleration)
	}
	if err := c.session.Disconnect(); err != nil {
		c.logger.Warnw("disconnect failed", "error", err)
	}
	c.log("Disconnected")
}

func (c *Controller) log(format string, args ...any) {
	msg := fmt.Sprintf("[%s] %s", c.clock.Now().Format("15:04:05"), fmt.Sprintf(format, args...))
	select {
	case c.logCh <- msg:
	default:
		// Drop if channel full
	}
}

func (c *Controller) sendState(s State) {
	select {
	case c.stateCh <- s:
	default:
		// Drop old state if channel full, replace with new
		select {
		case <-c.stateCh:
		default:
		}
		c.stateCh <- s
	}
}

func formatPose(p urscript.CartesianPose) string {
	v := p.Values()
	return fmt.Sprintf("[%.4f, %.4f, %.4f, %.4f, %.4f, %.4f]", v[0], v[1], v[2], v[3], v[4], v[5])
}
