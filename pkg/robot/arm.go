package robot

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/gwillem/urmotion/pkg/fallback"
	"github.com/gwillem/urmotion/pkg/faults"
	"github.com/gwillem/urmotion/pkg/transport"
	"github.com/gwillem/urmotion/pkg/urscript"
)

// PoseReading is a TCP pose and the channel it was read from.
type PoseReading struct {
	Pose   urscript.CartesianPose
	Source string
	At     time.Time
}

// Arm is a session with a UR controller's script port. It is
// Disconnected until Connect succeeds and never reconnects on its own.
type Arm struct {
	cfg       ArmConfig
	layout    FrameLayout
	dialer    transport.Dialer
	dashboard *Dashboard
	conn      *transport.Conn
	sources   []PoseSource
	logger    *zap.SugaredLogger
	clock     clock.Clock
}

// Option configures an Arm.
type Option func(*Arm)

// WithLogger sets the logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(a *Arm) { a.logger = l }
}

// WithClock sets the clock used for reply delays and timestamps.
func WithClock(c clock.Clock) Option {
	return func(a *Arm) { a.clock = c }
}

// WithPoseSources replaces the pose read-back chain.
func WithPoseSources(sources ...PoseSource) Option {
	return func(a *Arm) { a.sources = sources }
}

// NewArm creates a disconnected arm session.
func NewArm(cfg ArmConfig, opts ...Option) (*Arm, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	layout, err := cfg.FrameLayout()
	if err != nil {
		return nil, err
	}

	a := &Arm{
		cfg:       cfg,
		layout:    layout,
		dialer:    transport.Dialer{Timeout: time.Duration(cfg.DialTimeout)},
		dashboard: NewDashboard(cfg),
		logger:    zap.NewNop().Sugar(),
		clock:     clock.New(),
	}
	a.sources = []PoseSource{
		&RealtimeSource{arm: a},
		&ScriptSource{arm: a},
		&DashboardSource{arm: a},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Host returns the controller address.
func (a *Arm) Host() string {
	return a.cfg.Host
}

// Dashboard returns the dashboard client for this arm.
func (a *Arm) Dashboard() *Dashboard {
	return a.dashboard
}

// Connected reports whether the script connection is open.
func (a *Arm) Connected() bool {
	return a.conn != nil
}

// Connect opens the script connection. Connecting twice is a no-op.
func (a *Arm) Connect(ctx context.Context) error {
	if a.conn != nil {
		return nil
	}
	conn, err := a.dialer.Open(ctx, a.cfg.Host, a.cfg.ScriptPort)
	if err != nil {
		a.logger.Errorw("connect failed", "host", a.cfg.Host, "port", a.cfg.ScriptPort, "error", err)
		return err
	}
	a.conn = conn
	a.logger.Infow("connected", "addr", conn.Addr())
	return nil
}

// Disconnect closes the script connection. It is safe to call when
// already disconnected.
func (a *Arm) Disconnect() error {
	if a.conn == nil {
		return nil
	}
	addr := a.conn.Addr()
	err := a.conn.Close()
	a.conn = nil
	a.logger.Infow("disconnected", "addr", addr)
	return err
}

// SendMotion transmits cmd as-is on the script connection.
func (a *Arm) SendMotion(ctx context.Context, cmd string) error {
	if a.conn == nil {
		return faults.New(faults.ErrNotConnected, "send motion", nil)
	}
	if err := a.conn.SendString(ctx, cmd); err != nil {
		a.logger.Errorw("send failed", "error", err)
		return err
	}
	a.logger.Debugw("sent", "command", cmd)
	return nil
}

// MoveJoints encodes and sends a joint-space move. Angles are in degrees.
func (a *Arm) MoveJoints(ctx context.Context, joints urscript.JointConfiguration, params urscript.MotionParameters) error {
	cmd, err := urscript.EncodeJointMove(joints, params.A, params.V)
	if err != nil {
		return err
	}
	return a.SendMotion(ctx, cmd)
}

// MovePose encodes and sends a move to a Cartesian pose.
func (a *Arm) MovePose(ctx context.Context, pose urscript.CartesianPose, params urscript.MotionParameters, linear bool) error {
	cmd, err := urscript.EncodePoseMove(pose, params, linear)
	if err != nil {
		return err
	}
	return a.SendMotion(ctx, cmd)
}

// Stop sends a joint-space stop with the given deceleration.
func (a *Arm) Stop(ctx context.Context, deceleration float64) error {
	cmd, err := urscript.EncodeStop(deceleration)
	if err != nil {
		return err
	}
	return a.SendMotion(ctx, cmd)
}

// QueryPose reads the TCP pose, trying each pose source in order. It
// returns false when no source produced a pose; the pose is then unknown,
// not zero.
func (a *Arm) QueryPose(ctx context.Context) (PoseReading, bool) {
	if a.conn == nil {
		a.logger.Warnw("pose query while disconnected")
		return PoseReading{}, false
	}

	strategies := make([]fallback.Strategy[urscript.CartesianPose], len(a.sources))
	for i, src := range a.sources {
		strategies[i] = fallback.Strategy[urscript.CartesianPose]{Name: src.Name(), Run: src.ReadPose}
	}

	pose, source, err := fallback.First(ctx, strategies...)
	if err != nil {
		a.logger.Warnw("pose unknown", "error", err)
		return PoseReading{}, false
	}
	a.logger.Debugw("pose", "source", source, "pose", pose.Values())
	return PoseReading{Pose: pose, Source: source, At: a.clock.Now()}, true
}

// sleep waits for d or until ctx is done.
func (a *Arm) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := a.clock.Timer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
