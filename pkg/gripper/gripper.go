// Package gripper drives OnRobot RG2/RG6 grippers through the XML-RPC
// service exposed on the arm controller.
package gripper

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/kolo/xmlrpc"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/gwillem/urmotion/pkg/faults"
)

// DefaultPort is the XML-RPC port of the gripper service.
const DefaultPort = 41414

// Target limits. The service forwards values to the hardware unchecked.
const (
	MaxWidth = 100.0 // millimeters
	MaxForce = 40.0  // newtons

	DefaultForce = 10.0
)

// Config identifies the gripper service and the gripper on it.
type Config struct {
	Host           string  `toml:"host"`
	Port           int     `toml:"port"`
	ID             int     `toml:"id"`
	TimeoutSeconds float64 `toml:"timeout_seconds"`
}

// DefaultConfig returns the standard port for host with gripper id 0.
func DefaultConfig(host string) Config {
	return Config{
		Host:           host,
		Port:           DefaultPort,
		TimeoutSeconds: 3,
	}
}

// Validate checks the gripper section.
func (c Config) Validate() error {
	if c.Host == "" {
		return errors.New("gripper.host must not be empty")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return errors.Errorf("gripper.port must be between 1 and 65535, got %d", c.Port)
	}
	if c.ID < 0 {
		return errors.Errorf("gripper.id must be >= 0, got %d", c.ID)
	}
	if c.TimeoutSeconds <= 0 {
		return errors.New("gripper.timeout_seconds must be > 0")
	}
	return nil
}

// ClampTarget limits width to [0, MaxWidth] and force to [0, MaxForce].
func ClampTarget(width, force float64) (float64, float64) {
	return lo.Clamp(width, 0, MaxWidth), lo.Clamp(force, 0, MaxForce)
}

// Gripper is a session with one gripper. Every call uses a fresh HTTP
// connection.
type Gripper struct {
	cfg     Config
	url     string
	timeout time.Duration
	logger  *zap.SugaredLogger
}

// Option configures a Gripper.
type Option func(*Gripper)

// WithLogger sets the logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(g *Gripper) { g.logger = l }
}

// New creates a gripper session.
func New(cfg Config, opts ...Option) (*Gripper, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	g := &Gripper{
		cfg:     cfg,
		url:     "http://" + net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		timeout: time.Duration(cfg.TimeoutSeconds * float64(time.Second)),
		logger:  zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// ID returns the gripper index from the config, used when a caller has no
// index of its own.
func (g *Gripper) ID() int {
	return g.cfg.ID
}

func checkID(method string, id int) error {
	if id < 0 {
		return faults.Newf(faults.ErrInvalid, method, "gripper id must be >= 0, got %d", id)
	}
	return nil
}

// Width returns the current opening reported by gripper id.
func (g *Gripper) Width(ctx context.Context, id int) (float64, error) {
	if err := checkID("rg_get_width", id); err != nil {
		return 0, err
	}
	var reply interface{}
	if err := g.call(ctx, "rg_get_width", []interface{}{id}, &reply); err != nil {
		return 0, err
	}

	switch v := reply.(type) {
	case float64:
		return v, nil
	case int64:
		return float64(v), nil
	case int:
		return float64(v), nil
	default:
		return 0, faults.Newf(faults.ErrRPC, "rg_get_width", "unexpected return value %T(%v)", reply, reply)
	}
}

// Grip commands gripper id to width (millimeters) with force (newtons).
// Both targets are clamped to their limits before they are sent.
func (g *Gripper) Grip(ctx context.Context, id int, width, force float64) error {
	if err := checkID("rg_grip", id); err != nil {
		return err
	}
	cw, cf := ClampTarget(width, force)
	if cw != width || cf != force {
		g.logger.Warnw("gripper target clamped",
			"width", width, "clamped_width", cw, "force", force, "clamped_force", cf)
	}

	var reply interface{}
	if err := g.call(ctx, "rg_grip", []interface{}{id, cw, cf}, &reply); err != nil {
		return err
	}
	g.logger.Debugw("rg_grip", "id", id, "width", cw, "force", cf, "reply", reply)
	return nil
}

// requestContext attaches ctx to every request so that cancelling ctx aborts
// the exchange in flight, including the read of the reply body.
type requestContext struct {
	ctx  context.Context
	base http.RoundTripper
}

func (r requestContext) RoundTrip(req *http.Request) (*http.Response, error) {
	return r.base.RoundTrip(req.WithContext(r.ctx))
}

// call runs one XML-RPC exchange bounded by the configured timeout. It
// returns only after the exchange has finished, so the client is never closed
// under a running call.
func (g *Gripper) call(ctx context.Context, method string, args []interface{}, reply interface{}) error {
	op := fmt.Sprintf("%s %s", method, g.url)
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	tr := &http.Transport{
		DialContext:           (&net.Dialer{Timeout: g.timeout}).DialContext,
		DisableKeepAlives:     true,
		ResponseHeaderTimeout: g.timeout,
	}
	defer tr.CloseIdleConnections()
	client, err := xmlrpc.NewClient(g.url, requestContext{ctx: ctx, base: tr})
	if err != nil {
		return faults.New(faults.ErrRPC, op, err)
	}
	defer client.Close()

	err = client.Call(method, args, reply)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return faults.New(faults.ErrTimeout, op, ctx.Err())
	}
	var ne net.Error
	if errors.As(err, &ne) {
		if ne.Timeout() {
			return faults.New(faults.ErrTimeout, op, err)
		}
		return faults.New(faults.ErrConnection, op, err)
	}
	return faults.New(faults.ErrRPC, op, err)
}
