package robot

import (
	"context"
	"strings"
	"time"

	"go.uber.org/multierr"

	"github.com/gwillem/urmotion/pkg/faults"
	"github.com/gwillem/urmotion/pkg/transport"
	"github.com/gwillem/urmotion/pkg/urscript"
)

// Dashboard is a client for the line-oriented dashboard server. Each
// command uses its own connection.
type Dashboard struct {
	host        string
	port        int
	dialer      transport.Dialer
	readTimeout time.Duration
}

// NewDashboard returns a dashboard client for the arm described by cfg.
func NewDashboard(cfg ArmConfig) *Dashboard {
	return &Dashboard{
		host:        cfg.Host,
		port:        cfg.DashboardPort,
		dialer:      transport.Dialer{Timeout: time.Duration(cfg.DialTimeout)},
		readTimeout: time.Duration(cfg.ReadTimeout),
	}
}

// Command sends one command line and returns the reply line. The greeting
// the server sends on connect is discarded.
func (d *Dashboard) Command(ctx context.Context, cmd string) (reply string, err error) {
	conn, err := d.dialer.Open(ctx, d.host, d.port)
	if err != nil {
		return "", err
	}
	defer multierr.AppendInvoke(&err, multierr.Close(conn))

	if _, err := conn.ReadLine(d.readTimeout); err != nil {
		return "", err
	}
	if err := conn.SendString(ctx, strings.TrimRight(cmd, "\n")+"\n"); err != nil {
		return "", err
	}
	return conn.ReadLine(d.readTimeout)
}

// ActualTCPPose asks the dashboard for the TCP pose.
func (d *Dashboard) ActualTCPPose(ctx context.Context) (urscript.CartesianPose, error) {
	reply, err := d.Command(ctx, "get actual_tcp_pose")
	if err != nil {
		return urscript.CartesianPose{}, err
	}
	return urscript.ParsePose(reply)
}

// IsInRemoteControl reports whether the controller accepts commands from
// the network. In local mode script commands are ignored.
func (d *Dashboard) IsInRemoteControl(ctx context.Context) (bool, error) {
	reply, err := d.Command(ctx, "is in remote control")
	if err != nil {
		return false, err
	}
	switch strings.TrimSpace(strings.ToLower(reply)) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	return false, faults.Newf(faults.ErrParse, "is in remote control", "unexpected reply %q", reply)
}
