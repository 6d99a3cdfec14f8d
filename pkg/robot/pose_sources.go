package robot

import (
	"context"
	"time"

	"go.uber.org/multierr"

	"github.com/gwillem/urmotion/pkg/faults"
	"github.com/gwillem/urmotion/pkg/urscript"
)

// PoseSource is one way of reading the TCP pose back from the controller.
type PoseSource interface {
	Name() string
	ReadPose(ctx context.Context) (urscript.CartesianPose, error)
}

// RealtimeSource reads one binary frame from the real-time interface.
type RealtimeSource struct {
	arm *Arm
}

func (s *RealtimeSource) Name() string { return "realtime" }

func (s *RealtimeSource) ReadPose(ctx context.Context) (pose urscript.CartesianPose, err error) {
	a := s.arm
	conn, err := a.dialer.Open(ctx, a.cfg.Host, a.cfg.RealtimePort)
	if err != nil {
		return urscript.CartesianPose{}, err
	}
	defer multierr.AppendInvoke(&err, multierr.Close(conn))

	frame, rerr := conn.ReceiveAtLeast(a.layout.Size, time.Duration(a.cfg.ReadTimeout))
	if rerr != nil && len(frame) < a.layout.MinLength() {
		return urscript.CartesianPose{}, rerr
	}
	return a.layout.Decode(frame)
}

// ScriptSource asks the script interpreter on the open script connection.
type ScriptSource struct {
	arm *Arm
}

func (s *ScriptSource) Name() string { return "script" }

func (s *ScriptSource) ReadPose(ctx context.Context) (urscript.CartesianPose, error) {
	a := s.arm
	if a.conn == nil {
		return urscript.CartesianPose{}, faults.New(faults.ErrNotConnected, "script pose", nil)
	}
	if err := a.conn.SendString(ctx, urscript.GetActualTCPPose); err != nil {
		return urscript.CartesianPose{}, err
	}
	if err := a.sleep(ctx, time.Duration(a.cfg.ScriptReplyDelay)); err != nil {
		return urscript.CartesianPose{}, err
	}
	reply, err := a.conn.Receive(a.cfg.ReplySize, time.Duration(a.cfg.ReadTimeout))
	if err != nil {
		return urscript.CartesianPose{}, err
	}
	return urscript.ParsePose(string(reply))
}

// DashboardSource asks the dashboard server over a fresh connection.
type DashboardSource struct {
	arm *Arm
}

func (s *DashboardSource) Name() string { return "dashboard" }

func (s *DashboardSource) ReadPose(ctx context.Context) (urscript.CartesianPose, error) {
	return s.arm.dashboard.ActualTCPPose(ctx)
}
