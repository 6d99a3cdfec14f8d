package gripper

import (
	"context"
	"encoding/xml"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap/zaptest"
	"go.viam.com/test"

	"github.com/gwillem/urmotion/pkg/faults"
)

type xmlValue struct {
	Int    string `xml:"int"`
	I4     string `xml:"i4"`
	Double string `xml:"double"`
}

type methodCall struct {
	MethodName string     `xml:"methodName"`
	Params     []xmlValue `xml:"params>param>value"`
}

// call is a decoded request as seen by the fake gripper service.
type call struct {
	method string
	ints   []int
	floats []float64
}

type fakeService struct {
	mu    sync.Mutex
	calls []call
	reply string
}

func (f *fakeService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	var mc methodCall
	if err := xml.Unmarshal(body, &mc); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	c := call{method: mc.MethodName}
	for _, p := range mc.Params {
		switch {
		case p.Int != "" || p.I4 != "":
			n, _ := strconv.Atoi(strings.TrimSpace(p.Int + p.I4))
			c.ints = append(c.ints, n)
		case p.Double != "":
			v, _ := strconv.ParseFloat(strings.TrimSpace(p.Double), 64)
			c.floats = append(c.floats, v)
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, c)
	reply := f.reply
	f.mu.Unlock()

	w.Header().Set("Content-Type", "text/xml")
	io.WriteString(w, reply)
}

func (f *fakeService) recorded() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

func response(value string) string {
	return `<?xml version="1.0"?><methodResponse><params><param><value>` + value +
		`</value></param></params></methodResponse>`
}

func newGripper(t *testing.T, svc http.Handler, id int) *Gripper {
	t.Helper()
	srv := httptest.NewServer(svc)
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	test.That(t, err, test.ShouldBeNil)
	host, portStr, err := net.SplitHostPort(u.Host)
	test.That(t, err, test.ShouldBeNil)
	port, err := strconv.Atoi(portStr)
	test.That(t, err, test.ShouldBeNil)

	cfg := DefaultConfig(host)
	cfg.Port = port
	cfg.ID = id
	g, err := New(cfg, WithLogger(zaptest.NewLogger(t).Sugar()))
	test.That(t, err, test.ShouldBeNil)
	return g
}

func TestWidth(t *testing.T) {
	svc := &fakeService{reply: response("<double>42.5</double>")}
	g := newGripper(t, svc, 1)

	width, err := g.Width(context.Background(), g.ID())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, width, test.ShouldEqual, 42.5)

	calls := svc.recorded()
	test.That(t, len(calls), test.ShouldEqual, 1)
	test.That(t, calls[0].method, test.ShouldEqual, "rg_get_width")
	test.That(t, calls[0].ints, test.ShouldResemble, []int{1})
}

func TestWidthIntegerReply(t *testing.T) {
	g := newGripper(t, &fakeService{reply: response("<int>80</int>")}, 0)
	width, err := g.Width(context.Background(), 0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, width, test.ShouldEqual, 80.0)
}

func TestGripClampsOnTheWire(t *testing.T) {
	tests := []struct {
		width, force         float64
		wantWidth, wantForce float64
	}{
		{150, -5, 100, 0},
		{50, 40, 50, 40},
		{-1, 41, 0, 40},
		{10, 10, 10, 10},
	}

	for _, tt := range tests {
		svc := &fakeService{reply: response("<int>0</int>")}
		g := newGripper(t, svc, 0)

		test.That(t, g.Grip(context.Background(), 0, tt.width, tt.force), test.ShouldBeNil)

		calls := svc.recorded()
		test.That(t, len(calls), test.ShouldEqual, 1)
		test.That(t, calls[0].method, test.ShouldEqual, "rg_grip")
		test.That(t, calls[0].ints, test.ShouldResemble, []int{0})
		test.That(t, calls[0].floats, test.ShouldResemble, []float64{tt.wantWidth, tt.wantForce})
	}
}

func TestFaultIsRPCError(t *testing.T) {
	fault := `<?xml version="1.0"?><methodResponse><fault><value><struct>` +
		`<member><name>faultCode</name><value><int>4</int></value></member>` +
		`<member><name>faultString</name><value><string>Too many parameters.</string></value></member>` +
		`</struct></value></fault></methodResponse>`
	g := newGripper(t, &fakeService{reply: fault}, 0)

	_, err := g.Width(context.Background(), 0)
	test.That(t, errors.Is(err, faults.ErrRPC), test.ShouldBeTrue)
}

func TestMalformedReplyIsRPCError(t *testing.T) {
	g := newGripper(t, &fakeService{reply: "not xml at all"}, 0)
	_, err := g.Width(context.Background(), 0)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, faults.KindOf(err), test.ShouldEqual, faults.ErrRPC)
}

func TestConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	test.That(t, err, test.ShouldBeNil)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	cfg := DefaultConfig("127.0.0.1")
	cfg.Port = port
	g, err := New(cfg)
	test.That(t, err, test.ShouldBeNil)

	err = g.Grip(context.Background(), 0, 50, 10)
	test.That(t, errors.Is(err, faults.ErrConnection), test.ShouldBeTrue)
}

func TestPerCallID(t *testing.T) {
	svc := &fakeService{reply: response("<int>0</int>")}
	g := newGripper(t, svc, 0)

	test.That(t, g.Grip(context.Background(), 1, 50, 20), test.ShouldBeNil)
	_, err := g.Width(context.Background(), 2)
	test.That(t, err, test.ShouldBeNil)

	calls := svc.recorded()
	test.That(t, len(calls), test.ShouldEqual, 2)
	test.That(t, calls[0].ints, test.ShouldResemble, []int{1})
	test.That(t, calls[1].ints, test.ShouldResemble, []int{2})

	err = g.Grip(context.Background(), -1, 50, 20)
	test.That(t, faults.KindOf(err), test.ShouldEqual, faults.ErrInvalid)
	_, err = g.Width(context.Background(), -1)
	test.That(t, faults.KindOf(err), test.ShouldEqual, faults.ErrInvalid)
	test.That(t, len(svc.recorded()), test.ShouldEqual, 2)
}

// stalledService never answers; it records that the request was abandoned.
type stalledService struct {
	abandoned chan struct{}
}

func (s *stalledService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	<-r.Context().Done()
	close(s.abandoned)
}

func TestCancelAbortsRequest(t *testing.T) {
	svc := &stalledService{abandoned: make(chan struct{})}
	g := newGripper(t, svc, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	err := g.Grip(ctx, 0, 50, 10)
	test.That(t, faults.KindOf(err), test.ShouldEqual, faults.ErrTimeout)
	test.That(t, time.Since(start), test.ShouldBeLessThan, 2*time.Second)

	select {
	case <-svc.abandoned:
	case <-time.After(2 * time.Second):
		t.Fatal("request still open after the call returned")
	}
}

func TestCallTimeout(t *testing.T) {
	svc := &stalledService{abandoned: make(chan struct{})}
	g := newGripper(t, svc, 0)
	g.timeout = 100 * time.Millisecond

	_, err := g.Width(context.Background(), 0)
	test.That(t, faults.KindOf(err), test.ShouldEqual, faults.ErrTimeout)
	<-svc.abandoned
}

func TestConfigValidate(t *testing.T) {
	test.That(t, DefaultConfig("10.1.63.10").Validate(), test.ShouldBeNil)
	test.That(t, DefaultConfig("").Validate(), test.ShouldNotBeNil)

	cfg := DefaultConfig("10.1.63.10")
	cfg.ID = -1
	test.That(t, cfg.Validate(), test.ShouldNotBeNil)
}

func TestClampTarget(t *testing.T) {
	w, f := ClampTarget(150, -5)
	test.That(t, w, test.ShouldEqual, 100.0)
	test.That(t, f, test.ShouldEqual, 0.0)
}
