// Package transport provides the TCP connection primitive used by the arm
// and dashboard clients.
package transport

import (
	"bufio"
	"context"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/gwillem/urmotion/pkg/faults"
)

// DefaultDialTimeout bounds the TCP handshake when the caller's context has no deadline.
const DefaultDialTimeout = 2 * time.Second

// Dialer opens connections to a host/port endpoint.
type Dialer struct {
	Timeout time.Duration
}

// Open establishes a TCP connection to host:port.
func (d Dialer) Open(ctx context.Context, host string, port int) (*Conn, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	timeout := d.Timeout
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}
	nd := net.Dialer{Timeout: timeout}
	c, err := nd.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, faults.New(faults.ErrConnection, "open "+addr, err)
	}
	return &Conn{conn: c, addr: addr}, nil
}

// Conn is a single TCP connection. It is owned by one session and is not
// safe for concurrent use.
type Conn struct {
	conn   net.Conn
	addr   string
	reader *bufio.Reader
}

// Addr returns the remote host:port.
func (c *Conn) Addr() string {
	return c.addr
}

// Send writes b in full. The write deadline follows ctx's deadline.
func (c *Conn) Send(ctx context.Context, b []byte) error {
	if c == nil || c.conn == nil {
		return faults.New(faults.ErrNotConnected, "send", nil)
	}
	if err := ctx.Err(); err != nil {
		return faults.New(faults.ErrSend, "send "+c.addr, err)
	}

	deadline, _ := ctx.Deadline()
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return faults.New(faults.ErrSend, "send "+c.addr, err)
	}
	if _, err := c.conn.Write(b); err != nil {
		if isTimeout(err) {
			return faults.New(faults.ErrTimeout, "send "+c.addr, err)
		}
		return faults.New(faults.ErrSend, "send "+c.addr, err)
	}
	return nil
}

// SendString is Send for text commands.
func (c *Conn) SendString(ctx context.Context, s string) error {
	return c.Send(ctx, []byte(s))
}

// Receive performs a single read of at most maxBytes, waiting up to timeout.
func (c *Conn) Receive(maxBytes int, timeout time.Duration) ([]byte, error) {
	if c == nil || c.conn == nil {
		return nil, faults.New(faults.ErrNotConnected, "receive", nil)
	}
	if err := c.setReadDeadline(timeout); err != nil {
		return nil, err
	}

	buf := make([]byte, maxBytes)
	n, err := c.source().Read(buf)
	if err != nil && n == 0 {
		return nil, c.readError(err)
	}
	return buf[:n], nil
}

// ReceiveAtLeast reads until n bytes have arrived or the timeout expires.
// On a short read the bytes received so far are returned with the error.
func (c *Conn) ReceiveAtLeast(n int, timeout time.Duration) ([]byte, error) {
	if c == nil || c.conn == nil {
		return nil, faults.New(faults.ErrNotConnected, "receive", nil)
	}
	if err := c.setReadDeadline(timeout); err != nil {
		return nil, err
	}

	buf := make([]byte, n)
	got, err := io.ReadFull(c.source(), buf)
	if err != nil {
		return buf[:got], c.readError(err)
	}
	return buf, nil
}

// ReadLine returns the next newline-terminated line without its terminator.
func (c *Conn) ReadLine(timeout time.Duration) (string, error) {
	if c == nil || c.conn == nil {
		return "", faults.New(faults.ErrNotConnected, "read line", nil)
	}
	if err := c.setReadDeadline(timeout); err != nil {
		return "", err
	}
	if c.reader == nil {
		c.reader = bufio.NewReader(c.conn)
	}

	line, err := c.reader.ReadString('\n')
	if err != nil && line == "" {
		return "", c.readError(err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Close releases the connection. Closing twice is not an error.
func (c *Conn) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.reader = nil
	if err != nil && !errors.Is(err, net.ErrClosed) {
		return errors.Wrapf(err, "close %s", c.addr)
	}
	return nil
}

// source keeps bytes already buffered by ReadLine visible to the raw readers.
func (c *Conn) source() io.Reader {
	if c.reader != nil {
		return c.reader
	}
	return c.conn
}

func (c *Conn) setReadDeadline(timeout time.Duration) error {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return faults.New(faults.ErrConnection, "receive "+c.addr, err)
	}
	return nil
}

func (c *Conn) readError(err error) error {
	if isTimeout(err) {
		return faults.New(faults.ErrTimeout, "receive "+c.addr, err)
	}
	return faults.New(faults.ErrConnection, "receive "+c.addr, err)
}

func isTimeout(err error) bool {
	if os.IsTimeout(err) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
