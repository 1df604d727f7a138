package connection

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/yndnr/svcreg-go/internal/core/domain"
	"github.com/yndnr/svcreg-go/pkg/resp"
)

// DefaultDialTimeout bounds Connect when ctx has no deadline.
const DefaultDialTimeout = 5 * time.Second

// ErrClosed is returned after Close.
var ErrClosed = errors.New("connection closed")

// ParseTarget splits a server address into network and address.
//
//	unix:///run/svcreg/svcreg.sock, unix:/path, /path -> unix
//	tcp://127.0.0.1:5390, 127.0.0.1:5390           -> tcp
func ParseTarget(target string) (network, addr string) {
	switch {
	case strings.HasPrefix(target, "unix://"):
		return "unix", strings.TrimPrefix(target, "unix://")
	case strings.HasPrefix(target, "unix:"):
		return "unix", strings.TrimPrefix(target, "unix:")
	case strings.HasPrefix(target, "tcp://"):
		return "tcp", strings.TrimPrefix(target, "tcp://")
	case strings.HasPrefix(target, "/"), strings.HasPrefix(target, "."):
		return "unix", target
	default:
		return "tcp", target
	}
}

// SocketClient is a RESP client for the registry socket. It is not safe
// for concurrent use.
type SocketClient struct {
	network string
	addr    string

	conn   net.Conn
	br     *bufio.Reader
	bw     *bufio.Writer
	pushes []resp.Value
	closed bool
}

// NewSocketClient creates a new socket client for target (see ParseTarget).
func NewSocketClient(target string) *SocketClient {
	network, addr := ParseTarget(target)
	return &SocketClient{network: network, addr: addr}
}

// Target returns the dialed address in ParseTarget form.
func (c *SocketClient) Target() string {
	return c.network + "://" + c.addr
}

// Connect dials the registry.
func (c *SocketClient) Connect(ctx context.Context) error {
	if c.closed {
		return ErrClosed
	}
	if c.conn != nil {
		return nil
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultDialTimeout)
		defer cancel()
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, c.network, c.addr)
	if err != nil {
		return fmt.Errorf("connect %s: %w", c.Target(), err)
	}
	c.conn = conn
	c.br = bufio.NewReader(conn)
	c.bw = bufio.NewWriter(conn)
	return nil
}

// Close closes the socket connection.
func (c *SocketClient) Close() error {
	c.closed = true
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// Do sends one command and returns its reply. Push frames read while
// waiting are queued for NextPush. An error reply carrying a registry
// code comes back as a *domain.DomainError wrapping the *resp.ServerError,
// so both errors.Is against the domain errors and errors.As to the raw
// line work.
func (c *SocketClient) Do(ctx context.Context, args ...string) (resp.Value, error) {
	if err := c.Connect(ctx); err != nil {
		return resp.Value{}, err
	}
	stop := c.bind(ctx)
	defer stop()

	if err := resp.WriteCommand(c.bw, args...); err != nil {
		return resp.Value{}, c.fail(ctx, err)
	}
	if err := c.bw.Flush(); err != nil {
		return resp.Value{}, c.fail(ctx, err)
	}

	for {
		v, err := resp.ReadValue(c.br)
		if err != nil {
			return resp.Value{}, c.fail(ctx, err)
		}
		if v.IsPush() {
			c.pushes = append(c.pushes, v)
			continue
		}
		if err := v.Err(); err != nil {
			return v, wireError(err)
		}
		return v, nil
	}
}

// NextPush returns the next push frame, waiting until ctx is done.
func (c *SocketClient) NextPush(ctx context.Context) (resp.Value, error) {
	if len(c.pushes) > 0 {
		v := c.pushes[0]
		c.pushes = c.pushes[1:]
		return v, nil
	}
	if err := c.Connect(ctx); err != nil {
		return resp.Value{}, err
	}
	stop := c.bind(ctx)
	defer stop()

	for {
		v, err := resp.ReadValue(c.br)
		if err != nil {
			return resp.Value{}, c.fail(ctx, err)
		}
		if v.IsPush() {
			return v, nil
		}
	}
}

// bind applies ctx's deadline to the connection and interrupts blocked
// I/O when ctx is cancelled. The returned func undoes both.
func (c *SocketClient) bind(ctx context.Context) func() {
	conn := c.conn
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	return func() {
		stop()
		_ = conn.SetDeadline(time.Time{})
	}
}

// fail drops the connection after an I/O error so the next call
// redials, and reports ctx's error in place of the timeout it caused.
func (c *SocketClient) fail(ctx context.Context, err error) error {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.pushes = nil
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

func wireError(err error) error {
	var se *resp.ServerError
	if !errors.As(err, &se) {
		return err
	}
	if de, ok := domain.ParseWireError(se.Msg); ok {
		return de.WithCause(se)
	}
	return err
}
