package rpcserver

import (
	"bufio"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/yndnr/svcreg-go/internal/core/domain"
	"github.com/yndnr/svcreg-go/internal/core/service"
	"github.com/yndnr/svcreg-go/pkg/resp"
)

// Conn is one client connection, standing in for one process.
type Conn struct {
	id      string
	netConn net.Conn
	br      *bufio.Reader

	// wmu serializes replies and pushes on bw.
	wmu sync.Mutex
	bw  *bufio.Writer

	pid     int
	label   string
	pseudo  bool
	limiter *rate.Limiter

	notifyTimeout time.Duration

	// objects is only touched by the connection's own goroutine.
	objects map[domain.Handle]struct{}
	quit    bool

	closed atomic.Bool
}

func newConn(c net.Conn, id string) *Conn {
	return &Conn{
		id:      id,
		netConn: c,
		br:      bufio.NewReader(c),
		bw:      bufio.NewWriter(c),
		objects: make(map[domain.Handle]struct{}),
	}
}

// ID returns the connection's ULID.
func (c *Conn) ID() string {
	return c.id
}

// Caller returns the registry identity of the connection.
func (c *Conn) Caller() service.Caller {
	return service.Caller{PID: c.pid, Label: c.label}
}

// Close closes the underlying connection. It is safe to call more than once.
func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.netConn.Close()
}

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.netConn.RemoteAddr()
}

// Push implements Sink. A push that cannot be written within the notify
// timeout closes the connection, since a partial frame leaves the stream
// unusable.
func (c *Conn) Push(sink domain.Handle, reg domain.Registration) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	if c.closed.Load() {
		return net.ErrClosed
	}

	preexisting := "0"
	if reg.Preexisting {
		preexisting = "1"
	}

	err := c.netConn.SetWriteDeadline(time.Now().Add(c.notifyTimeout))
	if err == nil {
		err = resp.WritePush(c.bw, "registration", sink.String(), reg.FQName, reg.Instance, preexisting)
	}
	if err == nil {
		err = c.bw.Flush()
	}
	if err != nil {
		_ = c.Close()
	}
	return err
}

func (c *Conn) writeReply(r reply, timeout time.Duration) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	if err := c.netConn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	if err := r(c.bw); err != nil {
		return err
	}
	return c.bw.Flush()
}

func (c *Conn) own(h domain.Handle) {
	c.objects[h] = struct{}{}
}

func (c *Conn) owns(h domain.Handle) bool {
	_, ok := c.objects[h]
	return ok
}

func (c *Conn) disown(h domain.Handle) {
	delete(c.objects, h)
}
