package rpcserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/time/rate"

	"github.com/yndnr/svcreg-go/internal/core/domain"
	"github.com/yndnr/svcreg-go/internal/core/service"
	"github.com/yndnr/svcreg-go/internal/infra/identity"
	"github.com/yndnr/svcreg-go/pkg/cmap"
	"github.com/yndnr/svcreg-go/pkg/resp"
)

// pseudoPIDBase lies above the largest pid Linux hands out. Connections
// without peer credentials get pids from here on.
const pseudoPIDBase = 1 << 22

// Config holds the RPC server configuration.
type Config struct {
	// SocketPath is the unix socket to listen on. Empty disables it.
	SocketPath string
	SocketMode fs.FileMode

	// TCPAddr enables the development TCP listener when set. TCP peers
	// all get TCPLabel.
	TCPAddr  string
	TCPLabel string

	// NotifyTimeout bounds the write of one push frame.
	NotifyTimeout time.Duration
	// ReadTimeout bounds reading a command once its first byte arrived.
	ReadTimeout time.Duration
	// WriteTimeout bounds writing a reply.
	WriteTimeout time.Duration
	// IdleTimeout closes connections idle this long. Zero means never;
	// registered services are expected to stay connected.
	IdleTimeout time.Duration
	// CommandTimeout bounds the wait for the registry loop.
	CommandTimeout time.Duration

	// Rate and Burst limit commands per connection. Rate 0 disables.
	Rate  float64
	Burst int

	// MaxConnections caps concurrent connections. Zero means no cap.
	MaxConnections int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		SocketMode:     0o666,
		NotifyTimeout:  500 * time.Millisecond,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		CommandTimeout: 5 * time.Second,
		Rate:           200,
		Burst:          400,
		MaxConnections: 1024,
	}
}

// Metrics receives transport counters.
type Metrics interface {
	RecordCommand(cmd string, seconds float64)
	ConnOpened()
	ConnClosed()
}

type nopMetrics struct{}

func (nopMetrics) RecordCommand(string, float64) {}
func (nopMetrics) ConnOpened()                   {}
func (nopMetrics) ConnClosed()                   {}

// Deps holds the collaborators of Server.
type Deps struct {
	Dispatcher *service.Dispatcher
	Nodes      *NodeTable

	// Identity resolves the label of a connecting pid.
	Identity service.IdentityResolver

	// PseudoPIDs receives the labels of connections without peer
	// credentials. Identity must consult it.
	PseudoPIDs *identity.StaticResolver

	// Metrics is optional.
	Metrics Metrics
}

// Server is the registry's RPC server.
type Server struct {
	cfg      *Config
	nodes    *NodeTable
	identity service.IdentityResolver
	pseudo   *identity.StaticResolver
	metrics  Metrics
	handler  *CommandHandler
	logger   *slog.Logger

	conns     *cmap.Map[*Conn]
	nextPID   atomic.Int64
	mu        sync.Mutex
	listeners []net.Listener
	running   atomic.Bool
	wg        sync.WaitGroup
}

// New creates a server.
func New(cfg *Config, deps Deps, logger *slog.Logger) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = nopMetrics{}
	}
	pseudo := deps.PseudoPIDs
	if pseudo == nil {
		pseudo = identity.NewStaticResolver("")
	}

	return &Server{
		cfg:      cfg,
		nodes:    deps.Nodes,
		identity: deps.Identity,
		pseudo:   pseudo,
		metrics:  metrics,
		handler:  NewCommandHandler(deps.Dispatcher, deps.Nodes, cfg.CommandTimeout, logger),
		logger:   logger,
		conns:    cmap.New[*Conn](),
	}
}

// Start opens the listeners and serves them in the background.
func (s *Server) Start(ctx context.Context) error {
	if s.cfg.SocketPath == "" && s.cfg.TCPAddr == "" {
		return errors.New("rpcserver: no listener configured")
	}
	s.running.Store(true)

	if s.cfg.SocketPath != "" {
		ln, err := listenUnix(s.cfg.SocketPath, s.cfg.SocketMode)
		if err != nil {
			return err
		}
		s.serve(ctx, ln)
		s.logger.Info("rpc server listening", "network", "unix", "path", s.cfg.SocketPath)
	}

	if s.cfg.TCPAddr != "" {
		ln, err := net.Listen("tcp", s.cfg.TCPAddr)
		if err != nil {
			_ = s.closeListeners()
			return fmt.Errorf("listen tcp %s: %w", s.cfg.TCPAddr, err)
		}
		s.serve(ctx, ln)
		s.logger.Warn("rpc server listening on tcp; peers are not authenticated", "address", ln.Addr().String())
	}
	return nil
}

func listenUnix(path string, mode fs.FileMode) (net.Listener, error) {
	if fi, err := os.Lstat(path); err == nil {
		if fi.Mode()&fs.ModeSocket == 0 {
			return nil, fmt.Errorf("listen unix %s: file exists and is not a socket", path)
		}
		if err := os.Remove(path); err != nil {
			return nil, fmt.Errorf("remove stale socket: %w", err)
		}
	}

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen unix %s: %w", path, err)
	}
	if mode != 0 {
		if err := os.Chmod(path, mode); err != nil {
			_ = ln.Close()
			return nil, fmt.Errorf("chmod socket: %w", err)
		}
	}
	return ln, nil
}

func (s *Server) serve(ctx context.Context, ln net.Listener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, ln)
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.acceptLoop(ctx, ln); err != nil {
			s.logger.Error("accept loop stopped", "address", ln.Addr().String(), "error", err)
		}
	}()
}

// Addrs returns the bound listener addresses.
func (s *Server) Addrs() []net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]net.Addr, 0, len(s.listeners))
	for _, ln := range s.listeners {
		out = append(out, ln.Addr())
	}
	return out
}

// ConnCount returns the number of open connections.
func (s *Server) ConnCount() int {
	return s.conns.Count()
}

// Shutdown closes the listeners and every connection, then waits for the
// connection goroutines.
func (s *Server) Shutdown(ctx context.Context) error {
	s.running.Store(false)
	firstErr := s.closeListeners()

	s.conns.Range(func(_ string, c *Conn) bool {
		_ = c.Close()
		return true
	})

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	if s.cfg.SocketPath != "" {
		if err := os.Remove(s.cfg.SocketPath); err != nil && !errors.Is(err, fs.ErrNotExist) && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *Server) closeListeners() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for _, ln := range s.listeners {
		if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) error {
	for {
		c, err := ln.Accept()
		if err != nil {
			if !s.running.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			return err
		}

		if s.cfg.MaxConnections > 0 && s.conns.Count() >= s.cfg.MaxConnections {
			s.logger.Warn("connection refused: limit reached", "limit", s.cfg.MaxConnections)
			_ = c.SetWriteDeadline(time.Now().Add(time.Second))
			_, _ = io.WriteString(c, "-"+formatError(domain.ErrUnavailable.WithDetails("too many connections"))+"\r\n")
			_ = c.Close()
			continue
		}

		conn := s.accept(c)
		if !s.running.Load() {
			// Shutdown already swept the connection table.
			_ = conn.Close()
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(ctx, conn)
		}()
	}
}

// accept captures the identity of a new connection.
func (s *Server) accept(c net.Conn) *Conn {
	conn := newConn(c, ulid.Make().String())
	conn.notifyTimeout = s.cfg.NotifyTimeout
	if conn.notifyTimeout <= 0 {
		conn.notifyTimeout = DefaultConfig().NotifyTimeout
	}
	if s.cfg.Rate > 0 {
		conn.limiter = rate.NewLimiter(rate.Limit(s.cfg.Rate), max(s.cfg.Burst, 1))
	}

	pid, err := identity.PeerPID(c)
	if err != nil {
		pid = pseudoPIDBase + int(s.nextPID.Add(1))
		conn.pseudo = true
		if s.cfg.TCPLabel != "" {
			s.pseudo.Set(pid, s.cfg.TCPLabel)
		}
	}
	conn.pid = pid

	if s.identity != nil {
		label, err := s.identity.Label(pid)
		if err != nil {
			s.logger.Warn("no label for client; it cannot register services", "conn_id", conn.id, "pid", pid, "error", err)
		}
		conn.label = label
	}

	s.conns.Set(conn.id, conn)
	s.metrics.ConnOpened()
	s.logger.Debug("client connected", "conn_id", conn.id, "pid", pid, "label", conn.label, "remote", c.RemoteAddr())
	return conn
}

// release tears a connection down: its objects die, which the registry
// sees as death events.
func (s *Server) release(conn *Conn) {
	_ = conn.Close()
	for ref := range conn.objects {
		s.nodes.Drop(ref)
	}
	clear(conn.objects)
	if conn.pseudo {
		s.pseudo.Delete(conn.pid)
	}
	s.conns.Delete(conn.id)
	s.metrics.ConnClosed()
	s.logger.Debug("client disconnected", "conn_id", conn.id, "pid", conn.pid)
}

func (s *Server) serveConn(ctx context.Context, c *Conn) {
	defer s.release(c)

	readTimeout := s.cfg.ReadTimeout
	if readTimeout == 0 {
		readTimeout = 10 * time.Second
	}
	writeTimeout := s.cfg.WriteTimeout
	if writeTimeout == 0 {
		writeTimeout = 10 * time.Second
	}

	for {
		// Between commands a connection may stay idle.
		var idle time.Time
		if s.cfg.IdleTimeout > 0 {
			idle = time.Now().Add(s.cfg.IdleTimeout)
		}
		if err := c.netConn.SetReadDeadline(idle); err != nil {
			return
		}
		if _, err := c.br.Peek(1); err != nil {
			s.logReadError(c, err)
			return
		}

		// After the first byte, tighten to the per-command read timeout.
		if err := c.netConn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			return
		}

		args, err := resp.ReadCommand(c.br)
		if err != nil {
			if errors.Is(err, resp.ErrLimitExceeded) || errors.Is(err, resp.ErrProtocol) {
				s.logger.Warn("protocol error", "conn_id", c.id, "error", err)
				_ = c.writeReply(errReply(domain.ErrBadRequest.WithDetails(err.Error())), writeTimeout)
				return
			}
			s.logReadError(c, err)
			return
		}
		if len(args) == 0 {
			continue
		}

		var r reply
		cmd := resp.NormalizeCommandName(args[0])
		if c.limiter != nil && !c.limiter.Allow() {
			r = errReply(domain.ErrRateLimited)
		} else {
			start := time.Now()
			r = s.handler.Handle(ctx, c, args)
			s.metrics.RecordCommand(commandLabel(cmd), time.Since(start).Seconds())
		}

		if err := c.writeReply(r, writeTimeout); err != nil {
			s.logger.Debug("write failed", "conn_id", c.id, "error", err)
			return
		}
		if c.quit {
			return
		}
	}
}

func (s *Server) logReadError(c *Conn, err error) {
	var netErr net.Error
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
	case errors.As(err, &netErr) && netErr.Timeout():
		s.logger.Debug("connection timed out", "conn_id", c.id)
	default:
		s.logger.Debug("connection read error", "conn_id", c.id, "error", err)
	}
}
