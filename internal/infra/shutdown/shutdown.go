package shutdown

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

type namedHook struct {
	name string
	fn   func(context.Context) error
}

type namedReload struct {
	name string
	fn   func() error
}

// Handler handles graceful shutdown and SIGHUP reloads.
type Handler struct {
	timeout time.Duration
	logger  *slog.Logger

	mu      sync.Mutex
	hooks   []namedHook
	reloads []namedReload

	trigger     chan struct{}
	triggerOnce sync.Once
	done        chan struct{}
}

// NewHandler creates a new shutdown handler.
func NewHandler(timeout time.Duration, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		timeout: timeout,
		logger:  logger,
		trigger: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// OnShutdown registers a shutdown hook.
// Hooks are called in reverse order of registration.
func (h *Handler) OnShutdown(name string, hook func(context.Context) error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks = append(h.hooks, namedHook{name: name, fn: hook})
}

// OnReload registers a hook run on SIGHUP, in registration order.
func (h *Handler) OnReload(name string, fn func() error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reloads = append(h.reloads, namedReload{name: name, fn: fn})
}

// Trigger starts shutdown as if a termination signal had arrived.
func (h *Handler) Trigger() {
	h.triggerOnce.Do(func() { close(h.trigger) })
}

// Wait blocks until a termination signal, Trigger or ctx cancellation,
// then runs the shutdown hooks. The returned error joins every hook
// failure.
func (h *Handler) Wait(ctx context.Context) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

wait:
	for {
		select {
		case sig := <-sigCh:
			if sig == syscall.SIGHUP {
				h.Reload()
				continue
			}
			h.logger.Info("shutdown signal received", "signal", sig.String())
			break wait
		case <-h.trigger:
			h.logger.Info("shutdown triggered")
			break wait
		case <-ctx.Done():
			h.logger.Info("shutdown on context cancellation")
			break wait
		}
	}

	return h.runHooks()
}

// Reload runs every reload hook and returns the joined failures.
func (h *Handler) Reload() error {
	h.mu.Lock()
	reloads := append([]namedReload(nil), h.reloads...)
	h.mu.Unlock()

	var errs []error
	for _, r := range reloads {
		if err := r.fn(); err != nil {
			h.logger.Error("reload failed", "hook", r.name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", r.name, err))
			continue
		}
		h.logger.Info("reloaded", "hook", r.name)
	}
	return errors.Join(errs...)
}

func (h *Handler) runHooks() error {
	defer close(h.done)

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	h.mu.Lock()
	hooks := append([]namedHook(nil), h.hooks...)
	h.mu.Unlock()

	var errs []error
	for i := len(hooks) - 1; i >= 0; i-- {
		start := time.Now()
		if err := hooks[i].fn(ctx); err != nil {
			h.logger.Error("shutdown hook failed", "hook", hooks[i].name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", hooks[i].name, err))
			continue
		}
		h.logger.Debug("shutdown hook done", "hook", hooks[i].name, "elapsed", time.Since(start))
	}
	return errors.Join(errs...)
}

// Done returns a channel that closes when shutdown is complete.
func (h *Handler) Done() <-chan struct{} {
	return h.done
}
