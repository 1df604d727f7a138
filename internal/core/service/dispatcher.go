package service

import (
	"context"
	"log/slog"

	"github.com/yndnr/svcreg-go/internal/core/domain"
)

// Dispatcher runs the registry on a single goroutine. Transport calls are
// queued as closures, and death events come in on their own channel; the
// loop handles one at a time.
type Dispatcher struct {
	manager *ServiceManager
	tokens  *TokenManager
	deaths  <-chan domain.DeathEvent
	calls   chan func()
	done    chan struct{}
	logger  *slog.Logger
}

// NewDispatcher creates a Dispatcher over manager and tokens. deaths may be
// nil.
func NewDispatcher(manager *ServiceManager, tokens *TokenManager, deaths <-chan domain.DeathEvent, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		manager: manager,
		tokens:  tokens,
		deaths:  deaths,
		calls:   make(chan func()),
		done:    make(chan struct{}),
		logger:  logger,
	}
}

// Run serves calls until ctx is done. It must be called exactly once.
func (d *Dispatcher) Run(ctx context.Context) error {
	defer close(d.done)
	d.logger.Info("registry loop started")

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("registry loop stopped")
			return ctx.Err()
		case fn := <-d.calls:
			fn()
		case ev, ok := <-d.deaths:
			if !ok {
				d.deaths = nil
				continue
			}
			d.manager.HandleDeath(ev)
		}
	}
}

// Do runs fn on the loop and waits for it to return.
//
// If ctx ends after fn was queued, Do returns ctx.Err() and fn may still
// run; fn must then not touch anything the caller reads afterwards.
func (d *Dispatcher) Do(ctx context.Context, fn func(m *ServiceManager, t *TokenManager)) error {
	finished := make(chan struct{})
	call := func() {
		defer close(finished)
		fn(d.manager, d.tokens)
	}

	select {
	case d.calls <- call:
	case <-d.done:
		return domain.ErrUnavailable
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed when Run returns.
func (d *Dispatcher) Done() <-chan struct{} {
	return d.done
}
