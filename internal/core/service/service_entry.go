package service

import (
	"log/slog"
	"sort"

	"github.com/yndnr/svcreg-go/internal/core/domain"
)

// ServiceEntry is the registration record of one (interface, instance)
// pair. An entry whose service is zero is a placeholder kept alive for its
// listeners or passthrough clients.
type ServiceEntry struct {
	iface    string
	instance string
	service  domain.Handle
	pid      int

	listeners          []domain.Handle
	passthroughClients map[int]struct{}

	notifier Notifier
	logger   *slog.Logger
}

// NewServiceEntry creates an entry. Pass a zero service and domain.NoPID
// for a placeholder.
func NewServiceEntry(n Notifier, iface, instance string, service domain.Handle, pid int, logger *slog.Logger) *ServiceEntry {
	if logger == nil {
		logger = slog.Default()
	}
	return &ServiceEntry{
		iface:              iface,
		instance:           instance,
		service:            service,
		pid:                pid,
		passthroughClients: make(map[int]struct{}),
		notifier:           n,
		logger:             logger,
	}
}

// Interface returns the fully-qualified interface name.
func (e *ServiceEntry) Interface() string { return e.iface }

// Instance returns the instance name.
func (e *ServiceEntry) Instance() string { return e.instance }

// Service returns the registered reference, zero if none.
func (e *ServiceEntry) Service() domain.Handle { return e.service }

// PID returns the owning pid, domain.NoPID if none.
func (e *ServiceEntry) PID() int { return e.pid }

// String returns "iface/instance".
func (e *ServiceEntry) String() string {
	return e.iface + "/" + e.instance
}

// SetService replaces the reference and owner, then notifies every
// listener. Listeners that cannot be reached are dropped.
func (e *ServiceEntry) SetService(service domain.Handle, pid int) {
	e.service = service
	e.pid = pid
	e.sendRegistrationNotifications()
}

// AddListener subscribes sink. If a service is already registered the sink
// first gets a preexisting notification; if that fails the sink is not
// kept. It reports whether the sink was kept.
func (e *ServiceEntry) AddListener(sink domain.Handle) bool {
	if !e.service.IsZero() {
		err := e.notifier.Notify(sink, domain.Registration{
			FQName:      e.iface,
			Instance:    e.instance,
			Preexisting: true,
		})
		if err != nil {
			e.logger.Error("not adding listener: preexisting notification failed",
				"entry", e.String(), "sink", sink, "error", err)
			return false
		}
	}
	e.listeners = append(e.listeners, sink)
	return true
}

// RemoveListener drops every subscription held by who and reports whether
// there was one.
func (e *ServiceEntry) RemoveListener(who domain.WeakHandle) bool {
	found := false
	kept := e.listeners[:0]
	for _, l := range e.listeners {
		if who.Is(l) {
			found = true
			continue
		}
		kept = append(kept, l)
	}
	clear(e.listeners[len(kept):])
	e.listeners = kept
	return found
}

// Listeners returns a copy of the subscriber list in subscription order.
func (e *ServiceEntry) Listeners() []domain.Handle {
	return append([]domain.Handle(nil), e.listeners...)
}

// RegisterPassthroughClient records pid as a passthrough user.
func (e *ServiceEntry) RegisterPassthroughClient(pid int) {
	e.passthroughClients[pid] = struct{}{}
}

// PassthroughClients returns the passthrough pids in ascending order.
func (e *ServiceEntry) PassthroughClients() []int {
	out := make([]int, 0, len(e.passthroughClients))
	for pid := range e.passthroughClients {
		out = append(out, pid)
	}
	sort.Ints(out)
	return out
}

func (e *ServiceEntry) sendRegistrationNotifications() {
	if len(e.listeners) == 0 || e.service.IsZero() {
		return
	}

	reg := domain.Registration{FQName: e.iface, Instance: e.instance}
	kept := e.listeners[:0]
	for _, l := range e.listeners {
		if err := e.notifier.Notify(l, reg); err != nil {
			e.logger.Error("dropping registration listener",
				"entry", e.String(), "sink", l, "error", err)
			continue
		}
		kept = append(kept, l)
	}
	clear(e.listeners[len(kept):])
	e.listeners = kept
}
