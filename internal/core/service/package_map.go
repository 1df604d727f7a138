package service

import (
	"log/slog"
	"sort"

	"github.com/yndnr/svcreg-go/internal/core/domain"
)

// PackageInterfaceMap holds every instance registered under one interface
// name plus the subscribers interested in any of them.
type PackageInterfaceMap struct {
	instances        map[string]*ServiceEntry
	packageListeners []domain.Handle

	notifier Notifier
	logger   *slog.Logger
}

// NewPackageInterfaceMap creates an empty map.
func NewPackageInterfaceMap(n Notifier, logger *slog.Logger) *PackageInterfaceMap {
	if logger == nil {
		logger = slog.Default()
	}
	return &PackageInterfaceMap{
		instances: make(map[string]*ServiceEntry),
		notifier:  n,
		logger:    logger,
	}
}

// Lookup returns the entry for instance, or nil.
func (m *PackageInterfaceMap) Lookup(instance string) *ServiceEntry {
	return m.instances[instance]
}

// Insert stores e under its instance name, replacing any previous entry.
func (m *PackageInterfaceMap) Insert(e *ServiceEntry) {
	m.instances[e.Instance()] = e
}

// Entries returns the entries sorted by instance name.
func (m *PackageInterfaceMap) Entries() []*ServiceEntry {
	names := make([]string, 0, len(m.instances))
	for name := range m.instances {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]*ServiceEntry, 0, len(names))
	for _, name := range names {
		out = append(out, m.instances[name])
	}
	return out
}

// AddPackageListener subscribes sink to every instance of the interface.
// The sink is first told about each instance that is already registered;
// if any of those deliveries fails the sink is not kept. It reports
// whether the sink was kept.
func (m *PackageInterfaceMap) AddPackageListener(sink domain.Handle) bool {
	for _, e := range m.Entries() {
		if e.Service().IsZero() {
			continue
		}
		err := m.notifier.Notify(sink, domain.Registration{
			FQName:      e.Interface(),
			Instance:    e.Instance(),
			Preexisting: true,
		})
		if err != nil {
			m.logger.Error("not adding package listener: preexisting notification failed",
				"entry", e.String(), "sink", sink, "error", err)
			return false
		}
	}
	m.packageListeners = append(m.packageListeners, sink)
	return true
}

// RemovePackageListener drops every package subscription held by who.
func (m *PackageInterfaceMap) RemovePackageListener(who domain.WeakHandle) bool {
	found := false
	kept := m.packageListeners[:0]
	for _, l := range m.packageListeners {
		if who.Is(l) {
			found = true
			continue
		}
		kept = append(kept, l)
	}
	clear(m.packageListeners[len(kept):])
	m.packageListeners = kept
	return found
}

// RemoveServiceListener drops who from the listeners of every entry.
func (m *PackageInterfaceMap) RemoveServiceListener(who domain.WeakHandle) bool {
	found := false
	for _, e := range m.instances {
		if e.RemoveListener(who) {
			found = true
		}
	}
	return found
}

// PackageListeners returns a copy of the package subscriber list.
func (m *PackageInterfaceMap) PackageListeners() []domain.Handle {
	return append([]domain.Handle(nil), m.packageListeners...)
}

// SendPackageRegistrationNotification tells every package listener that
// iface/instance was registered. Listeners that cannot be reached are
// dropped.
func (m *PackageInterfaceMap) SendPackageRegistrationNotification(iface, instance string) {
	reg := domain.Registration{FQName: iface, Instance: instance}
	kept := m.packageListeners[:0]
	for _, l := range m.packageListeners {
		if err := m.notifier.Notify(l, reg); err != nil {
			m.logger.Error("dropping package listener",
				"interface", iface, "instance", instance, "sink", l, "error", err)
			continue
		}
		kept = append(kept, l)
	}
	clear(m.packageListeners[len(kept):])
	m.packageListeners = kept
}
