package service

import (
	"log/slog"
	"sort"

	"github.com/yndnr/svcreg-go/internal/core/domain"
)

// Authorizer is the access check surface ServiceManager needs.
// *AccessControl implements it.
type Authorizer interface {
	CanAdd(fqName string, caller Caller) bool
	CanGet(fqName string, pid int) bool
	CanList(pid int) bool
}

// ManagerConfig holds the collaborators of ServiceManager.
type ManagerConfig struct {
	Binder   Binder
	Access   Authorizer
	Manifest ManifestOracle

	// Starter is optional; without one, failed lookups only log.
	Starter Starter

	// Recorder defaults to NopRecorder.
	Recorder Recorder

	Logger *slog.Logger
}

// ServiceManager is the registry: interface name → PackageInterfaceMap →
// ServiceEntry.
//
// It is not safe for concurrent use. Run it on a Dispatcher.
type ServiceManager struct {
	serviceMap map[string]*PackageInterfaceMap

	binder   Binder
	access   Authorizer
	manifest ManifestOracle
	starter  Starter
	recorder Recorder
	logger   *slog.Logger

	instanceNotifier Notifier
	packageNotifier  Notifier
}

// NewServiceManager creates an empty registry.
func NewServiceManager(cfg ManagerConfig) *ServiceManager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	recorder := cfg.Recorder
	if recorder == nil {
		recorder = NopRecorder()
	}

	return &ServiceManager{
		serviceMap:       make(map[string]*PackageInterfaceMap),
		binder:           cfg.Binder,
		access:           cfg.Access,
		manifest:         cfg.Manifest,
		starter:          cfg.Starter,
		recorder:         recorder,
		logger:           logger,
		instanceNotifier: countingNotifier{n: cfg.Binder, recorder: recorder, kind: "instance"},
		packageNotifier:  countingNotifier{n: cfg.Binder, recorder: recorder, kind: "package"},
	}
}

// countingNotifier reports each delivery to the Recorder.
type countingNotifier struct {
	n        Notifier
	recorder Recorder
	kind     string
}

func (c countingNotifier) Notify(sink domain.Handle, reg domain.Registration) error {
	err := c.n.Notify(sink, reg)
	c.recorder.Notification(c.kind, err == nil)
	return err
}

// lookup returns the entry for iface/instance, or nil. It never creates
// anything.
func (m *ServiceManager) lookup(iface, instance string) *ServiceEntry {
	ifaceMap, ok := m.serviceMap[iface]
	if !ok {
		return nil
	}
	return ifaceMap.Lookup(instance)
}

// packageMap returns the map for iface, creating it if needed.
func (m *ServiceManager) packageMap(iface string) *PackageInterfaceMap {
	ifaceMap, ok := m.serviceMap[iface]
	if !ok {
		ifaceMap = NewPackageInterfaceMap(m.packageNotifier, m.logger)
		m.serviceMap[iface] = ifaceMap
	}
	return ifaceMap
}

func (m *ServiceManager) newEntry(iface, instance string, ref domain.Handle, pid int) *ServiceEntry {
	return NewServiceEntry(m.instanceNotifier, iface, instance, ref, pid, m.logger)
}

// forEachEntry visits every entry, placeholders included, in interface
// then instance order.
func (m *ServiceManager) forEachEntry(fn func(e *ServiceEntry)) {
	ifaces := make([]string, 0, len(m.serviceMap))
	for iface := range m.serviceMap {
		ifaces = append(ifaces, iface)
	}
	sort.Strings(ifaces)
	for _, iface := range ifaces {
		for _, e := range m.serviceMap[iface].Entries() {
			fn(e)
		}
	}
}

// forEachLiveEntry visits only entries with a registered service.
func (m *ServiceManager) forEachLiveEntry(fn func(e *ServiceEntry)) {
	m.forEachEntry(func(e *ServiceEntry) {
		if !e.Service().IsZero() {
			fn(e)
		}
	})
}

// Add registers ref as instance under every interface of its chain.
//
// The whole chain must pass CanAdd or nothing is registered. If the most
// derived interface already maps instance to a different live service, that
// service is first removed from instance everywhere, so base and derived
// lookups agree afterwards.
func (m *ServiceManager) Add(caller Caller, instance string, ref domain.Handle) bool {
	if ref.IsZero() {
		return false
	}
	if instance == "" {
		m.logger.Warn("add with empty instance name", "pid", caller.PID)
		return false
	}

	// 1. Interface chain, most derived first.
	chain, err := m.binder.InterfaceChain(ref)
	if err != nil {
		m.logger.Error("cannot read interface chain", "service", ref, "pid", caller.PID, "error", err)
		return false
	}
	if len(chain) == 0 {
		return false
	}

	// 2. All-or-nothing authorization.
	for _, iface := range chain {
		if !m.access.CanAdd(iface, caller) {
			return false
		}
	}

	if len(chain) > 1 {
		base := chain[len(chain)-1]
		if e := m.lookup(base, instance); e != nil && !e.Service().IsZero() && e.Service() != ref {
			m.logger.Warn("instance registering over instance of its base interface",
				"interface", chain[0], "base", base, "instance", instance,
				"pid", caller.PID, "old_pid", e.PID())
		}
	}

	// 3. Child supersedes parent.
	if e := m.lookup(chain[0], instance); e != nil {
		old := e.Service()
		if !old.IsZero() && old != ref {
			if m.removeService(old.Weak(), instance) {
				m.binder.UnlinkToDeath(old, domain.DeathServiceDied)
			}
		}
	}

	// 4. Install under every interface and notify.
	for _, iface := range chain {
		ifaceMap := m.packageMap(iface)
		if e := ifaceMap.Lookup(instance); e == nil {
			ifaceMap.Insert(m.newEntry(iface, instance, ref, caller.PID))
		} else {
			e.SetService(ref, caller.PID)
		}
		ifaceMap.SendPackageRegistrationNotification(iface, instance)
		m.recorder.Registration(iface)
	}

	// 5. Liveness watch. Failure only costs us cleanup on death.
	if err := m.binder.LinkToDeath(ref, domain.DeathServiceDied); err != nil {
		m.logger.Error("could not link to death", "interface", chain[0], "instance", instance, "error", err)
	}

	m.logger.Info("service registered", "interface", chain[0], "instance", instance, "pid", caller.PID, "chain", len(chain))
	return true
}

// Get resolves iface/instance. A miss asks the Starter, off the calling
// goroutine, to bring the service up and returns zero right away.
func (m *ServiceManager) Get(caller Caller, iface, instance string) domain.Handle {
	if !m.access.CanGet(iface, caller.PID) {
		return domain.Handle{}
	}

	e := m.lookup(iface, instance)
	if e == nil || e.Service().IsZero() {
		m.tryStartService(iface, instance)
		return domain.Handle{}
	}
	return e.Service()
}

func (m *ServiceManager) tryStartService(iface, instance string) {
	if m.starter == nil || instance == "" {
		m.logger.Debug("lookup miss", "interface", iface, "instance", instance)
		return
	}

	starter, recorder, logger := m.starter, m.recorder, m.logger
	go func() {
		if err := starter.Start(iface, instance); err != nil {
			logger.Warn("start request failed", "interface", iface, "instance", instance, "error", err)
			recorder.StartRequest("error")
			return
		}
		recorder.StartRequest("requested")
	}()
}

// GetTransport returns the transport the manifests declare for
// iface/instance.
func (m *ServiceManager) GetTransport(caller Caller, iface, instance string) domain.Transport {
	if !m.access.CanGet(iface, caller.PID) {
		return domain.TransportEmpty
	}
	name, err := domain.ParseFQName(iface)
	if err != nil || m.manifest == nil {
		return domain.TransportEmpty
	}
	return m.manifest.Transport(name, instance)
}

// List returns "iface/instance" for every registered service.
func (m *ServiceManager) List(caller Caller) []string {
	if !m.access.CanList(caller.PID) {
		return []string{}
	}

	out := []string{}
	m.forEachLiveEntry(func(e *ServiceEntry) {
		out = append(out, e.String())
	})
	return out
}

// ListByInterface returns the registered instance names of iface.
func (m *ServiceManager) ListByInterface(caller Caller, iface string) []string {
	if !m.access.CanGet(iface, caller.PID) {
		return []string{}
	}

	out := []string{}
	ifaceMap, ok := m.serviceMap[iface]
	if !ok {
		return out
	}
	for _, e := range ifaceMap.Entries() {
		if !e.Service().IsZero() {
			out = append(out, e.Instance())
		}
	}
	return out
}

// ListManifestByInterface returns the instance names the manifests declare
// for iface, registered or not.
func (m *ServiceManager) ListManifestByInterface(caller Caller, iface string) []string {
	if !m.access.CanGet(iface, caller.PID) {
		return []string{}
	}
	name, err := domain.ParseFQName(iface)
	if err != nil || m.manifest == nil {
		return []string{}
	}
	out := m.manifest.Instances(name)
	if out == nil {
		out = []string{}
	}
	return out
}

// RegisterForNotifications subscribes sink to iface/instance, or to every
// instance of iface when instance is empty.
func (m *ServiceManager) RegisterForNotifications(caller Caller, iface, instance string, sink domain.Handle) bool {
	if !m.access.CanGet(iface, caller.PID) {
		return false
	}
	if sink.IsZero() {
		return false
	}

	if instance == "" {
		if err := m.binder.LinkToDeath(sink, domain.DeathPackageListenerDied); err != nil {
			m.logger.Error("could not link to death of package listener", "interface", iface, "sink", sink, "error", err)
			return false
		}
		m.packageMap(iface).AddPackageListener(sink)
		return true
	}

	if err := m.binder.LinkToDeath(sink, domain.DeathServiceListenerDied); err != nil {
		m.logger.Error("could not link to death of listener", "interface", iface, "instance", instance, "sink", sink, "error", err)
		return false
	}

	ifaceMap := m.packageMap(iface)
	e := ifaceMap.Lookup(instance)
	if e == nil {
		e = m.newEntry(iface, instance, domain.Handle{}, domain.NoPID)
		ifaceMap.Insert(e)
	}
	e.AddListener(sink)
	return true
}

// UnregisterForNotifications drops a subscription made by
// RegisterForNotifications. It reports whether one existed.
func (m *ServiceManager) UnregisterForNotifications(caller Caller, iface, instance string, sink domain.Handle) bool {
	if sink.IsZero() {
		return false
	}

	ifaceMap, ok := m.serviceMap[iface]
	if !ok {
		return false
	}
	if instance == "" {
		return ifaceMap.RemovePackageListener(sink.Weak())
	}
	e := ifaceMap.Lookup(instance)
	if e == nil {
		return false
	}
	return e.RemoveListener(sink.Weak())
}

// DebugDump returns every entry, placeholders included.
func (m *ServiceManager) DebugDump(caller Caller) []domain.InstanceDebugInfo {
	if !m.access.CanList(caller.PID) {
		return []domain.InstanceDebugInfo{}
	}

	out := []domain.InstanceDebugInfo{}
	m.forEachEntry(func(e *ServiceEntry) {
		out = append(out, domain.InstanceDebugInfo{
			PID:        e.PID(),
			Interface:  e.Interface(),
			Instance:   e.Instance(),
			ClientPIDs: e.PassthroughClients(),
		})
	})
	return out
}

// RegisterPassthroughClient records that the caller loaded iface/instance
// in-process.
func (m *ServiceManager) RegisterPassthroughClient(caller Caller, iface, instance string) {
	if !m.access.CanGet(iface, caller.PID) {
		return
	}
	if instance == "" {
		m.logger.Warn("passthrough client with empty instance name", "interface", iface, "pid", caller.PID)
		return
	}

	ifaceMap := m.packageMap(iface)
	e := ifaceMap.Lookup(instance)
	if e == nil {
		e = m.newEntry(iface, instance, domain.Handle{}, domain.NoPID)
		ifaceMap.Insert(e)
	}
	e.RegisterPassthroughClient(caller.PID)
}

// TryUnregister lets the process that registered ref as iface/instance take
// it down again. Every interface of the chain registered under the same
// instance with the same ref is cleared.
func (m *ServiceManager) TryUnregister(caller Caller, iface, instance string, ref domain.Handle) bool {
	if ref.IsZero() {
		return false
	}
	if !m.access.CanAdd(iface, caller) {
		return false
	}

	e := m.lookup(iface, instance)
	if e == nil || e.Service().IsZero() {
		m.logger.Warn("unregister of unknown service", "interface", iface, "instance", instance, "pid", caller.PID)
		return false
	}
	if e.Service() != ref {
		m.logger.Warn("unregister with a different service", "interface", iface, "instance", instance, "pid", caller.PID)
		return false
	}
	if e.PID() != caller.PID {
		m.logger.Warn("unregister by a process that does not own the service",
			"interface", iface, "instance", instance, "pid", caller.PID, "owner", e.PID())
		return false
	}

	if m.removeService(ref.Weak(), instance) {
		m.binder.UnlinkToDeath(ref, domain.DeathServiceDied)
	}
	m.logger.Info("service unregistered", "interface", iface, "instance", instance, "pid", caller.PID)
	return true
}

// Stats is a point-in-time summary of the registry.
type Stats struct {
	Interfaces        int
	Entries           int
	Live              int
	PackageListeners  int
	InstanceListeners int
}

// Stats summarizes the registry.
func (m *ServiceManager) Stats() Stats {
	var s Stats
	s.Interfaces = len(m.serviceMap)
	for _, ifaceMap := range m.serviceMap {
		s.PackageListeners += len(ifaceMap.packageListeners)
		for _, e := range ifaceMap.instances {
			s.Entries++
			s.InstanceListeners += len(e.listeners)
			if !e.Service().IsZero() {
				s.Live++
			}
		}
	}
	return s
}
