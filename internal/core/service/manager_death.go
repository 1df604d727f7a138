package service

import (
	"github.com/yndnr/svcreg-go/internal/core/domain"
)

// HandleDeath applies one death event. It reports whether anything in the
// registry referred to the dead object.
func (m *ServiceManager) HandleDeath(ev domain.DeathEvent) bool {
	m.recorder.Death(ev.Kind.String())

	var handled bool
	switch ev.Kind {
	case domain.DeathServiceDied:
		handled = m.removeService(ev.Ref, "")
	case domain.DeathPackageListenerDied:
		handled = m.removePackageListener(ev.Ref)
	case domain.DeathServiceListenerDied:
		handled = m.removeServiceListener(ev.Ref)
	default:
		m.logger.Error("unknown death kind", "kind", ev.Kind, "ref", ev.Ref)
		return false
	}

	m.logger.Debug("death handled", "kind", ev.Kind, "ref", ev.Ref, "handled", handled)
	return handled
}

// removeService clears who from every entry that holds it. When
// restrictInstance is non-empty only entries of that instance are cleared.
// The result is true only if some entry was cleared and who is no longer
// registered under another instance name. Entries themselves are never
// deleted.
func (m *ServiceManager) removeService(who domain.WeakHandle, restrictInstance string) bool {
	keepInstance, removed := false, false
	for _, ifaceMap := range m.serviceMap {
		for instance, e := range ifaceMap.instances {
			if !who.Is(e.Service()) {
				continue
			}
			if restrictInstance != "" && instance != restrictInstance {
				keepInstance = true
				continue
			}
			e.SetService(domain.Handle{}, domain.NoPID)
			removed = true
		}
	}
	return removed && !keepInstance
}

func (m *ServiceManager) removePackageListener(who domain.WeakHandle) bool {
	found := false
	for _, ifaceMap := range m.serviceMap {
		if ifaceMap.RemovePackageListener(who) {
			found = true
		}
	}
	return found
}

func (m *ServiceManager) removeServiceListener(who domain.WeakHandle) bool {
	found := false
	for _, ifaceMap := range m.serviceMap {
		if ifaceMap.RemoveServiceListener(who) {
			found = true
		}
	}
	return found
}
