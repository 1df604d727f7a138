package service

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/yndnr/svcreg-go/internal/core/domain"
)

func TestHandleDeath_Service(t *testing.T) {
	f := newFixture(t)
	svc := f.binder.object(ifaceBar, ifaceFoo)
	sink := f.binder.object()
	f.m.RegisterForNotifications(appCaller, ifaceFoo, "default", sink)
	f.m.Add(appCaller, "default", svc)

	if !f.m.HandleDeath(domain.DeathEvent{Kind: domain.DeathServiceDied, Ref: svc.Weak()}) {
		t.Fatal("HandleDeath() = false")
	}

	for _, iface := range []string{ifaceBar, ifaceFoo} {
		if got := f.m.Get(appCaller, iface, "default"); !got.IsZero() {
			t.Errorf("Get(%s) = %v after death", iface, got)
		}
	}

	// Entries and their listeners outlive the service.
	want := []domain.InstanceDebugInfo{
		{PID: domain.NoPID, Interface: ifaceBar, Instance: "default", ClientPIDs: []int{}},
		{PID: domain.NoPID, Interface: ifaceFoo, Instance: "default", ClientPIDs: []int{}},
	}
	if diff := cmp.Diff(want, f.m.DebugDump(appCaller)); diff != "" {
		t.Errorf("DebugDump() mismatch (-want +got):\n%s", diff)
	}

	restarted := f.binder.object(ifaceBar, ifaceFoo)
	f.m.Add(appCaller, "default", restarted)

	wantRegs := []domain.Registration{
		{FQName: ifaceFoo, Instance: "default"},
		{FQName: ifaceFoo, Instance: "default"},
	}
	if diff := cmp.Diff(wantRegs, f.binder.deliveriesTo(sink)); diff != "" {
		t.Errorf("listener should hear about the restart (-want +got):\n%s", diff)
	}
}

func TestHandleDeath_StaleGeneration(t *testing.T) {
	f := newFixture(t)
	svc := f.binder.object(ifaceFoo)
	f.m.Add(appCaller, "default", svc)

	stale := domain.Handle{Index: svc.Index, Gen: svc.Gen + 1}
	if f.m.HandleDeath(domain.DeathEvent{Kind: domain.DeathServiceDied, Ref: stale.Weak()}) {
		t.Error("death of another generation should not be handled")
	}

	if got := f.m.Get(appCaller, ifaceFoo, "default"); got != svc {
		t.Errorf("death of another generation removed the service, Get() = %v", got)
	}
}

func TestHandleDeath_PackageListener(t *testing.T) {
	f := newFixture(t)
	sink := f.binder.object()
	f.m.RegisterForNotifications(appCaller, ifaceFoo, "", sink)
	f.m.RegisterForNotifications(appCaller, ifaceBar, "", sink)

	if !f.m.HandleDeath(domain.DeathEvent{Kind: domain.DeathPackageListenerDied, Ref: sink.Weak()}) {
		t.Fatal("HandleDeath() = false")
	}
	if got := f.m.Stats().PackageListeners; got != 0 {
		t.Errorf("PackageListeners = %d after death", got)
	}
	if f.m.HandleDeath(domain.DeathEvent{Kind: domain.DeathPackageListenerDied, Ref: sink.Weak()}) {
		t.Error("second death should find nothing")
	}
}

func TestHandleDeath_ServiceListener(t *testing.T) {
	f := newFixture(t)
	sink, keep := f.binder.object(), f.binder.object()
	f.m.RegisterForNotifications(appCaller, ifaceFoo, "a", sink)
	f.m.RegisterForNotifications(appCaller, ifaceFoo, "b", sink)
	f.m.RegisterForNotifications(appCaller, ifaceBar, "a", sink)
	f.m.RegisterForNotifications(appCaller, ifaceFoo, "a", keep)
	f.m.RegisterForNotifications(appCaller, ifaceFoo, "", sink)

	if !f.m.HandleDeath(domain.DeathEvent{Kind: domain.DeathServiceListenerDied, Ref: sink.Weak()}) {
		t.Fatal("HandleDeath() = false")
	}

	s := f.m.Stats()
	if s.InstanceListeners != 1 {
		t.Errorf("InstanceListeners = %d, want 1", s.InstanceListeners)
	}
	if s.PackageListeners != 1 {
		t.Errorf("package subscription must survive an instance-listener death, got %d", s.PackageListeners)
	}
}

func TestHandleDeath_Unknown(t *testing.T) {
	f := newFixture(t)
	if f.m.HandleDeath(domain.DeathEvent{Kind: domain.DeathKind(99), Ref: f.binder.object().Weak()}) {
		t.Error("unknown kind should not be handled")
	}
	if f.m.HandleDeath(domain.DeathEvent{Kind: domain.DeathServiceListenerDied, Ref: f.binder.object().Weak()}) {
		t.Error("unknown listener should not be handled")
	}
	never := domain.Handle{Index: 999, Gen: 7}
	if f.m.HandleDeath(domain.DeathEvent{Kind: domain.DeathServiceDied, Ref: never.Weak()}) {
		t.Error("a service registered nowhere should not be handled")
	}
}

func TestHandleDeath_ServiceTwice(t *testing.T) {
	f := newFixture(t)
	svc := f.binder.object(ifaceFoo)
	f.m.Add(appCaller, "default", svc)

	ev := domain.DeathEvent{Kind: domain.DeathServiceDied, Ref: svc.Weak()}
	if !f.m.HandleDeath(ev) {
		t.Fatal("first HandleDeath() = false")
	}
	if f.m.HandleDeath(ev) {
		t.Error("second death of the same service should find nothing")
	}
}
