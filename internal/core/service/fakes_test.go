package service

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/yndnr/svcreg-go/internal/core/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ============================================================================
// fakeBinder
// ============================================================================

type delivery struct {
	Sink domain.Handle
	Reg  domain.Registration
}

type fakeBinder struct {
	next      uint32
	chains    map[domain.Handle][]string
	links     map[domain.Handle]map[domain.DeathKind]bool
	unlinks   []domain.Handle
	linkErr   map[domain.Handle]error
	chainErr  map[domain.Handle]error
	dead      map[domain.Handle]bool
	delivered []delivery
}

func newFakeBinder() *fakeBinder {
	return &fakeBinder{
		chains:   make(map[domain.Handle][]string),
		links:    make(map[domain.Handle]map[domain.DeathKind]bool),
		linkErr:  make(map[domain.Handle]error),
		chainErr: make(map[domain.Handle]error),
		dead:     make(map[domain.Handle]bool),
	}
}

// object creates a handle implementing chain (most derived first).
func (b *fakeBinder) object(chain ...string) domain.Handle {
	b.next++
	h := domain.Handle{Index: b.next, Gen: 1}
	b.chains[h] = chain
	return h
}

func (b *fakeBinder) InterfaceChain(ref domain.Handle) ([]string, error) {
	if err := b.chainErr[ref]; err != nil {
		return nil, err
	}
	chain, ok := b.chains[ref]
	if !ok {
		return nil, domain.ErrNodeNotFound
	}
	return chain, nil
}

func (b *fakeBinder) LinkToDeath(ref domain.Handle, kind domain.DeathKind) error {
	if err := b.linkErr[ref]; err != nil {
		return err
	}
	if b.links[ref] == nil {
		b.links[ref] = make(map[domain.DeathKind]bool)
	}
	b.links[ref][kind] = true
	return nil
}

func (b *fakeBinder) UnlinkToDeath(ref domain.Handle, kind domain.DeathKind) {
	delete(b.links[ref], kind)
	b.unlinks = append(b.unlinks, ref)
}

func (b *fakeBinder) Notify(sink domain.Handle, reg domain.Registration) error {
	if b.dead[sink] {
		return domain.ErrDeliveryFailed.WithDetails(sink.String())
	}
	b.delivered = append(b.delivered, delivery{Sink: sink, Reg: reg})
	return nil
}

func (b *fakeBinder) linked(ref domain.Handle, kind domain.DeathKind) bool {
	return b.links[ref][kind]
}

// deliveriesTo returns what sink received, in order.
func (b *fakeBinder) deliveriesTo(sink domain.Handle) []domain.Registration {
	var out []domain.Registration
	for _, d := range b.delivered {
		if d.Sink == sink {
			out = append(out, d.Reg)
		}
	}
	return out
}

// ============================================================================
// identity, starter, auditor
// ============================================================================

type fakeIdentity struct {
	mu     sync.Mutex
	labels map[int]string
}

func (f *fakeIdentity) Label(pid int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.labels[pid]
	if !ok {
		return "", fmt.Errorf("no such process: %d", pid)
	}
	return l, nil
}

func (f *fakeIdentity) set(pid int, label string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.labels[pid] = label
}

type fakeStarter struct {
	started chan string
	err     error
}

func newFakeStarter() *fakeStarter {
	return &fakeStarter{started: make(chan string, 16)}
}

func (s *fakeStarter) Start(iface, instance string) error {
	s.started <- iface + "/" + instance
	return s.err
}

type fakeAuditor struct {
	records []AuditRecord
}

func (a *fakeAuditor) Audit(rec AuditRecord) {
	a.records = append(a.records, rec)
}

type fakeManifest struct {
	transports map[string]domain.Transport
	instances  map[string][]string
}

func (f *fakeManifest) Transport(name domain.FQName, instance string) domain.Transport {
	return f.transports[name.String()+"/"+instance]
}

func (f *fakeManifest) Instances(name domain.FQName) []string {
	return f.instances[name.String()]
}

// ============================================================================
// fixture
// ============================================================================

const (
	ifaceFoo = "pkg@1.0::IFoo"
	ifaceBar = "pkg@1.0::IBar"
	ifaceBaz = "pkg@1.0::IBaz"

	labelApp   = "u:r:app"
	labelOther = "u:r:other"
	labelSelf  = "u:r:svcreg"
	labelFoo   = "u:object_r:foo_service"
	labelBar   = "u:object_r:bar_service"
	labelBaz   = "u:object_r:baz_service"

	pidApp   = 100
	pidOther = 200
)

var (
	appCaller   = Caller{PID: pidApp, Label: labelApp}
	otherCaller = Caller{PID: pidOther, Label: labelOther}
)

type fixture struct {
	m        *ServiceManager
	binder   *fakeBinder
	policy   *MemoryPolicy
	identity *fakeIdentity
	starter  *fakeStarter
	manifest *fakeManifest
	auditor  *fakeAuditor
}

// newFixture grants app and other full access to IFoo, IBar and IBaz and
// the list permission.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		binder:   newFakeBinder(),
		policy:   NewMemoryPolicy(),
		identity: &fakeIdentity{labels: map[int]string{pidApp: labelApp, pidOther: labelOther}},
		starter:  newFakeStarter(),
		manifest: &fakeManifest{
			transports: map[string]domain.Transport{},
			instances:  map[string][]string{},
		},
		auditor: &fakeAuditor{},
	}
	for _, src := range []string{labelApp, labelOther} {
		for _, target := range []string{labelFoo, labelBar, labelBaz} {
			f.policy.Grant(src, target, PermAdd, PermFind)
		}
		f.policy.Grant(src, labelSelf, PermList)
	}

	acl := NewAccessControl(AccessControlConfig{
		Labels: NewLabelTable(map[string]string{
			"pkg::IFoo": labelFoo,
			"pkg::IBar": labelBar,
			"pkg::IBaz": labelBaz,
		}),
		Policy:    f.policy,
		Identity:  f.identity,
		Auditor:   f.auditor,
		SelfLabel: labelSelf,
		Logger:    testLogger(),
	})
	f.m = NewServiceManager(ManagerConfig{
		Binder:   f.binder,
		Access:   acl,
		Manifest: f.manifest,
		Starter:  f.starter,
		Logger:   testLogger(),
	})
	return f
}

var errBoom = errors.New("boom")
