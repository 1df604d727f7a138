package rpcserver

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/yndnr/svcreg-go/internal/core/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingSink struct {
	mu   sync.Mutex
	got  []domain.Registration
	fail error
}

func (s *recordingSink) Push(_ domain.Handle, reg domain.Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.got = append(s.got, reg)
	return nil
}

func recvDeath(t *testing.T, ch <-chan domain.DeathEvent) domain.DeathEvent {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("no death event")
		return domain.DeathEvent{}
	}
}

func TestNodeTable_Export(t *testing.T) {
	nt := NewNodeTable(0, discardLogger())
	sink := &recordingSink{}

	if _, err := nt.Export(sink, nil); !errors.Is(err, domain.ErrBadRequest) {
		t.Errorf("Export(nil) error = %v, want ErrBadRequest", err)
	}
	if _, err := nt.Export(sink, []string{"pkg@1.0::IFoo", "not a name"}); !errors.Is(err, domain.ErrInvalidFQName) {
		t.Errorf("Export(bad) error = %v, want ErrInvalidFQName", err)
	}

	chain := []string{"pkg@1.1::IFoo", "pkg@1.0::IFoo"}
	h, err := nt.Export(sink, chain)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	chain[0] = "mutated"

	got, err := nt.InterfaceChain(h)
	if err != nil {
		t.Fatalf("InterfaceChain() error = %v", err)
	}
	if diff := cmp.Diff([]string{"pkg@1.1::IFoo", "pkg@1.0::IFoo"}, got); diff != "" {
		t.Errorf("InterfaceChain() mismatch (-want +got):\n%s", diff)
	}
	if !nt.Alive(h) || nt.Len() != 1 {
		t.Errorf("Alive=%v Len=%d", nt.Alive(h), nt.Len())
	}
}

func TestNodeTable_DropPublishesLinkedDeaths(t *testing.T) {
	nt := NewNodeTable(0, discardLogger())
	h, _ := nt.Export(&recordingSink{}, []string{"pkg@1.0::IFoo"})

	for _, kind := range []domain.DeathKind{domain.DeathServiceListenerDied, domain.DeathServiceDied, domain.DeathServiceDied} {
		if err := nt.LinkToDeath(h, kind); err != nil {
			t.Fatalf("LinkToDeath(%v) error = %v", kind, err)
		}
	}
	if err := nt.LinkToDeath(h, domain.DeathPackageListenerDied); err != nil {
		t.Fatal(err)
	}
	nt.UnlinkToDeath(h, domain.DeathPackageListenerDied)

	if !nt.Drop(h) {
		t.Fatal("Drop() = false")
	}
	if nt.Drop(h) {
		t.Error("second Drop() should report false")
	}

	var kinds []domain.DeathKind
	for i := 0; i < 2; i++ {
		ev := recvDeath(t, nt.Deaths())
		if !ev.Ref.Is(h) {
			t.Errorf("event ref = %v, want %v", ev.Ref, h)
		}
		kinds = append(kinds, ev.Kind)
	}
	if diff := cmp.Diff([]domain.DeathKind{domain.DeathServiceDied, domain.DeathServiceListenerDied}, kinds); diff != "" {
		t.Errorf("death kinds mismatch (-want +got):\n%s", diff)
	}
	select {
	case ev := <-nt.Deaths():
		t.Errorf("unexpected event %+v", ev)
	default:
	}

	if _, err := nt.InterfaceChain(h); !errors.Is(err, domain.ErrNodeNotFound) {
		t.Errorf("InterfaceChain(dead) error = %v", err)
	}
}

func TestNodeTable_StaleGeneration(t *testing.T) {
	nt := NewNodeTable(0, discardLogger())
	old, _ := nt.Export(&recordingSink{}, []string{"pkg@1.0::IFoo"})
	nt.Drop(old)

	fresh, _ := nt.Export(&recordingSink{}, []string{"pkg@1.0::IBar"})
	if fresh.Index != old.Index || fresh.Gen == old.Gen {
		t.Fatalf("slot not reused with a new generation: old=%v fresh=%v", old, fresh)
	}
	if nt.Alive(old) {
		t.Error("stale handle must not resolve")
	}
	if nt.Drop(old) {
		t.Error("Drop(stale) must not kill the new object")
	}
	if !nt.Alive(fresh) {
		t.Error("new object should be alive")
	}
}

func TestNodeTable_LinkToDeadObject(t *testing.T) {
	nt := NewNodeTable(0, discardLogger())
	h, _ := nt.Export(&recordingSink{}, []string{"pkg@1.0::IFoo"})
	nt.Drop(h)

	err := nt.LinkToDeath(h, domain.DeathServiceDied)
	if !errors.Is(err, domain.ErrNodeDead) {
		t.Fatalf("LinkToDeath(dead) error = %v, want ErrNodeDead", err)
	}
	ev := recvDeath(t, nt.Deaths())
	if ev.Kind != domain.DeathServiceDied || !ev.Ref.Is(h) {
		t.Errorf("event = %+v", ev)
	}

	if err := nt.LinkToDeath(domain.Handle{}, domain.DeathServiceDied); !errors.Is(err, domain.ErrNodeDead) {
		t.Errorf("LinkToDeath(zero) error = %v", err)
	}
}

func TestNodeTable_Notify(t *testing.T) {
	nt := NewNodeTable(0, discardLogger())
	ok := &recordingSink{}
	broken := &recordingSink{fail: errors.New("broken pipe")}
	okH, _ := nt.Export(ok, []string{"pkg@1.0::IListener"})
	brokenH, _ := nt.Export(broken, []string{"pkg@1.0::IListener"})

	reg := domain.Registration{FQName: "pkg@1.0::IFoo", Instance: "default", Preexisting: true}
	if err := nt.Notify(okH, reg); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	if diff := cmp.Diff([]domain.Registration{reg}, ok.got); diff != "" {
		t.Errorf("delivered mismatch (-want +got):\n%s", diff)
	}

	if err := nt.Notify(brokenH, reg); !errors.Is(err, domain.ErrDeliveryFailed) {
		t.Errorf("Notify(broken) error = %v, want ErrDeliveryFailed", err)
	}

	nt.Drop(okH)
	if err := nt.Notify(okH, reg); !errors.Is(err, domain.ErrNodeDead) {
		t.Errorf("Notify(dead) error = %v, want ErrNodeDead", err)
	}
}

func TestNodeTable_CloseUnblocksDrop(t *testing.T) {
	nt := NewNodeTable(1, discardLogger())
	a, _ := nt.Export(&recordingSink{}, []string{"pkg@1.0::IFoo"})
	b, _ := nt.Export(&recordingSink{}, []string{"pkg@1.0::IFoo"})
	_ = nt.LinkToDeath(a, domain.DeathServiceDied)
	_ = nt.LinkToDeath(b, domain.DeathServiceDied)

	nt.Drop(a) // fills the queue

	done := make(chan struct{})
	go func() {
		nt.Drop(b)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Drop should block on a full queue")
	case <-time.After(50 * time.Millisecond):
	}

	nt.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close did not unblock Drop")
	}
}
