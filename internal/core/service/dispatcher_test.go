package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/yndnr/svcreg-go/internal/core/domain"
)

func startDispatcher(t *testing.T, f *fixture, deaths <-chan domain.DeathEvent) (*Dispatcher, context.CancelFunc) {
	t.Helper()
	tokens, err := NewTokenManager(nil, nil, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	d := NewDispatcher(f.m, tokens, deaths, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	go d.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-d.Done()
	})
	return d, cancel
}

func TestDispatcher_Do(t *testing.T) {
	f := newFixture(t)
	d, _ := startDispatcher(t, f, nil)
	svc := f.binder.object(ifaceFoo)

	var added bool
	var tok []byte
	err := d.Do(context.Background(), func(m *ServiceManager, tm *TokenManager) {
		added = m.Add(appCaller, "default", svc)
		tok = tm.CreateToken(svc)
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if !added || tok == nil {
		t.Fatalf("added = %v, token = %x", added, tok)
	}

	var got domain.Handle
	d.Do(context.Background(), func(_ *ServiceManager, tm *TokenManager) {
		got = tm.Get(tok)
	})
	if got != svc {
		t.Errorf("token resolved to %v, want %v", got, svc)
	}
}

func TestDispatcher_DeathEvents(t *testing.T) {
	f := newFixture(t)
	deaths := make(chan domain.DeathEvent, 1)
	d, _ := startDispatcher(t, f, deaths)
	svc := f.binder.object(ifaceFoo)

	d.Do(context.Background(), func(m *ServiceManager, _ *TokenManager) {
		m.Add(appCaller, "default", svc)
	})
	deaths <- domain.DeathEvent{Kind: domain.DeathServiceDied, Ref: svc.Weak()}

	deadline := time.Now().Add(time.Second)
	for {
		var live int
		d.Do(context.Background(), func(m *ServiceManager, _ *TokenManager) {
			live = m.Stats().Live
		})
		if live == 0 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("death event was not applied")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestDispatcher_ClosedDeathChannel(t *testing.T) {
	f := newFixture(t)
	deaths := make(chan domain.DeathEvent)
	close(deaths)
	d, _ := startDispatcher(t, f, deaths)

	if err := d.Do(context.Background(), func(*ServiceManager, *TokenManager) {}); err != nil {
		t.Errorf("Do() after deaths closed error = %v", err)
	}
}

func TestDispatcher_Serializes(t *testing.T) {
	f := newFixture(t)
	d, _ := startDispatcher(t, f, nil)

	const workers = 8
	const perWorker = 50
	counter := 0

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perWorker {
				d.Do(context.Background(), func(*ServiceManager, *TokenManager) {
					counter++
				})
			}
		}()
	}
	wg.Wait()

	if counter != workers*perWorker {
		t.Errorf("counter = %d, want %d", counter, workers*perWorker)
	}
}

func TestDispatcher_Stopped(t *testing.T) {
	f := newFixture(t)
	d, cancel := startDispatcher(t, f, nil)
	cancel()
	<-d.Done()

	err := d.Do(context.Background(), func(*ServiceManager, *TokenManager) {
		t.Error("fn ran after the loop stopped")
	})
	if !errors.Is(err, domain.ErrUnavailable) {
		t.Errorf("Do() error = %v, want ErrUnavailable", err)
	}
}

func TestDispatcher_CallerContext(t *testing.T) {
	f := newFixture(t)
	d, _ := startDispatcher(t, f, nil)

	started := make(chan struct{})
	release := make(chan struct{})
	go d.Do(context.Background(), func(*ServiceManager, *TokenManager) {
		close(started)
		<-release
	})
	defer close(release)
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := d.Do(ctx, func(*ServiceManager, *TokenManager) {})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Do() error = %v, want deadline exceeded", err)
	}
}
