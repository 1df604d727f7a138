package command

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/yndnr/svcreg-go/internal/cli/connection"
)

type watchResult struct {
	out string
	err error
}

func startWatch(t *testing.T, env *testEnv, args ...string) <-chan watchResult {
	t.Helper()
	done := make(chan watchResult, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		out, err := env.runContext(ctx, args...)
		done <- watchResult{out: out, err: err}
	}()
	return done
}

func waitWatch(t *testing.T, done <-chan watchResult) watchResult {
	t.Helper()
	select {
	case r := <-done:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not exit")
		return watchResult{}
	}
}

func TestWatch_JSON(t *testing.T) {
	env := newTestEnv(t)
	env.provide(t, "default", fooV10)

	done := startWatch(t, env, "-o", "json", "watch", "--count", "2", fooV10)
	eventually(t, func() bool { return env.stats(t).PackageListeners == 1 })
	env.provide(t, "backup", fooV10)

	r := waitWatch(t, done)
	if r.err != nil {
		t.Fatalf("watch error = %v", r.err)
	}
	lines := strings.Split(strings.TrimSpace(r.out), "\n")
	var got []connection.Notification
	for _, line := range lines {
		got = append(got, decode[connection.Notification](t, line))
	}
	want := []connection.Notification{
		{Interface: fooV10, Instance: "default", Preexisting: true},
		{Interface: fooV10, Instance: "backup", Preexisting: false},
	}
	if diff := cmp.Diff(want, got, cmpopts.IgnoreFields(connection.Notification{}, "Sink")); diff != "" {
		t.Errorf("notifications mismatch (-want +got):\n%s", diff)
	}
}

func TestWatch_InstanceSkipExisting(t *testing.T) {
	env := newTestEnv(t)
	env.provide(t, "default", fooV10)

	done := startWatch(t, env, "--no-headers", "watch", "-n", "1", "--skip-existing", fooV10, "default")
	eventually(t, func() bool { return env.stats(t).InstanceListeners == 1 })
	env.provide(t, "default", fooV11, fooV10)

	r := waitWatch(t, done)
	if r.err != nil {
		t.Fatalf("watch error = %v", r.err)
	}
	fields := strings.Split(strings.TrimSpace(r.out), "\t")
	if len(fields) != 4 || fields[1] != fooV10 || fields[2] != "default" || fields[3] != "false" {
		t.Errorf("watch output = %q", r.out)
	}
}

func TestWatch_CancelledExitsCleanly(t *testing.T) {
	env := newTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := env.runContext(ctx, "watch", fooV10)
		done <- err
	}()
	eventually(t, func() bool { return env.stats(t).PackageListeners == 1 })
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("watch error = %v, want nil on cancel", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not exit on cancel")
	}
}

func TestWatch_Usage(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.run(t, "watch"); err == nil {
		t.Error("watch without an interface should fail")
	}
	if _, err := env.run(t, "watch", "not-a-name"); err == nil {
		t.Error("watch of an invalid name should be refused")
	}
}
