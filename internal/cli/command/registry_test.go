package command

import (
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/urfave/cli/v2"

	"github.com/yndnr/svcreg-go/internal/core/domain"
)

func decode[T any](t *testing.T, out string) T {
	t.Helper()
	var v T
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	return v
}

func TestPing(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "-o", "json", "ping")
	if err != nil {
		t.Fatalf("ping error = %v", err)
	}
	got := decode[pingResult](t, out)
	if got.Reply != "PONG" {
		t.Errorf("Reply = %q, want PONG", got.Reply)
	}
	if got.PID != os.Getpid() || got.Label != testLabel {
		t.Errorf("identity = %d %q, want %d %q", got.PID, got.Label, os.Getpid(), testLabel)
	}
	if got.Target != env.socket {
		t.Errorf("Target = %q, want %q", got.Target, env.socket)
	}

	out, err = env.run(t, "-o", "json", "ping", "hello")
	if err != nil {
		t.Fatal(err)
	}
	if got := decode[pingResult](t, out); got.Reply != "hello" {
		t.Errorf("Reply = %q, want hello", got.Reply)
	}
}

func TestPing_Unreachable(t *testing.T) {
	env := newTestEnv(t)
	env.socket = "unix://" + t.TempDir() + "/missing.sock"

	if _, err := env.run(t, "ping"); err == nil {
		t.Fatal("ping against a missing socket should fail")
	}
}

func TestList(t *testing.T) {
	env := newTestEnv(t)
	env.provide(t, "default", fooV11, fooV10)
	env.provide(t, "backup", fooV10)

	out, err := env.run(t, "-o", "json", "list")
	if err != nil {
		t.Fatalf("list error = %v", err)
	}
	want := []serviceRow{
		{Interface: fooV10, Instance: "backup"},
		{Interface: fooV10, Instance: "default"},
		{Interface: fooV11, Instance: "default"},
	}
	if diff := cmp.Diff(want, decode[[]serviceRow](t, out)); diff != "" {
		t.Errorf("list mismatch (-want +got):\n%s", diff)
	}

	out, err = env.run(t, "-o", "json", "list", "--interface", fooV11)
	if err != nil {
		t.Fatal(err)
	}
	want = []serviceRow{{Interface: fooV11, Instance: "default"}}
	if diff := cmp.Diff(want, decode[[]serviceRow](t, out)); diff != "" {
		t.Errorf("list --interface mismatch (-want +got):\n%s", diff)
	}
}

func TestList_Table(t *testing.T) {
	env := newTestEnv(t)
	env.provide(t, "default", fooV10)

	out, err := env.run(t, "list")
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("table = %q, want header and one row", out)
	}
	if !strings.HasPrefix(lines[0], "INTERFACE") || !strings.Contains(lines[1], fooV10) {
		t.Errorf("table = %q", out)
	}

	out, err = env.run(t, "--no-headers", "list")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out, "INTERFACE") {
		t.Errorf("--no-headers output = %q", out)
	}
}

func TestGet(t *testing.T) {
	env := newTestEnv(t)
	ref := env.provide(t, "default", fooV11, fooV10)

	tests := []struct {
		name     string
		args     []string
		want     getResult
		exitCode int
	}{
		{
			name: "default instance",
			args: []string{"get", fooV10},
			want: getResult{Interface: fooV10, Instance: "default", Handle: ref},
		},
		{
			name: "explicit instance",
			args: []string{"get", fooV11, "default"},
			want: getResult{Interface: fooV11, Instance: "default", Handle: ref},
		},
		{name: "missing instance", args: []string{"get", fooV10, "other"}, exitCode: 1},
		{name: "no arguments", args: []string{"get"}, exitCode: 2},
		{name: "too many arguments", args: []string{"get", fooV10, "a", "b"}, exitCode: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := env.run(t, append([]string{"-o", "json"}, tt.args...)...)
			if tt.exitCode != 0 {
				var ec cli.ExitCoder
				if !errors.As(err, &ec) || ec.ExitCode() != tt.exitCode {
					t.Fatalf("error = %v, want exit code %d", err, tt.exitCode)
				}
				return
			}
			if err != nil {
				t.Fatalf("error = %v", err)
			}
			if diff := cmp.Diff(tt.want, decode[getResult](t, out)); diff != "" {
				t.Errorf("get mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestGet_InvalidNameIsMiss(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, "get", "not-a-name")
	var ec cli.ExitCoder
	if !errors.As(err, &ec) || !strings.Contains(err.Error(), "not found") {
		t.Errorf("error = %v, want not found", err)
	}
}

func TestTransport(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "-o", "json", "transport", fooV10)
	if err != nil {
		t.Fatal(err)
	}
	want := transportResult{Interface: fooV10, Instance: "default", Transport: "empty"}
	if diff := cmp.Diff(want, decode[transportResult](t, out)); diff != "" {
		t.Errorf("transport mismatch (-want +got):\n%s", diff)
	}
}

func TestDump(t *testing.T) {
	env := newTestEnv(t)
	env.provide(t, "default", fooV11, fooV10)

	out, err := env.run(t, "-o", "json", "dump")
	if err != nil {
		t.Fatalf("dump error = %v", err)
	}
	want := []domain.InstanceDebugInfo{
		{PID: os.Getpid(), Interface: fooV10, Instance: "default"},
		{PID: os.Getpid(), Interface: fooV11, Instance: "default"},
	}
	opts := cmpopts.IgnoreFields(domain.InstanceDebugInfo{}, "ClientPIDs")
	if diff := cmp.Diff(want, decode[[]domain.InstanceDebugInfo](t, out), opts); diff != "" {
		t.Errorf("dump mismatch (-want +got):\n%s", diff)
	}

	out, err = env.run(t, "-o", "json", "dump", "-i", "vendor.test.foo@1.1")
	if err != nil {
		t.Fatal(err)
	}
	if got := decode[[]domain.InstanceDebugInfo](t, out); len(got) != 1 || got[0].Interface != fooV11 {
		t.Errorf("filtered dump = %+v", got)
	}

	out, err = env.run(t, "dump")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "PID") || !strings.Contains(out, fooV11) {
		t.Errorf("dump table = %q", out)
	}
}

func TestManifest(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "-o", "json", "manifest", fooV10)
	if err != nil {
		t.Fatal(err)
	}
	if got := decode[[]serviceRow](t, out); len(got) != 0 {
		t.Errorf("manifest without manifests = %+v", got)
	}

	_, err = env.run(t, "manifest")
	var ec cli.ExitCoder
	if !errors.As(err, &ec) || ec.ExitCode() != 2 {
		t.Errorf("manifest without argument error = %v", err)
	}
}
