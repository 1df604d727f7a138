package command

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/svcreg-go/internal/cli/connection"
	"github.com/yndnr/svcreg-go/internal/core/service"
	"github.com/yndnr/svcreg-go/internal/infra/identity"
	"github.com/yndnr/svcreg-go/internal/server/httpserver"
	"github.com/yndnr/svcreg-go/internal/server/rpcserver"
)

const (
	testLabel = "u:r:hal_test:s0"
	halLabel  = "u:object_r:hal_test_hwservice:s0"
	selfLabel = "u:object_r:hwservice_manager:s0"

	fooV10 = "vendor.test.foo@1.0::IFoo"
	fooV11 = "vendor.test.foo@1.1::IFoo"
)

// testEnv is a running registry with its RPC socket and admin server.
type testEnv struct {
	socket     string
	admin      string
	configPath string
	dispatcher *service.Dispatcher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	nodes := rpcserver.NewNodeTable(0, logger)
	policy := service.NewMemoryPolicy()
	policy.Grant(testLabel, halLabel, service.PermAdd, service.PermFind)
	policy.Grant(testLabel, selfLabel, service.PermList)

	resolver := identity.NewStaticResolver(testLabel)
	acl := service.NewAccessControl(service.AccessControlConfig{
		Labels:    service.NewLabelTable(map[string]string{service.DefaultLabelKey: halLabel}),
		Policy:    policy,
		Identity:  resolver,
		SelfLabel: selfLabel,
		Logger:    logger,
	})
	manager := service.NewServiceManager(service.ManagerConfig{Binder: nodes, Access: acl, Logger: logger})
	tokens, err := service.NewTokenManager(bytes.Repeat([]byte{3}, 32), nil, logger)
	if err != nil {
		t.Fatal(err)
	}
	dispatcher := service.NewDispatcher(manager, tokens, nodes.Deaths(), logger)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = dispatcher.Run(ctx) }()

	cfg := rpcserver.DefaultConfig()
	cfg.SocketPath = filepath.Join(t.TempDir(), "svcreg.sock")
	srv := rpcserver.New(cfg, rpcserver.Deps{
		Dispatcher: dispatcher,
		Nodes:      nodes,
		Identity:   resolver,
	}, logger)
	if err := srv.Start(ctx); err != nil {
		cancel()
		t.Fatalf("Start() error = %v", err)
	}

	rc := httpserver.DefaultRouterConfig()
	rc.Registry = dispatcher
	rc.SelfPID = os.Getpid()
	rc.Logger = logger
	rc.GlobalRateLimit = 0
	admin := httptest.NewServer(httpserver.NewRouter(rc))

	t.Cleanup(func() {
		admin.Close()
		sctx, scancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer scancel()
		_ = srv.Shutdown(sctx)
		nodes.Close()
		cancel()
		<-dispatcher.Done()
	})

	return &testEnv{
		socket:     "unix://" + cfg.SocketPath,
		admin:      admin.URL,
		configPath: filepath.Join(t.TempDir(), "cli.yaml"),
		dispatcher: dispatcher,
	}
}

// run executes the CLI against env and returns what it wrote.
func (e *testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return e.runContext(ctx, args...)
}

func (e *testEnv) runContext(ctx context.Context, args ...string) (string, error) {
	var out bytes.Buffer
	app := App()
	app.Writer = &out
	app.ErrWriter = io.Discard
	app.ExitErrHandler = func(*cli.Context, error) {}

	full := append([]string{"svcreg-cli",
		"--config", e.configPath,
		"--socket", e.socket,
		"--admin", e.admin,
	}, args...)
	err := app.RunContext(ctx, full)
	return out.String(), err
}

// provide registers chain under instance from a separate connection that
// stays open for the rest of the test.
func (e *testEnv) provide(t *testing.T, instance string, chain ...string) string {
	t.Helper()
	client := connection.NewSocketClient(e.socket)
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ref, err := client.Object(ctx, chain...)
	if err != nil {
		t.Fatalf("Object() error = %v", err)
	}
	v, err := client.Do(ctx, "ADD", instance, ref)
	if err != nil || v.Int != 1 {
		t.Fatalf("ADD %s = %+v, %v", instance, v, err)
	}
	return ref
}

func (e *testEnv) stats(t *testing.T) service.Stats {
	t.Helper()
	var st service.Stats
	err := e.dispatcher.Do(context.Background(), func(m *service.ServiceManager, _ *service.TokenManager) {
		st = m.Stats()
	})
	if err != nil {
		t.Fatal(err)
	}
	return st
}

// eventually polls cond until it holds.
func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
