package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/yndnr/svcreg-go/internal/core/service"
	"github.com/yndnr/svcreg-go/internal/infra/buildinfo"
	"github.com/yndnr/svcreg-go/internal/infra/confloader"
	"github.com/yndnr/svcreg-go/internal/infra/identity"
	"github.com/yndnr/svcreg-go/internal/infra/manifest"
	"github.com/yndnr/svcreg-go/internal/infra/shutdown"
	"github.com/yndnr/svcreg-go/internal/infra/starter"
	"github.com/yndnr/svcreg-go/internal/infra/tlsroots"
	"github.com/yndnr/svcreg-go/internal/server/config"
	"github.com/yndnr/svcreg-go/internal/server/httpserver"
	"github.com/yndnr/svcreg-go/internal/server/rpcserver"
	"github.com/yndnr/svcreg-go/internal/telemetry/logger"
	"github.com/yndnr/svcreg-go/internal/telemetry/metric"
	"github.com/yndnr/svcreg-go/pkg/token"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	info := buildinfo.Get()
	if *showVersion {
		fmt.Printf("svcreg-server %s\n", info.String())
		return nil
	}

	cfg, origins, err := loadConfig(*configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger.SetDefault(log)

	log.Info("starting svcreg-server",
		"version", info.Version,
		"commit", info.Commit,
		"config", *configFile)
	log.Debug("effective configuration", "config", config.Sanitize(cfg), "origins", origins)

	labels, err := service.LoadFileLabelMap(cfg.Security.ContextsFile)
	if err != nil {
		return fmt.Errorf("load label contexts: %w", err)
	}
	policy, err := service.LoadFilePolicy(cfg.Security.PolicyFile)
	if err != nil {
		return fmt.Errorf("load policy: %w", err)
	}
	oracle, err := manifest.LoadFiles(cfg.Manifest.Files)
	if err != nil {
		return fmt.Errorf("load manifests: %w", err)
	}
	log.Info("manifests loaded", "files", len(cfg.Manifest.Files), "hals", oracle.HALCount())

	secret, err := tokenSecret(cfg)
	if err != nil {
		return fmt.Errorf("token secret: %w", err)
	}

	metrics := metric.NewRegistry()

	// Pseudo pids of TCP peers come first, then the registry's own pid,
	// then procfs.
	pseudo := identity.NewStaticResolver("")
	overrides := identity.NewStaticResolver("")
	overrides.Set(os.Getpid(), cfg.Security.SelfLabel)
	resolver := identity.Chain{
		pseudo,
		overrides,
		identity.ProcResolver{Fallback: cfg.Security.DefaultLabel},
	}

	nodes := rpcserver.NewNodeTable(0, log)
	acl := service.NewAccessControl(service.AccessControlConfig{
		Labels:    labels,
		Policy:    policy,
		Identity:  resolver,
		Recorder:  metrics,
		SelfLabel: cfg.Security.SelfLabel,
		Logger:    log,
	})
	manager := service.NewServiceManager(service.ManagerConfig{
		Binder:   nodes,
		Access:   acl,
		Manifest: oracle,
		Starter:  newStarter(cfg, log),
		Recorder: metrics,
		Logger:   log,
	})
	tokens, err := service.NewTokenManager(secret, metrics, log)
	if err != nil {
		return fmt.Errorf("init tokens: %w", err)
	}
	dispatcher := service.NewDispatcher(manager, tokens, nodes.Deaths(), log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		if err := dispatcher.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error("registry loop stopped", "error", err)
		}
	}()

	metrics.MustRegister(metric.NewCollector(snapshotFunc(dispatcher), 2*time.Second, log))

	rpcCfg, err := rpcConfig(cfg)
	if err != nil {
		return err
	}
	rpcSrv := rpcserver.New(rpcCfg, rpcserver.Deps{
		Dispatcher: dispatcher,
		Nodes:      nodes,
		Identity:   resolver,
		PseudoPIDs: pseudo,
		Metrics:    metrics,
	}, log)
	if err := rpcSrv.Start(ctx); err != nil {
		return fmt.Errorf("start rpc server: %w", err)
	}
	for _, addr := range rpcSrv.Addrs() {
		log.Info("rpc server listening", "network", addr.Network(), "addr", addr.String())
	}

	var ready atomic.Bool
	shutdownHandler := shutdown.NewHandler(cfg.Server.ShutdownTimeout, log)

	// Hooks run in reverse order: admin, watcher, rpc, nodes, registry.
	shutdownHandler.OnShutdown("registry", func(context.Context) error {
		cancel()
		<-dispatcher.Done()
		return nil
	})
	shutdownHandler.OnShutdown("nodes", func(context.Context) error {
		nodes.Close()
		return nil
	})
	shutdownHandler.OnShutdown("rpc server", func(ctx context.Context) error {
		ready.Store(false)
		return rpcSrv.Shutdown(ctx)
	})

	watcher, err := confloader.NewWatcher(confloader.WithWatcherLogger(log))
	if err != nil {
		return fmt.Errorf("init file watcher: %w", err)
	}
	for _, r := range []confloader.Reloader{labels, policy} {
		if err := watcher.WatchReloader(r); err != nil {
			log.Warn("file not watched, SIGHUP still reloads it", "path", r.Path(), "error", err)
		}
		shutdownHandler.OnReload(r.Path(), r.Reload)
	}
	watcher.StartAsync()
	shutdownHandler.OnShutdown("file watcher", func(context.Context) error {
		return watcher.Stop()
	})

	if cfg.Server.Admin.Enabled {
		rc := httpserver.DefaultRouterConfig()
		rc.Registry = dispatcher
		rc.Metrics = metrics.Handler()
		rc.SelfPID = os.Getpid()
		rc.Ready = ready.Load
		rc.Logger = log
		rc.AllowList = cfg.Server.Admin.AllowList
		admin := httpserver.New(cfg.Server.Admin.Addr, httpserver.NewRouter(rc))
		if cfg.Server.Admin.TLSEnabled() {
			tlsCfg, err := adminTLS(cfg.Server.Admin, watcher, shutdownHandler, log)
			if err != nil {
				return fmt.Errorf("admin tls: %w", err)
			}
			admin.SetTLSConfig(tlsCfg)
		}
		if err := admin.Listen(); err != nil {
			return fmt.Errorf("start admin server: %w", err)
		}
		log.Info("admin server listening", "addr", admin.Addr(), "tls", cfg.Server.Admin.TLSEnabled())
		go func() {
			if err := admin.Serve(); err != nil {
				log.Error("admin server error", "error", err)
			}
		}()
		shutdownHandler.OnShutdown("admin server", admin.Shutdown)
	}

	ready.Store(true)
	log.Info("server started")
	if err := shutdownHandler.Wait(context.Background()); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	log.Info("server stopped gracefully")
	return nil
}

// loadConfig layers the config file, its conf.d drop-ins and the
// environment over the defaults. It also returns where each key came from.
func loadConfig(configFile string) (*config.ServerConfig, map[string]string, error) {
	cfg := config.Default()

	opts := []confloader.Option{}
	if configFile != "" {
		opts = append(opts,
			confloader.WithConfigFile(configFile),
			confloader.WithDropInDir(filepath.Join(filepath.Dir(configFile), "conf.d")))
	}
	loader := confloader.NewLoader(opts...)
	if err := loader.Load(cfg); err != nil {
		return nil, nil, err
	}

	if err := config.Verify(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, loader.Origins(), nil
}

// tokenSecret derives the signing secret from the configured master
// secret, or makes a random one.
func tokenSecret(cfg *config.ServerConfig) ([]byte, error) {
	master, err := cfg.Security.MasterSecret()
	if err != nil {
		return nil, err
	}
	if master == nil {
		return token.NewSecret()
	}
	return token.DeriveSecret(master)
}

// adminTLS loads the admin key pair and registers it for reload on change
// and on SIGHUP.
func adminTLS(cfg config.AdminConfig, watcher *confloader.Watcher, sh *shutdown.Handler, log *slog.Logger) (*tls.Config, error) {
	kp, err := tlsroots.LoadKeyPair(cfg.TLSCertFile, cfg.TLSKeyFile, log)
	if err != nil {
		return nil, err
	}
	for _, f := range kp.Files() {
		if err := watcher.WatchReloader(f); err != nil {
			log.Warn("file not watched, SIGHUP still reloads it", "path", f.Path(), "error", err)
		}
	}
	sh.OnReload("admin certificate", kp.Reload)

	var clientCAs *x509.CertPool
	if cfg.ClientCAFile != "" {
		if clientCAs, err = tlsroots.LoadPool(cfg.ClientCAFile); err != nil {
			return nil, err
		}
	}
	return tlsroots.ServerConfig(kp, clientCAs), nil
}

func newStarter(cfg *config.ServerConfig, log *slog.Logger) service.Starter {
	if len(cfg.Starter.Command) == 0 {
		return starter.NewLogStarter(log)
	}
	s, err := starter.NewCommandStarter(starter.Config{
		Command: cfg.Starter.Command,
		Rate:    cfg.Starter.Rate,
		Burst:   cfg.Starter.Burst,
		Timeout: cfg.Starter.Timeout,
	}, log)
	if err != nil {
		log.Warn("start command unusable, lookups will only log", "error", err)
		return starter.NewLogStarter(log)
	}
	return s
}

func rpcConfig(cfg *config.ServerConfig) (*rpcserver.Config, error) {
	mode, err := cfg.Server.Socket.SocketMode()
	if err != nil {
		return nil, err
	}
	rc := rpcserver.DefaultConfig()
	rc.SocketPath = cfg.Server.Socket.Path
	rc.SocketMode = mode
	if cfg.Server.TCP.Enabled {
		rc.TCPAddr = cfg.Server.TCP.Addr
		rc.TCPLabel = cfg.Server.TCP.Label
	}
	rc.NotifyTimeout = cfg.Server.NotifyTimeout
	rc.Rate = cfg.Server.Rate
	rc.Burst = cfg.Server.Burst
	rc.MaxConnections = cfg.Server.MaxConnections
	return rc, nil
}

func snapshotFunc(d *service.Dispatcher) metric.SnapshotFunc {
	return func(ctx context.Context) (metric.Snapshot, error) {
		var s metric.Snapshot
		err := d.Do(ctx, func(m *service.ServiceManager, t *service.TokenManager) {
			st := m.Stats()
			s = metric.Snapshot{
				Interfaces:        st.Interfaces,
				Entries:           st.Entries,
				Live:              st.Live,
				PackageListeners:  st.PackageListeners,
				InstanceListeners: st.InstanceListeners,
				Tokens:            t.Len(),
			}
		})
		return s, err
	}
}
