package httpserver

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/yndnr/svcreg-go/internal/server/httpserver/handler"
)

// RouterConfig holds configuration for the admin router.
type RouterConfig struct {
	// Registry serves dump and stats calls.
	Registry handler.Registry

	// Metrics serves /metrics. Nil leaves the route unregistered.
	Metrics http.Handler

	// SelfPID is the caller pid of dump and stats calls.
	SelfPID int

	// Ready reports readiness for /ready. Nil means always ready.
	Ready func() bool

	// Timeout bounds each registry call.
	Timeout time.Duration

	// Logger for request logging.
	Logger *slog.Logger

	// AllowList is the IP/CIDR allowlist for /debug (empty = no restriction).
	AllowList []string

	// GlobalRateLimit is the rate limit per client IP (requests/second).
	GlobalRateLimit float64

	// EnableAccessLog logs every request.
	EnableAccessLog bool
}

// DefaultRouterConfig returns default router configuration.
func DefaultRouterConfig() *RouterConfig {
	return &RouterConfig{
		Timeout:         handler.DefaultTimeout,
		GlobalRateLimit: 20,
	}
}

// NewRouter creates the admin router with all routes and middleware.
func NewRouter(cfg *RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	h := handler.New(handler.Config{
		Registry: cfg.Registry,
		SelfPID:  cfg.SelfPID,
		Ready:    cfg.Ready,
		Timeout:  cfg.Timeout,
		Logger:   logger,
	})

	base := []Middleware{Recover(logger), RequestID()}
	if cfg.EnableAccessLog {
		base = append(base, AccessLog(logger))
	}

	mux := http.NewServeMux()

	// Probes stay open so orchestrators can always reach them.
	probes := Chain(h, base...)
	mux.Handle("GET /health", probes)
	mux.Handle("GET /ready", probes)

	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", Chain(cfg.Metrics, base...))
	}

	debug := append([]Middleware{}, base...)
	if len(cfg.AllowList) > 0 {
		debug = append(debug, NetworkACL(&NetworkACLConfig{
			AllowList: cfg.AllowList,
			Logger:    logger,
		}))
	}
	if cfg.GlobalRateLimit > 0 {
		debug = append(debug, RateLimit(cfg.GlobalRateLimit))
	}
	debugHandler := Chain(h, debug...)
	mux.Handle("GET /debug/services", debugHandler)
	mux.Handle("GET /debug/stats", debugHandler)
	mux.Handle("GET /debug/status", debugHandler)

	return mux
}
