package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/yndnr/svcreg-go/internal/core/domain"
	"github.com/yndnr/svcreg-go/internal/core/service"
)

// DefaultTimeout bounds a single registry call made by a handler.
const DefaultTimeout = 2 * time.Second

// Registry runs a closure on the registry loop.
type Registry interface {
	Do(ctx context.Context, fn func(m *service.ServiceManager, t *service.TokenManager)) error
}

// Config holds what the handlers need.
type Config struct {
	Registry Registry

	// SelfPID is the pid used as the caller of dump and stats calls.
	SelfPID int

	// Ready reports whether the registry accepts traffic. Nil means always.
	Ready func() bool

	// Timeout bounds each registry call. Zero means DefaultTimeout.
	Timeout time.Duration

	Logger *slog.Logger
}

// Handler serves the admin endpoints.
type Handler struct {
	registry  Registry
	selfPID   int
	ready     func() bool
	timeout   time.Duration
	startedAt time.Time
	logger    *slog.Logger
	mux       *http.ServeMux
}

// New creates a Handler.
func New(cfg Config) *Handler {
	h := &Handler{
		registry:  cfg.Registry,
		selfPID:   cfg.SelfPID,
		ready:     cfg.Ready,
		timeout:   cfg.Timeout,
		startedAt: time.Now(),
		logger:    cfg.Logger,
		mux:       http.NewServeMux(),
	}
	if h.timeout <= 0 {
		h.timeout = DefaultTimeout
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}

	h.registerRoutes()
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	h.mux.HandleFunc("GET /health", h.handleHealth)
	h.mux.HandleFunc("GET /ready", h.handleReady)

	h.mux.HandleFunc("GET /debug/services", h.handleDump)
	h.mux.HandleFunc("GET /debug/stats", h.handleStats)
	h.mux.HandleFunc("GET /debug/status", h.handleStatus)
}

// do runs fn on the registry loop with the handler timeout.
func (h *Handler) do(r *http.Request, fn func(m *service.ServiceManager, t *service.TokenManager)) error {
	if h.registry == nil {
		return domain.ErrUnavailable.WithDetails("registry not configured")
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	err := h.registry.Do(ctx, fn)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return domain.ErrUnavailable.WithCause(err)
	}
	return err
}

func (h *Handler) caller() service.Caller {
	return service.Caller{PID: h.selfPID}
}

// writeJSON writes a JSON response with standard envelope format.
func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	requestID := getRequestID(r)
	response := NewResponse(requestID, data)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-ID", requestID)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// writeError writes an error response with standard envelope format.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) {
	requestID := getRequestID(r)
	response := NewErrorResponse(requestID, code, message, details)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Error-Code", code)
	w.Header().Set("X-Request-ID", requestID)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// getRequestID returns the request ID set by the RequestID middleware.
func getRequestID(r *http.Request) string {
	return r.Header.Get("X-Request-ID")
}

// handleServiceError converts registry errors to HTTP responses.
func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var de *domain.DomainError
	if errors.As(err, &de) {
		h.writeError(w, r, errorCodeToHTTPStatus(de.Code), de.Code, de.Error(), nil)
		return
	}

	h.logger.Error("internal error", "error", err, "path", r.URL.Path)
	h.writeError(w, r, http.StatusInternalServerError, domain.ErrInternal.Code, "internal server error", nil)
}

// errorCodeToHTTPStatus maps error codes to HTTP status codes.
func errorCodeToHTTPStatus(code string) int {
	switch {
	case strings.HasSuffix(code, "-4040"):
		return http.StatusNotFound
	case strings.HasSuffix(code, "-4290"):
		return http.StatusTooManyRequests
	case strings.HasSuffix(code, "-4000"), strings.HasSuffix(code, "-4001"), strings.HasSuffix(code, "-4002"):
		return http.StatusBadRequest
	case strings.HasSuffix(code, "-4010"):
		return http.StatusUnauthorized
	case strings.HasSuffix(code, "-4030"), strings.HasSuffix(code, "-4031"):
		return http.StatusForbidden
	case strings.HasSuffix(code, "-5030"):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
