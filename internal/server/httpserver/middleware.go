package httpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/time/rate"

	"github.com/yndnr/svcreg-go/internal/core/domain"
)

// Context keys for request-scoped values.
type contextKey string

const (
	// ContextKeyRequestID is the context key for request ID.
	ContextKeyRequestID contextKey = "request_id"

	// ContextKeyStartTime is the context key for request start time.
	ContextKeyStartTime contextKey = "start_time"
)

// Middleware wraps an http.Handler with additional functionality.
type Middleware func(http.Handler) http.Handler

// Chain chains multiple middlewares together. The first one runs first.
func Chain(h http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// RequestID adds a unique request ID to each request.
//
// An incoming X-Request-ID is kept. The ID is also written back onto the
// request headers so handlers can read it without this package.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = "req-" + ulid.Make().String()
				r.Header.Set("X-Request-ID", requestID)
			}

			w.Header().Set("X-Request-ID", requestID)

			ctx := context.WithValue(r.Context(), ContextKeyRequestID, requestID)
			ctx = context.WithValue(ctx, ContextKeyStartTime, time.Now())

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RateLimit applies rate limiting per client IP.
func RateLimit(requestsPerSecond float64) Middleware {
	var mu sync.RWMutex
	limiters := make(map[string]*rate.Limiter)
	burst := int(math.Ceil(requestsPerSecond))
	if burst < 1 {
		burst = 1
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := remoteIP(r)

			mu.RLock()
			l, ok := limiters[ip]
			mu.RUnlock()

			if !ok {
				mu.Lock()
				if l, ok = limiters[ip]; !ok {
					l = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
					limiters[ip] = l
				}
				mu.Unlock()
			}

			if !l.Allow() {
				w.Header().Set("Retry-After", "1")
				writeError(w, domain.ErrRateLimited.Code, "too many requests")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// AccessLog logs every request once it completes.
func AccessLog(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			startTime, ok := r.Context().Value(ContextKeyStartTime).(time.Time)
			if !ok {
				startTime = time.Now()
			}

			attrs := []any{
				"request_id", GetRequestIDFromContext(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.statusCode,
				"duration_ms", time.Since(startTime).Milliseconds(),
				"client_ip", getClientIP(r),
			}

			switch {
			case wrapped.statusCode >= 500:
				logger.Error("request completed with error", attrs...)
			case wrapped.statusCode >= 400:
				logger.Warn("request completed with client error", attrs...)
			default:
				logger.Debug("request completed", attrs...)
			}
		})
	}
}

// Recover recovers from panics and returns 500 error.
func Recover(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler {
						panic(err)
					}
					logger.Error("panic recovered",
						"request_id", GetRequestIDFromContext(r.Context()),
						"error", err,
						"path", r.URL.Path,
					)
					writeError(w, domain.ErrInternal.Code, "internal server error")
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// NetworkACLConfig holds configuration for network ACL middleware.
type NetworkACLConfig struct {
	// AllowList is the list of allowed IP/CIDR entries.
	// Empty list means no restriction.
	AllowList []string

	// Logger for logging denied requests.
	Logger *slog.Logger
}

// NetworkACL creates a middleware that checks the peer IP against an
// allowlist. Forwarding headers are ignored.
func NetworkACL(cfg *NetworkACLConfig) Middleware {
	var networks []*net.IPNet
	var singleIPs []net.IP

	for _, entry := range cfg.AllowList {
		if strings.Contains(entry, "/") {
			_, ipNet, err := net.ParseCIDR(entry)
			if err != nil {
				if cfg.Logger != nil {
					cfg.Logger.Warn("invalid CIDR in allowlist", "entry", entry, "error", err)
				}
				continue
			}
			networks = append(networks, ipNet)
		} else {
			ip := net.ParseIP(entry)
			if ip == nil {
				if cfg.Logger != nil {
					cfg.Logger.Warn("invalid IP in allowlist", "entry", entry)
				}
				continue
			}
			singleIPs = append(singleIPs, ip)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(networks) == 0 && len(singleIPs) == 0 {
				next.ServeHTTP(w, r)
				return
			}

			clientIP := remoteIP(r)
			ip := net.ParseIP(clientIP)
			if ip == nil {
				writeError(w, domain.ErrPermissionDenied.Code, "invalid client IP")
				return
			}

			for _, allowedIP := range singleIPs {
				if allowedIP.Equal(ip) {
					next.ServeHTTP(w, r)
					return
				}
			}
			for _, network := range networks {
				if network.Contains(ip) {
					next.ServeHTTP(w, r)
					return
				}
			}

			if cfg.Logger != nil {
				cfg.Logger.Warn("request denied by network ACL",
					"client_ip", clientIP,
					"path", r.URL.Path,
				)
			}
			writeError(w, domain.ErrPermissionDenied.Code, "IP not in allowlist")
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

// GetRequestIDFromContext retrieves the request ID from context.
func GetRequestIDFromContext(ctx context.Context) string {
	if requestID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return requestID
	}
	return ""
}

// writeError writes a middleware error response.
func writeError(w http.ResponseWriter, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Error-Code", code)

	status := http.StatusInternalServerError
	switch {
	case strings.Contains(code, "-403"):
		status = http.StatusForbidden
	case strings.HasSuffix(code, "-4290"):
		status = http.StatusTooManyRequests
	}

	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"code":    code,
		"message": message,
	})
}

// getClientIP extracts the client IP from the request, trusting forwarding
// headers. Use it for logs only.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return remoteIP(r)
}

// remoteIP returns the host part of the peer address.
func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
