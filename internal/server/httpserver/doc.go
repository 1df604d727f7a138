// Package httpserver provides the admin HTTP/HTTPS server of the registry.
//
// Routes:
//
//   - Probes: /health, /ready
//   - Metrics: /metrics (Prometheus)
//   - Debug: /debug/services, /debug/stats, /debug/status
//
// The debug routes sit behind an optional IP/CIDR allowlist and a per-IP
// rate limit. Every route gets RequestID and Recover. HTTPS certificates
// come from tlsroots and are reloaded without a restart.
//
// Registration traffic never goes through this server.
package httpserver
