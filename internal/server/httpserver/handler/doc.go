// Package handler provides the admin HTTP handlers for the registry.
//
// This package contains handlers for the admin endpoints:
//
//   - health.go: Health and readiness checks
//   - debug.go: Registry dump, counters and build information
//
// Registry state is only read through the dispatcher, with the registry's
// own process as the caller, so the list permission applies the same way
// it does for RPC clients.
package handler
