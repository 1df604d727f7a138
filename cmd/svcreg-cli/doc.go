// Package main provides the entry point for svcreg-cli.
//
// The CLI talks to a running registry over its RPC socket and admin HTTP
// server:
//
//   - list, get, transport and manifest query the registry
//   - dump prints every entry, passthrough-only ones included
//   - watch streams registration notifications
//   - admin reads health, readiness, counters and build status
//
// Usage:
//
//	svcreg-cli [global flags] command [flags] [args]
//	svcreg-cli -o json list
//	svcreg-cli watch android.hardware.foo@1.0::IFoo
package main
