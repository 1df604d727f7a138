// Package command provides CLI command definitions for svcreg-cli.
//
// This package defines all CLI commands using urfave/cli/v2:
//
//   - root.go: App, global flags and shared helpers
//   - registry.go: ping, list, get, transport, dump and manifest
//   - watch.go: streaming registration notifications
//   - admin.go: admin HTTP endpoints
//   - config.go: CLI configuration file
//
// Registry commands talk to the RESP socket; admin commands use the
// admin HTTP server.
package command
