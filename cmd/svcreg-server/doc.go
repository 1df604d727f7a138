// Package main provides the entry point for svcreg-server.
//
// The server is the name-based service registry. It provides:
//
//   - the RPC socket services register on and clients look them up through
//   - notifications to subscribers when matching services register
//   - token mapping for services passed between processes
//   - an admin HTTP server for health, metrics and debug dumps
//
// Usage:
//
//	svcreg-server [flags]
//	svcreg-server --config /etc/svcreg/server.yaml
//
// SIGHUP reloads the label contexts and policy files; they are also
// reloaded when they change on disk.
package main
