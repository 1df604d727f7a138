// Package logger provides structured logging for svcreg.
//
// This package builds log/slog loggers for the server and CLI:
//
//   - logger.go: handler construction, level control, the process default
//   - context.go: carrying a logger and a connection ID through a context
//   - redact.go: masking of token text and secret-looking attributes
//
// Every component takes a *slog.Logger and falls back to slog.Default()
// when given nil; SetDefault installs the configured logger there.
package logger
