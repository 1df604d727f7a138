package logger

import (
	"context"
	"log/slog"
)

type contextKey string

const (
	loggerKey contextKey = "svcreg.logger"
	connIDKey contextKey = "svcreg.conn_id"
)

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext extracts the logger from context.
// Returns slog.Default() if none is set.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}

// WithConnID adds a connection ID to the context.
func WithConnID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, connIDKey, id)
}

// ConnIDFromContext extracts the connection ID from context.
func ConnIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(connIDKey).(string); ok {
		return id
	}
	return ""
}

// L is FromContext enriched with the connection ID, if any.
func L(ctx context.Context) *slog.Logger {
	l := FromContext(ctx)
	if id := ConnIDFromContext(ctx); id != "" {
		l = l.With("conn_id", id)
	}
	return l
}
