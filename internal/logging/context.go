package logging

import (
	"context"

	"github.com/rs/zerolog"
)

type loggerKey struct{}

// WithLogger stores logger on ctx.
func WithLogger(ctx context.Context, logger *zerolog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext returns the logger stored on ctx, or the process logger.
func FromContext(ctx context.Context) *zerolog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey{}).(*zerolog.Logger); ok && l != nil {
			return l
		}
	}
	return Default()
}

// WithSession tags the context logger with a monitor session id.
func WithSession(ctx context.Context, sessionID string) context.Context {
	l := FromContext(ctx).With().Str("session", sessionID).Logger()
	return WithLogger(ctx, &l)
}
