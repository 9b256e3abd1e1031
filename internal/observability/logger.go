package observability

import (
	"context"
	"log/slog"
	"os"
)

type ctxKey string

const (
	ctxKeyRequestID ctxKey = "request_id"
)

// JSON to stdout.
var logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))

func Logger() *slog.Logger {
	return logger
}

// SetLogger swaps the global logger, mostly for tests.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

// WithRequestID stores a request_id in the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, requestID)
}

// RequestID returns the request_id stored in ctx, if any.
func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	reqID, _ := ctx.Value(ctxKeyRequestID).(string)
	return reqID
}

// LoggerFromContext adds request_id if present.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	reqID := RequestID(ctx)
	if reqID == "" {
		return logger
	}
	return logger.With("request_id", reqID)
}
