package logctx

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ctxKey string

const (
	loggerKey      ctxKey = "logger"
	traceIDKey     ctxKey = "traceID"
	workspaceIDKey ctxKey = "workspace_id"
)

// GinLoggerKey is the gin.Context key the request logger is stored under.
const GinLoggerKey = "logger"

// WithLogger attaches l to ctx.
func WithLogger(ctx context.Context, l *zap.SugaredLogger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// WithTraceID attaches a trace id to ctx.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceID returns the trace id stored on ctx, if any.
func TraceID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	s, _ := ctx.Value(traceIDKey).(string)
	return s
}

// WithWorkspace tags ctx so every log line of a lifecycle run carries the
// workspace id.
func WithWorkspace(ctx context.Context, workspaceID string) context.Context {
	return context.WithValue(ctx, workspaceIDKey, workspaceID)
}

// FromGin returns a request-scoped logger from gin.Context if present,
// otherwise returns the provided base logger.
func FromGin(c *gin.Context, base *zap.SugaredLogger) *zap.SugaredLogger {
	if c == nil {
		return base
	}
	if l, ok := c.Get(GinLoggerKey); ok {
		if lg, ok := l.(*zap.SugaredLogger); ok && lg != nil {
			return lg
		}
	}
	return FromCtx(c.Request.Context(), base)
}

// FromCtx returns the logger set on ctx, enriched with workspace_id when
// present. Without one it enriches base with trace_id/workspace_id.
func FromCtx(ctx context.Context, base *zap.SugaredLogger) *zap.SugaredLogger {
	if ctx == nil {
		return base
	}
	lg := base
	if l, ok := ctx.Value(loggerKey).(*zap.SugaredLogger); ok && l != nil {
		lg = l
	} else if tid := TraceID(ctx); tid != "" {
		lg = lg.With("trace_id", tid)
	}
	if wid, ok := ctx.Value(workspaceIDKey).(string); ok && wid != "" {
		lg = lg.With("workspace_id", wid)
	}
	return lg
}
