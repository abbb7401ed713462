package logctx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestFromCtx_AddsTraceAndWorkspace(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	base := zap.New(core).Sugar()

	ctx := WithWorkspace(WithTraceID(context.Background(), "tr-1"), "ws-1")
	FromCtx(ctx, base).Info("hello")

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Equal(t, "tr-1", fields["trace_id"])
	require.Equal(t, "ws-1", fields["workspace_id"])
}

func TestFromCtx_PrefersAttachedLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	attached := zap.New(core).Sugar().With("attached", true)

	ctx := WithLogger(context.Background(), attached)
	FromCtx(ctx, zap.NewNop().Sugar()).Info("x")

	require.Len(t, logs.All(), 1)
	require.Equal(t, true, logs.All()[0].ContextMap()["attached"])
}
