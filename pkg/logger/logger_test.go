package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	appctx "procura/internal/core/context"
)

func TestFromContextAddsTraceAndActor(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	base := NewFromZap(zap.New(core))

	ctx := appctx.WithTrace(context.Background(), &appctx.TraceContext{TraceID: "t-1", RequestID: "r-1"})
	ctx = appctx.WithUser(ctx, &appctx.UserContext{UserID: "alice"})
	ctx = WithLogger(ctx, base)

	Info(ctx, "requisition approved", "number", "REQ-2026-00001")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	fields := entry.ContextMap()
	assert.Equal(t, "requisition approved", entry.Message)
	assert.Equal(t, "t-1", fields["trace_id"])
	assert.Equal(t, "alice", fields["actor_id"])
	assert.Equal(t, "REQ-2026-00001", fields["number"])
}

func TestWithComponent(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := NewFromZap(zap.New(core)).WithComponent("ledger")

	l.Infow("reserved")
	l.Debugw("filtered out")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "ledger", logs.All()[0].ContextMap()["component"])
}

func TestWithContextAddsSpanFromOtel(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := NewFromZap(zap.New(core))

	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	}))

	l.WithContext(ctx).Infow("payment processed")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", fields["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", fields["span_id"])
	assert.NotContains(t, fields, "actor_id")
}

func TestSetDefault(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	prev := Default()
	SetDefault(NewFromZap(zap.New(core)))
	t.Cleanup(func() { SetDefault(prev) })

	Warn(context.Background(), "outbox delivery failed")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, zapcore.WarnLevel, logs.All()[0].Level)
}
