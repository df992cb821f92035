package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m))
	return m
}

func TestLoggerInjectsTraceIDs(t *testing.T) {
	var buf bytes.Buffer
	level.Set(slog.LevelInfo)
	l := newLogger(Config{Service: "versiond", Module: "test"}, &buf)

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16},
		SpanID:     trace.SpanID{1, 2, 3, 4, 5, 6, 7, 8},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	l.InfoContext(ctx, "hello", "k", 1)

	m := decodeLine(t, &buf)
	assert.Equal(t, "hello", m["msg"])
	assert.Equal(t, "versiond", m["service"])
	assert.Equal(t, sc.TraceID().String(), m["trace_id"])
	assert.Equal(t, sc.SpanID().String(), m["span_id"])
	assert.Contains(t, m, "timestamp")
}

func TestSetLevelAffectsExistingLoggers(t *testing.T) {
	var buf bytes.Buffer
	level.Set(slog.LevelInfo)
	t.Cleanup(func() { level.Set(slog.LevelInfo) })
	l := newLogger(Config{Service: "s", Module: "m"}, &buf)

	l.Debug("hidden")
	assert.Zero(t, buf.Len())

	SetLevel("debug")
	l.Debug("shown")
	assert.Equal(t, "shown", decodeLine(t, &buf)["msg"])
	assert.Equal(t, slog.LevelDebug, Level())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARN"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

func TestFanoutRespectsPerOutputLevels(t *testing.T) {
	var info, errs bytes.Buffer
	h := newMultiHandler(
		slog.NewJSONHandler(&info, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewJSONHandler(&errs, &slog.HandlerOptions{Level: slog.LevelError}),
	)
	l := slog.New(h).With("module", "arena").WithGroup("op")

	l.Info("built", "nodes", 15)
	assert.Zero(t, errs.Len())
	m := decodeLine(t, &info)
	assert.Equal(t, "arena", m["module"])
	assert.Equal(t, map[string]any{"nodes": float64(15)}, m["op"])

	info.Reset()
	l.Error("exhausted")
	assert.Equal(t, "exhausted", decodeLine(t, &info)["msg"])
	assert.Equal(t, "exhausted", decodeLine(t, &errs)["msg"])

	assert.False(t, h.Enabled(context.Background(), slog.LevelDebug))
}
