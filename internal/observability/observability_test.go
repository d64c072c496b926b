package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name    string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{" error ", slog.LevelError, false},
		{"trace", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLevel(tt.name)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(LogConfig{Level: "warn", Format: "json"}, &buf)
	require.NoError(t, err)

	logger.Info("dropped")
	logger.Warn("kept", "batch_id", "b-1")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "kept", rec["msg"])
	assert.Equal(t, "b-1", rec["batch_id"])
}

func TestNewLoggerText(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(LogConfig{}, &buf)
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "msg=shown")
}

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	_, err := NewLogger(LogConfig{Level: "loud"}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestSetupTracingDisabled(t *testing.T) {
	shutdown, err := SetupTracing(t.Context(), TracingConfig{}, nil)
	require.NoError(t, err)
	assert.NoError(t, shutdown(t.Context()))
}

func TestNewTracerProviderCarriesServiceResource(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	cfg := DefaultTracingConfig("wuieval-test")
	tp, err := NewTracerProvider(t.Context(), cfg, sdktrace.WithSyncer(exp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	_, span := tp.Tracer("test").Start(t.Context(), "op")
	span.End()

	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	assert.Contains(t, spans[0].Resource.Attributes(), attribute.String("service.name", "wuieval-test"))
}

func TestNewTracerProviderZeroRatioDropsRootSpans(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	cfg := DefaultTracingConfig("wuieval-test")
	cfg.SampleRatio = 0
	tp, err := NewTracerProvider(t.Context(), cfg, sdktrace.WithSyncer(exp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	_, span := tp.Tracer("test").Start(t.Context(), "op")
	span.End()
	assert.Empty(t, exp.GetSpans())
}

func TestShutdownReportsError(t *testing.T) {
	boom := errors.New("flush failed")
	err := Shutdown(func(context.Context) error { return boom }, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, Shutdown(nil, nil))
}
