package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/couchcryptid/air-quality-analysis/internal/config"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "info", "json")

	logger.Debug("hidden")
	logger.Info("loaded", "rows", 3)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "loaded", entry["msg"])
	assert.InDelta(t, 3, entry["rows"], 0)
}

func TestNewLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "debug", "text")

	logger.Debug("imputed", "column", "co")

	assert.Contains(t, buf.String(), "msg=imputed")
	assert.Contains(t, buf.String(), "column=co")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("whatever"))
}

func TestNewMetrics_IndependentRegistries(t *testing.T) {
	a := NewMetrics()
	b := NewMetrics()

	a.RowsLoaded.Add(5)
	a.SinkErrors.WithLabelValues("chart").Inc()

	assert.InDelta(t, 5, testutil.ToFloat64(a.RowsLoaded), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(b.RowsLoaded), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(a.SinkErrors.WithLabelValues("chart")), 0)
}

func TestMetrics_Push(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := NewMetrics()
	m.RowsLoaded.Add(1)

	require.NoError(t, m.Push(context.Background(), srv.URL, "airq"))
	assert.Equal(t, "/metrics/job/airq", gotPath)
}

func TestSetupTracing_Disabled(t *testing.T) {
	shutdown, err := SetupTracing(&config.Config{}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestSetupTracing_Stdout(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	var buf bytes.Buffer
	shutdown, err := SetupTracing(&config.Config{TraceStdout: true}, &buf)
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(context.Background(), "clean")
	span.End()
	require.NoError(t, shutdown(context.Background()))

	assert.Contains(t, buf.String(), `"Name": "clean"`)
}
