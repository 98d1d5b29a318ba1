package sweep

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// runSmallSweep runs one single-mode pass over "1".."9" with "3" rate
// limited once.
func runSmallSweep(t *testing.T, obs Observer) *Summary {
	t.Helper()
	oracle := newScriptedOracle()
	oracle.script["3"] = []Response{{RateLimited: true}, {Verified: true, Messages: []string{"yes"}}}
	client := NewClient(oracle, WithRateLimitWait(time.Millisecond), WithClientObserver(obs))
	coord := NewCoordinator(NewInMemoryStore(), client, WithObserver(obs))

	summary, err := coord.Run(context.Background(), Config{Mode: ModeSingle, MaxWidth: 1})
	require.NoError(t, err)
	return summary
}

func TestMultiObserver_ForwardsToAll(t *testing.T) {
	a, b := &countingObserver{}, &countingObserver{}
	runSmallSweep(t, &MultiObserver{Observers: []Observer{a, b}})

	for _, o := range []*countingObserver{a, b} {
		assert.Equal(t, int32(9), o.dispatches.Load())
		assert.Equal(t, int32(1), o.rateLimits.Load())
		assert.Equal(t, int32(1), o.passes.Load())
	}
}

func TestSlogObserver(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	runSmallSweep(t, NewSlogObserver(logger, slog.LevelInfo))

	out := buf.String()
	assert.Contains(t, out, `"msg":"sweep started"`)
	assert.Contains(t, out, `"msg":"candidate verified"`)
	assert.Contains(t, out, `"msg":"rate limited"`)
	assert.Contains(t, out, `"msg":"pass complete"`)
	assert.Contains(t, out, `"msg":"sweep stopped"`)
	assert.NotContains(t, out, `"msg":"store operation"`, "debug events are filtered by minLevel")
}

func TestZapObserver(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	runSmallSweep(t, NewZapObserver(zap.New(core)))

	assert.Equal(t, 9, logs.FilterMessage("candidate verified").Len())
	assert.Equal(t, 1, logs.FilterMessage("rate limited").Len())
	assert.Equal(t, 1, logs.FilterMessage("sweep started").Len())
	assert.Equal(t, 1, logs.FilterMessage("sweep stopped").Len())
	assert.NotZero(t, logs.FilterMessage("store operation").Len())

	limited := logs.FilterMessage("rate limited").All()[0]
	assert.Equal(t, "3", limited.ContextMap()["candidate"])
	assert.Equal(t, int64(0), limited.ContextMap()["worker"])
}

func TestPrometheusObserver(t *testing.T) {
	registry := prometheus.NewRegistry()
	obs := NewPrometheusObserver("test", registry)
	runSmallSweep(t, obs)

	assert.Equal(t, 8.0, testutil.ToFloat64(obs.dispatches.WithLabelValues("0", "incorrect")))
	assert.Equal(t, 1.0, testutil.ToFloat64(obs.dispatches.WithLabelValues("0", "correct")))
	assert.Equal(t, 1.0, testutil.ToFloat64(obs.rateLimits.WithLabelValues("0")))
	assert.Equal(t, 1.0, testutil.ToFloat64(obs.passes.WithLabelValues("0")))
	assert.Equal(t, 0.0, testutil.ToFloat64(obs.activeWorkers))

	families, err := registry.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["test_sweep_dispatches_total"])
	assert.True(t, names["test_sweep_store_op_duration_seconds"])
}

func TestOTelObserver(t *testing.T) {
	obs, err := NewOTelObserver(
		tracenoop.NewTracerProvider().Tracer("test"),
		metricnoop.NewMeterProvider().Meter("test"),
	)
	require.NoError(t, err)

	summary := runSmallSweep(t, obs)
	assert.Equal(t, 9, summary.Dispatched)
	assert.Empty(t, obs.runs, "run spans are ended and released")
}

func TestWorkerID(t *testing.T) {
	assert.Equal(t, -1, WorkerID(context.Background()))
	assert.Equal(t, 4, WorkerID(withWorkerID(context.Background(), 4)))
}
