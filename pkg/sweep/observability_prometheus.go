package sweep

import (
	"context"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusObserver implements Observer using Prometheus metrics.
//
// Example:
//
//	observer := sweep.NewPrometheusObserver("myapp", prometheus.DefaultRegisterer)
//	coord := sweep.NewCoordinator(store, client, sweep.WithObserver(observer))
type PrometheusObserver struct {
	dispatches      *prometheus.CounterVec
	dispatchLatency *prometheus.HistogramVec
	rateLimits      *prometheus.CounterVec
	storeLatency    *prometheus.HistogramVec
	storeErrors     *prometheus.CounterVec
	passes          *prometheus.CounterVec
	activeWorkers   prometheus.Gauge
}

// NewPrometheusObserver creates a Prometheus observer with the given namespace.
// All metrics will be prefixed with "{namespace}_sweep_".
//
// Example:
//
//	observer := NewPrometheusObserver("myapp", prometheus.DefaultRegisterer)
//	// Creates metrics like: myapp_sweep_dispatches_total
func NewPrometheusObserver(namespace string, registerer prometheus.Registerer) *PrometheusObserver {
	if namespace == "" {
		namespace = "digitsweep"
	}

	dispatches := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "dispatches_total",
			Help:      "Total number of candidates verified and stored",
		},
		[]string{"worker", "outcome"},
	)

	dispatchLatency := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "dispatch_duration_seconds",
			Help:      "Duration of oracle calls including rate-limit waits",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 60, 300},
		},
		[]string{"outcome"},
	)

	rateLimits := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "rate_limits_total",
			Help:      "Total number of rate-limit responses",
		},
		[]string{"worker"},
	)

	storeLatency := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "store_op_duration_seconds",
			Help:      "Latency of store operations in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 5},
		},
		[]string{"op"},
	)

	storeErrors := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "store_errors_total",
			Help:      "Total number of failed store operations",
		},
		[]string{"op"},
	)

	passes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "passes_total",
			Help:      "Total number of completed generator passes",
		},
		[]string{"worker"},
	)

	activeWorkers := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "active_workers",
			Help:      "Number of workers in the running sweep",
		},
	)

	// Register all metrics
	registerer.MustRegister(
		dispatches,
		dispatchLatency,
		rateLimits,
		storeLatency,
		storeErrors,
		passes,
		activeWorkers,
	)

	return &PrometheusObserver{
		dispatches:      dispatches,
		dispatchLatency: dispatchLatency,
		rateLimits:      rateLimits,
		storeLatency:    storeLatency,
		storeErrors:     storeErrors,
		passes:          passes,
		activeWorkers:   activeWorkers,
	}
}

func (o *PrometheusObserver) OnRunStart(ctx context.Context, event *RunStartEvent) {
	o.activeWorkers.Set(float64(event.PartitionCount))
}

func (o *PrometheusObserver) OnRunEnd(ctx context.Context, event *RunEndEvent) {
	o.activeWorkers.Set(0)
}

func (o *PrometheusObserver) OnDispatch(ctx context.Context, event *DispatchEvent) {
	outcome := event.Record.Outcome.Short()
	o.dispatches.WithLabelValues(strconv.Itoa(event.WorkerID), outcome).Inc()
	o.dispatchLatency.WithLabelValues(outcome).Observe(event.Duration.Seconds())
}

func (o *PrometheusObserver) OnRateLimited(ctx context.Context, event *RateLimitEvent) {
	o.rateLimits.WithLabelValues(strconv.Itoa(event.WorkerID)).Inc()
}

func (o *PrometheusObserver) OnStoreOp(ctx context.Context, event *StoreEvent) {
	o.storeLatency.WithLabelValues(event.Op).Observe(event.Latency.Seconds())
	if event.Error != nil {
		o.storeErrors.WithLabelValues(event.Op).Inc()
	}
}

func (o *PrometheusObserver) OnPassComplete(ctx context.Context, event *PassEvent) {
	o.passes.WithLabelValues(strconv.Itoa(event.WorkerID)).Inc()
}
