package observability

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "airq"

// Metrics holds the Prometheus counters, histograms, and gauges for one
// pipeline run. Each Metrics owns its registry so a batch run can push exactly
// its own series to a Pushgateway.
type Metrics struct {
	Registry *prometheus.Registry

	RowsLoaded      prometheus.Counter
	RowsDropped     prometheus.Counter
	ValuesImputed   prometheus.Counter
	ValuesClipped   prometheus.Counter
	PipelineRunning prometheus.Gauge
	LastSuccess     prometheus.Gauge

	StageDuration *prometheus.HistogramVec // labels: stage
	Observations  *prometheus.GaugeVec     // labels: category

	// Sink metrics.
	ChartsRendered prometheus.Counter
	SinkErrors     *prometheus.CounterVec // labels: sink={chart,csv,xlsx,kafka}
}

// NewMetrics creates all pipeline metrics on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		RowsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_loaded_total",
			Help:      "Rows read from the input dataset.",
		}),
		RowsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_dropped_total",
			Help:      "Rows dropped during cleaning because the target pollutant was missing.",
		}),
		ValuesImputed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "values_imputed_total",
			Help:      "Secondary pollutant cells filled during cleaning.",
		}),
		ValuesClipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "values_clipped_total",
			Help:      "Cells bounded during cleaning (negative or above the outlier fence).",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a pipeline run is in progress.",
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last run that produced statistics.",
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		}, []string{"stage"}),
		Observations: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "observations",
			Help:      "Cleaned observations per AQI category in the last run.",
		}, []string{"category"}),
		ChartsRendered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "charts_rendered_total",
			Help:      "Chart images written successfully.",
		}),
		SinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_errors_total",
			Help:      "Output failures by sink. Sink failures never abort a run.",
		}, []string{"sink"}),
	}

	m.Registry.MustRegister(
		m.RowsLoaded,
		m.RowsDropped,
		m.ValuesImputed,
		m.ValuesClipped,
		m.PipelineRunning,
		m.LastSuccess,
		m.StageDuration,
		m.Observations,
		m.ChartsRendered,
		m.SinkErrors,
	)

	return m
}

// Push sends the registry contents to a Prometheus Pushgateway under job.
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	return push.New(url, job).Gatherer(m.Registry).PushContext(ctx)
}
