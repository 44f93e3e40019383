package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sgl-project/sft-agent/pkg/textmetrics"
)

// Metrics holds the Prometheus collectors of one run.
type Metrics struct {
	registry *prometheus.Registry

	stageDuration  *prometheus.HistogramVec
	stageFailures  *prometheus.CounterVec
	partitionSize  *prometheus.GaugeVec
	evaluation     *prometheus.GaugeVec
	lastRunSuccess prometheus.Gauge
}

// NewMetrics registers the run collectors on a fresh registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		stageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sft_agent_stage_duration_seconds",
			Help:    "Wall time of each pipeline stage in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 4, 10), // From 100ms to ~7h
		}, []string{"stage"}),
		stageFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sft_agent_stage_failures_total",
			Help: "Number of failed pipeline stages",
		}, []string{"stage"}),
		partitionSize: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sft_agent_partition_records",
			Help: "Number of records in each dataset partition",
		}, []string{"partition"}),
		evaluation: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sft_agent_evaluation_score",
			Help: "Evaluation scores of the merged model",
		}, []string{"metric"}),
		lastRunSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sft_agent_last_run_success",
			Help: "1 if the last run completed, 0 otherwise",
		}),
	}
}

// Registry exposes the collectors for gathering.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) observeStage(stage string, d time.Duration, err error) {
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
	if err != nil {
		m.stageFailures.WithLabelValues(stage).Inc()
	}
}

func (m *Metrics) setPartitions(sizes PartitionSizes) {
	m.partitionSize.WithLabelValues("train").Set(float64(sizes.Train))
	m.partitionSize.WithLabelValues("validation").Set(float64(sizes.Validation))
	m.partitionSize.WithLabelValues("test").Set(float64(sizes.Test))
}

func (m *Metrics) setEvaluation(report textmetrics.Report) {
	for name, value := range report {
		m.evaluation.WithLabelValues(name).Set(value)
	}
}

func (m *Metrics) setSuccess(ok bool) {
	if ok {
		m.lastRunSuccess.Set(1)
		return
	}
	m.lastRunSuccess.Set(0)
}

// WriteTextfile writes the collected metrics in the node exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
