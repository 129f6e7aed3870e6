// internal/monitoring/metrics.go
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/lumix-ai/hopfield/internal/core"
)

const namespace = "hopfield"

// Metrics - Prometheus collectors for training and recall
type Metrics struct {
	Registry prometheus.Gatherer

	trainings      prometheus.Counter
	trainDuration  prometheus.Histogram
	storedPatterns prometheus.Gauge
	recalls        *prometheus.CounterVec
	recallSweeps   prometheus.Histogram
	recallEnergy   prometheus.Gauge
	cacheHits      prometheus.Counter
	errors         *prometheus.CounterVec
}

// NewMetrics registers all collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	return newMetrics(reg, reg)
}

func newMetrics(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Registry: gatherer,
		trainings: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trainings_total",
			Help:      "Number of completed weight matrix rebuilds.",
		}),
		trainDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "train_duration_seconds",
			Help:      "Time spent rebuilding the weight matrix.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		storedPatterns: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stored_patterns",
			Help:      "Patterns used by the current weight matrix.",
		}),
		recalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recalls_total",
			Help:      "Recall runs by outcome.",
		}, []string{"outcome"}),
		recallSweeps: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recall_sweeps",
			Help:      "Sweeps performed per recall.",
			Buckets:   []float64{1, 2, 3, 5, 10, 25, 50, 100},
		}),
		recallEnergy: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "recall_energy",
			Help:      "Energy of the most recently recalled pattern.",
		}),
		cacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recall_cache_hits_total",
			Help:      "Recalls answered from the result cache.",
		}),
		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Rejected operations by name.",
		}, []string{"op"}),
	}
}

func (m *Metrics) ObserveTrain(patterns int, d time.Duration) {
	m.trainings.Inc()
	m.trainDuration.Observe(d.Seconds())
	m.storedPatterns.Set(float64(patterns))
}

func (m *Metrics) ObserveRecall(res *core.RecallResult, energy float64) {
	outcome := "exhausted"
	if res.Converged {
		outcome = "converged"
	}
	m.recalls.WithLabelValues(outcome).Inc()
	m.recallSweeps.Observe(float64(res.Sweeps))
	m.recallEnergy.Set(energy)
}

func (m *Metrics) ObserveCacheHit() { m.cacheHits.Inc() }

func (m *Metrics) ObserveError(op string) { m.errors.WithLabelValues(op).Inc() }
