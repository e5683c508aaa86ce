// Package metrics records predictor activity as Prometheus metrics
package metrics

import (
	"math"
	"time"

	"github.com/aouyang1/go-crashcast/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "crashcast"

// Recorder implements crashcast.Recorder using Prometheus
type Recorder struct {
	latency     *prometheus.HistogramVec
	errorsTotal *prometheus.CounterVec
	epochsTotal prometheus.Counter
	pairs       prometheus.Gauge
	loss        *prometheus.GaugeVec
	predictions prometheus.Counter
}

// New creates a recorder whose metrics are registered with reg. A nil reg registers with the
// default registry.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Recorder{
		latency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Duration of train and predict calls in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
			},
			[]string{"operation"},
		),
		errorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Failed train and predict calls",
			},
			[]string{"operation"},
		),
		epochsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "train_epochs_total",
				Help:      "Training epochs run since start",
			},
		),
		pairs: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "train_pairs",
				Help:      "Training pairs in the last train call",
			},
		),
		loss: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "train_loss",
				Help:      "Mean squared error of the last epoch of the last train call",
			},
			[]string{"set"},
		),
		predictions: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "predictions_total",
				Help:      "Successful predictions",
			},
		),
	}
}

// ObserveTrain records a completed train call
func (r *Recorder) ObserveTrain(d time.Duration, pairs int, hist *models.History) {
	r.latency.WithLabelValues("train").Observe(d.Seconds())
	r.pairs.Set(float64(pairs))
	if hist == nil {
		return
	}
	r.epochsTotal.Add(float64(len(hist.Loss)))
	if v := hist.FinalLoss(); !math.IsNaN(v) {
		r.loss.WithLabelValues("train").Set(v)
	}
	if v := hist.FinalValLoss(); !math.IsNaN(v) {
		r.loss.WithLabelValues("validation").Set(v)
	}
}

// ObservePredict records a completed prediction
func (r *Recorder) ObservePredict(d time.Duration) {
	r.latency.WithLabelValues("predict").Observe(d.Seconds())
	r.predictions.Inc()
}

// ObserveError records a failed call
func (r *Recorder) ObserveError(op string) {
	r.errorsTotal.WithLabelValues(op).Inc()
}
