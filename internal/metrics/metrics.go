// Package metrics owns the Prometheus collectors of the service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "imagegen"

// Recorder records outcomes. Outcome labels are "ok" or a domain error kind.
type Recorder struct {
	registry *prometheus.Registry

	generations       *prometheus.CounterVec
	generationLatency *prometheus.HistogramVec
	persists          *prometheus.CounterVec
	rollbacks         *prometheus.CounterVec
	scores            *prometheus.CounterVec
	scoreValues       prometheus.Histogram
}

// New builds a Recorder on its own registry, including Go and process
// collectors.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)
	return &Recorder{
		registry: reg,
		generations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "Image generation calls by provider and outcome.",
		}, []string{"provider", "outcome"}),
		generationLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Provider generation latency.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 60, 120},
		}, []string{"provider"}),
		persists: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persists_total",
			Help:      "Persistence pipeline runs by provider and outcome.",
		}, []string{"provider", "outcome"}),
		rollbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_rollbacks_total",
			Help:      "Compensating storage deletes after a failed metadata insert.",
		}, []string{"outcome"}),
		scores: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scores_total",
			Help:      "Scoring calls by outcome.",
		}, []string{"outcome"}),
		scoreValues: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "score_value",
			Help:      "Distribution of accepted verdict scores.",
			Buckets:   prometheus.LinearBuckets(1, 1, 10),
		}),
	}
}

func (r *Recorder) ObserveGeneration(provider, outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.generations.WithLabelValues(provider, outcome).Inc()
	r.generationLatency.WithLabelValues(provider).Observe(elapsed.Seconds())
}

func (r *Recorder) ObservePersist(provider, outcome string) {
	if r == nil {
		return
	}
	r.persists.WithLabelValues(provider, outcome).Inc()
}

func (r *Recorder) ObserveRollback(outcome string) {
	if r == nil {
		return
	}
	r.rollbacks.WithLabelValues(outcome).Inc()
}

// ObserveScore counts a scoring call; score is recorded only when outcome is "ok".
func (r *Recorder) ObserveScore(outcome string, score int) {
	if r == nil {
		return
	}
	r.scores.WithLabelValues(outcome).Inc()
	if outcome == OutcomeOK {
		r.scoreValues.Observe(float64(score))
	}
}

// Handler exposes the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// OutcomeOK labels a successful call.
const OutcomeOK = "ok"

// Outcome returns OutcomeOK for a nil error and the error's kind otherwise.
func Outcome(kind string, err error) string {
	if err == nil {
		return OutcomeOK
	}
	if kind == "" {
		return "internal"
	}
	return kind
}
