package observability

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/aretw0/canvasbuilder/internal/logging"
	"github.com/aretw0/canvasbuilder/pkg/domain"
	"github.com/aretw0/canvasbuilder/pkg/provider"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "canvas"

// Metrics holds the collectors of one engine instance.
type Metrics struct {
	registry *prometheus.Registry

	classifications *prometheus.CounterVec
	classifyLatency *prometheus.HistogramVec
	clarifications  *prometheus.CounterVec
	turns           *prometheus.CounterVec
	turnLatency     prometheus.Histogram
	completions     *prometheus.CounterVec
	completionTime  *prometheus.HistogramVec
}

var _ provider.Observer = (*Metrics)(nil)

// NewMetrics creates Metrics on a fresh registry. Go runtime and process
// collectors are included.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		classifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifications_total",
			Help:      "Classifications by intent category and whether the fallback classifier produced them.",
		}, []string{"category", "fallback"}),
		classifyLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "classification_duration_seconds",
			Help:      "Duration of classification attempts.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
		clarifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clarifications_total",
			Help:      "Clarification questions asked, by type.",
		}, []string{"type"}),
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Finished turns by outcome.",
		}, []string{"outcome"}),
		turnLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "Wall time from the first to the last event of a turn.",
			Buckets:   prometheus.DefBuckets,
		}),
		completions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_calls_total",
			Help:      "Completion provider calls by provider and error kind (ok on success).",
		}, []string{"provider", "kind"}),
		completionTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_call_duration_seconds",
			Help:      "Duration of completion provider calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.classifications,
		m.classifyLatency,
		m.clarifications,
		m.turns,
		m.turnLatency,
		m.completions,
		m.completionTime,
	)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveCompletion implements provider.Observer.
func (m *Metrics) ObserveCompletion(name string, kind provider.Kind, d time.Duration) {
	label := string(kind)
	if label == "" {
		label = "ok"
	}
	m.completions.WithLabelValues(name, label).Inc()
	m.completionTime.WithLabelValues(name).Observe(d.Seconds())
}

// Hooks returns lifecycle hooks that record metrics and log each event.
// A nil logger disables logging.
func (m *Metrics) Hooks(logger *slog.Logger) domain.LifecycleHooks {
	if logger == nil {
		logger = logging.NewNop()
	}
	return domain.LifecycleHooks{
		OnClassified: func(ctx context.Context, e *domain.ClassificationEvent) {
			m.classifications.WithLabelValues(string(e.Classification.Category), strconv.FormatBool(e.Fallback)).Inc()
			m.classifyLatency.WithLabelValues(e.Provider).Observe(e.Duration.Seconds())
			attrs := []any{
				"category", e.Classification.Category,
				"confidence", e.Classification.Confidence,
				"provider", e.Provider,
				"fallback", e.Fallback,
			}
			if e.Reason != nil {
				attrs = append(attrs, "reason", e.Reason)
			}
			logger.InfoContext(ctx, "classified", attrs...)
		},
		OnClarification: func(ctx context.Context, req *domain.ClarificationRequest) {
			m.clarifications.WithLabelValues(string(req.Type)).Inc()
			logger.InfoContext(ctx, "clarification",
				"id", req.ID,
				"type", req.Type,
				"options", len(req.Options),
			)
		},
		OnTurnComplete: func(ctx context.Context, e *domain.TurnEvent) {
			m.turns.WithLabelValues(string(e.Outcome)).Inc()
			m.turnLatency.Observe(e.Duration.Seconds())
			logger.InfoContext(ctx, "turn_complete",
				"session_id", e.SessionID,
				"outcome", e.Outcome,
				"category", e.Category,
				"events", e.Events,
			)
		},
	}
}
