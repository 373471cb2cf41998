package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
)

const namespace = "im_notice"

// Metrics holds the service collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	EventsPublished  *prometheus.CounterVec
	EventsRejected   *prometheus.CounterVec
	EventsImported   *prometheus.CounterVec
	FramesDropped    *prometheus.CounterVec
	TicketsSubmitted *prometheus.CounterVec
	TicketDuration   prometheus.Histogram

	surfacesOnce sync.Once
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		EventsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "bus",
				Name:      "events_published_total",
				Help:      "Message events published on the bus",
			},
			[]string{"kind", "origin"},
		),

		EventsRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "bus",
				Name:      "events_rejected_total",
				Help:      "Producer commands refused before reaching the bus",
			},
			[]string{"reason"},
		),

		EventsImported: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "broker",
				Name:      "events_imported_total",
				Help:      "Broker events mirrored onto the local bus",
			},
			[]string{"status"},
		),

		FramesDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "surface",
				Name:      "frames_dropped_total",
				Help:      "Frames a renderer session refused",
			},
			[]string{"lifetime"},
		),

		TicketsSubmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ticket",
				Name:      "submitted_total",
				Help:      "Support ticket submissions by outcome",
			},
			[]string{"status"},
		),

		TicketDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "ticket",
				Name:      "duration_seconds",
				Help:      "Support ticket submission latency",
				Buckets:   prometheus.DefBuckets,
			},
		),
	}

	m.registry.MustRegister(
		m.EventsPublished,
		m.EventsRejected,
		m.EventsImported,
		m.FramesDropped,
		m.TicketsSubmitted,
		m.TicketDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) EventPublished(kind, origin string) {
	m.EventsPublished.WithLabelValues(kind, origin).Inc()
}

func (m *Metrics) EventRejected(reason string) {
	m.EventsRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) EventImported(status string) {
	m.EventsImported.WithLabelValues(status).Inc()
}

// FrameDropped matches the registry drop hook signature. Surfaces are
// labelled by lifetime: API-opened names are unbounded.
func (m *Metrics) FrameDropped(pinned bool) {
	lifetime := "ephemeral"
	if pinned {
		lifetime = "pinned"
	}
	m.FramesDropped.WithLabelValues(lifetime).Inc()
}

func (m *Metrics) TicketSubmitted(status string, seconds float64) {
	m.TicketsSubmitted.WithLabelValues(status).Inc()
	m.TicketDuration.Observe(seconds)
}

// ObserveSurfaces exports the live surface count. Only the first call
// installs the gauge.
func (m *Metrics) ObserveSurfaces(count func() float64) {
	m.surfacesOnce.Do(func() {
		m.registry.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "registry",
				Name:      "surfaces",
				Help:      "Registered display surfaces",
			},
			count,
		))
	})
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

var Module = fx.Module("metrics",
	fx.Provide(New),
)
