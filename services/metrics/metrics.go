// Package metrics holds the Prometheus collectors shared by the dispatcher
// and the worker.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a registry so tests can create independent instances.
type Metrics struct {
	registry *prometheus.Registry

	Messages        *prometheus.CounterVec
	Pages           prometheus.Counter
	URLsEnqueued    *prometheus.CounterVec
	Images          *prometheus.CounterVec
	ProcessDuration prometheus.Histogram
}

// New registers the collectors on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Messages: f.NewCounterVec(prometheus.CounterOpts{
			Name: "estate_messages_total",
			Help: "Queue messages handled, by outcome",
		}, []string{"outcome"}),
		Pages: f.NewCounter(prometheus.CounterOpts{
			Name: "estate_search_pages_total",
			Help: "Search result pages crawled by the dispatcher",
		}),
		URLsEnqueued: f.NewCounterVec(prometheus.CounterOpts{
			Name: "estate_urls_total",
			Help: "Listing URLs found by the dispatcher, by result",
		}, []string{"result"}),
		Images: f.NewCounterVec(prometheus.CounterOpts{
			Name: "estate_images_total",
			Help: "Listing images transferred, by status",
		}, []string{"status"}),
		ProcessDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "estate_process_duration_seconds",
			Help:    "Time spent processing one listing",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
	}
}

// ObserveMessage counts a handled message.
func (m *Metrics) ObserveMessage(outcome string, took time.Duration) {
	m.Messages.WithLabelValues(outcome).Inc()
	m.ProcessDuration.Observe(took.Seconds())
}

// ObserveURL counts a URL seen by the dispatcher.
func (m *Metrics) ObserveURL(result string) {
	m.URLsEnqueued.WithLabelValues(result).Inc()
}

// ObservePage counts a crawled search page.
func (m *Metrics) ObservePage() {
	m.Pages.Inc()
}

// ObserveImage counts a transferred or failed image.
func (m *Metrics) ObserveImage(status string) {
	m.Images.WithLabelValues(status).Inc()
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
