// internal/monitoring/metrics.go
package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes the crawl's Prometheus instrumentation.
type Metrics struct {
	PagesFetched     *prometheus.CounterVec
	FetchErrors      *prometheus.CounterVec
	FetchRetries     prometheus.Counter
	RecordsExtracted *prometheus.CounterVec
	RecordsDropped   *prometheus.CounterVec
	RecordsWritten   *prometheus.CounterVec
	PagesIncomplete  prometheus.Counter
	FrontierPending  prometheus.Gauge
	FrontierSize     prometheus.Gauge
	ExtractionTime   *prometheus.HistogramVec
}

// NewMetrics registers the crawl metrics on a fresh registry and returns
// both. A dedicated registry keeps tests and embedded use from clashing
// with the global default.
func NewMetrics(namespace string) (*Metrics, *prometheus.Registry) {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	m := &Metrics{
		PagesFetched: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_fetched_total",
			Help:      "Pages fetched, by page kind",
		}, []string{"kind"}),
		FetchErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_errors_total",
			Help:      "Failed fetches, by page kind",
		}, []string{"kind"}),
		FetchRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_retries_total",
			Help:      "Pages re-fetched after arriving incomplete",
		}),
		RecordsExtracted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_extracted_total",
			Help:      "Records assembled, by variant",
		}, []string{"variant"}),
		RecordsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_dropped_total",
			Help:      "Records discarded by validation, by variant",
		}, []string{"variant"}),
		RecordsWritten: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_written_total",
			Help:      "Records persisted, by variant",
		}, []string{"variant"}),
		PagesIncomplete: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_incomplete_total",
			Help:      "Pages whose embedded graph was missing or unresolved",
		}),
		FrontierPending: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "frontier_pending",
			Help:      "URLs queued and awaiting fetch",
		}),
		FrontierSize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "frontier_size",
			Help:      "Distinct URLs ever observed",
		}),
		ExtractionTime: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extraction_duration_seconds",
			Help:      "Time spent turning a page into records",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
	}
	return m, registry
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
