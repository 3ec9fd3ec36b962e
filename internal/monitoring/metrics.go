// internal/monitoring/metrics.go
// Package monitoring exposes run metrics over Prometheus.
package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/realyield/auctionwatch/pkg/types"
)

// Metrics holds the process's Prometheus collectors. It implements the
// scraping run's observer events, keeping the scraper free of any metrics
// dependency.
type Metrics struct {
	registry *prometheus.Registry

	pagesVisited      *prometheus.CounterVec
	listingsAttempted *prometheus.CounterVec
	listingsSucceeded *prometheus.CounterVec
	listingsSkipped   *prometheus.CounterVec
	navigationRetries *prometheus.CounterVec
	exportDuration    prometheus.Histogram
}

// NewMetrics creates and registers all collectors on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		pagesVisited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auctionwatch",
			Name:      "pages_visited_total",
			Help:      "Index pages visited during discovery.",
		}, []string{"source"}),
		listingsAttempted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auctionwatch",
			Name:      "listings_attempted_total",
			Help:      "Listings the run attempted to extract.",
		}, []string{"source"}),
		listingsSucceeded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auctionwatch",
			Name:      "listings_succeeded_total",
			Help:      "Listings extracted and normalized successfully.",
		}, []string{"source"}),
		listingsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auctionwatch",
			Name:      "listings_skipped_total",
			Help:      "Listings skipped, by reason.",
		}, []string{"source", "reason"}),
		navigationRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auctionwatch",
			Name:      "navigation_retries_total",
			Help:      "Failed attempts that were retried.",
		}, []string{"source"}),
		exportDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "auctionwatch",
			Name:      "export_duration_seconds",
			Help:      "Time spent writing export destinations.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	m.registry.MustRegister(
		m.pagesVisited,
		m.listingsAttempted,
		m.listingsSucceeded,
		m.listingsSkipped,
		m.navigationRetries,
		m.exportDuration,
	)
	return m
}

// Registry returns the registry backing the /metrics endpoint.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) PageVisited(source types.Source) {
	m.pagesVisited.WithLabelValues(source.String()).Inc()
}

func (m *Metrics) ListingAttempted(source types.Source) {
	m.listingsAttempted.WithLabelValues(source.String()).Inc()
}

func (m *Metrics) ListingSucceeded(source types.Source) {
	m.listingsSucceeded.WithLabelValues(source.String()).Inc()
}

func (m *Metrics) ListingSkipped(source types.Source, reason types.SkipReason) {
	m.listingsSkipped.WithLabelValues(source.String(), string(reason)).Inc()
}

func (m *Metrics) NavigationRetried(source types.Source) {
	m.navigationRetries.WithLabelValues(source.String()).Inc()
}

// ObserveExport records one export's wall-clock duration.
func (m *Metrics) ObserveExport(seconds float64) {
	m.exportDuration.Observe(seconds)
}
