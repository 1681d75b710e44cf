// Package metrics exposes Prometheus collectors for the modhub service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	scrapePagesTotal        *prometheus.CounterVec
	scrapeRecordsTotal      *prometheus.CounterVec
	scrapeRunsTotal         *prometheus.CounterVec
	scrapeModsUpsertedTotal *prometheus.CounterVec
	scrapeActiveStores      prometheus.Gauge
	pageDelaySeconds        *prometheus.HistogramVec
	httpRequestsTotal       *prometheus.CounterVec
	httpRequestDuration     *prometheus.HistogramVec

	once sync.Once
)

// Init registers the collectors. Safe to call more than once.
func Init() {
	once.Do(func() {
		scrapePagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modhub_scrape_pages_total",
				Help: "Catalog pages fetched, labeled by store and outcome.",
			},
			[]string{"store", "outcome"},
		)

		scrapeRecordsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modhub_scrape_records_total",
				Help: "Raw records processed, labeled by store and disposition.",
			},
			[]string{"store", "disposition"},
		)

		scrapeRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modhub_scrape_runs_total",
				Help: "Per-store scrape runs, labeled by terminal status.",
			},
			[]string{"status"},
		)

		scrapeModsUpsertedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modhub_mods_upserted_total",
				Help: "Normalized mods committed to persistence, by store.",
			},
			[]string{"store"},
		)

		scrapeActiveStores = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "modhub_scrape_active_stores",
				Help: "Store scrapes currently in flight.",
			},
		)

		pageDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "modhub_page_delay_seconds",
				Help:    "Time spent waiting on inter-page pacing and rate-limit backoff.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"store"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modhub_http_requests_total",
				Help: "API requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "modhub_http_request_duration_seconds",
				Help:    "API request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns the Prometheus exposition handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePage counts one page fetch for a store with the given outcome
// ("ok", "rate_limited", "error").
func ObservePage(store, outcome string) {
	if scrapePagesTotal != nil {
		scrapePagesTotal.WithLabelValues(store, outcome).Inc()
	}
}

// ObserveRecords counts normalized and skipped records for a store.
func ObserveRecords(store string, normalized, skipped int) {
	if scrapeRecordsTotal == nil {
		return
	}
	if normalized > 0 {
		scrapeRecordsTotal.WithLabelValues(store, "normalized").Add(float64(normalized))
	}
	if skipped > 0 {
		scrapeRecordsTotal.WithLabelValues(store, "skipped").Add(float64(skipped))
	}
}

// ObserveRun counts a finished per-store run by status.
func ObserveRun(status string) {
	if scrapeRunsTotal != nil {
		scrapeRunsTotal.WithLabelValues(status).Inc()
	}
}

// ObserveUpserts counts mods committed for a store.
func ObserveUpserts(store string, count int) {
	if scrapeModsUpsertedTotal != nil && count > 0 {
		scrapeModsUpsertedTotal.WithLabelValues(store).Add(float64(count))
	}
}

// IncActiveStores marks a store scrape as started.
func IncActiveStores() {
	if scrapeActiveStores != nil {
		scrapeActiveStores.Inc()
	}
}

// DecActiveStores marks a store scrape as finished.
func DecActiveStores() {
	if scrapeActiveStores != nil {
		scrapeActiveStores.Dec()
	}
}

// ObservePageDelay records time spent waiting before a page request.
func ObservePageDelay(store string, d time.Duration) {
	if pageDelaySeconds != nil {
		pageDelaySeconds.WithLabelValues(store).Observe(d.Seconds())
	}
}

// ObserveHTTPRequest records one API request.
func ObserveHTTPRequest(method, route string, code int, d time.Duration) {
	if httpRequestsTotal != nil {
		httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	}
	if httpRequestDuration != nil {
		httpRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
	}
}
