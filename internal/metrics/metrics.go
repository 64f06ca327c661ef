// Package metrics exposes Prometheus collectors for the crawler service.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	fetchAttemptsTotal     *prometheus.CounterVec
	fetchRetriesTotal      *prometheus.CounterVec
	fetchFailuresTotal     *prometheus.CounterVec
	sessionRecyclesTotal   *prometheus.CounterVec
	productsIngestedTotal  *prometheus.CounterVec
	duplicatesSkippedTotal *prometheus.CounterVec
	batchPassesTotal       *prometheus.CounterVec

	once sync.Once
)

// Init registers the collectors. Safe to call multiple times.
func Init() {
	once.Do(func() {
		fetchAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_fetch_attempts_total",
				Help: "Total fetch attempts, labeled by source.",
			},
			[]string{"source"},
		)
		fetchRetriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_fetch_retries_total",
				Help: "Failed attempts that will be retried, labeled by source.",
			},
			[]string{"source"},
		)
		fetchFailuresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_fetch_failures_total",
				Help: "Fetches abandoned after exhausting the retry budget.",
			},
			[]string{"source"},
		)
		sessionRecyclesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_session_recycles_total",
				Help: "Browser session teardown/relaunch cycles, labeled by source.",
			},
			[]string{"source"},
		)
		productsIngestedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_products_ingested_total",
				Help: "Product rows inserted, labeled by source.",
			},
			[]string{"source"},
		)
		duplicatesSkippedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_duplicates_skipped_total",
				Help: "Frontier URLs skipped because the product already exists.",
			},
			[]string{"source"},
		)
		batchPassesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_batch_passes_total",
				Help: "Completed batch passes, labeled by source and result.",
			},
			[]string{"source", "result"},
		)
	})
}

// FetchAttempt counts one fetch attempt.
func FetchAttempt(source string) {
	if fetchAttemptsTotal != nil {
		fetchAttemptsTotal.WithLabelValues(source).Inc()
	}
}

// FetchRetry counts one failed attempt that will be retried.
func FetchRetry(source string) {
	if fetchRetriesTotal != nil {
		fetchRetriesTotal.WithLabelValues(source).Inc()
	}
}

// FetchFailure counts one fetch abandoned after exhausting its budget.
func FetchFailure(source string) {
	if fetchFailuresTotal != nil {
		fetchFailuresTotal.WithLabelValues(source).Inc()
	}
}

// SessionRecycle counts one browser session recycle.
func SessionRecycle(source string) {
	if sessionRecyclesTotal != nil {
		sessionRecyclesTotal.WithLabelValues(source).Inc()
	}
}

// ProductIngested counts one inserted product row.
func ProductIngested(source string) {
	if productsIngestedTotal != nil {
		productsIngestedTotal.WithLabelValues(source).Inc()
	}
}

// DuplicateSkipped counts one URL skipped by the dedup gate.
func DuplicateSkipped(source string) {
	if duplicatesSkippedTotal != nil {
		duplicatesSkippedTotal.WithLabelValues(source).Inc()
	}
}

// BatchPass counts one completed batch pass with its result
// ("success" or "error").
func BatchPass(source, result string) {
	if batchPassesTotal != nil {
		batchPassesTotal.WithLabelValues(source, result).Inc()
	}
}
