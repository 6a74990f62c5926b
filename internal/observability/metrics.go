// Package observability registers the Prometheus metrics of the activity cache.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	operationCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "activitysync",
		Subsystem: "sync",
		Name:      "operations_total",
		Help:      "Number of sync engine operations grouped by operation and result.",
	}, []string{"operation", "result"})

	failureCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "activitysync",
		Subsystem: "sync",
		Name:      "remote_failures_total",
		Help:      "Number of failed remote calls grouped by operation and failure category.",
	}, []string{"operation", "category"})

	staleReloadCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "activitysync",
		Subsystem: "sync",
		Name:      "stale_results_discarded_total",
		Help:      "Number of remote results dropped because the cache was cleared while they were in flight.",
	})

	cacheEntriesGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "activitysync",
		Subsystem: "cache",
		Name:      "entries",
		Help:      "Number of activities currently cached.",
	})

	lastReloadGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "activitysync",
		Subsystem: "cache",
		Name:      "last_list_timestamp_seconds",
		Help:      "Unix timestamp of the most recent list page written to the cache.",
	})
)

func init() {
	prometheus.MustRegister(operationCounter, failureCounter, staleReloadCounter, cacheEntriesGauge, lastReloadGauge)
}

// Result labels.
const (
	ResultApplied = "applied"
	ResultFailed  = "failed"
	ResultSkipped = "skipped"
)

// RecordOperation counts a finished operation.
func RecordOperation(operation, result string) {
	operationCounter.WithLabelValues(operation, result).Inc()
}

// RecordFailure counts a failed remote call and the operation outcome.
func RecordFailure(operation, category string) {
	failureCounter.WithLabelValues(operation, category).Inc()
	operationCounter.WithLabelValues(operation, ResultFailed).Inc()
}

// RecordStaleResult counts results dropped after an invalidation.
func RecordStaleResult() {
	staleReloadCounter.Inc()
}

// SetCacheEntries publishes the current cache size.
func SetCacheEntries(n int) {
	cacheEntriesGauge.Set(float64(n))
}

// RecordListApplied updates the list watermark gauge.
func RecordListApplied(ts time.Time) {
	if ts.IsZero() {
		return
	}
	lastReloadGauge.Set(float64(ts.Unix()))
}
