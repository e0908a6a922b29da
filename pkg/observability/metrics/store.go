// Package metrics provides Prometheus metrics for document-store access.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// storeFetchesTotal counts batched fetch round trips against the store.
	// Labels: collection
	storeFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docref_store_fetches_total",
			Help: "Total number of batched fetch round trips per collection",
		},
		[]string{"collection"},
	)

	// storeFetchedIDs counts ids requested across batched fetches.
	// Labels: collection
	storeFetchedIDs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docref_store_fetched_ids_total",
			Help: "Total number of document ids requested in batched fetches",
		},
		[]string{"collection"},
	)

	// resolutionPassesTotal counts started resolution passes.
	// Labels: mode (eager, lazy)
	resolutionPassesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docref_resolution_passes_total",
			Help: "Total number of reference resolution passes",
		},
		[]string{"mode"},
	)

	// resolutionCacheHits counts placeholders satisfied from the per-pass cache.
	resolutionCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "docref_resolution_cache_hits_total",
			Help: "Total number of references satisfied without a store fetch",
		},
	)
)

// RecordStoreFetch records one batched round trip requesting idCount ids
// from a collection.
func RecordStoreFetch(collection string, idCount int) {
	storeFetchesTotal.WithLabelValues(collection).Inc()
	storeFetchedIDs.WithLabelValues(collection).Add(float64(idCount))
}

// RecordResolutionPass records the start of a resolution pass in the given mode.
func RecordResolutionPass(mode string) {
	resolutionPassesTotal.WithLabelValues(mode).Inc()
}

// RecordCacheHit records a reference satisfied from the per-pass cache.
func RecordCacheHit() {
	resolutionCacheHits.Inc()
}
