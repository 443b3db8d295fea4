// Package metrics exposes Prometheus metrics for the HTTP API and the retrieval core.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tenantrag"

// Core retrieval metrics. Labels never carry tenant ids, to bound cardinality.
var (
	StoreOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_operation_duration_seconds",
			Help:      "Tenant store operation duration in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"op"},
	)

	ChunksIngestedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_ingested_total",
			Help:      "Total number of chunks added to tenant stores",
		},
	)

	ChunksDeletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_deleted_total",
			Help:      "Total number of chunks removed from tenant stores",
		},
	)

	PersistFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_failures_total",
			Help:      "Snapshot write or delete failures",
		},
		[]string{"backend"},
	)

	LoadFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "load_fallbacks_total",
			Help:      "Snapshot loads that degraded to an empty store",
		},
		[]string{"backend"},
	)

	TenantsLoaded = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tenants_loaded",
			Help:      "Tenant stores currently cached in the registry",
		},
	)
)

func init() {
	prometheus.MustRegister(
		StoreOperationDuration,
		ChunksIngestedTotal,
		ChunksDeletedTotal,
		PersistFailuresTotal,
		LoadFallbacksTotal,
		TenantsLoaded,
	)
}

// ObserveSince records the elapsed time of op since start.
func ObserveSince(op string, start time.Time) {
	StoreOperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
