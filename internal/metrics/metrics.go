// Package metrics holds the Prometheus collectors for plat-marine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// GISRequestDuration times upstream GIS calls by kind ("feature_query", "map_service").
	GISRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "marine_gis_request_duration_seconds",
			Help:    "Duration of upstream GIS requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	GISRequestErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marine_gis_request_errors_total",
			Help: "Total number of failed upstream GIS requests",
		},
		[]string{"kind"},
	)

	// VectorRefreshes counts refresh cycles by outcome
	// ("fetched", "hidden", "disabled", "skipped", "failed", "stale").
	VectorRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marine_vector_refresh_total",
			Help: "Vector refresh cycles by outcome",
		},
		[]string{"outcome"},
	)

	// MetadataCache counts map-service metadata lookups by result ("hit", "miss").
	MetadataCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marine_metadata_cache_total",
			Help: "Map-service metadata cache lookups by result",
		},
		[]string{"result"},
	)

	VectorFeatures = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "marine_vector_features",
			Help:    "Feature count of applied vector refreshes",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
	)

	// LayerAttachments counts provider constructions by source and result.
	LayerAttachments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marine_layer_attach_total",
			Help: "Imagery provider constructions by source and result",
		},
		[]string{"source", "result"},
	)

	ActiveViewers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "marine_active_viewers",
			Help: "Number of live viewer sessions",
		},
	)

	// HTTPRequests counts served requests by method and status code.
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marine_http_requests_total",
			Help: "HTTP requests by method and status",
		},
		[]string{"method", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "marine_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	Picks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marine_picks_total",
			Help: "Pick requests by result (hit, miss)",
		},
		[]string{"result"},
	)
)

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
