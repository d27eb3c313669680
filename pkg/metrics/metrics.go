package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Snapshot lifecycle metrics
	BackupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realmkeep_backups_total",
			Help: "Total number of backup runs by outcome (ok, degraded, error)",
		},
		[]string{"outcome"},
	)

	BackupDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "realmkeep_backup_duration_seconds",
			Help:    "Backup run duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	RestoresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realmkeep_restores_total",
			Help: "Total number of restore runs by outcome (ok, degraded, error)",
		},
		[]string{"outcome"},
	)

	RestoreDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "realmkeep_restore_duration_seconds",
			Help:    "Restore run duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Provider metrics
	ProviderRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realmkeep_provider_requests_total",
			Help: "Total admin API requests to backed-up providers by method and status",
		},
		[]string{"method", "status"},
	)

	ProviderRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "realmkeep_provider_request_duration_seconds",
			Help:    "Admin API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	TokenRefreshesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "realmkeep_token_refreshes_total",
			Help: "Total number of access-token acquisitions",
		},
	)

	// Per-kind metrics
	EntitiesExported = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realmkeep_entities_exported_total",
			Help: "Total entities exported by kind",
		},
		[]string{"kind"},
	)

	EntitiesImported = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realmkeep_entities_imported_total",
			Help: "Total entities imported by kind and outcome (created, existing, failed, skipped)",
		},
		[]string{"kind", "outcome"},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realmkeep_api_requests_total",
			Help: "Total number of API requests by route and status",
		},
		[]string{"route", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "realmkeep_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(BackupsTotal)
	prometheus.MustRegister(BackupDuration)
	prometheus.MustRegister(RestoresTotal)
	prometheus.MustRegister(RestoreDuration)
	prometheus.MustRegister(ProviderRequestsTotal)
	prometheus.MustRegister(ProviderRequestDuration)
	prometheus.MustRegister(TokenRefreshesTotal)
	prometheus.MustRegister(EntitiesExported)
	prometheus.MustRegister(EntitiesImported)
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
