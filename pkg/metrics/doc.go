/*
Package metrics provides Prometheus metrics collection and exposition for
realmkeep.

All metrics are registered against the default registry at package init and
exposed via promhttp for scraping. A lightweight health checker backs the
/health, /ready and /live endpoints.

# Metrics Catalog

Snapshot lifecycle:

realmkeep_backups_total{outcome}:
  - Type: Counter
  - Description: Backup runs by outcome (ok, degraded, error)

realmkeep_backup_duration_seconds:
  - Type: Histogram
  - Description: Wall time of a full backup run

realmkeep_restores_total{outcome}:
  - Type: Counter
  - Description: Restore runs by outcome (ok, degraded, error)

realmkeep_restore_duration_seconds:
  - Type: Histogram
  - Description: Wall time of a full restore run

Provider traffic:

realmkeep_provider_requests_total{method, status}:
  - Type: Counter
  - Description: Admin API requests to backed-up providers

realmkeep_provider_request_duration_seconds{method}:
  - Type: Histogram
  - Description: Admin API request latency

realmkeep_token_refreshes_total:
  - Type: Counter
  - Description: Access-token acquisitions (one per expiry or 401 retry)

Entity movement:

realmkeep_entities_exported_total{kind}:
  - Type: Counter
  - Description: Entities captured into snapshots

realmkeep_entities_imported_total{kind, outcome}:
  - Type: Counter
  - Description: Entities pushed into live realms (created, existing,
    failed, skipped)

Snapshot inventory (refreshed by the Collector):

realmkeep_snapshots_total{state}:
  - Type: Gauge
  - Description: Snapshots on the backend by state (ok, degraded)

realmkeep_newest_snapshot_age_seconds:
  - Type: Gauge
  - Description: Age of the most recent snapshot

API surface:

realmkeep_api_requests_total{route, status}:
  - Type: Counter
  - Description: HTTP API requests by route and status

realmkeep_api_request_duration_seconds{route}:
  - Type: Histogram
  - Description: HTTP API request latency

# Usage

	timer := metrics.NewTimer()
	// ... perform operation ...
	timer.ObserveDurationVec(metrics.APIRequestDuration, "/backup/")

	http.Handle("/metrics", metrics.Handler())

The Collector polls the snapshot manager on a fixed interval and keeps the
inventory gauges current:

	collector := metrics.NewCollector(snapshotManager)
	collector.Start()
	defer collector.Stop()
*/
package metrics
