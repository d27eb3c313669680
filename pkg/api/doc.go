/*
Package api exposes realmkeep over HTTP.

Routes:

	POST /backup/                  run a backup (body: service_name, description, compress, snapshot)
	GET  /backup/list              list snapshots, newest first
	GET  /backup/info?snapshot_id= one snapshot's manifest
	GET  /backup/{service}/{kind}  export one live kind without snapshotting
	POST /restore/                 restore a snapshot (body: snapshot_id, service_name, plan)
	POST /restore/{service}/{kind} import entities of one kind
	GET  /events                   recent lifecycle events
	GET  /health, /ready, /live    health surface
	GET  /metrics                  Prometheus exposition

A degraded backup or restore answers 202 instead of 200; domain errors
map onto 400/403/404/409, provider and transport failures onto 502.
*/
package api
