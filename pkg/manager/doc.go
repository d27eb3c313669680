/*
Package manager assembles the realmkeep runtime: it turns configuration
into a storage backend, the registered services and a snapshot manager,
and exposes the operations the HTTP API and the CLI both call. Component
health is reported into the metrics health checker as each dependency
comes up.
*/
package manager
