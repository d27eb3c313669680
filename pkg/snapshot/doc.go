/*
Package snapshot implements the snapshot lifecycle: capturing services
into immutable snapshots on a storage backend and driving them back into
live systems.

A snapshot is a manifest (<snapshot_id>_metadata.json at the backend
root) plus one artifact tree (<snapshot_id>/<service>/<kind>.json) or,
when compression is requested, a single <snapshot_id>.tar.gz blob. The
manifest is uploaded last, so a reader never observes a snapshot whose
manifest lists artifacts that are not yet in place. Snapshots are never
rewritten; every backup run gets a fresh id. An export-only backup skips
the backend entirely and returns the artifacts to the caller.

Restore pulls the snapshot into a scoped temp directory, validates the
artifact set against the manifest, and either imports it or produces a
dry-run plan. Multiple services inside one snapshot are exported in
parallel and restored one at a time.
*/
package snapshot
