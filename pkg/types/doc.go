/*
Package types defines the core data structures used throughout realmkeep.

This package contains the snapshot domain model: entities, per-kind
artifacts, manifests, restore plans and reports, plus the error taxonomy
shared by every component.

# Core Types

Snapshot layout:
  - Manifest: snapshot metadata, written last so a snapshot only becomes
    visible once all artifacts are in place
  - Artifact: per-kind envelope {message, result, error, status}
  - Entity: one realm object as an opaque JSON mapping

Plan and report:
  - RestorePlan / KindPlan / Action: dry-run diff output, kinds in
    planner order, actions one of skip, add, update, remove
  - RestoreResult / KindReport: per-kind import counts
    {created, existing, failed, skipped} with failure details

# Errors

Failures are classified by sentinel errors (ErrConfig, ErrTransport,
ErrPermissionDenied, ErrNotFound, ErrCyclicDependency, ErrInvalidEntity,
ErrAlreadyExists, ErrDegraded) matched with errors.Is. StatusError carries
the HTTP status of a failed provider call for the importer's per-item
policy.

# Integration Points

This package is imported by all other packages and imports none of them.
*/
package types
