/*
Package keycloak implements the identity-provider side of realmkeep: an
authenticated admin REST client plus the exporter and importer that move
realm entities in and out of snapshots.

# Client

The Client speaks the client-credentials grant. Tokens are cached and
checked against the introspection endpoint before each call; an inactive
token is discarded and re-acquired. A 401 on a call invalidates the token
and retries the original request exactly once with a fresh one. A 403 is
surfaced as PermissionDenied with a hint about service-account roles and
is never retried. Token refresh is single-flight, so concurrent callers
hitting an expired token trigger one authentication round-trip.

# Exporter

ExportAll walks the kinds in planner order, fetches each collection and
canonicalises it (server-assigned fields stripped, defaults applied). A
kind that fails is recorded as an error artifact {error, status} and the
export continues; the snapshot is then marked degraded. An empty
collection is a valid result, not an error.

# Importer

ImportAll walks the kinds in planner order and POSTs each entity. Per-item
policy: 409 counts as existing and continues, other 4xx isolate the entity
and continue, 5xx and transport failures abort the remainder of the kind.
Kinds depending on an aborted kind are marked skipped with the reason;
independent branches keep going.
*/
package keycloak
