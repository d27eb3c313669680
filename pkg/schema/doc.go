/*
Package schema declares the kinds of realm entities under backup and the
registry that holds them.

A Descriptor carries everything the exporter, importer and differ need to
know about one kind: its identity key, its equality rule, its list/create
endpoints, the kinds it depends on, and a decoder that normalises wire
JSON into the canonical snapshot form (server-assigned fields stripped,
defaults applied).

The Registry is insertion-ordered and frozen after startup; the planner
uses the insertion order to keep topological sorts deterministic.

NewKeycloakRegistry builds the fixed Keycloak kind set:

	clients
	users               depends on groups
	groups
	roles               depends on clients
	identity_providers

Dependencies are plain data on the descriptor, validated statically with
Registry.Validate, so a missing import/export binding is a startup error
rather than a runtime surprise.
*/
package schema
