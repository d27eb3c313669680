package schema

import (
	"fmt"

	"github.com/realmkeep/realmkeep/pkg/types"
)

// Kind names of the Keycloak realm entities under backup.
const (
	KindClients           = "clients"
	KindUsers             = "users"
	KindGroups            = "groups"
	KindRoles             = "roles"
	KindIdentityProviders = "identity_providers"
)

// NewKeycloakRegistry builds the frozen registry for a Keycloak realm:
// clients, users, groups, roles and identity providers, with users
// depending on groups and roles depending on clients.
func NewKeycloakRegistry() *Registry {
	r := NewRegistry()

	descriptors := []*Descriptor{
		{
			Name:           KindClients,
			ListEndpoint:   "/admin/realms/{realm}/clients",
			CreateEndpoint: "/admin/realms/{realm}/clients",
			Identity:       identityField("clientId"),
			Decode:         decodeClient,
		},
		{
			Name:           KindUsers,
			ListEndpoint:   "/admin/realms/{realm}/users",
			CreateEndpoint: "/admin/realms/{realm}/users",
			DependsOn:      []string{KindGroups},
			Identity:       identityField("username"),
			Equal:          usersEqual,
			Decode:         decodeUser,
		},
		{
			Name:           KindGroups,
			ListEndpoint:   "/admin/realms/{realm}/groups",
			CreateEndpoint: "/admin/realms/{realm}/groups",
			Identity:       identityField("name"),
			Decode:         decodeGroup,
		},
		{
			Name:           KindRoles,
			ListEndpoint:   "/admin/realms/{realm}/roles",
			CreateEndpoint: "/admin/realms/{realm}/roles",
			DependsOn:      []string{KindClients},
			Identity:       identityField("name"),
			Decode:         decodeRole,
		},
		{
			Name:           KindIdentityProviders,
			ListEndpoint:   "/admin/realms/{realm}/identity-provider/instances",
			CreateEndpoint: "/admin/realms/{realm}/identity-provider/instances",
			Identity:       identityField("alias"),
			Decode:         decodeIdentityProvider,
		},
	}

	for _, d := range descriptors {
		// Registration of a fixed descriptor set cannot fail.
		if err := r.Register(d); err != nil {
			panic(err)
		}
	}
	r.Freeze()
	return r
}

func identityField(key string) func(types.Entity) string {
	return func(e types.Entity) string {
		return e.String(key)
	}
}

// usersEqual treats two user entries with the same email as equivalent
// even when other fields differ, so cosmetic drift does not force an
// update. Two email-less entries compare equal on that basis too.
func usersEqual(a, b types.Entity) bool {
	if structurallyEqual(a, b) {
		return true
	}
	return a.String("email") == b.String("email")
}

func structurallyEqual(a, b types.Entity) bool {
	d := Descriptor{}
	return d.Equivalent(a, b)
}

func decodeClient(e types.Entity) (types.Entity, error) {
	out, err := canonicalize(e, "clients", []fieldSpec{
		{name: "clientId", required: true},
		{name: "name"},
		{name: "description"},
		{name: "rootUrl"},
		{name: "baseUrl"},
		{name: "redirectUris", def: []any{}},
		{name: "enabled", def: true},
	})
	return out, err
}

func decodeUser(e types.Entity) (types.Entity, error) {
	return canonicalize(e, "users", []fieldSpec{
		{name: "username", required: true},
		{name: "email"},
		{name: "firstName"},
		{name: "lastName"},
		{name: "enabled", def: true},
		{name: "emailVerified", def: false},
		{name: "attributes", def: map[string]any{}},
	})
}

func decodeGroup(e types.Entity) (types.Entity, error) {
	out, err := canonicalize(e, "groups", []fieldSpec{
		{name: "name", required: true},
		{name: "path"},
		{name: "attributes", def: map[string]any{}},
	})
	if err != nil {
		return nil, err
	}

	// Subgroups are a tree, not a graph: recurse into owned children.
	subs := []any{}
	if raw, ok := e["subGroups"].([]any); ok {
		for _, item := range raw {
			child, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: groups subGroups entry is not an object", types.ErrInvalidEntity)
			}
			decoded, err := decodeGroup(types.Entity(child))
			if err != nil {
				return nil, err
			}
			subs = append(subs, map[string]any(decoded))
		}
	}
	out["subGroups"] = subs
	return out, nil
}

func decodeRole(e types.Entity) (types.Entity, error) {
	return canonicalize(e, "roles", []fieldSpec{
		{name: "name", required: true},
		{name: "description"},
		{name: "composite", def: false},
		{name: "clientRole", def: false},
		{name: "containerId"},
	})
}

func decodeIdentityProvider(e types.Entity) (types.Entity, error) {
	return canonicalize(e, "identity_providers", []fieldSpec{
		{name: "alias", required: true},
		{name: "displayName"},
		{name: "providerId", required: true},
		{name: "enabled", def: true},
		{name: "trustEmail", def: false},
		{name: "storeToken", def: false},
		{name: "addReadTokenRoleOnCreate", def: false},
		{name: "config", def: map[string]any{}},
	})
}

// fieldSpec is one retained field of a kind's canonical form. Fields not
// listed (server-assigned id, timestamps, access metadata) are stripped.
type fieldSpec struct {
	name     string
	required bool
	def      any
}

func canonicalize(e types.Entity, kind string, specs []fieldSpec) (types.Entity, error) {
	out := make(types.Entity, len(specs))
	for _, spec := range specs {
		v, ok := e[spec.name]
		if !ok || v == nil {
			if spec.required {
				return nil, fmt.Errorf("%w: %s entity missing required field %q", types.ErrInvalidEntity, kind, spec.name)
			}
			if spec.def != nil {
				out[spec.name] = spec.def
			}
			continue
		}
		out[spec.name] = v
	}
	return out, nil
}
