package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realmkeep/realmkeep/pkg/types"
)

func TestNewKeycloakRegistry(t *testing.T) {
	r := NewKeycloakRegistry()

	assert.Equal(t, []string{
		KindClients, KindUsers, KindGroups, KindRoles, KindIdentityProviders,
	}, r.Names())
	assert.NoError(t, r.Validate())

	// Frozen after construction
	err := r.Register(&Descriptor{Name: "extra"})
	assert.ErrorIs(t, err, types.ErrConfig)

	users, err := r.Lookup(KindUsers)
	require.NoError(t, err)
	assert.Equal(t, []string{KindGroups}, users.DependsOn)

	roles, err := r.Lookup(KindRoles)
	require.NoError(t, err)
	assert.Equal(t, []string{KindClients}, roles.DependsOn)
}

func TestDecodeClient(t *testing.T) {
	d, err := NewKeycloakRegistry().Lookup(KindClients)
	require.NoError(t, err)

	tests := []struct {
		name    string
		in      types.Entity
		want    types.Entity
		wantErr bool
	}{
		{
			name: "strips server fields and applies defaults",
			in: types.Entity{
				"id":       "0b7f2c9a",
				"clientId": "web-app",
				"name":     "Web App",
				"access":   map[string]any{"view": true},
			},
			want: types.Entity{
				"clientId":     "web-app",
				"name":         "Web App",
				"redirectUris": []any{},
				"enabled":      true,
			},
		},
		{
			name: "explicit values survive",
			in: types.Entity{
				"clientId":     "api",
				"enabled":      false,
				"redirectUris": []any{"https://example.com/*"},
			},
			want: types.Entity{
				"clientId":     "api",
				"enabled":      false,
				"redirectUris": []any{"https://example.com/*"},
			},
		},
		{
			name:    "missing clientId",
			in:      types.Entity{"name": "anonymous"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := d.Canonical(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, types.ErrInvalidEntity)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeGroupRecursesSubgroups(t *testing.T) {
	d, err := NewKeycloakRegistry().Lookup(KindGroups)
	require.NoError(t, err)

	got, err := d.Canonical(types.Entity{
		"id":   "top-id",
		"name": "engineering",
		"path": "/engineering",
		"subGroups": []any{
			map[string]any{
				"id":   "child-id",
				"name": "platform",
				"path": "/engineering/platform",
				"subGroups": []any{
					map[string]any{"name": "sre", "path": "/engineering/platform/sre"},
				},
			},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "engineering", got["name"])
	assert.NotContains(t, got, "id")

	subs, ok := got["subGroups"].([]any)
	require.True(t, ok)
	require.Len(t, subs, 1)

	child := subs[0].(map[string]any)
	assert.Equal(t, "platform", child["name"])
	assert.NotContains(t, child, "id")

	grandchildren := child["subGroups"].([]any)
	require.Len(t, grandchildren, 1)
	assert.Equal(t, "sre", grandchildren[0].(map[string]any)["name"])
}

func TestDecodeGroupRejectsMalformedSubgroup(t *testing.T) {
	d, err := NewKeycloakRegistry().Lookup(KindGroups)
	require.NoError(t, err)

	_, err = d.Canonical(types.Entity{
		"name":      "broken",
		"subGroups": []any{"not-an-object"},
	})
	assert.ErrorIs(t, err, types.ErrInvalidEntity)
}

func TestUsersEqual(t *testing.T) {
	d, err := NewKeycloakRegistry().Lookup(KindUsers)
	require.NoError(t, err)

	tests := []struct {
		name string
		a, b types.Entity
		want bool
	}{
		{
			name: "identical users",
			a:    types.Entity{"username": "jdoe", "email": "jdoe@example.com"},
			b:    types.Entity{"username": "jdoe", "email": "jdoe@example.com"},
			want: true,
		},
		{
			name: "same email, drifted name",
			a:    types.Entity{"username": "jdoe", "email": "jdoe@example.com", "firstName": "Jay"},
			b:    types.Entity{"username": "jdoe", "email": "jdoe@example.com", "firstName": "J."},
			want: true,
		},
		{
			name: "different emails",
			a:    types.Entity{"username": "jdoe", "email": "jdoe@example.com"},
			b:    types.Entity{"username": "jdoe", "email": "jane@example.com"},
			want: false,
		},
		{
			name: "both emails absent, drifted fields",
			a:    types.Entity{"username": "jdoe", "enabled": true},
			b:    types.Entity{"username": "jdoe", "enabled": false},
			want: true,
		},
		{
			name: "one email absent",
			a:    types.Entity{"username": "jdoe", "email": "jdoe@example.com"},
			b:    types.Entity{"username": "jdoe"},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, d.Equivalent(tt.a, tt.b))
		})
	}
}

func TestIdentityFields(t *testing.T) {
	r := NewKeycloakRegistry()

	tests := []struct {
		kind   string
		entity types.Entity
		want   string
	}{
		{KindClients, types.Entity{"clientId": "web-app"}, "web-app"},
		{KindUsers, types.Entity{"username": "jdoe"}, "jdoe"},
		{KindGroups, types.Entity{"name": "engineering"}, "engineering"},
		{KindRoles, types.Entity{"name": "admin"}, "admin"},
		{KindIdentityProviders, types.Entity{"alias": "corp-saml"}, "corp-saml"},
		{KindClients, types.Entity{"name": "no clientId"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			d, err := r.Lookup(tt.kind)
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Identity(tt.entity))
		})
	}
}
