package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realmkeep/realmkeep/pkg/schema"
	"github.com/realmkeep/realmkeep/pkg/types"
)

func registryOf(t *testing.T, descriptors ...*schema.Descriptor) *schema.Registry {
	t.Helper()
	r := schema.NewRegistry()
	for _, d := range descriptors {
		require.NoError(t, r.Register(d))
	}
	return r
}

func TestOrder(t *testing.T) {
	tests := []struct {
		name        string
		descriptors []*schema.Descriptor
		want        []string
	}{
		{
			name: "no dependencies keeps insertion order",
			descriptors: []*schema.Descriptor{
				{Name: "c"}, {Name: "a"}, {Name: "b"},
			},
			want: []string{"c", "a", "b"},
		},
		{
			name: "dependency precedes dependent",
			descriptors: []*schema.Descriptor{
				{Name: "users", DependsOn: []string{"groups"}},
				{Name: "groups"},
			},
			want: []string{"groups", "users"},
		},
		{
			name: "chain",
			descriptors: []*schema.Descriptor{
				{Name: "c", DependsOn: []string{"b"}},
				{Name: "b", DependsOn: []string{"a"}},
				{Name: "a"},
			},
			want: []string{"a", "b", "c"},
		},
		{
			name: "ties broken by insertion order",
			descriptors: []*schema.Descriptor{
				{Name: "clients"},
				{Name: "users", DependsOn: []string{"groups"}},
				{Name: "groups"},
				{Name: "roles", DependsOn: []string{"clients"}},
			},
			want: []string{"clients", "groups", "users", "roles"},
		},
		{
			name: "diamond",
			descriptors: []*schema.Descriptor{
				{Name: "d", DependsOn: []string{"b", "c"}},
				{Name: "b", DependsOn: []string{"a"}},
				{Name: "c", DependsOn: []string{"a"}},
				{Name: "a"},
			},
			want: []string{"a", "b", "c", "d"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ordered, err := Order(registryOf(t, tt.descriptors...))
			require.NoError(t, err)
			assert.Equal(t, tt.want, Names(ordered))
		})
	}
}

func TestOrderDeterministic(t *testing.T) {
	r := registryOf(t,
		&schema.Descriptor{Name: "clients"},
		&schema.Descriptor{Name: "users", DependsOn: []string{"groups"}},
		&schema.Descriptor{Name: "groups"},
		&schema.Descriptor{Name: "roles", DependsOn: []string{"clients"}},
		&schema.Descriptor{Name: "identity_providers"},
	)

	first, err := Order(r)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := Order(r)
		require.NoError(t, err)
		assert.Equal(t, Names(first), Names(again))
	}
}

func TestOrderCycle(t *testing.T) {
	r := registryOf(t,
		&schema.Descriptor{Name: "a", DependsOn: []string{"b"}},
		&schema.Descriptor{Name: "b", DependsOn: []string{"a"}},
		&schema.Descriptor{Name: "standalone"},
	)

	_, err := Order(r)
	require.ErrorIs(t, err, types.ErrCyclicDependency)
	assert.Contains(t, err.Error(), "a")
	assert.Contains(t, err.Error(), "b")
	assert.NotContains(t, err.Error(), "standalone")
}

func TestOrderSelfCycle(t *testing.T) {
	r := registryOf(t, &schema.Descriptor{Name: "a", DependsOn: []string{"a"}})

	_, err := Order(r)
	assert.ErrorIs(t, err, types.ErrCyclicDependency)
}

func TestOrderUnknownDependency(t *testing.T) {
	r := registryOf(t, &schema.Descriptor{Name: "users", DependsOn: []string{"ghosts"}})

	_, err := Order(r)
	assert.ErrorIs(t, err, types.ErrConfig)
}
