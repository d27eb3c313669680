package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realmkeep/realmkeep/pkg/types"
)

func TestRegistryRegister(t *testing.T) {
	r := NewRegistry()

	err := r.Register(&Descriptor{Name: "widgets"})
	assert.NoError(t, err)

	// Duplicate name
	err = r.Register(&Descriptor{Name: "widgets"})
	assert.ErrorIs(t, err, types.ErrConfig)

	// Empty name
	err = r.Register(&Descriptor{})
	assert.ErrorIs(t, err, types.ErrConfig)
}

func TestRegistryFreeze(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&Descriptor{Name: "widgets"}))

	r.Freeze()

	err := r.Register(&Descriptor{Name: "gadgets"})
	assert.ErrorIs(t, err, types.ErrConfig)

	// Freeze is idempotent
	r.Freeze()
	assert.Equal(t, []string{"widgets"}, r.Names())
}

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&Descriptor{Name: "widgets"}))

	d, err := r.Lookup("widgets")
	require.NoError(t, err)
	assert.Equal(t, "widgets", d.Name)

	_, err = r.Lookup("gadgets")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestRegistryOrderPreserved(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"c", "a", "b"} {
		require.NoError(t, r.Register(&Descriptor{Name: name}))
	}

	assert.Equal(t, []string{"c", "a", "b"}, r.Names())

	kinds := r.Kinds()
	require.Len(t, kinds, 3)
	assert.Equal(t, "c", kinds[0].Name)
	assert.Equal(t, "b", kinds[2].Name)
}

func TestRegistryValidate(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&Descriptor{Name: "users", DependsOn: []string{"groups"}}))

	err := r.Validate()
	assert.ErrorIs(t, err, types.ErrConfig)

	require.NoError(t, r.Register(&Descriptor{Name: "groups"}))
	assert.NoError(t, r.Validate())
}

func TestDescriptorCanonical(t *testing.T) {
	plain := &Descriptor{Name: "plain"}
	in := types.Entity{"a": 1.0}
	out, err := plain.Canonical(in)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	failing := &Descriptor{
		Name: "failing",
		Decode: func(types.Entity) (types.Entity, error) {
			return nil, errors.New("bad entity")
		},
	}
	_, err = failing.Canonical(in)
	assert.Error(t, err)
}

func TestDescriptorEquivalent(t *testing.T) {
	d := &Descriptor{Name: "widgets"}

	a := types.Entity{"name": "x", "enabled": true}
	b := types.Entity{"name": "x", "enabled": true}
	c := types.Entity{"name": "x", "enabled": false}

	assert.True(t, d.Equivalent(a, b))
	assert.False(t, d.Equivalent(a, c))

	// Custom equality rule wins over structural comparison
	custom := &Descriptor{
		Name:  "custom",
		Equal: func(a, b types.Entity) bool { return a.String("name") == b.String("name") },
	}
	assert.True(t, custom.Equivalent(a, c))
}
