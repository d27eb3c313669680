package schema

import (
	"fmt"
	"sync"

	"github.com/google/go-cmp/cmp"
	"github.com/realmkeep/realmkeep/pkg/types"
)

// Descriptor describes one kind of realm entity: how to identify it, how
// to compare two instances, where to list and create it, and which kinds
// must be materialised before it.
type Descriptor struct {
	// Name uniquely identifies the kind within a registry.
	Name string

	// ListEndpoint and CreateEndpoint are path templates containing a
	// {realm} placeholder, substituted by the API client.
	ListEndpoint   string
	CreateEndpoint string

	// DependsOn names kinds that must be imported before this one.
	DependsOn []string

	// Identity derives the comparison key for an entity. Entities with
	// an empty identity are invalid.
	Identity func(types.Entity) string

	// Equal reports structural equality beyond the identity key. Nil
	// means full structural equality of the canonical form.
	Equal func(a, b types.Entity) bool

	// Decode normalises a wire entity into its canonical snapshot form,
	// stripping server-assigned fields and applying defaults. Nil means
	// the entity is stored as-is.
	Decode func(types.Entity) (types.Entity, error)
}

// Canonical applies the descriptor's decoder, or returns the entity
// unchanged when no decoder is set.
func (d *Descriptor) Canonical(e types.Entity) (types.Entity, error) {
	if d.Decode == nil {
		return e, nil
	}
	return d.Decode(e)
}

// Equivalent compares two canonical entities under the kind's equality
// rule.
func (d *Descriptor) Equivalent(a, b types.Entity) bool {
	if d.Equal != nil {
		return d.Equal(a, b)
	}
	return cmp.Equal(a, b)
}

// Registry is an insertion-ordered, process-wide mapping from kind name to
// descriptor. It is populated at startup and frozen before use; mutation
// after Freeze fails with a Config error.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*Descriptor
	order  []string
	frozen bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*Descriptor),
	}
}

// Register adds a descriptor. Duplicate names and registration after
// Freeze fail.
func (r *Registry) Register(d *Descriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return fmt.Errorf("%w: registry is frozen, cannot register kind %q", types.ErrConfig, d.Name)
	}
	if d.Name == "" {
		return fmt.Errorf("%w: kind name must not be empty", types.ErrConfig)
	}
	if _, ok := r.byName[d.Name]; ok {
		return fmt.Errorf("%w: kind %q registered twice", types.ErrConfig, d.Name)
	}

	r.byName[d.Name] = d
	r.order = append(r.order, d.Name)
	return nil
}

// Freeze makes the registry immutable. Idempotent.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Lookup returns the descriptor for a kind name.
func (r *Registry) Lookup(name string) (*Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown kind %q", types.ErrNotFound, name)
	}
	return d, nil
}

// Kinds returns all descriptors in insertion order.
func (r *Registry) Kinds() []*Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Descriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

// Names returns the kind names in insertion order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Validate checks that every declared dependency names a registered kind.
func (r *Registry) Validate() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range r.order {
		for _, dep := range r.byName[name].DependsOn {
			if _, ok := r.byName[dep]; !ok {
				return fmt.Errorf("%w: kind %q depends on unregistered kind %q", types.ErrConfig, name, dep)
			}
		}
	}
	return nil
}
