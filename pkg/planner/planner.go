package planner

import (
	"fmt"
	"sort"
	"strings"

	"github.com/realmkeep/realmkeep/pkg/schema"
	"github.com/realmkeep/realmkeep/pkg/types"
)

// Order computes the topological ordering of the registry's kinds: every
// kind appears after all kinds it depends on. The same ordering drives
// both export and import, since dependents need their prerequisites
// created first.
//
// The sort is Kahn's algorithm over the reversed edge set (dependency →
// dependent). Ties are broken by registry insertion order so runs are
// deterministic. A cycle fails with a CyclicDependency error naming the
// unprocessed kinds.
func Order(reg *schema.Registry) ([]*schema.Descriptor, error) {
	if err := reg.Validate(); err != nil {
		return nil, err
	}

	kinds := reg.Kinds()
	position := make(map[string]int, len(kinds))
	for i, d := range kinds {
		position[d.Name] = i
	}

	// successors[dep] lists the kinds waiting on dep; inDegree counts
	// unmet dependencies per kind.
	successors := make(map[string][]string, len(kinds))
	inDegree := make(map[string]int, len(kinds))
	for _, d := range kinds {
		inDegree[d.Name] = len(d.DependsOn)
		for _, dep := range d.DependsOn {
			successors[dep] = append(successors[dep], d.Name)
		}
	}

	var queue []string
	for _, d := range kinds {
		if inDegree[d.Name] == 0 {
			queue = append(queue, d.Name)
		}
	}

	ordered := make([]*schema.Descriptor, 0, len(kinds))
	for len(queue) > 0 {
		// Stable dequeue: lowest registry position first.
		sort.Slice(queue, func(i, j int) bool {
			return position[queue[i]] < position[queue[j]]
		})
		current := queue[0]
		queue = queue[1:]

		d, err := reg.Lookup(current)
		if err != nil {
			return nil, err
		}
		ordered = append(ordered, d)

		for _, succ := range successors[current] {
			inDegree[succ]--
			if inDegree[succ] == 0 {
				queue = append(queue, succ)
			}
		}
	}

	if len(ordered) < len(kinds) {
		var stuck []string
		for _, d := range kinds {
			if inDegree[d.Name] > 0 {
				stuck = append(stuck, d.Name)
			}
		}
		return nil, fmt.Errorf("%w: kinds %s form a cycle", types.ErrCyclicDependency, strings.Join(stuck, ", "))
	}

	return ordered, nil
}

// Names returns the ordered kind names, for logging and manifests.
func Names(ordered []*schema.Descriptor) []string {
	out := make([]string, len(ordered))
	for i, d := range ordered {
		out[i] = d.Name
	}
	return out
}
