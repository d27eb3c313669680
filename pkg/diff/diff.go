package diff

import (
	"sort"

	"github.com/google/go-cmp/cmp"
	"github.com/realmkeep/realmkeep/pkg/schema"
	"github.com/realmkeep/realmkeep/pkg/types"
)

// Kind compares a snapshot collection against the live collection for one
// kind and emits one action per identity:
//
//	snapshot only                 add
//	live only                     remove
//	both, equality holds          skip
//	both, equality fails          update (with the field-level diff)
//
// Snapshot entities keep their document order; removes follow in live
// document order.
func Kind(d *schema.Descriptor, snapshot, live []types.Entity) types.KindPlan {
	liveByID := make(map[string]types.Entity, len(live))
	for _, e := range live {
		liveByID[d.Identity(e)] = e
	}
	snapIDs := make(map[string]struct{}, len(snapshot))

	plan := types.KindPlan{Kind: d.Name}
	for _, want := range snapshot {
		id := d.Identity(want)
		snapIDs[id] = struct{}{}

		have, ok := liveByID[id]
		if !ok {
			plan.Actions = append(plan.Actions, types.Action{
				Type:     types.ActionAdd,
				Identity: id,
				Entity:   want,
			})
			continue
		}
		if d.Equivalent(want, have) {
			plan.Actions = append(plan.Actions, types.Action{
				Type:     types.ActionSkip,
				Identity: id,
			})
			continue
		}
		plan.Actions = append(plan.Actions, types.Action{
			Type:     types.ActionUpdate,
			Identity: id,
			From:     have,
			To:       want,
			Fields:   changedFields(have, want),
		})
	}

	for _, e := range live {
		id := d.Identity(e)
		if _, ok := snapIDs[id]; !ok {
			plan.Actions = append(plan.Actions, types.Action{
				Type:     types.ActionRemove,
				Identity: id,
				Entity:   e,
			})
		}
	}

	return plan
}

// changedFields lists the top-level keys whose values differ between two
// entities, sorted for stable output.
func changedFields(from, to types.Entity) []string {
	keys := make(map[string]struct{}, len(from)+len(to))
	for k := range from {
		keys[k] = struct{}{}
	}
	for k := range to {
		keys[k] = struct{}{}
	}

	var changed []string
	for k := range keys {
		if !cmp.Equal(from[k], to[k]) {
			changed = append(changed, k)
		}
	}
	sort.Strings(changed)
	return changed
}
