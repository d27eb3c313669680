package types

import (
	"encoding/json"
	"time"
)

// FormatVersion is the manifest format written by this release.
const FormatVersion = "1.0.0"

// Entity is a single realm object as it appears in a snapshot artifact.
// The concrete shape depends on the kind; server-assigned fields are
// stripped before an entity enters a snapshot.
type Entity map[string]any

// Clone returns a deep copy of the entity.
func (e Entity) Clone() Entity {
	if e == nil {
		return nil
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return nil
	}
	var out Entity
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

// String returns a string field of the entity, or "" when absent or not a
// string.
func (e Entity) String(key string) string {
	v, ok := e[key].(string)
	if !ok {
		return ""
	}
	return v
}

// Artifact is the per-kind envelope stored as <service>/<kind>.json inside
// a snapshot. Either Result or Error is populated.
type Artifact struct {
	Message string   `json:"message,omitempty"`
	Result  []Entity `json:"result"`
	Error   string   `json:"error,omitempty"`
	Status  int      `json:"status,omitempty"`
}

// Failed reports whether the artifact records a per-kind export failure.
func (a *Artifact) Failed() bool {
	return a.Error != ""
}

// ServiceMeta describes one backed-up service inside a manifest.
type ServiceMeta struct {
	Type     string   `json:"type"`
	Version  string   `json:"version"`
	Priority int      `json:"priority"`
	Data     []string `json:"data"`
}

// Manifest is the snapshot metadata document, stored as
// <snapshot_id>_metadata.json at the backend root. It is written last and
// never rewritten.
type Manifest struct {
	FormatVersion string                 `json:"format_version"`
	SnapshotID    string                 `json:"snapshot_id"`
	CreatedAt     time.Time              `json:"created_at"`
	Description   string                 `json:"description"`
	Degraded      bool                   `json:"degraded,omitempty"`
	Services      map[string]ServiceMeta `json:"services"`
}

// SnapshotSummary is a manifest reduced to what listings need.
type SnapshotSummary struct {
	SnapshotID  string    `json:"snapshot_id"`
	CreatedAt   time.Time `json:"created_at"`
	Description string    `json:"description"`
	Degraded    bool      `json:"degraded,omitempty"`
	Services    []string  `json:"services"`
}

// BackupResult reports a completed backup. Artifacts is populated only
// for export-only runs, which return the data instead of uploading it.
type BackupResult struct {
	SnapshotID  string                          `json:"snapshot_id,omitempty"`
	MetadataKey string                          `json:"metadata_key,omitempty"`
	Degraded    bool                            `json:"degraded,omitempty"`
	Artifacts   map[string]map[string]*Artifact `json:"artifacts,omitempty"`
}

// ItemOutcome classifies what happened to a single entity during import.
type ItemOutcome string

const (
	ItemCreated  ItemOutcome = "created"
	ItemExisting ItemOutcome = "existing"
	ItemFailed   ItemOutcome = "failed"
	ItemSkipped  ItemOutcome = "skipped"
)

// KindReport accumulates per-kind import counts and failure details.
type KindReport struct {
	Created  int             `json:"created"`
	Existing int             `json:"existing"`
	Failed   int             `json:"failed"`
	Skipped  int             `json:"skipped"`
	Reason   string          `json:"reason,omitempty"`
	Failures []ImportFailure `json:"failures,omitempty"`
}

// ImportFailure records one entity that could not be imported.
type ImportFailure struct {
	Identity string `json:"identity"`
	Error    string `json:"error"`
	Status   int    `json:"status,omitempty"`
}

// RestoreResult is the per-kind report tree for one restored service.
type RestoreResult struct {
	SnapshotID string                 `json:"snapshot_id"`
	Service    string                 `json:"service"`
	Kinds      map[string]*KindReport `json:"kinds"`
	Degraded   bool                   `json:"degraded,omitempty"`
}

// ActionType labels a planned change for one entity.
type ActionType string

const (
	ActionSkip   ActionType = "skip"
	ActionAdd    ActionType = "add"
	ActionUpdate ActionType = "update"
	ActionRemove ActionType = "remove"
)

// Action is one planned change produced by the differ.
type Action struct {
	Type     ActionType `json:"action"`
	Identity string     `json:"identity"`
	Entity   Entity     `json:"entity,omitempty"`
	From     Entity     `json:"from,omitempty"`
	To       Entity     `json:"to,omitempty"`
	// Fields lists the top-level keys whose values differ; only set for
	// updates.
	Fields []string `json:"fields,omitempty"`
}

// KindPlan aggregates the actions for one kind, in snapshot order.
type KindPlan struct {
	Kind    string   `json:"kind"`
	Actions []Action `json:"actions"`
}

// Counts tallies the plan's actions by type.
func (p *KindPlan) Counts() map[ActionType]int {
	counts := make(map[ActionType]int)
	for _, a := range p.Actions {
		counts[a.Type]++
	}
	return counts
}

// RestorePlan is the full dry-run output for one service, kinds in planner
// order.
type RestorePlan struct {
	SnapshotID string     `json:"snapshot_id"`
	Service    string     `json:"service"`
	Kinds      []KindPlan `json:"kinds"`
}

// Empty reports whether the plan contains no add, update or remove action.
func (p *RestorePlan) Empty() bool {
	for _, kp := range p.Kinds {
		for _, a := range kp.Actions {
			if a.Type != ActionSkip {
				return false
			}
		}
	}
	return true
}
