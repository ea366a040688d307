// Package bridge ingests full scenes and sequenced diff batches from the
// editor and applies them on the frame thread.
package bridge

import "encoding/json"

// Diff op type tags.
const (
	DiffAddEntity       = "AddEntity"
	DiffRemoveEntity    = "RemoveEntity"
	DiffUpdateEntity    = "UpdateEntity"
	DiffAddComponent    = "AddComponent"
	DiffSetComponent    = "SetComponent"
	DiffRemoveComponent = "RemoveComponent"
)

// ComponentDiff is one component change: the kind tag plus its payload.
type ComponentDiff struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// DiffOp is one scene change. The wire format is a tagged union; only the
// fields of the active variant are populated.
type DiffOp struct {
	Type string `json:"type"`

	// AddEntity / RemoveEntity / UpdateEntity
	PersistentID       string          `json:"persistent_id,omitempty"`
	ID                 uint32          `json:"id,omitempty"`
	Name               *string         `json:"name,omitempty"`
	ParentPersistentID *string         `json:"parent_persistent_id,omitempty"`
	Components         []ComponentDiff `json:"components,omitempty"`

	// SetComponent / RemoveComponent
	EntityPersistentID string         `json:"entity_persistent_id,omitempty"`
	Component          *ComponentDiff `json:"component,omitempty"`
	ComponentType      string         `json:"component_type,omitempty"`
}

// DiffBatch is a sequenced group of diffs applied atomically with respect
// to the frame.
type DiffBatch struct {
	Sequence uint64   `json:"sequence"`
	Diffs    []DiffOp `json:"diffs"`
}

// ParseDiffBatch decodes a diff batch from JSON.
func ParseDiffBatch(data []byte) (DiffBatch, error) {
	var b DiffBatch
	err := json.Unmarshal(data, &b)
	return b, err
}
