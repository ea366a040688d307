// Package scene holds the entity/component data model, the mutable scene
// state, and the command buffer discipline that defers structural edits to
// frame-safe apply points.
package scene

import (
	"encoding/json"

	"github.com/cespare/xxhash/v2"
)

// EntityID is an opaque 64-bit handle. IDs derived from persistent string
// identifiers are xxhash64 of the string; runtime-created entities get
// allocator ids. IDs are never reused during a session.
type EntityID uint64

// EntityIDFromPersistent derives the stable handle for a persistent id.
func EntityIDFromPersistent(persistentID string) EntityID {
	return EntityID(xxhash.Sum64String(persistentID))
}

func (id EntityID) IsZero() bool { return id == 0 }

// ComponentKind is the short string tag keying component payloads
// (e.g. "Transform", "MeshRenderer").
type ComponentKind string

// Entity is a named record with a stable identifier and a bag of component
// payloads, at most one per kind. Payloads stay raw JSON until a decoder
// materializes them.
type Entity struct {
	PersistentID       string                            `json:"persistentId,omitempty"`
	NumericID          uint32                            `json:"id,omitempty"`
	Name               string                            `json:"name,omitempty"`
	ParentPersistentID string                            `json:"parentPersistentId,omitempty"`
	Tags               []string                          `json:"tags,omitempty"`
	Components         map[ComponentKind]json.RawMessage `json:"components,omitempty"`

	// Disabled is runtime-only state toggled by set_active; inactive
	// entities are skipped by scripts and rendering but keep their data.
	Disabled bool `json:"-"`
}

// IsActive reports whether the entity participates in the frame.
func (e *Entity) IsActive() bool { return !e.Disabled }

// EntityID returns the stable handle: the persistent-id hash when present,
// otherwise the numeric editor id. Zero means the entity has no identity yet.
func (e *Entity) EntityID() EntityID {
	if e.PersistentID != "" {
		return EntityIDFromPersistent(e.PersistentID)
	}
	return EntityID(e.NumericID)
}

// Component returns the raw payload for a kind.
func (e *Entity) Component(kind ComponentKind) (json.RawMessage, bool) {
	p, ok := e.Components[kind]
	return p, ok
}

// SetComponent upserts a raw payload.
func (e *Entity) SetComponent(kind ComponentKind, payload json.RawMessage) {
	if e.Components == nil {
		e.Components = make(map[ComponentKind]json.RawMessage, 4)
	}
	e.Components[kind] = payload
}

// RemoveComponent deletes a payload; reports whether it existed.
func (e *Entity) RemoveComponent(kind ComponentKind) bool {
	if _, ok := e.Components[kind]; !ok {
		return false
	}
	delete(e.Components, kind)
	return true
}

// HasTag reports whether the entity carries the tag.
func (e *Entity) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Metadata is the scene header block from the authoring side.
type Metadata struct {
	Name        string `json:"name"`
	Version     int    `json:"version"`
	Timestamp   string `json:"timestamp,omitempty"`
	Author      string `json:"author,omitempty"`
	Description string `json:"description,omitempty"`
}

// Scene is an ordered sequence of entities plus optional side tables. The
// entity order carries no meaning beyond deterministic iteration.
type Scene struct {
	Metadata        Metadata          `json:"metadata"`
	Entities        []*Entity         `json:"entities"`
	Materials       []json.RawMessage `json:"materials,omitempty"`
	Prefabs         []json.RawMessage `json:"prefabs,omitempty"`
	InputAssets     json.RawMessage   `json:"inputAssets,omitempty"`
	LockedEntityIDs []uint32          `json:"lockedEntityIds,omitempty"`
}

// FindByEntityID returns the entity with the given handle, or nil.
func (s *Scene) FindByEntityID(id EntityID) *Entity {
	for _, e := range s.Entities {
		if e.EntityID() == id {
			return e
		}
	}
	return nil
}

// FindByPersistentID returns the entity with the given persistent id, or nil.
func (s *Scene) FindByPersistentID(pid string) *Entity {
	for _, e := range s.Entities {
		if e.PersistentID == pid {
			return e
		}
	}
	return nil
}

// FindByName returns the first entity with the given display name, or nil.
func (s *Scene) FindByName(name string) *Entity {
	for _, e := range s.Entities {
		if e.Name == name {
			return e
		}
	}
	return nil
}

// FindByTag returns all entities carrying the tag, in scene order.
func (s *Scene) FindByTag(tag string) []*Entity {
	var out []*Entity
	for _, e := range s.Entities {
		if e.HasTag(tag) {
			out = append(out, e)
		}
	}
	return out
}

// EntityIDs returns the handles of all entities in scene order.
func (s *Scene) EntityIDs() []EntityID {
	ids := make([]EntityID, 0, len(s.Entities))
	for _, e := range s.Entities {
		if id := e.EntityID(); !id.IsZero() {
			ids = append(ids, id)
		}
	}
	return ids
}

// IsLocked reports whether the numeric editor id is in the locked set. The
// runtime stores the set but attaches no semantics to it.
func (s *Scene) IsLocked(numericID uint32) bool {
	for _, id := range s.LockedEntityIDs {
		if id == numericID {
			return true
		}
	}
	return false
}
