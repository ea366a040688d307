// Package render turns the live scene into per-camera draw plans: material
// resolution, uniform packing, texture and shadow binding, frustum culling,
// alpha-mode sorting and dispatch to a backend.
package render

import (
	"encoding/json"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"github.com/kestrel3d/kestrel/internal/scene"
	"github.com/kestrel3d/kestrel/internal/scene/component"
)

// MaterialResolver merges inline per-renderer overrides onto base materials
// and caches the merged result under a deterministic synthetic id, so the
// same entity/override pair resolves to the same material on every frame.
type MaterialResolver struct {
	log   *zap.Logger
	bases map[string]component.Material
	cache map[string]component.Material
}

func NewMaterialResolver(log *zap.Logger) *MaterialResolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &MaterialResolver{
		log:   log,
		bases: make(map[string]component.Material),
		cache: make(map[string]component.Material),
	}
}

// SetBaseMaterials replaces the base material table (from scene ingest).
// The merged cache is invalidated because merges depend on base values.
func (r *MaterialResolver) SetBaseMaterials(m map[string]component.Material) {
	r.bases = m
	r.cache = make(map[string]component.Material)
}

// Base returns the base material for an id, falling back to the neutral
// default when the id is unknown or empty.
func (r *MaterialResolver) Base(id string) component.Material {
	if m, ok := r.bases[id]; ok {
		return m
	}
	if id != "" {
		r.log.Debug("unknown material id, using default", zap.String("material", id))
	}
	return component.DefaultMaterial()
}

// Resolve returns the effective material and its id for a renderer. With no
// override the base is returned as-is; otherwise a merged material is
// synthesized under an "inline-" id and cached across frames.
func (r *MaterialResolver) Resolve(entity scene.EntityID, baseID string, override *component.MaterialOverride) (component.Material, string) {
	base := r.Base(baseID)
	if override.IsZero() {
		return base, base.ID
	}
	id := inlineMaterialID(entity, baseID, override)
	if cached, ok := r.cache[id]; ok {
		return cached, id
	}
	merged := override.Apply(base)
	merged.ID = id
	r.cache[id] = merged
	return merged, id
}

// CachedCount returns the number of synthesized materials held.
func (r *MaterialResolver) CachedCount() int { return len(r.cache) }

// inlineMaterialID hashes entity, override variant and base id into a
// stable synthetic material id.
func inlineMaterialID(entity scene.EntityID, baseID string, override *component.MaterialOverride) string {
	h := xxhash.New()
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(uint64(entity) >> (8 * i))
	}
	h.Write(buf[:])
	if raw, err := json.Marshal(override); err == nil {
		h.Write(raw)
	}
	h.WriteString(baseID)
	return fmt.Sprintf("inline-%016x", h.Sum64())
}
