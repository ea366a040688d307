package component

import "encoding/json"

const (
	KindMeshRenderer = "MeshRenderer"
	KindInstanced    = "Instanced"
)

// MeshRenderer binds an entity to a mesh and a material. Material may be
// referenced by id, overridden inline per entity, or both.
type MeshRenderer struct {
	MeshID         string            `json:"meshId,omitempty"`
	MaterialID     string            `json:"materialId,omitempty"`
	Material       *MaterialOverride `json:"material,omitempty"`
	ModelPath      string            `json:"modelPath,omitempty"`
	Enabled        bool              `json:"enabled"`
	CastShadows    bool              `json:"castShadows"`
	ReceiveShadows bool              `json:"receiveShadows"`
}

func (MeshRenderer) ComponentKind() string { return KindMeshRenderer }

func decodeMeshRenderer(payload []byte) (Component, error) {
	mr := MeshRenderer{Enabled: true, CastShadows: true, ReceiveShadows: true}
	if err := decodeInto(KindMeshRenderer, payload, &mr); err != nil {
		return nil, err
	}
	return mr, nil
}

// InstanceData is one entry of an instanced renderer. Rotation is Euler
// degrees; scale and color default to the base values when absent.
type InstanceData struct {
	Position [3]float64      `json:"position"`
	Rotation *[3]float64     `json:"rotation,omitempty"`
	Scale    *[3]float64     `json:"scale,omitempty"`
	Color    *[3]float64     `json:"color,omitempty"`
	UserData json.RawMessage `json:"userData,omitempty"`
}

// Instanced draws many copies of one mesh/material pair in a single call.
type Instanced struct {
	Enabled        bool           `json:"enabled"`
	Capacity       uint32         `json:"capacity"`
	BaseMeshID     string         `json:"baseMeshId"`
	BaseMaterialID string         `json:"baseMaterialId"`
	Instances      []InstanceData `json:"instances"`
	CastShadows    bool           `json:"castShadows"`
	ReceiveShadows bool           `json:"receiveShadows"`
	FrustumCulled  bool           `json:"frustum_culled"`
}

func (Instanced) ComponentKind() string { return KindInstanced }

func decodeInstanced(payload []byte) (Component, error) {
	inst := Instanced{
		Enabled:        true,
		Capacity:       100,
		CastShadows:    true,
		ReceiveShadows: true,
		FrustumCulled:  true,
	}
	if err := decodeInto(KindInstanced, payload, &inst); err != nil {
		return nil, err
	}
	return inst, nil
}
