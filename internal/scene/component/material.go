package component

import (
	"encoding/json"

	"github.com/kestrel3d/kestrel/internal/mathx"
)

const KindMaterial = "Material"

// Material is a PBR surface description, used both as a scene side-table
// entry (looked up by id) and as a component payload.
type Material struct {
	ID                string  `json:"id"`
	Name              string  `json:"name,omitempty"`
	Color             string  `json:"color"`
	MaterialType      string  `json:"materialType,omitempty"`
	Metalness         float64 `json:"metalness"`
	Roughness         float64 `json:"roughness"`
	Emissive          string  `json:"emissive,omitempty"`
	EmissiveIntensity float64 `json:"emissiveIntensity"`
	Shader            string  `json:"shader"`

	AlbedoTexture    string `json:"albedoTexture,omitempty"`
	NormalTexture    string `json:"normalTexture,omitempty"`
	MetallicTexture  string `json:"metallicTexture,omitempty"`
	RoughnessTexture string `json:"roughnessTexture,omitempty"`
	EmissiveTexture  string `json:"emissiveTexture,omitempty"`
	OcclusionTexture string `json:"occlusionTexture,omitempty"`

	NormalScale       float64 `json:"normalScale"`
	OcclusionStrength float64 `json:"occlusionStrength"`
	TextureOffsetX    float64 `json:"textureOffsetX"`
	TextureOffsetY    float64 `json:"textureOffsetY"`
	TextureRepeatX    float64 `json:"textureRepeatX"`
	TextureRepeatY    float64 `json:"textureRepeatY"`

	Transparent bool    `json:"transparent"`
	AlphaMode   string  `json:"alphaMode"`
	AlphaCutoff float64 `json:"alphaCutoff"`
}

func (Material) ComponentKind() string { return KindMaterial }

// DefaultMaterial returns the neutral gray fallback used when a referenced
// material id is missing.
func DefaultMaterial() Material {
	m := materialDefaults()
	m.ID = "default"
	m.Color = "#cccccc"
	return m
}

func materialDefaults() Material {
	return Material{
		Color:             "#ffffff",
		MaterialType:      "solid",
		Roughness:         0.7,
		Shader:            "standard",
		NormalScale:       1,
		OcclusionStrength: 1,
		TextureRepeatX:    1,
		TextureRepeatY:    1,
		AlphaMode:         "opaque",
		AlphaCutoff:       0.5,
	}
}

// ColorRGB parses the base color, white on failure.
func (m Material) ColorRGB() mathx.Vec3 {
	c := ColorOrWhite(m.Color)
	return mathx.V3(c[0], c[1], c[2])
}

// EmissiveRGB parses the emissive color, black when unset.
func (m Material) EmissiveRGB() mathx.Vec3 {
	if m.Emissive == "" {
		return mathx.Zero3
	}
	c := ColorOrWhite(m.Emissive)
	return mathx.V3(c[0], c[1], c[2])
}

func decodeMaterial(payload []byte) (Component, error) {
	m := materialDefaults()
	if err := decodeInto(KindMaterial, payload, &m, "id"); err != nil {
		return nil, err
	}
	return m, nil
}

// DecodeMaterialTable decodes a side-table material entry. Same shape as
// the component payload.
func DecodeMaterialTable(payload json.RawMessage) (Material, error) {
	c, err := decodeMaterial(payload)
	if err != nil {
		return Material{}, err
	}
	return c.(Material), nil
}

// MaterialOverride is the inline per-renderer override: every field is
// optional and, when present, replaces the base material's value.
type MaterialOverride struct {
	Color             *string  `json:"color,omitempty"`
	Metalness         *float64 `json:"metalness,omitempty"`
	Roughness         *float64 `json:"roughness,omitempty"`
	Emissive          *string  `json:"emissive,omitempty"`
	EmissiveIntensity *float64 `json:"emissiveIntensity,omitempty"`
	Shader            *string  `json:"shader,omitempty"`

	AlbedoTexture    *string `json:"albedoTexture,omitempty"`
	NormalTexture    *string `json:"normalTexture,omitempty"`
	MetallicTexture  *string `json:"metallicTexture,omitempty"`
	RoughnessTexture *string `json:"roughnessTexture,omitempty"`
	EmissiveTexture  *string `json:"emissiveTexture,omitempty"`
	OcclusionTexture *string `json:"occlusionTexture,omitempty"`

	NormalScale       *float64 `json:"normalScale,omitempty"`
	OcclusionStrength *float64 `json:"occlusionStrength,omitempty"`
	TextureOffsetX    *float64 `json:"textureOffsetX,omitempty"`
	TextureOffsetY    *float64 `json:"textureOffsetY,omitempty"`
	TextureRepeatX    *float64 `json:"textureRepeatX,omitempty"`
	TextureRepeatY    *float64 `json:"textureRepeatY,omitempty"`

	Transparent *bool    `json:"transparent,omitempty"`
	AlphaMode   *string  `json:"alphaMode,omitempty"`
	AlphaCutoff *float64 `json:"alphaCutoff,omitempty"`
}

// IsZero reports whether no field is overridden.
func (o *MaterialOverride) IsZero() bool {
	if o == nil {
		return true
	}
	return *o == MaterialOverride{}
}

// Apply merges the override onto a copy of the base, field-wise.
func (o *MaterialOverride) Apply(base Material) Material {
	out := base
	if o == nil {
		return out
	}
	setS := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setF := func(dst *float64, src *float64) {
		if src != nil {
			*dst = *src
		}
	}
	setS(&out.Color, o.Color)
	setF(&out.Metalness, o.Metalness)
	setF(&out.Roughness, o.Roughness)
	setS(&out.Emissive, o.Emissive)
	setF(&out.EmissiveIntensity, o.EmissiveIntensity)
	setS(&out.Shader, o.Shader)
	setS(&out.AlbedoTexture, o.AlbedoTexture)
	setS(&out.NormalTexture, o.NormalTexture)
	setS(&out.MetallicTexture, o.MetallicTexture)
	setS(&out.RoughnessTexture, o.RoughnessTexture)
	setS(&out.EmissiveTexture, o.EmissiveTexture)
	setS(&out.OcclusionTexture, o.OcclusionTexture)
	setF(&out.NormalScale, o.NormalScale)
	setF(&out.OcclusionStrength, o.OcclusionStrength)
	setF(&out.TextureOffsetX, o.TextureOffsetX)
	setF(&out.TextureOffsetY, o.TextureOffsetY)
	setF(&out.TextureRepeatX, o.TextureRepeatX)
	setF(&out.TextureRepeatY, o.TextureRepeatY)
	if o.Transparent != nil {
		out.Transparent = *o.Transparent
	}
	setS(&out.AlphaMode, o.AlphaMode)
	setF(&out.AlphaCutoff, o.AlphaCutoff)
	return out
}
