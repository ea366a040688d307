package render

import (
	"github.com/kestrel3d/kestrel/internal/scene/component"
)

// Texture slot flag bits, matching the shader contract.
const (
	TexFlagAlbedo    = 1 << 0
	TexFlagNormal    = 1 << 1
	TexFlagMetallic  = 1 << 2
	TexFlagRoughness = 1 << 3
	TexFlagEmissive  = 1 << 4
	TexFlagOcclusion = 1 << 5
)

// Shader type selector.
const (
	ShaderStandard uint32 = 0
	ShaderUnlit    uint32 = 1
)

// Alpha modes.
const (
	AlphaOpaque uint32 = 0
	AlphaBlend  uint32 = 1
	AlphaMask   uint32 = 2
)

// MaterialUniform is the fixed-size GPU block for one material. Layout is
// four vec4-sized rows:
//
//	emissive:        emissive rgb + intensity
//	uvTransform:     offsetX, offsetY, repeatX, repeatY
//	normalOcclusion: normalScale, occlusionStrength, alphaCutoff, 0
//	flags:           textureFlags, shaderType, alphaMode, 0
type MaterialUniform struct {
	BaseColor       [4]float32
	MetalRough      [4]float32
	Emissive        [4]float32
	UVTransform     [4]float32
	NormalOcclusion [4]float32
	Flags           [4]uint32
}

// alphaModeOf maps the authored mode to the shader selector, upgrading
// opaque to blend when the legacy transparent flag is set.
func alphaModeOf(m component.Material) uint32 {
	mode := AlphaOpaque
	switch m.AlphaMode {
	case "blend":
		mode = AlphaBlend
	case "mask":
		mode = AlphaMask
	}
	if m.Transparent && mode == AlphaOpaque {
		mode = AlphaBlend
	}
	return mode
}

func shaderTypeOf(m component.Material) uint32 {
	if m.Shader == "unlit" {
		return ShaderUnlit
	}
	return ShaderStandard
}

// BuildMaterialUniform packs the resolved material. textureFlags carries
// the slots the texture binder actually bound.
func BuildMaterialUniform(m component.Material, textureFlags uint32) MaterialUniform {
	base := m.ColorRGB()
	em := m.EmissiveRGB()
	return MaterialUniform{
		BaseColor: [4]float32{float32(base.X), float32(base.Y), float32(base.Z), 1},
		MetalRough: [4]float32{
			float32(m.Metalness), float32(m.Roughness), 0, 0,
		},
		Emissive: [4]float32{
			float32(em.X), float32(em.Y), float32(em.Z), float32(m.EmissiveIntensity),
		},
		UVTransform: [4]float32{
			float32(m.TextureOffsetX), float32(m.TextureOffsetY),
			float32(m.TextureRepeatX), float32(m.TextureRepeatY),
		},
		NormalOcclusion: [4]float32{
			float32(m.NormalScale), float32(m.OcclusionStrength),
			float32(m.AlphaCutoff), 0,
		},
		Flags: [4]uint32{textureFlags, shaderTypeOf(m), alphaModeOf(m), 0},
	}
}
