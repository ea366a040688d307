package render

import (
	"github.com/kestrel3d/kestrel/internal/mathx"
	"github.com/kestrel3d/kestrel/internal/scene/component"
)

// MaxAmbientIntensity caps the combined ambient term so stacked authored
// lights cannot blow out the scene.
const MaxAmbientIntensity = 4.0

// AmbientLight is the single effective ambient term the shader consumes as
// final = color * intensity.
type AmbientLight struct {
	Color     mathx.Vec3
	Intensity float64
}

// CombineAmbient folds every enabled ambient light into one term: intensity
// is the clamped sum, color the intensity-weighted average clamped per
// channel. Returns false when no ambient light contributes.
func CombineAmbient(lights []component.Light) (AmbientLight, bool) {
	total := 0.0
	var weighted mathx.Vec3
	for _, l := range lights {
		if l.LightType != component.LightAmbient || !l.Enabled || l.Intensity <= 0 {
			continue
		}
		total += l.Intensity
		weighted = weighted.Add(l.ColorVec().Scale(l.Intensity))
	}
	if total <= 0 {
		return AmbientLight{}, false
	}
	color := weighted.Scale(1 / total)
	color = mathx.Vec3{
		X: mathx.Clamp(color.X, 0, 1),
		Y: mathx.Clamp(color.Y, 0, 1),
		Z: mathx.Clamp(color.Z, 0, 1),
	}
	return AmbientLight{
		Color:     color,
		Intensity: mathx.Clamp(total, 0, MaxAmbientIntensity),
	}, true
}
