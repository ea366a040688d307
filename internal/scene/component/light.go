package component

import (
	"math"

	"github.com/kestrel3d/kestrel/internal/mathx"
)

const KindLight = "Light"

// Light type tags.
const (
	LightDirectional = "directional"
	LightPoint       = "point"
	LightSpot        = "spot"
	LightAmbient     = "ambient"
)

// LightColor is an RGB triple in [0,1] channels.
type LightColor struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
}

func (c LightColor) Vec() mathx.Vec3 { return mathx.V3(c.R, c.G, c.B) }

// Light is any of the four light variants; fields irrelevant to a variant
// are ignored by the render builder.
type Light struct {
	LightType     string      `json:"lightType"`
	Color         *LightColor `json:"color,omitempty"`
	Intensity     float64     `json:"intensity"`
	Enabled       bool        `json:"enabled"`
	CastShadow    bool        `json:"castShadow"`
	DirectionX    float64     `json:"directionX"`
	DirectionY    float64     `json:"directionY"`
	DirectionZ    float64     `json:"directionZ"`
	Range         float64     `json:"range"`
	Decay         float64     `json:"decay"`
	Angle         float64     `json:"angle"`
	Penumbra      float64     `json:"penumbra"`
	ShadowMapSize uint32      `json:"shadowMapSize"`
	ShadowBias    float64     `json:"shadowBias"`
	ShadowRadius  float64     `json:"shadowRadius"`
}

func (Light) ComponentKind() string { return KindLight }

// ColorVec returns the light color, defaulting to white.
func (l Light) ColorVec() mathx.Vec3 {
	if l.Color == nil {
		return mathx.One3
	}
	return l.Color.Vec()
}

// Direction returns the normalized direction vector, straight down when
// the authored direction is degenerate.
func (l Light) Direction() mathx.Vec3 {
	d := mathx.V3(l.DirectionX, l.DirectionY, l.DirectionZ)
	if d.LengthSq() < 1e-12 {
		return mathx.V3(0, -1, 0)
	}
	return d.Normalized()
}

func decodeLight(payload []byte) (Component, error) {
	l := Light{
		LightType:     LightDirectional,
		Intensity:     1,
		Enabled:       true,
		CastShadow:    true,
		DirectionY:    -1,
		Range:         10,
		Decay:         1,
		Angle:         math.Pi / 6,
		Penumbra:      0.1,
		ShadowMapSize: 1024,
		ShadowBias:    -0.0001,
		ShadowRadius:  1,
	}
	if err := decodeInto(KindLight, payload, &l); err != nil {
		return nil, err
	}
	switch l.LightType {
	case LightDirectional, LightPoint, LightSpot, LightAmbient:
	default:
		return nil, &DecodeError{Kind: KindLight, Field: "lightType", Reason: ReasonBadValue}
	}
	return l, nil
}
