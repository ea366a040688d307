package component

import (
	"github.com/kestrel3d/kestrel/internal/mathx"
)

const KindTransform = "Transform"

// Transform is position/rotation/scale in parent space. Rotation accepts
// either three Euler angles in degrees or a four-element quaternion; the
// raw form is kept so re-encoding preserves the authored representation.
type Transform struct {
	Position *[3]float64 `json:"position,omitempty"`
	Rotation []float64   `json:"rotation,omitempty"`
	Scale    *[3]float64 `json:"scale,omitempty"`
}

func (Transform) ComponentKind() string { return KindTransform }

// PositionVec returns the position, defaulting to the origin.
func (t Transform) PositionVec() mathx.Vec3 {
	if t.Position == nil {
		return mathx.Zero3
	}
	return mathx.V3(t.Position[0], t.Position[1], t.Position[2])
}

// ScaleVec returns the scale, defaulting to one.
func (t Transform) ScaleVec() mathx.Vec3 {
	if t.Scale == nil {
		return mathx.One3
	}
	return mathx.V3(t.Scale[0], t.Scale[1], t.Scale[2])
}

// RotationQuat normalizes the rotation field: three elements are Euler
// degrees (intrinsic XYZ), four are a raw quaternion. Anything else is
// identity.
func (t Transform) RotationQuat() mathx.Quat {
	switch len(t.Rotation) {
	case 3:
		return mathx.QuatFromEulerXYZ(
			mathx.Radians(t.Rotation[0]),
			mathx.Radians(t.Rotation[1]),
			mathx.Radians(t.Rotation[2]),
		)
	case 4:
		q := mathx.Quat{X: t.Rotation[0], Y: t.Rotation[1], Z: t.Rotation[2], W: t.Rotation[3]}
		return q.Normalized()
	default:
		return mathx.QuatIdentity()
	}
}

// LocalMatrix composes the TRS matrix in parent space.
func (t Transform) LocalMatrix() mathx.Mat4 {
	return mathx.Mat4TRS(t.PositionVec(), t.RotationQuat(), t.ScaleVec())
}

// TransformFrom builds a Transform record from decomposed values. Rotation
// is stored as a quaternion so no precision is lost on round trips.
func TransformFrom(pos mathx.Vec3, rot mathx.Quat, scale mathx.Vec3) Transform {
	return Transform{
		Position: &[3]float64{pos.X, pos.Y, pos.Z},
		Rotation: []float64{rot.X, rot.Y, rot.Z, rot.W},
		Scale:    &[3]float64{scale.X, scale.Y, scale.Z},
	}
}

func decodeTransform(payload []byte) (Component, error) {
	var t Transform
	if err := decodeInto(KindTransform, payload, &t); err != nil {
		return nil, err
	}
	if n := len(t.Rotation); n != 0 && n != 3 && n != 4 {
		return nil, &DecodeError{Kind: KindTransform, Field: "rotation", Reason: ReasonBadValue}
	}
	return t, nil
}
