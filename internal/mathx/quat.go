package mathx

import "math"

// Quat is a rotation quaternion (X, Y, Z imaginary, W real).
type Quat struct {
	X, Y, Z, W float64
}

// QuatIdentity is the no-rotation quaternion.
func QuatIdentity() Quat { return Quat{0, 0, 0, 1} }

// QuatFromEulerXYZ builds a quaternion from intrinsic XYZ Euler angles in
// radians. This matches the authoring convention: editors store degrees,
// ingest converts with Radians() before calling this.
func QuatFromEulerXYZ(x, y, z float64) Quat {
	cx, sx := math.Cos(x/2), math.Sin(x/2)
	cy, sy := math.Cos(y/2), math.Sin(y/2)
	cz, sz := math.Cos(z/2), math.Sin(z/2)

	return Quat{
		X: sx*cy*cz + cx*sy*sz,
		Y: cx*sy*cz - sx*cy*sz,
		Z: cx*cy*sz + sx*sy*cz,
		W: cx*cy*cz - sx*sy*sz,
	}
}

// QuatFromAxisAngle builds a quaternion rotating angle radians about axis.
func QuatFromAxisAngle(axis Vec3, angle float64) Quat {
	axis = axis.Normalized()
	s := math.Sin(angle / 2)
	return Quat{axis.X * s, axis.Y * s, axis.Z * s, math.Cos(angle / 2)}
}

// Mul composes rotations: (q.Mul(r)) applies r first, then q.
func (q Quat) Mul(r Quat) Quat {
	return Quat{
		X: q.W*r.X + q.X*r.W + q.Y*r.Z - q.Z*r.Y,
		Y: q.W*r.Y - q.X*r.Z + q.Y*r.W + q.Z*r.X,
		Z: q.W*r.Z + q.X*r.Y - q.Y*r.X + q.Z*r.W,
		W: q.W*r.W - q.X*r.X - q.Y*r.Y - q.Z*r.Z,
	}
}

func (q Quat) Conjugate() Quat { return Quat{-q.X, -q.Y, -q.Z, q.W} }

func (q Quat) Normalized() Quat {
	l := math.Sqrt(q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W)
	if l < 1e-12 {
		return QuatIdentity()
	}
	return Quat{q.X / l, q.Y / l, q.Z / l, q.W / l}
}

// Rotate applies the rotation to a vector.
func (q Quat) Rotate(v Vec3) Vec3 {
	// v' = v + 2w(u x v) + 2(u x (u x v)), u = imaginary part
	u := Vec3{q.X, q.Y, q.Z}
	t := u.Cross(v).Scale(2)
	return v.Add(t.Scale(q.W)).Add(u.Cross(t))
}

// Forward is the rotated +Z axis (camera/entity facing convention).
func (q Quat) Forward() Vec3 { return q.Rotate(UnitZ) }

// ToEulerXYZ extracts intrinsic XYZ Euler angles in radians. Tooling and
// debug readback only.
func (q Quat) ToEulerXYZ() (x, y, z float64) {
	// From the rotation matrix of an XYZ composition.
	m := Mat4FromQuat(q)
	sy := m[8] // r02 in column-major (col 2, row 0)
	y = math.Asin(Clamp(sy, -1, 1))
	if math.Abs(sy) < 0.9999999 {
		x = math.Atan2(-m[9], m[10])
		z = math.Atan2(-m[4], m[0])
	} else {
		x = math.Atan2(m[6], m[5])
		z = 0
	}
	return
}

// ApproxEqual reports component-wise equality within eps, treating q and -q
// as the same rotation.
func (q Quat) ApproxEqual(r Quat, eps float64) bool {
	same := math.Abs(q.X-r.X) < eps && math.Abs(q.Y-r.Y) < eps &&
		math.Abs(q.Z-r.Z) < eps && math.Abs(q.W-r.W) < eps
	flip := math.Abs(q.X+r.X) < eps && math.Abs(q.Y+r.Y) < eps &&
		math.Abs(q.Z+r.Z) < eps && math.Abs(q.W+r.W) < eps
	return same || flip
}
