package mathx

import "math"

// Mat4 is a 4x4 matrix in column-major order: element (row, col) is at
// index col*4+row. Matches the GPU upload convention.
type Mat4 [16]float64

// Mat4Identity returns the identity matrix.
func Mat4Identity() Mat4 {
	var m Mat4
	m[0], m[5], m[10], m[15] = 1, 1, 1, 1
	return m
}

// Mul multiplies two matrices: out = m * b.
func (m Mat4) Mul(b Mat4) Mat4 {
	var out Mat4
	for i := 0; i < 4; i++ { // column of b
		for j := 0; j < 4; j++ { // row of m
			sum := 0.0
			for k := 0; k < 4; k++ {
				sum += m[k*4+j] * b[i*4+k]
			}
			out[i*4+j] = sum
		}
	}
	return out
}

// Mat4FromQuat builds a rotation matrix from a quaternion.
func Mat4FromQuat(q Quat) Mat4 {
	x, y, z, w := q.X, q.Y, q.Z, q.W
	xx, yy, zz := x*x, y*y, z*z
	xy, xz, yz := x*y, x*z, y*z
	wx, wy, wz := w*x, w*y, w*z

	m := Mat4Identity()
	m[0] = 1 - 2*(yy+zz)
	m[1] = 2 * (xy + wz)
	m[2] = 2 * (xz - wy)
	m[4] = 2 * (xy - wz)
	m[5] = 1 - 2*(xx+zz)
	m[6] = 2 * (yz + wx)
	m[8] = 2 * (xz + wy)
	m[9] = 2 * (yz - wx)
	m[10] = 1 - 2*(xx+yy)
	return m
}

// Mat4TRS composes translation * rotation * scale.
func Mat4TRS(t Vec3, r Quat, s Vec3) Mat4 {
	m := Mat4FromQuat(r)
	// Scale columns.
	m[0] *= s.X
	m[1] *= s.X
	m[2] *= s.X
	m[4] *= s.Y
	m[5] *= s.Y
	m[6] *= s.Y
	m[8] *= s.Z
	m[9] *= s.Z
	m[10] *= s.Z
	m[12], m[13], m[14] = t.X, t.Y, t.Z
	return m
}

// Translation extracts the translation column.
func (m Mat4) Translation() Vec3 { return Vec3{m[12], m[13], m[14]} }

// TransformPoint applies the matrix to a point (w=1).
func (m Mat4) TransformPoint(p Vec3) Vec3 {
	return Vec3{
		m[0]*p.X + m[4]*p.Y + m[8]*p.Z + m[12],
		m[1]*p.X + m[5]*p.Y + m[9]*p.Z + m[13],
		m[2]*p.X + m[6]*p.Y + m[10]*p.Z + m[14],
	}
}

// TransformDirection applies the matrix to a direction (w=0).
func (m Mat4) TransformDirection(d Vec3) Vec3 {
	return Vec3{
		m[0]*d.X + m[4]*d.Y + m[8]*d.Z,
		m[1]*d.X + m[5]*d.Y + m[9]*d.Z,
		m[2]*d.X + m[6]*d.Y + m[10]*d.Z,
	}
}

// InverseAffine inverts a matrix whose last row is (0,0,0,1): the 3x3
// block by adjugate, then the translation. Sufficient for TRS transforms.
func (m Mat4) InverseAffine() Mat4 {
	a, b, c := m[0], m[4], m[8]
	d, e, f := m[1], m[5], m[9]
	g, h, i := m[2], m[6], m[10]

	co00 := e*i - f*h
	co01 := f*g - d*i
	co02 := d*h - e*g
	det := a*co00 + b*co01 + c*co02
	if math.Abs(det) < 1e-18 {
		return Mat4Identity()
	}
	inv := 1 / det

	out := Mat4Identity()
	out[0] = co00 * inv
	out[1] = co01 * inv
	out[2] = co02 * inv
	out[4] = (c*h - b*i) * inv
	out[5] = (a*i - c*g) * inv
	out[6] = (b*g - a*h) * inv
	out[8] = (b*f - c*e) * inv
	out[9] = (c*d - a*f) * inv
	out[10] = (a*e - b*d) * inv

	t := Vec3{m[12], m[13], m[14]}
	it := out.TransformDirection(t)
	out[12], out[13], out[14] = -it.X, -it.Y, -it.Z
	return out
}

// Perspective builds a right-handed perspective projection with [0,1] clip
// depth. fovY in radians.
func Perspective(fovY, aspect, near, far float64) Mat4 {
	f := 1 / math.Tan(fovY/2)
	var m Mat4
	m[0] = f / aspect
	m[5] = f
	m[10] = far / (near - far)
	m[11] = -1
	m[14] = (near * far) / (near - far)
	return m
}

// Orthographic builds a right-handed orthographic projection with [0,1]
// clip depth.
func Orthographic(left, right, bottom, top, near, far float64) Mat4 {
	m := Mat4Identity()
	m[0] = 2 / (right - left)
	m[5] = 2 / (top - bottom)
	m[10] = 1 / (near - far)
	m[12] = (left + right) / (left - right)
	m[13] = (bottom + top) / (bottom - top)
	m[14] = near / (near - far)
	return m
}

// LookAt builds a right-handed view matrix from eye toward center.
func LookAt(eye, center, up Vec3) Mat4 {
	f := center.Sub(eye).Normalized()
	s := f.Cross(up).Normalized()
	u := s.Cross(f)

	m := Mat4Identity()
	m[0], m[4], m[8] = s.X, s.Y, s.Z
	m[1], m[5], m[9] = u.X, u.Y, u.Z
	m[2], m[6], m[10] = -f.X, -f.Y, -f.Z
	m[12] = -s.Dot(eye)
	m[13] = -u.Dot(eye)
	m[14] = f.Dot(eye)
	return m
}
