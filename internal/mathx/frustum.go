package mathx

// Plane is a half-space: points p with Normal·p + Distance >= 0 are inside.
type Plane struct {
	Normal   Vec3
	Distance float64
}

// PlaneFromPointNormal builds the plane containing point with the given
// (normalized on entry) normal.
func PlaneFromPointNormal(point, normal Vec3) Plane {
	n := normal.Normalized()
	return Plane{Normal: n, Distance: -n.Dot(point)}
}

// DistanceTo returns the signed distance from a point to the plane.
func (p Plane) DistanceTo(v Vec3) float64 {
	return p.Normal.Dot(v) + p.Distance
}

// Frustum plane indices.
const (
	FrustumLeft = iota
	FrustumRight
	FrustumBottom
	FrustumTop
	FrustumNear
	FrustumFar
)

// Frustum is the six half-spaces of a view volume, normals pointing inward.
type Frustum struct {
	Planes [6]Plane
}

// FrustumFromMatrix extracts frustum planes from a view-projection matrix
// using the Gribb/Hartmann method. Planes are normalized.
func FrustumFromMatrix(vp Mat4) Frustum {
	// Column-major: row i of the matrix is (vp[i], vp[4+i], vp[8+i], vp[12+i]).
	row := func(i int) (Vec3, float64) {
		return Vec3{vp[i], vp[4+i], vp[8+i]}, vp[12+i]
	}
	r0, d0 := row(0)
	r1, d1 := row(1)
	r2, d2 := row(2)
	r3, d3 := row(3)

	var f Frustum
	f.Planes[FrustumLeft] = normalizePlane(r3.Add(r0), d3+d0)
	f.Planes[FrustumRight] = normalizePlane(r3.Sub(r0), d3-d0)
	f.Planes[FrustumBottom] = normalizePlane(r3.Add(r1), d3+d1)
	f.Planes[FrustumTop] = normalizePlane(r3.Sub(r1), d3-d1)
	f.Planes[FrustumNear] = normalizePlane(r3.Add(r2), d3+d2)
	f.Planes[FrustumFar] = normalizePlane(r3.Sub(r2), d3-d2)
	return f
}

func normalizePlane(n Vec3, d float64) Plane {
	l := n.Length()
	if l < 1e-12 {
		return Plane{Normal: UnitY, Distance: d}
	}
	return Plane{Normal: n.Scale(1 / l), Distance: d / l}
}

// IntersectsAABB reports whether the box is inside or crosses the frustum.
// Tests the box's most-positive vertex against each plane.
func (f Frustum) IntersectsAABB(b AABB) bool {
	for _, p := range f.Planes {
		v := Vec3{b.Min.X, b.Min.Y, b.Min.Z}
		if p.Normal.X >= 0 {
			v.X = b.Max.X
		}
		if p.Normal.Y >= 0 {
			v.Y = b.Max.Y
		}
		if p.Normal.Z >= 0 {
			v.Z = b.Max.Z
		}
		if p.DistanceTo(v) < 0 {
			return false
		}
	}
	return true
}
