// Package spatial is the two-level bounding-volume hierarchy: a triangle
// BVH per unique mesh, and a scene BVH over instance entries. It serves
// raycasts and frustum culling.
package spatial

import (
	"math"

	"github.com/kestrel3d/kestrel/internal/mathx"
)

// epsilon guards parallel-ray and surface-acne cases in intersection math.
const epsilon = 1e-6

// Ray is origin plus direction. Direction should be normalized when the
// caller wants distances in world units.
type Ray struct {
	Origin mathx.Vec3
	Dir    mathx.Vec3
}

// PointAt returns origin + dir*t.
func (r Ray) PointAt(t float64) mathx.Vec3 {
	return r.Origin.Add(r.Dir.Scale(t))
}

// Triangle is three vertices in mesh-local space.
type Triangle struct {
	A, B, C mathx.Vec3
}

// AABB returns the triangle's bounds.
func (t Triangle) AABB() mathx.AABB {
	return mathx.EmptyAABB().ExpandPoint(t.A).ExpandPoint(t.B).ExpandPoint(t.C)
}

// Centroid returns the vertex average, used for split partitioning.
func (t Triangle) Centroid() mathx.Vec3 {
	return t.A.Add(t.B).Add(t.C).Scale(1.0 / 3.0)
}

// rayTriangle is Möller–Trumbore. Returns the ray parameter and the
// (u, v, w) barycentrics with w = 1-u-v.
func rayTriangle(r Ray, tri Triangle, tmax float64) (float64, [3]float64, bool) {
	edge1 := tri.B.Sub(tri.A)
	edge2 := tri.C.Sub(tri.A)
	h := r.Dir.Cross(edge2)
	a := edge1.Dot(h)
	if math.Abs(a) < epsilon {
		return 0, [3]float64{}, false
	}
	f := 1 / a
	s := r.Origin.Sub(tri.A)
	u := f * s.Dot(h)
	if u < 0 || u > 1 {
		return 0, [3]float64{}, false
	}
	q := s.Cross(edge1)
	v := f * r.Dir.Dot(q)
	if v < 0 || u+v > 1 {
		return 0, [3]float64{}, false
	}
	t := f * edge2.Dot(q)
	if t <= epsilon || t > tmax {
		return 0, [3]float64{}, false
	}
	return t, [3]float64{u, v, 1 - u - v}, true
}

// rayAABBSlab tests the ray against a box on [0, tmax]; returns the entry
// parameter for traversal ordering.
func rayAABBSlab(r Ray, box mathx.AABB, tmax float64) (float64, bool) {
	tmin, tlim := 0.0, tmax
	for axis := 0; axis < 3; axis++ {
		d := r.Dir.Component(axis)
		o := r.Origin.Component(axis)
		lo := box.Min.Component(axis)
		hi := box.Max.Component(axis)
		if math.Abs(d) < epsilon {
			if o < lo || o > hi {
				return 0, false
			}
			continue
		}
		inv := 1 / d
		t1 := (lo - o) * inv
		t2 := (hi - o) * inv
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		if t1 > tmin {
			tmin = t1
		}
		if t2 < tlim {
			tlim = t2
		}
		if tmin > tlim {
			return 0, false
		}
	}
	return tmin, true
}
