package mathx

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuatFromEulerXYZMatchesAxisAngle(t *testing.T) {
	// Single-axis rotations must match the axis-angle construction.
	for _, deg := range []float64{0, 30, 45, 90, 180, -90} {
		rad := Radians(deg)
		qx := QuatFromEulerXYZ(rad, 0, 0)
		assert.True(t, qx.ApproxEqual(QuatFromAxisAngle(Vec3{1, 0, 0}, rad), 1e-4), "x %v", deg)
		qy := QuatFromEulerXYZ(0, rad, 0)
		assert.True(t, qy.ApproxEqual(QuatFromAxisAngle(Vec3{0, 1, 0}, rad), 1e-4), "y %v", deg)
		qz := QuatFromEulerXYZ(0, 0, rad)
		assert.True(t, qz.ApproxEqual(QuatFromAxisAngle(Vec3{0, 0, 1}, rad), 1e-4), "z %v", deg)
	}
}

func TestQuatEulerRoundTrip(t *testing.T) {
	q := QuatFromEulerXYZ(Radians(10), Radians(20), Radians(30))
	x, y, z := q.ToEulerXYZ()
	assert.InDelta(t, Radians(10), x, 1e-6)
	assert.InDelta(t, Radians(20), y, 1e-6)
	assert.InDelta(t, Radians(30), z, 1e-6)
}

func TestQuatRotate(t *testing.T) {
	// 90 degrees about Y takes +Z to +X in a right-handed frame.
	q := QuatFromAxisAngle(UnitY, math.Pi/2)
	v := q.Rotate(UnitZ)
	assert.InDelta(t, 1, v.X, 1e-9)
	assert.InDelta(t, 0, v.Y, 1e-9)
	assert.InDelta(t, 0, v.Z, 1e-9)
}

func TestMat4TRSMatchesComposition(t *testing.T) {
	pos := Vec3{1, 2, 3}
	rot := QuatFromEulerXYZ(0.3, -0.2, 0.7)
	scl := Vec3{2, 0.5, 1}

	m := Mat4TRS(pos, rot, scl)
	p := Vec3{0.4, -1, 2.5}
	want := rot.Rotate(p.Mul(scl)).Add(pos)
	got := m.TransformPoint(p)
	assert.InDelta(t, want.X, got.X, 1e-9)
	assert.InDelta(t, want.Y, got.Y, 1e-9)
	assert.InDelta(t, want.Z, got.Z, 1e-9)
}

func TestAABBMergeAndTransform(t *testing.T) {
	b := EmptyAABB()
	assert.True(t, b.IsEmpty())
	b = b.ExpandPoint(Vec3{-1, -1, -1}).ExpandPoint(Vec3{1, 1, 1})
	require.False(t, b.IsEmpty())
	assert.Equal(t, Vec3{}, b.Center())

	moved := b.Transformed(Mat4TRS(Vec3{10, 0, 0}, QuatIdentity(), One3))
	assert.InDelta(t, 9, moved.Min.X, 1e-9)
	assert.InDelta(t, 11, moved.Max.X, 1e-9)
}

func TestFrustumCullsBehindCamera(t *testing.T) {
	proj := Perspective(Radians(60), 1, 0.1, 100)
	view := LookAt(Vec3{0, 0, 10}, Vec3{0, 0, 0}, UnitY)
	f := FrustumFromMatrix(proj.Mul(view))

	inside := AABB{Min: Vec3{-1, -1, -1}, Max: Vec3{1, 1, 1}}
	assert.True(t, f.IntersectsAABB(inside))

	behind := AABB{Min: Vec3{-1, -1, 19}, Max: Vec3{1, 1, 21}}
	assert.False(t, f.IntersectsAABB(behind))

	farAway := AABB{Min: Vec3{-1, -1, -201}, Max: Vec3{1, 1, -199}}
	assert.False(t, f.IntersectsAABB(farAway))
}
