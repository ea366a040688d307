package spatial

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kestrel3d/kestrel/internal/mathx"
	"github.com/kestrel3d/kestrel/internal/scene"
)

// quad returns two triangles forming a unit-ish quad in the XY plane at the
// given z, spanning [-half, half] on both axes.
func quad(half, z float64) []Triangle {
	return []Triangle{
		{A: mathx.Vec3{X: -half, Y: -half, Z: z}, B: mathx.Vec3{X: half, Y: -half, Z: z}, C: mathx.Vec3{X: half, Y: half, Z: z}},
		{A: mathx.Vec3{X: -half, Y: -half, Z: z}, B: mathx.Vec3{X: half, Y: half, Z: z}, C: mathx.Vec3{X: -half, Y: half, Z: z}},
	}
}

// boxTriangles triangulates an axis-aligned box centered at the origin.
func boxTriangles(hx, hy, hz float64) []Triangle {
	min := mathx.Vec3{X: -hx, Y: -hy, Z: -hz}
	max := mathx.Vec3{X: hx, Y: hy, Z: hz}
	v := [8]mathx.Vec3{
		{X: min.X, Y: min.Y, Z: min.Z},
		{X: max.X, Y: min.Y, Z: min.Z},
		{X: max.X, Y: max.Y, Z: min.Z},
		{X: min.X, Y: max.Y, Z: min.Z},
		{X: min.X, Y: min.Y, Z: max.Z},
		{X: max.X, Y: min.Y, Z: max.Z},
		{X: max.X, Y: max.Y, Z: max.Z},
		{X: min.X, Y: max.Y, Z: max.Z},
	}
	faces := [6][4]int{
		{0, 1, 2, 3}, {5, 4, 7, 6},
		{4, 0, 3, 7}, {1, 5, 6, 2},
		{3, 2, 6, 7}, {4, 5, 1, 0},
	}
	tris := make([]Triangle, 0, 12)
	for _, f := range faces {
		tris = append(tris,
			Triangle{A: v[f[0]], B: v[f[1]], C: v[f[2]]},
			Triangle{A: v[f[0]], B: v[f[2]], C: v[f[3]]})
	}
	return tris
}

func TestRayTriangleBarycentrics(t *testing.T) {
	tri := Triangle{
		A: mathx.Vec3{X: 0, Y: 0, Z: 0},
		B: mathx.Vec3{X: 1, Y: 0, Z: 0},
		C: mathx.Vec3{X: 0, Y: 1, Z: 0},
	}
	r := Ray{Origin: mathx.Vec3{X: 0.25, Y: 0.25, Z: -1}, Dir: mathx.Vec3{Z: 1}}
	dist, bary, ok := rayTriangle(r, tri, 100)
	require.True(t, ok)
	assert.InDelta(t, 1.0, dist, 1e-9)
	assert.InDelta(t, 0.25, bary[0], 1e-9)
	assert.InDelta(t, 0.25, bary[1], 1e-9)
	assert.InDelta(t, 0.5, bary[2], 1e-9)
	assert.InDelta(t, 1.0, bary[0]+bary[1]+bary[2], 1e-12)
}

func TestMeshBVHMatchesBruteForce(t *testing.T) {
	tris := boxTriangles(1, 1, 1)
	bvh := BuildMeshBVH(tris, DefaultMaxLeafTriangles)
	require.Equal(t, 12, bvh.TriangleCount())

	rays := []Ray{
		{Origin: mathx.Vec3{X: 0, Y: 0, Z: -5}, Dir: mathx.Vec3{Z: 1}},
		{Origin: mathx.Vec3{X: 0.5, Y: -3, Z: 0.2}, Dir: mathx.Vec3{Y: 1}},
		{Origin: mathx.Vec3{X: -4, Y: 0.9, Z: 0.9}, Dir: mathx.Vec3{X: 1}},
		{Origin: mathx.Vec3{X: 5, Y: 5, Z: 5}, Dir: mathx.Vec3{X: 1}}, // miss
	}
	for _, r := range rays {
		bestT := 1e18
		found := false
		for _, tri := range tris {
			if dist, _, ok := rayTriangle(r, tri, 100); ok && dist < bestT {
				bestT = dist
				found = true
			}
		}
		hit, ok := bvh.RaycastFirst(r, 100)
		require.Equal(t, found, ok)
		if found {
			assert.InDelta(t, bestT, hit.T, 1e-9)
		}
	}
}

func TestMeshBVHRaycastAllSorted(t *testing.T) {
	bvh := BuildMeshBVH(boxTriangles(1, 1, 1), DefaultMaxLeafTriangles)
	r := Ray{Origin: mathx.Vec3{X: 0.1, Y: 0.3, Z: -5}, Dir: mathx.Vec3{Z: 1}}
	hits := bvh.RaycastAll(r, 100)
	require.NotEmpty(t, hits)
	for i := 1; i < len(hits); i++ {
		assert.LessOrEqual(t, hits[i-1].T, hits[i].T)
	}
	// The ray enters the front face at z=-1 and exits the back at z=+1.
	assert.InDelta(t, 4.0, hits[0].T, 1e-9)
	assert.InDelta(t, 6.0, hits[len(hits)-1].T, 1e-9)
}

func TestEmptyBVHNoHits(t *testing.T) {
	bvh := BuildMeshBVH(nil, 0)
	_, ok := bvh.RaycastFirst(Ray{Dir: mathx.UnitZ}, 100)
	assert.False(t, ok)
	assert.Empty(t, bvh.RaycastAll(Ray{Dir: mathx.UnitZ}, 100))

	mgr := NewManager(zap.NewNop(), DefaultConfig())
	mgr.Sync()
	assert.Nil(t, mgr.RaycastFirst(mathx.Vec3{}, mathx.UnitZ, 100))
	assert.Empty(t, mgr.CullFrustum(everythingFrustum()))
}

func everythingFrustum() mathx.Frustum {
	var f mathx.Frustum
	big := 1e9
	unitX := mathx.Vec3{X: 1}
	f.Planes[mathx.FrustumLeft] = mathx.Plane{Normal: unitX, Distance: big}
	f.Planes[mathx.FrustumRight] = mathx.Plane{Normal: unitX.Scale(-1), Distance: big}
	f.Planes[mathx.FrustumBottom] = mathx.Plane{Normal: mathx.UnitY, Distance: big}
	f.Planes[mathx.FrustumTop] = mathx.Plane{Normal: mathx.UnitY.Scale(-1), Distance: big}
	f.Planes[mathx.FrustumNear] = mathx.Plane{Normal: mathx.UnitZ, Distance: big}
	f.Planes[mathx.FrustumFar] = mathx.Plane{Normal: mathx.UnitZ.Scale(-1), Distance: big}
	return f
}

func TestSceneRaycastHitAndMiss(t *testing.T) {
	mgr := NewManager(zap.NewNop(), DefaultConfig())
	// Triangle mesh facing +Z, placed at z = -5 by the instance transform.
	mgr.RegisterMesh("tri", []Triangle{{
		A: mathx.Vec3{X: -2, Y: -2, Z: 0},
		B: mathx.Vec3{X: 2, Y: -2, Z: 0},
		C: mathx.Vec3{X: 0, Y: 2, Z: 0},
	}})
	world := mathx.Mat4TRS(mathx.Vec3{Z: -5}, mathx.QuatIdentity(), mathx.Vec3{X: 1, Y: 1, Z: 1})
	hero := scene.EntityID(1)
	require.NoError(t, mgr.AddInstance(hero, "tri", world))
	mgr.Sync()

	origin := mathx.Vec3{X: 0.5, Y: 0.3, Z: -10}
	hit := mgr.RaycastFirst(origin, mathx.UnitZ, 100)
	require.NotNil(t, hit)
	assert.Equal(t, hero, hit.Entity)
	assert.InDelta(t, 5.0, hit.Distance, 1e-6)

	expected := origin.Add(mathx.UnitZ.Scale(hit.Distance))
	assert.InDelta(t, expected.X, hit.Point.X, 1e-4)
	assert.InDelta(t, expected.Y, hit.Point.Y, 1e-4)
	assert.InDelta(t, expected.Z, hit.Point.Z, 1e-4)

	miss := mgr.RaycastFirst(mathx.Vec3{X: 10, Y: 10, Z: -10}, mathx.UnitZ, 100)
	assert.Nil(t, miss)
}

func TestSceneRaycastFirstIsNearest(t *testing.T) {
	mgr := NewManager(zap.NewNop(), DefaultConfig())
	mgr.RegisterMesh("wall", quad(2, 0))
	for i, z := range []float64{-3, -7, -12} {
		world := mathx.Mat4TRS(mathx.Vec3{Z: z}, mathx.QuatIdentity(), mathx.Vec3{X: 1, Y: 1, Z: 1})
		require.NoError(t, mgr.AddInstance(scene.EntityID(i+1), "wall", world))
	}
	mgr.Sync()

	origin := mathx.Vec3{X: 0, Y: 0, Z: -20}
	first := mgr.RaycastFirst(origin, mathx.UnitZ, 100)
	require.NotNil(t, first)
	all := mgr.RaycastAll(origin, mathx.UnitZ, 100)
	require.NotEmpty(t, all)
	for _, h := range all {
		assert.LessOrEqual(t, first.Distance, h.Distance)
	}
	assert.InDelta(t, 8.0, first.Distance, 1e-6)
	assert.Equal(t, scene.EntityID(3), first.Entity)
}

func TestSceneRaycastScaledInstance(t *testing.T) {
	mgr := NewManager(zap.NewNop(), DefaultConfig())
	mgr.RegisterMesh("wall", quad(1, 0))
	// Scaled 3x: a ray off the unit quad's footprint still hits.
	world := mathx.Mat4TRS(mathx.Vec3{Z: -4}, mathx.QuatIdentity(), mathx.Vec3{X: 3, Y: 3, Z: 1})
	require.NoError(t, mgr.AddInstance(scene.EntityID(7), "wall", world))
	mgr.Sync()

	hit := mgr.RaycastFirst(mathx.Vec3{X: 2.5, Y: 2.5, Z: -10}, mathx.UnitZ, 100)
	require.NotNil(t, hit)
	assert.InDelta(t, 6.0, hit.Distance, 1e-6)

	assert.Nil(t, mgr.RaycastFirst(mathx.Vec3{X: 3.5, Y: 0, Z: -10}, mathx.UnitZ, 100))
}

func TestUpdateTransformMovesInstance(t *testing.T) {
	mgr := NewManager(zap.NewNop(), DefaultConfig())
	mgr.RegisterMesh("wall", quad(1, 0))
	id := scene.EntityID(9)
	require.NoError(t, mgr.AddInstance(id, "wall",
		mathx.Mat4TRS(mathx.Vec3{Z: -2}, mathx.QuatIdentity(), mathx.Vec3{X: 1, Y: 1, Z: 1})))
	mgr.Sync()

	require.NotNil(t, mgr.RaycastFirst(mathx.Vec3{Z: -10}, mathx.UnitZ, 100))

	mgr.UpdateTransform(id,
		mathx.Mat4TRS(mathx.Vec3{X: 50, Z: -2}, mathx.QuatIdentity(), mathx.Vec3{X: 1, Y: 1, Z: 1}))
	mgr.Sync()

	assert.Nil(t, mgr.RaycastFirst(mathx.Vec3{Z: -10}, mathx.UnitZ, 100))
	moved := mgr.RaycastFirst(mathx.Vec3{X: 50, Z: -10}, mathx.UnitZ, 100)
	require.NotNil(t, moved)
	assert.Equal(t, id, moved.Entity)
}

func TestRemoveEntityDropsInstance(t *testing.T) {
	mgr := NewManager(zap.NewNop(), DefaultConfig())
	mgr.RegisterMesh("wall", quad(1, 0))
	id := scene.EntityID(4)
	require.NoError(t, mgr.AddInstance(id, "wall",
		mathx.Mat4TRS(mathx.Vec3{Z: -2}, mathx.QuatIdentity(), mathx.Vec3{X: 1, Y: 1, Z: 1})))
	mgr.Sync()
	require.Equal(t, 1, mgr.InstanceCount())

	mgr.RemoveEntity(id)
	mgr.Sync()
	assert.Equal(t, 0, mgr.InstanceCount())
	assert.Nil(t, mgr.RaycastFirst(mathx.Vec3{Z: -10}, mathx.UnitZ, 100))

	mgr.RemoveEntity(id) // idempotent
}

func TestAddInstanceUnknownMesh(t *testing.T) {
	mgr := NewManager(zap.NewNop(), DefaultConfig())
	err := mgr.AddInstance(scene.EntityID(1), "missing", mathx.Mat4Identity())
	assert.Error(t, err)
}

func TestRegisterMeshesParallel(t *testing.T) {
	mgr := NewManager(zap.NewNop(), DefaultConfig())
	meshes := map[string][]Triangle{
		"a": boxTriangles(1, 1, 1),
		"b": quad(2, 0),
		"c": boxTriangles(0.5, 2, 0.5),
	}
	require.NoError(t, mgr.RegisterMeshes(meshes))
	for id := range meshes {
		assert.True(t, mgr.HasMesh(id))
	}
}

func TestCullFrustum(t *testing.T) {
	mgr := NewManager(zap.NewNop(), DefaultConfig())
	mgr.RegisterMesh("cube", boxTriangles(0.5, 0.5, 0.5))
	inView := scene.EntityID(1)
	behind := scene.EntityID(2)
	require.NoError(t, mgr.AddInstance(inView, "cube",
		mathx.Mat4TRS(mathx.Vec3{Z: -5}, mathx.QuatIdentity(), mathx.Vec3{X: 1, Y: 1, Z: 1})))
	require.NoError(t, mgr.AddInstance(behind, "cube",
		mathx.Mat4TRS(mathx.Vec3{Z: 20}, mathx.QuatIdentity(), mathx.Vec3{X: 1, Y: 1, Z: 1})))
	mgr.Sync()

	// Camera at origin looking down -Z.
	view := mathx.LookAt(mathx.Vec3{}, mathx.Vec3{Z: -1}, mathx.UnitY)
	proj := mathx.Perspective(mathx.Radians(60), 16.0/9.0, 0.1, 100)
	f := mathx.FrustumFromMatrix(proj.Mul(view))

	visible := mgr.CullFrustum(f)
	assert.Contains(t, visible, inView)
	assert.NotContains(t, visible, behind)

	stats := mgr.TakeFrameStats()
	assert.Equal(t, 1, stats.Visible)
	assert.Equal(t, 1, stats.Culled)
}

func TestFrameStatsCounters(t *testing.T) {
	mgr := NewManager(zap.NewNop(), DefaultConfig())
	mgr.RegisterMesh("wall", quad(1, 0))
	require.NoError(t, mgr.AddInstance(scene.EntityID(1), "wall",
		mathx.Mat4TRS(mathx.Vec3{Z: -2}, mathx.QuatIdentity(), mathx.Vec3{X: 1, Y: 1, Z: 1})))
	mgr.Sync()

	mgr.TakeFrameStats() // drop build time from setup
	mgr.RaycastFirst(mathx.Vec3{Z: -10}, mathx.UnitZ, 100)
	mgr.RaycastFirst(mathx.Vec3{X: 99, Z: -10}, mathx.UnitZ, 100)
	stats := mgr.TakeFrameStats()
	assert.Equal(t, 2, stats.Raycasts)
	assert.Greater(t, stats.TriangleTests, 0)

	after := mgr.TakeFrameStats()
	assert.Equal(t, 0, after.Raycasts)
}
