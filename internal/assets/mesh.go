package assets

import (
	"math"

	"go.uber.org/zap"

	"github.com/kestrel3d/kestrel/internal/mathx"
	"github.com/kestrel3d/kestrel/internal/spatial"
)

// Mesh is an immutable cache entry: triangle soup plus local bounds.
type Mesh struct {
	ID        string
	Triangles []spatial.Triangle
	Bounds    mathx.AABB
}

// MeshCache maps string ids to meshes. Entries never mutate once inserted.
// Unknown primitive-style ids (cube, sphere, plane, quad, capsule) are
// generated on first lookup.
type MeshCache struct {
	log     *zap.Logger
	entries map[string]Mesh
}

func NewMeshCache(log *zap.Logger) *MeshCache {
	if log == nil {
		log = zap.NewNop()
	}
	return &MeshCache{log: log, entries: make(map[string]Mesh)}
}

// Insert registers a mesh. Duplicate ids keep the original entry.
func (c *MeshCache) Insert(id string, tris []spatial.Triangle) Mesh {
	if existing, ok := c.entries[id]; ok {
		c.log.Warn("mesh id already cached", zap.String("mesh", id))
		return existing
	}
	box := mathx.EmptyAABB()
	for _, t := range tris {
		box = box.Merge(t.AABB())
	}
	m := Mesh{ID: id, Triangles: tris, Bounds: box}
	c.entries[id] = m
	return m
}

// InsertGeometry builds a mesh from geometry metadata.
func (c *MeshCache) InsertGeometry(id string, g *GeometryMeta) (Mesh, error) {
	tris, err := g.Triangles()
	if err != nil {
		return Mesh{}, err
	}
	return c.Insert(id, tris), nil
}

// Lookup returns the mesh for an id, generating a primitive when the id
// names one.
func (c *MeshCache) Lookup(id string) (Mesh, bool) {
	if m, ok := c.entries[id]; ok {
		return m, true
	}
	if tris := primitiveTriangles(id); tris != nil {
		return c.Insert(id, tris), true
	}
	return Mesh{}, false
}

func (c *MeshCache) Len() int { return len(c.entries) }

// primitiveTriangles generates unit-sized procedural primitives.
func primitiveTriangles(id string) []spatial.Triangle {
	switch id {
	case "cube", "box":
		return boxMesh(0.5, 0.5, 0.5)
	case "plane", "ground":
		return planeMesh(0.5)
	case "quad":
		return quadMesh(0.5)
	case "sphere", "ball":
		return sphereMesh(0.5, 12, 8)
	case "capsule":
		// Approximated as its bounding cylinder box; collision uses the
		// physics capsule, the render mesh comes from assets.
		return boxMesh(0.5, 1, 0.5)
	default:
		return nil
	}
}

func boxMesh(hx, hy, hz float64) []spatial.Triangle {
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
	tris := make([]spatial.Triangle, 0, 12)
	for _, f := range faces {
		tris = append(tris,
			spatial.Triangle{A: v[f[0]], B: v[f[1]], C: v[f[2]]},
			spatial.Triangle{A: v[f[0]], B: v[f[2]], C: v[f[3]]})
	}
	return tris
}

// planeMesh lies in XZ (ground plane).
func planeMesh(half float64) []spatial.Triangle {
	a := mathx.Vec3{X: -half, Z: -half}
	b := mathx.Vec3{X: half, Z: -half}
	c := mathx.Vec3{X: half, Z: half}
	d := mathx.Vec3{X: -half, Z: half}
	return []spatial.Triangle{{A: a, B: b, C: c}, {A: a, B: c, C: d}}
}

// quadMesh lies in XY (billboard plane).
func quadMesh(half float64) []spatial.Triangle {
	a := mathx.Vec3{X: -half, Y: -half}
	b := mathx.Vec3{X: half, Y: -half}
	c := mathx.Vec3{X: half, Y: half}
	d := mathx.Vec3{X: -half, Y: half}
	return []spatial.Triangle{{A: a, B: b, C: c}, {A: a, B: c, C: d}}
}

// sphereMesh is a latitude/longitude tessellation.
func sphereMesh(radius float64, segments, rings int) []spatial.Triangle {
	point := func(ring, seg int) mathx.Vec3 {
		theta := math.Pi * float64(ring) / float64(rings)
		phi := 2 * math.Pi * float64(seg) / float64(segments)
		return mathx.Vec3{
			X: radius * math.Sin(theta) * math.Cos(phi),
			Y: radius * math.Cos(theta),
			Z: radius * math.Sin(theta) * math.Sin(phi),
		}
	}
	var tris []spatial.Triangle
	for ring := 0; ring < rings; ring++ {
		for seg := 0; seg < segments; seg++ {
			a := point(ring, seg)
			b := point(ring+1, seg)
			c := point(ring+1, seg+1)
			d := point(ring, seg+1)
			if ring > 0 {
				tris = append(tris, spatial.Triangle{A: a, B: b, C: d})
			}
			if ring < rings-1 {
				tris = append(tris, spatial.Triangle{A: b, B: c, C: d})
			}
		}
	}
	return tris
}
