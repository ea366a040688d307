package spatial

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kestrel3d/kestrel/internal/mathx"
	"github.com/kestrel3d/kestrel/internal/scene"
)

// DefaultMaxLeafRefs caps instance entries per scene-BVH leaf.
const DefaultMaxLeafRefs = 2

// Config tunes build and update behavior.
type Config struct {
	MaxLeafTriangles         int
	MaxLeafRefs              int
	EnableIncrementalUpdates bool
	// RebuildInterval forces a full scene-BVH rebuild every N refits when
	// incremental updates are on; 0 disables the cadence.
	RebuildInterval int
}

func DefaultConfig() Config {
	return Config{
		MaxLeafTriangles:         DefaultMaxLeafTriangles,
		MaxLeafRefs:              DefaultMaxLeafRefs,
		EnableIncrementalUpdates: true,
		RebuildInterval:          240,
	}
}

// Hit is a world-space raycast result.
type Hit struct {
	Entity        scene.EntityID
	Distance      float64
	Point         mathx.Vec3
	TriangleIndex int
	Barycentric   [3]float64
}

// FrameStats are per-frame counters for the debug logger.
type FrameStats struct {
	Raycasts      int
	TriangleTests int
	Visible       int
	Culled        int
	BuildTime     time.Duration
	RefitTime     time.Duration
}

type instance struct {
	entity    scene.EntityID
	meshID    string
	mesh      *MeshBVH
	world     mathx.Mat4
	worldInv  mathx.Mat4
	worldAABB mathx.AABB
}

type sceneNode struct {
	box         mathx.AABB
	left, right int32
	start       int32
	count       int32
}

// Manager owns the mesh BVHs and the scene BVH over their instances.
// Frame-thread only, apart from RegisterMeshes' internal worker pool.
type Manager struct {
	log *zap.Logger
	cfg Config

	meshes    map[string]*MeshBVH
	instances map[scene.EntityID]*instance
	order     []scene.EntityID

	nodes      []sceneNode
	leafRefs   []scene.EntityID // instance ids, indexed by leaf start/count
	structural bool             // instance set changed; refit is not enough
	refits     int

	stats FrameStats
}

func NewManager(log *zap.Logger, cfg Config) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.MaxLeafTriangles <= 0 {
		cfg.MaxLeafTriangles = DefaultMaxLeafTriangles
	}
	if cfg.MaxLeafRefs <= 0 {
		cfg.MaxLeafRefs = DefaultMaxLeafRefs
	}
	return &Manager{
		log:       log,
		cfg:       cfg,
		meshes:    make(map[string]*MeshBVH),
		instances: make(map[scene.EntityID]*instance),
	}
}

// RegisterMesh builds (or replaces) the triangle BVH for a mesh id.
func (m *Manager) RegisterMesh(id string, tris []Triangle) {
	start := time.Now()
	m.meshes[id] = BuildMeshBVH(tris, m.cfg.MaxLeafTriangles)
	m.stats.BuildTime += time.Since(start)
	m.log.Debug("mesh bvh built",
		zap.String("mesh", id),
		zap.Int("triangles", len(tris)),
		zap.Duration("took", time.Since(start)))
}

// RegisterMeshes builds many mesh BVHs in parallel. Meshes are independent
// so the builds fan out to one goroutine per mesh.
func (m *Manager) RegisterMeshes(meshes map[string][]Triangle) error {
	start := time.Now()
	built := make(map[string]*MeshBVH, len(meshes))
	var g errgroup.Group
	ids := make([]string, 0, len(meshes))
	for id := range meshes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	results := make([]*MeshBVH, len(ids))
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			results[i] = BuildMeshBVH(meshes[id], m.cfg.MaxLeafTriangles)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for i, id := range ids {
		built[id] = results[i]
	}
	for id, bvh := range built {
		m.meshes[id] = bvh
	}
	m.stats.BuildTime += time.Since(start)
	return nil
}

// HasMesh reports whether a mesh id has a built BVH.
func (m *Manager) HasMesh(id string) bool {
	_, ok := m.meshes[id]
	return ok
}

// AddInstance registers a renderable entity against a mesh BVH.
func (m *Manager) AddInstance(id scene.EntityID, meshID string, world mathx.Mat4) error {
	mesh, ok := m.meshes[meshID]
	if !ok {
		return fmt.Errorf("mesh %q not registered", meshID)
	}
	if _, dup := m.instances[id]; !dup {
		m.order = append(m.order, id)
	}
	m.instances[id] = &instance{
		entity:    id,
		meshID:    meshID,
		mesh:      mesh,
		world:     world,
		worldInv:  world.InverseAffine(),
		worldAABB: mesh.Bounds().Transformed(world),
	}
	m.structural = true
	return nil
}

// UpdateTransform moves an instance; the scene BVH refits (or rebuilds,
// when incremental updates are off) on the next query.
func (m *Manager) UpdateTransform(id scene.EntityID, world mathx.Mat4) {
	inst, ok := m.instances[id]
	if !ok {
		return
	}
	inst.world = world
	inst.worldInv = world.InverseAffine()
	inst.worldAABB = inst.mesh.Bounds().Transformed(world)
	if !m.cfg.EnableIncrementalUpdates {
		m.structural = true
		return
	}
	m.refits++
	if m.cfg.RebuildInterval > 0 && m.refits >= m.cfg.RebuildInterval {
		m.structural = true
		m.refits = 0
	}
}

// RemoveEntity drops the instance. Part of the destroy cascade.
func (m *Manager) RemoveEntity(id scene.EntityID) {
	if _, ok := m.instances[id]; !ok {
		return
	}
	delete(m.instances, id)
	for i, o := range m.order {
		if o == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	m.structural = true
}

// InstanceCount returns the registered instance count.
func (m *Manager) InstanceCount() int { return len(m.instances) }

// Sync refreshes the scene BVH: full rebuild after structural changes,
// bounds refit otherwise. Call once per frame before queries.
func (m *Manager) Sync() {
	start := time.Now()
	if m.structural || len(m.nodes) == 0 {
		m.rebuildSceneBVH()
		m.structural = false
		m.stats.BuildTime += time.Since(start)
		return
	}
	m.refitSceneBVH()
	m.stats.RefitTime += time.Since(start)
}

type instRef struct {
	id       scene.EntityID
	box      mathx.AABB
	centroid mathx.Vec3
}

func (r instRef) bounds() mathx.AABB { return r.box }
func (r instRef) center() mathx.Vec3 { return r.centroid }

func (m *Manager) rebuildSceneBVH() {
	m.nodes = m.nodes[:0]
	m.leafRefs = m.leafRefs[:0]
	if len(m.order) == 0 {
		return
	}
	refs := make([]instRef, 0, len(m.order))
	for _, id := range m.order {
		inst := m.instances[id]
		refs = append(refs, instRef{id: id, box: inst.worldAABB, centroid: inst.worldAABB.Center()})
	}
	m.buildSceneNode(refs)
}

func (m *Manager) buildSceneNode(refs []instRef) int32 {
	nodeIdx := int32(len(m.nodes))
	box := mathx.EmptyAABB()
	for _, r := range refs {
		box = box.Merge(r.box)
	}
	if len(refs) <= m.cfg.MaxLeafRefs {
		start := int32(len(m.leafRefs))
		for _, r := range refs {
			m.leafRefs = append(m.leafRefs, r.id)
		}
		m.nodes = append(m.nodes, sceneNode{box: box, start: start, count: int32(len(refs))})
		return nodeIdx
	}

	// Same binned SAH as the mesh BVH, over instance bounds.
	left, right := splitSAH(refs, box)
	if len(left) == 0 || len(right) == 0 {
		start := int32(len(m.leafRefs))
		for _, r := range refs {
			m.leafRefs = append(m.leafRefs, r.id)
		}
		m.nodes = append(m.nodes, sceneNode{box: box, start: start, count: int32(len(refs))})
		return nodeIdx
	}

	m.nodes = append(m.nodes, sceneNode{box: box})
	l := m.buildSceneNode(left)
	r := m.buildSceneNode(right)
	m.nodes[nodeIdx].left = l
	m.nodes[nodeIdx].right = r
	return nodeIdx
}

// refitSceneBVH recomputes node bounds bottom-up without changing the tree
// shape. Child nodes always follow their parent in the flat array, so a
// reverse sweep sees children before parents.
func (m *Manager) refitSceneBVH() {
	for i := len(m.nodes) - 1; i >= 0; i-- {
		n := &m.nodes[i]
		if n.count > 0 {
			box := mathx.EmptyAABB()
			for j := n.start; j < n.start+n.count; j++ {
				if inst, ok := m.instances[m.leafRefs[j]]; ok {
					box = box.Merge(inst.worldAABB)
				}
			}
			n.box = box
			continue
		}
		n.box = m.nodes[n.left].box.Merge(m.nodes[n.right].box)
	}
}

// RaycastFirst returns the nearest hit across all instances, or nil.
func (m *Manager) RaycastFirst(origin, dir mathx.Vec3, tmax float64) *Hit {
	m.stats.Raycasts++
	ray := Ray{Origin: origin, Dir: dir.Normalized()}
	best := Hit{Distance: tmax}
	found := false

	m.traverseRay(ray, tmax, func(inst *instance) {
		local := Ray{
			Origin: inst.worldInv.TransformPoint(ray.Origin),
			Dir:    inst.worldInv.TransformDirection(ray.Dir),
		}
		th, ok := inst.mesh.RaycastFirst(local, best.Distance)
		m.stats.TriangleTests += th.tests
		if ok && th.T < best.Distance {
			best = Hit{
				Entity:        inst.entity,
				Distance:      th.T,
				Point:         ray.PointAt(th.T),
				TriangleIndex: th.Triangle,
				Barycentric:   th.Barycentric,
			}
			found = true
		}
	})
	if !found {
		return nil
	}
	return &best
}

// RaycastAll returns every hit within tmax, sorted by distance.
func (m *Manager) RaycastAll(origin, dir mathx.Vec3, tmax float64) []Hit {
	m.stats.Raycasts++
	ray := Ray{Origin: origin, Dir: dir.Normalized()}
	var hits []Hit
	m.traverseRay(ray, tmax, func(inst *instance) {
		local := Ray{
			Origin: inst.worldInv.TransformPoint(ray.Origin),
			Dir:    inst.worldInv.TransformDirection(ray.Dir),
		}
		for _, th := range inst.mesh.RaycastAll(local, tmax) {
			hits = append(hits, Hit{
				Entity:        inst.entity,
				Distance:      th.T,
				Point:         ray.PointAt(th.T),
				TriangleIndex: th.Triangle,
				Barycentric:   th.Barycentric,
			})
		}
	})
	sort.Slice(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	return hits
}

func (m *Manager) traverseRay(ray Ray, tmax float64, visit func(*instance)) {
	if len(m.nodes) == 0 {
		return
	}
	stack := make([]int32, 0, 64)
	stack = append(stack, 0)
	for len(stack) > 0 {
		ni := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := m.nodes[ni]
		if _, hit := rayAABBSlab(ray, n.box, tmax); !hit {
			continue
		}
		if n.count > 0 {
			for j := n.start; j < n.start+n.count; j++ {
				if inst, ok := m.instances[m.leafRefs[j]]; ok {
					visit(inst)
				}
			}
			continue
		}
		stack = append(stack, n.left, n.right)
	}
}

// CullFrustum returns the entities whose world bounds intersect the
// frustum, in scene-BVH order.
func (m *Manager) CullFrustum(f mathx.Frustum) []scene.EntityID {
	var visible []scene.EntityID
	if len(m.nodes) == 0 {
		m.stats.Culled += len(m.instances)
		return nil
	}
	stack := make([]int32, 0, 64)
	stack = append(stack, 0)
	for len(stack) > 0 {
		ni := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := m.nodes[ni]
		if !f.IntersectsAABB(n.box) {
			continue
		}
		if n.count > 0 {
			for j := n.start; j < n.start+n.count; j++ {
				id := m.leafRefs[j]
				inst, ok := m.instances[id]
				if !ok {
					continue
				}
				if f.IntersectsAABB(inst.worldAABB) {
					visible = append(visible, id)
				}
			}
			continue
		}
		stack = append(stack, n.left, n.right)
	}
	m.stats.Visible += len(visible)
	m.stats.Culled += len(m.instances) - len(visible)
	return visible
}

// TakeFrameStats returns and resets the per-frame counters.
func (m *Manager) TakeFrameStats() FrameStats {
	s := m.stats
	m.stats = FrameStats{}
	return s
}

// LogFrameStats emits the counters through the debug logger and resets.
func (m *Manager) LogFrameStats() {
	s := m.TakeFrameStats()
	m.log.Debug("bvh frame stats",
		zap.Int("raycasts", s.Raycasts),
		zap.Int("triangle_tests", s.TriangleTests),
		zap.Int("visible", s.Visible),
		zap.Int("culled", s.Culled),
		zap.Duration("build", s.BuildTime),
		zap.Duration("refit", s.RefitTime))
}
