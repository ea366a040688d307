package spatial

import (
	"sort"

	"github.com/kestrel3d/kestrel/internal/mathx"
)

// DefaultMaxLeafTriangles caps triangles per mesh-BVH leaf.
const DefaultMaxLeafTriangles = 4

const sahBins = 12

// meshNode is one BVH node in the flat array. A node is a leaf when
// count > 0; internal nodes store child indices.
type meshNode struct {
	box         mathx.AABB
	left, right int32
	start       int32
	count       int32
}

// MeshBVH partitions one mesh's triangles. Built once per unique mesh and
// shared by every instance.
type MeshBVH struct {
	nodes   []meshNode
	tris    []Triangle
	triIdx  []int32 // original triangle indices, parallel to tris
	maxLeaf int
}

// TriHit is a triangle intersection in mesh-local parameterization.
type TriHit struct {
	T           float64
	Triangle    int
	Barycentric [3]float64
	tests       int
}

type triRef struct {
	tri      Triangle
	idx      int32
	centroid mathx.Vec3
	box      mathx.AABB
}

func (r triRef) bounds() mathx.AABB { return r.box }
func (r triRef) center() mathx.Vec3 { return r.centroid }

// BuildMeshBVH constructs the hierarchy. Splits use a binned surface-area
// heuristic; when SAH cannot beat the parent's leaf cost the split falls
// back to the object median so depth stays bounded.
func BuildMeshBVH(tris []Triangle, maxLeaf int) *MeshBVH {
	if maxLeaf <= 0 {
		maxLeaf = DefaultMaxLeafTriangles
	}
	b := &MeshBVH{maxLeaf: maxLeaf}
	if len(tris) == 0 {
		return b
	}
	refs := make([]triRef, len(tris))
	for i, t := range tris {
		refs[i] = triRef{tri: t, idx: int32(i), centroid: t.Centroid(), box: t.AABB()}
	}
	b.buildNode(refs)
	return b
}

// TriangleCount returns the number of triangles in the hierarchy.
func (b *MeshBVH) TriangleCount() int { return len(b.tris) }

// Bounds returns the root bounds; empty for a zero-triangle mesh.
func (b *MeshBVH) Bounds() mathx.AABB {
	if len(b.nodes) == 0 {
		return mathx.EmptyAABB()
	}
	return b.nodes[0].box
}

func refsBounds(refs []triRef) mathx.AABB {
	box := mathx.EmptyAABB()
	for _, r := range refs {
		box = box.Merge(r.box)
	}
	return box
}

func (b *MeshBVH) buildNode(refs []triRef) int32 {
	nodeIdx := int32(len(b.nodes))
	box := refsBounds(refs)

	if len(refs) <= b.maxLeaf {
		b.pushLeaf(box, refs)
		return nodeIdx
	}

	left, right := splitSAH(refs, box)
	if len(left) == 0 || len(right) == 0 {
		b.pushLeaf(box, refs)
		return nodeIdx
	}

	b.nodes = append(b.nodes, meshNode{box: box})
	l := b.buildNode(left)
	r := b.buildNode(right)
	b.nodes[nodeIdx].left = l
	b.nodes[nodeIdx].right = r
	return nodeIdx
}

func (b *MeshBVH) pushLeaf(box mathx.AABB, refs []triRef) {
	start := int32(len(b.tris))
	for _, r := range refs {
		b.tris = append(b.tris, r.tri)
		b.triIdx = append(b.triIdx, r.idx)
	}
	b.nodes = append(b.nodes, meshNode{box: box, start: start, count: int32(len(refs))})
}

// boundedRef is anything the SAH splitter can partition: mesh triangles
// and scene instances both qualify.
type boundedRef interface {
	bounds() mathx.AABB
	center() mathx.Vec3
}

// splitSAH bins centroids along the longest axis and picks the partition
// with the lowest surface-area cost. If no partition beats keeping the
// node whole, the refs are median-split instead.
func splitSAH[R boundedRef](refs []R, box mathx.AABB) ([]R, []R) {
	axis := box.LongestAxis()
	lo := box.Min.Component(axis)
	hi := box.Max.Component(axis)
	if hi-lo < epsilon {
		return splitMedian(refs, axis)
	}

	type bin struct {
		box   mathx.AABB
		count int
	}
	bins := make([]bin, sahBins)
	for i := range bins {
		bins[i].box = mathx.EmptyAABB()
	}
	scale := float64(sahBins) / (hi - lo)
	binOf := func(r R) int {
		i := int((r.center().Component(axis) - lo) * scale)
		if i < 0 {
			i = 0
		}
		if i >= sahBins {
			i = sahBins - 1
		}
		return i
	}
	for _, r := range refs {
		i := binOf(r)
		bins[i].box = bins[i].box.Merge(r.bounds())
		bins[i].count++
	}

	// Sweep: cost(i) = leftArea*leftCount + rightArea*rightCount.
	var leftBox, rightBox [sahBins]mathx.AABB
	var leftCnt, rightCnt [sahBins]int
	acc := mathx.EmptyAABB()
	cnt := 0
	for i := 0; i < sahBins; i++ {
		acc = acc.Merge(bins[i].box)
		cnt += bins[i].count
		leftBox[i], leftCnt[i] = acc, cnt
	}
	acc = mathx.EmptyAABB()
	cnt = 0
	for i := sahBins - 1; i >= 0; i-- {
		acc = acc.Merge(bins[i].box)
		cnt += bins[i].count
		rightBox[i], rightCnt[i] = acc, cnt
	}

	parentCost := box.SurfaceArea() * float64(len(refs))
	bestCost := parentCost
	bestSplit := -1
	for i := 0; i < sahBins-1; i++ {
		if leftCnt[i] == 0 || rightCnt[i+1] == 0 {
			continue
		}
		cost := leftBox[i].SurfaceArea()*float64(leftCnt[i]) +
			rightBox[i+1].SurfaceArea()*float64(rightCnt[i+1])
		if cost < bestCost {
			bestCost = cost
			bestSplit = i
		}
	}
	if bestSplit < 0 {
		return splitMedian(refs, axis)
	}

	var left, right []R
	for _, r := range refs {
		if binOf(r) <= bestSplit {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}
	return left, right
}

func splitMedian[R boundedRef](refs []R, axis int) ([]R, []R) {
	sorted := make([]R, len(refs))
	copy(sorted, refs)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].center().Component(axis) < sorted[j].center().Component(axis)
	})
	mid := len(sorted) / 2
	return sorted[:mid], sorted[mid:]
}

// RaycastFirst returns the nearest triangle hit, pruning nodes whose entry
// distance already exceeds the best t.
func (b *MeshBVH) RaycastFirst(r Ray, tmax float64) (TriHit, bool) {
	if len(b.nodes) == 0 {
		return TriHit{}, false
	}
	best := TriHit{T: tmax}
	found := false
	tests := 0

	stack := make([]int32, 0, 64)
	stack = append(stack, 0)
	for len(stack) > 0 {
		ni := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := b.nodes[ni]
		entry, hit := rayAABBSlab(r, n.box, best.T)
		if !hit || entry > best.T {
			continue
		}
		if n.count > 0 {
			for i := n.start; i < n.start+n.count; i++ {
				tests++
				if t, bary, ok := rayTriangle(r, b.tris[i], best.T); ok {
					best = TriHit{T: t, Triangle: int(b.triIdx[i]), Barycentric: bary}
					found = true
				}
			}
			continue
		}
		stack = append(stack, n.left, n.right)
	}
	best.tests = tests
	return best, found
}

// RaycastAll collects every triangle hit within tmax, sorted by distance.
func (b *MeshBVH) RaycastAll(r Ray, tmax float64) []TriHit {
	if len(b.nodes) == 0 {
		return nil
	}
	var hits []TriHit
	stack := make([]int32, 0, 64)
	stack = append(stack, 0)
	for len(stack) > 0 {
		ni := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := b.nodes[ni]
		if _, hit := rayAABBSlab(r, n.box, tmax); !hit {
			continue
		}
		if n.count > 0 {
			for i := n.start; i < n.start+n.count; i++ {
				if t, bary, ok := rayTriangle(r, b.tris[i], tmax); ok {
					hits = append(hits, TriHit{T: t, Triangle: int(b.triIdx[i]), Barycentric: bary})
				}
			}
			continue
		}
		stack = append(stack, n.left, n.right)
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].T < hits[j].T })
	return hits
}
