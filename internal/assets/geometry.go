// Package assets loads and caches engine resources: geometry metadata,
// meshes (with procedural primitive fallbacks) and the project manifest.
package assets

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/kestrel3d/kestrel/internal/mathx"
	"github.com/kestrel3d/kestrel/internal/spatial"
)

// Attribute element types accepted in geometry metadata.
var attributeTypes = map[string]bool{
	"float32": true,
	"float64": true,
	"uint32":  true,
	"uint16":  true,
	"uint8":   true,
	"int32":   true,
	"int16":   true,
	"int8":    true,
}

// Attribute is one typed vertex stream.
type Attribute struct {
	Type     string    `json:"type"`
	ItemSize int       `json:"itemSize"`
	Array    []float64 `json:"array"`
}

// Group is a sub-range drawn with one material.
type Group struct {
	Start         int `json:"start"`
	Count         int `json:"count"`
	MaterialIndex int `json:"materialIndex"`
}

// DrawRange restricts the drawn index window.
type DrawRange struct {
	Start int `json:"start"`
	Count int `json:"count"`
}

// Bounds is the authored local AABB.
type Bounds struct {
	Min [3]float64 `json:"min"`
	Max [3]float64 `json:"max"`
}

// GeometryMeta is the decoded geometry sidecar: typed attribute arrays plus
// an optional index, groups, draw range and bounds.
type GeometryMeta struct {
	Meta       map[string]json.RawMessage `json:"meta,omitempty"`
	Attributes map[string]Attribute       `json:"attributes"`
	Index      *Attribute                 `json:"index,omitempty"`
	Groups     []Group                    `json:"groups,omitempty"`
	DrawRange  *DrawRange                 `json:"drawRange,omitempty"`
	Bounds     *Bounds                    `json:"bounds,omitempty"`
}

// ParseGeometryMeta decodes and validates geometry metadata.
func ParseGeometryMeta(data []byte) (*GeometryMeta, error) {
	var g GeometryMeta
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("parse geometry meta: %w", err)
	}
	for name, attr := range g.Attributes {
		if !attributeTypes[attr.Type] {
			return nil, fmt.Errorf("attribute %q: unknown type %q", name, attr.Type)
		}
		if attr.ItemSize <= 0 {
			return nil, fmt.Errorf("attribute %q: itemSize must be positive", name)
		}
		if len(attr.Array)%attr.ItemSize != 0 {
			return nil, fmt.Errorf("attribute %q: array length %d not divisible by itemSize %d",
				name, len(attr.Array), attr.ItemSize)
		}
	}
	if g.Index != nil && g.Index.ItemSize == 0 {
		g.Index.ItemSize = 1
	}
	return &g, nil
}

// LoadGeometryMeta reads and parses a geometry sidecar file.
func LoadGeometryMeta(path string) (*GeometryMeta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read geometry %s: %w", path, err)
	}
	return ParseGeometryMeta(data)
}

// VertexCount returns the position vertex count.
func (g *GeometryMeta) VertexCount() int {
	pos, ok := g.Attributes["position"]
	if !ok || pos.ItemSize == 0 {
		return 0
	}
	return len(pos.Array) / pos.ItemSize
}

// Triangles assembles the triangle list from positions and the index (or
// sequential order when unindexed), honoring the draw range.
func (g *GeometryMeta) Triangles() ([]spatial.Triangle, error) {
	pos, ok := g.Attributes["position"]
	if !ok {
		return nil, fmt.Errorf("geometry has no position attribute")
	}
	if pos.ItemSize != 3 {
		return nil, fmt.Errorf("position itemSize %d, want 3", pos.ItemSize)
	}
	vcount := len(pos.Array) / 3
	vertex := func(i int) (mathx.Vec3, error) {
		if i < 0 || i >= vcount {
			return mathx.Vec3{}, fmt.Errorf("index %d out of range (%d vertices)", i, vcount)
		}
		return mathx.Vec3{X: pos.Array[i*3], Y: pos.Array[i*3+1], Z: pos.Array[i*3+2]}, nil
	}

	var indices []int
	if g.Index != nil {
		indices = make([]int, len(g.Index.Array))
		for i, f := range g.Index.Array {
			indices[i] = int(f)
		}
	} else {
		indices = make([]int, vcount)
		for i := range indices {
			indices[i] = i
		}
	}
	start, count := 0, len(indices)
	if g.DrawRange != nil {
		start = g.DrawRange.Start
		if g.DrawRange.Count < count-start {
			count = g.DrawRange.Count
		} else {
			count = len(indices) - start
		}
	}
	if start < 0 || start > len(indices) {
		return nil, fmt.Errorf("draw range start %d out of bounds", start)
	}
	indices = indices[start : start+count]

	tris := make([]spatial.Triangle, 0, len(indices)/3)
	for i := 0; i+2 < len(indices); i += 3 {
		a, err := vertex(indices[i])
		if err != nil {
			return nil, err
		}
		b, err := vertex(indices[i+1])
		if err != nil {
			return nil, err
		}
		c, err := vertex(indices[i+2])
		if err != nil {
			return nil, err
		}
		tris = append(tris, spatial.Triangle{A: a, B: b, C: c})
	}
	return tris, nil
}

// AABB returns authored bounds when present, otherwise bounds computed from
// positions.
func (g *GeometryMeta) AABB() mathx.AABB {
	if g.Bounds != nil {
		return mathx.AABB{
			Min: mathx.Vec3{X: g.Bounds.Min[0], Y: g.Bounds.Min[1], Z: g.Bounds.Min[2]},
			Max: mathx.Vec3{X: g.Bounds.Max[0], Y: g.Bounds.Max[1], Z: g.Bounds.Max[2]},
		}
	}
	box := mathx.EmptyAABB()
	pos, ok := g.Attributes["position"]
	if !ok || pos.ItemSize != 3 {
		return box
	}
	for i := 0; i+2 < len(pos.Array); i += 3 {
		box = box.ExpandPoint(mathx.Vec3{X: pos.Array[i], Y: pos.Array[i+1], Z: pos.Array[i+2]})
	}
	return box
}
