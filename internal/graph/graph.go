// Package graph maintains world-from-local transforms over the scene's
// parent chains, with dirty propagation and lazy memoized recompute.
package graph

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/kestrel3d/kestrel/internal/mathx"
	"github.com/kestrel3d/kestrel/internal/scene"
	"github.com/kestrel3d/kestrel/internal/scene/component"
)

// Graph caches world matrices keyed by entity. It runs on the frame thread;
// no internal locking.
type Graph struct {
	log   *zap.Logger
	state *scene.State

	parent   map[scene.EntityID]scene.EntityID
	children map[scene.EntityID][]scene.EntityID
	world    map[scene.EntityID]mathx.Mat4
	dirty    map[scene.EntityID]struct{}
}

func New(log *zap.Logger, state *scene.State) *Graph {
	if log == nil {
		log = zap.NewNop()
	}
	g := &Graph{log: log, state: state}
	g.Rebuild()
	return g
}

// Rebuild reindexes parent links from the scene and invalidates every
// cached world matrix. Call after a full scene replace.
func (g *Graph) Rebuild() {
	g.parent = make(map[scene.EntityID]scene.EntityID)
	g.children = make(map[scene.EntityID][]scene.EntityID)
	g.world = make(map[scene.EntityID]mathx.Mat4)
	g.dirty = make(map[scene.EntityID]struct{})

	g.state.WithScene(func(s *scene.Scene) {
		for _, e := range s.Entities {
			if e.ParentPersistentID == "" {
				continue
			}
			p := s.FindByPersistentID(e.ParentPersistentID)
			if p == nil {
				continue
			}
			id, pid := e.EntityID(), p.EntityID()
			g.parent[id] = pid
			g.children[pid] = append(g.children[pid], id)
		}
	})
}

// MarkDirty invalidates the entity and its whole subtree.
func (g *Graph) MarkDirty(id scene.EntityID) {
	g.dirty[id] = struct{}{}
	for _, c := range g.children[id] {
		g.MarkDirty(c)
	}
}

// DirtyCount returns the number of invalidated nodes, for the debug logger.
func (g *Graph) DirtyCount() int { return len(g.dirty) }

// WorldMatrix returns world-from-local for the entity, recomputing the
// ancestor chain as needed and memoizing. Unknown entities and entities
// without a Transform contribute identity.
func (g *Graph) WorldMatrix(id scene.EntityID) mathx.Mat4 {
	if m, ok := g.world[id]; ok {
		if _, d := g.dirty[id]; !d {
			return m
		}
	}
	local := g.localMatrix(id)
	var world mathx.Mat4
	if pid, ok := g.parent[id]; ok {
		world = g.WorldMatrix(pid).Mul(local)
	} else {
		world = local
	}
	g.world[id] = world
	delete(g.dirty, id)
	return world
}

// WorldPosition returns the world-space origin of the entity.
func (g *Graph) WorldPosition(id scene.EntityID) mathx.Vec3 {
	return g.WorldMatrix(id).Translation()
}

// WorldRotation composes rotations up the parent chain. Scale shear is
// ignored; authored scenes use uniform or axis-aligned scale.
func (g *Graph) WorldRotation(id scene.EntityID) mathx.Quat {
	q := g.localTransform(id).RotationQuat()
	if pid, ok := g.parent[id]; ok {
		return g.WorldRotation(pid).Mul(q).Normalized()
	}
	return q
}

// LocalTransform returns the decoded Transform record (zero value when the
// component is missing or malformed).
func (g *Graph) LocalTransform(id scene.EntityID) component.Transform {
	return g.localTransform(id)
}

func (g *Graph) localTransform(id scene.EntityID) component.Transform {
	var t component.Transform
	g.state.WithScene(func(s *scene.Scene) {
		e := s.FindByEntityID(id)
		if e == nil {
			return
		}
		payload, ok := e.Component(component.KindTransform)
		if !ok {
			return
		}
		if err := json.Unmarshal(payload, &t); err != nil {
			g.log.Debug("transform payload unreadable",
				zap.Uint64("entity", uint64(id)), zap.Error(err))
			t = component.Transform{}
		}
	})
	return t
}

func (g *Graph) localMatrix(id scene.EntityID) mathx.Mat4 {
	return g.localTransform(id).LocalMatrix()
}

// Observer wiring: the graph keeps its indices in sync with manager
// mutations applied at the frame's safe point.

func (g *Graph) EntityCreated(id scene.EntityID, e *scene.Entity) {
	if e.ParentPersistentID != "" {
		g.state.WithScene(func(s *scene.Scene) {
			if p := s.FindByPersistentID(e.ParentPersistentID); p != nil {
				pid := p.EntityID()
				g.parent[id] = pid
				g.children[pid] = append(g.children[pid], id)
			}
		})
	}
	g.MarkDirty(id)
}

func (g *Graph) EntityDestroyed(id scene.EntityID) {
	if pid, ok := g.parent[id]; ok {
		kids := g.children[pid]
		for i, c := range kids {
			if c == id {
				g.children[pid] = append(kids[:i], kids[i+1:]...)
				break
			}
		}
	}
	// Orphaned children fall back to root space on their next lookup.
	for _, c := range g.children[id] {
		delete(g.parent, c)
		g.MarkDirty(c)
	}
	delete(g.children, id)
	delete(g.parent, id)
	delete(g.world, id)
	delete(g.dirty, id)
}

func (g *Graph) ComponentSet(id scene.EntityID, kind scene.ComponentKind, _ json.RawMessage) {
	if kind == scene.KindTransform {
		g.MarkDirty(id)
	}
}

func (g *Graph) ComponentRemoved(id scene.EntityID, kind scene.ComponentKind) {
	if kind == scene.KindTransform {
		g.MarkDirty(id)
	}
}

// ParentChanged implements scene.ParentObserver: the manager and the
// bridge call it after applying a reparent.
func (g *Graph) ParentChanged(id, parent scene.EntityID) {
	g.Reparent(id, parent)
}

// Reparent updates the index after a set_parent command. The manager has
// already validated the link. The entity keeps its subtree.
func (g *Graph) Reparent(id, newParent scene.EntityID) {
	if pid, ok := g.parent[id]; ok {
		kids := g.children[pid]
		for i, c := range kids {
			if c == id {
				g.children[pid] = append(kids[:i], kids[i+1:]...)
				break
			}
		}
	}
	delete(g.parent, id)
	if !newParent.IsZero() {
		g.parent[id] = newParent
		g.children[newParent] = append(g.children[newParent], id)
	}
	g.MarkDirty(id)
}
