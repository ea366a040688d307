// Package physics is the fixed-step simulation world: rigid bodies and
// colliders keyed by entity, a deterministic integrator, and the query
// primitives the character controller builds on.
package physics

import (
	"encoding/json"
	"sort"

	"go.uber.org/zap"

	"github.com/kestrel3d/kestrel/internal/mathx"
	"github.com/kestrel3d/kestrel/internal/scene"
	"github.com/kestrel3d/kestrel/internal/scene/component"
)

// BodyKind mirrors the authored body types.
type BodyKind uint8

const (
	KindDynamic BodyKind = iota
	KindKinematic
	KindFixed
)

func bodyKindFrom(tag string) BodyKind {
	switch tag {
	case component.BodyKinematic:
		return KindKinematic
	case component.BodyFixed:
		return KindFixed
	}
	return KindDynamic
}

// Body is one simulated rigid body.
type Body struct {
	Entity       scene.EntityID
	Kind         BodyKind
	Position     mathx.Vec3
	Rotation     mathx.Quat
	Velocity     mathx.Vec3
	Mass         float64
	GravityScale float64
	Friction     float64
	Restitution  float64
	Sleeping     bool
	CanSleep     bool

	stillFrames int
}

// Collider is one collision shape attached to a body.
type Collider struct {
	Entity    scene.EntityID
	Shape     string // box | sphere | capsule | cylinder | mesh
	Size      component.ColliderSize
	Center    mathx.Vec3
	IsTrigger bool
	Friction  float64
}

// ContactEvent reports a new dynamic-vs-collider touch, distinguished into
// solid collisions and trigger overlaps.
type ContactEvent struct {
	A, B      scene.EntityID
	Normal    mathx.Vec3
	IsTrigger bool
}

// World holds all bodies and colliders. Iteration order is insertion order
// so stepping is deterministic for identical inputs.
type World struct {
	log     *zap.Logger
	gravity mathx.Vec3

	order     []scene.EntityID
	bodies    map[scene.EntityID]*Body
	colliders map[scene.EntityID][]*Collider

	contacts     []ContactEvent
	activePairs  map[[2]scene.EntityID]struct{}
	sleepEpsilon float64
}

func NewWorld(log *zap.Logger) *World {
	if log == nil {
		log = zap.NewNop()
	}
	return &World{
		log:          log,
		gravity:      mathx.V3(0, -9.81, 0),
		bodies:       make(map[scene.EntityID]*Body),
		colliders:    make(map[scene.EntityID][]*Collider),
		activePairs:  make(map[[2]scene.EntityID]struct{}),
		sleepEpsilon: 1e-3,
	}
}

// SetGravity overrides the default gravity vector.
func (w *World) SetGravity(g mathx.Vec3) { w.gravity = g }

// PopulateFromScene creates bodies and colliders for every entity whose
// components define physics. Returns the number of entities added.
func (w *World) PopulateFromScene(st *scene.State, reg *component.Registry) int {
	count := 0
	st.WithScene(func(s *scene.Scene) {
		for _, e := range s.Entities {
			if w.addEntityLocked(e, reg) {
				count++
			}
		}
	})
	w.log.Info("physics populated", zap.Int("entities", count))
	return count
}

// AddEntity inspects one entity's components and registers it if it has a
// rigid body or collider. Idempotent per entity.
func (w *World) AddEntity(e *scene.Entity, reg *component.Registry) bool {
	return w.addEntityLocked(e, reg)
}

func (w *World) addEntityLocked(e *scene.Entity, reg *component.Registry) bool {
	id := e.EntityID()
	if _, exists := w.bodies[id]; exists {
		return false
	}

	rbPayload, hasRB := e.Component(component.KindRigidBody)
	colPayload, hasCol := e.Component(component.KindMeshCollider)
	if !hasRB && !hasCol {
		return false
	}

	var t component.Transform
	if p, ok := e.Component(component.KindTransform); ok {
		_ = json.Unmarshal(p, &t)
	}

	body := &Body{
		Entity:       id,
		Kind:         KindFixed,
		Position:     t.PositionVec(),
		Rotation:     t.RotationQuat(),
		Mass:         1,
		GravityScale: 1,
		Friction:     0.7,
		Restitution:  0.3,
		CanSleep:     true,
	}

	if hasRB {
		c, err := reg.Decode(component.KindRigidBody, rbPayload)
		if err != nil {
			w.log.Warn("rigid body dropped", zap.String("entity", e.Name), zap.Error(err))
			return false
		}
		rb := c.(component.RigidBody)
		if !rb.Enabled {
			return false
		}
		mat := rb.EffectiveMaterial()
		body.Kind = bodyKindFrom(rb.EffectiveBodyType())
		body.Mass = rb.Mass
		body.GravityScale = rb.GravityScale
		body.CanSleep = rb.CanSleep
		body.Friction = mat.Friction
		body.Restitution = mat.Restitution
	}

	if hasCol {
		c, err := reg.Decode(component.KindMeshCollider, colPayload)
		if err != nil {
			w.log.Warn("collider dropped", zap.String("entity", e.Name), zap.Error(err))
		} else {
			mc := c.(component.MeshCollider)
			if mc.Enabled {
				w.colliders[id] = append(w.colliders[id], &Collider{
					Entity:    id,
					Shape:     mc.ColliderType,
					Size:      mc.Size,
					Center:    mathx.V3(mc.Center[0], mc.Center[1], mc.Center[2]),
					IsTrigger: mc.IsTrigger,
					Friction:  mc.PhysicsMaterial.Friction,
				})
			}
		}
	}
	if len(w.colliders[id]) == 0 {
		// A bare rigid body still simulates; give it a unit box so it can
		// rest on things.
		w.colliders[id] = append(w.colliders[id], &Collider{
			Entity: id,
			Shape:  "box",
			Size:   component.ColliderSize{Width: 1, Height: 1, Depth: 1},
		})
	}

	w.bodies[id] = body
	w.order = append(w.order, id)
	return true
}

// RemoveEntity drops the body and colliders for an entity. Part of the
// destroy cascade.
func (w *World) RemoveEntity(id scene.EntityID) {
	if _, ok := w.bodies[id]; !ok {
		return
	}
	delete(w.bodies, id)
	delete(w.colliders, id)
	for i, o := range w.order {
		if o == id {
			w.order = append(w.order[:i], w.order[i+1:]...)
			break
		}
	}
	for pair := range w.activePairs {
		if pair[0] == id || pair[1] == id {
			delete(w.activePairs, pair)
		}
	}
}

// EntityTransform returns the simulated pose for a bodied entity.
func (w *World) EntityTransform(id scene.EntityID) (mathx.Vec3, mathx.Quat, bool) {
	b, ok := w.bodies[id]
	if !ok {
		return mathx.Vec3{}, mathx.QuatIdentity(), false
	}
	return b.Position, b.Rotation, true
}

// SetEntityTransform teleports a body (kinematic writes, script warps).
// Wakes the body.
func (w *World) SetEntityTransform(id scene.EntityID, pos mathx.Vec3, rot mathx.Quat) bool {
	b, ok := w.bodies[id]
	if !ok {
		return false
	}
	b.Position = pos
	b.Rotation = rot
	b.Sleeping = false
	b.stillFrames = 0
	return true
}

// Body returns the body handle for direct velocity access (controllers).
func (w *World) Body(id scene.EntityID) (*Body, bool) {
	b, ok := w.bodies[id]
	return b, ok
}

// EntityToColliders returns the collider list for an entity.
func (w *World) EntityToColliders(id scene.EntityID) []*Collider {
	return w.colliders[id]
}

// BodiedEntities returns every simulated entity in deterministic order.
func (w *World) BodiedEntities() []scene.EntityID {
	out := make([]scene.EntityID, len(w.order))
	copy(out, w.order)
	return out
}

// BodyCount returns the number of bodies.
func (w *World) BodyCount() int { return len(w.bodies) }

// TakeContactEvents returns and clears the contact events recorded since
// the last call. Consumed once per frame after the physics stage.
func (w *World) TakeContactEvents() []ContactEvent {
	out := w.contacts
	w.contacts = nil
	return out
}

// Step advances the simulation one fixed step. Deterministic given
// identical inputs and dt.
func (w *World) Step(dt float64) {
	if dt <= 0 {
		return
	}
	// Integrate dynamics (semi-implicit Euler).
	for _, id := range w.order {
		b := w.bodies[id]
		if b.Kind != KindDynamic || b.Sleeping {
			continue
		}
		b.Velocity = b.Velocity.Add(w.gravity.Scale(b.GravityScale * dt))
		b.Position = b.Position.Add(b.Velocity.Scale(dt))
	}

	w.resolveContacts()

	// Sleep bodies that have been still for a while.
	for _, id := range w.order {
		b := w.bodies[id]
		if b.Kind != KindDynamic || !b.CanSleep || b.Sleeping {
			continue
		}
		if b.Velocity.LengthSq() < w.sleepEpsilon*w.sleepEpsilon {
			b.stillFrames++
			if b.stillFrames > 30 {
				b.Sleeping = true
				b.Velocity = mathx.Zero3
			}
		} else {
			b.stillFrames = 0
		}
	}
}

// worldAABB returns the collider's axis-aligned bounds at the body's pose.
// Rotation is ignored for broadphase; authored physics scenes keep
// colliders axis-aligned.
func (w *World) worldAABB(b *Body, c *Collider) mathx.AABB {
	center := b.Position.Add(c.Center)
	var half mathx.Vec3
	switch c.Shape {
	case "sphere":
		half = mathx.V3(c.Size.Radius, c.Size.Radius, c.Size.Radius)
	case "capsule":
		half = mathx.V3(c.Size.CapsuleRadius, c.Size.CapsuleHeight/2, c.Size.CapsuleRadius)
	default: // box, cylinder, mesh fall back to box extents
		half = mathx.V3(c.Size.Width/2, c.Size.Height/2, c.Size.Depth/2)
	}
	return mathx.AABB{Min: center.Sub(half), Max: center.Add(half)}
}

func (w *World) resolveContacts() {
	seen := make(map[[2]scene.EntityID]struct{}, len(w.activePairs))

	for _, idA := range w.order {
		a := w.bodies[idA]
		if a.Kind != KindDynamic || a.Sleeping {
			continue
		}
		for _, ca := range w.colliders[idA] {
			boxA := w.worldAABB(a, ca)
			for _, idB := range w.order {
				if idA == idB {
					continue
				}
				b := w.bodies[idB]
				// Dynamic-dynamic pairs resolve once, from the lower id.
				if b.Kind == KindDynamic && idB < idA {
					continue
				}
				for _, cb := range w.colliders[idB] {
					boxB := w.worldAABB(b, cb)
					n, depth, hit := aabbPenetration(boxA, boxB)
					if !hit {
						continue
					}
					pair := orderedPair(idA, idB)
					seen[pair] = struct{}{}
					if _, already := w.activePairs[pair]; !already {
						w.contacts = append(w.contacts, ContactEvent{
							A: idA, B: idB, Normal: n,
							IsTrigger: ca.IsTrigger || cb.IsTrigger,
						})
					}
					if ca.IsTrigger || cb.IsTrigger {
						continue
					}
					w.resolvePair(a, b, n, depth)
				}
			}
		}
	}
	w.activePairs = seen
}

func orderedPair(a, b scene.EntityID) [2]scene.EntityID {
	if a < b {
		return [2]scene.EntityID{a, b}
	}
	return [2]scene.EntityID{b, a}
}

// aabbPenetration returns the minimal separating axis (pointing from b
// into a) and depth when the boxes overlap.
func aabbPenetration(a, b mathx.AABB) (mathx.Vec3, float64, bool) {
	overlapX := minf(a.Max.X, b.Max.X) - maxf(a.Min.X, b.Min.X)
	overlapY := minf(a.Max.Y, b.Max.Y) - maxf(a.Min.Y, b.Min.Y)
	overlapZ := minf(a.Max.Z, b.Max.Z) - maxf(a.Min.Z, b.Min.Z)
	if overlapX <= 0 || overlapY <= 0 || overlapZ <= 0 {
		return mathx.Vec3{}, 0, false
	}
	ca, cb := a.Center(), b.Center()
	switch {
	case overlapX <= overlapY && overlapX <= overlapZ:
		n := mathx.V3(sign(ca.X-cb.X), 0, 0)
		return n, overlapX, true
	case overlapY <= overlapZ:
		return mathx.V3(0, sign(ca.Y-cb.Y), 0), overlapY, true
	default:
		return mathx.V3(0, 0, sign(ca.Z-cb.Z)), overlapZ, true
	}
}

// penetrationSlop is left in place when separating bodies so resting
// contacts stay overlapped and the pair is not re-reported every frame.
const penetrationSlop = 0.005

// restitutionThreshold is the normal impact speed below which restitution
// is suppressed. Without it a settling body keeps bouncing out of the slop
// band and re-reports its contact on every landing.
const restitutionThreshold = 1.0

// resolvePair pushes the dynamic body a out of b along n and reflects the
// velocity component into the surface with restitution, damping tangential
// motion by the pair's friction.
func (w *World) resolvePair(a, b *Body, n mathx.Vec3, depth float64) {
	push := n.Scale(maxf(0, depth-penetrationSlop))
	if b.Kind == KindDynamic {
		a.Position = a.Position.Add(push.Scale(0.5))
		b.Position = b.Position.Sub(push.Scale(0.5))
		b.Sleeping = false
	} else {
		a.Position = a.Position.Add(push)
	}

	vn := a.Velocity.Dot(n)
	if vn < 0 {
		restitution := minf(a.Restitution, b.Restitution)
		if -vn < restitutionThreshold {
			restitution = 0
		}
		normal := n.Scale(vn)
		tangent := a.Velocity.Sub(normal)
		friction := maxf(0, 1-minf(a.Friction, b.Friction)*0.1)
		a.Velocity = tangent.Scale(friction).Sub(normal.Scale(restitution))
		// Kill jitter bounces.
		if a.Velocity.Dot(n) < 0.05 {
			a.Velocity = a.Velocity.Sub(n.Scale(a.Velocity.Dot(n)))
		}
	}
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}

// SortedBodyIDs returns entity ids sorted numerically, for deterministic
// debug output.
func (w *World) SortedBodyIDs() []scene.EntityID {
	out := w.BodiedEntities()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
