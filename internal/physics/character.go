package physics

import (
	"math"

	"github.com/kestrel3d/kestrel/internal/mathx"
	"github.com/kestrel3d/kestrel/internal/scene"
	"github.com/kestrel3d/kestrel/internal/scene/component"
)

// GroundHit is the result of a character ground probe.
type GroundHit struct {
	IsGrounded bool
	Normal     mathx.Vec3
	Distance   float64
	HitPoint   mathx.Vec3
	HitEntity  scene.EntityID
}

// bottomOffset picks the distance from body center to the lowest point of
// the character's collider: half segment plus radius for a capsule, radius
// for a ball, half height otherwise.
func bottomOffset(c *Collider) float64 {
	switch c.Shape {
	case "capsule":
		halfSegment := maxf(0, c.Size.CapsuleHeight/2-c.Size.CapsuleRadius)
		return halfSegment + c.Size.CapsuleRadius
	case "sphere":
		return c.Size.Radius
	default:
		return c.Size.Height / 2
	}
}

// GroundProbe casts straight down from the character's collider bottom and
// reports a grounded hit when the surface is within skin width and not
// steeper than the slope limit. A flat (0,1,0) normal is never too steep.
func (w *World) GroundProbe(id scene.EntityID, cfg component.CharacterController) GroundHit {
	b, ok := w.bodies[id]
	if !ok {
		return GroundHit{}
	}
	cols := w.colliders[id]
	if len(cols) == 0 {
		return GroundHit{}
	}
	own := cols[0]
	bottom := bottomOffset(own)

	origin := b.Position.Add(own.Center)
	down := mathx.V3(0, -1, 0)
	tmax := bottom + cfg.StepOffset + cfg.SkinWidth + 0.01

	t, normal, point, hitEntity, hit := w.raycastColliders(origin, down, tmax, id)
	if !hit {
		return GroundHit{}
	}
	distance := t - bottom
	if distance < 0 {
		distance = 0
	}

	// Reject surfaces steeper than the slope limit.
	up := mathx.UnitY
	cosLimit := math.Cos(mathx.Radians(cfg.SlopeLimit))
	if normal.Dot(up) < cosLimit-1e-9 {
		return GroundHit{Normal: normal, Distance: distance, HitPoint: point, HitEntity: hitEntity}
	}

	return GroundHit{
		IsGrounded: distance <= cfg.SkinWidth,
		Normal:     normal,
		Distance:   distance,
		HitPoint:   point,
		HitEntity:  hitEntity,
	}
}

// SlideVelocity projects v onto the surface plane when moving into it
// (v·n < 0); otherwise v passes through unchanged.
func SlideVelocity(v, n mathx.Vec3) mathx.Vec3 {
	vn := v.Dot(n)
	if vn >= 0 {
		return v
	}
	return v.Sub(n.Scale(vn))
}

// StepCharacter advances a kinematic character: applies gravity when
// airborne, slides the velocity along the ground plane, and moves the
// body. Returns the probe so callers can write back isGrounded.
func (w *World) StepCharacter(id scene.EntityID, cfg component.CharacterController, desired mathx.Vec3, dt float64) GroundHit {
	b, ok := w.bodies[id]
	if !ok {
		return GroundHit{}
	}
	hit := w.GroundProbe(id, cfg)

	v := desired
	if hit.IsGrounded {
		if v.Y < 0 {
			v.Y = 0
		}
		v = SlideVelocity(v, hit.Normal)
		// Snap onto the surface to defeat drift across frames.
		if hit.Distance > 0 {
			b.Position.Y -= hit.Distance
		}
	} else {
		v.Y += w.gravity.Y * cfg.GravityScale * dt
	}

	b.Velocity = v
	b.Position = b.Position.Add(v.Scale(dt))
	b.Sleeping = false
	return hit
}

// raycastColliders intersects a ray with every solid collider except the
// excluded entity's own, returning the nearest hit.
func (w *World) raycastColliders(origin, dir mathx.Vec3, tmax float64, exclude scene.EntityID) (float64, mathx.Vec3, mathx.Vec3, scene.EntityID, bool) {
	bestT := tmax
	var bestN mathx.Vec3
	var bestEntity scene.EntityID
	found := false

	for _, id := range w.order {
		if id == exclude {
			continue
		}
		b := w.bodies[id]
		for _, c := range w.colliders[id] {
			if c.IsTrigger {
				continue
			}
			var t float64
			var n mathx.Vec3
			var ok bool
			if c.Shape == "sphere" {
				t, n, ok = raySphere(origin, dir, b.Position.Add(c.Center), c.Size.Radius, bestT)
			} else {
				t, n, ok = rayAABB(origin, dir, w.worldAABB(b, c), bestT)
			}
			if ok && t < bestT {
				bestT, bestN, bestEntity, found = t, n, id, true
			}
		}
	}
	if !found {
		return 0, mathx.Vec3{}, mathx.Vec3{}, 0, false
	}
	return bestT, bestN, origin.Add(dir.Scale(bestT)), bestEntity, true
}

// rayAABB is a slab test that also reports the face normal at entry.
func rayAABB(origin, dir mathx.Vec3, box mathx.AABB, tmax float64) (float64, mathx.Vec3, bool) {
	tmin, tlim := 0.0, tmax
	normal := mathx.Vec3{}

	for axis := 0; axis < 3; axis++ {
		o := origin.Component(axis)
		d := dir.Component(axis)
		lo := box.Min.Component(axis)
		hi := box.Max.Component(axis)
		if math.Abs(d) < 1e-12 {
			if o < lo || o > hi {
				return 0, mathx.Vec3{}, false
			}
			continue
		}
		inv := 1 / d
		t1 := (lo - o) * inv
		t2 := (hi - o) * inv
		axisNormal := axisVec(axis, -sign(d))
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		if t1 > tmin {
			tmin = t1
			normal = axisNormal
		}
		if t2 < tlim {
			tlim = t2
		}
		if tmin > tlim {
			return 0, mathx.Vec3{}, false
		}
	}
	if tmin <= 0 || tmin > tmax {
		return 0, mathx.Vec3{}, false
	}
	return tmin, normal, true
}

func raySphere(origin, dir mathx.Vec3, center mathx.Vec3, radius, tmax float64) (float64, mathx.Vec3, bool) {
	oc := origin.Sub(center)
	b := oc.Dot(dir)
	c := oc.LengthSq() - radius*radius
	disc := b*b - c
	if disc < 0 {
		return 0, mathx.Vec3{}, false
	}
	t := -b - math.Sqrt(disc)
	if t <= 0 || t > tmax {
		return 0, mathx.Vec3{}, false
	}
	point := origin.Add(dir.Scale(t))
	return t, point.Sub(center).Normalized(), true
}

func axisVec(axis int, s float64) mathx.Vec3 {
	switch axis {
	case 0:
		return mathx.V3(s, 0, 0)
	case 1:
		return mathx.V3(0, s, 0)
	default:
		return mathx.V3(0, 0, s)
	}
}
