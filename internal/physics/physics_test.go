package physics

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kestrel3d/kestrel/internal/mathx"
	"github.com/kestrel3d/kestrel/internal/scene"
	"github.com/kestrel3d/kestrel/internal/scene/component"
)

const physicsScene = `{
  "metadata": {"name": "phys", "version": 1},
  "entities": [
    {"persistentId": "ground", "name": "Ground", "components": {
      "Transform": {"position": [0, 0, 0]},
      "RigidBody": {"bodyType": "fixed"},
      "MeshCollider": {"colliderType": "box", "size": {"width": 50, "height": 0.1, "depth": 50}}
    }},
    {"persistentId": "box", "name": "Box", "components": {
      "Transform": {"position": [0, 4.25, 0]},
      "RigidBody": {"bodyType": "dynamic"},
      "MeshCollider": {"colliderType": "box", "size": {"width": 1, "height": 1, "depth": 1}}
    }}
  ]
}`

func newPhysicsWorld(t *testing.T) (*World, *scene.State) {
	t.Helper()
	s, err := scene.ParseScene([]byte(physicsScene))
	require.NoError(t, err)
	st := scene.NewState(s)

	reg := component.NewRegistry(zap.NewNop())
	component.RegisterBuiltins(reg)

	w := NewWorld(zap.NewNop())
	assert.Equal(t, 2, w.PopulateFromScene(st, reg))
	return w, st
}

func TestFallingCubeLandsOnGround(t *testing.T) {
	w, _ := newPhysicsWorld(t)
	box := scene.EntityIDFromPersistent("box")
	ground := scene.EntityIDFromPersistent("ground")

	for i := 0; i < 120; i++ {
		w.Step(1.0 / 60.0)
	}

	pos, _, ok := w.EntityTransform(box)
	require.True(t, ok)
	assert.Less(t, pos.Y, 4.25, "box must have fallen")
	assert.Greater(t, pos.Y, 0.0, "box must rest above the ground plane")

	gpos, _, ok := w.EntityTransform(ground)
	require.True(t, ok)
	assert.InDelta(t, 0, gpos.Y, 1e-3, "fixed ground never moves")
}

func TestDeterministicSteps(t *testing.T) {
	runSim := func() mathx.Vec3 {
		w, _ := newPhysicsWorld(t)
		for i := 0; i < 90; i++ {
			w.Step(1.0 / 60.0)
		}
		p, _, _ := w.EntityTransform(scene.EntityIDFromPersistent("box"))
		return p
	}
	a, b := runSim(), runSim()
	assert.InDelta(t, a.X, b.X, 1e-3)
	assert.InDelta(t, a.Y, b.Y, 1e-3)
	assert.InDelta(t, a.Z, b.Z, 1e-3)
}

func TestContactEventOnFirstTouchOnly(t *testing.T) {
	w, _ := newPhysicsWorld(t)
	box := scene.EntityIDFromPersistent("box")
	// Start just above the ground so the landing speed stays below the
	// restitution threshold and the box settles without bouncing.
	w.SetEntityTransform(box, mathx.V3(0, 0.58, 0), mathx.QuatIdentity())

	var contacts []ContactEvent
	for i := 0; i < 240; i++ {
		w.Step(1.0 / 60.0)
		contacts = append(contacts, w.TakeContactEvents()...)
	}
	require.Len(t, contacts, 1, "resting contact reports once")
	assert.False(t, contacts[0].IsTrigger)
}

func TestTallDropStopsReportingOnceSettled(t *testing.T) {
	w, _ := newPhysicsWorld(t)
	var early, late int
	for i := 0; i < 240; i++ {
		w.Step(1.0 / 60.0)
		n := len(w.TakeContactEvents())
		if i < 120 {
			early += n
		} else {
			late += n
		}
	}
	assert.GreaterOrEqual(t, early, 1, "the drop lands within the first two seconds")
	assert.Zero(t, late, "a settled box reports no further contacts")
}

func TestRemoveEntityDropsBody(t *testing.T) {
	w, _ := newPhysicsWorld(t)
	box := scene.EntityIDFromPersistent("box")
	w.RemoveEntity(box)
	_, _, ok := w.EntityTransform(box)
	assert.False(t, ok)
	assert.Equal(t, 1, w.BodyCount())
	assert.Empty(t, w.EntityToColliders(box))
}

func TestZeroDtStepIsNoop(t *testing.T) {
	w, _ := newPhysicsWorld(t)
	box := scene.EntityIDFromPersistent("box")
	before, _, _ := w.EntityTransform(box)
	w.Step(0)
	after, _, _ := w.EntityTransform(box)
	assert.Equal(t, before, after)
}

func characterConfig() component.CharacterController {
	return component.CharacterController{
		Enabled:      true,
		SlopeLimit:   45,
		StepOffset:   0.3,
		SkinWidth:    0.08,
		GravityScale: 1,
		MaxSpeed:     6,
	}
}

func addCharacter(t *testing.T, w *World, y float64) scene.EntityID {
	t.Helper()
	reg := component.NewRegistry(zap.NewNop())
	component.RegisterBuiltins(reg)
	hero := &scene.Entity{PersistentID: "hero", Name: "Hero"}
	hero.SetComponent("Transform", []byte(fmt.Sprintf(`{"position":[0,%g,0]}`, y)))
	hero.SetComponent("RigidBody", []byte(`{"bodyType":"kinematic"}`))
	hero.SetComponent("MeshCollider", []byte(`{"colliderType":"capsule","size":{"capsuleRadius":0.5,"capsuleHeight":2}}`))
	require.True(t, w.AddEntity(hero, reg))
	return hero.EntityID()
}

func TestGroundProbeGroundedWithinSkinWidth(t *testing.T) {
	w, _ := newPhysicsWorld(t)
	// Capsule bottom is halfSegment+radius = 1.0 below center; ground top
	// is at y=0.05, so center y=1.05 rests exactly on it.
	hero := addCharacter(t, w, 1.06)

	hit := w.GroundProbe(hero, characterConfig())
	assert.True(t, hit.IsGrounded)
	assert.InDelta(t, 1, hit.Normal.Y, 1e-9)
	assert.Equal(t, scene.EntityIDFromPersistent("ground"), hit.HitEntity)

	// Same probe from high above is not grounded.
	w.SetEntityTransform(hero, mathx.V3(0, 3, 0), mathx.QuatIdentity())
	hit = w.GroundProbe(hero, characterConfig())
	assert.False(t, hit.IsGrounded)
}

func TestFlatNormalNeverTooSteep(t *testing.T) {
	w, _ := newPhysicsWorld(t)
	hero := addCharacter(t, w, 1.06)
	cfg := characterConfig()
	cfg.SlopeLimit = 0
	hit := w.GroundProbe(hero, cfg)
	assert.True(t, hit.IsGrounded, "a (0,1,0) normal passes any slope limit >= 0")
}

func TestSlideVelocityProjection(t *testing.T) {
	n := mathx.V3(0, 1, 0)
	into := mathx.V3(1, -2, 0)
	slid := SlideVelocity(into, n)
	assert.Equal(t, mathx.V3(1, 0, 0), slid, "into the plane projects onto it")

	away := mathx.V3(1, 2, 0)
	assert.Equal(t, away, SlideVelocity(away, n), "moving away passes through")
}

func TestStepCharacterWalksAndStaysGrounded(t *testing.T) {
	w, _ := newPhysicsWorld(t)
	hero := addCharacter(t, w, 1.06)
	cfg := characterConfig()

	var hit GroundHit
	for i := 0; i < 60; i++ {
		hit = w.StepCharacter(hero, cfg, mathx.V3(2, 0, 0), 1.0/60.0)
	}
	assert.True(t, hit.IsGrounded)
	pos, _, _ := w.EntityTransform(hero)
	assert.InDelta(t, 2, pos.X, 0.1, "walked roughly speed*time")
	assert.InDelta(t, 1.05, pos.Y, 0.05, "snapped to the surface")
}
