package graph

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kestrel3d/kestrel/internal/mathx"
	"github.com/kestrel3d/kestrel/internal/scene"
	"github.com/kestrel3d/kestrel/internal/scene/component"
)

func buildScene(t *testing.T) *scene.State {
	t.Helper()
	s, err := scene.ParseScene([]byte(`{
		"metadata": {"name": "g", "version": 1},
		"entities": [
			{"persistentId": "root", "name": "Root", "components": {
				"Transform": {"position": [10, 0, 0]}
			}},
			{"persistentId": "mid", "name": "Mid", "parentPersistentId": "root", "components": {
				"Transform": {"position": [0, 5, 0], "rotation": [0, 90, 0]}
			}},
			{"persistentId": "leaf", "name": "Leaf", "parentPersistentId": "mid", "components": {
				"Transform": {"position": [0, 0, 1]}
			}},
			{"persistentId": "bare", "name": "NoTransform", "parentPersistentId": "root", "components": {}}
		]
	}`))
	require.NoError(t, err)
	return scene.NewState(s)
}

func TestWorldComposesParentChain(t *testing.T) {
	g := New(zap.NewNop(), buildScene(t))

	// leaf local +Z rotated 90 about Y by mid becomes +X, then offsets apply.
	p := g.WorldPosition(scene.EntityIDFromPersistent("leaf"))
	assert.InDelta(t, 11, p.X, 1e-9)
	assert.InDelta(t, 5, p.Y, 1e-9)
	assert.InDelta(t, 0, p.Z, 1e-9)
}

func TestMissingTransformIsIdentity(t *testing.T) {
	g := New(zap.NewNop(), buildScene(t))
	p := g.WorldPosition(scene.EntityIDFromPersistent("bare"))
	assert.Equal(t, mathx.V3(10, 0, 0), p, "identity local means parent world")

	unknown := g.WorldMatrix(scene.EntityID(123456))
	assert.Equal(t, mathx.Mat4Identity(), unknown)
}

func TestDirtyPropagationRecomputesSubtree(t *testing.T) {
	st := buildScene(t)
	g := New(zap.NewNop(), st)

	leaf := scene.EntityIDFromPersistent("leaf")
	root := scene.EntityIDFromPersistent("root")
	before := g.WorldPosition(leaf)

	st.WithSceneMut(func(s *scene.Scene) {
		e := s.FindByPersistentID("root")
		e.SetComponent("Transform", json.RawMessage(`{"position":[20,0,0]}`))
	})
	g.ComponentSet(root, "Transform", nil)

	after := g.WorldPosition(leaf)
	assert.InDelta(t, before.X+10, after.X, 1e-9)
}

func TestCacheWithoutDirtyIsStable(t *testing.T) {
	st := buildScene(t)
	g := New(zap.NewNop(), st)
	leaf := scene.EntityIDFromPersistent("leaf")
	first := g.WorldMatrix(leaf)

	// A scene edit without MarkDirty must not be observed: memoized.
	st.WithSceneMut(func(s *scene.Scene) {
		s.FindByPersistentID("leaf").SetComponent("Transform", json.RawMessage(`{"position":[9,9,9]}`))
	})
	assert.Equal(t, first, g.WorldMatrix(leaf))
}

func TestDestroyOrphansChildrenToRootSpace(t *testing.T) {
	st := buildScene(t)
	g := New(zap.NewNop(), st)
	mid := scene.EntityIDFromPersistent("mid")
	leaf := scene.EntityIDFromPersistent("leaf")
	g.WorldMatrix(leaf)

	g.EntityDestroyed(mid)
	p := g.WorldPosition(leaf)
	assert.Equal(t, mathx.V3(0, 0, 1), p, "orphan uses its local as world")
}

func TestReparentKeepsSubtree(t *testing.T) {
	st := buildScene(t)
	g := New(zap.NewNop(), st)
	mid := scene.EntityIDFromPersistent("mid")
	leaf := scene.EntityIDFromPersistent("leaf")
	g.WorldMatrix(leaf)

	// Detach mid from root: its subtree follows.
	st.WithSceneMut(func(s *scene.Scene) {
		s.FindByPersistentID("mid").ParentPersistentID = ""
	})
	g.Reparent(mid, 0)

	p := g.WorldPosition(leaf)
	assert.InDelta(t, 1, p.X, 1e-9)
	assert.InDelta(t, 5, p.Y, 1e-9)
}

func TestManagerReparentUpdatesWorldSpace(t *testing.T) {
	st := buildScene(t)
	g := New(zap.NewNop(), st)
	reg := component.NewRegistry(zap.NewNop())
	component.RegisterBuiltins(reg)
	m := scene.NewManager(zap.NewNop(), st, reg)
	m.AddObserver(g)

	leaf := scene.EntityIDFromPersistent("leaf")
	root := scene.EntityIDFromPersistent("root")
	g.WorldMatrix(leaf) // warm the cache

	// Moving leaf from mid to root must change which space it composes in.
	m.SetParent(leaf, root)
	require.Equal(t, 1, m.ApplyCommands())

	p := g.WorldPosition(leaf)
	assert.InDelta(t, 10, p.X, 1e-9)
	assert.InDelta(t, 0, p.Y, 1e-9)
	assert.InDelta(t, 1, p.Z, 1e-9)
}

func TestWorldRotationComposes(t *testing.T) {
	g := New(zap.NewNop(), buildScene(t))
	q := g.WorldRotation(scene.EntityIDFromPersistent("leaf"))
	want := mathx.QuatFromAxisAngle(mathx.UnitY, mathx.Radians(90))
	assert.True(t, q.ApproxEqual(want, 1e-6))
}
