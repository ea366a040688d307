package runtime

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kestrel3d/kestrel/internal/event"
	"github.com/kestrel3d/kestrel/internal/mathx"
	"github.com/kestrel3d/kestrel/internal/render"
	"github.com/kestrel3d/kestrel/internal/scene"
)

const runtimeScene = `{
  "metadata": {"name": "rt", "version": 1},
  "entities": [
    {"persistentId": "ground", "name": "Ground", "components": {
      "Transform": {"position": [0, 0, 0]},
      "RigidBody": {"bodyType": "fixed"},
      "MeshCollider": {"colliderType": "box", "size": {"width": 50, "height": 0.1, "depth": 50}}
    }},
    {"persistentId": "box", "name": "Box", "components": {
      "Transform": {"position": [0, 4.25, 0]},
      "RigidBody": {"bodyType": "dynamic"},
      "MeshCollider": {"colliderType": "box", "size": {"width": 1, "height": 1, "depth": 1}},
      "MeshRenderer": {"meshId": "cube", "enabled": true}
    }}
  ]
}`

func newTestEngine(t *testing.T, scriptRoot string) *Engine {
	t.Helper()
	return New(Options{
		Log:        zap.NewNop(),
		Backend:    render.NullBackend{},
		ScriptRoot: scriptRoot,
	})
}

func writeScript(t *testing.T, dir, name, source string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(source), 0o644))
}

// sceneWithScript appends a scripted entity to the base fixture.
func sceneWithScript(path string) string {
	return `{
  "metadata": {"name": "rt", "version": 1},
  "entities": [
    {"persistentId": "spinner", "name": "Spinner", "components": {
      "Transform": {"position": [0, 1, 0]},
      "Script": {"scriptPath": "` + path + `", "enabled": true}
    }}
  ]
}`
}

func TestEngineBootDefaults(t *testing.T) {
	e := New(Options{})
	require.NotNil(t, e.State)
	require.NotNil(t, e.Manager)
	require.NotNil(t, e.Bus)
	require.NotNil(t, e.Bridge)
	require.NotNil(t, e.Graph)
	require.NotNil(t, e.Physics)
	require.NotNil(t, e.Spatial)
	require.NotNil(t, e.Scripts)
	require.NotNil(t, e.Builder)
	assert.False(t, e.QuitRequested())

	// An empty frame on an empty scene must be safe.
	assert.NotPanics(t, func() { e.Update(1.0 / 60.0) })
}

func TestLoadScenePopulatesSubsystems(t *testing.T) {
	e := newTestEngine(t, "")
	require.NoError(t, e.LoadScene([]byte(runtimeScene)))

	assert.Equal(t, 2, e.Physics.BodyCount())
	assert.Equal(t, 1, e.Spatial.InstanceCount(), "cube renderer indexed")

	box := scene.EntityIDFromPersistent("box")
	pos := e.Graph.WorldPosition(box)
	assert.InDelta(t, 4.25, pos.Y, 1e-9)
}

func TestPhysicsCatchUpIsBounded(t *testing.T) {
	box := scene.EntityIDFromPersistent("box")

	spike := newTestEngine(t, "")
	require.NoError(t, spike.LoadScene([]byte(runtimeScene)))
	spike.Update(1.0) // one huge frame, capped at max_steps fixed steps

	steady := newTestEngine(t, "")
	require.NoError(t, steady.LoadScene([]byte(runtimeScene)))
	for i := 0; i < 60; i++ {
		steady.Update(1.0 / 60.0)
	}

	spikePos, _, ok := spike.Physics.EntityTransform(box)
	require.True(t, ok)
	steadyPos, _, ok := steady.Physics.EntityTransform(box)
	require.True(t, ok)
	assert.Greater(t, spikePos.Y, steadyPos.Y,
		"a frame spike simulates at most max_steps, not the full second")
}

func TestZeroDtFrameIsTrivial(t *testing.T) {
	e := newTestEngine(t, "")
	require.NoError(t, e.LoadScene([]byte(runtimeScene)))

	box := scene.EntityIDFromPersistent("box")
	before, _, _ := e.Physics.EntityTransform(box)
	e.Update(0)
	after, _, _ := e.Physics.EntityTransform(box)
	assert.Equal(t, before, after, "no physics steps on a zero dt frame")
	assert.Equal(t, uint64(1), e.Timer().Frames())
}

func TestContactEventsReachScripts(t *testing.T) {
	e := newTestEngine(t, "")
	require.NoError(t, e.LoadScene([]byte(runtimeScene)))

	var payloads []map[string]interface{}
	e.Bus.On(scene.EventPhysicsCollision, func(env event.Envelope) {
		if m, ok := env.Payload.(map[string]interface{}); ok {
			payloads = append(payloads, m)
		}
	})

	// Contact events emitted during stage 6 are pumped the next frame.
	for i := 0; i < 180 && len(payloads) == 0; i++ {
		e.Update(1.0 / 60.0)
	}
	require.NotEmpty(t, payloads, "falling box must touch the ground")
	other, ok := payloads[0]["other"].(string)
	require.True(t, ok, "entity ids travel as strings")
	assert.NotEmpty(t, other)
}

func TestScriptRotatesEntityThroughGraph(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "spinner.lua", `
local angle = 0
function onUpdate(dt)
  angle = angle + 45 * dt
  entity.set_rotation_euler(0, angle, 0)
end
`)
	e := newTestEngine(t, dir)
	require.NoError(t, e.LoadScene([]byte(sceneWithScript("spinner.lua"))))
	require.Equal(t, 1, e.Scripts.InstanceCount())

	for i := 0; i < 60; i++ {
		e.Update(1.0 / 60.0)
	}

	spinner := scene.EntityIDFromPersistent("spinner")
	_, y, _ := e.Graph.WorldRotation(spinner).ToEulerXYZ()
	assert.InDelta(t, 45, mathx.Degrees(y), 1.0, "45 deg/s for one second")
}

func TestScriptPositionWritesThrough(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "mover.lua", `
function onUpdate(dt)
  entity.set_position(1, 2, 3)
end
`)
	e := newTestEngine(t, dir)
	require.NoError(t, e.LoadScene([]byte(sceneWithScript("mover.lua"))))
	e.Update(1.0 / 60.0)

	pos := e.Graph.WorldPosition(scene.EntityIDFromPersistent("spinner"))
	assert.InDelta(t, 1, pos.X, 1e-9)
	assert.InDelta(t, 2, pos.Y, 1e-9)
	assert.InDelta(t, 3, pos.Z, 1e-9)
}

func TestScriptSpawnAppliesNextCommandFlush(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "spawner.lua", `
function onStart()
  engine.gameobject.create("Minion")
end
`)
	e := newTestEngine(t, dir)
	require.NoError(t, e.LoadScene([]byte(sceneWithScript("spawner.lua"))))

	// onStart ran during load; the create is still buffered.
	found := false
	e.State.WithScene(func(sc *scene.Scene) { found = sc.FindByName("Minion") != nil })
	assert.False(t, found)

	e.Update(1.0 / 60.0)
	e.State.WithScene(func(sc *scene.Scene) { found = sc.FindByName("Minion") != nil })
	assert.True(t, found)
}

func TestDestroyCascade(t *testing.T) {
	e := newTestEngine(t, "")
	require.NoError(t, e.LoadScene([]byte(runtimeScene)))

	box := scene.EntityIDFromPersistent("box")
	e.Bus.OnEntity(box, "game.custom", func(event.Envelope) {})
	subsBefore := e.Bus.SubscriptionCount()

	e.Manager.DestroyEntity(box)
	e.Update(1.0 / 60.0)

	assert.False(t, e.State.HasEntity(box))
	_, _, ok := e.Physics.EntityTransform(box)
	assert.False(t, ok, "physics body removed")
	assert.Equal(t, 0, e.Spatial.InstanceCount(), "spatial instance removed")
	assert.Equal(t, subsBefore-1, e.Bus.SubscriptionCount(), "owned subscriptions cleaned")
}

func TestMeshRendererRemovalDropsInstance(t *testing.T) {
	e := newTestEngine(t, "")
	require.NoError(t, e.LoadScene([]byte(runtimeScene)))
	require.Equal(t, 1, e.Spatial.InstanceCount())

	box := scene.EntityIDFromPersistent("box")
	e.Manager.RemoveComponent(box, scene.ComponentKind("MeshRenderer"))
	e.Update(1.0 / 60.0)
	assert.Equal(t, 0, e.Spatial.InstanceCount())
}

func TestFrameTimerCountsFrames(t *testing.T) {
	e := newTestEngine(t, "")
	for i := 0; i < 5; i++ {
		e.Update(1.0 / 60.0)
	}
	assert.Equal(t, uint64(5), e.Timer().Frames())
}
