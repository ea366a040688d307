package scripting

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/kestrel3d/kestrel/internal/event"
	"github.com/kestrel3d/kestrel/internal/mathx"
	"github.com/kestrel3d/kestrel/internal/scene"
	"github.com/kestrel3d/kestrel/internal/scene/component"
)

func newTestManager(t *testing.T) *scene.Manager {
	t.Helper()
	reg := component.NewRegistry(zap.NewNop())
	component.RegisterBuiltins(reg)
	state := scene.NewState(&scene.Scene{})
	return scene.NewManager(zap.NewNop(), state, reg)
}

func TestRotatingCube(t *testing.T) {
	rt := NewRuntime(zap.NewNop(), Host{})
	id := scene.EntityID(42)
	src := `
local angle = 0
function onUpdate(dt)
  angle = angle + 90 * dt
  entity.set_rotation_euler(0, angle, 0)
end
`
	require.NoError(t, rt.MaterializeSource(id, "spin.lua", src, nil))

	for i := 0; i < 60; i++ {
		rt.Update(1.0 / 60.0)
	}
	staged, dirty := rt.TakeTransformIfDirty(id)
	require.True(t, dirty)
	require.NotNil(t, staged.Rotation)

	_, y, _ := staged.Rotation.ToEulerXYZ()
	assert.InDelta(t, 90.0, mathx.Degrees(y), 1.0)
}

func luaNumber(t *testing.T, rt *Runtime, id scene.EntityID, global string) float64 {
	t.Helper()
	inst, ok := rt.instances[id]
	require.True(t, ok)
	return float64(lua.LVAsNumber(inst.ls.GetGlobal(global)))
}

func TestOnStartRunsOnceBeforeUpdate(t *testing.T) {
	rt := NewRuntime(zap.NewNop(), Host{})
	id := scene.EntityID(1)
	src := `
starts = 0
updates = 0
started_before_update = true
function onStart() starts = starts + 1 end
function onUpdate(dt)
  if starts == 0 then started_before_update = false end
  updates = updates + 1
end
`
	require.NoError(t, rt.MaterializeSource(id, "order.lua", src, nil))
	rt.RunStarts()
	rt.RunStarts() // idempotent
	rt.Update(0.016)
	rt.Update(0.016)

	assert.Equal(t, 1.0, luaNumber(t, rt, id, "starts"))
	assert.Equal(t, 2.0, luaNumber(t, rt, id, "updates"))
	assert.Equal(t, lua.LTrue, rt.instances[id].ls.GetGlobal("started_before_update"))
}

func TestOnStartLazyWhenNeverExplicitlyStarted(t *testing.T) {
	rt := NewRuntime(zap.NewNop(), Host{})
	id := scene.EntityID(4)
	src := `
starts = 0
function onStart() starts = starts + 1 end
function onUpdate(dt) end
`
	require.NoError(t, rt.MaterializeSource(id, "lazy.lua", src, nil))
	rt.Update(0.016)
	assert.Equal(t, 1.0, luaNumber(t, rt, id, "starts"))
}

func TestScriptErrorIsSwallowed(t *testing.T) {
	rt := NewRuntime(zap.NewNop(), Host{})
	id := scene.EntityID(2)
	src := `
ticks = 0
function onUpdate(dt)
  ticks = ticks + 1
  error("boom")
end
`
	require.NoError(t, rt.MaterializeSource(id, "boom.lua", src, nil))
	assert.NotPanics(t, func() {
		rt.Update(0.016)
		rt.Update(0.016)
	})
	assert.Equal(t, 1, rt.InstanceCount(), "erroring script stays loaded")
	assert.Equal(t, 2.0, luaNumber(t, rt, id, "ticks"))
}

func TestCompileErrorRejectsInstance(t *testing.T) {
	rt := NewRuntime(zap.NewNop(), Host{})
	err := rt.MaterializeSource(scene.EntityID(3), "bad.lua", "function oops(", nil)
	assert.Error(t, err)
	assert.Equal(t, 0, rt.InstanceCount())
}

func TestEventHandlersTargetedDispatch(t *testing.T) {
	bus := event.NewBus(zap.NewNop())
	rt := NewRuntime(zap.NewNop(), Host{Bus: bus})
	hero := scene.EntityID(10)
	other := scene.EntityID(11)
	src := `
hits = 0
function onStart()
  engine.events.on("game:score_changed", function(payload)
    hits = hits + payload.amount
  end)
end
`
	require.NoError(t, rt.MaterializeSource(hero, "a.lua", src, nil))
	require.NoError(t, rt.MaterializeSource(other, "b.lua", src, nil))
	rt.RunStarts()

	bus.Emit("game:score_changed", map[string]interface{}{"amount": 5.0})
	bus.EmitTo(hero, "game:score_changed", map[string]interface{}{"amount": 7.0})
	bus.Pump(rt.Dispatch)

	assert.Equal(t, 12.0, luaNumber(t, rt, hero, "hits"), "global + targeted")
	assert.Equal(t, 5.0, luaNumber(t, rt, other, "hits"), "global only")
}

func TestEmitFromScriptReachesBus(t *testing.T) {
	bus := event.NewBus(zap.NewNop())
	rt := NewRuntime(zap.NewNop(), Host{Bus: bus})
	src := `
function onStart()
  engine.events.emit("ui:show", {panel = "hud"})
end
`
	require.NoError(t, rt.MaterializeSource(scene.EntityID(1), "emit.lua", src, nil))
	rt.RunStarts()
	assert.Equal(t, 1, bus.PendingCount())
}

func TestGameObjectCreateDefersToCommandBuffer(t *testing.T) {
	mgr := newTestManager(t)
	rt := NewRuntime(zap.NewNop(), Host{Manager: mgr})
	src := `
spawned = nil
function onStart()
  spawned = engine.gameobject.create("runtime-cube")
end
`
	require.NoError(t, rt.MaterializeSource(scene.EntityID(1), "spawn.lua", src, nil))
	rt.RunStarts()

	assert.Equal(t, 0, mgr.State().EntityCount(), "not visible before apply point")
	mgr.ApplyCommands()
	assert.Equal(t, 1, mgr.State().EntityCount())
	mgr.State().WithScene(func(sc *scene.Scene) {
		assert.NotNil(t, sc.FindByName("runtime-cube"))
	})
}

func TestParamsGlobal(t *testing.T) {
	rt := NewRuntime(zap.NewNop(), Host{})
	src := `
speed = params.speed
label = params.label
`
	params := json.RawMessage(`{"speed": 4.5, "label": "fast"}`)
	require.NoError(t, rt.MaterializeSource(scene.EntityID(1), "p.lua", src, params))
	inst := rt.instances[scene.EntityID(1)]
	assert.InDelta(t, 4.5, luaNumber(t, rt, scene.EntityID(1), "speed"), 1e-9)
	assert.Equal(t, lua.LString("fast"), inst.ls.GetGlobal("label"))
}

func TestRemoveRunsOnDestroy(t *testing.T) {
	bus := event.NewBus(zap.NewNop())
	rt := NewRuntime(zap.NewNop(), Host{Bus: bus})
	src := `
function onDestroy()
  engine.events.emit("entity:destroyed", {})
end
`
	id := scene.EntityID(9)
	require.NoError(t, rt.MaterializeSource(id, "d.lua", src, nil))
	rt.Remove(id)
	assert.Equal(t, 0, rt.InstanceCount())
	assert.Equal(t, 1, bus.PendingCount())
	rt.Remove(id) // idempotent
}

func TestZeroDtSkipsUpdate(t *testing.T) {
	rt := NewRuntime(zap.NewNop(), Host{})
	src := `
ticks = 0
function onUpdate(dt) ticks = ticks + 1 end
`
	id := scene.EntityID(5)
	require.NoError(t, rt.MaterializeSource(id, "z.lua", src, nil))
	rt.Update(0)
	rt.Update(0.016)
	assert.Equal(t, 1.0, luaNumber(t, rt, id, "ticks"))
}

func TestTakeTransformClearsDirty(t *testing.T) {
	rt := NewRuntime(zap.NewNop(), Host{})
	src := `
function onUpdate(dt)
  entity.set_position(1, 2, 3)
end
`
	id := scene.EntityID(6)
	require.NoError(t, rt.MaterializeSource(id, "t.lua", src, nil))
	rt.Update(0.016)

	staged, dirty := rt.TakeTransformIfDirty(id)
	require.True(t, dirty)
	require.NotNil(t, staged.Position)
	assert.Equal(t, mathx.Vec3{X: 1, Y: 2, Z: 3}, *staged.Position)
	assert.Nil(t, staged.Scale)

	_, dirty = rt.TakeTransformIfDirty(id)
	assert.False(t, dirty, "second take in the same frame sees nothing")
}

func TestSyncWithSceneMaterializesAndRemoves(t *testing.T) {
	mgr := newTestManager(t)
	rt := NewRuntime(zap.NewNop(), Host{Manager: mgr})

	id := mgr.NewEntity("scripted").
		WithComponent(scene.ComponentKind(component.KindScript),
			json.RawMessage(`{"scriptPath":"missing.lua","enabled":true}`)).
		Spawn()
	mgr.ApplyCommands()

	// Load fails (no file on disk) but must not panic; no instance remains.
	rt.SyncWithScene(mgr.State())
	assert.False(t, rt.HasInstance(id))

	// Pre-materialized instance for an entity that then disappears.
	ghost := scene.EntityID(777)
	require.NoError(t, rt.MaterializeSource(ghost, "g.lua", "function onUpdate(dt) end", nil))
	rt.SyncWithScene(mgr.State())
	assert.False(t, rt.HasInstance(ghost))
}
