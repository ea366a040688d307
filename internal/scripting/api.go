package scripting

import (
	"strconv"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/kestrel3d/kestrel/internal/mathx"
	"github.com/kestrel3d/kestrel/internal/scene"
)

// Entity ids cross the Lua boundary as strings: they are full-range uint64
// hashes and would lose precision as Lua numbers.
func entityIDToLua(id scene.EntityID) lua.LValue {
	return lua.LString(strconv.FormatUint(uint64(id), 10))
}

func entityIDFromLua(v lua.LValue) (scene.EntityID, bool) {
	s, ok := v.(lua.LString)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseUint(string(s), 10, 64)
	if err != nil {
		return 0, false
	}
	return scene.EntityID(n), true
}

func vec3Table(ls *lua.LState, v mathx.Vec3) *lua.LTable {
	t := ls.NewTable()
	t.RawSetString("x", lua.LNumber(v.X))
	t.RawSetString("y", lua.LNumber(v.Y))
	t.RawSetString("z", lua.LNumber(v.Z))
	return t
}

// registerAPI installs the engine host surface and the self-entity table
// into the instance's VM.
func registerAPI(inst *Instance, rt *Runtime) {
	ls := inst.ls
	engine := ls.NewTable()

	engine.RawSetString("math", mathAPI(ls))
	engine.RawSetString("input", inputAPI(ls, rt))
	engine.RawSetString("query", queryAPI(ls, rt))
	engine.RawSetString("audio", audioAPI(ls, inst, rt))
	engine.RawSetString("gameobject", gameObjectAPI(ls, rt))
	engine.RawSetString("console", consoleAPI(ls, inst, rt))
	engine.RawSetString("time", timeAPI(ls, rt))
	engine.RawSetString("events", eventsAPI(ls, inst, rt))

	ls.SetGlobal("engine", engine)
	ls.SetGlobal("entity", entityAPI(ls, inst, rt))
}

func mathAPI(ls *lua.LState) *lua.LTable {
	t := ls.NewTable()
	t.RawSetString("clamp", ls.NewFunction(func(l *lua.LState) int {
		v := float64(l.CheckNumber(1))
		lo := float64(l.CheckNumber(2))
		hi := float64(l.CheckNumber(3))
		l.Push(lua.LNumber(mathx.Clamp(v, lo, hi)))
		return 1
	}))
	t.RawSetString("lerp", ls.NewFunction(func(l *lua.LState) int {
		a := float64(l.CheckNumber(1))
		b := float64(l.CheckNumber(2))
		f := float64(l.CheckNumber(3))
		l.Push(lua.LNumber(a + (b-a)*f))
		return 1
	}))
	t.RawSetString("radians", ls.NewFunction(func(l *lua.LState) int {
		l.Push(lua.LNumber(mathx.Radians(float64(l.CheckNumber(1)))))
		return 1
	}))
	t.RawSetString("degrees", ls.NewFunction(func(l *lua.LState) int {
		l.Push(lua.LNumber(mathx.Degrees(float64(l.CheckNumber(1)))))
		return 1
	}))
	return t
}

func inputAPI(ls *lua.LState, rt *Runtime) *lua.LTable {
	t := ls.NewTable()
	t.RawSetString("is_key_down", ls.NewFunction(func(l *lua.LState) int {
		key := l.CheckString(1)
		down := rt.host.Input != nil && rt.host.Input.IsKeyDown(key)
		l.Push(lua.LBool(down))
		return 1
	}))
	t.RawSetString("was_key_pressed", ls.NewFunction(func(l *lua.LState) int {
		key := l.CheckString(1)
		pressed := rt.host.Input != nil && rt.host.Input.WasKeyPressed(key)
		l.Push(lua.LBool(pressed))
		return 1
	}))
	t.RawSetString("mouse_position", ls.NewFunction(func(l *lua.LState) int {
		var x, y float64
		if rt.host.Input != nil {
			x, y = rt.host.Input.MousePosition()
		}
		l.Push(lua.LNumber(x))
		l.Push(lua.LNumber(y))
		return 2
	}))
	t.RawSetString("mouse_delta", ls.NewFunction(func(l *lua.LState) int {
		var dx, dy float64
		if rt.host.Input != nil {
			dx, dy = rt.host.Input.MouseDelta()
		}
		l.Push(lua.LNumber(dx))
		l.Push(lua.LNumber(dy))
		return 2
	}))
	t.RawSetString("is_mouse_button_down", ls.NewFunction(func(l *lua.LState) int {
		b := int(l.CheckNumber(1))
		down := rt.host.Input != nil && rt.host.Input.IsMouseButtonDown(b)
		l.Push(lua.LBool(down))
		return 1
	}))
	return t
}

func queryAPI(ls *lua.LState, rt *Runtime) *lua.LTable {
	t := ls.NewTable()
	t.RawSetString("find_by_name", ls.NewFunction(func(l *lua.LState) int {
		name := l.CheckString(1)
		if rt.host.Manager == nil {
			l.Push(lua.LNil)
			return 1
		}
		var found lua.LValue = lua.LNil
		rt.host.Manager.State().WithScene(func(sc *scene.Scene) {
			if e := sc.FindByName(name); e != nil {
				found = entityIDToLua(e.EntityID())
			}
		})
		l.Push(found)
		return 1
	}))
	t.RawSetString("find_by_tag", ls.NewFunction(func(l *lua.LState) int {
		tag := l.CheckString(1)
		out := l.NewTable()
		if rt.host.Manager != nil {
			rt.host.Manager.State().WithScene(func(sc *scene.Scene) {
				for i, e := range sc.FindByTag(tag) {
					out.RawSetInt(i+1, entityIDToLua(e.EntityID()))
				}
			})
		}
		l.Push(out)
		return 1
	}))
	t.RawSetString("raycast_first", ls.NewFunction(func(l *lua.LState) int {
		if rt.host.Spatial == nil {
			l.Push(lua.LNil)
			return 1
		}
		origin := mathx.Vec3{
			X: float64(l.CheckNumber(1)),
			Y: float64(l.CheckNumber(2)),
			Z: float64(l.CheckNumber(3)),
		}
		dir := mathx.Vec3{
			X: float64(l.CheckNumber(4)),
			Y: float64(l.CheckNumber(5)),
			Z: float64(l.CheckNumber(6)),
		}
		tmax := float64(l.OptNumber(7, 1000))
		hit := rt.host.Spatial.RaycastFirst(origin, dir, tmax)
		if hit == nil {
			l.Push(lua.LNil)
			return 1
		}
		res := l.NewTable()
		res.RawSetString("entity", entityIDToLua(hit.Entity))
		res.RawSetString("distance", lua.LNumber(hit.Distance))
		res.RawSetString("point", vec3Table(l, hit.Point))
		res.RawSetString("triangle", lua.LNumber(hit.TriangleIndex))
		l.Push(res)
		return 1
	}))
	return t
}

func audioAPI(ls *lua.LState, inst *Instance, rt *Runtime) *lua.LTable {
	t := ls.NewTable()
	t.RawSetString("play", ls.NewFunction(func(l *lua.LState) int {
		path := l.CheckString(1)
		if rt.host.Bus != nil {
			rt.host.Bus.EmitTo(inst.entity, scene.EventAudioPlay,
				map[string]interface{}{"path": path})
		}
		return 0
	}))
	t.RawSetString("stop", ls.NewFunction(func(l *lua.LState) int {
		if rt.host.Bus != nil {
			rt.host.Bus.EmitTo(inst.entity, scene.EventAudioStop, nil)
		}
		return 0
	}))
	return t
}

func gameObjectAPI(ls *lua.LState, rt *Runtime) *lua.LTable {
	t := ls.NewTable()
	t.RawSetString("create", ls.NewFunction(func(l *lua.LState) int {
		name := l.CheckString(1)
		if rt.host.Manager == nil {
			l.Push(lua.LNil)
			return 1
		}
		id := rt.host.Manager.NewEntity(name).Spawn()
		l.Push(entityIDToLua(id))
		return 1
	}))
	t.RawSetString("destroy", ls.NewFunction(func(l *lua.LState) int {
		id, ok := entityIDFromLua(l.Get(1))
		if ok && rt.host.Manager != nil {
			rt.host.Manager.DestroyEntity(id)
		}
		return 0
	}))
	return t
}

func consoleAPI(ls *lua.LState, inst *Instance, rt *Runtime) *lua.LTable {
	fields := func(msg string) []zap.Field {
		return []zap.Field{
			zap.Uint64("entity", uint64(inst.entity)),
			zap.String("script", inst.path),
			zap.String("msg", msg),
		}
	}
	t := ls.NewTable()
	t.RawSetString("log", ls.NewFunction(func(l *lua.LState) int {
		rt.log.Info("script", fields(l.CheckString(1))...)
		return 0
	}))
	t.RawSetString("warn", ls.NewFunction(func(l *lua.LState) int {
		rt.log.Warn("script", fields(l.CheckString(1))...)
		return 0
	}))
	t.RawSetString("error", ls.NewFunction(func(l *lua.LState) int {
		rt.log.Error("script", fields(l.CheckString(1))...)
		return 0
	}))
	return t
}

func timeAPI(ls *lua.LState, rt *Runtime) *lua.LTable {
	t := ls.NewTable()
	t.RawSetString("now", ls.NewFunction(func(l *lua.LState) int {
		l.Push(lua.LNumber(rt.host.Now()))
		return 1
	}))
	return t
}

func eventsAPI(ls *lua.LState, inst *Instance, rt *Runtime) *lua.LTable {
	t := ls.NewTable()
	t.RawSetString("on", ls.NewFunction(func(l *lua.LState) int {
		key := l.CheckString(1)
		fn := l.CheckFunction(2)
		inst.handlers[key] = append(inst.handlers[key], fn)
		return 0
	}))
	t.RawSetString("emit", ls.NewFunction(func(l *lua.LState) int {
		key := l.CheckString(1)
		var payload interface{}
		if tbl, ok := l.Get(2).(*lua.LTable); ok {
			payload = luaToGo(tbl)
		}
		if rt.host.Bus != nil {
			rt.host.Bus.Emit(key, payload)
		}
		return 0
	}))
	t.RawSetString("emit_to", ls.NewFunction(func(l *lua.LState) int {
		id, ok := entityIDFromLua(l.Get(1))
		key := l.CheckString(2)
		var payload interface{}
		if tbl, isTbl := l.Get(3).(*lua.LTable); isTbl {
			payload = luaToGo(tbl)
		}
		if ok && rt.host.Bus != nil {
			rt.host.Bus.EmitTo(id, key, payload)
		}
		return 0
	}))
	return t
}

// entityAPI is the self-entity accessor table. Reads come from the scene
// graph (previous frame's values); writes stage deferred mutations.
func entityAPI(ls *lua.LState, inst *Instance, rt *Runtime) *lua.LTable {
	t := ls.NewTable()
	t.RawSetString("id", entityIDToLua(inst.entity))

	t.RawSetString("name", ls.NewFunction(func(l *lua.LState) int {
		name := ""
		if rt.host.Manager != nil {
			rt.host.Manager.State().WithScene(func(sc *scene.Scene) {
				if e := sc.FindByEntityID(inst.entity); e != nil {
					name = e.Name
				}
			})
		}
		l.Push(lua.LString(name))
		return 1
	}))

	t.RawSetString("position", ls.NewFunction(func(l *lua.LState) int {
		var p mathx.Vec3
		if rt.host.Graph != nil {
			p = rt.host.Graph.WorldPosition(inst.entity)
		}
		l.Push(lua.LNumber(p.X))
		l.Push(lua.LNumber(p.Y))
		l.Push(lua.LNumber(p.Z))
		return 3
	}))

	t.RawSetString("rotation", ls.NewFunction(func(l *lua.LState) int {
		q := mathx.QuatIdentity()
		if rt.host.Graph != nil {
			q = rt.host.Graph.WorldRotation(inst.entity)
		}
		l.Push(lua.LNumber(q.X))
		l.Push(lua.LNumber(q.Y))
		l.Push(lua.LNumber(q.Z))
		l.Push(lua.LNumber(q.W))
		return 4
	}))

	t.RawSetString("set_position", ls.NewFunction(func(l *lua.LState) int {
		inst.stagePosition(mathx.Vec3{
			X: float64(l.CheckNumber(1)),
			Y: float64(l.CheckNumber(2)),
			Z: float64(l.CheckNumber(3)),
		})
		return 0
	}))

	t.RawSetString("set_rotation", ls.NewFunction(func(l *lua.LState) int {
		inst.stageRotation(mathx.Quat{
			X: float64(l.CheckNumber(1)),
			Y: float64(l.CheckNumber(2)),
			Z: float64(l.CheckNumber(3)),
			W: float64(l.CheckNumber(4)),
		}.Normalized())
		return 0
	}))

	// Euler angles in degrees, matching the authoring convention.
	t.RawSetString("set_rotation_euler", ls.NewFunction(func(l *lua.LState) int {
		inst.stageRotation(mathx.QuatFromEulerXYZ(
			mathx.Radians(float64(l.CheckNumber(1))),
			mathx.Radians(float64(l.CheckNumber(2))),
			mathx.Radians(float64(l.CheckNumber(3))),
		))
		return 0
	}))

	t.RawSetString("set_scale", ls.NewFunction(func(l *lua.LState) int {
		inst.stageScale(mathx.Vec3{
			X: float64(l.CheckNumber(1)),
			Y: float64(l.CheckNumber(2)),
			Z: float64(l.CheckNumber(3)),
		})
		return 0
	}))

	t.RawSetString("set_component", ls.NewFunction(func(l *lua.LState) int {
		kind := l.CheckString(1)
		tbl := l.CheckTable(2)
		raw, err := luaTableToJSON(tbl)
		if err != nil || rt.host.Manager == nil {
			return 0
		}
		rt.host.Manager.SetComponent(inst.entity, scene.ComponentKind(kind), raw)
		return 0
	}))

	t.RawSetString("remove_component", ls.NewFunction(func(l *lua.LState) int {
		kind := l.CheckString(1)
		if rt.host.Manager != nil {
			rt.host.Manager.RemoveComponent(inst.entity, scene.ComponentKind(kind))
		}
		return 0
	}))

	t.RawSetString("set_active", ls.NewFunction(func(l *lua.LState) int {
		active := l.CheckBool(1)
		if rt.host.Manager != nil {
			rt.host.Manager.SetActive(inst.entity, active)
		}
		return 0
	}))

	return t
}
