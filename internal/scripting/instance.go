package scripting

import (
	"encoding/json"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/kestrel3d/kestrel/internal/mathx"
	"github.com/kestrel3d/kestrel/internal/scene"
)

// StagedTransform is a script's intended transform for the frame. Fields
// stay nil when the script never touched them.
type StagedTransform struct {
	Position *mathx.Vec3
	Rotation *mathx.Quat
	Scale    *mathx.Vec3
}

// Instance is one entity's sandboxed script: its own VM, its own globals.
// Single-goroutine access only (frame loop).
type Instance struct {
	entity scene.EntityID
	path   string
	ls     *lua.LState
	log    *zap.Logger

	started  bool
	handlers map[string][]*lua.LFunction

	staged      StagedTransform
	stagedDirty bool
}

func newInstance(rt *Runtime, id scene.EntityID, path, source string, params json.RawMessage) (*Instance, error) {
	ls := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})
	ls.SetGlobal("API_VERSION", lua.LNumber(1))

	inst := &Instance{
		entity:   id,
		path:     path,
		ls:       ls,
		log:      rt.log,
		handlers: make(map[string][]*lua.LFunction),
	}
	registerAPI(inst, rt)
	ls.SetGlobal("params", jsonToLua(ls, params))

	if err := ls.DoString(source); err != nil {
		ls.Close()
		return nil, err
	}
	return inst, nil
}

// call invokes a global callback under a protected call. Errors are logged
// with the entity id and script path and never propagate.
func (i *Instance) call(name string, args ...lua.LValue) {
	fn := i.ls.GetGlobal(name)
	if fn == lua.LNil {
		return
	}
	if err := i.ls.CallByParam(lua.P{
		Fn:      fn,
		NRet:    0,
		Protect: true,
	}, args...); err != nil {
		i.log.Error("script callback error",
			zap.String("callback", name),
			zap.Uint64("entity", uint64(i.entity)),
			zap.String("script", i.path),
			zap.Error(err))
	}
}

// callHandler invokes a registered event handler, protected.
func (i *Instance) callHandler(fn *lua.LFunction, key string, payload lua.LValue) {
	if err := i.ls.CallByParam(lua.P{
		Fn:      fn,
		NRet:    0,
		Protect: true,
	}, payload); err != nil {
		i.log.Error("script event handler error",
			zap.String("event", key),
			zap.Uint64("entity", uint64(i.entity)),
			zap.String("script", i.path),
			zap.Error(err))
	}
}

func (i *Instance) start() {
	if i.started {
		return
	}
	i.started = true
	i.call("onStart")
}

func (i *Instance) update(dt float64) {
	if !i.started {
		i.start()
	}
	i.call("onUpdate", lua.LNumber(dt))
}

func (i *Instance) destroy() {
	i.call("onDestroy")
	i.ls.Close()
}

func (i *Instance) stagePosition(v mathx.Vec3) {
	i.staged.Position = &v
	i.stagedDirty = true
}

func (i *Instance) stageRotation(q mathx.Quat) {
	i.staged.Rotation = &q
	i.stagedDirty = true
}

func (i *Instance) stageScale(v mathx.Vec3) {
	i.staged.Scale = &v
	i.stagedDirty = true
}

// takeTransformIfDirty hands the staged slot to the transform sync step at
// most once per frame.
func (i *Instance) takeTransformIfDirty() (StagedTransform, bool) {
	if !i.stagedDirty {
		return StagedTransform{}, false
	}
	out := i.staged
	i.staged = StagedTransform{}
	i.stagedDirty = false
	return out, true
}
