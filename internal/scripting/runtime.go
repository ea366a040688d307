// Package scripting runs per-entity Lua behaviors. Every scripted entity
// owns its own gopher-lua VM with onStart, onUpdate(dt) and onDestroy
// callbacks plus the engine host API. Script errors are logged and
// swallowed; they never reach the frame loop.
package scripting

import (
	"encoding/json"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/kestrel3d/kestrel/internal/event"
	"github.com/kestrel3d/kestrel/internal/graph"
	"github.com/kestrel3d/kestrel/internal/input"
	"github.com/kestrel3d/kestrel/internal/scene"
	"github.com/kestrel3d/kestrel/internal/scene/component"
	"github.com/kestrel3d/kestrel/internal/spatial"
)

// Host bundles the engine services scripts can reach. Nil fields disable
// the matching API surface rather than crashing the script.
type Host struct {
	Manager *scene.Manager
	Bus     *event.Bus
	Graph   *graph.Graph
	Spatial *spatial.Manager
	Input   *input.Manager

	// ScriptRoot anchors relative script paths.
	ScriptRoot string
	// Now returns seconds since engine start, for the time API.
	Now func() float64
}

// Runtime owns every live script instance, keyed by entity.
type Runtime struct {
	log  *zap.Logger
	host Host

	instances map[scene.EntityID]*Instance
	order     []scene.EntityID
}

func NewRuntime(log *zap.Logger, host Host) *Runtime {
	if log == nil {
		log = zap.NewNop()
	}
	if host.Now == nil {
		host.Now = func() float64 { return 0 }
	}
	return &Runtime{
		log:       log,
		host:      host,
		instances: make(map[scene.EntityID]*Instance),
	}
}

// Materialize creates the instance for an entity's script component,
// loading the source from disk. No-op when an instance already exists or
// the component is disabled.
func (r *Runtime) Materialize(id scene.EntityID, s *component.Script) error {
	if !s.Enabled {
		return nil
	}
	if _, ok := r.instances[id]; ok {
		return nil
	}
	path := s.GetScriptPath()
	full := path
	if r.host.ScriptRoot != "" && !filepath.IsAbs(path) {
		full = filepath.Join(r.host.ScriptRoot, path)
	}
	src, err := os.ReadFile(full)
	if err != nil {
		r.log.Error("script load failed",
			zap.Uint64("entity", uint64(id)),
			zap.String("script", path),
			zap.Error(err))
		return err
	}
	return r.MaterializeSource(id, path, string(src), s.Parameters)
}

// MaterializeSource creates an instance from in-memory source.
func (r *Runtime) MaterializeSource(id scene.EntityID, path, source string, params json.RawMessage) error {
	if _, ok := r.instances[id]; ok {
		return nil
	}
	inst, err := newInstance(r, id, path, source, params)
	if err != nil {
		r.log.Error("script compile failed",
			zap.Uint64("entity", uint64(id)),
			zap.String("script", path),
			zap.Error(err))
		return err
	}
	r.instances[id] = inst
	r.order = append(r.order, id)
	r.log.Debug("script instance created",
		zap.Uint64("entity", uint64(id)),
		zap.String("script", path))
	return nil
}

// SyncWithScene reconciles instances against the live scene: entities that
// gained an enabled Script component get an instance, entities that lost
// theirs (or were destroyed) are torn down.
func (r *Runtime) SyncWithScene(state *scene.State) {
	seen := make(map[scene.EntityID]bool, len(r.instances))
	state.WithScene(func(sc *scene.Scene) {
		for _, e := range sc.Entities {
			raw, ok := e.Component(scene.ComponentKind(component.KindScript))
			if !ok || !e.IsActive() {
				continue
			}
			var s component.Script
			if err := json.Unmarshal(raw, &s); err != nil || !s.Enabled {
				continue
			}
			id := e.EntityID()
			seen[id] = true
			if _, exists := r.instances[id]; !exists {
				r.Materialize(id, &s)
			}
		}
	})
	for id := range r.instances {
		if !seen[id] {
			r.Remove(id)
		}
	}
}

// Remove tears down an entity's instance, running onDestroy.
func (r *Runtime) Remove(id scene.EntityID) {
	inst, ok := r.instances[id]
	if !ok {
		return
	}
	inst.destroy()
	delete(r.instances, id)
	for i, o := range r.order {
		if o == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Shutdown destroys every instance.
func (r *Runtime) Shutdown() {
	for _, id := range append([]scene.EntityID(nil), r.order...) {
		r.Remove(id)
	}
}

// RunStarts fires onStart for instances that have not started yet. Called
// at the command apply point so entities spawned this frame begin next
// frame in a started state.
func (r *Runtime) RunStarts() {
	for _, id := range r.order {
		r.instances[id].start()
	}
}

// Update calls onUpdate(dt) on every instance in creation order. A zero dt
// is allowed and skipped.
func (r *Runtime) Update(dt float64) {
	if dt == 0 {
		return
	}
	for _, id := range append([]scene.EntityID(nil), r.order...) {
		if inst, ok := r.instances[id]; ok {
			inst.update(dt)
		}
	}
}

// Dispatch routes a pumped event envelope to script handlers. Targeted
// envelopes reach only the target entity's instance.
func (r *Runtime) Dispatch(env event.Envelope) {
	payload := normalizePayload(env.Payload)
	for _, id := range append([]scene.EntityID(nil), r.order...) {
		inst, ok := r.instances[id]
		if !ok {
			continue
		}
		if env.Target != nil && *env.Target != inst.entity {
			continue
		}
		fns := inst.handlers[env.Key]
		if len(fns) == 0 {
			continue
		}
		lv := goToLua(inst.ls, payload)
		for _, fn := range fns {
			inst.callHandler(fn, env.Key, lv)
		}
	}
}

// normalizePayload widens event payloads into the JSON value model the
// converter understands.
func normalizePayload(p any) interface{} {
	switch v := p.(type) {
	case nil:
		return nil
	case json.RawMessage:
		var out interface{}
		if err := json.Unmarshal(v, &out); err != nil {
			return nil
		}
		return out
	case map[string]interface{}, []interface{}, bool, float64, string, int:
		return v
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil
		}
		var out interface{}
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil
		}
		return out
	}
}

// TakeTransformIfDirty pops the entity's staged transform, if any.
func (r *Runtime) TakeTransformIfDirty(id scene.EntityID) (StagedTransform, bool) {
	inst, ok := r.instances[id]
	if !ok {
		return StagedTransform{}, false
	}
	return inst.takeTransformIfDirty()
}

// StagedEntities returns the ids with a dirty staged transform, in
// creation order.
func (r *Runtime) StagedEntities() []scene.EntityID {
	var out []scene.EntityID
	for _, id := range r.order {
		if r.instances[id].stagedDirty {
			out = append(out, id)
		}
	}
	return out
}

// InstanceCount returns the number of live instances.
func (r *Runtime) InstanceCount() int { return len(r.instances) }

// HasInstance reports whether the entity has a live instance.
func (r *Runtime) HasInstance(id scene.EntityID) bool {
	_, ok := r.instances[id]
	return ok
}
