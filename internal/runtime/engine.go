// Package runtime is the frame scheduler: it owns every subsystem and runs
// the fixed stage order each frame, from bridge ingest through render
// dispatch.
package runtime

import (
	"encoding/json"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/kestrel3d/kestrel/internal/assets"
	"github.com/kestrel3d/kestrel/internal/bridge"
	"github.com/kestrel3d/kestrel/internal/config"
	"github.com/kestrel3d/kestrel/internal/event"
	"github.com/kestrel3d/kestrel/internal/graph"
	"github.com/kestrel3d/kestrel/internal/input"
	"github.com/kestrel3d/kestrel/internal/mathx"
	"github.com/kestrel3d/kestrel/internal/physics"
	"github.com/kestrel3d/kestrel/internal/render"
	"github.com/kestrel3d/kestrel/internal/scene"
	"github.com/kestrel3d/kestrel/internal/scene/component"
	"github.com/kestrel3d/kestrel/internal/scripting"
	"github.com/kestrel3d/kestrel/internal/spatial"
)

// Options configures the engine at boot.
type Options struct {
	Log        *zap.Logger
	Config     *config.Config
	Backend    render.Backend
	ScriptRoot string
	FBWidth    int
	FBHeight   int
}

// Engine wires the subsystems and drives the per-frame stage order.
type Engine struct {
	log *zap.Logger
	cfg *config.Config

	State    *scene.State
	Registry *component.Registry
	Manager  *scene.Manager
	Bus      *event.Bus
	Bridge   *bridge.Bridge
	Graph    *graph.Graph
	Physics  *physics.World
	Spatial  *spatial.Manager
	Scripts  *scripting.Runtime
	Input    *input.Manager
	Builder  *render.Builder
	Meshes   *assets.MeshCache

	backend     render.Backend
	timer       *FrameTimer
	accumulator float64
	fbW, fbH    int
	started     time.Time
}

func New(opts Options) *Engine {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Defaults()
	}
	backend := opts.Backend
	if backend == nil {
		backend = render.NullBackend{}
	}
	if opts.FBWidth == 0 {
		opts.FBWidth = cfg.Render.Width
	}
	if opts.FBHeight == 0 {
		opts.FBHeight = cfg.Render.Height
	}

	reg := component.NewRegistry(log)
	component.RegisterBuiltins(reg)

	state := scene.NewState(&scene.Scene{})
	mgr := scene.NewManager(log, state, reg)
	bus := event.NewBus(log)
	mgr.SetEventSink(bus)

	g := graph.New(log, state)
	mgr.AddObserver(g)

	phys := physics.NewWorld(log)
	phys.SetGravity(mathx.Vec3{Y: cfg.Physics.GravityY})

	sp := spatial.NewManager(log, spatial.Config{
		MaxLeafTriangles:         cfg.BVH.MaxLeafTriangles,
		MaxLeafRefs:              cfg.BVH.MaxLeafRefs,
		EnableIncrementalUpdates: cfg.BVH.IncrementalUpdates,
		RebuildInterval:          cfg.BVH.RebuildInterval,
	})

	e := &Engine{
		log:      log,
		cfg:      cfg,
		State:    state,
		Registry: reg,
		Manager:  mgr,
		Bus:      bus,
		Graph:    g,
		Physics:  phys,
		Spatial:  sp,
		Input:    input.NewManager(),
		Meshes:   assets.NewMeshCache(log),
		backend:  backend,
		timer:    NewFrameTimer(),
		fbW:      opts.FBWidth,
		fbH:      opts.FBHeight,
		started:  time.Now(),
	}

	e.Scripts = scripting.NewRuntime(log, scripting.Host{
		Manager:    mgr,
		Bus:        bus,
		Graph:      g,
		Spatial:    sp,
		Input:      e.Input,
		ScriptRoot: opts.ScriptRoot,
		Now:        func() float64 { return time.Since(e.started).Seconds() },
	})

	e.Builder = render.NewBuilder(log, state, reg, g, sp)

	e.Bridge = bridge.New(log, state, bus)
	e.Bridge.OnSceneLoaded(func(sc *scene.Scene) { e.onSceneLoaded(sc) })
	e.Bridge.AddObserver(g)
	e.Bridge.AddObserver(&cascade{e})
	mgr.AddObserver(&cascade{e})

	return e
}

// cascade propagates entity lifecycle into physics, spatial, events and
// scripts. The scene graph subscribes separately.
type cascade struct{ e *Engine }

func (c *cascade) EntityCreated(id scene.EntityID, ent *scene.Entity) {
	c.e.Physics.AddEntity(ent, c.e.Registry)
	c.e.registerInstance(id, ent)
}

func (c *cascade) EntityDestroyed(id scene.EntityID) {
	c.e.Physics.RemoveEntity(id)
	c.e.Spatial.RemoveEntity(id)
	c.e.Bus.CleanupEntity(id)
	c.e.Scripts.Remove(id)
}

func (c *cascade) ComponentSet(id scene.EntityID, kind scene.ComponentKind, _ json.RawMessage) {
	if kind != scene.ComponentKind(component.KindMeshRenderer) {
		return
	}
	c.e.State.WithScene(func(sc *scene.Scene) {
		if ent := sc.FindByEntityID(id); ent != nil {
			c.e.registerInstance(id, ent)
		}
	})
}

func (c *cascade) ComponentRemoved(id scene.EntityID, kind scene.ComponentKind) {
	if kind == scene.ComponentKind(component.KindMeshRenderer) {
		c.e.Spatial.RemoveEntity(id)
	}
}

// registerInstance puts a renderable entity into the spatial index,
// generating primitive meshes on demand.
func (e *Engine) registerInstance(id scene.EntityID, ent *scene.Entity) {
	raw, ok := ent.Component(scene.ComponentKind(component.KindMeshRenderer))
	if !ok {
		return
	}
	c, err := e.Registry.Decode(component.KindMeshRenderer, raw)
	if err != nil {
		return
	}
	mr := c.(component.MeshRenderer)
	if !mr.Enabled || mr.MeshID == "" {
		return
	}
	if !e.Spatial.HasMesh(mr.MeshID) {
		mesh, found := e.Meshes.Lookup(mr.MeshID)
		if !found {
			e.log.Debug("mesh not available for spatial index",
				zap.String("mesh", mr.MeshID))
			return
		}
		e.Spatial.RegisterMesh(mr.MeshID, mesh.Triangles)
	}
	if err := e.Spatial.AddInstance(id, mr.MeshID, e.Graph.WorldMatrix(id)); err != nil {
		e.log.Warn("spatial instance rejected",
			zap.Uint64("entity", uint64(id)), zap.Error(err))
	}
}

// onSceneLoaded rebuilds derived state after a full scene replace.
func (e *Engine) onSceneLoaded(sc *scene.Scene) {
	e.Graph.Rebuild()
	e.Physics.PopulateFromScene(e.State, e.Registry)
	e.Builder.Materials.SetBaseMaterials(sc.DecodedMaterials(e.log))

	e.State.WithScene(func(s *scene.Scene) {
		for _, ent := range s.Entities {
			e.registerInstance(ent.EntityID(), ent)
		}
	})
	e.Scripts.SyncWithScene(e.State)
	e.Scripts.RunStarts()
	e.log.Info("scene loaded",
		zap.String("scene", sc.Metadata.Name),
		zap.Int("entities", len(sc.Entities)),
		zap.Int("bodies", e.Physics.BodyCount()))
}

// LoadScene replaces the live scene from raw JSON.
func (e *Engine) LoadScene(data []byte) error {
	return e.Bridge.LoadScene(data)
}

// QuitRequested reports whether the input layer saw escape.
func (e *Engine) QuitRequested() bool { return e.Input.QuitRequested() }

func (e *Engine) Timer() *FrameTimer { return e.timer }

// Update runs one frame. dt is wall-clock seconds since the last frame;
// zero is allowed and trivial.
func (e *Engine) Update(dt float64) {
	// 1. Ingest queued scene replaces and diffs.
	e.Bridge.Drain()

	// 2. Input states were fed by the host window layer before Update.

	// 3. Events.
	e.Bus.Pump(e.Scripts.Dispatch)

	// 4. Scripts.
	e.Scripts.Update(dt)

	// 5. Command apply, then onStart for newly materialized scripts.
	e.Manager.ApplyCommands()
	e.Scripts.SyncWithScene(e.State)
	e.Scripts.RunStarts()

	// 6. Physics, fixed-step with catch-up bound.
	if dt > 0 {
		e.accumulator += dt
		steps := 0
		for e.accumulator >= e.cfg.Physics.FixedDt && steps < e.cfg.Physics.MaxSteps {
			e.Physics.Step(e.cfg.Physics.FixedDt)
			e.accumulator -= e.cfg.Physics.FixedDt
			steps++
		}
		e.emitContactEvents()
	}

	// 7. Transform sync: physics bodies, then script staging slots.
	e.syncPhysicsTransforms()
	e.syncScriptTransforms()

	// 8. Scene graph recomputes lazily from the dirty marks set above.

	// 9. Spatial index refit/rebuild.
	e.Spatial.Sync()

	// 10. Render.
	plan := e.Builder.Build(e.fbW, e.fbH, dt)
	render.Dispatch(plan, e.backend)

	// 11. Frame end.
	e.Input.EndFrame()
	e.timer.Tick()
}

func (e *Engine) emitContactEvents() {
	for _, c := range e.Physics.TakeContactEvents() {
		key := scene.EventPhysicsCollision
		if c.IsTrigger {
			key = scene.EventPhysicsTrigger
		}
		// Entity ids travel as strings; they are full-range uint64 and the
		// script layer reads them that way.
		payload := map[string]interface{}{
			"other": strconv.FormatUint(uint64(c.B), 10),
			"normal": map[string]interface{}{
				"x": c.Normal.X, "y": c.Normal.Y, "z": c.Normal.Z,
			},
		}
		e.Bus.EmitTo(c.A, key, payload)
		payload2 := map[string]interface{}{
			"other": strconv.FormatUint(uint64(c.A), 10),
			"normal": map[string]interface{}{
				"x": -c.Normal.X, "y": -c.Normal.Y, "z": -c.Normal.Z,
			},
		}
		e.Bus.EmitTo(c.B, key, payload2)
	}
}

func (e *Engine) syncPhysicsTransforms() {
	for _, id := range e.Physics.SortedBodyIDs() {
		body, ok := e.Physics.Body(id)
		if !ok || body.Kind != physics.KindDynamic || body.Sleeping {
			continue
		}
		pos, rot, ok := e.Physics.EntityTransform(id)
		if !ok {
			continue
		}
		e.writeTransform(id, &pos, &rot, nil)
	}
}

func (e *Engine) syncScriptTransforms() {
	for _, id := range e.Scripts.StagedEntities() {
		staged, ok := e.Scripts.TakeTransformIfDirty(id)
		if !ok {
			continue
		}
		e.writeTransform(id, staged.Position, staged.Rotation, staged.Scale)
		if staged.Position != nil || staged.Rotation != nil {
			if body, ok := e.Physics.Body(id); ok && body.Kind != physics.KindDynamic {
				pos, rot, _ := e.Physics.EntityTransform(id)
				if staged.Position != nil {
					pos = *staged.Position
				}
				if staged.Rotation != nil {
					rot = *staged.Rotation
				}
				e.Physics.SetEntityTransform(id, pos, rot)
			}
		}
	}
}

// writeTransform patches the entity's Transform component in place and
// refreshes the derived caches. Nil fields keep their authored values.
func (e *Engine) writeTransform(id scene.EntityID, pos *mathx.Vec3, rot *mathx.Quat, scl *mathx.Vec3) {
	updated := false
	e.State.WithSceneMut(func(sc *scene.Scene) {
		ent := sc.FindByEntityID(id)
		if ent == nil {
			return
		}
		var t component.Transform
		if raw, ok := ent.Component(scene.KindTransform); ok {
			if err := json.Unmarshal(raw, &t); err != nil {
				t = component.Transform{}
			}
		}
		if pos != nil {
			t.Position = &[3]float64{pos.X, pos.Y, pos.Z}
		}
		if rot != nil {
			t.Rotation = []float64{rot.X, rot.Y, rot.Z, rot.W}
		}
		if scl != nil {
			t.Scale = &[3]float64{scl.X, scl.Y, scl.Z}
		}
		raw, err := json.Marshal(t)
		if err != nil {
			return
		}
		ent.SetComponent(scene.KindTransform, raw)
		updated = true
	})
	if !updated {
		return
	}
	e.Graph.MarkDirty(id)
	e.Spatial.UpdateTransform(id, e.Graph.WorldMatrix(id))
}
