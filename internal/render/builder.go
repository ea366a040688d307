package render

import (
	"sort"

	"go.uber.org/zap"

	"github.com/kestrel3d/kestrel/internal/graph"
	"github.com/kestrel3d/kestrel/internal/mathx"
	"github.com/kestrel3d/kestrel/internal/scene"
	"github.com/kestrel3d/kestrel/internal/scene/component"
	"github.com/kestrel3d/kestrel/internal/spatial"
)

// DrawItem is one mesh draw in a camera plan.
type DrawItem struct {
	Entity      scene.EntityID
	MeshID      string
	MaterialID  string
	Uniform     MaterialUniform
	Textures    TextureBindings
	World       mathx.Mat4
	Distance    float64
	CastShadows bool
	AlphaMode   uint32
}

// CameraPlan is everything one camera needs for its passes.
type CameraPlan struct {
	Entity   scene.EntityID
	Camera   component.Camera
	Viewport PixelRect
	View     mathx.Mat4
	Proj     mathx.Mat4

	ClearColor [4]float64
	Skybox     string

	// Opaque holds opaque and mask draws in scene order; Transparent is
	// painter-sorted, farthest first.
	Opaque      []DrawItem
	Transparent []DrawItem

	Shadow     ShadowUniform
	Ambient    AmbientLight
	HasAmbient bool
}

// FramePlan is the full frame: camera plans in depth order.
type FramePlan struct {
	Cameras []CameraPlan
	Visible int
	Culled  int
}

type renderable struct {
	entity scene.EntityID
	mr     component.MeshRenderer
	world  mathx.Mat4
	center mathx.Vec3
}

type cameraEntry struct {
	entity  scene.EntityID
	numeric uint32
	cam     component.Camera
	pos     mathx.Vec3
	rot     mathx.Quat
}

type lightEntry struct {
	light component.Light
	pos   mathx.Vec3
}

// Builder assembles frame plans from the live scene.
type Builder struct {
	log      *zap.Logger
	state    *scene.State
	registry *component.Registry
	graph    *graph.Graph
	spatial  *spatial.Manager

	Materials *MaterialResolver
	Textures  *TextureCache

	follows map[scene.EntityID]*FollowState
}

func NewBuilder(log *zap.Logger, state *scene.State, registry *component.Registry, g *graph.Graph, sp *spatial.Manager) *Builder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Builder{
		log:       log,
		state:     state,
		registry:  registry,
		graph:     g,
		spatial:   sp,
		Materials: NewMaterialResolver(log),
		Textures:  NewTextureCache(log),
		follows:   make(map[scene.EntityID]*FollowState),
	}
}

// Build produces the frame plan for the current scene state.
func (b *Builder) Build(fbWidth, fbHeight int, dt float64) FramePlan {
	var (
		renderables []renderable
		cameras     []cameraEntry
		lights      []lightEntry
		numericPos  = make(map[uint32]mathx.Vec3)
	)

	b.state.WithScene(func(sc *scene.Scene) {
		for _, e := range sc.Entities {
			if !e.IsActive() {
				continue
			}
			id := e.EntityID()
			numericPos[e.NumericID] = b.graph.WorldPosition(id)

			if raw, ok := e.Component(scene.ComponentKind(component.KindMeshRenderer)); ok {
				if c, err := b.registry.Decode(component.KindMeshRenderer, raw); err == nil {
					mr := c.(component.MeshRenderer)
					if mr.Enabled {
						world := b.graph.WorldMatrix(id)
						renderables = append(renderables, renderable{
							entity: id,
							mr:     mr,
							world:  world,
							center: world.Translation(),
						})
					}
				}
			}
			if raw, ok := e.Component(scene.ComponentKind(component.KindCamera)); ok {
				if c, err := b.registry.Decode(component.KindCamera, raw); err == nil {
					cameras = append(cameras, cameraEntry{
						entity:  id,
						numeric: e.NumericID,
						cam:     c.(component.Camera),
						pos:     b.graph.WorldPosition(id),
						rot:     b.graph.WorldRotation(id),
					})
				}
			}
			if raw, ok := e.Component(scene.ComponentKind(component.KindLight)); ok {
				if c, err := b.registry.Decode(component.KindLight, raw); err == nil {
					lights = append(lights, lightEntry{
						light: c.(component.Light),
						pos:   b.graph.WorldPosition(id),
					})
				}
			}
		}
	})

	sort.SliceStable(cameras, func(i, j int) bool {
		return cameras[i].cam.Depth < cameras[j].cam.Depth
	})

	bare := make([]component.Light, len(lights))
	for i, l := range lights {
		bare[i] = l.light
	}
	ambient, hasAmbient := CombineAmbient(bare)
	shadow := b.buildShadow(lights, renderables)

	plan := FramePlan{}
	for _, ce := range cameras {
		cp := b.buildCamera(ce, renderables, numericPos, fbWidth, fbHeight, dt)
		cp.Ambient = ambient
		cp.HasAmbient = hasAmbient
		cp.Shadow = shadow
		plan.Visible += len(cp.Opaque) + len(cp.Transparent)
		plan.Culled += len(renderables) - len(cp.Opaque) - len(cp.Transparent)
		plan.Cameras = append(plan.Cameras, cp)
	}
	return plan
}

func (b *Builder) buildShadow(lights []lightEntry, renderables []renderable) ShadowUniform {
	centers := make([]mathx.Vec3, len(renderables))
	for i, r := range renderables {
		centers[i] = r.center
	}
	for _, le := range lights {
		l := le.light
		if !l.Enabled || !l.CastShadow {
			continue
		}
		switch l.LightType {
		case component.LightDirectional:
			return DirectionalShadow(l, SceneBoundingSphere(centers))
		case component.LightSpot:
			return SpotShadow(l, le.pos)
		}
	}
	return ShadowUniform{}
}

func (b *Builder) buildCamera(ce cameraEntry, renderables []renderable, numericPos map[uint32]mathx.Vec3, fbW, fbH int, dt float64) CameraPlan {
	cam := ce.cam
	vp := ViewportPixels(cam, fbW, fbH)
	aspect := 1.0
	if vp.Height > 0 {
		aspect = float64(vp.Width) / float64(vp.Height)
	}
	proj := ProjectionMatrix(cam, aspect)

	camPos := ce.pos
	var view mathx.Mat4
	if cam.ControlMode == "locked" && cam.FollowTarget != nil {
		if target, ok := numericPos[*cam.FollowTarget]; ok {
			fs := b.follows[ce.entity]
			if fs == nil {
				fs = &FollowState{}
				b.follows[ce.entity] = fs
			}
			fs.UpdateFollow(cam, target, dt)
			view = fs.ViewMatrix()
			camPos = fs.Position
		} else {
			view = ViewMatrix(ce.pos, ce.rot)
		}
	} else {
		view = ViewMatrix(ce.pos, ce.rot)
	}

	frustum := mathx.FrustumFromMatrix(proj.Mul(view))

	visible := make(map[scene.EntityID]bool)
	useBVH := b.spatial != nil && b.spatial.InstanceCount() > 0
	if useBVH {
		for _, id := range b.spatial.CullFrustum(frustum) {
			visible[id] = true
		}
	}

	cp := CameraPlan{
		Entity:   ce.entity,
		Camera:   cam,
		Viewport: vp,
		View:     view,
		Proj:     proj,
		Skybox:   cam.SkyboxTexture,
	}
	if cam.BackgroundColor != nil {
		c := cam.BackgroundColor
		cp.ClearColor = [4]float64{c.R, c.G, c.B, c.A}
	} else {
		cp.ClearColor = [4]float64{0, 0, 0, 1}
	}

	for _, r := range renderables {
		if useBVH && !visible[r.entity] {
			continue
		}
		mat, matID := b.Materials.Resolve(r.entity, r.mr.MaterialID, r.mr.Material)
		bindings, flags := b.Textures.Bind(mat)
		uniform := BuildMaterialUniform(mat, flags)
		item := DrawItem{
			Entity:      r.entity,
			MeshID:      r.mr.MeshID,
			MaterialID:  matID,
			Uniform:     uniform,
			Textures:    bindings,
			World:       r.world,
			Distance:    r.center.DistanceTo(camPos),
			CastShadows: r.mr.CastShadows,
			AlphaMode:   uniform.Flags[2],
		}
		if item.AlphaMode == AlphaBlend {
			cp.Transparent = append(cp.Transparent, item)
		} else {
			cp.Opaque = append(cp.Opaque, item)
		}
	}

	// Painter's sort: farthest transparent surfaces draw first.
	sort.SliceStable(cp.Transparent, func(i, j int) bool {
		return cp.Transparent[i].Distance > cp.Transparent[j].Distance
	})
	return cp
}

// Dispatch submits a built plan to the backend, camera by camera.
func Dispatch(plan FramePlan, backend Backend) {
	backend.BeginFrame()
	for i := range plan.Cameras {
		cp := &plan.Cameras[i]
		backend.BeginCamera(cp)
		backend.Clear(cp.ClearColor)
		if cp.Skybox != "" {
			backend.DrawSkybox(cp.Skybox)
		}
		backend.Draw(cp.Opaque)
		backend.Draw(cp.Transparent)
		if cp.Camera.HDR || cp.Camera.EnablePostProcessing {
			backend.ApplyPost(cp)
		}
		backend.EndCamera()
	}
	backend.EndFrame()
}
