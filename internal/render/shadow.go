package render

import (
	"github.com/kestrel3d/kestrel/internal/mathx"
	"github.com/kestrel3d/kestrel/internal/scene/component"
)

// ShadowUniform is the GPU block for one shadow-casting light.
type ShadowUniform struct {
	ViewProj  mathx.Mat4
	Enabled   bool
	Bias      float64
	PCFRadius float64
}

// BoundingSphere is the scene's renderable extent, used to fit directional
// shadow frusta.
type BoundingSphere struct {
	Center mathx.Vec3
	Radius float64
}

// SceneBoundingSphere fits a sphere around renderable world positions.
// Centroid plus max distance; good enough for shadow fitting.
func SceneBoundingSphere(centers []mathx.Vec3) BoundingSphere {
	if len(centers) == 0 {
		return BoundingSphere{Radius: 1}
	}
	var sum mathx.Vec3
	for _, c := range centers {
		sum = sum.Add(c)
	}
	center := sum.Scale(1 / float64(len(centers)))
	radius := 0.0
	for _, c := range centers {
		if d := c.Sub(center).Length(); d > radius {
			radius = d
		}
	}
	if radius < 1 {
		radius = 1
	}
	return BoundingSphere{Center: center, Radius: radius}
}

// DirectionalShadow builds a light-space view-projection enclosing the
// scene sphere for a directional light.
func DirectionalShadow(l component.Light, sphere BoundingSphere) ShadowUniform {
	dir := l.Direction()
	eye := sphere.Center.Sub(dir.Scale(sphere.Radius * 2))
	up := mathx.UnitY
	if dir.Cross(up).LengthSq() < 1e-9 {
		up = mathx.UnitZ
	}
	view := mathx.LookAt(eye, sphere.Center, up)
	r := sphere.Radius
	proj := mathx.Orthographic(-r, r, -r, r, 0.1, r*4)
	return ShadowUniform{
		ViewProj:  proj.Mul(view),
		Enabled:   l.Enabled && l.CastShadow,
		Bias:      l.ShadowBias,
		PCFRadius: l.ShadowRadius,
	}
}

// SpotShadow builds the cone frustum view-projection for a spot light at
// the given world position.
func SpotShadow(l component.Light, position mathx.Vec3) ShadowUniform {
	dir := l.Direction()
	up := mathx.UnitY
	if dir.Cross(up).LengthSq() < 1e-9 {
		up = mathx.UnitZ
	}
	view := mathx.LookAt(position, position.Add(dir), up)
	fov := l.Angle * 2
	if fov <= 0 {
		fov = mathx.Radians(60)
	}
	far := l.Range
	if far <= 0 {
		far = 10
	}
	proj := mathx.Perspective(fov, 1, 0.1, far)
	return ShadowUniform{
		ViewProj:  proj.Mul(view),
		Enabled:   l.Enabled && l.CastShadow,
		Bias:      l.ShadowBias,
		PCFRadius: l.ShadowRadius,
	}
}
