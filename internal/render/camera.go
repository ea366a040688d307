package render

import (
	"github.com/kestrel3d/kestrel/internal/mathx"
	"github.com/kestrel3d/kestrel/internal/scene/component"
)

// PixelRect is a viewport in framebuffer pixels.
type PixelRect struct {
	X, Y, Width, Height int
}

// ViewportPixels converts the camera's normalized viewport rect against the
// framebuffer size; a missing rect means fullscreen.
func ViewportPixels(cam component.Camera, fbWidth, fbHeight int) PixelRect {
	if cam.Viewport == nil {
		return PixelRect{Width: fbWidth, Height: fbHeight}
	}
	v := cam.Viewport
	return PixelRect{
		X:      int(v.X * float64(fbWidth)),
		Y:      int(v.Y * float64(fbHeight)),
		Width:  int(v.Width * float64(fbWidth)),
		Height: int(v.Height * float64(fbHeight)),
	}
}

// ProjectionMatrix builds the camera's projection for the viewport aspect.
func ProjectionMatrix(cam component.Camera, aspect float64) mathx.Mat4 {
	if aspect <= 0 {
		aspect = 1
	}
	if cam.IsOrthographic() {
		half := cam.OrthographicSize / 2
		return mathx.Orthographic(-half*aspect, half*aspect, -half, half, cam.Near, cam.Far)
	}
	return mathx.Perspective(mathx.Radians(cam.Fov), aspect, cam.Near, cam.Far)
}

// ViewMatrix builds the view from the camera's world pose. Forward is the
// rotated +Z axis.
func ViewMatrix(position mathx.Vec3, rotation mathx.Quat) mathx.Mat4 {
	forward := rotation.Forward()
	up := rotation.Rotate(mathx.UnitY)
	return mathx.LookAt(position, position.Add(forward), up)
}

// FollowState is the smoothed pose of a locked follow camera, persisted
// across frames.
type FollowState struct {
	Position mathx.Vec3
	LookAt   mathx.Vec3
	primed   bool
}

// UpdateFollow drives the camera toward target + offset. With smoothing
// enabled, position and look-at move by clamp(speed*dt, 0, 1) per frame;
// otherwise they snap.
func (f *FollowState) UpdateFollow(cam component.Camera, target mathx.Vec3, dt float64) {
	offset := mathx.Vec3{Y: 5, Z: -10}
	if cam.FollowOffset != nil {
		offset = mathx.Vec3{X: cam.FollowOffset[0], Y: cam.FollowOffset[1], Z: cam.FollowOffset[2]}
	}
	desired := target.Add(offset)

	if !f.primed || !cam.EnableSmoothing {
		f.Position = desired
		f.LookAt = target
		f.primed = true
		return
	}
	posT := mathx.Clamp(cam.SmoothingSpeed*dt, 0, 1)
	lookT := mathx.Clamp(cam.RotationSmoothing*dt, 0, 1)
	f.Position = f.Position.Lerp(desired, posT)
	f.LookAt = f.LookAt.Lerp(target, lookT)
}

// ViewMatrix returns the follow pose as a view matrix.
func (f *FollowState) ViewMatrix() mathx.Mat4 {
	return mathx.LookAt(f.Position, f.LookAt, mathx.UnitY)
}
