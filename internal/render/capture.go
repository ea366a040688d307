package render

import (
	"image"
	"image/color"
)

// CaptureBackend renders into an in-memory image. Geometry is not
// rasterized on the CPU; each camera viewport is filled with its clear
// color. That is enough for headless screenshots and for exercising the
// full dispatch path without a GPU.
type CaptureBackend struct {
	img *image.RGBA
	cur *CameraPlan
}

func NewCaptureBackend(width, height int) *CaptureBackend {
	return &CaptureBackend{img: image.NewRGBA(image.Rect(0, 0, width, height))}
}

func (b *CaptureBackend) BeginFrame()               {}
func (b *CaptureBackend) BeginCamera(p *CameraPlan) { b.cur = p }

func (b *CaptureBackend) Clear(c [4]float64) {
	if b.cur == nil {
		return
	}
	vp := b.cur.Viewport
	col := color.RGBA{R: to8(c[0]), G: to8(c[1]), B: to8(c[2]), A: to8(c[3])}
	bounds := b.img.Bounds()
	for y := vp.Y; y < vp.Y+vp.Height && y < bounds.Max.Y; y++ {
		for x := vp.X; x < vp.X+vp.Width && x < bounds.Max.X; x++ {
			b.img.SetRGBA(x, y, col)
		}
	}
}

func (b *CaptureBackend) DrawSkybox(string)     {}
func (b *CaptureBackend) Draw([]DrawItem)       {}
func (b *CaptureBackend) ApplyPost(*CameraPlan) {}
func (b *CaptureBackend) EndCamera()            { b.cur = nil }
func (b *CaptureBackend) EndFrame()             {}
func (b *CaptureBackend) Image() *image.RGBA    { return b.img }

func to8(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}
