package render

// Backend receives the built frame plan. Implementations own the GPU (or a
// test recorder); the builder never talks to graphics APIs directly.
type Backend interface {
	BeginFrame()
	BeginCamera(plan *CameraPlan)
	Clear(color [4]float64)
	DrawSkybox(texture string)
	Draw(items []DrawItem)
	ApplyPost(plan *CameraPlan)
	EndCamera()
	EndFrame()
}

// NullBackend discards everything. Used headless and in tests that only
// care about plan construction.
type NullBackend struct{}

func (NullBackend) BeginFrame()             {}
func (NullBackend) BeginCamera(*CameraPlan) {}
func (NullBackend) Clear([4]float64)        {}
func (NullBackend) DrawSkybox(string)       {}
func (NullBackend) Draw([]DrawItem)         {}
func (NullBackend) ApplyPost(*CameraPlan)   {}
func (NullBackend) EndCamera()              {}
func (NullBackend) EndFrame()               {}
