package runtime

import "time"

// FrameTimer tracks frame pacing and a smoothed FPS figure.
type FrameTimer struct {
	frames   uint64
	last     time.Time
	fps      float64
	fpsAccum float64
	fpsCount int
}

func NewFrameTimer() *FrameTimer {
	return &FrameTimer{last: time.Now()}
}

// Tick marks a frame boundary and returns the wall-clock dt in seconds.
func (t *FrameTimer) Tick() float64 {
	now := time.Now()
	dt := now.Sub(t.last).Seconds()
	t.last = now
	t.frames++

	t.fpsAccum += dt
	t.fpsCount++
	// Refresh the FPS figure about twice a second.
	if t.fpsAccum >= 0.5 {
		t.fps = float64(t.fpsCount) / t.fpsAccum
		t.fpsAccum = 0
		t.fpsCount = 0
	}
	return dt
}

func (t *FrameTimer) Frames() uint64 { return t.frames }
func (t *FrameTimer) FPS() float64   { return t.fps }
