// Package input tracks keyboard and mouse state for one frame at a time.
// The window layer feeds events in; scripts and the character controller
// read the snapshot; the scheduler clears per-frame state at frame end.
package input

// Key names follow the authoring convention: lowercase letters, "space",
// "shift", "escape", "arrowup" and friends.
type Manager struct {
	down     map[string]bool
	pressed  map[string]bool // went down this frame
	released map[string]bool // went up this frame

	mouseX, mouseY   float64
	mouseDX, mouseDY float64

	buttons         map[int]bool
	buttonsPressed  map[int]bool
	buttonsReleased map[int]bool

	quitRequested bool
}

func NewManager() *Manager {
	return &Manager{
		down:            make(map[string]bool),
		pressed:         make(map[string]bool),
		released:        make(map[string]bool),
		buttons:         make(map[int]bool),
		buttonsPressed:  make(map[int]bool),
		buttonsReleased: make(map[int]bool),
	}
}

// KeyDown records a key-down event. Escape also raises the quit flag.
func (m *Manager) KeyDown(key string) {
	if !m.down[key] {
		m.pressed[key] = true
	}
	m.down[key] = true
	if key == "escape" {
		m.quitRequested = true
	}
}

// KeyUp records a key-up event.
func (m *Manager) KeyUp(key string) {
	if m.down[key] {
		m.released[key] = true
	}
	delete(m.down, key)
}

// MouseMove records the new cursor position, accumulating the frame delta.
func (m *Manager) MouseMove(x, y float64) {
	m.mouseDX += x - m.mouseX
	m.mouseDY += y - m.mouseY
	m.mouseX, m.mouseY = x, y
}

// MouseButtonDown records a button-down event (0=left, 1=middle, 2=right).
func (m *Manager) MouseButtonDown(button int) {
	if !m.buttons[button] {
		m.buttonsPressed[button] = true
	}
	m.buttons[button] = true
}

// MouseButtonUp records a button-up event.
func (m *Manager) MouseButtonUp(button int) {
	if m.buttons[button] {
		m.buttonsReleased[button] = true
	}
	delete(m.buttons, button)
}

// IsKeyDown reports whether the key is currently held.
func (m *Manager) IsKeyDown(key string) bool { return m.down[key] }

// WasKeyPressed reports whether the key went down this frame.
func (m *Manager) WasKeyPressed(key string) bool { return m.pressed[key] }

// WasKeyReleased reports whether the key went up this frame.
func (m *Manager) WasKeyReleased(key string) bool { return m.released[key] }

func (m *Manager) MousePosition() (float64, float64) { return m.mouseX, m.mouseY }
func (m *Manager) MouseDelta() (float64, float64)    { return m.mouseDX, m.mouseDY }

func (m *Manager) IsMouseButtonDown(button int) bool { return m.buttons[button] }
func (m *Manager) WasMouseButtonPressed(b int) bool  { return m.buttonsPressed[b] }
func (m *Manager) WasMouseButtonReleased(b int) bool { return m.buttonsReleased[b] }

// QuitRequested reports whether escape was pressed at any point.
func (m *Manager) QuitRequested() bool { return m.quitRequested }

// EndFrame clears edge-triggered state and the mouse delta. Held keys and
// buttons persist.
func (m *Manager) EndFrame() {
	clearKeys(m.pressed)
	clearKeys(m.released)
	clearButtons(m.buttonsPressed)
	clearButtons(m.buttonsReleased)
	m.mouseDX, m.mouseDY = 0, 0
}

func clearKeys(s map[string]bool) {
	for k := range s {
		delete(s, k)
	}
}

func clearButtons(s map[int]bool) {
	for k := range s {
		delete(s, k)
	}
}
