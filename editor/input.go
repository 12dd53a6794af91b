package editor

import "deferred-renderer/core"

// InputSource is the window state the input manager polls.
type InputSource interface {
	GetCursorPos() (float64, float64)
	IsMouseButtonPressed(button int) bool
	IsKeyPressed(key int) bool
}

// InputManager tracks mouse and keyboard state between frames so presses can
// be detected as edges.
type InputManager struct {
	MouseX, MouseY           float64
	MouseDeltaX, MouseDeltaY float64
	ScrollDelta              float64
	ShiftDown                bool

	mouseButtons     [3]bool
	mouseButtonsPrev [3]bool
	keys             map[int]bool
	keysPrev         map[int]bool
	watched          []int

	source     InputSource
	firstFrame bool
}

// NewInputManager polls source for the given keys on every Update.
func NewInputManager(source InputSource, keys ...int) *InputManager {
	return &InputManager{
		source:     source,
		keys:       make(map[int]bool),
		keysPrev:   make(map[int]bool),
		watched:    keys,
		firstFrame: true,
	}
}

// AddScroll accumulates wheel movement until EndFrame.
func (im *InputManager) AddScroll(yoff float64) { im.ScrollDelta += yoff }

// Update polls the source once per frame.
func (im *InputManager) Update() {
	x, y := im.source.GetCursorPos()
	if im.firstFrame {
		im.MouseX, im.MouseY = x, y
		im.firstFrame = false
	}
	im.MouseDeltaX, im.MouseDeltaY = x-im.MouseX, y-im.MouseY
	im.MouseX, im.MouseY = x, y

	im.mouseButtonsPrev = im.mouseButtons
	for _, b := range []int{core.MouseLeft, core.MouseRight, core.MouseMiddle} {
		im.mouseButtons[b] = im.source.IsMouseButtonPressed(b)
	}

	im.ShiftDown = im.source.IsKeyPressed(core.KeyLeftShift) || im.source.IsKeyPressed(core.KeyRightShift)
	for _, k := range im.watched {
		im.keysPrev[k] = im.keys[k]
		im.keys[k] = im.source.IsKeyPressed(k)
	}
}

// EndFrame clears per-frame accumulators.
func (im *InputManager) EndFrame() {
	im.ScrollDelta = 0
}

func (im *InputManager) IsMouseDown(button int) bool {
	if button < 0 || button >= len(im.mouseButtons) {
		return false
	}
	return im.mouseButtons[button]
}

func (im *InputManager) IsMousePressed(button int) bool {
	if button < 0 || button >= len(im.mouseButtons) {
		return false
	}
	return im.mouseButtons[button] && !im.mouseButtonsPrev[button]
}

func (im *InputManager) IsKeyDown(key int) bool { return im.keys[key] }

// IsKeyPressed is true on the frame the key went down.
func (im *InputManager) IsKeyPressed(key int) bool {
	return im.keys[key] && !im.keysPrev[key]
}
