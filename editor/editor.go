package editor

import (
	"fmt"

	"deferred-renderer/core"
	"deferred-renderer/scene"
)

// Picker resolves window pixels to entities asynchronously. A scheduled
// pick is answered by a later MousePickingResult; (nil, true) means the
// pixel showed background.
type Picker interface {
	ScheduleMousePicking(x, y int)
	MousePickingResult() (*scene.Entity, bool)
}

// Toggle keys for the scene render settings.
var settingKeys = []int{core.Key1, core.Key2, core.Key3, core.Key4, core.Key5, core.Key6, core.Key7}

// Editor maps input onto the orbit camera, the selection and the scene
// settings.
type Editor struct {
	Selection *Selection
	Input     *InputManager
	Scene     *scene.Scene
	Camera    *scene.OrbitCamera
	// PixelRatio converts cursor coordinates to framebuffer pixels.
	PixelRatio float64
	StatusText string

	picker        Picker
	pickToggles   bool
	pickScheduled bool
}

func NewEditor(source InputSource, s *scene.Scene, camera *scene.OrbitCamera, picker Picker) *Editor {
	return &Editor{
		Selection:  NewSelection(),
		Input:      NewInputManager(source, settingKeys...),
		Scene:      s,
		Camera:     camera,
		PixelRatio: 1,
		StatusText: "Ready",
		picker:     picker,
	}
}

// Update processes one frame of input. Call before rendering.
func (e *Editor) Update() {
	e.Input.Update()
	e.handleCameraControls()
	e.handleSettingToggles()
	e.handlePicking()
	e.Input.EndFrame()
}

func (e *Editor) handleCameraControls() {
	if e.Input.ScrollDelta != 0 {
		e.Camera.Zoom(-float32(e.Input.ScrollDelta) * 0.5)
	}
	if !e.Input.IsMouseDown(core.MouseRight) && !e.Input.IsMouseDown(core.MouseMiddle) {
		return
	}
	dx := float32(e.Input.MouseDeltaX) * 0.01
	dy := float32(e.Input.MouseDeltaY) * 0.01
	if e.Input.ShiftDown || e.Input.IsMouseDown(core.MouseMiddle) {
		speed := e.Camera.Distance * 0.2
		e.Camera.Pan(-dx*speed, dy*speed)
		return
	}
	e.Camera.Orbit(-dx, -dy)
}

func (e *Editor) handleSettingToggles() {
	st := &e.Scene.Settings
	toggles := []struct {
		flag *bool
		name string
	}{
		{&st.RenderBloom, "bloom"},
		{&st.RenderSSAO, "ssao"},
		{&st.RenderWater, "water"},
		{&st.RenderGrid, "grid"},
		{&st.RenderLightGizmos, "light gizmos"},
		{&st.RenderSelectionOutline, "selection outline"},
		{&st.RenderShadows, "shadows"},
	}
	for i, k := range settingKeys {
		if !e.Input.IsKeyPressed(k) {
			continue
		}
		t := toggles[i]
		*t.flag = !*t.flag
		e.StatusText = fmt.Sprintf("%s: %v", t.name, *t.flag)
	}
}

func (e *Editor) handlePicking() {
	if e.pickScheduled {
		if ent, ok := e.picker.MousePickingResult(); ok {
			e.pickScheduled = false
			e.applyPick(ent)
		}
	}
	if e.Input.IsMousePressed(core.MouseLeft) {
		x := int(e.Input.MouseX * e.PixelRatio)
		y := int(e.Input.MouseY * e.PixelRatio)
		e.picker.ScheduleMousePicking(x, y)
		e.pickScheduled = true
		e.pickToggles = e.Input.ShiftDown
	}
}

func (e *Editor) applyPick(ent *scene.Entity) {
	switch {
	case ent == nil && !e.pickToggles:
		e.Selection.Clear()
		e.StatusText = "Selection cleared"
	case ent == nil:
	case e.pickToggles:
		e.Selection.Toggle(ent)
		e.StatusText = fmt.Sprintf("Toggled: %s", ent.Name)
	default:
		e.Selection.SelectSingle(ent)
		e.StatusText = fmt.Sprintf("Selected: %s", ent.Name)
	}
}
