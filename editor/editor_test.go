package editor

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"deferred-renderer/core"
	"deferred-renderer/scene"
)

type fakeSource struct {
	x, y    float64
	buttons map[int]bool
	keys    map[int]bool
}

func newFakeSource() *fakeSource {
	return &fakeSource{buttons: map[int]bool{}, keys: map[int]bool{}}
}

func (f *fakeSource) GetCursorPos() (float64, float64) { return f.x, f.y }
func (f *fakeSource) IsMouseButtonPressed(b int) bool  { return f.buttons[b] }
func (f *fakeSource) IsKeyPressed(k int) bool          { return f.keys[k] }

type fakePicker struct {
	scheduled [][2]int
	result    *scene.Entity
	ready     bool
}

func (p *fakePicker) ScheduleMousePicking(x, y int) { p.scheduled = append(p.scheduled, [2]int{x, y}) }

func (p *fakePicker) MousePickingResult() (*scene.Entity, bool) {
	if !p.ready {
		return nil, false
	}
	p.ready = false
	return p.result, true
}

func newTestEditor() (*Editor, *fakeSource, *fakePicker) {
	src := newFakeSource()
	picker := &fakePicker{}
	cam := scene.NewOrbitCamera(mgl32.Vec3{}, 5, 1, 800, 600)
	return NewEditor(src, scene.NewScene(), cam, picker), src, picker
}

func TestClickSchedulesPickInFramebufferPixels(t *testing.T) {
	ed, src, picker := newTestEditor()
	ed.PixelRatio = 2
	src.x, src.y = 10, 20
	ed.Update()
	src.buttons[core.MouseLeft] = true
	ed.Update()
	ed.Update() // held, not a new press

	if len(picker.scheduled) != 1 {
		t.Fatalf("scheduled %d picks, want 1", len(picker.scheduled))
	}
	if picker.scheduled[0] != [2]int{20, 40} {
		t.Errorf("pick at %v", picker.scheduled[0])
	}
}

func TestPickResultSelects(t *testing.T) {
	ed, src, picker := newTestEditor()
	target := scene.NewEntity("target")
	ed.Update()
	src.buttons[core.MouseLeft] = true
	ed.Update()
	src.buttons[core.MouseLeft] = false

	picker.result, picker.ready = target, true
	ed.Update()
	if ed.Selection.Count() != 1 || ed.Selection.At(0) != target {
		t.Fatalf("selection = %d entities", ed.Selection.Count())
	}

	// background click clears
	src.buttons[core.MouseLeft] = true
	ed.Update()
	src.buttons[core.MouseLeft] = false
	picker.result, picker.ready = nil, true
	ed.Update()
	if ed.Selection.Count() != 0 {
		t.Errorf("background pick left %d selected", ed.Selection.Count())
	}
}

func TestSettingToggle(t *testing.T) {
	ed, src, _ := newTestEditor()
	before := ed.Scene.Settings.RenderBloom
	src.keys[core.Key1] = true
	ed.Update()
	ed.Update()
	if ed.Scene.Settings.RenderBloom == before {
		t.Error("bloom not toggled")
	}
	src.keys[core.Key1] = false
	ed.Update()
	if ed.Scene.Settings.RenderBloom == before {
		t.Error("release toggled again")
	}
}

func TestSelectionToggle(t *testing.T) {
	s := NewSelection()
	a, b := scene.NewEntity("a"), scene.NewEntity("b")
	s.Toggle(a)
	s.Toggle(b)
	if s.Count() != 2 || s.Active != b {
		t.Fatalf("count=%d active=%v", s.Count(), s.Active)
	}
	s.Toggle(b)
	if s.Count() != 1 || s.Active != a || s.IsSelected(b) {
		t.Errorf("after untoggle: count=%d active=%v", s.Count(), s.Active)
	}
}
