package renderer

import (
	"math"

	"go.uber.org/zap"

	"deferred-renderer/internal/gpu"
	"deferred-renderer/scene"
)

// maxPickID is the largest entity ID the R32F picking target stores
// exactly. Entities past it are not pickable.
const maxPickID = 1 << 24

// pickState is one scheduled pick and its unread result.
type pickState struct {
	pending bool
	x, y    int

	ready  bool
	result *scene.Entity
}

// ScheduleMousePicking requests the entity under window pixel (x, y),
// origin top-left. It is resolved at the end of the next Render.
func (r *Renderer) ScheduleMousePicking(x, y int) {
	r.pick.pending = true
	r.pick.x, r.pick.y = x, y
}

// MousePickingResult returns the last resolved pick. The second result is
// false when no pick completed since the previous call. A nil entity means
// the background was hit.
func (r *Renderer) MousePickingResult() (*scene.Entity, bool) {
	if !r.pick.ready {
		return nil, false
	}
	e := r.pick.result
	r.pick.ready, r.pick.result = false, nil
	return e, true
}

// renderPicking rasterizes entity IDs and reads back the scheduled pixel.
func (r *Renderer) renderPicking(f *frame) error {
	t := r.targets
	if err := t.pickingFB.Bind(); err != nil {
		return err
	}
	r.device.Clear(gpu.ClearColor|gpu.ClearDepth, clearBlack)
	state := gpu.OpaqueState()
	state.Cull = gpu.CullNone
	r.device.SetState(state)
	p := r.progs.picking
	p.Use()
	p.Set("viewProjection", f.viewProjection)
	skipped := 0
	for _, e := range f.scene.Entities() {
		if !e.Active() {
			continue
		}
		if e.ID > maxPickID {
			skipped++
			continue
		}
		p.Set("pickId", float32(e.ID))
		r.drawEntity(p, e, f.settings.RenderLightGizmos)
	}

	var hit *scene.Entity
	x, y := r.pick.x, t.height-1-r.pick.y
	if skipped > 0 {
		r.logger.Debug("entities not pickable, id too large", zap.Int("count", skipped), zap.Uint32("maxId", maxPickID))
	}
	if x >= 0 && x < t.width && y >= 0 && y < t.height {
		id := uint32(math.Round(float64(r.device.ReadPixel(x, y))))
		if id != 0 {
			hit = f.scene.ByID(id)
		}
	}
	r.pick = pickState{ready: true, result: hit}
	r.report.Picked = true
	r.logger.Debug("mouse pick resolved", zap.Int("x", x), zap.Int("y", y), zap.Bool("hit", hit != nil))
	return nil
}
