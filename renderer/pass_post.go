package renderer

import (
	"github.com/go-gl/mathgl/mgl32"

	"deferred-renderer/internal/gpu"
)

const outlineWidth = 2

func (r *Renderer) renderWater(f *frame) error {
	t := r.targets
	mr, _ := f.water.MeshRenderer()
	mat := mr.FirstMaterial()
	if err := t.lighting.Bind(); err != nil {
		return err
	}
	state := gpu.OpaqueState()
	state.Cull = gpu.CullNone
	r.device.SetState(state)

	p := r.progs.water
	p.Use()
	t.reflection.Bind(0)
	t.refraction.Bind(1)
	t.refractionDepth.Bind(2)
	r.uploads.texture(mat.NormalTexture, t.waterNormal).Bind(3)
	t.waterDistortion.Bind(4)
	p.Set("viewProjection", f.viewProjection)
	p.Set("cameraPosition", f.camera.Position)
	p.Set("sunDirection", f.sun.direction)
	p.Set("sunColor", f.sun.color)
	p.Set("waterTint", mat.WaterTint.Vec4())
	p.Set("waveScale", mat.WaveScale)
	p.Set("distortionStrength", mat.DistortionStrength)
	p.Set("time", f.time)
	p.Set("nearPlane", f.camera.Near)
	p.Set("farPlane", f.camera.Far)
	r.drawEntity(p, f.water, false)
	return nil
}

// renderSelection rasterizes the selected entities into a mask, then
// blends an edge-detected outline over the light target.
func (r *Renderer) renderSelection(f *frame) error {
	t := r.targets
	if err := t.selectFB.Bind(); err != nil {
		return err
	}
	r.device.Clear(gpu.ClearColor, clearBlack)
	r.device.SetState(gpu.OverlayState(gpu.BlendNone))
	p := r.progs.mask
	p.Use()
	p.Set("viewProjection", f.viewProjection)
	for i := 0; i < f.selection.Count(); i++ {
		if e := f.selection.At(i); e != nil && e.Active() {
			r.drawEntity(p, e, true)
		}
	}

	if err := t.lighting.Bind(); err != nil {
		return err
	}
	r.device.SetState(gpu.OverlayState(gpu.BlendAlpha))
	p = r.progs.outline
	p.Use()
	t.selection.Bind(0)
	p.Set("outlineColor", f.settings.SelectionColor.Vec4())
	p.Set("width", float32(outlineWidth))
	r.drawFullscreen()
	return nil
}

func (r *Renderer) renderGrid(f *frame) error {
	if err := r.targets.lighting.Bind(); err != nil {
		return err
	}
	r.device.SetState(gpu.OverlayState(gpu.BlendAlpha))
	p := r.progs.grid
	p.Use()
	r.targets.normal.Bind(0)
	r.setCamera(p, f.camera)
	r.drawFullscreen()
	return nil
}

// renderBloom extracts bright light into bloom0 level 0, builds its mip
// chain, blurs every level horizontally into bloom1 and back vertically,
// then adds the weighted levels to the light target.
func (r *Renderer) renderBloom(f *frame) error {
	t := r.targets
	levels := len(t.bloomFB[0])

	if err := t.bloomFB[0][0].Bind(); err != nil {
		return err
	}
	r.device.SetState(gpu.OverlayState(gpu.BlendNone))
	p := r.progs.bloomExtract
	p.Use()
	t.light.Bind(0)
	p.Set("threshold", f.settings.BloomThreshold)
	r.drawFullscreen()
	t.bloom[0].GenerateMipmaps()

	p = r.progs.bloomBlur
	p.Use()
	p.Set("radius", f.settings.BloomRadius)
	for k := 0; k < levels; k++ {
		steps := []struct {
			dst       *gpu.Framebuffer
			src       *gpu.Texture
			direction mgl32.Vec2
		}{
			{t.bloomFB[1][k], t.bloom[0], mgl32.Vec2{1, 0}},
			{t.bloomFB[0][k], t.bloom[1], mgl32.Vec2{0, 1}},
		}
		for _, s := range steps {
			if err := s.dst.Bind(); err != nil {
				return err
			}
			s.src.Bind(0)
			p.Set("lod", float32(k))
			p.Set("direction", s.direction)
			r.drawFullscreen()
		}
	}

	if err := t.lighting.Bind(); err != nil {
		return err
	}
	r.device.SetState(gpu.OverlayState(gpu.BlendAdditive))
	p = r.progs.bloomComposite
	p.Use()
	t.bloom[0].Bind(0)
	intensities := make([]float32, maxBloomLevels)
	for k := 0; k < levels; k++ {
		intensities[k] = f.settings.BloomIntensity(k)
	}
	p.Set("levels", levels)
	p.Set("intensities", intensities)
	r.drawFullscreen()
	return nil
}

// renderBlit copies the selected target to the screen.
func (r *Renderer) renderBlit(f *frame) error {
	named := r.targets.named()
	target, ok := named[r.view]
	if !ok {
		target = named[defaultView]
	}
	gpu.BindScreen(r.device, r.targets.width, r.targets.height)
	r.device.SetState(gpu.OverlayState(gpu.BlendNone))
	p := r.progs.blit
	p.Use()
	target.tex.Bind(0)
	p.Set("mode", int(target.mode))
	p.Set("lod", float32(min(r.lod, target.tex.Levels()-1)))
	p.Set("toneMap", target.toneMap)
	p.Set("exposure", f.settings.Exposure)
	p.Set("nearPlane", f.camera.Near)
	p.Set("farPlane", f.camera.Far)
	r.drawFullscreen()
	return nil
}

// renderDebug draws the debug buffer over the screen and clears it.
func (r *Renderer) renderDebug(f *frame) error {
	defer r.debug.Clear()
	o := r.overlay
	r.device.SetState(gpu.OverlayState(gpu.BlendAlpha))

	if n := r.debug.LineCount(); n > 0 {
		if err := o.stream(&o.lineBuf, &o.lineVAO, r.debug.lines, lineAttribs, "debug lines"); err != nil {
			return err
		}
		p := r.progs.debugLines
		p.Use()
		p.Set("viewProjection", f.viewProjection)
		r.device.Draw(gpu.DrawCall{VertexArray: o.lineVAO.ID(), Primitive: gpu.Lines, Count: int32(2 * n)})
	}

	verts := textVertices(r.debug.labels, f.viewProjection, r.targets.width, r.targets.height, r.cfg.DebugTextScale)
	if len(verts) > 0 {
		if err := o.stream(&o.textBuf, &o.textVAO, verts, textAttribs, "debug text"); err != nil {
			return err
		}
		r.progs.debugText.Use()
		o.glyphs.Bind(0)
		r.device.Draw(gpu.DrawCall{VertexArray: o.textVAO.ID(), Primitive: gpu.Triangles, Count: int32(len(verts) / textVertexFloats)})
	}
	return nil
}
