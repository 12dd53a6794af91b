package renderer

import (
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"deferred-renderer/internal/gpu"
	"deferred-renderer/scene"
)

// Pass names, in execution order.
const (
	PassWaterTargets = "water targets"
	PassGBuffer      = "gbuffer"
	PassSSAO         = "ssao"
	PassShadow       = "shadow"
	PassLighting     = "lighting"
	PassBackground   = "background"
	PassWater        = "water"
	PassSelection    = "selection"
	PassGrid         = "grid"
	PassBloom        = "bloom"
	PassBlit         = "blit"
	PassDebug        = "debug"
	PassPicking      = "picking"
)

// waterPlaneHeight is the world Y of the water surface.
const waterPlaneHeight = 0

type pass struct {
	name string
	// enabled reports whether the pass runs this frame; nil always runs.
	enabled func(*frame) bool
	run     func(*frame) error
}

// pipeline is the fixed pass order. Later passes read what earlier ones
// wrote, so it must not be reordered.
func (r *Renderer) pipeline() []pass {
	return []pass{
		{PassWaterTargets, r.waterEnabled, r.renderWaterTargets},
		{PassGBuffer, nil, r.renderGBuffer},
		{PassSSAO, func(f *frame) bool { return f.settings.RenderSSAO }, r.renderSSAO},
		{PassShadow, func(f *frame) bool { return f.shadowCaster != nil }, r.renderShadow},
		{PassLighting, nil, r.renderLighting},
		{PassBackground, nil, r.renderBackground},
		{PassWater, r.waterEnabled, r.renderWater},
		{PassSelection, func(f *frame) bool { return f.settings.RenderSelectionOutline && f.hasSelection() }, r.renderSelection},
		{PassGrid, func(f *frame) bool { return f.settings.RenderGrid }, r.renderGrid},
		{PassBloom, func(f *frame) bool { return f.settings.RenderBloom }, r.renderBloom},
		{PassBlit, nil, r.renderBlit},
		{PassDebug, func(*frame) bool { return !r.debug.Empty() }, r.renderDebug},
		{PassPicking, func(*frame) bool { return r.pick.pending }, r.renderPicking},
	}
}

func (r *Renderer) waterEnabled(f *frame) bool { return f.settings.RenderWater && f.water != nil }

// ── shared draw helpers ──────────────────────────────────────────────────────

func (r *Renderer) drawFullscreen() {
	r.device.Draw(gpu.DrawCall{VertexArray: r.fullscreen.ID(), Primitive: gpu.Triangles, Count: 3})
}

// setCamera sets the uniforms world position reconstruction reads.
func (r *Renderer) setCamera(p *gpu.Program, cam *scene.Camera) {
	left, right, bottom, top := cam.NearPlaneExtents()
	p.Set("nearExtents", mgl32.Vec4{left, right, bottom, top})
	p.Set("nearPlane", cam.Near)
	p.Set("farPlane", cam.Far)
	p.Set("cameraWorld", cam.WorldMatrix())
	p.Set("cameraPosition", cam.Position)
	p.Set("viewportSize", mgl32.Vec2{float32(r.targets.width), float32(r.targets.height)})
}

func (r *Renderer) bindGBuffer() {
	r.targets.albedo.Bind(0)
	r.targets.specular.Bind(1)
	r.targets.normal.Bind(2)
}

// bindMaterial binds the textures and factors shared by the gbuffer and
// forward programs. Missing maps fall back to neutral textures.
func (r *Renderer) bindMaterial(p *gpu.Program, m *scene.Material) {
	t := r.targets
	r.uploads.texture(m.AlbedoTexture, t.white).Bind(0)
	r.uploads.texture(m.NormalTexture, t.flatNormal).Bind(1)
	r.uploads.texture(m.MetallicRoughnessTexture, t.white).Bind(2)
	r.uploads.texture(m.OcclusionTexture, t.white).Bind(3)
	r.uploads.texture(m.EmissiveTexture, t.white).Bind(4)
	p.Set("albedo", m.Albedo.Vec4())
	p.Set("metallic", m.Metallic)
	p.Set("roughness", m.Roughness)
	p.Set("emissive", m.Emissive.Vec3())
}

// drawGroups issues one instanced draw per group, rebinding material state
// only when it changes. It returns the instance count.
func (r *Renderer) drawGroups(p *gpu.Program) int {
	var last *scene.Material
	instances := 0
	for _, g := range r.batcher.groups {
		if g.mesh == nil || g.VertexArray == nil {
			continue
		}
		if g.Material != last {
			r.bindMaterial(p, g.Material)
			last = g.Material
		}
		r.device.Draw(g.mesh.call(g.VertexArray, g.Count()))
		instances += g.Count()
	}
	return instances
}

// drawEntity draws every submesh of e with the model matrix as a uniform.
// Lights draw as their gizmo when gizmos are shown.
func (r *Renderer) drawEntity(p *gpu.Program, e *scene.Entity, gizmos bool) {
	draw := func(mesh *scene.Mesh, model mgl32.Mat4) {
		if mesh == nil {
			return
		}
		p.Set("model", model)
		for _, sub := range mesh.Submeshes {
			m, err := r.uploads.mesh(sub)
			if err != nil {
				r.logger.Debug("skipping submesh", zap.String("submesh", sub.Name), zap.Error(err))
				continue
			}
			r.device.Draw(m.call(m.static, 1))
		}
	}
	if mr, ok := e.MeshRenderer(); ok {
		draw(mr.Mesh, e.WorldMatrix())
	}
	if t, ok := e.Terrain(); ok {
		draw(t.Mesh(), e.WorldMatrix())
	}
	if _, ok := e.Light(); ok && gizmos {
		p.Set("model", gizmoModel(e))
		r.device.Draw(r.sphere.call(r.sphere.static, 1))
	}
}
