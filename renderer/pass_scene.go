package renderer

import (
	"github.com/go-gl/mathgl/mgl32"

	"deferred-renderer/internal/gpu"
	"deferred-renderer/scene"
)

var (
	clearBlack = [4]float32{0, 0, 0, 0}
	noClip     = mgl32.Vec4{}
)

// lightProxyScale grows the sphere proxy past the light range so the
// tessellated sphere fully covers it.
const lightProxyScale = 1.1

// renderWaterTargets draws the reflection view from the camera mirrored
// about the water plane, then the refraction view. Each keeps only the
// geometry on its side of the plane.
func (r *Renderer) renderWaterTargets(f *frame) error {
	views := []struct {
		fb    *gpu.Framebuffer
		cam   *scene.Camera
		plane mgl32.Vec4
	}{
		{r.targets.reflectFB, f.camera.Mirrored(waterPlaneHeight), mgl32.Vec4{0, 1, 0, -waterPlaneHeight}},
		{r.targets.refractFB, f.camera, mgl32.Vec4{0, -1, 0, waterPlaneHeight}},
	}
	for _, v := range views {
		if err := v.fb.Bind(); err != nil {
			return err
		}
		r.device.Clear(gpu.ClearColor|gpu.ClearDepth, clearBlack)

		state := gpu.OpaqueState()
		state.ClipPlane = true
		r.device.SetState(state)
		p := r.progs.forward
		p.Use()
		p.Set("view", v.cam.ViewMatrix())
		p.Set("projection", v.cam.ProjectionMatrix())
		p.Set("clipPlane", v.plane)
		p.Set("sunDirection", f.sun.direction)
		p.Set("sunColor", f.sun.color)
		p.Set("ambientIntensity", f.settings.AmbientIntensity)
		r.targets.irradiance.Bind(5)
		r.drawGroups(p)

		r.drawBackgroundFor(f, v.cam)
	}
	return nil
}

func (r *Renderer) renderGBuffer(f *frame) error {
	if err := r.targets.gbuffer.Bind(); err != nil {
		return err
	}
	r.device.Clear(gpu.ClearColor|gpu.ClearDepth, clearBlack)
	r.device.SetState(gpu.OpaqueState())
	p := r.progs.gbuffer
	p.Use()
	p.Set("view", f.view)
	p.Set("projection", f.projection)
	p.Set("clipPlane", noClip)
	r.report.Instances = r.drawGroups(p)
	r.report.Groups = len(r.batcher.groups)
	return nil
}

// renderSSAO computes occlusion and blurs it into the albedo alpha
// channel, replacing the material occlusion.
func (r *Renderer) renderSSAO(f *frame) error {
	t := r.targets
	if err := t.ssaoFB.Bind(); err != nil {
		return err
	}
	r.device.SetState(gpu.OverlayState(gpu.BlendNone))
	p := r.progs.ssao
	p.Use()
	t.normal.Bind(0)
	t.noise.Bind(1)
	p.Set("kernel", t.kernel)
	p.Set("projection", f.projection)
	p.Set("viewNormal", f.view.Mat3())
	p.Set("radius", f.settings.SSAORadius)
	p.Set("bias", f.settings.SSAOBias)
	noise := float32(r.cfg.NoiseSize)
	p.Set("noiseScale", mgl32.Vec2{float32(t.width) / noise, float32(t.height) / noise})
	r.setCamera(p, f.camera)
	r.drawFullscreen()

	if err := t.ssaoBlurFB.Bind(); err != nil {
		return err
	}
	state := gpu.OverlayState(gpu.BlendNone)
	state.ColorMask = gpu.MaskA
	r.device.SetState(state)
	r.progs.ssaoBlur.Use()
	t.ssao.Bind(0)
	r.drawFullscreen()
	return nil
}

// renderShadow draws the depth of every batched instance as seen from the
// shadow caster. Light gizmos cast no shadow.
func (r *Renderer) renderShadow(f *frame) error {
	if err := r.targets.shadowFB.Bind(); err != nil {
		return err
	}
	r.device.Clear(gpu.ClearDepth, clearBlack)
	state := gpu.OpaqueState()
	state.ColorMask = 0
	r.device.SetState(state)
	p := r.progs.shadow
	p.Use()
	p.Set("lightViewProjection", f.lightViewProjection)
	for _, g := range r.batcher.groups {
		if g.mesh == nil || g.VertexArray == nil || g.Submesh == r.batcher.gizmo {
			continue
		}
		r.device.Draw(g.mesh.call(g.VertexArray, g.Count()))
	}
	return nil
}

// shadowMatrix is an orthographic light view of the square of half size
// extent centred on the camera position.
func shadowMatrix(center, direction mgl32.Vec3, extent float32) mgl32.Mat4 {
	up := mgl32.Vec3{0, 1, 0}
	if d := direction.Dot(up); d > 0.999 || d < -0.999 {
		up = mgl32.Vec3{0, 0, 1}
	}
	eye := center.Sub(direction.Mul(extent))
	view := mgl32.LookAtV(eye, center, up)
	proj := mgl32.Ortho(-extent, extent, -extent, extent, -extent, extent*3)
	return proj.Mul4(view)
}

// renderLighting accumulates ambient, directional and point lighting into
// the light target. Depth GREATER restricts fullscreen draws to covered
// pixels.
func (r *Renderer) renderLighting(f *frame) error {
	t := r.targets
	if err := t.lighting.Bind(); err != nil {
		return err
	}
	fullscreen := gpu.State{
		DepthTest: true,
		DepthFunc: gpu.DepthGreater,
		Blend:     gpu.BlendAdditive,
		ColorMask: gpu.MaskAll,
		Cull:      gpu.CullNone,
	}
	proxy := fullscreen
	proxy.DepthFunc = gpu.DepthGEqual
	proxy.Cull = gpu.CullFront

	r.device.SetState(fullscreen)
	r.bindGBuffer()
	p := r.progs.ambient
	p.Use()
	t.irradiance.Bind(3)
	t.environment.Bind(4)
	p.Set("environmentLod", float32(t.environment.Levels()-1))
	p.Set("ambientIntensity", f.settings.AmbientIntensity)
	p.Set("proxy", false)
	r.setCamera(p, f.camera)
	r.drawFullscreen()

	for _, e := range f.scene.Lights() {
		l, _ := e.Light()
		color := l.Color.Vec3().Mul(l.Intensity)
		switch l.Type {
		case scene.LightDirectional:
			r.device.SetState(fullscreen)
			p := r.progs.directional
			p.Use()
			p.Set("proxy", false)
			p.Set("lightDirection", e.WorldForward())
			p.Set("lightColor", color)
			t.shadowMap.Bind(3)
			p.Set("shadowed", e == f.shadowCaster)
			p.Set("lightViewProjection", f.lightViewProjection)
			p.Set("shadowBias", f.settings.ShadowBias)
			p.Set("shadowTexel", 1/float32(t.shadowMap.Width()))
			r.setCamera(p, f.camera)
			r.drawFullscreen()
			r.report.LightsDrawn++

		case scene.LightPoint:
			pos := e.WorldPosition()
			if l.Range <= 0 || !f.frustum.IntersectsSphere(pos, l.Range) {
				r.report.LightsCulled++
				continue
			}
			p := r.progs.point
			p.Use()
			p.Set("lightPosition", pos)
			p.Set("lightColor", color)
			p.Set("lightRange", l.Range)
			r.setCamera(p, f.camera)
			if cameraNearSphere(f.camera, pos, l.Range*lightProxyScale) {
				r.device.SetState(fullscreen)
				p.Set("proxy", false)
				r.drawFullscreen()
			} else {
				r.device.SetState(proxy)
				s := l.Range * lightProxyScale
				p.Set("proxy", true)
				p.Set("model", mgl32.Translate3D(pos[0], pos[1], pos[2]).Mul4(mgl32.Scale3D(s, s, s)))
				p.Set("viewProjection", f.viewProjection)
				r.device.Draw(r.sphere.call(r.sphere.static, 1))
			}
			r.report.LightsDrawn++
		}
	}
	return nil
}

// cameraNearSphere is true when the near plane may cut the sphere, where
// front-face culled proxies would miss pixels.
func cameraNearSphere(cam *scene.Camera, center mgl32.Vec3, radius float32) bool {
	left, right, bottom, top := cam.NearPlaneExtents()
	corner := mgl32.Vec3{max(-left, right), max(-bottom, top), cam.Near}.Len()
	return cam.Position.Sub(center).Len() <= radius+corner
}

func (r *Renderer) renderBackground(f *frame) error {
	if err := r.targets.lighting.Bind(); err != nil {
		return err
	}
	r.drawBackgroundFor(f, f.camera)
	return nil
}

// drawBackgroundFor fills pixels still at the far plane of the bound
// framebuffer.
func (r *Renderer) drawBackgroundFor(f *frame, cam *scene.Camera) {
	r.device.SetState(gpu.State{
		DepthTest: true,
		DepthFunc: gpu.DepthLEqual,
		ColorMask: gpu.MaskAll,
		Cull:      gpu.CullNone,
	})
	p := r.progs.background
	p.Use()
	r.targets.environment.Bind(0)
	p.Set("useEnvironment", r.env.baked)
	p.Set("backgroundColor", f.settings.BackgroundColor.Vec3())
	r.setCamera(p, cam)
	r.drawFullscreen()
}
