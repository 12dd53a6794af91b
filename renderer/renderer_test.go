package renderer

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"deferred-renderer/core"
	"deferred-renderer/internal/gpu"
	"deferred-renderer/internal/gpu/gputest"
	"deferred-renderer/scene"
)

const testSize = 64

func newTestRenderer(t *testing.T) (*Renderer, *gputest.Device) {
	t.Helper()
	d := gputest.New()
	r := New(d, DefaultConfig())
	if err := r.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := r.Resize(testSize, testSize); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	t.Cleanup(r.Finalize)
	return r, d
}

func testCamera() *scene.Camera {
	cam := scene.NewCamera(1, testSize, testSize, 0.1, 100)
	cam.Position = mgl32.Vec3{0, 2, 6}
	cam.LookAt(mgl32.Vec3{})
	return cam
}

type selection []*scene.Entity

func (s selection) Count() int             { return len(s) }
func (s selection) At(i int) *scene.Entity { return s[i] }

func render(t *testing.T, r *Renderer, s *scene.Scene, sel Selection) {
	t.Helper()
	if err := r.Render(s, testCamera(), sel); err != nil {
		t.Fatalf("Render: %v", err)
	}
}

func TestEmptySceneFrame(t *testing.T) {
	r, d := newTestRenderer(t)
	s := scene.NewScene()
	render(t, r, s, nil)

	want := []string{PassGBuffer, PassSSAO, PassLighting, PassBackground, PassGrid, PassBloom, PassBlit}
	got := r.LastFrame().Passes
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("passes %v, want %v", got, want)
	}
	if n := len(d.DrawsWith("gbuffer")); n != 0 {
		t.Errorf("%d gbuffer draws for an empty scene", n)
	}
	if d.Bound() != 0 {
		t.Error("frame did not end on the default framebuffer")
	}
	blits := d.DrawsWith("blit")
	if len(blits) != 1 || blits[0].Textures[0] != r.targets.light.ID() {
		t.Errorf("blit did not show the light target: %+v", blits)
	}
	if s.RenderListChanged() {
		t.Error("render list flag not consumed")
	}
}

func TestPassOrderWithEverythingEnabled(t *testing.T) {
	r, _ := newTestRenderer(t)
	s := scene.NewScene()
	water := scene.NewEntity("water")
	water.SetMeshRenderer(scene.NewMeshRenderer(scene.CreatePlane(10, 10, 1), scene.NewWaterMaterial("water")))
	s.Add(water)
	cube := addMeshEntity(s, "cube", scene.CreateCube(1), nil, mgl32.Vec3{})
	sun := scene.NewEntity("sun")
	sun.SetLight(scene.NewDirectionalLight(core.ColorWhite, 1))
	s.Add(sun)
	r.Debug().Cross(mgl32.Vec3{}, 1, core.ColorRed)
	r.ScheduleMousePicking(1, 1)
	render(t, r, s, selection{cube})

	want := []string{
		PassWaterTargets, PassGBuffer, PassSSAO, PassShadow, PassLighting, PassBackground, PassWater,
		PassSelection, PassGrid, PassBloom, PassBlit, PassDebug, PassPicking,
	}
	if got := r.LastFrame().Passes; strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("passes %v\nwant   %v", got, want)
	}
	if !r.Debug().Empty() {
		t.Error("debug buffer not cleared after the frame")
	}
}

func TestDefaultMaterialUsesWhiteTexture(t *testing.T) {
	r, d := newTestRenderer(t)
	s := scene.NewScene()
	s.Settings.RenderLightGizmos = false
	addMeshEntity(s, "cube", scene.CreateCube(1), nil, mgl32.Vec3{})
	render(t, r, s, nil)

	draws := d.DrawsWith("gbuffer")
	if len(draws) != 1 {
		t.Fatalf("%d gbuffer draws, want 1", len(draws))
	}
	dr := draws[0]
	if dr.Textures[0] != r.targets.white.ID() {
		t.Errorf("albedo unit holds %d, want the white texture", dr.Textures[0])
	}
	if dr.Textures[1] != r.targets.flatNormal.ID() {
		t.Errorf("normal unit holds %d, want the flat normal texture", dr.Textures[1])
	}
	if got := dr.Uniforms["albedo"]; got != core.ColorWhite.Vec4() {
		t.Errorf("albedo factor %v", got)
	}
	if dr.Framebuffer != r.targets.gbuffer.ID() || dr.Call.Instances != 1 {
		t.Errorf("draw went to %d with %d instances", dr.Framebuffer, dr.Call.Instances)
	}
}

func TestMaterialBindsOncePerRun(t *testing.T) {
	r, d := newTestRenderer(t)
	s := scene.NewScene()
	s.Settings.RenderLightGizmos = false
	tex := scene.NewSolidTexture("red", 255, 0, 0, 255)
	mat := scene.NewMaterial("red", core.ColorWhite)
	mat.AlbedoTexture = tex
	addMeshEntity(s, "cube", scene.CreateCube(1), mat, mgl32.Vec3{})
	addMeshEntity(s, "ball", scene.CreateSphere(1, 8, 6), mat, mgl32.Vec3{2, 0, 0})
	render(t, r, s, nil)

	draws := d.DrawsWith("gbuffer")
	if len(draws) != 2 {
		t.Fatalf("%d gbuffer draws, want 2", len(draws))
	}
	if draws[0].Textures[0] != draws[1].Textures[0] || draws[0].Textures[0] == r.targets.white.ID() {
		t.Error("shared material texture not bound for both groups")
	}
	if got := r.LastFrame().Instances; got != 2 {
		t.Errorf("%d instances reported", got)
	}
}

func TestBloomDisabledSkipsBloomPrograms(t *testing.T) {
	r, d := newTestRenderer(t)
	s := scene.NewScene()
	s.Settings.RenderBloom = false
	render(t, r, s, nil)
	for _, label := range []string{"bloom extract", "bloom blur", "bloom composite"} {
		if n := len(d.DrawsWith(label)); n != 0 {
			t.Errorf("%d %s draws with bloom off", n, label)
		}
	}
	if r.LastFrame().Ran(PassBloom) {
		t.Error("bloom pass reported")
	}
}

func TestBloomChain(t *testing.T) {
	r, d := newTestRenderer(t)
	render(t, r, scene.NewScene(), nil)
	levels := len(r.targets.bloomFB[0])
	if n := len(d.DrawsWith("bloom blur")); n != 2*levels {
		t.Errorf("%d blur draws, want %d", n, 2*levels)
	}
	if n := d.MipmapCalls[r.targets.bloom[0].ID()]; n != 1 {
		t.Errorf("bloom0 mipmaps generated %d times", n)
	}
	comp := d.DrawsWith("bloom composite")
	if len(comp) != 1 || comp[0].State.Blend != gpu.BlendAdditive || comp[0].Framebuffer != r.targets.lighting.ID() {
		t.Fatalf("composite draw %+v", comp)
	}
	if got := comp[0].Uniforms["levels"]; got != levels {
		t.Errorf("levels uniform %v, want %d", got, levels)
	}
}

func TestSSAOWritesOnlyOcclusion(t *testing.T) {
	r, d := newTestRenderer(t)
	render(t, r, scene.NewScene(), nil)
	blur := d.DrawsWith("ssao blur")
	if len(blur) != 1 {
		t.Fatalf("%d blur draws", len(blur))
	}
	if blur[0].State.ColorMask != gpu.MaskA || blur[0].Framebuffer != r.targets.ssaoBlurFB.ID() {
		t.Errorf("blur wrote mask %b to %d", blur[0].State.ColorMask, blur[0].Framebuffer)
	}
	ssao := d.DrawsWith("ssao")
	if kernel, ok := ssao[0].Uniforms["kernel"].([]mgl32.Vec3); !ok || len(kernel) != ssaoKernelSize {
		t.Errorf("kernel uniform %T", ssao[0].Uniforms["kernel"])
	}

	d.ResetLog()
	s := scene.NewScene()
	s.Settings.RenderSSAO = false
	render(t, r, s, nil)
	if len(d.DrawsWith("ssao")) != 0 || len(d.DrawsWith("ssao blur")) != 0 {
		t.Error("ssao ran while disabled")
	}
}

func TestPointLightCullingAndProxies(t *testing.T) {
	r, d := newTestRenderer(t)
	s := scene.NewScene()
	s.Settings.RenderLightGizmos = false
	add := func(pos mgl32.Vec3, rng float32) {
		e := scene.NewEntity("lamp")
		e.SetLight(scene.NewPointLight(core.ColorWhite, 1, rng))
		e.SetPosition(pos)
		s.Add(e)
	}
	add(mgl32.Vec3{0, 0, 0}, 1)     // in view, camera outside
	add(mgl32.Vec3{0, 2, 6}, 3)     // around the camera
	add(mgl32.Vec3{0, 0, 200}, 1)   // behind the camera
	add(mgl32.Vec3{0, -500, 0}, 10) // below the frustum
	render(t, r, s, nil)

	rep := r.LastFrame()
	if rep.LightsDrawn != 2 || rep.LightsCulled != 2 {
		t.Errorf("drawn %d culled %d, want 2 and 2", rep.LightsDrawn, rep.LightsCulled)
	}
	draws := d.DrawsWith("point light")
	if len(draws) != 2 {
		t.Fatalf("%d point light draws", len(draws))
	}
	proxy, quad := draws[0], draws[1]
	if proxy.Uniforms["proxy"] != true || proxy.State.Cull != gpu.CullFront || proxy.State.DepthFunc != gpu.DepthGEqual {
		t.Errorf("distant light not drawn as a front-culled proxy: %+v", proxy.State)
	}
	if quad.Uniforms["proxy"] != false || quad.State.DepthFunc != gpu.DepthGreater {
		t.Errorf("light around the camera not drawn fullscreen: %+v", quad.State)
	}
	for _, dr := range draws {
		if dr.State.DepthWrite || dr.State.Blend != gpu.BlendAdditive {
			t.Errorf("light draw state %+v", dr.State)
		}
	}
}

func TestDirectionalLightFeedsSun(t *testing.T) {
	r, d := newTestRenderer(t)
	s := scene.NewScene()
	sun := scene.NewEntity("sun")
	sun.SetLight(scene.NewDirectionalLight(core.ColorWhite, 2))
	s.Add(sun)
	render(t, r, s, nil)
	draws := d.DrawsWith("directional light")
	if len(draws) != 1 {
		t.Fatalf("%d directional draws", len(draws))
	}
	if got := draws[0].Uniforms["lightColor"]; got != (mgl32.Vec3{2, 2, 2}) {
		t.Errorf("light color %v", got)
	}
}

func TestBackgroundUsesEnvironmentOnlyWhenBaked(t *testing.T) {
	r, d := newTestRenderer(t)
	s := scene.NewScene()
	render(t, r, s, nil)
	bg := d.DrawsWith("background")
	if len(bg) != 1 || bg[0].Uniforms["useEnvironment"] != false {
		t.Fatalf("background without an image: %+v", bg)
	}
	if bg[0].State.DepthFunc != gpu.DepthLEqual || bg[0].Framebuffer != r.targets.lighting.ID() {
		t.Errorf("background state %+v", bg[0].State)
	}

	sky := scene.NewEntity("sky")
	sky.SetEnvironment(scene.NewEnvironment(scene.NewSolidTexture("sky", 10, 20, 200, 255)))
	s.Add(sky)
	d.ResetLog()
	render(t, r, s, nil)
	if bg := d.DrawsWith("background"); bg[0].Uniforms["useEnvironment"] != true {
		t.Error("background ignores the baked environment")
	}
}

func TestEnvironmentBakedOncePerChange(t *testing.T) {
	r, d := newTestRenderer(t)
	envID := r.targets.environment.ID()
	base := d.MipmapCalls[envID]

	s := scene.NewScene()
	sky := scene.NewEntity("sky")
	env := scene.NewEnvironment(scene.NewSolidTexture("sky", 10, 20, 200, 255))
	sky.SetEnvironment(env)
	s.Add(sky)

	render(t, r, s, nil)
	if !r.LastFrame().EnvironmentBaked {
		t.Error("first frame did not bake")
	}
	if got := d.MipmapCalls[envID] - base; got != 1 {
		t.Errorf("environment mipmaps generated %d times, want 1", got)
	}
	for _, label := range []string{"equirect to cube", "cube downsample", "irradiance"} {
		if n := len(d.DrawsWith(label)); n != gpu.CubeFaces {
			t.Errorf("%d %s draws, want one per face", n, label)
		}
	}
	if s.EnvironmentChanged() || env.NeedsProcessing() {
		t.Error("environment flags not cleared")
	}

	render(t, r, s, nil)
	render(t, r, s, nil)
	if got := d.MipmapCalls[envID] - base; got != 1 {
		t.Errorf("unchanged environment re-baked: %d mipmap calls", got)
	}

	env.SetImage(scene.NewSolidTexture("dusk", 200, 100, 20, 255))
	render(t, r, s, nil)
	if got := d.MipmapCalls[envID] - base; got != 2 {
		t.Errorf("new image not baked: %d mipmap calls", got)
	}

	env.SetImage(nil)
	render(t, r, s, nil)
	if r.env.baked {
		t.Error("removing the image left the baked environment")
	}
}

func TestBakeReleasesTemporaries(t *testing.T) {
	r, d := newTestRenderer(t)
	s := scene.NewScene()
	render(t, r, s, nil)
	live := d.Live()

	sky := scene.NewEntity("sky")
	sky.SetEnvironment(scene.NewEnvironment(scene.NewSolidTexture("sky", 1, 2, 3, 255)))
	s.Add(sky)
	render(t, r, s, nil)
	after := d.Live()
	// The sky entity has no mesh, so only the bake could have allocated.
	if after.Textures != live.Textures || after.Framebuffers != live.Framebuffers {
		t.Errorf("bake leaked: %+v -> %+v", live, after)
	}
}

func TestMousePickConsumedOnce(t *testing.T) {
	r, _ := newTestRenderer(t)
	s := scene.NewScene()
	s.Settings.RenderLightGizmos = false
	cube := addMeshEntity(s, "cube", scene.CreateCube(1), nil, mgl32.Vec3{})

	if _, ok := r.MousePickingResult(); ok {
		t.Fatal("result available before any pick")
	}
	r.ScheduleMousePicking(testSize/2, testSize/2)
	render(t, r, s, nil)
	e, ok := r.MousePickingResult()
	if !ok || e != cube {
		t.Fatalf("pick = %v, %v; want the cube", e, ok)
	}
	if _, ok := r.MousePickingResult(); ok {
		t.Error("pick result returned twice")
	}
	render(t, r, s, nil)
	if _, ok := r.MousePickingResult(); ok {
		t.Error("a frame without a scheduled pick produced a result")
	}
	if r.LastFrame().Ran(PassPicking) {
		t.Error("picking ran without a request")
	}
}

func TestMousePickSkipsUnrepresentableIDs(t *testing.T) {
	r, d := newTestRenderer(t)
	s := scene.NewScene()
	s.Settings.RenderLightGizmos = false
	cube := addMeshEntity(s, "cube", scene.CreateCube(1), nil, mgl32.Vec3{})
	cube.ID = maxPickID + 1
	r.ScheduleMousePicking(testSize/2, testSize/2)
	render(t, r, s, nil)
	if n := len(d.DrawsWith("picking")); n != 0 {
		t.Errorf("%d picking draws for an id past %d", n, maxPickID)
	}
	if e, ok := r.MousePickingResult(); !ok || e != nil {
		t.Errorf("pick = %v, %v; want the background", e, ok)
	}

	cube.ID = maxPickID
	r.ScheduleMousePicking(testSize/2, testSize/2)
	render(t, r, s, nil)
	if e, _ := r.MousePickingResult(); e != cube {
		t.Errorf("pick at the largest exact id = %v, want the cube", e)
	}
}

func TestMousePickBackground(t *testing.T) {
	r, _ := newTestRenderer(t)
	s := scene.NewScene()
	addMeshEntity(s, "cube", scene.CreateCube(1), nil, mgl32.Vec3{})
	r.ScheduleMousePicking(0, 0)
	render(t, r, s, nil)
	e, ok := r.MousePickingResult()
	if !ok || e != nil {
		t.Errorf("background pick = %v, %v; want nil, true", e, ok)
	}
}

func TestMousePickOutsideViewport(t *testing.T) {
	r, _ := newTestRenderer(t)
	r.ScheduleMousePicking(-5, 10*testSize)
	render(t, r, scene.NewScene(), nil)
	if e, ok := r.MousePickingResult(); !ok || e != nil {
		t.Errorf("out of range pick = %v, %v", e, ok)
	}
}

func TestSelectionOutline(t *testing.T) {
	r, d := newTestRenderer(t)
	s := scene.NewScene()
	cube := addMeshEntity(s, "cube", scene.CreateCube(1), nil, mgl32.Vec3{})
	lamp := scene.NewEntity("lamp")
	lamp.SetLight(scene.NewPointLight(core.ColorWhite, 1, 4))
	s.Add(lamp)

	render(t, r, s, selection{})
	if r.LastFrame().Ran(PassSelection) {
		t.Error("outline drawn for an empty selection")
	}

	d.ResetLog()
	render(t, r, s, selection{cube, lamp})
	masks := d.DrawsWith("selection mask")
	if len(masks) != 2 {
		t.Fatalf("%d mask draws, want cube and gizmo", len(masks))
	}
	if got := masks[1].Uniforms["model"]; got != gizmoModel(lamp) {
		t.Errorf("light mask drawn with %v", got)
	}
	outline := d.DrawsWith("selection outline")
	if len(outline) != 1 || outline[0].Uniforms["outlineColor"] != s.Settings.SelectionColor.Vec4() {
		t.Errorf("outline draw %+v", outline)
	}
}

func TestWaterViewsClipAtPlane(t *testing.T) {
	r, d := newTestRenderer(t)
	s := scene.NewScene()
	water := scene.NewEntity("water")
	water.SetMeshRenderer(scene.NewMeshRenderer(scene.CreatePlane(10, 10, 1), scene.NewWaterMaterial("water")))
	s.Add(water)
	addMeshEntity(s, "rock", scene.CreateCube(1), nil, mgl32.Vec3{0, 0.5, 0})
	render(t, r, s, nil)

	fwd := d.DrawsWith("forward")
	if len(fwd) < 2 {
		t.Fatalf("%d forward draws", len(fwd))
	}
	planes := map[gpu.FramebufferID]any{}
	for _, dr := range fwd {
		if !dr.State.ClipPlane {
			t.Error("forward draw without the clip plane")
		}
		planes[dr.Framebuffer] = dr.Uniforms["clipPlane"]
	}
	if planes[r.targets.reflectFB.ID()] != (mgl32.Vec4{0, 1, 0, 0}) {
		t.Errorf("reflection clip %v", planes[r.targets.reflectFB.ID()])
	}
	if planes[r.targets.refractFB.ID()] != (mgl32.Vec4{0, -1, 0, 0}) {
		t.Errorf("refraction clip %v", planes[r.targets.refractFB.ID()])
	}
	if n := len(d.DrawsWith("water")); n != 1 {
		t.Errorf("%d water surface draws", n)
	}
	for _, dr := range d.DrawsWith("gbuffer") {
		if dr.State.ClipPlane {
			t.Error("gbuffer draw clipped")
		}
	}
}

func TestShowTexture(t *testing.T) {
	r, d := newTestRenderer(t)
	if err := r.ShowTexture("nope"); err == nil {
		t.Fatal("unknown target accepted")
	}
	if err := r.ShowTexture("roughness"); err != nil {
		t.Fatal(err)
	}
	r.ShowLod(99)
	render(t, r, scene.NewScene(), nil)
	blit := d.DrawsWith("blit")[0]
	if blit.Textures[0] != r.targets.specular.ID() || blit.Uniforms["mode"] != int(viewAlpha) {
		t.Errorf("blit shows %d in mode %v", blit.Textures[0], blit.Uniforms["mode"])
	}
	if blit.Uniforms["lod"] != float32(0) {
		t.Errorf("lod %v not clamped to the target", blit.Uniforms["lod"])
	}
	textures := r.Textures()
	if textures["roughness"] != uint32(r.targets.specular.ID()) {
		t.Errorf("Textures()[roughness] = %d", textures["roughness"])
	}
}

func TestResizeRoundTripKeepsResourceCount(t *testing.T) {
	r, d := newTestRenderer(t)
	render(t, r, scene.NewScene(), nil)
	live := d.Live()
	if err := r.Resize(200, 30); err != nil {
		t.Fatal(err)
	}
	if w, h := r.Size(); w != 200 || h != 30 {
		t.Errorf("size %dx%d", w, h)
	}
	if err := r.Resize(testSize, testSize); err != nil {
		t.Fatal(err)
	}
	if d.Live() != live {
		t.Errorf("live resources %+v after round trip, want %+v", d.Live(), live)
	}
	if len(d.DeleteErrors) > 0 {
		t.Errorf("double frees: %v", d.DeleteErrors)
	}
}

func TestIncompleteFramebufferAbortsFrame(t *testing.T) {
	r, _ := newTestRenderer(t)
	r.targets.gbuffer.Destroy()
	err := r.Render(scene.NewScene(), testCamera(), nil)
	if !errors.Is(err, gpu.ErrIncompleteFramebuffer) {
		t.Fatalf("err = %v, want ErrIncompleteFramebuffer", err)
	}
	if !strings.Contains(err.Error(), "gbuffer") {
		t.Errorf("error %q does not name the pass", err)
	}
	if r.LastFrame().Ran(PassBlit) {
		t.Error("frame continued past the failed pass")
	}
}

func TestShaderFailureReleasesEverything(t *testing.T) {
	d := gputest.New()
	d.FailProgram = "point light"
	r := New(d, DefaultConfig())
	err := r.Initialize()
	if !errors.Is(err, gpu.ErrShaderCompile) {
		t.Fatalf("err = %v, want ErrShaderCompile", err)
	}
	if !strings.Contains(err.Error(), "point light") {
		t.Errorf("error %q does not name the program", err)
	}
	if n := d.Live().Total(); n != 0 {
		t.Errorf("%d resources alive after failed initialize: %+v", n, d.Live())
	}
	if err := r.Resize(10, 10); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Resize after failure: %v", err)
	}
}

func TestFinalizeIdempotent(t *testing.T) {
	d := gputest.New()
	r := New(d, DefaultConfig())
	if err := r.Initialize(); err != nil {
		t.Fatal(err)
	}
	if err := r.Resize(32, 32); err != nil {
		t.Fatal(err)
	}
	s := scene.NewScene()
	addMeshEntity(s, "cube", scene.CreateCube(1), nil, mgl32.Vec3{})
	if err := r.Render(s, testCamera(), nil); err != nil {
		t.Fatal(err)
	}
	r.Finalize()
	r.Finalize()
	if n := d.Live().Total(); n != 0 {
		t.Errorf("%d resources alive: %+v", n, d.Live())
	}
	if len(d.DeleteErrors) > 0 {
		t.Errorf("double frees: %v", d.DeleteErrors)
	}
	if err := r.Render(s, testCamera(), nil); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Render after Finalize: %v", err)
	}
}

func TestTimerQueriesAlternate(t *testing.T) {
	r, d := newTestRenderer(t)
	d.TimerNanos = uint64(3 * time.Millisecond)
	s := scene.NewScene()
	render(t, r, s, nil)
	if len(d.TimerReads) != 0 {
		t.Error("first frame read a timer")
	}
	render(t, r, s, nil)
	render(t, r, s, nil)

	b := d.TimerBegins
	if len(b) != 3 || b[0] == b[1] || b[0] != b[2] {
		t.Fatalf("timer begins %v, want q0 q1 q0", b)
	}
	if len(d.TimerReads) != 2 || d.TimerReads[0] != b[0] || d.TimerReads[1] != b[1] {
		t.Errorf("timer reads %v, want %v %v", d.TimerReads, b[0], b[1])
	}
	if got := r.GPUFrameTime(); got != 3*time.Millisecond {
		t.Errorf("GPU frame time %v", got)
	}
}

func TestRebuildOnlyWhenChanged(t *testing.T) {
	r, _ := newTestRenderer(t)
	s := scene.NewScene()
	cube := addMeshEntity(s, "cube", scene.CreateCube(1), nil, mgl32.Vec3{})
	render(t, r, s, nil)
	if !r.LastFrame().Rebuilt {
		t.Fatal("first frame did not batch")
	}
	render(t, r, s, nil)
	if r.LastFrame().Rebuilt {
		t.Error("unchanged scene re-batched")
	}
	cube.SetPosition(mgl32.Vec3{1, 0, 0})
	render(t, r, s, nil)
	if !r.LastFrame().Rebuilt {
		t.Error("moved entity not re-batched")
	}
	s.Settings.RenderLightGizmos = !s.Settings.RenderLightGizmos
	render(t, r, s, nil)
	if !r.LastFrame().Rebuilt {
		t.Error("gizmo toggle not re-batched")
	}
	render(t, r, scene.NewScene(), nil)
	if !r.LastFrame().Rebuilt {
		t.Error("switching scenes not re-batched")
	}
}

func TestRenderBeforeResize(t *testing.T) {
	d := gputest.New()
	r := New(d, DefaultConfig())
	if err := r.Initialize(); err != nil {
		t.Fatal(err)
	}
	defer r.Finalize()
	if err := r.Render(scene.NewScene(), testCamera(), nil); !errors.Is(err, gpu.ErrIncompleteFramebuffer) {
		t.Errorf("err = %v", err)
	}
}

func TestLightRotationKeepsBatch(t *testing.T) {
	r, d := newTestRenderer(t)
	s := scene.NewScene()
	for i := 0; i < 3; i++ {
		addMeshEntity(s, "cube", scene.CreateCube(1), nil, mgl32.Vec3{float32(i), 0, 0})
	}
	sun := scene.NewEntity("sun")
	sun.SetLight(scene.NewDirectionalLight(core.ColorWhite, 1))
	s.Add(sun)
	render(t, r, s, nil)
	live := d.Live()

	for i := 0; i < 10; i++ {
		sun.SetRotation(mgl32.QuatRotate(float32(i)*0.1, mgl32.Vec3{1, 0, 0}))
		render(t, r, s, nil)
		if r.LastFrame().Rebuilt {
			t.Fatalf("frame %d re-batched after a light rotation", i)
		}
	}
	if d.Live() != live {
		t.Errorf("live resources changed: %+v -> %+v", live, d.Live())
	}

	l, _ := sun.Light()
	l.Color = core.ColorRed
	d.ResetLog()
	render(t, r, s, nil)
	if r.LastFrame().Rebuilt {
		t.Error("color edit re-batched")
	}
	found := false
	for _, dr := range d.DrawsWith("gbuffer") {
		if dr.Uniforms["albedo"] == core.ColorRed.Vec4() {
			found = true
		}
	}
	if !found {
		t.Error("gizmo not drawn with the new light color")
	}
}

func TestLightMoveRebatchesOnlyWithGizmos(t *testing.T) {
	r, _ := newTestRenderer(t)
	s := scene.NewScene()
	lamp := scene.NewEntity("lamp")
	lamp.SetLight(scene.NewPointLight(core.ColorWhite, 1, 5))
	s.Add(lamp)
	render(t, r, s, nil)

	lamp.SetPosition(mgl32.Vec3{1, 1, 0})
	render(t, r, s, nil)
	if !r.LastFrame().Rebuilt {
		t.Error("moved gizmo not re-batched")
	}

	s.Settings.RenderLightGizmos = false
	render(t, r, s, nil)
	lamp.SetPosition(mgl32.Vec3{2, 1, 0})
	render(t, r, s, nil)
	if r.LastFrame().Rebuilt {
		t.Error("moving a light re-batched with gizmos hidden")
	}
}

func TestShadowPassFollowsToggle(t *testing.T) {
	r, d := newTestRenderer(t)
	s := scene.NewScene()
	addMeshEntity(s, "cube", scene.CreateCube(1), nil, mgl32.Vec3{})
	sun := scene.NewEntity("sun")
	sun.SetLight(scene.NewDirectionalLight(core.ColorWhite, 1))
	sun.SetRotation(mgl32.QuatRotate(-1, mgl32.Vec3{1, 0, 0}))
	s.Add(sun)
	render(t, r, s, nil)

	want := []string{PassGBuffer, PassSSAO, PassShadow, PassLighting, PassBackground, PassGrid, PassBloom, PassBlit}
	if got := r.LastFrame().Passes; strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("passes %v\nwant   %v", got, want)
	}
	casters := d.DrawsWith("shadow")
	if len(casters) != 1 {
		t.Fatalf("%d shadow draws, want one for the cube and none for the gizmo", len(casters))
	}
	if casters[0].Framebuffer != r.targets.shadowFB.ID() || casters[0].Viewport[2] != r.cfg.ShadowMapSize {
		t.Errorf("shadow draw went to %d with viewport %v", casters[0].Framebuffer, casters[0].Viewport)
	}
	lit := d.DrawsWith("directional light")
	if len(lit) != 1 || lit[0].Uniforms["shadowed"] != true || lit[0].Textures[3] != r.targets.shadowMap.ID() {
		t.Fatalf("directional light not shadowed: %+v", lit)
	}

	s.Settings.RenderShadows = false
	d.ResetLog()
	render(t, r, s, nil)
	if r.LastFrame().Ran(PassShadow) || len(d.DrawsWith("shadow")) != 0 {
		t.Error("shadow pass ran while disabled")
	}
	if lit := d.DrawsWith("directional light"); lit[0].Uniforms["shadowed"] != false {
		t.Error("disabled shadows still sampled")
	}
}

func TestShadowPassNeedsDirectionalLight(t *testing.T) {
	r, d := newTestRenderer(t)
	s := scene.NewScene()
	addMeshEntity(s, "cube", scene.CreateCube(1), nil, mgl32.Vec3{})
	lamp := scene.NewEntity("lamp")
	lamp.SetLight(scene.NewPointLight(core.ColorWhite, 1, 5))
	s.Add(lamp)
	render(t, r, s, nil)
	if r.LastFrame().Ran(PassShadow) || len(d.DrawsWith("shadow")) != 0 {
		t.Error("shadow pass ran without a directional light")
	}
}

func TestOnlyFirstDirectionalLightCastsShadows(t *testing.T) {
	r, d := newTestRenderer(t)
	s := scene.NewScene()
	for _, name := range []string{"sun", "moon"} {
		e := scene.NewEntity(name)
		e.SetLight(scene.NewDirectionalLight(core.ColorWhite, 1))
		s.Add(e)
	}
	render(t, r, s, nil)
	lit := d.DrawsWith("directional light")
	if len(lit) != 2 {
		t.Fatalf("%d directional draws", len(lit))
	}
	if lit[0].Uniforms["shadowed"] != true || lit[1].Uniforms["shadowed"] != false {
		t.Errorf("shadowed = %v, %v", lit[0].Uniforms["shadowed"], lit[1].Uniforms["shadowed"])
	}
}

func TestShadowMatrix(t *testing.T) {
	center := mgl32.Vec3{3, 1, -2}
	tests := []struct {
		name string
		dir  mgl32.Vec3
	}{
		{"slanted", mgl32.Vec3{-0.3, -1, -0.2}.Normalize()},
		{"straight down", mgl32.Vec3{0, -1, 0}},
	}
	for _, tt := range tests {
		m := shadowMatrix(center, tt.dir, 30)
		at := m.Mul4x1(center.Vec4(1))
		if !at.Vec3().ApproxEqualThreshold(mgl32.Vec3{}, 1e-4) {
			t.Errorf("%s: camera position maps to %v, want the volume center", tt.name, at)
		}
		deeper := m.Mul4x1(center.Add(tt.dir.Mul(10)).Vec4(1))
		if deeper.Z() <= at.Z() {
			t.Errorf("%s: depth does not grow along the light: %v then %v", tt.name, at.Z(), deeper.Z())
		}
		side := m.Mul4x1(center.Add(tt.dir.Cross(mgl32.Vec3{1, 0, 0}).Normalize().Mul(30)).Vec4(1))
		if x, y := side.X(), side.Y(); x*x+y*y < 0.99 || x*x+y*y > 1.01 {
			t.Errorf("%s: extent edge maps to %v", tt.name, side)
		}
	}
}
