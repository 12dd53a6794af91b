package renderer

import (
	"testing"

	"deferred-renderer/internal/gpu"
	"deferred-renderer/internal/gpu/gputest"
)

func newTestTargets(t *testing.T) (*renderTargets, *gputest.Device) {
	t.Helper()
	d := gputest.New()
	rt := newRenderTargets(d, Config{}.normalized())
	if err := rt.initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return rt, d
}

func TestResizeSizes(t *testing.T) {
	rt, _ := newTestTargets(t)
	if err := rt.resize(100, 50); err != nil {
		t.Fatalf("resize: %v", err)
	}
	for _, tex := range []*gpu.Texture{rt.albedo, rt.specular, rt.normal, rt.light, rt.depth, rt.ssao, rt.selection, rt.picking} {
		if tex.Width() != 100 || tex.Height() != 50 {
			t.Errorf("%s is %dx%d, want 100x50", tex.Label(), tex.Width(), tex.Height())
		}
	}
	for _, tex := range []*gpu.Texture{rt.reflection, rt.reflectionDepth, rt.refraction, rt.refractionDepth} {
		if tex.Width() != 50 || tex.Height() != 25 {
			t.Errorf("%s is %dx%d, want 50x25", tex.Label(), tex.Width(), tex.Height())
		}
	}
	for i := range rt.bloomFB {
		if got := len(rt.bloomFB[i]); got != 5 {
			t.Fatalf("bloom%d has %d level framebuffers, want 5", i, got)
		}
		for k, fb := range rt.bloomFB[i] {
			w, h := fb.Size()
			if w != gpu.LevelDim(100, k) || h != gpu.LevelDim(50, k) {
				t.Errorf("bloom%d level %d is %dx%d", i, k, w, h)
			}
		}
	}
}

func TestResizeClampsToOnePixel(t *testing.T) {
	rt, _ := newTestTargets(t)
	if err := rt.resize(0, -3); err != nil {
		t.Fatalf("resize: %v", err)
	}
	if rt.width != 1 || rt.height != 1 {
		t.Fatalf("size %dx%d, want 1x1", rt.width, rt.height)
	}
	if n := len(rt.bloomFB[0]); n != 1 {
		t.Errorf("bloom levels = %d on a 1x1 viewport", n)
	}
	if w, h := rt.reflection.Width(), rt.reflection.Height(); w != 1 || h != 1 {
		t.Errorf("reflection %dx%d", w, h)
	}
}

func TestResizeSameSizeKeepsTargets(t *testing.T) {
	rt, d := newTestTargets(t)
	if err := rt.resize(64, 64); err != nil {
		t.Fatal(err)
	}
	albedo, live := rt.albedo.ID(), d.Live()
	if err := rt.resize(64, 64); err != nil {
		t.Fatal(err)
	}
	if rt.albedo.ID() != albedo {
		t.Error("same-size resize re-created the targets")
	}
	if d.Live() != live {
		t.Errorf("live resources changed: %+v -> %+v", live, d.Live())
	}
}

func TestGBufferLayout(t *testing.T) {
	rt, d := newTestTargets(t)
	if err := rt.resize(32, 32); err != nil {
		t.Fatal(err)
	}
	att := d.Attachments(rt.gbuffer.ID())
	want := map[gpu.AttachmentPoint]*gpu.Texture{
		gpu.Color0:          rt.albedo,
		gpu.Color1:          rt.specular,
		gpu.Color2:          rt.normal,
		gpu.Color3:          rt.light,
		gpu.DepthAttachment: rt.depth,
	}
	for p, tex := range want {
		if att[p] != tex.ID() {
			t.Errorf("%v holds %d, want %s", p, att[p], tex.Label())
		}
	}
	if att := d.Attachments(rt.ssaoBlurFB.ID()); att[gpu.Color0] != rt.albedo.ID() {
		t.Error("ssao blur does not write the albedo target")
	}
	if att := d.Attachments(rt.lighting.ID()); att[gpu.Color0] != rt.light.ID() || att[gpu.DepthAttachment] != rt.depth.ID() {
		t.Error("lighting framebuffer does not share the gbuffer depth")
	}
}

func TestShadowMapSurvivesResize(t *testing.T) {
	rt, d := newTestTargets(t)
	if err := rt.resize(32, 32); err != nil {
		t.Fatal(err)
	}
	shadow := rt.shadowMap.ID()
	if w, h := rt.shadowFB.Size(); w != 2048 || h != 2048 {
		t.Errorf("shadow framebuffer %dx%d, want 2048x2048", w, h)
	}
	if desc := rt.shadowMap.Desc(); desc.Format != gpu.FormatDepth32F || !desc.Compare {
		t.Errorf("shadow map desc %+v", desc)
	}
	if err := rt.resize(48, 16); err != nil {
		t.Fatal(err)
	}
	if rt.shadowMap.ID() != shadow {
		t.Error("resize re-created the shadow map")
	}
	att := d.Attachments(rt.shadowFB.ID())
	if len(att) != 1 || att[gpu.DepthAttachment] != shadow {
		t.Errorf("shadow framebuffer attachments %v", att)
	}
}

func TestFinalizeReleasesEverything(t *testing.T) {
	rt, d := newTestTargets(t)
	if err := rt.resize(16, 16); err != nil {
		t.Fatal(err)
	}
	rt.finalize()
	rt.finalize()
	if n := d.Live().Total(); n != 0 {
		t.Errorf("%d resources alive after finalize: %+v", n, d.Live())
	}
	if len(d.DeleteErrors) > 0 {
		t.Errorf("double frees: %v", d.DeleteErrors)
	}
}

func TestNamedTargets(t *testing.T) {
	rt, _ := newTestTargets(t)
	if len(rt.named()) != 0 {
		t.Error("targets listed before the first resize")
	}
	if err := rt.resize(8, 8); err != nil {
		t.Fatal(err)
	}
	named := rt.named()
	for _, name := range []string{"albedo", "occlusion", "specular", "roughness", "normal", "light", "depth", "ssao", "bloom0", "bloom1", "reflection", "refraction", "selection", "picking"} {
		if _, ok := named[name]; !ok {
			t.Errorf("missing target %q", name)
		}
	}
	if !named[defaultView].toneMap {
		t.Error("the default view is not tone mapped")
	}
}
