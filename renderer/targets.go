package renderer

import (
	"fmt"
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl32"

	"deferred-renderer/internal/gpu"
)

// viewMode selects how the final blit visualizes a target.
type viewMode int

const (
	viewColor viewMode = iota
	viewAlpha
	viewDepth
	viewRed
)

// namedTarget is one entry of the debug texture enumeration.
type namedTarget struct {
	tex     *gpu.Texture
	mode    viewMode
	toneMap bool
}

// defaultView is the target blitted when nothing else was selected.
const defaultView = "light"

// renderTargets owns every texture and framebuffer the passes render into.
type renderTargets struct {
	device gpu.Device
	cfg    Config

	width, height int

	// Size independent, created by initialize.
	white, black, flatNormal     *gpu.Texture
	noise                        *gpu.Texture
	waterNormal, waterDistortion *gpu.Texture
	environment, irradiance      *gpu.Texture
	shadowMap                    *gpu.Texture
	kernel                       []mgl32.Vec3
	longLived                    []*gpu.Texture

	// Viewport sized, re-created by resize.
	albedo, specular, normal, light, depth *gpu.Texture
	ssao                                   *gpu.Texture
	bloom                                  [2]*gpu.Texture
	reflection, reflectionDepth            *gpu.Texture
	refraction, refractionDepth            *gpu.Texture
	selection                              *gpu.Texture
	picking, pickingDepth                  *gpu.Texture

	gbuffer    *gpu.Framebuffer
	ssaoFB     *gpu.Framebuffer
	ssaoBlurFB *gpu.Framebuffer
	lighting   *gpu.Framebuffer
	bloomFB    [2][]*gpu.Framebuffer
	reflectFB  *gpu.Framebuffer
	refractFB  *gpu.Framebuffer
	selectFB   *gpu.Framebuffer
	pickingFB  *gpu.Framebuffer
	shadowFB   *gpu.Framebuffer

	viewportTextures []*gpu.Texture
	framebuffers     []*gpu.Framebuffer
}

func newRenderTargets(d gpu.Device, cfg Config) *renderTargets {
	return &renderTargets{device: d, cfg: cfg}
}

// ── initialize / finalize ────────────────────────────────────────────────────

func (t *renderTargets) initialize() error {
	var err error
	pixel := func(label string, r, g, b, a byte) *gpu.Texture {
		tex := t.longLivedTexture(&err, gpu.TextureDesc{
			Label: label, Format: gpu.FormatRGBA8, Width: 1, Height: 1, Wrap: gpu.WrapRepeat,
		})
		if tex != nil && err == nil {
			err = tex.Write([]byte{r, g, b, a})
		}
		return tex
	}
	t.white = pixel("default white", 255, 255, 255, 255)
	t.black = pixel("default black", 0, 0, 0, 255)
	t.flatNormal = pixel("default normal", 128, 128, 255, 255)

	n := t.cfg.NoiseSize
	t.noise = t.longLivedTexture(&err, gpu.TextureDesc{
		Label: "ssao noise", Format: gpu.FormatRGBA16F, Width: n, Height: n,
		Filter: gpu.FilterNearest, Wrap: gpu.WrapRepeat,
	})
	if err == nil {
		err = t.noise.WriteFloat(generateNoise(n, ssaoNoiseSeed))
	}
	t.kernel = generateKernel(t.cfg.KernelSize, ssaoKernelSeed)

	normalPx, distortPx := waterPatterns(waterPatternSize)
	t.waterNormal = t.longLivedTexture(&err, waterDesc("water normal"))
	t.waterDistortion = t.longLivedTexture(&err, waterDesc("water distortion"))
	if err == nil {
		err = t.waterNormal.Write(normalPx)
	}
	if err == nil {
		err = t.waterDistortion.Write(distortPx)
	}
	if err == nil {
		t.waterNormal.GenerateMipmaps()
		t.waterDistortion.GenerateMipmaps()
	}

	env := t.cfg.EnvironmentSize
	t.environment = t.longLivedTexture(&err, gpu.TextureDesc{
		Label: "environment", Kind: gpu.TextureCube, Format: gpu.FormatRGBA16F,
		Width: env, Height: env, Levels: gpu.MipCount(env), Filter: gpu.FilterTrilinear,
	})
	irr := t.cfg.IrradianceSize
	t.irradiance = t.longLivedTexture(&err, gpu.TextureDesc{
		Label: "irradiance", Kind: gpu.TextureCube, Format: gpu.FormatRGBA16F,
		Width: irr, Height: irr,
	})
	sm := t.cfg.ShadowMapSize
	t.shadowMap = t.longLivedTexture(&err, gpu.TextureDesc{
		Label: "shadow map", Format: gpu.FormatDepth32F, Width: sm, Height: sm, Compare: true,
	})
	if err != nil {
		t.finalize()
		return fmt.Errorf("render targets: %w", err)
	}
	return nil
}

func (t *renderTargets) longLivedTexture(err *error, desc gpu.TextureDesc) *gpu.Texture {
	if *err != nil {
		return nil
	}
	tex, e := gpu.NewTexture(t.device, desc)
	if e != nil {
		*err = e
		return nil
	}
	t.longLived = append(t.longLived, tex)
	return tex
}

// finalize releases everything. Calling it again is a no-op.
func (t *renderTargets) finalize() {
	t.releaseViewport()
	for _, tex := range t.longLived {
		tex.Destroy()
	}
	t.longLived = nil
}

// ── resize ───────────────────────────────────────────────────────────────────

// resize re-creates every viewport-sized target at width x height, clamped
// to at least one pixel. Every framebuffer is validated before it returns.
func (t *renderTargets) resize(width, height int) error {
	width, height = max(width, 1), max(height, 1)
	if t.allocated() && width == t.width && height == t.height {
		return nil
	}
	t.releaseViewport()
	t.width, t.height = width, height

	var err error
	rgba16 := func(label string, w, h int) *gpu.Texture {
		return t.viewportTexture(&err, gpu.TextureDesc{Label: label, Format: gpu.FormatRGBA16F, Width: w, Height: h})
	}
	depth := func(label string, w, h int) *gpu.Texture {
		return t.viewportTexture(&err, gpu.TextureDesc{Label: label, Format: gpu.FormatDepth32F, Width: w, Height: h, Filter: gpu.FilterNearest})
	}

	t.albedo = t.viewportTexture(&err, gpu.TextureDesc{Label: "albedo", Format: gpu.FormatRGBA8, Width: width, Height: height})
	t.specular = t.viewportTexture(&err, gpu.TextureDesc{Label: "specular", Format: gpu.FormatRGBA8, Width: width, Height: height})
	t.normal = t.viewportTexture(&err, gpu.TextureDesc{Label: "normal", Format: gpu.FormatRGBA16F, Width: width, Height: height, Filter: gpu.FilterNearest})
	t.light = rgba16("light", width, height)
	t.depth = depth("depth", width, height)
	t.ssao = t.viewportTexture(&err, gpu.TextureDesc{Label: "ssao", Format: gpu.FormatR8, Width: width, Height: height})
	bloomLevels := t.bloomLevels()
	for i := range t.bloom {
		t.bloom[i] = t.viewportTexture(&err, gpu.TextureDesc{
			Label: fmt.Sprintf("bloom%d", i), Format: gpu.FormatRGBA16F,
			Width: width, Height: height, Levels: bloomLevels, Filter: gpu.FilterTrilinear,
		})
	}
	ww, wh := max(width/t.cfg.WaterDivisor, 1), max(height/t.cfg.WaterDivisor, 1)
	t.reflection = rgba16("reflection", ww, wh)
	t.reflectionDepth = depth("reflection depth", ww, wh)
	t.refraction = rgba16("refraction", ww, wh)
	t.refractionDepth = depth("refraction depth", ww, wh)
	t.selection = t.viewportTexture(&err, gpu.TextureDesc{Label: "selection", Format: gpu.FormatR8, Width: width, Height: height})
	t.picking = t.viewportTexture(&err, gpu.TextureDesc{Label: "picking", Format: gpu.FormatR32F, Width: width, Height: height, Filter: gpu.FilterNearest})
	t.pickingDepth = depth("picking depth", width, height)
	if err != nil {
		t.releaseViewport()
		return fmt.Errorf("resize %dx%d: %w", width, height, err)
	}

	t.gbuffer = t.framebuffer(&err, "gbuffer",
		bind(gpu.Color0, t.albedo, 0),
		bind(gpu.Color1, t.specular, 0),
		bind(gpu.Color2, t.normal, 0),
		bind(gpu.Color3, t.light, 0),
		bind(gpu.DepthAttachment, t.depth, 0))
	t.ssaoFB = t.framebuffer(&err, "ssao", bind(gpu.Color0, t.ssao, 0))
	t.ssaoBlurFB = t.framebuffer(&err, "ssao blur", bind(gpu.Color0, t.albedo, 0))
	t.lighting = t.framebuffer(&err, "lighting",
		bind(gpu.Color0, t.light, 0),
		bind(gpu.DepthAttachment, t.depth, 0))
	for i := range t.bloomFB {
		t.bloomFB[i] = make([]*gpu.Framebuffer, bloomLevels)
		for k := range t.bloomFB[i] {
			t.bloomFB[i][k] = t.framebuffer(&err, fmt.Sprintf("bloom%d level %d", i, k), bind(gpu.Color0, t.bloom[i], k))
		}
	}
	t.reflectFB = t.framebuffer(&err, "reflection",
		bind(gpu.Color0, t.reflection, 0),
		bind(gpu.DepthAttachment, t.reflectionDepth, 0))
	t.refractFB = t.framebuffer(&err, "refraction",
		bind(gpu.Color0, t.refraction, 0),
		bind(gpu.DepthAttachment, t.refractionDepth, 0))
	t.selectFB = t.framebuffer(&err, "selection", bind(gpu.Color0, t.selection, 0))
	t.pickingFB = t.framebuffer(&err, "picking",
		bind(gpu.Color0, t.picking, 0),
		bind(gpu.DepthAttachment, t.pickingDepth, 0))
	// The shadow map outlives resizes; only its framebuffer is rebuilt.
	t.shadowFB = t.framebuffer(&err, "shadow", bind(gpu.DepthAttachment, t.shadowMap, 0))
	if err != nil {
		t.releaseViewport()
		return fmt.Errorf("resize %dx%d: %w", width, height, err)
	}
	return nil
}

func (t *renderTargets) allocated() bool { return t.gbuffer != nil }

// bloomLevels is the configured bloom chain length, capped by the mip
// count of the viewport and by the composite shader.
func (t *renderTargets) bloomLevels() int {
	return min(t.cfg.BloomLevels, gpu.MipCount(max(t.width, t.height)), maxBloomLevels)
}

func (t *renderTargets) viewportTexture(err *error, desc gpu.TextureDesc) *gpu.Texture {
	if *err != nil {
		return nil
	}
	tex, e := gpu.NewTexture(t.device, desc)
	if e != nil {
		*err = e
		return nil
	}
	t.viewportTextures = append(t.viewportTextures, tex)
	return tex
}

type fbBinding struct {
	point gpu.AttachmentPoint
	tex   *gpu.Texture
	level int
}

func bind(point gpu.AttachmentPoint, tex *gpu.Texture, level int) fbBinding {
	return fbBinding{point: point, tex: tex, level: level}
}

func (t *renderTargets) framebuffer(err *error, label string, bindings ...fbBinding) *gpu.Framebuffer {
	if *err != nil {
		return nil
	}
	fb := gpu.NewFramebuffer(t.device, label)
	t.framebuffers = append(t.framebuffers, fb)
	for _, b := range bindings {
		if e := fb.Attach(b.point, b.tex, 0, b.level); e != nil {
			*err = e
			return nil
		}
	}
	if e := fb.Validate(); e != nil {
		*err = e
		return nil
	}
	return fb
}

func (t *renderTargets) releaseViewport() {
	for _, fb := range t.framebuffers {
		fb.Destroy()
	}
	for _, tex := range t.viewportTextures {
		tex.Destroy()
	}
	t.framebuffers, t.viewportTextures = nil, nil
	t.gbuffer, t.ssaoFB, t.ssaoBlurFB, t.lighting = nil, nil, nil, nil
	t.reflectFB, t.refractFB, t.selectFB, t.pickingFB = nil, nil, nil, nil
	t.shadowFB = nil
	t.bloomFB = [2][]*gpu.Framebuffer{}
}

// ── enumeration ──────────────────────────────────────────────────────────────

// named lists the targets that can be shown by the final blit.
func (t *renderTargets) named() map[string]namedTarget {
	if !t.allocated() {
		return map[string]namedTarget{}
	}
	return map[string]namedTarget{
		"albedo":     {tex: t.albedo},
		"occlusion":  {tex: t.albedo, mode: viewAlpha},
		"specular":   {tex: t.specular},
		"roughness":  {tex: t.specular, mode: viewAlpha},
		"normal":     {tex: t.normal},
		"light":      {tex: t.light, toneMap: true},
		"depth":      {tex: t.depth, mode: viewDepth},
		"ssao":       {tex: t.ssao, mode: viewRed},
		"bloom0":     {tex: t.bloom[0], toneMap: true},
		"bloom1":     {tex: t.bloom[1], toneMap: true},
		"reflection": {tex: t.reflection, toneMap: true},
		"refraction": {tex: t.refraction, toneMap: true},
		"selection":  {tex: t.selection, mode: viewRed},
		"picking":    {tex: t.picking, mode: viewRed},
	}
}

func sortedNames(m map[string]namedTarget) []string {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ── procedural water textures ────────────────────────────────────────────────

const waterPatternSize = 64

func waterDesc(label string) gpu.TextureDesc {
	return gpu.TextureDesc{
		Label: label, Format: gpu.FormatRGBA8,
		Width: waterPatternSize, Height: waterPatternSize,
		Levels: gpu.MipCount(waterPatternSize), Filter: gpu.FilterTrilinear, Wrap: gpu.WrapRepeat,
	}
}

// waterPatterns builds a tileable normal map from summed sine waves and a
// matching distortion map holding the wave slopes in RG.
func waterPatterns(size int) (normal, distortion []byte) {
	normal = make([]byte, size*size*4)
	distortion = make([]byte, size*size*4)
	waves := []struct{ kx, ky, amp float64 }{
		{1, 0, 0.35}, {0, 2, 0.25}, {3, 1, 0.15}, {-2, 5, 0.1},
	}
	encode := func(v float64) byte {
		return byte(math.Round(math.Max(0, math.Min(1, v*0.5+0.5)) * 255))
	}
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			u := 2 * math.Pi * float64(x) / float64(size)
			v := 2 * math.Pi * float64(y) / float64(size)
			var dx, dy float64
			for _, w := range waves {
				c := math.Cos(w.kx*u + w.ky*v)
				dx += w.amp * w.kx * c
				dy += w.amp * w.ky * c
			}
			n := mgl32.Vec3{float32(-dx), float32(-dy), 4}.Normalize()
			i := (y*size + x) * 4
			normal[i+0] = encode(float64(n[0]))
			normal[i+1] = encode(float64(n[1]))
			normal[i+2] = encode(float64(n[2]))
			normal[i+3] = 255
			distortion[i+0] = encode(dx / 2)
			distortion[i+1] = encode(dy / 2)
			distortion[i+2] = 128
			distortion[i+3] = 255
		}
	}
	return normal, distortion
}
