package renderer

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"deferred-renderer/internal/gpu"
	"deferred-renderer/scene"
)

// cubeViews looks down +X, -X, +Y, -Y, +Z, -Z in cube face order.
var cubeViews = [gpu.CubeFaces]mgl32.Mat4{
	mgl32.LookAtV(mgl32.Vec3{}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, -1, 0}),
	mgl32.LookAtV(mgl32.Vec3{}, mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, -1, 0}),
	mgl32.LookAtV(mgl32.Vec3{}, mgl32.Vec3{0, 1, 0}, mgl32.Vec3{0, 0, 1}),
	mgl32.LookAtV(mgl32.Vec3{}, mgl32.Vec3{0, -1, 0}, mgl32.Vec3{0, 0, -1}),
	mgl32.LookAtV(mgl32.Vec3{}, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, -1, 0}),
	mgl32.LookAtV(mgl32.Vec3{}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, -1, 0}),
}

var cubeProjection = mgl32.Perspective(mgl32.DegToRad(90), 1, 0.1, 10)

var neutralEnvironment = [4]float32{1, 1, 1, 1}

// environmentBaker turns an equirectangular image into the filtered
// environment cubemap and the irradiance cubemap.
type environmentBaker struct {
	device  gpu.Device
	logger  *zap.Logger
	cfg     Config
	targets *renderTargets
	progs   *programs
	cube    *gpuMesh

	// baked is true while the cubemaps hold an image rather than the
	// neutral default.
	baked bool
	bakes int
}

// pending reports whether the scene asks for a bake.
func (b *environmentBaker) pending(s *scene.Scene) bool {
	if s.EnvironmentChanged() {
		return true
	}
	env, ok := s.Environment()
	return ok && env.NeedsProcessing()
}

// update bakes when the scene's environment changed and clears the flags
// afterwards. Without an image the cubemaps return to neutral white.
func (b *environmentBaker) update(s *scene.Scene) (bool, error) {
	if !b.pending(s) {
		return false, nil
	}
	env, ok := s.Environment()
	if !ok || env.Image() == nil {
		if b.baked {
			if err := b.reset(); err != nil {
				return false, err
			}
		}
		s.ClearEnvironmentChanged()
		if ok {
			env.MarkProcessed()
		}
		return false, nil
	}
	if err := b.bake(env.Image()); err != nil {
		return false, err
	}
	s.ClearEnvironmentChanged()
	env.MarkProcessed()
	return true, nil
}

// reset clears both cubemaps to neutral white.
func (b *environmentBaker) reset() error {
	fb := gpu.NewFramebuffer(b.device, "environment clear")
	defer fb.Destroy()
	for _, cube := range []*gpu.Texture{b.targets.environment, b.targets.irradiance} {
		for face := 0; face < gpu.CubeFaces; face++ {
			if err := attachFace(fb, cube, face); err != nil {
				return fmt.Errorf("environment reset: %w", err)
			}
			if err := fb.Bind(); err != nil {
				return fmt.Errorf("environment reset: %w", err)
			}
			b.device.Clear(gpu.ClearColor, neutralEnvironment)
		}
	}
	b.targets.environment.GenerateMipmaps()
	b.baked = false
	return nil
}

// bake runs the three sub-passes. The temporary framebuffer and the
// low-resolution cubemap live only for the duration of the call.
func (b *environmentBaker) bake(img *scene.Texture) error {
	img = img.Downscaled(4 * b.cfg.EnvironmentSize)
	src, err := gpu.NewTexture(b.device, gpu.TextureDesc{
		Label: "environment source", Format: gpu.FormatRGBA8,
		Width: img.Width, Height: img.Height, Wrap: gpu.WrapRepeat,
	})
	if err != nil {
		return fmt.Errorf("environment bake: %w", err)
	}
	defer src.Destroy()
	if err := src.Write(img.Pixels); err != nil {
		return fmt.Errorf("environment bake: %w", err)
	}

	size := b.cfg.ConvolutionSize
	tmp, err := gpu.NewTexture(b.device, gpu.TextureDesc{
		Label: "environment downsample", Kind: gpu.TextureCube, Format: gpu.FormatRGBA16F,
		Width: size, Height: size,
	})
	if err != nil {
		return fmt.Errorf("environment bake: %w", err)
	}
	defer tmp.Destroy()

	fb := gpu.NewFramebuffer(b.device, "environment bake")
	defer fb.Destroy()

	env := b.targets.environment
	if err := b.renderFaces(fb, env, b.progs.equirect, func() { src.Bind(0) }); err != nil {
		return fmt.Errorf("environment bake: equirect: %w", err)
	}
	env.GenerateMipmaps()

	lod := float32(math.Log2(float64(env.Width()) / float64(size)))
	if err := b.renderFaces(fb, tmp, b.progs.downsample, func() {
		env.Bind(0)
		b.progs.downsample.Set("lod", lod)
	}); err != nil {
		return fmt.Errorf("environment bake: downsample: %w", err)
	}
	if err := b.renderFaces(fb, b.targets.irradiance, b.progs.irradiance, func() { tmp.Bind(0) }); err != nil {
		return fmt.Errorf("environment bake: irradiance: %w", err)
	}

	b.baked = true
	b.bakes++
	b.logger.Info("environment baked",
		zap.String("image", img.Name),
		zap.Int("environment", env.Width()),
		zap.Int("irradiance", b.targets.irradiance.Width()))
	return nil
}

// renderFaces draws the unit cube once per face of target with prog.
func (b *environmentBaker) renderFaces(fb *gpu.Framebuffer, target *gpu.Texture, prog *gpu.Program, setup func()) error {
	for face := 0; face < gpu.CubeFaces; face++ {
		if err := attachFace(fb, target, face); err != nil {
			return err
		}
		if err := fb.Bind(); err != nil {
			return err
		}
		b.device.SetState(gpu.OverlayState(gpu.BlendNone))
		prog.Use()
		setup()
		prog.Set("projection", cubeProjection)
		prog.Set("view", cubeViews[face])
		b.device.Draw(b.cube.call(b.cube.static, 1))
	}
	return nil
}

// attachFace points color 0 of fb at level 0 of one cube face, re-validating
// only when the size or format changes.
func attachFace(fb *gpu.Framebuffer, target *gpu.Texture, face int) error {
	if cur, ok := fb.Attachment(gpu.Color0); ok && fb.Complete() {
		w, h := fb.Size()
		if w == target.Width() && h == target.Height() && cur.Desc().Format == target.Desc().Format {
			return fb.Reattach(gpu.Color0, target, face, 0)
		}
	}
	fb.Reset()
	if err := fb.Attach(gpu.Color0, target, face, 0); err != nil {
		return err
	}
	return fb.Validate()
}
