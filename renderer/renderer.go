// Package renderer is a deferred scene renderer. It batches a scene into
// instanced draws, bakes its environment map, and composes each frame
// through a fixed sequence of offscreen passes.
//
// A Renderer is not safe for concurrent use. Every method must run on the
// goroutine that owns the graphics context.
package renderer

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"deferred-renderer/internal/gpu"
	"deferred-renderer/scene"
)

// ErrNotInitialized is returned by calls that need GPU resources before
// Initialize succeeded.
var ErrNotInitialized = errors.New("renderer not initialized")

// Selection is the set of entities to outline.
type Selection interface {
	Count() int
	At(i int) *scene.Entity
}

// FrameReport describes the last rendered frame.
type FrameReport struct {
	// Passes lists the passes that ran, in order.
	Passes           []string
	Instances        int
	Groups           int
	LightsDrawn      int
	LightsCulled     int
	Rebuilt          bool
	EnvironmentBaked bool
	Picked           bool
}

// Ran reports whether the named pass executed.
func (f FrameReport) Ran(pass string) bool {
	for _, p := range f.Passes {
		if p == pass {
			return true
		}
	}
	return false
}

type Renderer struct {
	device gpu.Device
	cfg    Config
	logger *zap.Logger

	targets *renderTargets
	progs   programs
	uploads *uploadCache
	batcher *instanceBatcher
	env     *environmentBaker
	overlay *debugOverlay
	timer   *frameTimer

	fullscreen *gpu.VertexArray
	sphere     *gpuMesh
	passes     []pass
	debug      DebugBuffer

	view string
	lod  int
	pick pickState

	report      FrameReport
	start       time.Time
	initialized bool
}

// New creates a renderer for device. No GPU work happens until Initialize.
func New(device gpu.Device, cfg Config) *Renderer {
	cfg = cfg.normalized()
	return &Renderer{
		device:  device,
		cfg:     cfg,
		logger:  cfg.Logger,
		targets: newRenderTargets(device, cfg),
		uploads: newUploadCache(device, cfg.Logger),
		view:    defaultView,
	}
}

// Initialize creates every size-independent resource. Call Resize before
// the first Render.
func (r *Renderer) Initialize() error {
	if r.initialized {
		return nil
	}
	if err := r.initialize(); err != nil {
		r.Finalize()
		return err
	}
	r.initialized = true
	r.start = time.Now()
	r.logger.Info("renderer initialized",
		zap.Int("programs", len(r.progs.all)),
		zap.Int("environmentSize", r.cfg.EnvironmentSize),
		zap.Int("irradianceSize", r.cfg.IrradianceSize),
		zap.Int("bloomLevels", r.cfg.BloomLevels))
	return nil
}

func (r *Renderer) initialize() error {
	if err := r.targets.initialize(); err != nil {
		return err
	}
	if err := r.progs.compile(r.device); err != nil {
		return err
	}
	r.fullscreen = gpu.NewVertexArray(r.device, gpu.VertexArrayDesc{Label: "fullscreen"})

	sphere := scene.CreateSphere(1, 16, 12).Submeshes[0]
	cube := scene.CreateCube(2).Submeshes[0]
	var err error
	if r.sphere, err = r.uploads.pin(sphere); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	cubeMesh, err := r.uploads.pin(cube)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	r.batcher = newInstanceBatcher(r.device, r.logger, r.uploads, sphere)
	r.env = &environmentBaker{
		device:  r.device,
		logger:  r.logger,
		cfg:     r.cfg,
		targets: r.targets,
		progs:   &r.progs,
		cube:    cubeMesh,
	}
	if err := r.env.reset(); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	if r.overlay, err = newDebugOverlay(r.device); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	r.timer = newFrameTimer(r.device)
	r.passes = r.pipeline()
	return nil
}

// Finalize releases every GPU resource. It is safe to call more than once.
func (r *Renderer) Finalize() {
	if r.batcher != nil {
		r.batcher.release()
		r.batcher = nil
	}
	r.uploads.release()
	r.overlay.release()
	r.overlay = nil
	r.timer.release()
	r.timer = nil
	r.fullscreen.Destroy()
	r.fullscreen = nil
	r.progs.release()
	r.targets.finalize()
	r.env = nil
	r.sphere = nil
	r.pick = pickState{}
	if r.initialized {
		r.logger.Info("renderer finalized")
	}
	r.initialized = false
}

// Resize re-creates the viewport-sized targets. Sizes below one pixel are
// clamped to one.
func (r *Renderer) Resize(width, height int) error {
	if !r.initialized {
		return ErrNotInitialized
	}
	if err := r.targets.resize(width, height); err != nil {
		return err
	}
	r.logger.Info("render targets resized", zap.Int("width", r.targets.width), zap.Int("height", r.targets.height))
	return nil
}

// Size is the current render target size.
func (r *Renderer) Size() (int, int) { return r.targets.width, r.targets.height }

// Render draws one frame of s seen from camera into the default
// framebuffer. An incomplete framebuffer aborts the frame with an error
// naming the pass.
func (r *Renderer) Render(s *scene.Scene, camera *scene.Camera, selection Selection) (err error) {
	if !r.initialized {
		return ErrNotInitialized
	}
	if !r.targets.allocated() {
		return fmt.Errorf("render: no render targets, call Resize: %w", gpu.ErrIncompleteFramebuffer)
	}
	r.report = FrameReport{}
	r.timer.begin()
	defer r.timer.end()

	if r.batcher.needsRebuild(s) {
		r.batcher.rebuild(s)
		s.ClearRenderListChanged()
		r.report.Rebuilt = true
	}
	r.batcher.refreshGizmos()
	if r.report.EnvironmentBaked, err = r.env.update(s); err != nil {
		return err
	}

	f := r.newFrame(s, camera, selection)
	for _, p := range r.passes {
		if p.enabled != nil && !p.enabled(f) {
			continue
		}
		if err := p.run(f); err != nil {
			return fmt.Errorf("%s pass: %w", p.name, err)
		}
		r.report.Passes = append(r.report.Passes, p.name)
	}
	r.logger.Debug("frame rendered",
		zap.Strings("passes", r.report.Passes),
		zap.Int("groups", r.report.Groups),
		zap.Int("lights", r.report.LightsDrawn))
	return nil
}

// LastFrame describes the most recent Render.
func (r *Renderer) LastFrame() FrameReport { return r.report }

// GPUFrameTime is the GPU duration of the frame before the last one.
func (r *Renderer) GPUFrameTime() time.Duration {
	if r.timer == nil {
		return 0
	}
	return r.timer.last
}

// Debug is the buffer drawn by the next frame's debug overlay.
func (r *Renderer) Debug() *DebugBuffer { return &r.debug }

// Textures maps every displayable intermediate target to its texture
// handle.
func (r *Renderer) Textures() map[string]uint32 {
	named := r.targets.named()
	out := make(map[string]uint32, len(named))
	for name, t := range named {
		out[name] = uint32(t.tex.ID())
	}
	return out
}

// ShowTexture selects the target blitted to the screen.
func (r *Renderer) ShowTexture(name string) error {
	named := r.targets.named()
	if _, ok := named[name]; !ok {
		return fmt.Errorf("show texture %q: unknown target, have %v", name, sortedNames(named))
	}
	r.view = name
	return nil
}

// ShowLod selects the mip level blitted. It is clamped to the target's
// level count.
func (r *Renderer) ShowLod(level int) { r.lod = max(level, 0) }

// ── frame timing ─────────────────────────────────────────────────────────────

// frameTimer alternates two timer queries. The query begun in frame N is
// read in frame N+1 without checking availability.
type frameTimer struct {
	queries [2]*gpu.TimerQuery
	frame   uint64
	last    time.Duration
}

func newFrameTimer(d gpu.Device) *frameTimer {
	return &frameTimer{queries: [2]*gpu.TimerQuery{gpu.NewTimerQuery(d), gpu.NewTimerQuery(d)}}
}

func (t *frameTimer) begin() {
	if t.frame > 0 {
		t.last = time.Duration(t.queries[(t.frame-1)%2].Result())
	}
	t.queries[t.frame%2].Begin()
}

func (t *frameTimer) end() {
	t.queries[t.frame%2].End()
	t.frame++
}

func (t *frameTimer) release() {
	if t == nil {
		return
	}
	for _, q := range t.queries {
		q.Destroy()
	}
}

// ── per-frame state ──────────────────────────────────────────────────────────

type sunLight struct {
	direction mgl32.Vec3
	color     mgl32.Vec3
}

type frame struct {
	scene     *scene.Scene
	settings  *scene.Settings
	camera    *scene.Camera
	selection Selection

	view, projection, viewProjection mgl32.Mat4
	frustum                          scene.Frustum

	water *scene.Entity
	sun   sunLight
	time  float32

	// shadowCaster is the directional light the shadow map is rendered
	// from, nil when shadows are off or there is no directional light.
	shadowCaster        *scene.Entity
	lightViewProjection mgl32.Mat4
}

func (r *Renderer) newFrame(s *scene.Scene, cam *scene.Camera, sel Selection) *frame {
	f := &frame{
		scene:      s,
		settings:   &s.Settings,
		camera:     cam,
		selection:  sel,
		view:       cam.ViewMatrix(),
		projection: cam.ProjectionMatrix(),
		time:       float32(time.Since(r.start).Seconds()),
		sun:        sunLight{direction: mgl32.Vec3{-0.3, -1, -0.2}.Normalize()},
	}
	f.viewProjection = f.projection.Mul4(f.view)
	f.frustum = scene.FrustumFromVP(f.viewProjection)
	if w, ok := s.WaterEntity(); ok {
		f.water = w
	}
	for _, e := range s.Lights() {
		if l, _ := e.Light(); l.Type == scene.LightDirectional {
			f.sun = sunLight{direction: e.WorldForward(), color: l.Color.Vec3().Mul(l.Intensity)}
			if s.Settings.RenderShadows {
				f.shadowCaster = e
				f.lightViewProjection = shadowMatrix(cam.Position, f.sun.direction, s.Settings.ShadowExtent)
			}
			break
		}
	}
	return f
}

func (f *frame) hasSelection() bool { return f.selection != nil && f.selection.Count() > 0 }
