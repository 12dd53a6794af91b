// Command viewer opens a window on a showcase scene rendered by the
// deferred pipeline, with orbit camera controls and mouse picking.
package main

import (
	"flag"
	"fmt"
	"sort"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/xlab/closer"
	"go.uber.org/zap"

	"deferred-renderer/core"
	"deferred-renderer/editor"
	"deferred-renderer/internal/opengl"
	"deferred-renderer/renderer"
	"deferred-renderer/scene"
)

var (
	modelPath  = flag.String("model", "", "glTF or GLB file added to the scene")
	envPath    = flag.String("env", "", "equirectangular image baked into the environment")
	width      = flag.Int("width", 1280, "window width")
	height     = flag.Int("height", 720, "window height")
	vsync      = flag.Bool("vsync", true, "wait for vertical sync")
	dev        = flag.Bool("dev", false, "development logging and an OpenGL debug context")
	bloomLevel = flag.Int("bloom-levels", 5, "bloom mip levels")
	envSize    = flag.Int("env-size", 512, "environment cubemap face size")
	dayLength  = flag.Duration("day", 2*time.Minute, "length of a day/night cycle, 0 to freeze at noon")
)

func main() {
	flag.Parse()
	defer closer.Close()

	logger := newLogger(*dev)
	closer.Bind(func() { _ = logger.Sync() })

	if err := run(logger); err != nil {
		logger.Fatal("viewer", zap.Error(err))
	}
}

func newLogger(dev bool) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if dev {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func run(logger *zap.Logger) error {
	wc := core.DefaultWindowConfig()
	wc.Width, wc.Height = *width, *height
	wc.VSync = *vsync
	wc.DebugContext = *dev
	window, err := core.NewWindow(wc)
	if err != nil {
		return err
	}
	defer window.Destroy()

	device, err := opengl.NewDevice(logger)
	if err != nil {
		return err
	}
	if *dev {
		opengl.EnableDebugOutput(logger)
	}

	cfg := renderer.DefaultConfig()
	cfg.BloomLevels = *bloomLevel
	cfg.EnvironmentSize = *envSize
	cfg.Logger = logger
	r := renderer.New(device, cfg)
	if err := r.Initialize(); err != nil {
		return err
	}
	defer r.Finalize()

	fbw, fbh := window.GetFramebufferSize()
	if err := r.Resize(fbw, fbh); err != nil {
		return err
	}

	s, sun, err := buildScene(logger)
	if err != nil {
		return err
	}
	camera := scene.NewOrbitCamera(mgl32.Vec3{0, 1, 0}, 14, mgl32.DegToRad(60), fbw, fbh)
	ed := editor.NewEditor(window, s, camera, r)
	if wc.Width > 0 {
		ed.PixelRatio = float64(fbw) / float64(wc.Width)
	}
	window.SetScrollCallback(func(_, yoff float64) { ed.Input.AddScroll(yoff) })

	dn := NewDayNight()
	dn.Period = float32(dayLength.Seconds())
	dn.Active = *dayLength > 0

	views := sortedViews(r)
	view := 0
	lod := 0
	window.SetKeyPressCallback(func(key int) {
		switch key {
		case core.KeyEscape:
			window.Handle.SetShouldClose(true)
		case core.KeyTab:
			view = (view + 1) % len(views)
			if err := r.ShowTexture(views[view]); err != nil {
				logger.Warn("show texture", zap.Error(err))
			}
			ed.StatusText = "view: " + views[view]
		case core.KeyUp:
			lod++
			r.ShowLod(lod)
		case core.KeyDown:
			lod = max(lod-1, 0)
			r.ShowLod(lod)
		case core.KeyT:
			dn.Active = !dn.Active
		case core.KeyMinus:
			s.Settings.Exposure = max(s.Settings.Exposure-0.1, 0.1)
		case core.KeyEqual:
			s.Settings.Exposure += 0.1
		}
	})

	logger.Info("viewer ready",
		zap.Int("width", fbw), zap.Int("height", fbh),
		zap.Int("entities", len(s.Entities())))

	last := time.Now()
	titleAt := last
	frames := 0
	for !window.ShouldClose() {
		window.PollEvents()
		now := time.Now()
		dt := float32(now.Sub(last).Seconds())
		last = now

		if window.TakeResize() {
			fbw, fbh = window.GetFramebufferSize()
			if err := r.Resize(fbw, fbh); err != nil {
				return err
			}
			camera.SetViewport(fbw, fbh)
		}

		ed.Update()
		dn.Update(dt)
		dn.Apply(s, sun)
		annotateSelection(r.Debug(), ed.Selection)

		if err := r.Render(s, &camera.Camera, ed.Selection); err != nil {
			return fmt.Errorf("render: %w", err)
		}
		window.SwapBuffers()

		frames++
		if now.Sub(titleAt) >= time.Second {
			rep := r.LastFrame()
			window.SetTitle(fmt.Sprintf("Deferred Renderer | %d fps | gpu %.2fms | %d inst %d lights | %s | %s",
				frames, float64(r.GPUFrameTime().Microseconds())/1000, rep.Instances, rep.LightsDrawn,
				dn.Clock(), ed.StatusText))
			logger.Debug("frame stats",
				zap.Int("fps", frames),
				zap.Duration("gpu", r.GPUFrameTime()),
				zap.Int("instances", rep.Instances),
				zap.Int("groups", rep.Groups),
				zap.Int("lightsCulled", rep.LightsCulled))
			frames = 0
			titleAt = now
		}
	}
	logger.Info("viewer closed")
	return nil
}

func sortedViews(r *renderer.Renderer) []string {
	textures := r.Textures()
	names := make([]string, 0, len(textures))
	for name := range textures {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// annotateSelection labels and boxes every selected entity.
func annotateSelection(d *renderer.DebugBuffer, sel *editor.Selection) {
	for i := 0; i < sel.Count(); i++ {
		e := sel.At(i)
		pos := e.WorldPosition()
		if mr, ok := e.MeshRenderer(); ok && mr.Mesh != nil {
			box := scene.TransformAABB(mr.Mesh.Bounds(), e.WorldMatrix())
			d.Box(box, core.ColorYellow)
			pos = mgl32.Vec3{pos.X(), box.Max.Y() + 0.3, pos.Z()}
		} else {
			d.Cross(pos, 0.5, core.ColorYellow)
		}
		d.Label(pos, e.Name, core.ColorWhite)
	}
}
