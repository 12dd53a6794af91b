package main

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"deferred-renderer/core"
	"deferred-renderer/scene"
)

// buildScene assembles the showcase: a terrain rising out of a water
// plane, a ring of primitives, colored point lamps and a sun. It returns
// the sun entity for the day/night cycle.
func buildScene(logger *zap.Logger) (*scene.Scene, *scene.Entity, error) {
	s := scene.NewScene()

	// ── ground ───────────────────────────────────────────────────────────────
	const groundSub = 96
	ground := scene.NewEntity("Terrain")
	terrain := scene.NewTerrain(60, 60, groundSub, scene.NewPBRMaterial("Grass", core.Color{R: 0.32, G: 0.45, B: 0.22, A: 1}, 0, 0.9))
	terrain.SetHeights(scene.WaveHeights(groundSub, 3), 2.5)
	ground.SetTerrain(terrain)
	ground.SetPosition(mgl32.Vec3{0, -1.2, 0})
	s.Add(ground)

	water := scene.NewEntity("Water")
	water.SetMeshRenderer(scene.NewMeshRenderer(scene.CreatePlane(60, 60, 1), scene.NewWaterMaterial("Water")))
	s.Add(water)

	// ── primitives ───────────────────────────────────────────────────────────
	stone := scene.NewPBRMaterial("Stone", core.Color{R: 0.58, G: 0.55, B: 0.50, A: 1}, 0, 0.8)
	gold := scene.NewPBRMaterial("Gold", core.Color{R: 1.0, G: 0.77, B: 0.34, A: 1}, 1, 0.25)
	chrome := scene.NewPBRMaterial("Chrome", core.Color{R: 0.9, G: 0.9, B: 0.92, A: 1}, 1, 0.05)
	glow := scene.NewMaterial("Glow", core.Color{R: 0.1, G: 0.1, B: 0.1, A: 1})
	glow.Emissive = core.Color{R: 4, G: 1.5, B: 0.4, A: 1}

	cube, sphere := scene.CreateCube(1), scene.CreateSphere(0.6, 32, 16)
	mats := []*scene.Material{stone, gold, chrome}
	const ring = 9
	for i := 0; i < ring; i++ {
		angle := float32(i) / ring * 2 * math.Pi
		pos := mgl32.Vec3{5 * cos32(angle), 0.8, 5 * sin32(angle)}
		e := scene.NewEntity("Shape")
		mesh := cube
		if i%2 == 1 {
			mesh = sphere
		}
		e.SetMeshRenderer(scene.NewMeshRenderer(mesh, mats[i%len(mats)]))
		e.SetPosition(pos)
		e.Rotate(mgl32.Vec3{0, 1, 0}, angle)
		s.Add(e)
	}

	orb := scene.NewEntity("Orb")
	orb.SetMeshRenderer(scene.NewMeshRenderer(scene.CreateSphere(1, 32, 16), glow))
	orb.SetPosition(mgl32.Vec3{0, 1.5, 0})
	s.Add(orb)

	// ── lights ───────────────────────────────────────────────────────────────
	lampColors := []struct{ r, g, b float32 }{{1, 0.3, 0.2}, {0.3, 1, 0.4}, {0.3, 0.5, 1}, {1, 0.9, 0.4}}
	for i, c := range lampColors {
		angle := (float32(i) + 0.5) / float32(len(lampColors)) * 2 * math.Pi
		lamp := scene.NewEntity("Lamp")
		lamp.SetLight(scene.NewPointLight(colorOf(c.r, c.g, c.b), 6, 7))
		lamp.SetPosition(mgl32.Vec3{7 * cos32(angle), 2, 7 * sin32(angle)})
		s.Add(lamp)
	}

	sun := scene.NewEntity("Sun")
	sun.SetLight(scene.NewDirectionalLight(core.ColorWhite, 3))
	sun.SetPosition(mgl32.Vec3{0, 20, 0})
	s.Add(sun)

	// ── optional assets ──────────────────────────────────────────────────────
	if *modelPath != "" {
		model, err := scene.LoadGLTF(*modelPath, logger)
		if err != nil {
			return nil, nil, err
		}
		for _, root := range model.Roots {
			root.Translate(mgl32.Vec3{0, 3, 0})
			s.Add(root)
		}
		logger.Info("model loaded", zap.String("path", *modelPath),
			zap.Int("roots", len(model.Roots)), zap.Int("textures", len(model.Textures)))
	}
	if *envPath != "" {
		img, err := scene.LoadTexture(*envPath)
		if err != nil {
			return nil, nil, err
		}
		env := scene.NewEntity("Environment")
		env.SetEnvironment(scene.NewEnvironment(img))
		s.Add(env)
	}
	return s, sun, nil
}

func colorOf(r, g, b float32) core.Color { return core.Color{R: r, G: g, B: b, A: 1} }

func cos32(a float32) float32 { return float32(math.Cos(float64(a))) }
func sin32(a float32) float32 { return float32(math.Sin(float64(a))) }
