package scene

import "deferred-renderer/core"

// Settings are the per-scene render toggles.
type Settings struct {
	RenderBloom bool
	// BloomIntensities weights each bloom mip level in the composite.
	// Levels past the end of the slice use the last entry.
	BloomIntensities []float32
	BloomRadius      float32
	BloomThreshold   float32

	RenderSSAO bool
	SSAORadius float32
	SSAOBias   float32

	// RenderShadows casts shadows from the first directional light.
	// ShadowExtent is the half size of the square the shadow map covers
	// around the camera.
	RenderShadows bool
	ShadowBias    float32
	ShadowExtent  float32

	RenderWater            bool
	RenderGrid             bool
	RenderLightGizmos      bool
	RenderSelectionOutline bool

	BackgroundColor  core.Color
	AmbientIntensity float32
	Exposure         float32
	SelectionColor   core.Color
}

func DefaultSettings() Settings {
	return Settings{
		RenderBloom:            true,
		BloomIntensities:       []float32{0.6, 0.5, 0.4, 0.3, 0.2},
		BloomRadius:            1.0,
		BloomThreshold:         1.0,
		RenderSSAO:             true,
		SSAORadius:             0.5,
		SSAOBias:               0.025,
		RenderShadows:          true,
		ShadowBias:             0.002,
		ShadowExtent:           30,
		RenderWater:            true,
		RenderGrid:             true,
		RenderLightGizmos:      true,
		RenderSelectionOutline: true,
		BackgroundColor:        core.Color{R: 0.5, G: 0.7, B: 1.0, A: 1.0},
		AmbientIntensity:       1.0,
		Exposure:               1.0,
		SelectionColor:         core.ColorOrange,
	}
}

// BloomIntensity returns the composite weight of mip level k.
func (s *Settings) BloomIntensity(k int) float32 {
	if len(s.BloomIntensities) == 0 {
		return 0
	}
	if k >= len(s.BloomIntensities) {
		k = len(s.BloomIntensities) - 1
	}
	return s.BloomIntensities[k]
}

// Scene is the ordered entity list with two edge-triggered flags the
// renderer consumes: renderListChanged for topology changes and moves of batched entities,
// environmentChanged for environment image assignment.
type Scene struct {
	Settings Settings

	entities           []*Entity
	renderListChanged  bool
	environmentChanged bool
}

func NewScene() *Scene {
	return &Scene{
		Settings:          DefaultSettings(),
		renderListChanged: true,
	}
}

// Entities returns every entity in insertion order, children after their
// parents.
func (s *Scene) Entities() []*Entity { return s.entities }

// Add inserts e and its descendants.
func (s *Scene) Add(e *Entity) {
	e.Traverse(func(n *Entity) {
		if n.scene == s {
			return
		}
		n.scene = s
		s.entities = append(s.entities, n)
		if _, ok := n.Environment(); ok {
			s.environmentChanged = true
		}
	})
	s.renderListChanged = true
}

// Remove deletes e and its descendants.
func (s *Scene) Remove(e *Entity) {
	drop := make(map[*Entity]bool)
	e.Traverse(func(n *Entity) { drop[n] = true })
	kept := s.entities[:0]
	for _, n := range s.entities {
		if drop[n] {
			if _, ok := n.Environment(); ok {
				s.environmentChanged = true
			}
			n.scene = nil
			continue
		}
		kept = append(kept, n)
	}
	for i := len(kept); i < len(s.entities); i++ {
		s.entities[i] = nil
	}
	s.entities = kept
	if e.Parent != nil && e.Parent.scene == s {
		e.Parent.RemoveChild(e)
	}
	s.renderListChanged = true
}

// Find returns the first entity with the given name.
func (s *Scene) Find(name string) *Entity {
	for _, e := range s.entities {
		if e.Name == name {
			return e
		}
	}
	return nil
}

// ByID resolves a picking id.
func (s *Scene) ByID(id uint32) *Entity {
	for _, e := range s.entities {
		if e.ID == id {
			return e
		}
	}
	return nil
}

func (s *Scene) RenderListChanged() bool  { return s.renderListChanged }
func (s *Scene) ClearRenderListChanged()  { s.renderListChanged = false }
func (s *Scene) EnvironmentChanged() bool { return s.environmentChanged }
func (s *Scene) ClearEnvironmentChanged() { s.environmentChanged = false }

// MarkRenderListChanged forces a rebuild of the instance batches.
func (s *Scene) MarkRenderListChanged() { s.renderListChanged = true }

// Environment returns the environment component of the first active entity
// that has one.
func (s *Scene) Environment() (*Environment, bool) {
	for _, e := range s.entities {
		if !e.active {
			continue
		}
		if env, ok := e.Environment(); ok {
			return env, true
		}
	}
	return nil, false
}

// WaterEntity returns the first active entity whose first material uses the
// water shader.
func (s *Scene) WaterEntity() (*Entity, bool) {
	for _, e := range s.entities {
		if !e.active {
			continue
		}
		mr, ok := e.MeshRenderer()
		if !ok || mr.Mesh == nil {
			continue
		}
		if m := mr.FirstMaterial(); m != nil && m.Shader == ShaderWater {
			return e, true
		}
	}
	return nil, false
}

// Lights returns the active entities carrying a light.
func (s *Scene) Lights() []*Entity {
	var out []*Entity
	for _, e := range s.entities {
		if _, ok := e.Light(); ok && e.active {
			out = append(out, e)
		}
	}
	return out
}
