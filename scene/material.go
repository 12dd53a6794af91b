package scene

import (
	"sync/atomic"

	"deferred-renderer/core"
)

var materialIDs atomic.Uint32

// ShaderType selects which pass draws a material.
type ShaderType int

const (
	// ShaderSurface is opaque geometry shaded through the G-buffer.
	ShaderSurface ShaderType = iota
	// ShaderWater is drawn by the forward water pass.
	ShaderWater
	// ShaderTransparent is skipped by the deferred passes.
	ShaderTransparent
)

// Material describes a metallic-roughness surface. Missing textures are
// substituted by the renderer: white for albedo, metallic-roughness and
// occlusion, black for emissive, flat for normal.
type Material struct {
	ID     uint32
	Name   string
	Shader ShaderType

	Albedo    core.Color
	Metallic  float32
	Roughness float32
	// Emissive is added to the emissive texture.
	Emissive core.Color

	AlbedoTexture            *Texture
	NormalTexture            *Texture
	MetallicRoughnessTexture *Texture // G roughness, B metallic
	OcclusionTexture         *Texture // R occlusion
	EmissiveTexture          *Texture

	// Water parameters, read when Shader is ShaderWater.
	WaterTint          core.Color
	WaveScale          float32
	DistortionStrength float32
}

// NewMaterial creates a dielectric surface material.
func NewMaterial(name string, albedo core.Color) *Material {
	return &Material{
		ID:        materialIDs.Add(1),
		Name:      name,
		Albedo:    albedo,
		Roughness: 0.5,
		Emissive:  core.Color{A: 1},
	}
}

func NewPBRMaterial(name string, albedo core.Color, metallic, roughness float32) *Material {
	m := NewMaterial(name, albedo)
	m.Metallic = metallic
	m.Roughness = roughness
	return m
}

// NewWaterMaterial creates a material drawn by the water pass.
func NewWaterMaterial(name string) *Material {
	m := NewMaterial(name, core.Color{R: 0.1, G: 0.3, B: 0.4, A: 1})
	m.Shader = ShaderWater
	m.Roughness = 0.05
	m.WaterTint = core.Color{R: 0.0, G: 0.25, B: 0.3, A: 1}
	m.WaveScale = 8
	m.DistortionStrength = 0.02
	return m
}

// DefaultMaterial returns a new plain white matte material.
func DefaultMaterial() *Material {
	m := NewMaterial("Default", core.ColorWhite)
	m.Roughness = 0.8
	return m
}
