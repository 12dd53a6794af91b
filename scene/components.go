package scene

import "deferred-renderer/core"

// MeshRenderer draws a mesh. Materials[i] shades Mesh.Submeshes[i]; missing
// entries fall back to the renderer's default material.
type MeshRenderer struct {
	Mesh      *Mesh
	Materials []*Material

	owner *Entity
}

func NewMeshRenderer(mesh *Mesh, materials ...*Material) *MeshRenderer {
	return &MeshRenderer{Mesh: mesh, Materials: materials}
}

// Material returns the material for submesh i, or nil.
func (m *MeshRenderer) Material(i int) *Material {
	if i < 0 || i >= len(m.Materials) {
		return nil
	}
	return m.Materials[i]
}

// FirstMaterial returns the material of submesh 0, or nil.
func (m *MeshRenderer) FirstMaterial() *Material { return m.Material(0) }

func (m *MeshRenderer) SetMesh(mesh *Mesh) {
	m.Mesh = mesh
	m.changed()
}

// SetMaterial assigns the material of submesh i, growing the list as needed.
func (m *MeshRenderer) SetMaterial(i int, mat *Material) {
	for len(m.Materials) <= i {
		m.Materials = append(m.Materials, nil)
	}
	m.Materials[i] = mat
	m.changed()
}

func (m *MeshRenderer) changed() {
	if m.owner != nil {
		m.owner.markRenderList()
	}
}

type LightType int

const (
	LightDirectional LightType = iota
	LightPoint
)

func (t LightType) String() string {
	if t == LightPoint {
		return "point"
	}
	return "directional"
}

// Light takes its position and direction from the owning entity. Range is
// the radius of influence of a point light.
type Light struct {
	Type      LightType
	Color     core.Color
	Intensity float32
	Range     float32
}

func NewDirectionalLight(color core.Color, intensity float32) *Light {
	return &Light{Type: LightDirectional, Color: color, Intensity: intensity}
}

func NewPointLight(color core.Color, intensity, rng float32) *Light {
	return &Light{Type: LightPoint, Color: color, Intensity: intensity, Range: rng}
}

// Environment holds the equirectangular image baked into the environment
// and irradiance cubemaps.
type Environment struct {
	image           *Texture
	needsProcessing bool
	owner           *Entity
}

func NewEnvironment(image *Texture) *Environment {
	return &Environment{image: image, needsProcessing: image != nil}
}

func (e *Environment) Image() *Texture { return e.image }

// SetImage replaces the image and requests a bake.
func (e *Environment) SetImage(image *Texture) {
	e.image = image
	e.needsProcessing = true
	if e.owner != nil {
		e.owner.markEnvironment()
	}
}

func (e *Environment) NeedsProcessing() bool { return e.needsProcessing }

// MarkProcessed is called by the renderer once the bake has completed.
func (e *Environment) MarkProcessed() { e.needsProcessing = false }
