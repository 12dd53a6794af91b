package scene

import "math"

// TerrainRenderer draws a heightfield. The mesh is built on first use and
// rebuilt after any parameter change.
type TerrainRenderer struct {
	Width        float32
	Depth        float32
	Subdivisions int
	// Heights is a row-major (Subdivisions+1)² grid in [0, 1], scaled by
	// HeightScale. Nil gives a flat terrain.
	Heights     []float32
	HeightScale float32
	Material    *Material

	mesh  *Mesh
	owner *Entity
}

func NewTerrain(width, depth float32, subdivisions int, material *Material) *TerrainRenderer {
	return &TerrainRenderer{
		Width:        width,
		Depth:        depth,
		Subdivisions: subdivisions,
		HeightScale:  1,
		Material:     material,
	}
}

// SetHeights replaces the height grid and schedules a rebuild.
func (t *TerrainRenderer) SetHeights(heights []float32, scale float32) {
	t.Heights = heights
	t.HeightScale = scale
	t.mesh = nil
	if t.owner != nil {
		t.owner.markRenderList()
	}
}

// Mesh returns the heightfield mesh.
func (t *TerrainRenderer) Mesh() *Mesh {
	if t.mesh == nil {
		t.mesh = CreateHeightfield("Terrain", t.Width, t.Depth, t.Subdivisions, t.sample)
	}
	return t.mesh
}

// sample bilinearly interpolates the height grid.
func (t *TerrainRenderer) sample(u, v float32) float32 {
	n := t.Subdivisions + 1
	if len(t.Heights) < n*n {
		return 0
	}
	fx := clamp01(u) * float32(t.Subdivisions)
	fz := clamp01(v) * float32(t.Subdivisions)
	x0, z0 := int(fx), int(fz)
	x1, z1 := min(x0+1, n-1), min(z0+1, n-1)
	tx, tz := fx-float32(x0), fz-float32(z0)
	h := func(x, z int) float32 { return t.Heights[z*n+x] }
	top := h(x0, z0)*(1-tx) + h(x1, z0)*tx
	bottom := h(x0, z1)*(1-tx) + h(x1, z1)*tx
	return (top*(1-tz) + bottom*tz) * t.HeightScale
}

// WaveHeights builds a rolling-hills grid, useful for demos.
func WaveHeights(subdivisions int, frequency float32) []float32 {
	n := subdivisions + 1
	out := make([]float32, n*n)
	for z := 0; z < n; z++ {
		for x := 0; x < n; x++ {
			u := float64(x) / float64(subdivisions)
			v := float64(z) / float64(subdivisions)
			f := float64(frequency)
			out[z*n+x] = float32(0.5 + 0.25*math.Sin(u*f*2*math.Pi) + 0.25*math.Cos(v*f*2*math.Pi))
		}
	}
	return out
}

func clamp01(f float32) float32 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
