package core

import "github.com/go-gl/mathgl/mgl32"

type Color struct {
	R, G, B, A float32
}

var (
	ColorWhite  = Color{1, 1, 1, 1}
	ColorBlack  = Color{0, 0, 0, 1}
	ColorRed    = Color{1, 0, 0, 1}
	ColorGreen  = Color{0, 1, 0, 1}
	ColorBlue   = Color{0, 0, 1, 1}
	ColorYellow = Color{1, 1, 0, 1}
	ColorOrange = Color{1, 0.55, 0.1, 1}
)

// Vec3 drops alpha.
func (c Color) Vec3() mgl32.Vec3 { return mgl32.Vec3{c.R, c.G, c.B} }

func (c Color) Vec4() mgl32.Vec4 { return mgl32.Vec4{c.R, c.G, c.B, c.A} }

// Scale multiplies the RGB channels and keeps alpha.
func (c Color) Scale(s float32) Color {
	return Color{c.R * s, c.G * s, c.B * s, c.A}
}

// Vertex is the interleaved layout uploaded for every submesh.
// Attribute locations: 0 position, 1 normal, 2 uv, 3 color, 4 tangent.
type Vertex struct {
	Position mgl32.Vec3
	Normal   mgl32.Vec3
	UV       mgl32.Vec2
	Color    Color
	Tangent  mgl32.Vec3
}

// VertexFloats is the number of float32 values per interleaved vertex.
const VertexFloats = 3 + 3 + 2 + 4 + 3

// VertexStride is the byte stride of one interleaved vertex.
const VertexStride = VertexFloats * 4

// Attribute byte offsets inside one interleaved vertex.
const (
	OffsetPosition = 0
	OffsetNormal   = 3 * 4
	OffsetUV       = 6 * 4
	OffsetColor    = 8 * 4
	OffsetTangent  = 12 * 4
)

// FlattenVertices returns the interleaved float stream for vertices.
func FlattenVertices(vertices []Vertex) []float32 {
	out := make([]float32, 0, len(vertices)*VertexFloats)
	for _, v := range vertices {
		out = append(out,
			v.Position[0], v.Position[1], v.Position[2],
			v.Normal[0], v.Normal[1], v.Normal[2],
			v.UV[0], v.UV[1],
			v.Color.R, v.Color.G, v.Color.B, v.Color.A,
			v.Tangent[0], v.Tangent[1], v.Tangent[2],
		)
	}
	return out
}
