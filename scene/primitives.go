package scene

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"deferred-renderer/core"
)

var primitiveColor = core.Color{R: 0.8, G: 0.8, B: 0.8, A: 1.0}

// CreateSphere generates a UV sphere.
func CreateSphere(radius float32, segments, rings int) *Mesh {
	if segments < 3 {
		segments = 3
	}
	if rings < 2 {
		rings = 2
	}

	var vertices []core.Vertex
	var indices []uint32

	for ring := 0; ring <= rings; ring++ {
		sinPhi, cosPhi := sincos(float32(ring) * math.Pi / float32(rings))
		for seg := 0; seg <= segments; seg++ {
			sinTheta, cosTheta := sincos(float32(seg) * 2 * math.Pi / float32(segments))
			normal := mgl32.Vec3{sinPhi * cosTheta, cosPhi, sinPhi * sinTheta}
			vertices = append(vertices, core.Vertex{
				Position: normal.Mul(radius),
				Normal:   normal,
				UV:       mgl32.Vec2{float32(seg) / float32(segments), float32(ring) / float32(rings)},
				Color:    primitiveColor,
			})
		}
	}

	for ring := 0; ring < rings; ring++ {
		for seg := 0; seg < segments; seg++ {
			current := uint32(ring*(segments+1) + seg)
			next := current + uint32(segments+1)
			indices = append(indices, current, current+1, next)
			indices = append(indices, current+1, next+1, next)
		}
	}

	m := CreateMeshFromData("Sphere", vertices, indices)
	ComputeTangents(m.Submeshes[0])
	return m
}

// CreatePlane generates a subdivided plane on XZ facing +Y.
func CreatePlane(width, depth float32, subdivisions int) *Mesh {
	return CreateHeightfield("Plane", width, depth, subdivisions, nil)
}

// CreateHeightfield generates a grid on XZ whose vertex heights come from
// height(u, v) with u, v in [0, 1]. A nil height gives a flat plane. Normals
// are taken from central differences.
func CreateHeightfield(name string, width, depth float32, subdivisions int, height func(u, v float32) float32) *Mesh {
	if subdivisions < 1 {
		subdivisions = 1
	}
	if height == nil {
		height = func(u, v float32) float32 { return 0 }
	}
	n := subdivisions + 1
	step := 1 / float32(subdivisions)
	vertices := make([]core.Vertex, 0, n*n)
	for z := 0; z < n; z++ {
		for x := 0; x < n; x++ {
			u, v := float32(x)*step, float32(z)*step
			hl, hr := height(u-step, v), height(u+step, v)
			hd, hu := height(u, v-step), height(u, v+step)
			normal := mgl32.Vec3{
				(hl - hr) / (2 * step * width),
				1,
				(hd - hu) / (2 * step * depth),
			}.Normalize()
			vertices = append(vertices, core.Vertex{
				Position: mgl32.Vec3{-width/2 + u*width, height(u, v), -depth/2 + v*depth},
				Normal:   normal,
				UV:       mgl32.Vec2{u, v},
				Color:    primitiveColor,
			})
		}
	}

	indices := make([]uint32, 0, subdivisions*subdivisions*6)
	for z := 0; z < subdivisions; z++ {
		for x := 0; x < subdivisions; x++ {
			topLeft := uint32(z*n + x)
			topRight := topLeft + 1
			bottomLeft := topLeft + uint32(n)
			bottomRight := bottomLeft + 1
			indices = append(indices, topLeft, bottomLeft, topRight)
			indices = append(indices, topRight, bottomLeft, bottomRight)
		}
	}

	m := CreateMeshFromData(name, vertices, indices)
	ComputeTangents(m.Submeshes[0])
	return m
}

// CreateCube generates a cube with per-face normals.
func CreateCube(size float32) *Mesh {
	s := size / 2
	faces := []struct {
		normal, u, v mgl32.Vec3
	}{
		{mgl32.Vec3{0, 0, 1}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{0, 0, -1}, mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{0, 1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, -1}},
		{mgl32.Vec3{0, -1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, 1}},
		{mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, 1, 0}},
	}
	corners := [4][2]float32{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}

	var vertices []core.Vertex
	var indices []uint32
	for _, f := range faces {
		base := uint32(len(vertices))
		for _, c := range corners {
			p := f.normal.Add(f.u.Mul(c[0])).Add(f.v.Mul(c[1])).Mul(s)
			vertices = append(vertices, core.Vertex{
				Position: p,
				Normal:   f.normal,
				UV:       mgl32.Vec2{(c[0] + 1) / 2, (c[1] + 1) / 2},
				Color:    core.ColorWhite,
				Tangent:  f.u,
			})
		}
		indices = append(indices, base, base+1, base+2, base+2, base+3, base)
	}
	return CreateMeshFromData("Cube", vertices, indices)
}
