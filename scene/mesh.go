package scene

import (
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl32"

	"deferred-renderer/core"
)

var submeshIDs atomic.Uint32

// Submesh is one indexed triangle list. ID is a creation-order handle used
// as a stable sort key.
type Submesh struct {
	ID       uint32
	Name     string
	Vertices []core.Vertex
	Indices  []uint32
	Bounds   AABB
}

// NewSubmesh builds a submesh and computes its local bounds.
func NewSubmesh(name string, vertices []core.Vertex, indices []uint32) *Submesh {
	s := &Submesh{
		ID:       submeshIDs.Add(1),
		Name:     name,
		Vertices: vertices,
		Indices:  indices,
	}
	if len(vertices) > 0 {
		s.Bounds = computeLocalAABB(vertices)
	}
	return s
}

// IndexCount is the number of indices, or vertices when unindexed.
func (s *Submesh) IndexCount() int {
	if len(s.Indices) > 0 {
		return len(s.Indices)
	}
	return len(s.Vertices)
}

// Mesh groups submeshes drawn with one transform.
type Mesh struct {
	Name      string
	Submeshes []*Submesh
}

func NewMesh(name string, submeshes ...*Submesh) *Mesh {
	return &Mesh{Name: name, Submeshes: submeshes}
}

// CreateMeshFromData wraps a single submesh in a mesh.
func CreateMeshFromData(name string, vertices []core.Vertex, indices []uint32) *Mesh {
	return NewMesh(name, NewSubmesh(name, vertices, indices))
}

// Bounds is the union of the submesh bounds.
func (m *Mesh) Bounds() AABB {
	var out AABB
	for i, s := range m.Submeshes {
		if i == 0 {
			out = s.Bounds
			continue
		}
		out = out.Union(s.Bounds)
	}
	return out
}

func computeLocalAABB(vertices []core.Vertex) AABB {
	mn := vertices[0].Position
	mx := vertices[0].Position
	for _, v := range vertices[1:] {
		for k := 0; k < 3; k++ {
			if v.Position[k] < mn[k] {
				mn[k] = v.Position[k]
			}
			if v.Position[k] > mx[k] {
				mx[k] = v.Position[k]
			}
		}
	}
	return AABB{Min: mn, Max: mx}
}

// AABB is an axis-aligned bounding box.
type AABB struct {
	Min, Max mgl32.Vec3
}

func (b AABB) Union(o AABB) AABB {
	for k := 0; k < 3; k++ {
		if o.Min[k] < b.Min[k] {
			b.Min[k] = o.Min[k]
		}
		if o.Max[k] > b.Max[k] {
			b.Max[k] = o.Max[k]
		}
	}
	return b
}

func (b AABB) Center() mgl32.Vec3 { return b.Min.Add(b.Max).Mul(0.5) }

// Radius is half the diagonal.
func (b AABB) Radius() float32 { return b.Max.Sub(b.Min).Len() * 0.5 }
