package renderer

import (
	"sort"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"deferred-renderer/internal/gpu"
	"deferred-renderer/scene"
)

const (
	matrixBytes = 16 * 4
	// instanceBytes is one model matrix plus one normal matrix.
	instanceBytes = 2 * matrixBytes

	modelLocation  = 6
	normalLocation = 10

	gizmoScale = 0.1
)

// Instance is one drawable submesh with its world transform.
type Instance struct {
	Entity   *scene.Entity
	Submesh  *scene.Submesh
	Material *scene.Material
	Model    mgl32.Mat4
}

// InstanceGroup is a run of instances sharing a submesh and a material,
// drawn with one instanced call. Its region of the instancing buffer starts
// at Offset and holds every model matrix, then every normal matrix.
type InstanceGroup struct {
	Submesh     *scene.Submesh
	Material    *scene.Material
	Models      []mgl32.Mat4
	Normals     []mgl32.Mat4
	Offset      int
	VertexArray *gpu.VertexArray

	mesh *gpuMesh
}

func (g *InstanceGroup) Count() int { return len(g.Models) }

// instanceBatcher caches the sorted instance groups of a scene until its
// render list changes.
type instanceBatcher struct {
	device  gpu.Device
	logger  *zap.Logger
	uploads *uploadCache

	defaultMaterial *scene.Material
	gizmo           *scene.Submesh
	gizmoMaterials  map[*scene.Light]*scene.Material

	buffer *gpu.Buffer
	groups []*InstanceGroup

	scene  *scene.Scene
	gizmos bool
	// rebuilds counts completed rebuilds.
	rebuilds int
}

func newInstanceBatcher(d gpu.Device, logger *zap.Logger, uploads *uploadCache, gizmo *scene.Submesh) *instanceBatcher {
	return &instanceBatcher{
		device:          d,
		logger:          logger,
		uploads:         uploads,
		defaultMaterial: scene.DefaultMaterial(),
		gizmo:           gizmo,
		gizmoMaterials:  make(map[*scene.Light]*scene.Material),
	}
}

// needsRebuild is true when the scene's render list changed, a different
// scene is drawn, or the gizmo toggle flipped since the last rebuild.
func (b *instanceBatcher) needsRebuild(s *scene.Scene) bool {
	return s.RenderListChanged() || s != b.scene || s.Settings.RenderLightGizmos != b.gizmos
}

// rebuild regenerates the groups. On allocation failure the group list is
// left empty and nothing is uploaded.
func (b *instanceBatcher) rebuild(s *scene.Scene) {
	b.scene = s
	b.gizmos = s.Settings.RenderLightGizmos
	b.rebuilds++
	b.releaseGroups()

	instances, keep := b.collect(s)
	sort.SliceStable(instances, func(i, j int) bool {
		a, c := instances[i], instances[j]
		if a.Material.ID != c.Material.ID {
			return a.Material.ID < c.Material.ID
		}
		return a.Submesh.ID < c.Submesh.ID
	})

	groups := groupInstances(instances)
	b.uploads.retainMeshes(keep)

	required := 0
	for _, g := range groups {
		g.Offset = required
		required += g.Count() * instanceBytes
	}
	if required == 0 {
		return
	}
	if err := b.reserve(required); err != nil {
		b.logger.Warn("instance buffer allocation failed, skipping batches",
			zap.Int("bytes", required), zap.Error(err))
		return
	}

	for _, g := range groups {
		mesh, err := b.uploads.mesh(g.Submesh)
		if err != nil {
			b.logger.Warn("submesh upload failed", zap.String("submesh", g.Submesh.Name), zap.Error(err))
			continue
		}
		g.mesh = mesh
		b.buffer.Write(g.Offset, flattenMatrices(g.Models))
		normalOffset := g.Offset + g.Count()*matrixBytes
		b.buffer.Write(normalOffset, flattenMatrices(g.Normals))
		g.VertexArray = gpu.NewVertexArray(b.device, gpu.VertexArrayDesc{
			Label:   g.Submesh.Name + " instances",
			Attribs: append(staticAttribs(mesh.vertices.ID()), instanceAttribs(b.buffer.ID(), g.Offset, normalOffset)...),
			Indices: mesh.indices.ID(),
		})
		b.groups = append(b.groups, g)
	}
	b.logger.Debug("instance batches rebuilt", zap.Int("instances", len(instances)), zap.Int("groups", len(b.groups)))
}

// collect emits one instance per surface submesh of every active entity
// plus one gizmo per light. keep is every submesh the scene references.
func (b *instanceBatcher) collect(s *scene.Scene) ([]Instance, map[*scene.Submesh]bool) {
	var out []Instance
	keep := make(map[*scene.Submesh]bool)
	lights := make(map[*scene.Light]bool)

	add := func(e *scene.Entity, mesh *scene.Mesh, material func(int) *scene.Material) {
		if mesh == nil {
			return
		}
		model := e.WorldMatrix()
		for i, sub := range mesh.Submeshes {
			keep[sub] = true
			mat := material(i)
			if mat == nil {
				mat = b.defaultMaterial
			}
			if mat.Shader != scene.ShaderSurface {
				continue
			}
			out = append(out, Instance{Entity: e, Submesh: sub, Material: mat, Model: model})
		}
	}

	for _, e := range s.Entities() {
		if !e.Active() {
			continue
		}
		if mr, ok := e.MeshRenderer(); ok {
			add(e, mr.Mesh, mr.Material)
		}
		if t, ok := e.Terrain(); ok {
			add(e, t.Mesh(), func(int) *scene.Material { return t.Material })
		}
		if l, ok := e.Light(); ok && b.gizmos {
			lights[l] = true
			out = append(out, Instance{
				Entity:   e,
				Submesh:  b.gizmo,
				Material: b.gizmoMaterial(l),
				Model:    gizmoModel(e),
			})
		}
	}
	for l := range b.gizmoMaterials {
		if !lights[l] {
			delete(b.gizmoMaterials, l)
		}
	}
	return out, keep
}

// gizmoMaterial returns the emissive material a light's gizmo is drawn
// with. It is cached so its ID, and therefore the sort order, is stable.
func (b *instanceBatcher) gizmoMaterial(l *scene.Light) *scene.Material {
	m, ok := b.gizmoMaterials[l]
	if !ok {
		m = scene.NewMaterial("light gizmo", l.Color)
		m.Roughness = 1
		b.gizmoMaterials[l] = m
	}
	m.Albedo = l.Color
	m.Emissive = l.Color
	return m
}

// refreshGizmos copies the current light colors into the gizmo materials.
// Colors are read at draw time, so a color edit needs no rebuild.
func (b *instanceBatcher) refreshGizmos() {
	for l, m := range b.gizmoMaterials {
		m.Albedo = l.Color
		m.Emissive = l.Color
	}
}

func gizmoModel(e *scene.Entity) mgl32.Mat4 {
	p := e.WorldPosition()
	return mgl32.Translate3D(p[0], p[1], p[2]).Mul4(mgl32.Scale3D(gizmoScale, gizmoScale, gizmoScale))
}

// groupInstances merges adjacent instances with equal keys.
func groupInstances(instances []Instance) []*InstanceGroup {
	var groups []*InstanceGroup
	var cur *InstanceGroup
	for _, in := range instances {
		if cur == nil || cur.Submesh != in.Submesh || cur.Material != in.Material {
			cur = &InstanceGroup{Submesh: in.Submesh, Material: in.Material}
			groups = append(groups, cur)
		}
		cur.Models = append(cur.Models, in.Model)
		cur.Normals = append(cur.Normals, normalMatrix(in.Model))
	}
	return groups
}

// normalMatrix is the inverse transpose of the upper 3x3 of model.
func normalMatrix(model mgl32.Mat4) mgl32.Mat4 {
	return model.Mat3().Inv().Transpose().Mat4()
}

// reserve makes the buffer hold at least required bytes. It reallocates
// only when the buffer is too small or more than twice as large as needed.
func (b *instanceBatcher) reserve(required int) error {
	if b.buffer != nil {
		capacity := b.buffer.Size()
		if required <= capacity && required >= capacity/2 {
			return nil
		}
		b.buffer.Destroy()
		b.buffer = nil
	}
	buf, err := gpu.NewBuffer(b.device, required)
	if err != nil {
		return err
	}
	b.buffer = buf
	return nil
}

func instanceAttribs(buf gpu.BufferID, modelOffset, normalOffset int) []gpu.VertexAttrib {
	attribs := make([]gpu.VertexAttrib, 0, 8)
	for col := 0; col < 4; col++ {
		attribs = append(attribs, gpu.VertexAttrib{
			Location: uint32(modelLocation + col), Buffer: buf, Size: 4,
			Stride: matrixBytes, Offset: modelOffset + col*16, Divisor: 1,
		})
	}
	for col := 0; col < 4; col++ {
		attribs = append(attribs, gpu.VertexAttrib{
			Location: uint32(normalLocation + col), Buffer: buf, Size: 4,
			Stride: matrixBytes, Offset: normalOffset + col*16, Divisor: 1,
		})
	}
	return attribs
}

func flattenMatrices(ms []mgl32.Mat4) []float32 {
	out := make([]float32, 0, len(ms)*16)
	for _, m := range ms {
		out = append(out, m[:]...)
	}
	return out
}

func (b *instanceBatcher) releaseGroups() {
	for _, g := range b.groups {
		g.VertexArray.Destroy()
	}
	b.groups = nil
}

func (b *instanceBatcher) release() {
	b.releaseGroups()
	b.buffer.Destroy()
	b.buffer = nil
	b.scene = nil
}
