package renderer

import (
	"fmt"

	"go.uber.org/zap"

	"deferred-renderer/core"
	"deferred-renderer/internal/gpu"
	"deferred-renderer/scene"
)

// gpuMesh is the uploaded copy of one submesh.
type gpuMesh struct {
	vertices *gpu.Buffer
	indices  *gpu.Buffer
	// static binds only the per-vertex attributes, for draws that pass
	// the model matrix as a uniform.
	static *gpu.VertexArray
	count  int32
}

func (m *gpuMesh) call(vao *gpu.VertexArray, instances int) gpu.DrawCall {
	return gpu.DrawCall{
		VertexArray: vao.ID(),
		Primitive:   gpu.Triangles,
		Count:       m.count,
		Indexed:     m.indices != nil,
		Instances:   int32(instances),
	}
}

func (m *gpuMesh) destroy() {
	m.static.Destroy()
	m.indices.Destroy()
	m.vertices.Destroy()
}

// staticAttribs describes the interleaved core.Vertex layout.
func staticAttribs(vbo gpu.BufferID) []gpu.VertexAttrib {
	return []gpu.VertexAttrib{
		{Location: 0, Buffer: vbo, Size: 3, Stride: core.VertexStride, Offset: core.OffsetPosition},
		{Location: 1, Buffer: vbo, Size: 3, Stride: core.VertexStride, Offset: core.OffsetNormal},
		{Location: 2, Buffer: vbo, Size: 2, Stride: core.VertexStride, Offset: core.OffsetUV},
		{Location: 3, Buffer: vbo, Size: 4, Stride: core.VertexStride, Offset: core.OffsetColor},
		{Location: 4, Buffer: vbo, Size: 3, Stride: core.VertexStride, Offset: core.OffsetTangent},
	}
}

// uploadCache lazily uploads scene meshes and textures and owns the copies.
type uploadCache struct {
	device gpu.Device
	logger *zap.Logger

	meshes   map[*scene.Submesh]*gpuMesh
	textures map[*scene.Texture]*gpu.Texture
	// Textures that failed to upload are not retried.
	broken map[*scene.Texture]bool
	// Pinned submeshes survive retainMeshes.
	pinned map[*scene.Submesh]bool
}

func newUploadCache(d gpu.Device, logger *zap.Logger) *uploadCache {
	return &uploadCache{
		device:   d,
		logger:   logger,
		meshes:   make(map[*scene.Submesh]*gpuMesh),
		textures: make(map[*scene.Texture]*gpu.Texture),
		broken:   make(map[*scene.Texture]bool),
		pinned:   make(map[*scene.Submesh]bool),
	}
}

func (c *uploadCache) mesh(sub *scene.Submesh) (*gpuMesh, error) {
	if m, ok := c.meshes[sub]; ok {
		return m, nil
	}
	if len(sub.Vertices) == 0 {
		return nil, fmt.Errorf("submesh %q: no vertices: %w", sub.Name, gpu.ErrInvalidSize)
	}
	vbo, err := gpu.NewVertexBuffer(c.device, core.FlattenVertices(sub.Vertices))
	if err != nil {
		return nil, fmt.Errorf("submesh %q: %w", sub.Name, err)
	}
	m := &gpuMesh{vertices: vbo, count: int32(sub.IndexCount())}
	if len(sub.Indices) > 0 {
		if m.indices, err = gpu.NewIndexBuffer(c.device, sub.Indices); err != nil {
			vbo.Destroy()
			return nil, fmt.Errorf("submesh %q: %w", sub.Name, err)
		}
	}
	m.static = gpu.NewVertexArray(c.device, gpu.VertexArrayDesc{
		Label:   sub.Name,
		Attribs: staticAttribs(vbo.ID()),
		Indices: m.indices.ID(),
	})
	c.meshes[sub] = m
	return m, nil
}

// texture returns the uploaded copy of t, or fallback when t is nil or
// cannot be uploaded.
func (c *uploadCache) texture(t *scene.Texture, fallback *gpu.Texture) *gpu.Texture {
	if t == nil || c.broken[t] {
		return fallback
	}
	if tex, ok := c.textures[t]; ok {
		return tex
	}
	tex, err := c.upload(t)
	if err != nil {
		c.broken[t] = true
		c.logger.Warn("texture upload failed, using default", zap.String("texture", t.Name), zap.Error(err))
		return fallback
	}
	c.textures[t] = tex
	return tex
}

func (c *uploadCache) upload(t *scene.Texture) (*gpu.Texture, error) {
	if len(t.Pixels) != t.Width*t.Height*4 {
		return nil, fmt.Errorf("%d bytes for %dx%d RGBA: %w", len(t.Pixels), t.Width, t.Height, gpu.ErrInvalidSize)
	}
	size := max(t.Width, t.Height)
	tex, err := gpu.NewTexture(c.device, gpu.TextureDesc{
		Label: t.Name, Format: gpu.FormatRGBA8, Width: t.Width, Height: t.Height,
		Levels: gpu.MipCount(size), Filter: gpu.FilterTrilinear, Wrap: gpu.WrapRepeat,
	})
	if err != nil {
		return nil, err
	}
	if err := tex.Write(t.Pixels); err != nil {
		tex.Destroy()
		return nil, err
	}
	tex.GenerateMipmaps()
	return tex, nil
}

// pin uploads sub and keeps it until release.
func (c *uploadCache) pin(sub *scene.Submesh) (*gpuMesh, error) {
	m, err := c.mesh(sub)
	if err == nil {
		c.pinned[sub] = true
	}
	return m, err
}

// retainMeshes releases uploaded submeshes that are neither in keep nor
// pinned.
func (c *uploadCache) retainMeshes(keep map[*scene.Submesh]bool) {
	for sub, m := range c.meshes {
		if !keep[sub] && !c.pinned[sub] {
			m.destroy()
			delete(c.meshes, sub)
		}
	}
}

func (c *uploadCache) release() {
	for _, m := range c.meshes {
		m.destroy()
	}
	for _, t := range c.textures {
		t.Destroy()
	}
	clear(c.meshes)
	clear(c.textures)
	clear(c.broken)
	clear(c.pinned)
}
