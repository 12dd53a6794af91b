// Package opengl implements gpu.Device on an OpenGL 4.1 core context. Every
// method must be called from the goroutine that owns the context.
package opengl

import (
	"fmt"
	"unsafe"

	gl "github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"deferred-renderer/internal/gpu"
)

// Device is the OpenGL backend.
type Device struct {
	logger    *zap.Logger
	program   gpu.ProgramID
	locations map[gpu.ProgramID]map[string]int32
	warned    map[string]bool
	state     gpu.State
	stateSet  bool
}

// NewDevice loads the GL function pointers for the current context.
func NewDevice(logger *zap.Logger) (*Device, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("opengl init: %w", err)
	}
	logger.Info("opengl context",
		zap.String("version", gl.GoStr(gl.GetString(gl.VERSION))),
		zap.String("renderer", gl.GoStr(gl.GetString(gl.RENDERER))),
		zap.String("glsl", gl.GoStr(gl.GetString(gl.SHADING_LANGUAGE_VERSION))))
	gl.Enable(gl.TEXTURE_CUBE_MAP_SEAMLESS)
	return &Device{
		logger:    logger,
		locations: make(map[gpu.ProgramID]map[string]int32),
		warned:    make(map[string]bool),
	}, nil
}

// ── textures ─────────────────────────────────────────────────────────────────

type pixelFormat struct {
	internal int32
	format   uint32
	xtype    uint32
}

func glFormat(f gpu.Format) pixelFormat {
	switch f {
	case gpu.FormatRGBA16F:
		return pixelFormat{gl.RGBA16F, gl.RGBA, gl.FLOAT}
	case gpu.FormatR8:
		return pixelFormat{gl.R8, gl.RED, gl.UNSIGNED_BYTE}
	case gpu.FormatR32F:
		return pixelFormat{gl.R32F, gl.RED, gl.FLOAT}
	case gpu.FormatDepth32F:
		return pixelFormat{gl.DEPTH_COMPONENT32F, gl.DEPTH_COMPONENT, gl.FLOAT}
	}
	return pixelFormat{gl.RGBA8, gl.RGBA, gl.UNSIGNED_BYTE}
}

func glTarget(kind gpu.TextureKind) uint32 {
	if kind == gpu.TextureCube {
		return gl.TEXTURE_CUBE_MAP
	}
	return gl.TEXTURE_2D
}

// faceTarget is the image target of one layer of a texture.
func faceTarget(kind gpu.TextureKind, face int) uint32 {
	if kind == gpu.TextureCube {
		return gl.TEXTURE_CUBE_MAP_POSITIVE_X + uint32(face)
	}
	return gl.TEXTURE_2D
}

// CreateTexture allocates every declared level with an explicit base and
// max level so partially rendered mip chains stay complete.
func (d *Device) CreateTexture(desc gpu.TextureDesc) (gpu.TextureID, error) {
	target := glTarget(desc.Kind)
	pf := glFormat(desc.Format)

	var id uint32
	gl.GenTextures(1, &id)
	if id == 0 {
		return 0, fmt.Errorf("glGenTextures: %w", gpu.ErrOutOfMemory)
	}
	gl.BindTexture(target, id)

	faces := 1
	if desc.Kind == gpu.TextureCube {
		faces = gpu.CubeFaces
	}
	for level := 0; level < desc.Levels; level++ {
		w, h := desc.LevelSize(level)
		for face := 0; face < faces; face++ {
			gl.TexImage2D(faceTarget(desc.Kind, face), int32(level), pf.internal,
				int32(w), int32(h), 0, pf.format, pf.xtype, nil)
		}
	}
	gl.TexParameteri(target, gl.TEXTURE_BASE_LEVEL, 0)
	gl.TexParameteri(target, gl.TEXTURE_MAX_LEVEL, int32(desc.Levels-1))

	minFilter, magFilter := int32(gl.LINEAR), int32(gl.LINEAR)
	switch desc.Filter {
	case gpu.FilterNearest:
		minFilter, magFilter = gl.NEAREST, gl.NEAREST
	case gpu.FilterTrilinear:
		minFilter = gl.LINEAR_MIPMAP_LINEAR
	}
	gl.TexParameteri(target, gl.TEXTURE_MIN_FILTER, minFilter)
	gl.TexParameteri(target, gl.TEXTURE_MAG_FILTER, magFilter)

	wrap := int32(gl.CLAMP_TO_EDGE)
	if desc.Wrap == gpu.WrapRepeat {
		wrap = gl.REPEAT
	}
	gl.TexParameteri(target, gl.TEXTURE_WRAP_S, wrap)
	gl.TexParameteri(target, gl.TEXTURE_WRAP_T, wrap)
	if desc.Kind == gpu.TextureCube {
		gl.TexParameteri(target, gl.TEXTURE_WRAP_R, wrap)
	}
	if desc.Compare {
		border := [4]float32{1, 1, 1, 1}
		gl.TexParameteri(target, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_BORDER)
		gl.TexParameteri(target, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_BORDER)
		gl.TexParameterfv(target, gl.TEXTURE_BORDER_COLOR, &border[0])
		gl.TexParameteri(target, gl.TEXTURE_COMPARE_MODE, gl.COMPARE_REF_TO_TEXTURE)
		gl.TexParameteri(target, gl.TEXTURE_COMPARE_FUNC, gl.LEQUAL)
	}
	gl.BindTexture(target, 0)
	return gpu.TextureID(id), nil
}

func (d *Device) WriteTexture(id gpu.TextureID, desc gpu.TextureDesc, face, level int, pixels []byte) error {
	if len(pixels) == 0 {
		return fmt.Errorf("texture %q: no pixel data: %w", desc.Label, gpu.ErrInvalidSize)
	}
	return d.writeTexture(id, desc, face, level, gl.UNSIGNED_BYTE, unsafe.Pointer(&pixels[0]))
}

func (d *Device) WriteTextureFloat(id gpu.TextureID, desc gpu.TextureDesc, face, level int, pixels []float32) error {
	if len(pixels) == 0 {
		return fmt.Errorf("texture %q: no pixel data: %w", desc.Label, gpu.ErrInvalidSize)
	}
	return d.writeTexture(id, desc, face, level, gl.FLOAT, unsafe.Pointer(&pixels[0]))
}

func (d *Device) writeTexture(id gpu.TextureID, desc gpu.TextureDesc, face, level int, xtype uint32, data unsafe.Pointer) error {
	target := glTarget(desc.Kind)
	pf := glFormat(desc.Format)
	w, h := desc.LevelSize(level)
	gl.BindTexture(target, uint32(id))
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	gl.TexSubImage2D(faceTarget(desc.Kind, face), int32(level), 0, 0, int32(w), int32(h), pf.format, xtype, data)
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 4)
	gl.BindTexture(target, 0)
	return nil
}

func (d *Device) GenerateMipmaps(id gpu.TextureID, kind gpu.TextureKind) {
	target := glTarget(kind)
	gl.BindTexture(target, uint32(id))
	gl.GenerateMipmap(target)
	gl.BindTexture(target, 0)
}

func (d *Device) DeleteTexture(id gpu.TextureID) {
	tex := uint32(id)
	gl.DeleteTextures(1, &tex)
}

// ── framebuffers ─────────────────────────────────────────────────────────────

func glAttachment(p gpu.AttachmentPoint) uint32 {
	if p == gpu.DepthAttachment {
		return gl.DEPTH_ATTACHMENT
	}
	return gl.COLOR_ATTACHMENT0 + uint32(p)
}

func (d *Device) CreateFramebuffer() gpu.FramebufferID {
	var fb uint32
	gl.GenFramebuffers(1, &fb)
	return gpu.FramebufferID(fb)
}

func (d *Device) AttachTexture(fb gpu.FramebufferID, point gpu.AttachmentPoint, tex gpu.TextureID, kind gpu.TextureKind, face, level int) {
	gl.BindFramebuffer(gl.FRAMEBUFFER, uint32(fb))
	gl.FramebufferTexture2D(gl.FRAMEBUFFER, glAttachment(point), faceTarget(kind, face), uint32(tex), int32(level))
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
}

func (d *Device) SetDrawBuffers(fb gpu.FramebufferID, points []gpu.AttachmentPoint) {
	gl.BindFramebuffer(gl.FRAMEBUFFER, uint32(fb))
	if len(points) == 0 {
		gl.DrawBuffer(gl.NONE)
		gl.ReadBuffer(gl.NONE)
	} else {
		bufs := make([]uint32, len(points))
		for i, p := range points {
			bufs[i] = glAttachment(p)
		}
		gl.DrawBuffers(int32(len(bufs)), &bufs[0])
		gl.ReadBuffer(bufs[0])
	}
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
}

func (d *Device) CheckFramebuffer(fb gpu.FramebufferID) gpu.FramebufferStatus {
	gl.BindFramebuffer(gl.FRAMEBUFFER, uint32(fb))
	status := gl.CheckFramebufferStatus(gl.FRAMEBUFFER)
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	switch status {
	case gl.FRAMEBUFFER_COMPLETE:
		return gpu.StatusComplete
	case gl.FRAMEBUFFER_INCOMPLETE_ATTACHMENT:
		return gpu.StatusIncompleteAttachment
	case gl.FRAMEBUFFER_INCOMPLETE_MISSING_ATTACHMENT:
		return gpu.StatusMissingAttachment
	case gl.FRAMEBUFFER_UNSUPPORTED:
		return gpu.StatusUnsupported
	}
	return gpu.StatusUndefined
}

func (d *Device) BindFramebuffer(fb gpu.FramebufferID) {
	gl.BindFramebuffer(gl.FRAMEBUFFER, uint32(fb))
}

func (d *Device) DeleteFramebuffer(fb gpu.FramebufferID) {
	id := uint32(fb)
	gl.DeleteFramebuffers(1, &id)
}

// ── buffers and vertex arrays ────────────────────────────────────────────────

func (d *Device) CreateBuffer(size int) (gpu.BufferID, error) {
	var id uint32
	gl.GenBuffers(1, &id)
	gl.BindBuffer(gl.ARRAY_BUFFER, id)
	gl.BufferData(gl.ARRAY_BUFFER, size, nil, gl.DYNAMIC_DRAW)
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	if errCode := gl.GetError(); errCode == gl.OUT_OF_MEMORY {
		gl.DeleteBuffers(1, &id)
		return 0, fmt.Errorf("buffer of %d bytes: %w", size, gpu.ErrOutOfMemory)
	}
	return gpu.BufferID(id), nil
}

func (d *Device) WriteBuffer(id gpu.BufferID, offset int, data []float32) {
	if len(data) == 0 {
		return
	}
	gl.BindBuffer(gl.ARRAY_BUFFER, uint32(id))
	gl.BufferSubData(gl.ARRAY_BUFFER, offset, len(data)*4, gl.Ptr(data))
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
}

func (d *Device) CreateIndexBuffer(indices []uint32) (gpu.BufferID, error) {
	var id uint32
	gl.GenBuffers(1, &id)
	// Element buffers bind through a vertex array; use the array target for
	// the upload so no vertex array state is touched.
	gl.BindBuffer(gl.ARRAY_BUFFER, id)
	gl.BufferData(gl.ARRAY_BUFFER, len(indices)*4, gl.Ptr(indices), gl.STATIC_DRAW)
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	if errCode := gl.GetError(); errCode == gl.OUT_OF_MEMORY {
		gl.DeleteBuffers(1, &id)
		return 0, fmt.Errorf("index buffer: %w", gpu.ErrOutOfMemory)
	}
	return gpu.BufferID(id), nil
}

func (d *Device) DeleteBuffer(id gpu.BufferID) {
	b := uint32(id)
	gl.DeleteBuffers(1, &b)
}

func (d *Device) CreateVertexArray(desc gpu.VertexArrayDesc) gpu.VertexArrayID {
	var vao uint32
	gl.GenVertexArrays(1, &vao)
	gl.BindVertexArray(vao)
	for _, a := range desc.Attribs {
		gl.BindBuffer(gl.ARRAY_BUFFER, uint32(a.Buffer))
		gl.EnableVertexAttribArray(a.Location)
		gl.VertexAttribPointer(a.Location, a.Size, gl.FLOAT, false, a.Stride, gl.PtrOffset(a.Offset))
		gl.VertexAttribDivisor(a.Location, a.Divisor)
	}
	if desc.Indices != 0 {
		gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, uint32(desc.Indices))
	}
	gl.BindVertexArray(0)
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	return gpu.VertexArrayID(vao)
}

func (d *Device) DeleteVertexArray(id gpu.VertexArrayID) {
	vao := uint32(id)
	gl.DeleteVertexArrays(1, &vao)
}

// ── programs ─────────────────────────────────────────────────────────────────

func (d *Device) CreateProgram(label, vertexSrc, fragmentSrc string) (gpu.ProgramID, error) {
	prog, err := newProgram(vertexSrc, fragmentSrc)
	if err != nil {
		return 0, err
	}
	d.locations[gpu.ProgramID(prog)] = make(map[string]int32)
	d.logger.Debug("program linked", zap.String("program", label), zap.Uint32("id", prog))
	return gpu.ProgramID(prog), nil
}

func (d *Device) UseProgram(id gpu.ProgramID) {
	d.program = id
	gl.UseProgram(uint32(id))
}

func (d *Device) location(name string) int32 {
	cache := d.locations[d.program]
	if loc, ok := cache[name]; ok {
		return loc
	}
	loc := gl.GetUniformLocation(uint32(d.program), gl.Str(name+"\x00"))
	if cache != nil {
		cache[name] = loc
	}
	return loc
}

// SetUniform ignores names the linker optimized away.
func (d *Device) SetUniform(name string, value any) {
	loc := d.location(name)
	if loc < 0 {
		return
	}
	switch v := value.(type) {
	case bool:
		var i int32
		if v {
			i = 1
		}
		gl.Uniform1i(loc, i)
	case int:
		gl.Uniform1i(loc, int32(v))
	case int32:
		gl.Uniform1i(loc, v)
	case float32:
		gl.Uniform1f(loc, v)
	case mgl32.Vec2:
		gl.Uniform2f(loc, v[0], v[1])
	case mgl32.Vec3:
		gl.Uniform3f(loc, v[0], v[1], v[2])
	case mgl32.Vec4:
		gl.Uniform4f(loc, v[0], v[1], v[2], v[3])
	case mgl32.Mat3:
		gl.UniformMatrix3fv(loc, 1, false, &v[0])
	case mgl32.Mat4:
		gl.UniformMatrix4fv(loc, 1, false, &v[0])
	case []mgl32.Vec3:
		if len(v) > 0 {
			gl.Uniform3fv(loc, int32(len(v)), &v[0][0])
		}
	case []float32:
		if len(v) > 0 {
			gl.Uniform1fv(loc, int32(len(v)), &v[0])
		}
	default:
		key := fmt.Sprintf("%s:%T", name, value)
		if !d.warned[key] {
			d.warned[key] = true
			d.logger.Warn("unsupported uniform type", zap.String("uniform", name), zap.String("type", fmt.Sprintf("%T", value)))
		}
	}
}

func (d *Device) DeleteProgram(id gpu.ProgramID) {
	gl.DeleteProgram(uint32(id))
	delete(d.locations, id)
	if d.program == id {
		d.program = 0
	}
}

// ── state and drawing ────────────────────────────────────────────────────────

func (d *Device) BindTexture(unit int, kind gpu.TextureKind, id gpu.TextureID) {
	gl.ActiveTexture(gl.TEXTURE0 + uint32(unit))
	gl.BindTexture(glTarget(kind), uint32(id))
}

func setCap(cap uint32, on bool) {
	if on {
		gl.Enable(cap)
	} else {
		gl.Disable(cap)
	}
}

// SetState applies only what changed since the last call.
func (d *Device) SetState(s gpu.State) {
	old := d.state
	first := !d.stateSet
	d.state, d.stateSet = s, true

	if first || s.DepthTest != old.DepthTest {
		setCap(gl.DEPTH_TEST, s.DepthTest)
	}
	if first || s.DepthWrite != old.DepthWrite {
		gl.DepthMask(s.DepthWrite)
	}
	if first || s.DepthFunc != old.DepthFunc {
		gl.DepthFunc(map[gpu.DepthFunc]uint32{
			gpu.DepthLess:    gl.LESS,
			gpu.DepthLEqual:  gl.LEQUAL,
			gpu.DepthGreater: gl.GREATER,
			gpu.DepthGEqual:  gl.GEQUAL,
			gpu.DepthAlways:  gl.ALWAYS,
		}[s.DepthFunc])
	}
	if first || s.Blend != old.Blend {
		switch s.Blend {
		case gpu.BlendNone:
			gl.Disable(gl.BLEND)
		case gpu.BlendAdditive:
			gl.Enable(gl.BLEND)
			gl.BlendFunc(gl.ONE, gl.ONE)
		case gpu.BlendAlpha:
			gl.Enable(gl.BLEND)
			gl.BlendFunc(gl.SRC_ALPHA, gl.ONE_MINUS_SRC_ALPHA)
		}
	}
	if first || s.ColorMask != old.ColorMask {
		m := s.ColorMask
		gl.ColorMask(m&gpu.MaskR != 0, m&gpu.MaskG != 0, m&gpu.MaskB != 0, m&gpu.MaskA != 0)
	}
	if first || s.Cull != old.Cull {
		switch s.Cull {
		case gpu.CullNone:
			gl.Disable(gl.CULL_FACE)
		case gpu.CullBack:
			gl.Enable(gl.CULL_FACE)
			gl.CullFace(gl.BACK)
		case gpu.CullFront:
			gl.Enable(gl.CULL_FACE)
			gl.CullFace(gl.FRONT)
		}
	}
	if first || s.ClipPlane != old.ClipPlane {
		setCap(gl.CLIP_DISTANCE0, s.ClipPlane)
	}
}

func (d *Device) Viewport(x, y, width, height int) {
	gl.Viewport(int32(x), int32(y), int32(width), int32(height))
}

// Clear ignores the color mask and depth mask of the current state.
func (d *Device) Clear(flags gpu.ClearFlags, color [4]float32) {
	var mask uint32
	if flags&gpu.ClearColor != 0 {
		gl.ColorMask(true, true, true, true)
		gl.ClearColor(color[0], color[1], color[2], color[3])
		mask |= gl.COLOR_BUFFER_BIT
	}
	if flags&gpu.ClearDepth != 0 {
		gl.DepthMask(true)
		gl.ClearDepth(1)
		mask |= gl.DEPTH_BUFFER_BIT
	}
	gl.Clear(mask)
	// Masks were overridden; force them to be re-applied.
	if d.stateSet {
		s := d.state
		d.stateSet = false
		d.SetState(s)
	}
}

func glPrimitive(p gpu.Primitive) uint32 {
	if p == gpu.Lines {
		return gl.LINES
	}
	return gl.TRIANGLES
}

func (d *Device) Draw(call gpu.DrawCall) {
	gl.BindVertexArray(uint32(call.VertexArray))
	mode := glPrimitive(call.Primitive)
	instances := call.Instances
	if instances < 1 {
		instances = 1
	}
	if call.Indexed {
		gl.DrawElementsInstanced(mode, call.Count, gl.UNSIGNED_INT, gl.PtrOffset(int(call.First)*4), instances)
	} else {
		gl.DrawArraysInstanced(mode, call.First, call.Count, instances)
	}
	gl.BindVertexArray(0)
}

func (d *Device) ReadPixel(x, y int) float32 {
	var v float32
	gl.ReadBuffer(gl.COLOR_ATTACHMENT0)
	gl.ReadPixels(int32(x), int32(y), 1, 1, gl.RED, gl.FLOAT, unsafe.Pointer(&v))
	return v
}

// ── timer queries ────────────────────────────────────────────────────────────

func (d *Device) CreateQuery() gpu.QueryID {
	var q uint32
	gl.GenQueries(1, &q)
	return gpu.QueryID(q)
}

func (d *Device) BeginTimer(id gpu.QueryID) { gl.BeginQuery(gl.TIME_ELAPSED, uint32(id)) }
func (d *Device) EndTimer()                 { gl.EndQuery(gl.TIME_ELAPSED) }

// TimerResult reads QUERY_RESULT directly. A query that was never ended
// reads as zero.
func (d *Device) TimerResult(id gpu.QueryID) uint64 {
	var ns uint64
	gl.GetQueryObjectui64v(uint32(id), gl.QUERY_RESULT, &ns)
	return ns
}

func (d *Device) DeleteQuery(id gpu.QueryID) {
	q := uint32(id)
	gl.DeleteQueries(1, &q)
}

var _ gpu.Device = (*Device)(nil)
