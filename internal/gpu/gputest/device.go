// Package gputest provides a recording gpu.Device for tests. It tracks live
// resources, applies framebuffer completeness rules, logs every draw and
// rasterizes picking draws as point splats.
package gputest

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"deferred-renderer/internal/gpu"
)

// SplatRadius is the half-size, in pixels, of the square a picking draw
// covers around the projected model origin.
const SplatRadius = 8

// Counts is the number of live resources per kind.
type Counts struct {
	Textures     int
	Framebuffers int
	Buffers      int
	VertexArrays int
	Programs     int
	Queries      int
}

func (c Counts) Total() int {
	return c.Textures + c.Framebuffers + c.Buffers + c.VertexArrays + c.Programs + c.Queries
}

// DrawRecord is one logged draw with the state it ran under.
type DrawRecord struct {
	Framebuffer gpu.FramebufferID
	Program     string
	Call        gpu.DrawCall
	State       gpu.State
	Textures    map[int]gpu.TextureID
	Uniforms    map[string]any
	Viewport    [4]int
}

type texture struct {
	desc   gpu.TextureDesc
	writes int
	// R32F level-0 texel store for picking.
	texels []float32
	depth  []float32
}

type attachment struct {
	tex   gpu.TextureID
	kind  gpu.TextureKind
	face  int
	level int
}

type framebuffer struct {
	attachments map[gpu.AttachmentPoint]attachment
	drawBuffers []gpu.AttachmentPoint
}

type program struct {
	label    string
	uniforms map[string]any
}

// Device is a fake gpu.Device. The zero value is not usable; call New.
type Device struct {
	next uint32

	textures     map[gpu.TextureID]*texture
	framebuffers map[gpu.FramebufferID]*framebuffer
	buffers      map[gpu.BufferID]int
	vertexArrays map[gpu.VertexArrayID]gpu.VertexArrayDesc
	programs     map[gpu.ProgramID]*program
	queries      map[gpu.QueryID]bool

	boundFB  gpu.FramebufferID
	program  gpu.ProgramID
	units    map[int]gpu.TextureID
	state    gpu.State
	viewport [4]int

	// Draws is every draw issued, in order.
	Draws []DrawRecord
	// MipmapCalls counts GenerateMipmaps per texture.
	MipmapCalls map[gpu.TextureID]int
	// BufferWrites counts WriteBuffer calls.
	BufferWrites int
	// TimerNanos is returned by TimerResult for every query.
	TimerNanos uint64
	// TimerReads lists the queries read, in order.
	TimerReads []gpu.QueryID
	// TimerBegins lists the queries begun, in order.
	TimerBegins []gpu.QueryID
	// FailProgram makes CreateProgram fail for that label.
	FailProgram string
	// FailBufferAlloc makes CreateBuffer fail.
	FailBufferAlloc bool
	// DeleteErrors collects deletes of unknown handles (double frees).
	DeleteErrors []string
}

func New() *Device {
	return &Device{
		textures:     make(map[gpu.TextureID]*texture),
		framebuffers: make(map[gpu.FramebufferID]*framebuffer),
		buffers:      make(map[gpu.BufferID]int),
		vertexArrays: make(map[gpu.VertexArrayID]gpu.VertexArrayDesc),
		programs:     make(map[gpu.ProgramID]*program),
		queries:      make(map[gpu.QueryID]bool),
		units:        make(map[int]gpu.TextureID),
		MipmapCalls:  make(map[gpu.TextureID]int),
	}
}

func (d *Device) handle() uint32 {
	d.next++
	return d.next
}

// Live returns the number of live resources per kind.
func (d *Device) Live() Counts {
	return Counts{
		Textures:     len(d.textures),
		Framebuffers: len(d.framebuffers),
		Buffers:      len(d.buffers),
		VertexArrays: len(d.vertexArrays),
		Programs:     len(d.programs),
		Queries:      len(d.queries),
	}
}

// TextureDesc reports the storage of a live texture.
func (d *Device) TextureDesc(id gpu.TextureID) (gpu.TextureDesc, bool) {
	t, ok := d.textures[id]
	if !ok {
		return gpu.TextureDesc{}, false
	}
	return t.desc, true
}

// TextureWrites counts uploads plus draws rendered into the texture.
func (d *Device) TextureWrites(id gpu.TextureID) int {
	if t, ok := d.textures[id]; ok {
		return t.writes
	}
	return 0
}

// Attachments reports the attachment set of a framebuffer as texture IDs.
func (d *Device) Attachments(fb gpu.FramebufferID) map[gpu.AttachmentPoint]gpu.TextureID {
	f, ok := d.framebuffers[fb]
	if !ok {
		return nil
	}
	out := make(map[gpu.AttachmentPoint]gpu.TextureID, len(f.attachments))
	for p, a := range f.attachments {
		out[p] = a.tex
	}
	return out
}

// DrawsWith returns the draws issued with the named program.
func (d *Device) DrawsWith(label string) []DrawRecord {
	var out []DrawRecord
	for _, r := range d.Draws {
		if r.Program == label {
			out = append(out, r)
		}
	}
	return out
}

// DrawsTo returns the draws issued into a framebuffer.
func (d *Device) DrawsTo(fb gpu.FramebufferID) []DrawRecord {
	var out []DrawRecord
	for _, r := range d.Draws {
		if r.Framebuffer == fb {
			out = append(out, r)
		}
	}
	return out
}

// ResetLog drops logged draws and counters but keeps resources.
func (d *Device) ResetLog() {
	d.Draws = nil
	d.TimerReads = nil
	d.TimerBegins = nil
	d.BufferWrites = 0
	d.MipmapCalls = make(map[gpu.TextureID]int)
	for _, t := range d.textures {
		t.writes = 0
	}
}

// ── textures ─────────────────────────────────────────────────────────────────

func (d *Device) CreateTexture(desc gpu.TextureDesc) (gpu.TextureID, error) {
	if desc.Width < 1 || desc.Height < 1 {
		return 0, gpu.ErrInvalidSize
	}
	id := gpu.TextureID(d.handle())
	t := &texture{desc: desc}
	if desc.Format == gpu.FormatR32F && desc.Kind == gpu.Texture2D {
		t.texels = make([]float32, desc.Width*desc.Height)
		t.depth = make([]float32, desc.Width*desc.Height)
	}
	d.textures[id] = t
	return id, nil
}

func (d *Device) WriteTexture(id gpu.TextureID, desc gpu.TextureDesc, face, level int, pixels []byte) error {
	t, ok := d.textures[id]
	if !ok {
		return fmt.Errorf("write to unknown texture %d", id)
	}
	w, h := desc.LevelSize(level)
	per := 4
	if desc.Format == gpu.FormatR8 {
		per = 1
	}
	if len(pixels) != w*h*per {
		return fmt.Errorf("texture %q: %d bytes for %dx%d: %w", desc.Label, len(pixels), w, h, gpu.ErrInvalidSize)
	}
	t.writes++
	return nil
}

func (d *Device) WriteTextureFloat(id gpu.TextureID, desc gpu.TextureDesc, face, level int, pixels []float32) error {
	t, ok := d.textures[id]
	if !ok {
		return fmt.Errorf("write to unknown texture %d", id)
	}
	w, h := desc.LevelSize(level)
	per := 4
	if desc.Format == gpu.FormatR32F || desc.Format == gpu.FormatR8 {
		per = 1
	}
	if len(pixels) != w*h*per {
		return fmt.Errorf("texture %q: %d floats for %dx%d: %w", desc.Label, len(pixels), w, h, gpu.ErrInvalidSize)
	}
	t.writes++
	return nil
}

func (d *Device) GenerateMipmaps(id gpu.TextureID, kind gpu.TextureKind) {
	d.MipmapCalls[id]++
	if t, ok := d.textures[id]; ok {
		t.writes++
	}
}

func (d *Device) DeleteTexture(id gpu.TextureID) {
	if _, ok := d.textures[id]; !ok {
		d.DeleteErrors = append(d.DeleteErrors, fmt.Sprintf("texture %d", id))
		return
	}
	delete(d.textures, id)
	for k, v := range d.units {
		if v == id {
			delete(d.units, k)
		}
	}
}

// ── framebuffers ─────────────────────────────────────────────────────────────

func (d *Device) CreateFramebuffer() gpu.FramebufferID {
	id := gpu.FramebufferID(d.handle())
	d.framebuffers[id] = &framebuffer{attachments: make(map[gpu.AttachmentPoint]attachment)}
	return id
}

func (d *Device) AttachTexture(fb gpu.FramebufferID, point gpu.AttachmentPoint, tex gpu.TextureID, kind gpu.TextureKind, face, level int) {
	f, ok := d.framebuffers[fb]
	if !ok {
		return
	}
	if tex == 0 {
		delete(f.attachments, point)
		return
	}
	f.attachments[point] = attachment{tex: tex, kind: kind, face: face, level: level}
}

func (d *Device) SetDrawBuffers(fb gpu.FramebufferID, points []gpu.AttachmentPoint) {
	if f, ok := d.framebuffers[fb]; ok {
		f.drawBuffers = append([]gpu.AttachmentPoint(nil), points...)
	}
}

// CheckFramebuffer requires at least one attachment, live textures, levels
// in range, a depth format on the depth slot and one shared size.
func (d *Device) CheckFramebuffer(fb gpu.FramebufferID) gpu.FramebufferStatus {
	f, ok := d.framebuffers[fb]
	if !ok {
		return gpu.StatusUndefined
	}
	if len(f.attachments) == 0 {
		return gpu.StatusMissingAttachment
	}
	w, h := -1, -1
	for p, a := range f.attachments {
		t, ok := d.textures[a.tex]
		if !ok || a.level < 0 || a.level >= t.desc.Levels {
			return gpu.StatusIncompleteAttachment
		}
		if (p == gpu.DepthAttachment) != t.desc.Format.IsDepth() {
			return gpu.StatusIncompleteAttachment
		}
		if a.kind == gpu.TextureCube && (a.face < 0 || a.face >= gpu.CubeFaces) {
			return gpu.StatusIncompleteAttachment
		}
		lw, lh := t.desc.LevelSize(a.level)
		if w < 0 {
			w, h = lw, lh
		} else if lw != w || lh != h {
			return gpu.StatusIncompleteDimensions
		}
	}
	return gpu.StatusComplete
}

func (d *Device) BindFramebuffer(fb gpu.FramebufferID) { d.boundFB = fb }

// Bound returns the framebuffer currently bound.
func (d *Device) Bound() gpu.FramebufferID { return d.boundFB }

func (d *Device) DeleteFramebuffer(fb gpu.FramebufferID) {
	if _, ok := d.framebuffers[fb]; !ok {
		d.DeleteErrors = append(d.DeleteErrors, fmt.Sprintf("framebuffer %d", fb))
		return
	}
	delete(d.framebuffers, fb)
	if d.boundFB == fb {
		d.boundFB = 0
	}
}

// ── buffers and vertex arrays ────────────────────────────────────────────────

func (d *Device) CreateBuffer(size int) (gpu.BufferID, error) {
	if d.FailBufferAlloc {
		return 0, gpu.ErrOutOfMemory
	}
	if size <= 0 {
		return 0, gpu.ErrInvalidSize
	}
	id := gpu.BufferID(d.handle())
	d.buffers[id] = size
	return id, nil
}

func (d *Device) WriteBuffer(id gpu.BufferID, offset int, data []float32) {
	d.BufferWrites++
}

func (d *Device) CreateIndexBuffer(indices []uint32) (gpu.BufferID, error) {
	return d.CreateBuffer(len(indices) * 4)
}

// BufferSize reports the size of a live buffer.
func (d *Device) BufferSize(id gpu.BufferID) (int, bool) {
	s, ok := d.buffers[id]
	return s, ok
}

func (d *Device) DeleteBuffer(id gpu.BufferID) {
	if _, ok := d.buffers[id]; !ok {
		d.DeleteErrors = append(d.DeleteErrors, fmt.Sprintf("buffer %d", id))
		return
	}
	delete(d.buffers, id)
}

func (d *Device) CreateVertexArray(desc gpu.VertexArrayDesc) gpu.VertexArrayID {
	id := gpu.VertexArrayID(d.handle())
	d.vertexArrays[id] = desc
	return id
}

// VertexArray reports the attribute set of a live vertex array.
func (d *Device) VertexArray(id gpu.VertexArrayID) (gpu.VertexArrayDesc, bool) {
	desc, ok := d.vertexArrays[id]
	return desc, ok
}

func (d *Device) DeleteVertexArray(id gpu.VertexArrayID) {
	if _, ok := d.vertexArrays[id]; !ok {
		d.DeleteErrors = append(d.DeleteErrors, fmt.Sprintf("vertex array %d", id))
		return
	}
	delete(d.vertexArrays, id)
}

// ── programs ─────────────────────────────────────────────────────────────────

func (d *Device) CreateProgram(label, vertexSrc, fragmentSrc string) (gpu.ProgramID, error) {
	if label == d.FailProgram && label != "" {
		return 0, fmt.Errorf("fragment shader: 0:1: syntax error: %w", gpu.ErrShaderCompile)
	}
	id := gpu.ProgramID(d.handle())
	d.programs[id] = &program{label: label, uniforms: make(map[string]any)}
	return id, nil
}

func (d *Device) UseProgram(id gpu.ProgramID) { d.program = id }

func (d *Device) SetUniform(name string, value any) {
	if p, ok := d.programs[d.program]; ok {
		p.uniforms[name] = value
	}
}

func (d *Device) DeleteProgram(id gpu.ProgramID) {
	if _, ok := d.programs[id]; !ok {
		d.DeleteErrors = append(d.DeleteErrors, fmt.Sprintf("program %d", id))
		return
	}
	delete(d.programs, id)
	if d.program == id {
		d.program = 0
	}
}

// ── state and drawing ────────────────────────────────────────────────────────

func (d *Device) BindTexture(unit int, kind gpu.TextureKind, id gpu.TextureID) {
	d.units[unit] = id
}

func (d *Device) SetState(s gpu.State) { d.state = s }

func (d *Device) Viewport(x, y, width, height int) {
	d.viewport = [4]int{x, y, width, height}
}

func (d *Device) Clear(flags gpu.ClearFlags, color [4]float32) {
	f, ok := d.framebuffers[d.boundFB]
	if !ok {
		return
	}
	for p, a := range f.attachments {
		t, ok := d.textures[a.tex]
		if !ok {
			continue
		}
		isDepth := p == gpu.DepthAttachment
		if (isDepth && flags&gpu.ClearDepth != 0) || (!isDepth && flags&gpu.ClearColor != 0) {
			t.writes++
		}
		if !isDepth && flags&gpu.ClearColor != 0 && t.texels != nil {
			for i := range t.texels {
				t.texels[i] = color[0]
				t.depth[i] = float32(math.Inf(1))
			}
		}
	}
}

func (d *Device) Draw(call gpu.DrawCall) {
	rec := DrawRecord{
		Framebuffer: d.boundFB,
		Call:        call,
		State:       d.state,
		Textures:    make(map[int]gpu.TextureID, len(d.units)),
		Viewport:    d.viewport,
	}
	for u, t := range d.units {
		rec.Textures[u] = t
	}
	if p, ok := d.programs[d.program]; ok {
		rec.Program = p.label
		rec.Uniforms = make(map[string]any, len(p.uniforms))
		for k, v := range p.uniforms {
			rec.Uniforms[k] = v
		}
	}
	d.Draws = append(d.Draws, rec)

	f, ok := d.framebuffers[d.boundFB]
	if !ok {
		return
	}
	for p, a := range f.attachments {
		t, ok := d.textures[a.tex]
		if !ok {
			continue
		}
		if p == gpu.DepthAttachment && !d.state.DepthWrite {
			continue
		}
		if p != gpu.DepthAttachment && d.state.ColorMask == 0 {
			continue
		}
		t.writes++
		if p == gpu.Color0 && t.texels != nil {
			d.splat(t, rec.Uniforms)
		}
	}
}

// splat writes pickId into a square around the projected model origin,
// keeping the nearest depth.
func (d *Device) splat(t *texture, uniforms map[string]any) {
	id, ok := uniforms["pickId"].(float32)
	if !ok {
		return
	}
	vp, ok1 := uniforms["viewProjection"].(mgl32.Mat4)
	model, ok2 := uniforms["model"].(mgl32.Mat4)
	if !ok1 || !ok2 {
		return
	}
	clip := vp.Mul4(model).Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	if clip.W() <= 0 {
		return
	}
	ndc := clip.Vec3().Mul(1 / clip.W())
	if ndc.Z() < -1 || ndc.Z() > 1 {
		return
	}
	w, h := t.desc.Width, t.desc.Height
	cx := int((ndc.X() + 1) / 2 * float32(w))
	cy := int((ndc.Y() + 1) / 2 * float32(h))
	for y := cy - SplatRadius; y <= cy+SplatRadius; y++ {
		for x := cx - SplatRadius; x <= cx+SplatRadius; x++ {
			if x < 0 || y < 0 || x >= w || y >= h {
				continue
			}
			i := y*w + x
			if ndc.Z() < t.depth[i] {
				t.depth[i] = ndc.Z()
				t.texels[i] = id
			}
		}
	}
}

func (d *Device) ReadPixel(x, y int) float32 {
	f, ok := d.framebuffers[d.boundFB]
	if !ok {
		return 0
	}
	a, ok := f.attachments[gpu.Color0]
	if !ok {
		return 0
	}
	t, ok := d.textures[a.tex]
	if !ok || t.texels == nil {
		return 0
	}
	if x < 0 || y < 0 || x >= t.desc.Width || y >= t.desc.Height {
		return 0
	}
	return t.texels[y*t.desc.Width+x]
}

// ── timer queries ────────────────────────────────────────────────────────────

func (d *Device) CreateQuery() gpu.QueryID {
	id := gpu.QueryID(d.handle())
	d.queries[id] = true
	return id
}

func (d *Device) BeginTimer(id gpu.QueryID) { d.TimerBegins = append(d.TimerBegins, id) }
func (d *Device) EndTimer()                 {}

func (d *Device) TimerResult(id gpu.QueryID) uint64 {
	d.TimerReads = append(d.TimerReads, id)
	return d.TimerNanos
}

func (d *Device) DeleteQuery(id gpu.QueryID) {
	if _, ok := d.queries[id]; !ok {
		d.DeleteErrors = append(d.DeleteErrors, fmt.Sprintf("query %d", id))
		return
	}
	delete(d.queries, id)
}

var _ gpu.Device = (*Device)(nil)
