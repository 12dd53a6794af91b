package gpu

import (
	"fmt"
	"sort"
)

// ── Texture ──────────────────────────────────────────────────────────────────

// Texture owns one device texture.
type Texture struct {
	device Device
	id     TextureID
	desc   TextureDesc
}

// NewTexture allocates storage for desc. Width and height must be positive.
func NewTexture(d Device, desc TextureDesc) (*Texture, error) {
	if desc.Width < 1 || desc.Height < 1 {
		return nil, fmt.Errorf("texture %q %dx%d: %w", desc.Label, desc.Width, desc.Height, ErrInvalidSize)
	}
	if desc.Levels < 1 {
		desc.Levels = 1
	}
	id, err := d.CreateTexture(desc)
	if err != nil {
		return nil, fmt.Errorf("texture %q: %w", desc.Label, err)
	}
	return &Texture{device: d, id: id, desc: desc}, nil
}

func (t *Texture) ID() TextureID {
	if t == nil {
		return 0
	}
	return t.id
}

func (t *Texture) Desc() TextureDesc { return t.desc }
func (t *Texture) Width() int        { return t.desc.Width }
func (t *Texture) Height() int       { return t.desc.Height }
func (t *Texture) Levels() int       { return t.desc.Levels }
func (t *Texture) Label() string     { return t.desc.Label }

func (t *Texture) LevelSize(k int) (int, int) { return t.desc.LevelSize(k) }

// Write uploads 8-bit texels into level 0 of a 2D texture.
func (t *Texture) Write(pixels []byte) error {
	return t.device.WriteTexture(t.id, t.desc, 0, 0, pixels)
}

// WriteFace uploads 8-bit texels into one face and level.
func (t *Texture) WriteFace(face, level int, pixels []byte) error {
	return t.device.WriteTexture(t.id, t.desc, face, level, pixels)
}

func (t *Texture) WriteFloat(pixels []float32) error {
	return t.device.WriteTextureFloat(t.id, t.desc, 0, 0, pixels)
}

func (t *Texture) GenerateMipmaps() { t.device.GenerateMipmaps(t.id, t.desc.Kind) }

// Bind binds the texture to a sampler unit.
func (t *Texture) Bind(unit int) { t.device.BindTexture(unit, t.desc.Kind, t.id) }

// Destroy releases the handle. Later calls are no-ops.
func (t *Texture) Destroy() {
	if t == nil || t.id == 0 {
		return
	}
	t.device.DeleteTexture(t.id)
	t.id = 0
}

// ── Framebuffer ──────────────────────────────────────────────────────────────

type attachment struct {
	tex   *Texture
	face  int
	level int
}

// Framebuffer owns one device framebuffer and records its attachments. The
// attachment set is fixed once Validate succeeds.
type Framebuffer struct {
	device      Device
	id          FramebufferID
	label       string
	attachments map[AttachmentPoint]attachment
	complete    bool
	width       int
	height      int
}

func NewFramebuffer(d Device, label string) *Framebuffer {
	return &Framebuffer{
		device:      d,
		id:          d.CreateFramebuffer(),
		label:       label,
		attachments: make(map[AttachmentPoint]attachment),
	}
}

func (f *Framebuffer) ID() FramebufferID { return f.id }
func (f *Framebuffer) Label() string     { return f.label }

// Size returns the shared dimensions of the attachments, valid after Validate.
func (f *Framebuffer) Size() (int, int) { return f.width, f.height }

func (f *Framebuffer) Complete() bool { return f != nil && f.id != 0 && f.complete }

// Attach binds a level of a 2D texture (face 0) or one face of a cube texture.
func (f *Framebuffer) Attach(point AttachmentPoint, tex *Texture, face, level int) error {
	if f.complete {
		return fmt.Errorf("framebuffer %q: attach %s after validation", f.label, point)
	}
	if point == DepthAttachment && !tex.desc.Format.IsDepth() {
		return fmt.Errorf("framebuffer %q: %s is not a depth format: %w", f.label, tex.desc.Format, ErrIncompleteFramebuffer)
	}
	f.attachments[point] = attachment{tex: tex, face: face, level: level}
	f.device.AttachTexture(f.id, point, tex.ID(), tex.desc.Kind, face, level)
	return nil
}

// Reattach swaps the face or level of an existing attachment. Used when one
// framebuffer renders every face of a cube in turn.
func (f *Framebuffer) Reattach(point AttachmentPoint, tex *Texture, face, level int) error {
	a, ok := f.attachments[point]
	if !ok || !f.complete {
		return fmt.Errorf("framebuffer %q: reattach %s: %w", f.label, point, ErrIncompleteFramebuffer)
	}
	w, h := tex.LevelSize(level)
	if w != f.width || h != f.height || tex.desc.Format != a.tex.desc.Format {
		return fmt.Errorf("framebuffer %q: reattach %s at %dx%d, expected %dx%d: %w",
			f.label, point, w, h, f.width, f.height, ErrIncompleteFramebuffer)
	}
	f.attachments[point] = attachment{tex: tex, face: face, level: level}
	f.device.AttachTexture(f.id, point, tex.ID(), tex.desc.Kind, face, level)
	return nil
}

// Validate fixes the draw buffers and checks completeness. All attachments
// must share one size.
func (f *Framebuffer) Validate() error {
	if len(f.attachments) == 0 {
		return fmt.Errorf("framebuffer %q: %s: %w", f.label, StatusMissingAttachment, ErrIncompleteFramebuffer)
	}
	var colors []AttachmentPoint
	first := true
	for _, p := range f.points() {
		a := f.attachments[p]
		w, h := a.tex.LevelSize(a.level)
		if first {
			f.width, f.height = w, h
			first = false
		} else if w != f.width || h != f.height {
			return fmt.Errorf("framebuffer %q: %s is %dx%d, expected %dx%d: %w",
				f.label, p, w, h, f.width, f.height, ErrIncompleteFramebuffer)
		}
		if p != DepthAttachment {
			colors = append(colors, p)
		}
	}
	f.device.SetDrawBuffers(f.id, colors)
	if status := f.device.CheckFramebuffer(f.id); status != StatusComplete {
		return fmt.Errorf("framebuffer %q: %s: %w", f.label, status, ErrIncompleteFramebuffer)
	}
	f.complete = true
	return nil
}

// Bind makes the framebuffer the render target and sets the viewport to its
// size. Binding a framebuffer that never validated complete fails.
func (f *Framebuffer) Bind() error {
	if !f.Complete() {
		label := "<nil>"
		if f != nil {
			label = f.label
		}
		return fmt.Errorf("framebuffer %q: bind: %w", label, ErrIncompleteFramebuffer)
	}
	f.device.BindFramebuffer(f.id)
	f.device.Viewport(0, 0, f.width, f.height)
	return nil
}

// Attachment returns the texture bound at point.
func (f *Framebuffer) Attachment(point AttachmentPoint) (*Texture, bool) {
	a, ok := f.attachments[point]
	return a.tex, ok
}

func (f *Framebuffer) points() []AttachmentPoint {
	pts := make([]AttachmentPoint, 0, len(f.attachments))
	for p := range f.attachments {
		pts = append(pts, p)
	}
	sort.Slice(pts, func(i, j int) bool { return pts[i] < pts[j] })
	return pts
}

// Reset forgets the attachment set so the framebuffer can be attached and
// validated again, possibly at a different size.
func (f *Framebuffer) Reset() {
	for p := range f.attachments {
		f.device.AttachTexture(f.id, p, 0, Texture2D, 0, 0)
	}
	clear(f.attachments)
	f.complete = false
	f.width, f.height = 0, 0
}

// Destroy releases the framebuffer. Attached textures are not owned.
func (f *Framebuffer) Destroy() {
	if f == nil || f.id == 0 {
		return
	}
	f.device.DeleteFramebuffer(f.id)
	f.id = 0
	f.complete = false
}

// BindScreen binds the default framebuffer.
func BindScreen(d Device, width, height int) {
	d.BindFramebuffer(0)
	d.Viewport(0, 0, width, height)
}

// ── Buffer ───────────────────────────────────────────────────────────────────

// Buffer owns a device buffer of fixed byte size.
type Buffer struct {
	device Device
	id     BufferID
	size   int
	count  int
}

// NewBuffer allocates a vertex buffer of size bytes.
func NewBuffer(d Device, size int) (*Buffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("buffer of %d bytes: %w", size, ErrInvalidSize)
	}
	id, err := d.CreateBuffer(size)
	if err != nil {
		return nil, err
	}
	return &Buffer{device: d, id: id, size: size}, nil
}

// NewVertexBuffer allocates and fills a buffer with data.
func NewVertexBuffer(d Device, data []float32) (*Buffer, error) {
	b, err := NewBuffer(d, len(data)*4)
	if err != nil {
		return nil, err
	}
	b.Write(0, data)
	return b, nil
}

func NewIndexBuffer(d Device, indices []uint32) (*Buffer, error) {
	if len(indices) == 0 {
		return nil, fmt.Errorf("empty index buffer: %w", ErrInvalidSize)
	}
	id, err := d.CreateIndexBuffer(indices)
	if err != nil {
		return nil, err
	}
	return &Buffer{device: d, id: id, size: len(indices) * 4, count: len(indices)}, nil
}

func (b *Buffer) ID() BufferID {
	if b == nil {
		return 0
	}
	return b.id
}

// Size is the capacity in bytes.
func (b *Buffer) Size() int { return b.size }

// Count is the number of indices of an index buffer.
func (b *Buffer) Count() int { return b.count }

// Write copies data at a byte offset.
func (b *Buffer) Write(offset int, data []float32) {
	b.device.WriteBuffer(b.id, offset, data)
}

func (b *Buffer) Destroy() {
	if b == nil || b.id == 0 {
		return
	}
	b.device.DeleteBuffer(b.id)
	b.id = 0
}

// ── VertexArray ──────────────────────────────────────────────────────────────

type VertexArray struct {
	device Device
	id     VertexArrayID
}

func NewVertexArray(d Device, desc VertexArrayDesc) *VertexArray {
	return &VertexArray{device: d, id: d.CreateVertexArray(desc)}
}

func (v *VertexArray) ID() VertexArrayID {
	if v == nil {
		return 0
	}
	return v.id
}

func (v *VertexArray) Destroy() {
	if v == nil || v.id == 0 {
		return
	}
	v.device.DeleteVertexArray(v.id)
	v.id = 0
}

// ── Program ──────────────────────────────────────────────────────────────────

// Program owns a linked shader program.
type Program struct {
	device Device
	id     ProgramID
	label  string
}

// NewProgram compiles and links a program. Failures wrap ErrShaderCompile or
// ErrShaderLink and carry the label.
func NewProgram(d Device, label, vertexSrc, fragmentSrc string) (*Program, error) {
	id, err := d.CreateProgram(label, vertexSrc, fragmentSrc)
	if err != nil {
		return nil, fmt.Errorf("program %q: %w", label, err)
	}
	return &Program{device: d, id: id, label: label}, nil
}

func (p *Program) ID() ProgramID { return p.id }
func (p *Program) Label() string { return p.label }

func (p *Program) Use() { p.device.UseProgram(p.id) }

// Set assigns a uniform; the program must be in use.
func (p *Program) Set(name string, value any) { p.device.SetUniform(name, value) }

func (p *Program) Destroy() {
	if p == nil || p.id == 0 {
		return
	}
	p.device.DeleteProgram(p.id)
	p.id = 0
}

// ── TimerQuery ───────────────────────────────────────────────────────────────

type TimerQuery struct {
	device Device
	id     QueryID
}

func NewTimerQuery(d Device) *TimerQuery {
	return &TimerQuery{device: d, id: d.CreateQuery()}
}

func (q *TimerQuery) Begin() { q.device.BeginTimer(q.id) }
func (q *TimerQuery) End()   { q.device.EndTimer() }

// Result reads the elapsed nanoseconds without an availability check.
func (q *TimerQuery) Result() uint64 { return q.device.TimerResult(q.id) }

func (q *TimerQuery) Destroy() {
	if q == nil || q.id == 0 {
		return
	}
	q.device.DeleteQuery(q.id)
	q.id = 0
}
