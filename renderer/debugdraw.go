package renderer

import (
	"image"

	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"deferred-renderer/core"
	"deferred-renderer/internal/gpu"
	"deferred-renderer/scene"
)

// DebugBuffer accumulates lines and text labels for one frame. The
// renderer draws and clears it at the end of every Render.
type DebugBuffer struct {
	lines  []float32 // x y z r g b a per vertex
	labels []debugLabel
}

type debugLabel struct {
	at    mgl32.Vec3
	text  string
	color core.Color
}

const lineVertexFloats = 7

func (b *DebugBuffer) Line(from, to mgl32.Vec3, color core.Color) {
	for _, p := range [2]mgl32.Vec3{from, to} {
		b.lines = append(b.lines, p[0], p[1], p[2], color.R, color.G, color.B, color.A)
	}
}

// Box outlines an axis-aligned box.
func (b *DebugBuffer) Box(box scene.AABB, color core.Color) {
	lo, hi := box.Min, box.Max
	corner := func(i int) mgl32.Vec3 {
		c := lo
		if i&1 != 0 {
			c[0] = hi[0]
		}
		if i&2 != 0 {
			c[1] = hi[1]
		}
		if i&4 != 0 {
			c[2] = hi[2]
		}
		return c
	}
	for i := 0; i < 8; i++ {
		for _, bit := range []int{1, 2, 4} {
			if i&bit == 0 {
				b.Line(corner(i), corner(i|bit), color)
			}
		}
	}
}

// Cross draws three axis-aligned segments of length 2*size centered on p.
func (b *DebugBuffer) Cross(p mgl32.Vec3, size float32, color core.Color) {
	b.Line(p.Sub(mgl32.Vec3{size, 0, 0}), p.Add(mgl32.Vec3{size, 0, 0}), color)
	b.Line(p.Sub(mgl32.Vec3{0, size, 0}), p.Add(mgl32.Vec3{0, size, 0}), color)
	b.Line(p.Sub(mgl32.Vec3{0, 0, size}), p.Add(mgl32.Vec3{0, 0, size}), color)
}

// Label draws text anchored at a world position.
func (b *DebugBuffer) Label(at mgl32.Vec3, text string, color core.Color) {
	if text == "" {
		return
	}
	b.labels = append(b.labels, debugLabel{at: at, text: text, color: color})
}

func (b *DebugBuffer) LineCount() int  { return len(b.lines) / (2 * lineVertexFloats) }
func (b *DebugBuffer) LabelCount() int { return len(b.labels) }
func (b *DebugBuffer) Empty() bool     { return len(b.lines) == 0 && len(b.labels) == 0 }

func (b *DebugBuffer) Clear() {
	b.lines = b.lines[:0]
	b.labels = b.labels[:0]
}

// ── glyph atlas ──────────────────────────────────────────────────────────────

const (
	firstGlyph = ' '
	lastGlyph  = '~'
	glyphCount = lastGlyph - firstGlyph + 1
)

var glyphFace = basicfont.Face7x13

// rasterizeGlyphs draws the printable ASCII range into one row, top row
// first.
func rasterizeGlyphs() *image.RGBA {
	w, h := glyphFace.Advance, glyphFace.Height
	atlas := image.NewRGBA(image.Rect(0, 0, w*glyphCount, h))
	draw.Draw(atlas, atlas.Bounds(), image.Transparent, image.Point{}, draw.Src)
	d := font.Drawer{Dst: atlas, Src: image.White, Face: glyphFace}
	for i := 0; i < glyphCount; i++ {
		d.Dot = fixed.P(i*w, glyphFace.Ascent)
		d.DrawString(string(rune(firstGlyph + i)))
	}
	return atlas
}

// ── overlay renderer ─────────────────────────────────────────────────────────

const textVertexFloats = 8 // x y u v r g b a

// debugOverlay owns the streaming buffers the debug buffer is drawn from.
type debugOverlay struct {
	device gpu.Device
	glyphs *gpu.Texture

	lineBuf, textBuf *gpu.Buffer
	lineVAO, textVAO *gpu.VertexArray
}

func newDebugOverlay(d gpu.Device) (*debugOverlay, error) {
	atlas := rasterizeGlyphs()
	tex, err := gpu.NewTexture(d, gpu.TextureDesc{
		Label: "debug glyphs", Format: gpu.FormatRGBA8,
		Width: atlas.Bounds().Dx(), Height: atlas.Bounds().Dy(), Filter: gpu.FilterNearest,
	})
	if err != nil {
		return nil, err
	}
	if err := tex.Write(atlas.Pix); err != nil {
		tex.Destroy()
		return nil, err
	}
	return &debugOverlay{device: d, glyphs: tex}, nil
}

// textVertices lays labels out in NDC, scale pixels per glyph pixel.
func textVertices(labels []debugLabel, vp mgl32.Mat4, width, height int, scale float32) []float32 {
	var out []float32
	gw, gh := float32(glyphFace.Advance)*scale, float32(glyphFace.Height)*scale
	sx, sy := 2/float32(width), 2/float32(height)
	du := float32(1) / glyphCount
	for _, l := range labels {
		clip := vp.Mul4x1(l.at.Vec4(1))
		if clip.W() <= 0 {
			continue
		}
		x0, y0 := clip.X()/clip.W(), clip.Y()/clip.W()
		c := l.color
		i := -1
		for _, r := range l.text {
			i++
			if r < firstGlyph || r > lastGlyph {
				r = '?'
			}
			u := float32(r-firstGlyph) * du
			left := x0 + float32(i)*gw*sx
			right := left + gw*sx
			top, bottom := y0+gh*sy, y0
			quad := [6][4]float32{
				{left, top, u, 0}, {left, bottom, u, 1}, {right, bottom, u + du, 1},
				{left, top, u, 0}, {right, bottom, u + du, 1}, {right, top, u + du, 0},
			}
			for _, v := range quad {
				out = append(out, v[0], v[1], v[2], v[3], c.R, c.G, c.B, c.A)
			}
		}
	}
	return out
}

// stream uploads data into *buf, growing it and rebuilding *vao when it is
// too small.
func (o *debugOverlay) stream(buf **gpu.Buffer, vao **gpu.VertexArray, data []float32, attribs func(gpu.BufferID) []gpu.VertexAttrib, label string) error {
	bytes := len(data) * 4
	if *buf == nil || (*buf).Size() < bytes {
		(*vao).Destroy()
		(*buf).Destroy()
		*buf, *vao = nil, nil
		size := 4096
		for size < bytes {
			size *= 2
		}
		b, err := gpu.NewBuffer(o.device, size)
		if err != nil {
			return err
		}
		*buf = b
		*vao = gpu.NewVertexArray(o.device, gpu.VertexArrayDesc{Label: label, Attribs: attribs(b.ID())})
	}
	(*buf).Write(0, data)
	return nil
}

func lineAttribs(buf gpu.BufferID) []gpu.VertexAttrib {
	const stride = lineVertexFloats * 4
	return []gpu.VertexAttrib{
		{Location: 0, Buffer: buf, Size: 3, Stride: stride, Offset: 0},
		{Location: 3, Buffer: buf, Size: 4, Stride: stride, Offset: 12},
	}
}

func textAttribs(buf gpu.BufferID) []gpu.VertexAttrib {
	const stride = textVertexFloats * 4
	return []gpu.VertexAttrib{
		{Location: 0, Buffer: buf, Size: 2, Stride: stride, Offset: 0},
		{Location: 2, Buffer: buf, Size: 2, Stride: stride, Offset: 8},
		{Location: 3, Buffer: buf, Size: 4, Stride: stride, Offset: 16},
	}
}

func (o *debugOverlay) release() {
	if o == nil {
		return
	}
	o.lineVAO.Destroy()
	o.textVAO.Destroy()
	o.lineBuf.Destroy()
	o.textBuf.Destroy()
	o.glyphs.Destroy()
	o.lineBuf, o.textBuf, o.lineVAO, o.textVAO = nil, nil, nil, nil
}
