package gpu

import "fmt"

// Handles issued by a Device. Zero is never a valid handle except for
// FramebufferID, where zero names the default (window) framebuffer.
type (
	TextureID     uint32
	FramebufferID uint32
	BufferID      uint32
	VertexArrayID uint32
	ProgramID     uint32
	QueryID       uint32
)

// Format is the pixel format of a texture.
type Format int

const (
	FormatRGBA8 Format = iota
	FormatRGBA16F
	FormatR8
	FormatR32F
	FormatDepth32F
)

func (f Format) IsDepth() bool { return f == FormatDepth32F }

func (f Format) String() string {
	switch f {
	case FormatRGBA8:
		return "RGBA8"
	case FormatRGBA16F:
		return "RGBA16F"
	case FormatR8:
		return "R8"
	case FormatR32F:
		return "R32F"
	case FormatDepth32F:
		return "Depth32F"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// TextureKind selects the texture target.
type TextureKind int

const (
	Texture2D TextureKind = iota
	TextureCube
)

// CubeFaces is the number of layers of a cube texture.
const CubeFaces = 6

type Filter int

const (
	FilterLinear Filter = iota
	FilterNearest
	// FilterTrilinear samples between mip levels.
	FilterTrilinear
)

type Wrap int

const (
	WrapClamp Wrap = iota
	WrapRepeat
)

// TextureDesc describes a texture's storage. Levels pre-declares the mip
// chain; level k of a W×H texture is max(1, W>>k) × max(1, H>>k).
type TextureDesc struct {
	Label  string
	Kind   TextureKind
	Format Format
	Width  int
	Height int
	Levels int
	Filter Filter
	Wrap   Wrap
	// Compare makes a depth texture sample as a depth comparison. Reads
	// outside the texture compare against a depth of 1.
	Compare bool
}

// LevelSize returns the dimensions of mip level k.
func (d TextureDesc) LevelSize(k int) (int, int) {
	return LevelDim(d.Width, k), LevelDim(d.Height, k)
}

// LevelDim is max(1, size>>k).
func LevelDim(size, k int) int {
	if k < 0 {
		k = 0
	}
	s := size >> uint(k)
	if s < 1 {
		return 1
	}
	return s
}

// MipCount returns the length of a full mip chain for a square of side size.
func MipCount(size int) int {
	n := 1
	for size > 1 {
		size >>= 1
		n++
	}
	return n
}

// AttachmentPoint is a framebuffer slot.
type AttachmentPoint int

const (
	Color0 AttachmentPoint = iota
	Color1
	Color2
	Color3
	DepthAttachment AttachmentPoint = 16
)

func (p AttachmentPoint) String() string {
	if p == DepthAttachment {
		return "depth"
	}
	return fmt.Sprintf("color%d", int(p))
}

// FramebufferStatus is the result of a completeness check.
type FramebufferStatus int

const (
	StatusComplete FramebufferStatus = iota
	StatusIncompleteAttachment
	StatusMissingAttachment
	StatusIncompleteDimensions
	StatusUnsupported
	StatusUndefined
)

func (s FramebufferStatus) String() string {
	switch s {
	case StatusComplete:
		return "complete"
	case StatusIncompleteAttachment:
		return "incomplete attachment"
	case StatusMissingAttachment:
		return "missing attachment"
	case StatusIncompleteDimensions:
		return "mismatched attachment dimensions"
	case StatusUnsupported:
		return "unsupported format combination"
	}
	return "undefined"
}

type DepthFunc int

const (
	DepthLess DepthFunc = iota
	DepthLEqual
	DepthGreater
	DepthGEqual
	DepthAlways
)

type BlendMode int

const (
	BlendNone BlendMode = iota
	// BlendAdditive is ONE, ONE.
	BlendAdditive
	// BlendAlpha is SRC_ALPHA, ONE_MINUS_SRC_ALPHA.
	BlendAlpha
)

type CullMode int

const (
	CullBack CullMode = iota
	CullFront
	CullNone
)

// ColorMask restricts which channels a draw writes.
type ColorMask uint8

const (
	MaskR ColorMask = 1 << iota
	MaskG
	MaskB
	MaskA
	MaskRGB = MaskR | MaskG | MaskB
	MaskAll = MaskRGB | MaskA
)

// State is the fixed-function state applied before a draw.
type State struct {
	DepthTest  bool
	DepthWrite bool
	DepthFunc  DepthFunc
	Blend      BlendMode
	ColorMask  ColorMask
	Cull       CullMode
	// ClipPlane enables user clip distance 0.
	ClipPlane bool
}

// OpaqueState is depth-tested, depth-writing, back-face culled geometry.
func OpaqueState() State {
	return State{
		DepthTest:  true,
		DepthWrite: true,
		DepthFunc:  DepthLess,
		Blend:      BlendNone,
		ColorMask:  MaskAll,
		Cull:       CullBack,
	}
}

// OverlayState draws without depth and without culling.
func OverlayState(blend BlendMode) State {
	return State{
		Blend:     blend,
		ColorMask: MaskAll,
		Cull:      CullNone,
	}
}

type ClearFlags uint8

const (
	ClearColor ClearFlags = 1 << iota
	ClearDepth
)

type Primitive int

const (
	Triangles Primitive = iota
	Lines
)

// VertexAttrib binds one float attribute stream. Offset is in bytes.
// Divisor 1 advances once per instance.
type VertexAttrib struct {
	Location uint32
	Buffer   BufferID
	Size     int32
	Stride   int32
	Offset   int
	Divisor  uint32
}

// VertexArrayDesc is the full attribute set of a vertex array. Indices may
// be zero for non-indexed geometry.
type VertexArrayDesc struct {
	Label   string
	Attribs []VertexAttrib
	Indices BufferID
}

// DrawCall issues Count vertices (or indices) from First. Instances ≤ 1
// draws once.
type DrawCall struct {
	VertexArray VertexArrayID
	Primitive   Primitive
	Count       int32
	First       int32
	Indexed     bool
	Instances   int32
}
