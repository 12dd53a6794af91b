// Package gpu is the backend-neutral surface the renderer draws through: a
// Device interface plus owned wrappers, one per GPU resource kind.
package gpu

import "errors"

var (
	ErrIncompleteFramebuffer = errors.New("incomplete framebuffer")
	ErrShaderCompile         = errors.New("shader compilation failed")
	ErrShaderLink            = errors.New("program link failed")
	ErrInvalidSize           = errors.New("invalid resource size")
	ErrOutOfMemory           = errors.New("out of GPU memory")
)

// Device is the set of GPU operations the renderer issues. Methods are called
// from the rendering goroutine only.
type Device interface {
	CreateTexture(desc TextureDesc) (TextureID, error)
	// WriteTexture uploads 8-bit texels (4 per pixel for RGBA8, 1 for R8)
	// into one level. For cube textures face selects the layer.
	WriteTexture(id TextureID, desc TextureDesc, face, level int, pixels []byte) error
	WriteTextureFloat(id TextureID, desc TextureDesc, face, level int, pixels []float32) error
	GenerateMipmaps(id TextureID, kind TextureKind)
	DeleteTexture(id TextureID)

	CreateFramebuffer() FramebufferID
	// AttachTexture binds a level (and cube face) of tex to point. A zero tex
	// detaches.
	AttachTexture(fb FramebufferID, point AttachmentPoint, tex TextureID, kind TextureKind, face, level int)
	SetDrawBuffers(fb FramebufferID, points []AttachmentPoint)
	CheckFramebuffer(fb FramebufferID) FramebufferStatus
	BindFramebuffer(fb FramebufferID)
	DeleteFramebuffer(fb FramebufferID)

	CreateBuffer(size int) (BufferID, error)
	WriteBuffer(id BufferID, offset int, data []float32)
	CreateIndexBuffer(indices []uint32) (BufferID, error)
	DeleteBuffer(id BufferID)

	CreateVertexArray(desc VertexArrayDesc) VertexArrayID
	DeleteVertexArray(id VertexArrayID)

	CreateProgram(label, vertexSrc, fragmentSrc string) (ProgramID, error)
	UseProgram(id ProgramID)
	// SetUniform sets a uniform on the program in use. Supported values:
	// bool, int, int32, float32, mgl32.Vec2/3/4, mgl32.Mat3/4, []mgl32.Vec3.
	SetUniform(name string, value any)
	DeleteProgram(id ProgramID)

	BindTexture(unit int, kind TextureKind, id TextureID)
	SetState(s State)
	Viewport(x, y, width, height int)
	Clear(flags ClearFlags, color [4]float32)
	Draw(call DrawCall)
	// ReadPixel returns the red channel of color attachment 0 of the bound
	// framebuffer at window coordinates (origin bottom-left).
	ReadPixel(x, y int) float32

	CreateQuery() QueryID
	BeginTimer(id QueryID)
	EndTimer()
	// TimerResult returns elapsed nanoseconds without waiting for
	// availability.
	TimerResult(id QueryID) uint64
	DeleteQuery(id QueryID)
}
