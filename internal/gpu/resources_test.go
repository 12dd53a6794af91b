package gpu_test

import (
	"errors"
	"strings"
	"testing"

	"deferred-renderer/internal/gpu"
	"deferred-renderer/internal/gpu/gputest"
)

func colorDesc(label string, w, h, levels int) gpu.TextureDesc {
	return gpu.TextureDesc{Label: label, Format: gpu.FormatRGBA16F, Width: w, Height: h, Levels: levels}
}

func TestLevelDim(t *testing.T) {
	tests := []struct {
		size, k, want int
	}{
		{800, 0, 800},
		{800, 1, 400},
		{800, 3, 100},
		{7, 3, 1},
		{1, 5, 1},
		{600, 10, 1},
	}
	for _, tt := range tests {
		if got := gpu.LevelDim(tt.size, tt.k); got != tt.want {
			t.Errorf("LevelDim(%d, %d) = %d, want %d", tt.size, tt.k, got, tt.want)
		}
	}
}

func TestMipCount(t *testing.T) {
	if got := gpu.MipCount(512); got != 10 {
		t.Errorf("MipCount(512) = %d, want 10", got)
	}
	if got := gpu.MipCount(1); got != 1 {
		t.Errorf("MipCount(1) = %d, want 1", got)
	}
}

func TestTextureDestroyOnce(t *testing.T) {
	d := gputest.New()
	tex, err := gpu.NewTexture(d, colorDesc("a", 4, 4, 1))
	if err != nil {
		t.Fatal(err)
	}
	tex.Destroy()
	tex.Destroy()
	if n := d.Live().Textures; n != 0 {
		t.Errorf("live textures = %d, want 0", n)
	}
	if len(d.DeleteErrors) != 0 {
		t.Errorf("double free: %v", d.DeleteErrors)
	}
}

func TestNewTextureRejectsEmpty(t *testing.T) {
	d := gputest.New()
	if _, err := gpu.NewTexture(d, colorDesc("empty", 0, 4, 1)); !errors.Is(err, gpu.ErrInvalidSize) {
		t.Errorf("err = %v, want ErrInvalidSize", err)
	}
}

func TestFramebufferValidate(t *testing.T) {
	d := gputest.New()
	color, _ := gpu.NewTexture(d, colorDesc("color", 64, 32, 1))
	depth, _ := gpu.NewTexture(d, gpu.TextureDesc{Label: "depth", Format: gpu.FormatDepth32F, Width: 64, Height: 32, Levels: 1})
	small, _ := gpu.NewTexture(d, colorDesc("small", 32, 32, 1))

	fb := gpu.NewFramebuffer(d, "ok")
	if err := fb.Attach(gpu.Color0, color, 0, 0); err != nil {
		t.Fatal(err)
	}
	if err := fb.Attach(gpu.DepthAttachment, depth, 0, 0); err != nil {
		t.Fatal(err)
	}
	if err := fb.Bind(); !errors.Is(err, gpu.ErrIncompleteFramebuffer) {
		t.Errorf("bind before validate: err = %v", err)
	}
	if err := fb.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if w, h := fb.Size(); w != 64 || h != 32 {
		t.Errorf("size = %dx%d", w, h)
	}
	if err := fb.Bind(); err != nil {
		t.Errorf("Bind: %v", err)
	}
	if err := fb.Attach(gpu.Color1, color, 0, 0); err == nil {
		t.Error("attach after validate succeeded")
	}

	bad := gpu.NewFramebuffer(d, "mismatch")
	_ = bad.Attach(gpu.Color0, color, 0, 0)
	_ = bad.Attach(gpu.Color1, small, 0, 0)
	if err := bad.Validate(); !errors.Is(err, gpu.ErrIncompleteFramebuffer) {
		t.Errorf("mismatched sizes: err = %v", err)
	}

	empty := gpu.NewFramebuffer(d, "empty")
	if err := empty.Validate(); !errors.Is(err, gpu.ErrIncompleteFramebuffer) {
		t.Errorf("no attachments: err = %v", err)
	}
}

func TestFramebufferMipLevels(t *testing.T) {
	d := gputest.New()
	chain, _ := gpu.NewTexture(d, colorDesc("bloom", 800, 600, 5))
	for k := 0; k < 5; k++ {
		fb := gpu.NewFramebuffer(d, "level")
		_ = fb.Attach(gpu.Color0, chain, 0, k)
		if err := fb.Validate(); err != nil {
			t.Fatalf("level %d: %v", k, err)
		}
		w, h := fb.Size()
		if w != gpu.LevelDim(800, k) || h != gpu.LevelDim(600, k) {
			t.Errorf("level %d size = %dx%d", k, w, h)
		}
	}
	out := gpu.NewFramebuffer(d, "out of range")
	_ = out.Attach(gpu.Color0, chain, 0, 5)
	if err := out.Validate(); !errors.Is(err, gpu.ErrIncompleteFramebuffer) {
		t.Errorf("level past chain: err = %v", err)
	}
}

func TestDepthSlotRequiresDepthFormat(t *testing.T) {
	d := gputest.New()
	color, _ := gpu.NewTexture(d, colorDesc("color", 8, 8, 1))
	fb := gpu.NewFramebuffer(d, "depth")
	if err := fb.Attach(gpu.DepthAttachment, color, 0, 0); !errors.Is(err, gpu.ErrIncompleteFramebuffer) {
		t.Errorf("err = %v", err)
	}
}

func TestProgramErrorCarriesLabel(t *testing.T) {
	d := gputest.New()
	d.FailProgram = "lighting"
	_, err := gpu.NewProgram(d, "lighting", "", "")
	if !errors.Is(err, gpu.ErrShaderCompile) {
		t.Fatalf("err = %v", err)
	}
	if got := err.Error(); got == "" || !strings.Contains(got, "lighting") {
		t.Errorf("error %q does not name the program", got)
	}
}

func TestBufferRejectsZeroSize(t *testing.T) {
	d := gputest.New()
	if _, err := gpu.NewBuffer(d, 0); !errors.Is(err, gpu.ErrInvalidSize) {
		t.Errorf("err = %v", err)
	}
}
