package renderer

import "go.uber.org/zap"

// Config holds the size-independent parameters fixed at construction.
// Runtime toggles live on scene.Settings.
type Config struct {
	// EnvironmentSize is the face size of the filtered environment cubemap.
	EnvironmentSize int
	// IrradianceSize is the face size of the irradiance cubemap.
	IrradianceSize int
	// ConvolutionSize is the face size of the temporary cubemap the
	// irradiance convolution reads from.
	ConvolutionSize int
	// WaterDivisor divides the viewport for the reflection and refraction
	// targets.
	WaterDivisor int
	// BloomLevels is the number of mip levels in each bloom target.
	BloomLevels int
	// NoiseSize is the edge length of the tiled SSAO rotation texture.
	NoiseSize int
	// KernelSize is the number of SSAO hemisphere samples. The shader
	// declares a fixed array of this length.
	KernelSize int
	// ShadowMapSize is the edge length of the directional shadow map.
	ShadowMapSize int
	// DebugTextScale multiplies the debug label glyph size.
	DebugTextScale float32

	Logger *zap.Logger
}

func DefaultConfig() Config {
	return Config{
		EnvironmentSize: 512,
		IrradianceSize:  32,
		ConvolutionSize: 32,
		WaterDivisor:    2,
		BloomLevels:     5,
		NoiseSize:       4,
		KernelSize:      ssaoKernelSize,
		ShadowMapSize:   2048,
		DebugTextScale:  1,
	}
}

// normalized fills zero fields with their defaults.
func (c Config) normalized() Config {
	d := DefaultConfig()
	if c.EnvironmentSize < 1 {
		c.EnvironmentSize = d.EnvironmentSize
	}
	if c.IrradianceSize < 1 {
		c.IrradianceSize = d.IrradianceSize
	}
	if c.ConvolutionSize < 1 {
		c.ConvolutionSize = d.ConvolutionSize
	}
	if c.WaterDivisor < 1 {
		c.WaterDivisor = d.WaterDivisor
	}
	if c.BloomLevels < 1 {
		c.BloomLevels = d.BloomLevels
	}
	if c.NoiseSize < 1 {
		c.NoiseSize = d.NoiseSize
	}
	if c.ShadowMapSize < 1 {
		c.ShadowMapSize = d.ShadowMapSize
	}
	// The sample array length is compiled into the shader.
	c.KernelSize = ssaoKernelSize
	if c.DebugTextScale <= 0 {
		c.DebugTextScale = d.DebugTextScale
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}
