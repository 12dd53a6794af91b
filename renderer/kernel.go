package renderer

import (
	"math"
	"math/rand"

	"github.com/go-gl/mathgl/mgl32"
)

const (
	ssaoKernelSize = 64
	ssaoKernelSeed = 42
	ssaoNoiseSeed  = 123
	// minKernelCos is the smallest cosine between a sample and the +Z axis.
	minKernelCos = 0.1
)

// generateKernel returns n cosine-weighted samples in the +Z hemisphere.
// Sample i has length lerp(0.1, 1.0, (i/n)^2) so samples cluster near the
// origin.
func generateKernel(n int, seed int64) []mgl32.Vec3 {
	rng := rand.New(rand.NewSource(seed))
	kernel := make([]mgl32.Vec3, n)
	for i := range kernel {
		var dir mgl32.Vec3
		for {
			u1, u2 := rng.Float64(), rng.Float64()
			cosTheta := math.Sqrt(1 - u2)
			if cosTheta < minKernelCos {
				continue
			}
			sinTheta := math.Sqrt(u2)
			phi := 2 * math.Pi * u1
			dir = mgl32.Vec3{
				float32(sinTheta * math.Cos(phi)),
				float32(sinTheta * math.Sin(phi)),
				float32(cosTheta),
			}
			break
		}
		t := float32(i) / float32(n)
		scale := 0.1 + 0.9*t*t
		kernel[i] = dir.Normalize().Mul(scale)
	}
	return kernel
}

// generateNoise returns size*size RGBA float texels holding random XY
// rotation vectors in [-1, 1] with Z = 0.
func generateNoise(size int, seed int64) []float32 {
	rng := rand.New(rand.NewSource(seed))
	noise := make([]float32, size*size*4)
	for i := 0; i < size*size; i++ {
		noise[i*4+0] = rng.Float32()*2 - 1
		noise[i*4+1] = rng.Float32()*2 - 1
		noise[i*4+2] = 0
		noise[i*4+3] = 1
	}
	return noise
}
