package renderer

import (
	"fmt"

	"deferred-renderer/internal/gpu"
)

type programs struct {
	gbuffer, forward            *gpu.Program
	ssao, ssaoBlur              *gpu.Program
	ambient, directional, point *gpu.Program
	background, water           *gpu.Program
	mask, outline, grid         *gpu.Program
	bloomExtract, bloomBlur     *gpu.Program
	bloomComposite, blit        *gpu.Program
	debugLines, debugText       *gpu.Program
	picking, shadow             *gpu.Program
	equirect, downsample        *gpu.Program
	irradiance                  *gpu.Program

	all []*gpu.Program
}

// programDesc lists sampler names by texture unit; empty names are unused
// units.
type programDesc struct {
	dst      **gpu.Program
	label    string
	vertex   string
	fragment string
	samplers []string
}

func (p *programs) descs() []programDesc {
	gbufferSamplers := []string{"albedoTex", "specularTex", "normalTex"}
	return []programDesc{
		{&p.gbuffer, "gbuffer", instancedVertexSrc, gbufferFragmentSrc,
			[]string{"albedoMap", "normalMap", "metallicRoughnessMap", "occlusionMap", "emissiveMap"}},
		{&p.forward, "forward", instancedVertexSrc, forwardFragmentSrc,
			[]string{"albedoMap", "", "", "", "emissiveMap", "irradianceMap"}},
		{&p.ssao, "ssao", fullscreenVertexSrc, ssaoFragmentSrc, []string{"normalTex", "noiseTex"}},
		{&p.ssaoBlur, "ssao blur", fullscreenVertexSrc, ssaoBlurFragmentSrc, []string{"ssaoTex"}},
		{&p.ambient, "ambient light", lightVertexSrc, ambientFragmentSrc,
			append(gbufferSamplers, "irradianceMap", "environmentMap")},
		{&p.directional, "directional light", lightVertexSrc, directionalFragmentSrc,
			append(gbufferSamplers, "shadowMap")},
		{&p.point, "point light", lightVertexSrc, pointFragmentSrc, gbufferSamplers},
		{&p.background, "background", fullscreenVertexSrc, backgroundFragmentSrc, []string{"environmentMap"}},
		{&p.water, "water", modelVertexSrc, waterFragmentSrc,
			[]string{"reflectionTex", "refractionTex", "refractionDepth", "normalMap", "distortionMap"}},
		{&p.mask, "selection mask", modelVertexSrc, maskFragmentSrc, nil},
		{&p.outline, "selection outline", fullscreenVertexSrc, outlineFragmentSrc, []string{"maskTex"}},
		{&p.grid, "grid", fullscreenVertexSrc, gridFragmentSrc, []string{"normalTex"}},
		{&p.bloomExtract, "bloom extract", fullscreenVertexSrc, bloomExtractFragmentSrc, []string{"hdrBuffer"}},
		{&p.bloomBlur, "bloom blur", fullscreenVertexSrc, bloomBlurFragmentSrc, []string{"blurTex"}},
		{&p.bloomComposite, "bloom composite", fullscreenVertexSrc, bloomCompositeFragmentSrc, []string{"bloomTex"}},
		{&p.blit, "blit", fullscreenVertexSrc, blitFragmentSrc, []string{"source"}},
		{&p.debugLines, "debug lines", debugLineVertexSrc, debugLineFragmentSrc, nil},
		{&p.debugText, "debug text", debugTextVertexSrc, debugTextFragmentSrc, []string{"glyphs"}},
		{&p.picking, "picking", modelVertexSrc, pickingFragmentSrc, nil},
		{&p.shadow, "shadow", shadowVertexSrc, shadowFragmentSrc, nil},
		{&p.equirect, "equirect to cube", cubeVertexSrc, equirectFragmentSrc, []string{"equirect"}},
		{&p.downsample, "cube downsample", cubeVertexSrc, downsampleFragmentSrc, []string{"source"}},
		{&p.irradiance, "irradiance", cubeVertexSrc, irradianceFragmentSrc, []string{"source"}},
	}
}

// compile builds every program. A failure releases the ones already built.
func (p *programs) compile(d gpu.Device) error {
	for _, s := range p.descs() {
		prog, err := gpu.NewProgram(d, s.label, s.vertex, s.fragment)
		if err != nil {
			p.release()
			return fmt.Errorf("compile programs: %w", err)
		}
		prog.Use()
		for unit, name := range s.samplers {
			if name != "" {
				prog.Set(name, unit)
			}
		}
		*s.dst = prog
		p.all = append(p.all, prog)
	}
	return nil
}

func (p *programs) release() {
	for _, prog := range p.all {
		prog.Destroy()
	}
	*p = programs{}
}
