package renderer

// ── shared snippets ──────────────────────────────────────────────────────────

const glslVersion = "#version 410 core\n"

// instancedVertexSrc feeds both the G-buffer and the forward water-view
// programs. The model matrix arrives at locations 6-9, the normal matrix at
// 10-13.
const instancedVertexSrc = glslVersion + `
layout(location = 0) in vec3 inPosition;
layout(location = 1) in vec3 inNormal;
layout(location = 2) in vec2 inUV;
layout(location = 3) in vec4 inColor;
layout(location = 4) in vec3 inTangent;
layout(location = 6) in mat4 instanceModel;
layout(location = 10) in mat4 instanceNormal;

uniform mat4 view;
uniform mat4 projection;
uniform vec4 clipPlane;

out vec3  fragWorld;
out vec3  fragNormal;
out vec3  fragTangent;
out vec2  fragUV;
out vec4  fragColor;
out float fragDepth;

void main() {
    vec4 world = instanceModel * vec4(inPosition, 1.0);
    vec4 eye   = view * world;
    gl_ClipDistance[0] = dot(world, clipPlane);

    fragWorld   = world.xyz;
    fragNormal  = normalize(mat3(instanceNormal) * inNormal);
    fragTangent = normalize(mat3(instanceModel) * inTangent);
    fragUV      = inUV;
    fragColor   = inColor;
    fragDepth   = -eye.z;
    gl_Position = projection * eye;
}
`

// fullscreenVertexSrc emits one oversized triangle on the far plane so
// depth GREATER touches geometry and depth LEQUAL touches background.
const fullscreenVertexSrc = glslVersion + `
out vec2 fragUV;
void main() {
    const vec2 pos[3] = vec2[3](
        vec2(-1.0, -1.0),
        vec2( 3.0, -1.0),
        vec2(-1.0,  3.0)
    );
    gl_Position = vec4(pos[gl_VertexID], 1.0, 1.0);
    fragUV      = pos[gl_VertexID] * 0.5 + 0.5;
}
`

// lightVertexSrc draws either the far-plane triangle or a sphere proxy.
const lightVertexSrc = glslVersion + `
layout(location = 0) in vec3 inPosition;

uniform bool proxy;
uniform mat4 model;
uniform mat4 viewProjection;

void main() {
    if (proxy) {
        gl_Position = viewProjection * model * vec4(inPosition, 1.0);
        return;
    }
    const vec2 pos[3] = vec2[3](
        vec2(-1.0, -1.0),
        vec2( 3.0, -1.0),
        vec2(-1.0,  3.0)
    );
    gl_Position = vec4(pos[gl_VertexID], 1.0, 1.0);
}
`

// modelVertexSrc is for per-entity draws with the model matrix as a uniform.
const modelVertexSrc = glslVersion + `
layout(location = 0) in vec3 inPosition;
layout(location = 2) in vec2 inUV;

uniform mat4 model;
uniform mat4 viewProjection;

out vec3 fragWorld;
out vec2 fragUV;
out vec4 fragClip;

void main() {
    vec4 world = model * vec4(inPosition, 1.0);
    fragWorld   = world.xyz;
    fragUV      = inUV;
    fragClip    = viewProjection * world;
    gl_Position = fragClip;
}
`

// reconstructGLSL rebuilds world positions from linear view depth using the
// near-plane extents (left, right, bottom, top).
const reconstructGLSL = `
uniform vec4  nearExtents;
uniform float nearPlane;
uniform mat4  cameraWorld;

vec3 viewRay(vec2 uv) {
    return vec3(mix(nearExtents.x, nearExtents.y, uv.x),
                mix(nearExtents.z, nearExtents.w, uv.y),
                -nearPlane) / nearPlane;
}

vec3 viewPosition(vec2 uv, float linearDepth) {
    return viewRay(uv) * linearDepth;
}

vec3 worldPosition(vec2 uv, float linearDepth) {
    return (cameraWorld * vec4(viewPosition(uv, linearDepth), 1.0)).xyz;
}
`

const pbrGLSL = `
const float PI = 3.14159265359;

float DistributionGGX(vec3 N, vec3 H, float roughness) {
    float a  = roughness * roughness;
    float a2 = a * a;
    float NdH = max(dot(N, H), 0.0);
    float d   = NdH * NdH * (a2 - 1.0) + 1.0;
    return a2 / (PI * d * d);
}

float GeometrySchlickGGX(float cosTheta, float roughness) {
    float r = roughness + 1.0;
    float k = (r * r) / 8.0;
    return cosTheta / (cosTheta * (1.0 - k) + k);
}

float GeometrySmith(float NdV, float NdL, float roughness) {
    return GeometrySchlickGGX(NdV, roughness) * GeometrySchlickGGX(NdL, roughness);
}

vec3 FresnelSchlick(float cosTheta, vec3 F0) {
    return F0 + (1.0 - F0) * pow(clamp(1.0 - cosTheta, 0.0, 1.0), 5.0);
}

vec3 FresnelSchlickRoughness(float cosTheta, vec3 F0, float roughness) {
    return F0 + (max(vec3(1.0 - roughness), F0) - F0) * pow(clamp(1.0 - cosTheta, 0.0, 1.0), 5.0);
}

// diffuse is already scaled by (1 - metallic).
vec3 evalPBR(vec3 N, vec3 V, vec3 L, vec3 rad, vec3 diffuse, float roughness, vec3 F0) {
    float NdL = max(dot(N, L), 0.0);
    if (NdL <= 0.0) return vec3(0.0);

    vec3  H   = normalize(V + L);
    float NdV = max(dot(N, V), 0.0);

    float D = DistributionGGX(N, H, roughness);
    float G = GeometrySmith(NdV, NdL, roughness);
    vec3  F = FresnelSchlick(max(dot(H, V), 0.0), F0);

    vec3 kD       = vec3(1.0) - F;
    vec3 specular = D * G * F / max(4.0 * NdV * NdL, 0.001);
    return (kD * diffuse / PI + specular) * rad * NdL;
}
`

// gbufferGLSL samples the G-buffer at the current fragment.
const gbufferGLSL = `
uniform sampler2D albedoTex;   // unit 0
uniform sampler2D specularTex; // unit 1
uniform sampler2D normalTex;   // unit 2
uniform vec2      viewportSize;
uniform vec3      cameraPosition;

struct Surface {
    vec3  diffuse;
    float occlusion;
    vec3  F0;
    float roughness;
    vec3  N;
    vec3  world;
    vec3  V;
};

Surface readSurface(vec2 uv) {
    vec4 a = texture(albedoTex, uv);
    vec4 s = texture(specularTex, uv);
    vec4 n = texture(normalTex, uv);
    Surface o;
    o.diffuse   = a.rgb;
    o.occlusion = a.a;
    o.F0        = s.rgb;
    o.roughness = max(s.a, 0.04);
    o.N         = normalize(n.xyz);
    o.world     = worldPosition(uv, n.w);
    o.V         = normalize(cameraPosition - o.world);
    return o;
}
`

// ── G-buffer ─────────────────────────────────────────────────────────────────

const gbufferFragmentSrc = glslVersion + `
in vec3  fragWorld;
in vec3  fragNormal;
in vec3  fragTangent;
in vec2  fragUV;
in vec4  fragColor;
in float fragDepth;

layout(location = 0) out vec4 outAlbedo;
layout(location = 1) out vec4 outSpecular;
layout(location = 2) out vec4 outNormal;
layout(location = 3) out vec4 outLight;

uniform sampler2D albedoMap;            // unit 0
uniform sampler2D normalMap;            // unit 1
uniform sampler2D metallicRoughnessMap; // unit 2
uniform sampler2D occlusionMap;         // unit 3
uniform sampler2D emissiveMap;          // unit 4

uniform vec4  albedo;
uniform float metallic;
uniform float roughness;
uniform vec3  emissive;

void main() {
    vec4 base = texture(albedoMap, fragUV) * albedo * fragColor;
    vec4 mr   = texture(metallicRoughnessMap, fragUV);
    float m   = clamp(mr.b * metallic, 0.0, 1.0);
    float r   = clamp(mr.g * roughness, 0.04, 1.0);

    vec3 N = normalize(fragNormal);
    vec3 T = fragTangent - N * dot(fragTangent, N);
    if (dot(T, T) > 1e-6) {
        T = normalize(T);
        vec3 Bt = cross(N, T);
        vec3 tn = texture(normalMap, fragUV).xyz * 2.0 - 1.0;
        N = normalize(mat3(T, Bt, N) * tn);
    }

    outAlbedo   = vec4(base.rgb * (1.0 - m), texture(occlusionMap, fragUV).r);
    outSpecular = vec4(mix(vec3(0.04), base.rgb, m), r);
    outNormal   = vec4(N, fragDepth);
    outLight    = vec4(emissive + texture(emissiveMap, fragUV).rgb, 1.0);
}
`

// forwardFragmentSrc shades the water reflection and refraction views
// with the environment and the strongest directional light.
const forwardFragmentSrc = glslVersion + `
in vec3  fragWorld;
in vec3  fragNormal;
in vec3  fragTangent;
in vec2  fragUV;
in vec4  fragColor;
in float fragDepth;

out vec4 outColor;

uniform sampler2D   albedoMap;     // unit 0
uniform sampler2D   emissiveMap;   // unit 4
uniform samplerCube irradianceMap; // unit 5

uniform vec4  albedo;
uniform vec3  emissive;
uniform vec3  sunDirection;
uniform vec3  sunColor;
uniform float ambientIntensity;

void main() {
    vec3 base = (texture(albedoMap, fragUV) * albedo * fragColor).rgb;
    vec3 N    = normalize(fragNormal);
    vec3 amb  = texture(irradianceMap, N).rgb * ambientIntensity;
    vec3 sun  = sunColor * max(dot(N, -sunDirection), 0.0);
    outColor  = vec4(base * (amb + sun) + emissive + texture(emissiveMap, fragUV).rgb, 1.0);
}
`

// ── ambient occlusion ────────────────────────────────────────────────────────

const ssaoFragmentSrc = glslVersion + reconstructGLSL + `
in  vec2 fragUV;
out vec4 outAO;

uniform sampler2D normalTex; // unit 0, xyz world normal, w linear depth
uniform sampler2D noiseTex;  // unit 1
uniform vec3  kernel[64];
uniform mat4  projection;
uniform mat3  viewNormal;
uniform float radius;
uniform float bias;
uniform vec2  noiseScale;

void main() {
    vec4 n = texture(normalTex, fragUV);
    if (n.w <= 0.0) { outAO = vec4(1.0); return; }

    vec3 pos = viewPosition(fragUV, n.w);
    vec3 N   = normalize(viewNormal * n.xyz);

    vec3 rnd = texture(noiseTex, fragUV * noiseScale).xyz;
    rnd.z = 0.0;
    vec3 T   = normalize(rnd - N * dot(rnd, N));
    vec3 B   = cross(N, T);
    mat3 TBN = mat3(T, B, N);

    float occ = 0.0;
    for (int i = 0; i < 64; i++) {
        vec3 s = pos + TBN * kernel[i] * radius;

        vec4 off = projection * vec4(s, 1.0);
        off.xyz /= off.w;
        vec2 suv = clamp(off.xy * 0.5 + 0.5, 0.001, 0.999);

        float geoDepth = texture(normalTex, suv).w;
        if (geoDepth <= 0.0) continue;
        float geoZ = -geoDepth;

        float rng = smoothstep(0.0, 1.0, radius / max(abs(pos.z - geoZ), 0.0001));
        occ += (geoZ >= s.z + bias ? 1.0 : 0.0) * rng;
    }
    outAO = vec4(1.0 - occ / 64.0, 0.0, 0.0, 1.0);
}
`

// ssaoBlurFragmentSrc writes only alpha; the color mask keeps albedo rgb.
const ssaoBlurFragmentSrc = glslVersion + `
in  vec2 fragUV;
out vec4 outColor;

uniform sampler2D ssaoTex;

void main() {
    vec2 texel = 1.0 / vec2(textureSize(ssaoTex, 0));
    float result = 0.0;
    for (int x = -2; x < 2; x++) {
        for (int y = -2; y < 2; y++) {
            result += texture(ssaoTex, fragUV + vec2(x, y) * texel).r;
        }
    }
    outColor = vec4(0.0, 0.0, 0.0, result / 16.0);
}
`

// ── lighting ─────────────────────────────────────────────────────────────────

const ambientFragmentSrc = glslVersion + reconstructGLSL + pbrGLSL + gbufferGLSL + `
out vec4 outColor;

uniform samplerCube irradianceMap;  // unit 3
uniform samplerCube environmentMap; // unit 4
uniform float environmentLod;
uniform float ambientIntensity;

void main() {
    vec2 uv = gl_FragCoord.xy / viewportSize;
    Surface s = readSurface(uv);

    float NdV = max(dot(s.N, s.V), 0.0);
    vec3 F  = FresnelSchlickRoughness(NdV, s.F0, s.roughness);
    vec3 kD = vec3(1.0) - F;

    vec3 diffuse  = texture(irradianceMap, s.N).rgb * s.diffuse;
    vec3 R        = reflect(-s.V, s.N);
    vec3 specular = textureLod(environmentMap, R, s.roughness * environmentLod).rgb * F;

    outColor = vec4((kD * diffuse + specular) * s.occlusion * ambientIntensity, 1.0);
}
`

// directionalFragmentSrc filters the shadow map with a 3x3 PCF kernel.
// Points past the far side of the light volume are lit.
const directionalFragmentSrc = glslVersion + reconstructGLSL + pbrGLSL + gbufferGLSL + `
out vec4 outColor;

uniform vec3 lightDirection;
uniform vec3 lightColor;

uniform sampler2DShadow shadowMap; // unit 3
uniform bool  shadowed;
uniform mat4  lightViewProjection;
uniform float shadowBias;
uniform float shadowTexel;

float shadowFactor(vec3 world) {
    vec4 ls = lightViewProjection * vec4(world, 1.0);
    vec3 p  = ls.xyz / ls.w * 0.5 + 0.5;
    if (p.z > 1.0) return 1.0;
    float sum = 0.0;
    for (int x = -1; x <= 1; x++)
        for (int y = -1; y <= 1; y++)
            sum += texture(shadowMap, vec3(p.xy + vec2(x, y) * shadowTexel, p.z - shadowBias));
    return sum / 9.0;
}

void main() {
    vec2 uv = gl_FragCoord.xy / viewportSize;
    Surface s = readSurface(uv);
    vec3 c = evalPBR(s.N, s.V, normalize(-lightDirection), lightColor, s.diffuse, s.roughness, s.F0);
    if (shadowed) c *= shadowFactor(s.world);
    outColor = vec4(c, 1.0);
}
`

const pointFragmentSrc = glslVersion + reconstructGLSL + pbrGLSL + gbufferGLSL + `
out vec4 outColor;

uniform vec3  lightPosition;
uniform vec3  lightColor;
uniform float lightRange;

void main() {
    vec2 uv = gl_FragCoord.xy / viewportSize;
    Surface s = readSurface(uv);

    vec3  toLight = lightPosition - s.world;
    float d = length(toLight);
    if (d >= lightRange) discard;

    float falloff = clamp(1.0 - pow(d / lightRange, 4.0), 0.0, 1.0);
    float atten   = falloff * falloff / (d * d + 1.0);
    vec3 c = evalPBR(s.N, s.V, toLight / d, lightColor * atten, s.diffuse, s.roughness, s.F0);
    outColor = vec4(c, 1.0);
}
`

// ── background ───────────────────────────────────────────────────────────────

const backgroundFragmentSrc = glslVersion + reconstructGLSL + `
in  vec2 fragUV;
out vec4 outColor;

uniform samplerCube environmentMap; // unit 0
uniform bool useEnvironment;
uniform vec3 backgroundColor;

void main() {
    if (!useEnvironment) {
        outColor = vec4(backgroundColor, 1.0);
        return;
    }
    vec3 dir = normalize(mat3(cameraWorld) * viewRay(fragUV));
    outColor = vec4(textureLod(environmentMap, dir, 0.0).rgb, 1.0);
}
`

// ── water ────────────────────────────────────────────────────────────────────

const waterFragmentSrc = glslVersion + `
in vec3 fragWorld;
in vec2 fragUV;
in vec4 fragClip;

out vec4 outColor;

uniform sampler2D reflectionTex;   // unit 0
uniform sampler2D refractionTex;   // unit 1
uniform sampler2D refractionDepth; // unit 2
uniform sampler2D normalMap;       // unit 3
uniform sampler2D distortionMap;   // unit 4

uniform vec3  cameraPosition;
uniform vec3  sunDirection;
uniform vec3  sunColor;
uniform vec4  waterTint;
uniform float waveScale;
uniform float distortionStrength;
uniform float time;
uniform float nearPlane;
uniform float farPlane;

float linearize(float d) {
    float z = d * 2.0 - 1.0;
    return 2.0 * nearPlane * farPlane / (farPlane + nearPlane - z * (farPlane - nearPlane));
}

void main() {
    vec2 ndc = fragClip.xy / fragClip.w * 0.5 + 0.5;

    vec2 flow = vec2(time * 0.03, time * 0.02);
    vec2 d1 = texture(distortionMap, fragUV * waveScale + flow).rg * 2.0 - 1.0;
    vec2 d2 = texture(distortionMap, fragUV * waveScale * 0.7 - flow.yx).rg * 2.0 - 1.0;
    vec2 distortion = (d1 + d2) * distortionStrength;

    float floorDepth = linearize(texture(refractionDepth, ndc).r);
    float waterDepth = linearize(gl_FragCoord.z);
    float thickness  = max(floorDepth - waterDepth, 0.0);
    distortion *= clamp(thickness / 2.0, 0.0, 1.0);

    vec2 reflectUV = clamp(vec2(ndc.x, 1.0 - ndc.y) + distortion, 0.001, 0.999);
    vec2 refractUV = clamp(ndc + distortion, 0.001, 0.999);
    vec3 reflection = texture(reflectionTex, reflectUV).rgb;
    vec3 refraction = texture(refractionTex, refractUV).rgb;
    refraction = mix(refraction, waterTint.rgb, clamp(thickness / 10.0, 0.0, 1.0) * waterTint.a);

    vec3 n = texture(normalMap, fragUV * waveScale + distortion).xzy * 2.0 - 1.0;
    vec3 N = normalize(vec3(n.x, n.y * 3.0, n.z));
    vec3 V = normalize(cameraPosition - fragWorld);

    float fresnel = pow(1.0 - max(dot(V, vec3(0.0, 1.0, 0.0)), 0.0), 2.0);
    vec3 color = mix(refraction, reflection, clamp(fresnel, 0.05, 0.95));

    vec3 H = normalize(V - sunDirection);
    color += sunColor * pow(max(dot(N, H), 0.0), 128.0) * clamp(thickness, 0.0, 1.0);
    outColor = vec4(color, 1.0);
}
`

// ── selection outline ────────────────────────────────────────────────────────

const maskFragmentSrc = glslVersion + `
out vec4 outMask;
void main() { outMask = vec4(1.0); }
`

const outlineFragmentSrc = glslVersion + `
in  vec2 fragUV;
out vec4 outColor;

uniform sampler2D maskTex;
uniform vec4 outlineColor;
uniform float width;

void main() {
    vec2 texel = width / vec2(textureSize(maskTex, 0));
    float center = texture(maskTex, fragUV).r;
    float edge = 0.0;
    for (int x = -1; x <= 1; x++) {
        for (int y = -1; y <= 1; y++) {
            edge = max(edge, texture(maskTex, fragUV + vec2(x, y) * texel).r);
        }
    }
    edge -= center;
    if (edge <= 0.0) discard;
    outColor = vec4(outlineColor.rgb, outlineColor.a * edge);
}
`

// ── grid ─────────────────────────────────────────────────────────────────────

const gridFragmentSrc = glslVersion + reconstructGLSL + `
in  vec2 fragUV;
out vec4 outColor;

uniform sampler2D normalTex; // w linear depth, 0 for background
uniform vec3  cameraPosition;
uniform float farPlane;

float gridLine(vec2 p, float spacing) {
    vec2 c = p / spacing;
    vec2 g = abs(fract(c - 0.5) - 0.5) / fwidth(c);
    return 1.0 - min(min(g.x, g.y), 1.0);
}

void main() {
    vec3 dir = mat3(cameraWorld) * viewRay(fragUV);
    if (abs(dir.y) < 1e-5) discard;
    float s = -cameraPosition.y / dir.y;
    if (s <= 0.0) discard;

    float sceneDepth = texture(normalTex, fragUV).w;
    if (sceneDepth > 0.0 && s > sceneDepth) discard;

    vec3 hit = cameraPosition + dir * s;
    float line = max(gridLine(hit.xz, 1.0) * 0.5, gridLine(hit.xz, 10.0));
    float fade = 1.0 - clamp(s / (farPlane * 0.5), 0.0, 1.0);
    float alpha = line * fade * 0.6;
    if (alpha <= 0.001) discard;

    vec3 color = vec3(0.6);
    if (abs(hit.x) < 0.05) color = vec3(0.3, 0.3, 1.0);
    if (abs(hit.z) < 0.05) color = vec3(1.0, 0.3, 0.3);
    outColor = vec4(color, alpha);
}
`

// ── bloom ────────────────────────────────────────────────────────────────────

const bloomExtractFragmentSrc = glslVersion + `
in  vec2 fragUV;
out vec4 outColor;

uniform sampler2D hdrBuffer;
uniform float     threshold;

void main() {
    vec3  color = texture(hdrBuffer, fragUV).rgb;
    float luma  = dot(color, vec3(0.2126, 0.7152, 0.0722));
    outColor = vec4(color * step(threshold, luma), 1.0);
}
`

// bloomBlurFragmentSrc is a single-axis 5-tap Gaussian at one mip level.
const bloomBlurFragmentSrc = glslVersion + `
in  vec2 fragUV;
out vec4 outColor;

uniform sampler2D blurTex;
uniform float     lod;
uniform vec2      direction;
uniform float     radius;

void main() {
    vec2 texelDir = direction * radius / vec2(textureSize(blurTex, int(lod)));
    const float w[5] = float[](0.0625, 0.25, 0.375, 0.25, 0.0625);
    vec3 result = vec3(0.0);
    for (int i = -2; i <= 2; i++) {
        result += textureLod(blurTex, fragUV + float(i) * texelDir, lod).rgb * w[i + 2];
    }
    outColor = vec4(result, 1.0);
}
`

const bloomCompositeFragmentSrc = glslVersion + `
in  vec2 fragUV;
out vec4 outColor;

uniform sampler2D bloomTex;
uniform int   levels;
uniform float intensities[8];

void main() {
    vec3 sum = vec3(0.0);
    for (int i = 0; i < levels; i++) {
        sum += textureLod(bloomTex, fragUV, float(i)).rgb * intensities[i];
    }
    outColor = vec4(sum, 1.0);
}
`

// maxBloomLevels is the length of the composite's intensity array.
const maxBloomLevels = 8

// ── final blit ───────────────────────────────────────────────────────────────

const blitFragmentSrc = glslVersion + `
in  vec2 fragUV;
out vec4 outColor;

uniform sampler2D source;
uniform int   mode; // 0 color, 1 alpha, 2 depth, 3 red
uniform float lod;
uniform bool  toneMap;
uniform float exposure;
uniform float nearPlane;
uniform float farPlane;

void main() {
    vec4 c = textureLod(source, fragUV, lod);
    vec3 rgb;
    if (mode == 1) {
        rgb = vec3(c.a);
    } else if (mode == 2) {
        float z   = c.r * 2.0 - 1.0;
        float lin = 2.0 * nearPlane * farPlane / (farPlane + nearPlane - z * (farPlane - nearPlane));
        rgb = vec3(1.0 - lin / farPlane);
    } else if (mode == 3) {
        rgb = vec3(c.r);
    } else {
        rgb = c.rgb;
        if (toneMap) {
            rgb = vec3(1.0) - exp(-rgb * exposure);
            rgb = pow(rgb, vec3(1.0 / 2.2));
        }
    }
    outColor = vec4(rgb, 1.0);
}
`

// ── debug overlay ────────────────────────────────────────────────────────────

const debugLineVertexSrc = glslVersion + `
layout(location = 0) in vec3 inPosition;
layout(location = 3) in vec4 inColor;

uniform mat4 viewProjection;

out vec4 fragColor;

void main() {
    fragColor   = inColor;
    gl_Position = viewProjection * vec4(inPosition, 1.0);
}
`

const debugLineFragmentSrc = glslVersion + `
in  vec4 fragColor;
out vec4 outColor;
void main() { outColor = fragColor; }
`

const debugTextVertexSrc = glslVersion + `
layout(location = 0) in vec2 inPosition; // NDC
layout(location = 2) in vec2 inUV;
layout(location = 3) in vec4 inColor;

out vec2 fragUV;
out vec4 fragColor;

void main() {
    fragUV      = inUV;
    fragColor   = inColor;
    gl_Position = vec4(inPosition, 0.0, 1.0);
}
`

const debugTextFragmentSrc = glslVersion + `
in  vec2 fragUV;
in  vec4 fragColor;
out vec4 outColor;

uniform sampler2D glyphs;

void main() {
    float a = texture(glyphs, fragUV).a;
    if (a < 0.5) discard;
    outColor = vec4(fragColor.rgb, fragColor.a * a);
}
`

// ── picking ──────────────────────────────────────────────────────────────────

// pickingFragmentSrc writes the entity ID as a float; zero is background.
const pickingFragmentSrc = glslVersion + `
out vec4 outID;
uniform float pickId;
void main() { outID = vec4(pickId, 0.0, 0.0, 1.0); }
`

// ── shadow map ───────────────────────────────────────────────────────────────

const shadowVertexSrc = glslVersion + `
layout(location = 0) in vec3 inPosition;
layout(location = 6) in mat4 instanceModel;

uniform mat4 lightViewProjection;

void main() {
    gl_Position = lightViewProjection * instanceModel * vec4(inPosition, 1.0);
}
`

const shadowFragmentSrc = glslVersion + `
void main() {}
`

// ── environment bake ─────────────────────────────────────────────────────────

const cubeVertexSrc = glslVersion + `
layout(location = 0) in vec3 inPosition;

uniform mat4 view;
uniform mat4 projection;

out vec3 fragDir;

void main() {
    fragDir     = inPosition;
    gl_Position = projection * view * vec4(inPosition, 1.0);
}
`

// equirectFragmentSrc maps a top-row-first latitude/longitude image.
const equirectFragmentSrc = glslVersion + `
in  vec3 fragDir;
out vec4 outColor;

uniform sampler2D equirect;

const vec2 invAtan = vec2(0.1591, 0.3183);

void main() {
    vec3 d  = normalize(fragDir);
    vec2 uv = vec2(atan(d.z, d.x), asin(clamp(d.y, -1.0, 1.0))) * invAtan;
    uv = vec2(uv.x + 0.5, 0.5 - uv.y);
    outColor = vec4(texture(equirect, uv).rgb, 1.0);
}
`

const downsampleFragmentSrc = glslVersion + `
in  vec3 fragDir;
out vec4 outColor;

uniform samplerCube source;
uniform float lod;

void main() {
    outColor = vec4(textureLod(source, normalize(fragDir), lod).rgb, 1.0);
}
`

// irradianceFragmentSrc integrates cosine-weighted radiance over the
// hemisphere around each direction.
const irradianceFragmentSrc = glslVersion + `
in  vec3 fragDir;
out vec4 outColor;

uniform samplerCube source;

const float PI = 3.14159265359;

void main() {
    vec3 N = normalize(fragDir);
    vec3 up = abs(N.y) < 0.999 ? vec3(0.0, 1.0, 0.0) : vec3(1.0, 0.0, 0.0);
    vec3 right = normalize(cross(up, N));
    up = cross(N, right);

    vec3 irradiance = vec3(0.0);
    float samples = 0.0;
    const float delta = 0.05;
    for (float phi = 0.0; phi < 2.0 * PI; phi += delta) {
        for (float theta = 0.0; theta < 0.5 * PI; theta += delta) {
            vec3 t = vec3(sin(theta) * cos(phi), sin(theta) * sin(phi), cos(theta));
            vec3 dir = t.x * right + t.y * up + t.z * N;
            irradiance += texture(source, dir).rgb * cos(theta) * sin(theta);
            samples += 1.0;
        }
    }
    outColor = vec4(PI * irradiance / samples, 1.0);
}
`
