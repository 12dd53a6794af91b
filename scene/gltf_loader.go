package scene

import (
	"fmt"
	"path/filepath"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"go.uber.org/zap"

	"deferred-renderer/core"
)

// GLTFResult holds the entity hierarchy loaded from a .glb or .gltf file.
// Add each root with Scene.Add.
type GLTFResult struct {
	Roots    []*Entity
	Textures []*Texture
}

// LoadGLTF reads geometry, metallic-roughness materials, their textures and
// the node hierarchy. Each glTF mesh becomes one Mesh with a submesh per
// primitive. Unreadable textures and primitives are logged and skipped.
func LoadGLTF(path string, logger *zap.Logger) (*GLTFResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("gltf open %q: %w", path, err)
	}
	log := logger.With(zap.String("file", path))
	dir := filepath.Dir(path)
	result := &GLTFResult{}

	// ── textures ─────────────────────────────────────────────────────────────
	texCache := make([]*Texture, len(doc.Textures))
	for i, gt := range doc.Textures {
		if gt.Source == nil {
			continue
		}
		img := doc.Images[*gt.Source]
		var tex *Texture
		switch {
		case img.BufferView != nil:
			raw, err := modeler.ReadBufferView(doc, doc.BufferViews[*img.BufferView])
			if err != nil {
				log.Warn("gltf image buffer view", zap.Int("image", *gt.Source), zap.Error(err))
				continue
			}
			name := img.Name
			if name == "" {
				name = fmt.Sprintf("gltf_img_%d", *gt.Source)
			}
			if tex, err = decodeImageBytes(name, raw); err != nil {
				log.Warn("gltf image decode", zap.Int("image", *gt.Source), zap.Error(err))
				continue
			}
		case img.URI != "" && !img.IsEmbeddedResource():
			if tex, err = LoadTexture(filepath.Join(dir, img.URI)); err != nil {
				log.Warn("gltf image load", zap.String("uri", img.URI), zap.Error(err))
				continue
			}
		}
		if tex != nil {
			texCache[i] = tex
			result.Textures = append(result.Textures, tex)
		}
	}
	lookup := func(idx int) *Texture {
		if idx >= 0 && idx < len(texCache) {
			return texCache[idx]
		}
		return nil
	}

	// ── materials ────────────────────────────────────────────────────────────
	matCache := make([]*Material, len(doc.Materials))
	for i, gm := range doc.Materials {
		mat := DefaultMaterial()
		mat.Name = gm.Name
		if pbr := gm.PBRMetallicRoughness; pbr != nil {
			cf := pbr.BaseColorFactorOrDefault()
			mat.Albedo = core.Color{R: float32(cf[0]), G: float32(cf[1]), B: float32(cf[2]), A: float32(cf[3])}
			mat.Metallic = float32(pbr.MetallicFactorOrDefault())
			mat.Roughness = float32(pbr.RoughnessFactorOrDefault())
			if pbr.BaseColorTexture != nil {
				mat.AlbedoTexture = lookup(pbr.BaseColorTexture.Index)
			}
			if pbr.MetallicRoughnessTexture != nil {
				mat.MetallicRoughnessTexture = lookup(pbr.MetallicRoughnessTexture.Index)
			}
		}
		if gm.NormalTexture != nil && gm.NormalTexture.Index != nil {
			mat.NormalTexture = lookup(*gm.NormalTexture.Index)
		}
		if gm.OcclusionTexture != nil && gm.OcclusionTexture.Index != nil {
			mat.OcclusionTexture = lookup(*gm.OcclusionTexture.Index)
		}
		if gm.EmissiveTexture != nil {
			mat.EmissiveTexture = lookup(gm.EmissiveTexture.Index)
		} else {
			ef := gm.EmissiveFactor
			mat.Emissive = core.Color{R: float32(ef[0]), G: float32(ef[1]), B: float32(ef[2]), A: 1}
		}
		matCache[i] = mat
	}

	// ── meshes ───────────────────────────────────────────────────────────────
	meshes := make([]*MeshRenderer, len(doc.Meshes))
	for mi, gm := range doc.Meshes {
		mr := &MeshRenderer{Mesh: NewMesh(gm.Name)}
		for pi, prim := range gm.Primitives {
			sub, err := loadGLTFPrimitive(doc, gm.Name, pi, prim)
			if err != nil {
				log.Warn("gltf primitive", zap.Int("mesh", mi), zap.Int("primitive", pi), zap.Error(err))
				continue
			}
			ComputeTangents(sub)
			var mat *Material
			if prim.Material != nil && *prim.Material < len(matCache) {
				mat = matCache[*prim.Material]
			}
			mr.Mesh.Submeshes = append(mr.Mesh.Submeshes, sub)
			mr.Materials = append(mr.Materials, mat)
		}
		if len(mr.Mesh.Submeshes) > 0 {
			meshes[mi] = mr
		}
	}

	// ── nodes ────────────────────────────────────────────────────────────────
	nodes := make([]*Entity, len(doc.Nodes))
	for i, gn := range doc.Nodes {
		name := gn.Name
		if name == "" {
			name = fmt.Sprintf("node_%d", i)
		}
		e := NewEntity(name)
		t := gn.TranslationOrDefault()
		s := gn.ScaleOrDefault()
		r := gn.RotationOrDefault() // x, y, z, w
		e.Transform = Transform{
			Position: mgl32.Vec3{float32(t[0]), float32(t[1]), float32(t[2])},
			Rotation: mgl32.Quat{W: float32(r[3]), V: mgl32.Vec3{float32(r[0]), float32(r[1]), float32(r[2])}},
			Scale:    mgl32.Vec3{float32(s[0]), float32(s[1]), float32(s[2])},
		}
		if gn.Mesh != nil && *gn.Mesh < len(meshes) && meshes[*gn.Mesh] != nil {
			src := meshes[*gn.Mesh]
			e.SetMeshRenderer(NewMeshRenderer(src.Mesh, src.Materials...))
		}
		nodes[i] = e
	}
	for i, gn := range doc.Nodes {
		for _, c := range gn.Children {
			if c < len(nodes) {
				nodes[i].AddChild(nodes[c])
			}
		}
	}

	// ── roots ────────────────────────────────────────────────────────────────
	if doc.Scene != nil && *doc.Scene < len(doc.Scenes) {
		for _, idx := range doc.Scenes[*doc.Scene].Nodes {
			if idx < len(nodes) {
				result.Roots = append(result.Roots, nodes[idx])
			}
		}
	} else {
		for _, n := range nodes {
			if n.Parent == nil {
				result.Roots = append(result.Roots, n)
			}
		}
	}
	log.Info("gltf loaded",
		zap.Int("roots", len(result.Roots)),
		zap.Int("meshes", len(doc.Meshes)),
		zap.Int("textures", len(result.Textures)))
	return result, nil
}

func loadGLTFPrimitive(doc *gltf.Document, meshName string, primIdx int, prim *gltf.Primitive) (*Submesh, error) {
	name := fmt.Sprintf("%s_p%d", meshName, primIdx)
	if meshName == "" {
		name = fmt.Sprintf("prim_%d", primIdx)
	}
	if prim.Mode != gltf.PrimitiveTriangles {
		return nil, fmt.Errorf("unsupported primitive mode %d", prim.Mode)
	}

	posIdx, ok := prim.Attributes["POSITION"]
	if !ok {
		return nil, fmt.Errorf("no POSITION attribute")
	}
	positions, err := modeler.ReadPosition(doc, doc.Accessors[posIdx], nil)
	if err != nil {
		return nil, fmt.Errorf("positions: %w", err)
	}

	var normals [][3]float32
	var uvs [][2]float32
	if idx, ok := prim.Attributes["NORMAL"]; ok {
		normals, _ = modeler.ReadNormal(doc, doc.Accessors[idx], nil)
	}
	if idx, ok := prim.Attributes["TEXCOORD_0"]; ok {
		uvs, _ = modeler.ReadTextureCoord(doc, doc.Accessors[idx], nil)
	}

	verts := make([]core.Vertex, len(positions))
	for i, p := range positions {
		v := core.Vertex{
			Position: mgl32.Vec3{p[0], p[1], p[2]},
			Normal:   mgl32.Vec3{0, 1, 0},
			Color:    core.ColorWhite,
		}
		if i < len(normals) {
			v.Normal = mgl32.Vec3(normals[i])
		}
		if i < len(uvs) {
			v.UV = mgl32.Vec2(uvs[i])
		}
		verts[i] = v
	}

	var indices []uint32
	if prim.Indices != nil {
		if indices, err = modeler.ReadIndices(doc, doc.Accessors[*prim.Indices], nil); err != nil {
			return nil, fmt.Errorf("indices: %w", err)
		}
	}
	return NewSubmesh(name, verts, indices), nil
}
