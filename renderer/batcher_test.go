package renderer

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"deferred-renderer/core"
	"deferred-renderer/internal/gpu/gputest"
	"deferred-renderer/scene"
)

func newTestBatcher(logger *zap.Logger) (*instanceBatcher, *gputest.Device) {
	d := gputest.New()
	uploads := newUploadCache(d, logger)
	gizmo := scene.CreateSphere(1, 8, 6).Submeshes[0]
	return newInstanceBatcher(d, logger, uploads, gizmo), d
}

func addMeshEntity(s *scene.Scene, name string, mesh *scene.Mesh, mat *scene.Material, pos mgl32.Vec3) *scene.Entity {
	e := scene.NewEntity(name)
	if mat != nil {
		e.SetMeshRenderer(scene.NewMeshRenderer(mesh, mat))
	} else {
		e.SetMeshRenderer(scene.NewMeshRenderer(mesh))
	}
	e.SetPosition(pos)
	s.Add(e)
	return e
}

func TestBatchSortOrder(t *testing.T) {
	b, _ := newTestBatcher(zap.NewNop())
	s := scene.NewScene()
	s.Settings.RenderLightGizmos = false
	red := scene.NewMaterial("red", core.ColorRed)
	blue := scene.NewMaterial("blue", core.ColorBlue)
	cube, sphere := scene.CreateCube(1), scene.CreateSphere(1, 8, 6)

	addMeshEntity(s, "a", sphere, blue, mgl32.Vec3{0, 0, 0})
	addMeshEntity(s, "b", cube, red, mgl32.Vec3{1, 0, 0})
	addMeshEntity(s, "c", sphere, red, mgl32.Vec3{2, 0, 0})
	addMeshEntity(s, "d", cube, blue, mgl32.Vec3{3, 0, 0})
	addMeshEntity(s, "e", cube, red, mgl32.Vec3{4, 0, 0})

	b.rebuild(s)
	if len(b.groups) != 4 {
		t.Fatalf("%d groups, want 4", len(b.groups))
	}
	total := 0
	for i, g := range b.groups {
		total += g.Count()
		if i == 0 {
			continue
		}
		prev := b.groups[i-1]
		if prev.Material.ID > g.Material.ID ||
			(prev.Material.ID == g.Material.ID && prev.Submesh.ID >= g.Submesh.ID) {
			t.Errorf("group %d (%d, %d) sorts before group %d (%d, %d)",
				i-1, prev.Material.ID, prev.Submesh.ID, i, g.Material.ID, g.Submesh.ID)
		}
	}
	if total != 5 {
		t.Errorf("%d instances batched, want 5", total)
	}
	if first := b.groups[0]; first.Material != red || first.Submesh != cube.Submeshes[0] || first.Count() != 2 {
		t.Errorf("first group is %s/%s x%d, want red cube x2", first.Material.Name, first.Submesh.Name, first.Count())
	}
}

func TestBatchRegionLayout(t *testing.T) {
	b, d := newTestBatcher(zap.NewNop())
	s := scene.NewScene()
	s.Settings.RenderLightGizmos = false
	mat := scene.NewMaterial("m", core.ColorWhite)
	cube, sphere := scene.CreateCube(1), scene.CreateSphere(1, 8, 6)
	for i := 0; i < 3; i++ {
		addMeshEntity(s, "cube", cube, mat, mgl32.Vec3{float32(i), 0, 0})
	}
	addMeshEntity(s, "sphere", sphere, mat, mgl32.Vec3{0, 2, 0})
	b.rebuild(s)

	offset := 0
	for _, g := range b.groups {
		if g.Offset != offset {
			t.Errorf("%s group at offset %d, want %d", g.Submesh.Name, g.Offset, offset)
		}
		desc, ok := d.VertexArray(g.VertexArray.ID())
		if !ok {
			t.Fatalf("%s group has no vertex array", g.Submesh.Name)
		}
		for _, a := range desc.Attribs {
			if a.Location < modelLocation {
				continue
			}
			if a.Divisor != 1 || a.Stride != matrixBytes {
				t.Errorf("location %d divisor %d stride %d", a.Location, a.Divisor, a.Stride)
			}
			var want int
			if a.Location < normalLocation {
				want = g.Offset + int(a.Location-modelLocation)*16
			} else {
				want = g.Offset + g.Count()*matrixBytes + int(a.Location-normalLocation)*16
			}
			if a.Offset != want {
				t.Errorf("%s location %d offset %d, want %d", g.Submesh.Name, a.Location, a.Offset, want)
			}
		}
		offset += g.Count() * instanceBytes
	}
	if size, _ := d.BufferSize(b.buffer.ID()); size != 4*instanceBytes {
		t.Errorf("instance buffer %d bytes, want %d", size, 4*instanceBytes)
	}
}

func TestBatchRebuildIdempotent(t *testing.T) {
	b, d := newTestBatcher(zap.NewNop())
	s := scene.NewScene()
	cube := scene.CreateCube(1)
	addMeshEntity(s, "a", cube, nil, mgl32.Vec3{})
	addMeshEntity(s, "b", cube, nil, mgl32.Vec3{1, 0, 0})
	l := scene.NewEntity("lamp")
	l.SetLight(scene.NewPointLight(core.ColorWhite, 1, 5))
	s.Add(l)

	type key struct {
		mat, sub uint32
		n, off   int
	}
	snapshot := func() []key {
		var out []key
		for _, g := range b.groups {
			out = append(out, key{g.Material.ID, g.Submesh.ID, g.Count(), g.Offset})
		}
		return out
	}
	b.rebuild(s)
	first, live := snapshot(), d.Live()
	b.rebuild(s)
	second := snapshot()
	if len(first) != len(second) {
		t.Fatalf("groups %v then %v", first, second)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("group %d: %v then %v", i, first[i], second[i])
		}
	}
	if d.Live() != live {
		t.Errorf("rebuild leaked: %+v -> %+v", live, d.Live())
	}
	if len(first) != 2 {
		t.Errorf("%d groups, want default cube and light gizmo", len(first))
	}
}

func TestBatchSkipsInactiveAndWater(t *testing.T) {
	b, _ := newTestBatcher(zap.NewNop())
	s := scene.NewScene()
	s.Settings.RenderLightGizmos = false
	cube := scene.CreateCube(1)
	hidden := addMeshEntity(s, "hidden", cube, nil, mgl32.Vec3{})
	hidden.SetActive(false)
	addMeshEntity(s, "water", scene.CreatePlane(10, 10, 1), scene.NewWaterMaterial("water"), mgl32.Vec3{})
	b.rebuild(s)
	if len(b.groups) != 0 {
		t.Errorf("%d groups for a scene with only hidden and water entities", len(b.groups))
	}
}

func TestInstanceBufferHysteresis(t *testing.T) {
	b, d := newTestBatcher(zap.NewNop())
	s := scene.NewScene()
	s.Settings.RenderLightGizmos = false
	cube := scene.CreateCube(1)
	var es []*scene.Entity
	for i := 0; i < 4; i++ {
		es = append(es, addMeshEntity(s, "cube", cube, nil, mgl32.Vec3{float32(i), 0, 0}))
	}
	b.rebuild(s)
	buf := b.buffer.ID()

	es[3].SetActive(false)
	b.rebuild(s)
	if b.buffer.ID() != buf {
		t.Error("buffer reallocated although 3 of 4 instances still fit")
	}

	es[2].SetActive(false)
	es[1].SetActive(false)
	b.rebuild(s)
	if b.buffer.ID() == buf {
		t.Error("buffer kept at more than twice the required size")
	}
	if size, _ := d.BufferSize(b.buffer.ID()); size != instanceBytes {
		t.Errorf("buffer %d bytes, want %d", size, instanceBytes)
	}
}

func TestInstanceBufferAllocationFailure(t *testing.T) {
	obs, logs := observer.New(zapcore.WarnLevel)
	b, d := newTestBatcher(zap.New(obs))
	s := scene.NewScene()
	s.Settings.RenderLightGizmos = false
	addMeshEntity(s, "cube", scene.CreateCube(1), nil, mgl32.Vec3{})
	b.rebuild(s)
	if len(b.groups) != 1 {
		t.Fatalf("%d groups before failure", len(b.groups))
	}

	for i := 0; i < 3; i++ {
		addMeshEntity(s, "more", scene.CreateCube(1), nil, mgl32.Vec3{float32(i), 1, 0})
	}
	d.FailBufferAlloc = true
	b.rebuild(s)
	if len(b.groups) != 0 {
		t.Errorf("%d groups after failed allocation, want 0", len(b.groups))
	}
	if logs.FilterMessage("instance buffer allocation failed, skipping batches").Len() != 1 {
		t.Errorf("no warning logged: %v", logs.All())
	}
}

func TestNormalMatrix(t *testing.T) {
	model := mgl32.Scale3D(2, 1, 1)
	n := normalMatrix(model)
	got := n.Mul4x1(mgl32.Vec4{1, 1, 0, 0}).Vec3().Normalize()
	want := mgl32.Vec3{0.5, 1, 0}.Normalize()
	if !got.ApproxEqualThreshold(want, 1e-4) {
		t.Errorf("normal %v, want %v", got, want)
	}
	if n.At(3, 3) != 1 || n.At(0, 3) != 0 {
		t.Errorf("normal matrix has a translation column: %v", n)
	}
}
