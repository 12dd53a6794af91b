package scene

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestCameraForwardZero(t *testing.T) {
	c := NewCamera(mgl32.DegToRad(60), 800, 600, 0.1, 100)
	if f := c.Forward(); !f.ApproxEqual(mgl32.Vec3{0, 0, -1}) {
		t.Errorf("forward = %v", f)
	}
}

func TestCameraLookAt(t *testing.T) {
	c := NewCamera(mgl32.DegToRad(60), 800, 600, 0.1, 100)
	c.Position = mgl32.Vec3{0, 5, 5}
	c.LookAt(mgl32.Vec3{})
	want := mgl32.Vec3{0, -5, -5}.Normalize()
	if f := c.Forward(); !f.ApproxEqualThreshold(want, 1e-5) {
		t.Errorf("forward = %v, want %v", f, want)
	}
}

func TestMirroredCamera(t *testing.T) {
	c := NewCamera(1, 800, 600, 0.1, 100)
	c.Position = mgl32.Vec3{2, 3, 4}
	c.Pitch = -0.4
	c.Yaw = 0.7

	m := c.Mirrored(0)
	if m.Position != (mgl32.Vec3{2, -3, 4}) {
		t.Errorf("mirrored position = %v", m.Position)
	}
	if m.Pitch != 0.4 || m.Yaw != 0.7 {
		t.Errorf("mirrored pitch/yaw = %v/%v", m.Pitch, m.Yaw)
	}
	if c.Position.Y() != 3 {
		t.Error("Mirrored modified the receiver")
	}
}

func TestNearPlaneExtents(t *testing.T) {
	c := NewCamera(float32(math.Pi/2), 200, 100, 1, 100)
	l, r, b, top := c.NearPlaneExtents()
	if !mgl32.FloatEqual(top, 1) || !mgl32.FloatEqual(b, -1) {
		t.Errorf("bottom/top = %v/%v", b, top)
	}
	if !mgl32.FloatEqual(r, 2) || !mgl32.FloatEqual(l, -2) {
		t.Errorf("left/right = %v/%v", l, r)
	}
}

func TestWorldMatrixInvertsView(t *testing.T) {
	c := NewCamera(1, 800, 600, 0.1, 100)
	c.Position = mgl32.Vec3{1, 2, 3}
	c.Yaw = 0.3
	got := c.WorldMatrix().Mul4(c.ViewMatrix())
	want := mgl32.Ident4()
	for i := range got {
		if !mgl32.FloatEqualThreshold(got[i], want[i], 1e-4) {
			t.Errorf("world*view = %v", got)
			break
		}
	}
}

func TestFrustumSphere(t *testing.T) {
	c := NewCamera(mgl32.DegToRad(60), 800, 600, 0.1, 100)
	f := FrustumFromVP(c.ViewProjectionMatrix())
	tests := []struct {
		name   string
		center mgl32.Vec3
		radius float32
		want   bool
	}{
		{"ahead", mgl32.Vec3{0, 0, -10}, 1, true},
		{"behind", mgl32.Vec3{0, 0, 10}, 1, false},
		{"behind overlapping", mgl32.Vec3{0, 0, 1}, 2, true},
		{"far left", mgl32.Vec3{-100, 0, -10}, 1, false},
		{"past far plane", mgl32.Vec3{0, 0, -200}, 5, false},
	}
	for _, tt := range tests {
		if got := f.IntersectsSphere(tt.center, tt.radius); got != tt.want {
			t.Errorf("%s: IntersectsSphere = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestTransformAABB(t *testing.T) {
	box := AABB{Min: mgl32.Vec3{-1, -1, -1}, Max: mgl32.Vec3{1, 1, 1}}
	m := mgl32.Translate3D(5, 0, 0).Mul4(mgl32.Scale3D(2, 1, 1))
	got := TransformAABB(box, m)
	if !got.Min.ApproxEqual(mgl32.Vec3{3, -1, -1}) || !got.Max.ApproxEqual(mgl32.Vec3{7, 1, 1}) {
		t.Errorf("box = %v", got)
	}
}

func TestHeightfieldFlatNormals(t *testing.T) {
	terrain := NewTerrain(10, 10, 4, nil)
	sub := terrain.Mesh().Submeshes[0]
	if len(sub.Vertices) != 25 || len(sub.Indices) != 4*4*6 {
		t.Fatalf("vertices=%d indices=%d", len(sub.Vertices), len(sub.Indices))
	}
	for _, v := range sub.Vertices {
		if !v.Normal.ApproxEqual(mgl32.Vec3{0, 1, 0}) {
			t.Fatalf("flat terrain normal %v", v.Normal)
		}
	}
}

func TestTerrainHeightsRebuild(t *testing.T) {
	terrain := NewTerrain(2, 2, 2, nil)
	first := terrain.Mesh()
	terrain.SetHeights(WaveHeights(2, 1), 3)
	second := terrain.Mesh()
	if first == second {
		t.Fatal("mesh not rebuilt after SetHeights")
	}
	if second.Submeshes[0].ID == first.Submeshes[0].ID {
		t.Error("rebuilt submesh reused the old id")
	}
}
