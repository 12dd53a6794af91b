package scene

import "github.com/go-gl/mathgl/mgl32"

// Plane is n·p + D = 0 with a unit normal pointing inside.
type Plane struct {
	Normal mgl32.Vec3
	D      float32
}

func (p Plane) DistanceTo(pt mgl32.Vec3) float32 {
	return p.Normal.Dot(pt) + p.D
}

// Frustum holds the six planes: left, right, bottom, top, near, far.
type Frustum struct {
	Planes [6]Plane
}

// FrustumFromVP extracts planes from a view-projection matrix (Gribb and
// Hartmann).
func FrustumFromVP(vp mgl32.Mat4) Frustum {
	r0, r1, r2, r3 := vp.Row(0), vp.Row(1), vp.Row(2), vp.Row(3)
	var f Frustum
	f.Planes[0] = normalizePlane(r3.Add(r0))
	f.Planes[1] = normalizePlane(r3.Sub(r0))
	f.Planes[2] = normalizePlane(r3.Add(r1))
	f.Planes[3] = normalizePlane(r3.Sub(r1))
	f.Planes[4] = normalizePlane(r3.Add(r2))
	f.Planes[5] = normalizePlane(r3.Sub(r2))
	return f
}

func normalizePlane(v mgl32.Vec4) Plane {
	n := v.Vec3()
	l := n.Len()
	if l == 0 {
		return Plane{}
	}
	return Plane{Normal: n.Mul(1 / l), D: v.W() / l}
}

// IntersectsSphere is false when the sphere lies entirely outside a plane.
func (f *Frustum) IntersectsSphere(center mgl32.Vec3, radius float32) bool {
	for _, p := range f.Planes {
		if p.DistanceTo(center) < -radius {
			return false
		}
	}
	return true
}

// IntersectsAABB uses the positive-vertex test per plane.
func (f *Frustum) IntersectsAABB(box AABB) bool {
	for _, p := range f.Planes {
		var v mgl32.Vec3
		for k := 0; k < 3; k++ {
			if p.Normal[k] >= 0 {
				v[k] = box.Max[k]
			} else {
				v[k] = box.Min[k]
			}
		}
		if p.DistanceTo(v) < 0 {
			return false
		}
	}
	return true
}

// TransformAABB returns the world bounds of a local box under m.
func TransformAABB(local AABB, m mgl32.Mat4) AABB {
	mn, mx := local.Min, local.Max
	var out AABB
	for i := 0; i < 8; i++ {
		c := mgl32.Vec3{mn[0], mn[1], mn[2]}
		if i&1 != 0 {
			c[0] = mx[0]
		}
		if i&2 != 0 {
			c[1] = mx[1]
		}
		if i&4 != 0 {
			c[2] = mx[2]
		}
		w := mgl32.TransformCoordinate(c, m)
		if i == 0 {
			out = AABB{Min: w, Max: w}
			continue
		}
		out = out.Union(AABB{Min: w, Max: w})
	}
	return out
}
