package scene

import "github.com/go-gl/mathgl/mgl32"

// ComputeTangents generates per-vertex tangents for normal mapping. Triangles
// with a degenerate UV area are skipped; vertices left without a tangent get
// an arbitrary one perpendicular to the normal.
func ComputeTangents(s *Submesh) {
	for i := range s.Vertices {
		s.Vertices[i].Tangent = mgl32.Vec3{}
	}

	accum := func(i0, i1, i2 uint32) {
		v0, v1, v2 := s.Vertices[i0], s.Vertices[i1], s.Vertices[i2]
		e1 := v1.Position.Sub(v0.Position)
		e2 := v2.Position.Sub(v0.Position)
		du1, dv1 := v1.UV.X()-v0.UV.X(), v1.UV.Y()-v0.UV.Y()
		du2, dv2 := v2.UV.X()-v0.UV.X(), v2.UV.Y()-v0.UV.Y()

		denom := du1*dv2 - du2*dv1
		if denom == 0 {
			return
		}
		t := e1.Mul(dv2 / denom).Sub(e2.Mul(dv1 / denom))
		for _, i := range [3]uint32{i0, i1, i2} {
			s.Vertices[i].Tangent = s.Vertices[i].Tangent.Add(t)
		}
	}

	if len(s.Indices) > 0 {
		for i := 0; i+2 < len(s.Indices); i += 3 {
			accum(s.Indices[i], s.Indices[i+1], s.Indices[i+2])
		}
	} else {
		for i := 0; i+2 < len(s.Vertices); i += 3 {
			accum(uint32(i), uint32(i+1), uint32(i+2))
		}
	}

	// Gram-Schmidt against the normal.
	for i := range s.Vertices {
		n := s.Vertices[i].Normal
		t := s.Vertices[i].Tangent
		t = t.Sub(n.Mul(n.Dot(t)))
		if t.LenSqr() < 1e-8 {
			if abs32(n.X()) < 0.9 {
				t = mgl32.Vec3{1, 0, 0}.Sub(n.Mul(n.X()))
			} else {
				t = mgl32.Vec3{0, 1, 0}.Sub(n.Mul(n.Y()))
			}
		}
		s.Vertices[i].Tangent = t.Normalize()
	}
}

func abs32(f float32) float32 {
	if f < 0 {
		return -f
	}
	return f
}
