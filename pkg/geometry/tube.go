package geometry

import "math"

const degenerateEps = 1e-9

type frames struct {
	tangents  []Vec3
	normals   []Vec3
	binormals []Vec3
}

// computeTangents uses central differences on the piecewise linear path.
// Zero-length differences (duplicate samples) reuse a neighbor tangent.
func computeTangents(pts []Vec3) []Vec3 {
	n := len(pts)
	ret := make([]Vec3, n)
	for i := range pts {
		var d Vec3
		switch i {
		case 0:
			d = pts[1].Sub(pts[0])
		case n - 1:
			d = pts[n-1].Sub(pts[n-2])
		default:
			d = pts[i+1].Sub(pts[i-1])
		}
		ret[i] = d.Normalize()
	}
	first := -1
	for i := range ret {
		if !ret[i].IsZero(degenerateEps) {
			first = i
			break
		}
	}
	if first == -1 {
		for i := range ret {
			ret[i] = Vec3{1, 0, 0}
		}
		return ret
	}
	for i := 0; i < first; i++ {
		ret[i] = ret[first]
	}
	for i := first + 1; i < n; i++ {
		if ret[i].IsZero(degenerateEps) {
			ret[i] = ret[i-1]
		}
	}
	return ret
}

func initialNormal(t Vec3) Vec3 {
	ax, ay, az := math.Abs(t.X), math.Abs(t.Y), math.Abs(t.Z)
	axis := Vec3{0, 0, 1}
	switch {
	case ax <= ay && ax <= az:
		axis = Vec3{1, 0, 0}
	case ay <= ax && ay <= az:
		axis = Vec3{0, 1, 0}
	}
	return t.Cross(t.Cross(axis).Normalize()).Normalize()
}

// computeFrames builds rotation minimizing frames by parallel transport
func computeFrames(pts []Vec3) frames {
	f := frames{tangents: computeTangents(pts)}
	n := len(pts)
	f.normals = make([]Vec3, n)
	f.binormals = make([]Vec3, n)
	for i := range pts {
		t := f.tangents[i]
		var nrm Vec3
		if i == 0 {
			nrm = initialNormal(t)
		} else {
			prev := f.normals[i-1]
			nrm = prev.Sub(t.Scale(prev.Dot(t)))
			if nrm.IsZero(degenerateEps) {
				nrm = initialNormal(t)
			}
			nrm = nrm.Normalize()
		}
		f.normals[i] = nrm
		f.binormals[i] = t.Cross(nrm).Normalize()
	}
	return f
}

// tessellate sweeps a circular cross-section along the path, one ring per point.
// Each ring has radial+1 vertices (the seam is duplicated).
func tessellate(pts []Vec3, radius float64, radial int) (*Mesh, Box) {
	f := computeFrames(pts)
	rings := len(pts)
	perRing := radial + 1
	m := &Mesh{
		Positions:      make([]float32, 0, rings*perRing*3),
		Normals:        make([]float32, 0, rings*perRing*3),
		Indices:        make([]uint32, 0, (rings-1)*radial*6),
		Rings:          rings,
		RadialSegments: radial,
	}
	box := emptyBox()
	for i, p := range pts {
		for j := 0; j <= radial; j++ {
			v := float64(j) / float64(radial) * 2 * math.Pi
			sin, cos := math.Sin(v), -math.Cos(v)
			nrm := f.normals[i].Scale(cos).Add(f.binormals[i].Scale(sin)).Normalize()
			pos := p.Add(nrm.Scale(radius))
			box.expand(pos)
			m.Positions = append(m.Positions, float32(pos.X), float32(pos.Y), float32(pos.Z))
			m.Normals = append(m.Normals, float32(nrm.X), float32(nrm.Y), float32(nrm.Z))
		}
	}
	for i := 1; i < rings; i++ {
		for j := 1; j <= radial; j++ {
			a := uint32(perRing*(i-1) + (j - 1))
			b := uint32(perRing*i + (j - 1))
			c := uint32(perRing*i + j)
			d := uint32(perRing*(i-1) + j)
			m.Indices = append(m.Indices, a, b, d, b, c, d)
		}
	}
	return m, box
}
