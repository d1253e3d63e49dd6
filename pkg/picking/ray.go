package picking

import (
	"math"

	"github.com/mpapenbr/gforce-sculpture/pkg/geometry"
)

const epsilon = 1e-9

type Ray struct {
	Origin    geometry.Vec3 `json:"origin"`
	Direction geometry.Vec3 `json:"direction"`
}

// intersectTriangle returns the ray parameter t of the hit (Möller-Trumbore).
// Back faces are hit as well.
func (r Ray) intersectTriangle(a, b, c geometry.Vec3) (float64, bool) {
	e1 := b.Sub(a)
	e2 := c.Sub(a)
	p := r.Direction.Cross(e2)
	det := e1.Dot(p)
	if math.Abs(det) < epsilon {
		return 0, false
	}
	inv := 1 / det
	s := r.Origin.Sub(a)
	u := s.Dot(p) * inv
	if u < 0 || u > 1 {
		return 0, false
	}
	q := s.Cross(e1)
	v := r.Direction.Dot(q) * inv
	if v < 0 || u+v > 1 {
		return 0, false
	}
	t := e2.Dot(q) * inv
	if t < epsilon {
		return 0, false
	}
	return t, true
}

// intersectsBox is the slab test against an axis aligned box
func (r Ray) intersectsBox(b geometry.Box) bool {
	tmin, tmax := math.Inf(-1), math.Inf(1)
	origin := [3]float64{r.Origin.X, r.Origin.Y, r.Origin.Z}
	dir := [3]float64{r.Direction.X, r.Direction.Y, r.Direction.Z}
	mins := [3]float64{b.Min.X, b.Min.Y, b.Min.Z}
	maxs := [3]float64{b.Max.X, b.Max.Y, b.Max.Z}
	for i := range 3 {
		o, d := origin[i], dir[i]
		if math.Abs(d) < epsilon {
			if o < mins[i] || o > maxs[i] {
				return false
			}
			continue
		}
		t1 := (mins[i] - o) / d
		t2 := (maxs[i] - o) / d
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tmin = math.Max(tmin, t1)
		tmax = math.Min(tmax, t2)
		if tmin > tmax {
			return false
		}
	}
	return tmax >= 0
}

func (r Ray) at(t float64) geometry.Vec3 {
	return r.Origin.Add(r.Direction.Scale(t))
}
