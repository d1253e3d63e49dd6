package geometry

import "math"

type Vec3 struct {
	X, Y, Z float64
}

func (v Vec3) Add(o Vec3) Vec3         { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) Sub(o Vec3) Vec3         { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v Vec3) Scale(f float64) Vec3    { return Vec3{v.X * f, v.Y * f, v.Z * f} }
func (v Vec3) Dot(o Vec3) float64      { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }
func (v Vec3) Len() float64            { return math.Sqrt(v.Dot(v)) }
func (v Vec3) Dist(o Vec3) float64     { return v.Sub(o).Len() }
func (v Vec3) DistSq(o Vec3) float64   { d := v.Sub(o); return d.Dot(d) }
func (v Vec3) IsZero(eps float64) bool { return v.Len() <= eps }

func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		v.Y*o.Z - v.Z*o.Y,
		v.Z*o.X - v.X*o.Z,
		v.X*o.Y - v.Y*o.X,
	}
}

// Normalize returns the unit vector. A zero vector stays zero.
func (v Vec3) Normalize() Vec3 {
	l := v.Len()
	if l == 0 {
		return v
	}
	return v.Scale(1 / l)
}

// Box is an axis aligned bounding box
type Box struct {
	Min, Max Vec3
}

func emptyBox() Box {
	inf := math.Inf(1)
	return Box{Min: Vec3{inf, inf, inf}, Max: Vec3{-inf, -inf, -inf}}
}

func (b *Box) expand(p Vec3) {
	b.Min = Vec3{math.Min(b.Min.X, p.X), math.Min(b.Min.Y, p.Y), math.Min(b.Min.Z, p.Z)}
	b.Max = Vec3{math.Max(b.Max.X, p.X), math.Max(b.Max.Y, p.Y), math.Max(b.Max.Z, p.Z)}
}

func (b Box) Translate(o Vec3) Box {
	return Box{Min: b.Min.Add(o), Max: b.Max.Add(o)}
}
