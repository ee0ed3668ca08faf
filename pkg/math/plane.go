package math

import "math"

// Plane is the set of points p with Normal·p == Dist.
// Positive distances are in front.
type Plane struct {
	Normal Vec3
	Dist   float64
}

// PlaneFromPoints builds the plane through a, b, c with the normal
// following the right-hand rule (a→b→c counter-clockwise seen from the front).
// ok is false for collinear points.
func PlaneFromPoints(a, b, c Vec3) (p Plane, ok bool) {
	n := b.Sub(a).Cross(c.Sub(a))
	l := n.Length()
	if l == 0 {
		return Plane{}, false
	}
	n = n.Scale(1 / l)
	return Plane{Normal: n, Dist: n.Dot(a)}, true
}

// Distance returns the signed distance from the plane to p.
func (pl Plane) Distance(p Vec3) float64 {
	return pl.Normal.Dot(p) - pl.Dist
}

// Flip returns the same plane facing the other way.
func (pl Plane) Flip() Plane {
	return Plane{Normal: pl.Normal.Neg(), Dist: -pl.Dist}
}

// Equal reports whether both planes coincide and face the same way.
func (pl Plane) Equal(other Plane, normalEps, distEps float64) bool {
	return pl.Normal.Near(other.Normal, normalEps) && math.Abs(pl.Dist-other.Dist) <= distEps
}

// MajorAxis returns the index of the largest normal component (by magnitude).
func (pl Plane) MajorAxis() int {
	ax, ay, az := math.Abs(pl.Normal.X), math.Abs(pl.Normal.Y), math.Abs(pl.Normal.Z)
	switch {
	case ax >= ay && ax >= az:
		return 0
	case ay >= az:
		return 1
	default:
		return 2
	}
}
