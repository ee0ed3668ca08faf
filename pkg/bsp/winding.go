package bsp

import (
	gomath "math"

	"github.com/Faultbox/midgard-pvs/pkg/math"
)

// Winding is a convex polygon used as the unit of work during the build.
// Its points are a run of the builder's vertex pool.
type Winding struct {
	First int32
	Count int32
	Plane int32
	// Used is set once the winding's plane has been consumed by a splitter
	// on the path from the root.
	Used bool

	split bool
}

// Polygon side classification.
const (
	sideFront = iota
	sideBack
	sideOn
	sideSpan
)

// vertexPool is an append-only point store shared by all build windings.
type vertexPool struct {
	pts []math.Vec3
}

// add appends pts and returns the range they occupy.
func (p *vertexPool) add(pts []math.Vec3) (first, count int32) {
	first = int32(len(p.pts))
	p.pts = append(p.pts, pts...)
	return first, int32(len(pts))
}

// points returns the vertices of w. The slice must not be modified.
func (p *vertexPool) points(w Winding) []math.Vec3 {
	return p.pts[w.First : w.First+w.Count]
}

// classifyPolygon reports where pts lie relative to pl.
func classifyPolygon(pts []math.Vec3, pl math.Plane, eps float64) int {
	front, back := false, false
	for _, p := range pts {
		d := pl.Distance(p)
		if d > eps {
			front = true
		} else if d < -eps {
			back = true
		}
	}
	switch {
	case front && back:
		return sideSpan
	case front:
		return sideFront
	case back:
		return sideBack
	default:
		return sideOn
	}
}

// splitPolygon divides a convex polygon by pl. Points within eps of the
// plane are kept on both sides. A polygon lying on the plane is returned
// as front. Either result is nil when that side is empty.
func splitPolygon(pts []math.Vec3, pl math.Plane, eps float64) (front, back []math.Vec3) {
	n := len(pts)
	if n == 0 {
		return nil, nil
	}
	dists := make([]float64, n)
	sides := make([]int, n)
	var counts [3]int
	for i, p := range pts {
		d := pl.Distance(p)
		dists[i] = d
		switch {
		case d > eps:
			sides[i] = sideFront
		case d < -eps:
			sides[i] = sideBack
		default:
			sides[i] = sideOn
		}
		counts[sides[i]]++
	}

	if counts[sideBack] == 0 {
		return pts, nil
	}
	if counts[sideFront] == 0 {
		return nil, pts
	}

	front = make([]math.Vec3, 0, n+4)
	back = make([]math.Vec3, 0, n+4)
	for i, p1 := range pts {
		if sides[i] == sideOn {
			front = append(front, p1)
			back = append(back, p1)
			continue
		}
		if sides[i] == sideFront {
			front = append(front, p1)
		} else {
			back = append(back, p1)
		}
		j := (i + 1) % n
		if sides[j] == sideOn || sides[j] == sides[i] {
			continue
		}
		mid := intersect(p1, pts[j], dists[i], dists[j], pl)
		front = append(front, mid)
		back = append(back, mid)
	}
	if len(front) < 3 {
		front = nil
	}
	if len(back) < 3 {
		back = nil
	}
	return front, back
}

// chopPolygon keeps the part of pts in front of pl. The input slice is
// returned unchanged when nothing is behind the plane.
func chopPolygon(pts []math.Vec3, pl math.Plane, eps float64) []math.Vec3 {
	front, _ := splitPolygon(pts, pl, eps)
	return front
}

// intersect returns the point where segment a-b crosses pl, snapping axial
// coordinates exactly onto the plane.
func intersect(a, b math.Vec3, da, db float64, pl math.Plane) math.Vec3 {
	t := da / (da - db)
	mid := a.Lerp(b, t)
	switch {
	case pl.Normal.X == 1:
		mid.X = pl.Dist
	case pl.Normal.X == -1:
		mid.X = -pl.Dist
	case pl.Normal.Y == 1:
		mid.Y = pl.Dist
	case pl.Normal.Y == -1:
		mid.Y = -pl.Dist
	case pl.Normal.Z == 1:
		mid.Z = pl.Dist
	case pl.Normal.Z == -1:
		mid.Z = -pl.Dist
	}
	return mid
}

// polygonArea returns the area of a planar polygon.
func polygonArea(pts []math.Vec3) float64 {
	if len(pts) < 3 {
		return 0
	}
	var sum math.Vec3
	for i := 1; i+1 < len(pts); i++ {
		sum = sum.Add(pts[i].Sub(pts[0]).Cross(pts[i+1].Sub(pts[0])))
	}
	return sum.Length() * 0.5
}

// polygonCenter returns the vertex average.
func polygonCenter(pts []math.Vec3) math.Vec3 {
	var c math.Vec3
	for _, p := range pts {
		c = c.Add(p)
	}
	if len(pts) > 0 {
		c = c.Scale(1 / float64(len(pts)))
	}
	return c
}

// reversePolygon returns pts in opposite order.
func reversePolygon(pts []math.Vec3) []math.Vec3 {
	out := make([]math.Vec3, len(pts))
	for i, p := range pts {
		out[len(pts)-1-i] = p
	}
	return out
}

// baseQuad returns a square of half-size extent lying on pl, centred on
// the projection of center, wound counter-clockwise seen from the front.
func baseQuad(pl math.Plane, center math.Vec3, extent float64) []math.Vec3 {
	up := math.Vec3{Z: 1}
	if pl.MajorAxis() == 2 {
		up = math.Vec3{X: 1}
	}
	up = up.Sub(pl.Normal.Scale(up.Dot(pl.Normal))).Normalize()
	right := up.Cross(pl.Normal)

	org := center.Sub(pl.Normal.Scale(pl.Distance(center)))
	up = up.Scale(extent)
	right = right.Scale(extent)

	return []math.Vec3{
		org.Sub(right).Sub(up),
		org.Add(right).Sub(up),
		org.Add(right).Add(up),
		org.Sub(right).Add(up),
	}
}

// boxExtent returns a half-size big enough for a quad through any point
// of b to cover b entirely.
func boxExtent(b math.AABB) float64 {
	return gomath.Max(b.Size().Length(), 1)
}
