package math

import "math"

// AABB is an axis-aligned bounding box.
type AABB struct {
	Min Vec3
	Max Vec3
}

// EmptyAABB returns an inverted box that any Extend call will overwrite.
func EmptyAABB() AABB {
	inf := math.Inf(1)
	return AABB{
		Min: Vec3{inf, inf, inf},
		Max: Vec3{-inf, -inf, -inf},
	}
}

// IsEmpty reports whether no point was ever added.
func (b AABB) IsEmpty() bool {
	return b.Min.X > b.Max.X || b.Min.Y > b.Max.Y || b.Min.Z > b.Max.Z
}

// Extend grows the box to contain p.
func (b AABB) Extend(p Vec3) AABB {
	return AABB{Min: b.Min.Min(p), Max: b.Max.Max(p)}
}

// Expand grows the box by pad on every side.
func (b AABB) Expand(pad float64) AABB {
	d := Vec3{pad, pad, pad}
	return AABB{Min: b.Min.Sub(d), Max: b.Max.Add(d)}
}

// Center returns the middle of the box.
func (b AABB) Center() Vec3 {
	return b.Min.Add(b.Max).Scale(0.5)
}

// Size returns the extent along each axis.
func (b AABB) Size() Vec3 {
	return b.Max.Sub(b.Min)
}

// Contains reports whether p lies inside or on the box.
func (b AABB) Contains(p Vec3) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// Planes returns the six inward-facing planes of the box.
func (b AABB) Planes() [6]Plane {
	return [6]Plane{
		{Normal: Vec3{1, 0, 0}, Dist: b.Min.X},
		{Normal: Vec3{-1, 0, 0}, Dist: -b.Max.X},
		{Normal: Vec3{0, 1, 0}, Dist: b.Min.Y},
		{Normal: Vec3{0, -1, 0}, Dist: -b.Max.Y},
		{Normal: Vec3{0, 0, 1}, Dist: b.Min.Z},
		{Normal: Vec3{0, 0, -1}, Dist: -b.Max.Z},
	}
}

// Sphere is a bounding sphere used by volume queries.
type Sphere struct {
	Center Vec3
	Radius float64
}
