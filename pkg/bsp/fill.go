package bsp

import "github.com/Faultbox/midgard-pvs/pkg/math"

// sealLeaves makes solid every empty leaf that no exposed face looks
// into and returns how many it removed. This closes the slab behind faces
// that sit back to back with an opposite face, such as a crate resting on
// the floor. Every fragment that reached a cell unsplit seeds the leaf just in
// front of it unless its centre lies on an opposite-facing input face.
// Leaves that receive no seed are closed off.
func (b *builder) sealLeaves(inputs int) int {
	t := b.tree
	if len(t.Leaves) == 0 {
		return 0
	}

	byPlane := make(map[int32][]int32)
	for i := 0; i < inputs; i++ {
		pl := b.windings[i].Plane
		byPlane[pl] = append(byPlane[pl], int32(i))
	}

	offset := 2 * b.opts.PlaneEpsilon
	seeded := make([]bool, len(t.Leaves))
	for i := range b.windings {
		w := b.windings[i]
		if w.split {
			continue
		}
		pts := b.pool.points(w)
		if b.covered(w, pts, byPlane) {
			continue
		}
		seed := polygonCenter(pts).Add(b.planes.planes[w.Plane].Normal.Scale(offset))
		if leaf := t.FindLeaf(seed); leaf != NoLeaf {
			seeded[leaf] = true
		}
	}

	remap := make([]int32, len(t.Leaves))
	kept := t.Leaves[:0]
	for i, l := range t.Leaves {
		if !seeded[i] {
			remap[i] = NoLeaf
			continue
		}
		remap[i] = int32(len(kept))
		kept = append(kept, l)
	}
	removed := len(t.Leaves) - len(kept)
	if removed == 0 {
		return 0
	}
	t.Leaves = kept

	fix := func(ref ChildRef) ChildRef {
		if !ref.IsLeaf() {
			return ref
		}
		if n := remap[ref.Index]; n != NoLeaf {
			return LeafRef(n)
		}
		b.solid++
		return SolidRef()
	}
	t.Root = fix(t.Root)
	for i := range t.Nodes {
		t.Nodes[i].Front = fix(t.Nodes[i].Front)
		t.Nodes[i].Back = fix(t.Nodes[i].Back)
	}
	return removed
}

// covered reports whether the centre of winding w lies on an input face
// of the opposite plane.
func (b *builder) covered(w Winding, pts []math.Vec3, byPlane map[int32][]int32) bool {
	pl := b.planes.planes[w.Plane]
	opposite, ok := b.planes.lookup(pl.Flip())
	if !ok {
		return false
	}
	c := polygonCenter(pts)
	normal := b.planes.planes[opposite].Normal
	for _, wi := range byPlane[opposite] {
		if pointInPolygon(c, b.pool.points(b.windings[wi]), normal, b.opts.PlaneEpsilon) {
			return true
		}
	}
	return false
}

// pointInPolygon reports whether p, lying on the plane of the convex
// polygon pts with the given normal, is inside it or within eps of its
// edges. pts must be wound counter-clockwise around normal.
func pointInPolygon(p math.Vec3, pts []math.Vec3, normal math.Vec3, eps float64) bool {
	if len(pts) < 3 {
		return false
	}
	for i := range pts {
		a, c := pts[i], pts[(i+1)%len(pts)]
		edge := c.Sub(a)
		if edge.Cross(p.Sub(a)).Dot(normal) < -eps*edge.Length() {
			return false
		}
	}
	return true
}
