package bsp

import (
	"bytes"
	"fmt"

	"go.uber.org/multierr"

	"github.com/Faultbox/midgard-pvs/pkg/math"
)

// leafPlanes returns the planes enclosing leaf, oriented inward.
func (t *Tree) leafPlanes(leaf int32) []math.Plane {
	l := &t.Leaves[leaf]
	if l.Parent < 0 {
		return nil
	}
	return t.ancestorPlanes(l.Parent, l.Front)
}

// hullFace is one face of a leaf hull. Faces on the scene box have node -1.
type hullFace struct {
	pts   []math.Vec3
	node  int32
	front bool
}

// leafFaces clips a quad on every bounding plane of leaf to all the others.
func (t *Tree) leafFaces(leaf int32) []hullFace {
	tol := t.tolerances()
	box := t.Bounds.Expand(tol.BoundsPadding)
	boxPlanes := box.Planes()
	extent := boxExtent(box)

	var sides []hullFace
	var planes []math.Plane
	if l := &t.Leaves[leaf]; l.Parent >= 0 {
		for _, s := range t.ancestors(l.Parent, l.Front) {
			sides = append(sides, hullFace{node: s.node, front: s.front})
			planes = append(planes, t.sidedPlane(s.node, s.front))
		}
	}
	for _, pl := range boxPlanes {
		sides = append(sides, hullFace{node: -1})
		planes = append(planes, pl)
	}

	var faces []hullFace
	for i, pl := range planes {
		poly := baseQuad(pl, box.Center(), extent)
		for j, other := range planes {
			if j == i {
				continue
			}
			if poly = chopPolygon(poly, other, tol.PlaneEpsilon); poly == nil {
				break
			}
		}
		if poly != nil && polygonArea(poly) > 0 {
			f := sides[i]
			f.pts = poly
			faces = append(faces, f)
		}
	}
	return faces
}

// LeafHull returns the faces of the convex region of leaf, clipped to the
// padded scene box. Faces are wound counter-clockwise seen from inside.
func (t *Tree) LeafHull(leaf int32) [][]math.Vec3 {
	if !t.validLeaf(leaf) {
		return nil
	}
	faces := t.leafFaces(leaf)
	hull := make([][]math.Vec3, len(faces))
	for i, f := range faces {
		hull[i] = f.pts
	}
	return hull
}

// LeafCenter returns the average of the hull vertices of leaf.
func (t *Tree) LeafCenter(leaf int32) (math.Vec3, bool) {
	return hullCenter(t.LeafHull(leaf))
}

func hullCenter(hull [][]math.Vec3) (math.Vec3, bool) {
	if len(hull) == 0 {
		return math.Vec3{}, false
	}
	var pts []math.Vec3
	for _, f := range hull {
		pts = append(pts, f...)
	}
	return polygonCenter(pts), true
}

// Validate checks that every leaf is a closed, non-empty region that
// point lookup agrees with, that every face a leaf shares with another
// leaf is covered by a portal between them, that portal ownership is
// consistent and that every compressed PVS row decodes to a row
// containing the leaf itself and its portal neighbours. All failures are
// reported together.
func (t *Tree) Validate() error {
	tol := t.tolerances()
	var errs error

	for i := range t.Leaves {
		leaf := int32(i)
		faces := t.leafFaces(leaf)
		hull := make([][]math.Vec3, len(faces))
		for j, f := range faces {
			hull[j] = f.pts
		}
		center, ok := hullCenter(hull)
		if !ok {
			errs = multierr.Append(errs, fmt.Errorf("leaf %d: empty hull", leaf))
			continue
		}
		inside := true
		for _, pl := range t.leafPlanes(leaf) {
			if pl.Distance(center) <= tol.PlaneEpsilon {
				inside = false
				break
			}
		}
		if inside {
			if got := t.FindLeaf(center); got != leaf {
				errs = multierr.Append(errs, fmt.Errorf("leaf %d: center %v classifies to leaf %d", leaf, center, got))
			}
		}

		for _, pi := range t.Leaves[i].Portals {
			if pi < 0 || int(pi) >= len(t.Portals) {
				errs = multierr.Append(errs, fmt.Errorf("leaf %d: portal %d out of range", leaf, pi))
				continue
			}
			if t.Portals[pi].Other(leaf) == NoLeaf {
				errs = multierr.Append(errs, fmt.Errorf("leaf %d: portal %d does not border it", leaf, pi))
			}
		}

		errs = multierr.Append(errs, t.checkFaces(leaf, faces, tol))
	}

	for i := range t.Portals {
		p := &t.Portals[i]
		for _, l := range p.Leaves {
			if !t.validLeaf(l) {
				errs = multierr.Append(errs, fmt.Errorf("portal %d: invalid leaf %d", i, l))
			}
		}
	}

	if t.HasPVS() {
		errs = multierr.Append(errs, t.validatePVS())
	}

	if errs != nil {
		return fmt.Errorf("%w: %w", ErrNotClosed, errs)
	}
	return nil
}

// checkFaces pushes every node face of leaf into the subtree on the far
// side of its node. Each fragment must end in solid space or in a leaf
// that shares a portal with leaf. Faces on the scene box are left to the
// leak check.
func (t *Tree) checkFaces(leaf int32, faces []hullFace, tol Options) error {
	neighbours := make(map[int32]bool)
	for _, pi := range t.Leaves[leaf].Portals {
		if pi >= 0 && int(pi) < len(t.Portals) {
			neighbours[t.Portals[pi].Other(leaf)] = true
		}
	}

	var errs error
	for _, f := range faces {
		if f.node < 0 {
			continue
		}
		for _, frag := range t.distribute(t.child(f.node, !f.front), f.pts, tol.PlaneEpsilon, nil) {
			if !frag.ref.IsLeaf() || neighbours[frag.ref.Index] {
				continue
			}
			if area := polygonArea(frag.pts); area > tol.MinPortalArea {
				errs = multierr.Append(errs, fmt.Errorf("leaf %d: %.3g units of node %d open into leaf %d without a portal",
					leaf, area, f.node, frag.ref.Index))
			}
		}
	}
	return errs
}

func (t *Tree) validatePVS() error {
	var errs error
	if want := (len(t.Leaves) + 7) >> 3; t.PVSBytesPerSet != want {
		return fmt.Errorf("pvs: %d bytes per set, want %d", t.PVSBytesPerSet, want)
	}
	for i := range t.Leaves {
		leaf := int32(i)
		off := int(t.Leaves[i].VisibilityOffset)
		if off < 0 || off > len(t.PVSData) {
			errs = multierr.Append(errs, fmt.Errorf("leaf %d: visibility offset %d out of range", leaf, off))
			continue
		}

		row := make([]byte, t.PVSBytesPerSet)
		n := decompressRowInto(row, t.PVSData[off:])
		if !GetPVSBit(row, leaf) {
			errs = multierr.Append(errs, fmt.Errorf("leaf %d: not visible from itself", leaf))
		}
		for _, pi := range t.Leaves[i].Portals {
			if pi < 0 || int(pi) >= len(t.Portals) {
				continue
			}
			if other := t.Portals[pi].Other(leaf); other != NoLeaf && !GetPVSBit(row, other) {
				errs = multierr.Append(errs, fmt.Errorf("leaf %d: neighbour %d not visible", leaf, other))
			}
		}

		packed := CompressRow(row)
		if !bytes.Equal(packed, t.PVSData[off:off+n]) {
			errs = multierr.Append(errs, fmt.Errorf("leaf %d: compressed row does not round-trip", leaf))
		}
	}
	return errs
}

// Stats summarizes a tree.
type Stats struct {
	Nodes          int
	Leaves         int
	SolidCells     int
	Planes         int
	Portals        int
	PortalVertices int
	MaxDepth       int
	PVSBytes       int
	AvgVisible     float64
}

// Stats computes summary counts for logging and the info command.
func (t *Tree) Stats() Stats {
	s := Stats{
		Nodes:          len(t.Nodes),
		Leaves:         len(t.Leaves),
		Planes:         len(t.Planes),
		Portals:        len(t.Portals),
		PortalVertices: len(t.Vertices),
		PVSBytes:       len(t.PVSData),
	}
	for i := range t.Nodes {
		if t.Nodes[i].Front.IsSolid() {
			s.SolidCells++
		}
		if t.Nodes[i].Back.IsSolid() {
			s.SolidCells++
		}
	}
	for i := range t.Leaves {
		depth := 0
		for n := t.Leaves[i].Parent; n >= 0; n = t.Nodes[n].Parent {
			depth++
		}
		if depth > s.MaxDepth {
			s.MaxDepth = depth
		}
	}
	if t.HasPVS() && len(t.Leaves) > 0 {
		visible := 0
		for i := range t.Leaves {
			visible += popCount(t.LeafRow(int32(i)))
		}
		s.AvgVisible = float64(visible) / float64(len(t.Leaves))
	}
	return s
}
