package bsp

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-pvs/pkg/math"
)

// portalFragment is a piece of a polygon pushed down to a tree child.
type portalFragment struct {
	pts []math.Vec3
	ref ChildRef
}

// generatePortals synthesizes the portals between empty leaves. For every
// node a quad on its plane is clipped to the node's region and then split
// through both subtrees; fragments with an empty leaf on each side become
// portals.
func (t *Tree) generatePortals(ctx context.Context, opts Options) error {
	eps := opts.PlaneEpsilon
	t.Portals = t.Portals[:0]
	t.Vertices = t.Vertices[:0]
	for i := range t.Leaves {
		t.Leaves[i].Portals = nil
	}

	dropped := 0
	for n := range t.Nodes {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrCanceled, err)
		}

		poly := t.generatePortal(int32(n), opts)
		if poly == nil {
			continue
		}
		poly = t.clipPortal(int32(n), poly, eps)
		if poly == nil {
			continue
		}

		node := &t.Nodes[n]
		for _, f := range t.distribute(node.Front, poly, eps, nil) {
			if !f.ref.IsLeaf() {
				continue
			}
			for _, bk := range t.distribute(node.Back, f.pts, eps, nil) {
				if !bk.ref.IsLeaf() {
					continue
				}
				if polygonArea(bk.pts) < opts.MinPortalArea {
					dropped++
					continue
				}
				t.addPortal(bk.pts, node.Plane, int32(n), f.ref.Index, bk.ref.Index)
			}
		}
	}

	opts.Logger.Info("portals generated",
		zap.Int("portals", len(t.Portals)),
		zap.Int("vertices", len(t.Vertices)),
		zap.Int("dropped", dropped))
	return nil
}

// generatePortal returns a quad on the plane of node n covering the padded
// scene box.
func (t *Tree) generatePortal(n int32, opts Options) []math.Vec3 {
	box := t.Bounds.Expand(opts.BoundsPadding)
	pl := t.Planes[t.Nodes[n].Plane]
	poly := baseQuad(pl, box.Center(), boxExtent(box))
	for _, bp := range box.Planes() {
		if poly = chopPolygon(poly, bp, opts.PlaneEpsilon); poly == nil {
			return nil
		}
	}
	return poly
}

// clipPortal trims poly to the region of node n by walking to the root and
// keeping the side of every ancestor plane that holds n.
func (t *Tree) clipPortal(n int32, poly []math.Vec3, eps float64) []math.Vec3 {
	parent := t.Nodes[n].Parent
	if parent < 0 {
		return poly
	}
	front := t.Nodes[parent].Front == NodeRef(n)
	for _, pl := range t.ancestorPlanes(parent, front) {
		if poly = chopPolygon(poly, pl, eps); poly == nil {
			return nil
		}
	}
	return poly
}

// distribute splits pts through the subtree at ref and appends the
// fragments with the leaf or solid cell each one lands in.
func (t *Tree) distribute(ref ChildRef, pts []math.Vec3, eps float64, out []portalFragment) []portalFragment {
	if !ref.IsNode() {
		return append(out, portalFragment{pts: pts, ref: ref})
	}
	node := &t.Nodes[ref.Index]
	f, b := splitPolygon(pts, t.Planes[node.Plane], eps)
	if f != nil {
		out = t.distribute(node.Front, f, eps, out)
	}
	if b != nil {
		out = t.distribute(node.Back, b, eps, out)
	}
	return out
}

// addPortal records a portal on plane between front and back leaves.
func (t *Tree) addPortal(pts []math.Vec3, plane, node, front, back int32) {
	i := int32(len(t.Portals))
	t.Portals = append(t.Portals, Portal{
		First:  int32(len(t.Vertices)),
		Count:  int32(len(pts)),
		Plane:  plane,
		Node:   node,
		Leaves: [2]int32{front, back},
	})
	t.Vertices = append(t.Vertices, pts...)
	t.Leaves[front].Portals = append(t.Leaves[front].Portals, i)
	t.Leaves[back].Portals = append(t.Leaves[back].Portals, i)
}

// LeakingLeaves returns the empty leaves that touch the padded scene box,
// which means they are open to the void.
func (t *Tree) LeakingLeaves(opts Options) []int32 {
	opts = opts.withDefaults()
	box := t.Bounds.Expand(opts.BoundsPadding)
	planes := box.Planes()
	extent := boxExtent(box)

	seen := make(map[int32]bool)
	var leaks []int32
	for _, face := range planes {
		poly := baseQuad(face, box.Center(), extent)
		for _, bp := range planes {
			if poly = chopPolygon(poly, bp, opts.PlaneEpsilon); poly == nil {
				break
			}
		}
		if poly == nil {
			continue
		}
		for _, f := range t.distribute(t.Root, poly, opts.PlaneEpsilon, nil) {
			if !f.ref.IsLeaf() || seen[f.ref.Index] {
				continue
			}
			if polygonArea(f.pts) < opts.MinPortalArea {
				continue
			}
			seen[f.ref.Index] = true
			leaks = append(leaks, f.ref.Index)
		}
	}
	return leaks
}

// checkLeaks fails when any empty leaf reaches the void.
func (t *Tree) checkLeaks(opts Options) error {
	leaks := t.LeakingLeaves(opts)
	if len(leaks) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %d leaves, first is %d", ErrLeak, len(leaks), leaks[0])
}
