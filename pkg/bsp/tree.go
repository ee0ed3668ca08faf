// Package bsp compiles static level geometry into a solid-leaf BSP tree,
// synthesizes the portals between its empty leaves and computes a
// compressed potentially visible set (PVS) for every leaf.
//
// The tree is built once by Build (or BuildTree followed by CompilePVS)
// and is read-only afterwards. Queries on a finished Tree are safe to run
// from many goroutines at once.
package bsp

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/Faultbox/midgard-pvs/pkg/math"
)

// Build errors.
var (
	ErrNoGeometry      = errors.New("no usable geometry")
	ErrLeak            = errors.New("level is not sealed: empty leaf touches the void")
	ErrNotClosed       = errors.New("leaf closure check failed")
	ErrTooManyLeaves   = errors.New("leaf limit exceeded")
	ErrAlreadyCompiled = errors.New("pvs already compiled")
	ErrCanceled        = errors.New("build canceled")
)

// NoLeaf is returned by queries that land in solid space or outside the
// tree, and marks the missing side of a portal.
const NoLeaf int32 = -1

// ChildKind tags what a node child refers to.
type ChildKind uint8

// Child kinds.
const (
	ChildSolid ChildKind = iota // solid space, no leaf
	ChildNode                   // index into Tree.Nodes
	ChildLeaf                   // index into Tree.Leaves
)

// String returns a short name for the kind.
func (k ChildKind) String() string {
	switch k {
	case ChildSolid:
		return "solid"
	case ChildNode:
		return "node"
	case ChildLeaf:
		return "leaf"
	default:
		return fmt.Sprintf("ChildKind(%d)", k)
	}
}

// ChildRef is one side of a SubNode: another node, an empty leaf, or
// solid space.
type ChildRef struct {
	Kind  ChildKind
	Index int32
}

// NodeRef refers to Tree.Nodes[i].
func NodeRef(i int32) ChildRef { return ChildRef{Kind: ChildNode, Index: i} }

// LeafRef refers to Tree.Leaves[i].
func LeafRef(i int32) ChildRef { return ChildRef{Kind: ChildLeaf, Index: i} }

// SolidRef refers to solid space.
func SolidRef() ChildRef { return ChildRef{Kind: ChildSolid, Index: -1} }

// IsNode reports whether the child is an interior node.
func (c ChildRef) IsNode() bool { return c.Kind == ChildNode }

// IsLeaf reports whether the child is an empty leaf.
func (c ChildRef) IsLeaf() bool { return c.Kind == ChildLeaf }

// IsSolid reports whether the child is solid space.
func (c ChildRef) IsSolid() bool { return c.Kind == ChildSolid }

// String formats the reference for logs.
func (c ChildRef) String() string {
	if c.Kind == ChildSolid {
		return "solid"
	}
	return fmt.Sprintf("%s:%d", c.Kind, c.Index)
}

// SubNode is an interior node of the tree. Points with a non-negative
// distance to Plane descend into Front.
type SubNode struct {
	Front  ChildRef
	Back   ChildRef
	Plane  int32
	Parent int32 // -1 for the root
}

// Leaf is a convex region of empty space.
type Leaf struct {
	// Portals lists indices into Tree.Portals bordering this leaf.
	Portals []int32
	// VisibilityOffset is the byte offset of this leaf's row in Tree.PVSData.
	VisibilityOffset int32
	// Parent is the node whose child this leaf is; Front tells which side.
	Parent int32
	Front  bool
}

// Portal is a convex polygon on a node plane joining two empty leaves.
// The plane normal points into Leaves[0]; Leaves[1] lies behind it.
type Portal struct {
	First  int32 // first vertex in Tree.Vertices
	Count  int32
	Plane  int32
	Node   int32
	Leaves [2]int32
}

// Other returns the leaf on the opposite side of the portal from leaf,
// or NoLeaf when leaf is not an owner.
func (p *Portal) Other(leaf int32) int32 {
	switch leaf {
	case p.Leaves[0]:
		return p.Leaves[1]
	case p.Leaves[1]:
		return p.Leaves[0]
	default:
		return NoLeaf
	}
}

// Tree is a compiled visibility tree.
type Tree struct {
	// ID identifies the build that produced the tree.
	ID uuid.UUID

	Planes   []math.Plane
	Nodes    []SubNode
	Leaves   []Leaf
	Portals  []Portal
	Vertices []math.Vec3 // portal vertex pool
	Root     ChildRef

	// Bounds is the world-space bounding box of the input geometry.
	Bounds math.AABB

	// PVSBytesPerSet is ceil(len(Leaves)/8).
	PVSBytesPerSet int
	// PVSData holds one zero-run compressed row per leaf.
	PVSData []byte

	// Tolerances the portals were generated with. LeafHull and Validate
	// reuse them; zero values fall back to DefaultOptions.
	BoundsPadding float64
	PlaneEpsilon  float64
	MinPortalArea float64
}

// setTolerances records the geometric tolerances of opts.
func (t *Tree) setTolerances(opts Options) {
	t.BoundsPadding = opts.BoundsPadding
	t.PlaneEpsilon = opts.PlaneEpsilon
	t.MinPortalArea = opts.MinPortalArea
}

// tolerances returns DefaultOptions overridden by the recorded build
// tolerances.
func (t *Tree) tolerances() Options {
	o := DefaultOptions()
	if t.BoundsPadding > 0 {
		o.BoundsPadding = t.BoundsPadding
	}
	if t.PlaneEpsilon > 0 {
		o.PlaneEpsilon = t.PlaneEpsilon
	}
	if t.MinPortalArea > 0 {
		o.MinPortalArea = t.MinPortalArea
	}
	return o
}

// LeafCount returns the number of empty leaves.
func (t *Tree) LeafCount() int {
	return len(t.Leaves)
}

// HasPVS reports whether CompilePVS has run.
func (t *Tree) HasPVS() bool {
	return t.PVSData != nil
}

// PortalPoints returns the vertices of portal i.
func (t *Tree) PortalPoints(i int32) []math.Vec3 {
	p := &t.Portals[i]
	return t.Vertices[p.First : p.First+p.Count]
}

// child returns the front or back reference of node n.
func (t *Tree) child(n int32, front bool) ChildRef {
	if front {
		return t.Nodes[n].Front
	}
	return t.Nodes[n].Back
}

// setChild replaces the front or back reference of node n.
func (t *Tree) setChild(n int32, front bool, ref ChildRef) {
	if front {
		t.Nodes[n].Front = ref
	} else {
		t.Nodes[n].Back = ref
	}
}

// sidedPlane returns the plane of node n oriented so that the given side
// is in front.
func (t *Tree) sidedPlane(n int32, front bool) math.Plane {
	pl := t.Planes[t.Nodes[n].Plane]
	if !front {
		pl = pl.Flip()
	}
	return pl
}

// slot is one side of a node.
type slot struct {
	node  int32
	front bool
}

// ancestors returns the slots enclosing a child slot, from the slot itself
// up to the root.
func (t *Tree) ancestors(parent int32, front bool) []slot {
	var out []slot
	for n := parent; n >= 0; {
		out = append(out, slot{node: n, front: front})
		up := t.Nodes[n].Parent
		if up >= 0 {
			front = t.Nodes[up].Front == NodeRef(n)
		}
		n = up
	}
	return out
}

// ancestorPlanes returns the planes bounding the region of a child slot,
// oriented inward, from the slot's parent up to the root.
func (t *Tree) ancestorPlanes(parent int32, front bool) []math.Plane {
	slots := t.ancestors(parent, front)
	planes := make([]math.Plane, len(slots))
	for i, s := range slots {
		planes[i] = t.sidedPlane(s.node, s.front)
	}
	return planes
}
