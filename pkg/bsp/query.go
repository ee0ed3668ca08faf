package bsp

import "github.com/Faultbox/midgard-pvs/pkg/math"

// FindLeaf returns the empty leaf containing p, or NoLeaf when p lies in
// solid space. Points on a plane belong to its front side.
func (t *Tree) FindLeaf(p math.Vec3) int32 {
	ref := t.Root
	for ref.IsNode() {
		n := &t.Nodes[ref.Index]
		if t.Planes[n.Plane].Distance(p) >= 0 {
			ref = n.Front
		} else {
			ref = n.Back
		}
	}
	if ref.IsLeaf() {
		return ref.Index
	}
	return NoLeaf
}

// validLeaf reports whether leaf indexes Tree.Leaves.
func (t *Tree) validLeaf(leaf int32) bool {
	return leaf >= 0 && int(leaf) < len(t.Leaves)
}

// LeafRow returns the decompressed visibility row of leaf, or nil when
// leaf is invalid or no PVS has been compiled.
func (t *Tree) LeafRow(leaf int32) []byte {
	if !t.validLeaf(leaf) || !t.HasPVS() {
		return nil
	}
	off := int(t.Leaves[leaf].VisibilityOffset)
	if off > len(t.PVSData) {
		return nil
	}
	return DecompressRow(t.PVSData[off:], t.PVSBytesPerSet)
}

// IsLeafVisible reports whether target is potentially visible from
// source. Without a PVS every valid pair is visible.
func (t *Tree) IsLeafVisible(source, target int32) bool {
	if !t.validLeaf(source) || !t.validLeaf(target) {
		return false
	}
	if !t.HasPVS() {
		return true
	}
	return GetPVSBit(t.LeafRow(source), target)
}

// FindLeaves returns the empty leaves overlapped by s. When source is not
// NoLeaf only leaves visible from source are returned; an invalid source
// yields no leaves.
func (t *Tree) FindLeaves(s math.Sphere, source int32) []int32 {
	var row []byte
	if source != NoLeaf {
		if !t.validLeaf(source) {
			return nil
		}
		row = t.LeafRow(source)
	}
	var out []int32
	t.collectLeaves(t.Root, s, func(leaf int32) bool {
		if row == nil || GetPVSBit(row, leaf) {
			out = append(out, leaf)
		}
		return true
	})
	return out
}

// IsVolumeVisible reports whether any leaf overlapped by s is visible
// from source.
func (t *Tree) IsVolumeVisible(source int32, s math.Sphere) bool {
	if !t.validLeaf(source) {
		return false
	}
	return isVolumeVisible(t, t.LeafRow(source), s)
}

func isVolumeVisible(t *Tree, row []byte, s math.Sphere) bool {
	found := false
	t.collectLeaves(t.Root, s, func(leaf int32) bool {
		if row == nil || GetPVSBit(row, leaf) {
			found = true
			return false
		}
		return true
	})
	return found
}

// collectLeaves calls fn for every leaf overlapped by s until fn returns
// false. It reports whether the walk ran to completion.
func (t *Tree) collectLeaves(ref ChildRef, s math.Sphere, fn func(int32) bool) bool {
	for ref.IsNode() {
		n := &t.Nodes[ref.Index]
		d := t.Planes[n.Plane].Distance(s.Center)
		switch {
		case d >= s.Radius:
			ref = n.Front
		case d <= -s.Radius:
			ref = n.Back
		default:
			if !t.collectLeaves(n.Front, s, fn) {
				return false
			}
			ref = n.Back
		}
	}
	if ref.IsLeaf() {
		return fn(ref.Index)
	}
	return true
}

// VisQuery answers a burst of visibility queries from one source leaf,
// decompressing its row once. A VisQuery must not be shared between
// goroutines; the Tree it reads can be.
type VisQuery struct {
	tree   *Tree
	source int32
	row    []byte // nil when every leaf counts as visible
	buf    []byte
}

// NewVisQuery returns a query with no source selected.
func NewVisQuery(t *Tree) *VisQuery {
	return &VisQuery{tree: t, source: NoLeaf}
}

// SetSource selects the leaf queries are answered for.
func (q *VisQuery) SetSource(leaf int32) {
	if leaf == q.source {
		return
	}
	q.source = leaf
	q.row = nil
	if !q.tree.validLeaf(leaf) || !q.tree.HasPVS() {
		return
	}
	off := int(q.tree.Leaves[leaf].VisibilityOffset)
	if off > len(q.tree.PVSData) {
		return
	}
	if cap(q.buf) < q.tree.PVSBytesPerSet {
		q.buf = make([]byte, q.tree.PVSBytesPerSet)
	}
	q.row = q.buf[:q.tree.PVSBytesPerSet]
	decompressRowInto(q.row, q.tree.PVSData[off:])
}

// SetSourcePoint selects the leaf containing p.
func (q *VisQuery) SetSourcePoint(p math.Vec3) int32 {
	leaf := q.tree.FindLeaf(p)
	q.SetSource(leaf)
	return leaf
}

// Source returns the selected leaf.
func (q *VisQuery) Source() int32 { return q.source }

// IsLeafVisible reports whether leaf is visible from the source.
func (q *VisQuery) IsLeafVisible(leaf int32) bool {
	if !q.tree.validLeaf(q.source) || !q.tree.validLeaf(leaf) {
		return false
	}
	if q.row == nil {
		return true
	}
	return GetPVSBit(q.row, leaf)
}

// IsVolumeVisible reports whether any leaf overlapped by s is visible
// from the source.
func (q *VisQuery) IsVolumeVisible(s math.Sphere) bool {
	if !q.tree.validLeaf(q.source) {
		return false
	}
	return isVolumeVisible(q.tree, q.row, s)
}
