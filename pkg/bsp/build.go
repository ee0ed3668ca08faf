package bsp

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-pvs/pkg/math"
)

// builder holds the transient state of one tree construction. Nothing in
// it outlives the Build call except the Tree it fills.
type builder struct {
	ctx      context.Context
	opts     Options
	log      *zap.Logger
	pool     vertexPool
	windings []Winding
	planes   *planeSet
	tree     *Tree
	solid    int
}

// Build compiles instances into a tree with portals and a PVS.
func Build(instances []Instance, opts Options) (*Tree, error) {
	return BuildContext(context.Background(), instances, opts)
}

// BuildContext is Build with cancellation. The context is checked between
// node allocations and between portal floods.
func BuildContext(ctx context.Context, instances []Instance, opts Options) (*Tree, error) {
	opts = opts.withDefaults()

	t, err := BuildTree(ctx, instances, opts)
	if err != nil {
		return nil, err
	}
	if !opts.SkipPVS {
		if err := t.CompilePVSContext(ctx, opts); err != nil {
			return nil, err
		}
	}
	if !opts.SkipValidation {
		if err := t.Validate(); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// BuildTree constructs the BSP tree and its portals without computing
// visibility. On failure no tree is returned.
func BuildTree(ctx context.Context, instances []Instance, opts Options) (*Tree, error) {
	opts = opts.withDefaults()
	log := opts.Logger
	start := time.Now()

	merged := mergeInstances(instances, opts)
	log.Info("input merged",
		zap.Int("instances", len(instances)),
		zap.Int("triangles", merged.triangles),
		zap.Int("rejected", merged.rejected),
		zap.Int("windings", len(merged.windings)),
		zap.Int("planes", len(merged.planes.planes)))
	if len(merged.windings) == 0 {
		return nil, ErrNoGeometry
	}

	b := &builder{
		ctx:      ctx,
		opts:     opts,
		log:      log,
		pool:     merged.pool,
		windings: merged.windings,
		planes:   merged.planes,
		tree: &Tree{
			ID:     uuid.New(),
			Bounds: merged.bounds,
		},
	}

	list := make([]int32, len(b.windings))
	for i := range list {
		list[i] = int32(i)
	}
	root, err := b.buildNode(list, -1, false)
	if err != nil {
		return nil, fmt.Errorf("build tree: %w", err)
	}

	t := b.tree
	t.Root = root
	t.Planes = b.planes.planes
	t.setTolerances(opts)
	sealed := b.sealLeaves(len(merged.windings))
	log.Info("tree built",
		zap.Stringer("id", t.ID),
		zap.Int("nodes", len(t.Nodes)),
		zap.Int("leaves", len(t.Leaves)),
		zap.Int("sealed", sealed),
		zap.Int("solid", b.solid),
		zap.Int("windings", len(b.windings)),
		zap.Duration("elapsed", time.Since(start)))
	if len(t.Leaves) == 0 {
		return nil, fmt.Errorf("%w: no face encloses empty space", ErrNoGeometry)
	}

	if err := t.generatePortals(ctx, opts); err != nil {
		return nil, fmt.Errorf("generate portals: %w", err)
	}
	if err := t.checkLeaks(opts); err != nil {
		if !opts.AllowLeaks {
			return nil, err
		}
		log.Warn("level leaks", zap.Error(err))
	}
	return t, nil
}

// buildNode allocates a node split by the best plane in list and recurses
// into both sides.
func (b *builder) buildNode(list []int32, parent int32, front bool) (ChildRef, error) {
	if err := b.ctx.Err(); err != nil {
		return ChildRef{}, fmt.Errorf("%w: %v", ErrCanceled, err)
	}

	splitter := b.selectSplitter(list)
	if splitter < 0 {
		// Callers only recurse while unused windings remain
		return b.newLeaf(parent, front)
	}
	planeNum := b.windings[splitter].Plane

	n := int32(len(b.tree.Nodes))
	b.tree.Nodes = append(b.tree.Nodes, SubNode{Plane: planeNum, Parent: parent})

	frontList, backList, backFacing := b.partition(list, planeNum)

	fr, err := b.buildChild(frontList, n, true, true)
	if err != nil {
		return ChildRef{}, err
	}
	br, err := b.buildChild(backList, n, false, backFacing)
	if err != nil {
		return ChildRef{}, err
	}
	b.tree.Nodes[n].Front = fr
	b.tree.Nodes[n].Back = br
	return NodeRef(n), nil
}

// buildChild resolves one side of node parent. A side with no unused
// windings is empty when geometry on the parent plane faces into it and
// solid otherwise.
func (b *builder) buildChild(list []int32, parent int32, front, facesInto bool) (ChildRef, error) {
	for _, wi := range list {
		if !b.windings[wi].Used {
			return b.buildNode(list, parent, front)
		}
	}
	if facesInto {
		return b.newLeaf(parent, front)
	}
	b.solid++
	return SolidRef(), nil
}

func (b *builder) newLeaf(parent int32, front bool) (ChildRef, error) {
	if limit := b.opts.MaxLeaves; limit > 0 && len(b.tree.Leaves) >= limit {
		return ChildRef{}, fmt.Errorf("%w: more than %d", ErrTooManyLeaves, limit)
	}
	i := int32(len(b.tree.Leaves))
	b.tree.Leaves = append(b.tree.Leaves, Leaf{Parent: parent, Front: front})
	return LeafRef(i), nil
}

// partition classifies list against plane planeNum, splitting windings
// that straddle it. Windings on the plane are consumed: same facing goes
// front, opposite facing goes back and sets backFacing.
func (b *builder) partition(list []int32, planeNum int32) (front, back []int32, backFacing bool) {
	pl := b.planes.planes[planeNum]
	eps := b.opts.PlaneEpsilon

	for _, wi := range list {
		w := b.windings[wi]
		if w.Plane == planeNum {
			b.windings[wi].Used = true
			front = append(front, wi)
			continue
		}

		pts := b.pool.points(w)
		switch classifyPolygon(pts, pl, eps) {
		case sideFront:
			front = append(front, wi)
		case sideBack:
			back = append(back, wi)
		case sideOn:
			b.windings[wi].Used = true
			if b.planes.planes[w.Plane].Normal.Dot(pl.Normal) > 0 {
				front = append(front, wi)
			} else {
				back = append(back, wi)
				backFacing = true
			}
		case sideSpan:
			b.windings[wi].split = true
			f, bk := splitPolygon(pts, pl, eps)
			if f != nil {
				front = append(front, b.addWinding(f, w))
			}
			if bk != nil {
				back = append(back, b.addWinding(bk, w))
			}
		}
	}
	return front, back, backFacing
}

// addWinding stores a split fragment inheriting the plane and state of
// its parent winding.
func (b *builder) addWinding(pts []math.Vec3, parent Winding) int32 {
	first, count := b.pool.add(pts)
	b.windings = append(b.windings, Winding{
		First: first,
		Count: count,
		Plane: parent.Plane,
		Used:  parent.Used,
	})
	return int32(len(b.windings) - 1)
}
