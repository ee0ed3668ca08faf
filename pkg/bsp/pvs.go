package bsp

import (
	"context"
	"fmt"
	gomath "math"
	"math/bits"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-pvs/pkg/math"
)

type pvsStatus uint8

const (
	pvsUnprocessed pvsStatus = iota
	pvsProcessing
	pvsProcessed
)

// pvsPortal is one direction of a tree portal: it leads out of owner and
// into leaf, with the plane normal pointing into leaf.
type pvsPortal struct {
	plane  math.Plane
	leaf   int32
	owner  int32
	points []math.Vec3
	status pvsStatus

	// possible and actual are bitsets over leaves.
	possible    []byte
	actual      []byte
	numPossible int
}

// pointSet is a working polygon during the flood. Only owned buffers may
// be returned to the pool; borrowed ones belong to a parent frame or to
// the portal itself.
type pointSet struct {
	pts   []math.Vec3
	owned bool
}

func (ps pointSet) empty() bool { return len(ps.pts) == 0 }

// borrow returns a view of ps that the receiver must not release.
func borrow(ps pointSet) pointSet { return pointSet{pts: ps.pts} }

// pointPool recycles clipped point buffers for one compile.
type pointPool struct {
	free   [][]math.Vec3
	allocs int
	reuses int
}

func (p *pointPool) get(n int) []math.Vec3 {
	if last := len(p.free) - 1; last >= 0 && cap(p.free[last]) >= n {
		buf := p.free[last]
		p.free = p.free[:last]
		p.reuses++
		return buf[:0]
	}
	p.allocs++
	return make([]math.Vec3, 0, n)
}

func (p *pointPool) release(ps pointSet) {
	if ps.owned && ps.pts != nil {
		p.free = append(p.free, ps.pts[:0])
	}
}

// pvsStack is one frame of the portal flood.
type pvsStack struct {
	source      pointSet
	pass        pointSet
	portalPlane math.Plane
	possible    []byte
}

// pvsCompiler holds the working portal graph. It is local to one
// CompilePVS call.
type pvsCompiler struct {
	ctx         context.Context
	tree        *Tree
	eps         float64
	leafBytes   int
	portals     []pvsPortal
	leafPortals [][]int32
	onStack     []bool
	pool        pointPool
	base        *pvsPortal
	chains      int
}

// CompilePVS computes the potentially visible set of every leaf and
// stores the compressed rows in the tree.
func (t *Tree) CompilePVS(opts Options) error {
	return t.CompilePVSContext(context.Background(), opts)
}

// CompilePVSContext is CompilePVS with cancellation, checked between
// portal floods. On failure the tree is left without a PVS.
func (t *Tree) CompilePVSContext(ctx context.Context, opts Options) error {
	if t.HasPVS() {
		return ErrAlreadyCompiled
	}
	opts = opts.withDefaults()
	start := time.Now()

	c := &pvsCompiler{
		ctx:       ctx,
		tree:      t,
		eps:       opts.ClipEpsilon,
		leafBytes: (len(t.Leaves) + 7) >> 3,
	}
	c.generatePVSPortals()
	c.initialPortalVis()
	if err := c.calculatePortalVis(); err != nil {
		return fmt.Errorf("compile pvs: %w", err)
	}
	rows := c.leafRows()
	t.compressLeafSet(rows)

	visible := 0
	for _, row := range rows {
		visible += popCount(row)
	}
	avg := 0.0
	if len(rows) > 0 {
		avg = float64(visible) / float64(len(rows))
	}
	opts.Logger.Info("pvs compiled",
		zap.Int("leaves", len(t.Leaves)),
		zap.Int("portals", len(c.portals)),
		zap.Float64("avg_visible", avg),
		zap.Int("chains", c.chains),
		zap.Int("buffers", c.pool.allocs),
		zap.Int("buffer_reuses", c.pool.reuses),
		zap.Int("bytes", len(t.PVSData)),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

// generatePVSPortals creates two directed portals per tree portal.
func (c *pvsCompiler) generatePVSPortals() {
	t := c.tree
	c.portals = make([]pvsPortal, 0, len(t.Portals)*2)
	c.leafPortals = make([][]int32, len(t.Leaves))
	c.onStack = make([]bool, len(t.Leaves))

	add := func(p pvsPortal) {
		c.leafPortals[p.owner] = append(c.leafPortals[p.owner], int32(len(c.portals)))
		c.portals = append(c.portals, p)
	}
	for i := range t.Portals {
		tp := &t.Portals[i]
		pts := t.PortalPoints(int32(i))
		pl := t.Planes[tp.Plane]
		add(pvsPortal{
			plane:  pl,
			leaf:   tp.Leaves[0],
			owner:  tp.Leaves[1],
			points: pts,
		})
		add(pvsPortal{
			plane:  pl.Flip(),
			leaf:   tp.Leaves[1],
			owner:  tp.Leaves[0],
			points: reversePolygon(pts),
		})
	}
}

// initialPortalVis computes for every portal the leaves reachable through
// chains of portals that lie in front of it, ignoring occlusion.
func (c *pvsCompiler) initialPortalVis() {
	front := make([]bool, len(c.portals))
	for i := range c.portals {
		p := &c.portals[i]
		p.possible = make([]byte, c.leafBytes)

		for j := range c.portals {
			front[j] = j != i && c.portalInFront(p, &c.portals[j])
		}
		c.simpleFlood(p, p.leaf, front)
		p.numPossible = popCount(p.possible)
	}
}

// portalInFront reports whether tp has a point beyond p and p has a
// point behind tp.
func (c *pvsCompiler) portalInFront(p, tp *pvsPortal) bool {
	beyond := false
	for _, v := range tp.points {
		if p.plane.Distance(v) > c.eps {
			beyond = true
			break
		}
	}
	if !beyond {
		return false
	}
	for _, v := range p.points {
		if tp.plane.Distance(v) < -c.eps {
			return true
		}
	}
	return false
}

func (c *pvsCompiler) simpleFlood(src *pvsPortal, leaf int32, front []bool) {
	if GetPVSBit(src.possible, leaf) {
		return
	}
	SetPVSBit(src.possible, leaf)
	for _, pi := range c.leafPortals[leaf] {
		if front[pi] {
			c.simpleFlood(src, c.portals[pi].leaf, front)
		}
	}
}

// calculatePortalVis floods every portal, most constrained first.
func (c *pvsCompiler) calculatePortalVis() error {
	for {
		if err := c.ctx.Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrCanceled, err)
		}
		p := c.getNextPVSPortal()
		if p == nil {
			return nil
		}
		c.portalFlow(p)
		p.status = pvsProcessed
	}
}

// getNextPVSPortal returns the unprocessed portal with the smallest
// possible set and marks it as processing.
func (c *pvsCompiler) getNextPVSPortal() *pvsPortal {
	var next *pvsPortal
	for i := range c.portals {
		p := &c.portals[i]
		if p.status != pvsUnprocessed {
			continue
		}
		if next == nil || p.numPossible < next.numPossible {
			next = p
		}
	}
	if next != nil {
		next.status = pvsProcessing
	}
	return next
}

func (c *pvsCompiler) portalFlow(p *pvsPortal) {
	p.actual = make([]byte, c.leafBytes)
	c.base = p
	head := &pvsStack{
		source:      pointSet{pts: p.points},
		portalPlane: p.plane,
		possible:    p.possible,
	}
	c.recursePVS(p.leaf, head)
}

// recursePVS marks leaf visible from the base portal and continues the
// flood through every portal leaving it.
func (c *pvsCompiler) recursePVS(leaf int32, prev *pvsStack) {
	c.chains++
	SetPVSBit(c.base.actual, leaf)

	c.onStack[leaf] = true
	for _, pi := range c.leafPortals[leaf] {
		c.flowThrough(&c.portals[pi], prev)
	}
	c.onStack[leaf] = false
}

// flowThrough narrows the view through p and recurses into its leaf when
// any sightline survives. Every buffer it allocates is released before it
// returns.
func (c *pvsCompiler) flowThrough(p *pvsPortal, prev *pvsStack) {
	if !GetPVSBit(prev.possible, p.leaf) || c.onStack[p.leaf] {
		return
	}

	test := p.possible
	if p.status == pvsProcessed {
		test = p.actual
	}
	stack := pvsStack{
		portalPlane: p.plane,
		possible:    make([]byte, c.leafBytes),
	}
	more := false
	for j := range stack.possible {
		stack.possible[j] = prev.possible[j] & test[j]
		if stack.possible[j]&^c.base.actual[j] != 0 {
			more = true
		}
	}
	if !more {
		return
	}

	defer func() {
		c.pool.release(stack.pass)
		c.pool.release(stack.source)
	}()

	stack.pass = c.clipPVSPortalPoints(pointSet{pts: p.points}, c.base.plane)
	if stack.pass.empty() {
		return
	}
	stack.source = c.clipPVSPortalPoints(borrow(prev.source), p.plane.Flip())
	if stack.source.empty() {
		return
	}

	// The first leaf past the base portal is only blocked when coplanar
	if prev.pass.pts == nil {
		c.recursePVS(p.leaf, &stack)
		return
	}

	if stack.pass = c.clipPVSPortalPoints(stack.pass, prev.portalPlane); stack.pass.empty() {
		return
	}
	if stack.pass = c.clipToAntiPenumbra(stack.source, prev.pass, stack.pass, false); stack.pass.empty() {
		return
	}
	if stack.pass = c.clipToAntiPenumbra(prev.pass, stack.source, stack.pass, true); stack.pass.empty() {
		return
	}
	if stack.source = c.clipToAntiPenumbra(stack.pass, prev.pass, stack.source, false); stack.source.empty() {
		return
	}
	if stack.source = c.clipToAntiPenumbra(prev.pass, stack.pass, stack.source, true); stack.source.empty() {
		return
	}
	c.recursePVS(p.leaf, &stack)
}

// clipPVSPortalPoints keeps the part of ps in front of pl. ps is returned
// as is when nothing lies behind the plane; otherwise it is released and
// a new owned set is returned, empty when nothing lies in front.
func (c *pvsCompiler) clipPVSPortalPoints(ps pointSet, pl math.Plane) pointSet {
	n := len(ps.pts)
	if n == 0 {
		return pointSet{}
	}

	var dists [maxStackPoints]float64
	var sides [maxStackPoints]int8
	dist := dists[:0]
	side := sides[:0]
	if n > maxStackPoints {
		dist = make([]float64, 0, n)
		side = make([]int8, 0, n)
	}
	front, back := 0, 0
	for _, v := range ps.pts {
		d := pl.Distance(v)
		s := int8(sideOn)
		if d > c.eps {
			s = sideFront
			front++
		} else if d < -c.eps {
			s = sideBack
			back++
		}
		dist = append(dist, d)
		side = append(side, s)
	}

	if front == 0 {
		c.pool.release(ps)
		return pointSet{}
	}
	if back == 0 {
		return ps
	}

	out := c.pool.get(n + 4)
	for i, p1 := range ps.pts {
		if side[i] == sideOn {
			out = append(out, p1)
			continue
		}
		if side[i] == sideFront {
			out = append(out, p1)
		}
		j := (i + 1) % n
		if side[j] == sideOn || side[j] == side[i] {
			continue
		}
		out = append(out, intersect(p1, ps.pts[j], dist[i], dist[j], pl))
	}
	c.pool.release(ps)

	if len(out) < 3 {
		c.pool.release(pointSet{pts: out, owned: true})
		return pointSet{}
	}
	return pointSet{pts: out, owned: true}
}

const maxStackPoints = 32

// clipToAntiPenumbra clips target by every plane that separates source
// from pass, keeping the side pass lies on, or the source side when
// flipClip is set.
func (c *pvsCompiler) clipToAntiPenumbra(source, pass, target pointSet, flipClip bool) pointSet {
	src := source.pts
	for i := range src {
		l := (i + 1) % len(src)
		v1 := src[l].Sub(src[i])

		for j := range pass.pts {
			v2 := pass.pts[j].Sub(src[i])
			normal := v1.Cross(v2)
			length := normal.LengthSq()
			if length < c.eps {
				continue
			}
			normal = normal.Scale(1 / gomath.Sqrt(length))
			pl := math.Plane{Normal: normal, Dist: pass.pts[j].Dot(normal)}

			// Find which side of the candidate holds the source
			flipTest := false
			decided := false
			for k := range src {
				if k == i || k == l {
					continue
				}
				d := pl.Distance(src[k])
				if d < -c.eps {
					decided = true
					break
				}
				if d > c.eps {
					flipTest = true
					decided = true
					break
				}
			}
			if !decided {
				// Planar with the source
				continue
			}
			if flipTest {
				pl = pl.Flip()
			}

			// All of pass must be on the front for a separating plane
			separates := true
			ahead := 0
			for k := range pass.pts {
				if k == j {
					continue
				}
				d := pl.Distance(pass.pts[k])
				if d < -c.eps {
					separates = false
					break
				}
				if d > c.eps {
					ahead++
				}
			}
			if !separates || ahead == 0 {
				continue
			}

			if flipClip {
				pl = pl.Flip()
			}
			if target = c.clipPVSPortalPoints(target, pl); target.empty() {
				return pointSet{}
			}
		}
	}
	return target
}

// leafRows merges the actual sets of every leaf's outgoing portals.
func (c *pvsCompiler) leafRows() [][]byte {
	rows := make([][]byte, len(c.tree.Leaves))
	for leaf := range rows {
		row := make([]byte, c.leafBytes)
		SetPVSBit(row, int32(leaf))
		for _, pi := range c.leafPortals[leaf] {
			p := &c.portals[pi]
			SetPVSBit(row, p.leaf)
			for j, b := range p.actual {
				row[j] |= b
			}
		}
		rows[leaf] = row
	}
	return rows
}

func popCount(row []byte) int {
	n := 0
	for _, b := range row {
		n += bits.OnesCount8(b)
	}
	return n
}
