// Package debug draws compiled trees for visual inspection.
package debug

import (
	"errors"
	"io"

	"github.com/gogpu/gg"

	"github.com/Faultbox/midgard-pvs/pkg/bsp"
	"github.com/Faultbox/midgard-pvs/pkg/math"
)

// ErrEmptyTree is returned when there is nothing to draw.
var ErrEmptyTree = errors.New("tree has no leaves")

// RenderOptions controls the top-down view.
type RenderOptions struct {
	Size    int   // image width and height in pixels
	Margin  int   // border in pixels
	Source  int32 // leaf whose PVS is highlighted; bsp.NoLeaf for none
	Portals bool  // draw portal traces
}

// DefaultRenderOptions returns a 1024px view with portals and no source.
func DefaultRenderOptions() RenderOptions {
	return RenderOptions{
		Size:    1024,
		Margin:  16,
		Source:  bsp.NoLeaf,
		Portals: true,
	}
}

var (
	colBackground = gg.RGB(0.08, 0.08, 0.10)
	colLeaf       = [3]float64{0.30, 0.32, 0.38}
	colVisible    = [3]float64{0.20, 0.55, 0.30}
	colSource     = [3]float64{0.85, 0.70, 0.15}
	colPortal     = [3]float64{0.45, 0.75, 0.95}
)

// view maps world XY onto the image, y pointing up.
type view struct {
	min    math.Vec2
	scale  float64
	margin float64
	size   float64
}

func newView(b math.AABB, size, margin int) view {
	ext := b.Size()
	span := ext.X
	if ext.Y > span {
		span = ext.Y
	}
	if span <= 0 {
		span = 1
	}
	return view{
		min:    b.Min.XY(),
		scale:  float64(size-2*margin) / span,
		margin: float64(margin),
		size:   float64(size),
	}
}

func (v view) project(p math.Vec3) (float64, float64) {
	x := v.margin + (p.X-v.min.X)*v.scale
	y := v.size - v.margin - (p.Y-v.min.Y)*v.scale
	return x, y
}

func (v view) path(dc *gg.Context, pts []math.Vec3) {
	for i, p := range pts {
		x, y := v.project(p)
		if i == 0 {
			dc.MoveTo(x, y)
		} else {
			dc.LineTo(x, y)
		}
	}
	dc.ClosePath()
}

// Draw renders tree seen from above into a new context. The caller owns
// the returned context and must Close it.
func Draw(tree *bsp.Tree, opts RenderOptions) (*gg.Context, error) {
	if tree == nil || tree.LeafCount() == 0 {
		return nil, ErrEmptyTree
	}
	if opts.Size <= 0 {
		opts.Size = DefaultRenderOptions().Size
	}
	if opts.Margin < 0 || 2*opts.Margin >= opts.Size {
		opts.Margin = 0
	}

	dc := gg.NewContext(opts.Size, opts.Size)
	dc.ClearWithColor(colBackground)
	v := newView(tree.Bounds, opts.Size, opts.Margin)

	var q *bsp.VisQuery
	if opts.Source != bsp.NoLeaf && tree.HasPVS() {
		q = bsp.NewVisQuery(tree)
		q.SetSource(opts.Source)
	}

	for leaf := int32(0); leaf < int32(tree.LeafCount()); leaf++ {
		col := colLeaf
		switch {
		case leaf == opts.Source:
			col = colSource
		case q != nil && q.IsLeafVisible(leaf):
			col = colVisible
		}
		for _, face := range floorFaces(tree.LeafHull(leaf)) {
			v.path(dc, face)
			dc.SetRGBA(col[0], col[1], col[2], 0.6)
			if err := dc.FillPreserve(); err != nil {
				dc.Close()
				return nil, err
			}
			dc.SetRGB(col[0], col[1], col[2])
			dc.SetLineWidth(1)
			if err := dc.Stroke(); err != nil {
				dc.Close()
				return nil, err
			}
		}
	}

	if opts.Portals {
		dc.SetRGB(colPortal[0], colPortal[1], colPortal[2])
		dc.SetLineWidth(2)
		for i := range tree.Portals {
			v.path(dc, tree.PortalPoints(int32(i)))
		}
		if err := dc.Stroke(); err != nil {
			dc.Close()
			return nil, err
		}
	}

	if c, ok := tree.LeafCenter(opts.Source); ok {
		x, y := v.project(c)
		dc.SetRGB(1, 1, 1)
		dc.DrawCircle(x, y, 4)
		if err := dc.Fill(); err != nil {
			dc.Close()
			return nil, err
		}
	}

	return dc, nil
}

// floorFaces keeps the upward-facing hull faces, which outline the leaf
// footprint.
func floorFaces(hull [][]math.Vec3) [][]math.Vec3 {
	var out [][]math.Vec3
	for _, f := range hull {
		if len(f) < 3 {
			continue
		}
		n := f[1].Sub(f[0]).Cross(f[2].Sub(f[0])).Normalize()
		if n.Z > 0.5 {
			out = append(out, f)
		}
	}
	return out
}

// RenderTopDown writes a PNG of tree to path.
func RenderTopDown(tree *bsp.Tree, path string, opts RenderOptions) error {
	dc, err := Draw(tree, opts)
	if err != nil {
		return err
	}
	defer dc.Close()
	return dc.SavePNG(path)
}

// EncodeTopDown writes a PNG of tree to w.
func EncodeTopDown(w io.Writer, tree *bsp.Tree, opts RenderOptions) error {
	dc, err := Draw(tree, opts)
	if err != nil {
		return err
	}
	defer dc.Close()
	return dc.EncodePNG(w)
}
