package level

import (
	"errors"
	"fmt"

	"github.com/Faultbox/midgard-pvs/pkg/bsp"
	"github.com/Faultbox/midgard-pvs/pkg/math"
)

// Generator errors.
var (
	ErrInvalidGrid = errors.New("invalid grid")
	ErrInvalidBox  = errors.New("invalid box")
)

// BoxRoom returns the six faces of the box facing inward, enclosing empty
// space.
func BoxRoom(min, max math.Vec3) *bsp.TriangleMesh {
	return box(min, max, true)
}

// Box returns the six faces of the box facing outward, a solid block.
func Box(min, max math.Vec3) *bsp.TriangleMesh {
	return box(min, max, false)
}

func box(min, max math.Vec3, inward bool) *bsp.TriangleMesh {
	m := &bsp.TriangleMesh{}
	sign := 1.0
	if !inward {
		sign = -1
	}

	// Corners: bottom ring then top ring
	c := [8]math.Vec3{
		{X: min.X, Y: min.Y, Z: min.Z},
		{X: max.X, Y: min.Y, Z: min.Z},
		{X: max.X, Y: max.Y, Z: min.Z},
		{X: min.X, Y: max.Y, Z: min.Z},
		{X: min.X, Y: min.Y, Z: max.Z},
		{X: max.X, Y: min.Y, Z: max.Z},
		{X: max.X, Y: max.Y, Z: max.Z},
		{X: min.X, Y: max.Y, Z: max.Z},
	}
	m.AddQuadFacing(c[0], c[1], c[2], c[3], math.V3(0, 0, sign))  // floor
	m.AddQuadFacing(c[4], c[5], c[6], c[7], math.V3(0, 0, -sign)) // ceiling
	m.AddQuadFacing(c[0], c[3], c[7], c[4], math.V3(sign, 0, 0))  // -x wall
	m.AddQuadFacing(c[1], c[2], c[6], c[5], math.V3(-sign, 0, 0)) // +x wall
	m.AddQuadFacing(c[0], c[1], c[5], c[4], math.V3(0, sign, 0))  // -y wall
	m.AddQuadFacing(c[3], c[2], c[6], c[7], math.V3(0, -sign, 0)) // +y wall
	return m
}

// Quad returns the quad a-b-c-d. A double-sided quad gets a second copy
// facing the other way, making a wall of zero thickness.
func Quad(a, b, c, d math.Vec3, doubleSided bool) *bsp.TriangleMesh {
	m := &bsp.TriangleMesh{}
	m.AddQuad(a, b, c, d)
	if doubleSided {
		m.AddQuad(d, c, b, a)
	}
	return m
}

// Grid is a tile map extruded into rooms. '#' and ' ' cells are solid, as
// is everything outside the rows; any other character is open floor.
// Row r and column c cover x in [c, c+1) and y in [r, r+1) cells from
// Origin, and z from Origin.Z up to Origin.Z+Height.
type Grid struct {
	Rows   []string
	Cell   float64
	Height float64
	Origin math.Vec3
}

// Solid reports whether cell (r, c) is solid.
func (g Grid) Solid(r, c int) bool {
	if r < 0 || r >= len(g.Rows) || c < 0 || c >= len(g.Rows[r]) {
		return true
	}
	ch := g.Rows[r][c]
	return ch == '#' || ch == ' '
}

// CellCenter returns the middle of cell (r, c) at half height.
func (g Grid) CellCenter(r, c int) math.Vec3 {
	return math.V3(
		g.Origin.X+(float64(c)+0.5)*g.Cell,
		g.Origin.Y+(float64(r)+0.5)*g.Cell,
		g.Origin.Z+g.Height*0.5,
	)
}

// Markers returns the centres of every open cell labelled with a letter,
// grouped by letter.
func (g Grid) Markers() map[byte][]math.Vec3 {
	out := make(map[byte][]math.Vec3)
	for r, row := range g.Rows {
		for c := 0; c < len(row); c++ {
			ch := row[c]
			if (ch >= 'A' && ch <= 'Z') || (ch >= 'a' && ch <= 'z') {
				out[ch] = append(out[ch], g.CellCenter(r, c))
			}
		}
	}
	return out
}

// Mesh builds the floor, ceiling and walls of every open cell. Walls are
// only emitted toward solid neighbours and face into the open cell.
func (g Grid) Mesh() (*bsp.TriangleMesh, error) {
	if g.Cell <= 0 || g.Height <= 0 {
		return nil, fmt.Errorf("%w: cell %v, height %v", ErrInvalidGrid, g.Cell, g.Height)
	}

	m := &bsp.TriangleMesh{}
	z0, z1 := g.Origin.Z, g.Origin.Z+g.Height
	open := 0
	for r, row := range g.Rows {
		for c := 0; c < len(row); c++ {
			if g.Solid(r, c) {
				continue
			}
			open++
			x0 := g.Origin.X + float64(c)*g.Cell
			y0 := g.Origin.Y + float64(r)*g.Cell
			x1, y1 := x0+g.Cell, y0+g.Cell

			m.AddQuadFacing(math.V3(x0, y0, z0), math.V3(x1, y0, z0), math.V3(x1, y1, z0), math.V3(x0, y1, z0), math.V3(0, 0, 1))
			m.AddQuadFacing(math.V3(x0, y0, z1), math.V3(x1, y0, z1), math.V3(x1, y1, z1), math.V3(x0, y1, z1), math.V3(0, 0, -1))

			if g.Solid(r, c-1) {
				m.AddQuadFacing(math.V3(x0, y0, z0), math.V3(x0, y1, z0), math.V3(x0, y1, z1), math.V3(x0, y0, z1), math.V3(1, 0, 0))
			}
			if g.Solid(r, c+1) {
				m.AddQuadFacing(math.V3(x1, y0, z0), math.V3(x1, y1, z0), math.V3(x1, y1, z1), math.V3(x1, y0, z1), math.V3(-1, 0, 0))
			}
			if g.Solid(r-1, c) {
				m.AddQuadFacing(math.V3(x0, y0, z0), math.V3(x1, y0, z0), math.V3(x1, y0, z1), math.V3(x0, y0, z1), math.V3(0, 1, 0))
			}
			if g.Solid(r+1, c) {
				m.AddQuadFacing(math.V3(x0, y1, z0), math.V3(x1, y1, z0), math.V3(x1, y1, z1), math.V3(x0, y1, z1), math.V3(0, -1, 0))
			}
		}
	}
	if open == 0 {
		return nil, fmt.Errorf("%w: no open cells", ErrInvalidGrid)
	}
	return m, nil
}
