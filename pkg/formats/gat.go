package formats

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// GAT format errors.
var (
	ErrInvalidGATMagic       = errors.New("invalid GAT magic: expected 'GRAT'")
	ErrUnsupportedGATVersion = errors.New("unsupported GAT version")
	ErrTruncatedGATData      = errors.New("truncated GAT data")
	ErrInvalidGATSize        = errors.New("invalid GAT dimensions")
)

// maxGATSide bounds the map side read from disk.
const maxGATSide = 4096

// GATCellType is the terrain class of a walkability cell.
type GATCellType uint32

// Cell types as stored on disk.
const (
	GATWalkable      GATCellType = 0
	GATBlocked       GATCellType = 1
	GATWater         GATCellType = 2
	GATWalkableWater GATCellType = 3
	GATSnipeable     GATCellType = 4 // cliff edge, projectiles pass
	GATBlockedSnipe  GATCellType = 5
)

// Occludes reports whether the cell stops sight lines. Only plain blocked
// cells do; every snipeable class can be seen and shot across.
func (t GATCellType) Occludes() bool {
	return t == GATBlocked
}

// gatHeader is the fixed start of a .gat file.
type gatHeader struct {
	Magic  [4]byte
	Minor  uint8
	Major  uint8
	Width  uint32
	Height uint32
}

// gatCell is one cell on disk: four corner heights then the type.
type gatCell struct {
	Heights [4]float32
	Type    GATCellType
}

// GAT is a walkability grid. Cell (x, y) is stored at y*Width+x.
type GAT struct {
	Version Version
	Width   int
	Height  int
	Types   []GATCellType
	// Altitude is the mean corner height of each cell.
	Altitude []float32
}

// Cell returns the type at (x, y). Cells outside the map are blocked.
func (g *GAT) Cell(x, y int) GATCellType {
	if x < 0 || y < 0 || x >= g.Width || y >= g.Height {
		return GATBlocked
	}
	return g.Types[y*g.Width+x]
}

// Rows renders the grid as tile rows, '#' for occluding cells and '.'
// for everything else. Row y holds cells (0..Width-1, y).
func (g *GAT) Rows() []string {
	rows := make([]string, g.Height)
	var sb strings.Builder
	for y := 0; y < g.Height; y++ {
		sb.Reset()
		for x := 0; x < g.Width; x++ {
			if g.Cell(x, y).Occludes() {
				sb.WriteByte('#')
			} else {
				sb.WriteByte('.')
			}
		}
		rows[y] = sb.String()
	}
	return rows
}

// ReadGAT decodes a .gat stream. Versions 1.x through 3.x share the cell
// layout.
func ReadGAT(r io.Reader) (*GAT, error) {
	br := bufio.NewReader(r)

	var h gatHeader
	if err := binary.Read(br, binary.LittleEndian, &h); err != nil {
		return nil, fmt.Errorf("%w: header: %w", ErrTruncatedGATData, err)
	}
	if string(h.Magic[:]) != "GRAT" {
		return nil, ErrInvalidGATMagic
	}
	version := Version{Major: h.Major, Minor: h.Minor}
	if h.Major < 1 || h.Major > 3 {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedGATVersion, version)
	}
	if h.Width == 0 || h.Height == 0 || h.Width > maxGATSide || h.Height > maxGATSide {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidGATSize, h.Width, h.Height)
	}

	n := int(h.Width) * int(h.Height)
	g := &GAT{
		Version:  version,
		Width:    int(h.Width),
		Height:   int(h.Height),
		Types:    make([]GATCellType, n),
		Altitude: make([]float32, n),
	}
	var c gatCell
	for i := 0; i < n; i++ {
		if err := binary.Read(br, binary.LittleEndian, &c); err != nil {
			return nil, fmt.Errorf("%w: cell %d", ErrTruncatedGATData, i)
		}
		g.Types[i] = c.Type
		g.Altitude[i] = (c.Heights[0] + c.Heights[1] + c.Heights[2] + c.Heights[3]) / 4
	}
	return g, nil
}

// ParseGATFile reads a .gat file from disk.
func ParseGATFile(path string) (*GAT, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading GAT file: %w", err)
	}
	defer f.Close()
	return ReadGAT(f)
}
