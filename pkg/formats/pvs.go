package formats

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"

	"github.com/Faultbox/midgard-pvs/pkg/bsp"
	"github.com/Faultbox/midgard-pvs/pkg/math"
)

// PVS format errors.
var (
	ErrInvalidPVSMagic       = errors.New("invalid PVS magic: expected 'PVS1'")
	ErrUnsupportedPVSVersion = errors.New("unsupported PVS version")
	ErrTruncatedPVSData      = errors.New("truncated PVS data")
	ErrCorruptPVSData        = errors.New("corrupt PVS data")
)

// PVS file version written by WritePVS.
const (
	PVSVersionMajor = 2
	PVSVersionMinor = 0
)

// maxPVSCount bounds every array count read from disk.
const maxPVSCount = 1 << 24

// Version is a "Major.Minor" file format version.
type Version struct {
	Major uint8
	Minor uint8
}

// String returns the version as "Major.Minor".
func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// pvsHeader is the fixed-size start of a .pvs file. All values are
// little-endian.
type pvsHeader struct {
	Magic       [4]byte
	Minor       uint8
	Major       uint8
	ID          [16]byte
	BoundsMin   [3]float64
	BoundsMax   [3]float64
	RootKind    uint8
	RootIndex   int32
	Planes      uint32
	Nodes       uint32
	Leaves      uint32
	Portals     uint32
	Vertices    uint32
	BytesPerSet uint32
	DataLen     uint32

	// Build tolerances, see bsp.Tree
	BoundsPadding float64
	PlaneEpsilon  float64
	MinPortalArea float64
}

type diskNode struct {
	FrontKind  uint8
	FrontIndex int32
	BackKind   uint8
	BackIndex  int32
	Plane      int32
	Parent     int32
}

type diskLeaf struct {
	VisibilityOffset int32
	Parent           int32
	Front            uint8
	PortalCount      uint32
}

type diskPortal struct {
	First  int32
	Count  int32
	Plane  int32
	Node   int32
	Leaves [2]int32
}

// WritePVS serializes a compiled tree. The compressed PVS blob and the
// per-leaf offsets are written unchanged.
func WritePVS(w io.Writer, tree *bsp.Tree) error {
	bw := bufio.NewWriter(w)
	le := binary.LittleEndian

	hdr := pvsHeader{
		Magic:       [4]byte{'P', 'V', 'S', '1'},
		Minor:       PVSVersionMinor,
		Major:       PVSVersionMajor,
		ID:          [16]byte(tree.ID),
		BoundsMin:   [3]float64{tree.Bounds.Min.X, tree.Bounds.Min.Y, tree.Bounds.Min.Z},
		BoundsMax:   [3]float64{tree.Bounds.Max.X, tree.Bounds.Max.Y, tree.Bounds.Max.Z},
		RootKind:    uint8(tree.Root.Kind),
		RootIndex:   tree.Root.Index,
		Planes:      uint32(len(tree.Planes)),
		Nodes:       uint32(len(tree.Nodes)),
		Leaves:      uint32(len(tree.Leaves)),
		Portals:     uint32(len(tree.Portals)),
		Vertices:    uint32(len(tree.Vertices)),
		BytesPerSet: uint32(tree.PVSBytesPerSet),
		DataLen:     uint32(len(tree.PVSData)),

		BoundsPadding: tree.BoundsPadding,
		PlaneEpsilon:  tree.PlaneEpsilon,
		MinPortalArea: tree.MinPortalArea,
	}
	if err := binary.Write(bw, le, &hdr); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for _, pl := range tree.Planes {
		v := [4]float64{pl.Normal.X, pl.Normal.Y, pl.Normal.Z, pl.Dist}
		if err := binary.Write(bw, le, &v); err != nil {
			return fmt.Errorf("writing planes: %w", err)
		}
	}

	for _, n := range tree.Nodes {
		dn := diskNode{
			FrontKind:  uint8(n.Front.Kind),
			FrontIndex: n.Front.Index,
			BackKind:   uint8(n.Back.Kind),
			BackIndex:  n.Back.Index,
			Plane:      n.Plane,
			Parent:     n.Parent,
		}
		if err := binary.Write(bw, le, &dn); err != nil {
			return fmt.Errorf("writing nodes: %w", err)
		}
	}

	for _, l := range tree.Leaves {
		dl := diskLeaf{
			VisibilityOffset: l.VisibilityOffset,
			Parent:           l.Parent,
			PortalCount:      uint32(len(l.Portals)),
		}
		if l.Front {
			dl.Front = 1
		}
		if err := binary.Write(bw, le, &dl); err != nil {
			return fmt.Errorf("writing leaves: %w", err)
		}
		if err := binary.Write(bw, le, l.Portals); err != nil {
			return fmt.Errorf("writing leaf portals: %w", err)
		}
	}

	for _, p := range tree.Portals {
		dp := diskPortal{
			First:  p.First,
			Count:  p.Count,
			Plane:  p.Plane,
			Node:   p.Node,
			Leaves: p.Leaves,
		}
		if err := binary.Write(bw, le, &dp); err != nil {
			return fmt.Errorf("writing portals: %w", err)
		}
	}

	for _, v := range tree.Vertices {
		xyz := [3]float64{v.X, v.Y, v.Z}
		if err := binary.Write(bw, le, &xyz); err != nil {
			return fmt.Errorf("writing vertices: %w", err)
		}
	}

	if _, err := bw.Write(tree.PVSData); err != nil {
		return fmt.Errorf("writing pvs data: %w", err)
	}
	return bw.Flush()
}

// ParsePVS parses a .pvs file from raw bytes.
func ParsePVS(data []byte) (*bsp.Tree, error) {
	if len(data) < 4 {
		return nil, ErrTruncatedPVSData
	}
	if string(data[0:4]) != "PVS1" {
		return nil, ErrInvalidPVSMagic
	}
	return ReadPVS(bytes.NewReader(data))
}

// ReadPVS decodes a tree written by WritePVS and checks that every index
// it contains is in range.
func ReadPVS(r io.Reader) (*bsp.Tree, error) {
	le := binary.LittleEndian
	br := bufio.NewReader(r)

	var hdr pvsHeader
	if err := binary.Read(br, le, &hdr); err != nil {
		return nil, fmt.Errorf("%w: reading header", ErrTruncatedPVSData)
	}
	if string(hdr.Magic[:]) != "PVS1" {
		return nil, ErrInvalidPVSMagic
	}
	version := Version{Major: hdr.Major, Minor: hdr.Minor}
	if version.Major != PVSVersionMajor {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPVSVersion, version)
	}
	for _, n := range []uint32{hdr.Planes, hdr.Nodes, hdr.Leaves, hdr.Portals, hdr.Vertices, hdr.DataLen} {
		if n > maxPVSCount {
			return nil, fmt.Errorf("%w: count %d too large", ErrCorruptPVSData, n)
		}
	}

	tree := &bsp.Tree{
		ID: uuid.UUID(hdr.ID),
		Bounds: math.AABB{
			Min: math.V3(hdr.BoundsMin[0], hdr.BoundsMin[1], hdr.BoundsMin[2]),
			Max: math.V3(hdr.BoundsMax[0], hdr.BoundsMax[1], hdr.BoundsMax[2]),
		},
		Root:           bsp.ChildRef{Kind: bsp.ChildKind(hdr.RootKind), Index: hdr.RootIndex},
		Planes:         make([]math.Plane, hdr.Planes),
		Nodes:          make([]bsp.SubNode, hdr.Nodes),
		Leaves:         make([]bsp.Leaf, hdr.Leaves),
		Portals:        make([]bsp.Portal, hdr.Portals),
		Vertices:       make([]math.Vec3, hdr.Vertices),
		PVSBytesPerSet: int(hdr.BytesPerSet),
		BoundsPadding:  hdr.BoundsPadding,
		PlaneEpsilon:   hdr.PlaneEpsilon,
		MinPortalArea:  hdr.MinPortalArea,
	}

	for i := range tree.Planes {
		var v [4]float64
		if err := binary.Read(br, le, &v); err != nil {
			return nil, fmt.Errorf("%w: reading plane %d", ErrTruncatedPVSData, i)
		}
		tree.Planes[i] = math.Plane{Normal: math.V3(v[0], v[1], v[2]), Dist: v[3]}
	}

	for i := range tree.Nodes {
		var dn diskNode
		if err := binary.Read(br, le, &dn); err != nil {
			return nil, fmt.Errorf("%w: reading node %d", ErrTruncatedPVSData, i)
		}
		tree.Nodes[i] = bsp.SubNode{
			Front:  bsp.ChildRef{Kind: bsp.ChildKind(dn.FrontKind), Index: dn.FrontIndex},
			Back:   bsp.ChildRef{Kind: bsp.ChildKind(dn.BackKind), Index: dn.BackIndex},
			Plane:  dn.Plane,
			Parent: dn.Parent,
		}
	}

	for i := range tree.Leaves {
		var dl diskLeaf
		if err := binary.Read(br, le, &dl); err != nil {
			return nil, fmt.Errorf("%w: reading leaf %d", ErrTruncatedPVSData, i)
		}
		if dl.PortalCount > hdr.Portals {
			return nil, fmt.Errorf("%w: leaf %d lists %d portals", ErrCorruptPVSData, i, dl.PortalCount)
		}
		portals := make([]int32, dl.PortalCount)
		if err := binary.Read(br, le, portals); err != nil {
			return nil, fmt.Errorf("%w: reading leaf %d portals", ErrTruncatedPVSData, i)
		}
		tree.Leaves[i] = bsp.Leaf{
			Portals:          portals,
			VisibilityOffset: dl.VisibilityOffset,
			Parent:           dl.Parent,
			Front:            dl.Front != 0,
		}
	}

	for i := range tree.Portals {
		var dp diskPortal
		if err := binary.Read(br, le, &dp); err != nil {
			return nil, fmt.Errorf("%w: reading portal %d", ErrTruncatedPVSData, i)
		}
		tree.Portals[i] = bsp.Portal{
			First:  dp.First,
			Count:  dp.Count,
			Plane:  dp.Plane,
			Node:   dp.Node,
			Leaves: dp.Leaves,
		}
	}

	for i := range tree.Vertices {
		var v [3]float64
		if err := binary.Read(br, le, &v); err != nil {
			return nil, fmt.Errorf("%w: reading vertex %d", ErrTruncatedPVSData, i)
		}
		tree.Vertices[i] = math.V3(v[0], v[1], v[2])
	}

	tree.PVSData = make([]byte, hdr.DataLen)
	if _, err := io.ReadFull(br, tree.PVSData); err != nil {
		return nil, fmt.Errorf("%w: reading pvs data", ErrTruncatedPVSData)
	}
	if hdr.DataLen == 0 && hdr.BytesPerSet == 0 && hdr.Leaves > 0 {
		// Written before CompilePVS
		tree.PVSData = nil
	}

	if err := checkPVSIndices(tree); err != nil {
		return nil, err
	}
	return tree, nil
}

// checkPVSIndices rejects trees whose references point outside their
// arrays, so queries on a loaded tree cannot index out of range.
func checkPVSIndices(t *bsp.Tree) error {
	checkRef := func(ref bsp.ChildRef) error {
		switch ref.Kind {
		case bsp.ChildSolid:
			return nil
		case bsp.ChildNode:
			if ref.Index < 0 || int(ref.Index) >= len(t.Nodes) {
				return fmt.Errorf("%w: node %d out of range", ErrCorruptPVSData, ref.Index)
			}
		case bsp.ChildLeaf:
			if ref.Index < 0 || int(ref.Index) >= len(t.Leaves) {
				return fmt.Errorf("%w: leaf %d out of range", ErrCorruptPVSData, ref.Index)
			}
		default:
			return fmt.Errorf("%w: child kind %d", ErrCorruptPVSData, ref.Kind)
		}
		return nil
	}

	if err := checkRef(t.Root); err != nil {
		return err
	}
	for i, n := range t.Nodes {
		if n.Plane < 0 || int(n.Plane) >= len(t.Planes) {
			return fmt.Errorf("%w: node %d plane %d", ErrCorruptPVSData, i, n.Plane)
		}
		if n.Parent < -1 || int(n.Parent) >= i {
			return fmt.Errorf("%w: node %d parent %d", ErrCorruptPVSData, i, n.Parent)
		}
		// Children are always allocated after their parent
		for _, ref := range []bsp.ChildRef{n.Front, n.Back} {
			if err := checkRef(ref); err != nil {
				return err
			}
			if ref.IsNode() && int(ref.Index) <= i {
				return fmt.Errorf("%w: node %d points back to %d", ErrCorruptPVSData, i, ref.Index)
			}
		}
	}
	for i, l := range t.Leaves {
		if l.Parent < -1 || int(l.Parent) >= len(t.Nodes) {
			return fmt.Errorf("%w: leaf %d parent %d", ErrCorruptPVSData, i, l.Parent)
		}
		if t.PVSData != nil && (l.VisibilityOffset < 0 || int(l.VisibilityOffset) > len(t.PVSData)) {
			return fmt.Errorf("%w: leaf %d visibility offset %d", ErrCorruptPVSData, i, l.VisibilityOffset)
		}
		for _, p := range l.Portals {
			if p < 0 || int(p) >= len(t.Portals) {
				return fmt.Errorf("%w: leaf %d portal %d", ErrCorruptPVSData, i, p)
			}
		}
	}
	for i, p := range t.Portals {
		if p.First < 0 || p.Count < 0 || int(p.First)+int(p.Count) > len(t.Vertices) {
			return fmt.Errorf("%w: portal %d vertex range", ErrCorruptPVSData, i)
		}
		if p.Plane < 0 || int(p.Plane) >= len(t.Planes) {
			return fmt.Errorf("%w: portal %d plane %d", ErrCorruptPVSData, i, p.Plane)
		}
		if p.Node < 0 || int(p.Node) >= len(t.Nodes) {
			return fmt.Errorf("%w: portal %d node %d", ErrCorruptPVSData, i, p.Node)
		}
		for _, l := range p.Leaves {
			if l < 0 || int(l) >= len(t.Leaves) {
				return fmt.Errorf("%w: portal %d leaf %d", ErrCorruptPVSData, i, l)
			}
		}
	}
	if t.PVSData != nil && t.PVSBytesPerSet != (len(t.Leaves)+7)>>3 {
		return fmt.Errorf("%w: %d bytes per set for %d leaves", ErrCorruptPVSData, t.PVSBytesPerSet, len(t.Leaves))
	}
	return nil
}

// ParsePVSFile parses a .pvs file from disk.
func ParsePVSFile(path string) (*bsp.Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return ParsePVS(data)
}

// SavePVSFile writes tree to path.
func SavePVSFile(path string, tree *bsp.Tree) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	if err := WritePVS(f, tree); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
