package level

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Faultbox/midgard-pvs/pkg/bsp"
	"github.com/Faultbox/midgard-pvs/pkg/math"
)

const twoRooms = `
name: two rooms
id: 7d4f7a0c-3c1e-4b8e-9a55-2f0c1f3b9e21
meshes:
  - type: room
    min: [0, 0, 0]
    max: [10, 10, 10]
  - type: room
    min: [0, 0, 0]
    max: [10, 10, 10]
    translate: [20, 0, 0]
`

func TestParse_Valid(t *testing.T) {
	lvl, err := Parse([]byte(twoRooms))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if lvl.Name != "two rooms" {
		t.Errorf("expected name 'two rooms', got %q", lvl.Name)
	}
	if len(lvl.Meshes) != 2 {
		t.Fatalf("expected 2 meshes, got %d", len(lvl.Meshes))
	}

	instances, err := lvl.Instances()
	if err != nil {
		t.Fatalf("Instances failed: %v", err)
	}
	got := instances[1].Transform.TransformVec3(math.V3(0, 0, 0))
	if got != math.V3(20, 0, 0) {
		t.Errorf("translated origin = %v, want (20,0,0)", got)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"no meshes", "name: empty\n"},
		{"empty meshes", "meshes: []\n"},
		{"unknown type", "meshes:\n  - type: sphere\n"},
		{"room without max", "meshes:\n  - type: room\n    min: [0, 0, 0]\n"},
		{"short vector", "meshes:\n  - type: room\n    min: [0, 0]\n    max: [1, 1, 1]\n"},
		{"bad id", "id: not-a-uuid\nmeshes:\n  - type: room\n    min: [0, 0, 0]\n    max: [1, 1, 1]\n"},
		{"bad grid row", "meshes:\n  - type: grid\n    rows: [\"#\\t#\"]\n    cell: 1\n    height: 1\n"},
		{"gat without file", "meshes:\n  - type: gat\n    cell: 1\n    height: 1\n"},
		{"zero cell", "meshes:\n  - type: grid\n    rows: [\"#.#\"]\n    cell: 0\n    height: 1\n"},
		{"extra field", "meshes:\n  - type: room\n    min: [0, 0, 0]\n    max: [1, 1, 1]\n    color: red\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			if !errors.Is(err, ErrInvalidLevel) {
				t.Errorf("expected ErrInvalidLevel, got %v", err)
			}
		})
	}
}

func TestParse_Malformed(t *testing.T) {
	if _, err := Parse([]byte("meshes: [\n")); err == nil {
		t.Error("expected an error for malformed YAML")
	}
	if _, err := Parse(nil); !errors.Is(err, ErrInvalidLevel) {
		t.Errorf("expected ErrInvalidLevel for empty input, got %v", err)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "level.yaml")
	if err := os.WriteFile(path, []byte(twoRooms), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	lvl, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(lvl.Meshes) != 2 {
		t.Errorf("expected 2 meshes, got %d", len(lvl.Meshes))
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestInstances_BoxOrder(t *testing.T) {
	lvl := &Level{Meshes: []MeshSpec{{Type: "box", Min: []float64{1, 1, 1}, Max: []float64{0, 2, 2}}}}
	if _, err := lvl.Instances(); !errors.Is(err, ErrInvalidBox) {
		t.Errorf("expected ErrInvalidBox, got %v", err)
	}
}

func TestMeshSpec_Transform(t *testing.T) {
	m := MeshSpec{
		Translate: []float64{10, 0, 0},
		RotateZ:   90,
		Scale:     []float64{2, 2, 2},
	}
	got := m.Transform().TransformVec3(math.V3(1, 0, 0))
	want := math.V3(10, 2, 0)
	if !got.Near(want, 1e-9) {
		t.Errorf("Transform() maps (1,0,0) to %v, want %v", got, want)
	}
}

func TestMeshSpec_Triangles(t *testing.T) {
	m := MeshSpec{
		Type:      "triangles",
		Triangles: [][][]float64{{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}}},
	}
	inst, err := m.Instance()
	if err != nil {
		t.Fatalf("Instance failed: %v", err)
	}
	if n := len(inst.Mesh.Indices()); n != 3 {
		t.Errorf("expected 3 indices, got %d", n)
	}
}

func TestBoxRoom_FacesInward(t *testing.T) {
	checkFacing(t, BoxRoom(math.V3(0, 0, 0), math.V3(4, 4, 4)), math.V3(2, 2, 2), true)
	checkFacing(t, Box(math.V3(0, 0, 0), math.V3(4, 4, 4)), math.V3(2, 2, 2), false)
}

// checkFacing asserts every triangle normal points toward (or away from)
// center.
func checkFacing(t *testing.T, m *bsp.TriangleMesh, center math.Vec3, toward bool) {
	t.Helper()
	if m.TriangleCount() != 12 {
		t.Fatalf("expected 12 triangles, got %d", m.TriangleCount())
	}
	for i := 0; i < len(m.Idx); i += 3 {
		a, b, c := m.Verts[m.Idx[i]], m.Verts[m.Idx[i+1]], m.Verts[m.Idx[i+2]]
		pl, ok := math.PlaneFromPoints(a, b, c)
		if !ok {
			t.Fatalf("triangle %d is degenerate", i/3)
		}
		if inFront := pl.Distance(center) > 0; inFront != toward {
			t.Errorf("triangle %d faces the wrong way (normal %v)", i/3, pl.Normal)
		}
	}
}

func TestGrid_Mesh(t *testing.T) {
	g := Grid{Rows: []string{"###", "#.#", "###"}, Cell: 2, Height: 3}
	m, err := g.Mesh()
	if err != nil {
		t.Fatalf("Mesh failed: %v", err)
	}
	// One enclosed cell: floor, ceiling and four walls
	if m.TriangleCount() != 12 {
		t.Errorf("expected 12 triangles, got %d", m.TriangleCount())
	}
	checkFacing(t, m, g.CellCenter(1, 1), true)
}

func TestGrid_SharedEdgesHaveNoWall(t *testing.T) {
	g := Grid{Rows: []string{"..", ".."}, Cell: 1, Height: 1}
	m, err := g.Mesh()
	if err != nil {
		t.Fatalf("Mesh failed: %v", err)
	}
	// 4 floors, 4 ceilings, 8 outer walls
	if m.TriangleCount() != 32 {
		t.Errorf("expected 32 triangles, got %d", m.TriangleCount())
	}
}

func TestGrid_Invalid(t *testing.T) {
	if _, err := (Grid{Rows: []string{"###"}, Cell: 1, Height: 1}).Mesh(); !errors.Is(err, ErrInvalidGrid) {
		t.Errorf("expected ErrInvalidGrid for an all-solid grid, got %v", err)
	}
	if _, err := (Grid{Rows: []string{"."}, Cell: 0, Height: 1}).Mesh(); !errors.Is(err, ErrInvalidGrid) {
		t.Errorf("expected ErrInvalidGrid for a zero cell, got %v", err)
	}
}

func TestGrid_Markers(t *testing.T) {
	g := Grid{Rows: []string{"#A.", "#AB"}, Cell: 10, Height: 4, Origin: math.V3(100, 0, 0)}
	markers := g.Markers()
	if len(markers['A']) != 2 || len(markers['B']) != 1 {
		t.Fatalf("unexpected markers %v", markers)
	}
	if got, want := markers['B'][0], math.V3(125, 15, 2); got != want {
		t.Errorf("B center = %v, want %v", got, want)
	}
	if !g.Solid(0, 0) || !g.Solid(-1, 1) || !g.Solid(0, 3) || g.Solid(0, 2) {
		t.Error("Solid() misclassified a cell")
	}
}

func TestLevel_Build(t *testing.T) {
	lvl, err := Parse([]byte(twoRooms))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	instances, err := lvl.Instances()
	if err != nil {
		t.Fatalf("Instances failed: %v", err)
	}
	tree, err := bsp.Build(instances, bsp.DefaultOptions())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if tree.LeafCount() != 2 {
		t.Errorf("expected 2 leaves, got %d", tree.LeafCount())
	}
}

func TestLevel_Compile(t *testing.T) {
	const id = "7d4f7a0c-3c1e-4b8e-9a55-2f0c1f3b9e21"
	lvl, err := Parse([]byte(twoRooms))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	tree, err := lvl.Compile(context.Background(), bsp.DefaultOptions())
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if tree.ID.String() != id {
		t.Errorf("expected tree id %s, got %s", id, tree.ID)
	}
	if !tree.HasPVS() {
		t.Error("expected a compiled PVS")
	}
}

func TestLevel_CompileBadID(t *testing.T) {
	lvl, err := Parse([]byte(twoRooms))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	lvl.ID = "not-a-uuid"

	// The id is rejected before any build work, so cancellation never shows
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tree, err := lvl.Compile(ctx, bsp.DefaultOptions())
	if !errors.Is(err, ErrInvalidLevel) {
		t.Errorf("expected ErrInvalidLevel, got %v", err)
	}
	if tree != nil {
		t.Error("expected no tree for a bad id")
	}
}

// writeGAT encodes rows as a version 1.2 walkability file, '#' blocked.
func writeGAT(t *testing.T, path string, rows []string) {
	t.Helper()
	buf := new(bytes.Buffer)
	buf.WriteString("GRAT")
	buf.Write([]byte{2, 1})
	binary.Write(buf, binary.LittleEndian, uint32(len(rows[0])))
	binary.Write(buf, binary.LittleEndian, uint32(len(rows)))
	for _, row := range rows {
		for i := 0; i < len(row); i++ {
			binary.Write(buf, binary.LittleEndian, [4]float32{})
			typ := uint32(0)
			if row[i] == '#' {
				typ = 1
			}
			binary.Write(buf, binary.LittleEndian, typ)
		}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
}

func TestLoad_GAT(t *testing.T) {
	dir := t.TempDir()
	writeGAT(t, filepath.Join(dir, "hall.gat"), []string{
		"#####",
		"#...#",
		"#####",
	})
	doc := "name: hall\nmeshes:\n  - type: gat\n    file: hall.gat\n    cell: 8\n    height: 16\n"
	path := filepath.Join(dir, "hall.yaml")
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	lvl, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	tree, err := lvl.Compile(context.Background(), bsp.DefaultOptions())
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if tree.LeafCount() != 1 {
		t.Errorf("expected 1 leaf, got %d", tree.LeafCount())
	}
	if leaf := tree.FindLeaf(math.V3(20, 12, 8)); leaf == bsp.NoLeaf {
		t.Error("expected the hall centre to be in an empty leaf")
	}
}

func TestParse_GATMissingFile(t *testing.T) {
	lvl, err := Parse([]byte("meshes:\n  - type: gat\n    file: nowhere.gat\n    cell: 1\n    height: 1\n"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if _, err := lvl.Instances(); err == nil {
		t.Error("expected an error for a missing gat file")
	}
}
