package bsp

import (
	"testing"

	"github.com/Faultbox/midgard-pvs/pkg/math"
)

func TestMergeInstances_RejectsDegenerate(t *testing.T) {
	m := &TriangleMesh{}
	m.AddTriangle(math.V3(0, 0, 0), math.V3(1, 0, 0), math.V3(0, 1, 0))
	m.AddTriangle(math.V3(0, 0, 0), math.V3(1, 0, 0), math.V3(2, 0, 0)) // collinear
	m.AddTriangle(math.V3(0, 0, 0), math.V3(0, 0, 0), math.V3(0, 1, 0)) // repeated vertex
	m.Idx = append(m.Idx, 0, 1, 99)                                     // bad index

	res := mergeInstances([]Instance{NewInstance(m)}, DefaultOptions().withDefaults())
	if len(res.windings) != 1 {
		t.Errorf("expected 1 winding, got %d", len(res.windings))
	}
	if res.rejected != 3 {
		t.Errorf("expected 3 rejected triangles, got %d", res.rejected)
	}
	if res.triangles != 4 {
		t.Errorf("expected 4 triangles seen, got %d", res.triangles)
	}
}

func TestMergeInstances_Transform(t *testing.T) {
	m := &TriangleMesh{}
	m.AddTriangle(math.V3(0, 0, 0), math.V3(1, 0, 0), math.V3(0, 1, 0))

	inst := Instance{Mesh: m, Transform: math.Translate(0, 0, 5)}
	res := mergeInstances([]Instance{inst}, DefaultOptions().withDefaults())
	if len(res.windings) != 1 {
		t.Fatalf("expected 1 winding, got %d", len(res.windings))
	}
	pl := res.planes.planes[res.windings[0].Plane]
	if pl.Normal != math.V3(0, 0, 1) || pl.Dist != 5 {
		t.Errorf("plane = %v, want z=5 facing up", pl)
	}
	if res.bounds.Min.Z != 5 || res.bounds.Max.X != 1 {
		t.Errorf("bounds = %v", res.bounds)
	}
}

func TestMergeInstances_MirrorKeepsFacing(t *testing.T) {
	m := &TriangleMesh{}
	m.AddTriangle(math.V3(0, 0, 0), math.V3(1, 0, 0), math.V3(0, 1, 0))

	// Mirroring X flips the winding; the surface must still face +z
	inst := Instance{Mesh: m, Transform: math.Scale(-1, 1, 1)}
	res := mergeInstances([]Instance{inst}, DefaultOptions().withDefaults())
	pl := res.planes.planes[res.windings[0].Plane]
	if pl.Normal != math.V3(0, 0, 1) {
		t.Errorf("normal = %v, want +z", pl.Normal)
	}
}

func TestMergeInstances_Weld(t *testing.T) {
	m := &TriangleMesh{}
	m.AddTriangle(math.V3(0, 0, 0), math.V3(1, 0, 0), math.V3(0, 1, 0))
	m.AddTriangle(math.V3(1.00001, 0, 0), math.V3(1, 1, 0), math.V3(0, 1, 0))

	res := mergeInstances([]Instance{NewInstance(m)}, DefaultOptions().withDefaults())
	if len(res.windings) != 2 {
		t.Fatalf("expected 2 windings, got %d", len(res.windings))
	}
	a := res.pool.points(res.windings[0])[1]
	b := res.pool.points(res.windings[1])[0]
	if a != b {
		t.Errorf("welded vertices differ: %v and %v", a, b)
	}
	if res.windings[0].Plane != res.windings[1].Plane {
		t.Errorf("coplanar triangles got planes %d and %d", res.windings[0].Plane, res.windings[1].Plane)
	}
}

func TestAddQuadFacing(t *testing.T) {
	m := &TriangleMesh{}
	m.AddQuadFacing(math.V3(0, 0, 0), math.V3(1, 0, 0), math.V3(1, 1, 0), math.V3(0, 1, 0), math.V3(0, 0, -1))

	if m.TriangleCount() != 2 {
		t.Fatalf("expected 2 triangles, got %d", m.TriangleCount())
	}
	for tri := 0; tri < 2; tri++ {
		a, b, c := m.Verts[m.Idx[tri*3]], m.Verts[m.Idx[tri*3+1]], m.Verts[m.Idx[tri*3+2]]
		pl, ok := math.PlaneFromPoints(a, b, c)
		if !ok || pl.Normal != math.V3(0, 0, -1) {
			t.Errorf("triangle %d normal = %v, want -z", tri, pl.Normal)
		}
	}
}
