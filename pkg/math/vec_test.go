package math

import (
	"math"
	"testing"
)

func TestVec3Cross(t *testing.T) {
	x := Vec3{1, 0, 0}
	y := Vec3{0, 1, 0}
	got := x.Cross(y)
	want := Vec3{0, 0, 1}
	if got != want {
		t.Errorf("Vec3.Cross() = %v, want %v", got, want)
	}
}

func TestVec3Normalize(t *testing.T) {
	v := Vec3{3, 4, 12}
	l := v.Normalize().Length()
	if math.Abs(l-1) > 1e-12 {
		t.Errorf("Vec3.Normalize().Length() = %v, want 1", l)
	}
	if z := (Vec3{}).Normalize(); z != (Vec3{}) {
		t.Errorf("zero.Normalize() = %v, want zero", z)
	}
}

func TestVec3Lerp(t *testing.T) {
	got := Vec3{0, 0, 0}.Lerp(Vec3{10, -10, 4}, 0.25)
	want := Vec3{2.5, -2.5, 1}
	if got != want {
		t.Errorf("Vec3.Lerp() = %v, want %v", got, want)
	}
}

func TestPlaneFromPoints(t *testing.T) {
	p, ok := PlaneFromPoints(Vec3{0, 0, 5}, Vec3{1, 0, 5}, Vec3{0, 1, 5})
	if !ok {
		t.Fatal("PlaneFromPoints() rejected a valid triangle")
	}
	if p.Normal != (Vec3{0, 0, 1}) || p.Dist != 5 {
		t.Errorf("PlaneFromPoints() = %+v, want normal +Z dist 5", p)
	}
	if d := p.Distance(Vec3{3, 3, 8}); d != 3 {
		t.Errorf("Distance() = %v, want 3", d)
	}
	if d := p.Flip().Distance(Vec3{3, 3, 8}); d != -3 {
		t.Errorf("Flip().Distance() = %v, want -3", d)
	}

	if _, ok := PlaneFromPoints(Vec3{0, 0, 0}, Vec3{1, 1, 1}, Vec3{2, 2, 2}); ok {
		t.Error("PlaneFromPoints() accepted collinear points")
	}
}

func TestPlaneEqual(t *testing.T) {
	a := Plane{Normal: Vec3{0, 0, 1}, Dist: 10}
	b := Plane{Normal: Vec3{0, 0.000001, 1}, Dist: 10.001}
	if !a.Equal(b, 1e-5, 0.01) {
		t.Error("expected near-identical planes to be equal")
	}
	if a.Equal(a.Flip(), 1e-5, 0.01) {
		t.Error("expected flipped plane to differ")
	}
}

func TestAABB(t *testing.T) {
	b := EmptyAABB()
	if !b.IsEmpty() {
		t.Error("EmptyAABB() should be empty")
	}
	b = b.Extend(Vec3{1, 2, 3}).Extend(Vec3{-1, 0, 5})
	if b.Min != (Vec3{-1, 0, 3}) || b.Max != (Vec3{1, 2, 5}) {
		t.Errorf("Extend() = %+v", b)
	}
	if c := b.Center(); c != (Vec3{0, 1, 4}) {
		t.Errorf("Center() = %v, want (0,1,4)", c)
	}
	for i, pl := range b.Planes() {
		if d := pl.Distance(b.Center()); d <= 0 {
			t.Errorf("plane %d should face inward, distance to centre %v", i, d)
		}
	}
	if !b.Expand(1).Contains(Vec3{1.5, 2.5, 5.5}) {
		t.Error("Expand(1) should contain a point 0.5 outside the original box")
	}
}
