package bsp

import (
	"testing"

	"github.com/Faultbox/midgard-pvs/pkg/math"
)

func TestPlaneSet_Dedupe(t *testing.T) {
	s := newPlaneSet(1e-5, 0.01)

	a := s.find(math.Plane{Normal: math.V3(0, 0, 1), Dist: 10})
	b := s.find(math.Plane{Normal: math.V3(0, 0, 1), Dist: 10.004})
	if a != b {
		t.Errorf("near-equal planes got ids %d and %d", a, b)
	}

	flipped := s.find(math.Plane{Normal: math.V3(0, 0, -1), Dist: -10})
	if flipped == a {
		t.Errorf("opposite plane shares id %d", a)
	}

	other := s.find(math.Plane{Normal: math.V3(0, 0, 1), Dist: 11})
	if other == a {
		t.Errorf("distinct plane shares id %d", a)
	}

	if len(s.planes) != 3 {
		t.Errorf("expected 3 planes, got %d", len(s.planes))
	}
}

func TestPlaneSet_BucketBoundary(t *testing.T) {
	s := newPlaneSet(1e-5, 0.01)
	// 0.4999 and 0.5049 round into different buckets
	a := s.find(math.Plane{Normal: math.V3(1, 0, 0), Dist: 0.4999})
	b := s.find(math.Plane{Normal: math.V3(1, 0, 0), Dist: 0.5049})
	if a != b {
		t.Errorf("planes across a bucket boundary got ids %d and %d", a, b)
	}
}

func TestPlaneSet_Snap(t *testing.T) {
	s := newPlaneSet(1e-5, 0.01)
	i := s.find(math.Plane{Normal: math.V3(0.000001, 0.9999999, 0), Dist: 4.003})
	got := s.planes[i]
	if got.Normal != math.V3(0, 1, 0) {
		t.Errorf("normal = %v, want axial", got.Normal)
	}
	if got.Dist != 4 {
		t.Errorf("dist = %v, want 4", got.Dist)
	}
}

func TestPlaneSet_Lookup(t *testing.T) {
	s := newPlaneSet(1e-5, 0.01)
	up := s.find(math.Plane{Normal: math.V3(0, 0, 1), Dist: 0})

	if i, ok := s.lookup(math.Plane{Normal: math.V3(0, 0, 1), Dist: 0.004}); !ok || i != up {
		t.Errorf("lookup(near plane) = %d, %v, want %d", i, ok, up)
	}
	if _, ok := s.lookup(s.planes[up].Flip()); ok {
		t.Error("lookup found a flipped plane that was never added")
	}
	if len(s.planes) != 1 {
		t.Errorf("lookup added planes: %d", len(s.planes))
	}
}
