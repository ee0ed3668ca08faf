package bsp

import (
	gomath "math"

	"github.com/Faultbox/midgard-pvs/pkg/math"
)

// planeSet deduplicates planes by normal and distance. Entries are bucketed
// by rounded distance so lookups only compare against near neighbours.
type planeSet struct {
	planes    []math.Plane
	buckets   map[int64][]int32
	normalEps float64
	distEps   float64
}

func newPlaneSet(normalEps, distEps float64) *planeSet {
	return &planeSet{
		buckets:   make(map[int64][]int32),
		normalEps: normalEps,
		distEps:   distEps,
	}
}

// find returns the index of pl, adding it if no equal plane exists.
// Opposite-facing planes are separate entries.
func (s *planeSet) find(pl math.Plane) int32 {
	pl = s.snap(pl)
	if i, ok := s.lookup(pl); ok {
		return i
	}
	key := int64(gomath.Floor(pl.Dist + 0.5))
	i := int32(len(s.planes))
	s.planes = append(s.planes, pl)
	s.buckets[key] = append(s.buckets[key], i)
	return i
}

// lookup returns the index of an existing plane equal to the snapped pl.
func (s *planeSet) lookup(pl math.Plane) (int32, bool) {
	key := int64(gomath.Floor(pl.Dist + 0.5))
	for k := key - 1; k <= key+1; k++ {
		for _, i := range s.buckets[k] {
			if s.planes[i].Equal(pl, s.normalEps, s.distEps) {
				return i, true
			}
		}
	}
	return -1, false
}

// snap makes near-axial normals exactly axial and rounds distances that
// sit within tolerance of an integer.
func (s *planeSet) snap(pl math.Plane) math.Plane {
	for axis := 0; axis < 3; axis++ {
		c := pl.Normal.Axis(axis)
		if gomath.Abs(gomath.Abs(c)-1) < s.normalEps {
			var n math.Vec3
			switch axis {
			case 0:
				n.X = gomath.Copysign(1, c)
			case 1:
				n.Y = gomath.Copysign(1, c)
			default:
				n.Z = gomath.Copysign(1, c)
			}
			pl.Normal = n
			break
		}
	}
	if r := gomath.Round(pl.Dist); gomath.Abs(pl.Dist-r) < s.distEps {
		pl.Dist = r
	}
	return pl
}
