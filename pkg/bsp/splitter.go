package bsp

import (
	gomath "math"

	"go.uber.org/zap"
)

// splitScore is the outcome of classifying a winding list against one
// candidate plane.
type splitScore struct {
	splits int
	front  int
	back   int
	cost   float64
}

func (s splitScore) balance() int {
	d := s.front - s.back
	if d < 0 {
		return -d
	}
	return d
}

// better reports whether s beats o. Equal scores keep the earlier
// candidate so builds are reproducible.
func (s splitScore) better(o splitScore) bool {
	if s.cost != o.cost {
		return s.cost < o.cost
	}
	if s.splits != o.splits {
		return s.splits < o.splits
	}
	return s.balance() < o.balance()
}

// selectSplitter picks the winding whose plane best divides list. It
// returns -1 when every winding has already been used as a splitter.
//
// cost = SplitHeuristic*splits + |front-back|
func (b *builder) selectSplitter(list []int32) int32 {
	candidates := make([]int32, 0, len(list))
	seen := make(map[int32]bool)
	for _, wi := range list {
		w := &b.windings[wi]
		if w.Used || seen[w.Plane] {
			continue
		}
		seen[w.Plane] = true
		candidates = append(candidates, wi)
	}
	if len(candidates) == 0 {
		return -1
	}

	// Evenly stride over large candidate sets
	if n := b.opts.SplitterSample; n > 0 && len(candidates) > n {
		sampled := make([]int32, n)
		for i := range sampled {
			sampled[i] = candidates[i*len(candidates)/n]
		}
		candidates = sampled
	}

	best := int32(-1)
	var bestScore splitScore
	bestScore.cost = gomath.Inf(1)

	for _, ci := range candidates {
		planeNum := b.windings[ci].Plane
		pl := b.planes.planes[planeNum]

		var s splitScore
		pruned := false
		for _, wi := range list {
			w := &b.windings[wi]
			if w.Plane == planeNum {
				s.front++
				continue
			}
			switch classifyPolygon(b.pool.points(*w), pl, b.opts.PlaneEpsilon) {
			case sideFront:
				s.front++
			case sideBack:
				s.back++
			case sideOn:
				if b.planes.planes[w.Plane].Normal.Dot(pl.Normal) > 0 {
					s.front++
				} else {
					s.back++
				}
			case sideSpan:
				s.splits++
				s.front++
				s.back++
				// Already worse than the best
				if float64(s.splits)*b.opts.SplitHeuristic > bestScore.cost {
					pruned = true
				}
			}
			if pruned {
				break
			}
		}
		if pruned {
			continue
		}

		s.cost = b.opts.SplitHeuristic*float64(s.splits) + float64(s.balance())
		if best < 0 || s.better(bestScore) {
			best = ci
			bestScore = s
		}
	}

	b.log.Debug("splitter selected",
		zap.Int("candidates", len(candidates)),
		zap.Int("splits", bestScore.splits),
		zap.Int("front", bestScore.front),
		zap.Int("back", bestScore.back))
	return best
}
