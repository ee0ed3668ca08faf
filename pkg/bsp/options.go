package bsp

import "go.uber.org/zap"

// Options tunes tree construction and PVS compilation.
type Options struct {
	// SplitHeuristic is the cost of splitting one winding, weighed against
	// the front/back count difference when choosing a splitter.
	SplitHeuristic float64
	// SplitterSample caps the number of candidate planes evaluated per
	// node. Zero evaluates every candidate.
	SplitterSample int

	// NormalEpsilon and DistEpsilon decide when two planes are the same.
	NormalEpsilon float64
	DistEpsilon   float64
	// PlaneEpsilon is the on-plane tolerance when classifying and
	// splitting polygons during the build and portal generation.
	PlaneEpsilon float64
	// ClipEpsilon is the on-plane tolerance of the visibility clips.
	// Larger values let more marginal sightlines through.
	ClipEpsilon float64

	// MinTriangleArea rejects degenerate input triangles.
	MinTriangleArea float64
	// WeldEpsilon merges input vertices closer than this.
	WeldEpsilon float64
	// MinPortalArea drops numerically degenerate portal fragments.
	MinPortalArea float64
	// BoundsPadding grows the scene box used to size portals and detect
	// leaks.
	BoundsPadding float64

	// MaxLeaves aborts the build when exceeded. Zero means no limit.
	MaxLeaves int
	// AllowLeaks keeps building when an empty leaf touches the void.
	AllowLeaks bool
	// SkipPVS stops after portal generation.
	SkipPVS bool
	// SkipValidation disables the post-build closure check.
	SkipValidation bool

	// Logger receives progress output. Nil disables logging.
	Logger *zap.Logger
}

// DefaultOptions returns the settings used by the pvsc tool.
func DefaultOptions() Options {
	return Options{
		SplitHeuristic:  17,
		SplitterSample:  256,
		NormalEpsilon:   1e-5,
		DistEpsilon:     0.01,
		PlaneEpsilon:    0.01,
		ClipEpsilon:     0.01,
		MinTriangleArea: 1e-6,
		WeldEpsilon:     1e-4,
		MinPortalArea:   1e-3,
		BoundsPadding:   16,
		MaxLeaves:       1 << 20,
	}
}

// withDefaults fills zero tolerances so a partially filled Options
// still builds.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.SplitHeuristic <= 0 {
		o.SplitHeuristic = d.SplitHeuristic
	}
	if o.SplitterSample < 0 {
		o.SplitterSample = 0
	}
	if o.NormalEpsilon <= 0 {
		o.NormalEpsilon = d.NormalEpsilon
	}
	if o.DistEpsilon <= 0 {
		o.DistEpsilon = d.DistEpsilon
	}
	if o.PlaneEpsilon <= 0 {
		o.PlaneEpsilon = d.PlaneEpsilon
	}
	if o.ClipEpsilon <= 0 {
		o.ClipEpsilon = d.ClipEpsilon
	}
	if o.MinTriangleArea <= 0 {
		o.MinTriangleArea = d.MinTriangleArea
	}
	if o.WeldEpsilon <= 0 {
		o.WeldEpsilon = d.WeldEpsilon
	}
	if o.MinPortalArea <= 0 {
		o.MinPortalArea = d.MinPortalArea
	}
	if o.BoundsPadding <= 0 {
		o.BoundsPadding = d.BoundsPadding
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}
