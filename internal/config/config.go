// Package config handles pvsc configuration loading and management.
package config

import (
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-pvs/pkg/bsp"
)

// Config holds all compiler settings.
type Config struct {
	Compiler CompilerConfig `yaml:"compiler"`
	Output   OutputConfig   `yaml:"output"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// CompilerConfig holds BSP and PVS tuning.
type CompilerConfig struct {
	SplitHeuristic  float64       `yaml:"split_heuristic"`
	SplitterSample  int           `yaml:"splitter_sample"`
	NormalEpsilon   float64       `yaml:"normal_epsilon"`
	DistEpsilon     float64       `yaml:"dist_epsilon"`
	PlaneEpsilon    float64       `yaml:"plane_epsilon"`
	ClipEpsilon     float64       `yaml:"clip_epsilon"`
	MinTriangleArea float64       `yaml:"min_triangle_area"`
	WeldEpsilon     float64       `yaml:"weld_epsilon"`
	MinPortalArea   float64       `yaml:"min_portal_area"`
	BoundsPadding   float64       `yaml:"bounds_padding"`
	MaxLeaves       int           `yaml:"max_leaves"`
	AllowLeaks      bool          `yaml:"allow_leaks"`
	SkipPVS         bool          `yaml:"skip_pvs"`
	SkipValidation  bool          `yaml:"skip_validation"`
	Timeout         time.Duration `yaml:"timeout"` // 0 = no limit
}

// OutputConfig holds output file settings.
type OutputConfig struct {
	Path       string `yaml:"path"`        // .pvs output; empty derives it from the level file
	RenderPath string `yaml:"render_path"` // optional top-down PNG
	RenderSize int    `yaml:"render_size"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	o := bsp.DefaultOptions()
	return &Config{
		Compiler: CompilerConfig{
			SplitHeuristic:  o.SplitHeuristic,
			SplitterSample:  o.SplitterSample,
			NormalEpsilon:   o.NormalEpsilon,
			DistEpsilon:     o.DistEpsilon,
			PlaneEpsilon:    o.PlaneEpsilon,
			ClipEpsilon:     o.ClipEpsilon,
			MinTriangleArea: o.MinTriangleArea,
			WeldEpsilon:     o.WeldEpsilon,
			MinPortalArea:   o.MinPortalArea,
			BoundsPadding:   o.BoundsPadding,
			MaxLeaves:       o.MaxLeaves,
		},
		Output: OutputConfig{
			RenderSize: 1024,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// BuildOptions converts the compiler section into bsp.Options.
func (c *Config) BuildOptions(log *zap.Logger) bsp.Options {
	cc := c.Compiler
	return bsp.Options{
		SplitHeuristic:  cc.SplitHeuristic,
		SplitterSample:  cc.SplitterSample,
		NormalEpsilon:   cc.NormalEpsilon,
		DistEpsilon:     cc.DistEpsilon,
		PlaneEpsilon:    cc.PlaneEpsilon,
		ClipEpsilon:     cc.ClipEpsilon,
		MinTriangleArea: cc.MinTriangleArea,
		WeldEpsilon:     cc.WeldEpsilon,
		MinPortalArea:   cc.MinPortalArea,
		BoundsPadding:   cc.BoundsPadding,
		MaxLeaves:       cc.MaxLeaves,
		AllowLeaks:      cc.AllowLeaks,
		SkipPVS:         cc.SkipPVS,
		SkipValidation:  cc.SkipValidation,
		Logger:          log,
	}
}
