package config

import "flag"

// Flags holds the command-line overrides shared by pvsc subcommands.
type Flags struct {
	config      *string
	debug       *bool
	out         *string
	png         *string
	allowLeaks  *bool
	skipPVS     *bool
	clipEpsilon *float64
	maxLeaves   *int
	logFile     *string
}

// RegisterFlags adds the config overrides to fs.
func RegisterFlags(fs *flag.FlagSet) *Flags {
	return &Flags{
		config:      fs.String("config", "", "Path to config file"),
		debug:       fs.Bool("debug", false, "Enable debug logging"),
		out:         fs.String("o", "", "Output .pvs path"),
		png:         fs.String("png", "", "Write a top-down debug PNG"),
		allowLeaks:  fs.Bool("allow-leaks", false, "Continue when the level leaks"),
		skipPVS:     fs.Bool("skip-pvs", false, "Stop after portal generation"),
		clipEpsilon: fs.Float64("clip-epsilon", 0, "Visibility clip tolerance"),
		maxLeaves:   fs.Int("max-leaves", 0, "Abort when the tree exceeds this many leaves"),
		logFile:     fs.String("log-file", "", "Also write logs to this file"),
	}
}

// ConfigPath returns the explicit config path if provided via -config.
func (f *Flags) ConfigPath() string {
	if f == nil {
		return ""
	}
	return *f.config
}

// apply applies CLI flag overrides to the config.
func (f *Flags) apply(cfg *Config) {
	if f == nil {
		return
	}
	if *f.debug {
		cfg.Logging.Level = "debug"
	}
	if *f.out != "" {
		cfg.Output.Path = *f.out
	}
	if *f.png != "" {
		cfg.Output.RenderPath = *f.png
	}
	if *f.allowLeaks {
		cfg.Compiler.AllowLeaks = true
	}
	if *f.skipPVS {
		cfg.Compiler.SkipPVS = true
	}
	if *f.clipEpsilon > 0 {
		cfg.Compiler.ClipEpsilon = *f.clipEpsilon
	}
	if *f.maxLeaves > 0 {
		cfg.Compiler.MaxLeaves = *f.maxLeaves
	}
	if *f.logFile != "" {
		cfg.Logging.LogFile = *f.logFile
	}
}
