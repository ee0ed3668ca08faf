package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Faultbox/midgard-pvs/pkg/bsp"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	d := bsp.DefaultOptions()

	if cfg.Compiler.SplitHeuristic != d.SplitHeuristic {
		t.Errorf("expected split heuristic %v, got %v", d.SplitHeuristic, cfg.Compiler.SplitHeuristic)
	}
	if cfg.Compiler.ClipEpsilon != d.ClipEpsilon {
		t.Errorf("expected clip epsilon %v, got %v", d.ClipEpsilon, cfg.Compiler.ClipEpsilon)
	}
	if cfg.Compiler.MaxLeaves != d.MaxLeaves {
		t.Errorf("expected max leaves %d, got %d", d.MaxLeaves, cfg.Compiler.MaxLeaves)
	}
	if cfg.Compiler.AllowLeaks {
		t.Error("expected allow_leaks to be false by default")
	}
	if cfg.Compiler.Timeout != 0 {
		t.Errorf("expected no timeout, got %v", cfg.Compiler.Timeout)
	}
	if cfg.Output.RenderSize != 1024 {
		t.Errorf("expected render size 1024, got %d", cfg.Output.RenderSize)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level 'info', got %s", cfg.Logging.Level)
	}
	if cfg.Logging.LogFile != "" {
		t.Errorf("expected empty log file, got %s", cfg.Logging.LogFile)
	}
}

func TestBuildOptions(t *testing.T) {
	cfg := Default()
	cfg.Compiler.AllowLeaks = true
	cfg.Compiler.ClipEpsilon = 0.5

	opts := cfg.BuildOptions(nil)
	if !opts.AllowLeaks {
		t.Error("expected AllowLeaks to carry over")
	}
	if opts.ClipEpsilon != 0.5 {
		t.Errorf("expected clip epsilon 0.5, got %v", opts.ClipEpsilon)
	}
	if opts.SplitterSample != bsp.DefaultOptions().SplitterSample {
		t.Errorf("expected splitter sample %d, got %d", bsp.DefaultOptions().SplitterSample, opts.SplitterSample)
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "pvsc.yaml")

	yamlContent := `
compiler:
  split_heuristic: 8
  clip_epsilon: 0.1
  max_leaves: 5000
  allow_leaks: true
  timeout: 30s

output:
  path: "out/level.pvs"
  render_size: 512

logging:
  level: "debug"
  log_file: "pvsc.log"
`

	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Compiler.SplitHeuristic != 8 {
		t.Errorf("expected split heuristic 8, got %v", cfg.Compiler.SplitHeuristic)
	}
	if cfg.Compiler.ClipEpsilon != 0.1 {
		t.Errorf("expected clip epsilon 0.1, got %v", cfg.Compiler.ClipEpsilon)
	}
	if cfg.Compiler.MaxLeaves != 5000 {
		t.Errorf("expected max leaves 5000, got %d", cfg.Compiler.MaxLeaves)
	}
	if !cfg.Compiler.AllowLeaks {
		t.Error("expected allow_leaks to be true")
	}
	if cfg.Compiler.Timeout != 30*time.Second {
		t.Errorf("expected timeout 30s, got %v", cfg.Compiler.Timeout)
	}
	// Untouched keys keep their defaults.
	if cfg.Compiler.PlaneEpsilon != bsp.DefaultOptions().PlaneEpsilon {
		t.Errorf("expected default plane epsilon, got %v", cfg.Compiler.PlaneEpsilon)
	}
	if cfg.Output.Path != "out/level.pvs" {
		t.Errorf("expected output path out/level.pvs, got %s", cfg.Output.Path)
	}
	if cfg.Output.RenderSize != 512 {
		t.Errorf("expected render size 512, got %d", cfg.Output.RenderSize)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
	}
	if cfg.Logging.LogFile != "pvsc.log" {
		t.Errorf("expected log file 'pvsc.log', got %s", cfg.Logging.LogFile)
	}
}

func TestLoadFromFileInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad syntax", "compiler:\n  max_leaves: not a number\n  invalid syntax here\n"},
		{"unknown key", "compiler:\n  split_heuristics: 3\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), "invalid.yaml")
			if err := os.WriteFile(configPath, []byte(tt.content), 0644); err != nil {
				t.Fatalf("failed to write test config: %v", err)
			}
			if err := loadFromFile(Default(), configPath); err == nil {
				t.Error("expected error loading invalid YAML, got nil")
			}
		})
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg := Default()
	err := loadFromFile(cfg, "/nonexistent/path/pvsc.yaml")
	if err == nil {
		t.Error("expected error loading missing file, got nil")
	}
}

func TestConfigDir(t *testing.T) {
	dir := ConfigDir()

	if dir == "" {
		t.Error("ConfigDir returned empty string")
	}
	if !filepath.IsAbs(dir) {
		t.Errorf("ConfigDir should return absolute path, got %s", dir)
	}
}

func TestFindConfigFile(t *testing.T) {
	origDir, _ := os.Getwd()
	defer os.Chdir(origDir)

	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)
	t.Setenv("HOME", tmpDir)
	os.Chdir(tmpDir)

	path := findConfigFile()
	if path != "" {
		t.Errorf("expected empty path when no config exists, got %s", path)
	}

	configPath := filepath.Join(tmpDir, "pvsc.yaml")
	if err := os.WriteFile(configPath, []byte("compiler:\n  max_leaves: 10\n"), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}

	path = findConfigFile()
	if path == "" {
		t.Error("expected to find pvsc.yaml in current directory")
	}
}

func TestApplyFlags(t *testing.T) {
	tests := []struct {
		name   string
		args   []string
		verify func(*testing.T, *Config)
	}{
		{
			name: "debug flag",
			args: []string{"-debug"},
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Logging.Level != "debug" {
					t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
				}
			},
		},
		{
			name: "output flags",
			args: []string{"-o", "a.pvs", "-png", "a.png"},
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Output.Path != "a.pvs" {
					t.Errorf("expected output a.pvs, got %s", cfg.Output.Path)
				}
				if cfg.Output.RenderPath != "a.png" {
					t.Errorf("expected render path a.png, got %s", cfg.Output.RenderPath)
				}
			},
		},
		{
			name: "compiler flags",
			args: []string{"-allow-leaks", "-skip-pvs", "-clip-epsilon", "0.25", "-max-leaves", "64"},
			verify: func(t *testing.T, cfg *Config) {
				if !cfg.Compiler.AllowLeaks {
					t.Error("expected allow_leaks with -allow-leaks")
				}
				if !cfg.Compiler.SkipPVS {
					t.Error("expected skip_pvs with -skip-pvs")
				}
				if cfg.Compiler.ClipEpsilon != 0.25 {
					t.Errorf("expected clip epsilon 0.25, got %v", cfg.Compiler.ClipEpsilon)
				}
				if cfg.Compiler.MaxLeaves != 64 {
					t.Errorf("expected max leaves 64, got %d", cfg.Compiler.MaxLeaves)
				}
			},
		},
		{
			name: "no flags",
			args: nil,
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Compiler.AllowLeaks || cfg.Compiler.SkipPVS {
					t.Error("expected defaults without flags")
				}
				if cfg.Logging.Level != "info" {
					t.Errorf("expected log level 'info', got %s", cfg.Logging.Level)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := flag.NewFlagSet("test", flag.ContinueOnError)
			f := RegisterFlags(fs)
			if err := fs.Parse(tt.args); err != nil {
				t.Fatalf("Parse failed: %v", err)
			}

			cfg := Default()
			f.apply(cfg)
			tt.verify(t, cfg)
		})
	}
}

func TestLoadPriority(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "pvsc.yaml")

	yamlContent := `
compiler:
  clip_epsilon: 0.1
  max_leaves: 100
`

	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	f := RegisterFlags(fs)
	if err := fs.Parse([]string{"-config", configPath, "-max-leaves", "200"}); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	cfg, err := Load(f)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Compiler.MaxLeaves != 200 {
		t.Errorf("expected max leaves 200 from flag, got %d", cfg.Compiler.MaxLeaves)
	}
	if cfg.Compiler.ClipEpsilon != 0.1 {
		t.Errorf("expected clip epsilon 0.1 from file, got %v", cfg.Compiler.ClipEpsilon)
	}
}

func TestSaveTo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "pvsc.yaml")

	cfg := Default()
	cfg.Compiler.SplitHeuristic = 4
	cfg.Output.RenderPath = "top.png"
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo failed: %v", err)
	}

	loaded := Default()
	if err := loadFromFile(loaded, path); err != nil {
		t.Fatalf("failed to reload config: %v", err)
	}
	if loaded.Compiler.SplitHeuristic != 4 {
		t.Errorf("expected split heuristic 4, got %v", loaded.Compiler.SplitHeuristic)
	}
	if loaded.Output.RenderPath != "top.png" {
		t.Errorf("expected render path top.png, got %s", loaded.Output.RenderPath)
	}
}
