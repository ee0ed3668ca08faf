package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-pvs/internal/config"
	"github.com/Faultbox/midgard-pvs/internal/debug"
	"github.com/Faultbox/midgard-pvs/internal/logger"
	"github.com/Faultbox/midgard-pvs/pkg/bsp"
	"github.com/Faultbox/midgard-pvs/pkg/formats"
	"github.com/Faultbox/midgard-pvs/pkg/level"
)

func cmdBuild(args []string) {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	flags := config.RegisterFlags(fs)
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: pvsc build [options] <level.yaml>")
		fs.PrintDefaults()
		os.Exit(1)
	}
	levelPath := fs.Arg(0)

	cfg, err := config.Load(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Sugar.Debugf("Config: %+v", cfg)

	if err := build(levelPath, cfg); err != nil {
		logger.Error("build failed", zap.String("level", levelPath), zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func build(levelPath string, cfg *config.Config) error {
	lvl, err := level.Load(levelPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if cfg.Compiler.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Compiler.Timeout)
		defer cancel()
	}

	log := logger.Named("bsp").With(zap.String("level", lvl.Name))
	start := time.Now()
	tree, err := lvl.Compile(ctx, cfg.BuildOptions(log))
	if errors.Is(err, bsp.ErrLeak) {
		return fmt.Errorf("%w (rerun with -allow-leaks to write the file anyway)", err)
	}
	if err != nil {
		return err
	}

	out := cfg.Output.Path
	if out == "" {
		out = strings.TrimSuffix(levelPath, filepath.Ext(levelPath)) + ".pvs"
	}
	if dir := filepath.Dir(out); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	if err := formats.SavePVSFile(out, tree); err != nil {
		return err
	}

	s := tree.Stats()
	logger.Info("wrote tree",
		zap.String("path", out),
		zap.String("id", tree.ID.String()),
		zap.Int("leaves", s.Leaves),
		zap.Int("portals", s.Portals),
		zap.Int("pvs_bytes", s.PVSBytes),
		zap.Duration("elapsed", time.Since(start)))

	if cfg.Output.RenderPath != "" {
		opts := debug.DefaultRenderOptions()
		opts.Size = cfg.Output.RenderSize
		if err := debug.RenderTopDown(tree, cfg.Output.RenderPath, opts); err != nil {
			return fmt.Errorf("render: %w", err)
		}
		logger.Info("wrote render", zap.String("path", cfg.Output.RenderPath))
	}
	return nil
}
