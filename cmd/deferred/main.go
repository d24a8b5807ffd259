// Copyright 2024 Gustavo C. Viegas. All rights reserved.

// Deferred renders a small demo scene for a number of
// frames, or until interrupted.
//
// Usage:
//
//	deferred [-config file] [-frames n] [-interval d] [-profile cpu|mem] [-driver name]
//
// When -config is given, the file is watched and every
// valid change is applied between frames.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/profile"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gviegas/deferred/driver"
	"github.com/gviegas/deferred/driver/headless"
	"github.com/gviegas/deferred/engine"
	"github.com/gviegas/deferred/internal/logging"
	"github.com/gviegas/deferred/scene"
)

var (
	configFlag   = flag.String("config", "", "YAML configuration `file`")
	framesFlag   = flag.Int("frames", 0, "number of frames to render (0 means until interrupted)")
	intervalFlag = flag.Duration("interval", 16*time.Millisecond, "minimum time between frames")
	profileFlag  = flag.String("profile", "", "write a \"cpu\" or \"mem\" profile to the working directory")
	driverFlag   = flag.String("driver", headless.Name, "name of the GPU driver")
)

// How often frame statistics are logged.
const statsEvery = 120

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "deferred:", err)
		os.Exit(1)
	}
}

func run() (err error) {
	cfg := engine.DefaultConfig()
	if *configFlag != "" {
		if cfg, err = engine.LoadConfigFile(*configFlag); err != nil {
			return
		}
	}

	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		return
	}
	logging.Set(log)
	defer func() {
		logging.Set(nil)
		_ = log.Sync()
	}()

	switch *profileFlag {
	case "":
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.Quiet, profile.NoShutdownHook).Stop()
	case "mem":
		defer profile.Start(profile.MemProfile, profile.ProfilePath("."), profile.Quiet, profile.NoShutdownHook).Stop()
	default:
		return fmt.Errorf("unknown profile %q", *profileFlag)
	}

	drv, gpu, err := driver.Open(*driverFlag)
	if err != nil {
		return fmt.Errorf("driver %q: %w", *driverFlag, err)
	}
	defer drv.Close()

	sf := headless.NewSurface(cfg.Width, cfg.Height)
	r, err := engine.New(gpu, sf, cfg)
	if err != nil {
		return
	}
	defer func() { err = multierr.Append(err, r.Free()) }()

	s, err := demoScene(r)
	if err != nil {
		return
	}
	log.Info("scene ready",
		zap.Stringer("scene", s.ID()),
		zap.Int("entities", s.Len()),
		zap.String("driver", drv.Name()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	reload := make(chan engine.Config, 1)
	if *configFlag != "" {
		g.Go(func() error { return watch(ctx, *configFlag, reload) })
	}
	g.Go(func() error {
		defer cancel()
		return loop(ctx, r, sf, s, reload)
	})
	return g.Wait()
}

// loop renders frames until ctx is done or the frame count
// given by -frames is reached.
func loop(ctx context.Context, r *engine.Renderer, sf *headless.Surface, s *scene.Scene, reload <-chan engine.Config) error {
	tick := time.NewTicker(*intervalFlag)
	defer tick.Stop()
	start := time.Now()
	for n := 0; *framesFlag <= 0 || n < *framesFlag; n++ {
		select {
		case <-ctx.Done():
			return nil
		case cfg := <-reload:
			if err := apply(r, sf, cfg); err != nil {
				return err
			}
		case <-tick.C:
		}

		animate(s, time.Since(start))
		if err := frame(r, s); err != nil {
			return err
		}
		if st := r.Stats(); st.Frame%statsEvery == 0 {
			logging.L().Debug("frame stats",
				zap.Int64("frame", st.Frame),
				zap.Int("drawables", st.Drawables),
				zap.Int("skipped", st.Skipped),
				zap.Int("lights", st.Lights),
				zap.Int("shadows", st.Shadows),
				zap.Int("dropped_shadows", st.DroppedShadows),
				zap.Int("sets_allocated", st.SetsAllocated),
				zap.Int("sets_reused", st.SetsReused))
		}
	}
	logging.L().Info("done", zap.Int64("frames", r.Stats().Frame), zap.Duration("elapsed", time.Since(start)))
	return nil
}

// frame renders a single frame.
// A failed Render still presents, so that the frame slot
// is not lost.
func frame(r *engine.Renderer, s *scene.Scene) error {
	if err := r.BeginFrame(); err != nil {
		return err
	}
	if err := r.Render(s); err != nil {
		if !errors.Is(err, engine.ErrShadowOverflow) {
			return multierr.Append(err, r.EndFrame())
		}
		logging.L().Warn("render failed", zap.Error(err))
	}
	return r.EndFrame()
}

// apply resizes the surface and rebuilds the renderer.
func apply(r *engine.Renderer, sf *headless.Surface, cfg engine.Config) error {
	old := r.Config()
	if cfg.Width != old.Width || cfg.Height != old.Height {
		sf.Resize(cfg.Width, cfg.Height)
	}
	if err := r.Rebuild(cfg); err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	w, h := r.Extent()
	logging.L().Info("configuration reloaded", zap.Int("width", w), zap.Int("height", h))
	return nil
}
