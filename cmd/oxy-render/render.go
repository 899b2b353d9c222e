package main

import (
	"context"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Carmen-Shannon/oxy-deferred/engine"
	"github.com/Carmen-Shannon/oxy-deferred/engine/config"
	"github.com/Carmen-Shannon/oxy-deferred/engine/deferred"
	"github.com/Carmen-Shannon/oxy-deferred/engine/deferred/software"
	"github.com/Carmen-Shannon/oxy-deferred/engine/frame"
	"github.com/Carmen-Shannon/oxy-deferred/engine/logger"
	"github.com/Carmen-Shannon/oxy-deferred/engine/scene"
)

type renderOptions struct {
	out     string
	frames  int
	dt      time.Duration
	width   int
	height  int
	dumps   bool
	aoMode  string
	profile bool
}

func newRenderCommand(root *rootOptions) *cobra.Command {
	opts := &renderOptions{}
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render the demo scene on the CPU and write PNG and TIFF files",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			return runRender(cmd.Context(), cfg, opts)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.out, "out", "o", "out", "output directory")
	f.IntVarP(&opts.frames, "frames", "n", 1, "frames to render; each one is written")
	f.DurationVar(&opts.dt, "dt", time.Second/30, "simulated time between frames")
	f.IntVar(&opts.width, "width", 0, "output width, overrides the configuration")
	f.IntVar(&opts.height, "height", 0, "output height, overrides the configuration")
	f.BoolVar(&opts.dumps, "dumps", true, "write G-buffer and occlusion TIFF dumps of the last frame")
	f.StringVar(&opts.aoMode, "ao", "", "ambient occlusion mode: kernel, hbao or off")
	f.BoolVar(&opts.profile, "profile", false, "log pass timings")
	return cmd
}

func runRender(ctx context.Context, cfg config.Config, opts *renderOptions) error {
	log := logger.Named("render")
	cfg.Output.Backend = "software"
	if opts.width > 0 {
		cfg.Output.Width = opts.width
	}
	if opts.height > 0 {
		cfg.Output.Height = opts.height
	}
	if opts.aoMode != "" {
		cfg.SSAO.Mode = config.AOMode(opts.aoMode)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(opts.out, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", opts.out, err)
	}

	backend, err := software.NewBackend(cfg)
	if err != nil {
		return err
	}
	defer backend.Close()
	r, err := deferred.NewRenderer(backend, cfg)
	if err != nil {
		return err
	}
	defer r.Close()

	s := scene.Demo(cfg, float32(cfg.Output.Width)/float32(cfg.Output.Height))
	e := engine.NewEngine(r, s, engine.WithProfiling(opts.profile))

	start := time.Now()
	err = e.RunFrames(ctx, opts.frames, opts.dt, func(i int) error {
		path := filepath.Join(opts.out, fmt.Sprintf("frame_%04d.png", i))
		if err := writePNG(path, backend); err != nil {
			return err
		}
		log.Debug("frame written", zap.String("path", path), zap.Duration("frame", r.Stats().Total))
		return nil
	})
	if err != nil {
		return err
	}
	log.Info("render finished",
		zap.Int("frames", opts.frames),
		zap.Duration("elapsed", time.Since(start)),
		zap.String("out", opts.out),
	)

	if !opts.dumps {
		return nil
	}
	return writeDumps(opts.out, cfg, backend)
}

func writePNG(path string, b software.Backend) error {
	img := b.Image()
	if img == nil {
		return fmt.Errorf("no frame to write")
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return f.Close()
}

// writeDumps stores the last frame's attachments, occlusion and colour as TIFF.
func writeDumps(dir string, cfg config.Config, b software.Backend) error {
	ext := max(cfg.Voxel.Extents[0], cfg.Voxel.Extents[1], cfg.Voxel.Extents[2])
	if g := b.GBuffer(); g != nil {
		if err := frame.DumpGBuffer(dir, g, ext); err != nil {
			return err
		}
	}
	if ao := b.AO(); ao != nil {
		if err := frame.WriteTIFFFile(filepath.Join(dir, "ao.tiff"), frame.ToGray16(ao, frame.Identity)); err != nil {
			return err
		}
	}
	if img := b.Image(); img != nil {
		if err := frame.WriteTIFFFile(filepath.Join(dir, "color.tiff"), img); err != nil {
			return err
		}
	}
	return nil
}
