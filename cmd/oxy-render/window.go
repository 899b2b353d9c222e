package main

import (
	"fmt"
	"os"
	"os/signal"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/Carmen-Shannon/oxy-deferred/engine"
	"github.com/Carmen-Shannon/oxy-deferred/engine/config"
	"github.com/Carmen-Shannon/oxy-deferred/engine/deferred"
	"github.com/Carmen-Shannon/oxy-deferred/engine/deferred/gpu"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer"
	"github.com/Carmen-Shannon/oxy-deferred/engine/scene"
	"github.com/Carmen-Shannon/oxy-deferred/engine/window"
)

func init() {
	// GLFW must run on the main thread.
	runtime.LockOSThread()
}

type windowOptions struct {
	fallback bool
	profile  bool
	fps      float64
}

func newWindowCommand(root *rootOptions) *cobra.Command {
	opts := &windowOptions{}
	cmd := &cobra.Command{
		Use:   "window",
		Short: "Open a window and render the demo scene on the GPU",
		Long: "Keys: 1-4 select a debug parameter, Up/Down change it, M toggles motion blur, " +
			"H cycles the AO mode, R rebuilds the voxel lightmap, Space pauses the light, Esc quits.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			return runWindow(cmd, cfg, root.configPath, opts)
		},
	}
	f := cmd.Flags()
	f.BoolVar(&opts.fallback, "fallback-adapter", false, "force the software WebGPU adapter")
	f.BoolVar(&opts.profile, "profile", true, "log frame statistics once per second")
	f.Float64Var(&opts.fps, "fps", 0, "frame rate cap, overrides the configuration")
	return cmd
}

func runWindow(cmd *cobra.Command, cfg config.Config, configPath string, opts *windowOptions) error {
	cfg.Output.Backend = "wgpu"
	win, err := window.NewWindow(
		window.WithTitle("oxy-render"),
		window.WithSize(cfg.Output.Width, cfg.Output.Height),
	)
	if err != nil {
		return err
	}
	// the framebuffer can be larger than requested on high-DPI displays
	cfg.Output.Width, cfg.Output.Height = win.Width(), win.Height()

	r, err := renderer.NewRenderer(renderer.BackendTypeWGPU, win,
		renderer.WithPresentMode(renderer.PresentModeFor(cfg.Output.VSync)),
		renderer.WithForceSoftwareRenderer(opts.fallback),
	)
	if err != nil {
		_ = win.Close()
		return fmt.Errorf("failed to create gpu renderer: %w", err)
	}
	defer r.Release()
	backend, err := gpu.NewBackend(r, cfg)
	if err != nil {
		_ = win.Close()
		return err
	}
	defer backend.Release()

	dr, err := deferred.NewRenderer(backend, cfg)
	if err != nil {
		_ = win.Close()
		return err
	}

	engineOpts := []engine.EngineBuilderOption{
		engine.WithWindow(win),
		engine.WithProfiling(opts.profile),
	}
	if opts.fps > 0 {
		engineOpts = append(engineOpts, engine.WithRenderFrameLimit(opts.fps))
	}
	if configPath != "" {
		engineOpts = append(engineOpts, engine.WithConfigWatch(configPath))
	}
	e := engine.NewEngine(dr, scene.Demo(cfg, float32(cfg.Output.Width)/float32(cfg.Output.Height)), engineOpts...)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	return e.Run(ctx)
}
