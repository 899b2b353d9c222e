package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/camera"
	"github.com/Carmen-Shannon/oxy-deferred/engine/config"
	"github.com/Carmen-Shannon/oxy-deferred/engine/deferred"
	"github.com/Carmen-Shannon/oxy-deferred/engine/graph"
	"github.com/Carmen-Shannon/oxy-deferred/engine/logger"
	"github.com/Carmen-Shannon/oxy-deferred/engine/profiler"
	"github.com/Carmen-Shannon/oxy-deferred/engine/scene"
	"github.com/Carmen-Shannon/oxy-deferred/engine/window"
)

// engine coordinates the tick, render and window threads around one deferred renderer.
type engine struct {
	mu *sync.Mutex

	window     window.Window
	renderer   deferred.Renderer
	scene      scene.Scene
	frameState camera.FrameState
	log        *zap.Logger

	tickRateChannel chan time.Duration
	engineTickRate  time.Duration
	tickCallback    func(dt time.Duration)

	renderFrameLimit time.Duration
	frameCallback    func(frame uint64, stats graph.FrameStats)

	profiler         *profiler.Profiler
	profilingEnabled bool

	debug          [4]float32
	debugComponent int
	debugStep      float32

	configPath string

	running     bool
	wg          sync.WaitGroup
	quitChannel chan struct{}
	quitOnce    sync.Once
	renderErr   error
}

// Engine runs a scene through a deferred renderer, either in a window or headless.
type Engine interface {
	// Window returns the window, or nil for a headless engine.
	Window() window.Window

	// Renderer returns the deferred renderer.
	Renderer() deferred.Renderer

	// Scene returns the scene being drawn.
	Scene() scene.Scene

	// EnableProfiler turns on the once-per-second frame report.
	EnableProfiler()

	// DisableProfiler turns the frame report off.
	DisableProfiler()

	// SetTickRate sets the scene tick rate. Takes effect immediately on a running engine.
	//
	// Parameters:
	//   - fps: ticks per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetTickCallback registers a function called after each scene tick.
	//
	// Parameters:
	//   - callback: receives the tick delta
	SetTickCallback(callback func(dt time.Duration))

	// SetRenderFrameLimit caps the render loop. Pass 0 to uncap it.
	//
	// Parameters:
	//   - fps: maximum frames per second
	SetRenderFrameLimit(fps float64)

	// HandleKey applies a debug key: 1 to 4 select the debug component, Up and Down change it by the
	// configured step, M toggles motion blur, H cycles the AO mode, R requests a voxel rebuild and
	// Space pauses the light orbit.
	//
	// Parameters:
	//   - keyCode: the key (see common.Key*)
	//
	// Returns:
	//   - bool: true if the key was handled
	HandleKey(keyCode uint32) bool

	// Debug returns the debug parameter vector uploaded with each frame.
	Debug() [4]float32

	// Resize forwards a new output size to the renderer and the camera lens. Zero sizes are ignored.
	//
	// Parameters:
	//   - width, height: output size in pixels
	Resize(width, height int)

	// RenderFrame renders one frame of the current scene state.
	//
	// Parameters:
	//   - ctx: cancellation
	//
	// Returns:
	//   - error: the frame error; a wrapped graph.ErrDeviceLost means the frame was dropped
	RenderFrame(ctx context.Context) error

	// RunFrames renders n frames headless, advancing the scene by dt before each one. after is called
	// with the frame index once each frame has rendered.
	//
	// Parameters:
	//   - ctx: cancellation
	//   - n: frame count
	//   - dt: simulated time per frame
	//   - after: optional per-frame hook; an error stops the run
	//
	// Returns:
	//   - error: the first frame or hook error
	RunFrames(ctx context.Context, n int, dt time.Duration, after func(frame int) error) error

	// Run starts the tick and render goroutines and the window message loop, and blocks until the
	// window closes or ctx is cancelled. A configured config file is hot-reloaded meanwhile.
	//
	// Parameters:
	//   - ctx: cancellation
	//
	// Returns:
	//   - error: the error that stopped the render loop, if any
	Run(ctx context.Context) error

	// Quit stops every engine goroutine. Safe to call more than once.
	Quit()
}

var _ Engine = &engine{}

// NewEngine creates an Engine around a renderer and a scene.
//
// Parameters:
//   - r: the deferred renderer
//   - s: the scene to draw
//   - options: functional options for engine configuration
//
// Returns:
//   - Engine: the engine
func NewEngine(r deferred.Renderer, s scene.Scene, options ...EngineBuilderOption) Engine {
	cfg := r.Config()
	e := &engine{
		mu:              &sync.Mutex{},
		renderer:        r,
		scene:           s,
		frameState:      camera.NewFrameState(),
		log:             logger.Named("engine"),
		tickRateChannel: make(chan time.Duration, 1),
		engineTickRate:  time.Second / 60,
		quitChannel:     make(chan struct{}),
		profiler:        profiler.NewProfiler(time.Second),
		debug:           cfg.Debug.Params,
		debugStep:       cfg.Debug.Step,
	}
	if e.debugStep == 0 {
		e.debugStep = 0.1
	}
	if cfg.Output.TargetFPS > 0 {
		e.renderFrameLimit = time.Second / time.Duration(cfg.Output.TargetFPS)
	}

	for _, opt := range options {
		opt(e)
	}

	if e.window != nil {
		e.window.SetResizeCallback(e.Resize)
		e.window.SetKeyDownCallback(func(keyCode uint32) { e.HandleKey(keyCode) })
	}
	return e
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Renderer() deferred.Renderer {
	return e.renderer
}

func (e *engine) Scene() scene.Scene {
	return e.scene
}

func (e *engine) EnableProfiler() {
	e.mu.Lock()
	e.profilingEnabled = true
	e.mu.Unlock()
}

func (e *engine) DisableProfiler() {
	e.mu.Lock()
	e.profilingEnabled = false
	e.mu.Unlock()
}

func (e *engine) SetTickRate(fps float64) {
	if fps <= 0 {
		fps = 60
	}
	rate := time.Duration(float64(time.Second) / fps)

	e.mu.Lock()
	running := e.running
	e.engineTickRate = rate
	e.mu.Unlock()
	if !running {
		return
	}
	// replace any pending update
	select {
	case <-e.tickRateChannel:
	default:
	}
	select {
	case e.tickRateChannel <- rate:
	default:
	}
}

func (e *engine) SetTickCallback(callback func(dt time.Duration)) {
	e.mu.Lock()
	e.tickCallback = callback
	e.mu.Unlock()
}

func (e *engine) SetRenderFrameLimit(fps float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if fps <= 0 {
		e.renderFrameLimit = 0
		return
	}
	e.renderFrameLimit = time.Duration(float64(time.Second) / fps)
}

func (e *engine) HandleKey(keyCode uint32) bool {
	switch keyCode {
	case common.Key1, common.Key2, common.Key3, common.Key4:
		e.mu.Lock()
		e.debugComponent = int(keyCode - common.Key1)
		e.mu.Unlock()
		e.log.Debug("debug component selected", zap.Int("component", int(keyCode-common.Key1)))
	case common.KeyUp, common.KeyDown:
		e.mu.Lock()
		step := e.debugStep
		if keyCode == common.KeyDown {
			step = -step
		}
		e.debug[e.debugComponent] += step
		v := e.debug[e.debugComponent]
		e.mu.Unlock()
		e.log.Debug("debug parameter changed", zap.Float32("value", v))
	case common.KeyM:
		cfg := e.renderer.Config()
		cfg.MotionBlur.Enabled = !cfg.MotionBlur.Enabled
		e.renderer.SetConfig(cfg)
		e.refreshTitle(cfg)
	case common.KeyH:
		cfg := e.renderer.Config()
		cfg.SSAO.Mode = nextAOMode(cfg.SSAO.Mode)
		e.renderer.SetConfig(cfg)
		e.refreshTitle(cfg)
	case common.KeyR:
		e.renderer.RequestVoxelRebuild()
	case common.KeySpace:
		e.scene.ToggleOrbit()
	default:
		return false
	}
	return true
}

// refreshTitle shows the toggled state in the title bar. Key callbacks run on the message loop.
func (e *engine) refreshTitle(cfg config.Config) {
	if e.window == nil || !e.window.IsRunning() {
		return
	}
	e.window.SetTitle(windowTitle(cfg))
}

func windowTitle(cfg config.Config) string {
	blur := "off"
	if cfg.MotionBlur.Enabled {
		blur = "on"
	}
	return fmt.Sprintf("oxy-deferred | ao %s | motion blur %s", cfg.SSAO.Mode, blur)
}

// nextAOMode cycles kernel, hbao, off.
func nextAOMode(m config.AOMode) config.AOMode {
	switch m {
	case config.AOModeKernel:
		return config.AOModeHBAO
	case config.AOModeHBAO:
		return config.AOModeOff
	default:
		return config.AOModeKernel
	}
}

func (e *engine) Debug() [4]float32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.debug
}

func (e *engine) Resize(width, height int) {
	// minimised windows report zero
	if width <= 0 || height <= 0 {
		return
	}
	e.renderer.Resize(width, height)
	e.scene.Camera().SetAspect(float32(width) / float32(height))
	e.log.Info("output resized", zap.Int("width", width), zap.Int("height", height))
}

func (e *engine) RenderFrame(ctx context.Context) error {
	e.scene.Sync(e.renderer)
	e.scene.Camera().Publish(e.frameState)
	if err := e.renderer.Render(ctx, e.frameState, e.scene.Inputs(e.Debug())); err != nil {
		return err
	}

	stats := e.renderer.Stats()
	e.mu.Lock()
	profiling, cb := e.profilingEnabled, e.frameCallback
	e.mu.Unlock()
	if profiling {
		e.profiler.Tick(stats)
	}
	if cb != nil {
		cb(stats.Frame, stats)
	}
	return nil
}

func (e *engine) RunFrames(ctx context.Context, n int, dt time.Duration, after func(frame int) error) error {
	for i := range n {
		if err := ctx.Err(); err != nil {
			return err
		}
		e.scene.Tick(dt)
		if err := e.RenderFrame(ctx); err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		if after != nil {
			if err := after(i); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *engine) Run(ctx context.Context) error {
	if e.window == nil {
		return errors.New("engine has no window; use RunFrames for headless rendering")
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	e.mu.Lock()
	e.running = true
	e.mu.Unlock()

	e.wg.Add(3)
	go e.handleEngine()
	go e.handleRender(ctx)
	go e.handleQuit(ctx)
	if e.configPath != "" {
		e.wg.Add(1)
		go e.watchConfig(ctx)
	}

	e.window.SetUpdateCallback(func() {
		select {
		case <-e.quitChannel:
			e.window.RequestClose()
		default:
		}
	})
	e.window.ProcessMessages()

	e.Quit()
	cancel()
	e.wg.Wait()
	e.renderer.Close()
	if err := e.window.Close(); err != nil {
		e.log.Warn("window close failed", zap.Error(err))
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.running = false
	return e.renderErr
}

func (e *engine) Quit() {
	e.quitOnce.Do(func() {
		close(e.quitChannel)
	})
}

// handleEngine ticks the scene at the configured rate until quit.
func (e *engine) handleEngine() {
	defer e.wg.Done()

	e.mu.Lock()
	rate := e.engineTickRate
	e.mu.Unlock()
	ticker := time.NewTicker(rate)
	defer ticker.Stop()

	lastTick := time.Now()
	for {
		select {
		case <-e.quitChannel:
			return
		case now := <-ticker.C:
			dt := now.Sub(lastTick)
			lastTick = now
			e.scene.Tick(dt)

			e.mu.Lock()
			cb := e.tickCallback
			e.mu.Unlock()
			if cb != nil {
				cb(dt)
			}
		case rate := <-e.tickRateChannel:
			ticker.Reset(rate)
		}
	}
}

// handleRender renders frames until quit. Dropped frames after device loss are logged and retried;
// any other error or a panic stops the engine.
func (e *engine) handleRender(ctx context.Context) {
	defer e.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("render goroutine recovered from panic", zap.Any("panic", r))
			e.setRenderErr(fmt.Errorf("render panic: %v", r))
			e.Quit()
		}
	}()

	for {
		select {
		case <-e.quitChannel:
			return
		default:
		}

		start := time.Now()
		err := e.RenderFrame(ctx)
		switch {
		case err == nil:
		case errors.Is(err, graph.ErrDeviceLost):
			e.log.Warn("frame dropped after device loss", zap.Error(err))
		case ctx.Err() != nil:
			return
		default:
			e.log.Error("render failed", zap.Error(err))
			e.setRenderErr(err)
			e.Quit()
			return
		}

		e.mu.Lock()
		limit := e.renderFrameLimit
		e.mu.Unlock()
		if limit > 0 {
			if remaining := limit - time.Since(start); remaining > 0 {
				time.Sleep(remaining)
			}
		}
	}
}

// handleQuit turns ctx cancellation into a quit.
func (e *engine) handleQuit(ctx context.Context) {
	defer e.wg.Done()
	select {
	case <-ctx.Done():
		e.Quit()
	case <-e.quitChannel:
	}
}

func (e *engine) watchConfig(ctx context.Context) {
	defer e.wg.Done()
	err := config.Watch(ctx, e.configPath, func(cfg config.Config) {
		e.renderer.SetConfig(cfg)
		e.mu.Lock()
		e.debugStep = cfg.Debug.Step
		if cfg.Output.TargetFPS > 0 {
			e.renderFrameLimit = time.Second / time.Duration(cfg.Output.TargetFPS)
		} else {
			e.renderFrameLimit = 0
		}
		e.mu.Unlock()
	})
	if err != nil {
		e.log.Warn("config hot reload disabled", zap.String("path", e.configPath), zap.Error(err))
	}
}

func (e *engine) setRenderErr(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.renderErr == nil {
		e.renderErr = err
	}
}
