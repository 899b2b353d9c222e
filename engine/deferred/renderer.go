package deferred

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Carmen-Shannon/oxy-deferred/engine/camera"
	"github.com/Carmen-Shannon/oxy-deferred/engine/config"
	"github.com/Carmen-Shannon/oxy-deferred/engine/graph"
	"github.com/Carmen-Shannon/oxy-deferred/engine/logger"
)

type rendererImpl struct {
	mu *sync.Mutex

	backend Backend
	graph   graph.Orchestrator
	log     *zap.Logger
	now     func() time.Time
	gopts   []graph.OrchestratorBuilderOption

	cfg         config.Config
	rebuild     atomic.Bool
	lastRebuild time.Time
	rebuilt     bool
}

// Renderer drives the deferred pipeline one frame at a time.
type Renderer interface {
	// Render runs every pass once for the given camera and scene inputs. After a successful frame
	// the camera's previous-frame matrices advance, so they always lag by exactly one consumed frame.
	//
	// Parameters:
	//   - ctx: cancellation
	//   - cam: the camera state; Render calls EndFrame on it after success
	//   - in: lights, batches and debug parameters; Camera, Config and VoxelRebuild are filled in
	//
	// Returns:
	//   - error: the frame error; a wrapped graph.ErrDeviceLost means the frame was dropped and can be retried
	Render(ctx context.Context, cam camera.FrameState, in FrameInputs) error

	// Resize requests a new output size for the next frame. Safe from any goroutine.
	//
	// Parameters:
	//   - width, height: output size in pixels
	Resize(width, height int)

	// RequestVoxelRebuild latches a lightmap rebuild. The next frame allowed by the rebuild
	// interval consumes it; repeated requests before then collapse into one.
	RequestVoxelRebuild()

	// SetConfig swaps the configuration used from the next frame on. Changes to lighting or voxel
	// settings request a rebuild.
	//
	// Parameters:
	//   - cfg: a validated configuration
	SetConfig(cfg config.Config)

	// Config returns the active configuration.
	//
	// Returns:
	//   - config.Config: the configuration
	Config() config.Config

	// Stats returns the statistics of the most recent frame.
	//
	// Returns:
	//   - graph.FrameStats: pass timings and counters
	Stats() graph.FrameStats

	// Order returns the pass names in execution order.
	//
	// Returns:
	//   - []string: pass names
	Order() []string

	// Close drains the backend and releases every resource.
	Close()
}

var _ Renderer = &rendererImpl{}

// NewRenderer builds and compiles the pipeline graph for a backend.
//
// Parameters:
//   - backend: executes the passes
//   - cfg: initial configuration; its output size is the initial resolution
//   - options: functional options to configure the renderer
//
// Returns:
//   - Renderer: the compiled renderer
//   - error: error if the graph fails to compile
func NewRenderer(backend Backend, cfg config.Config, options ...RendererBuilderOption) (Renderer, error) {
	r := &rendererImpl{
		mu:      &sync.Mutex{},
		backend: backend,
		log:     logger.Named("deferred"),
		now:     time.Now,
		cfg:     cfg,
	}
	for _, opt := range options {
		opt(r)
	}

	r.graph = graph.NewOrchestrator(backend, cfg.Output.Width, cfg.Output.Height, r.gopts...)
	for _, desc := range Resources(cfg) {
		if err := r.graph.AddResource(desc); err != nil {
			return nil, err
		}
	}
	for _, p := range Passes(backend) {
		if err := r.graph.AddPass(p); err != nil {
			return nil, err
		}
	}
	if err := r.graph.Compile(); err != nil {
		return nil, fmt.Errorf("failed to compile deferred pipeline: %w", err)
	}

	// the lightmap starts empty
	r.rebuild.Store(cfg.Voxel.Enabled)
	return r, nil
}

func (r *rendererImpl) Render(ctx context.Context, cam camera.FrameState, in FrameInputs) error {
	r.mu.Lock()
	in.Config = r.cfg
	in.Camera = cam.Snapshot()
	in.VoxelRebuild = r.consumeRebuild()
	r.mu.Unlock()

	err := r.graph.Frame(ctx, &in)
	if err != nil {
		// the rebuild did not land, or the lightmap was reallocated empty
		if in.VoxelRebuild || (errors.Is(err, graph.ErrDeviceLost) && in.Config.Voxel.Enabled) {
			r.rebuild.Store(true)
			r.mu.Lock()
			r.rebuilt = false
			r.mu.Unlock()
		}
		return err
	}

	cam.EndFrame()
	if in.VoxelRebuild {
		r.log.Debug("voxel lightmap rebuilt", zap.Uint64("frame", r.graph.Stats().Frame))
	}
	return nil
}

// consumeRebuild takes the latched request when voxels are enabled and the interval has elapsed.
// Callers hold r.mu.
func (r *rendererImpl) consumeRebuild() bool {
	if !r.cfg.Voxel.Enabled || !r.rebuild.Load() {
		return false
	}
	now := r.now()
	if r.rebuilt && now.Sub(r.lastRebuild) < r.cfg.Voxel.RebuildInterval {
		return false
	}
	if !r.rebuild.CompareAndSwap(true, false) {
		return false
	}
	r.lastRebuild = now
	r.rebuilt = true
	return true
}

func (r *rendererImpl) Resize(width, height int) {
	r.graph.Resize(width, height)
}

func (r *rendererImpl) RequestVoxelRebuild() {
	r.rebuild.Store(true)
}

func (r *rendererImpl) SetConfig(cfg config.Config) {
	r.mu.Lock()
	prev := r.cfg
	r.cfg = cfg
	r.mu.Unlock()

	if prev.Voxel.Resolution != cfg.Voxel.Resolution || prev.Voxel.Center != cfg.Voxel.Center || prev.Voxel.Extents != cfg.Voxel.Extents {
		r.log.Warn("voxel grid changes apply after restart",
			zap.Int("resolution", prev.Voxel.Resolution),
			zap.Int("requested", cfg.Voxel.Resolution),
		)
	}
	if prev.NeedsVoxelRebuild(cfg) {
		r.RequestVoxelRebuild()
	}
	r.log.Info("renderer configuration updated", zap.String("ao_mode", string(cfg.SSAO.Mode)))
}

func (r *rendererImpl) Config() config.Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cfg
}

func (r *rendererImpl) Stats() graph.FrameStats {
	return r.graph.Stats()
}

func (r *rendererImpl) Order() []string {
	return r.graph.Order()
}

func (r *rendererImpl) Close() {
	r.graph.Close()
}
