// Package software is the CPU reference backend of the deferred pipeline. Every pass splits its
// rows, cells or samples across a shared worker pool and returns after the pool's barrier.
package software

import (
	"context"
	"fmt"
	"image"
	"math/rand/v2"
	"sync"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Carmen-Shannon/oxy-deferred/engine/config"
	"github.com/Carmen-Shannon/oxy-deferred/engine/deferred"
	"github.com/Carmen-Shannon/oxy-deferred/engine/frame"
	"github.com/Carmen-Shannon/oxy-deferred/engine/graph"
	"github.com/Carmen-Shannon/oxy-deferred/engine/logger"
	"github.com/Carmen-Shannon/oxy-deferred/engine/parallel"
	"github.com/Carmen-Shannon/oxy-deferred/engine/postfx"
	"github.com/Carmen-Shannon/oxy-deferred/engine/raster"
	"github.com/Carmen-Shannon/oxy-deferred/engine/ssao"
	"github.com/Carmen-Shannon/oxy-deferred/engine/voxel"
)

// volumeSlot carries the level-0 volume from the reduce pass to the downsample pass.
type volumeSlot struct {
	vol *voxel.Volume
}

type backendImpl struct {
	mu *sync.Mutex

	pool     parallel.Pool
	ownsPool bool
	raster   raster.Rasterizer
	log      *zap.Logger
	grid     voxel.Grid

	rng    *rand.Rand
	kernel []mgl32.Vec3
	noise  []mgl32.Vec3

	output   *frame.Image4
	last     *image.RGBA
	lightmap voxel.Lightmap
	gbuffer  *frame.GBuffer
	ao       *frame.Image1
	frames   uint64
}

// Backend is the CPU implementation of deferred.Backend. After each submitted frame the tone-mapped
// output is available as an RGBA image.
type Backend interface {
	deferred.Backend

	// Image returns the output of the last submitted frame, or nil before the first.
	//
	// Returns:
	//   - *image.RGBA: the presented frame; callers must not modify it
	Image() *image.RGBA

	// GBuffer returns the G-buffer of the last submitted frame for debug dumps.
	//
	// Returns:
	//   - *frame.GBuffer: the attachments, valid until the next frame starts
	GBuffer() *frame.GBuffer

	// AO returns the blurred occlusion of the last submitted frame.
	//
	// Returns:
	//   - *frame.Image1: the occlusion buffer, valid until the next frame starts
	AO() *frame.Image1

	// Lightmap returns the voxel lightmap once a rebuild has published it, nil before.
	//
	// Returns:
	//   - voxel.Lightmap: the lightmap
	Lightmap() voxel.Lightmap

	// RasterStats returns the geometry counters of the last frame.
	//
	// Returns:
	//   - raster.Stats: the counters
	RasterStats() raster.Stats

	// Frames returns the number of submitted frames.
	//
	// Returns:
	//   - uint64: frame count
	Frames() uint64

	// Close stops the worker pool if the backend created it.
	Close()
}

var _ Backend = &backendImpl{}

// NewBackend creates a CPU backend for cfg.
//
// Parameters:
//   - cfg: seeds the SSAO kernel and noise, sizes the voxel grid and the worker pool
//   - options: functional options to configure the backend
//
// Returns:
//   - Backend: the new backend
//   - error: error if the SSAO kernel cannot be generated
func NewBackend(cfg config.Config, options ...BackendBuilderOption) (Backend, error) {
	b := &backendImpl{
		mu:   &sync.Mutex{},
		log:  logger.Named("software"),
		grid: voxel.NewGrid(cfg.Voxel.Resolution, cfg.Voxel.Center, cfg.Voxel.Extents),
		rng:  ssao.NewRand(cfg.Seed),
	}
	for _, opt := range options {
		opt(b)
	}
	if b.pool == nil {
		b.pool = parallel.NewPool(cfg.Workers)
		b.ownsPool = true
	}
	if b.raster == nil {
		b.raster = raster.NewRasterizer(raster.WithNormalStrength(cfg.Lighting.NormalStrength))
	}

	kernel, err := ssao.Kernel(cfg.SSAO.KernelSize, b.rng)
	if err != nil {
		return nil, err
	}
	b.kernel = kernel
	b.noise = ssao.Noise(b.rng)
	b.log.Info("software backend ready", zap.Int("workers", b.pool.Workers()), zap.Int("kernel", len(kernel)))
	return b, nil
}

func (b *backendImpl) Allocate(desc graph.ResourceDesc, res graph.Resolution) (any, func(), error) {
	if res.Width <= 0 || res.Height <= 0 {
		return nil, nil, fmt.Errorf("invalid size %s", res)
	}
	switch desc.Purpose {
	case deferred.PurposeGBuffer:
		return frame.NewGBuffer(res.Width, res.Height), nil, nil
	case deferred.PurposeAORaw, deferred.PurposeAO:
		return frame.NewImage1(res.Width, res.Height), nil, nil
	case deferred.PurposeHDR, deferred.PurposeBlurred, deferred.PurposeOutput:
		return frame.NewImage4(res.Width, res.Height), nil, nil
	case deferred.PurposeVoxelAccum:
		return voxel.NewAccumulator(b.grid), nil, nil
	case deferred.PurposeVoxelBase:
		return &volumeSlot{}, nil, nil
	case deferred.PurposeVoxelLightmap:
		return voxel.NewLightmap(b.grid), nil, nil
	}
	return nil, nil, fmt.Errorf("software backend cannot allocate %s (%s)", desc.Purpose, desc.Format)
}

func (b *backendImpl) BeginFrame(ctx context.Context) error {
	return ctx.Err()
}

func (b *backendImpl) EndFrame(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	out := b.output
	b.mu.Unlock()
	if out == nil {
		return fmt.Errorf("frame ended without output")
	}
	img := postfx.ToRGBA8(out)

	b.mu.Lock()
	b.last = img
	b.frames++
	b.mu.Unlock()
	return nil
}

// Drain is a no-op: every CPU pass has finished when it returns.
func (b *backendImpl) Drain() error {
	return nil
}

func (b *backendImpl) Reinitialize() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.output = nil
	b.gbuffer = nil
	b.ao = nil
	b.lightmap = nil
	b.log.Info("software backend reinitialized")
	return nil
}

func (b *backendImpl) Image() *image.RGBA {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last
}

func (b *backendImpl) GBuffer() *frame.GBuffer {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.gbuffer
}

func (b *backendImpl) AO() *frame.Image1 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ao
}

func (b *backendImpl) Lightmap() voxel.Lightmap {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lightmap
}

func (b *backendImpl) RasterStats() raster.Stats {
	return b.raster.Stats()
}

func (b *backendImpl) Frames() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.frames
}

func (b *backendImpl) Close() {
	if b.ownsPool {
		b.pool.Stop()
	}
}
