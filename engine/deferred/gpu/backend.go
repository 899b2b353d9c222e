// Package gpu runs the deferred pipeline on a WebGPU device. Every pass of a frame is recorded into
// the renderer's single frame encoder; attachments come from the frame graph registry and bind
// groups are rebuilt only when the views they reference change.
package gpu

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Carmen-Shannon/oxy-deferred/engine/camera"
	"github.com/Carmen-Shannon/oxy-deferred/engine/config"
	"github.com/Carmen-Shannon/oxy-deferred/engine/deferred"
	"github.com/Carmen-Shannon/oxy-deferred/engine/graph"
	"github.com/Carmen-Shannon/oxy-deferred/engine/light"
	"github.com/Carmen-Shannon/oxy-deferred/engine/logger"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-deferred/engine/ssao"
	"github.com/Carmen-Shannon/oxy-deferred/engine/voxel"
)

// Stats counts the geometry work of the last frame.
type Stats struct {
	Batches         int
	DrawnInstances  int
	CulledInstances int
}

// gbufferTargets are the attachments of the geometry pass.
type gbufferTargets struct {
	// position, normal, albedo, arm
	color [gbufferAttachments]*renderer.Target
	depth *renderer.Target
}

func (g *gbufferTargets) views() []*wgpu.TextureView {
	views := make([]*wgpu.TextureView, gbufferAttachments)
	for i, t := range g.color {
		views[i] = t.View
	}
	return views
}

func (g *gbufferTargets) release() {
	for i, t := range g.color {
		t.Release()
		g.color[i] = nil
	}
	g.depth.Release()
	g.depth = nil
}

// surfaceOutput marks the presentable output; the tone map pass renders into the surface.
type surfaceOutput struct{}

// voxelAccum is the atomic accumulator of a rebuild.
type voxelAccum struct {
	buf  *wgpu.Buffer
	size uint64
	// dirty is set between scatter and reduce; an interrupted rebuild leaves counts behind.
	dirty bool
}

// volumeSlot holds the volume being rebuilt. Downsample swaps it with the published lightmap.
type volumeSlot struct {
	target *renderer.Target
}

// lightmapSlot holds the volume lighting reads.
type lightmapSlot struct {
	target    *renderer.Target
	published bool
}

// batchSlot is group 0 of the geometry pass for one batch position: the shared frame uniform
// and an instance buffer grown on demand.
type batchSlot struct {
	provider bind_group_provider.BindGroupProvider
	capacity int
}

type backendImpl struct {
	mu *sync.Mutex

	r    renderer.Renderer
	log  *zap.Logger
	grid voxel.Grid

	rng    *rand.Rand
	kernel []mgl32.Vec3
	noise  []mgl32.Vec3

	// shared uniforms, written once per frame
	frameBuf     *wgpu.Buffer
	lightsBuf    *wgpu.Buffer
	gridBuf      *wgpu.Buffer
	uniformFrame uint64

	// scatter inputs, rewritten on every voxel rebuild
	scatterBuf  *wgpu.Buffer
	samplesBuf  *wgpu.Buffer
	samplesSize uint64

	meshes    map[uint64]bind_group_provider.BindGroupProvider
	materials map[uint64]bind_group_provider.BindGroupProvider
	batches   []*batchSlot
	groups    map[string]bind_group_provider.BindGroupProvider

	open   bool
	stats  Stats
	frames uint64

	// vsync is the present mode the surface is configured with
	vsync bool
}

// Backend is the GPU implementation of deferred.Backend.
type Backend interface {
	deferred.Backend

	// Stats returns the geometry counters of the last frame.
	//
	// Returns:
	//   - Stats: the counters
	Stats() Stats

	// Frames returns the number of submitted frames.
	Frames() uint64

	// Release frees every buffer and bind group the backend created. Registry resources are
	// released by the frame graph.
	Release()
}

var _ Backend = &backendImpl{}

// NewBackend registers the deferred pipelines on r and creates the shared uniforms.
//
// Parameters:
//   - r: the device layer; it must present to a surface
//   - cfg: seeds the SSAO kernel and sizes the voxel grid
//   - options: functional options to configure the backend
//
// Returns:
//   - Backend: the new backend
//   - error: error if a pipeline or buffer cannot be created
func NewBackend(r renderer.Renderer, cfg config.Config, options ...BackendBuilderOption) (Backend, error) {
	b := &backendImpl{
		mu:        &sync.Mutex{},
		r:         r,
		log:       logger.Named("gpu"),
		grid:      voxel.NewGrid(cfg.Voxel.Resolution, cfg.Voxel.Center, cfg.Voxel.Extents),
		rng:       ssao.NewRand(cfg.Seed),
		vsync:     cfg.Output.VSync,
		meshes:    make(map[uint64]bind_group_provider.BindGroupProvider),
		materials: make(map[uint64]bind_group_provider.BindGroupProvider),
		groups:    make(map[string]bind_group_provider.BindGroupProvider),
	}
	for _, opt := range options {
		opt(b)
	}

	kernel, err := ssao.Kernel(cfg.SSAO.KernelSize, b.rng)
	if err != nil {
		return nil, err
	}
	b.kernel = kernel
	b.noise = ssao.Noise(b.rng)

	if err := b.r.RegisterPipelines(Pipelines()...); err != nil {
		return nil, err
	}
	if err := b.createShared(); err != nil {
		return nil, err
	}
	b.log.Info("gpu backend ready",
		zap.Int("kernel", len(kernel)),
		zap.Int("voxel_resolution", b.grid.Resolution),
	)
	return b, nil
}

// createShared creates the uniforms bound by several passes.
func (b *backendImpl) createShared() error {
	var frame camera.GPUFrameUniform
	var lights light.GPULightArray
	var grid voxel.GPUGrid

	var err, e error
	b.frameBuf, e = b.r.CreateBuffer("Frame Uniform", uint64(frame.Size()), wgpu.BufferUsageUniform)
	err = multierr.Append(err, e)
	b.lightsBuf, e = b.r.CreateBuffer("Light Array", uint64(lights.Size()), wgpu.BufferUsageUniform)
	err = multierr.Append(err, e)
	b.gridBuf, e = b.r.CreateBuffer("Voxel Grid", uint64(grid.Size()), wgpu.BufferUsageUniform)
	err = multierr.Append(err, e)
	b.scatterBuf, e = b.r.CreateBuffer("Voxel Scatter Params", scatterParamsSize, wgpu.BufferUsageUniform)
	err = multierr.Append(err, e)
	if err != nil {
		return fmt.Errorf("failed to create shared uniforms: %w", err)
	}

	grid = voxel.NewGPUGrid(b.grid)
	b.r.WriteBuffer(b.gridBuf, 0, grid.Marshal())
	b.uniformFrame = 0
	return nil
}

func (b *backendImpl) Allocate(desc graph.ResourceDesc, res graph.Resolution) (any, func(), error) {
	if res.Width <= 0 || res.Height <= 0 {
		return nil, nil, fmt.Errorf("invalid size %s", res)
	}
	w, h := uint32(res.Width), uint32(res.Height)
	attachment := wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding
	label := string(desc.Purpose)

	switch desc.Purpose {
	case deferred.PurposeGBuffer:
		gb := &gbufferTargets{}
		names := [gbufferAttachments]string{"position", "normal", "albedo", "arm"}
		for i, name := range names {
			t, err := b.r.CreateTarget(renderer.TargetDescriptor{Label: label + " " + name, Width: w, Height: h, Format: formatGBuffer, Usage: attachment})
			if err != nil {
				gb.release()
				return nil, nil, err
			}
			gb.color[i] = t
		}
		depth, err := b.r.CreateTarget(renderer.TargetDescriptor{Label: label + " depth", Width: w, Height: h, Format: formatDepth, Usage: attachment})
		if err != nil {
			gb.release()
			return nil, nil, err
		}
		gb.depth = depth
		return gb, gb.release, nil

	case deferred.PurposeAORaw, deferred.PurposeAO:
		t, err := b.r.CreateTarget(renderer.TargetDescriptor{Label: label, Width: w, Height: h, Format: formatAO, Usage: attachment})
		if err != nil {
			return nil, nil, err
		}
		return t, t.Release, nil

	case deferred.PurposeHDR, deferred.PurposeBlurred:
		t, err := b.r.CreateTarget(renderer.TargetDescriptor{Label: label, Width: w, Height: h, Format: formatHDR, Usage: attachment})
		if err != nil {
			return nil, nil, err
		}
		return t, t.Release, nil

	case deferred.PurposeOutput:
		// the swap chain is the output; reallocation follows a resize
		b.r.Resize(res.Width, res.Height)
		return &surfaceOutput{}, nil, nil

	case deferred.PurposeVoxelAccum:
		size := voxel.AccumulatorBytes(b.grid)
		buf, err := b.r.CreateBuffer(label, size, wgpu.BufferUsageStorage)
		if err != nil {
			return nil, nil, err
		}
		acc := &voxelAccum{buf: buf, size: size}
		return acc, func() { releaseBuffer(acc.buf) }, nil

	case deferred.PurposeVoxelBase:
		t, err := b.volume(label)
		if err != nil {
			return nil, nil, err
		}
		slot := &volumeSlot{target: t}
		return slot, func() { slot.target.Release() }, nil

	case deferred.PurposeVoxelLightmap:
		t, err := b.volume(label)
		if err != nil {
			return nil, nil, err
		}
		slot := &lightmapSlot{target: t}
		return slot, func() { slot.target.Release() }, nil
	}
	return nil, nil, fmt.Errorf("gpu backend cannot allocate %s (%s)", desc.Purpose, desc.Format)
}

// volume creates a cubic RGBA8 texture with the full mip chain of the grid.
func (b *backendImpl) volume(label string) (*renderer.Target, error) {
	r := uint32(b.grid.Resolution)
	return b.r.CreateTarget(renderer.TargetDescriptor{
		Label:         label,
		Width:         r,
		Height:        r,
		DepthOrLayers: r,
		Format:        formatVoxel,
		Usage:         wgpu.TextureUsageStorageBinding | wgpu.TextureUsageTextureBinding,
		MipLevels:     uint32(b.grid.MipCount()),
	})
}

func (b *backendImpl) BeginFrame(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.open {
		// the previous frame stopped mid-way; none of it reaches the queue or the screen
		b.r.DiscardFrame()
		b.open = false
		b.log.Debug("discarded an unfinished frame")
	}
	if err := b.r.BeginFrame(); err != nil {
		return err
	}
	b.open = true
	b.stats = Stats{}
	return nil
}

func (b *backendImpl) EndFrame(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.open {
		return errors.New("frame ended without being started")
	}
	b.open = false
	if err := b.r.EndFrame(); err != nil {
		return err
	}
	b.r.Present()
	b.frames++
	return nil
}

func (b *backendImpl) Drain() error {
	return b.r.Drain()
}

func (b *backendImpl) Reinitialize() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.releaseCaches()
	b.open = false
	if err := b.r.Reinitialize(); err != nil {
		return err
	}
	if err := b.createShared(); err != nil {
		return err
	}
	b.log.Info("gpu backend reinitialized")
	return nil
}

// releaseCaches frees every provider and shared buffer. Callers hold b.mu.
func (b *backendImpl) releaseCaches() {
	for k, p := range b.meshes {
		p.Release()
		delete(b.meshes, k)
	}
	for k, p := range b.materials {
		p.Release()
		delete(b.materials, k)
	}
	for _, s := range b.batches {
		s.provider.Release()
	}
	b.batches = nil
	for k, p := range b.groups {
		p.Release()
		delete(b.groups, k)
	}
	for _, buf := range []*wgpu.Buffer{b.frameBuf, b.lightsBuf, b.gridBuf, b.scatterBuf, b.samplesBuf} {
		releaseBuffer(buf)
	}
	b.frameBuf, b.lightsBuf, b.gridBuf, b.scatterBuf, b.samplesBuf = nil, nil, nil, nil, nil
	b.samplesSize = 0
}

func (b *backendImpl) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

func (b *backendImpl) Frames() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.frames
}

func (b *backendImpl) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.releaseCaches()
}

func releaseBuffer(buf *wgpu.Buffer) {
	if buf != nil {
		buf.Release()
	}
}
