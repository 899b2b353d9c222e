package renderer

import (
	"fmt"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
	"go.uber.org/zap"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/logger"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/pipeline"
)

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.Mutex

	pipelineCache map[string]pipeline.Pipeline

	backendType RendererBackendType
	backend     RendererBackend
	log         *zap.Logger

	// Pre-creation config collected from builder options
	forceFallbackAdapter bool
	pendingPresentMode   *PresentMode
	pendingPipelines     []pipeline.Pipeline
}

// Renderer is the GPU device layer of the deferred pipeline.
//
// It owns the device, the surface and a cache of pipelines keyed by PipelineKey. Every frame is
// recorded into a single command encoder: BeginFrame opens it, render passes and compute
// dispatches are encoded in order, and EndFrame submits it once.
type Renderer interface {
	// Pipeline retrieves the cached Pipeline associated with the given key.
	// If the Pipeline does not exist, this will return nil.
	//
	// Parameters:
	//   - key: the unique identifier for the Pipeline to retrieve
	//
	// Returns:
	//   - pipeline.Pipeline: the Pipeline associated with the key, or nil if not found
	Pipeline(key string) pipeline.Pipeline

	// RegisterPipelines creates the GPU objects of one or more pipelines and caches them by
	// PipelineKey. Pipelines whose keys are already registered are skipped.
	//
	// Parameters:
	//   - pipelines: the Pipelines to register
	//
	// Returns:
	//   - error: an error if pipeline creation fails
	RegisterPipelines(pipelines ...pipeline.Pipeline) error

	// SurfaceFormat returns the format of the presentable surface, chosen without sRGB encoding
	// so the tone map pass controls the display curve.
	//
	// Returns:
	//   - wgpu.TextureFormat: the surface format
	SurfaceFormat() wgpu.TextureFormat

	// Resize reconfigures the surface for a new size.
	//
	// Parameters:
	//   - width: the new width of the surface in pixels
	//   - height: the new height of the surface in pixels
	Resize(width, height int)

	// SetPresentMode sets the surface present mode. It takes effect on the next Resize.
	//
	// Parameters:
	//   - mode: the PresentMode to use
	SetPresentMode(mode PresentMode)

	// CreateTarget creates a texture with a whole view and per-mip views.
	//
	// Parameters:
	//   - desc: the texture description
	//
	// Returns:
	//   - *Target: the created texture
	//   - error: an error if creation fails
	CreateTarget(desc TargetDescriptor) (*Target, error)

	// CreateBuffer creates a standalone buffer, e.g. a uniform shared by several bind groups.
	//
	// Parameters:
	//   - label: debug label
	//   - size: size in bytes
	//   - usage: buffer usage flags; CopyDst is always added
	//
	// Returns:
	//   - *wgpu.Buffer: the buffer
	//   - error: an error if creation fails
	CreateBuffer(label string, size uint64, usage wgpu.BufferUsage) (*wgpu.Buffer, error)

	// WriteBuffer queues a write into a buffer.
	//
	// Parameters:
	//   - buf: the destination
	//   - offset: byte offset
	//   - data: the bytes
	WriteBuffer(buf *wgpu.Buffer, offset uint64, data []byte)

	// InitMeshBuffers creates GPU vertex and index buffers from raw byte data and stores them
	// on the given BindGroupProvider for later use in draw calls.
	//
	// Parameters:
	//   - provider: the BindGroupProvider to store the created buffers on
	//   - vertexData: the raw vertex data bytes to upload to the GPU
	//   - indexData: the raw index data bytes to upload to the GPU
	//   - indexCount: the number of indices, used for draw calls
	//
	// Returns:
	//   - error: an error if buffer creation fails
	InitMeshBuffers(provider bind_group_provider.BindGroupProvider, vertexData, indexData []byte, indexCount int) error

	// InitBindGroup builds the provider's bind group against one group of a registered pipeline.
	// Missing buffers are created and owned by the provider; views and samplers must be bound
	// beforehand. A provider whose bind group is still valid is left untouched.
	//
	// Parameters:
	//   - provider: the BindGroupProvider to build
	//   - pipelineKey: the pipeline whose merged layout describes the group
	//   - group: the @group index
	//   - bufferSizeOverrides: buffer sizes to use instead of MinBindingSize, keyed by binding (nil safe)
	//
	// Returns:
	//   - error: an error if the pipeline is unknown or creation fails
	InitBindGroup(provider bind_group_provider.BindGroupProvider, pipelineKey string, group int, bufferSizeOverrides map[int]uint64) error

	// InitTextureView uploads an RGBA8 image and binds its view, owned by the provider.
	//
	// Parameters:
	//   - provider: the BindGroupProvider to store the created texture view on
	//   - binding: the binding index for this texture
	//   - stagingData: the pixel data and dimensions for the texture
	//
	// Returns:
	//   - error: an error if texture creation fails
	InitTextureView(provider bind_group_provider.BindGroupProvider, binding int, stagingData common.TextureStagingData) error

	// InitSampler creates a sampler and binds it, owned by the provider.
	//
	// Parameters:
	//   - provider: the BindGroupProvider to store the created sampler on
	//   - binding: the binding index for this sampler
	//   - samplerStagingData: the sampler configuration
	//
	// Returns:
	//   - error: an error if sampler creation fails
	InitSampler(provider bind_group_provider.BindGroupProvider, binding int, samplerStagingData common.SamplerStagingData) error

	// WriteBuffers writes all staged buffer writes to the GPU queue.
	//
	// Parameters:
	//   - writes: a slice of BufferWrite structs describing the data to write
	WriteBuffers(writes []bind_group_provider.BufferWrite)

	// BeginFrame opens the frame's command encoder.
	//
	// Returns:
	//   - error: an error if a frame is already open or the encoder cannot be created
	BeginFrame() error

	// BeginRenderPass starts a render pass on the frame encoder.
	//
	// Parameters:
	//   - targets: the color and depth attachments
	//
	// Returns:
	//   - error: an error if no frame is open or a pass is already active
	BeginRenderPass(targets RenderPassTargets) error

	// DrawCall encodes an indexed, instanced draw in the current render pass.
	//
	// Parameters:
	//   - pipelineKey: the cached render Pipeline to use
	//   - meshProvider: the BindGroupProvider holding vertex and index buffers
	//   - instanceCount: the number of instances to draw
	//   - bindGroups: providers set at group 0, 1, ...
	//
	// Returns:
	//   - error: an error if the pipeline is not found or no pass is active
	DrawCall(pipelineKey string, meshProvider bind_group_provider.BindGroupProvider, instanceCount uint32, bindGroups []bind_group_provider.BindGroupProvider) error

	// DrawFullscreen encodes a single full-screen triangle in the current render pass.
	//
	// Parameters:
	//   - pipelineKey: the cached render Pipeline to use
	//   - bindGroups: providers set at group 0, 1, ...
	//
	// Returns:
	//   - error: an error if the pipeline is not found or no pass is active
	DrawFullscreen(pipelineKey string, bindGroups []bind_group_provider.BindGroupProvider) error

	// EndRenderPass ends the current render pass.
	EndRenderPass()

	// DispatchCompute encodes a compute pass with one dispatch on the frame encoder.
	//
	// Parameters:
	//   - pipelineKey: the cached compute Pipeline to use
	//   - bindGroups: providers set at group 0, 1, ...
	//   - workGroupCount: the number of workgroups in x, y and z
	//
	// Returns:
	//   - error: an error if the pipeline is not found or no frame is open
	DispatchCompute(pipelineKey string, bindGroups []bind_group_provider.BindGroupProvider, workGroupCount [3]uint32) error

	// SurfaceView acquires the surface texture for this frame, reconfiguring a lost or outdated
	// surface once. Repeated calls within a frame return the same view.
	//
	// Returns:
	//   - *wgpu.TextureView: the view to render the final pass into
	//   - error: an error if the surface cannot be acquired
	SurfaceView() (*wgpu.TextureView, error)

	// EndFrame finishes the frame encoder and submits it. A failure to finish wraps graph.ErrDeviceLost.
	//
	// Returns:
	//   - error: the submission error
	EndFrame() error

	// DiscardFrame abandons an open frame. Nothing recorded since BeginFrame is submitted and the
	// surface texture is released unpresented.
	DiscardFrame()

	// Present presents the acquired surface texture, if any.
	Present()

	// Drain blocks until the queue is idle.
	//
	// Returns:
	//   - error: always nil for the wgpu backend
	Drain() error

	// Reinitialize requests a new device, reconfigures the surface and recreates every cached
	// pipeline. Resources created on the previous device must be recreated by their owners.
	//
	// Returns:
	//   - error: an error if the device cannot be recreated
	Reinitialize() error

	// Release frees every pipeline and the device.
	Release()
}

var _ Renderer = &renderer{}

// NewRenderer creates a new Renderer presenting to the given surface source.
//
// Parameters:
//   - backendType: the type of rendering backend to use (e.g., WGPU)
//   - surface: the window the surface is created for
//   - options: variadic list of RendererBuilderOption functions to configure the Renderer
//
// Returns:
//   - Renderer: the renderer
//   - error: an error if no adapter or device is available, or a pipeline fails to register
func NewRenderer(backendType RendererBackendType, surface SurfaceSource, options ...RendererBuilderOption) (Renderer, error) {
	r := &renderer{
		mu:            &sync.Mutex{},
		pipelineCache: make(map[string]pipeline.Pipeline),
		backendType:   backendType,
		log:           logger.Named("renderer"),
	}

	// Apply options first so config flags (e.g. forceFallbackAdapter) are
	// available before the backend requests a GPU adapter.
	for _, opt := range options {
		opt(r)
	}

	var err error
	switch backendType {
	case BackendTypeWGPU:
		fallthrough
	default:
		r.backend, err = newWGPURendererBackend(surface.SurfaceDescriptor(), r.forceFallbackAdapter, r.log)
	}
	if err != nil {
		return nil, err
	}

	if r.pendingPresentMode != nil {
		r.backend.SetPresentMode(*r.pendingPresentMode)
	}
	r.backend.ConfigureSurface(surface.Width(), surface.Height())

	if err := r.RegisterPipelines(r.pendingPipelines...); err != nil {
		r.Release()
		return nil, err
	}
	r.pendingPipelines = nil
	r.log.Info("renderer ready",
		zap.Int("width", surface.Width()),
		zap.Int("height", surface.Height()),
		zap.String("surface_format", r.backend.SurfaceFormat().String()),
	)
	return r, nil
}

func (r *renderer) Pipeline(key string) pipeline.Pipeline {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pipelineCache[key]
}

func (r *renderer) RegisterPipelines(pipelines ...pipeline.Pipeline) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range pipelines {
		key := p.PipelineKey()
		if _, exists := r.pipelineCache[key]; exists {
			continue
		}
		if err := r.register(p); err != nil {
			return fmt.Errorf("failed to register pipeline %q: %w", key, err)
		}
		r.pipelineCache[key] = p
	}
	return nil
}

// register creates the GPU object of one pipeline. Callers hold r.mu.
func (r *renderer) register(p pipeline.Pipeline) error {
	switch p.Type() {
	case pipeline.PipelineTypeCompute:
		return r.backend.RegisterComputePipeline(p)
	case pipeline.PipelineTypeRender:
		return r.backend.RegisterRenderPipeline(p)
	}
	return fmt.Errorf("unknown pipeline type %d", p.Type())
}

func (r *renderer) lookup(key string, want pipeline.PipelineType) (pipeline.Pipeline, error) {
	r.mu.Lock()
	p, exists := r.pipelineCache[key]
	r.mu.Unlock()
	if !exists {
		return nil, fmt.Errorf("pipeline %q not found in cache", key)
	}
	if p.Type() != want {
		return nil, fmt.Errorf("pipeline %q has the wrong type", key)
	}
	return p, nil
}

func (r *renderer) SurfaceFormat() wgpu.TextureFormat {
	return r.backend.SurfaceFormat()
}

func (r *renderer) Resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	r.backend.ConfigureSurface(width, height)
}

func (r *renderer) SetPresentMode(mode PresentMode) {
	r.backend.SetPresentMode(mode)
}

func (r *renderer) CreateTarget(desc TargetDescriptor) (*Target, error) {
	return r.backend.CreateTarget(desc)
}

func (r *renderer) CreateBuffer(label string, size uint64, usage wgpu.BufferUsage) (*wgpu.Buffer, error) {
	return r.backend.CreateBuffer(label, size, usage)
}

func (r *renderer) WriteBuffer(buf *wgpu.Buffer, offset uint64, data []byte) {
	r.backend.WriteBuffer(buf, offset, data)
}

func (r *renderer) InitMeshBuffers(provider bind_group_provider.BindGroupProvider, vertexData, indexData []byte, indexCount int) error {
	return r.backend.InitMeshBuffers(provider, vertexData, indexData, indexCount)
}

func (r *renderer) InitBindGroup(provider bind_group_provider.BindGroupProvider, pipelineKey string, group int, bufferSizeOverrides map[int]uint64) error {
	r.mu.Lock()
	p, exists := r.pipelineCache[pipelineKey]
	r.mu.Unlock()
	if !exists {
		return fmt.Errorf("pipeline %q not found in cache", pipelineKey)
	}
	if err := r.backend.InitBindGroup(provider, p.BindGroupLayoutDescriptor(group), bufferSizeOverrides); err != nil {
		return fmt.Errorf("bind group %s (pipeline %s, group %d): %w", provider.Label(), pipelineKey, group, err)
	}
	return nil
}

func (r *renderer) InitTextureView(provider bind_group_provider.BindGroupProvider, binding int, stagingData common.TextureStagingData) error {
	return r.backend.InitTextureView(provider, binding, stagingData)
}

func (r *renderer) InitSampler(provider bind_group_provider.BindGroupProvider, binding int, samplerStagingData common.SamplerStagingData) error {
	return r.backend.InitSampler(provider, binding, samplerStagingData)
}

func (r *renderer) WriteBuffers(writes []bind_group_provider.BufferWrite) {
	r.backend.WriteBuffers(writes)
}

func (r *renderer) BeginFrame() error {
	return r.backend.BeginFrame()
}

func (r *renderer) BeginRenderPass(targets RenderPassTargets) error {
	return r.backend.BeginRenderPass(targets)
}

func (r *renderer) DrawCall(pipelineKey string, meshProvider bind_group_provider.BindGroupProvider, instanceCount uint32, bindGroups []bind_group_provider.BindGroupProvider) error {
	p, err := r.lookup(pipelineKey, pipeline.PipelineTypeRender)
	if err != nil {
		return err
	}
	return r.backend.DrawCall(p, meshProvider, instanceCount, bindGroups)
}

func (r *renderer) DrawFullscreen(pipelineKey string, bindGroups []bind_group_provider.BindGroupProvider) error {
	p, err := r.lookup(pipelineKey, pipeline.PipelineTypeRender)
	if err != nil {
		return err
	}
	return r.backend.DrawFullscreen(p, bindGroups)
}

func (r *renderer) EndRenderPass() {
	r.backend.EndRenderPass()
}

func (r *renderer) DispatchCompute(pipelineKey string, bindGroups []bind_group_provider.BindGroupProvider, workGroupCount [3]uint32) error {
	p, err := r.lookup(pipelineKey, pipeline.PipelineTypeCompute)
	if err != nil {
		return err
	}
	return r.backend.DispatchCompute(p, bindGroups, workGroupCount)
}

func (r *renderer) SurfaceView() (*wgpu.TextureView, error) {
	return r.backend.SurfaceView()
}

func (r *renderer) EndFrame() error {
	return r.backend.EndFrame()
}

func (r *renderer) DiscardFrame() {
	r.backend.DiscardFrame()
}

func (r *renderer) Present() {
	r.backend.Present()
}

func (r *renderer) Drain() error {
	r.backend.Drain()
	return nil
}

func (r *renderer) Reinitialize() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.pipelineCache {
		p.Release()
	}
	if err := r.backend.RecreateDevice(); err != nil {
		return err
	}
	for key, p := range r.pipelineCache {
		if err := r.register(p); err != nil {
			return fmt.Errorf("failed to recreate pipeline %q: %w", key, err)
		}
	}
	r.log.Info("renderer reinitialized", zap.Int("pipelines", len(r.pipelineCache)))
	return nil
}

func (r *renderer) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.pipelineCache {
		p.Release()
	}
	r.pipelineCache = make(map[string]pipeline.Pipeline)
	if r.backend != nil {
		r.backend.Release()
	}
}
