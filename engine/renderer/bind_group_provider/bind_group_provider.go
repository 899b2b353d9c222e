package bind_group_provider

import (
	"github.com/cogentcore/webgpu/wgpu"
)

// bindGroupProvider is the unexported implementation of BindGroupProvider.
type bindGroupProvider struct {
	// label is a debug label added for convenience.
	label string

	// bindGroup is the GPU bind group created for this provider, or nil until InitBindGroup ran.
	bindGroup *wgpu.BindGroup
	// bindGroupLayout is created once from the pipeline's merged descriptor and reused when the
	// bind group is rebuilt against new views.
	bindGroupLayout *wgpu.BindGroupLayout
	// buffers holds the GPU buffers bound by this provider, keyed by binding index.
	buffers map[int]*wgpu.Buffer
	// textureViews holds the GPU texture views bound by this provider, keyed by binding index.
	textureViews map[int]*wgpu.TextureView
	// samplers holds the GPU samplers bound by this provider, keyed by binding index.
	samplers map[int]*wgpu.Sampler

	// ownedBuffers, ownedViews and ownedSamplers mark the bindings whose resource this provider
	// created and releases. Everything else is borrowed, e.g. frame attachments owned by the registry.
	ownedBuffers  map[int]bool
	ownedViews    map[int]bool
	ownedSamplers map[int]bool

	vertexBuffer *wgpu.Buffer
	indexBuffer  *wgpu.Buffer
	indexCount   int
}

// BindGroupProvider holds the GPU resources behind one bind group of one pipeline, plus the mesh
// buffers for providers used as draw sources.
//
// Usage pattern:
//  1. A pass creates a provider and binds borrowed views, samplers and shared buffers to it
//  2. Renderer.InitBindGroup creates the missing uniform and storage buffers and the bind group
//  3. Renderer.WriteBuffers updates the owned buffers each frame
//  4. When a borrowed view is reallocated, Invalidate drops the bind group and InitBindGroup runs again
type BindGroupProvider interface {
	// Release releases the bind group, the layout and every owned resource. Borrowed resources are
	// only forgotten.
	Release()

	// Invalidate releases the bind group so the next InitBindGroup rebuilds it. Bound resources are kept.
	Invalidate()

	// Label returns the debug label for this provider.
	//
	// Returns:
	//   - string: the debug label
	Label() string

	// BindGroup returns the created bind group for shader binding.
	// Returns nil if GPU resources have not been initialized.
	//
	// Returns:
	//   - *wgpu.BindGroup: the bind group or nil
	BindGroup() *wgpu.BindGroup

	// BindGroupLayout returns the created bind group layout for this provider.
	// Returns nil if GPU resources have not been initialized.
	//
	// Returns:
	//   - *wgpu.BindGroupLayout: the bind group layout or nil
	BindGroupLayout() *wgpu.BindGroupLayout

	// Buffer returns the buffer bound at a binding, or nil.
	//
	// Parameters:
	//   - binding: the binding index
	//
	// Returns:
	//   - *wgpu.Buffer: the buffer or nil
	Buffer(binding int) *wgpu.Buffer

	// TextureView returns the GPU texture view for a specific binding, or nil if not set.
	//
	// Parameters:
	//   - binding: the binding index
	//
	// Returns:
	//   - *wgpu.TextureView: the texture view or nil
	TextureView(binding int) *wgpu.TextureView

	// Sampler returns the GPU sampler for a specific binding, or nil if not set.
	//
	// Parameters:
	//   - binding: the binding index
	//
	// Returns:
	//   - *wgpu.Sampler: the sampler or nil
	Sampler(binding int) *wgpu.Sampler

	// VertexBuffer returns the GPU vertex buffer, or nil if not initialized.
	VertexBuffer() *wgpu.Buffer

	// IndexBuffer returns the GPU index buffer, or nil if not initialized.
	IndexBuffer() *wgpu.Buffer

	// IndexCount returns the number of indices for draw calls.
	IndexCount() int

	// SetBindGroup sets the bind group after GPU initialization, releasing the previous one.
	//
	// Parameters:
	//   - bg: the created bind group
	SetBindGroup(bg *wgpu.BindGroup)

	// SetBindGroupLayout sets the bind group layout after GPU initialization.
	//
	// Parameters:
	//   - bgl: the created bind group layout
	SetBindGroupLayout(bgl *wgpu.BindGroupLayout)

	// SetBuffer binds a buffer. Owned buffers are released with the provider.
	// Rebinding a different buffer invalidates the bind group.
	//
	// Parameters:
	//   - binding: the binding index
	//   - buf: the buffer
	//   - owned: true if the provider takes ownership
	SetBuffer(binding int, buf *wgpu.Buffer, owned bool)

	// SetTextureView binds a texture view. Rebinding a different view invalidates the bind group.
	//
	// Parameters:
	//   - binding: the binding index
	//   - tv: the texture view
	//   - owned: true if the provider takes ownership
	SetTextureView(binding int, tv *wgpu.TextureView, owned bool)

	// SetSampler binds a sampler. Rebinding a different sampler invalidates the bind group.
	//
	// Parameters:
	//   - binding: the binding index
	//   - s: the sampler
	//   - owned: true if the provider takes ownership
	SetSampler(binding int, s *wgpu.Sampler, owned bool)

	// SetVertexBuffer stores the GPU vertex buffer. The provider owns it.
	SetVertexBuffer(buf *wgpu.Buffer)

	// SetIndexBuffer stores the GPU index buffer. The provider owns it.
	SetIndexBuffer(buf *wgpu.Buffer)

	// SetIndexCount sets the number of indices for draw calls.
	SetIndexCount(count int)
}

var _ BindGroupProvider = &bindGroupProvider{}

// NewBindGroupProvider creates a new BindGroupProvider with the provided options.
//
// Parameters:
//   - label: the debug label used for every GPU object created for this provider
//   - options: a variadic list of options to configure the provider
//
// Returns:
//   - BindGroupProvider: a new instance of BindGroupProvider configured with the provided options
func NewBindGroupProvider(label string, options ...BindGroupProviderOption) BindGroupProvider {
	p := &bindGroupProvider{
		label:         label,
		buffers:       make(map[int]*wgpu.Buffer),
		textureViews:  make(map[int]*wgpu.TextureView),
		samplers:      make(map[int]*wgpu.Sampler),
		ownedBuffers:  make(map[int]bool),
		ownedViews:    make(map[int]bool),
		ownedSamplers: make(map[int]bool),
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

func (p *bindGroupProvider) Label() string {
	return p.label
}

func (p *bindGroupProvider) BindGroup() *wgpu.BindGroup {
	return p.bindGroup
}

func (p *bindGroupProvider) BindGroupLayout() *wgpu.BindGroupLayout {
	return p.bindGroupLayout
}

func (p *bindGroupProvider) Buffer(binding int) *wgpu.Buffer {
	return p.buffers[binding]
}

func (p *bindGroupProvider) TextureView(binding int) *wgpu.TextureView {
	return p.textureViews[binding]
}

func (p *bindGroupProvider) Sampler(binding int) *wgpu.Sampler {
	return p.samplers[binding]
}

func (p *bindGroupProvider) VertexBuffer() *wgpu.Buffer {
	return p.vertexBuffer
}

func (p *bindGroupProvider) IndexBuffer() *wgpu.Buffer {
	return p.indexBuffer
}

func (p *bindGroupProvider) IndexCount() int {
	return p.indexCount
}

func (p *bindGroupProvider) SetBindGroup(bg *wgpu.BindGroup) {
	if p.bindGroup != nil && p.bindGroup != bg {
		p.bindGroup.Release()
	}
	p.bindGroup = bg
}

func (p *bindGroupProvider) SetBindGroupLayout(bgl *wgpu.BindGroupLayout) {
	p.bindGroupLayout = bgl
}

func (p *bindGroupProvider) SetBuffer(binding int, buf *wgpu.Buffer, owned bool) {
	if prev := p.buffers[binding]; prev != buf {
		if prev != nil && p.ownedBuffers[binding] {
			prev.Release()
		}
		p.Invalidate()
	}
	p.buffers[binding] = buf
	p.ownedBuffers[binding] = owned
}

func (p *bindGroupProvider) SetTextureView(binding int, tv *wgpu.TextureView, owned bool) {
	if prev := p.textureViews[binding]; prev != tv {
		if prev != nil && p.ownedViews[binding] {
			prev.Release()
		}
		p.Invalidate()
	}
	p.textureViews[binding] = tv
	p.ownedViews[binding] = owned
}

func (p *bindGroupProvider) SetSampler(binding int, s *wgpu.Sampler, owned bool) {
	if prev := p.samplers[binding]; prev != s {
		if prev != nil && p.ownedSamplers[binding] {
			prev.Release()
		}
		p.Invalidate()
	}
	p.samplers[binding] = s
	p.ownedSamplers[binding] = owned
}

func (p *bindGroupProvider) SetVertexBuffer(buf *wgpu.Buffer) {
	p.vertexBuffer = buf
}

func (p *bindGroupProvider) SetIndexBuffer(buf *wgpu.Buffer) {
	p.indexBuffer = buf
}

func (p *bindGroupProvider) SetIndexCount(count int) {
	p.indexCount = count
}

func (p *bindGroupProvider) Invalidate() {
	if p.bindGroup != nil {
		p.bindGroup.Release()
		p.bindGroup = nil
	}
}

func (p *bindGroupProvider) Release() {
	p.Invalidate()
	for i, tv := range p.textureViews {
		if tv != nil && p.ownedViews[i] {
			tv.Release()
		}
		delete(p.textureViews, i)
		delete(p.ownedViews, i)
	}
	for i, s := range p.samplers {
		if s != nil && p.ownedSamplers[i] {
			s.Release()
		}
		delete(p.samplers, i)
		delete(p.ownedSamplers, i)
	}
	for i, buf := range p.buffers {
		if buf != nil && p.ownedBuffers[i] {
			buf.Release()
		}
		delete(p.buffers, i)
		delete(p.ownedBuffers, i)
	}

	if p.bindGroupLayout != nil {
		p.bindGroupLayout.Release()
		p.bindGroupLayout = nil
	}
	if p.vertexBuffer != nil {
		p.vertexBuffer.Release()
		p.vertexBuffer = nil
	}
	if p.indexBuffer != nil {
		p.indexBuffer.Release()
		p.indexBuffer = nil
	}
	p.indexCount = 0
}
