package bind_group_provider

import "github.com/cogentcore/webgpu/wgpu"

// BindGroupProviderOption is a functional option used to configure a BindGroupProvider during construction.
type BindGroupProviderOption func(*bindGroupProvider)

// WithSharedBuffer binds a buffer the provider does not own, such as the frame uniform shared by
// every pass.
//
// Parameters:
//   - binding: the binding index for this buffer
//   - buf: the buffer to associate with this binding
//
// Returns:
//   - BindGroupProviderOption: a function that binds the buffer
func WithSharedBuffer(binding int, buf *wgpu.Buffer) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.buffers[binding] = buf
		p.ownedBuffers[binding] = false
	}
}

// WithSharedTextureView binds a texture view the provider does not own.
//
// Parameters:
//   - binding: the binding index for this view
//   - tv: the view
//
// Returns:
//   - BindGroupProviderOption: a function that binds the view
func WithSharedTextureView(binding int, tv *wgpu.TextureView) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.textureViews[binding] = tv
		p.ownedViews[binding] = false
	}
}

// WithSharedSampler binds a sampler the provider does not own.
func WithSharedSampler(binding int, s *wgpu.Sampler) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.samplers[binding] = s
		p.ownedSamplers[binding] = false
	}
}
