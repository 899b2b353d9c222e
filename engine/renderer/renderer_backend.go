package renderer

import "github.com/cogentcore/webgpu/wgpu"

// RendererBackendType identifies the GPU backend implementation used by the Renderer.
type RendererBackendType int

const (
	// BackendTypeWGPU selects the WebGPU-based rendering backend.
	BackendTypeWGPU RendererBackendType = iota
)

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting, capping frame rate
	// to the monitor's refresh rate. Eliminates tearing.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	// May cause screen tearing but provides the lowest latency.
	PresentModeUncapped
)

// PresentModeFor maps a vsync setting onto a PresentMode.
func PresentModeFor(vsync bool) PresentMode {
	if vsync {
		return PresentModeVSync
	}
	return PresentModeUncapped
}

// SurfaceSource is anything a presentable surface can be created for, typically a window.
type SurfaceSource interface {
	SurfaceDescriptor() *wgpu.SurfaceDescriptor
	Width() int
	Height() int
}

// TargetDescriptor describes a texture the frame graph renders into or samples from.
type TargetDescriptor struct {
	Label  string
	Width  uint32
	Height uint32
	// DepthOrLayers greater than 1 creates a 3D texture.
	DepthOrLayers uint32
	Format        wgpu.TextureFormat
	Usage         wgpu.TextureUsage
	// MipLevels of 0 is treated as 1.
	MipLevels uint32
}

// Target is a created texture with a view of the whole texture and one view per mip level.
type Target struct {
	Texture *wgpu.Texture
	View    *wgpu.TextureView
	// MipViews is only populated when the texture has more than one mip level.
	MipViews []*wgpu.TextureView
	Desc     TargetDescriptor
}

// Release frees the views and the texture.
func (t *Target) Release() {
	if t == nil {
		return
	}
	for i, v := range t.MipViews {
		if v != nil {
			v.Release()
		}
		t.MipViews[i] = nil
	}
	t.MipViews = nil
	if t.View != nil {
		t.View.Release()
		t.View = nil
	}
	if t.Texture != nil {
		t.Texture.Release()
		t.Texture = nil
	}
}

// RenderPassTargets are the attachments of one render pass. Color attachments are cleared to
// ClearColor and stored; the depth attachment, when present, is cleared to 1 and stored so later
// passes can sample it.
type RenderPassTargets struct {
	Label      string
	Color      []*wgpu.TextureView
	ClearColor wgpu.Color
	Depth      *wgpu.TextureView
}

// RendererBackend is the top-level backend interface for the Renderer.
// It embeds the concrete backend interface for the selected GPU API.
type RendererBackend interface {
	wgpuRendererBackend
}
