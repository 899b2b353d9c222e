package gpu

import (
	"github.com/cogentcore/webgpu/wgpu"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/shader"
)

// Pipeline keys of the deferred passes.
const (
	KeyGeometry        = "geometry"
	KeySSAO            = "ssao_kernel"
	KeyHBAO            = "hbao"
	KeyBlur            = "blur"
	KeyLighting        = "lighting"
	KeyMotionBlur      = "motion_blur"
	KeyToneMap         = "tonemap"
	KeyVoxelScatter    = "voxel_scatter"
	KeyVoxelReduce     = "voxel_reduce"
	KeyVoxelDownsample = "voxel_downsample"
)

// G-buffer and intermediate attachment formats.
const (
	formatGBuffer = wgpu.TextureFormatRGBA16Float
	formatDepth   = wgpu.TextureFormatDepth32Float
	formatAO      = wgpu.TextureFormatR16Float
	formatHDR     = wgpu.TextureFormatRGBA16Float
	formatVoxel   = wgpu.TextureFormatRGBA8Unorm
)

// gbufferAttachments is the number of colour attachments of the geometry pass.
const gbufferAttachments = 4

func fullscreen(key string, target wgpu.TextureFormat) pipeline.Pipeline {
	return pipeline.NewPipeline(key, pipeline.PipelineTypeRender,
		pipeline.WithFullscreenAsset(key+".wgsl"),
		pipeline.WithColorTargets(target),
		pipeline.WithCullMode(wgpu.CullModeNone),
	)
}

func compute(key string) pipeline.Pipeline {
	return pipeline.NewPipeline(key, pipeline.PipelineTypeCompute,
		pipeline.WithComputeShader(shader.NewShaderFromAsset(key, shader.ShaderTypeCompute, key+".wgsl")),
	)
}

// Pipelines returns every pipeline of the deferred passes. The tone map target is left undefined
// so the renderer substitutes the surface format.
//
// Returns:
//   - []pipeline.Pipeline: the pipelines, not yet registered
func Pipelines() []pipeline.Pipeline {
	colors := make([]wgpu.TextureFormat, gbufferAttachments)
	for i := range colors {
		colors[i] = formatGBuffer
	}
	return []pipeline.Pipeline{
		pipeline.NewPipeline(KeyGeometry, pipeline.PipelineTypeRender,
			pipeline.WithVertexShader(shader.NewShaderFromAsset(KeyGeometry+"_vs", shader.ShaderTypeVertex, "geometry_vs.wgsl")),
			pipeline.WithFragmentShader(shader.NewShaderFromAsset(KeyGeometry+"_fs", shader.ShaderTypeFragment, "geometry_fs.wgsl")),
			pipeline.WithColorTargets(colors...),
			pipeline.WithDepthFormat(formatDepth),
			pipeline.WithCullMode(wgpu.CullModeBack),
			pipeline.WithFrontFace(wgpu.FrontFaceCCW),
		),
		fullscreen(KeySSAO, formatAO),
		fullscreen(KeyHBAO, formatAO),
		fullscreen(KeyBlur, formatAO),
		fullscreen(KeyLighting, formatHDR),
		fullscreen(KeyMotionBlur, formatHDR),
		fullscreen(KeyToneMap, wgpu.TextureFormatUndefined),
		compute(KeyVoxelScatter),
		compute(KeyVoxelReduce),
		compute(KeyVoxelDownsample),
	}
}

// workgroups returns the number of groups of size wg covering n invocations.
func workgroups(n int, wg uint32) uint32 {
	if n <= 0 || wg == 0 {
		return 0
	}
	return (uint32(n) + wg - 1) / wg
}
