package pipeline

import (
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/shader"
)

func TestNewPipelineDefaults(t *testing.T) {
	p := NewPipeline("default", PipelineTypeRender)

	assert.Equal(t, "default", p.PipelineKey())
	assert.Equal(t, PipelineTypeRender, p.Type())
	assert.Equal(t, []wgpu.TextureFormat{wgpu.TextureFormatRGBA8Unorm}, p.ColorFormats())
	assert.Equal(t, wgpu.TextureFormatUndefined, p.DepthFormat())
	assert.Equal(t, wgpu.CullModeNone, p.CullMode())
	assert.Equal(t, wgpu.FrontFaceCCW, p.FrontFace())
	assert.Equal(t, wgpu.PrimitiveTopologyTriangleList, p.Topology())
	assert.Equal(t, wgpu.ColorWriteMaskAll, p.WriteMask())
	assert.Nil(t, p.Pipeline().(*wgpu.RenderPipeline))
}

func TestBuilderOptions(t *testing.T) {
	p := NewPipeline("gbuffer", PipelineTypeRender,
		WithColorTargets(wgpu.TextureFormatRGBA16Float, wgpu.TextureFormatRGBA16Float),
		WithDepthFormat(wgpu.TextureFormatDepth32Float),
		WithDepthWriteEnabled(false),
		WithCullMode(wgpu.CullModeBack),
		WithFrontFace(wgpu.FrontFaceCW),
		WithWriteMask(wgpu.ColorWriteMaskRed),
	)
	assert.Len(t, p.ColorFormats(), 2)
	assert.Equal(t, wgpu.TextureFormatDepth32Float, p.DepthFormat())
	assert.True(t, p.DepthTestEnabled())
	assert.False(t, p.DepthWriteEnabled())
	assert.Equal(t, wgpu.CullModeBack, p.CullMode())
	assert.Equal(t, wgpu.FrontFaceCW, p.FrontFace())
	assert.Equal(t, wgpu.ColorWriteMaskRed, p.WriteMask())
}

func TestMergeBindGroupLayouts(t *testing.T) {
	vertex := map[int]wgpu.BindGroupLayoutDescriptor{
		0: {Label: "g0", Entries: []wgpu.BindGroupLayoutEntry{
			{Binding: 1, Visibility: wgpu.ShaderStageVertex},
			{Binding: 0, Visibility: wgpu.ShaderStageVertex},
		}},
	}
	fragment := map[int]wgpu.BindGroupLayoutDescriptor{
		0: {Entries: []wgpu.BindGroupLayoutEntry{
			{Binding: 0, Visibility: wgpu.ShaderStageFragment},
			{Binding: 2, Visibility: wgpu.ShaderStageFragment},
		}},
		1: {Label: "g1", Entries: []wgpu.BindGroupLayoutEntry{{Binding: 0, Visibility: wgpu.ShaderStageFragment}}},
	}

	merged := MergeBindGroupLayouts(vertex, fragment)
	require.Len(t, merged, 2)

	g0 := merged[0]
	assert.Equal(t, "g0", g0.Label)
	require.Len(t, g0.Entries, 3)
	for i, e := range g0.Entries {
		assert.Equal(t, uint32(i), e.Binding, "entries sorted by binding")
	}
	assert.Equal(t, wgpu.ShaderStageVertex|wgpu.ShaderStageFragment, g0.Entries[0].Visibility)
	assert.Equal(t, wgpu.ShaderStageVertex, g0.Entries[1].Visibility)
	assert.Equal(t, wgpu.ShaderStageFragment, g0.Entries[2].Visibility)
	assert.Equal(t, "g1", merged[1].Label)
}

func TestGeometryPipelineLayouts(t *testing.T) {
	p := NewPipeline("geometry", PipelineTypeRender,
		WithVertexShader(shader.NewShaderFromAsset("geometry_vs", shader.ShaderTypeVertex, "geometry_vs.wgsl")),
		WithFragmentShader(shader.NewShaderFromAsset("geometry_fs", shader.ShaderTypeFragment, "geometry_fs.wgsl")),
	)
	layouts := p.BindGroupLayoutDescriptors()
	require.Len(t, layouts, 2)
	assert.Len(t, layouts[0].Entries, 2)
	assert.Len(t, layouts[1].Entries, 5)
	assert.Empty(t, p.BindGroupLayoutDescriptor(2).Entries)
}

func TestFullscreenAssetSharesGroup(t *testing.T) {
	p := NewPipeline("tonemap", PipelineTypeRender, WithFullscreenAsset("tonemap.wgsl"))
	require.NotNil(t, p.Shader(shader.ShaderTypeVertex))
	assert.Equal(t, "vs_fullscreen", p.Shader(shader.ShaderTypeVertex).EntryPoint())
	assert.Equal(t, "fs_main", p.Shader(shader.ShaderTypeFragment).EntryPoint())

	for _, e := range p.BindGroupLayoutDescriptor(0).Entries {
		assert.Equal(t, wgpu.ShaderStageVertex|wgpu.ShaderStageFragment, e.Visibility)
	}
}

func TestComputePipelineLayouts(t *testing.T) {
	p := NewPipeline("reduce", PipelineTypeCompute,
		WithComputeShader(shader.NewShaderFromAsset("voxel_reduce", shader.ShaderTypeCompute, "voxel_reduce.wgsl")),
	)
	assert.Len(t, p.BindGroupLayoutDescriptor(0).Entries, 3)
	assert.Nil(t, p.Shader(shader.ShaderTypeVertex))
	assert.Nil(t, p.Pipeline().(*wgpu.ComputePipeline))

	empty := NewPipeline("empty", PipelineTypeCompute)
	assert.Nil(t, empty.BindGroupLayoutDescriptors())
}
