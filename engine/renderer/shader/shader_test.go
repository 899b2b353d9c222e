package shader

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gogpu/naga"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/oxy-deferred/engine/camera"
	"github.com/Carmen-Shannon/oxy-deferred/engine/light"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-deferred/engine/shading"
	"github.com/Carmen-Shannon/oxy-deferred/engine/ssao"
	"github.com/Carmen-Shannon/oxy-deferred/engine/voxel"
)

func entry(t *testing.T, s Shader, group int, binding uint32) wgpu.BindGroupLayoutEntry {
	t.Helper()
	for _, e := range s.BindGroupLayoutDescriptor(group).Entries {
		if e.Binding == binding {
			return e
		}
	}
	t.Fatalf("%s has no binding %d in group %d", s.Key(), binding, group)
	return wgpu.BindGroupLayoutEntry{}
}

func TestAssetNames(t *testing.T) {
	names := AssetNames()
	for _, want := range []string{
		"geometry_vs.wgsl", "geometry_fs.wgsl", "ssao_kernel.wgsl", "hbao.wgsl", "blur.wgsl",
		"lighting.wgsl", "motion_blur.wgsl", "tonemap.wgsl",
		"voxel_scatter.wgsl", "voxel_reduce.wgsl", "voxel_downsample.wgsl",
	} {
		assert.Contains(t, names, want)
	}
	assert.NotContains(t, names, "brdf.wgsl", "snippets are not pipeline shaders")

	_, err := Asset("missing.wgsl")
	assert.Error(t, err)
}

func TestPreProcessorSplicesOnce(t *testing.T) {
	pp := NewPreProcessor()
	pp.Register("inner", "const INNER: f32 = 1.0;")
	pp.Register("outer", "// @oxy:include inner\nconst OUTER: f32 = 2.0;")

	out, err := pp.Process("// @oxy:include outer\n// @oxy:include inner\nfn f() {}\n")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "const INNER"))
	assert.Equal(t, 1, strings.Count(out, "const OUTER"))
	assert.Less(t, strings.Index(out, "INNER"), strings.Index(out, "OUTER"))
	assert.NotContains(t, out, "@oxy:include")
}

func TestPreProcessorUnknownInclude(t *testing.T) {
	_, err := NewPreProcessor().Process("// @oxy:include nope\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope")

	assert.Panics(t, func() {
		NewShaderFromSource("bad", ShaderTypeFragment, "// @oxy:include nope\n@fragment fn fs_main() {}")
	})
}

func TestMissingEntryPointPanics(t *testing.T) {
	assert.Panics(t, func() {
		NewShaderFromSource("no_entry", ShaderTypeCompute, "fn helper() {}")
	})
}

func TestRegisteredIncludes(t *testing.T) {
	names := NewPreProcessor().Includes()
	for _, want := range []string{"frame", "light", "vertex", "voxel_grid", "ssao_params", "brdf", "fullscreen", "math"} {
		assert.Contains(t, names, want)
	}
}

func TestGeometryVertexReflection(t *testing.T) {
	s := NewShaderFromAsset("geometry_vs", ShaderTypeVertex, "geometry_vs.wgsl")
	assert.Equal(t, "vs_main", s.EntryPoint())

	layouts := s.VertexLayouts()
	require.Len(t, layouts, 1)
	assert.Equal(t, uint64(48), layouts[0].ArrayStride)
	assert.Equal(t, wgpu.VertexStepModeVertex, layouts[0].StepMode)
	require.Len(t, layouts[0].Attributes, 4)
	offsets := []uint64{0, 12, 20, 32}
	for i, a := range layouts[0].Attributes {
		assert.Equal(t, uint32(i), a.ShaderLocation)
		assert.Equal(t, offsets[i], a.Offset)
	}
	assert.Equal(t, wgpu.VertexFormatFloat32x4, layouts[0].Attributes[3].Format)

	frame := camera.GPUFrameUniform{}
	u := entry(t, s, 0, 0)
	assert.Equal(t, wgpu.BufferBindingTypeUniform, u.Buffer.Type)
	assert.Equal(t, uint64(frame.Size()), u.Buffer.MinBindingSize)
	assert.Equal(t, wgpu.ShaderStageVertex, u.Visibility)

	inst := entry(t, s, 0, 1)
	assert.Equal(t, wgpu.BufferBindingTypeReadOnlyStorage, inst.Buffer.Type)
	assert.Equal(t, uint64(128), inst.Buffer.MinBindingSize, "runtime arrays bind at least one element")
	assert.Equal(t, "instances", s.BindGroupVarName(0, 1))
}

func TestGeometryFragmentReflection(t *testing.T) {
	s := NewShaderFromAsset("geometry_fs", ShaderTypeFragment, "geometry_fs.wgsl")
	assert.Equal(t, "fs_main", s.EntryPoint())
	assert.Empty(t, s.VertexLayouts())
	assert.Len(t, s.BindGroupLayoutDescriptor(1).Entries, 5)

	albedo := entry(t, s, 1, 0)
	assert.Equal(t, wgpu.TextureViewDimension2D, albedo.Texture.ViewDimension)
	assert.Equal(t, wgpu.TextureSampleTypeFloat, albedo.Texture.SampleType)
	assert.Equal(t, wgpu.SamplerBindingTypeFiltering, entry(t, s, 1, 3).Sampler.Type)

	params := material.GPUParams{}
	assert.Equal(t, uint64(params.Size()), entry(t, s, 1, 4).Buffer.MinBindingSize)
}

func TestLightingReflection(t *testing.T) {
	s := NewShaderFromAsset("lighting_fs", ShaderTypeFragment, "lighting.wgsl")
	assert.Len(t, s.BindGroupLayoutDescriptor(0).Entries, 10)

	lights := light.GPULightArray{}
	params := shading.GPUParams{}
	grid := voxel.GPUGrid{}
	assert.Equal(t, uint64(lights.Size()), entry(t, s, 0, 1).Buffer.MinBindingSize)
	assert.Equal(t, uint64(params.Size()), entry(t, s, 0, 2).Buffer.MinBindingSize)
	assert.Equal(t, wgpu.TextureViewDimension3D, entry(t, s, 0, 8).Texture.ViewDimension)
	assert.Equal(t, uint64(grid.Size()), entry(t, s, 0, 9).Buffer.MinBindingSize)
	assert.Equal(t, "lightmap", s.BindGroupVarName(0, 8))

	vs := NewShaderFromAsset("lighting_vs", ShaderTypeVertex, "lighting.wgsl")
	assert.Equal(t, "vs_fullscreen", vs.EntryPoint())
	assert.Empty(t, vs.VertexLayouts())
}

func TestAOReflection(t *testing.T) {
	params := ssao.GPUParams{}
	for _, name := range []string{"ssao_kernel.wgsl", "hbao.wgsl"} {
		s := NewShaderFromAsset(name, ShaderTypeFragment, name)
		assert.Equal(t, uint64(params.Size()), entry(t, s, 0, 1).Buffer.MinBindingSize, name)
	}
	blur := NewShaderFromAsset("blur", ShaderTypeFragment, "blur.wgsl")
	assert.Equal(t, uint64(params.Size()), entry(t, blur, 0, 0).Buffer.MinBindingSize)
}

func TestMotionBlurDepthBinding(t *testing.T) {
	s := NewShaderFromAsset("motion_blur", ShaderTypeFragment, "motion_blur.wgsl")
	depth := entry(t, s, 0, 3)
	assert.Equal(t, wgpu.TextureSampleTypeDepth, depth.Texture.SampleType)
	assert.Equal(t, wgpu.TextureViewDimension2D, depth.Texture.ViewDimension)
}

func TestVoxelComputeReflection(t *testing.T) {
	scatter := NewShaderFromAsset("voxel_scatter", ShaderTypeCompute, "voxel_scatter.wgsl")
	assert.Equal(t, "cs_main", scatter.EntryPoint())
	assert.Equal(t, [3]uint32{64, 1, 1}, scatter.WorkgroupSize())
	samples := entry(t, scatter, 0, 2)
	assert.Equal(t, wgpu.BufferBindingTypeReadOnlyStorage, samples.Buffer.Type)
	assert.Equal(t, uint64(16), samples.Buffer.MinBindingSize)
	acc := entry(t, scatter, 0, 3)
	assert.Equal(t, wgpu.BufferBindingTypeStorage, acc.Buffer.Type)
	assert.Equal(t, uint64(4), acc.Buffer.MinBindingSize)
	assert.Equal(t, wgpu.ShaderStageCompute, acc.Visibility)

	reduce := NewShaderFromAsset("voxel_reduce", ShaderTypeCompute, "voxel_reduce.wgsl")
	assert.Equal(t, [3]uint32{4, 4, 4}, reduce.WorkgroupSize())
	out := entry(t, reduce, 0, 2)
	assert.Equal(t, wgpu.TextureFormatRGBA8Unorm, out.StorageTexture.Format)
	assert.Equal(t, wgpu.StorageTextureAccessWriteOnly, out.StorageTexture.Access)
	assert.Equal(t, wgpu.TextureViewDimension3D, out.StorageTexture.ViewDimension)

	down := NewShaderFromAsset("voxel_downsample", ShaderTypeCompute, "voxel_downsample.wgsl")
	assert.Equal(t, wgpu.TextureViewDimension3D, entry(t, down, 0, 0).Texture.ViewDimension)
}

func TestWorkgroupSizeDefaults(t *testing.T) {
	assert.Equal(t, [3]uint32{64, 1, 1}, reflectWorkgroupSize("@compute @workgroup_size(64) fn main() {}"))
	assert.Equal(t, [3]uint32{1, 1, 1}, reflectWorkgroupSize("fn main() {}"))
}

func TestStripComments(t *testing.T) {
	src := "a /* b /* nested */ c */ d // e\nf"
	assert.Equal(t, "a  d \nf", stripComments(src))
}

func TestStructLayoutAlignment(t *testing.T) {
	structs := parseStructs("struct S { a: f32, b: vec3<f32>, c: f32, };")
	layouts := structLayouts(structs)
	// b aligns to 16, c packs into b's trailing 4 bytes, size rounds up to 32
	assert.Equal(t, typeLayout{32, 16}, layouts["S"])
}

func TestAssetsCompile(t *testing.T) {
	for _, name := range AssetNames() {
		t.Run(name, func(t *testing.T) {
			src, err := Expand(name)
			require.NoError(t, err)

			err = Validate(src)
			if errors.Is(err, ErrCompilerLimitation) {
				t.Skipf("%v", err)
			}
			require.NoError(t, err)
		})
	}
}

func TestRelationalBuiltinsAreNotShaderBugs(t *testing.T) {
	src := `@compute @workgroup_size(1)
fn main() {
	let v = vec2<bool>(true, false);
	if (any(v) && !all(v)) {
		return;
	}
}`
	if err := Validate(src); err != nil {
		assert.ErrorIs(t, err, ErrCompilerLimitation)
	}

	assert.True(t, IsCompilerLimitation(errors.New("unsupported expression kind: ir.ExprRelational")))
	assert.True(t, IsCompilerLimitation(fmt.Errorf("lighting.wgsl: %w", ErrCompilerLimitation)))
	assert.False(t, IsCompilerLimitation(errors.New("expected ';'")))
	assert.False(t, IsCompilerLimitation(nil))
}

func TestValidateRejectsGarbage(t *testing.T) {
	_, err := naga.Compile("this is not wgsl")
	require.Error(t, err)
	assert.Error(t, Validate("this is not wgsl"))
}
