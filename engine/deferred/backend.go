// Package deferred assembles the multi-pass deferred pipeline on top of the frame graph: geometry,
// ambient occlusion, blur, the voxel lightmap rebuild, lighting, motion blur and tone mapping.
// A Backend executes the passes on the CPU or the GPU; the Renderer owns the graph and the
// per-frame inputs.
package deferred

import (
	"context"
	"fmt"

	"github.com/Carmen-Shannon/oxy-deferred/engine/camera"
	"github.com/Carmen-Shannon/oxy-deferred/engine/config"
	"github.com/Carmen-Shannon/oxy-deferred/engine/graph"
	"github.com/Carmen-Shannon/oxy-deferred/engine/light"
	"github.com/Carmen-Shannon/oxy-deferred/engine/model"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/material"
)

// Batch is one mesh drawn with one material at several placements.
type Batch struct {
	Mesh      *model.Mesh
	Material  material.Material
	Instances []model.Instance
}

// FrameInputs is the immutable payload of one frame. Passes read it, never write it.
type FrameInputs struct {
	Camera  camera.Matrices
	Lights  []light.Light
	Batches []Batch
	Debug   [4]float32
	// VoxelRebuild is set by the Renderer on the frame that consumes a rebuild request.
	VoxelRebuild bool
	// Config is the configuration snapshot this frame runs with.
	Config config.Config
}

// Backend executes the passes of the pipeline. Each method reads and writes the resources its pass
// declares, found in fc.Registry under the Purpose constants of this package.
type Backend interface {
	graph.Device

	// Geometry rasterizes every batch into PurposeGBuffer.
	Geometry(ctx context.Context, fc *graph.FrameContext, in *FrameInputs) error

	// AmbientOcclusion writes PurposeAORaw with the formulation selected by in.Config.SSAO.Mode.
	// Mode off writes 1 everywhere.
	AmbientOcclusion(ctx context.Context, fc *graph.FrameContext, in *FrameInputs) error

	// Blur box-filters PurposeAORaw into PurposeAO. A size of 1 copies.
	Blur(ctx context.Context, fc *graph.FrameContext, in *FrameInputs, size int) error

	// VoxelScatter clears PurposeVoxelAccum and scatters the lit samples of NewSceneSource into it.
	VoxelScatter(ctx context.Context, fc *graph.FrameContext, in *FrameInputs) error

	// VoxelReduce averages PurposeVoxelAccum into level 0 of PurposeVoxelBase.
	VoxelReduce(ctx context.Context, fc *graph.FrameContext, in *FrameInputs) error

	// VoxelDownsample builds the mip chain of PurposeVoxelBase and publishes it as PurposeVoxelLightmap.
	VoxelDownsample(ctx context.Context, fc *graph.FrameContext, in *FrameInputs) error

	// Lighting shades the G-buffer into PurposeHDR.
	Lighting(ctx context.Context, fc *graph.FrameContext, in *FrameInputs) error

	// MotionBlur reprojects PurposeHDR into PurposeBlurred. One tap copies.
	MotionBlur(ctx context.Context, fc *graph.FrameContext, in *FrameInputs, taps int) error

	// ToneMap writes PurposeBlurred into PurposeOutput in display gamma.
	ToneMap(ctx context.Context, fc *graph.FrameContext, in *FrameInputs) error
}

// inputsOf extracts the frame payload.
func inputsOf(fc *graph.FrameContext) (*FrameInputs, error) {
	in, ok := fc.Inputs.(*FrameInputs)
	if !ok || in == nil {
		return nil, fmt.Errorf("frame %d: inputs are %T, want *deferred.FrameInputs", fc.Index, fc.Inputs)
	}
	return in, nil
}
