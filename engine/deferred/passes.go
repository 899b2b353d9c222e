package deferred

import (
	"context"

	"github.com/Carmen-Shannon/oxy-deferred/engine/config"
	"github.com/Carmen-Shannon/oxy-deferred/engine/graph"
)

// Pass names in declaration order.
const (
	PassGeometry         = "geometry"
	PassAmbientOcclusion = "ambient_occlusion"
	PassBlur             = "ao_blur"
	PassVoxelScatter     = "voxel_scatter"
	PassVoxelReduce      = "voxel_reduce"
	PassVoxelDownsample  = "voxel_downsample"
	PassLighting         = "lighting"
	PassMotionBlur       = "motion_blur"
	PassToneMap          = "tone_map"
)

// stage adapts one Backend method to graph.Pass.
type stage struct {
	name   string
	reads  []graph.Purpose
	writes []graph.Purpose
	run    func(ctx context.Context, fc *graph.FrameContext, in *FrameInputs) error
}

var _ graph.Pass = &stage{}

func (s *stage) Name() string            { return s.name }
func (s *stage) Reads() []graph.Purpose  { return s.reads }
func (s *stage) Writes() []graph.Purpose { return s.writes }

func (s *stage) Execute(ctx context.Context, fc *graph.FrameContext) error {
	in, err := inputsOf(fc)
	if err != nil {
		return err
	}
	return s.run(ctx, fc, in)
}

// voxelStage only runs on frames that consume a voxel rebuild request.
type voxelStage struct {
	stage
}

var _ graph.Conditional = &voxelStage{}

func (s *voxelStage) Active(fc *graph.FrameContext) bool {
	in, err := inputsOf(fc)
	return err == nil && in.VoxelRebuild && in.Config.Voxel.Enabled
}

// NewGeometryPass writes the G-buffer.
func NewGeometryPass(b Backend) graph.Pass {
	return &stage{
		name:   PassGeometry,
		writes: []graph.Purpose{PurposeGBuffer},
		run:    b.Geometry,
	}
}

// NewAmbientOcclusionPass writes the raw occlusion. Kernel SSAO, HBAO and off are modes of this
// single pass so exactly one of them writes PurposeAORaw.
func NewAmbientOcclusionPass(b Backend) graph.Pass {
	return &stage{
		name:   PassAmbientOcclusion,
		reads:  []graph.Purpose{PurposeGBuffer},
		writes: []graph.Purpose{PurposeAORaw},
		run:    b.AmbientOcclusion,
	}
}

// NewBlurPass filters the raw occlusion. With blur disabled it still runs with size 1.
func NewBlurPass(b Backend) graph.Pass {
	return &stage{
		name:   PassBlur,
		reads:  []graph.Purpose{PurposeAORaw},
		writes: []graph.Purpose{PurposeAO},
		run: func(ctx context.Context, fc *graph.FrameContext, in *FrameInputs) error {
			size := 1
			if in.Config.SSAO.Blur && in.Config.SSAO.Mode != config.AOModeOff {
				size = in.Config.SSAO.BlurSize
			}
			return b.Blur(ctx, fc, in, size)
		},
	}
}

// NewVoxelScatterPass accumulates lit scene surface samples into the voxel grid. It voxelizes the
// batches directly, so it depends on no screen-space resource.
func NewVoxelScatterPass(b Backend) graph.Pass {
	return &voxelStage{stage{
		name:   PassVoxelScatter,
		writes: []graph.Purpose{PurposeVoxelAccum},
		run:    b.VoxelScatter,
	}}
}

// NewVoxelReducePass averages the accumulator into level 0.
func NewVoxelReducePass(b Backend) graph.Pass {
	return &voxelStage{stage{
		name:   PassVoxelReduce,
		reads:  []graph.Purpose{PurposeVoxelAccum},
		writes: []graph.Purpose{PurposeVoxelBase},
		run:    b.VoxelReduce,
	}}
}

// NewVoxelDownsamplePass builds the mips and publishes the lightmap.
func NewVoxelDownsamplePass(b Backend) graph.Pass {
	return &voxelStage{stage{
		name:   PassVoxelDownsample,
		reads:  []graph.Purpose{PurposeVoxelBase},
		writes: []graph.Purpose{PurposeVoxelLightmap},
		run:    b.VoxelDownsample,
	}}
}

// NewLightingPass shades the G-buffer.
func NewLightingPass(b Backend) graph.Pass {
	return &stage{
		name:   PassLighting,
		reads:  []graph.Purpose{PurposeGBuffer, PurposeAO, PurposeVoxelLightmap},
		writes: []graph.Purpose{PurposeHDR},
		run:    b.Lighting,
	}
}

// NewMotionBlurPass reprojects the HDR colour. With motion blur disabled it copies with one tap.
func NewMotionBlurPass(b Backend) graph.Pass {
	return &stage{
		name:   PassMotionBlur,
		reads:  []graph.Purpose{PurposeHDR, PurposeGBuffer},
		writes: []graph.Purpose{PurposeBlurred},
		run: func(ctx context.Context, fc *graph.FrameContext, in *FrameInputs) error {
			taps := 1
			if in.Config.MotionBlur.Enabled {
				taps = in.Config.MotionBlur.Taps
			}
			return b.MotionBlur(ctx, fc, in, taps)
		},
	}
}

// NewToneMapPass writes the presentable output.
func NewToneMapPass(b Backend) graph.Pass {
	return &stage{
		name:   PassToneMap,
		reads:  []graph.Purpose{PurposeBlurred},
		writes: []graph.Purpose{PurposeOutput},
		run:    b.ToneMap,
	}
}

// Passes returns every pass of the pipeline in declaration order.
func Passes(b Backend) []graph.Pass {
	return []graph.Pass{
		NewGeometryPass(b),
		NewAmbientOcclusionPass(b),
		NewBlurPass(b),
		NewVoxelScatterPass(b),
		NewVoxelReducePass(b),
		NewVoxelDownsamplePass(b),
		NewLightingPass(b),
		NewMotionBlurPass(b),
		NewToneMapPass(b),
	}
}
