package deferred

import (
	"github.com/Carmen-Shannon/oxy-deferred/engine/config"
	"github.com/Carmen-Shannon/oxy-deferred/engine/graph"
)

// Resource purposes of the deferred pipeline. Every purpose has exactly one writing pass.
const (
	PurposeGBuffer graph.Purpose = "gbuffer"
	// PurposeAORaw is the unblurred occlusion written by whichever AO mode is selected.
	PurposeAORaw graph.Purpose = "ao_raw"
	PurposeAO    graph.Purpose = "ao"
	PurposeHDR   graph.Purpose = "hdr"
	// PurposeBlurred is the motion-blurred HDR colour.
	PurposeBlurred graph.Purpose = "hdr_blurred"
	PurposeOutput  graph.Purpose = "output"

	PurposeVoxelAccum graph.Purpose = "voxel_accum"
	// PurposeVoxelBase is level 0 of the volume being rebuilt.
	PurposeVoxelBase graph.Purpose = "voxel_base"
	// PurposeVoxelLightmap is the published mip chain read by lighting. It survives resizes.
	PurposeVoxelLightmap graph.Purpose = "voxel_lightmap"
)

// Formats name the attachment layout; the GPU backend maps them to texture formats.
const (
	FormatGBuffer    graph.Format = "rgba16float*4+depth32float"
	FormatR16F       graph.Format = "r16float"
	FormatRGBA16F    graph.Format = "rgba16float"
	FormatRGBA8      graph.Format = "rgba8unorm"
	FormatVoxelAccum graph.Format = "atomic-u32*4"
	FormatVoxel      graph.Format = "rgba8unorm-3d"
)

// Resources returns the resource declarations of the pipeline for cfg.
func Resources(cfg config.Config) []graph.ResourceDesc {
	r := cfg.Voxel.Resolution
	voxelSize := graph.Resolution{Width: r, Height: r}
	return []graph.ResourceDesc{
		{Purpose: PurposeGBuffer, Format: FormatGBuffer, Kind: graph.Transient, ScalesWithOutput: true},
		{Purpose: PurposeAORaw, Format: FormatR16F, Kind: graph.Transient, ScalesWithOutput: true},
		{Purpose: PurposeAO, Format: FormatR16F, Kind: graph.Transient, ScalesWithOutput: true},
		{Purpose: PurposeHDR, Format: FormatRGBA16F, Kind: graph.Transient, ScalesWithOutput: true},
		{Purpose: PurposeBlurred, Format: FormatRGBA16F, Kind: graph.Transient, ScalesWithOutput: true},
		{Purpose: PurposeOutput, Format: FormatRGBA8, Kind: graph.Transient, ScalesWithOutput: true},
		{Purpose: PurposeVoxelAccum, Format: FormatVoxelAccum, Kind: graph.Transient, Size: voxelSize},
		{Purpose: PurposeVoxelBase, Format: FormatVoxel, Kind: graph.Transient, Size: voxelSize},
		{Purpose: PurposeVoxelLightmap, Format: FormatVoxel, Kind: graph.Persistent, Size: voxelSize},
	}
}
