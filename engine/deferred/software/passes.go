package software

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Carmen-Shannon/oxy-deferred/engine/config"
	"github.com/Carmen-Shannon/oxy-deferred/engine/deferred"
	"github.com/Carmen-Shannon/oxy-deferred/engine/frame"
	"github.com/Carmen-Shannon/oxy-deferred/engine/graph"
	"github.com/Carmen-Shannon/oxy-deferred/engine/postfx"
	"github.com/Carmen-Shannon/oxy-deferred/engine/shading"
	"github.com/Carmen-Shannon/oxy-deferred/engine/ssao"
	"github.com/Carmen-Shannon/oxy-deferred/engine/voxel"
)

// lookup resolves a resource of the current frame.
func lookup[T any](fc *graph.FrameContext, p graph.Purpose) (T, error) {
	v, _, err := graph.Lookup[T](fc.Registry, p)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("resolve %s: %w", p, err)
	}
	return v, nil
}

func (b *backendImpl) Geometry(ctx context.Context, fc *graph.FrameContext, in *deferred.FrameInputs) error {
	gb, err := lookup[*frame.GBuffer](fc, deferred.PurposeGBuffer)
	if err != nil {
		return err
	}
	_, h := gb.Size()
	b.pool.For(h, gb.ClearRows)

	b.raster.SetNormalStrength(in.Config.Lighting.NormalStrength)
	b.raster.Begin(gb, in.Camera.ViewProjection())
	for _, batch := range in.Batches {
		if batch.Mesh == nil || batch.Material == nil {
			continue
		}
		b.raster.Submit(batch.Mesh, batch.Material, batch.Instances)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	b.pool.For(h, b.raster.DrawRows)

	b.mu.Lock()
	b.gbuffer = gb
	b.mu.Unlock()
	return nil
}

func (b *backendImpl) AmbientOcclusion(ctx context.Context, fc *graph.FrameContext, in *deferred.FrameInputs) error {
	gb, err := lookup[*frame.GBuffer](fc, deferred.PurposeGBuffer)
	if err != nil {
		return err
	}
	dst, err := lookup[*frame.Image1](fc, deferred.PurposeAORaw)
	if err != nil {
		return err
	}
	cfg := in.Config
	_, h := gb.Size()

	switch cfg.SSAO.Mode {
	case config.AOModeKernel:
		if len(b.kernel) != cfg.SSAO.KernelSize {
			if b.kernel, err = ssao.Kernel(cfg.SSAO.KernelSize, b.rng); err != nil {
				return err
			}
		}
		p := ssao.Params{
			Radius:     cfg.SSAO.Radius,
			Bias:       cfg.SSAO.Bias,
			View:       in.Camera.View,
			Projection: in.Camera.Projection,
		}
		b.pool.For(h, func(y0, y1 int) {
			ssao.KernelAO(gb, b.kernel, b.noise, p, dst, y0, y1)
		})
	case config.AOModeHBAO:
		p := ssao.HBAOParams{
			Directions: cfg.HBAO.Directions,
			Steps:      cfg.HBAO.Steps,
			Radius:     cfg.HBAO.Radius,
			FallOff:    cfg.HBAO.FallOff,
			AngleBias:  cfg.HBAO.AngleBias,
			View:       in.Camera.View,
			Projection: in.Camera.Projection,
		}
		b.pool.For(h, func(y0, y1 int) {
			ssao.HBAO(gb, b.noise, p, dst, y0, y1)
		})
	default:
		b.pool.For(h, func(y0, y1 int) {
			ssao.Unoccluded(dst, y0, y1)
		})
	}
	return ctx.Err()
}

func (b *backendImpl) Blur(ctx context.Context, fc *graph.FrameContext, in *deferred.FrameInputs, size int) error {
	src, err := lookup[*frame.Image1](fc, deferred.PurposeAORaw)
	if err != nil {
		return err
	}
	dst, err := lookup[*frame.Image1](fc, deferred.PurposeAO)
	if err != nil {
		return err
	}
	b.pool.For(src.Height, func(y0, y1 int) {
		ssao.BoxBlur(src, dst, size, y0, y1)
	})

	b.mu.Lock()
	b.ao = dst
	b.mu.Unlock()
	return ctx.Err()
}

func (b *backendImpl) VoxelScatter(ctx context.Context, fc *graph.FrameContext, in *deferred.FrameInputs) error {
	acc, err := lookup[*voxel.Accumulator](fc, deferred.PurposeVoxelAccum)
	if err != nil {
		return err
	}
	src := deferred.NewSceneSource(in.Batches, in.Lights, acc.Grid())
	voxel.ScatterAll(acc, src, b.pool)
	b.log.Debug("voxel scatter",
		zap.Int("samples", src.Len()),
		zap.Uint64("written", acc.Written()),
		zap.Uint64("dropped", acc.Dropped()),
	)
	return ctx.Err()
}

func (b *backendImpl) VoxelReduce(ctx context.Context, fc *graph.FrameContext, in *deferred.FrameInputs) error {
	acc, err := lookup[*voxel.Accumulator](fc, deferred.PurposeVoxelAccum)
	if err != nil {
		return err
	}
	slot, err := lookup[*volumeSlot](fc, deferred.PurposeVoxelBase)
	if err != nil {
		return err
	}
	slot.vol = voxel.ReduceParallel(acc, b.pool)
	return ctx.Err()
}

func (b *backendImpl) VoxelDownsample(ctx context.Context, fc *graph.FrameContext, in *deferred.FrameInputs) error {
	slot, err := lookup[*volumeSlot](fc, deferred.PurposeVoxelBase)
	if err != nil {
		return err
	}
	lm, err := lookup[voxel.Lightmap](fc, deferred.PurposeVoxelLightmap)
	if err != nil {
		return err
	}
	if slot.vol == nil {
		return fmt.Errorf("voxel downsample ran before reduce")
	}
	voxel.DownsampleParallel(slot.vol, b.pool)
	if err := ctx.Err(); err != nil {
		return err
	}
	// readers holding the previous volume keep a complete chain
	lm.Publish(slot.vol)
	slot.vol = nil

	b.mu.Lock()
	b.lightmap = lm
	b.mu.Unlock()
	return nil
}

func (b *backendImpl) Lighting(ctx context.Context, fc *graph.FrameContext, in *deferred.FrameInputs) error {
	gb, err := lookup[*frame.GBuffer](fc, deferred.PurposeGBuffer)
	if err != nil {
		return err
	}
	ao, err := lookup[*frame.Image1](fc, deferred.PurposeAO)
	if err != nil {
		return err
	}
	dst, err := lookup[*frame.Image4](fc, deferred.PurposeHDR)
	if err != nil {
		return err
	}

	cfg := in.Config
	p := shading.Params{
		Lights:           in.Lights,
		ViewPosition:     in.Camera.Position,
		AmbientIntensity: cfg.Lighting.AmbientIntensity,
		AmbientPower:     cfg.Lighting.AmbientPower,
		VoxelIntensity:   cfg.Voxel.Intensity,
		VoxelLOD:         cfg.Voxel.LOD,
		Debug:            in.Debug,
	}
	if cfg.Voxel.Enabled {
		lm, err := lookup[voxel.Lightmap](fc, deferred.PurposeVoxelLightmap)
		if err != nil {
			return err
		}
		p.Voxel = lm.Load()
	}

	_, h := gb.Size()
	b.pool.For(h, func(y0, y1 int) {
		shading.LightingRows(gb, ao, p, dst, y0, y1)
	})
	return ctx.Err()
}

func (b *backendImpl) MotionBlur(ctx context.Context, fc *graph.FrameContext, in *deferred.FrameInputs, taps int) error {
	src, err := lookup[*frame.Image4](fc, deferred.PurposeHDR)
	if err != nil {
		return err
	}
	gb, err := lookup[*frame.GBuffer](fc, deferred.PurposeGBuffer)
	if err != nil {
		return err
	}
	dst, err := lookup[*frame.Image4](fc, deferred.PurposeBlurred)
	if err != nil {
		return err
	}
	scale := in.Config.MotionBlur.Scale
	b.pool.For(src.Height, func(y0, y1 int) {
		postfx.MotionBlurRows(src, gb.Depth, in.Camera, taps, scale, dst, y0, y1)
	})
	return ctx.Err()
}

func (b *backendImpl) ToneMap(ctx context.Context, fc *graph.FrameContext, in *deferred.FrameInputs) error {
	src, err := lookup[*frame.Image4](fc, deferred.PurposeBlurred)
	if err != nil {
		return err
	}
	dst, err := lookup[*frame.Image4](fc, deferred.PurposeOutput)
	if err != nil {
		return err
	}
	gamma := in.Config.Lighting.Gamma
	b.pool.For(src.Height, func(y0, y1 int) {
		postfx.ToneMapRows(src, dst, gamma, y0, y1)
	})

	b.mu.Lock()
	b.output = dst
	b.mu.Unlock()
	return ctx.Err()
}
