package gpu

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"go.uber.org/zap"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/camera"
	"github.com/Carmen-Shannon/oxy-deferred/engine/config"
	"github.com/Carmen-Shannon/oxy-deferred/engine/deferred"
	"github.com/Carmen-Shannon/oxy-deferred/engine/graph"
	"github.com/Carmen-Shannon/oxy-deferred/engine/light"
	"github.com/Carmen-Shannon/oxy-deferred/engine/model"
	"github.com/Carmen-Shannon/oxy-deferred/engine/postfx"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-deferred/engine/shading"
	"github.com/Carmen-Shannon/oxy-deferred/engine/ssao"
	"github.com/Carmen-Shannon/oxy-deferred/engine/voxel"
)

type provider = bind_group_provider.BindGroupProvider

// lookup resolves a resource of the current frame.
func lookup[T any](fc *graph.FrameContext, p graph.Purpose) (T, error) {
	v, _, err := graph.Lookup[T](fc.Registry, p)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("resolve %s: %w", p, err)
	}
	return v, nil
}

// binding is one borrowed resource of a pass bind group.
type binding struct {
	index int
	view  *wgpu.TextureView
	buf   *wgpu.Buffer
}

func view(index int, v *wgpu.TextureView) binding { return binding{index: index, view: v} }
func buffer(index int, b *wgpu.Buffer) binding    { return binding{index: index, buf: b} }

// mipView returns the single-level view of t at level, or the whole view when t has one level.
func mipView(t *renderer.Target, level int) *wgpu.TextureView {
	if level < len(t.MipViews) {
		return t.MipViews[level]
	}
	return t.View
}

// group returns the cached provider called name with the given resources bound, building its bind
// group against group 0 of the pipeline key. Bindings not listed are created and owned by the
// provider with the sizes in sizes. Callers hold b.mu.
func (b *backendImpl) group(name, key string, sizes map[int]uint64, bindings ...binding) (provider, error) {
	p, ok := b.groups[name]
	if !ok {
		p = bind_group_provider.NewBindGroupProvider(name)
		b.groups[name] = p
	}
	for _, bd := range bindings {
		switch {
		case bd.view != nil:
			p.SetTextureView(bd.index, bd.view, false)
		case bd.buf != nil:
			p.SetBuffer(bd.index, bd.buf, false)
		}
	}
	if err := b.r.InitBindGroup(p, key, 0, sizes); err != nil {
		return nil, err
	}
	return p, nil
}

// writeShared uploads the frame uniform and the light array once per frame. Callers hold b.mu.
func (b *backendImpl) writeShared(fc *graph.FrameContext, in *deferred.FrameInputs) {
	if b.uniformFrame == fc.Index {
		return
	}
	b.uniformFrame = fc.Index
	frame := camera.NewGPUFrameUniform(in.Camera)
	b.r.WriteBuffer(b.frameBuf, 0, frame.Marshal())
	lights := light.NewGPULightArray(in.Lights)
	b.r.WriteBuffer(b.lightsBuf, 0, lights.Marshal())
	if len(in.Lights) > light.MaxGPULights {
		b.log.Debug("lights past the GPU cap are ignored", zap.Int("lights", len(in.Lights)))
	}
}

// fullscreen records one render pass drawing a single full-screen triangle.
func (b *backendImpl) fullscreen(key string, targets renderer.RenderPassTargets, groups ...provider) error {
	if err := b.r.BeginRenderPass(targets); err != nil {
		return err
	}
	err := b.r.DrawFullscreen(key, groups)
	b.r.EndRenderPass()
	return err
}

// visibleInstances drops instances whose bounding sphere lies outside the frustum.
func visibleInstances(f *common.Frustum, mesh *model.Mesh, instances []model.Instance) []model.Instance {
	center, radius := mesh.Bounds()
	out := make([]model.Instance, 0, len(instances))
	for _, inst := range instances {
		worldCenter := inst.Model.Mul4x1(center.Vec4(1)).Vec3()
		if f.IntersectsSphere(worldCenter, radius*common.MaxScale(inst.Model)) {
			out = append(out, inst)
		}
	}
	return out
}

// meshProvider uploads a mesh the first time it is drawn. Callers hold b.mu.
func (b *backendImpl) meshProvider(m *model.Mesh) (provider, error) {
	if p, ok := b.meshes[m.Key()]; ok {
		return p, nil
	}
	p := bind_group_provider.NewBindGroupProvider("Mesh " + m.Name())
	if err := b.r.InitMeshBuffers(p, model.MarshalVertices(m), model.MarshalIndices(m), len(m.Indices())); err != nil {
		p.Release()
		return nil, err
	}
	b.meshes[m.Key()] = p
	return p, nil
}

// materialProvider uploads a material's maps the first time it is drawn and rewrites its
// parameters. Callers hold b.mu.
func (b *backendImpl) materialProvider(m material.Material, normalStrength float32) (provider, error) {
	p, ok := b.materials[m.Key()]
	if !ok {
		p = bind_group_provider.NewBindGroupProvider("Material " + m.Name())
		maps := []*material.Texture{m.AlbedoTexture(), m.ARMTexture(), m.NormalTexture()}
		for i, t := range maps {
			if err := b.r.InitTextureView(p, i, t.StagingData()); err != nil {
				p.Release()
				return nil, err
			}
		}
		if err := b.r.InitSampler(p, 3, common.SamplerStagingData{}); err != nil {
			p.Release()
			return nil, err
		}
		var params material.GPUParams
		if err := b.r.InitBindGroup(p, KeyGeometry, 1, map[int]uint64{4: uint64(params.Size())}); err != nil {
			p.Release()
			return nil, err
		}
		b.materials[m.Key()] = p
	}
	params := material.NewGPUParams(m, normalStrength)
	b.r.WriteBuffers([]bind_group_provider.BufferWrite{{Provider: p, Binding: 4, Data: params.Marshal()}})
	return p, nil
}

// instanceProvider returns group 0 of the geometry pass for draw slot i with the instances
// uploaded. Callers hold b.mu.
func (b *backendImpl) instanceProvider(i int, instances []model.Instance) (provider, error) {
	for len(b.batches) <= i {
		name := fmt.Sprintf("Batch %d", len(b.batches))
		b.batches = append(b.batches, &batchSlot{
			provider: bind_group_provider.NewBindGroupProvider(name, bind_group_provider.WithSharedBuffer(0, b.frameBuf)),
		})
	}
	slot := b.batches[i]
	if len(instances) > slot.capacity {
		capacity := max(len(instances), 2*slot.capacity)
		buf, err := b.r.CreateBuffer(slot.provider.Label()+" Instances", uint64(capacity*128), wgpu.BufferUsageStorage)
		if err != nil {
			return nil, err
		}
		slot.provider.SetBuffer(1, buf, true)
		slot.capacity = capacity
	}
	if err := b.r.InitBindGroup(slot.provider, KeyGeometry, 0, nil); err != nil {
		return nil, err
	}
	b.r.WriteBuffer(slot.provider.Buffer(1), 0, model.MarshalInstances(instances))
	return slot.provider, nil
}

func (b *backendImpl) Geometry(ctx context.Context, fc *graph.FrameContext, in *deferred.FrameInputs) error {
	gb, err := lookup[*gbufferTargets](fc, deferred.PurposeGBuffer)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writeShared(fc, in)

	type draw struct {
		mesh, material, instances provider
		count                     uint32
	}
	frustum := common.ExtractFrustum(in.Camera.ViewProjection())
	draws := make([]draw, 0, len(in.Batches))
	for _, batch := range in.Batches {
		if batch.Mesh == nil || batch.Material == nil {
			continue
		}
		b.stats.Batches++
		visible := visibleInstances(&frustum, batch.Mesh, batch.Instances)
		b.stats.CulledInstances += len(batch.Instances) - len(visible)
		if len(visible) == 0 {
			continue
		}
		b.stats.DrawnInstances += len(visible)

		mesh, err := b.meshProvider(batch.Mesh)
		if err != nil {
			return err
		}
		mat, err := b.materialProvider(batch.Material, in.Config.Lighting.NormalStrength)
		if err != nil {
			return err
		}
		inst, err := b.instanceProvider(len(draws), visible)
		if err != nil {
			return err
		}
		draws = append(draws, draw{mesh: mesh, material: mat, instances: inst, count: uint32(len(visible))})
	}

	// position.w of zero marks background pixels
	err = b.r.BeginRenderPass(renderer.RenderPassTargets{
		Label: deferred.PassGeometry,
		Color: gb.views(),
		Depth: gb.depth.View,
	})
	if err != nil {
		return err
	}
	for _, d := range draws {
		if err := b.r.DrawCall(KeyGeometry, d.mesh, d.count, []provider{d.instances, d.material}); err != nil {
			b.r.EndRenderPass()
			return err
		}
	}
	b.r.EndRenderPass()
	return ctx.Err()
}

// ssaoParams packs the whole AO uniform; the AO and blur passes each own a copy. Callers hold b.mu.
func (b *backendImpl) ssaoParams(in *deferred.FrameInputs, blurSize int) ([]byte, error) {
	cfg := in.Config
	if len(b.kernel) != cfg.SSAO.KernelSize {
		kernel, err := ssao.Kernel(cfg.SSAO.KernelSize, b.rng)
		if err != nil {
			return nil, err
		}
		b.kernel = kernel
	}
	params := ssao.NewGPUParams(b.kernel, b.noise,
		ssao.Params{
			Radius:     cfg.SSAO.Radius,
			Bias:       cfg.SSAO.Bias,
			View:       in.Camera.View,
			Projection: in.Camera.Projection,
		},
		ssao.HBAOParams{
			Directions: cfg.HBAO.Directions,
			Steps:      cfg.HBAO.Steps,
			Radius:     cfg.HBAO.Radius,
			FallOff:    cfg.HBAO.FallOff,
			AngleBias:  cfg.HBAO.AngleBias,
			View:       in.Camera.View,
			Projection: in.Camera.Projection,
		},
	)
	params.BlurSize = uint32(max(blurSize, 1))
	return params.Marshal(), nil
}

func ssaoParamsSize() uint64 {
	var params ssao.GPUParams
	return uint64(params.Size())
}

func (b *backendImpl) AmbientOcclusion(ctx context.Context, fc *graph.FrameContext, in *deferred.FrameInputs) error {
	gb, err := lookup[*gbufferTargets](fc, deferred.PurposeGBuffer)
	if err != nil {
		return err
	}
	dst, err := lookup[*renderer.Target](fc, deferred.PurposeAORaw)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writeShared(fc, in)

	targets := renderer.RenderPassTargets{Label: deferred.PassAmbientOcclusion, Color: []*wgpu.TextureView{dst.View}}
	var key string
	switch in.Config.SSAO.Mode {
	case config.AOModeKernel:
		key = KeySSAO
	case config.AOModeHBAO:
		key = KeyHBAO
	default:
		// clearing to white is full visibility
		targets.ClearColor = wgpu.Color{R: 1, G: 1, B: 1, A: 1}
		if err := b.r.BeginRenderPass(targets); err != nil {
			return err
		}
		b.r.EndRenderPass()
		return ctx.Err()
	}

	p, err := b.group("AO "+key, key, map[int]uint64{1: ssaoParamsSize()},
		buffer(0, b.frameBuf),
		view(2, gb.color[0].View),
		view(3, gb.color[1].View),
	)
	if err != nil {
		return err
	}
	data, err := b.ssaoParams(in, 1)
	if err != nil {
		return err
	}
	b.r.WriteBuffers([]bind_group_provider.BufferWrite{{Provider: p, Binding: 1, Data: data}})
	if err := b.fullscreen(key, targets, p); err != nil {
		return err
	}
	return ctx.Err()
}

func (b *backendImpl) Blur(ctx context.Context, fc *graph.FrameContext, in *deferred.FrameInputs, size int) error {
	src, err := lookup[*renderer.Target](fc, deferred.PurposeAORaw)
	if err != nil {
		return err
	}
	dst, err := lookup[*renderer.Target](fc, deferred.PurposeAO)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	p, err := b.group("AO Blur", KeyBlur, map[int]uint64{0: ssaoParamsSize()}, view(1, src.View))
	if err != nil {
		return err
	}
	data, err := b.ssaoParams(in, size)
	if err != nil {
		return err
	}
	b.r.WriteBuffers([]bind_group_provider.BufferWrite{{Provider: p, Binding: 0, Data: data}})
	err = b.fullscreen(KeyBlur, renderer.RenderPassTargets{Label: deferred.PassBlur, Color: []*wgpu.TextureView{dst.View}}, p)
	if err != nil {
		return err
	}
	return ctx.Err()
}

// scatterParamsSize is the size of the ScatterParams uniform: count, row stride and padding.
const scatterParamsSize = 16

// maxWorkgroups is the per-dimension dispatch limit of WebGPU.
const maxWorkgroups = 65535

// scatterDispatch spreads n invocations of a 64-wide workgroup over x and y. Returns the workgroup
// counts and the invocation stride of one y row.
func scatterDispatch(n int) ([3]uint32, uint32) {
	groups := max(workgroups(n, 64), 1)
	x := min(groups, maxWorkgroups)
	y := (groups + x - 1) / x
	return [3]uint32{x, y, 1}, x * 64
}

// uploadSamples writes the scene samples, growing the storage buffer when it is too small. Callers
// hold b.mu.
func (b *backendImpl) uploadSamples(data []byte) error {
	size := max(uint64(len(data)), voxel.GPUSampleSize)
	if size > b.samplesSize {
		releaseBuffer(b.samplesBuf)
		capacity := max(size, 2*b.samplesSize)
		buf, err := b.r.CreateBuffer("Voxel Scatter Samples", capacity, wgpu.BufferUsageStorage)
		if err != nil {
			b.samplesBuf, b.samplesSize = nil, 0
			return err
		}
		b.samplesBuf, b.samplesSize = buf, capacity
	}
	if len(data) > 0 {
		b.r.WriteBuffer(b.samplesBuf, 0, data)
	}
	return nil
}

func (b *backendImpl) VoxelScatter(ctx context.Context, fc *graph.FrameContext, in *deferred.FrameInputs) error {
	acc, err := lookup[*voxelAccum](fc, deferred.PurposeVoxelAccum)
	if err != nil {
		return err
	}
	data, n := voxel.MarshalSamples(deferred.NewSceneSource(in.Batches, in.Lights, b.grid))

	b.mu.Lock()
	defer b.mu.Unlock()

	// reduce clears the counters it reads, so only an interrupted rebuild needs a reset
	if acc.dirty {
		b.r.WriteBuffer(acc.buf, 0, make([]byte, acc.size))
		b.log.Debug("voxel accumulator reset after an interrupted rebuild")
	}
	if err := b.uploadSamples(data); err != nil {
		return err
	}
	wg, row := scatterDispatch(n)
	params := make([]byte, scatterParamsSize)
	binary.LittleEndian.PutUint32(params[0:], uint32(n))
	binary.LittleEndian.PutUint32(params[4:], row)
	b.r.WriteBuffer(b.scatterBuf, 0, params)

	p, err := b.group("Voxel Scatter", KeyVoxelScatter, nil,
		buffer(0, b.scatterBuf),
		buffer(1, b.gridBuf),
		buffer(2, b.samplesBuf),
		buffer(3, acc.buf),
	)
	if err != nil {
		return err
	}
	if err := b.r.DispatchCompute(KeyVoxelScatter, []provider{p}, wg); err != nil {
		return err
	}
	acc.dirty = true
	b.log.Debug("voxel scatter", zap.Int("samples", n))
	return ctx.Err()
}

func (b *backendImpl) VoxelReduce(ctx context.Context, fc *graph.FrameContext, in *deferred.FrameInputs) error {
	acc, err := lookup[*voxelAccum](fc, deferred.PurposeVoxelAccum)
	if err != nil {
		return err
	}
	slot, err := lookup[*volumeSlot](fc, deferred.PurposeVoxelBase)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	p, err := b.group("Voxel Reduce", KeyVoxelReduce, nil,
		buffer(0, b.gridBuf),
		buffer(1, acc.buf),
		view(2, mipView(slot.target, 0)),
	)
	if err != nil {
		return err
	}
	n := workgroups(b.grid.Resolution, 4)
	if err := b.r.DispatchCompute(KeyVoxelReduce, []provider{p}, [3]uint32{n, n, n}); err != nil {
		return err
	}
	acc.dirty = false
	return ctx.Err()
}

func (b *backendImpl) VoxelDownsample(ctx context.Context, fc *graph.FrameContext, in *deferred.FrameInputs) error {
	slot, err := lookup[*volumeSlot](fc, deferred.PurposeVoxelBase)
	if err != nil {
		return err
	}
	lm, err := lookup[*lightmapSlot](fc, deferred.PurposeVoxelLightmap)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	for level := 1; level < b.grid.MipCount(); level++ {
		p, err := b.group(fmt.Sprintf("Voxel Downsample %d", level), KeyVoxelDownsample, nil,
			view(0, mipView(slot.target, level-1)),
			view(1, mipView(slot.target, level)),
		)
		if err != nil {
			return err
		}
		n := workgroups(b.grid.Resolution>>level, 4)
		if err := b.r.DispatchCompute(KeyVoxelDownsample, []provider{p}, [3]uint32{n, n, n}); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	// the finished chain becomes the lightmap; the old one is rebuilt next time
	slot.target, lm.target = lm.target, slot.target
	lm.published = true
	return nil
}

func (b *backendImpl) Lighting(ctx context.Context, fc *graph.FrameContext, in *deferred.FrameInputs) error {
	gb, err := lookup[*gbufferTargets](fc, deferred.PurposeGBuffer)
	if err != nil {
		return err
	}
	ao, err := lookup[*renderer.Target](fc, deferred.PurposeAO)
	if err != nil {
		return err
	}
	lm, err := lookup[*lightmapSlot](fc, deferred.PurposeVoxelLightmap)
	if err != nil {
		return err
	}
	dst, err := lookup[*renderer.Target](fc, deferred.PurposeHDR)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writeShared(fc, in)

	cfg := in.Config
	params := shading.GPUParams{
		Debug:            in.Debug,
		AmbientIntensity: cfg.Lighting.AmbientIntensity,
		AmbientPower:     cfg.Lighting.AmbientPower,
		VoxelIntensity:   cfg.Voxel.Intensity,
		VoxelLOD:         cfg.Voxel.LOD,
	}
	if cfg.Voxel.Enabled && lm.published {
		params.VoxelEnabled = 1
	}

	p, err := b.group("Lighting", KeyLighting, map[int]uint64{2: uint64(params.Size())},
		buffer(0, b.frameBuf),
		buffer(1, b.lightsBuf),
		view(3, gb.color[0].View),
		view(4, gb.color[1].View),
		view(5, gb.color[2].View),
		view(6, gb.color[3].View),
		view(7, ao.View),
		view(8, lm.target.View),
		buffer(9, b.gridBuf),
	)
	if err != nil {
		return err
	}
	b.r.WriteBuffers([]bind_group_provider.BufferWrite{{Provider: p, Binding: 2, Data: params.Marshal()}})
	err = b.fullscreen(KeyLighting, renderer.RenderPassTargets{Label: deferred.PassLighting, Color: []*wgpu.TextureView{dst.View}}, p)
	if err != nil {
		return err
	}
	return ctx.Err()
}

func (b *backendImpl) MotionBlur(ctx context.Context, fc *graph.FrameContext, in *deferred.FrameInputs, taps int) error {
	src, err := lookup[*renderer.Target](fc, deferred.PurposeHDR)
	if err != nil {
		return err
	}
	gb, err := lookup[*gbufferTargets](fc, deferred.PurposeGBuffer)
	if err != nil {
		return err
	}
	dst, err := lookup[*renderer.Target](fc, deferred.PurposeBlurred)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writeShared(fc, in)

	params := postfx.GPUParams{
		Taps:  uint32(max(taps, 1)),
		Scale: in.Config.MotionBlur.Scale,
		Gamma: in.Config.Lighting.Gamma,
	}
	if taps > 1 {
		params.Enabled = 1
	}
	p, err := b.group("Motion Blur", KeyMotionBlur, map[int]uint64{1: uint64(params.Size())},
		buffer(0, b.frameBuf),
		view(2, src.View),
		view(3, gb.depth.View),
	)
	if err != nil {
		return err
	}
	b.r.WriteBuffers([]bind_group_provider.BufferWrite{{Provider: p, Binding: 1, Data: params.Marshal()}})
	err = b.fullscreen(KeyMotionBlur, renderer.RenderPassTargets{Label: deferred.PassMotionBlur, Color: []*wgpu.TextureView{dst.View}}, p)
	if err != nil {
		return err
	}
	return ctx.Err()
}

func (b *backendImpl) ToneMap(ctx context.Context, fc *graph.FrameContext, in *deferred.FrameInputs) error {
	src, err := lookup[*renderer.Target](fc, deferred.PurposeBlurred)
	if err != nil {
		return err
	}
	if _, err := lookup[*surfaceOutput](fc, deferred.PurposeOutput); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	// a reloaded vsync setting reconfigures the surface before it is acquired
	if in.Config.Output.VSync != b.vsync {
		b.vsync = in.Config.Output.VSync
		b.r.SetPresentMode(renderer.PresentModeFor(b.vsync))
		b.r.Resize(fc.Resolution.Width, fc.Resolution.Height)
		b.log.Info("present mode changed", zap.Bool("vsync", b.vsync))
	}
	surface, err := b.r.SurfaceView()
	if err != nil {
		return err
	}
	params := postfx.GPUParams{Taps: 1, Gamma: in.Config.Lighting.Gamma}
	p, err := b.group("Tone Map", KeyToneMap, map[int]uint64{0: uint64(params.Size())}, view(1, src.View))
	if err != nil {
		return err
	}
	b.r.WriteBuffers([]bind_group_provider.BufferWrite{{Provider: p, Binding: 0, Data: params.Marshal()}})
	err = b.fullscreen(KeyToneMap, renderer.RenderPassTargets{Label: deferred.PassToneMap, Color: []*wgpu.TextureView{surface}}, p)
	if err != nil {
		return err
	}
	return ctx.Err()
}
