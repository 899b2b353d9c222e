package gpu

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/camera"
	"github.com/Carmen-Shannon/oxy-deferred/engine/config"
	"github.com/Carmen-Shannon/oxy-deferred/engine/deferred"
	"github.com/Carmen-Shannon/oxy-deferred/engine/graph"
	"github.com/Carmen-Shannon/oxy-deferred/engine/light"
	"github.com/Carmen-Shannon/oxy-deferred/engine/model"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/pipeline"
)

// fakeRenderer records what the backend encodes. Methods the backend never calls are left to the
// embedded nil interface.
type fakeRenderer struct {
	renderer.Renderer

	mu         sync.Mutex
	pipelines  map[string]pipeline.Pipeline
	ops        []string
	clears     map[string]wgpu.Color
	dispatches map[string][][3]uint32
	writes     map[string][]byte
	meshes     int
	textures   int
	reinits    int
	surface    [2]int
	frameOpen  bool
	endErr     error
	// failDispatch makes the next dispatch of that pipeline fail
	failDispatch string
	presents     int
	discards     int
	presentModes []renderer.PresentMode
}

func newFakeRenderer() *fakeRenderer {
	return &fakeRenderer{
		pipelines:  make(map[string]pipeline.Pipeline),
		clears:     make(map[string]wgpu.Color),
		dispatches: make(map[string][][3]uint32),
		writes:     make(map[string][]byte),
	}
}

func (f *fakeRenderer) op(format string, args ...any) {
	f.ops = append(f.ops, fmt.Sprintf(format, args...))
}

func (f *fakeRenderer) take() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ops := f.ops
	f.ops = nil
	return ops
}

func (f *fakeRenderer) RegisterPipelines(pipelines ...pipeline.Pipeline) error {
	for _, p := range pipelines {
		f.pipelines[p.PipelineKey()] = p
	}
	return nil
}

func (f *fakeRenderer) CreateTarget(desc renderer.TargetDescriptor) (*renderer.Target, error) {
	return &renderer.Target{Desc: desc}, nil
}

func (f *fakeRenderer) CreateBuffer(string, uint64, wgpu.BufferUsage) (*wgpu.Buffer, error) {
	return nil, nil
}

func (f *fakeRenderer) WriteBuffer(*wgpu.Buffer, uint64, []byte) {}

func (f *fakeRenderer) InitMeshBuffers(bind_group_provider.BindGroupProvider, []byte, []byte, int) error {
	f.meshes++
	return nil
}

func (f *fakeRenderer) InitBindGroup(p bind_group_provider.BindGroupProvider, key string, group int, _ map[int]uint64) error {
	pl, ok := f.pipelines[key]
	if !ok {
		return fmt.Errorf("pipeline %q not registered", key)
	}
	if len(pl.BindGroupLayoutDescriptor(group).Entries) == 0 {
		return fmt.Errorf("pipeline %q has no group %d", key, group)
	}
	return nil
}

func (f *fakeRenderer) InitTextureView(bind_group_provider.BindGroupProvider, int, common.TextureStagingData) error {
	f.textures++
	return nil
}

func (f *fakeRenderer) InitSampler(bind_group_provider.BindGroupProvider, int, common.SamplerStagingData) error {
	return nil
}

func (f *fakeRenderer) WriteBuffers(writes []bind_group_provider.BufferWrite) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, w := range writes {
		f.writes[w.Provider.Label()] = w.Data
	}
}

func (f *fakeRenderer) BeginFrame() error {
	if f.frameOpen {
		return fmt.Errorf("frame already open")
	}
	f.frameOpen = true
	return nil
}

func (f *fakeRenderer) BeginRenderPass(t renderer.RenderPassTargets) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clears[t.Label] = t.ClearColor
	f.op("pass %s", t.Label)
	return nil
}

func (f *fakeRenderer) DrawCall(key string, _ bind_group_provider.BindGroupProvider, n uint32, groups []bind_group_provider.BindGroupProvider) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.op("draw %s x%d groups=%d", key, n, len(groups))
	return nil
}

func (f *fakeRenderer) DrawFullscreen(key string, _ []bind_group_provider.BindGroupProvider) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.op("fullscreen %s", key)
	return nil
}

func (f *fakeRenderer) EndRenderPass() {}

func (f *fakeRenderer) Resize(width, height int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.surface = [2]int{width, height}
}

func (f *fakeRenderer) DispatchCompute(key string, _ []bind_group_provider.BindGroupProvider, wg [3]uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if key == f.failDispatch {
		f.failDispatch = ""
		return fmt.Errorf("dispatch %s rejected", key)
	}
	f.dispatches[key] = append(f.dispatches[key], wg)
	f.op("dispatch %s", key)
	return nil
}

func (f *fakeRenderer) SurfaceView() (*wgpu.TextureView, error) { return nil, nil }

func (f *fakeRenderer) EndFrame() error {
	f.frameOpen = false
	err := f.endErr
	f.endErr = nil
	return err
}

func (f *fakeRenderer) Present() { f.presents++ }

func (f *fakeRenderer) SetPresentMode(mode renderer.PresentMode) {
	f.presentModes = append(f.presentModes, mode)
}

func (f *fakeRenderer) DiscardFrame() {
	f.frameOpen = false
	f.discards++
}

func (f *fakeRenderer) Drain() error { return nil }

func (f *fakeRenderer) Reinitialize() error {
	f.reinits++
	return nil
}

const side = 33

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Output.Width, cfg.Output.Height = side, side
	cfg.Voxel.Resolution = 16
	cfg.Voxel.Extents = [3]float32{4, 4, 4}
	cfg.Voxel.RebuildInterval = 0
	cfg.Seed = 7
	return cfg
}

func overhead() camera.FrameState {
	fs := camera.NewFrameState()
	view := mgl32.LookAtV(mgl32.Vec3{0, 5, 0}, mgl32.Vec3{}, mgl32.Vec3{0, 0, -1})
	fs.Update(view, common.Perspective(mgl32.DegToRad(60), 1, 0.1, 100))
	return fs
}

func scene(instances ...model.Instance) deferred.FrameInputs {
	if len(instances) == 0 {
		instances = []model.Instance{model.IdentityInstance()}
	}
	return deferred.FrameInputs{
		Lights: []light.Light{{Position: mgl32.Vec3{0, 2, 0}, Color: mgl32.Vec3{1, 1, 1}}},
		Batches: []deferred.Batch{{
			Mesh:      model.Plane(2),
			Material:  material.NewMaterial(),
			Instances: instances,
		}},
	}
}

func newPipeline(t *testing.T, cfg config.Config) (*fakeRenderer, Backend, deferred.Renderer) {
	t.Helper()
	f := newFakeRenderer()
	b, err := NewBackend(f, cfg)
	require.NoError(t, err)
	r, err := deferred.NewRenderer(b, cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		r.Close()
		b.Release()
	})
	return f, b, r
}

func TestPipelinesRegistered(t *testing.T) {
	f, _, _ := newPipeline(t, testConfig())
	for _, key := range []string{KeyGeometry, KeySSAO, KeyHBAO, KeyBlur, KeyLighting, KeyMotionBlur, KeyToneMap, KeyVoxelScatter, KeyVoxelReduce, KeyVoxelDownsample} {
		assert.Contains(t, f.pipelines, key)
	}
	assert.Len(t, f.pipelines[KeyLighting].BindGroupLayoutDescriptor(0).Entries, 10)
	assert.Len(t, f.pipelines[KeyVoxelScatter].BindGroupLayoutDescriptor(0).Entries, 4)
	assert.Equal(t, wgpu.TextureFormatUndefined, f.pipelines[KeyToneMap].ColorFormats()[0])
}

func TestFrameEncodesPassesInOrder(t *testing.T) {
	f, b, r := newPipeline(t, testConfig())
	require.NoError(t, r.Render(context.Background(), overhead(), scene()))

	want := []string{
		"pass geometry",
		"draw geometry x1 groups=2",
		"pass ambient_occlusion",
		"fullscreen ssao_kernel",
		"pass ao_blur",
		"fullscreen blur",
		"dispatch voxel_scatter",
		"dispatch voxel_reduce",
	}
	// a 16^3 grid has mips 16, 8, 4, 2 and 1
	for range 4 {
		want = append(want, "dispatch voxel_downsample")
	}
	want = append(want,
		"pass lighting",
		"fullscreen lighting",
		"pass motion_blur",
		"fullscreen motion_blur",
		"pass tone_map",
		"fullscreen tonemap",
	)
	assert.Equal(t, want, f.take())
	assert.Equal(t, uint64(1), b.Frames())

	// the 2x2 plane is voxelized at half-cell spacing: two triangles of 276 lattice samples
	assert.Equal(t, [][3]uint32{{9, 1, 1}}, f.dispatches[KeyVoxelScatter])
	assert.Equal(t, [][3]uint32{{4, 4, 4}}, f.dispatches[KeyVoxelReduce])
	assert.Equal(t, [][3]uint32{{2, 2, 2}, {1, 1, 1}, {1, 1, 1}, {1, 1, 1}}, f.dispatches[KeyVoxelDownsample])

	// no rebuild requested on the second frame
	require.NoError(t, r.Render(context.Background(), overhead(), scene()))
	for _, op := range f.take() {
		assert.NotContains(t, op, "voxel")
	}
}

func TestLightingSeesPublishedLightmap(t *testing.T) {
	f, _, r := newPipeline(t, testConfig())
	require.NoError(t, r.Render(context.Background(), overhead(), scene()))
	params := f.writes["Lighting"]
	require.Len(t, params, 48)
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(params[32:]))

	cfg := testConfig()
	cfg.Voxel.Enabled = false
	f, _, r = newPipeline(t, cfg)
	require.NoError(t, r.Render(context.Background(), overhead(), scene()))
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(f.writes["Lighting"][32:]))
}

func TestAOOffClearsToWhite(t *testing.T) {
	cfg := testConfig()
	cfg.SSAO.Mode = config.AOModeOff
	f, _, r := newPipeline(t, cfg)
	require.NoError(t, r.Render(context.Background(), overhead(), scene()))

	ops := f.take()
	assert.NotContains(t, ops, "fullscreen ssao_kernel")
	assert.NotContains(t, ops, "fullscreen hbao")
	assert.Equal(t, wgpu.Color{R: 1, G: 1, B: 1, A: 1}, f.clears[deferred.PassAmbientOcclusion])
	assert.Equal(t, wgpu.Color{}, f.clears[deferred.PassGeometry])
}

func TestHBAOAndBlurParams(t *testing.T) {
	cfg := testConfig()
	cfg.SSAO.Mode = config.AOModeHBAO
	cfg.SSAO.BlurSize = 6
	f, _, r := newPipeline(t, cfg)
	require.NoError(t, r.Render(context.Background(), overhead(), scene()))

	assert.Contains(t, f.take(), "fullscreen hbao")
	blur := f.writes["AO Blur"]
	require.NotEmpty(t, blur)
	assert.Equal(t, uint32(6), binary.LittleEndian.Uint32(blur[len(blur)-16:]))
}

func TestFrustumCulling(t *testing.T) {
	f, b, r := newPipeline(t, testConfig())
	behind := model.NewInstance(mgl32.Vec3{0, 50, 0}, 0, 1)
	require.NoError(t, r.Render(context.Background(), overhead(), scene(model.IdentityInstance(), behind)))

	stats := b.Stats()
	assert.Equal(t, 1, stats.Batches)
	assert.Equal(t, 1, stats.DrawnInstances)
	assert.Equal(t, 1, stats.CulledInstances)
	assert.Contains(t, f.take(), "draw geometry x1 groups=2")
}

func TestUploadsAreCached(t *testing.T) {
	f, _, r := newPipeline(t, testConfig())
	in := scene()
	for range 3 {
		require.NoError(t, r.Render(context.Background(), overhead(), in))
	}
	assert.Equal(t, 1, f.meshes)
	assert.Equal(t, 3, f.textures)
}

func TestDeviceLossReuploads(t *testing.T) {
	f, b, r := newPipeline(t, testConfig())
	in := scene()
	require.NoError(t, r.Render(context.Background(), overhead(), in))

	f.endErr = fmt.Errorf("submit: %w", graph.ErrDeviceLost)
	err := r.Render(context.Background(), overhead(), in)
	require.ErrorIs(t, err, graph.ErrDeviceLost)
	assert.Equal(t, 1, f.reinits)

	require.NoError(t, r.Render(context.Background(), overhead(), in))
	assert.Equal(t, 2, f.meshes)
	assert.Equal(t, uint64(2), b.Frames())
}

func TestFailedFrameIsDiscarded(t *testing.T) {
	f, b, r := newPipeline(t, testConfig())
	in := scene()
	require.NoError(t, r.Render(context.Background(), overhead(), in))
	require.Equal(t, 1, f.presents)

	r.RequestVoxelRebuild()
	f.failDispatch = KeyVoxelReduce
	require.Error(t, r.Render(context.Background(), overhead(), in))
	assert.Equal(t, 1, f.presents, "a half-recorded frame is never presented")

	require.NoError(t, r.Render(context.Background(), overhead(), in))
	assert.Equal(t, 1, f.discards)
	assert.Equal(t, 2, f.presents)
	assert.Equal(t, uint64(2), b.Frames())
}

func TestReloadedVSyncReconfiguresSurface(t *testing.T) {
	cfg := testConfig()
	cfg.Output.VSync = true
	f, _, r := newPipeline(t, cfg)
	require.NoError(t, r.Render(context.Background(), overhead(), scene()))
	assert.Empty(t, f.presentModes)

	cfg.Output.VSync = false
	r.SetConfig(cfg)
	f.surface = [2]int{}
	require.NoError(t, r.Render(context.Background(), overhead(), scene()))
	assert.Equal(t, []renderer.PresentMode{renderer.PresentModeUncapped}, f.presentModes)
	assert.Equal(t, [2]int{side, side}, f.surface)

	require.NoError(t, r.Render(context.Background(), overhead(), scene()))
	assert.Len(t, f.presentModes, 1)
}

func TestWorkgroups(t *testing.T) {
	assert.Equal(t, uint32(0), workgroups(0, 8))
	assert.Equal(t, uint32(1), workgroups(1, 8))
	assert.Equal(t, uint32(1), workgroups(8, 8))
	assert.Equal(t, uint32(2), workgroups(9, 8))
}

func TestResizeReconfiguresSurface(t *testing.T) {
	f, _, r := newPipeline(t, testConfig())
	require.NoError(t, r.Render(context.Background(), overhead(), scene()))
	assert.Equal(t, [2]int{33, 33}, f.surface)

	r.Resize(40, 24)
	require.NoError(t, r.Render(context.Background(), overhead(), scene()))
	assert.Equal(t, [2]int{40, 24}, f.surface)
}

func TestScatterDispatch(t *testing.T) {
	wg, row := scatterDispatch(0)
	assert.Equal(t, [3]uint32{1, 1, 1}, wg)
	assert.Equal(t, uint32(64), row)

	wg, row = scatterDispatch(130)
	assert.Equal(t, [3]uint32{3, 1, 1}, wg)
	assert.Equal(t, uint32(192), row)

	wg, row = scatterDispatch(maxWorkgroups*64 + 1)
	assert.Equal(t, [3]uint32{maxWorkgroups, 2, 1}, wg)
	assert.Equal(t, uint32(maxWorkgroups*64), row)
}
