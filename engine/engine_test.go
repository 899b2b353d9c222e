package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/config"
	"github.com/Carmen-Shannon/oxy-deferred/engine/deferred"
	"github.com/Carmen-Shannon/oxy-deferred/engine/deferred/software"
	"github.com/Carmen-Shannon/oxy-deferred/engine/graph"
	"github.com/Carmen-Shannon/oxy-deferred/engine/scene"
)

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Output.Width, cfg.Output.Height = 32, 24
	cfg.Output.Backend = "software"
	cfg.Voxel.Resolution = 16
	cfg.Voxel.RebuildInterval = 0
	cfg.Workers = 2
	cfg.Seed = 3
	return cfg
}

func newHeadless(t *testing.T, cfg config.Config, opts ...EngineBuilderOption) (Engine, software.Backend) {
	t.Helper()
	b, err := software.NewBackend(cfg)
	require.NoError(t, err)
	r, err := deferred.NewRenderer(b, cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		r.Close()
		b.Close()
	})
	s := scene.Demo(cfg, float32(cfg.Output.Width)/float32(cfg.Output.Height))
	return NewEngine(r, s, opts...), b
}

func TestRunFramesHeadless(t *testing.T) {
	var frames []uint64
	e, b := newHeadless(t, testConfig(), WithFrameCallback(func(frame uint64, _ graph.FrameStats) {
		frames = append(frames, frame)
	}))

	var seen []int
	err := e.RunFrames(context.Background(), 3, 50*time.Millisecond, func(i int) error {
		seen = append(seen, i)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, seen)
	assert.Equal(t, []uint64{1, 2, 3}, frames)
	assert.Equal(t, uint64(3), b.Frames())

	img := b.Image()
	require.NotNil(t, img)
	assert.Equal(t, 32, img.Bounds().Dx())
	assert.Equal(t, 24, img.Bounds().Dy())
	assert.NotNil(t, b.Lightmap(), "the demo scene publishes a lightmap")
}

func TestRunFramesStopsOnHookError(t *testing.T) {
	e, _ := newHeadless(t, testConfig())
	stop := errors.New("stop")
	calls := 0
	err := e.RunFrames(context.Background(), 5, time.Millisecond, func(int) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, e.RunFrames(ctx, 1, time.Millisecond, nil), context.Canceled)
}

func TestDebugKeys(t *testing.T) {
	e, _ := newHeadless(t, testConfig())
	start := e.Debug()

	assert.True(t, e.HandleKey(common.Key2))
	assert.True(t, e.HandleKey(common.KeyUp))
	assert.True(t, e.HandleKey(common.KeyUp))
	got := e.Debug()
	assert.InDelta(t, start[1]+0.2, got[1], 1e-6)
	assert.Equal(t, start[0], got[0])

	e.HandleKey(common.Key1)
	e.HandleKey(common.KeyDown)
	assert.InDelta(t, start[0]-0.1, e.Debug()[0], 1e-6)

	assert.False(t, e.HandleKey(0))
}

func TestToggleKeysUpdateConfig(t *testing.T) {
	e, _ := newHeadless(t, testConfig())
	r := e.Renderer()

	require.Equal(t, config.AOModeKernel, r.Config().SSAO.Mode)
	e.HandleKey(common.KeyH)
	assert.Equal(t, config.AOModeHBAO, r.Config().SSAO.Mode)
	e.HandleKey(common.KeyH)
	assert.Equal(t, config.AOModeOff, r.Config().SSAO.Mode)
	e.HandleKey(common.KeyH)
	assert.Equal(t, config.AOModeKernel, r.Config().SSAO.Mode)

	e.HandleKey(common.KeyM)
	assert.False(t, r.Config().MotionBlur.Enabled)

	v := e.Scene().Version()
	e.HandleKey(common.KeySpace)
	e.Scene().Tick(time.Second)
	assert.Equal(t, v, e.Scene().Version(), "space pauses the orbit")
}

func TestWindowTitle(t *testing.T) {
	cfg := testConfig()
	cfg.SSAO.Mode = config.AOModeHBAO
	cfg.MotionBlur.Enabled = true
	assert.Equal(t, "oxy-deferred | ao hbao | motion blur on", windowTitle(cfg))

	cfg.SSAO.Mode = config.AOModeOff
	cfg.MotionBlur.Enabled = false
	assert.Equal(t, "oxy-deferred | ao off | motion blur off", windowTitle(cfg))
}

func TestResizeForwardsToRendererAndLens(t *testing.T) {
	e, b := newHeadless(t, testConfig())
	e.Resize(0, 10)
	e.Resize(40, 20)
	assert.InDelta(t, 2, e.Scene().Camera().Aspect(), 1e-6)

	require.NoError(t, e.RenderFrame(context.Background()))
	assert.Equal(t, 40, b.Image().Bounds().Dx())
	assert.Equal(t, uint64(1), e.Renderer().Stats().Resizes)
}

func TestRunWithoutWindow(t *testing.T) {
	e, _ := newHeadless(t, testConfig())
	assert.Error(t, e.Run(context.Background()))
}
