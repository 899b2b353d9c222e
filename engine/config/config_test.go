package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 32, cfg.SSAO.KernelSize)
	assert.Equal(t, 128, cfg.Voxel.Resolution)
	assert.Equal(t, [3]float32{30, 14, 20}, cfg.Voxel.Extents)
	assert.Equal(t, 10, cfg.MotionBlur.Taps)
	assert.InDelta(t, 0.1, cfg.MotionBlur.Scale, 1e-6)
	assert.InDelta(t, 2.2, cfg.Lighting.Gamma, 1e-6)
	assert.InDelta(t, 1.0, cfg.Lighting.NormalStrength, 1e-6)
}

func TestParseYAML(t *testing.T) {
	src := `
ssao:
  kernel_size: 64
  radius: 0.8
voxel:
  resolution: 64
  center: [0, 5, 0]
  rebuild_interval: 250ms
motion_blur:
  enabled: false
`
	cfg, err := Parse([]byte(src), ".yaml")
	require.NoError(t, err)

	assert.Equal(t, 64, cfg.SSAO.KernelSize)
	assert.InDelta(t, 0.8, cfg.SSAO.Radius, 1e-6)
	assert.InDelta(t, 0.025, cfg.SSAO.Bias, 1e-6, "unset keys keep defaults")
	assert.Equal(t, [3]float32{0, 5, 0}, cfg.Voxel.Center)
	assert.Equal(t, 250*time.Millisecond, cfg.Voxel.RebuildInterval)
	assert.False(t, cfg.MotionBlur.Enabled)
}

func TestParseTOML(t *testing.T) {
	src := `
[ssao]
mode = "hbao"

[lighting]
gamma = 2.4
`
	cfg, err := Parse([]byte(src), ".toml")
	require.NoError(t, err)
	assert.Equal(t, AOModeHBAO, cfg.SSAO.Mode)
	assert.InDelta(t, 2.4, cfg.Lighting.Gamma, 1e-6)
}

func TestValidateAggregatesViolations(t *testing.T) {
	cfg := Default()
	cfg.SSAO.KernelSize = 48
	cfg.Voxel.Resolution = 100
	cfg.MotionBlur.Taps = 0

	err := cfg.Validate()
	require.ErrorIs(t, err, ErrInvalid)
	msg := err.Error()
	assert.True(t, strings.Contains(msg, "kernel size 48"))
	assert.True(t, strings.Contains(msg, "power of two"))
	assert.True(t, strings.Contains(msg, "taps"))
}

func TestParseRejectsUnknownFormat(t *testing.T) {
	_, err := Parse([]byte("{}"), ".json")
	assert.Error(t, err)
}

func TestNeedsVoxelRebuild(t *testing.T) {
	a := Default()
	b := Default()
	assert.False(t, a.NeedsVoxelRebuild(b))

	b.MotionBlur.Taps = 4
	assert.False(t, a.NeedsVoxelRebuild(b))

	b.Voxel.Intensity = 2
	assert.True(t, a.NeedsVoxelRebuild(b))
}

func TestWatchReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ssao:\n  radius: 0.6\n"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan Config, 4)
	done := make(chan error, 1)
	go func() { done <- Watch(ctx, path, func(c Config) { got <- c }) }()

	// give the watcher time to register before writing
	require.Eventually(t, func() bool {
		_ = os.WriteFile(path, []byte("ssao:\n  radius: 0.9\n"), 0o644)
		select {
		case c := <-got:
			return c.SSAO.Radius > 0.85
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 3*time.Second, 10*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}
