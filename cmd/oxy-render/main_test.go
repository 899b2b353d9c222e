package main

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/shader"
)

func TestRenderWritesFramesAndDumps(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("voxel:\n  resolution: 16\nworkers: 2\n"), 0o644))

	cmd := newRootCommand()
	cmd.SetArgs([]string{"render", "-c", cfgPath, "-o", dir, "-n", "2", "--width", "24", "--height", "16"})
	require.NoError(t, cmd.Execute())

	for _, name := range []string{
		"frame_0000.png", "frame_0001.png",
		"color.tiff", "ao.tiff",
		"gbuffer_position.tiff", "gbuffer_normal.tiff", "gbuffer_albedo.tiff", "gbuffer_arm.tiff", "gbuffer_depth.tiff",
	} {
		assert.FileExists(t, filepath.Join(dir, name))
	}
}

func TestRenderRejectsBadMode(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetArgs([]string{"render", "-o", t.TempDir(), "--ao", "bogus"})
	cmd.SetErr(&bytes.Buffer{})
	assert.Error(t, cmd.Execute())
}

func TestShadersUnknownAsset(t *testing.T) {
	out := &bytes.Buffer{}
	cmd := newRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"shaders", "missing.wgsl"})
	assert.Error(t, cmd.Execute())
	assert.Contains(t, out.String(), "FAIL missing.wgsl")
}

func TestShadersReportsEveryAsset(t *testing.T) {
	out := &bytes.Buffer{}
	cmd := newRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"shaders"})
	require.NoError(t, cmd.Execute(), out.String())

	assert.NotContains(t, out.String(), "FAIL")
	for _, name := range shader.AssetNames() {
		assert.Regexp(t, `(ok  |SKIP) `+regexp.QuoteMeta(name), out.String())
	}
}
