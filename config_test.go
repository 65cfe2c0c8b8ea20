package sdfcull

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gekko3d/sdfcull/cullrt/rt/core"
	"github.com/gekko3d/sdfcull/cullrt/rt/pyramid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, uint32(64), cfg.WorkGroupSize)
	assert.Equal(t, 3, cfg.FrameRingDepth)
	assert.Equal(t, core.ReversedZ, cfg.DepthConvention)
	assert.Equal(t, PreviousFrame, cfg.PyramidSource)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"tiny viewport", func(c *Config) { c.ViewportWidth = 1 }},
		{"base not pow2", func(c *Config) { c.PyramidBaseDimension = 300 }},
		{"negative levels", func(c *Config) { c.PyramidLevelCount = -1 }},
		{"zero group", func(c *Config) { c.WorkGroupSize = 0 }},
		{"single slot", func(c *Config) { c.FrameRingDepth = 1 }},
		{"unbounded fence", func(c *Config) { c.FenceTimeout = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestLoadConfigEnv(t *testing.T) {
	env := map[string]string{
		"SDFCULL_PYRAMID_BASE_DIMENSION": "256",
		"SDFCULL_WORKGROUP_SIZE":         "128",
		"SDFCULL_FRAME_RING_DEPTH":       "2",
		"SDFCULL_FENCE_TIMEOUT":          "250ms",
		"SDFCULL_PYRAMID_STRATEGY":       "multi-pass",
		"SDFCULL_PYRAMID_SOURCE":         "current-frame",
		"SDFCULL_DEPTH_CONVENTION":       "conventional-z",
		"SDFCULL_DEBUG":                  "true",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
	cfg, err := LoadConfigEnv(DefaultConfig(), lookup)
	require.NoError(t, err)
	assert.Equal(t, 256, cfg.PyramidBaseDimension)
	assert.Equal(t, uint32(128), cfg.WorkGroupSize)
	assert.Equal(t, 2, cfg.FrameRingDepth)
	assert.Equal(t, 250*time.Millisecond, cfg.FenceTimeout)
	assert.Equal(t, pyramid.MultiPass, cfg.PyramidStrategy)
	assert.Equal(t, CurrentFrame, cfg.PyramidSource)
	assert.Equal(t, core.ConventionalZ, cfg.DepthConvention)
	assert.True(t, cfg.Debug)
	assert.Equal(t, 1920, cfg.ViewportWidth, "unset keys keep their default")

	env = map[string]string{"SDFCULL_FRAME_RING_DEPTH": "three"}
	_, err = LoadConfigEnv(DefaultConfig(), lookup)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	env = map[string]string{"SDFCULL_PYRAMID_SOURCE": "next-frame"}
	_, err = LoadConfigEnv(DefaultConfig(), lookup)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sdfcull.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
viewport: {width: 1280, height: 720}
pyramid:
  level_count: 6
  strategy: single-pass
clip_depth_range: minus-one-to-one
fence_timeout: 2s
mesh_index_count: 12
`), 0o644))

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1280, cfg.ViewportWidth)
	assert.Equal(t, 720, cfg.ViewportHeight)
	assert.Equal(t, 6, cfg.PyramidLevelCount)
	assert.Equal(t, pyramid.SinglePass, cfg.PyramidStrategy)
	assert.Equal(t, core.ClipMinusOneToOne, cfg.ClipDepthRange)
	assert.Equal(t, 2*time.Second, cfg.FenceTimeout)
	assert.Equal(t, uint32(12), cfg.MeshIndexCount)
	assert.Equal(t, 3, cfg.FrameRingDepth)

	_, err = ParseConfig(DefaultConfig(), []byte("frame_ring_depth: [1"))
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = ParseConfig(DefaultConfig(), []byte("pyramid:\n  levels: 4\n"))
	assert.ErrorIs(t, err, ErrInvalidConfig, "unknown key")
	_, err = LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	empty, err := ParseConfig(DefaultConfig(), nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), empty)
}
