package sdfcull

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/gekko3d/sdfcull/cullrt/rt/core"
	"github.com/gekko3d/sdfcull/cullrt/rt/pyramid"
	"github.com/gekko3d/sdfcull/cullrt/rt/ring"
	"github.com/gekko3d/sdfcull/cullrt/rt/visibility"
	"gopkg.in/yaml.v3"
)

// PyramidSource selects which depth buffer the culling pass is tested
// against.
type PyramidSource uint8

const (
	// PreviousFrame culls against the depth of the last frame drawn. No extra
	// pass, one frame of latency: fast camera motion can briefly hide
	// instances that just became visible.
	PreviousFrame PyramidSource = iota
	// CurrentFrame renders a depth pre-pass and rebuilds the pyramid before
	// culling.
	CurrentFrame
)

func (s PyramidSource) String() string {
	if s == CurrentFrame {
		return "current-frame"
	}
	return "previous-frame"
}

func ParsePyramidSource(s string) (PyramidSource, error) {
	switch s {
	case "previous-frame", "previous":
		return PreviousFrame, nil
	case "current-frame", "current":
		return CurrentFrame, nil
	}
	return 0, fmt.Errorf("unknown pyramid source %q", s)
}

type Config struct {
	// Size of the depth buffer the pyramid is built from.
	ViewportWidth  int
	ViewportHeight int

	// PyramidBaseDimension caps level 0 of the pyramid; 0 derives it from the
	// viewport. Must be a power of two.
	PyramidBaseDimension int
	// PyramidLevelCount caps the number of levels; 0 builds the full chain.
	PyramidLevelCount int
	PyramidStrategy   pyramid.Strategy
	PyramidSource     PyramidSource

	WorkGroupSize  uint32
	FrameRingDepth int
	// Workers is the size of the host compute pool; 0 uses one per CPU.
	Workers int

	DepthConvention core.DepthConvention
	ClipDepthRange  core.ClipDepthRange

	// FenceTimeout bounds every wait on a frame fence. Expiry loses the device.
	FenceTimeout time.Duration

	// MeshIndexCount is the index count of the mesh drawn per instance.
	MeshIndexCount uint32

	Debug bool
}

func DefaultConfig() Config {
	return Config{
		ViewportWidth:   1920,
		ViewportHeight:  1080,
		PyramidStrategy: pyramid.SinglePass,
		PyramidSource:   PreviousFrame,
		WorkGroupSize:   visibility.DefaultWorkGroupSize,
		FrameRingDepth:  ring.DefaultDepth,
		DepthConvention: core.ReversedZ,
		ClipDepthRange:  core.ClipZeroToOne,
		FenceTimeout:    5 * time.Second,
		MeshIndexCount:  36,
	}
}

func (c Config) Validate() error {
	switch {
	case c.ViewportWidth < 2 || c.ViewportHeight < 2:
		return fmt.Errorf("%w: viewport %dx%d", ErrInvalidConfig, c.ViewportWidth, c.ViewportHeight)
	case c.PyramidBaseDimension < 0 || (c.PyramidBaseDimension > 0 && !pyramid.IsPow2(c.PyramidBaseDimension)):
		return fmt.Errorf("%w: pyramid base dimension %d is not a power of two", ErrInvalidConfig, c.PyramidBaseDimension)
	case c.PyramidLevelCount < 0:
		return fmt.Errorf("%w: pyramid level count %d", ErrInvalidConfig, c.PyramidLevelCount)
	case c.WorkGroupSize == 0:
		return fmt.Errorf("%w: work group size must be positive", ErrInvalidConfig)
	case c.FrameRingDepth < 2:
		return fmt.Errorf("%w: frame ring depth %d, need at least 2", ErrInvalidConfig, c.FrameRingDepth)
	case c.FenceTimeout <= 0:
		return fmt.Errorf("%w: fence timeout must be bounded", ErrInvalidConfig)
	case c.Workers < 0:
		return fmt.Errorf("%w: negative worker count", ErrInvalidConfig)
	}
	return nil
}

// configFile is the on-disk form of Config.
type configFile struct {
	Viewport struct {
		Width  int `yaml:"width"`
		Height int `yaml:"height"`
	} `yaml:"viewport"`
	Pyramid struct {
		BaseDimension int    `yaml:"base_dimension"`
		LevelCount    int    `yaml:"level_count"`
		Strategy      string `yaml:"strategy"`
		Source        string `yaml:"source"`
	} `yaml:"pyramid"`
	WorkGroupSize   uint32        `yaml:"work_group_size"`
	FrameRingDepth  int           `yaml:"frame_ring_depth"`
	Workers         int           `yaml:"workers"`
	DepthConvention string        `yaml:"depth_convention"`
	ClipDepthRange  string        `yaml:"clip_depth_range"`
	FenceTimeout    time.Duration `yaml:"fence_timeout"`
	MeshIndexCount  uint32        `yaml:"mesh_index_count"`
	Debug           bool          `yaml:"debug"`
}

// ParseConfig overlays the YAML document data onto base. Keys that are absent
// keep their base value; unknown keys are an error.
//
//	viewport: {width: 1280, height: 720}
//	pyramid:
//	  strategy: multi-pass
//	  source: current-frame
//	fence_timeout: 2s
func ParseConfig(base Config, data []byte) (Config, error) {
	var f configFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return base, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	c := base
	setInt(&c.ViewportWidth, f.Viewport.Width)
	setInt(&c.ViewportHeight, f.Viewport.Height)
	setInt(&c.PyramidBaseDimension, f.Pyramid.BaseDimension)
	setInt(&c.PyramidLevelCount, f.Pyramid.LevelCount)
	setInt(&c.FrameRingDepth, f.FrameRingDepth)
	setInt(&c.Workers, f.Workers)
	if f.WorkGroupSize != 0 {
		c.WorkGroupSize = f.WorkGroupSize
	}
	if f.MeshIndexCount != 0 {
		c.MeshIndexCount = f.MeshIndexCount
	}
	if f.FenceTimeout != 0 {
		c.FenceTimeout = f.FenceTimeout
	}
	c.Debug = c.Debug || f.Debug

	if err := c.setEnums(f.Pyramid.Strategy, f.Pyramid.Source, f.DepthConvention, f.ClipDepthRange); err != nil {
		return base, err
	}
	return c, c.Validate()
}

// LoadConfigFile reads a YAML config file over DefaultConfig.
func LoadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(DefaultConfig(), data)
}

const envPrefix = "SDFCULL_"

// LoadConfigEnv overlays SDFCULL_* environment variables onto base. lookup
// defaults to os.LookupEnv.
func LoadConfigEnv(base Config, lookup func(string) (string, bool)) (Config, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	c := base
	var err error
	env := func(key string) (string, bool) {
		if err != nil {
			return "", false
		}
		return lookup(envPrefix + key)
	}
	intVar := func(key string, dst *int) {
		if v, ok := env(key); ok {
			var n int
			if n, err = strconv.Atoi(v); err != nil {
				err = fmt.Errorf("%w: %s%s=%q: %w", ErrInvalidConfig, envPrefix, key, v, err)
				return
			}
			*dst = n
		}
	}

	intVar("VIEWPORT_WIDTH", &c.ViewportWidth)
	intVar("VIEWPORT_HEIGHT", &c.ViewportHeight)
	intVar("PYRAMID_BASE_DIMENSION", &c.PyramidBaseDimension)
	intVar("PYRAMID_LEVEL_COUNT", &c.PyramidLevelCount)
	intVar("FRAME_RING_DEPTH", &c.FrameRingDepth)
	intVar("WORKERS", &c.Workers)
	var groupSize int
	intVar("WORKGROUP_SIZE", &groupSize)
	if groupSize > 0 {
		c.WorkGroupSize = uint32(groupSize)
	}
	if v, ok := env("FENCE_TIMEOUT"); ok {
		var d time.Duration
		if d, err = time.ParseDuration(v); err != nil {
			err = fmt.Errorf("%w: %sFENCE_TIMEOUT=%q: %w", ErrInvalidConfig, envPrefix, v, err)
		} else {
			c.FenceTimeout = d
		}
	}
	if v, ok := env("DEBUG"); ok {
		var b bool
		if b, err = strconv.ParseBool(v); err != nil {
			err = fmt.Errorf("%w: %sDEBUG=%q: %w", ErrInvalidConfig, envPrefix, v, err)
		} else {
			c.Debug = b
		}
	}
	if err != nil {
		return base, err
	}

	strategy, _ := lookup(envPrefix + "PYRAMID_STRATEGY")
	source, _ := lookup(envPrefix + "PYRAMID_SOURCE")
	conv, _ := lookup(envPrefix + "DEPTH_CONVENTION")
	clip, _ := lookup(envPrefix + "CLIP_DEPTH_RANGE")
	if err := c.setEnums(strategy, source, conv, clip); err != nil {
		return base, err
	}
	return c, c.Validate()
}

// setEnums parses the named enum options, skipping empty strings.
func (c *Config) setEnums(strategy, source, conv, clip string) error {
	var err error
	if strategy != "" {
		if c.PyramidStrategy, err = pyramid.ParseStrategy(strategy); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	if source != "" {
		if c.PyramidSource, err = ParsePyramidSource(source); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	if conv != "" {
		if c.DepthConvention, err = core.ParseDepthConvention(conv); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	if clip != "" {
		if c.ClipDepthRange, err = core.ParseClipDepthRange(clip); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	return nil
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}
