// Package config holds the tunable constants of the deferred pipeline and loads them from YAML or TOML files.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// AOMode selects which ambient occlusion formulation runs. Exactly one runs per frame.
type AOMode string

const (
	AOModeKernel AOMode = "kernel"
	AOModeHBAO   AOMode = "hbao"
	AOModeOff    AOMode = "off"
)

// Config is the full pipeline configuration.
type Config struct {
	Output     Output     `yaml:"output" toml:"output"`
	SSAO       SSAO       `yaml:"ssao" toml:"ssao"`
	HBAO       HBAO       `yaml:"hbao" toml:"hbao"`
	Voxel      Voxel      `yaml:"voxel" toml:"voxel"`
	Lighting   Lighting   `yaml:"lighting" toml:"lighting"`
	MotionBlur MotionBlur `yaml:"motion_blur" toml:"motion_blur"`
	Debug      Debug      `yaml:"debug" toml:"debug"`
	Logging    Logging    `yaml:"logging" toml:"logging"`
	// Workers is the CPU worker count for the software backend. Zero means one per logical CPU.
	Workers int `yaml:"workers" toml:"workers"`
	// Seed feeds the SSAO kernel and noise generators so frames are reproducible.
	Seed int64 `yaml:"seed" toml:"seed"`
}

// Output describes the presentation surface.
type Output struct {
	Width     int    `yaml:"width" toml:"width"`
	Height    int    `yaml:"height" toml:"height"`
	VSync     bool   `yaml:"vsync" toml:"vsync"`
	TargetFPS int    `yaml:"target_fps" toml:"target_fps"`
	Backend   string `yaml:"backend" toml:"backend"`
}

// SSAO configures the hemisphere-kernel formulation and the blur pass.
type SSAO struct {
	Mode       AOMode  `yaml:"mode" toml:"mode"`
	KernelSize int     `yaml:"kernel_size" toml:"kernel_size"`
	Radius     float32 `yaml:"radius" toml:"radius"`
	Bias       float32 `yaml:"bias" toml:"bias"`
	Blur       bool    `yaml:"blur" toml:"blur"`
	BlurSize   int     `yaml:"blur_size" toml:"blur_size"`
}

// HBAO configures the horizon-based formulation.
type HBAO struct {
	Directions int     `yaml:"directions" toml:"directions"`
	Steps      int     `yaml:"steps" toml:"steps"`
	Radius     float32 `yaml:"radius" toml:"radius"`
	FallOff    float32 `yaml:"fall_off" toml:"fall_off"`
	// AngleBias is the tangent elevation (in radians) a horizon must exceed before it counts.
	AngleBias float32 `yaml:"angle_bias" toml:"angle_bias"`
}

// Voxel configures the voxel lightmap grid.
type Voxel struct {
	Enabled    bool       `yaml:"enabled" toml:"enabled"`
	Resolution int        `yaml:"resolution" toml:"resolution"`
	Center     [3]float32 `yaml:"center" toml:"center"`
	Extents    [3]float32 `yaml:"extents" toml:"extents"`
	Intensity  float32    `yaml:"intensity" toml:"intensity"`
	// LOD is the mip level sampled by the lighting pass.
	LOD float32 `yaml:"lod" toml:"lod"`
	// RebuildInterval throttles scene-change triggered rebuilds.
	RebuildInterval time.Duration `yaml:"rebuild_interval" toml:"rebuild_interval"`
}

// Lighting configures the deferred shading pass.
type Lighting struct {
	AmbientIntensity float32 `yaml:"ambient_intensity" toml:"ambient_intensity"`
	AmbientPower     float32 `yaml:"ambient_power" toml:"ambient_power"`
	Gamma            float32 `yaml:"gamma" toml:"gamma"`
	NormalStrength   float32 `yaml:"normal_strength" toml:"normal_strength"`
	// OrbitSpeed is the light orbit around the Y axis in degrees per second.
	OrbitSpeed float32 `yaml:"orbit_speed" toml:"orbit_speed"`
}

// MotionBlur configures the temporal reprojection blur.
type MotionBlur struct {
	Enabled bool    `yaml:"enabled" toml:"enabled"`
	Taps    int     `yaml:"taps" toml:"taps"`
	Scale   float32 `yaml:"scale" toml:"scale"`
}

// Debug holds the four user-tweakable debug parameters uploaded every frame.
type Debug struct {
	Params [4]float32 `yaml:"params" toml:"params"`
	Step   float32    `yaml:"step" toml:"step"`
}

// Logging configures the zap logger.
type Logging struct {
	Level       string `yaml:"level" toml:"level"`
	Development bool   `yaml:"development" toml:"development"`
}

// Default returns the stock pipeline configuration.
func Default() Config {
	return Config{
		Output: Output{Width: 1280, Height: 720, VSync: true, TargetFPS: 0, Backend: "wgpu"},
		SSAO: SSAO{
			Mode:       AOModeKernel,
			KernelSize: 32,
			Radius:     0.5,
			Bias:       0.025,
			Blur:       true,
			BlurSize:   4,
		},
		HBAO: HBAO{Directions: 8, Steps: 6, Radius: 0.5, FallOff: 0.5, AngleBias: 0.1},
		Voxel: Voxel{
			Enabled:         true,
			Resolution:      128,
			Center:          [3]float32{0, 0, 0},
			Extents:         [3]float32{30, 14, 20},
			Intensity:       1,
			LOD:             1,
			RebuildInterval: time.Second,
		},
		Lighting: Lighting{
			AmbientIntensity: 0.03,
			AmbientPower:     2,
			Gamma:            2.2,
			NormalStrength:   1,
			OrbitSpeed:       20,
		},
		MotionBlur: MotionBlur{Enabled: true, Taps: 10, Scale: 0.1},
		Debug:      Debug{Params: [4]float32{0, 1, 0, 0}, Step: 0.1},
		Logging:    Logging{Level: "info"},
	}
}

// Validate reports every out-of-range setting at once.
//
// Returns:
//   - error: nil, or an error wrapping ErrInvalid that lists each violation
func (c Config) Validate() error {
	var err error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			err = multierr.Append(err, fmt.Errorf(format, args...))
		}
	}

	check(c.Output.Width > 0 && c.Output.Height > 0, "output size %dx%d must be positive", c.Output.Width, c.Output.Height)
	check(c.Output.Backend == "wgpu" || c.Output.Backend == "software", "unknown backend %q", c.Output.Backend)

	switch c.SSAO.Mode {
	case AOModeKernel, AOModeHBAO, AOModeOff:
	default:
		check(false, "unknown ssao mode %q", c.SSAO.Mode)
	}
	check(c.SSAO.KernelSize == 32 || c.SSAO.KernelSize == 64, "ssao kernel size %d must be 32 or 64", c.SSAO.KernelSize)
	check(c.SSAO.Radius > 0, "ssao radius must be positive")
	check(c.SSAO.Bias >= 0, "ssao bias must not be negative")
	check(!c.SSAO.Blur || c.SSAO.BlurSize >= 1, "ssao blur size must be at least 1")
	check(c.HBAO.Directions > 0 && c.HBAO.Steps > 0, "hbao directions and steps must be positive")
	check(c.HBAO.Radius > 0 && c.HBAO.FallOff > 0, "hbao radius and fall off must be positive")

	r := c.Voxel.Resolution
	check(r >= 1 && r&(r-1) == 0, "voxel resolution %d must be a power of two", r)
	check(c.Voxel.Extents[0] > 0 && c.Voxel.Extents[1] > 0 && c.Voxel.Extents[2] > 0, "voxel extents must be positive")
	check(c.Voxel.LOD >= 0, "voxel lod must not be negative")

	check(c.Lighting.Gamma > 0, "gamma must be positive")
	check(c.Lighting.AmbientPower > 0, "ambient power must be positive")
	check(c.Lighting.NormalStrength >= 0 && c.Lighting.NormalStrength <= 1, "normal strength must be within [0, 1]")
	check(c.MotionBlur.Taps >= 1, "motion blur taps must be at least 1")
	check(c.Workers >= 0, "workers must not be negative")

	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

// Load reads a YAML (.yaml, .yml) or TOML (.toml) file over the defaults and validates the result.
//
// Parameters:
//   - path: configuration file path
//
// Returns:
//   - Config: the merged configuration
//   - error: error if the file cannot be read, parsed or validated
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return Parse(data, filepath.Ext(path))
}

// Parse decodes configuration bytes in the format named by ext over the defaults.
func Parse(data []byte, ext string) (Config, error) {
	cfg := Default()
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse yaml config: %w", err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse toml config: %w", err)
		}
	default:
		return Config{}, fmt.Errorf("unsupported config format %q", ext)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// NeedsVoxelRebuild reports whether switching from c to next changes anything the voxel lightmap depends on.
func (c Config) NeedsVoxelRebuild(next Config) bool {
	return c.Voxel != next.Voxel || c.Lighting != next.Lighting
}
