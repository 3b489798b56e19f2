// Package config loads facet settings: defaults, then a YAML file, then
// FACET_* environment variables.
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("facet.yaml").
//	    Load()
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the complete facet configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" env:"SERVER"`
	Pipeline  PipelineConfig  `yaml:"pipeline" env:"PIPELINE"`
	Embedding EmbeddingConfig `yaml:"embedding" env:"EMBEDDING"`
	Log       LogConfig       `yaml:"log" env:"LOG"`
	// WorkDir is the parent of per-invocation work directories; empty
	// means the system temp directory.
	WorkDir string `yaml:"work_dir" env:"WORK_DIR"`
}

// ServerConfig configures the HTTP service.
type ServerConfig struct {
	Address      string        `yaml:"address" env:"ADDRESS"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	// BodyLimit is the largest accepted upload in bytes.
	BodyLimit int `yaml:"body_limit" env:"BODY_LIMIT"`
	// RequestTimeout bounds one conversion.
	RequestTimeout time.Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT"`
}

// PipelineConfig holds the conversion parameters.
type PipelineConfig struct {
	Tolerance        float64 `yaml:"tolerance" env:"TOLERANCE"`
	AngularTolerance float64 `yaml:"angular_tolerance" env:"ANGULAR_TOLERANCE"`
	Workers          int     `yaml:"workers" env:"WORKERS"`
	PointCount       int     `yaml:"point_count" env:"POINT_COUNT"`
	Seed             uint64  `yaml:"seed" env:"SEED"`
	VoxelResolution  int     `yaml:"voxel_resolution" env:"VOXEL_RESOLUTION"`
	VoxelPadding     float64 `yaml:"voxel_padding" env:"VOXEL_PADDING"`
	Views            int     `yaml:"views" env:"VIEWS"`
	RenderWidth      int     `yaml:"render_width" env:"RENDER_WIDTH"`
	RenderHeight     int     `yaml:"render_height" env:"RENDER_HEIGHT"`
	RenderMode       string  `yaml:"render_mode" env:"RENDER_MODE"`
}

// EmbeddingConfig points at the encoder service. An empty URL disables
// the vecset target.
type EmbeddingConfig struct {
	URL     string        `yaml:"url" env:"URL"`
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// Density is the reconstruction lattice resolution.
	Density int `yaml:"density" env:"DENSITY"`
	// Reconstruct also writes the decoded surface.
	Reconstruct bool `yaml:"reconstruct" env:"RECONSTRUCT"`
}

// LogConfig selects the logger.
type LogConfig struct {
	Level string `yaml:"level" env:"LEVEL"`
	// Format is "json" or "console".
	Format string `yaml:"format" env:"FORMAT"`
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address:        ":8080",
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   5 * time.Minute,
			BodyLimit:      256 << 20,
			RequestTimeout: 5 * time.Minute,
		},
		Pipeline: PipelineConfig{
			Tolerance:        0.01,
			AngularTolerance: 0.2,
			Workers:          4,
			PointCount:       8192,
			Seed:             1,
			VoxelResolution:  128,
			VoxelPadding:     0.05,
			Views:            8,
			RenderWidth:      512,
			RenderHeight:     512,
			RenderMode:       "shaded",
		},
		Embedding: EmbeddingConfig{
			Timeout: 2 * time.Minute,
			Density: 256,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate rejects non-positive sizes and unknown names.
func (c *Config) Validate() error {
	var errs []string
	positive := func(name string, v float64) {
		if !(v > 0) {
			errs = append(errs, name+" must be positive")
		}
	}

	if strings.TrimSpace(c.Server.Address) == "" {
		errs = append(errs, "server.address is required")
	}
	positive("server.read_timeout", float64(c.Server.ReadTimeout))
	positive("server.write_timeout", float64(c.Server.WriteTimeout))
	positive("server.body_limit", float64(c.Server.BodyLimit))
	positive("server.request_timeout", float64(c.Server.RequestTimeout))

	p := c.Pipeline
	positive("pipeline.tolerance", p.Tolerance)
	positive("pipeline.angular_tolerance", p.AngularTolerance)
	positive("pipeline.workers", float64(p.Workers))
	positive("pipeline.point_count", float64(p.PointCount))
	positive("pipeline.voxel_resolution", float64(p.VoxelResolution))
	if p.VoxelPadding < 0 {
		errs = append(errs, "pipeline.voxel_padding must not be negative")
	}
	positive("pipeline.views", float64(p.Views))
	positive("pipeline.render_width", float64(p.RenderWidth))
	positive("pipeline.render_height", float64(p.RenderHeight))
	switch p.RenderMode {
	case "shaded", "wireframe", "shaded_with_edges":
	default:
		errs = append(errs, fmt.Sprintf("pipeline.render_mode %q is not shaded, wireframe or shaded_with_edges", p.RenderMode))
	}

	if c.Embedding.URL != "" {
		positive("embedding.timeout", float64(c.Embedding.Timeout))
		positive("embedding.density", float64(c.Embedding.Density))
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("log.level %q is unknown", c.Log.Level))
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Sprintf("log.format %q is not json or console", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}
