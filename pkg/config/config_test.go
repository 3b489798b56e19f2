package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 8192, cfg.Pipeline.PointCount)
	assert.Equal(t, 128, cfg.Pipeline.VoxelResolution)
	assert.Equal(t, "shaded", cfg.Pipeline.RenderMode)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	l := NewLoader().WithConfigPath(filepath.Join(t.TempDir(), "absent.yaml"))
	l.lookupEnv = envMap(nil)
	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "facet.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  address: ":9000"
  request_timeout: 90s
pipeline:
  voxel_resolution: 64
  views: 12
  render_mode: wireframe
embedding:
  url: http://encoder:8001
log:
  level: debug
`), 0o644))

	l := NewLoader().WithConfigPath(path)
	l.lookupEnv = envMap(map[string]string{
		"FACET_PIPELINE_VIEWS":         "20",
		"FACET_PIPELINE_SEED":          "42",
		"FACET_EMBEDDING_TIMEOUT":      "10s",
		"FACET_EMBEDDING_RECONSTRUCT":  "true",
		"FACET_PIPELINE_VOXEL_PADDING": "0.1",
		"FACET_WORK_DIR":               "/var/tmp/facet",
	})
	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Address)
	assert.Equal(t, 90*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, 64, cfg.Pipeline.VoxelResolution)
	assert.Equal(t, 20, cfg.Pipeline.Views)
	assert.Equal(t, uint64(42), cfg.Pipeline.Seed)
	assert.Equal(t, 0.1, cfg.Pipeline.VoxelPadding)
	assert.Equal(t, "wireframe", cfg.Pipeline.RenderMode)
	assert.Equal(t, "http://encoder:8001", cfg.Embedding.URL)
	assert.Equal(t, 10*time.Second, cfg.Embedding.Timeout)
	assert.True(t, cfg.Embedding.Reconstruct)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/var/tmp/facet", cfg.WorkDir)
	// Untouched fields keep their defaults.
	assert.Equal(t, 512, cfg.Pipeline.RenderWidth)
}

func TestEnvPrefix(t *testing.T) {
	l := NewLoader().WithEnvPrefix("CAD")
	l.lookupEnv = envMap(map[string]string{"CAD_PIPELINE_WORKERS": "2", "FACET_PIPELINE_WORKERS": "9"})
	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Pipeline.Workers)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("server: [unclosed"), 0o644))

	tests := []struct {
		name string
		path string
		env  map[string]string
		want string
	}{
		{"malformed yaml", bad, nil, "config: parse"},
		{"bad int", "", map[string]string{"FACET_PIPELINE_VIEWS": "many"}, "FACET_PIPELINE_VIEWS"},
		{"bad duration", "", map[string]string{"FACET_SERVER_READ_TIMEOUT": "soon"}, "FACET_SERVER_READ_TIMEOUT"},
		{"zero views", "", map[string]string{"FACET_PIPELINE_VIEWS": "0"}, "pipeline.views must be positive"},
		{"negative resolution", "", map[string]string{"FACET_PIPELINE_VOXEL_RESOLUTION": "-4"}, "pipeline.voxel_resolution"},
		{"unknown mode", "", map[string]string{"FACET_PIPELINE_RENDER_MODE": "toon"}, "render_mode"},
		{"unknown level", "", map[string]string{"FACET_LOG_LEVEL": "loud"}, "log.level"},
		{"embedding density", "", map[string]string{"FACET_EMBEDDING_URL": "http://x", "FACET_EMBEDDING_DENSITY": "0"}, "embedding.density"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLoader().WithConfigPath(tt.path)
			l.lookupEnv = envMap(tt.env)
			_, err := l.Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
