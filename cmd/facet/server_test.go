package main

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"testing"
	"time"

	"github.com/chazu/facet/pkg/config"
	"github.com/chazu/facet/pkg/metrics"
	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const cubeSTEP = "../../pkg/step/testdata/cube.step"

func testServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.WorkDir = t.TempDir()
	cfg.Server.RequestTimeout = 30 * time.Second
	cfg.Pipeline.PointCount = 512
	cfg.Pipeline.VoxelResolution = 8
	cfg.Pipeline.Views = 2
	cfg.Pipeline.RenderWidth = 32
	cfg.Pipeline.RenderHeight = 32

	reg := prometheus.NewRegistry()
	m := metrics.NewCollector(metrics.Namespace, reg, nil)
	return NewServer(cfg, newPipeline(cfg, m, zap.NewNop()), m, reg, zap.NewNop())
}

func upload(t *testing.T, target, path string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if path != "" {
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		fw, err := mw.CreateFormFile("file", "cube.step")
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func do(t *testing.T, s *Server, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := s.app.Test(req, fiber.TestConfig{Timeout: 60 * time.Second, FailOnTimeout: true})
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func TestHealth(t *testing.T) {
	s := testServer(t)
	resp, body := do(t, s, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"status":"ok"`)
}

func TestConvertSingleArtefact(t *testing.T) {
	s := testServer(t)
	resp, body := do(t, s, upload(t, "/convert?target=stl", cubeSTEP))
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "cube.stl")
	assert.NotEmpty(t, resp.Header.Get("X-Facet-Id"))

	// Binary STL: 80-byte header, count, 50 bytes per triangle.
	require.Greater(t, len(body), 84)
	assert.Zero(t, (len(body)-84)%50)
}

func TestConvertZipsSeveralArtefacts(t *testing.T) {
	s := testServer(t)
	resp, body := do(t, s, upload(t, "/convert?target=stl,ply", cubeSTEP))
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "cube.zip")

	zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	require.NoError(t, err)
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	assert.Subset(t, names, []string{"cube.ply", "cube.stl"})
}

func TestAnalyseRoute(t *testing.T) {
	s := testServer(t)
	resp, body := do(t, s, upload(t, "/analyse", cubeSTEP))
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var rep struct {
		TotalSurfaces int     `json:"total_surfaces"`
		TotalArea     float64 `json:"total_area"`
	}
	require.NoError(t, json.Unmarshal(body, &rep))
	assert.Equal(t, 6, rep.TotalSurfaces)
	assert.Greater(t, rep.TotalArea, 0.0)
}

func TestConvertErrors(t *testing.T) {
	tests := []struct {
		name   string
		target string
		file   string
		status int
	}{
		{"unknown target", "/convert?target=gltf", cubeSTEP, http.StatusBadRequest},
		{"missing target", "/convert", cubeSTEP, http.StatusBadRequest},
		{"missing file", "/convert?target=stl", "", http.StatusBadRequest},
		{"bad resolution", "/convert?target=voxel&resolution=fine", cubeSTEP, http.StatusBadRequest},
		{"negative resolution", "/convert?target=voxel&resolution=-1", cubeSTEP, http.StatusBadRequest},
		{"bad mode", "/render?mode=toon", cubeSTEP, http.StatusBadRequest},
		{"no encoder", "/vecset", cubeSTEP, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testServer(t)
			resp, body := do(t, s, upload(t, tt.target, tt.file))
			assert.Equal(t, tt.status, resp.StatusCode, string(body))
			assert.Contains(t, string(body), `"error"`)
		})
	}
}

func TestMetricsRoute(t *testing.T) {
	s := testServer(t)
	do(t, s, httptest.NewRequest(http.MethodGet, "/health", nil))

	resp, body := do(t, s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `facet_http_requests_total{method="GET",path="/health",status="200"} 1`)
}

func TestParseTargets(t *testing.T) {
	got, err := parseTargets("stl, voxel,,analyse")
	require.NoError(t, err)
	assert.Len(t, got, 3)

	_, err = parseTargets(" , ")
	assert.Error(t, err)
}
