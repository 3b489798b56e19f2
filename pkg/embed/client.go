package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r3"
)

// ClientConfig configures the HTTP encoder client.
type ClientConfig struct {
	// URL is the service base URL; requests go to URL/encode and URL/decode.
	URL     string
	Timeout time.Duration
}

// Client calls a remote encoder service over JSON.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

var (
	_ Encoder = (*Client)(nil)
	_ Decoder = (*Client)(nil)
)

// NewClient creates a client for cfg.URL.
func NewClient(cfg ClientConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.URL), "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  logger.With(zap.String("component", "embed_client")),
	}
}

type encodeRequest struct {
	Points [][3]float32 `json:"points"`
}

type encodeResponse struct {
	Shape  []int     `json:"shape"`
	Latent []float32 `json:"latent"`
}

type decodeRequest struct {
	Shape   []int     `json:"shape"`
	Latent  []float32 `json:"latent"`
	Density int       `json:"density"`
}

type decodeResponse struct {
	Density int       `json:"density"`
	Logits  []float32 `json:"logits"`
}

// Encode sends the cloud to URL/encode.
func (c *Client) Encode(ctx context.Context, points []r3.Vec) (*Latent, error) {
	req := encodeRequest{Points: make([][3]float32, len(points))}
	for i, p := range points {
		req.Points[i] = [3]float32{float32(p.X), float32(p.Y), float32(p.Z)}
	}
	var resp encodeResponse
	if err := c.post(ctx, "/encode", req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Shape) != 2 || resp.Shape[0] != Tokens || resp.Shape[1] != Width {
		return nil, fmt.Errorf("embed client: unexpected latent shape %v", resp.Shape)
	}
	return &Latent{Data: resp.Latent}, nil
}

// Decode sends the latent to URL/decode.
func (c *Client) Decode(ctx context.Context, l *Latent, density int) (*Occupancy, error) {
	req := decodeRequest{Shape: []int{Tokens, Width}, Latent: l.Data, Density: density}
	var resp decodeResponse
	if err := c.post(ctx, "/decode", req, &resp); err != nil {
		return nil, err
	}
	if resp.Density != density {
		return nil, fmt.Errorf("embed client: asked for density %d, got %d", density, resp.Density)
	}
	return &Occupancy{Density: resp.Density, Logits: resp.Logits}, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	reqBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("embed client: marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("embed client: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("embed client: %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("embed client: %s failed: status=%d body=%s", path, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("embed client: %s: decode response: %w", path, err)
	}
	c.logger.Debug("encoder call",
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}
