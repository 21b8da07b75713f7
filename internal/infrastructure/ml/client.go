package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "AutoNews/internal/errors"
	"AutoNews/internal/httputil"
	"AutoNews/internal/ports"
)

// Client talks to the embedding/reranking service.
type Client struct {
	endpoint   string
	apiKey     string
	maxRetries int
	http       *http.Client
}

var _ ports.Embedder = (*Client)(nil)
var _ ports.Reranker = (*Client)(nil)

// NewClient creates a reusable HTTP client. Per-call deadlines come from ctx.
func NewClient(endpoint, apiKey string, maxRetries int) *Client {
	return &Client{
		endpoint:   strings.TrimRight(endpoint, "/"),
		apiKey:     apiKey,
		maxRetries: maxRetries,
		http:       &http.Client{Timeout: 60 * time.Second},
	}
}

// Embed returns the embedding vector for text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	var resp struct {
		Embedding []float32 `json:"embedding"`
	}
	if err := c.post(ctx, "/embed", map[string]any{"text": text}, &resp); err != nil {
		return nil, apperrors.NewTransientProvider("embedder", err)
	}
	if len(resp.Embedding) == 0 {
		return nil, apperrors.NewTransientProvider("embedder", fmt.Errorf("empty embedding"))
	}
	return resp.Embedding, nil
}

// Rerank scores how closely a and b describe the same content, clamped to [0, 1].
func (c *Client) Rerank(ctx context.Context, a, b string) (float64, error) {
	var resp struct {
		Score *float64 `json:"score"`
	}
	payload := map[string]any{"text_a": a, "text_b": b}
	if err := c.post(ctx, "/rerank", payload, &resp); err != nil {
		return 0, apperrors.NewTransientProvider("reranker", err)
	}
	if resp.Score == nil {
		return 0, apperrors.NewTransientProvider("reranker", fmt.Errorf("response without score"))
	}
	return clamp(*resp.Score), nil
}

func clamp(s float64) float64 {
	switch {
	case s < 0:
		return 0
	case s > 1:
		return 1
	default:
		return s
	}
}

func (c *Client) post(ctx context.Context, path string, payload any, v any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := httputil.DoWithRetry(ctx, c.http, req, c.maxRetries)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
