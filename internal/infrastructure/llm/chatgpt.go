package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"AutoNews/internal/config"
	apperrors "AutoNews/internal/errors"
	"AutoNews/internal/httputil"
	"AutoNews/internal/ports"
)

// ChatJudge implements ports.Judge backed by OpenAI-compatible chat APIs
// (OpenAI, OpenRouter and the like).
type ChatJudge struct {
	endpoint     string
	model        string
	apiKey       string
	systemPrompt string
	maxRetries   int
	httpClient   *http.Client
	logger       *slog.Logger
}

var _ ports.Judge = (*ChatJudge)(nil)

// NewChatJudge builds a client from configuration.
func NewChatJudge(cfg config.JudgeConfig, logger *slog.Logger) *ChatJudge {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatJudge{
		endpoint:     cfg.Endpoint,
		model:        cfg.Model,
		apiKey:       cfg.APIKey,
		systemPrompt: cfg.SystemPrompt,
		maxRetries:   cfg.MaxRetries,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger,
	}
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// SameEvent asks the model whether a and b describe one event.
func (c *ChatJudge) SameEvent(ctx context.Context, a, b string) (bool, error) {
	if c.endpoint == "" || c.model == "" {
		return false, apperrors.NewTransientProvider("judge", fmt.Errorf("chat judge misconfigured"))
	}

	body, err := json.Marshal(map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt(c.systemPrompt)},
			{"role": "user", "content": sameEventPrompt(a, b)},
		},
		"temperature": 0,
	})
	if err != nil {
		return false, fmt.Errorf("marshal judge payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("new request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httputil.DoWithRetry(ctx, c.httpClient, req, c.maxRetries)
	if err != nil {
		return false, apperrors.NewTransientProvider("judge", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return false, apperrors.NewTransientProvider("judge",
			fmt.Errorf("chat error %s: %s", resp.Status, strings.TrimSpace(string(payload))))
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return false, apperrors.NewTransientProvider("judge", fmt.Errorf("decode response: %w", err))
	}
	if len(decoded.Choices) == 0 {
		return false, apperrors.NewTransientProvider("judge", fmt.Errorf("response without choices"))
	}

	answer := decoded.Choices[0].Message.Content
	c.logger.Debug("judge answered", "model", c.model, "answer", strings.TrimSpace(answer))
	return parseVerdict(answer), nil
}
