package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"AutoNews/internal/config"
	apperrors "AutoNews/internal/errors"
	"AutoNews/internal/ports"
)

const defaultAnthropicModel = "claude-3-5-haiku-latest"

// AnthropicJudge implements ports.Judge on the Anthropic Messages API.
type AnthropicJudge struct {
	client       *anthropic.Client
	model        string
	systemPrompt string
	maxTokens    int64
	logger       *slog.Logger
}

var _ ports.Judge = (*AnthropicJudge)(nil)

// NewAnthropicJudge builds a client from configuration. Endpoint, when set,
// replaces the SDK's base URL.
func NewAnthropicJudge(cfg config.JudgeConfig, logger *slog.Logger) *AnthropicJudge {
	if logger == nil {
		logger = slog.Default()
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithBaseURL(cfg.Endpoint))
	}
	client := anthropic.NewClient(opts...)

	model := cfg.Model
	if model == "" {
		model = defaultAnthropicModel
	}
	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 16
	}

	return &AnthropicJudge{
		client:       &client,
		model:        model,
		systemPrompt: cfg.SystemPrompt,
		maxTokens:    maxTokens,
		logger:       logger,
	}
}

// SameEvent asks Claude whether a and b describe one event.
func (j *AnthropicJudge) SameEvent(ctx context.Context, a, b string) (bool, error) {
	response, err := j.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(j.model),
		MaxTokens: j.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: systemPrompt(j.systemPrompt)}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(sameEventPrompt(a, b))),
		},
	})
	if err != nil {
		return false, apperrors.NewTransientProvider("judge", fmt.Errorf("anthropic messages: %w", err))
	}

	var answer strings.Builder
	for _, block := range response.Content {
		if block.Type == "text" {
			answer.WriteString(block.Text)
		}
	}
	if answer.Len() == 0 {
		return false, apperrors.NewTransientProvider("judge", fmt.Errorf("anthropic response without text"))
	}

	j.logger.Debug("judge answered", "model", j.model, "answer", strings.TrimSpace(answer.String()))
	return parseVerdict(answer.String()), nil
}
