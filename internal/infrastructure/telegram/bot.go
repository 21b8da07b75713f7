package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"AutoNews/internal/config"
	"AutoNews/internal/httputil"
)

const (
	defaultAPIBase    = "https://api.telegram.org"
	imageCheckTimeout = 5 * time.Second
)

// Bot is a minimal Telegram Bot API client.
type Bot struct {
	botToken   string
	apiBase    string
	maxRetries int
	client     *http.Client
	logger     *slog.Logger
}

// NewBot registers the bot token and API base.
func NewBot(cfg config.TelegramConfig, logger *slog.Logger) *Bot {
	apiBase := strings.TrimRight(cfg.APIBase, "/")
	if apiBase == "" {
		apiBase = defaultAPIBase
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{
		botToken:   cfg.BotToken,
		apiBase:    apiBase,
		maxRetries: 2,
		client:     &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
}

// SendMessage posts a markdown caption as an HTML message.
func (b *Bot) SendMessage(ctx context.Context, chatID, caption string) error {
	form := url.Values{}
	form.Set("chat_id", chatID)
	form.Set("text", RenderHTML(caption))
	form.Set("parse_mode", "HTML")
	return b.call(ctx, "sendMessage", form)
}

// SendPhoto posts a photo by URL with a markdown caption.
func (b *Bot) SendPhoto(ctx context.Context, chatID, photoURL, caption string) error {
	form := url.Values{}
	form.Set("chat_id", chatID)
	form.Set("photo", photoURL)
	form.Set("caption", RenderHTML(caption))
	form.Set("parse_mode", "HTML")
	return b.call(ctx, "sendPhoto", form)
}

// ImageUsable reports whether imageURL answers a HEAD request with an image content type.
func (b *Bot) ImageUsable(ctx context.Context, imageURL string) bool {
	if imageURL == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, imageCheckTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, imageURL, nil)
	if err != nil {
		return false
	}
	resp, err := b.client.Do(req)
	if err != nil {
		b.logger.Debug("image check failed", "image", imageURL, "error", err)
		return false
	}
	resp.Body.Close()

	return resp.StatusCode < http.StatusBadRequest &&
		strings.HasPrefix(resp.Header.Get("Content-Type"), "image/")
}

func (b *Bot) call(ctx context.Context, method string, form url.Values) error {
	if b.botToken == "" || form.Get("chat_id") == "" {
		return fmt.Errorf("telegram bot misconfigured")
	}

	endpoint := fmt.Sprintf("%s/bot%s/%s", b.apiBase, b.botToken, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := httputil.DoWithRetry(ctx, b.client, req, b.maxRetries)
	if err != nil {
		// url.Error would echo the token-bearing endpoint
		return fmt.Errorf("telegram %s: %w", method, unwrapURLError(err))
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var decoded apiResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("telegram error: %s", resp.Status)
	}
	if !decoded.OK {
		return fmt.Errorf("telegram error: %d %s", decoded.ErrorCode, decoded.Description)
	}
	return nil
}

func unwrapURLError(err error) error {
	if uErr, ok := err.(*url.Error); ok {
		return uErr.Err
	}
	return err
}
