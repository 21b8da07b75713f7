package telegram

import (
	"context"
	"log/slog"

	"AutoNews/internal/ports"
)

// ChannelPublisher delivers posts to the public channel.
type ChannelPublisher struct {
	bot    *Bot
	chatID string
}

var _ ports.Publisher = (*ChannelPublisher)(nil)

// NewChannelPublisher binds the bot to the channel chat.
func NewChannelPublisher(bot *Bot, chatID string) *ChannelPublisher {
	return &ChannelPublisher{bot: bot, chatID: chatID}
}

// PublishPhoto sends the caption attached to the image.
func (p *ChannelPublisher) PublishPhoto(ctx context.Context, imageURL, caption string) error {
	return p.bot.SendPhoto(ctx, p.chatID, imageURL, caption)
}

// PublishText sends the caption alone.
func (p *ChannelPublisher) PublishText(ctx context.Context, caption string) error {
	return p.bot.SendMessage(ctx, p.chatID, caption)
}

// ImageUsable delegates to the bot's HEAD check.
func (p *ChannelPublisher) ImageUsable(ctx context.Context, imageURL string) bool {
	return p.bot.ImageUsable(ctx, imageURL)
}

// AdminAlerter sends operator alerts to the admin chat.
type AdminAlerter struct {
	bot    *Bot
	chatID string
	logger *slog.Logger
}

var _ ports.Alerter = (*AdminAlerter)(nil)

// NewAdminAlerter binds the bot to the admin chat.
func NewAdminAlerter(bot *Bot, chatID string, logger *slog.Logger) *AdminAlerter {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminAlerter{bot: bot, chatID: chatID, logger: logger}
}

// Alert attaches imageURL when it is usable and falls back to text.
func (a *AdminAlerter) Alert(ctx context.Context, text, imageURL string) error {
	if imageURL != "" && a.bot.ImageUsable(ctx, imageURL) {
		err := a.bot.SendPhoto(ctx, a.chatID, imageURL, text)
		if err == nil {
			return nil
		}
		a.logger.Warn("alert with image failed, retrying as text", "error", err)
	}
	return a.bot.SendMessage(ctx, a.chatID, text)
}
