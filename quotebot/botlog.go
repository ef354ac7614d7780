package quotebot

import (
	"context"
	"log/slog"
	"regexp"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

var webhookURLPattern = regexp.MustCompile(
	`discord(?:app)?\.com/api/webhooks/(\d+)/([\w-]+)`,
)

// Botlog posts operational announcements (guild joins and removals) to a
// configured webhook. With no webhook configured it does nothing.
type Botlog struct {
	client    PlatformClient
	logger    *slog.Logger
	webhookID string
	token     string
}

func newBotlog(webhookURL string, logger *slog.Logger) *Botlog {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Botlog{logger: logger.With(loggerNameKey, "botlog")}
	if webhookURL == "" {
		return b
	}
	match := webhookURLPattern.FindStringSubmatch(webhookURL)
	if match == nil {
		b.logger.Warn("unparseable botlog webhook url, botlog disabled")
		return b
	}
	b.webhookID = match[1]
	b.token = match[2]
	return b
}

// Enabled reports whether a webhook is configured.
func (b *Botlog) Enabled() bool {
	return b.webhookID != "" && b.client != nil
}

// Send posts one message to the webhook. Failures are logged, never
// returned: the botlog must not affect bot behavior.
func (b *Botlog) Send(ctx context.Context, message string) {
	if !b.Enabled() {
		return
	}
	_, err := b.client.WebhookExecute(b.webhookID, b.token, false, &discordgo.WebhookParams{
		Content: message,
	})
	if err != nil {
		b.logger.WarnContext(ctx, "error posting to botlog", tint.Err(err))
	}
}
