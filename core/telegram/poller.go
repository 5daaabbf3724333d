package telegram

import (
	"fmt"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	coreconfig "bookingbot/core/config"
)

const defaultLongPollTimeout = 10 * time.Second

// BuildPoller returns a Telebot poller for the configured run mode.
// Anything other than webhook falls back to long polling.
func BuildPoller(cfg *coreconfig.Config) tele.Poller {
	mode := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	if mode == coreconfig.RunModeWebhook {
		return &tele.Webhook{
			Listen:   fmt.Sprintf("%s:%d", cfg.Webhook.Listen, cfg.Webhook.Port),
			Endpoint: &tele.WebhookEndpoint{PublicURL: cfg.Webhook.URL},
		}
	}

	timeout := time.Duration(cfg.Telegram.LongPollTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = defaultLongPollTimeout
	}
	return &tele.LongPoller{Timeout: timeout}
}
