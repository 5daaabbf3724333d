package config

import (
	"strings"
	"testing"
)

func baseConfig() *Config {
	return &Config{
		Telegram: TelegramConfig{Token: "123:abc"},
	}
}

func TestNormalizeDefaults(t *testing.T) {
	cfg := baseConfig()
	if err := Normalize(cfg); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.Telegram.RunMode != RunModeLongpoll {
		t.Fatalf("run_mode = %q, expected longpoll", cfg.Telegram.RunMode)
	}
	if cfg.Bot.EmailDomain != "ntu.edu.sg" {
		t.Fatalf("email_domain = %q", cfg.Bot.EmailDomain)
	}
	if cfg.Bot.ExpiredText == "" {
		t.Fatal("expected default expired text")
	}
	if cfg.Bot.SessionMaxIdleMinutes != defaultSessionMaxIdle {
		t.Fatalf("session_max_idle_minutes = %d", cfg.Bot.SessionMaxIdleMinutes)
	}
}

func TestNormalizeMissingToken(t *testing.T) {
	cfg := &Config{}
	err := Normalize(cfg)
	if err == nil || !strings.Contains(err.Error(), "token") {
		t.Fatalf("expected token error, got %v", err)
	}
}

func TestNormalizeWebhookRequiresURL(t *testing.T) {
	cfg := baseConfig()
	cfg.Telegram.RunMode = "webhook"
	if err := Normalize(cfg); err == nil {
		t.Fatal("expected error for webhook mode without url")
	}
	cfg.Webhook = WebhookConfig{URL: "https://example.org/hook", Listen: "0.0.0.0", Port: 8443}
	if err := Normalize(cfg); err != nil {
		t.Fatalf("normalize webhook: %v", err)
	}
}

func TestNormalizeEmailDomainTrimsAt(t *testing.T) {
	cfg := baseConfig()
	cfg.Bot.EmailDomain = " @E.NTU.EDU.SG "
	if err := Normalize(cfg); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.Bot.EmailDomain != "e.ntu.edu.sg" {
		t.Fatalf("email_domain = %q", cfg.Bot.EmailDomain)
	}
}

func TestNormalizeRejectsUnknownExclusion(t *testing.T) {
	cfg := baseConfig()
	cfg.RateLimit.ExcludeUpdates = []string{"sticker"}
	if err := Normalize(cfg); err == nil {
		t.Fatal("expected error for unknown exclusion")
	}
}
