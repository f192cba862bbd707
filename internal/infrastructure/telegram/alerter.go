package telegram

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"NewsPoster/internal/config"
	"NewsPoster/internal/ports"
)

const defaultAPIBase = "https://api.telegram.org"

// maxMessageRunes is the Bot API limit for a single message.
const maxMessageRunes = 4096

// Alerter pages the operator chat via the bot API.
type Alerter struct {
	apiBase  string
	botToken string
	chatID   string
	client   *http.Client
}

var _ ports.Alerter = (*Alerter)(nil)

// NewAlerter registers bot token and chat identifier.
func NewAlerter(cfg config.TelegramConfig) *Alerter {
	return &Alerter{
		apiBase:  defaultAPIBase,
		botToken: cfg.BotToken,
		chatID:   cfg.ChatID,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

// Configured reports whether both credentials are present.
func (a *Alerter) Configured() bool {
	return a.botToken != "" && a.chatID != ""
}

// Alert posts a plain-text message to the operator chat.
func (a *Alerter) Alert(ctx context.Context, message string) error {
	if !a.Configured() || a.client == nil {
		return fmt.Errorf("telegram alerter misconfigured")
	}

	if runes := []rune(message); len(runes) > maxMessageRunes {
		message = string(runes[:maxMessageRunes-3]) + "..."
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", strings.TrimSuffix(a.apiBase, "/"), a.botToken)
	form := url.Values{}
	form.Set("chat_id", a.chatID)
	form.Set("text", message)
	form.Set("disable_web_page_preview", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram error: %s", resp.Status)
	}

	return nil
}
