package notifier

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"pulse/internal/models"
)

const telegramAPI = "https://api.telegram.org"

type Telegram struct {
	HTTP    *http.Client
	BaseURL string
}

func NewTelegram() *Telegram {
	return &Telegram{HTTP: defaultHTTPClient(), BaseURL: telegramAPI}
}

func buildTelegramText(p Payload) string {
	emoji := "🟢"
	if p.Down() {
		emoji = "🔴"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s Service %s: %s\n", emoji, p.statusText(), p.Service.Name)
	fmt.Fprintf(&b, "Type: %s\n", strings.ToUpper(string(p.Service.Type)))
	if target := p.Service.Target(); target != "" {
		fmt.Fprintf(&b, "Target: %s\n", target)
	}
	fmt.Fprintf(&b, "Response time: %dms\n", p.ResponseTimeMs)
	if p.Message != "" {
		fmt.Fprintf(&b, "Message: %s\n", p.Message)
	}
	if secs, ok := p.downtime(); ok {
		fmt.Fprintf(&b, "Downtime: %s\n", formatDuration(secs))
	}
	fmt.Fprintf(&b, "Detected at %s", p.detectedAt())
	return b.String()
}

func (t *Telegram) Send(ctx context.Context, ch models.AlertChannel, p Payload) error {
	if ch.Telegram == nil || ch.Telegram.BotToken == "" || ch.Telegram.ChatID == "" {
		return errors.New("telegram not configured")
	}
	base := t.BaseURL
	if base == "" {
		base = telegramAPI
	}
	payload := map[string]any{"chat_id": ch.Telegram.ChatID, "text": buildTelegramText(p), "disable_web_page_preview": true}
	u := fmt.Sprintf("%s/bot%s/sendMessage", strings.TrimRight(base, "/"), ch.Telegram.BotToken)
	return postJSON(ctx, t.HTTP, http.MethodPost, u, nil, payload, "Telegram")
}
