package notifier

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"pulse/internal/models"
)

const (
	discordRed   = 15548997
	discordGreen = 1100289
)

type Discord struct {
	HTTP *http.Client
}

func NewDiscord() *Discord {
	return &Discord{HTTP: defaultHTTPClient()}
}

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordFooter struct {
	Text string `json:"text"`
}

type discordEmbed struct {
	Title     string         `json:"title"`
	Color     int            `json:"color"`
	Fields    []discordField `json:"fields"`
	Footer    discordFooter  `json:"footer"`
	Timestamp string         `json:"timestamp"`
}

type discordMessage struct {
	Embeds []discordEmbed `json:"embeds"`
}

func buildDiscordMessage(p Payload) discordMessage {
	emoji, color := "🟢", discordGreen
	if p.Down() {
		emoji, color = "🔴", discordRed
	}
	status := p.statusText()
	fields := []discordField{
		{Name: "📊 Service", Value: p.Service.Name, Inline: true},
		{Name: "🔧 Type", Value: strings.ToUpper(string(p.Service.Type)), Inline: true},
		{Name: "📡 Status", Value: status, Inline: true},
		{Name: "⏱️ Response Time", Value: fmt.Sprintf("%dms", p.ResponseTimeMs), Inline: true},
	}
	if target := p.Service.Target(); target != "" {
		fields = append(fields, discordField{Name: "🎯 Target", Value: "`" + target + "`"})
	}
	if p.Message != "" {
		fields = append(fields, discordField{Name: "💬 Message", Value: p.Message})
	}
	if secs, ok := p.downtime(); ok {
		fields = append(fields, discordField{Name: "⏰ Downtime Duration", Value: formatDuration(secs), Inline: true})
	}
	embed := discordEmbed{
		Title:     fmt.Sprintf("%s Service %s", emoji, status),
		Color:     color,
		Fields:    fields,
		Footer:    discordFooter{Text: "Pulse Monitor"},
		Timestamp: p.Timestamp.UTC().Format(time.RFC3339),
	}
	return discordMessage{Embeds: []discordEmbed{embed}}
}

func (d *Discord) Send(ctx context.Context, ch models.AlertChannel, p Payload) error {
	if ch.Discord == nil || ch.Discord.WebhookURL == "" {
		return errors.New("no Discord webhook URL configured")
	}
	return postJSON(ctx, d.HTTP, http.MethodPost, ch.Discord.WebhookURL, nil, buildDiscordMessage(p), "Discord")
}
