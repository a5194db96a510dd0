package notifier

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"pulse/internal/models"
)

type Webhook struct {
	HTTP *http.Client
}

func NewWebhook() *Webhook {
	return &Webhook{HTTP: defaultHTTPClient()}
}

type webhookService struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
	URL  string `json:"url,omitempty"`
}

type webhookIncident struct {
	ID              string     `json:"id"`
	StartedAt       time.Time  `json:"startedAt"`
	EndedAt         *time.Time `json:"endedAt,omitempty"`
	DurationSeconds *int64     `json:"durationSeconds,omitempty"`
}

type webhookBody struct {
	Event          string           `json:"event"`
	Service        webhookService   `json:"service"`
	Status         models.Status    `json:"status"`
	Message        string           `json:"message"`
	ResponseTimeMs int64            `json:"responseTimeMs"`
	Timestamp      time.Time        `json:"timestamp"`
	Incident       *webhookIncident `json:"incident,omitempty"`
}

func buildWebhookBody(p Payload) webhookBody {
	body := webhookBody{
		Event: p.Event(),
		Service: webhookService{
			ID:   p.Service.ID,
			Name: p.Service.Name,
			Type: string(p.Service.Type),
			URL:  p.Service.Target(),
		},
		Status:         p.Status,
		Message:        p.Message,
		ResponseTimeMs: p.ResponseTimeMs,
		Timestamp:      p.Timestamp.UTC(),
	}
	if p.Incident != nil {
		body.Incident = &webhookIncident{
			ID:              p.Incident.ID,
			StartedAt:       p.Incident.StartedAt.UTC(),
			EndedAt:         p.Incident.EndedAt,
			DurationSeconds: p.Incident.DurationSeconds,
		}
	}
	return body
}

func (w *Webhook) Send(ctx context.Context, ch models.AlertChannel, p Payload) error {
	if ch.Webhook == nil || ch.Webhook.URL == "" {
		return errors.New("no webhook URL configured")
	}
	method := strings.ToUpper(ch.Webhook.Method)
	if method == "" {
		method = http.MethodPost
	}
	return postJSON(ctx, w.HTTP, method, ch.Webhook.URL, ch.Webhook.Headers, buildWebhookBody(p), "Webhook")
}
