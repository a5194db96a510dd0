package notifier

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"pulse/internal/models"
)

type roundTripFunc func(req *http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func okResponse() *http.Response {
	return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader(`ok`)), Header: http.Header{}}
}

func samplePayload(status models.Status) Payload {
	duration := int64(3725)
	started := time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC)
	ended := started.Add(time.Duration(duration) * time.Second)
	return Payload{
		Service:        models.Service{ID: "svc-1", Name: "API", Type: models.ServiceHTTP, URL: "https://api.example.com/health"},
		Status:         status,
		Message:        "Unexpected status: 503",
		ResponseTimeMs: 120,
		Timestamp:      time.Date(2026, 3, 1, 12, 2, 5, 0, time.UTC),
		Incident:       &models.Incident{ID: "inc-1", StartedAt: started, EndedAt: &ended, DurationSeconds: &duration},
	}
}

func TestFormatDuration(t *testing.T) {
	cases := map[int64]string{0: "0s", 59: "59s", 60: "1m 0s", 125: "2m 5s", 3600: "1h 0m", 3725: "1h 2m"}
	for in, want := range cases {
		if got := formatDuration(in); got != want {
			t.Fatalf("formatDuration(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestWebhookKeepsContentTypeAndSendsEvent(t *testing.T) {
	var got *http.Request
	var body map[string]any
	w := NewWebhook()
	w.HTTP = &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		got = req
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		return okResponse(), nil
	})}
	ch := models.AlertChannel{Type: models.ChannelWebhook, Webhook: &models.WebhookConfig{
		URL:     "https://hooks.local/pulse",
		Method:  "put",
		Headers: map[string]string{"Content-Type": "text/plain", "X-Secret": "s3"},
	}}

	if err := w.Send(context.Background(), ch, samplePayload(models.StatusDown)); err != nil {
		t.Fatalf("send: %v", err)
	}
	if got.Method != http.MethodPut {
		t.Fatalf("method = %s, want PUT", got.Method)
	}
	if got.Header.Get("Content-Type") != "application/json" || got.Header.Get("X-Secret") != "s3" {
		t.Fatalf("headers = %v", got.Header)
	}
	if body["event"] != "service.down" || body["status"] != "down" {
		t.Fatalf("body = %v", body)
	}
	svc := body["service"].(map[string]any)
	if svc["url"] != "https://api.example.com/health" {
		t.Fatalf("service = %v", svc)
	}
	if inc := body["incident"].(map[string]any); inc["id"] != "inc-1" {
		t.Fatalf("incident = %v", inc)
	}
}

func TestWebhookFailsOnNon2xx(t *testing.T) {
	w := NewWebhook()
	w.HTTP = &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: http.StatusBadGateway, Body: io.NopCloser(strings.NewReader("")), Header: http.Header{}}, nil
	})}
	ch := models.AlertChannel{Type: models.ChannelWebhook, Webhook: &models.WebhookConfig{URL: "https://hooks.local"}}
	err := w.Send(context.Background(), ch, samplePayload(models.StatusUp))
	if err == nil || err.Error() != "Webhook returned 502: Bad Gateway" {
		t.Fatalf("err = %v", err)
	}
	if err := w.Send(context.Background(), models.AlertChannel{Type: models.ChannelWebhook}, samplePayload(models.StatusUp)); err == nil {
		t.Fatalf("expected error without config")
	}
}

func TestSlackMessageLayout(t *testing.T) {
	msg := buildSlackMessage(samplePayload(models.StatusUp))
	att := msg.Attachments[0]
	if att.Color != "#10b981" {
		t.Fatalf("color = %s", att.Color)
	}
	if att.Blocks[0].Text.Text != ":large_green_circle: Service RECOVERED" {
		t.Fatalf("header = %q", att.Blocks[0].Text.Text)
	}
	if len(att.Blocks[1].Fields) != 4 || att.Blocks[1].Fields[1].Text != "*Type:*\nHTTP" {
		t.Fatalf("fields = %+v", att.Blocks[1].Fields)
	}
	var sawDowntime bool
	for _, b := range att.Blocks {
		if b.Text != nil && b.Text.Text == "*Downtime Duration:* 1h 2m" {
			sawDowntime = true
		}
	}
	if !sawDowntime {
		t.Fatalf("recovery message lacks downtime: %+v", att.Blocks)
	}
	last := att.Blocks[len(att.Blocks)-1]
	if last.Type != "context" || last.Elements[0].Text != "Detected at 2026-03-01 12:02:05 UTC" {
		t.Fatalf("context block = %+v", last)
	}

	down := buildSlackMessage(samplePayload(models.StatusDown)).Attachments[0]
	if down.Color != "#ef4444" {
		t.Fatalf("down color = %s", down.Color)
	}
	for _, b := range down.Blocks {
		if b.Text != nil && strings.HasPrefix(b.Text.Text, "*Downtime") {
			t.Fatalf("down alert must not carry downtime")
		}
	}
}

func TestDiscordSendPostsEmbed(t *testing.T) {
	var msg discordMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := NewDiscord()
	ch := models.AlertChannel{Type: models.ChannelDiscord, Discord: &models.DiscordConfig{WebhookURL: srv.URL}}
	if err := d.Send(context.Background(), ch, samplePayload(models.StatusDown)); err != nil {
		t.Fatalf("send: %v", err)
	}
	embed := msg.Embeds[0]
	if embed.Color != 15548997 || embed.Title != "🔴 Service DOWN" || embed.Footer.Text != "Pulse Monitor" {
		t.Fatalf("embed = %+v", embed)
	}
	if len(embed.Fields) != 6 {
		t.Fatalf("fields = %d, want 4 summary + target + message", len(embed.Fields))
	}
}

type fakeMailer struct {
	got EmailMessage
	err error
}

func (f *fakeMailer) SendEmail(_ context.Context, msg EmailMessage) error {
	f.got = msg
	return f.err
}

func TestEmailSubjectBodyAndRecipients(t *testing.T) {
	m := &fakeMailer{}
	e := &Email{Mailer: m, From: "Ops <ops@pulse.local>"}
	ch := models.AlertChannel{Type: models.ChannelEmail, Email: &models.EmailConfig{To: models.Recipients{"a@example.com", "b@example.com"}}}

	if err := e.Send(context.Background(), ch, samplePayload(models.StatusUp)); err != nil {
		t.Fatalf("send: %v", err)
	}
	if m.got.Subject != "🟢 Service Recovered: API" || m.got.From != "Ops <ops@pulse.local>" || len(m.got.To) != 2 {
		t.Fatalf("message = %+v", m.got)
	}
	for _, want := range []string{"API", "https://api.example.com/health", "120ms", "Unexpected status: 503", "1h 2m"} {
		if !strings.Contains(m.got.HTML, want) {
			t.Fatalf("html lacks %q", want)
		}
	}
}

func TestEmailWithoutProvider(t *testing.T) {
	e := NewEmail(NewResendMailer(""), "")
	ch := models.AlertChannel{Type: models.ChannelEmail, Email: &models.EmailConfig{To: models.Recipients{"a@example.com"}}}
	err := e.Send(context.Background(), ch, samplePayload(models.StatusDown))
	if err == nil || err.Error() != "Resend API key not configured" {
		t.Fatalf("err = %v", err)
	}
}

func TestResendMailerPostsToAPI(t *testing.T) {
	var req map[string]any
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"email-1"}`))
	}))
	defer srv.Close()

	m := NewResendMailer("re_test")
	base, _ := url.Parse(srv.URL + "/")
	m.client.BaseURL = base
	err := m.SendEmail(context.Background(), EmailMessage{From: DefaultEmailFrom, To: []string{"a@example.com"}, Subject: "s", HTML: "<p>x</p>"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if auth != "Bearer re_test" || req["subject"] != "s" {
		t.Fatalf("auth = %q req = %v", auth, req)
	}
}

func TestTelegramSend(t *testing.T) {
	var path string
	var body map[string]any
	tg := NewTelegram()
	tg.BaseURL = "https://tg.local"
	tg.HTTP = &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		path = req.URL.Path
		_ = json.NewDecoder(req.Body).Decode(&body)
		return okResponse(), nil
	})}
	ch := models.AlertChannel{Type: models.ChannelTelegram, Telegram: &models.TelegramConfig{BotToken: "123:abc", ChatID: "-100"}}
	if err := tg.Send(context.Background(), ch, samplePayload(models.StatusDown)); err != nil {
		t.Fatalf("send: %v", err)
	}
	if path != "/bot123:abc/sendMessage" || body["chat_id"] != "-100" {
		t.Fatalf("path = %s body = %v", path, body)
	}
	if text, _ := body["text"].(string); !strings.HasPrefix(text, "🔴 Service DOWN: API") {
		t.Fatalf("text = %q", text)
	}
}
