package notifier

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"

	"github.com/resend/resend-go/v2"

	"pulse/internal/models"
)

const DefaultEmailFrom = "Pulse <alerts@pulse.local>"

type EmailMessage struct {
	From    string
	To      []string
	Subject string
	HTML    string
}

// Mailer is the outbound mail provider.
type Mailer interface {
	SendEmail(ctx context.Context, msg EmailMessage) error
}

type ResendMailer struct {
	client *resend.Client
}

// NewResendMailer returns nil without an API key so the email sender can
// report the provider as unconfigured.
func NewResendMailer(apiKey string) *ResendMailer {
	if strings.TrimSpace(apiKey) == "" {
		return nil
	}
	return &ResendMailer{client: resend.NewClient(apiKey)}
}

func (m *ResendMailer) SendEmail(ctx context.Context, msg EmailMessage) error {
	_, err := m.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    msg.From,
		To:      msg.To,
		Subject: msg.Subject,
		Html:    msg.HTML,
	})
	return err
}

type Email struct {
	Mailer Mailer
	From   string
}

func NewEmail(mailer *ResendMailer, from string) *Email {
	e := &Email{From: from}
	if mailer != nil {
		e.Mailer = mailer
	}
	return e
}

var emailTemplate = template.Must(template.New("alert").Parse(`<div style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; max-width: 600px; margin: 0 auto;">
  <div style="background: {{.Color}}; color: white; padding: 20px; text-align: center;">
    <h1 style="margin: 0; font-size: 24px;">{{.Headline}}</h1>
  </div>
  <div style="padding: 20px; background: #18181b; color: #fff;">
    <h2 style="margin: 0 0 20px; color: #fff;">{{.Name}}</h2>
    <table style="width: 100%; border-collapse: collapse;">
      <tr><td style="padding: 10px 0; color: #a1a1aa;">Status</td><td style="padding: 10px 0; color: {{.Color}}; text-align: right;">{{.Status}}</td></tr>
      <tr><td style="padding: 10px 0; color: #a1a1aa;">URL</td><td style="padding: 10px 0; color: #fff; text-align: right;">{{.Target}}</td></tr>
      <tr><td style="padding: 10px 0; color: #a1a1aa;">Response Time</td><td style="padding: 10px 0; color: #fff; text-align: right;">{{.ResponseTimeMs}}ms</td></tr>
      <tr><td style="padding: 10px 0; color: #a1a1aa;">Message</td><td style="padding: 10px 0; color: #fff; text-align: right;">{{.Message}}</td></tr>
      <tr><td style="padding: 10px 0; color: #a1a1aa;">Time</td><td style="padding: 10px 0; color: #fff; text-align: right;">{{.Time}}</td></tr>
      {{- if .Downtime}}
      <tr><td style="padding: 10px 0; color: #a1a1aa;">Downtime</td><td style="padding: 10px 0; color: #fff; text-align: right;">{{.Downtime}}</td></tr>
      {{- end}}
    </table>
  </div>
  <div style="padding: 15px; background: #09090b; color: #a1a1aa; text-align: center; font-size: 12px;">Sent by Pulse Server Monitor</div>
</div>`))

func emailSubject(p Payload) string {
	if p.Down() {
		return "🔴 Service Down: " + p.Service.Name
	}
	return "🟢 Service Recovered: " + p.Service.Name
}

type emailData struct {
	Color          string
	Headline       string
	Name           string
	Status         string
	Target         string
	Message        string
	Time           string
	Downtime       string
	ResponseTimeMs int64
}

func renderEmail(p Payload) (string, error) {
	data := emailData{
		Color:          "#10b981",
		Headline:       "🟢 Service Recovered",
		Name:           p.Service.Name,
		Status:         "Up",
		Target:         p.Service.Target(),
		Message:        p.Message,
		Time:           p.detectedAt(),
		ResponseTimeMs: p.ResponseTimeMs,
	}
	if p.Down() {
		data.Color, data.Headline, data.Status = "#ef4444", "🔴 Service Down", "Down"
	}
	if data.Target == "" {
		data.Target = "N/A"
	}
	if secs, ok := p.downtime(); ok {
		data.Downtime = formatDuration(secs)
	}
	var buf bytes.Buffer
	if err := emailTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render email: %w", err)
	}
	return buf.String(), nil
}

func (e *Email) Send(ctx context.Context, ch models.AlertChannel, p Payload) error {
	if e.Mailer == nil {
		return errors.New("Resend API key not configured")
	}
	if ch.Email == nil || len(ch.Email.To) == 0 {
		return errors.New("no email recipient configured")
	}
	html, err := renderEmail(p)
	if err != nil {
		return err
	}
	from := ch.Email.From
	if from == "" {
		from = e.From
	}
	if from == "" {
		from = DefaultEmailFrom
	}
	return e.Mailer.SendEmail(ctx, EmailMessage{From: from, To: ch.Email.To, Subject: emailSubject(p), HTML: html})
}
