package notifier

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"pulse/internal/models"
)

type Slack struct {
	HTTP *http.Client
}

func NewSlack() *Slack {
	return &Slack{HTTP: defaultHTTPClient()}
}

type slackText struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Emoji bool   `json:"emoji,omitempty"`
}

type slackBlock struct {
	Type     string      `json:"type"`
	Text     *slackText  `json:"text,omitempty"`
	Fields   []slackText `json:"fields,omitempty"`
	Elements []slackText `json:"elements,omitempty"`
}

type slackAttachment struct {
	Color  string       `json:"color"`
	Blocks []slackBlock `json:"blocks"`
}

type slackMessage struct {
	Attachments []slackAttachment `json:"attachments"`
}

func mrkdwn(text string) slackText { return slackText{Type: "mrkdwn", Text: text} }

func buildSlackMessage(p Payload) slackMessage {
	emoji, color := ":large_green_circle:", "#10b981"
	if p.Down() {
		emoji, color = ":red_circle:", "#ef4444"
	}
	status := p.statusText()
	blocks := []slackBlock{
		{Type: "header", Text: &slackText{Type: "plain_text", Text: fmt.Sprintf("%s Service %s", emoji, status), Emoji: true}},
		{Type: "section", Fields: []slackText{
			mrkdwn("*Service:*\n" + p.Service.Name),
			mrkdwn("*Type:*\n" + strings.ToUpper(string(p.Service.Type))),
			mrkdwn("*Status:*\n" + status),
			mrkdwn(fmt.Sprintf("*Response Time:*\n%dms", p.ResponseTimeMs)),
		}},
	}
	if target := p.Service.Target(); target != "" {
		t := mrkdwn(fmt.Sprintf("*Target:* `%s`", target))
		blocks = append(blocks, slackBlock{Type: "section", Text: &t})
	}
	if p.Message != "" {
		t := mrkdwn("*Message:*\n" + p.Message)
		blocks = append(blocks, slackBlock{Type: "section", Text: &t})
	}
	if secs, ok := p.downtime(); ok {
		t := mrkdwn("*Downtime Duration:* " + formatDuration(secs))
		blocks = append(blocks, slackBlock{Type: "section", Text: &t})
	}
	blocks = append(blocks, slackBlock{Type: "context", Elements: []slackText{mrkdwn("Detected at " + p.detectedAt())}})
	return slackMessage{Attachments: []slackAttachment{{Color: color, Blocks: blocks}}}
}

func (s *Slack) Send(ctx context.Context, ch models.AlertChannel, p Payload) error {
	if ch.Slack == nil || ch.Slack.WebhookURL == "" {
		return errors.New("no Slack webhook URL configured")
	}
	return postJSON(ctx, s.HTTP, http.MethodPost, ch.Slack.WebhookURL, nil, buildSlackMessage(p), "Slack")
}
