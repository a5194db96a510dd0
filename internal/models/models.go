package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type ServiceType string

const (
	ServiceHTTP      ServiceType = "http"
	ServiceTCP       ServiceType = "tcp"
	ServicePing      ServiceType = "ping"
	ServiceDNS       ServiceType = "dns"
	ServiceDocker    ServiceType = "docker"
	ServiceSSL       ServiceType = "ssl"
	ServiceHeartbeat ServiceType = "heartbeat"
)

type Status string

const (
	StatusUp    Status = "up"
	StatusDown  Status = "down"
	StatusError Status = "error"
)

// Service is a monitored target. Only the fields relevant to Type are set.
type Service struct {
	ID              string
	Name            string
	Type            ServiceType
	URL             string
	Method          string
	Headers         map[string]string
	Body            string
	ExpectedStatus  []int
	Keyword         string
	VerifyTLS       bool
	Hostname        string
	Port            int
	DNSRecordType   string
	DNSServer       string
	ExpectedValue   string
	DockerHost      string
	ContainerName   string
	SSLWarningDays  int
	IntervalSeconds int
	TimeoutSeconds  int
	Retries         int
	Active          bool
	Paused          bool
	NextCheck       time.Time
}

func (s Service) Interval() time.Duration {
	if s.IntervalSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(s.IntervalSeconds) * time.Second
}

func (s Service) Timeout() time.Duration {
	if s.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// Target is the URL for http services and the hostname for everything else.
func (s Service) Target() string {
	if s.URL != "" {
		return s.URL
	}
	return s.Hostname
}

type Heartbeat struct {
	ID             int64           `json:"id"`
	ServiceID      string          `json:"serviceId"`
	Status         Status          `json:"status"`
	ResponseTimeMs int64           `json:"responseTime"`
	StatusCode     *int            `json:"statusCode,omitempty"`
	Message        string          `json:"message"`
	Details        json.RawMessage `json:"details,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}

type Incident struct {
	ID              string     `json:"id"`
	ServiceID       string     `json:"serviceId"`
	StartedAt       time.Time  `json:"startedAt"`
	EndedAt         *time.Time `json:"endedAt"`
	DurationSeconds *int64     `json:"durationSeconds"`
	Cause           string     `json:"cause"`
	Resolution      string     `json:"resolution,omitempty"`
	Acknowledged    bool       `json:"acknowledged"`
	AcknowledgedAt  *time.Time `json:"acknowledgedAt,omitempty"`
	AcknowledgedBy  string     `json:"acknowledgedBy,omitempty"`
}

func (i Incident) Open() bool { return i.EndedAt == nil }

type MaintenanceWindow struct {
	ID          string    `json:"id"`
	ServiceID   string    `json:"serviceId"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
}

func (w MaintenanceWindow) Validate() error {
	if !w.EndTime.After(w.StartTime) {
		return fmt.Errorf("maintenance window %q: end time must be after start time", w.Title)
	}
	return nil
}

// Certificate is the peer certificate summary produced by the ssl probe.
type Certificate struct {
	Subject         string `json:"subject"`
	Issuer          string `json:"issuer"`
	ValidFrom       string `json:"validFrom"`
	ValidTo         string `json:"validTo"`
	DaysUntilExpiry int    `json:"daysUntilExpiry"`
	SerialNumber    string `json:"serialNumber"`
}

type CheckResult struct {
	Status         Status
	ResponseTimeMs int64
	StatusCode     *int
	Message        string
	Certificate    *Certificate
}

// Details returns the JSON stored alongside the heartbeat, or nil.
func (r CheckResult) Details() json.RawMessage {
	if r.Certificate == nil {
		return nil
	}
	b, err := json.Marshal(map[string]any{"certificate": r.Certificate})
	if err != nil {
		return nil
	}
	return b
}

type ChannelType string

const (
	ChannelWebhook  ChannelType = "webhook"
	ChannelEmail    ChannelType = "email"
	ChannelSlack    ChannelType = "slack"
	ChannelDiscord  ChannelType = "discord"
	ChannelTelegram ChannelType = "telegram"
)

type WebhookConfig struct {
	URL     string            `json:"url"`
	Method  string            `json:"method,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

type EmailConfig struct {
	To   Recipients `json:"to"`
	From string     `json:"from,omitempty"`
}

type SlackConfig struct {
	WebhookURL string `json:"webhookUrl"`
}

type DiscordConfig struct {
	WebhookURL string `json:"webhookUrl"`
}

type TelegramConfig struct {
	BotToken string `json:"botToken"`
	ChatID   string `json:"chatId"`
}

// Recipients accepts either a single address or a list in JSON.
type Recipients []string

func (r *Recipients) UnmarshalJSON(b []byte) error {
	var one string
	if err := json.Unmarshal(b, &one); err == nil {
		if one == "" {
			*r = nil
		} else {
			*r = Recipients{one}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return fmt.Errorf("recipients: %w", err)
	}
	*r = many
	return nil
}

// AlertChannel is a notification sink. Exactly one of the config pointers
// matching Type is set once DecodeConfig succeeds.
type AlertChannel struct {
	ID       string
	Name     string
	Type     ChannelType
	Active   bool
	Webhook  *WebhookConfig
	Email    *EmailConfig
	Slack    *SlackConfig
	Discord  *DiscordConfig
	Telegram *TelegramConfig
}

// DecodeConfig parses the stored JSON config for the channel's type.
// Unknown types and malformed configs are left without config.
func (c *AlertChannel) DecodeConfig(raw []byte) error {
	var target any
	switch c.Type {
	case ChannelWebhook:
		c.Webhook = &WebhookConfig{}
		target = c.Webhook
	case ChannelEmail:
		c.Email = &EmailConfig{}
		target = c.Email
	case ChannelSlack:
		c.Slack = &SlackConfig{}
		target = c.Slack
	case ChannelDiscord:
		c.Discord = &DiscordConfig{}
		target = c.Discord
	case ChannelTelegram:
		c.Telegram = &TelegramConfig{}
		target = c.Telegram
	default:
		return nil
	}
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, target); err != nil {
		c.Webhook, c.Email, c.Slack, c.Discord, c.Telegram = nil, nil, nil, nil, nil
		return fmt.Errorf("decode %s config for channel %s: %w", c.Type, c.ID, err)
	}
	return nil
}

// EncodeConfig is the inverse of DecodeConfig.
func (c AlertChannel) EncodeConfig() ([]byte, error) {
	var v any
	switch c.Type {
	case ChannelWebhook:
		v = c.Webhook
	case ChannelEmail:
		v = c.Email
	case ChannelSlack:
		v = c.Slack
	case ChannelDiscord:
		v = c.Discord
	case ChannelTelegram:
		v = c.Telegram
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(b) == "null" {
		return []byte("{}"), nil
	}
	return b, nil
}

type NotificationEvent struct {
	ChannelID   string
	ChannelType ChannelType
	ServiceID   string
	IncidentID  string
	Event       string
	Status      string
	Error       string
	CreatedAt   time.Time
}

// ParseStatus accepts the two observable statuses, case-insensitively.
func ParseStatus(v string) (Status, bool) {
	switch Status(strings.ToLower(strings.TrimSpace(v))) {
	case StatusUp:
		return StatusUp, true
	case StatusDown:
		return StatusDown, true
	}
	return "", false
}
