// Package seed loads services, alert channels and maintenance windows from a
// YAML file and upserts them by name.
package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"pulse/internal/models"
)

type File struct {
	Services    []ServiceSpec     `yaml:"services"`
	Channels    []ChannelSpec     `yaml:"channels"`
	Maintenance []MaintenanceSpec `yaml:"maintenance"`
}

type ServiceSpec struct {
	ID             string            `yaml:"id,omitempty"`
	Name           string            `yaml:"name"`
	Type           string            `yaml:"type"`
	URL            string            `yaml:"url,omitempty"`
	Method         string            `yaml:"method,omitempty"`
	Headers        map[string]string `yaml:"headers,omitempty"`
	Body           string            `yaml:"body,omitempty"`
	ExpectedStatus []int             `yaml:"expectedStatus,omitempty"`
	Keyword        string            `yaml:"keyword,omitempty"`
	VerifyTLS      *bool             `yaml:"verifyTls,omitempty"`
	Hostname       string            `yaml:"hostname,omitempty"`
	Port           int               `yaml:"port,omitempty"`
	DNSRecordType  string            `yaml:"dnsRecordType,omitempty"`
	DNSServer      string            `yaml:"dnsServer,omitempty"`
	ExpectedValue  string            `yaml:"expectedValue,omitempty"`
	DockerHost     string            `yaml:"dockerHost,omitempty"`
	ContainerName  string            `yaml:"containerName,omitempty"`
	SSLWarningDays *int              `yaml:"sslWarningDays,omitempty"`
	Interval       int               `yaml:"interval,omitempty"` // seconds
	Timeout        int               `yaml:"timeout,omitempty"`  // seconds
	Retries        int               `yaml:"retries,omitempty"`
	Active         *bool             `yaml:"active,omitempty"`
	Paused         bool              `yaml:"paused,omitempty"`
}

type ChannelSpec struct {
	Name     string         `yaml:"name"`
	Type     string         `yaml:"type"`
	Active   *bool          `yaml:"active,omitempty"`
	Config   map[string]any `yaml:"config"`
	Services []string       `yaml:"services,omitempty"`
}

type MaintenanceSpec struct {
	Service     string    `yaml:"service"`
	Title       string    `yaml:"title"`
	Description string    `yaml:"description,omitempty"`
	Start       time.Time `yaml:"start"`
	End         time.Time `yaml:"end"`
}

type Store interface {
	UpsertService(ctx context.Context, s models.Service) (string, error)
	UpsertChannel(ctx context.Context, ch models.AlertChannel) (string, error)
	LinkChannel(ctx context.Context, serviceID, channelID string) error
	UpsertMaintenanceWindow(ctx context.Context, w models.MaintenanceWindow) (string, error)
}

func LoadFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read seed file: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("parse seed file: %w", err)
	}
	return f, nil
}

func boolOr(v *bool, d bool) bool {
	if v == nil {
		return d
	}
	return *v
}

func intOr(v *int, d int) int {
	if v == nil {
		return d
	}
	return *v
}

func (s ServiceSpec) toModel() (models.Service, error) {
	if s.Name == "" {
		return models.Service{}, fmt.Errorf("service without name")
	}
	t := models.ServiceType(s.Type)
	switch t {
	case models.ServiceHTTP, models.ServiceTCP, models.ServicePing, models.ServiceDNS,
		models.ServiceDocker, models.ServiceSSL, models.ServiceHeartbeat:
	default:
		return models.Service{}, fmt.Errorf("service %q: unknown type %q", s.Name, s.Type)
	}
	if s.Interval != 0 && (s.Interval < 10 || s.Interval > 3600) {
		return models.Service{}, fmt.Errorf("service %q: interval must be 10-3600 seconds", s.Name)
	}
	if s.Timeout != 0 && (s.Timeout < 1 || s.Timeout > 60) {
		return models.Service{}, fmt.Errorf("service %q: timeout must be 1-60 seconds", s.Name)
	}
	if s.Retries < 0 || s.Retries > 5 {
		return models.Service{}, fmt.Errorf("service %q: retries must be 0-5", s.Name)
	}
	return models.Service{
		ID:              s.ID,
		Name:            s.Name,
		Type:            t,
		URL:             s.URL,
		Method:          s.Method,
		Headers:         s.Headers,
		Body:            s.Body,
		ExpectedStatus:  s.ExpectedStatus,
		Keyword:         s.Keyword,
		VerifyTLS:       boolOr(s.VerifyTLS, true),
		Hostname:        s.Hostname,
		Port:            s.Port,
		DNSRecordType:   s.DNSRecordType,
		DNSServer:       s.DNSServer,
		ExpectedValue:   s.ExpectedValue,
		DockerHost:      s.DockerHost,
		ContainerName:   s.ContainerName,
		SSLWarningDays:  intOr(s.SSLWarningDays, 30),
		IntervalSeconds: s.Interval,
		TimeoutSeconds:  s.Timeout,
		Retries:         s.Retries,
		Active:          boolOr(s.Active, true),
		Paused:          s.Paused,
	}, nil
}

func (c ChannelSpec) toModel() (models.AlertChannel, error) {
	ch := models.AlertChannel{Name: c.Name, Type: models.ChannelType(c.Type), Active: boolOr(c.Active, true)}
	switch ch.Type {
	case models.ChannelWebhook, models.ChannelEmail, models.ChannelSlack, models.ChannelDiscord, models.ChannelTelegram:
	default:
		return ch, fmt.Errorf("channel %q: unknown type %q", c.Name, c.Type)
	}
	raw, err := json.Marshal(c.Config)
	if err != nil {
		return ch, fmt.Errorf("channel %q: %w", c.Name, err)
	}
	if err := ch.DecodeConfig(raw); err != nil {
		return ch, fmt.Errorf("channel %q: %w", c.Name, err)
	}
	return ch, nil
}

// Apply upserts everything in f. Services are written first so channel links
// and maintenance windows can refer to them by name.
func Apply(ctx context.Context, store Store, f File, logger *slog.Logger) error {
	log := logger.With("module", "seed")
	ids := make(map[string]string, len(f.Services))
	for _, item := range f.Services {
		svc, err := item.toModel()
		if err != nil {
			return err
		}
		svc.NextCheck = time.Now().UTC()
		id, err := store.UpsertService(ctx, svc)
		if err != nil {
			return err
		}
		ids[svc.Name] = id
	}
	for _, item := range f.Channels {
		ch, err := item.toModel()
		if err != nil {
			return err
		}
		chID, err := store.UpsertChannel(ctx, ch)
		if err != nil {
			return err
		}
		for _, name := range item.Services {
			svcID, ok := ids[name]
			if !ok {
				return fmt.Errorf("channel %q links unknown service %q", item.Name, name)
			}
			if err := store.LinkChannel(ctx, svcID, chID); err != nil {
				return fmt.Errorf("link channel %q to %q: %w", item.Name, name, err)
			}
		}
	}
	for _, item := range f.Maintenance {
		svcID, ok := ids[item.Service]
		if !ok {
			return fmt.Errorf("maintenance %q targets unknown service %q", item.Title, item.Service)
		}
		w := models.MaintenanceWindow{ServiceID: svcID, Title: item.Title, Description: item.Description, StartTime: item.Start, EndTime: item.End}
		if _, err := store.UpsertMaintenanceWindow(ctx, w); err != nil {
			return fmt.Errorf("maintenance %q: %w", item.Title, err)
		}
	}
	log.Info("seed applied", "services", len(f.Services), "channels", len(f.Channels), "maintenance", len(f.Maintenance))
	return nil
}

// LoadAndApply is a no-op when path is empty.
func LoadAndApply(ctx context.Context, store Store, path string, logger *slog.Logger) error {
	if path == "" {
		return nil
	}
	f, err := LoadFile(path)
	if err != nil {
		return err
	}
	return Apply(ctx, store, f, logger)
}
