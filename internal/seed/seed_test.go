package seed

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"pulse/internal/db"
	"pulse/internal/models"
)

const sample = `services:
  - name: api
    type: http
    url: https://example.com/health
    expectedStatus: [200]
    keyword: ok
    interval: 30
    retries: 1
  - name: cache
    type: tcp
    hostname: 10.0.0.5
    port: 6379
    verifyTls: false
    active: false
channels:
  - name: ops-slack
    type: slack
    config:
      webhookUrl: https://hooks.slack.com/services/T/B/X
    services: [api, cache]
  - name: oncall-mail
    type: email
    config:
      to: oncall@example.com
    services: [api]
maintenance:
  - service: api
    title: db upgrade
    start: 2026-05-01T02:00:00Z
    end: 2026-05-01T04:00:00Z
`

func newTestRepo(t *testing.T) *db.Repository {
	t.Helper()
	sqldb, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = sqldb.Close() })
	if err := db.Migrate(sqldb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db.NewRepository(sqldb)
}

func writeSeed(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "seed.yaml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	return p
}

func TestLoadAndApplyIsIdempotent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	path := writeSeed(t, sample)

	for range 2 {
		if err := LoadAndApply(ctx, repo, path, logger); err != nil {
			t.Fatalf("apply: %v", err)
		}
	}

	services, err := repo.ListServices(ctx)
	if err != nil {
		t.Fatalf("list services: %v", err)
	}
	if len(services) != 2 {
		t.Fatalf("services = %d, want 2", len(services))
	}
	byName := map[string]models.Service{}
	for _, s := range services {
		byName[s.Name] = s
	}
	api := byName["api"]
	if api.IntervalSeconds != 30 || api.Retries != 1 || !api.VerifyTLS || !api.Active || api.Keyword != "ok" {
		t.Fatalf("api = %+v", api)
	}
	if api.TimeoutSeconds != 10 || api.Method != "GET" {
		t.Fatalf("api defaults = timeout %d method %q", api.TimeoutSeconds, api.Method)
	}
	cache := byName["cache"]
	if cache.Active || cache.VerifyTLS || cache.Port != 6379 {
		t.Fatalf("cache = %+v", cache)
	}

	channels, err := repo.ListChannelsForService(ctx, api.ID)
	if err != nil {
		t.Fatalf("list channels: %v", err)
	}
	if len(channels) != 2 {
		t.Fatalf("api channels = %d, want 2", len(channels))
	}
	for _, ch := range channels {
		switch ch.Type {
		case models.ChannelEmail:
			if ch.Email == nil || len(ch.Email.To) != 1 || ch.Email.To[0] != "oncall@example.com" {
				t.Fatalf("email config = %+v", ch.Email)
			}
		case models.ChannelSlack:
			if ch.Slack == nil || ch.Slack.WebhookURL == "" {
				t.Fatalf("slack config = %+v", ch.Slack)
			}
		default:
			t.Fatalf("unexpected channel type %s", ch.Type)
		}
	}
}

func TestApplyRejectsBadInput(t *testing.T) {
	repo := newTestRepo(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cases := map[string]string{
		"unknown service type":  "services:\n  - name: x\n    type: smtp\n",
		"interval out of range": "services:\n  - name: x\n    type: tcp\n    interval: 5\n",
		"unknown channel type":  "channels:\n  - name: pager\n    type: sms\n",
		"dangling link":         "channels:\n  - name: hook\n    type: webhook\n    config: {url: http://x}\n    services: [missing]\n",
		"inverted window": "services:\n  - name: x\n    type: tcp\n" +
			"maintenance:\n  - service: x\n    title: t\n    start: 2026-05-01T04:00:00Z\n    end: 2026-05-01T02:00:00Z\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if err := LoadAndApply(context.Background(), repo, writeSeed(t, body), logger); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadAndApplyWithoutPath(t *testing.T) {
	if err := LoadAndApply(context.Background(), nil, "", slog.Default()); err != nil {
		t.Fatalf("empty path: %v", err)
	}
}

func TestSSLWarningDaysDefaultsOnlyWhenOmitted(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	body := "services:\n" +
		"  - name: default-cert\n    type: ssl\n    hostname: a.example.com\n" +
		"  - name: expiry-only\n    type: ssl\n    hostname: b.example.com\n    sslWarningDays: 0\n"
	if err := LoadAndApply(ctx, repo, writeSeed(t, body), slog.New(slog.NewTextHandler(io.Discard, nil))); err != nil {
		t.Fatalf("apply: %v", err)
	}
	services, err := repo.ListServices(ctx)
	if err != nil {
		t.Fatalf("list services: %v", err)
	}
	got := map[string]int{}
	for _, s := range services {
		got[s.Name] = s.SSLWarningDays
	}
	if got["default-cert"] != 30 || got["expiry-only"] != 0 {
		t.Fatalf("ssl warning days = %v, want default-cert=30 expiry-only=0", got)
	}
}
