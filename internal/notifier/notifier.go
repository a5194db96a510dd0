// Package notifier formats an alert for each channel type and delivers it.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"pulse/internal/models"
)

// Payload is one status transition to be announced.
type Payload struct {
	Service        models.Service
	Status         models.Status
	Message        string
	ResponseTimeMs int64
	Timestamp      time.Time
	Incident       *models.Incident
}

func (p Payload) Down() bool { return p.Status == models.StatusDown }

func (p Payload) Event() string {
	if p.Down() {
		return "service.down"
	}
	return "service.up"
}

func (p Payload) statusText() string {
	if p.Down() {
		return "DOWN"
	}
	return "RECOVERED"
}

// downtime returns the closed incident's duration, if the payload has one.
func (p Payload) downtime() (int64, bool) {
	if p.Down() || p.Incident == nil || p.Incident.DurationSeconds == nil || *p.Incident.DurationSeconds <= 0 {
		return 0, false
	}
	return *p.Incident.DurationSeconds, true
}

func (p Payload) detectedAt() string {
	return p.Timestamp.UTC().Format("2006-01-02 15:04:05 UTC")
}

// Sender delivers a payload to one channel. A nil error means delivered.
type Sender interface {
	Send(ctx context.Context, ch models.AlertChannel, p Payload) error
}

func formatDuration(seconds int64) string {
	switch {
	case seconds < 60:
		return fmt.Sprintf("%ds", seconds)
	case seconds < 3600:
		return fmt.Sprintf("%dm %ds", seconds/60, seconds%60)
	default:
		return fmt.Sprintf("%dh %dm", seconds/3600, (seconds%3600)/60)
	}
}

func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}

// postJSON sends body as JSON and fails on any non-2xx answer. Extra headers
// are applied before Content-Type so they cannot replace it.
func postJSON(ctx context.Context, client *http.Client, method, url string, headers map[string]string, body any, service string) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	resp, _ := io.ReadAll(io.LimitReader(res.Body, 2048))
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		text := strings.TrimSpace(string(resp))
		if text == "" {
			text = http.StatusText(res.StatusCode)
		}
		return fmt.Errorf("%s returned %d: %s", service, res.StatusCode, text)
	}
	return nil
}
