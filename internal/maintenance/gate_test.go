package maintenance

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"pulse/internal/models"
)

type stubStore struct {
	windows []models.MaintenanceWindow
	err     error
}

func (s stubStore) ListActiveMaintenanceWindows(_ context.Context, serviceID string, now time.Time) ([]models.MaintenanceWindow, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []models.MaintenanceWindow
	for _, w := range s.windows {
		if w.ServiceID == serviceID && !now.Before(w.StartTime) && !now.After(w.EndTime) {
			out = append(out, w)
		}
	}
	return out, nil
}

func TestIsInMaintenance(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := stubStore{windows: []models.MaintenanceWindow{
		{ServiceID: "a", StartTime: now.Add(-time.Hour), EndTime: now.Add(time.Hour)},
		{ServiceID: "b", StartTime: now.Add(time.Hour), EndTime: now.Add(2 * time.Hour)},
	}}
	g := NewGate(store, slog.New(slog.NewTextHandler(io.Discard, nil)))
	g.now = func() time.Time { return now }

	if !g.IsInMaintenance(context.Background(), "a") {
		t.Fatalf("service a should be in maintenance")
	}
	if g.IsInMaintenance(context.Background(), "b") {
		t.Fatalf("service b window has not started")
	}
}

func TestIsInMaintenanceStoreErrorMeansNo(t *testing.T) {
	g := NewGate(stubStore{err: errors.New("boom")}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if g.IsInMaintenance(context.Background(), "a") {
		t.Fatalf("store error should not suppress alerts")
	}
}
