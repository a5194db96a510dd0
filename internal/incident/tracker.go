package incident

import (
	"context"
	"log/slog"
	"time"

	"pulse/internal/models"
)

type Store interface {
	InsertIncident(ctx context.Context, serviceID string, startedAt time.Time, cause string) (models.Incident, error)
	FindOpenIncident(ctx context.Context, serviceID string) (*models.Incident, error)
	CloseIncident(ctx context.Context, incidentID string, endedAt time.Time, durationSeconds int64) error
}

// Tracker opens an incident on a down transition and closes it on recovery.
// Store failures are logged and reported as a nil incident.
type Tracker struct {
	store  Store
	log    *slog.Logger
	now    func() time.Time
}

func NewTracker(store Store, logger *slog.Logger) *Tracker {
	return &Tracker{store: store, log: logger.With("module", "incident"), now: time.Now}
}

func (t *Tracker) Open(ctx context.Context, svc models.Service, cause string) *models.Incident {
	inc, err := t.store.InsertIncident(ctx, svc.ID, t.now().UTC(), cause)
	if err != nil {
		t.log.Error("open incident failed", "service", svc.Name, "err", err)
		return nil
	}
	t.log.Info("incident opened", "service", svc.Name, "incident", inc.ID, "cause", cause)
	return &inc
}

// Close ends the service's open incident. It is a no-op returning nil when
// nothing is open.
func (t *Tracker) Close(ctx context.Context, serviceID string) *models.Incident {
	inc, err := t.store.FindOpenIncident(ctx, serviceID)
	if err != nil {
		t.log.Error("find open incident failed", "service_id", serviceID, "err", err)
		return nil
	}
	if inc == nil {
		return nil
	}
	ended := t.now().UTC()
	duration := int64(ended.Sub(inc.StartedAt) / time.Second)
	if duration < 0 {
		duration = 0
	}
	if err := t.store.CloseIncident(ctx, inc.ID, ended, duration); err != nil {
		t.log.Error("close incident failed", "service_id", serviceID, "incident", inc.ID, "err", err)
		return nil
	}
	inc.EndedAt = &ended
	inc.DurationSeconds = &duration
	t.log.Info("incident closed", "service_id", serviceID, "incident", inc.ID, "duration_sec", duration)
	return inc
}
