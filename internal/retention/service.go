package retention

import (
	"context"
	"log/slog"
	"time"

	"pulse/internal/db"
)

type Pruner interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (db.PruneStats, error)
}

type Service struct {
	store         Pruner
	retentionDays int
	log           *slog.Logger
	now           func() time.Time
}

func NewService(store Pruner, days int, logger *slog.Logger) *Service {
	if days <= 0 {
		days = 30
	}
	return &Service{store: store, retentionDays: days, log: logger.With("module", "retention"), now: time.Now}
}

// Run drops heartbeats, closed incidents and notification events older than
// the retention window.
func (s *Service) Run(ctx context.Context) {
	cutoff := s.now().UTC().AddDate(0, 0, -s.retentionDays)
	stats, err := s.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		s.log.Error("retention cleanup failed", "err", err)
		return
	}
	s.log.Info("retention cleanup completed", "cutoff", cutoff,
		"heartbeats", stats.Heartbeats, "incidents", stats.Incidents, "notifications", stats.Notifications)
}
