package maintenance

import (
	"context"
	"log/slog"
	"time"

	"pulse/internal/models"
)

type Store interface {
	ListActiveMaintenanceWindows(ctx context.Context, serviceID string, now time.Time) ([]models.MaintenanceWindow, error)
}

// Gate answers whether alerts for a service are currently suppressed.
type Gate struct {
	store  Store
	log    *slog.Logger
	now    func() time.Time
}

func NewGate(store Store, logger *slog.Logger) *Gate {
	return &Gate{store: store, log: logger.With("module", "maintenance"), now: time.Now}
}

// IsInMaintenance is true iff a window for the service covers now. A store
// error is logged and treated as no maintenance so alerts still go out.
func (g *Gate) IsInMaintenance(ctx context.Context, serviceID string) bool {
	windows, err := g.store.ListActiveMaintenanceWindows(ctx, serviceID, g.now().UTC())
	if err != nil {
		g.log.Error("maintenance lookup failed", "service_id", serviceID, "err", err)
		return false
	}
	return len(windows) > 0
}

// Active lists the windows covering now; serviceID may be empty.
func (g *Gate) Active(ctx context.Context, serviceID string) ([]models.MaintenanceWindow, error) {
	return g.store.ListActiveMaintenanceWindows(ctx, serviceID, g.now().UTC())
}
