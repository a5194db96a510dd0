package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"pulse/internal/models"
	"pulse/internal/scheduler"
)

type Store interface {
	ListServices(ctx context.Context) ([]models.Service, error)
	GetService(ctx context.Context, id string) (models.Service, error)
	LatestHeartbeat(ctx context.Context, serviceID string) (*models.Heartbeat, error)
	ListHeartbeats(ctx context.Context, serviceID string, from time.Time, limit int) ([]models.Heartbeat, error)
	Uptime(ctx context.Context, serviceID string, since time.Time) (float64, error)
	ListIncidents(ctx context.Context, openOnly bool, limit int) ([]models.Incident, error)
	AcknowledgeIncident(ctx context.Context, incidentID, by string, at time.Time) error
	Ping(ctx context.Context) error
}

// Checker runs scheduling passes and records pushed heartbeats.
type Checker interface {
	RunPass(ctx context.Context) (scheduler.Summary, error)
	Record(ctx context.Context, svc models.Service, res models.CheckResult) (scheduler.ServiceResult, error)
}

type Maintenance interface {
	Active(ctx context.Context, serviceID string) ([]models.MaintenanceWindow, error)
}

type Server struct {
	repo  Store
	check Checker
	maint Maintenance
	log   *slog.Logger
	now   func() time.Time
}

func NewServer(repo Store, check Checker, maint Maintenance, logger *slog.Logger) *Server {
	return &Server{repo: repo, check: check, maint: maint, log: logger.With("module", "web"), now: time.Now}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(logMiddleware(s.log))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	r.Route("/api", func(r chi.Router) {
		r.Get("/cron/check", s.handleRunChecks)
		r.Post("/cron/check", s.handleRunChecks)
		r.Get("/push/{serviceID}", s.handlePush)
		r.Post("/push/{serviceID}", s.handlePush)
		r.Get("/status", s.handleStatus)
		r.Get("/services/{id}/heartbeats", s.handleHeartbeats)
		r.Get("/incidents", s.handleIncidents)
		r.Post("/incidents/{id}/ack", s.handleAckIncident)
		r.Get("/maintenance/active", s.handleActiveMaintenance)
	})
	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if err := s.repo.Ping(r.Context()); err != nil {
		http.Error(w, "db not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// parseRange accepts the dashboard's fixed ranges and falls back to 24h.
func parseRange(v string) time.Duration {
	switch v {
	case "1h":
		return time.Hour
	case "7d":
		return 7 * 24 * time.Hour
	case "30d":
		return 30 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}
