package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"pulse/internal/db"
	"pulse/internal/models"
)

func (s *Server) handleRunChecks(w http.ResponseWriter, r *http.Request) {
	// A pass outlives the trigger's connection; probes carry their own timeouts.
	sum, err := s.check.RunPass(context.WithoutCancel(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// handlePush records a heartbeat reported by a passive service. Parameters
// come from the query string or a form body.
func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	svc, err := s.repo.GetService(ctx, chi.URLParam(r, "serviceID"))
	if db.IsNotFound(err) || (err == nil && !svc.Active) {
		writeError(w, http.StatusNotFound, "service not found")
		return
	}
	if err != nil {
		s.log.Error("load pushed service", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to load service")
		return
	}
	if svc.Type != models.ServiceHeartbeat {
		writeError(w, http.StatusBadRequest, "service is not a heartbeat monitor")
		return
	}

	res := models.CheckResult{Status: models.StatusUp, Message: "OK"}
	if v := r.FormValue("status"); v != "" {
		st, ok := models.ParseStatus(v)
		if !ok {
			writeError(w, http.StatusBadRequest, "status must be up or down")
			return
		}
		res.Status = st
		if st == models.StatusDown {
			res.Message = "Reported down"
		}
	}
	if v := strings.TrimSpace(r.FormValue("msg")); v != "" {
		res.Message = v
	}
	if v := r.FormValue("ping"); v != "" {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil || ms < 0 {
			writeError(w, http.StatusBadRequest, "ping must be a non-negative integer")
			return
		}
		res.ResponseTimeMs = ms
	}

	out, err := s.check.Record(ctx, svc, res)
	if err != nil {
		s.log.Error("record pushed heartbeat", "service", svc.Name, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to record heartbeat")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "status": out.Status, "statusChanged": out.StatusChanged})
}

type serviceStatus struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Type         string        `json:"type"`
	Status       models.Status `json:"status"`
	Paused       bool          `json:"paused"`
	ResponseTime *int64        `json:"responseTime"`
	Message      string        `json:"message,omitempty"`
	LastCheck    *time.Time    `json:"lastCheck"`
	Uptime24h    *float64      `json:"uptime24h"`
}

// handleStatus summarizes every active service. The overall state counts
// only unpaused services that have been checked at least once.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	services, err := s.repo.ListServices(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	since := s.now().Add(-24 * time.Hour)
	out := []serviceStatus{}
	var up, down int
	for _, svc := range services {
		if !svc.Active {
			continue
		}
		st := serviceStatus{ID: svc.ID, Name: svc.Name, Type: string(svc.Type), Status: "unknown", Paused: svc.Paused}
		hb, err := s.repo.LatestHeartbeat(ctx, svc.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if hb != nil {
			st.Status, st.Message = hb.Status, hb.Message
			st.ResponseTime, st.LastCheck = &hb.ResponseTimeMs, &hb.CreatedAt
			if !svc.Paused {
				if hb.Status == models.StatusUp {
					up++
				} else {
					down++
				}
			}
		}
		if pct, err := s.repo.Uptime(ctx, svc.ID, since); err == nil && pct >= 0 {
			st.Uptime24h = &pct
		}
		out = append(out, st)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    overallStatus(up, down),
		"services":  out,
		"updatedAt": s.now().UTC(),
	})
}

func overallStatus(up, down int) string {
	switch {
	case down == 0:
		return "operational"
	case up == 0:
		return "outage"
	default:
		return "degraded"
	}
}

func (s *Server) handleHeartbeats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	if _, err := s.repo.GetService(ctx, id); err != nil {
		if db.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "service not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	from := s.now().Add(-parseRange(r.URL.Query().Get("range")))
	hbs, err := s.repo.ListHeartbeats(ctx, id, from, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if hbs == nil {
		hbs = []models.Heartbeat{}
	}
	writeJSON(w, http.StatusOK, hbs)
}

func (s *Server) handleIncidents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	openOnly := q.Get("open") == "1" || q.Get("open") == "true"
	limit, _ := strconv.Atoi(q.Get("limit"))
	incidents, err := s.repo.ListIncidents(r.Context(), openOnly, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if incidents == nil {
		incidents = []models.Incident{}
	}
	writeJSON(w, http.StatusOK, incidents)
}

func (s *Server) handleAckIncident(w http.ResponseWriter, r *http.Request) {
	var body struct {
		By string `json:"by"`
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, 64<<10))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(strings.TrimSpace(string(raw))) > 0 {
		if err := json.Unmarshal(raw, &body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}
	if body.By == "" {
		body.By = "api"
	}
	id := chi.URLParam(r, "id")
	if err := s.repo.AcknowledgeIncident(r.Context(), id, body.By, s.now()); err != nil {
		if db.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "incident not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.log.Info("incident acknowledged", "incident", id, "by", body.By)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "id": id})
}

func (s *Server) handleActiveMaintenance(w http.ResponseWriter, r *http.Request) {
	windows, err := s.maint.Active(r.Context(), r.URL.Query().Get("serviceId"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if windows == nil {
		windows = []models.MaintenanceWindow{}
	}
	writeJSON(w, http.StatusOK, windows)
}
