// Package scheduler runs check passes over due services and turns status
// transitions into incidents and alerts.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"pulse/internal/alerts"
	"pulse/internal/models"
	"pulse/internal/notifier"
	"pulse/internal/probe"
)

type Store interface {
	ListDueServices(ctx context.Context, now time.Time, limit int) ([]models.Service, error)
	GetLastStatus(ctx context.Context, serviceID string) (models.Status, error)
	InsertHeartbeat(ctx context.Context, hb models.Heartbeat) (int64, error)
	UpdateNextCheck(ctx context.Context, serviceID string, at time.Time) error
}

type Incidents interface {
	Open(ctx context.Context, svc models.Service, cause string) *models.Incident
	Close(ctx context.Context, serviceID string) *models.Incident
}

type Alerter interface {
	SendAlerts(ctx context.Context, p notifier.Payload) alerts.Result
}

type ServiceResult struct {
	ServiceID     string        `json:"serviceId"`
	ServiceName   string        `json:"serviceName"`
	Status        models.Status `json:"status"`
	ResponseTime  int64         `json:"responseTime"`
	StatusChanged bool          `json:"statusChanged"`
	AlertsSent    int           `json:"alertsSent"`
	Error         string        `json:"error,omitempty"`
}

type Summary struct {
	Checked    int             `json:"checked"`
	Results    []ServiceResult `json:"results"`
	DurationMs int64           `json:"durationMs"`
}

type Options struct {
	BatchSize   int
	Concurrency int
}

type Scheduler struct {
	store     Store
	prober    probe.Prober
	incidents Incidents
	alerter   Alerter
	opts      Options
	log       *slog.Logger
	now       func() time.Time
}

func New(store Store, prober probe.Prober, incidents Incidents, alerter Alerter, opts Options, logger *slog.Logger) *Scheduler {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 10
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return &Scheduler{
		store:     store,
		prober:    prober,
		incidents: incidents,
		alerter:   alerter,
		opts:      opts,
		log:       logger.With("module", "scheduler"),
		now:       time.Now,
	}
}

// RunPass checks every due service once. Per-service failures are reported
// in the summary; the error is reserved for failing to load the batch.
func (s *Scheduler) RunPass(ctx context.Context) (Summary, error) {
	start := s.now()
	due, err := s.store.ListDueServices(ctx, start.UTC(), s.opts.BatchSize)
	if err != nil {
		s.log.Error("list due services", "err", err)
		return Summary{}, fmt.Errorf("list due services: %w", err)
	}

	results := make([]ServiceResult, len(due))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for i, svc := range due {
		g.Go(func() error {
			results[i] = s.checkOne(gctx, svc)
			return nil
		})
	}
	_ = g.Wait()

	sum := Summary{Checked: len(due), Results: results, DurationMs: s.now().Sub(start).Milliseconds()}
	if len(due) == 0 {
		return sum, nil
	}
	for _, r := range results {
		s.log.Info("service checked", "service", r.ServiceName, "status", r.Status,
			"response_ms", r.ResponseTime, "changed", r.StatusChanged, "alerts_sent", r.AlertsSent)
	}
	s.log.Info("check pass finished", "checked", sum.Checked, "duration_ms", sum.DurationMs)
	return sum, nil
}

func (s *Scheduler) checkOne(ctx context.Context, svc models.Service) (out ServiceResult) {
	out = ServiceResult{ServiceID: svc.ID, ServiceName: svc.Name}
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("check panicked", "service", svc.Name, "panic", r)
			out.Status = models.StatusError
			out.Error = fmt.Sprint(r)
		}
	}()

	prev, err := s.store.GetLastStatus(ctx, svc.ID)
	if err != nil {
		return s.failed(svc, fmt.Errorf("read previous status: %w", err))
	}
	if svc.Type == models.ServiceHeartbeat && prev != "" {
		// Pushed heartbeats own the status once one exists.
		out.Status = prev
		if err := s.store.UpdateNextCheck(ctx, svc.ID, s.now().Add(svc.Interval())); err != nil {
			s.log.Error("advance next check", "service", svc.Name, "err", err)
			out.Error = err.Error()
		}
		return out
	}
	res := s.probe(ctx, svc)
	// Write failures are logged; the probe outcome is still reported.
	out, err = s.record(ctx, svc, prev, res)
	if err != nil {
		s.log.Error("record check", "service", svc.Name, "err", err)
		out.Error = err.Error()
	}
	if err := s.store.UpdateNextCheck(ctx, svc.ID, s.now().Add(svc.Interval())); err != nil {
		s.log.Error("advance next check", "service", svc.Name, "err", err)
		out.Error = err.Error()
	}
	return out
}

// probe re-runs a down check up to svc.Retries times; the first up wins.
func (s *Scheduler) probe(ctx context.Context, svc models.Service) models.CheckResult {
	res := s.prober.Probe(ctx, svc)
	for attempt := 0; res.Status == models.StatusDown && attempt < svc.Retries; attempt++ {
		if ctx.Err() != nil {
			break
		}
		s.log.Debug("retrying check", "service", svc.Name, "attempt", attempt+1, "message", res.Message)
		res = s.prober.Probe(ctx, svc)
	}
	return res
}

// Record stores an externally reported result for svc, such as a heartbeat
// push, and applies the same transition handling as a scheduled check. A
// failed heartbeat write is returned alongside the result.
func (s *Scheduler) Record(ctx context.Context, svc models.Service, res models.CheckResult) (ServiceResult, error) {
	prev, err := s.store.GetLastStatus(ctx, svc.ID)
	if err != nil {
		return ServiceResult{}, fmt.Errorf("read previous status: %w", err)
	}
	return s.record(ctx, svc, prev, res)
}

func (s *Scheduler) record(ctx context.Context, svc models.Service, prev models.Status, res models.CheckResult) (ServiceResult, error) {
	out := ServiceResult{
		ServiceID:    svc.ID,
		ServiceName:  svc.Name,
		Status:       res.Status,
		ResponseTime: res.ResponseTimeMs,
	}
	hb := models.Heartbeat{
		ServiceID:      svc.ID,
		Status:         res.Status,
		ResponseTimeMs: res.ResponseTimeMs,
		StatusCode:     res.StatusCode,
		Message:        res.Message,
		Details:        res.Details(),
		CreatedAt:      s.now().UTC(),
	}
	var writeErr error
	if _, err := s.store.InsertHeartbeat(ctx, hb); err != nil {
		writeErr = fmt.Errorf("insert heartbeat: %w", err)
	}

	if prev == "" || prev == res.Status || !isTransitionState(prev) || !isTransitionState(res.Status) {
		return out, writeErr
	}
	out.StatusChanged = true
	p := notifier.Payload{
		Service:        svc,
		Status:         res.Status,
		Message:        res.Message,
		ResponseTimeMs: res.ResponseTimeMs,
		Timestamp:      hb.CreatedAt,
	}
	switch res.Status {
	case models.StatusDown:
		p.Incident = s.incidents.Open(ctx, svc, res.Message)
	case models.StatusUp:
		p.Incident = s.incidents.Close(ctx, svc.ID)
	}
	s.log.Info("status changed", "service", svc.Name, "from", prev, "to", res.Status, "message", res.Message)
	out.AlertsSent = s.alerter.SendAlerts(ctx, p).Sent
	return out, writeErr
}

func (s *Scheduler) failed(svc models.Service, err error) ServiceResult {
	s.log.Error("check failed", "service", svc.Name, "err", err)
	return ServiceResult{ServiceID: svc.ID, ServiceName: svc.Name, Status: models.StatusError, Error: err.Error()}
}

// isTransitionState excludes the scheduler's own error marker from the
// up/down state machine.
func isTransitionState(st models.Status) bool {
	return st == models.StatusUp || st == models.StatusDown
}
