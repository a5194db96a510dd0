// Package probe runs one check against a service and normalizes the outcome.
// Drivers never return errors: every failure is a down result with a message.
package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"pulse/internal/models"
)

// Prober checks a single service. Implementations enforce svc.Timeout()
// themselves.
type Prober interface {
	Probe(ctx context.Context, svc models.Service) models.CheckResult
}

type ProberFunc func(ctx context.Context, svc models.Service) models.CheckResult

func (f ProberFunc) Probe(ctx context.Context, svc models.Service) models.CheckResult {
	return f(ctx, svc)
}

type Options struct {
	UserAgent      string
	DNSServer      string
	DockerHost     string
	PingPrivileged bool
	Logger         *slog.Logger
}

// Registry dispatches to the driver registered for the service type.
type Registry struct {
	drivers map[models.ServiceType]Prober
	logger  *slog.Logger
}

func NewRegistry(opts Options) *Registry {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{drivers: map[models.ServiceType]Prober{}, logger: logger.With("module", "probe")}
	r.Register(models.ServiceHTTP, NewHTTP(opts.UserAgent))
	r.Register(models.ServiceTCP, ProberFunc(probeTCP))
	r.Register(models.ServicePing, &Ping{Privileged: opts.PingPrivileged})
	r.Register(models.ServiceDNS, &DNS{DefaultServer: opts.DNSServer})
	r.Register(models.ServiceDocker, NewDocker(opts.DockerHost))
	r.Register(models.ServiceSSL, &SSL{})
	r.Register(models.ServiceHeartbeat, ProberFunc(probeHeartbeat))
	return r
}

// Register replaces the driver for a type.
func (r *Registry) Register(t models.ServiceType, p Prober) {
	r.drivers[t] = p
}

func (r *Registry) Probe(ctx context.Context, svc models.Service) models.CheckResult {
	p, ok := r.drivers[svc.Type]
	if !ok {
		return down(0, fmt.Sprintf("Unknown service type: %s", svc.Type))
	}
	res := p.Probe(ctx, svc)
	r.logger.Debug("probe finished", "service", svc.Name, "type", svc.Type, "status", res.Status, "ms", res.ResponseTimeMs)
	return res
}

func probeHeartbeat(context.Context, models.Service) models.CheckResult {
	return models.CheckResult{Status: models.StatusUp, Message: "Heartbeat service (passive)"}
}

func up(ms int64, msg string) models.CheckResult {
	return models.CheckResult{Status: models.StatusUp, ResponseTimeMs: ms, Message: msg}
}

func down(ms int64, msg string) models.CheckResult {
	return models.CheckResult{Status: models.StatusDown, ResponseTimeMs: ms, Message: msg}
}

func since(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}

func timeoutMessage(svc models.Service) string {
	return fmt.Sprintf("Timeout after %ds", int(svc.Timeout()/time.Second))
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
