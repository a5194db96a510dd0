package probe

import (
	"context"
	"time"

	probing "github.com/prometheus-community/pro-bing"

	"pulse/internal/models"
)

// Ping sends a single ICMP echo. Unprivileged mode uses UDP ICMP sockets,
// which on Linux requires net.ipv4.ping_group_range to include the process.
type Ping struct {
	Privileged bool
}

func (p *Ping) Probe(ctx context.Context, svc models.Service) models.CheckResult {
	if svc.Hostname == "" {
		return down(0, "No hostname specified")
	}
	ctx, cancel := context.WithTimeout(ctx, svc.Timeout())
	defer cancel()

	start := time.Now()
	pinger, err := probing.NewPinger(svc.Hostname)
	if err != nil {
		return down(since(start), err.Error())
	}
	pinger.Count = 1
	pinger.Timeout = svc.Timeout()
	pinger.SetPrivileged(p.Privileged)
	if err := pinger.RunWithContext(ctx); err != nil {
		if isTimeout(err) {
			return down(since(start), timeoutMessage(svc))
		}
		return down(since(start), err.Error())
	}

	stats := pinger.Statistics()
	if stats.PacketsRecv == 0 {
		return down(since(start), "Host unreachable")
	}
	ms := stats.AvgRtt.Milliseconds()
	if stats.AvgRtt <= 0 {
		ms = since(start)
	}
	return up(ms, "Host is reachable")
}
