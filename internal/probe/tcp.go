package probe

import (
	"context"
	"net"
	"strconv"
	"time"

	"pulse/internal/models"
)

func probeTCP(ctx context.Context, svc models.Service) models.CheckResult {
	if svc.Hostname == "" {
		return down(0, "No hostname specified")
	}
	if svc.Port <= 0 {
		return down(0, "No port specified")
	}
	ctx, cancel := context.WithTimeout(ctx, svc.Timeout())
	defer cancel()

	start := time.Now()
	d := net.Dialer{Timeout: svc.Timeout()}
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(svc.Hostname, strconv.Itoa(svc.Port)))
	ms := since(start)
	if err != nil {
		if isTimeout(err) {
			return down(ms, timeoutMessage(svc))
		}
		return down(ms, err.Error())
	}
	_ = conn.Close()
	return up(ms, "Connection successful")
}
