package probe

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"math"
	"net"
	"strconv"
	"time"

	"pulse/internal/models"
)

const isoMillis = "2006-01-02T15:04:05.000Z"

// SSL reads the peer certificate without verifying it and grades its
// validity window.
type SSL struct {
	Now func() time.Time
}

func (s *SSL) Probe(ctx context.Context, svc models.Service) models.CheckResult {
	if svc.Hostname == "" {
		return down(0, "No hostname specified")
	}
	port := svc.Port
	if port <= 0 {
		port = 443
	}
	warnDays := warningThreshold(svc.SSLWarningDays)
	ctx, cancel := context.WithTimeout(ctx, svc.Timeout())
	defer cancel()

	start := time.Now()
	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: svc.Timeout()},
		Config:    &tls.Config{InsecureSkipVerify: true, ServerName: svc.Hostname},
	}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(svc.Hostname, strconv.Itoa(port)))
	ms := since(start)
	if err != nil {
		if isTimeout(err) {
			return down(ms, timeoutMessage(svc))
		}
		return down(ms, err.Error())
	}
	defer conn.Close()

	certs := conn.(*tls.Conn).ConnectionState().PeerCertificates
	if len(certs) == 0 {
		return down(ms, "No certificate found")
	}
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}
	return gradeCertificate(certs[0], now, warnDays, ms)
}

func gradeCertificate(cert *x509.Certificate, now time.Time, warnDays int, ms int64) models.CheckResult {
	days := int(math.Floor(cert.NotAfter.Sub(now).Hours() / 24))
	info := &models.Certificate{
		Subject:         commonName(cert.Subject.CommonName),
		Issuer:          commonName(cert.Issuer.CommonName),
		ValidFrom:       cert.NotBefore.UTC().Format(isoMillis),
		ValidTo:         cert.NotAfter.UTC().Format(isoMillis),
		DaysUntilExpiry: days,
		SerialNumber:    fmt.Sprintf("%X", cert.SerialNumber),
	}
	var res models.CheckResult
	switch {
	case now.Before(cert.NotBefore):
		res = down(ms, fmt.Sprintf("Certificate not yet valid (starts %s)", info.ValidFrom))
	case now.After(cert.NotAfter):
		res = down(ms, fmt.Sprintf("Certificate expired on %s", info.ValidTo))
	case days <= warnDays:
		res = down(ms, fmt.Sprintf("Certificate expires in %d days (warning threshold: %d days)", days, warnDays))
	default:
		res = up(ms, fmt.Sprintf("Certificate valid for %d days", days))
	}
	res.Certificate = info
	return res
}

// warningThreshold keeps an explicit 0, which warns only once expired.
func warningThreshold(days int) int {
	if days < 0 {
		return 30
	}
	return days
}

func commonName(cn string) string {
	if cn == "" {
		return "Unknown"
	}
	return cn
}
