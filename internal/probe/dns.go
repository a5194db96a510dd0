package probe

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"

	"pulse/internal/models"
)

const DefaultDNSServer = "1.1.1.1"

var recordTypes = map[string]uint16{
	"A":     dns.TypeA,
	"AAAA":  dns.TypeAAAA,
	"MX":    dns.TypeMX,
	"TXT":   dns.TypeTXT,
	"CNAME": dns.TypeCNAME,
	"NS":    dns.TypeNS,
}

// DNS resolves one record type against a configured resolver.
type DNS struct {
	DefaultServer string
}

func (d *DNS) Probe(ctx context.Context, svc models.Service) models.CheckResult {
	if svc.Hostname == "" {
		return down(0, "No hostname specified")
	}
	recordType := strings.ToUpper(svc.DNSRecordType)
	qtype, ok := recordTypes[recordType]
	if !ok {
		recordType, qtype = "A", dns.TypeA
	}
	server := svc.DNSServer
	if server == "" {
		server = d.DefaultServer
	}
	if server == "" {
		server = DefaultDNSServer
	}

	ctx, cancel := context.WithTimeout(ctx, svc.Timeout())
	defer cancel()

	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(svc.Hostname), qtype)
	c := &dns.Client{Net: "udp", Timeout: svc.Timeout()}

	start := time.Now()
	resp, _, err := c.ExchangeContext(ctx, m, serverAddr(server))
	if err == nil && resp.Truncated {
		c.Net = "tcp"
		resp, _, err = c.ExchangeContext(ctx, m, serverAddr(server))
	}
	ms := since(start)
	if err != nil {
		if isTimeout(err) {
			return down(ms, "DNS query timed out")
		}
		return down(ms, err.Error())
	}

	notFound := fmt.Sprintf("No %s records found for %s", recordType, svc.Hostname)
	switch resp.Rcode {
	case dns.RcodeSuccess:
	case dns.RcodeNameError:
		return down(ms, notFound)
	default:
		return down(ms, fmt.Sprintf("DNS query failed: %s", dns.RcodeToString[resp.Rcode]))
	}

	records := formatRecords(resp.Answer, qtype)
	if len(records) == 0 {
		return down(ms, notFound)
	}
	if svc.ExpectedValue != "" {
		want := strings.ToLower(svc.ExpectedValue)
		found := false
		for _, r := range records {
			if strings.Contains(strings.ToLower(r), want) {
				found = true
				break
			}
		}
		if !found {
			return down(ms, fmt.Sprintf("Expected %q not found in records: %s", svc.ExpectedValue, strings.Join(records, ", ")))
		}
	}
	return up(ms, fmt.Sprintf("%s: %s", recordType, strings.Join(records, ", ")))
}

func serverAddr(server string) string {
	if _, _, err := net.SplitHostPort(server); err == nil {
		return server
	}
	return net.JoinHostPort(strings.Trim(server, "[]"), "53")
}

// formatRecords keeps only answers of the queried type; a CNAME chain in
// front of an A answer is not a match.
func formatRecords(answers []dns.RR, qtype uint16) []string {
	var out []string
	for _, rr := range answers {
		if rr.Header().Rrtype != qtype {
			continue
		}
		switch v := rr.(type) {
		case *dns.A:
			out = append(out, v.A.String())
		case *dns.AAAA:
			out = append(out, v.AAAA.String())
		case *dns.MX:
			out = append(out, fmt.Sprintf("%d %s", v.Preference, strings.TrimSuffix(v.Mx, ".")))
		case *dns.TXT:
			out = append(out, strings.Join(v.Txt, ""))
		case *dns.CNAME:
			out = append(out, strings.TrimSuffix(v.Target, "."))
		case *dns.NS:
			out = append(out, strings.TrimSuffix(v.Ns, "."))
		}
	}
	return out
}
