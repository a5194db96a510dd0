package probe

import (
	"context"
	"net"
	"strings"
	"testing"

	"github.com/miekg/dns"

	"pulse/internal/models"
)

func startDNSServer(t *testing.T) string {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen udp: %v", err)
	}
	handler := dns.HandlerFunc(func(w dns.ResponseWriter, req *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(req)
		q := req.Question[0]
		switch {
		case q.Name == "pulse.test." && q.Qtype == dns.TypeA:
			rr, _ := dns.NewRR("pulse.test. 60 IN A 10.1.2.3")
			m.Answer = append(m.Answer, rr)
		case q.Name == "pulse.test." && q.Qtype == dns.TypeMX:
			rr, _ := dns.NewRR("pulse.test. 60 IN MX 10 mail.pulse.test.")
			m.Answer = append(m.Answer, rr)
		case q.Name == "pulse.test." && q.Qtype == dns.TypeTXT:
			rr, _ := dns.NewRR(`pulse.test. 60 IN TXT "v=spf1 " "include:_spf.pulse.test ~all"`)
			m.Answer = append(m.Answer, rr)
		case q.Name == "pulse.test.":
		default:
			m.Rcode = dns.RcodeNameError
		}
		_ = w.WriteMsg(m)
	})
	started := make(chan struct{})
	srv := &dns.Server{PacketConn: pc, Handler: handler, NotifyStartedFunc: func() { close(started) }}
	go func() { _ = srv.ActivateAndServe() }()
	<-started
	t.Cleanup(func() { _ = srv.Shutdown() })
	return pc.LocalAddr().String()
}

func TestDNSProbeRecords(t *testing.T) {
	server := startDNSServer(t)
	d := &DNS{DefaultServer: server}
	ctx := context.Background()

	res := d.Probe(ctx, models.Service{Type: models.ServiceDNS, Hostname: "pulse.test", DNSRecordType: "A", TimeoutSeconds: 2})
	if res.Status != models.StatusUp || res.Message != "A: 10.1.2.3" {
		t.Fatalf("A result = %+v", res)
	}

	res = d.Probe(ctx, models.Service{Type: models.ServiceDNS, Hostname: "pulse.test", DNSRecordType: "MX", ExpectedValue: "MAIL.pulse", TimeoutSeconds: 2})
	if res.Status != models.StatusUp || res.Message != "MX: 10 mail.pulse.test" {
		t.Fatalf("MX result = %+v", res)
	}

	res = d.Probe(ctx, models.Service{Type: models.ServiceDNS, Hostname: "pulse.test", DNSRecordType: "TXT", ExpectedValue: "v=DKIM1", TimeoutSeconds: 2})
	if res.Status != models.StatusDown || !strings.Contains(res.Message, `Expected "v=DKIM1" not found in records: v=spf1 include:_spf.pulse.test ~all`) {
		t.Fatalf("TXT result = %+v", res)
	}
}

func TestDNSProbeNotFound(t *testing.T) {
	server := startDNSServer(t)
	d := &DNS{}
	ctx := context.Background()

	res := d.Probe(ctx, models.Service{Type: models.ServiceDNS, Hostname: "missing.test", DNSServer: server, TimeoutSeconds: 2})
	if res.Status != models.StatusDown || res.Message != "No A records found for missing.test" {
		t.Fatalf("nxdomain result = %+v", res)
	}

	res = d.Probe(ctx, models.Service{Type: models.ServiceDNS, Hostname: "pulse.test", DNSRecordType: "AAAA", DNSServer: server, TimeoutSeconds: 2})
	if res.Status != models.StatusDown || res.Message != "No AAAA records found for pulse.test" {
		t.Fatalf("empty answer result = %+v", res)
	}
}

func TestDNSProbeTimeout(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen udp: %v", err)
	}
	defer pc.Close()

	res := (&DNS{}).Probe(context.Background(), models.Service{Type: models.ServiceDNS, Hostname: "pulse.test", DNSServer: pc.LocalAddr().String(), TimeoutSeconds: 1})
	if res.Status != models.StatusDown || res.Message != "DNS query timed out" {
		t.Fatalf("timeout result = %+v", res)
	}
}

func TestServerAddrAddsDefaultPort(t *testing.T) {
	cases := map[string]string{
		"1.1.1.1":         "1.1.1.1:53",
		"1.1.1.1:5353":    "1.1.1.1:5353",
		"2606:4700::1111": "[2606:4700::1111]:53",
	}
	for in, want := range cases {
		if got := serverAddr(in); got != want {
			t.Fatalf("serverAddr(%q) = %q, want %q", in, got, want)
		}
	}
}
