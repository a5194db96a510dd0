package probe

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"pulse/internal/models"
)

func TestTCPProbeOpenAndClosedPort(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().(*net.TCPAddr)
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			_ = c.Close()
		}
	}()

	svc := models.Service{Type: models.ServiceTCP, Hostname: "127.0.0.1", Port: addr.Port, TimeoutSeconds: 2}
	res := probeTCP(context.Background(), svc)
	if res.Status != models.StatusUp || res.Message != "Connection successful" {
		t.Fatalf("open port result = %+v", res)
	}

	_ = ln.Close()
	start := time.Now()
	res = probeTCP(context.Background(), svc)
	if res.Status != models.StatusDown {
		t.Fatalf("closed port result = %+v", res)
	}
	if !strings.Contains(res.Message, "refused") && !strings.Contains(res.Message, "Timeout") {
		t.Fatalf("closed port message = %q", res.Message)
	}
	if time.Since(start) > 3*time.Second {
		t.Fatalf("closed port probe exceeded timeout")
	}
}

func TestTCPProbeRequiresTarget(t *testing.T) {
	res := probeTCP(context.Background(), models.Service{Type: models.ServiceTCP, Hostname: "localhost"})
	if res.Status != models.StatusDown || res.Message != "No port specified" {
		t.Fatalf("result = %+v", res)
	}
}
