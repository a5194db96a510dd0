package probe

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"pulse/internal/models"
)

const maxBodyBytes = 5 << 20

var defaultExpectedStatus = []int{200, 201, 204}

type HTTP struct {
	UserAgent string
	secure    *http.Client
	insecure  *http.Client
}

func NewHTTP(userAgent string) *HTTP {
	base := http.DefaultTransport.(*http.Transport).Clone()
	skip := base.Clone()
	skip.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	return &HTTP{
		UserAgent: userAgent,
		secure:    &http.Client{Transport: base},
		insecure:  &http.Client{Transport: skip},
	}
}

func (h *HTTP) Probe(ctx context.Context, svc models.Service) models.CheckResult {
	if svc.URL == "" {
		return down(0, "No URL specified")
	}
	ctx, cancel := context.WithTimeout(ctx, svc.Timeout())
	defer cancel()

	method := strings.ToUpper(svc.Method)
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if svc.Body != "" && method != http.MethodGet && method != http.MethodHead {
		body = strings.NewReader(svc.Body)
	}
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, method, svc.URL, body)
	if err != nil {
		return down(0, err.Error())
	}
	for k, v := range svc.Headers {
		req.Header.Set(k, v)
	}
	if req.Header.Get("User-Agent") == "" && h.UserAgent != "" {
		req.Header.Set("User-Agent", h.UserAgent)
	}

	client := h.secure
	if !svc.VerifyTLS {
		client = h.insecure
	}
	res, err := client.Do(req)
	if err != nil {
		return h.failure(svc, start, err)
	}
	defer res.Body.Close()

	code := res.StatusCode
	expected := svc.ExpectedStatus
	if len(expected) == 0 {
		expected = defaultExpectedStatus
	}
	if !slices.Contains(expected, code) {
		r := down(since(start), fmt.Sprintf("Unexpected status: %d", code))
		r.StatusCode = &code
		return r
	}
	if svc.Keyword != "" {
		b, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
		if err != nil {
			r := h.failure(svc, start, err)
			r.StatusCode = &code
			return r
		}
		if !strings.Contains(string(b), svc.Keyword) {
			r := down(since(start), fmt.Sprintf("Keyword %q not found", svc.Keyword))
			r.StatusCode = &code
			return r
		}
	}
	r := up(since(start), "OK")
	r.StatusCode = &code
	return r
}

func (h *HTTP) failure(svc models.Service, start time.Time, err error) models.CheckResult {
	ms := since(start)
	if isTimeout(err) {
		return down(ms, timeoutMessage(svc))
	}
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return down(ms, uerr.Err.Error())
	}
	return down(ms, err.Error())
}
