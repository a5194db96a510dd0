package docker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const DefaultHost = "unix:///var/run/docker.sock"

// Client talks to one Docker Engine API endpoint.
type Client struct {
	http    *http.Client
	baseURL string
}

type ContainerInspect struct {
	ID    string `json:"Id"`
	Name  string `json:"Name"`
	State struct {
		Status     string `json:"Status"`
		Running    bool   `json:"Running"`
		ExitCode   int    `json:"ExitCode"`
		StartedAt  string `json:"StartedAt"`
		FinishedAt string `json:"FinishedAt"`
		Health     *struct {
			Status string `json:"Status"`
		} `json:"Health"`
	} `json:"State"`
}

// HealthStatus is empty when the container has no health check.
func (c ContainerInspect) HealthStatus() string {
	if c.State.Health == nil {
		return ""
	}
	return c.State.Health.Status
}

// APIError is a non-2xx answer from the engine.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("docker api status %d: %s", e.StatusCode, e.Message)
}

func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// NewClient accepts unix://, tcp://, http:// and https:// hosts. An empty host
// means the local socket.
func NewClient(host string) (*Client, error) {
	if host == "" {
		host = DefaultHost
	}
	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("parse docker host %q: %w", host, err)
	}
	dialer := &net.Dialer{Timeout: 3 * time.Second}
	switch u.Scheme {
	case "unix":
		socketPath := u.Path
		transport := &http.Transport{
			DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				return dialer.DialContext(ctx, "unix", socketPath)
			},
		}
		return &Client{http: &http.Client{Transport: transport}, baseURL: "http://unix"}, nil
	case "tcp", "http":
		return &Client{http: &http.Client{Transport: &http.Transport{DialContext: dialer.DialContext}}, baseURL: "http://" + u.Host}, nil
	case "https":
		return &Client{http: &http.Client{Transport: &http.Transport{DialContext: dialer.DialContext}}, baseURL: "https://" + u.Host}, nil
	default:
		return nil, fmt.Errorf("unsupported docker host scheme %q", u.Scheme)
	}
}

func (c *Client) Ping(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/_ping", nil)
	return err
}

func (c *Client) InspectContainer(ctx context.Context, nameOrID string) (ContainerInspect, error) {
	b, err := c.do(ctx, http.MethodGet, "/containers/"+url.PathEscape(nameOrID)+"/json", nil)
	if err != nil {
		return ContainerInspect{}, err
	}
	var out ContainerInspect
	if err := json.Unmarshal(b, &out); err != nil {
		return ContainerInspect{}, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, p string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+p, reader)
	if err != nil {
		return nil, err
	}
	res, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	b, err := io.ReadAll(io.LimitReader(res.Body, 10<<20))
	if err != nil {
		return nil, err
	}
	if res.StatusCode >= 300 {
		msg := strings.TrimSpace(string(b))
		var apiMsg struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(b, &apiMsg) == nil && apiMsg.Message != "" {
			msg = apiMsg.Message
		}
		if msg == "" {
			msg = res.Status
		}
		return nil, &APIError{StatusCode: res.StatusCode, Message: msg}
	}
	return b, nil
}
