package probe

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"syscall"
	"time"

	"pulse/internal/docker"
	"pulse/internal/models"
)

// Docker inspects a container through the Engine API. Clients are cached per
// host so connections are reused across passes.
type Docker struct {
	DefaultHost string

	mu      sync.Mutex
	clients map[string]*docker.Client
}

func NewDocker(defaultHost string) *Docker {
	return &Docker{DefaultHost: defaultHost, clients: map[string]*docker.Client{}}
}

func (d *Docker) client(host string) (*docker.Client, error) {
	if host == "" {
		host = d.DefaultHost
	}
	if host == "" {
		host = docker.DefaultHost
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if c, ok := d.clients[host]; ok {
		return c, nil
	}
	c, err := docker.NewClient(host)
	if err != nil {
		return nil, err
	}
	d.clients[host] = c
	return c, nil
}

func (d *Docker) Probe(ctx context.Context, svc models.Service) models.CheckResult {
	if svc.ContainerName == "" {
		return down(0, "No container name specified")
	}
	c, err := d.client(svc.DockerHost)
	if err != nil {
		return down(0, err.Error())
	}
	ctx, cancel := context.WithTimeout(ctx, svc.Timeout())
	defer cancel()

	start := time.Now()
	info, err := c.InspectContainer(ctx, svc.ContainerName)
	ms := since(start)
	if err != nil {
		var apiErr *docker.APIError
		switch {
		case docker.IsNotFound(err):
			return down(ms, fmt.Sprintf("Container %q not found", svc.ContainerName))
		case errors.As(err, &apiErr):
			return down(ms, fmt.Sprintf("Docker API error: %d", apiErr.StatusCode))
		case isTimeout(err):
			return down(ms, "Docker API timeout")
		case errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.ENOENT):
			return down(ms, "Cannot connect to Docker daemon")
		}
		return down(ms, err.Error())
	}
	ok, msg := docker.NormalizeState(info)
	if !ok {
		return down(ms, msg)
	}
	return up(ms, msg)
}
