package docker

import "fmt"

// NormalizeState reduces an inspect result to up/down and a short message.
// A health check, when configured, overrides the running flag only for
// "unhealthy"; "starting" still counts as up.
func NormalizeState(c ContainerInspect) (up bool, message string) {
	if !c.State.Running {
		return false, fmt.Sprintf("Container stopped (exit code: %d)", c.State.ExitCode)
	}
	switch health := c.HealthStatus(); health {
	case "":
		return true, "Container running"
	case "healthy":
		return true, "Container running and healthy"
	case "unhealthy":
		return false, "Container running but unhealthy"
	default:
		return true, fmt.Sprintf("Container running (health: %s)", health)
	}
}
