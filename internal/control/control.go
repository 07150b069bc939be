package control

import (
	"context"
	"log"
	"os/exec"
	"time"

	"servicemon/internal/service"
)

// Exec performs administrative actions by running the start/stop
// commands declared on the service.
type Exec struct {
	Timeout time.Duration
}

// New creates an exec-backed controller.
func New(timeout time.Duration) *Exec {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Exec{Timeout: timeout}
}

// Execute performs the action against the service and reports success.
func (c *Exec) Execute(s *service.Service, action service.Action) bool {
	switch action {
	case service.ActionStart:
		ok := c.runCommand(s, s.Start)
		if ok {
			s.NStart++
		}
		return ok
	case service.ActionStop:
		return c.runCommand(s, s.Stop)
	case service.ActionRestart:
		c.runCommand(s, s.Stop)
		ok := c.runCommand(s, s.Start)
		if ok {
			s.NStart++
		}
		return ok
	case service.ActionMonitor:
		// Resource samples are untrustworthy until a cycle has run.
		s.Monitor = service.MonitorInit
		return true
	case service.ActionUnmonitor:
		s.Monitor = service.MonitorNot
		return true
	case service.ActionAlert, service.ActionExec, service.ActionIgnore:
		return true
	default:
		log.Printf("'%s' error: unknown action %q", s.Name, action)
		return false
	}
}

func (c *Exec) runCommand(s *service.Service, argv []string) bool {
	if len(argv) == 0 {
		log.Printf("'%s' has no command configured for this action", s.Name)
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	if err := cmd.Run(); err != nil {
		log.Printf("'%s' command %v failed: %v", s.Name, argv, err)
		return false
	}
	return true
}
