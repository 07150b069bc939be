package validate

import (
	"log"

	"servicemon/internal/collector"
	"servicemon/internal/event"
	"servicemon/internal/service"
)

// checkProcess validates a process service.
func (e *Engine) checkProcess(s *service.Service) bool {
	pid := collector.IsProcessRunning(s, e.tree)
	if pid == 0 {
		e.post(s, event.Nonexist, event.StateFailed, s.Actions.Nonexist, "process is not running")
		return false
	}
	e.post(s, event.Nonexist, event.StateSucceeded, s.Actions.Nonexist, "process is running with pid %d", pid)

	// The process is running again, most probably after manual
	// intervention, so clear sticky exec and restart-timeout errors.
	if s.HasError(string(event.Exec)) {
		e.post(s, event.Exec, event.StateSucceeded, s.Actions.Exec, "process is running after previous exec error (slow starting or manually recovered?)")
	}
	if s.HasError(string(event.Timeout)) {
		for _, ar := range s.ActionRates {
			e.post(s, event.Timeout, event.StateSucceeded, ar.Action, "process is running after previous restart timeout (manually recovered?)")
		}
	}

	if e.doProcess {
		if collector.UpdateProcessData(s, e.tree, pid) {
			e.checkProcessState(s)
			e.checkProcessPid(s)
			e.checkProcessPpid(s)
			if len(s.Uptimes) > 0 {
				e.checkUptime(s)
			}
			for _, r := range s.Resources {
				e.checkProcessResources(s, r)
			}
		} else {
			log.Printf("'%s' failed to get service data", s.Name)
		}
	}

	for _, p := range s.Ports {
		e.checkConnection(s, p)
	}

	return true
}

// checkRemoteHost validates a remote-host service: ping probes first,
// then port connections unless the host looks down.
func (e *Engine) checkRemoteHost(s *service.Service) bool {
	var lastPing *service.Icmp

	for _, icmp := range s.Icmps {
		switch icmp.Type {
		case service.IcmpTypeEcho:
			icmp.Response = collector.IcmpEcho(s.Path, icmp.Timeout, icmp.Count)

			switch {
			case icmp.Response == collector.IcmpNoPermission:
				// No privilege for a raw socket: skip without alerting.
				icmp.Available = true
				log.Printf("'%s' icmp ping skipped -- no permission to create raw socket, run as root or grant net_icmpaccess", s.Name)
			case icmp.Response == collector.IcmpFailed:
				icmp.Available = false
				e.post(s, event.Icmp, event.StateFailed, icmp.Action, "failed ICMP test [echo]")
			default:
				icmp.Available = true
				e.post(s, event.Icmp, event.StateSucceeded, icmp.Action, "succeeded ICMP test [echo]")
			}
			lastPing = icmp

		default:
			log.Printf("'%s' error -- unknown ICMP type: [%d]", s.Name, icmp.Type)
			return false
		}
	}

	// If the last ping failed the host is presumed down, don't bother
	// with port connections this cycle.
	if lastPing != nil && !lastPing.Available {
		return false
	}

	for _, p := range s.Ports {
		e.checkConnection(s, p)
	}

	return true
}

// checkSystem validates the general system indicators.
func (e *Engine) checkSystem(s *service.Service) bool {
	for _, r := range s.Resources {
		e.checkProcessResources(s, r)
	}
	return true
}
