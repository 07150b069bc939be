package validate

import (
	"log"
	"time"

	"servicemon/internal/collector"
	"servicemon/internal/event"
	"servicemon/internal/service"
)

// checkProgram drives the program service state machine: evaluate the
// previous run's exit status once it has exited or timed out, then start
// a fresh run in the same cycle.
func (e *Engine) checkProgram(s *service.Service) bool {
	prog := s.Program
	if prog == nil {
		log.Printf("'%s' error: program service has no command", s.Name)
		return true
	}
	now := time.Now()

	if P := prog.Handle; P != nil {
		if P.ExitStatus() < 0 { // Program is still running
			elapsed := now.Sub(prog.Started)
			if elapsed > prog.Timeout { // Program timed out
				log.Printf("'%s' program timed out after %v. Killing program with pid %d", s.Name, elapsed.Round(time.Second), P.Pid())
				P.Kill()
				P.WaitFor() // collect the exit value below
			} else {
				// Defer the status test until the program exits.
				return true
			}
		}

		prog.ExitStatus = P.ExitStatus()
		output := P.ErrorOutput()
		if len(output) == 0 {
			output = P.Output()
		}

		for _, status := range s.Statuses {
			if status.Operator.Eval(int64(prog.ExitStatus), int64(status.ReturnValue)) {
				if len(output) > 0 {
					e.post(s, event.Status, event.StateFailed, status.Action, "%s", output)
				} else {
					e.post(s, event.Status, event.StateFailed, status.Action, "'%s' failed with exit status (%d) -- no output from program", s.Path, prog.ExitStatus)
				}
			} else {
				e.post(s, event.Status, event.StateSucceeded, status.Action, "status succeeded")
			}
		}
		prog.Handle = nil
	}

	// Start the next run.
	P, err := collector.Execute(prog.Command)
	if err != nil {
		e.post(s, event.Status, event.StateFailed, s.Actions.Exec, "failed to execute '%s' -- %v", s.Path, err)
	} else {
		e.post(s, event.Status, event.StateSucceeded, s.Actions.Exec, "'%s' program started", s.Name)
		prog.Handle = P
		prog.Started = now
	}
	return true
}
