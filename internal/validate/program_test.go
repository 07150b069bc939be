package validate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"servicemon/internal/event"
	"servicemon/internal/service"
)

func programService(command []string, timeout time.Duration) *service.Service {
	return &service.Service{
		Name:    "job",
		Type:    service.TypeProgram,
		Path:    command[0],
		Monitor: service.MonitorYes,
		Actions: service.DefaultEventActions(),
		Program: &service.Program{
			Command:    command,
			Timeout:    timeout,
			ExitStatus: -1,
		},
		Statuses: []*service.StatusRule{{
			Operator:    service.OperatorNotEqual,
			ReturnValue: 0,
			Action:      service.ActionAlert,
		}},
	}
}

func TestProgramLaunchAndEvaluate(t *testing.T) {
	s := programService([]string{"/bin/sh", "-c", "echo oops >&2; exit 3"}, time.Minute)
	e, q := newTestEngine(s)

	// Cycle 1: idle to running.
	require.True(t, e.checkProgram(s))
	require.NotNil(t, s.Program.Handle)
	statuses := eventsOf(q.Pending(), event.Status)
	require.Len(t, statuses, 1)
	assert.Equal(t, event.StateSucceeded, statuses[0].State)
	q.Process()

	s.Program.Handle.WaitFor()

	// Cycle 2: exit evaluated, fresh run started in the same cycle.
	require.True(t, e.checkProgram(s))
	assert.Equal(t, 3, s.Program.ExitStatus)
	statuses = eventsOf(q.Pending(), event.Status)
	require.Len(t, statuses, 2)
	assert.Equal(t, event.StateFailed, statuses[0].State)
	assert.Contains(t, statuses[0].Message, "oops")
	assert.Equal(t, event.StateSucceeded, statuses[1].State)
	require.NotNil(t, s.Program.Handle)

	s.Program.Handle.WaitFor()
}

func TestProgramSucceedingExit(t *testing.T) {
	s := programService([]string{"/bin/sh", "-c", "exit 0"}, time.Minute)
	e, q := newTestEngine(s)

	require.True(t, e.checkProgram(s))
	q.Process()
	s.Program.Handle.WaitFor()

	require.True(t, e.checkProgram(s))
	statuses := eventsOf(q.Pending(), event.Status)
	require.Len(t, statuses, 2)
	assert.Equal(t, event.StateSucceeded, statuses[0].State)
	assert.Equal(t, event.StateSucceeded, statuses[1].State)

	s.Program.Handle.WaitFor()
}

func TestProgramDefersWhileRunning(t *testing.T) {
	s := programService([]string{"/bin/sh", "-c", "sleep 5"}, time.Minute)
	e, q := newTestEngine(s)

	require.True(t, e.checkProgram(s))
	handle := s.Program.Handle
	require.NotNil(t, handle)
	q.Process()

	// Still running and under the timeout: the verdict is deferred and
	// the handle kept.
	require.True(t, e.checkProgram(s))
	assert.Empty(t, q.Pending())
	assert.Same(t, handle, s.Program.Handle)

	handle.Kill()
	handle.WaitFor()
}

func TestProgramTimeoutKillsAndRestarts(t *testing.T) {
	s := programService([]string{"/bin/sh", "-c", "sleep 10"}, 50*time.Millisecond)
	e, q := newTestEngine(s)

	require.True(t, e.checkProgram(s))
	q.Process()

	time.Sleep(100 * time.Millisecond)

	// Elapsed > timeout: kill, evaluate the exit against the rules, and
	// spawn a fresh handle within the same invocation.
	require.True(t, e.checkProgram(s))
	statuses := eventsOf(q.Pending(), event.Status)
	require.Len(t, statuses, 2)
	// A killed program exits nonzero, firing the != 0 rule.
	assert.Equal(t, event.StateFailed, statuses[0].State)
	assert.Equal(t, event.StateSucceeded, statuses[1].State)
	require.NotNil(t, s.Program.Handle)

	s.Program.Handle.Kill()
	s.Program.Handle.WaitFor()
}

func TestProgramLaunchFailure(t *testing.T) {
	s := programService([]string{"/nonexistent/binary"}, time.Minute)
	e, q := newTestEngine(s)

	require.True(t, e.checkProgram(s))
	assert.Nil(t, s.Program.Handle)
	statuses := eventsOf(q.Pending(), event.Status)
	require.Len(t, statuses, 1)
	assert.Equal(t, event.StateFailed, statuses[0].State)
	assert.Contains(t, statuses[0].Message, "failed to execute")
}
