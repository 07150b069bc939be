package validate

import (
	"log"
	"sync/atomic"
	"time"

	"github.com/adhocore/gronx"

	"servicemon/internal/collector"
	"servicemon/internal/event"
	"servicemon/internal/service"
)

// Controller performs administrative actions (start, stop, restart)
// scheduled against a service.
type Controller interface {
	Execute(s *service.Service, action service.Action) bool
}

// Engine runs the per-cycle validation pipeline over the service list.
// A cycle is single-threaded: no two checkers run concurrently and no
// two cycles overlap.
type Engine struct {
	services  []*service.Service
	queue     *event.Queue
	control   Controller
	sys       *collector.SystemInfo
	tree      *collector.Tree
	gron      *gronx.Gronx
	doProcess bool

	stopped       atomic.Bool
	actionPending atomic.Bool

	stopCh chan struct{}
	doneCh chan struct{}
}

// New creates a validation engine over the given service list.
func New(services []*service.Service, queue *event.Queue, control Controller) *Engine {
	return &Engine{
		services:  services,
		queue:     queue,
		control:   control,
		sys:       collector.NewSystemInfo(),
		gron:      gronx.New(),
		doProcess: true,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Services returns the engine's service list.
func (e *Engine) Services() []*service.Service {
	return e.services
}

// SystemInfo returns the engine's system sensor set.
func (e *Engine) SystemInfo() *collector.SystemInfo {
	return e.sys
}

// RequestAction flags that at least one administrative action is pending,
// so the next cycle performs a quick action-only sweep first.
func (e *Engine) RequestAction() {
	e.actionPending.Store(true)
}

// Start launches the validation loop in a goroutine.
func (e *Engine) Start(interval time.Duration) {
	go e.run(interval)
}

// Stop requests graceful loop termination and waits until it is done.
func (e *Engine) Stop() {
	e.stopped.Store(true)
	select {
	case <-e.doneCh:
		return
	default:
	}
	close(e.stopCh)
	<-e.doneCh
}

func (e *Engine) run(interval time.Duration) {
	defer close(e.doneCh)

	e.Validate(time.Now())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.Validate(time.Now())
		case <-e.stopCh:
			return
		}
	}
}

// Validate runs one full cycle over the service list and returns the
// number of services whose checker reported a fatal failure.
func (e *Engine) Validate(now time.Time) int {
	errors := 0

	e.queue.Process()

	if err := e.sys.Refresh(); err != nil {
		log.Printf("failed to refresh system sensors: %v", err)
	}
	tree, err := collector.BuildTree(e.tree)
	if err != nil {
		log.Printf("failed to build process tree: %v", err)
	} else {
		e.tree = tree
	}

	// Handle pending administrative actions before monitoring starts.
	if e.actionPending.Swap(false) {
		for _, s := range e.services {
			e.doScheduledAction(s)
		}
	}

	for _, s := range e.services {
		if e.stopped.Load() {
			break
		}
		if !e.doScheduledAction(s) && s.Monitor != service.MonitorNot && !e.checkSkip(s, now) {
			e.checkActionRate(s) // monitor is re-read below before dispatch
			if s.Monitor != service.MonitorNot {
				if !e.checkService(s) {
					errors++
				}
				// Promote to yes unless monitoring has been turned
				// off in the meantime.
				if s.Monitor != service.MonitorNot {
					s.Monitor = service.MonitorYes
				}
			}
			s.Collected = time.Now()
		}
	}

	for _, s := range e.services {
		s.Visited = false
	}

	return errors
}

func (e *Engine) checkService(s *service.Service) bool {
	switch s.Type {
	case service.TypeProcess:
		return e.checkProcess(s)
	case service.TypeFilesystem:
		return e.checkFilesystem(s)
	case service.TypeFile:
		return e.checkFile(s)
	case service.TypeDirectory:
		return e.checkDirectory(s)
	case service.TypeFifo:
		return e.checkFifo(s)
	case service.TypeProgram:
		return e.checkProgram(s)
	case service.TypeRemoteHost:
		return e.checkRemoteHost(s)
	case service.TypeSystem:
		return e.checkSystem(s)
	default:
		log.Printf("'%s' error: unknown service type %d", s.Name, s.Type)
		return true
	}
}

// checkSkip applies the every policy and dependency markers, reporting
// whether this service should be skipped this cycle.
func (e *Engine) checkSkip(s *service.Service, now time.Time) bool {
	if s.Visited {
		return true
	}
	switch s.Every.Type {
	case service.EverySkipCycles:
		s.Every.Counter++
		if s.Every.Counter < s.Every.Number {
			s.Monitor |= service.MonitorWaiting
			return true
		}
		s.Every.Counter = 0
	case service.EveryCron:
		if !e.inCron(s.Every.Cron, now) {
			s.Monitor |= service.MonitorWaiting
			return true
		}
	case service.EveryNotInCron:
		if e.inCron(s.Every.Cron, now) {
			s.Monitor |= service.MonitorWaiting
			return true
		}
	}
	s.Monitor &^= service.MonitorWaiting
	return false
}

func (e *Engine) inCron(spec string, now time.Time) bool {
	due, err := e.gron.IsDue(spec, now)
	if err != nil {
		log.Printf("bad cron spec %q: %v", spec, err)
		return false
	}
	return due
}

// checkActionRate applies restart-rate bookkeeping and posts a timeout
// event when the service flaps faster than an action-rate rule allows.
func (e *Engine) checkActionRate(s *service.Service) {
	if len(s.ActionRates) == 0 {
		return
	}

	if s.NStart > 0 {
		s.NCycle++
	}

	max := 0
	for _, ar := range s.ActionRates {
		if max < ar.Cycles {
			max = ar.Cycles
		}
		if s.NStart >= ar.Count && s.NCycle <= ar.Cycles {
			e.post(s, event.Timeout, event.StateFailed, ar.Action, "service restarted %d times within %d cycle(s) - %s", s.NStart, s.NCycle, ar.Action)
		}
	}

	if s.NCycle > max {
		s.NCycle = 0
		s.NStart = 0
	}
}

// doScheduledAction performs a pending administrative action and reports
// whether one was performed.
func (e *Engine) doScheduledAction(s *service.Service) bool {
	if s.DoAction == service.ActionIgnore {
		return false
	}
	rv := false
	if e.control != nil {
		rv = e.control.Execute(s, s.DoAction)
	}
	e.post(s, event.Action, event.StateChanged, s.Actions.Action, "%s action done", s.DoAction)
	s.DoAction = service.ActionIgnore
	return rv
}

// post forwards an event to the queue and keeps the service's sticky
// error flags in step with it.
func (e *Engine) post(s *service.Service, kind event.Kind, state event.State, action service.Action, format string, args ...any) {
	e.queue.Post(s.Name, kind, state, string(action), format, args...)
	switch state {
	case event.StateFailed:
		s.SetError(string(kind))
	case event.StateSucceeded:
		s.ClearError(string(kind))
	}
}
