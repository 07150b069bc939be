package event

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind identifies which check produced an event.
type Kind string

const (
	Nonexist   Kind = "nonexist"
	Invalid    Kind = "invalid"
	Data       Kind = "data"
	Exec       Kind = "exec"
	Timeout    Kind = "timeout"
	Pid        Kind = "pid"
	PPid       Kind = "ppid"
	Fsflag     Kind = "fsflag"
	Resource   Kind = "resource"
	Permission Kind = "permission"
	Uid        Kind = "uid"
	Gid        Kind = "gid"
	Timestamp  Kind = "timestamp"
	Size       Kind = "size"
	Uptime     Kind = "uptime"
	Checksum   Kind = "checksum"
	Content    Kind = "content"
	Connection Kind = "connection"
	Icmp       Kind = "icmp"
	Status     Kind = "status"
	Action     Kind = "action"
)

// State describes the transition an event reports.
type State string

const (
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
	StateChanged    State = "changed"
	StateChangedNot State = "not changed"
)

// Event is the tuple forwarded to the event queue by the validation engine.
type Event struct {
	ID      string    `json:"id"`
	Service string    `json:"service"`
	Kind    Kind      `json:"kind"`
	State   State     `json:"state"`
	Action  string    `json:"action,omitempty"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// Poster accepts events from checkers. Posting is fire-and-forget.
type Poster interface {
	Post(service string, kind Kind, state State, action string, format string, args ...any)
}

// Sink receives events when the queue is drained.
type Sink interface {
	Publish(Event)
}

// Queue buffers events posted during a cycle until the scheduler drains
// them at the start of the next cycle.
type Queue struct {
	mu      sync.Mutex
	pending []Event
	sinks   []Sink
}

// NewQueue creates an event queue draining into the given sinks.
func NewQueue(sinks ...Sink) *Queue {
	return &Queue{sinks: sinks}
}

// Attach adds a drain sink to the queue.
func (q *Queue) Attach(sink Sink) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.sinks = append(q.sinks, sink)
}

// Post enqueues an event. The message is formatted immediately so checker
// state may be reused after the call returns.
func (q *Queue) Post(service string, kind Kind, state State, action string, format string, args ...any) {
	e := Event{
		ID:      uuid.NewString(),
		Service: service,
		Kind:    kind,
		State:   state,
		Action:  action,
		Message: fmt.Sprintf(format, args...),
		Time:    time.Now().UTC(),
	}

	q.mu.Lock()
	q.pending = append(q.pending, e)
	q.mu.Unlock()
}

// Process drains pending events into the attached sinks and returns them.
func (q *Queue) Process() []Event {
	q.mu.Lock()
	drained := q.pending
	q.pending = nil
	sinks := q.sinks
	q.mu.Unlock()

	for _, e := range drained {
		for _, sink := range sinks {
			sink.Publish(e)
		}
	}
	return drained
}

// Pending returns a copy of the events not yet drained.
func (q *Queue) Pending() []Event {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Event, len(q.pending))
	copy(out, q.pending)
	return out
}
