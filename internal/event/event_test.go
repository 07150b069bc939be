package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordSink struct {
	events []Event
}

func (r *recordSink) Publish(e Event) {
	r.events = append(r.events, e)
}

func TestQueuePostAndProcess(t *testing.T) {
	sink := &recordSink{}
	q := NewQueue(sink)

	q.Post("web", Nonexist, StateFailed, "alert", "process is not running")
	q.Post("web", Connection, StateSucceeded, "alert", "connection succeeded to %s", "INET[localhost:80]")

	pending := q.Pending()
	require.Len(t, pending, 2)
	assert.Empty(t, sink.events)

	drained := q.Process()
	require.Len(t, drained, 2)
	assert.Equal(t, drained, sink.events)
	assert.Empty(t, q.Pending())

	first := drained[0]
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, "web", first.Service)
	assert.Equal(t, Nonexist, first.Kind)
	assert.Equal(t, StateFailed, first.State)
	assert.False(t, first.Time.IsZero())

	assert.Equal(t, "connection succeeded to INET[localhost:80]", drained[1].Message)
}

func TestQueueAttach(t *testing.T) {
	q := NewQueue()
	sink := &recordSink{}
	q.Attach(sink)

	q.Post("web", Data, StateSucceeded, "alert", "ok")
	q.Process()
	require.Len(t, sink.events, 1)
}
