package event

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEvent(service string, kind Kind, state State) Event {
	return Event{
		ID:      service + "-" + string(kind),
		Service: service,
		Kind:    kind,
		State:   state,
		Message: "test",
		Time:    time.Now().UTC(),
	}
}

func TestLogPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.json")

	l, err := NewLog(path, 10)
	require.NoError(t, err)
	l.Publish(sampleEvent("web", Nonexist, StateFailed))
	l.Publish(sampleEvent("web", Nonexist, StateSucceeded))

	reopened, err := NewLog(path, 10)
	require.NoError(t, err)
	history := reopened.History()
	require.Len(t, history, 2)
	assert.Equal(t, StateFailed, history[0].State)
	assert.Equal(t, StateSucceeded, history[1].State)

	latest, ok := reopened.Latest()
	require.True(t, ok)
	assert.Equal(t, StateSucceeded, latest.State)
}

func TestLogTrimsToMaxSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.json")
	l, err := NewLog(path, 3)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		l.Publish(sampleEvent("web", Data, StateSucceeded))
	}
	assert.Len(t, l.History(), 3)
}

func TestLogHistoryN(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.json")
	l, err := NewLog(path, 10)
	require.NoError(t, err)

	l.Publish(sampleEvent("a", Data, StateSucceeded))
	l.Publish(sampleEvent("b", Data, StateSucceeded))
	l.Publish(sampleEvent("c", Data, StateSucceeded))

	last := l.HistoryN(2)
	require.Len(t, last, 2)
	assert.Equal(t, "b", last[0].Service)
	assert.Equal(t, "c", last[1].Service)

	assert.Len(t, l.HistoryN(0), 3)
	assert.Len(t, l.HistoryN(100), 3)
}

func TestLogEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.json")
	l, err := NewLog(path, 10)
	require.NoError(t, err)

	_, ok := l.Latest()
	assert.False(t, ok)
	assert.Empty(t, l.History())
}
