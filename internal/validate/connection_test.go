package validate

import (
	"net"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"servicemon/internal/event"
	"servicemon/internal/service"
)

func listenerPort(t *testing.T, l net.Listener) int {
	t.Helper()
	_, portStr, err := net.SplitHostPort(l.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return port
}

func TestConnectionSucceeds(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	s := &service.Service{Name: "db", Type: service.TypeProcess, Actions: service.DefaultEventActions()}
	p := &service.Port{Hostname: "127.0.0.1", Port: listenerPort(t, l), Retry: 1, Action: service.ActionAlert}
	e, q := newTestEngine(s)

	e.checkConnection(s, p)

	assert.True(t, p.Available)
	assert.GreaterOrEqual(t, p.Response, 0.0)
	events := eventsOf(q.Pending(), event.Connection)
	require.Len(t, events, 1)
	assert.Equal(t, event.StateSucceeded, events[0].State)
}

func TestConnectionRetriesThenFails(t *testing.T) {
	// Grab a port that refuses connections by closing the listener.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := listenerPort(t, l)
	require.NoError(t, l.Close())

	s := &service.Service{Name: "db", Type: service.TypeProcess, Actions: service.DefaultEventActions()}
	p := &service.Port{Hostname: "127.0.0.1", Port: port, Retry: 3, Action: service.ActionRestart}
	e, q := newTestEngine(s)

	e.checkConnection(s, p)

	assert.False(t, p.Available)
	assert.Equal(t, -1.0, p.Response)
	// The retry budget collapses into a single failed event.
	events := eventsOf(q.Pending(), event.Connection)
	require.Len(t, events, 1)
	assert.Equal(t, event.StateFailed, events[0].State)
	assert.Contains(t, events[0].Message, "cannot open a connection")
}

func TestConnectionProtocolFailure(t *testing.T) {
	// A listener that closes immediately cannot answer the http probe.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	s := &service.Service{Name: "web", Type: service.TypeProcess, Actions: service.DefaultEventActions()}
	p := &service.Port{Hostname: "127.0.0.1", Port: listenerPort(t, l), Retry: 1, Protocol: "http", Action: service.ActionAlert}
	e, q := newTestEngine(s)

	e.checkConnection(s, p)

	assert.False(t, p.Available)
	events := eventsOf(q.Pending(), event.Connection)
	require.Len(t, events, 1)
	assert.Equal(t, event.StateFailed, events[0].State)
	assert.Contains(t, events[0].Message, "protocol test [http]")
}
