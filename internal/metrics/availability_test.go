package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"servicemon/internal/event"
)

func sample(service string, kind event.Kind, state event.State, at time.Time) event.Event {
	return event.Event{Service: service, Kind: kind, State: state, Time: at}
}

func TestComputeServiceAvailability(t *testing.T) {
	now := time.Date(2026, time.August, 5, 10, 0, 0, 0, time.UTC)
	events := []event.Event{
		sample("web", event.Nonexist, event.StateSucceeded, now),
		sample("web", event.Connection, event.StateSucceeded, now.Add(time.Minute)),
		sample("web", event.Connection, event.StateFailed, now.Add(2*time.Minute)),
		sample("web", event.Connection, event.StateSucceeded, now.Add(3*time.Minute)),
		// Rule outcomes don't feed availability.
		sample("web", event.Resource, event.StateFailed, now.Add(4*time.Minute)),
		// Change detections don't either.
		sample("web", event.Pid, event.StateChanged, now.Add(5*time.Minute)),
		sample("gateway", event.Icmp, event.StateFailed, now),
	}

	summary := ComputeServiceAvailability(events)
	require.Len(t, summary, 2)

	gateway := summary[0]
	assert.Equal(t, "gateway", gateway.Service)
	assert.Equal(t, 0.0, gateway.AvailabilityPercent)
	assert.Equal(t, 1, gateway.TotalChecks)

	web := summary[1]
	assert.Equal(t, "web", web.Service)
	assert.Equal(t, 4, web.TotalChecks)
	assert.Equal(t, 3, web.Passing)
	assert.Equal(t, 1, web.Failing)
	assert.Equal(t, 75.0, web.AvailabilityPercent)
	assert.Equal(t, "succeeded", web.LastState)
	assert.Equal(t, now.Add(3*time.Minute).Format(time.RFC3339), web.LastUpdated)
}

func TestComputeServiceAvailabilityEmpty(t *testing.T) {
	assert.Nil(t, ComputeServiceAvailability(nil))
	assert.Nil(t, ComputeServiceAvailability([]event.Event{
		sample("web", event.Size, event.StateFailed, time.Now()),
	}))
}
