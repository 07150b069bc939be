package metrics

import (
	"math"
	"sort"
	"time"

	"servicemon/internal/event"
)

// ServiceAvailability summarises health of a monitored service from its
// existence and connectivity events.
type ServiceAvailability struct {
	Service             string  `json:"service"`
	AvailabilityPercent float64 `json:"availability_percent"`
	TotalChecks         int     `json:"total_checks"`
	Passing             int     `json:"passing"`
	Failing             int     `json:"failing"`
	LastState           string  `json:"last_state,omitempty"`
	LastUpdated         string  `json:"last_updated,omitempty"`
}

// availabilityKinds are the event kinds that speak to whether the
// monitored target was reachable at all.
var availabilityKinds = map[event.Kind]struct{}{
	event.Nonexist:   {},
	event.Connection: {},
	event.Icmp:       {},
}

// ComputeServiceAvailability aggregates availability statistics per
// service from event history.
func ComputeServiceAvailability(events []event.Event) []ServiceAvailability {
	type acc struct {
		passing   int
		failing   int
		lastState string
		lastTime  time.Time
	}
	state := make(map[string]*acc)
	for _, e := range events {
		if _, ok := availabilityKinds[e.Kind]; !ok {
			continue
		}
		target := state[e.Service]
		if target == nil {
			target = &acc{}
			state[e.Service] = target
		}
		switch e.State {
		case event.StateSucceeded:
			target.passing++
		case event.StateFailed:
			target.failing++
		default:
			continue
		}
		target.lastState = string(e.State)
		target.lastTime = e.Time
	}
	if len(state) == 0 {
		return nil
	}

	keys := make([]string, 0, len(state))
	for k := range state {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	results := make([]ServiceAvailability, 0, len(keys))
	for _, name := range keys {
		data := state[name]
		total := data.passing + data.failing
		availability := 0.0
		if total > 0 {
			availability = float64(data.passing) / float64(total) * 100
		}

		result := ServiceAvailability{
			Service:             name,
			AvailabilityPercent: round2(availability),
			TotalChecks:         total,
			Passing:             data.passing,
			Failing:             data.failing,
			LastState:           data.lastState,
		}
		if !data.lastTime.IsZero() {
			result.LastUpdated = data.lastTime.UTC().Format(time.RFC3339)
		}
		results = append(results, result)
	}
	return results
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
