package crowd

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// EventReporter applies the duration filter to closed tracks and keeps the
// resulting events in closing order.
type EventReporter struct {
	minCrowdDuration int
	events           []CrowdEvent
}

// NewEventReporter creates a reporter that accepts tracks with at least
// minCrowdDuration observations.
func NewEventReporter(minCrowdDuration int) *EventReporter {
	return &EventReporter{minCrowdDuration: minCrowdDuration}
}

// MaybeReport returns the event summarising track when it has enough
// observations. It does not record the event.
func (r *EventReporter) MaybeReport(track *Track) (CrowdEvent, bool) {
	if track == nil || track.Len() == 0 || track.Len() < r.minCrowdDuration {
		return CrowdEvent{}, false
	}

	sizes := make([]float64, track.Len())
	peak := 0
	for i, obs := range track.Observations {
		size := obs.Cluster.Size()
		sizes[i] = float64(size)
		if size > peak {
			peak = size
		}
	}

	return CrowdEvent{
		TrackID:          track.TrackID,
		StartFrame:       track.FirstFrame(),
		EndFrame:         track.LastFrame(),
		ObservationCount: track.Len(),
		AverageSize:      int(math.Floor(stat.Mean(sizes, nil))),
		PeakSize:         peak,
	}, true
}

// File records the event for track, if any, and returns it.
func (r *EventReporter) File(track *Track) (CrowdEvent, bool) {
	event, ok := r.MaybeReport(track)
	if ok {
		r.events = append(r.events, event)
	}
	return event, ok
}

// Events returns a copy of every event filed so far, in closing order.
func (r *EventReporter) Events() []CrowdEvent {
	out := make([]CrowdEvent, len(r.events))
	copy(out, r.events)
	return out
}

// Len returns the number of filed events.
func (r *EventReporter) Len() int {
	return len(r.events)
}
