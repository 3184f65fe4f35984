package crowd

// TrackerInterface abstracts the crowd tracker so ingest pipelines and the
// monitor can be tested against fakes.
type TrackerInterface interface {
	// ProcessFrame groups one frame's points, updates tracks and returns
	// the events finalized by this frame.
	ProcessFrame(frameNumber int, points []Point) ([]CrowdEvent, error)

	// Flush closes every remaining track and returns the resulting events.
	// A second call returns no events.
	Flush() []CrowdEvent

	// ActiveTracks returns snapshots of the active tracks in creation order.
	ActiveTracks() []*Track

	// LastFrameStats returns statistics for the most recent accepted frame.
	LastFrameStats() FrameStats

	// Events returns every event reported so far, in closing order.
	Events() []CrowdEvent
}

// Verify at compile time that *Tracker implements TrackerInterface.
var _ TrackerInterface = (*Tracker)(nil)
