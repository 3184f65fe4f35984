package crowd

import "sync"

// Tracker follows crowd clusters across frames.
//
// Frames must arrive with strictly increasing frame numbers. One goroutine
// feeds frames; snapshot accessors may be called concurrently.
type Tracker struct {
	Tracks      []*Track // Active tracks, creation order
	NextTrackID int64
	Config      TrackerConfig

	grouper   GrouperInterface
	reporter  *EventReporter
	lastFrame int
	lastStats FrameStats

	mu sync.RWMutex
}

// NewTracker creates a tracker after validating cfg.
func NewTracker(cfg TrackerConfig) (*Tracker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Tracker{
		NextTrackID: 1,
		Config:      cfg,
		grouper:     NewProximityGrouper(cfg.DistanceThreshold, cfg.MinCrowdSize, cfg.GroupingMode),
		reporter:    NewEventReporter(cfg.MinCrowdDuration),
	}, nil
}

// SetGrouper replaces the proximity grouper.
func (t *Tracker) SetGrouper(g GrouperInterface) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.grouper = g
}

// ProcessFrame groups points into clusters, extends or creates tracks, and
// closes tracks that can no longer be extended. It returns the events
// finalized by this frame.
//
// A frame with a non-finite coordinate is rejected as a whole: tracker state
// is unchanged and the frame number is not consumed.
func (t *Tracker) ProcessFrame(frameNumber int, points []Point) ([]CrowdEvent, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if frameNumber < 1 || frameNumber <= t.lastFrame {
		return nil, &FrameOrderError{Previous: t.lastFrame, Got: frameNumber}
	}
	for i, p := range points {
		if !isFinite(p) {
			return nil, &PointError{Frame: frameNumber, Index: i, Point: p}
		}
	}
	t.lastFrame = frameNumber

	stats := FrameStats{FrameNumber: frameNumber, PointCount: len(points)}

	if len(points) < t.Config.MinCrowdSize {
		var events []CrowdEvent
		if t.Config.EmptyFramePolicy == EmptyFrameClear {
			stats.Closed = len(t.Tracks)
			events = t.closeAll()
		} else {
			stats.Closed, events = t.closeStale(frameNumber)
		}
		stats.ActiveTracks = len(t.Tracks)
		t.lastStats = stats
		return events, nil
	}

	clusters := t.grouper.Group(points)
	stats.ClusterCount = len(clusters)

	for _, cluster := range clusters {
		stats.PersonsInCrowds += cluster.Size()

		if track := t.associate(frameNumber, cluster); track != nil {
			track.Observations = append(track.Observations, Observation{FrameNumber: frameNumber, Cluster: cluster})
			track.extendedAt = frameNumber
			stats.Matched++
			continue
		}

		t.Tracks = append(t.Tracks, &Track{
			TrackID:      t.NextTrackID,
			State:        TrackActive,
			Observations: []Observation{{FrameNumber: frameNumber, Cluster: cluster}},
			extendedAt:   frameNumber,
		})
		t.NextTrackID++
		stats.Created++
	}

	var events []CrowdEvent
	stats.Closed, events = t.closeStale(frameNumber)
	stats.ActiveTracks = len(t.Tracks)
	t.lastStats = stats

	return events, nil
}

// associate returns the track cluster continues, or nil. A track is eligible
// when it was last observed at most MaxFrameGap frames ago and has not
// already been extended in this frame.
func (t *Tracker) associate(frameNumber int, cluster Cluster) *Track {
	var best *Track
	bestScore := 0.0

	for _, track := range t.Tracks {
		if track.extendedAt == frameNumber || frameNumber-track.LastFrame() > t.Config.MaxFrameGap {
			continue
		}
		previous := track.LastCluster().Points
		if !SimilarWithFraction(cluster.Points, previous, t.Config.DistanceThreshold, t.Config.MatchFraction) {
			continue
		}
		if t.Config.MatchPolicy != MatchBest {
			return track
		}
		if score := SimilarityScore(cluster.Points, previous, t.Config.DistanceThreshold); best == nil || score > bestScore {
			best, bestScore = track, score
		}
	}

	return best
}

// closeStale closes every track that cannot be extended at the next frame,
// i.e. last observed MaxFrameGap or more frames before frameNumber.
func (t *Tracker) closeStale(frameNumber int) (int, []CrowdEvent) {
	var events []CrowdEvent
	closed := 0
	kept := t.Tracks[:0]

	for _, track := range t.Tracks {
		if frameNumber-track.LastFrame() < t.Config.MaxFrameGap {
			kept = append(kept, track)
			continue
		}
		closed++
		if event, ok := t.close(track); ok {
			events = append(events, event)
		}
	}

	for i := len(kept); i < len(t.Tracks); i++ {
		t.Tracks[i] = nil
	}
	t.Tracks = kept
	return closed, events
}

// closeAll closes every active track in creation order.
func (t *Tracker) closeAll() []CrowdEvent {
	var events []CrowdEvent
	for _, track := range t.Tracks {
		if event, ok := t.close(track); ok {
			events = append(events, event)
		}
	}
	t.Tracks = nil
	return events
}

func (t *Tracker) close(track *Track) (CrowdEvent, bool) {
	track.State = TrackClosed
	return t.reporter.File(track)
}

// Flush closes all remaining tracks at end of stream and returns the events
// they produce. Calling it again returns nothing until new frames arrive.
func (t *Tracker) Flush() []CrowdEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closeAll()
}

// ActiveTracks returns copies of the active tracks in creation order.
func (t *Tracker) ActiveTracks() []*Track {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]*Track, len(t.Tracks))
	for i, track := range t.Tracks {
		out[i] = track.clone()
	}
	return out
}

// LastFrameStats returns statistics for the most recent accepted frame.
func (t *Tracker) LastFrameStats() FrameStats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lastStats
}

// LastFrame returns the most recently accepted frame number, or 0.
func (t *Tracker) LastFrame() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lastFrame
}

// Events returns every event reported so far, in closing order.
func (t *Tracker) Events() []CrowdEvent {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.reporter.Events()
}
