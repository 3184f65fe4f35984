package crowd

import "fmt"

// Point is a detected person's position in pixel space.
type Point struct {
	X, Y float64
}

// String implements fmt.Stringer.
func (p Point) String() string {
	return fmt.Sprintf("(%g, %g)", p.X, p.Y)
}

// PointSet is one frame's detections, in detector order.
type PointSet []Point

// Cluster is a group of mutually proximate points within one frame.
// Indices refer to the frame's PointSet; Points holds copies of the members
// so a cluster stays valid after the caller reuses its frame buffer.
type Cluster struct {
	Indices []int
	Points  []Point
}

// Size returns the number of members.
func (c Cluster) Size() int {
	return len(c.Points)
}

// Centroid returns the mean member position.
func (c Cluster) Centroid() Point {
	if len(c.Points) == 0 {
		return Point{}
	}
	var sumX, sumY float64
	for _, p := range c.Points {
		sumX += p.X
		sumY += p.Y
	}
	n := float64(len(c.Points))
	return Point{X: sumX / n, Y: sumY / n}
}

// Observation is a cluster matched to a track in a given frame.
type Observation struct {
	FrameNumber int
	Cluster     Cluster
}

// TrackState represents the lifecycle state of a crowd track.
type TrackState string

const (
	TrackActive TrackState = "active" // Observed, awaiting the next frame
	TrackClosed TrackState = "closed" // No longer receiving observations
)

// Track is a crowd candidate followed across consecutive frames.
type Track struct {
	TrackID      int64
	State        TrackState
	Observations []Observation

	// extendedAt is the frame in which the track last received an
	// observation during the current ProcessFrame call.
	extendedAt int
}

// Len returns the number of observations.
func (t *Track) Len() int {
	return len(t.Observations)
}

// FirstFrame returns the frame number of the first observation.
func (t *Track) FirstFrame() int {
	if len(t.Observations) == 0 {
		return 0
	}
	return t.Observations[0].FrameNumber
}

// LastFrame returns the frame number of the most recent observation.
func (t *Track) LastFrame() int {
	if len(t.Observations) == 0 {
		return 0
	}
	return t.Observations[len(t.Observations)-1].FrameNumber
}

// LastCluster returns the most recently observed cluster.
func (t *Track) LastCluster() Cluster {
	if len(t.Observations) == 0 {
		return Cluster{}
	}
	return t.Observations[len(t.Observations)-1].Cluster
}

// clone returns a copy that shares no slices with t.
func (t *Track) clone() *Track {
	c := &Track{
		TrackID:      t.TrackID,
		State:        t.State,
		Observations: make([]Observation, len(t.Observations)),
		extendedAt:   t.extendedAt,
	}
	copy(c.Observations, t.Observations)
	return c
}

// CrowdEvent is a finalized crowd episode.
// StartFrame and AverageSize are the reported record; the remaining fields
// summarise the track for persistence and extended exports.
type CrowdEvent struct {
	TrackID          int64 `json:"track_id"`
	StartFrame       int   `json:"start_frame"`
	EndFrame         int   `json:"end_frame"`
	ObservationCount int   `json:"observation_count"`
	AverageSize      int   `json:"average_size"`
	PeakSize         int   `json:"peak_size"`
}

// FrameStats captures what a single ProcessFrame call did.
type FrameStats struct {
	FrameNumber     int
	PointCount      int
	ClusterCount    int
	PersonsInCrowds int // Unique points belonging to any cluster
	ActiveTracks    int // Active tracks after the frame was processed
	Matched         int
	Created         int
	Closed          int
}
