package crowd

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// Construction
// ---------------------------------------------------------------------------

func TestNewTracker_InvalidConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*TrackerConfig)
	}{
		{"zero distance", func(c *TrackerConfig) { c.DistanceThreshold = 0 }},
		{"negative distance", func(c *TrackerConfig) { c.DistanceThreshold = -1 }},
		{"NaN distance", func(c *TrackerConfig) { c.DistanceThreshold = math.NaN() }},
		{"min size one", func(c *TrackerConfig) { c.MinCrowdSize = 1 }},
		{"zero duration", func(c *TrackerConfig) { c.MinCrowdDuration = 0 }},
		{"zero gap", func(c *TrackerConfig) { c.MaxFrameGap = 0 }},
		{"zero fraction", func(c *TrackerConfig) { c.MatchFraction = 0 }},
		{"unknown policy", func(c *TrackerConfig) { c.MatchPolicy = "nearest" }},
		{"unknown empty policy", func(c *TrackerConfig) { c.EmptyFramePolicy = "" }},
		{"unknown grouping", func(c *TrackerConfig) { c.GroupingMode = "dbscan" }},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := testConfig()
			tt.mutate(&cfg)
			tracker, err := NewTracker(cfg)
			assert.Nil(t, tracker)
			assert.True(t, errors.Is(err, ErrInvalidConfig), "got %v", err)
		})
	}
}

func TestDefaultTrackerConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultTrackerConfig()
	assert.Equal(t, 75.0, cfg.DistanceThreshold)
	assert.Equal(t, 3, cfg.MinCrowdSize)
	assert.Equal(t, 10, cfg.MinCrowdDuration)
	assert.Equal(t, 1, cfg.MaxFrameGap)
	assert.Equal(t, DefaultMatchFraction, cfg.MatchFraction)
	assert.Equal(t, MatchFirst, cfg.MatchPolicy)
	assert.Equal(t, EmptyFrameClear, cfg.EmptyFramePolicy)
	assert.Equal(t, GroupComponents, cfg.GroupingMode)
	require.NoError(t, cfg.Validate())
}

// ---------------------------------------------------------------------------
// End-to-end behaviour
// ---------------------------------------------------------------------------

func TestTracker_EndToEndScenario(t *testing.T) {
	t.Parallel()

	cfg := DefaultTrackerConfig()
	cfg.MinCrowdSize = 3
	cfg.DistanceThreshold = 75
	cfg.MinCrowdDuration = 10
	tracker := mustTracker(cfg)

	crowd := tightCluster(100, 100, 4)
	var events []CrowdEvent
	for frame := 1; frame <= 12; frame++ {
		got, err := tracker.ProcessFrame(frame, crowd)
		require.NoError(t, err)
		events = append(events, got...)
	}
	events = append(events, tracker.Flush()...)

	want := []CrowdEvent{{TrackID: 1, StartFrame: 1, EndFrame: 12, ObservationCount: 12, AverageSize: 4, PeakSize: 4}}
	if diff := cmp.Diff(want, events); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestTracker_GapClosure(t *testing.T) {
	t.Parallel()

	tracker := mustTracker(testConfig())
	crowd := tightCluster(0, 0, 4)

	for frame := 1; frame <= 5; frame++ {
		events, err := tracker.ProcessFrame(frame, crowd)
		require.NoError(t, err)
		assert.Empty(t, events)
	}

	// Frame 6 has people but no cluster: the track closes at this boundary.
	events, err := tracker.ProcessFrame(6, scattered(4))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, 1, events[0].StartFrame)
	assert.Equal(t, 5, events[0].EndFrame)
	assert.Empty(t, tracker.ActiveTracks())

	// The same crowd afterwards is a new, independent track.
	_, err = tracker.ProcessFrame(7, crowd)
	require.NoError(t, err)
	active := tracker.ActiveTracks()
	require.Len(t, active, 1)
	assert.Equal(t, int64(2), active[0].TrackID)
	assert.Equal(t, 7, active[0].FirstFrame())
}

func TestTracker_DurationFilter(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.MinCrowdDuration = 4
	crowd := tightCluster(0, 0, 3)

	run := func(frames int) []CrowdEvent {
		tracker := mustTracker(cfg)
		for frame := 1; frame <= frames; frame++ {
			_, err := tracker.ProcessFrame(frame, crowd)
			require.NoError(t, err)
		}
		return tracker.Flush()
	}

	assert.Empty(t, run(3), "min_duration-1 observations")
	assert.Len(t, run(4), 1, "exactly min_duration observations")
}

func TestTracker_FlushIdempotent(t *testing.T) {
	t.Parallel()

	tracker := mustTracker(testConfig())
	for frame := 1; frame <= 3; frame++ {
		_, err := tracker.ProcessFrame(frame, tightCluster(0, 0, 3))
		require.NoError(t, err)
	}

	assert.Len(t, tracker.Flush(), 1)
	assert.Empty(t, tracker.Flush())
	assert.Len(t, tracker.Events(), 1)
}

func TestTracker_MembershipChurn(t *testing.T) {
	t.Parallel()

	tracker := mustTracker(testConfig())
	crowd := tightCluster(0, 0, 4)

	_, err := tracker.ProcessFrame(1, crowd)
	require.NoError(t, err)

	// People shuffle a little: still the same crowd.
	shifted := []Point{{5, 3}, {12, -4}, {22, 6}, {31, 2}}
	_, err = tracker.ProcessFrame(2, shifted)
	require.NoError(t, err)
	active := tracker.ActiveTracks()
	require.Len(t, active, 1)
	assert.Equal(t, 2, active[0].Len())

	// Someone joins: cardinality changes, so a new track starts and the old
	// one closes.
	_, err = tracker.ProcessFrame(3, tightCluster(0, 0, 5))
	require.NoError(t, err)
	active = tracker.ActiveTracks()
	require.Len(t, active, 1)
	assert.Equal(t, int64(2), active[0].TrackID)
	assert.Equal(t, 5, active[0].LastCluster().Size())
}

func TestTracker_SetGrouper(t *testing.T) {
	t.Parallel()

	tracker := mustTracker(testConfig())
	tracker.SetGrouper(noClusters{})

	_, err := tracker.ProcessFrame(1, tightCluster(0, 0, 5))
	require.NoError(t, err)
	assert.Empty(t, tracker.ActiveTracks())
	assert.Equal(t, 0, tracker.LastFrameStats().ClusterCount)
	assert.Equal(t, 5, tracker.LastFrameStats().PointCount)
}

// noClusters is a grouper that never finds a crowd.
type noClusters struct{}

func (noClusters) Group(points []Point) []Cluster  { return nil }
func (noClusters) GetParams() GroupingParams      { return GroupingParams{} }
func (noClusters) SetParams(params GroupingParams) {}

// ---------------------------------------------------------------------------
// Empty frames
// ---------------------------------------------------------------------------

func TestTracker_EmptyFrameClear(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.MinCrowdDuration = 2
	cfg.MaxFrameGap = 2
	cfg.EmptyFramePolicy = EmptyFrameClear
	tracker := mustTracker(cfg)
	crowd := tightCluster(0, 0, 3)

	for frame := 1; frame <= 3; frame++ {
		_, err := tracker.ProcessFrame(frame, crowd)
		require.NoError(t, err)
	}

	events, err := tracker.ProcessFrame(4, []Point{{0, 0}})
	require.NoError(t, err)
	require.Len(t, events, 1, "a sub-threshold frame closes every track even with gap tolerance")
	assert.Equal(t, 3, events[0].ObservationCount)
	assert.Empty(t, tracker.ActiveTracks())

	stats := tracker.LastFrameStats()
	assert.Equal(t, 1, stats.Closed)
	assert.Equal(t, 0, stats.ClusterCount)

	_, err = tracker.ProcessFrame(5, crowd)
	require.NoError(t, err)
	active := tracker.ActiveTracks()
	require.Len(t, active, 1)
	assert.Equal(t, int64(2), active[0].TrackID)
}

func TestTracker_EmptyFrameTolerate(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.MinCrowdDuration = 2
	cfg.MaxFrameGap = 2
	cfg.EmptyFramePolicy = EmptyFrameTolerate
	tracker := mustTracker(cfg)
	crowd := tightCluster(0, 0, 3)

	for frame := 1; frame <= 3; frame++ {
		_, err := tracker.ProcessFrame(frame, crowd)
		require.NoError(t, err)
	}

	events, err := tracker.ProcessFrame(4, nil)
	require.NoError(t, err)
	assert.Empty(t, events, "one empty frame is tolerated")
	require.Len(t, tracker.ActiveTracks(), 1)

	_, err = tracker.ProcessFrame(5, crowd)
	require.NoError(t, err)
	active := tracker.ActiveTracks()
	require.Len(t, active, 1)
	assert.Equal(t, int64(1), active[0].TrackID)
	assert.Equal(t, 4, active[0].Len())

	frames := make([]int, 0, 4)
	for _, obs := range active[0].Observations {
		frames = append(frames, obs.FrameNumber)
	}
	assert.Equal(t, []int{1, 2, 3, 5}, frames)

	events = tracker.Flush()
	require.Len(t, events, 1)
	assert.Equal(t, 1, events[0].StartFrame)
	assert.Equal(t, 5, events[0].EndFrame)
}

func TestTracker_EmptyFrameTolerateSingleGap(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.MinCrowdDuration = 2
	cfg.EmptyFramePolicy = EmptyFrameTolerate
	tracker := mustTracker(cfg)

	for frame := 1; frame <= 2; frame++ {
		_, err := tracker.ProcessFrame(frame, tightCluster(0, 0, 3))
		require.NoError(t, err)
	}

	// With a gap tolerance of 1 a missed frame is already fatal.
	events, err := tracker.ProcessFrame(3, nil)
	require.NoError(t, err)
	assert.Len(t, events, 1)
	assert.Empty(t, tracker.ActiveTracks())
}

// ---------------------------------------------------------------------------
// Association
// ---------------------------------------------------------------------------

// twoCandidateFrames sets up two tracks (ids 1 and 2) in frame 1 and a
// frame-2 cluster that is similar to both at a 0.6 match fraction, with
// track 2 the closer fit.
func twoCandidateFrames() (frame1, frame2 []Point) {
	a := []Point{{0, 0}, {0, 10}, {0, 20}}
	b := []Point{{140, 0}, {140, 10}, {140, 20}}
	c := []Point{{70, 0}, {70, 10}, {80, 20}}
	return concat(a, b), c
}

func TestTracker_FirstMatch(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.MatchFraction = 0.6
	tracker := mustTracker(cfg)
	frame1, frame2 := twoCandidateFrames()

	_, err := tracker.ProcessFrame(1, frame1)
	require.NoError(t, err)
	require.Len(t, tracker.ActiveTracks(), 2)

	_, err = tracker.ProcessFrame(2, frame2)
	require.NoError(t, err)
	active := tracker.ActiveTracks()
	require.Len(t, active, 1)
	assert.Equal(t, int64(1), active[0].TrackID, "first similar track in creation order wins")
}

func TestTracker_BestMatch(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.MatchFraction = 0.6
	cfg.MatchPolicy = MatchBest
	tracker := mustTracker(cfg)
	frame1, frame2 := twoCandidateFrames()

	_, err := tracker.ProcessFrame(1, frame1)
	require.NoError(t, err)
	_, err = tracker.ProcessFrame(2, frame2)
	require.NoError(t, err)

	active := tracker.ActiveTracks()
	require.Len(t, active, 1)
	assert.Equal(t, int64(2), active[0].TrackID, "highest similarity score wins")
}

func TestTracker_OneObservationPerFrame(t *testing.T) {
	t.Parallel()

	tracker := mustTracker(testConfig())

	_, err := tracker.ProcessFrame(1, []Point{{100, 0}, {100, 10}, {100, 20}})
	require.NoError(t, err)

	// Both frame-2 clusters resemble track 1; only the first may extend it.
	left := []Point{{40, 0}, {40, 10}, {40, 20}}
	right := []Point{{160, 0}, {160, 10}, {160, 20}}
	_, err = tracker.ProcessFrame(2, concat(left, right))
	require.NoError(t, err)

	active := tracker.ActiveTracks()
	require.Len(t, active, 2)
	assert.Equal(t, int64(1), active[0].TrackID)
	assert.Equal(t, 2, active[0].Len())
	assert.Equal(t, []int{1, 2}, []int{active[0].Observations[0].FrameNumber, active[0].Observations[1].FrameNumber})
	assert.Equal(t, int64(2), active[1].TrackID)
	assert.Equal(t, 1, active[1].Len())

	stats := tracker.LastFrameStats()
	assert.Equal(t, 1, stats.Matched)
	assert.Equal(t, 1, stats.Created)
	assert.Equal(t, 6, stats.PersonsInCrowds)
}

// ---------------------------------------------------------------------------
// Input validation
// ---------------------------------------------------------------------------

func TestTracker_OutOfOrderFrames(t *testing.T) {
	t.Parallel()

	tracker := mustTracker(testConfig())
	_, err := tracker.ProcessFrame(5, tightCluster(0, 0, 3))
	require.NoError(t, err)

	for _, frame := range []int{5, 3, 0, -1} {
		_, err := tracker.ProcessFrame(frame, tightCluster(0, 0, 3))
		require.Error(t, err, "frame %d", frame)
		assert.True(t, errors.Is(err, ErrFrameOrder))

		var orderErr *FrameOrderError
		require.True(t, errors.As(err, &orderErr))
		assert.Equal(t, 5, orderErr.Previous)
		assert.Equal(t, frame, orderErr.Got)
	}

	assert.Equal(t, 5, tracker.LastFrame())
	require.Len(t, tracker.ActiveTracks(), 1)
	assert.Equal(t, 1, tracker.ActiveTracks()[0].Len())
}

func TestTracker_FrameBelowOne(t *testing.T) {
	t.Parallel()

	tracker := mustTracker(testConfig())
	_, err := tracker.ProcessFrame(0, nil)
	assert.True(t, errors.Is(err, ErrFrameOrder))
	assert.Contains(t, err.Error(), "below 1")
}

func TestTracker_NonFinitePointsRejectFrame(t *testing.T) {
	t.Parallel()

	tracker := mustTracker(testConfig())
	_, err := tracker.ProcessFrame(1, tightCluster(0, 0, 3))
	require.NoError(t, err)

	bad := []Point{{0, 0}, {10, 0}, {math.NaN(), 0}}
	_, err = tracker.ProcessFrame(2, bad)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidPoint))

	var pointErr *PointError
	require.True(t, errors.As(err, &pointErr))
	assert.Equal(t, 2, pointErr.Frame)
	assert.Equal(t, 2, pointErr.Index)

	_, err = tracker.ProcessFrame(2, []Point{{math.Inf(1), 0}})
	assert.True(t, errors.Is(err, ErrInvalidPoint))

	// The rejected frame number is still available.
	_, err = tracker.ProcessFrame(2, tightCluster(0, 0, 3))
	require.NoError(t, err)
	active := tracker.ActiveTracks()
	require.Len(t, active, 1)
	assert.Equal(t, 2, active[0].Len())
}

// ---------------------------------------------------------------------------
// Snapshots and statistics
// ---------------------------------------------------------------------------

func TestTracker_ActiveTracksAreSnapshots(t *testing.T) {
	t.Parallel()

	tracker := mustTracker(testConfig())
	_, err := tracker.ProcessFrame(1, tightCluster(0, 0, 3))
	require.NoError(t, err)

	snapshot := tracker.ActiveTracks()
	snapshot[0].Observations = nil
	snapshot[0].TrackID = 99

	fresh := tracker.ActiveTracks()
	assert.Equal(t, int64(1), fresh[0].TrackID)
	assert.Equal(t, 1, fresh[0].Len())
	assert.Equal(t, TrackActive, fresh[0].State)
}

func TestTracker_FrameStats(t *testing.T) {
	t.Parallel()

	tracker := mustTracker(testConfig())
	points := concat(tightCluster(0, 0, 3), tightCluster(500, 500, 4), scattered(2))

	_, err := tracker.ProcessFrame(1, points)
	require.NoError(t, err)

	want := FrameStats{FrameNumber: 1, PointCount: 9, ClusterCount: 2, PersonsInCrowds: 7, ActiveTracks: 2, Created: 2}
	if diff := cmp.Diff(want, tracker.LastFrameStats()); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}
}

func TestTracker_ConcurrentReaders(t *testing.T) {
	t.Parallel()

	tracker := mustTracker(testConfig())
	var wg sync.WaitGroup
	done := make(chan struct{})

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
					_ = tracker.ActiveTracks()
					_ = tracker.LastFrameStats()
					_ = tracker.Events()
				}
			}
		}()
	}

	for frame := 1; frame <= 200; frame++ {
		points := tightCluster(float64(frame%3)*300, 0, 3+frame%2)
		_, err := tracker.ProcessFrame(frame, points)
		require.NoError(t, err)
	}
	close(done)
	wg.Wait()
	tracker.Flush()
}
