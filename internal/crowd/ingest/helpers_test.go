package ingest

import (
	"context"
	"sync"

	"github.com/banshee-data/crowd.report/internal/crowd"
)

// recorder is a FrameHandler that keeps every frame it receives.
type recorder struct {
	mu     sync.Mutex
	frames []Frame
}

func (r *recorder) HandleFrame(_ context.Context, f Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, f)
	return nil
}

func (r *recorder) Frames() []Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Frame(nil), r.frames...)
}

// group returns n points 10 px apart starting at (x, y).
func group(x, y float64, n int) []crowd.Point {
	pts := make([]crowd.Point, n)
	for i := range pts {
		pts[i] = crowd.Point{X: x + 10*float64(i), Y: y}
	}
	return pts
}

func newTestTracker(minDuration int) *crowd.Tracker {
	cfg := crowd.DefaultTrackerConfig()
	cfg.MinCrowdDuration = minDuration
	tracker, err := crowd.NewTracker(cfg)
	if err != nil {
		panic(err)
	}
	return tracker
}
