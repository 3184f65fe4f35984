package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/banshee-data/crowd.report/internal/crowd"
	"github.com/banshee-data/crowd.report/internal/monitoring"
)

// EventSink receives crowd events as soon as the tracker finalizes them.
type EventSink func(ctx context.Context, events []crowd.CrowdEvent) error

// SampleSink receives frame-log samples as they are taken.
type SampleSink func(ctx context.Context, sample crowd.FrameSample) error

// PipelineConfig wires a tracker to its downstream consumers.
type PipelineConfig struct {
	Tracker          crowd.TrackerInterface
	FrameLogInterval int
	OnEvents         EventSink
	OnSample         SampleSink
}

// PipelineStats counts frames seen by a Pipeline.
type PipelineStats struct {
	Accepted int `json:"accepted"`
	Rejected int `json:"rejected"`
	Events   int `json:"events"`
}

// Pipeline is a FrameHandler that drives a crowd tracker. Frames the
// tracker rejects (out of order or with non-finite coordinates) are logged
// and skipped so a live stream keeps flowing.
type Pipeline struct {
	mu       sync.Mutex
	tracker  crowd.TrackerInterface
	frameLog *crowd.FrameLogger
	onEvents EventSink
	onSample SampleSink
	stats    PipelineStats
	closed   bool
}

// NewPipeline creates a pipeline around cfg.Tracker.
func NewPipeline(cfg PipelineConfig) (*Pipeline, error) {
	if cfg.Tracker == nil {
		return nil, errors.New("pipeline requires a tracker")
	}
	return &Pipeline{
		tracker:  cfg.Tracker,
		frameLog: crowd.NewFrameLogger(cfg.FrameLogInterval),
		onEvents: cfg.OnEvents,
		onSample: cfg.OnSample,
	}, nil
}

// HandleFrame implements FrameHandler.
func (p *Pipeline) HandleFrame(ctx context.Context, frame Frame) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return errors.New("pipeline closed")
	}

	events, err := p.tracker.ProcessFrame(frame.FrameNumber, frame.Points)
	if err != nil {
		if errors.Is(err, crowd.ErrFrameOrder) || errors.Is(err, crowd.ErrInvalidPoint) {
			p.stats.Rejected++
			monitoring.Logf("ingest: dropping frame %d: %v", frame.FrameNumber, err)
			return nil
		}
		return err
	}
	p.stats.Accepted++

	stats := p.tracker.LastFrameStats()
	monitoring.Verbosef("ingest: frame %d points=%d clusters=%d active=%d",
		stats.FrameNumber, stats.PointCount, stats.ClusterCount, stats.ActiveTracks)

	if sample, ok := p.frameLog.Observe(stats); ok {
		monitoring.Logf("Frame %d: %d persons in crowds", sample.FrameNumber, sample.PersonsInCrowds)
		if p.onSample != nil {
			if err := p.onSample(ctx, sample); err != nil {
				return fmt.Errorf("sample sink: %w", err)
			}
		}
	}
	return p.emit(ctx, events)
}

// Close flushes the tracker and emits the remaining events. Later calls
// are no-ops.
func (p *Pipeline) Close(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	return p.emit(ctx, p.tracker.Flush())
}

// Samples returns the frame-log samples taken so far.
func (p *Pipeline) Samples() []crowd.FrameSample {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.frameLog.Samples()
}

// Stats returns a snapshot of the pipeline counters.
func (p *Pipeline) Stats() PipelineStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

func (p *Pipeline) emit(ctx context.Context, events []crowd.CrowdEvent) error {
	if len(events) == 0 {
		return nil
	}
	p.stats.Events += len(events)
	for _, e := range events {
		monitoring.Verbosef("ingest: crowd event track=%d start=%d end=%d avg=%d",
			e.TrackID, e.StartFrame, e.EndFrame, e.AverageSize)
	}
	if p.onEvents == nil {
		return nil
	}
	if err := p.onEvents(ctx, events); err != nil {
		return fmt.Errorf("event sink: %w", err)
	}
	return nil
}
