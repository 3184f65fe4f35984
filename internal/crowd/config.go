package crowd

import (
	"fmt"
	"math"

	"github.com/banshee-data/crowd.report/internal/config"
)

// MatchPolicy selects how a cluster is associated with an existing track.
type MatchPolicy string

const (
	// MatchFirst takes the first similar track in creation order.
	MatchFirst MatchPolicy = "first"
	// MatchBest takes the eligible track with the highest similarity score.
	MatchBest MatchPolicy = "best"
)

// EmptyFramePolicy decides what a frame with fewer than MinCrowdSize points
// does to the active tracks.
type EmptyFramePolicy string

const (
	// EmptyFrameClear closes every active track immediately.
	EmptyFrameClear EmptyFramePolicy = "clear"
	// EmptyFrameTolerate treats the frame as one with no clusters, so only
	// the gap rule closes tracks.
	EmptyFrameTolerate EmptyFramePolicy = "tolerate"
)

// GroupingMode selects the proximity grouping algorithm.
type GroupingMode string

const (
	// GroupComponents returns every connected component of at least
	// MinCrowdSize points.
	GroupComponents GroupingMode = "components"
	// GroupSeeded additionally requires a member with MinCrowdSize-1 direct
	// neighbours.
	GroupSeeded GroupingMode = "seeded"
	// GroupSingleHop groups a point with its direct unassigned neighbours
	// only, without transitive closure.
	GroupSingleHop GroupingMode = "single_hop"
)

// TrackerConfig holds configuration parameters for the crowd tracker.
type TrackerConfig struct {
	DistanceThreshold float64 // Pixel distance below which two people are neighbours
	MinCrowdSize      int     // Minimum cluster cardinality
	MinCrowdDuration  int     // Minimum observations for a track to be reported
	MaxFrameGap       int     // Maximum frames between observations of one track
	MatchFraction     float64 // Fraction of members that must have a close counterpart
	MatchPolicy       MatchPolicy
	EmptyFramePolicy  EmptyFramePolicy
	GroupingMode      GroupingMode
}

// DefaultTrackerConfig returns the reference configuration: 75 px,
// crowds of 3 lasting 10 consecutive frames.
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfigFromTuning(config.DefaultTuningConfig())
}

// TrackerConfigFromTuning builds a TrackerConfig from a loaded TuningConfig.
func TrackerConfigFromTuning(cfg *config.TuningConfig) TrackerConfig {
	return TrackerConfig{
		DistanceThreshold: cfg.GetDistanceThreshold(),
		MinCrowdSize:      cfg.GetMinCrowdSize(),
		MinCrowdDuration:  cfg.GetMinCrowdDuration(),
		MaxFrameGap:       cfg.GetMaxFrameGap(),
		MatchFraction:     cfg.GetMatchFraction(),
		MatchPolicy:       MatchPolicy(cfg.GetMatchPolicy()),
		EmptyFramePolicy:  EmptyFramePolicy(cfg.GetEmptyFramePolicy()),
		GroupingMode:      GroupingMode(cfg.GetGroupingMode()),
	}
}

// Validate reports the first unusable parameter, wrapped in ErrInvalidConfig.
func (c TrackerConfig) Validate() error {
	if c.DistanceThreshold <= 0 || math.IsNaN(c.DistanceThreshold) || math.IsInf(c.DistanceThreshold, 0) {
		return fmt.Errorf("%w: distance threshold must be positive, got %v", ErrInvalidConfig, c.DistanceThreshold)
	}
	if c.MinCrowdSize < 2 {
		return fmt.Errorf("%w: min crowd size must be at least 2, got %d", ErrInvalidConfig, c.MinCrowdSize)
	}
	if c.MinCrowdDuration < 1 {
		return fmt.Errorf("%w: min crowd duration must be at least 1, got %d", ErrInvalidConfig, c.MinCrowdDuration)
	}
	if c.MaxFrameGap < 1 {
		return fmt.Errorf("%w: max frame gap must be at least 1, got %d", ErrInvalidConfig, c.MaxFrameGap)
	}
	if c.MatchFraction <= 0 || c.MatchFraction > 1 || math.IsNaN(c.MatchFraction) {
		return fmt.Errorf("%w: match fraction must be in (0, 1], got %v", ErrInvalidConfig, c.MatchFraction)
	}
	switch c.MatchPolicy {
	case MatchFirst, MatchBest:
	default:
		return fmt.Errorf("%w: unknown match policy %q", ErrInvalidConfig, c.MatchPolicy)
	}
	switch c.EmptyFramePolicy {
	case EmptyFrameClear, EmptyFrameTolerate:
	default:
		return fmt.Errorf("%w: unknown empty frame policy %q", ErrInvalidConfig, c.EmptyFramePolicy)
	}
	switch c.GroupingMode {
	case GroupComponents, GroupSeeded, GroupSingleHop:
	default:
		return fmt.Errorf("%w: unknown grouping mode %q", ErrInvalidConfig, c.GroupingMode)
	}
	return nil
}
