package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
const DefaultConfigPath = "config/tuning.defaults.json"

// Default values used when a field is omitted from the tuning file.
const (
	DefaultDistanceThreshold = 75.0 // pixels
	DefaultMinCrowdSize      = 3
	DefaultMinCrowdDuration  = 10 // consecutive frames
	DefaultMaxFrameGap       = 1
	DefaultMatchFraction     = 0.7
	DefaultMatchPolicy       = "first"
	DefaultEmptyFramePolicy  = "clear"
	DefaultGroupingMode      = "components"
	DefaultFrameLogInterval  = 10
)

// TuningConfig represents the root configuration for crowd detection.
// Every field is optional; the Get* methods supply defaults so partial
// files are safe.
type TuningConfig struct {
	// Grouping params
	DistanceThreshold *float64 `json:"distance_threshold,omitempty"`
	MinCrowdSize      *int     `json:"min_crowd_size,omitempty"`
	GroupingMode      *string  `json:"grouping_mode,omitempty"` // components | seeded | single_hop

	// Tracking params
	MinCrowdDuration *int     `json:"min_crowd_duration,omitempty"`
	MaxFrameGap      *int     `json:"max_frame_gap,omitempty"`
	MatchFraction    *float64 `json:"match_fraction,omitempty"`
	MatchPolicy      *string  `json:"match_policy,omitempty"`       // first | best
	EmptyFramePolicy *string  `json:"empty_frame_policy,omitempty"` // clear | tolerate

	// Reporting params
	FrameLogInterval *int `json:"frame_log_interval,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field populated
// from the package defaults.
func DefaultTuningConfig() *TuningConfig {
	return &TuningConfig{
		DistanceThreshold: ptrFloat64(DefaultDistanceThreshold),
		MinCrowdSize:      ptrInt(DefaultMinCrowdSize),
		GroupingMode:      ptrString(DefaultGroupingMode),
		MinCrowdDuration:  ptrInt(DefaultMinCrowdDuration),
		MaxFrameGap:       ptrInt(DefaultMaxFrameGap),
		MatchFraction:     ptrFloat64(DefaultMatchFraction),
		MatchPolicy:       ptrString(DefaultMatchPolicy),
		EmptyFramePolicy:  ptrString(DefaultEmptyFramePolicy),
		FrameLogInterval:  ptrInt(DefaultFrameLogInterval),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file must have a .json extension and be under 1MB.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath,
// searching the current directory and its parents up to the repository root.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/crowd/ingest/
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.DistanceThreshold != nil {
		if v := *c.DistanceThreshold; v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("distance_threshold must be a positive number, got %v", v)
		}
	}
	if c.MinCrowdSize != nil && *c.MinCrowdSize < 2 {
		return fmt.Errorf("min_crowd_size must be at least 2, got %d", *c.MinCrowdSize)
	}
	if c.MinCrowdDuration != nil && *c.MinCrowdDuration < 1 {
		return fmt.Errorf("min_crowd_duration must be at least 1, got %d", *c.MinCrowdDuration)
	}
	if c.MaxFrameGap != nil && *c.MaxFrameGap < 1 {
		return fmt.Errorf("max_frame_gap must be at least 1, got %d", *c.MaxFrameGap)
	}
	if c.MatchFraction != nil {
		if v := *c.MatchFraction; v <= 0 || v > 1 || math.IsNaN(v) {
			return fmt.Errorf("match_fraction must be in (0, 1], got %v", v)
		}
	}
	if c.MatchPolicy != nil {
		switch *c.MatchPolicy {
		case "first", "best":
		default:
			return fmt.Errorf("match_policy must be 'first' or 'best', got %q", *c.MatchPolicy)
		}
	}
	if c.EmptyFramePolicy != nil {
		switch *c.EmptyFramePolicy {
		case "clear", "tolerate":
		default:
			return fmt.Errorf("empty_frame_policy must be 'clear' or 'tolerate', got %q", *c.EmptyFramePolicy)
		}
	}
	if c.GroupingMode != nil {
		switch *c.GroupingMode {
		case "components", "seeded", "single_hop":
		default:
			return fmt.Errorf("grouping_mode must be 'components', 'seeded' or 'single_hop', got %q", *c.GroupingMode)
		}
	}
	if c.FrameLogInterval != nil && *c.FrameLogInterval < 0 {
		return fmt.Errorf("frame_log_interval must be non-negative, got %d", *c.FrameLogInterval)
	}
	return nil
}

// GetDistanceThreshold returns the distance_threshold value or the default.
func (c *TuningConfig) GetDistanceThreshold() float64 {
	if c.DistanceThreshold == nil {
		return DefaultDistanceThreshold
	}
	return *c.DistanceThreshold
}

// GetMinCrowdSize returns the min_crowd_size value or the default.
func (c *TuningConfig) GetMinCrowdSize() int {
	if c.MinCrowdSize == nil {
		return DefaultMinCrowdSize
	}
	return *c.MinCrowdSize
}

// GetGroupingMode returns the grouping_mode value or the default.
func (c *TuningConfig) GetGroupingMode() string {
	if c.GroupingMode == nil || *c.GroupingMode == "" {
		return DefaultGroupingMode
	}
	return *c.GroupingMode
}

// GetMinCrowdDuration returns the min_crowd_duration value or the default.
func (c *TuningConfig) GetMinCrowdDuration() int {
	if c.MinCrowdDuration == nil {
		return DefaultMinCrowdDuration
	}
	return *c.MinCrowdDuration
}

// GetMaxFrameGap returns the max_frame_gap value or the default.
func (c *TuningConfig) GetMaxFrameGap() int {
	if c.MaxFrameGap == nil {
		return DefaultMaxFrameGap
	}
	return *c.MaxFrameGap
}

// GetMatchFraction returns the match_fraction value or the default.
func (c *TuningConfig) GetMatchFraction() float64 {
	if c.MatchFraction == nil {
		return DefaultMatchFraction
	}
	return *c.MatchFraction
}

// GetMatchPolicy returns the match_policy value or the default.
func (c *TuningConfig) GetMatchPolicy() string {
	if c.MatchPolicy == nil || *c.MatchPolicy == "" {
		return DefaultMatchPolicy
	}
	return *c.MatchPolicy
}

// GetEmptyFramePolicy returns the empty_frame_policy value or the default.
func (c *TuningConfig) GetEmptyFramePolicy() string {
	if c.EmptyFramePolicy == nil || *c.EmptyFramePolicy == "" {
		return DefaultEmptyFramePolicy
	}
	return *c.EmptyFramePolicy
}

// GetFrameLogInterval returns the frame_log_interval value or the default.
func (c *TuningConfig) GetFrameLogInterval() int {
	if c.FrameLogInterval == nil {
		return DefaultFrameLogInterval
	}
	return *c.FrameLogInterval
}
