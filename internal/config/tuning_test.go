package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultTuningConfig(t *testing.T) {
	cfg := DefaultTuningConfig()

	if cfg.DistanceThreshold == nil || *cfg.DistanceThreshold != 75 {
		t.Errorf("Expected DistanceThreshold 75, got %v", cfg.DistanceThreshold)
	}
	if cfg.MinCrowdSize == nil || *cfg.MinCrowdSize != 3 {
		t.Errorf("Expected MinCrowdSize 3, got %v", cfg.MinCrowdSize)
	}
	if cfg.MinCrowdDuration == nil || *cfg.MinCrowdDuration != 10 {
		t.Errorf("Expected MinCrowdDuration 10, got %v", cfg.MinCrowdDuration)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestEmptyTuningConfigGetters(t *testing.T) {
	cfg := EmptyTuningConfig()

	if got := cfg.GetDistanceThreshold(); got != DefaultDistanceThreshold {
		t.Errorf("GetDistanceThreshold() = %v, want %v", got, DefaultDistanceThreshold)
	}
	if got := cfg.GetMinCrowdSize(); got != DefaultMinCrowdSize {
		t.Errorf("GetMinCrowdSize() = %d, want %d", got, DefaultMinCrowdSize)
	}
	if got := cfg.GetMinCrowdDuration(); got != DefaultMinCrowdDuration {
		t.Errorf("GetMinCrowdDuration() = %d, want %d", got, DefaultMinCrowdDuration)
	}
	if got := cfg.GetMaxFrameGap(); got != DefaultMaxFrameGap {
		t.Errorf("GetMaxFrameGap() = %d, want %d", got, DefaultMaxFrameGap)
	}
	if got := cfg.GetMatchFraction(); got != DefaultMatchFraction {
		t.Errorf("GetMatchFraction() = %v, want %v", got, DefaultMatchFraction)
	}
	if got := cfg.GetMatchPolicy(); got != "first" {
		t.Errorf("GetMatchPolicy() = %q, want first", got)
	}
	if got := cfg.GetEmptyFramePolicy(); got != "clear" {
		t.Errorf("GetEmptyFramePolicy() = %q, want clear", got)
	}
	if got := cfg.GetGroupingMode(); got != "components" {
		t.Errorf("GetGroupingMode() = %q, want components", got)
	}
	if got := cfg.GetFrameLogInterval(); got != DefaultFrameLogInterval {
		t.Errorf("GetFrameLogInterval() = %d, want %d", got, DefaultFrameLogInterval)
	}
}

func TestLoadTuningConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "crowd.json")

	testJSON := `{
  "distance_threshold": 50,
  "min_crowd_size": 4,
  "min_crowd_duration": 5,
  "match_policy": "best",
  "empty_frame_policy": "tolerate",
  "max_frame_gap": 2
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadTuningConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if got := cfg.GetDistanceThreshold(); got != 50 {
		t.Errorf("GetDistanceThreshold() = %v, want 50", got)
	}
	if got := cfg.GetMinCrowdSize(); got != 4 {
		t.Errorf("GetMinCrowdSize() = %d, want 4", got)
	}
	if got := cfg.GetMinCrowdDuration(); got != 5 {
		t.Errorf("GetMinCrowdDuration() = %d, want 5", got)
	}
	if got := cfg.GetMatchPolicy(); got != "best" {
		t.Errorf("GetMatchPolicy() = %q, want best", got)
	}
	if got := cfg.GetEmptyFramePolicy(); got != "tolerate" {
		t.Errorf("GetEmptyFramePolicy() = %q, want tolerate", got)
	}
	if got := cfg.GetMaxFrameGap(); got != 2 {
		t.Errorf("GetMaxFrameGap() = %d, want 2", got)
	}
	// Omitted fields fall back to defaults
	if got := cfg.GetGroupingMode(); got != DefaultGroupingMode {
		t.Errorf("GetGroupingMode() = %q, want %q", got, DefaultGroupingMode)
	}
}

func TestLoadTuningConfig_Errors(t *testing.T) {
	tmpDir := t.TempDir()

	write := func(name, body string) string {
		p := filepath.Join(tmpDir, name)
		if err := os.WriteFile(p, []byte(body), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
		return p
	}

	tests := []struct {
		name    string
		path    string
		wantErr string
	}{
		{"wrong extension", write("crowd.yaml", "{}"), ".json extension"},
		{"missing file", filepath.Join(tmpDir, "missing.json"), "failed to stat"},
		{"bad json", write("bad.json", "{not json"), "failed to parse"},
		{"invalid value", write("invalid.json", `{"min_crowd_size": 1}`), "min_crowd_size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadTuningConfig(tt.path)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     TuningConfig
		wantErr bool
	}{
		{"empty", TuningConfig{}, false},
		{"zero distance", TuningConfig{DistanceThreshold: ptrFloat64(0)}, true},
		{"negative distance", TuningConfig{DistanceThreshold: ptrFloat64(-5)}, true},
		{"min size one", TuningConfig{MinCrowdSize: ptrInt(1)}, true},
		{"min size two", TuningConfig{MinCrowdSize: ptrInt(2)}, false},
		{"zero duration", TuningConfig{MinCrowdDuration: ptrInt(0)}, true},
		{"zero gap", TuningConfig{MaxFrameGap: ptrInt(0)}, true},
		{"fraction above one", TuningConfig{MatchFraction: ptrFloat64(1.5)}, true},
		{"fraction one", TuningConfig{MatchFraction: ptrFloat64(1)}, false},
		{"unknown policy", TuningConfig{MatchPolicy: ptrString("greedy")}, true},
		{"unknown empty policy", TuningConfig{EmptyFramePolicy: ptrString("skip")}, true},
		{"unknown grouping", TuningConfig{GroupingMode: ptrString("dbscan")}, true},
		{"single hop grouping", TuningConfig{GroupingMode: ptrString("single_hop")}, false},
		{"negative log interval", TuningConfig{FrameLogInterval: ptrInt(-1)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMustLoadDefaultConfig(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	if got := cfg.GetDistanceThreshold(); got != 75 {
		t.Errorf("GetDistanceThreshold() = %v, want 75", got)
	}
	if got := cfg.GetMinCrowdDuration(); got != 10 {
		t.Errorf("GetMinCrowdDuration() = %d, want 10", got)
	}
}
