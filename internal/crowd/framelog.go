package crowd

// FrameSample is the number of people belonging to any crowd cluster in a
// sampled frame.
type FrameSample struct {
	FrameNumber     int `json:"frame_number"`
	PersonsInCrowds int `json:"persons_in_crowds"`
}

// FrameLogger samples per-frame statistics every interval frames
// (frame numbers divisible by interval). An interval of 0 disables it.
type FrameLogger struct {
	interval int
	samples  []FrameSample
}

// NewFrameLogger creates a logger sampling every interval frames.
func NewFrameLogger(interval int) *FrameLogger {
	return &FrameLogger{interval: interval}
}

// Observe records stats if its frame falls on the sampling interval and
// reports whether it did.
func (l *FrameLogger) Observe(stats FrameStats) (FrameSample, bool) {
	if l.interval <= 0 || stats.FrameNumber%l.interval != 0 {
		return FrameSample{}, false
	}
	sample := FrameSample{FrameNumber: stats.FrameNumber, PersonsInCrowds: stats.PersonsInCrowds}
	l.samples = append(l.samples, sample)
	return sample, true
}

// Samples returns a copy of the recorded samples.
func (l *FrameLogger) Samples() []FrameSample {
	out := make([]FrameSample, len(l.samples))
	copy(out, l.samples)
	return out
}
