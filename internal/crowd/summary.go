package crowd

import "gonum.org/v1/gonum/stat"

// Summary aggregates the events of one run.
type Summary struct {
	EventCount        int     `json:"event_count"`
	MeanAverageSize   float64 `json:"mean_average_size"`
	StdDevAverageSize float64 `json:"stddev_average_size"`
	MaxPeakSize       int     `json:"max_peak_size"`
	TotalCrowdFrames  int     `json:"total_crowd_frames"` // Sum of observation counts
}

// Summarize computes run-level statistics over events.
func Summarize(events []CrowdEvent) Summary {
	s := Summary{EventCount: len(events)}
	if len(events) == 0 {
		return s
	}

	sizes := make([]float64, len(events))
	for i, e := range events {
		sizes[i] = float64(e.AverageSize)
		s.TotalCrowdFrames += e.ObservationCount
		if e.PeakSize > s.MaxPeakSize {
			s.MaxPeakSize = e.PeakSize
		}
	}

	if len(sizes) < 2 {
		s.MeanAverageSize = sizes[0]
		return s
	}
	s.MeanAverageSize, s.StdDevAverageSize = stat.MeanStdDev(sizes, nil)
	return s
}
