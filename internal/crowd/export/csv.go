// Package export writes crowd events and frame samples to CSV and renders
// them as PNG plots.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/banshee-data/crowd.report/internal/crowd"
)

// Column headers of the crowd results CSV.
const (
	ColumnFrameNumber = "Frame Number"
	ColumnPersonCount = "Person Count in Crowd"
)

var extendedColumns = []string{"End Frame", "Observations", "Peak Size", "Track ID"}

// WriteEventsCSV writes one row per event: its start frame and average
// crowd size. extended appends the end frame, observation count, peak size
// and track id. The header is written even when events is empty.
func WriteEventsCSV(w io.Writer, events []crowd.CrowdEvent, extended bool) error {
	cw := csv.NewWriter(w)

	header := []string{ColumnFrameNumber, ColumnPersonCount}
	if extended {
		header = append(header, extendedColumns...)
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, e := range events {
		row := []string{strconv.Itoa(e.StartFrame), strconv.Itoa(e.AverageSize)}
		if extended {
			row = append(row,
				strconv.Itoa(e.EndFrame),
				strconv.Itoa(e.ObservationCount),
				strconv.Itoa(e.PeakSize),
				strconv.FormatInt(e.TrackID, 10),
			)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write event %d: %w", e.TrackID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteFrameSamplesCSV writes the frame log: frame number and the number of
// people in any crowd in that frame.
func WriteFrameSamplesCSV(w io.Writer, samples []crowd.FrameSample) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{ColumnFrameNumber, ColumnPersonCount}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, s := range samples {
		if err := cw.Write([]string{strconv.Itoa(s.FrameNumber), strconv.Itoa(s.PersonsInCrowds)}); err != nil {
			return fmt.Errorf("write frame %d: %w", s.FrameNumber, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
