package export

import (
	"errors"
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/crowd.report/internal/crowd"
)

var (
	sampleColor = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	eventColor  = color.RGBA{R: 214, G: 39, B: 40, A: 255}
)

// NewCrowdPlot builds a plot of persons-in-crowds per sampled frame with
// each event drawn as a horizontal bar at its average size spanning its
// frames.
func NewCrowdPlot(samples []crowd.FrameSample, events []crowd.CrowdEvent) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Crowd Activity"
	p.X.Label.Text = "Frame"
	p.Y.Label.Text = "Persons"

	if len(samples) > 0 {
		pts := make(plotter.XYs, 0, len(samples))
		for _, s := range samples {
			pts = append(pts, plotter.XY{X: float64(s.FrameNumber), Y: float64(s.PersonsInCrowds)})
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, err
		}
		line.Color = sampleColor
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add("persons in crowds", line)
	}

	for i, e := range events {
		bar, err := plotter.NewLine(plotter.XYs{
			{X: float64(e.StartFrame), Y: float64(e.AverageSize)},
			{X: float64(e.EndFrame), Y: float64(e.AverageSize)},
		})
		if err != nil {
			return nil, err
		}
		bar.Color = eventColor
		bar.Width = vg.Points(3)
		p.Add(bar)
		if i == 0 {
			p.Legend.Add("crowd event (average size)", bar)
		}
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p, nil
}

// WritePlot renders NewCrowdPlot to w in format ("png", "svg", "pdf", ...).
func WritePlot(w io.Writer, format string, samples []crowd.FrameSample, events []crowd.CrowdEvent) error {
	if len(samples) == 0 && len(events) == 0 {
		return errors.New("nothing to plot")
	}
	p, err := NewCrowdPlot(samples, events)
	if err != nil {
		return fmt.Errorf("build plot: %w", err)
	}
	wt, err := p.WriterTo(14*vg.Inch, 6*vg.Inch, format)
	if err != nil {
		return fmt.Errorf("plot format %q: %w", format, err)
	}
	_, err = wt.WriteTo(w)
	return err
}

// PlotFrameSamples renders NewCrowdPlot to path. The image format follows
// the file extension (.png, .svg, .pdf).
func PlotFrameSamples(path string, samples []crowd.FrameSample, events []crowd.CrowdEvent) error {
	if len(samples) == 0 && len(events) == 0 {
		return errors.New("nothing to plot")
	}
	p, err := NewCrowdPlot(samples, events)
	if err != nil {
		return fmt.Errorf("build plot: %w", err)
	}
	if err := p.Save(14*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("save plot %s: %w", path, err)
	}
	return nil
}
