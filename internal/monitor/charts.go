package monitor

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/crowd.report/internal/crowd"
	"github.com/banshee-data/crowd.report/internal/httputil"
)

const echartsAssetsPrefix = "https://go-echarts.github.io/go-echarts-assets/assets/"

// handleRunChart renders a run's frame log as a line chart and its events
// as a bar chart of average crowd size.
func (ws *WebServer) handleRunChart(w http.ResponseWriter, r *http.Request) {
	run, ok := ws.lookupRun(w, r)
	if !ok {
		return
	}
	samples, err := ws.store.ListFrameSamples(run.RunID)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	events, err := ws.store.ListEvents(run.RunID)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}

	page := components.NewPage()
	page.SetAssetsHost(echartsAssetsPrefix)
	page.PageTitle = fmt.Sprintf("Crowd run %s", run.RunID)
	page.AddCharts(frameLogChart(run.Source, samples), eventsChart(events))

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("render error: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func frameLogChart(source string, samples []crowd.FrameSample) *charts.Line {
	x := make([]string, 0, len(samples))
	y := make([]opts.LineData, 0, len(samples))
	for _, s := range samples {
		x = append(x, strconv.Itoa(s.FrameNumber))
		y = append(y, opts.LineData{Value: s.PersonsInCrowds})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "420px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Persons in crowds", Subtitle: fmt.Sprintf("source=%s samples=%d", source, len(samples))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Frame", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Persons"}),
	)
	line.SetXAxis(x).AddSeries("persons", y)
	return line
}

func eventsChart(events []crowd.CrowdEvent) *charts.Bar {
	x := make([]string, 0, len(events))
	avg := make([]opts.BarData, 0, len(events))
	peak := make([]opts.BarData, 0, len(events))
	for _, e := range events {
		x = append(x, fmt.Sprintf("#%d @%d", e.TrackID, e.StartFrame))
		avg = append(avg, opts.BarData{Value: e.AverageSize})
		peak = append(peak, opts.BarData{Value: e.PeakSize})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "420px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Crowd events", Subtitle: fmt.Sprintf("count=%d", len(events))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x).
		AddSeries("average size", avg, charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"})).
		AddSeries("peak size", peak)
	return bar
}
