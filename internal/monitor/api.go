package monitor

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/banshee-data/crowd.report/internal/crowd"
	"github.com/banshee-data/crowd.report/internal/db"
	"github.com/banshee-data/crowd.report/internal/httputil"
)

// maxRunsLimit caps /api/runs?limit=.
const maxRunsLimit = 1000

// trackView is the JSON form of a live track.
type trackView struct {
	TrackID      int64        `json:"track_id"`
	State        string       `json:"state"`
	FirstFrame   int          `json:"first_frame"`
	LastFrame    int          `json:"last_frame"`
	Observations int          `json:"observations"`
	Size         int          `json:"size"`
	Centroid     [2]float64   `json:"centroid"`
	Points       [][2]float64 `json:"points"`
}

type statsView struct {
	LastFrame crowd.FrameStats `json:"last_frame"`
	Pipeline  interface{}      `json:"pipeline,omitempty"`
	Summary   crowd.Summary    `json:"summary"`
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	httputil.WriteJSONOK(w, v)
}

func (ws *WebServer) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if ws.store == nil {
		httputil.NotFound(w, "no run database configured")
		return
	}
	limit := 100
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > maxRunsLimit {
			httputil.BadRequest(w, "limit must be an integer between 1 and 1000")
			return
		}
		limit = n
	}
	runs, err := ws.store.ListRuns(limit)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	writeJSON(w, runs)
}

// lookupRun resolves the {id} path value, writing the error response and
// returning false when the run cannot be served.
func (ws *WebServer) lookupRun(w http.ResponseWriter, r *http.Request) (*db.Run, bool) {
	if ws.store == nil {
		httputil.NotFound(w, "no run database configured")
		return nil, false
	}
	run, err := ws.store.GetRun(r.PathValue("id"))
	if errors.Is(err, db.ErrRunNotFound) {
		httputil.NotFound(w, err.Error())
		return nil, false
	}
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return nil, false
	}
	return run, true
}

func (ws *WebServer) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := ws.lookupRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, run)
}

func (ws *WebServer) handleRunEvents(w http.ResponseWriter, r *http.Request) {
	run, ok := ws.lookupRun(w, r)
	if !ok {
		return
	}
	events, err := ws.store.ListEvents(run.RunID)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	writeJSON(w, events)
}

func (ws *WebServer) handleRunFrames(w http.ResponseWriter, r *http.Request) {
	run, ok := ws.lookupRun(w, r)
	if !ok {
		return
	}
	samples, err := ws.store.ListFrameSamples(run.RunID)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	writeJSON(w, samples)
}

func (ws *WebServer) handleRunSummary(w http.ResponseWriter, r *http.Request) {
	run, ok := ws.lookupRun(w, r)
	if !ok {
		return
	}
	events, err := ws.store.ListEvents(run.RunID)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	writeJSON(w, crowd.Summarize(events))
}

func (ws *WebServer) handleTracks(w http.ResponseWriter, r *http.Request) {
	if ws.tracker == nil {
		httputil.NotFound(w, "no live tracker")
		return
	}
	tracks := ws.tracker.ActiveTracks()
	views := make([]trackView, 0, len(tracks))
	for _, t := range tracks {
		views = append(views, newTrackView(t))
	}
	writeJSON(w, views)
}

func (ws *WebServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if ws.tracker == nil {
		httputil.NotFound(w, "no live tracker")
		return
	}
	view := statsView{
		LastFrame: ws.tracker.LastFrameStats(),
		Summary:   crowd.Summarize(ws.tracker.Events()),
	}
	if ws.pipeline != nil {
		view.Pipeline = ws.pipeline.Stats()
	}
	writeJSON(w, view)
}

func newTrackView(t *crowd.Track) trackView {
	last := t.LastCluster()
	c := last.Centroid()
	v := trackView{
		TrackID:      t.TrackID,
		State:        string(t.State),
		FirstFrame:   t.FirstFrame(),
		LastFrame:    t.LastFrame(),
		Observations: t.Len(),
		Size:         last.Size(),
		Centroid:     [2]float64{c.X, c.Y},
		Points:       make([][2]float64, 0, last.Size()),
	}
	for _, p := range last.Points {
		v.Points = append(v.Points, [2]float64{p.X, p.Y})
	}
	return v
}
