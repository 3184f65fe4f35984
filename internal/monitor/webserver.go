// Package monitor serves the crowd-detection HTTP interface: stored runs,
// the live tracker state and chart pages.
package monitor

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/banshee-data/crowd.report/internal/crowd"
	"github.com/banshee-data/crowd.report/internal/crowd/ingest"
	"github.com/banshee-data/crowd.report/internal/db"
	"github.com/banshee-data/crowd.report/internal/monitoring"
	"github.com/banshee-data/crowd.report/internal/timeutil"
	"github.com/banshee-data/crowd.report/internal/version"
)

// RunStore is the read side of the run database.
type RunStore interface {
	ListRuns(limit int) ([]db.Run, error)
	GetRun(runID string) (*db.Run, error)
	ListEvents(runID string) ([]crowd.CrowdEvent, error)
	ListFrameSamples(runID string) ([]crowd.FrameSample, error)
}

// PipelineStatsSource reports live ingest counters.
type PipelineStatsSource interface {
	Stats() ingest.PipelineStats
}

// AdminRouteAttacher mounts debug routes on a mux.
type AdminRouteAttacher interface {
	AttachAdminRoutes(mux *http.ServeMux) error
}

// WebServerConfig contains configuration options for the web server.
type WebServerConfig struct {
	Address  string
	Store    RunStore
	Tracker  crowd.TrackerInterface
	Pipeline PipelineStatsSource
	Admin    AdminRouteAttacher
	Clock    timeutil.Clock
}

// WebServer handles the HTTP interface. Store, Tracker, Pipeline and Admin
// are optional; endpoints backed by a missing component answer 404.
type WebServer struct {
	address  string
	store    RunStore
	tracker  crowd.TrackerInterface
	pipeline PipelineStatsSource
	clock    timeutil.Clock
	handler  http.Handler

	mu     sync.Mutex
	server *http.Server
}

// NewWebServer creates a new web server with the provided configuration.
func NewWebServer(config WebServerConfig) (*WebServer, error) {
	clock := config.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	ws := &WebServer{
		address:  config.Address,
		store:    config.Store,
		tracker:  config.Tracker,
		pipeline: config.Pipeline,
		clock:    clock,
	}

	mux := ws.setupRoutes()
	if config.Admin != nil {
		if err := config.Admin.AttachAdminRoutes(mux); err != nil {
			return nil, err
		}
	}
	ws.handler = mux
	return ws, nil
}

// Handler returns the root HTTP handler.
func (ws *WebServer) Handler() http.Handler {
	return ws.handler
}

// Start serves until ctx is cancelled, then shuts the server down.
func (ws *WebServer) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", ws.address)
	if err != nil {
		return err
	}

	ws.mu.Lock()
	ws.server = &http.Server{Handler: ws.handler, ReadHeaderTimeout: 10 * time.Second}
	server := ws.server
	ws.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		monitoring.Logf("Starting HTTP server on %s", ln.Addr())
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	monitoring.Logf("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		monitoring.Logf("HTTP server shutdown error: %v", err)
		if err := server.Close(); err != nil {
			monitoring.Logf("HTTP server force close error: %v", err)
		}
	}
	return nil
}

func (ws *WebServer) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", ws.handleHealth)
	mux.HandleFunc("GET /api/runs", ws.handleListRuns)
	mux.HandleFunc("GET /api/runs/{id}", ws.handleGetRun)
	mux.HandleFunc("GET /api/runs/{id}/events", ws.handleRunEvents)
	mux.HandleFunc("GET /api/runs/{id}/frames", ws.handleRunFrames)
	mux.HandleFunc("GET /api/runs/{id}/summary", ws.handleRunSummary)
	mux.HandleFunc("GET /api/tracks", ws.handleTracks)
	mux.HandleFunc("GET /api/stats", ws.handleStats)
	mux.HandleFunc("GET /charts/runs/{id}", ws.handleRunChart)
	return mux
}

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{
		"status":    "ok",
		"service":   "crowd",
		"version":   version.Version,
		"timestamp": ws.clock.Now().UTC().Format(time.RFC3339),
	})
}
