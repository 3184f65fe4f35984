package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/crowd.report/internal/config"
	"github.com/banshee-data/crowd.report/internal/crowd"
	"github.com/banshee-data/crowd.report/internal/crowd/export"
	"github.com/banshee-data/crowd.report/internal/crowd/ingest"
	"github.com/banshee-data/crowd.report/internal/db"
	"github.com/banshee-data/crowd.report/internal/fsutil"
	"github.com/banshee-data/crowd.report/internal/monitor"
	"github.com/banshee-data/crowd.report/internal/monitoring"
	"github.com/banshee-data/crowd.report/internal/version"
)

var (
	inputPath        = flag.String("input", "", "JSON-lines frame file to process (- for stdin)")
	udpAddr          = flag.String("udp-addr", "", "UDP address to receive frame datagrams on, e.g. :5005")
	pcapPath         = flag.String("pcap", "", "Packet capture of frame datagrams to replay")
	pcapPort         = flag.Int("pcap-port", 5005, "Destination UDP port of frame datagrams in -pcap (0 for any)")
	rcvBuf           = flag.Int("rcvbuf", 1<<20, "UDP receive buffer size in bytes")
	logInterval      = flag.Duration("log-interval", time.Minute, "Datagram statistics logging interval")
	configPath       = flag.String("config", "", "Tuning config JSON file (defaults built in)")
	distance         = flag.Float64("distance", config.DefaultDistanceThreshold, "Neighbour distance threshold in pixels")
	minSize          = flag.Int("min-size", config.DefaultMinCrowdSize, "Minimum people in a crowd")
	minDuration      = flag.Int("min-duration", config.DefaultMinCrowdDuration, "Minimum frames a crowd must persist to be reported")
	maxGap           = flag.Int("max-gap", config.DefaultMaxFrameGap, "Maximum frame gap between observations of one crowd")
	matchPolicy      = flag.String("match-policy", config.DefaultMatchPolicy, "Track association policy: first or best")
	emptyFramePolicy = flag.String("empty-frame-policy", config.DefaultEmptyFramePolicy, "Frames with too few people: clear or tolerate")
	grouping         = flag.String("grouping", config.DefaultGroupingMode, "Grouping mode: components, seeded or single_hop")
	frameLogInterval = flag.Int("frame-log-interval", config.DefaultFrameLogInterval, "Sample persons-in-crowds every N frames (0 disables)")
	outPath          = flag.String("out", "crowd_detection_results.csv", "Crowd events CSV output path")
	extended         = flag.Bool("extended", false, "Add end frame, observations, peak size and track id columns to -out")
	framesOut        = flag.String("frames-out", "", "Frame log CSV output path")
	plotPath         = flag.String("plot", "", "Write a crowd activity plot (.png, .svg or .pdf)")
	dbFile           = flag.String("db", "", "SQLite database to record the run in")
	listen           = flag.String("listen", "", "HTTP listen address for the monitor, e.g. :8090")
	verbose          = flag.Bool("verbose", false, "Log every frame and event")
	showVersion      = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}
	monitoring.SetVerbose(*verbose)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, setFlags()); err != nil {
		log.Fatalf("crowd: %v", err)
	}
}

// setFlags returns the names of flags given on the command line.
func setFlags() map[string]bool {
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

// loadTuning reads -config (or the built-in defaults) and applies any
// tuning flags given explicitly on the command line.
func loadTuning(set map[string]bool) (*config.TuningConfig, error) {
	cfg := config.DefaultTuningConfig()
	if *configPath != "" {
		loaded, err := config.LoadTuningConfig(*configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if set["distance"] {
		cfg.DistanceThreshold = distance
	}
	if set["min-size"] {
		cfg.MinCrowdSize = minSize
	}
	if set["min-duration"] {
		cfg.MinCrowdDuration = minDuration
	}
	if set["max-gap"] {
		cfg.MaxFrameGap = maxGap
	}
	if set["match-policy"] {
		cfg.MatchPolicy = matchPolicy
	}
	if set["empty-frame-policy"] {
		cfg.EmptyFramePolicy = emptyFramePolicy
	}
	if set["grouping"] {
		cfg.GroupingMode = grouping
	}
	if set["frame-log-interval"] {
		cfg.FrameLogInterval = frameLogInterval
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// sourceName validates that exactly one frame source was chosen and
// describes it.
func sourceName() (string, error) {
	var names []string
	if *inputPath != "" {
		names = append(names, "file://"+*inputPath)
	}
	if *udpAddr != "" {
		names = append(names, "udp://"+*udpAddr)
	}
	if *pcapPath != "" {
		names = append(names, "pcap://"+*pcapPath)
	}
	switch len(names) {
	case 0:
		return "", errors.New("one of -input, -udp-addr or -pcap is required")
	case 1:
		return names[0], nil
	default:
		return "", fmt.Errorf("only one frame source may be given, got %v", names)
	}
}

// results accumulates everything a run produces for the output files.
type results struct {
	mu      sync.Mutex
	events  []crowd.CrowdEvent
	samples []crowd.FrameSample
}

func run(ctx context.Context, set map[string]bool) error {
	source, err := sourceName()
	if err != nil {
		return err
	}
	tuning, err := loadTuning(set)
	if err != nil {
		return err
	}
	trackerCfg := crowd.TrackerConfigFromTuning(tuning)
	tracker, err := crowd.NewTracker(trackerCfg)
	if err != nil {
		return err
	}

	var store *db.DB
	var runID string
	if *dbFile != "" {
		store, err = db.NewDB(*dbFile)
		if err != nil {
			return err
		}
		defer store.Close()
		r, err := store.CreateRun(source, trackerCfg)
		if err != nil {
			return err
		}
		runID = r.RunID
		monitoring.Logf("recording run %s in %s", runID, *dbFile)
	}

	res := &results{}
	pipeline, err := ingest.NewPipeline(ingest.PipelineConfig{
		Tracker:          tracker,
		FrameLogInterval: tuning.GetFrameLogInterval(),
		OnEvents: func(_ context.Context, events []crowd.CrowdEvent) error {
			res.mu.Lock()
			res.events = append(res.events, events...)
			res.mu.Unlock()
			if store != nil {
				return store.InsertEvents(runID, events)
			}
			return nil
		},
		OnSample: func(_ context.Context, sample crowd.FrameSample) error {
			res.mu.Lock()
			res.samples = append(res.samples, sample)
			res.mu.Unlock()
			if store != nil {
				return store.InsertFrameSamples(runID, []crowd.FrameSample{sample})
			}
			return nil
		},
	})
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	serveCtx, stopServe := context.WithCancel(ctx)
	defer func() {
		stopServe()
		wg.Wait()
	}()

	if *listen != "" {
		wsCfg := monitor.WebServerConfig{Address: *listen, Tracker: tracker, Pipeline: pipeline}
		if store != nil {
			wsCfg.Store = store
			wsCfg.Admin = store
		}
		ws, err := monitor.NewWebServer(wsCfg)
		if err != nil {
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := ws.Start(serveCtx); err != nil {
				monitoring.Logf("monitor server: %v", err)
			}
		}()
	}

	monitoring.Logf("processing frames from %s", source)
	srcErr := readSource(ctx, pipeline)
	if errors.Is(srcErr, context.Canceled) {
		monitoring.Logf("interrupted; flushing open crowds")
		srcErr = nil
	}

	// Flush even after a source error so completed crowds are not lost.
	closeErr := pipeline.Close(context.Background())
	if err := errors.Join(srcErr, closeErr); err != nil {
		return err
	}

	if err := writeOutputs(res); err != nil {
		return err
	}

	stats := pipeline.Stats()
	if store != nil {
		if err := store.FinishRun(runID, db.RunTotals{
			FramesAccepted: stats.Accepted,
			FramesRejected: stats.Rejected,
			EventCount:     stats.Events,
		}); err != nil {
			return err
		}
	}

	summary := crowd.Summarize(res.events)
	monitoring.Logf("done: %d frames accepted, %d rejected, %d crowd events (mean size %.1f, max peak %d)",
		stats.Accepted, stats.Rejected, summary.EventCount, summary.MeanAverageSize, summary.MaxPeakSize)

	if *listen != "" && ctx.Err() == nil {
		monitoring.Logf("processing complete; monitor still serving on %s until interrupted", *listen)
		<-ctx.Done()
	}
	return nil
}

func readSource(ctx context.Context, h ingest.FrameHandler) error {
	switch {
	case *inputPath != "":
		var r io.Reader = os.Stdin
		if *inputPath != "-" {
			f, err := os.Open(*inputPath)
			if err != nil {
				return err
			}
			defer f.Close()
			r = f
		}
		return ingest.ReadFrames(ctx, r, h)
	case *pcapPath != "":
		return ingest.ReadPCAPFile(ctx, *pcapPath, *pcapPort, h, &ingest.PacketStats{})
	default:
		l := ingest.NewUDPListener(ingest.UDPListenerConfig{
			Address:     *udpAddr,
			RcvBuf:      *rcvBuf,
			LogInterval: *logInterval,
			Stats:       &ingest.PacketStats{},
			Handler:     h,
		})
		return l.Start(ctx)
	}
}

// outputFS receives the report files.
var outputFS fsutil.FileSystem = fsutil.OSFileSystem{}

func writeOutputs(res *results) error {
	res.mu.Lock()
	defer res.mu.Unlock()

	if *outPath != "" {
		if err := fsutil.WriteFileFunc(outputFS, *outPath, func(w io.Writer) error {
			return export.WriteEventsCSV(w, res.events, *extended)
		}); err != nil {
			return err
		}
		monitoring.Logf("Crowd detection completed. Results saved to '%s'.", *outPath)
	}
	if *framesOut != "" {
		if err := fsutil.WriteFileFunc(outputFS, *framesOut, func(w io.Writer) error {
			return export.WriteFrameSamplesCSV(w, res.samples)
		}); err != nil {
			return err
		}
		monitoring.Logf("Saved frame log: %s", *framesOut)
	}
	if *plotPath != "" {
		if len(res.samples) == 0 && len(res.events) == 0 {
			monitoring.Logf("nothing to plot; skipping %s", *plotPath)
			return nil
		}
		format := strings.TrimPrefix(filepath.Ext(*plotPath), ".")
		if err := fsutil.WriteFileFunc(outputFS, *plotPath, func(w io.Writer) error {
			return export.WritePlot(w, format, res.samples, res.events)
		}); err != nil {
			return err
		}
		monitoring.Logf("Saved plot: %s", *plotPath)
	}
	return nil
}
