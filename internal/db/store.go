package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/crowd.report/internal/crowd"
)

// ErrRunNotFound is returned when a run id does not exist.
var ErrRunNotFound = errors.New("run not found")

// Run is one processing session over a frame source.
type Run struct {
	RunID          string     `json:"run_id"`
	Source         string     `json:"source"`
	ConfigJSON     string     `json:"config_json"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
	FramesAccepted int        `json:"frames_accepted"`
	FramesRejected int        `json:"frames_rejected"`
	EventCount     int        `json:"event_count"`
}

// RunTotals are the counters recorded when a run finishes.
type RunTotals struct {
	FramesAccepted int
	FramesRejected int
	EventCount     int
}

// CreateRun records the start of a run and returns it. cfg is stored as
// JSON for later inspection.
func (db *DB) CreateRun(source string, cfg interface{}) (*Run, error) {
	configJSON := []byte("{}")
	if cfg != nil {
		var err error
		if configJSON, err = json.Marshal(cfg); err != nil {
			return nil, fmt.Errorf("failed to encode run config: %w", err)
		}
	}

	run := &Run{
		RunID:      uuid.New().String(),
		Source:     source,
		ConfigJSON: string(configJSON),
		StartedAt:  db.clock.Now().UTC(),
	}
	_, err := db.Exec(
		`INSERT INTO crowd_runs (run_id, source, config_json, started_unix_nanos) VALUES (?, ?, ?, ?)`,
		run.RunID, run.Source, run.ConfigJSON, run.StartedAt.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert run: %w", err)
	}
	return run, nil
}

// FinishRun stamps the finish time and final counters of a run.
func (db *DB) FinishRun(runID string, totals RunTotals) error {
	res, err := db.Exec(
		`UPDATE crowd_runs
		    SET finished_unix_nanos = ?, frames_accepted = ?, frames_rejected = ?, event_count = ?
		  WHERE run_id = ?`,
		db.clock.Now().UTC().UnixNano(), totals.FramesAccepted, totals.FramesRejected, totals.EventCount, runID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", runID, err)
	}
	return requireRow(res, runID)
}

// InsertEvents appends events to a run in the given order.
func (db *DB) InsertEvents(runID string, events []crowd.CrowdEvent) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO crowd_events (run_id, track_id, start_frame, end_frame, observation_count, average_size, peak_size)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range events {
		if _, err := stmt.Exec(runID, e.TrackID, e.StartFrame, e.EndFrame, e.ObservationCount, e.AverageSize, e.PeakSize); err != nil {
			return fmt.Errorf("failed to insert event for track %d: %w", e.TrackID, err)
		}
	}
	return tx.Commit()
}

// InsertFrameSamples stores frame-log samples for a run.
func (db *DB) InsertFrameSamples(runID string, samples []crowd.FrameSample) error {
	if len(samples) == 0 {
		return nil
	}
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO crowd_frame_samples (run_id, frame_number, persons_in_crowds) VALUES (?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, s := range samples {
		if _, err := stmt.Exec(runID, s.FrameNumber, s.PersonsInCrowds); err != nil {
			return fmt.Errorf("failed to insert sample for frame %d: %w", s.FrameNumber, err)
		}
	}
	return tx.Commit()
}

const runColumns = `run_id, source, config_json, started_unix_nanos, finished_unix_nanos,
	frames_accepted, frames_rejected, event_count`

// GetRun returns a single run or ErrRunNotFound.
func (db *DB) GetRun(runID string) (*Run, error) {
	row := db.QueryRow(`SELECT `+runColumns+` FROM crowd_runs WHERE run_id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns up to limit runs, newest first. A limit of 0 or less
// returns every run.
func (db *DB) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.Query(`SELECT `+runColumns+` FROM crowd_runs ORDER BY started_unix_nanos DESC, run_id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// ListEvents returns a run's events in the order they were recorded.
func (db *DB) ListEvents(runID string) ([]crowd.CrowdEvent, error) {
	rows, err := db.Query(
		`SELECT track_id, start_frame, end_frame, observation_count, average_size, peak_size
		   FROM crowd_events WHERE run_id = ? ORDER BY event_id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []crowd.CrowdEvent{}
	for rows.Next() {
		var e crowd.CrowdEvent
		if err := rows.Scan(&e.TrackID, &e.StartFrame, &e.EndFrame, &e.ObservationCount, &e.AverageSize, &e.PeakSize); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// ListFrameSamples returns a run's frame-log samples by frame number.
func (db *DB) ListFrameSamples(runID string) ([]crowd.FrameSample, error) {
	rows, err := db.Query(
		`SELECT frame_number, persons_in_crowds FROM crowd_frame_samples WHERE run_id = ? ORDER BY frame_number`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	samples := []crowd.FrameSample{}
	for rows.Next() {
		var s crowd.FrameSample
		if err := rows.Scan(&s.FrameNumber, &s.PersonsInCrowds); err != nil {
			return nil, err
		}
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s scanner) (*Run, error) {
	var (
		run      Run
		started  int64
		finished sql.NullInt64
	)
	if err := s.Scan(&run.RunID, &run.Source, &run.ConfigJSON, &started, &finished,
		&run.FramesAccepted, &run.FramesRejected, &run.EventCount); err != nil {
		return nil, err
	}
	run.StartedAt = time.Unix(0, started).UTC()
	if finished.Valid {
		t := time.Unix(0, finished.Int64).UTC()
		run.FinishedAt = &t
	}
	return &run, nil
}

func requireRow(res sql.Result, runID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}
