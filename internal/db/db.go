// Package db persists fused estimates and raw decoded bus samples to sqlite
// for later analysis. Filter state itself is never persisted; a restart
// always begins from a fresh filter.
package db

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/driveline-data/speedfusion/internal/fusion"
)

// DB wraps the sqlite handle.
type DB struct {
	*sql.DB
}

// NewDB opens (creating if needed) the estimate database at path. Use
// ":memory:" for tests.
func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS estimates (
			run_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			time TIMESTAMP NOT NULL,
			speed_mps DOUBLE NOT NULL,
			v_long DOUBLE NOT NULL,
			v_lat DOUBLE NOT NULL,
			v_vert DOUBLE NOT NULL,
			uncertainty DOUBLE NOT NULL,
			source TEXT NOT NULL,
			vision_tracking BOOLEAN NOT NULL,
			fix_fused BOOLEAN NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_estimates_time ON estimates(time);
		CREATE TABLE IF NOT EXISTS bus_samples (
			signal TEXT NOT NULL,
			value DOUBLE NOT NULL,
			time TIMESTAMP NOT NULL
		);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &DB{db}, nil
}

// RecordEstimate implements fusion.Recorder.
func (db *DB) RecordEstimate(e fusion.Estimate) error {
	_, err := db.Exec(
		`INSERT INTO estimates
			(run_id, tick, time, speed_mps, v_long, v_lat, v_vert, uncertainty, source, vision_tracking, fix_fused)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.RunID, e.Tick, e.Time, e.SpeedMps,
		e.Velocity[0], e.Velocity[1], e.Velocity[2],
		e.Uncertainty, string(e.Source), e.VisionTracking, e.FixFused,
	)
	return err
}

// RecordBusSample stores one decoded diagnostic value.
func (db *DB) RecordBusSample(signal string, value float64, t time.Time) error {
	_, err := db.Exec(
		"INSERT INTO bus_samples (signal, value, time) VALUES (?, ?, ?)",
		signal, value, t,
	)
	return err
}

// RecentEstimates returns up to limit estimates, newest first.
func (db *DB) RecentEstimates(limit int) ([]fusion.Estimate, error) {
	rows, err := db.Query(
		`SELECT run_id, tick, time, speed_mps, v_long, v_lat, v_vert, uncertainty, source, vision_tracking, fix_fused
		 FROM estimates ORDER BY time DESC, tick DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []fusion.Estimate
	for rows.Next() {
		var e fusion.Estimate
		var source string
		if err := rows.Scan(
			&e.RunID, &e.Tick, &e.Time, &e.SpeedMps,
			&e.Velocity[0], &e.Velocity[1], &e.Velocity[2],
			&e.Uncertainty, &source, &e.VisionTracking, &e.FixFused,
		); err != nil {
			return nil, err
		}
		e.Source = fusion.InputSource(source)
		out = append(out, e)
	}
	return out, rows.Err()
}
