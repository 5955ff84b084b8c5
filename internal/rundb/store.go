package rundb

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/rover-sim/internal/telemetry"
)

// ErrRunNotFound is returned when a run ID is unknown.
var ErrRunNotFound = errors.New("run not found")

// Run statuses.
const (
	StatusRunning   = "running"
	StatusComplete  = "complete"
	StatusCancelled = "cancelled"
)

// Run is one row of sim_runs.
type Run struct {
	ID         string
	Scenario   string
	Seed       int64
	FixedDt    float64
	Ticks      int
	Frames     int
	Faults     int
	Distance   float64
	FinalX     float64
	FinalZ     float64
	Status     string
	ConfigJSON string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// RunResult is written when a run ends.
type RunResult struct {
	Ticks    int
	Frames   int
	Faults   int
	Distance float64
	FinalX   float64
	FinalZ   float64
	Status   string
}

// CreateRun inserts a new running row and returns its ID.
func (db *DB) CreateRun(scenario string, seed int64, fixedDt float64, configJSON string) (string, error) {
	id := uuid.NewString()
	_, err := db.Exec(`
		INSERT INTO sim_runs (run_id, scenario, seed, fixed_dt, status, config_json, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, scenario, seed, fixedDt, StatusRunning, configJSON, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}
	return id, nil
}

// FinishRun records the outcome of a run.
func (db *DB) FinishRun(id string, r RunResult) error {
	status := r.Status
	if status == "" {
		status = StatusComplete
	}
	res, err := db.Exec(`
		UPDATE sim_runs
		SET ticks = ?, frames = ?, faults = ?, distance_m = ?, final_x = ?, final_z = ?,
		    status = ?, finished_at = ?
		WHERE run_id = ?`,
		r.Ticks, r.Frames, r.Faults, r.Distance, r.FinalX, r.FinalZ, status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

// GetRun loads one run.
func (db *DB) GetRun(id string) (Run, error) {
	row := db.QueryRow(`
		SELECT run_id, scenario, seed, fixed_dt, ticks, frames, faults, distance_m,
		       final_x, final_z, status, config_json, started_at, finished_at
		FROM sim_runs WHERE run_id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return r, err
}

// ListRuns returns the most recent runs first, up to limit (0 for all).
func (db *DB) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.Query(`
		SELECT run_id, scenario, seed, fixed_dt, ticks, frames, faults, distance_m,
		       final_x, final_z, status, config_json, started_at, finished_at
		FROM sim_runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s scanner) (Run, error) {
	var r Run
	var finished sql.NullTime
	err := s.Scan(&r.ID, &r.Scenario, &r.Seed, &r.FixedDt, &r.Ticks, &r.Frames, &r.Faults,
		&r.Distance, &r.FinalX, &r.FinalZ, &r.Status, &r.ConfigJSON, &r.StartedAt, &finished)
	if err != nil {
		return Run{}, err
	}
	if finished.Valid {
		t := finished.Time
		r.FinishedAt = &t
	}
	return r, nil
}

// DeleteRun removes a run and its samples.
func (db *DB) DeleteRun(id string) error {
	res, err := db.Exec(`DELETE FROM sim_runs WHERE run_id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

func (db *DB) inTx(fn func(tx *sql.Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// InsertDriveSamples stores drive telemetry for a run in one transaction.
func (db *DB) InsertDriveSamples(runID string, samples []telemetry.DriveSample) error {
	return db.inTx(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO drive_samples (run_id, tick, sim_time, cmd_linear, cmd_angular,
				left_target, right_target, left_speed, right_speed, left_torque, right_torque,
				brake, forward_speed, heading, pos_x, pos_z, manual, faults)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare drive insert: %w", err)
		}
		defer stmt.Close()
		for _, s := range samples {
			if _, err := stmt.Exec(runID, s.Tick, s.SimTime, s.CmdLinear, s.CmdAngular,
				s.LeftTarget, s.RightTarget, s.LeftSpeed, s.RightSpeed, s.LeftTorque, s.RightTorque,
				s.Brake, s.ForwardSpeed, s.Heading, s.PosX, s.PosZ, s.Manual, s.Faults); err != nil {
				return fmt.Errorf("failed to insert drive sample %d: %w", s.Tick, err)
			}
		}
		return nil
	})
}

// InsertScanSamples stores per-frame scan statistics for a run.
func (db *DB) InsertScanSamples(runID string, samples []telemetry.ScanSample) error {
	return db.inTx(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO scan_stats (run_id, frame_id, sim_time, sweep_angle, real_count,
				ghost_count, hidden_count, mean_range, std_range)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare scan insert: %w", err)
		}
		defer stmt.Close()
		for _, s := range samples {
			if _, err := stmt.Exec(runID, int64(s.FrameID), s.SimTime, s.SweepAngle, s.Real,
				s.Ghost, s.Hidden, s.MeanRange, s.StdRange); err != nil {
				return fmt.Errorf("failed to insert scan sample %d: %w", s.FrameID, err)
			}
		}
		return nil
	})
}

// DriveSamples loads drive telemetry for a run ordered by tick.
func (db *DB) DriveSamples(runID string) ([]telemetry.DriveSample, error) {
	rows, err := db.Query(`
		SELECT tick, sim_time, cmd_linear, cmd_angular, left_target, right_target,
		       left_speed, right_speed, left_torque, right_torque, brake, forward_speed,
		       heading, pos_x, pos_z, manual, faults
		FROM drive_samples WHERE run_id = ? ORDER BY tick`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query drive samples: %w", err)
	}
	defer rows.Close()

	var out []telemetry.DriveSample
	for rows.Next() {
		var s telemetry.DriveSample
		if err := rows.Scan(&s.Tick, &s.SimTime, &s.CmdLinear, &s.CmdAngular, &s.LeftTarget,
			&s.RightTarget, &s.LeftSpeed, &s.RightSpeed, &s.LeftTorque, &s.RightTorque, &s.Brake,
			&s.ForwardSpeed, &s.Heading, &s.PosX, &s.PosZ, &s.Manual, &s.Faults); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ScanSamples loads scan statistics for a run ordered by frame.
func (db *DB) ScanSamples(runID string) ([]telemetry.ScanSample, error) {
	rows, err := db.Query(`
		SELECT frame_id, sim_time, sweep_angle, real_count, ghost_count, hidden_count,
		       mean_range, std_range
		FROM scan_stats WHERE run_id = ? ORDER BY frame_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query scan samples: %w", err)
	}
	defer rows.Close()

	var out []telemetry.ScanSample
	for rows.Next() {
		var s telemetry.ScanSample
		var frameID int64
		if err := rows.Scan(&frameID, &s.SimTime, &s.SweepAngle, &s.Real, &s.Ghost, &s.Hidden,
			&s.MeanRange, &s.StdRange); err != nil {
			return nil, err
		}
		s.FrameID = uint64(frameID)
		out = append(out, s)
	}
	return out, rows.Err()
}
