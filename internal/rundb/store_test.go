package rundb

import (
	"log"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/rover-sim/internal/monitoring"
	"github.com/banshee-data/rover-sim/internal/telemetry"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.SetLogger(log.Printf) })

	db, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpen_AppliesMigrationsAndPragmas(t *testing.T) {
	db := openTestDB(t)

	version, dirty, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)

	var journalMode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)

	var fk int
	require.NoError(t, db.QueryRow("PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)

	for _, table := range []string{"sim_runs", "drive_samples", "scan_stats"} {
		var n int
		require.NoError(t, db.QueryRow(
			"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&n))
		assert.Equal(t, 1, n, table)
	}
}

func TestOpen_Reopen(t *testing.T) {
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.SetLogger(log.Printf) })
	path := filepath.Join(t.TempDir(), "runs.db")

	db, err := Open(path)
	require.NoError(t, err)
	id, err := db.CreateRun("yard", 1, 0.02, "{}")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()
	run, err := db.GetRun(id)
	require.NoError(t, err)
	assert.Equal(t, "yard", run.Scenario)
}

func TestMigrateDown(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.MigrateDown())

	version, _, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	var n int
	require.NoError(t, db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='drive_samples'").Scan(&n))
	assert.Zero(t, n)

	require.NoError(t, db.MigrateUp())
}

func TestRunLifecycle(t *testing.T) {
	db := openTestDB(t)

	id, err := db.CreateRun("wall", 7, 0.02, `{"seed":7}`)
	require.NoError(t, err)
	_, err = uuid.Parse(id)
	assert.NoError(t, err)

	run, err := db.GetRun(id)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, run.Status)
	assert.Equal(t, int64(7), run.Seed)
	assert.Nil(t, run.FinishedAt)
	assert.False(t, run.StartedAt.IsZero())

	require.NoError(t, db.FinishRun(id, RunResult{Ticks: 100, Frames: 100, Faults: 2, Distance: 3.5, FinalX: 0.1, FinalZ: 3.4}))
	run, err = db.GetRun(id)
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, run.Status)
	assert.Equal(t, 100, run.Ticks)
	assert.Equal(t, 2, run.Faults)
	assert.InDelta(t, 3.5, run.Distance, 1e-12)
	require.NotNil(t, run.FinishedAt)

	assert.ErrorIs(t, db.FinishRun("missing", RunResult{}), ErrRunNotFound)
	_, err = db.GetRun("missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestListRuns(t *testing.T) {
	db := openTestDB(t)
	first, err := db.CreateRun("a", 1, 0.02, "{}")
	require.NoError(t, err)
	second, err := db.CreateRun("b", 2, 0.02, "{}")
	require.NoError(t, err)

	runs, err := db.ListRuns(0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second, runs[0].ID)
	assert.Equal(t, first, runs[1].ID)

	runs, err = db.ListRuns(1)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestSamples_RoundTripAndCascade(t *testing.T) {
	db := openTestDB(t)
	id, err := db.CreateRun("wall", 1, 0.02, "{}")
	require.NoError(t, err)

	drive := []telemetry.DriveSample{
		{Tick: 1, SimTime: 0.02, CmdLinear: 0.1, LeftTarget: 0.1, RightTarget: 0.1, LeftSpeed: 0.05, Manual: true},
		{Tick: 2, SimTime: 0.04, CmdLinear: 0.2, CmdAngular: -0.1, Brake: 0, Heading: 0.01, PosX: 0.2, PosZ: 1, Faults: 1},
	}
	scans := []telemetry.ScanSample{
		{FrameID: 1, SimTime: 0.02, SweepAngle: 0, Real: 10, Ghost: 1, Hidden: 5, MeanRange: 9.5, StdRange: 0.2},
		{FrameID: 2, SimTime: 0.04, SweepAngle: 72, Real: 11, Hidden: 5, MeanRange: 9.4, StdRange: 0.1},
	}
	require.NoError(t, db.InsertDriveSamples(id, drive))
	require.NoError(t, db.InsertScanSamples(id, scans))

	gotDrive, err := db.DriveSamples(id)
	require.NoError(t, err)
	if diff := cmp.Diff(drive, gotDrive); diff != "" {
		t.Errorf("drive samples mismatch (-want +got):\n%s", diff)
	}
	gotScans, err := db.ScanSamples(id)
	require.NoError(t, err)
	if diff := cmp.Diff(scans, gotScans); diff != "" {
		t.Errorf("scan samples mismatch (-want +got):\n%s", diff)
	}

	// Duplicate tick violates the primary key and rolls back the batch.
	err = db.InsertDriveSamples(id, []telemetry.DriveSample{{Tick: 3}, {Tick: 1}})
	assert.Error(t, err)
	gotDrive, err = db.DriveSamples(id)
	require.NoError(t, err)
	assert.Len(t, gotDrive, 2)

	require.NoError(t, db.DeleteRun(id))
	gotDrive, err = db.DriveSamples(id)
	require.NoError(t, err)
	assert.Empty(t, gotDrive)
	gotScans, err = db.ScanSamples(id)
	require.NoError(t, err)
	assert.Empty(t, gotScans)
	assert.ErrorIs(t, db.DeleteRun(id), ErrRunNotFound)
}

func TestInsertSamples_UnknownRun(t *testing.T) {
	db := openTestDB(t)
	err := db.InsertDriveSamples("nope", []telemetry.DriveSample{{Tick: 1}})
	assert.Error(t, err)
}
