package history

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewStore(db, logger)
}

func TestCycleLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.BeginCycle(ctx, 3)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	require.NoError(t, s.AddRecord(ctx, Record{
		CycleID:   id,
		EntryName: "sample.ibw",
		EntryPath: "/data/sample.ibw",
		RecordID:  "d/1",
		TaskID:    "task-1",
		Status:    StatusRegistered,
	}))
	require.NoError(t, s.AddRecord(ctx, Record{
		CycleID:   id,
		EntryName: "broken.xrdml",
		EntryPath: "/data/broken.xrdml",
		Status:    StatusFailed,
		Error:     "record creation failed",
	}))
	require.NoError(t, s.FinishCycle(ctx, id, 1, 1, false))

	cycles, err := s.RecentCycles(ctx, 10)
	require.NoError(t, err)
	require.Len(t, cycles, 1)
	assert.Equal(t, 3, cycles[0].TotalCount)
	assert.Equal(t, 1, cycles[0].SuccessCount)
	assert.Equal(t, 1, cycles[0].FailureCount)
	assert.False(t, cycles[0].StoppedEarly)
	require.NotNil(t, cycles[0].FinishedAt)

	recs, err := s.CycleRecords(ctx, id)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "sample.ibw", recs[0].EntryName)
	assert.Equal(t, "d/1", recs[0].RecordID)
	assert.Equal(t, StatusFailed, recs[1].Status)
	assert.Equal(t, "record creation failed", recs[1].Error)
}

func TestEntryRecordsNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	id, err := s.BeginCycle(ctx, 2)
	require.NoError(t, err)

	require.NoError(t, s.AddRecord(ctx, Record{
		CycleID: id, EntryName: "scan.h5", EntryPath: "/data/scan.h5",
		Status: StatusFailed, Error: "timeout", ProcessedAt: base,
	}))
	require.NoError(t, s.AddRecord(ctx, Record{
		CycleID: id, EntryName: "scan.h5", EntryPath: "/data/scan.h5",
		Status: StatusRegistered, RecordID: "d/2", ProcessedAt: base.Add(time.Minute),
	}))

	recs, err := s.EntryRecords(ctx, "scan.h5")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, StatusRegistered, recs[0].Status)
	assert.Equal(t, StatusFailed, recs[1].Status)
}

func TestPruneDropsOldCycles(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	old := time.Now().Add(-40 * 24 * time.Hour)
	s.now = func() time.Time { return old }
	oldID, err := s.BeginCycle(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, s.AddRecord(ctx, Record{
		CycleID: oldID, EntryName: "old.json", EntryPath: "/data/old.json", Status: StatusRegistered,
	}))

	s.now = time.Now
	newID, err := s.BeginCycle(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, s.Prune(ctx, 30*24*time.Hour))

	cycles, err := s.RecentCycles(ctx, 10)
	require.NoError(t, err)
	require.Len(t, cycles, 1)
	assert.Equal(t, newID, cycles[0].ID)

	recs, err := s.CycleRecords(ctx, oldID)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestPruneZeroRetentionIsNoop(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.BeginCycle(ctx, 0)
	require.NoError(t, err)
	require.NoError(t, s.Prune(ctx, 0))

	cycles, err := s.RecentCycles(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, cycles, 1)
}
