package status

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lingaphealth/fieldsync/internal/db"
	"github.com/lingaphealth/fieldsync/internal/models"
)

// stubCounter stands in for the queue store.
type stubCounter struct {
	n int
}

func (c *stubCounter) Len() int { return c.n }

func newTestTracker(t *testing.T, counter *stubCounter) *Tracker {
	t.Helper()
	database, err := db.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, db.Migrate(database))
	return NewTracker(database, counter)
}

func TestGetStatusDefaults(t *testing.T) {
	tracker := newTestTracker(t, &stubCounter{})

	got := tracker.GetStatus()
	assert.False(t, got.IsSyncing)
	assert.Zero(t, got.LastSyncAt)
	assert.Zero(t, got.PendingCount)
	assert.NotNil(t, got.Errors)
	assert.Empty(t, got.Errors)
}

func TestPendingCountTracksQueue(t *testing.T) {
	counter := &stubCounter{n: 3}
	tracker := newTestTracker(t, counter)

	assert.Equal(t, 3, tracker.GetStatus().PendingCount)

	counter.n = 0
	assert.Equal(t, 0, tracker.GetStatus().PendingCount)
}

func TestSetSyncingStampsLastSyncOnFinish(t *testing.T) {
	tracker := newTestTracker(t, &stubCounter{})

	tracker.SetSyncing(true)
	got := tracker.GetStatus()
	assert.True(t, got.IsSyncing)
	assert.Zero(t, got.LastSyncAt, "starting a pass must not touch last sync time")

	tracker.SetSyncing(false)
	got = tracker.GetStatus()
	assert.False(t, got.IsSyncing)
	assert.NotZero(t, got.LastSyncAt, "finishing a pass stamps last sync time")
}

func TestRecordErrorAppends(t *testing.T) {
	tracker := newTestTracker(t, &stubCounter{})

	tracker.RecordError("rec-1", "portal returned status 500")
	tracker.RecordError("rec-2", "record upload timed out")

	got := tracker.GetStatus()
	require.Len(t, got.Errors, 2)
	assert.Equal(t, "rec-1", got.Errors[0].RecordID)
	assert.Equal(t, "rec-2", got.Errors[1].RecordID, "most recent entry comes last")
	assert.NotZero(t, got.Errors[0].Timestamp)
}

func TestErrorLogBounded(t *testing.T) {
	tracker := newTestTracker(t, &stubCounter{})

	for i := 0; i < maxErrors+5; i++ {
		tracker.RecordError(fmt.Sprintf("rec-%d", i), "failed")
	}

	got := tracker.GetStatus()
	require.Len(t, got.Errors, maxErrors)
	assert.Equal(t, "rec-5", got.Errors[0].RecordID, "oldest entries are evicted first")
	assert.Equal(t, fmt.Sprintf("rec-%d", maxErrors+4), got.Errors[maxErrors-1].RecordID)
}

func TestClearErrorsLeavesOtherFields(t *testing.T) {
	tracker := newTestTracker(t, &stubCounter{})

	tracker.SetSyncing(true)
	tracker.SetSyncing(false)
	tracker.RecordError("rec-1", "failed")

	before := tracker.GetStatus()
	require.NotZero(t, before.LastSyncAt)

	tracker.ClearErrors()

	got := tracker.GetStatus()
	assert.Empty(t, got.Errors)
	assert.Equal(t, before.LastSyncAt, got.LastSyncAt)
}

func TestListenersNotifiedOnTransitions(t *testing.T) {
	tracker := newTestTracker(t, &stubCounter{})

	var snapshots []models.SyncStatus
	tracker.Subscribe(func(s models.SyncStatus) {
		snapshots = append(snapshots, s)
	})

	tracker.SetSyncing(true)
	tracker.RecordError("rec-1", "failed")
	tracker.SetSyncing(false)
	tracker.ClearErrors()

	require.Len(t, snapshots, 4)
	assert.True(t, snapshots[0].IsSyncing)
	assert.Len(t, snapshots[1].Errors, 1)
	assert.False(t, snapshots[2].IsSyncing)
	assert.Empty(t, snapshots[3].Errors)
}
