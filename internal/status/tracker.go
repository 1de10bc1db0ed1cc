// Package status tracks sync health for UI consumption.
//
// The tracker persists its own history fields (syncing flag, last sync time,
// bounded error log) in the agent database; the pending count is always
// recomputed from the live queue so the two can never drift apart.
package status

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/lingaphealth/fieldsync/internal/db"
	"github.com/lingaphealth/fieldsync/internal/logging"
	"github.com/lingaphealth/fieldsync/internal/models"
)

// maxErrors bounds the persisted error log; the oldest entries are dropped
// beyond this.
const maxErrors = 20

// Counter reports the number of pending queue items.
type Counter interface {
	Len() int
}

// Listener receives a status snapshot after every tracker transition.
type Listener func(models.SyncStatus)

// Tracker exposes a consistent snapshot of sync health.
type Tracker struct {
	db    *db.DB
	queue Counter

	mu        sync.Mutex
	listeners []Listener
}

// NewTracker creates a Tracker backed by the agent database.
func NewTracker(database *db.DB, queue Counter) *Tracker {
	return &Tracker{db: database, queue: queue}
}

// GetStatus returns the current sync status. It never fails: unreadable
// persisted state degrades to a default all-zero status, logged.
func (t *Tracker) GetStatus() models.SyncStatus {
	status := models.SyncStatus{Errors: []models.SyncError{}}

	var isSyncing int
	var errorsJSON string
	err := t.db.QueryRow(
		"SELECT is_syncing, last_sync_at, errors FROM sync_state WHERE id = 1").
		Scan(&isSyncing, &status.LastSyncAt, &errorsJSON)
	if err != nil {
		logging.Error("failed to read sync state, using defaults", err, nil)
	} else {
		status.IsSyncing = isSyncing != 0
		if err := json.Unmarshal([]byte(errorsJSON), &status.Errors); err != nil {
			logging.Warn("corrupt sync error log, resetting", logging.Fields{"error": err.Error()})
			status.Errors = []models.SyncError{}
		}
	}

	status.PendingCount = t.queue.Len()
	return status
}

// SetSyncing flips the syncing flag. The transition to false stamps the last
// sync time; the transition to true leaves it untouched.
func (t *Tracker) SetSyncing(flag bool) {
	t.mu.Lock()

	var err error
	if flag {
		_, err = t.db.Exec("UPDATE sync_state SET is_syncing = 1 WHERE id = 1")
	} else {
		_, err = t.db.Exec("UPDATE sync_state SET is_syncing = 0, last_sync_at = ? WHERE id = 1",
			time.Now().Unix())
	}
	if err != nil {
		logging.Error("failed to persist syncing flag", err, logging.Fields{"syncing": flag})
	}

	t.mu.Unlock()
	t.notify()
}

// RecordError appends an entry to the bounded error log.
func (t *Tracker) RecordError(recordID, message string) {
	t.mu.Lock()

	entries := t.loadErrors()
	entries = append(entries, models.SyncError{
		Timestamp: time.Now().Unix(),
		Message:   message,
		RecordID:  recordID,
	})
	if len(entries) > maxErrors {
		entries = entries[len(entries)-maxErrors:]
	}
	t.saveErrors(entries)

	t.mu.Unlock()
	t.notify()
}

// ClearErrors empties the error log, leaving other fields untouched.
func (t *Tracker) ClearErrors() {
	t.mu.Lock()
	t.saveErrors([]models.SyncError{})
	t.mu.Unlock()
	t.notify()
}

// Subscribe registers a listener notified with a fresh snapshot after every
// state transition. Listeners replace the polling refresh the UI would
// otherwise need.
func (t *Tracker) Subscribe(l Listener) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, l)
}

// notify sends a fresh snapshot to all listeners. Called outside the lock so
// listeners may read the tracker.
func (t *Tracker) notify() {
	t.mu.Lock()
	listeners := make([]Listener, len(t.listeners))
	copy(listeners, t.listeners)
	t.mu.Unlock()

	if len(listeners) == 0 {
		return
	}

	snapshot := t.GetStatus()
	for _, l := range listeners {
		l(snapshot)
	}
}

// loadErrors reads the persisted error log. Callers must hold t.mu.
func (t *Tracker) loadErrors() []models.SyncError {
	var errorsJSON string
	if err := t.db.QueryRow("SELECT errors FROM sync_state WHERE id = 1").Scan(&errorsJSON); err != nil {
		logging.Error("failed to read sync error log", err, nil)
		return []models.SyncError{}
	}

	var entries []models.SyncError
	if err := json.Unmarshal([]byte(errorsJSON), &entries); err != nil {
		logging.Warn("corrupt sync error log, resetting", logging.Fields{"error": err.Error()})
		return []models.SyncError{}
	}
	return entries
}

// saveErrors persists the error log. Callers must hold t.mu.
func (t *Tracker) saveErrors(entries []models.SyncError) {
	data, err := json.Marshal(entries)
	if err != nil {
		logging.Error("failed to marshal sync error log", err, nil)
		return
	}
	if _, err := t.db.Exec("UPDATE sync_state SET errors = ? WHERE id = 1", string(data)); err != nil {
		logging.Error("failed to persist sync error log", err, nil)
	}
}
