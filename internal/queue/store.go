// Package queue provides the durable pending-record store used while the
// device is offline. Items survive agent restarts; they leave the queue only
// when a sync pass uploads them or when the retry cap evicts them.
package queue

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/lingaphealth/fieldsync/internal/db"
	"github.com/lingaphealth/fieldsync/internal/errors"
	"github.com/lingaphealth/fieldsync/internal/logging"
	"github.com/lingaphealth/fieldsync/internal/models"
	"github.com/lingaphealth/fieldsync/internal/uuid"
)

// MaxRetries is the number of failed upload attempts after which an item is
// dropped from the queue.
const MaxRetries = 3

// Store is the queue interface consumed by the sync engine and the UI API.
type Store interface {
	// Enqueue appends a pending record and returns the stored item.
	Enqueue(recordType models.RecordType, payload map[string]interface{}) (*models.QueueItem, error)

	// List returns all pending records in insertion order. Unreadable
	// storage yields an empty list, never an error.
	List() []*models.QueueItem

	// Remove deletes the item with the given id; absent ids are a no-op.
	Remove(id string) error

	// RecordFailure increments the item's retry count and stores the
	// failure message. Reaching MaxRetries evicts the item instead.
	RecordFailure(id, message string) error

	// Clear empties the queue.
	Clear() error

	// Len returns the current queue length.
	Len() int
}

// SQLiteStore persists queue items in the agent database.
type SQLiteStore struct {
	db *db.DB
	mu sync.RWMutex
}

// NewSQLiteStore creates a Store backed by the agent database.
func NewSQLiteStore(database *db.DB) *SQLiteStore {
	return &SQLiteStore{db: database}
}

// Enqueue appends a record to the queue. The payload is stored as-is apart
// from a synced flag stamped false; field validation belongs to the form
// layer.
func (s *SQLiteStore) Enqueue(recordType models.RecordType, payload map[string]interface{}) (*models.QueueItem, error) {
	if !recordType.Valid() {
		return nil, errors.New(errors.ErrInvalid, fmt.Sprintf("unknown record type %q", recordType))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if payload == nil {
		payload = map[string]interface{}{}
	}
	payload["synced"] = false

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(errors.ErrInvalid, "payload is not serializable", err)
	}

	item := &models.QueueItem{
		ID:         uuid.New(),
		RecordType: recordType,
		Payload:    raw,
		EnqueuedAt: time.Now().Unix(),
	}

	_, err = s.db.Exec(`
	INSERT INTO pending_records (id, record_type, payload, retry_count, last_error, enqueued_at)
	VALUES (?, ?, ?, 0, '', ?)`,
		item.ID, string(item.RecordType), string(raw), item.EnqueuedAt)
	if err != nil {
		logging.Error("failed to persist queue item", err, logging.Fields{"record_type": recordType})
		return nil, errors.Wrap(errors.ErrStorage, "failed to persist queue item", err)
	}

	logging.Debug("enqueued pending record", logging.Fields{
		"id":          item.ID,
		"record_type": recordType,
	})

	return item, nil
}

// List returns all pending records in insertion order. Corrupt rows are
// skipped and logged; an unreadable queue is treated as empty.
func (s *SQLiteStore) List() []*models.QueueItem {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
	SELECT id, record_type, payload, retry_count, last_error, enqueued_at
	FROM pending_records ORDER BY seq ASC`)
	if err != nil {
		logging.Error("failed to read queue, treating as empty", err, nil)
		return []*models.QueueItem{}
	}
	defer rows.Close()

	items := []*models.QueueItem{}
	for rows.Next() {
		var item models.QueueItem
		var payload string
		if err := rows.Scan(&item.ID, &item.RecordType, &payload,
			&item.RetryCount, &item.LastError, &item.EnqueuedAt); err != nil {
			logging.Warn("skipping corrupt queue row", logging.Fields{"error": err.Error()})
			continue
		}
		item.Payload = json.RawMessage(payload)
		items = append(items, &item)
	}
	if err := rows.Err(); err != nil {
		logging.Error("failed while iterating queue rows", err, nil)
	}

	return items
}

// Remove deletes the item with the given id. Removing an absent id is a
// no-op, not an error.
func (s *SQLiteStore) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("DELETE FROM pending_records WHERE id = ?", id); err != nil {
		logging.Error("failed to remove queue item", err, logging.Fields{"id": id})
		return errors.Wrap(errors.ErrStorage, "failed to remove queue item", err)
	}
	return nil
}

// RecordFailure increments the retry count and stores the failure message.
// When the incremented count reaches MaxRetries the item is evicted instead;
// the caller is expected to have surfaced the failure via the error log.
func (s *SQLiteStore) RecordFailure(id, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(errors.ErrStorage, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	var retryCount int
	err = tx.QueryRow("SELECT retry_count FROM pending_records WHERE id = ?", id).Scan(&retryCount)
	if err == sql.ErrNoRows {
		// Item already removed; nothing to record.
		return nil
	}
	if err != nil {
		return errors.Wrap(errors.ErrStorage, "failed to read queue item", err)
	}

	retryCount++

	if retryCount >= MaxRetries {
		if _, err := tx.Exec("DELETE FROM pending_records WHERE id = ?", id); err != nil {
			return errors.Wrap(errors.ErrStorage, "failed to evict queue item", err)
		}
		logging.Warn("dropping record after retry cap", logging.Fields{
			"id":          id,
			"retry_count": retryCount,
			"last_error":  message,
		})
	} else {
		_, err := tx.Exec("UPDATE pending_records SET retry_count = ?, last_error = ? WHERE id = ?",
			retryCount, message, id)
		if err != nil {
			return errors.Wrap(errors.ErrStorage, "failed to update queue item", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(errors.ErrStorage, "failed to commit failure record", err)
	}
	return nil
}

// Clear empties the queue entirely.
func (s *SQLiteStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("DELETE FROM pending_records"); err != nil {
		logging.Error("failed to clear queue", err, nil)
		return errors.Wrap(errors.ErrStorage, "failed to clear queue", err)
	}

	logging.Info("queue cleared", nil)
	return nil
}

// Len returns the current queue length, or 0 when storage is unreadable.
func (s *SQLiteStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM pending_records").Scan(&count); err != nil {
		logging.Error("failed to count queue items", err, nil)
		return 0
	}
	return count
}
