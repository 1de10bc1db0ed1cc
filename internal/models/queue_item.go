package models

import "encoding/json"

// QueueItem represents one pending health record awaiting portal persistence.
type QueueItem struct {
	ID         string          `db:"id" json:"id"`
	RecordType RecordType      `db:"record_type" json:"record_type"`
	Payload    json.RawMessage `db:"payload" json:"payload"`
	RetryCount int             `db:"retry_count" json:"retry_count"`
	LastError  string          `db:"last_error" json:"last_error,omitempty"`
	EnqueuedAt int64           `db:"enqueued_at" json:"enqueued_at"`
}

// TableName returns the table name for QueueItem.
func (QueueItem) TableName() string {
	return "pending_records"
}
