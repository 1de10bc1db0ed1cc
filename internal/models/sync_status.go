package models

// SyncError is one entry in the bounded sync error log.
type SyncError struct {
	Timestamp int64  `json:"timestamp"`
	Message   string `json:"message"`
	RecordID  string `json:"record_id"`
}

// SyncStatus is a snapshot of sync health for UI consumption.
// PendingCount is always recomputed from the live queue length; it is never
// persisted or mutated independently.
type SyncStatus struct {
	IsSyncing    bool        `json:"is_syncing"`
	LastSyncAt   int64       `json:"last_sync_at"` // unix seconds, 0 when never synced
	PendingCount int         `json:"pending_count"`
	Errors       []SyncError `json:"errors"`
}
