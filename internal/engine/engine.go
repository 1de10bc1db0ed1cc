// Package engine drains the pending-record queue against the LINGAP portal.
package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/lingaphealth/fieldsync/internal/errors"
	"github.com/lingaphealth/fieldsync/internal/logging"
	"github.com/lingaphealth/fieldsync/internal/models"
	"github.com/lingaphealth/fieldsync/internal/queue"
	"github.com/lingaphealth/fieldsync/internal/status"
)

// DefaultRequestTimeout bounds each record upload within a pass. A timed-out
// upload counts as a failure toward the item's retry cap.
const DefaultRequestTimeout = 15 * time.Second

// routes maps each record type to its portal route.
var routes = map[models.RecordType]string{
	models.RecordVaccination: "/api/v1/vaccination-records",
	models.RecordMaternal:    "/api/v1/maternal-records",
	models.RecordSenior:      "/api/v1/senior-assistance-records",
}

// Result summarizes one sync pass.
type Result struct {
	Synced int `json:"synced"`
	Failed int `json:"failed"`
}

// Engine replays queued records one at a time. Each item is an independent
// unit of work: a failing item never blocks the rest of the pass.
type Engine struct {
	store   queue.Store
	tracker *status.Tracker
	client  *http.Client
	baseURL string
	timeout time.Duration

	mu         sync.Mutex
	inProgress bool
}

// New creates a sync engine targeting the portal at baseURL.
func New(store queue.Store, tracker *status.Tracker, baseURL string, timeout time.Duration) *Engine {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &Engine{
		store:   store,
		tracker: tracker,
		client:  &http.Client{},
		baseURL: baseURL,
		timeout: timeout,
	}
}

// InProgress reports whether a sync pass is currently running.
func (e *Engine) InProgress() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inProgress
}

// Sync drains a snapshot of the current queue in insertion order, uploading
// each record with the supplied bearer token. Records enqueued during the
// pass wait for the next one.
//
// Only a concurrent pass is reported as an error; per-item failures are
// recorded against the item and the status tracker, counted, and skipped.
func (e *Engine) Sync(ctx context.Context, token string) (*Result, error) {
	e.mu.Lock()
	if e.inProgress {
		e.mu.Unlock()
		return nil, errors.New(errors.ErrSyncInProgress, "sync already in progress")
	}
	e.inProgress = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.inProgress = false
		e.mu.Unlock()
	}()

	e.tracker.SetSyncing(true)
	defer e.tracker.SetSyncing(false)

	snapshot := e.store.List()
	result := &Result{}

	for _, item := range snapshot {
		select {
		case <-ctx.Done():
			// Remaining items stay queued untouched for the next pass.
			logging.Warn("sync pass interrupted", logging.Fields{
				"synced":    result.Synced,
				"failed":    result.Failed,
				"remaining": len(snapshot) - result.Synced - result.Failed,
			})
			return result, nil
		default:
		}

		if err := e.push(ctx, item, token); err != nil {
			e.fail(item, err)
			result.Failed++
			continue
		}

		if err := e.store.Remove(item.ID); err != nil {
			logging.Error("failed to remove synced record", err, logging.Fields{"id": item.ID})
		}
		result.Synced++
	}

	logging.Info("sync pass completed", logging.Fields{
		"synced": result.Synced,
		"failed": result.Failed,
	})

	return result, nil
}

// push uploads a single record to its portal route.
func (e *Engine) push(ctx context.Context, item *models.QueueItem, token string) error {
	route, ok := routes[item.RecordType]
	if !ok {
		return errors.New(errors.ErrInvalid, fmt.Sprintf("unknown record type %q", item.RecordType))
	}

	reqCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost,
		e.baseURL+route, bytes.NewReader(item.Payload))
	if err != nil {
		return errors.Wrap(errors.ErrSyncFailed, "failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		if reqCtx.Err() == context.DeadlineExceeded {
			return errors.Wrap(errors.ErrSyncTimeout, "record upload timed out", err)
		}
		return errors.Wrap(errors.ErrSyncFailed, "record upload failed", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.New(errors.ErrSyncFailed,
			fmt.Sprintf("portal returned status %d", resp.StatusCode))
	}

	return nil
}

// fail records a per-item failure with the store and the status tracker.
// The store may evict the item once it reaches the retry cap.
func (e *Engine) fail(item *models.QueueItem, cause error) {
	msg := cause.Error()

	if err := e.store.RecordFailure(item.ID, msg); err != nil {
		logging.Error("failed to record upload failure", err, logging.Fields{"id": item.ID})
	}
	e.tracker.RecordError(item.ID, msg)

	logging.Warn("record upload failed", logging.Fields{
		"id":          item.ID,
		"record_type": item.RecordType,
		"error":       msg,
	})
}
