package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lingaphealth/fieldsync/internal/db"
	"github.com/lingaphealth/fieldsync/internal/errors"
	"github.com/lingaphealth/fieldsync/internal/models"
	"github.com/lingaphealth/fieldsync/internal/queue"
	"github.com/lingaphealth/fieldsync/internal/status"
)

type testEnv struct {
	store   *queue.SQLiteStore
	tracker *status.Tracker
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	database, err := db.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, db.Migrate(database))

	store := queue.NewSQLiteStore(database)
	return &testEnv{
		store:   store,
		tracker: status.NewTracker(database, store),
	}
}

func newTestEngine(t *testing.T, env *testEnv, baseURL string) *Engine {
	t.Helper()
	return New(env.store, env.tracker, baseURL, time.Second)
}

func TestSyncDrainsQueueOnSuccess(t *testing.T) {
	env := newTestEnv(t)

	var mu sync.Mutex
	gotPaths := []string{}
	gotAuth := []string{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		gotPaths = append(gotPaths, r.URL.Path)
		gotAuth = append(gotAuth, r.Header.Get("Authorization"))
		mu.Unlock()

		var payload map[string]interface{}
		if assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload)) {
			assert.Equal(t, false, payload["synced"])
		}

		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	for i := 0; i < 3; i++ {
		_, err := env.store.Enqueue(models.RecordVaccination, map[string]interface{}{"n": i})
		require.NoError(t, err)
	}
	require.Equal(t, 3, env.store.Len())

	eng := newTestEngine(t, env, server.URL)
	result, err := eng.Sync(context.Background(), "tok-123")
	require.NoError(t, err)

	assert.Equal(t, 3, result.Synced)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, 0, env.store.Len())

	got := env.tracker.GetStatus()
	assert.False(t, got.IsSyncing)
	assert.NotZero(t, got.LastSyncAt)
	assert.Empty(t, got.Errors)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, gotPaths, 3)
	for i := range gotPaths {
		assert.Equal(t, "/api/v1/vaccination-records", gotPaths[i])
		assert.Equal(t, "Bearer tok-123", gotAuth[i])
	}
}

func TestSyncRoutesByRecordType(t *testing.T) {
	env := newTestEnv(t)

	var mu sync.Mutex
	gotPaths := []string{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		gotPaths = append(gotPaths, r.URL.Path)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	_, err := env.store.Enqueue(models.RecordVaccination, nil)
	require.NoError(t, err)
	_, err = env.store.Enqueue(models.RecordMaternal, nil)
	require.NoError(t, err)
	_, err = env.store.Enqueue(models.RecordSenior, nil)
	require.NoError(t, err)

	eng := newTestEngine(t, env, server.URL)
	result, err := eng.Sync(context.Background(), "tok")
	require.NoError(t, err)
	require.Equal(t, 3, result.Synced)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{
		"/api/v1/vaccination-records",
		"/api/v1/maternal-records",
		"/api/v1/senior-assistance-records",
	}, gotPaths, "items are processed in insertion order against their own routes")
}

func TestSyncFailingItemDoesNotBlockOthers(t *testing.T) {
	env := newTestEnv(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/maternal-records" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	failing, err := env.store.Enqueue(models.RecordMaternal, map[string]interface{}{"resident_id": "res-1"})
	require.NoError(t, err)
	passing, err := env.store.Enqueue(models.RecordVaccination, map[string]interface{}{"resident_id": "res-2"})
	require.NoError(t, err)

	eng := newTestEngine(t, env, server.URL)
	result, err := eng.Sync(context.Background(), "tok")
	require.NoError(t, err)

	assert.Equal(t, 1, result.Synced)
	assert.Equal(t, 1, result.Failed)

	items := env.store.List()
	require.Len(t, items, 1)
	assert.Equal(t, failing.ID, items[0].ID)
	assert.Equal(t, 1, items[0].RetryCount)
	assert.Contains(t, items[0].LastError, "500")

	got := env.tracker.GetStatus()
	require.Len(t, got.Errors, 1)
	assert.Equal(t, failing.ID, got.Errors[0].RecordID)

	for _, item := range items {
		assert.NotEqual(t, passing.ID, item.ID)
	}
}

func TestSyncEvictsItemAfterThreeFailedPasses(t *testing.T) {
	env := newTestEnv(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	item, err := env.store.Enqueue(models.RecordMaternal, map[string]interface{}{"resident_id": "res-1"})
	require.NoError(t, err)

	eng := newTestEngine(t, env, server.URL)
	for pass := 1; pass <= 3; pass++ {
		result, err := eng.Sync(context.Background(), "tok")
		require.NoError(t, err)
		assert.Equal(t, 1, result.Failed, "pass %d", pass)
	}

	assert.Empty(t, env.store.List(), "item is dropped after the retry cap")

	got := env.tracker.GetStatus()
	require.Len(t, got.Errors, 3)
	for _, e := range got.Errors {
		assert.Equal(t, item.ID, e.RecordID)
	}

	// A further pass over the empty queue is a clean no-op.
	result, err := eng.Sync(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, 0, result.Synced)
	assert.Equal(t, 0, result.Failed)
}

func TestSyncUnreachablePortal(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.store.Enqueue(models.RecordSenior, map[string]interface{}{"resident_id": "res-3"})
	require.NoError(t, err)

	// Reserved port, nothing listens here.
	eng := newTestEngine(t, env, "http://127.0.0.1:1")
	result, err := eng.Sync(context.Background(), "tok")
	require.NoError(t, err)

	assert.Equal(t, 0, result.Synced)
	assert.Equal(t, 1, result.Failed)

	items := env.store.List()
	require.Len(t, items, 1)
	assert.Equal(t, 1, items[0].RetryCount)
	assert.NotEmpty(t, items[0].LastError)
}

func TestSyncTimeoutCountsAsFailure(t *testing.T) {
	env := newTestEnv(t)

	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()
	defer close(release)

	_, err := env.store.Enqueue(models.RecordVaccination, nil)
	require.NoError(t, err)

	eng := New(env.store, env.tracker, server.URL, 50*time.Millisecond)
	result, err := eng.Sync(context.Background(), "tok")
	require.NoError(t, err)

	assert.Equal(t, 1, result.Failed)

	items := env.store.List()
	require.Len(t, items, 1)
	assert.Contains(t, items[0].LastError, "timed out")
}

func TestSyncRefusesConcurrentPass(t *testing.T) {
	env := newTestEnv(t)

	entered := make(chan struct{})
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	_, err := env.store.Enqueue(models.RecordVaccination, nil)
	require.NoError(t, err)

	eng := newTestEngine(t, env, server.URL)

	done := make(chan *Result, 1)
	go func() {
		result, err := eng.Sync(context.Background(), "tok")
		assert.NoError(t, err)
		done <- result
	}()

	<-entered
	assert.True(t, eng.InProgress())

	_, err = eng.Sync(context.Background(), "tok")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrSyncInProgress))

	close(release)
	result := <-done
	assert.Equal(t, 1, result.Synced)
	assert.False(t, eng.InProgress())
}

func TestSyncSnapshotExcludesItemsEnqueuedMidPass(t *testing.T) {
	env := newTestEnv(t)

	entered := make(chan struct{})
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-entered:
		default:
			close(entered)
			<-release
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	_, err := env.store.Enqueue(models.RecordVaccination, map[string]interface{}{"n": 1})
	require.NoError(t, err)

	eng := newTestEngine(t, env, server.URL)

	done := make(chan *Result, 1)
	go func() {
		result, err := eng.Sync(context.Background(), "tok")
		assert.NoError(t, err)
		done <- result
	}()

	<-entered
	_, err = env.store.Enqueue(models.RecordSenior, map[string]interface{}{"n": 2})
	require.NoError(t, err)
	close(release)

	result := <-done
	assert.Equal(t, 1, result.Synced, "the mid-pass item waits for the next pass")
	assert.Equal(t, 1, env.store.Len())

	// The next pass picks it up.
	result, err = eng.Sync(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Synced)
	assert.Equal(t, 0, env.store.Len())
}
