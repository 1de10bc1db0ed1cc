package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorMessage(t *testing.T) {
	err := New(ErrStorage, "failed to persist queue item")
	assert.Equal(t, "[STORAGE_ERROR] failed to persist queue item", err.Error())

	wrapped := Wrap(ErrSyncFailed, "record upload failed", stderrors.New("connection refused"))
	assert.Equal(t, "[SYNC_FAILED] record upload failed: connection refused", wrapped.Error())
}

func TestUnwrap(t *testing.T) {
	cause := stderrors.New("disk full")
	err := Wrap(ErrStorage, "failed to persist queue item", cause)

	assert.ErrorIs(t, err, cause)
}

func TestIsMatchesCode(t *testing.T) {
	err := New(ErrSyncInProgress, "sync already in progress")

	assert.True(t, Is(err, ErrSyncInProgress))
	assert.False(t, Is(err, ErrSyncFailed))
	assert.False(t, Is(stderrors.New("plain"), ErrSyncInProgress))
	assert.False(t, Is(nil, ErrSyncInProgress))
}

func TestIsWalksChain(t *testing.T) {
	inner := New(ErrSyncTimeout, "record upload timed out")
	outer := fmt.Errorf("pass aborted: %w", inner)

	assert.True(t, Is(outer, ErrSyncTimeout))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, ErrStorage, CodeOf(New(ErrStorage, "x")))
	assert.Equal(t, ErrInternal, CodeOf(stderrors.New("plain")))
}
