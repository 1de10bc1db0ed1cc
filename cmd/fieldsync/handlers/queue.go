package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/lingaphealth/fieldsync/internal/errors"
	"github.com/lingaphealth/fieldsync/internal/models"
)

// EnqueueRecord handles POST /api/queue/{recordType}.
// The form UI calls this when a submission cannot reach the portal; the
// record is queued for the next sync pass. Payload validation happens in the
// form layer before this point.
func (h *Handler) EnqueueRecord(w http.ResponseWriter, r *http.Request) {
	recordType := models.RecordType(chi.URLParam(r, "recordType"))

	var payload map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	item, err := h.store.Enqueue(recordType, payload)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrInvalid) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to queue record")
		return
	}

	writeJSON(w, http.StatusCreated, item)
}

// ListQueue handles GET /api/queue.
func (h *Handler) ListQueue(w http.ResponseWriter, r *http.Request) {
	items := h.store.List()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items": items,
		"count": len(items),
	})
}

// RemoveRecord handles DELETE /api/queue/{id}. Removing an unknown id
// succeeds; the record may already have synced or been evicted.
func (h *Handler) RemoveRecord(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.store.Remove(id); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to remove record")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ClearQueue handles DELETE /api/queue.
func (h *Handler) ClearQueue(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Clear(); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to clear queue")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
