package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	apperrors "github.com/lingaphealth/fieldsync/internal/errors"
)

// GetStatus handles GET /api/sync/status.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": h.tracker.GetStatus(),
		"online": h.monitor.IsOnline(),
	})
}

// TriggerSync handles POST /api/sync/trigger — the "sync now" action.
// The pass runs synchronously and returns its counts. A pass already in
// flight yields 409; the UI should disable the action while is_syncing is
// true.
//
// The bearer token comes from the request's Authorization header, falling
// back to the stored session token.
func (h *Handler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		token = h.tokens.Get()
	}
	if token == "" {
		writeError(w, http.StatusUnauthorized, "no portal session token")
		return
	}

	result, err := h.engine.Sync(r.Context(), token)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrSyncInProgress) {
			writeError(w, http.StatusConflict, "sync already in progress")
			return
		}
		writeError(w, http.StatusInternalServerError, "sync failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ClearErrors handles DELETE /api/sync/errors.
func (h *Handler) ClearErrors(w http.ResponseWriter, r *http.Request) {
	h.tracker.ClearErrors()
	w.WriteHeader(http.StatusNoContent)
}

// SetToken handles PUT /api/session/token. The form UI hands over the portal
// bearer token after login so monitor-triggered passes can authenticate.
func (h *Handler) SetToken(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}

	h.tokens.Set(body.Token)
	w.WriteHeader(http.StatusNoContent)
}

// ClearToken handles DELETE /api/session/token.
func (h *Handler) ClearToken(w http.ResponseWriter, r *http.Request) {
	h.tokens.Clear()
	w.WriteHeader(http.StatusNoContent)
}

// bearerToken extracts the token from an Authorization: Bearer header.
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}
