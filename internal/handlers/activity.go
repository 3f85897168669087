package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"safenest-backend/internal/middleware"
	"safenest-backend/internal/models"
	"safenest-backend/internal/repository"
	"safenest-backend/internal/services"
)

type ActivityHandler struct {
	ledger *services.LedgerService
	repo   *repository.ActivityRepo
}

func NewActivityHandler(ledger *services.LedgerService, repo *repository.ActivityRepo) *ActivityHandler {
	return &ActivityHandler{ledger: ledger, repo: repo}
}

// LogTime accepts one flush from the extension agent and merges it into the
// activity ledger.
func (h *ActivityHandler) LogTime(w http.ResponseWriter, r *http.Request) {
	tokenUserID := middleware.GetUserID(r.Context())

	var req models.LogTimeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	// The agent authenticates as the parent account; the payload may not log
	// time against anyone else.
	if req.UserID == uuid.Nil {
		req.UserID = tokenUserID
	} else if req.UserID != tokenUserID {
		writeJSON(w, http.StatusForbidden, errorResp("FORBIDDEN", "Cannot log time for another user", r))
		return
	}

	resp, err := h.ledger.LogTime(r.Context(), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Recent lists the caller's most recently updated activity records for the
// dashboard feed.
func (h *ActivityHandler) Recent(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 200 {
			writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "limit must be between 1 and 200", r))
			return
		}
		limit = n
	}

	records, err := h.repo.ListRecent(r.Context(), userID, limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load activity", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"records": records,
	})
}
