package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"safenest-backend/internal/middleware"
	"safenest-backend/internal/services"
)

type SOSHandler struct {
	sos *services.SOSService
}

func NewSOSHandler(sos *services.SOSService) *SOSHandler {
	return &SOSHandler{sos: sos}
}

// Poll reports whether the user currently has an active SOS condition.
func (h *SOSHandler) Poll(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathUserID(w, r)
	if !ok {
		return
	}

	resp, err := h.sos.Poll(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to check SOS state", r))
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Acknowledge clears the user's SOS condition. Acknowledging an idle or
// expired condition succeeds: foreground and background pollers may both
// try.
func (h *SOSHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathUserID(w, r)
	if !ok {
		return
	}

	if err := h.sos.Acknowledge(r.Context(), userID); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to acknowledge SOS", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Acknowledged"})
}

func (h *SOSHandler) pathUserID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid user ID", r))
		return uuid.Nil, false
	}

	if userID != middleware.GetUserID(r.Context()) {
		writeJSON(w, http.StatusForbidden, errorResp("FORBIDDEN", "Cannot access another user's SOS state", r))
		return uuid.Nil, false
	}

	return userID, true
}
