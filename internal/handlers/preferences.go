package handlers

import (
	"encoding/json"
	"net/http"

	"safenest-backend/internal/middleware"
	"safenest-backend/internal/models"
	"safenest-backend/internal/repository"
)

type PreferencesHandler struct {
	userRepo *repository.UserRepo
}

func NewPreferencesHandler(userRepo *repository.UserRepo) *PreferencesHandler {
	return &PreferencesHandler{userRepo: userRepo}
}

func (h *PreferencesHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	prefs, err := h.userRepo.GetAlertPreferences(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load alert preferences", r))
		return
	}

	writeJSON(w, http.StatusOK, prefs)
}

func (h *PreferencesHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var prefs models.AlertChannelPreferences
	if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	if err := h.userRepo.SetAlertPreferences(r.Context(), userID, prefs); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to save alert preferences", r))
		return
	}

	writeJSON(w, http.StatusOK, prefs)
}
