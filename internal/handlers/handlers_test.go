package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"safenest-backend/internal/middleware"
	"safenest-backend/internal/models"
	"safenest-backend/internal/services"
)

// authAs injects the authenticated user the way the JWT middleware would.
func authAs(userID uuid.UUID) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), middleware.UserIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func newActivityRouter(t *testing.T, userID uuid.UUID) (*chi.Mux, *services.MemoryActivityStore) {
	t.Helper()

	store := services.NewMemoryActivityStore(services.RecencyWindow)
	ledger := services.NewLedgerService(store, nil, nil, nil, nil)
	h := NewActivityHandler(ledger, nil)

	r := chi.NewRouter()
	r.Use(authAs(userID))
	r.Post("/log-time", h.LogTime)
	r.Get("/recent", h.Recent)
	return r, store
}

func TestLogTimeEndpoint(t *testing.T) {
	userID := uuid.New()
	router, store := newActivityRouter(t, userID)

	body := `{"query":"dangerous challenge videos","timeSpent":12,"isHarmful":true,"predictedResult":"self-harm","reason":"tab_closed"}`
	req := httptest.NewRequest(http.MethodPost, "/log-time", strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}

	var resp models.LogTimeResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Success || resp.TotalTimeSpent != 12 || !resp.AlertSent {
		t.Errorf("unexpected response: %+v", resp)
	}

	records := store.Records()
	if len(records) != 1 || records[0].UserID != userID {
		t.Fatalf("expected one record owned by the token user, got %+v", records)
	}
}

func TestLogTimeEndpointRejectsOtherUser(t *testing.T) {
	router, store := newActivityRouter(t, uuid.New())

	body := `{"userId":"` + uuid.NewString() + `","query":"q","timeSpent":5,"predictedResult":"safe"}`
	req := httptest.NewRequest(http.MethodPost, "/log-time", strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rr.Code)
	}
	if len(store.Records()) != 0 {
		t.Error("forbidden request must not write a record")
	}
}

func TestLogTimeEndpointValidation(t *testing.T) {
	router, _ := newActivityRouter(t, uuid.New())

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"query":`},
		{"zero time", `{"query":"q","timeSpent":0,"predictedResult":"safe"}`},
		{"blank query", `{"query":"   ","timeSpent":5,"predictedResult":"safe"}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/log-time", strings.NewReader(tc.body))
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			if rr.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400, body = %s", rr.Code, rr.Body.String())
			}

			var errResp models.ErrorResponse
			if err := json.Unmarshal(rr.Body.Bytes(), &errResp); err != nil {
				t.Fatalf("failed to decode error body: %v", err)
			}
			if errResp.Error.Code != "VALIDATION_ERROR" {
				t.Errorf("error code = %q, want VALIDATION_ERROR", errResp.Error.Code)
			}
		})
	}
}

func TestRecentEndpointRejectsBadLimit(t *testing.T) {
	router, _ := newActivityRouter(t, uuid.New())

	for _, limit := range []string{"0", "-1", "201", "abc"} {
		req := httptest.NewRequest(http.MethodGet, "/recent?limit="+limit, nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("limit=%s: status = %d, want 400", limit, rr.Code)
		}
	}
}

func newSOSRouter(t *testing.T, userID uuid.UUID) (*chi.Mux, *services.SOSService) {
	t.Helper()

	sos := services.NewSOSService(services.NewMemoryConditionStore())
	h := NewSOSHandler(sos)

	r := chi.NewRouter()
	r.Use(authAs(userID))
	r.Get("/sos/{userID}", h.Poll)
	r.Post("/sos/{userID}/ack", h.Acknowledge)
	return r, sos
}

func TestSOSPollEndpoint(t *testing.T) {
	userID := uuid.New()
	router, sos := newSOSRouter(t, userID)

	if err := sos.Raise(context.Background(), userID, "Alex", "worrying search"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/sos/"+userID.String(), nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}

	var resp models.SOSPollResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Active || resp.ChildName != "Alex" || resp.Query != "worrying search" {
		t.Errorf("unexpected poll response: %+v", resp)
	}
}

func TestSOSPollEndpointIdle(t *testing.T) {
	userID := uuid.New()
	router, _ := newSOSRouter(t, userID)

	req := httptest.NewRequest(http.MethodGet, "/sos/"+userID.String(), nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}

	var resp models.SOSPollResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Active {
		t.Error("expected inactive poll for an idle user")
	}
}

func TestSOSAcknowledgeEndpoint(t *testing.T) {
	userID := uuid.New()
	router, sos := newSOSRouter(t, userID)

	if err := sos.Raise(context.Background(), userID, "Alex", "query"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ack := func() int {
		req := httptest.NewRequest(http.MethodPost, "/sos/"+userID.String()+"/ack", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr.Code
	}

	if code := ack(); code != http.StatusOK {
		t.Fatalf("first ack status = %d", code)
	}
	// Redundant acknowledges succeed: foreground and background pollers race.
	if code := ack(); code != http.StatusOK {
		t.Fatalf("redundant ack status = %d", code)
	}

	resp, err := sos.Poll(context.Background(), userID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Active {
		t.Error("poll after acknowledge must be inactive")
	}
}

func TestSOSEndpointsRejectOtherUsers(t *testing.T) {
	router, _ := newSOSRouter(t, uuid.New())
	other := uuid.NewString()

	req := httptest.NewRequest(http.MethodGet, "/sos/"+other, nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Errorf("poll status = %d, want 403", rr.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/sos/"+other+"/ack", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Errorf("ack status = %d, want 403", rr.Code)
	}
}

func TestSOSEndpointRejectsMalformedUserID(t *testing.T) {
	router, _ := newSOSRouter(t, uuid.New())

	req := httptest.NewRequest(http.MethodGet, "/sos/not-a-uuid", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}
