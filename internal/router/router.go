package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"safenest-backend/internal/handlers"
	"safenest-backend/internal/middleware"
	"safenest-backend/internal/websocket"
)

func New(
	jwtAuth *middleware.JWTAuth,
	activityHandler *handlers.ActivityHandler,
	sosHandler *handlers.SOSHandler,
	preferencesHandler *handlers.PreferencesHandler,
	wsHub *websocket.Hub,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	// The agent sends at most a handful of flushes per page session
	logTimeLimiter := middleware.NewRateLimiter(60, time.Minute)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Activity Routes ────
		r.Route("/activity", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Group(func(r chi.Router) {
				r.Use(logTimeLimiter.Middleware)
				r.Post("/log-time", activityHandler.LogTime)
			})
			r.Get("/recent", activityHandler.Recent)
		})

		// ──── SOS Routes ────
		r.Route("/sos", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/{userID}", sosHandler.Poll)
			r.Post("/{userID}/ack", sosHandler.Acknowledge)
		})

		// ──── Alert Preference Routes ────
		r.Route("/user", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/alert-preferences", preferencesHandler.Get)
			r.Put("/alert-preferences", preferencesHandler.Update)
		})

		// ──── WebSocket ────
		r.Get("/ws", wsHub.HandleWebSocket)
	})

	return r
}
