package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"icruise-backend/internal/handlers"
	"icruise-backend/internal/middleware"
)

func New(
	chatHandler *handlers.ChatHandler,
	cruiseHandler *handlers.CruiseHandler,
	chatLimiter *middleware.RateLimiter,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {

		// ──── Chat Routes ────
		r.Group(func(r chi.Router) {
			r.Use(chatLimiter.Middleware)
			r.Post("/chat", chatHandler.Chat)
		})

		// ──── Cruise Routes ────
		r.Route("/cruises", func(r chi.Router) {
			r.Get("/", cruiseHandler.List)
			r.Get("/{id}", cruiseHandler.Get)
		})
	})

	return r
}
