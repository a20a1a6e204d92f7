package matching

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/imadgeboyega/fitmatch-backend/internal/auth"
	"github.com/imadgeboyega/fitmatch-backend/internal/common/utils"
)

// RateLimit bounds feedback submissions per client IP.
type RateLimit struct {
	Requests int
	Window   time.Duration
}

func RegisterRoutes(r chi.Router, handler *Handler, hub *Hub, authMiddleware *auth.Middleware, limit RateLimit) {
	r.Route("/api/v1/matching", func(r chi.Router) {
		r.Use(authMiddleware.Authenticate)

		r.Get("/recommendations", handler.GetRecommendations)
		r.Get("/compatibility/{userId}", handler.GetCompatibility)
		r.Get("/matches", handler.GetMatches)

		r.With(httprate.Limit(
			limit.Requests,
			limit.Window,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
				utils.ErrorResponse(w, "Too many feedback events, slow down", http.StatusTooManyRequests)
			}),
		)).Post("/feedback", handler.SubmitFeedback)

		if hub != nil {
			r.Get("/ws", hub.ServeWS)
		}
	})
}
