package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/floxi-finance/floxi-keeper/metrics"
)

// Sets up chi router, middlewares and defines all api endpoints
func (s *Server) routes() {
	s.r = chi.NewRouter()

	s.r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))

	s.r.Use(middleware.RequestID)
	s.r.Use(middleware.RealIP)
	s.r.Use(middleware.Logger)
	s.r.Use(middleware.Recoverer)
	s.r.Use(middleware.Timeout(60 * time.Second))

	// Prometheus sets its own content type.
	s.r.Method(http.MethodGet, "/metrics", metrics.Handler())

	s.r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.SetHeader("Content-Type", "application/json"))

		r.Get("/health", s.handleHealthGet)
		r.Get("/cursors", s.handleCursorsGet)

		r.Route("/withdrawals", func(r chi.Router) {
			r.Get("/requests", s.handleWithdrawalRequestsGet)
			r.Get("/queued", s.handleQueuedWithdrawalsGet)
			r.Get("/completed", s.handleCompletedWithdrawalsGet)
		})

		r.Get("/bridge/unmatched-deposits", s.handleUnmatchedDepositsGet)
		r.Get("/ferry/passengers", s.handlePassengersGet)
	})
}
