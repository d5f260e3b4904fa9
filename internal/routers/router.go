package routers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"codecollab/internal/api"
	"codecollab/internal/metrics"
)

func New(h *api.Handlers, allowedOrigins []string) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		metrics.Middleware("collab"),
	)

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", metrics.Handler())

	// websockets are long lived and stay outside the request timeout
	r.Get("/ws", h.CollabWS)
	r.Get("/ws/session/{id}", h.CollabWS)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))
		r.Get("/api/v1/healthz", h.Health)
		r.Post("/api/v1/sessions", h.CreateSession)
		r.Get("/api/v1/sessions/{id}", h.GetSession)
		r.Get("/api/v1/sessions/{id}/messages", h.ListMessages)
	})

	return r
}
