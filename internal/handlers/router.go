package handlers

import (
	"net/http"
	"time"

	"deadlineTracker/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type RouterConfig struct {
	AllowedOrigins []string
	RateLimit      int
	RequestTimeout time.Duration
}

func NewRouter(deadlines DeadlineHandler, chat ChatHandler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", SessionHeader, middleware.RequestIDHeader},
		ExposedHeaders: []string{SessionHeader, middleware.RequestIDHeader},
		MaxAge:         300,
	}))
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.RateLimit(cfg.RateLimit))

	r.Route("/deadlines", func(r chi.Router) {
		r.Get("/", deadlines.GetDeadlines)            // GET /deadlines?filter=
		r.Get("/summary", deadlines.GetSummary)       // GET /deadlines/summary
		r.Get("/export", deadlines.Export)            // GET /deadlines/export?filter=
		r.Delete("/{id}", deadlines.DeleteDeadline)   // DELETE /deadlines/{id}
		r.Put("/{id}/status", deadlines.UpdateStatus) // PUT /deadlines/{id}/status
	})

	r.Route("/chat", func(r chi.Router) {
		r.Get("/", chat.View)                 // GET /chat
		r.Post("/", chat.Message)             // POST /chat
		r.Post("/confirm/{id}", chat.Confirm) // POST /chat/confirm/{id}
		r.Post("/cancel", chat.Cancel)        // POST /chat/cancel
	})

	r.Get("/health", deadlines.HealthCheck)

	return otelhttp.NewHandler(r, serviceName)
}
