package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouteOptions carries the optional mounts.
type RouteOptions struct {
	Health         *HealthChecker
	TimeRexWebhook http.Handler
	AllowedOrigins []string
}

// DefaultAllowedOrigins is used when RouteOptions.AllowedOrigins is empty.
var DefaultAllowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}

// SetupRoutes builds the router.
func SetupRoutes(h *Handlers, opts RouteOptions) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = DefaultAllowedOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if opts.Health != nil {
		r.Get("/health", opts.Health.HandleHealth)
		r.Get("/health/ready", opts.Health.HandleReadiness)
	} else {
		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"status":"healthy"}`))
		})
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/viewer/{companyID}/{documentID}", func(r chi.Router) {
			r.Post("/timer/start", h.StartTimer)
			r.Post("/timer/stop", h.StopTimer)
			r.Post("/views", h.RecordView)
			r.Post("/feedback", h.RecordFeedback)
		})

		r.Get("/companies/{companyID}/score", h.GetCompanyScore)
		r.Get("/documents/{documentID}/score", h.GetDocumentScore)

		r.Get("/settings/followup", h.GetFollowupSettings)
		r.Put("/settings/followup", h.UpdateFollowupSettings)

		r.Post("/followups/dispatch", h.TriggerDispatch)
		r.Post("/followups/cleanup", h.TriggerCleanup)
	})

	if opts.TimeRexWebhook != nil {
		r.Mount("/webhooks/timerex", opts.TimeRexWebhook)
	}

	return r
}
