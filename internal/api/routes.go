package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes configures all API routes.
func SetupRoutes(h *Handlers) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", h.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		// Execution plans
		r.Route("/plans", func(r chi.Router) {
			r.Post("/", h.BuildPlan)
			r.Get("/", h.ListPlans)
			r.Get("/{planID}", h.GetPlan)
			r.Post("/{planID}/schedule", h.SchedulePlan)
			r.Delete("/{planID}/schedule", h.CancelPlan)
			r.Get("/{planID}/status", h.PlanStatus)
		})

		// Performance tracking
		r.Route("/tracking", func(r chi.Router) {
			r.Post("/", h.StartTracking)
			r.Get("/{orchestrationID}", h.GetCurrentMetrics)
			r.Delete("/{orchestrationID}", h.StopTracking)
		})

		// A/B experiments
		r.Route("/experiments", func(r chi.Router) {
			r.Post("/", h.CreateExperiment)
			r.Get("/{testID}", h.GetExperiment)
			r.Post("/{testID}/events", h.RecordEvent)
			r.Post("/{testID}/analyze", h.AnalyzeExperiment)
		})
	})

	return r
}
