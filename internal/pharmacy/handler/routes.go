package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/medflow/pharmacy-backend/pkg/httputil"
	"github.com/medflow/pharmacy-backend/pkg/logger"
)

// Handlers groups the HTTP handlers of the pharmacy service.
type Handlers struct {
	Medicines *MedicineHandler
	Lots      *LotHandler
	Dispenses *DispenseHandler
	Reports   *ReportHandler
	Health    *HealthHandler
}

// NewRouter builds the service router with the standard middleware chain.
func NewRouter(h Handlers, corsOrigins []string, log *logger.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", httputil.HeaderRequestID},
		ExposedHeaders:   []string{httputil.HeaderRequestID},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(httputil.ActorMiddleware)

	// Health check
	r.Get("/health", h.Health.Check)

	// API routes
	r.Route("/api/v1/pharmacy", func(r chi.Router) {
		r.Route("/medicines", func(r chi.Router) {
			r.Get("/", h.Medicines.List)
			r.Post("/", h.Medicines.Create)
			r.Get("/{id}", h.Medicines.Get)
			r.Get("/{id}/lots", h.Lots.ListByMedicine)
			r.Post("/{id}/lots", h.Lots.Create)
		})

		r.Get("/lots/{id}", h.Lots.Get)

		r.Route("/dispenses", func(r chi.Router) {
			r.Get("/", h.Dispenses.List)
			r.Post("/", h.Dispenses.Create)
		})

		r.Get("/reports/summary", h.Reports.Summary)
	})

	return r
}
