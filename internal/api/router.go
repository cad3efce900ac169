package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/provetcare/clinic-server/internal/appointment"
	"github.com/provetcare/clinic-server/internal/billing"
)

type RouterConfig struct {
	Appointments *appointment.Service
	Billing      *billing.Service
	PgPool       *pgxpool.Pool
	Redis        *redis.Client
	JWTSecret    string
	Logger       zerolog.Logger
	Env          string
	Version      string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Authenticated API
	r.Group(func(r chi.Router) {
		r.Use(Authenticate(cfg.JWTSecret))

		r.Post("/appointments", requestAppointmentHandler(cfg.Appointments))
		r.Get("/appointments", listAppointmentsHandler(cfg.Appointments))

		r.Get("/invoices", listInvoicesHandler(cfg.Billing))
		r.Get("/invoices/{id}", getInvoiceHandler(cfg.Billing))

		// Staff-only operations
		r.Group(func(r chi.Router) {
			r.Use(RequireStaff)

			r.Post("/appointments/follow-up", createFollowUpHandler(cfg.Appointments))
			r.Get("/appointments/pending", listPendingAppointmentsHandler(cfg.Appointments))
			r.Patch("/appointments/{id}/review", markUnderReviewHandler(cfg.Appointments))
			r.Patch("/appointments/{id}/status", changeStatusHandler(cfg.Appointments))

			r.Post("/prescriptions", issuePrescriptionHandler(cfg.Billing))
		})
	})

	return r
}
