package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/fixmate/technician-scheduling/internal/logger"
	"github.com/fixmate/technician-scheduling/internal/rating"
	"github.com/fixmate/technician-scheduling/internal/schedule"
)

type RouterConfig struct {
	Engine     *schedule.Engine
	Reconciler *rating.Reconciler
	PgPool     *pgxpool.Pool
	Redis      *redis.Client
	Log        *logger.Logger
	Env        string
	Version    string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Log))

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Appointment lifecycle
	r.Post("/appointments", createAppointmentHandler(cfg.Engine))
	r.Get("/appointments", listAppointmentsHandler(cfg.Engine))
	r.Get("/appointments/{id}", getAppointmentHandler(cfg.Engine))
	r.Post("/appointments/{id}/reschedule", rescheduleAppointmentHandler(cfg.Engine))
	r.Post("/appointments/{id}/confirm", transitionHandler(cfg.Engine, schedule.ActionConfirm))
	r.Post("/appointments/{id}/start", transitionHandler(cfg.Engine, schedule.ActionStart))
	r.Post("/appointments/{id}/arrive", transitionHandler(cfg.Engine, schedule.ActionArrive))
	r.Post("/appointments/{id}/complete", transitionHandler(cfg.Engine, schedule.ActionComplete))
	r.Post("/appointments/{id}/no-show", transitionHandler(cfg.Engine, schedule.ActionNoShow))
	r.Post("/appointments/{id}/cancel", cancelAppointmentHandler(cfg.Engine))

	// Technician calendar views
	r.Get("/technicians/{id}/appointments/upcoming", listUpcomingHandler(cfg.Engine))
	r.Get("/technicians/{id}/appointments/month", listByMonthHandler(cfg.Engine))

	// Ratings
	r.Post("/ratings", createRatingHandler(cfg.Reconciler))
	r.Patch("/ratings/{id}", updateRatingHandler(cfg.Reconciler))
	r.Delete("/ratings/{id}", deleteRatingHandler(cfg.Reconciler))
	r.Get("/technicians/{id}/rating-summary", ratingSummaryHandler(cfg.Reconciler))

	return r
}
