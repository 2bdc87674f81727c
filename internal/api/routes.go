package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/valu/keyrotation/internal/metrics"
	"github.com/valu/keyrotation/internal/repository"
	"github.com/valu/keyrotation/internal/service"
	"github.com/valu/keyrotation/pkg/errs"
)

const requestTimeout = 30 * time.Second

// StatusReporter tells whether the store is running on its fallback.
type StatusReporter interface {
	Status(ctx context.Context) (repository.TierStatus, error)
}

type Handler struct {
	svc   *service.Service
	tiers StatusReporter
}

func SetupRoutes(svc *service.Service, tiers StatusReporter, log *zerolog.Logger) http.Handler {
	h := &Handler{svc: svc, tiers: tiers}
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(hlog.NewHandler(*log))
	r.Use(accessLog)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	r.NotFound(errs.NotFoundResponse)
	r.MethodNotAllowed(errs.MethodNotAllowedResponse)

	r.Get("/healthz", h.Health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))
		r.Use(requireTenant)

		r.Get("/status", h.Status)
		r.Get("/dashboard", h.Dashboard)
		r.Get("/activities", h.ListActivities)

		r.Route("/platforms", func(r chi.Router) {
			r.Get("/", h.ListPlatforms)
			r.Post("/", h.AddPlatform)
			r.Get("/{id}", h.GetPlatform)
			r.Patch("/{id}", h.UpdatePlatform)
			r.Delete("/{id}", h.DisconnectPlatform)
		})

		r.Route("/keys", func(r chi.Router) {
			r.Get("/", h.SearchKeys)
			r.Post("/", h.CreateKey)
			r.Get("/{id}", h.GetKey)
			r.Patch("/{id}", h.UpdateKey)
			r.Delete("/{id}", h.DeleteKey)
		})

		r.Route("/workflows", func(r chi.Router) {
			r.Get("/", h.ListWorkflows)
			r.Post("/", h.StartWorkflow)
			r.Get("/{id}", h.GetWorkflow)
			r.Delete("/{id}", h.DeleteWorkflow)
			r.Post("/{id}/steps/{step}", h.AdvanceStep)
			r.Post("/{id}/fail", h.FailWorkflow)
		})
	})

	return r
}
