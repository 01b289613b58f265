package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/DelxAbde/panel-pal-translate/internal/account"
	"github.com/DelxAbde/panel-pal-translate/internal/config"
	"github.com/DelxAbde/panel-pal-translate/internal/logging"
	"github.com/DelxAbde/panel-pal-translate/internal/service"
	"github.com/DelxAbde/panel-pal-translate/internal/ws"
)

func NewRouter(cfg *config.Config, jobs *service.Service, accounts *account.Service, logger *zap.SugaredLogger) http.Handler {
	logger = logging.OrNop(logger)
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	h := NewHandlers(cfg, jobs, accounts, logger)
	wsServer := ws.NewServer(jobs, jobs.Hub(), logger)

	// Health & Info
	r.Get("/health", h.Health)
	r.Get("/info", h.Info)
	r.Get("/stats", h.Stats)

	// History page
	r.Get("/", h.History)

	r.Route("/api", func(r chi.Router) {
		r.Use(h.authenticate)

		// Reference data
		r.Get("/languages", h.Languages)
		r.Get("/fonts", h.Fonts)
		r.Get("/styles", h.Styles)

		// Jobs
		r.Post("/jobs", h.SubmitJob)
		r.Get("/jobs", h.ListJobs)
		r.Get("/jobs/current", h.CurrentJob)
		r.Get("/jobs/completed", h.ListCompletedJobs)
		r.Get("/jobs/{id}", h.GetJob)
		r.Post("/jobs/{id}/cancel", h.CancelJob)
		r.Delete("/jobs/{id}", h.CancelJob)
		r.Get("/jobs/{id}/image", h.Image)
		r.Get("/jobs/{id}/download", h.Download)
		r.Get("/jobs/{id}/text", h.Text)

		// Mock auth
		r.Post("/auth/login", h.Login)
		r.Post("/auth/register", h.Register)
		r.Post("/auth/guest", h.Guest)
		r.Post("/auth/logout", h.Logout)

		r.Group(func(r chi.Router) {
			r.Use(requireUser)
			r.Get("/me", h.Me)
			r.Get("/me/preferences", h.GetPreferences)
			r.Put("/me/preferences", h.UpdatePreferences)
		})
	})

	// WebSocket
	r.Get("/ws/jobs/{id}", wsServer.HandleJob)

	return r
}
