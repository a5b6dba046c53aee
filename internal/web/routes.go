package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-verify/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	sweepsHandler := handlers.NewSweepsHandler(s.runs)

	s.router.Get("/api/v1/health", handlers.HealthCheck(s.opts.Version))

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/sweeps", sweepsHandler.List)
		r.Get("/sweeps/{id}/runs", sweepsHandler.Runs)
		r.Get("/sweeps/{id}/chart.png", sweepsHandler.Chart)
		r.Get("/runs/{id}", sweepsHandler.GetRun)
	})
}
