package server

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func (s *Server) setupMiddleware() {
	s.router.Use(recoveryMiddleware(s.logger))
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(loggingMiddleware(s.logger))
}

// registerRoutes sets up every route on the router.
func (s *Server) registerRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Handle("/metrics", s.deps.Metrics.Handler())

	s.router.Get("/report/latest", s.handleLatestReportHTML)
	s.router.Get("/reports/{id}", s.handleArchivedReportHTML)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/version", s.handleVersion)
		r.Get("/report/latest", s.handleLatestReportJSON)
		r.Get("/reports", s.handleListReports)
		r.Get("/holdings/{symbol}", s.handleHoldingDetail)
		r.Get("/holdings/{symbol}/chart", s.handleHoldingChart)
	})
}
