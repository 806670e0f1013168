package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bobmcallan/digest/internal/app"
	"github.com/bobmcallan/digest/internal/common"
	"github.com/bobmcallan/digest/internal/interfaces"
	"github.com/bobmcallan/digest/internal/metrics"
	"github.com/bobmcallan/digest/internal/models"
)

// ReportSource exposes the most recent digest run
type ReportSource interface {
	Latest() (*app.RunResult, bool)
}

// HoldingFinder looks up a holding in the configured portfolio
type HoldingFinder interface {
	FindHolding(symbol string) (models.Holding, bool, error)
}

// Deps are the collaborators the HTTP surface reads from
type Deps struct {
	Config   *common.Config
	Logger   *common.Logger
	Metrics  *metrics.Metrics
	Reports  ReportSource
	Holdings HoldingFinder
	Detail   interfaces.DetailService
	Archive  interfaces.ReportArchive // optional
}

// Server wraps the HTTP server for serve mode.
type Server struct {
	deps   Deps
	router *chi.Mux
	server *http.Server
	logger *common.Logger
}

// NewServer creates the HTTP server over an initialized App.
func NewServer(a *app.App) *Server {
	return New(Deps{
		Config:   a.Config,
		Logger:   a.Logger,
		Metrics:  a.Metrics,
		Reports:  a,
		Holdings: a,
		Detail:   a.DetailService,
		Archive:  a.Archive,
	})
}

// New creates the HTTP server from explicit dependencies.
func New(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = common.NewSilentLogger()
	}
	s := &Server{
		deps:   deps,
		router: chi.NewRouter(),
		logger: deps.Logger,
	}
	s.setupMiddleware()
	s.registerRoutes()

	s.server = &http.Server{
		Addr:         deps.Config.Server.Address(),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the HTTP handler for testing.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server (blocking).
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
