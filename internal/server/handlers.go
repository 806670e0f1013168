package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bobmcallan/digest/internal/app"
	"github.com/bobmcallan/digest/internal/common"
	"github.com/bobmcallan/digest/internal/models"
	"github.com/bobmcallan/digest/internal/services/detail"
	"github.com/bobmcallan/digest/internal/services/marketdata"
)

type healthResponse struct {
	Status     string     `json:"status"`
	Version    string     `json:"version"`
	LastReport *time.Time `json:"last_report,omitempty"`
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Version: common.Version}
	if s.deps.Reports != nil {
		if latest, ok := s.deps.Reports.Latest(); ok {
			finished := latest.Finished
			resp.LastReport = &finished
		}
	}
	WriteJSON(w, http.StatusOK, resp)
}

// handleVersion handles GET /api/version.
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, common.GetVersionInfo())
}

// handleLatestReportHTML handles GET /report/latest with the rendered email body.
func (s *Server) handleLatestReportHTML(w http.ResponseWriter, r *http.Request) {
	latest, ok := s.latest(w)
	if !ok {
		return
	}
	if latest.Message == nil {
		WriteError(w, http.StatusNotFound, "Latest report was empty and not rendered")
		return
	}
	WriteHTML(w, http.StatusOK, latest.Message.HTML)
}

// handleLatestReportJSON handles GET /api/report/latest.
func (s *Server) handleLatestReportJSON(w http.ResponseWriter, r *http.Request) {
	latest, ok := s.latest(w)
	if !ok {
		return
	}
	WriteJSON(w, http.StatusOK, latest.Report)
}

// handleHoldingDetail handles GET /api/holdings/{symbol}?period=.
func (s *Server) handleHoldingDetail(w http.ResponseWriter, r *http.Request) {
	d, ok := s.renderDetail(w, r)
	if !ok {
		return
	}
	WriteJSON(w, http.StatusOK, d)
}

// handleHoldingChart handles GET /api/holdings/{symbol}/chart?period=.
func (s *Server) handleHoldingChart(w http.ResponseWriter, r *http.Request) {
	d, ok := s.renderDetail(w, r)
	if !ok {
		return
	}
	if len(d.ChartPNG) == 0 {
		WriteError(w, http.StatusNotFound, "Not enough history to chart "+d.Ticker)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "max-age=300")
	w.WriteHeader(http.StatusOK)
	w.Write(d.ChartPNG)
}

func (s *Server) latest(w http.ResponseWriter) (*app.RunResult, bool) {
	if s.deps.Reports == nil {
		WriteError(w, http.StatusNotFound, "No report available yet")
		return nil, false
	}
	latest, ok := s.deps.Reports.Latest()
	if !ok {
		WriteError(w, http.StatusNotFound, "No report available yet")
		return nil, false
	}
	return latest, true
}

func (s *Server) renderDetail(w http.ResponseWriter, r *http.Request) (*models.Detail, bool) {
	symbol := chi.URLParam(r, "symbol")
	if symbol == "" {
		WriteError(w, http.StatusBadRequest, "symbol is required")
		return nil, false
	}

	h, found, err := s.deps.Holdings.FindHolding(symbol)
	if err != nil {
		s.logger.Error().Err(err).Str("ticker", symbol).Msg("Failed to load portfolio")
		WriteError(w, http.StatusInternalServerError, "Failed to load portfolio")
		return nil, false
	}
	if !found {
		WriteErrorWithCode(w, http.StatusNotFound, "Symbol is not in the portfolio: "+symbol, "not_held")
		return nil, false
	}

	d, err := s.deps.Detail.Render(r.Context(), models.DetailRequest{
		Ticker:  h.ResolvedSymbol,
		Holding: h,
		Period:  r.URL.Query().Get("period"),
	})
	switch {
	case errors.Is(err, marketdata.ErrUnsupportedPeriod):
		WriteErrorWithCode(w, http.StatusBadRequest, err.Error(), "bad_period")
		return nil, false
	case errors.Is(err, detail.ErrNoHistory):
		WriteErrorWithCode(w, http.StatusNotFound, err.Error(), "no_history")
		return nil, false
	case err != nil:
		s.logger.Error().Err(err).Str("ticker", h.ResolvedSymbol).Msg("Detail view failed")
		WriteError(w, http.StatusBadGateway, "Market data unavailable for "+h.ResolvedSymbol)
		return nil, false
	}
	return d, true
}
