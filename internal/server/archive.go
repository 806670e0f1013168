package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bobmcallan/digest/internal/models"
)

type reportListResponse struct {
	Reports []models.ArchivedReport `json:"reports"`
	Count   int                     `json:"count"`
}

// handleListReports handles GET /api/reports?limit=.
func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	if !s.archiveEnabled(w) {
		return
	}

	limit, err := positiveIntParam(r, "limit", 0)
	if err != nil {
		WriteErrorWithCode(w, http.StatusBadRequest, err.Error(), "bad_limit")
		return
	}

	reports, err := s.deps.Archive.List(r.Context(), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list archived reports")
		WriteError(w, http.StatusInternalServerError, "Failed to list reports")
		return
	}
	WriteJSON(w, http.StatusOK, reportListResponse{Reports: reports, Count: len(reports)})
}

// handleArchivedReportHTML handles GET /reports/{id} with the delivered HTML.
func (s *Server) handleArchivedReportHTML(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.archived(w, r)
	if !ok {
		return
	}
	if rec.HTML == "" {
		WriteError(w, http.StatusNotFound, "Report "+rec.ID+" has no rendered message")
		return
	}
	WriteHTML(w, http.StatusOK, rec.HTML)
}

func (s *Server) archived(w http.ResponseWriter, r *http.Request) (*models.ArchivedReport, bool) {
	if !s.archiveEnabled(w) {
		return nil, false
	}
	id := chi.URLParam(r, "id")
	rec, err := s.deps.Archive.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrReportNotFound) {
			WriteErrorWithCode(w, http.StatusNotFound, "Report "+id+" not found", "not_found")
			return nil, false
		}
		s.logger.Error().Err(err).Str("report", id).Msg("Failed to load archived report")
		WriteError(w, http.StatusInternalServerError, "Failed to load report")
		return nil, false
	}
	return rec, true
}

func (s *Server) archiveEnabled(w http.ResponseWriter) bool {
	if s.deps.Archive == nil {
		WriteErrorWithCode(w, http.StatusServiceUnavailable, "Report archive is not configured", "archive_disabled")
		return false
	}
	return true
}
