package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/digest/internal/common"
	"github.com/bobmcallan/digest/internal/metrics"
	"github.com/bobmcallan/digest/internal/models"
	testcommon "github.com/bobmcallan/digest/test/common"
)

type failingArchive struct {
	testcommon.MockArchive
}

func (f *failingArchive) List(ctx context.Context, limit int) ([]models.ArchivedReport, error) {
	return nil, errors.New("connection reset")
}

func (f *failingArchive) Get(ctx context.Context, id string) (*models.ArchivedReport, error) {
	return nil, errors.New("connection reset")
}

func newArchiveServer(t *testing.T) (*Server, *testcommon.MockArchive) {
	t.Helper()
	archive := testcommon.NewMockArchive()
	base := time.Date(2024, 3, 25, 16, 30, 0, 0, time.UTC)
	for i, id := range []string{"r1", "r2"} {
		msg := &models.Message{ReportID: id, AsOf: base.AddDate(0, 0, i), Subject: "Digest " + id, HTML: "<html>" + id + "</html>"}
		rec, err := models.NewArchivedReport(msg, base)
		require.NoError(t, err)
		require.NoError(t, archive.Save(context.Background(), rec))
	}
	srv := New(Deps{
		Config:  common.NewDefaultConfig(),
		Metrics: metrics.New(),
		Archive: archive,
	})
	return srv, archive
}

func serve(srv *Server, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestListReports(t *testing.T) {
	srv, _ := newArchiveServer(t)

	rec := serve(srv, "/api/reports")
	require.Equal(t, http.StatusOK, rec.Code)

	var body reportListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 2, body.Count)
	assert.Equal(t, "r2", body.Reports[0].ID, "newest first")
	assert.Empty(t, body.Reports[0].HTML)

	rec = serve(srv, "/api/reports?limit=1")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)

	rec = serve(srv, "/api/reports?limit=zero")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "bad_limit")
}

func TestArchivedReportHTML(t *testing.T) {
	srv, _ := newArchiveServer(t)

	rec := serve(srv, "/reports/r2")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "<html>r2</html>", rec.Body.String())

	rec = serve(srv, "/reports/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "not_found")
}

func TestArchive_Disabled(t *testing.T) {
	ts := newTestServer()
	for _, path := range []string{"/api/reports", "/reports/r1"} {
		rec := ts.get(path)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, path)
		assert.Contains(t, rec.Body.String(), "archive_disabled")
	}
}

func TestArchive_BackendErrors(t *testing.T) {
	srv := New(Deps{
		Config:  common.NewDefaultConfig(),
		Metrics: metrics.New(),
		Archive: &failingArchive{},
	})
	assert.Equal(t, http.StatusInternalServerError, serve(srv, "/api/reports").Code)
	assert.Equal(t, http.StatusInternalServerError, serve(srv, "/reports/r1").Code)
}
