package surrealdb

import (
	"context"
	"fmt"

	"github.com/bobmcallan/digest/internal/common"
	"github.com/bobmcallan/digest/internal/interfaces"
	"github.com/bobmcallan/digest/internal/models"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

const reportSummaryFields = "report_id, as_of, subject, filename, archived_at"

const (
	defaultListLimit = 30
	maxListLimit     = 365
)

// ReportStore implements interfaces.ReportArchive on SurrealDB
type ReportStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

// NewReportStore wraps an open connection and defines the report table
func NewReportStore(ctx context.Context, db *surrealdb.DB, logger *common.Logger) (*ReportStore, error) {
	if err := defineTables(ctx, db); err != nil {
		return nil, err
	}
	return &ReportStore{db: db, logger: logger}, nil
}

func (s *ReportStore) Save(ctx context.Context, rec *models.ArchivedReport) error {
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("archived report requires an id")
	}

	sql := "UPSERT $rid CONTENT $report"
	vars := map[string]any{"rid": surrealmodels.NewRecordID(reportTable, rec.ID), "report": rec}

	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		_, err := surrealdb.Query[[]models.ArchivedReport](ctx, s.db, sql, vars)
		if err == nil {
			s.logger.Debug().Str("report", rec.ID).Msg("Report archived")
			return nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return fmt.Errorf("failed to archive report %s after retries: %w", rec.ID, lastErr)
}

func (s *ReportStore) Get(ctx context.Context, id string) (*models.ArchivedReport, error) {
	rec, err := surrealdb.Select[models.ArchivedReport](ctx, s.db, surrealmodels.NewRecordID(reportTable, id))
	if err != nil {
		return nil, fmt.Errorf("failed to select report %s: %w", id, err)
	}
	if rec == nil || rec.ID == "" {
		return nil, fmt.Errorf("%w: %s", models.ErrReportNotFound, id)
	}
	return rec, nil
}

func (s *ReportStore) List(ctx context.Context, limit int) ([]models.ArchivedReport, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	sql := "SELECT " + reportSummaryFields + " FROM " + reportTable + " ORDER BY as_of DESC, report_id DESC LIMIT $limit"
	results, err := surrealdb.Query[[]models.ArchivedReport](ctx, s.db, sql, map[string]any{"limit": limit})
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}

	items := make([]models.ArchivedReport, 0)
	if results != nil && len(*results) > 0 {
		items = append(items, (*results)[0].Result...)
	}
	return items, nil
}

func (s *ReportStore) Close() error {
	s.db.Close(context.Background())
	return nil
}

// Ensure ReportStore implements ReportArchive
var _ interfaces.ReportArchive = (*ReportStore)(nil)
