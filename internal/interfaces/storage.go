package interfaces

import (
	"context"

	"github.com/bobmcallan/digest/internal/models"
)

// ReportArchive keeps delivered messages for later retrieval
type ReportArchive interface {
	// Save stores or replaces a report keyed by its ID
	Save(ctx context.Context, rec *models.ArchivedReport) error

	// Get returns one report with its HTML, or models.ErrReportNotFound
	Get(ctx context.Context, id string) (*models.ArchivedReport, error)

	// List returns report summaries, newest first, without HTML
	List(ctx context.Context, limit int) ([]models.ArchivedReport, error)

	// Close releases the connection
	Close() error
}
