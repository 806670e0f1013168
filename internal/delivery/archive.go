package delivery

import (
	"context"
	"time"

	"github.com/bobmcallan/digest/internal/interfaces"
	"github.com/bobmcallan/digest/internal/models"
)

// ArchiveChannel keeps a copy of every delivered message in the report archive
type ArchiveChannel struct {
	archive interfaces.ReportArchive
	now     func() time.Time
}

// NewArchiveChannel creates a channel over an open archive
func NewArchiveChannel(archive interfaces.ReportArchive) *ArchiveChannel {
	return &ArchiveChannel{archive: archive, now: time.Now}
}

func (a *ArchiveChannel) Name() string { return "archive" }

func (a *ArchiveChannel) Send(ctx context.Context, msg *models.Message) (string, error) {
	rec, err := models.NewArchivedReport(msg, a.now().UTC())
	if err != nil {
		return "", err
	}
	if err := a.archive.Save(ctx, rec); err != nil {
		return "", err
	}
	return "archive:" + rec.ID, nil
}
