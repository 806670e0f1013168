package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrReportNotFound is returned when an archived report does not exist
var ErrReportNotFound = errors.New("report not found")

// ArchivedReport is a delivered message kept in the report archive.
// Listings leave HTML empty.
type ArchivedReport struct {
	ID         string    `json:"report_id"`
	AsOf       time.Time `json:"as_of"`
	Subject    string    `json:"subject"`
	Filename   string    `json:"filename"`
	ArchivedAt time.Time `json:"archived_at"`
	HTML       string    `json:"html,omitempty"`
}

// NewArchivedReport captures a rendered message for the archive
func NewArchivedReport(msg *Message, now time.Time) (*ArchivedReport, error) {
	if msg == nil {
		return nil, errors.New("nil message")
	}
	if msg.ReportID == "" {
		return nil, fmt.Errorf("message %q has no report id", msg.Subject)
	}
	return &ArchivedReport{
		ID:         msg.ReportID,
		AsOf:       msg.AsOf,
		Subject:    msg.Subject,
		Filename:   msg.Filename,
		ArchivedAt: now,
		HTML:       msg.HTML,
	}, nil
}
