// Package storage selects the report archive backend.
package storage

import (
	"context"
	"fmt"

	"github.com/bobmcallan/digest/internal/common"
	"github.com/bobmcallan/digest/internal/interfaces"
	"github.com/bobmcallan/digest/internal/storage/surrealdb"
)

// Backend type constants.
const (
	BackendNone      = "none"
	BackendSurrealDB = "surrealdb"
)

// NewReportArchive opens the configured archive. It returns nil, nil when
// archiving is disabled.
func NewReportArchive(ctx context.Context, config common.ArchiveConfig, logger *common.Logger) (interfaces.ReportArchive, error) {
	backend := config.Backend
	if backend == "" {
		backend = BackendNone
	}

	switch backend {
	case BackendNone:
		return nil, nil

	case BackendSurrealDB:
		store, err := surrealdb.Open(ctx, config, logger)
		if err != nil {
			return nil, err
		}
		return store, nil

	default:
		return nil, fmt.Errorf("unknown archive backend: %s (supported: none, surrealdb)", backend)
	}
}
