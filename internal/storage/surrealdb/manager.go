// Package surrealdb archives delivered reports in SurrealDB
package surrealdb

import (
	"context"
	"fmt"

	"github.com/bobmcallan/digest/internal/common"
	"github.com/surrealdb/surrealdb.go"
)

const reportTable = "digest_report"

// Connect opens a SurrealDB connection, signs in and selects the
// configured namespace and database.
func Connect(ctx context.Context, config common.ArchiveConfig) (*surrealdb.DB, error) {
	db, err := surrealdb.New(config.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
	}

	if _, err := db.SignIn(ctx, map[string]interface{}{
		"user": config.Username,
		"pass": config.Password,
	}); err != nil {
		db.Close(ctx)
		return nil, fmt.Errorf("failed to sign in to SurrealDB: %w", err)
	}

	if err := db.Use(ctx, config.Namespace, config.Database); err != nil {
		db.Close(ctx)
		return nil, fmt.Errorf("failed to select namespace/database: %w", err)
	}
	return db, nil
}

// defineTables creates the archive tables. Querying a table that was never
// defined is an error on SurrealDB v3.
func defineTables(ctx context.Context, db *surrealdb.DB) error {
	for _, table := range []string{reportTable} {
		sql := fmt.Sprintf("DEFINE TABLE IF NOT EXISTS %s SCHEMALESS", table)
		if _, err := surrealdb.Query[any](ctx, db, sql, nil); err != nil {
			return fmt.Errorf("failed to define table %s: %w", table, err)
		}
	}
	return nil
}

// Open connects and returns a ready report store
func Open(ctx context.Context, config common.ArchiveConfig, logger *common.Logger) (*ReportStore, error) {
	db, err := Connect(ctx, config)
	if err != nil {
		return nil, err
	}
	store, err := NewReportStore(ctx, db, logger)
	if err != nil {
		db.Close(ctx)
		return nil, err
	}

	logger.Info().
		Str("address", config.Address).
		Str("namespace", config.Namespace).
		Str("database", config.Database).
		Msg("SurrealDB report archive initialized")

	return store, nil
}
