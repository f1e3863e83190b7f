// Package store persists discovered targets and scraped records.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"harvest/internal/models"
)

// Store is where a run reads its input and leaves its output.
type Store interface {
	SaveTargets(ctx context.Context, targets []models.Target) error
	LoadTargets(ctx context.Context) ([]models.Target, error)
	// SaveRecords stores the records of one run.
	SaveRecords(ctx context.Context, runID string, records []models.Record) error
	// LoadRecords returns the records of the most recent run.
	LoadRecords(ctx context.Context) ([]models.Record, error)
	Close() error
}

// Files names the documents used by the JSON store.
type Files struct {
	Targets string
	Records string
}

// Open picks a backend from dsn: "" or "json" for JSON files, "sqlite://path"
// for SQLite and "postgres://..." for Postgres.
func Open(ctx context.Context, dsn string, files Files) (Store, error) {
	switch {
	case dsn == "" || dsn == "json":
		return NewJSON(files), nil
	case strings.HasPrefix(dsn, "sqlite://"):
		s, err := OpenSQLite(strings.TrimPrefix(dsn, "sqlite://"))
		if err != nil {
			return nil, err
		}
		return s, nil
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		s, err := OpenPostgres(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("unsupported store %q", dsn)
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}
