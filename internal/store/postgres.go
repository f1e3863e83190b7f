package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"harvest/internal/models"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS harvest_targets (
	url      TEXT PRIMARY KEY,
	code     TEXT NOT NULL,
	name     TEXT NOT NULL,
	position INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS harvest_runs (
	seq        BIGSERIAL PRIMARY KEY,
	run_id     TEXT NOT NULL UNIQUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS harvest_records (
	run_id         TEXT NOT NULL REFERENCES harvest_runs(run_id) ON DELETE CASCADE,
	id             INTEGER NOT NULL,
	name           TEXT NOT NULL,
	hatching_times JSONB NOT NULL,
	image_urls     JSONB NOT NULL,
	error          TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, id)
);`

// insertBatch caps the statements queued per round trip.
const insertBatch = 200

// Postgres stores targets and records through a pgx pool.
type Postgres struct {
	pool *pgxpool.Pool
}

func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns <= 0 || cfg.MaxConns > 4 {
		cfg.MaxConns = 2
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (s *Postgres) SaveTargets(ctx context.Context, targets []models.Target) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM harvest_targets`); err != nil {
			return fmt.Errorf("clear targets: %w", err)
		}
		for start := 0; start < len(targets); start += insertBatch {
			end := min(start+insertBatch, len(targets))
			b := &pgx.Batch{}
			for i, t := range targets[start:end] {
				b.Queue(`INSERT INTO harvest_targets (url, code, name, position) VALUES ($1, $2, $3, $4)
					ON CONFLICT (url) DO UPDATE SET code = EXCLUDED.code, name = EXCLUDED.name`,
					t.URL, t.Code, t.Name, start+i)
			}
			if err := tx.SendBatch(ctx, b).Close(); err != nil {
				return fmt.Errorf("insert targets: %w", err)
			}
		}
		return nil
	})
}

func (s *Postgres) LoadTargets(ctx context.Context) ([]models.Target, error) {
	rows, err := s.pool.Query(ctx, `SELECT code, name, url FROM harvest_targets ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query targets: %w", err)
	}
	defer rows.Close()

	var targets []models.Target
	for rows.Next() {
		var t models.Target
		if err := rows.Scan(&t.Code, &t.Name, &t.URL); err != nil {
			return nil, fmt.Errorf("scan target: %w", err)
		}
		targets = append(targets, t)
	}
	return targets, rows.Err()
}

func (s *Postgres) SaveRecords(ctx context.Context, runID string, records []models.Record) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `INSERT INTO harvest_runs (run_id) VALUES ($1) ON CONFLICT (run_id) DO NOTHING`, runID); err != nil {
			return fmt.Errorf("insert run: %w", err)
		}
		for start := 0; start < len(records); start += insertBatch {
			end := min(start+insertBatch, len(records))
			b := &pgx.Batch{}
			for _, r := range records[start:end] {
				hatching, images, err := encodeLists(r)
				if err != nil {
					return err
				}
				b.Queue(`INSERT INTO harvest_records (run_id, id, name, hatching_times, image_urls, error)
					VALUES ($1, $2, $3, $4::jsonb, $5::jsonb, $6)
					ON CONFLICT (run_id, id) DO UPDATE SET
						name = EXCLUDED.name,
						hatching_times = EXCLUDED.hatching_times,
						image_urls = EXCLUDED.image_urls,
						error = EXCLUDED.error`,
					runID, r.ID, r.Name, hatching, images, r.Error)
			}
			if err := tx.SendBatch(ctx, b).Close(); err != nil {
				return fmt.Errorf("insert records: %w", err)
			}
		}
		return nil
	})
}

func (s *Postgres) LoadRecords(ctx context.Context) ([]models.Record, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, hatching_times::text, image_urls::text, error FROM harvest_records
		WHERE run_id = (SELECT run_id FROM harvest_runs ORDER BY seq DESC LIMIT 1)
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var records []models.Record
	for rows.Next() {
		var (
			r                models.Record
			hatching, images string
		)
		if err := rows.Scan(&r.ID, &r.Name, &hatching, &images, &r.Error); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		if err := decodeLists(&r, []byte(hatching), []byte(images)); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *Postgres) Close() error {
	s.pool.Close()
	return nil
}
