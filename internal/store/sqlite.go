package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"harvest/internal/models"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS targets (
	url      TEXT PRIMARY KEY,
	code     TEXT NOT NULL,
	name     TEXT NOT NULL,
	position INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS runs (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id     TEXT NOT NULL UNIQUE,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS records (
	run_id         TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
	id             INTEGER NOT NULL,
	name           TEXT NOT NULL,
	hatching_times TEXT NOT NULL,
	image_urls     TEXT NOT NULL,
	error          TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, id)
);`

// SQLite stores targets and every run's records in one database file.
type SQLite struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys = ON;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pragma foreign_keys: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pragma journal_mode: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// SaveTargets replaces the stored target list.
func (s *SQLite) SaveTargets(ctx context.Context, targets []models.Target) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM targets`); err != nil {
		return fmt.Errorf("clear targets: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO targets (url, code, name, position) VALUES (?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET code = excluded.code, name = excluded.name`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, t := range targets {
		if _, err := stmt.ExecContext(ctx, t.URL, t.Code, t.Name, i); err != nil {
			return fmt.Errorf("insert target %s: %w", t.URL, err)
		}
	}
	return tx.Commit()
}

func (s *SQLite) LoadTargets(ctx context.Context) ([]models.Target, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT code, name, url FROM targets ORDER BY position`)
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

func (s *SQLite) SaveRecords(ctx context.Context, runID string, records []models.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT INTO runs (run_id) VALUES (?) ON CONFLICT(run_id) DO NOTHING`, runID); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records (run_id, id, name, hatching_times, image_urls, error)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, id) DO UPDATE SET
			name = excluded.name,
			hatching_times = excluded.hatching_times,
			image_urls = excluded.image_urls,
			error = excluded.error`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		hatching, images, err := encodeLists(r)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, runID, r.ID, r.Name, hatching, images, r.Error); err != nil {
			return fmt.Errorf("insert record %d: %w", r.ID, err)
		}
	}
	return tx.Commit()
}

func (s *SQLite) LoadRecords(ctx context.Context) ([]models.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, hatching_times, image_urls, error FROM records
		WHERE run_id = (SELECT run_id FROM runs ORDER BY seq DESC LIMIT 1)
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

func (s *SQLite) Close() error {
	return s.db.Close()
}

func encodeLists(r models.Record) (string, string, error) {
	hatching, err := json.Marshal(r.HatchingTimes)
	if err != nil {
		return "", "", fmt.Errorf("encode hatching times of %d: %w", r.ID, err)
	}
	images, err := json.Marshal(r.ImageURLs)
	if err != nil {
		return "", "", fmt.Errorf("encode image urls of %d: %w", r.ID, err)
	}
	return string(hatching), string(images), nil
}

func decodeLists(r *models.Record, hatching, images []byte) error {
	if err := json.Unmarshal(hatching, &r.HatchingTimes); err != nil {
		return fmt.Errorf("decode hatching times of %d: %w", r.ID, err)
	}
	if err := json.Unmarshal(images, &r.ImageURLs); err != nil {
		return fmt.Errorf("decode image urls of %d: %w", r.ID, err)
	}
	return nil
}
