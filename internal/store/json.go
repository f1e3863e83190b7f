package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"harvest/internal/models"
)

// JSON keeps targets and records as pretty-printed JSON arrays. It holds a
// single run; saving records replaces the previous file.
type JSON struct {
	files Files
}

func NewJSON(files Files) *JSON {
	return &JSON{files: files}
}

func (s *JSON) SaveTargets(_ context.Context, targets []models.Target) error {
	return writeJSON(s.files.Targets, nonNil(targets))
}

func (s *JSON) LoadTargets(_ context.Context) ([]models.Target, error) {
	return ReadTargetsFile(s.files.Targets)
}

func (s *JSON) SaveRecords(_ context.Context, _ string, records []models.Record) error {
	return writeJSON(s.files.Records, nonNil(records))
}

func (s *JSON) LoadRecords(_ context.Context) ([]models.Record, error) {
	return ReadRecordsFile(s.files.Records)
}

func (s *JSON) Close() error { return nil }

// ReadTargetsFile reads a JSON array whose elements are target objects or
// plain names.
func ReadTargetsFile(path string) ([]models.Target, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read targets: %w", err)
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode targets %s: %w", path, err)
	}

	targets := make([]models.Target, 0, len(raw))
	for i, elem := range raw {
		elem = bytes.TrimSpace(elem)
		if len(elem) > 0 && elem[0] == '"' {
			var name string
			if err := json.Unmarshal(elem, &name); err != nil {
				return nil, fmt.Errorf("decode target %d: %w", i, err)
			}
			targets = append(targets, models.TargetFromName(name))
			continue
		}
		var t models.Target
		if err := json.Unmarshal(elem, &t); err != nil {
			return nil, fmt.Errorf("decode target %d: %w", i, err)
		}
		targets = append(targets, t)
	}
	return targets, nil
}

// ReadRecordsFile reads a JSON array of records.
func ReadRecordsFile(path string) ([]models.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}
	var records []models.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode records %s: %w", path, err)
	}
	return records, nil
}

func writeJSON(path string, v any) error {
	if path == "" {
		return fmt.Errorf("no output file configured")
	}
	if err := ensureDir(path); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}
	return nil
}

// nonNil makes empty results encode as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
