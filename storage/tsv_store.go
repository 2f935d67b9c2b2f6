package storage

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"rightmove-scraper/models"
	"rightmove-scraper/utils"
)

// addedDateAlternate pairs the two header names the snapshot date column
// has been written under; either satisfies the schema check.
var addedDateAlternate = map[string]string{
	models.ColAddedDatabase: models.ColAddedSheet,
	models.ColAddedSheet:    models.ColAddedDatabase,
}

// snapshotPerm is used for new snapshot files; an existing file keeps its mode.
const snapshotPerm fs.FileMode = 0644

// TSVStore keeps the snapshot in a tab-separated file with a header row.
type TSVStore struct {
	path   string
	mode   models.Mode
	logger *utils.Logger
}

func NewTSVStore(path string, mode models.Mode, logger *utils.Logger) *TSVStore {
	return &TSVStore{path: path, mode: mode, logger: logger}
}

// Load reads the snapshot. A missing or empty file means no snapshot.
func (s *TSVStore) Load(_ context.Context) (*models.Table, error) {
	info, err := os.Stat(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Info("[tsv] No previous snapshot at %s", s.path)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("tsv: stat %q: %w", s.path, err)
	}
	if info.Size() == 0 {
		s.logger.Info("[tsv] Previous snapshot %s is empty", s.path)
		return nil, nil
	}

	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("tsv: open %q: %w", s.path, err)
	}
	defer f.Close()

	table, err := s.read(f)
	if err != nil {
		return nil, err
	}
	s.logger.Info("[tsv] Loaded %d rows from %s", table.Len(), s.path)
	return table, nil
}

func (s *TSVStore) read(r io.Reader) (*models.Table, error) {
	reader := csv.NewReader(r)
	reader.Comma = '\t'
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("tsv: read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.TrimSpace(h)] = i
	}
	var missing []string
	for _, col := range models.Columns(s.mode) {
		if _, ok := index[col]; ok {
			continue
		}
		if alt, ok := addedDateAlternate[col]; ok {
			if _, ok := index[alt]; ok {
				continue
			}
		}
		missing = append(missing, col)
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Target: s.path, Missing: missing}
	}

	var rows []models.Record
	for line := 2; ; line++ {
		cells, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("tsv: read row %d: %w", line, err)
		}

		byName := make(map[string]string, len(cells))
		for name, i := range index {
			if i < len(cells) {
				byName[name] = cells[i]
			}
		}
		rec := models.RecordFromValues(byName)
		if rec.URL == "" {
			s.logger.Warn("[tsv] Skipping row %d without URL", line)
			continue
		}
		rows = append(rows, rec)
	}

	return models.NewTable(s.mode, rows), nil
}

// Save writes the table to a temporary file next to the target and renames
// it into place, so a failed write never leaves a truncated snapshot.
func (s *TSVStore) Save(_ context.Context, table *models.Table, overwrite bool) error {
	perm := snapshotPerm
	if info, err := os.Stat(s.path); err == nil {
		if !overwrite {
			return &OutputConflictError{Target: s.path}
		}
		perm = info.Mode().Perm()
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("tsv: create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("tsv: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(perm); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("tsv: chmod temp file: %w", err)
	}
	if err := s.write(tmp, table); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("tsv: close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("tsv: replace %q: %w", s.path, err)
	}

	s.logger.Info("[tsv] Wrote %d rows to %s", table.Len(), s.path)
	return nil
}

func (s *TSVStore) write(w io.Writer, table *models.Table) error {
	writer := csv.NewWriter(w)
	writer.Comma = '\t'

	if err := writer.Write(models.Columns(s.mode)); err != nil {
		return fmt.Errorf("tsv: write header: %w", err)
	}
	if table != nil {
		for _, r := range table.Rows {
			if err := writer.Write(r.Values(s.mode)); err != nil {
				return fmt.Errorf("tsv: write row: %w", err)
			}
		}
	}

	writer.Flush()
	return writer.Error()
}

func (s *TSVStore) Close() error { return nil }
