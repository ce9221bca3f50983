package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"financeboard/internal/core"
)

// FileStore keeps settings and rollups in two JSON documents. Every write goes
// to a temporary file that is renamed over the target, so a crash never
// leaves a half-written document behind.
type FileStore struct {
	settingsPath string
	rollupsPath  string
	mu           sync.Mutex
}

func NewFileStore(settingsPath, rollupsPath string) (*FileStore, error) {
	for _, p := range []string{settingsPath, rollupsPath} {
		if p == "" {
			return nil, errors.New("file store paths must not be empty")
		}
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}
	return &FileStore{settingsPath: settingsPath, rollupsPath: rollupsPath}, nil
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) LoadSettings(ctx context.Context) (core.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := readDocument(s.settingsPath)
	if err != nil {
		return core.Settings{}, err
	}
	var rec settingsRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return core.Settings{}, fmt.Errorf("decode %s: %w", s.settingsPath, err)
	}
	if rec.CategoryPercentages == nil && rec.MonthlyExpectedRevenue == "" {
		// "{}" is what a failed earlier write may leave behind.
		return core.Settings{}, ErrNotFound
	}
	st, err := settingsFromRecord(rec)
	if err != nil {
		return core.Settings{}, fmt.Errorf("decode %s: %w", s.settingsPath, err)
	}
	return st, nil
}

func (s *FileStore) SaveSettings(ctx context.Context, st core.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := encodeDocument(settingsToRecord(st))
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	return writeFileAtomic(s.settingsPath, data)
}

func (s *FileStore) LoadRollups(ctx context.Context) ([]core.DailyRollup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.readRollupDocument()
	if err != nil {
		return nil, err
	}
	out := make([]core.DailyRollup, 0, len(doc.DailyExpenses))
	for _, rec := range doc.DailyExpenses {
		r, err := rollupFromRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", s.rollupsPath, err)
		}
		out = append(out, r)
	}
	return out, nil
}

// ReplaceRollups rewrites daily_expenses and carries monthly_summaries over
// untouched.
func (s *FileStore) ReplaceRollups(ctx context.Context, rollups []core.DailyRollup) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.readRollupDocument()
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	doc.DailyExpenses = make([]rollupRecord, 0, len(rollups))
	for _, r := range rollups {
		doc.DailyExpenses = append(doc.DailyExpenses, rollupToRecord(r))
	}
	if len(doc.MonthlySummaries) == 0 {
		doc.MonthlySummaries = json.RawMessage("[]")
	}

	data, err := encodeDocument(doc)
	if err != nil {
		return fmt.Errorf("encode rollups: %w", err)
	}
	return writeFileAtomic(s.rollupsPath, data)
}

func (s *FileStore) readRollupDocument() (rollupDocument, error) {
	data, err := readDocument(s.rollupsPath)
	if err != nil {
		return rollupDocument{}, err
	}
	var doc rollupDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return rollupDocument{}, fmt.Errorf("decode %s: %w", s.rollupsPath, err)
	}
	if doc.DailyExpenses == nil {
		return doc, ErrNotFound
	}
	return doc, nil
}

func readDocument(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrNotFound
	}
	return data, nil
}

func encodeDocument(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
