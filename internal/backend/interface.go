// Package backend builds the persistence repository and the extract source
// selected by configuration.
package backend

import (
	"context"

	"financeboard/internal/cache"
	"financeboard/internal/sheets"
	"financeboard/internal/storage"
)

// CleanupFunc releases resources held by a backend.
type CleanupFunc func() error

// BackendResult holds the repository, the extract source and their cleanup.
type BackendResult struct {
	Repository storage.Repository
	Source     sheets.ExtractSource
	// Cacheable is set when Source keeps an extract cache that should be
	// swept periodically.
	Cacheable cache.Cleaner
	Cleanup   CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// BackendType selects where settings and rollups are persisted.
type BackendType string

const (
	JSONBackend   BackendType = "json"
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case JSONBackend, SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

// SourceType selects where the expense extract is read from.
type SourceType string

const (
	SheetsSource SourceType = "sheets"
	CSVSource    SourceType = "csv"
	MemorySource SourceType = "memory"
)

func (st SourceType) IsValid() bool {
	switch st {
	case SheetsSource, CSVSource, MemorySource:
		return true
	default:
		return false
	}
}
