package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"financeboard/internal/log"
	"financeboard/internal/sheets/csvfile"
	"financeboard/internal/sheets/google"
	"financeboard/internal/sheets/memory"
	"financeboard/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentBackend)}
}

// CreateBackend opens the repository first, then the source; the repository
// is closed again if the source cannot be built.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	repo, err := f.createRepository(config)
	if err != nil {
		return nil, err
	}

	res := &BackendResult{Repository: repo, Cleanup: repo.Close}
	if err := f.createSource(ctx, config, res); err != nil {
		return nil, errors.Join(err, repo.Close())
	}
	return res, nil
}

func (f *DefaultFactory) createRepository(config Config) (storage.Repository, error) {
	switch config.Type {
	case JSONBackend:
		store, err := storage.NewFileStore(config.SettingsFile, config.RollupsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize JSON store: %w", err)
		}
		f.logger.Info("Initialized JSON backend", "settings_file", config.SettingsFile, "rollups_file", config.RollupsFile)
		return store, nil

	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
		return repo, nil

	case MemoryBackend:
		f.logger.Info("Initialized memory backend, nothing will be persisted")
		return storage.NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
}

func (f *DefaultFactory) createSource(ctx context.Context, config Config, res *BackendResult) error {
	switch config.Source {
	case SheetsSource:
		client, err := google.New(ctx, config.Google, f.logger)
		if err != nil {
			return fmt.Errorf("failed to initialize Google Sheets client: %w", err)
		}
		res.Source = client
		if c := client.Cache(); c != nil {
			res.Cacheable = c
		}
		f.logger.Info("Initialized Google Sheets source", "sheet", config.Google.SheetName, "cache_ttl", config.Google.CacheTTL.String())

	case CSVSource:
		src, err := csvfile.New(config.CSVPath, config.CSVDelimiter)
		if err != nil {
			return fmt.Errorf("failed to initialize CSV source: %w", err)
		}
		res.Source = src
		f.logger.Info("Initialized CSV source", "path", config.CSVPath)

	case MemorySource:
		now := config.Now
		if now == nil {
			now = time.Now
		}
		res.Source = memory.NewDemo(now())
		f.logger.Info("Initialized in-memory demo source")

	default:
		return fmt.Errorf("unsupported extract source: %s", config.Source)
	}
	return nil
}
