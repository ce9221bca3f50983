package storage

import (
	"context"
	"errors"

	"financeboard/internal/core"
)

// ErrNotFound means nothing has been stored yet.
var ErrNotFound = errors.New("record not found")

// SettingsRepository persists the single budget configuration record.
type SettingsRepository interface {
	LoadSettings(ctx context.Context) (core.Settings, error)
	SaveSettings(ctx context.Context, s core.Settings) error
}

// RollupRepository persists the daily rollup collection as a whole. Callers
// read, modify and replace; implementations make the replace atomic.
type RollupRepository interface {
	LoadRollups(ctx context.Context) ([]core.DailyRollup, error)
	ReplaceRollups(ctx context.Context, rollups []core.DailyRollup) error
}

// Repository is a complete storage backend.
type Repository interface {
	SettingsRepository
	RollupRepository
	Close() error
}
