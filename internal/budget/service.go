// Package budget holds the budget configuration, the daily rollup store and
// the monthly summary aggregation.
package budget

import (
	"context"
	"time"

	"financeboard/internal/core"
	"financeboard/internal/log"
	"financeboard/internal/storage"

	"github.com/shopspring/decimal"
)

// Options wires a Service. Zero values pick the defaults.
type Options struct {
	Settings        storage.SettingsRepository
	Rollups         storage.RollupRepository
	Defaults        Defaults
	MaxPercentTotal decimal.Decimal
	Retention       int
	Now             func() time.Time
	Logger          *log.Logger
}

// Service is the entry point used by the dashboard, the API and the CLI.
type Service struct {
	Settings   *SettingsStore
	Rollups    *RollupStore
	Aggregator *Aggregator
	categories core.CategorySet
	now        func() time.Time
}

func NewService(opts Options) *Service {
	defaults := opts.Defaults
	if len(defaults.Categories) == 0 {
		defaults = BuiltinDefaults()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}

	cats := defaults.CategorySet()
	settings := NewSettingsStore(opts.Settings, defaults, opts.MaxPercentTotal, now, logger)
	rollups := NewRollupStore(opts.Rollups, cats, opts.Retention, now, logger)
	return &Service{
		Settings:   settings,
		Rollups:    rollups,
		Aggregator: NewAggregator(rollups, settings, now),
		categories: cats,
		now:        now,
	}
}

// Categories returns the configured category set in display order.
func (s *Service) Categories() core.CategorySet {
	return s.categories
}

// GetMonthlySummary summarizes month, or the current month when month is zero.
func (s *Service) GetMonthlySummary(ctx context.Context, month core.Month) core.MonthlySummary {
	if month.IsZero() {
		return s.Aggregator.SummarizeCurrent(ctx)
	}
	return s.Aggregator.Summarize(ctx, month)
}

func (s *Service) GetSettings(ctx context.Context) core.Settings {
	return s.Settings.Get(ctx)
}

func (s *Service) UpdateSettings(ctx context.Context, revenue decimal.Decimal, percentages map[string]decimal.Decimal) core.Outcome {
	return s.Settings.Update(ctx, revenue, percentages)
}

// SaveDaily records txs as the snapshot for date, or for today when date is
// zero.
func (s *Service) SaveDaily(ctx context.Context, txs []core.Transaction, date time.Time) core.Outcome {
	if date.IsZero() {
		date = s.now()
	}
	return s.Rollups.Upsert(ctx, txs, date)
}
