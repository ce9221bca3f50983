package budget

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"financeboard/internal/core"
	"financeboard/internal/log"
	"financeboard/internal/storage"

	"github.com/shopspring/decimal"
)

// DefaultMaxPercentTotal caps the sum of category percentages.
var DefaultMaxPercentTotal = decimal.NewFromInt(150)

// SettingsStore owns the budget configuration. It never returns errors:
// read failures fall back to defaults and write failures come back as an
// Outcome.
type SettingsStore struct {
	mu         sync.Mutex
	repo       storage.SettingsRepository
	defaults   Defaults
	categories core.CategorySet
	maxTotal   decimal.Decimal
	now        func() time.Time
	logger     *log.Logger
}

func NewSettingsStore(repo storage.SettingsRepository, defaults Defaults, maxTotal decimal.Decimal, now func() time.Time, logger *log.Logger) *SettingsStore {
	if maxTotal.IsZero() {
		maxTotal = DefaultMaxPercentTotal
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &SettingsStore{
		repo:       repo,
		defaults:   defaults,
		categories: defaults.CategorySet(),
		maxTotal:   maxTotal,
		now:        now,
		logger:     logger.WithComponent(log.ComponentSettings),
	}
}

// MaxPercentTotal is the configured cap on the percentage sum.
func (s *SettingsStore) MaxPercentTotal() decimal.Decimal {
	return s.maxTotal
}

// Get returns the stored configuration. The first call on an empty store
// persists the defaults. If the record can't be read the defaults are
// returned without being written, so a damaged file is left for inspection.
func (s *SettingsStore) Get(ctx context.Context) core.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

func (s *SettingsStore) load(ctx context.Context) core.Settings {
	st, err := s.repo.LoadSettings(ctx)
	switch {
	case err == nil:
		if st.CategoryPercentages == nil {
			st.CategoryPercentages = map[string]decimal.Decimal{}
		}
		return st
	case errors.Is(err, storage.ErrNotFound):
		d := s.defaults.Settings(s.now())
		if err := s.repo.SaveSettings(ctx, d); err != nil {
			s.logger.WarnContext(ctx, "Failed to persist default settings", log.FieldError, err)
		} else {
			s.logger.InfoContext(ctx, "Initialized settings with defaults")
		}
		return d
	default:
		s.logger.WarnContext(ctx, "Failed to read settings, using defaults",
			log.FieldError, err,
			log.FieldOperation, log.OpRead,
		)
		return s.defaults.Settings(s.now())
	}
}

// Update replaces revenue and percentages. On a validation or storage failure
// the stored configuration is unchanged.
func (s *SettingsStore) Update(ctx context.Context, revenue decimal.Decimal, percentages map[string]decimal.Decimal) core.Outcome {
	pct, out := s.validate(revenue, percentages)
	if !out.OK {
		s.logger.InfoContext(ctx, "Rejected settings update", log.NewFields().WithOperation(log.OpUpdate).WithOutcome(out).ToSlice()...)
		return out
	}

	next := core.Settings{
		MonthlyExpectedRevenue: revenue,
		CategoryPercentages:    pct,
		LastUpdated:            s.now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.repo.SaveSettings(ctx, next); err != nil {
		out := core.Fail(core.ReasonStorage, "save settings: %v", err)
		s.logger.ErrorContext(ctx, "Failed to save settings", log.NewFields().WithOperation(log.OpUpdate).WithOutcome(out).ToSlice()...)
		return out
	}
	s.logger.InfoContext(ctx, "Settings updated",
		"revenue", revenue.String(),
		"percent_total", next.PercentTotal().String(),
	)
	return core.OK()
}

// Reset restores and persists the defaults.
func (s *SettingsStore) Reset(ctx context.Context) core.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.repo.SaveSettings(ctx, s.defaults.Settings(s.now())); err != nil {
		out := core.Fail(core.ReasonStorage, "save settings: %v", err)
		s.logger.ErrorContext(ctx, "Failed to reset settings", log.NewFields().WithOperation(log.OpReset).WithOutcome(out).ToSlice()...)
		return out
	}
	s.logger.InfoContext(ctx, "Settings reset to defaults")
	return core.OK()
}

// ExpectedAmounts returns revenue * percentage / 100 per known category.
func (s *SettingsStore) ExpectedAmounts(ctx context.Context) map[string]decimal.Decimal {
	return s.Get(ctx).ExpectedAmounts(s.categories)
}

// validate checks revenue and percentages and returns the percentages keyed
// by trimmed category name, the form they are stored in.
func (s *SettingsStore) validate(revenue decimal.Decimal, percentages map[string]decimal.Decimal) (map[string]decimal.Decimal, core.Outcome) {
	if !core.InRange(revenue) {
		return nil, core.Fail(core.ReasonValidation, "expected revenue is out of range")
	}
	if revenue.IsNegative() {
		return nil, core.Fail(core.ReasonValidation, "expected revenue must not be negative")
	}
	keys := make([]string, 0, len(percentages))
	for k := range percentages {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pct := make(map[string]decimal.Decimal, len(percentages))
	sum := decimal.Zero
	for _, k := range keys {
		name := strings.TrimSpace(k)
		if name == "" {
			return nil, core.Fail(core.ReasonValidation, "percentage with an empty category name")
		}
		if _, dup := pct[name]; dup {
			return nil, core.Fail(core.ReasonValidation, "percentage for %s given more than once", name)
		}
		p := percentages[k]
		if !core.InRange(p) {
			return nil, core.Fail(core.ReasonValidation, "percentage for %s is out of range", name)
		}
		if p.IsNegative() {
			return nil, core.Fail(core.ReasonValidation, "percentage for %s must not be negative", name)
		}
		pct[name] = p
		sum = sum.Add(p)
	}
	if sum.GreaterThan(s.maxTotal) {
		return nil, core.Fail(core.ReasonValidation, "percentages add up to %s%%, the limit is %s%%", sum.String(), s.maxTotal.String())
	}
	return pct, core.OK()
}
