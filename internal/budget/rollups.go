package budget

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"financeboard/internal/core"
	"financeboard/internal/log"
	"financeboard/internal/storage"
)

// DefaultRetention is how many daily rollups are kept.
const DefaultRetention = 90

// Day is the set of transactions to record for one calendar date.
type Day struct {
	Date         time.Time
	Transactions []core.Transaction
}

// RollupStore keeps one snapshot per calendar day, newest first, bounded by
// the retention window. It assumes a single writer per process; the mutex
// only guards against overlapping writes from the same process.
type RollupStore struct {
	mu         sync.Mutex
	repo       storage.RollupRepository
	categories core.CategorySet
	retention  int
	now        func() time.Time
	logger     *log.Logger
}

func NewRollupStore(repo storage.RollupRepository, categories core.CategorySet, retention int, now func() time.Time, logger *log.Logger) *RollupStore {
	if retention <= 0 {
		retention = DefaultRetention
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &RollupStore{
		repo:       repo,
		categories: categories,
		retention:  retention,
		now:        now,
		logger:     logger.WithComponent(log.ComponentRollups),
	}
}

// Upsert records txs as the snapshot for date, replacing any earlier snapshot
// for that date.
func (s *RollupStore) Upsert(ctx context.Context, txs []core.Transaction, date time.Time) core.Outcome {
	return s.UpsertDays(ctx, []Day{{Date: date, Transactions: txs}})
}

// UpsertDays records several days in one read-modify-write. When the same
// date appears more than once the last entry wins.
func (s *RollupStore) UpsertDays(ctx context.Context, days []Day) core.Outcome {
	if len(days) == 0 {
		return core.OK()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.repo.LoadRollups(ctx)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		// A store that can't be read is never overwritten.
		out := core.Fail(core.ReasonStorage, "load rollups: %v", err)
		s.logger.ErrorContext(ctx, "Failed to load rollups for upsert", log.NewFields().WithOperation(log.OpUpsert).WithOutcome(out).ToSlice()...)
		return out
	}

	recordedAt := s.now().UTC()
	fresh := make(map[string]core.DailyRollup, len(days))
	for _, d := range days {
		r := core.NewDailyRollup(d.Date, d.Transactions, s.categories, recordedAt)
		fresh[core.FormatDate(r.Date)] = r
	}

	merged := make([]core.DailyRollup, 0, len(existing)+len(fresh))
	for _, r := range existing {
		if _, replaced := fresh[core.FormatDate(r.Date)]; !replaced {
			merged = append(merged, r)
		}
	}
	for _, r := range fresh {
		merged = append(merged, r)
	}
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Date.After(merged[j].Date) })

	evicted := 0
	if len(merged) > s.retention {
		evicted = len(merged) - s.retention
		merged = merged[:s.retention]
	}

	if err := s.repo.ReplaceRollups(ctx, merged); err != nil {
		out := core.Fail(core.ReasonStorage, "save rollups: %v", err)
		s.logger.ErrorContext(ctx, "Failed to save rollups", log.NewFields().WithOperation(log.OpUpsert).WithOutcome(out).ToSlice()...)
		return out
	}

	s.logger.InfoContext(ctx, "Daily rollups saved",
		log.FieldDays, len(fresh),
		log.FieldEvicted, evicted,
		"stored", len(merged),
	)
	return core.OK()
}

// All returns every stored rollup, newest first. Read failures yield an empty
// list.
func (s *RollupStore) All(ctx context.Context) []core.DailyRollup {
	rollups, err := s.repo.LoadRollups(ctx)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.WarnContext(ctx, "Failed to read rollups", log.FieldError, err, log.FieldOperation, log.OpRead)
		}
		return nil
	}
	return rollups
}

// GetMonth returns the rollups dated inside month, newest first.
func (s *RollupStore) GetMonth(ctx context.Context, month core.Month) []core.DailyRollup {
	var out []core.DailyRollup
	for _, r := range s.All(ctx) {
		if month.Contains(r.Date) {
			out = append(out, r)
		}
	}
	return out
}

// Categories returns the category set totals are computed over.
func (s *RollupStore) Categories() core.CategorySet {
	return s.categories
}
