// Package services orchestrates the refresh cycle: fetch the extract, ingest
// it and merge the result into the daily rollup store.
package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"financeboard/internal/budget"
	"financeboard/internal/core"
	"financeboard/internal/ingest"
	"financeboard/internal/log"
	"financeboard/internal/sheets"

	"golang.org/x/sync/singleflight"
)

// runTimeout bounds a shared refresh run once it no longer follows the
// caller's context.
const runTimeout = 2 * time.Minute

// RefreshReport describes one refresh cycle.
type RefreshReport struct {
	Month        core.Month     `json:"month"`
	RowsFetched  int            `json:"rows_fetched"`
	Transactions int            `json:"transactions"`
	Days         int            `json:"days"`
	Cleared      int            `json:"cleared,omitempty"`
	Issues       []ingest.Issue `json:"issues,omitempty"`
	Outcome      core.Outcome   `json:"outcome"`
	StartedAt    time.Time      `json:"started_at"`
	FinishedAt   time.Time      `json:"finished_at"`
}

// Duration is how long the cycle took.
func (r RefreshReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// RefreshService is the only writer of daily rollups in a process. Concurrent
// refreshes of the same month share one run; different months are serialized.
type RefreshService struct {
	source   sheets.ExtractSource
	ingestor *ingest.Ingestor
	rollups  *budget.RollupStore
	now      func() time.Time
	logger   *log.Logger

	mu    sync.Mutex
	group singleflight.Group

	lastMu sync.RWMutex
	last   *RefreshReport
}

func NewRefreshService(source sheets.ExtractSource, ingestor *ingest.Ingestor, rollups *budget.RollupStore, now func() time.Time, logger *log.Logger) *RefreshService {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &RefreshService{
		source:   source,
		ingestor: ingestor,
		rollups:  rollups,
		now:      now,
		logger:   logger.WithComponent(log.ComponentRefresh),
	}
}

// Refresh runs one cycle for month, or for the current month when month is
// zero. It never returns an error: failures are reported in the Outcome.
func (s *RefreshService) Refresh(ctx context.Context, month core.Month) RefreshReport {
	if month.IsZero() {
		month = core.MonthOf(s.now())
	}
	ch := s.group.DoChan(month.String(), func() (interface{}, error) {
		// The run outlives any one caller: others may have joined it.
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), runTimeout)
		defer cancel()
		return s.run(runCtx, month), nil
	})
	select {
	case res := <-ch:
		return res.Val.(RefreshReport)
	case <-ctx.Done():
		now := s.now()
		return RefreshReport{
			Month:      month,
			Outcome:    core.Fail(core.ReasonTransport, "refresh abandoned: %v", ctx.Err()),
			StartedAt:  now,
			FinishedAt: now,
		}
	}
}

// ForceRefresh drops any cached extract before refreshing.
func (s *RefreshService) ForceRefresh(ctx context.Context, month core.Month) RefreshReport {
	if inv, ok := s.source.(sheets.Invalidator); ok {
		inv.Invalidate()
	}
	return s.Refresh(ctx, month)
}

// LastReport returns the most recent report, if any cycle has run.
func (s *RefreshService) LastReport() (RefreshReport, bool) {
	s.lastMu.RLock()
	defer s.lastMu.RUnlock()
	if s.last == nil {
		return RefreshReport{}, false
	}
	return *s.last, true
}

func (s *RefreshService) run(ctx context.Context, month core.Month) RefreshReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	report := RefreshReport{Month: month, StartedAt: s.now(), Outcome: core.OK()}
	defer func() {
		report.FinishedAt = s.now()
		s.lastMu.Lock()
		r := report
		s.last = &r
		s.lastMu.Unlock()
	}()

	extract, err := s.source.FetchExtract(ctx)
	if err != nil {
		// The extract degrades to empty: nothing is written and the stored
		// rollups stay as they were.
		report.Outcome = core.Fail(core.ReasonTransport, "fetch extract: %v", err)
		s.logger.WarnContext(ctx, "Extract fetch failed, treating as empty",
			log.NewFields().WithOperation(log.OpFetch).WithMonth(month).WithOutcome(report.Outcome).ToSlice()...)
		return report
	}
	report.RowsFetched = len(extract)

	res := s.ingestor.Ingest(extract, month)
	report.Transactions = len(res.Transactions)
	report.Issues = res.Issues
	if out := res.Outcome(); !out.OK {
		report.Outcome = out
		s.logger.WarnContext(ctx, "Extract could not be ingested",
			log.NewFields().WithOperation(log.OpIngest).WithMonth(month).WithOutcome(out).ToSlice()...)
		return report
	}

	days := GroupByDate(res.Transactions)
	report.Days = len(days)
	if len(extract) > 0 {
		// Dates stored for this month that the sheet no longer has are
		// rewritten empty so moved or deleted rows stop counting.
		stale := s.staleDays(ctx, month, days)
		report.Cleared = len(stale)
		days = append(days, stale...)
	}
	if out := s.rollups.UpsertDays(ctx, days); !out.OK {
		report.Outcome = out
		return report
	}

	s.logger.InfoContext(ctx, "Refresh completed",
		log.FieldMonth, month.String(),
		log.FieldRows, report.RowsFetched,
		log.FieldTransactions, report.Transactions,
		log.FieldDays, report.Days,
		"cleared", report.Cleared,
		log.FieldIssues, len(report.Issues),
	)
	return report
}

func (s *RefreshService) staleDays(ctx context.Context, month core.Month, fresh []budget.Day) []budget.Day {
	seen := make(map[string]bool, len(fresh))
	for _, d := range fresh {
		seen[core.FormatDate(d.Date)] = true
	}
	var stale []budget.Day
	for _, r := range s.rollups.GetMonth(ctx, month) {
		if seen[core.FormatDate(r.Date)] || len(r.Transactions) == 0 {
			continue
		}
		stale = append(stale, budget.Day{Date: r.Date})
	}
	return stale
}

// GroupByDate splits transactions into one Day per transaction date, oldest
// first, keeping the extract order within a day.
func GroupByDate(txs []core.Transaction) []budget.Day {
	byDate := make(map[string]*budget.Day)
	var keys []string
	for _, tx := range txs {
		k := core.FormatDate(tx.Date)
		d, ok := byDate[k]
		if !ok {
			d = &budget.Day{Date: core.DateOf(tx.Date)}
			byDate[k] = d
			keys = append(keys, k)
		}
		d.Transactions = append(d.Transactions, tx)
	}
	sort.Strings(keys)

	days := make([]budget.Day, 0, len(keys))
	for _, k := range keys {
		days = append(days, *byDate[k])
	}
	return days
}
