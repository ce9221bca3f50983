package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"financeboard/internal/budget"
	"financeboard/internal/core"
	"financeboard/internal/ingest"
	"financeboard/internal/sheets/memory"
	"financeboard/internal/storage"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testNow   = time.Date(2025, 3, 18, 9, 0, 0, 0, time.UTC)
	testMonth = core.Month{Year: 2025, Month: time.March}
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fixture struct {
	source  *memory.Source
	repo    *storage.MemoryStore
	budget  *budget.Service
	refresh *RefreshService
}

func newFixture(t *testing.T, rows ...[]string) *fixture {
	t.Helper()
	now := func() time.Time { return testNow }
	repo := storage.NewMemoryStore()
	svc := budget.NewService(budget.Options{Settings: repo, Rollups: repo, Now: now})
	src := memory.New(append([][]string{memory.Header}, rows...))
	in := ingest.New(ingest.Config{Categories: svc.Categories(), Now: now})
	return &fixture{
		source:  src,
		repo:    repo,
		budget:  svc,
		refresh: NewRefreshService(src, in, svc.Rollups, now, nil),
	}
}

func TestRefreshWritesOneRollupPerDate(t *testing.T) {
	f := newFixture(t,
		[]string{"2025-03-01", "Rent", "1500,00", "March rent"},
		[]string{"02/03/2025", "Groceries", "R$ 100,50", ""},
		[]string{"2025-03-02", "Restaurant", "40", ""},
		[]string{"2025-02-27", "Car", "300", "previous month"},
	)

	report := f.refresh.Refresh(context.Background(), testMonth)

	require.True(t, report.Outcome.OK, report.Outcome.String())
	assert.Equal(t, 5, report.RowsFetched)
	assert.Equal(t, 3, report.Transactions)
	assert.Equal(t, 2, report.Days)

	rollups := f.budget.Rollups.GetMonth(context.Background(), testMonth)
	require.Len(t, rollups, 2)
	assert.Equal(t, "2025-03-02", core.FormatDate(rollups[0].Date))
	assert.True(t, rollups[0].TotalAmount.Equal(dec("140.50")))
	assert.True(t, rollups[1].TotalByCategory["Rent"].Equal(dec("1500")))

	summary := f.budget.GetMonthlySummary(context.Background(), testMonth)
	assert.True(t, summary.TotalAmount.Equal(dec("1640.50")))
	assert.Equal(t, 2, summary.DailyEntries)
}

func TestRefreshIsIdempotent(t *testing.T) {
	f := newFixture(t,
		[]string{"2025-03-01", "Rent", "1500", ""},
		[]string{"2025-03-05", "Groceries", "80", ""},
	)
	ctx := context.Background()

	f.refresh.Refresh(ctx, testMonth)
	f.refresh.Refresh(ctx, testMonth)

	summary := f.budget.GetMonthlySummary(ctx, testMonth)
	assert.True(t, summary.TotalAmount.Equal(dec("1580")), summary.TotalAmount.String())
	assert.Equal(t, 2, summary.DailyEntries)
}

func TestRefreshReplacesEditedDay(t *testing.T) {
	f := newFixture(t, []string{"2025-03-01", "Rent", "1500", ""})
	ctx := context.Background()
	f.refresh.Refresh(ctx, testMonth)

	f.source.Replace([][]string{memory.Header, {"2025-03-01", "Rent", "1450", "corrected"}})
	f.refresh.Refresh(ctx, testMonth)

	rollups := f.budget.Rollups.GetMonth(ctx, testMonth)
	require.Len(t, rollups, 1)
	assert.True(t, rollups[0].TotalAmount.Equal(dec("1450")))
	assert.Equal(t, "corrected", rollups[0].Transactions[0].Description)
}

func TestRefreshClearsDatesMissingFromExtract(t *testing.T) {
	f := newFixture(t,
		[]string{"2025-03-03", "Rent", "1500", ""},
		[]string{"2025-03-05", "Groceries", "80", ""},
	)
	ctx := context.Background()
	require.True(t, f.refresh.Refresh(ctx, testMonth).Outcome.OK)

	// The rent row moves a day later and the groceries row is deleted.
	f.source.Replace([][]string{memory.Header, {"2025-03-04", "Rent", "1500", ""}})
	report := f.refresh.Refresh(ctx, testMonth)

	require.True(t, report.Outcome.OK, report.Outcome.String())
	assert.Equal(t, 1, report.Days)
	assert.Equal(t, 2, report.Cleared)

	summary := f.budget.GetMonthlySummary(ctx, testMonth)
	assert.True(t, summary.TotalAmount.Equal(dec("1500")), summary.TotalAmount.String())
	assert.True(t, summary.TotalByCategory["Rent"].Equal(dec("1500")))
	assert.True(t, summary.TotalByCategory["Groceries"].IsZero())

	// Already empty days are not rewritten again.
	assert.Zero(t, f.refresh.Refresh(ctx, testMonth).Cleared)
}

func TestRefreshLeavesOtherMonthsAlone(t *testing.T) {
	f := newFixture(t, []string{"2025-02-10", "Rent", "1400", ""})
	ctx := context.Background()
	feb := testMonth.Prev()
	require.True(t, f.refresh.Refresh(ctx, feb).Outcome.OK)

	f.source.Replace([][]string{memory.Header, {"2025-03-01", "Rent", "1500", ""}})
	require.True(t, f.refresh.Refresh(ctx, testMonth).Outcome.OK)

	rollups := f.budget.Rollups.GetMonth(ctx, feb)
	require.Len(t, rollups, 1)
	assert.True(t, rollups[0].TotalAmount.Equal(dec("1400")))
}

func TestRefreshTransportFailureKeepsStoredRollups(t *testing.T) {
	f := newFixture(t, []string{"2025-03-01", "Rent", "1500", ""})
	ctx := context.Background()
	require.True(t, f.refresh.Refresh(ctx, testMonth).Outcome.OK)

	f.source.FailWith(errors.New("sheets unavailable"))
	report := f.refresh.Refresh(ctx, testMonth)

	assert.False(t, report.Outcome.OK)
	assert.Equal(t, core.ReasonTransport, report.Outcome.Reason)
	assert.Contains(t, report.Outcome.Detail, "sheets unavailable")
	assert.Zero(t, report.Transactions)
	assert.Len(t, f.budget.Rollups.GetMonth(ctx, testMonth), 1)
}

func TestRefreshMissingDateColumn(t *testing.T) {
	f := newFixture(t)
	f.source.Replace([][]string{{"When", "Class", "Value"}, {"2025-03-01", "Rent", "1"}})

	report := f.refresh.Refresh(context.Background(), testMonth)

	assert.Equal(t, core.ReasonMissingColumn, report.Outcome.Reason)
	assert.Empty(t, f.budget.Rollups.All(context.Background()))
}

func TestRefreshReportsIssues(t *testing.T) {
	f := newFixture(t,
		[]string{"2025-03-03", "Grocerys", "10", ""},
		[]string{"not a date", "Rent", "10", ""},
	)

	report := f.refresh.Refresh(context.Background(), core.Month{})

	assert.Equal(t, testMonth, report.Month)
	assert.True(t, report.Outcome.OK)
	assert.Len(t, report.Issues, 2)
	assert.Equal(t, 1, report.Transactions)
}

func TestLastReport(t *testing.T) {
	f := newFixture(t, []string{"2025-03-01", "Rent", "1", ""})
	_, ok := f.refresh.LastReport()
	assert.False(t, ok)

	f.refresh.Refresh(context.Background(), testMonth)

	last, ok := f.refresh.LastReport()
	require.True(t, ok)
	assert.Equal(t, 1, last.Days)
	assert.Equal(t, time.Duration(0), last.Duration())
}

type blockingSource struct {
	*memory.Source
	started chan struct{}
	release chan struct{}
}

func (b *blockingSource) FetchExtract(ctx context.Context) ([][]string, error) {
	close(b.started)
	select {
	case <-b.release:
		return b.Source.FetchExtract(ctx)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestRefreshOutlivesCanceledCaller(t *testing.T) {
	f := newFixture(t, []string{"2025-03-01", "Rent", "1500", ""})
	src := &blockingSource{Source: f.source, started: make(chan struct{}), release: make(chan struct{})}
	svc := NewRefreshService(src, ingest.New(ingest.Config{Now: func() time.Time { return testNow }}), f.budget.Rollups, func() time.Time { return testNow }, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan RefreshReport, 1)
	go func() { done <- svc.Refresh(ctx, testMonth) }()

	<-src.started
	cancel()
	abandoned := <-done
	assert.Equal(t, core.ReasonTransport, abandoned.Outcome.Reason)
	assert.Contains(t, abandoned.Outcome.Detail, "abandoned")

	close(src.release)
	require.Eventually(t, func() bool {
		last, ok := svc.LastReport()
		return ok && last.Outcome.OK
	}, time.Second, 5*time.Millisecond)
	assert.Len(t, f.budget.Rollups.GetMonth(context.Background(), testMonth), 1)
}

type countingSource struct {
	*memory.Source
	invalidated int
}

func (c *countingSource) Invalidate() { c.invalidated++ }

func TestForceRefreshInvalidatesSource(t *testing.T) {
	f := newFixture(t)
	src := &countingSource{Source: f.source}
	svc := NewRefreshService(src, ingest.New(ingest.Config{Now: func() time.Time { return testNow }}), f.budget.Rollups, nil, nil)

	svc.ForceRefresh(context.Background(), testMonth)
	svc.Refresh(context.Background(), testMonth)

	assert.Equal(t, 1, src.invalidated)
}

func TestGroupByDate(t *testing.T) {
	txs := []core.Transaction{
		{Date: core.NewDate(2025, 3, 2), Category: "Car", Amount: dec("1")},
		{Date: core.NewDate(2025, 3, 1), Category: "Rent", Amount: dec("2")},
		{Date: core.NewDate(2025, 3, 2), Category: "Leisure", Amount: dec("3")},
	}

	days := GroupByDate(txs)

	require.Len(t, days, 2)
	assert.Equal(t, core.NewDate(2025, 3, 1), days[0].Date)
	require.Len(t, days[1].Transactions, 2)
	assert.Equal(t, "Car", days[1].Transactions[0].Category)
	assert.Equal(t, "Leisure", days[1].Transactions[1].Category)
	assert.Empty(t, GroupByDate(nil))
}
