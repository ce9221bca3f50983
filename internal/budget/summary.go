package budget

import (
	"context"
	"time"

	"financeboard/internal/core"
)

// Aggregator derives monthly summaries from the stored rollups and the
// current settings. Nothing is cached; every call reads the stores.
type Aggregator struct {
	rollups  *RollupStore
	settings *SettingsStore
	now      func() time.Time
}

func NewAggregator(rollups *RollupStore, settings *SettingsStore, now func() time.Time) *Aggregator {
	if now == nil {
		now = time.Now
	}
	return &Aggregator{rollups: rollups, settings: settings, now: now}
}

func (a *Aggregator) Summarize(ctx context.Context, month core.Month) core.MonthlySummary {
	return core.Summarize(month, a.rollups.GetMonth(ctx, month), a.settings.Get(ctx), a.rollups.Categories())
}

func (a *Aggregator) SummarizeCurrent(ctx context.Context) core.MonthlySummary {
	return a.Summarize(ctx, core.MonthOf(a.now()))
}
