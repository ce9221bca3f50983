package http

import (
	"context"
	"time"

	"financeboard/internal/core"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

type (
	pageView struct {
		Summary  summaryView
		Settings settingsView
	}

	summaryView struct {
		Month       string
		MonthLabel  string
		PrevMonth   string
		NextMonth   string
		IsCurrent   bool
		PollSeconds int

		ExpectedRevenue  decimal.Decimal
		TotalSpent       decimal.Decimal
		Remaining        decimal.Decimal
		SpentPercent     decimal.Decimal
		RemainingPercent decimal.Decimal
		Overspent        bool
		DaysRecorded     int
		DaysInMonth      int

		Rows         []comparisonRow
		Transactions []core.Transaction
		LastRefresh  *refreshView
	}

	comparisonRow struct {
		Category    string
		Expected    decimal.Decimal
		Actual      decimal.Decimal
		Difference  decimal.Decimal
		UsedPercent decimal.Decimal
		OverBudget  bool
	}

	refreshView struct {
		At      string
		OK      bool
		Outcome string
		Issues  int
	}

	settingsView struct {
		Revenue     string
		Rows        []settingsRow
		Total       decimal.Decimal
		Max         decimal.Decimal
		OverMax     bool
		LastUpdated string
		Error       string
		Saved       bool
	}

	settingsRow struct {
		Category   string
		Percentage string
		Expected   decimal.Decimal
	}
)

func (s *Server) buildSummaryView(ctx context.Context, month core.Month) summaryView {
	sum := s.budget.GetMonthlySummary(ctx, month)
	v := summaryView{
		Month:           sum.Month.String(),
		MonthLabel:      sum.Month.Start().Format("January 2006"),
		PrevMonth:       sum.Month.Prev().String(),
		NextMonth:       sum.Month.Next().String(),
		IsCurrent:       sum.Month == core.MonthOf(s.now()),
		PollSeconds:     int(s.poll / time.Second),
		ExpectedRevenue: sum.MonthlyExpectedRevenue,
		TotalSpent:      sum.TotalAmount,
		Remaining:       sum.Remaining(),
		SpentPercent:    sum.SpentPercent(),
		Overspent:       sum.Remaining().IsNegative(),
		DaysRecorded:    sum.DailyEntries,
		DaysInMonth:     sum.Month.Days(),
		Transactions:    sum.Transactions(),
	}
	if !sum.MonthlyExpectedRevenue.IsZero() {
		v.RemainingPercent = v.Remaining.Div(sum.MonthlyExpectedRevenue).Mul(hundred)
	}
	for _, c := range sum.Comparisons() {
		row := comparisonRow{
			Category:   c.Category,
			Expected:   c.Expected,
			Actual:     c.Actual,
			Difference: c.Difference,
			OverBudget: c.OverBudget,
		}
		if !c.Expected.IsZero() {
			row.UsedPercent = c.Actual.Div(c.Expected).Mul(hundred)
		}
		v.Rows = append(v.Rows, row)
	}
	if s.refresher != nil {
		if rep, ok := s.refresher.LastReport(); ok {
			v.LastRefresh = &refreshView{
				At:      rep.FinishedAt.Local().Format("2006-01-02 15:04:05"),
				OK:      rep.Outcome.OK,
				Outcome: rep.Outcome.String(),
				Issues:  len(rep.Issues),
			}
		}
	}
	return v
}

func (s *Server) buildSettingsView(ctx context.Context) settingsView {
	st := s.budget.GetSettings(ctx)
	cats := s.budget.Categories()
	expected := st.ExpectedAmounts(cats)

	v := settingsView{
		Revenue: st.MonthlyExpectedRevenue.StringFixed(2),
		Total:   st.PercentTotal(),
		Max:     s.budget.Settings.MaxPercentTotal(),
	}
	v.OverMax = v.Total.GreaterThan(v.Max)
	if !st.LastUpdated.IsZero() {
		v.LastUpdated = st.LastUpdated.Local().Format("2006-01-02 15:04")
	}
	for _, c := range cats {
		v.Rows = append(v.Rows, settingsRow{
			Category:   c,
			Percentage: st.CategoryPercentages[c].String(),
			Expected:   expected[c],
		})
	}
	return v
}

// summaryJSON is the body of GET /api/summary.
type summaryJSON struct {
	Month                  core.Month                 `json:"month"`
	TotalAmount            decimal.Decimal            `json:"total_amount"`
	TotalByCategory        map[string]decimal.Decimal `json:"total_by_category"`
	TotalByClass           map[string]decimal.Decimal `json:"total_by_class"`
	DailyEntries           int                        `json:"daily_entries"`
	DaysInMonth            int                        `json:"days_in_month"`
	ExpectedByCategory     map[string]decimal.Decimal `json:"expected_amounts"`
	MonthlyExpectedRevenue decimal.Decimal            `json:"expected_revenue"`
	Remaining              decimal.Decimal            `json:"remaining"`
	SpentPercent           decimal.Decimal            `json:"spent_percent"`
	Comparisons            []comparisonJSON           `json:"comparisons"`
	Transactions           []transactionJSON          `json:"transactions,omitempty"`
}

type comparisonJSON struct {
	Category   string          `json:"category"`
	Expected   decimal.Decimal `json:"expected"`
	Actual     decimal.Decimal `json:"actual"`
	Difference decimal.Decimal `json:"difference"`
	OverBudget bool            `json:"over_budget"`
}

type transactionJSON struct {
	Date        string          `json:"date"`
	Category    string          `json:"category"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

func toSummaryJSON(sum core.MonthlySummary, withTransactions bool) summaryJSON {
	out := summaryJSON{
		Month:                  sum.Month,
		TotalAmount:            sum.TotalAmount,
		TotalByCategory:        sum.TotalByCategory,
		TotalByClass:           sum.TotalByCategory,
		DailyEntries:           sum.DailyEntries,
		DaysInMonth:            sum.Month.Days(),
		ExpectedByCategory:     sum.ExpectedByCategory,
		MonthlyExpectedRevenue: sum.MonthlyExpectedRevenue,
		Remaining:              sum.Remaining(),
		SpentPercent:           sum.SpentPercent().Round(2),
		Comparisons:            []comparisonJSON{},
	}
	for _, c := range sum.Comparisons() {
		out.Comparisons = append(out.Comparisons, comparisonJSON(c))
	}
	if withTransactions {
		for _, tx := range sum.Transactions() {
			out.Transactions = append(out.Transactions, toTransactionJSON(tx))
		}
	}
	return out
}

func toTransactionJSON(tx core.Transaction) transactionJSON {
	return transactionJSON{
		Date:        core.FormatDate(tx.Date),
		Category:    tx.Category,
		Amount:      tx.Amount,
		Description: tx.Description,
	}
}

// settingsJSON is the body of GET /api/settings.
type settingsJSON struct {
	MonthlyExpectedRevenue decimal.Decimal            `json:"monthly_expected_revenue"`
	CategoryPercentages    map[string]decimal.Decimal `json:"expense_class_percentages"`
	LastUpdated            *time.Time                 `json:"last_updated,omitempty"`
	PercentTotal           decimal.Decimal            `json:"percent_total"`
	MaxPercentTotal        decimal.Decimal            `json:"max_percent_total"`
	ExpectedAmounts        map[string]decimal.Decimal `json:"expected_amounts"`
	Categories             []string                   `json:"categories"`
}

func (s *Server) settingsBody(ctx context.Context) settingsJSON {
	st := s.budget.GetSettings(ctx)
	cats := s.budget.Categories()
	out := settingsJSON{
		MonthlyExpectedRevenue: st.MonthlyExpectedRevenue,
		CategoryPercentages:    st.CategoryPercentages,
		PercentTotal:           st.PercentTotal(),
		MaxPercentTotal:        s.budget.Settings.MaxPercentTotal(),
		ExpectedAmounts:        st.ExpectedAmounts(cats),
		Categories:             append([]string(nil), cats...),
	}
	if out.CategoryPercentages == nil {
		out.CategoryPercentages = map[string]decimal.Decimal{}
	}
	if !st.LastUpdated.IsZero() {
		t := st.LastUpdated.UTC()
		out.LastUpdated = &t
	}
	return out
}
