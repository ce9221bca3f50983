package core

import (
	"github.com/shopspring/decimal"
)

type (
	// MonthlySummary is derived from the rollups of one month plus the current
	// settings. It is never persisted.
	MonthlySummary struct {
		Month                  Month
		TotalAmount            decimal.Decimal
		TotalByCategory        map[string]decimal.Decimal
		DailyEntries           int
		ExpectedByCategory     map[string]decimal.Decimal
		MonthlyExpectedRevenue decimal.Decimal
		Categories             CategorySet
		Rollups                []DailyRollup
	}

	// CategoryComparison is one row of the budget vs actual table.
	CategoryComparison struct {
		Category   string
		Expected   decimal.Decimal
		Actual     decimal.Decimal
		Difference decimal.Decimal
		OverBudget bool
	}
)

// Summarize folds the rollups that fall inside month. Rollups from other months
// are ignored. Every category in cats gets an entry, zero when unspent.
func Summarize(month Month, rollups []DailyRollup, settings Settings, cats CategorySet) MonthlySummary {
	byCat := make(map[string]decimal.Decimal, len(cats))
	for _, c := range cats {
		byCat[c] = decimal.Zero
	}
	total := decimal.Zero
	var inMonth []DailyRollup
	for _, r := range rollups {
		if !month.Contains(r.Date) {
			continue
		}
		inMonth = append(inMonth, r)
		total = total.Add(r.TotalAmount)
		for _, c := range cats {
			if v, ok := r.TotalByCategory[c]; ok {
				byCat[c] = byCat[c].Add(v)
			}
		}
	}
	return MonthlySummary{
		Month:                  month,
		TotalAmount:            total,
		TotalByCategory:        byCat,
		DailyEntries:           len(inMonth),
		ExpectedByCategory:     settings.ExpectedAmounts(cats),
		MonthlyExpectedRevenue: settings.MonthlyExpectedRevenue,
		Categories:             cats,
		Rollups:                inMonth,
	}
}

// Remaining is expected revenue minus total spent. It may be negative.
func (s MonthlySummary) Remaining() decimal.Decimal {
	return s.MonthlyExpectedRevenue.Sub(s.TotalAmount)
}

// SpentPercent is total spent as a percentage of expected revenue, zero when
// no revenue is expected.
func (s MonthlySummary) SpentPercent() decimal.Decimal {
	if s.MonthlyExpectedRevenue.IsZero() {
		return decimal.Zero
	}
	return s.TotalAmount.Div(s.MonthlyExpectedRevenue).Mul(decimal.NewFromInt(100))
}

// Comparisons lists expected vs actual per category in category-set order.
func (s MonthlySummary) Comparisons() []CategoryComparison {
	out := make([]CategoryComparison, 0, len(s.Categories))
	for _, c := range s.Categories {
		exp := s.ExpectedByCategory[c]
		act := s.TotalByCategory[c]
		out = append(out, CategoryComparison{
			Category:   c,
			Expected:   exp,
			Actual:     act,
			Difference: exp.Sub(act),
			OverBudget: act.GreaterThan(exp),
		})
	}
	return out
}

// Transactions flattens the month's rollup snapshots, newest day first.
func (s MonthlySummary) Transactions() []Transaction {
	var out []Transaction
	for _, r := range s.Rollups {
		out = append(out, r.Transactions...)
	}
	return out
}
