package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"financeboard/internal/core"

	"github.com/shopspring/decimal"
)

// Persisted JSON shapes. Amounts are written as JSON numbers with the exact
// decimal digits.
type (
	settingsRecord struct {
		MonthlyExpectedRevenue json.Number            `json:"monthly_expected_revenue"`
		CategoryPercentages    map[string]json.Number `json:"expense_class_percentages"`
		LastUpdated            string                 `json:"last_updated"`
	}

	transactionRecord struct {
		Date        string      `json:"date"`
		Category    string      `json:"category"`
		Amount      json.Number `json:"amount"`
		Description string      `json:"description,omitempty"`
	}

	rollupRecord struct {
		Date         string                 `json:"date"`
		Expenses     []transactionRecord    `json:"expenses"`
		TotalByClass map[string]json.Number `json:"total_by_class"`
		TotalAmount  json.Number            `json:"total_amount"`
		Timestamp    string                 `json:"timestamp"`
	}

	rollupDocument struct {
		DailyExpenses    []rollupRecord  `json:"daily_expenses"`
		MonthlySummaries json.RawMessage `json:"monthly_summaries"`
	}
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTimestamp also accepts naive ISO-8601 timestamps, read as UTC.
func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}

func toNumber(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

func fromNumber(n json.Number) (decimal.Decimal, error) {
	if n == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(string(n))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid number %q: %w", n, err)
	}
	return d, nil
}

func toNumberMap(m map[string]decimal.Decimal) map[string]json.Number {
	out := make(map[string]json.Number, len(m))
	for k, v := range m {
		out[k] = toNumber(v)
	}
	return out
}

func fromNumberMap(m map[string]json.Number) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(m))
	for k, v := range m {
		d, err := fromNumber(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		out[k] = d
	}
	return out, nil
}

func settingsToRecord(s core.Settings) settingsRecord {
	return settingsRecord{
		MonthlyExpectedRevenue: toNumber(s.MonthlyExpectedRevenue),
		CategoryPercentages:    toNumberMap(s.CategoryPercentages),
		LastUpdated:            formatTimestamp(s.LastUpdated),
	}
}

func settingsFromRecord(r settingsRecord) (core.Settings, error) {
	revenue, err := fromNumber(r.MonthlyExpectedRevenue)
	if err != nil {
		return core.Settings{}, fmt.Errorf("monthly_expected_revenue: %w", err)
	}
	pct, err := fromNumberMap(r.CategoryPercentages)
	if err != nil {
		return core.Settings{}, fmt.Errorf("expense_class_percentages: %w", err)
	}
	updated, err := parseTimestamp(r.LastUpdated)
	if err != nil {
		return core.Settings{}, fmt.Errorf("last_updated: %w", err)
	}
	return core.Settings{
		MonthlyExpectedRevenue: revenue,
		CategoryPercentages:    pct,
		LastUpdated:            updated,
	}, nil
}

func transactionsToRecords(txs []core.Transaction) []transactionRecord {
	out := make([]transactionRecord, 0, len(txs))
	for _, tx := range txs {
		out = append(out, transactionRecord{
			Date:        core.FormatDate(tx.Date),
			Category:    tx.Category,
			Amount:      toNumber(tx.Amount),
			Description: tx.Description,
		})
	}
	return out
}

func transactionsFromRecords(recs []transactionRecord) ([]core.Transaction, error) {
	out := make([]core.Transaction, 0, len(recs))
	for i, rec := range recs {
		date, err := core.ParseDate(rec.Date)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
		amount, err := fromNumber(rec.Amount)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
		out = append(out, core.Transaction{
			Date:        date,
			Category:    rec.Category,
			Amount:      amount,
			Description: rec.Description,
		})
	}
	return out, nil
}

func rollupToRecord(r core.DailyRollup) rollupRecord {
	return rollupRecord{
		Date:         core.FormatDate(r.Date),
		Expenses:     transactionsToRecords(r.Transactions),
		TotalByClass: toNumberMap(r.TotalByCategory),
		TotalAmount:  toNumber(r.TotalAmount),
		Timestamp:    formatTimestamp(r.RecordedAt),
	}
}

func rollupFromRecord(rec rollupRecord) (core.DailyRollup, error) {
	date, err := core.ParseDate(rec.Date)
	if err != nil {
		return core.DailyRollup{}, err
	}
	txs, err := transactionsFromRecords(rec.Expenses)
	if err != nil {
		return core.DailyRollup{}, fmt.Errorf("%s: %w", rec.Date, err)
	}
	totals, err := fromNumberMap(rec.TotalByClass)
	if err != nil {
		return core.DailyRollup{}, fmt.Errorf("%s total_by_class: %w", rec.Date, err)
	}
	total, err := fromNumber(rec.TotalAmount)
	if err != nil {
		return core.DailyRollup{}, fmt.Errorf("%s total_amount: %w", rec.Date, err)
	}
	recorded, err := parseTimestamp(rec.Timestamp)
	if err != nil {
		return core.DailyRollup{}, fmt.Errorf("%s timestamp: %w", rec.Date, err)
	}
	return core.DailyRollup{
		Date:            date,
		Transactions:    txs,
		TotalByCategory: totals,
		TotalAmount:     total,
		RecordedAt:      recorded,
	}, nil
}
