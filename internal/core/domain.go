package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the canonical calendar date format used for keys and persistence.
const DateLayout = "2006-01-02"

type (
	// Transaction is one cleaned expense row from the spreadsheet.
	Transaction struct {
		Date        time.Time
		Category    string
		Amount      decimal.Decimal
		Description string
	}

	// DailyRollup is the snapshot recorded for a single calendar day.
	DailyRollup struct {
		Date            time.Time
		Transactions    []Transaction
		TotalByCategory map[string]decimal.Decimal
		TotalAmount     decimal.Decimal
		RecordedAt      time.Time
	}

	// Settings is the user's budget configuration.
	Settings struct {
		MonthlyExpectedRevenue decimal.Decimal
		CategoryPercentages    map[string]decimal.Decimal
		LastUpdated            time.Time
	}

	// Month identifies a calendar month.
	Month struct {
		Year  int
		Month time.Month
	}
)

var (
	ErrInvalidMonth = errors.New("invalid month")
	ErrInvalidDate  = errors.New("invalid date")
)

// DateOf truncates t to its calendar date, expressed at UTC midnight.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NewDate builds a calendar date.
func NewDate(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// FormatDate renders a calendar date as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t, nil
}

// MonthOf returns the month containing t.
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

// ParseMonth parses a YYYY-MM month key.
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(s))
	if err != nil {
		return Month{}, fmt.Errorf("%w: %q", ErrInvalidMonth, s)
	}
	return MonthOf(t), nil
}

func (m Month) IsZero() bool {
	return m.Year == 0 && m.Month == 0
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// Start returns the first day of the month.
func (m Month) Start() time.Time {
	return NewDate(m.Year, m.Month, 1)
}

// Days returns the number of days in the month.
func (m Month) Days() int {
	return m.Start().AddDate(0, 1, -1).Day()
}

// Contains reports whether the calendar date of t falls inside the month.
func (m Month) Contains(t time.Time) bool {
	return t.Year() == m.Year && t.Month() == m.Month
}

// MarshalText renders the month as YYYY-MM, so it works as a JSON value and
// map key.
func (m Month) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Month) UnmarshalText(b []byte) error {
	parsed, err := ParseMonth(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

func (m Month) Prev() Month {
	return MonthOf(m.Start().AddDate(0, -1, 0))
}

func (m Month) Next() Month {
	return MonthOf(m.Start().AddDate(0, 1, 0))
}

// NewDailyRollup builds the snapshot for date. Per-category totals cover every
// category in cats (zero when absent); the grand total covers all amounts,
// including categories outside the set.
func NewDailyRollup(date time.Time, txs []Transaction, cats CategorySet, recordedAt time.Time) DailyRollup {
	totals := make(map[string]decimal.Decimal, len(cats))
	for _, c := range cats {
		totals[c] = decimal.Zero
	}
	total := decimal.Zero
	snapshot := make([]Transaction, len(txs))
	copy(snapshot, txs)
	for _, tx := range snapshot {
		total = total.Add(tx.Amount)
		if cur, ok := totals[tx.Category]; ok {
			totals[tx.Category] = cur.Add(tx.Amount)
		}
	}
	return DailyRollup{
		Date:            DateOf(date),
		Transactions:    snapshot,
		TotalByCategory: totals,
		TotalAmount:     total,
		RecordedAt:      recordedAt,
	}
}

// PercentTotal sums every configured percentage.
func (s Settings) PercentTotal() decimal.Decimal {
	sum := decimal.Zero
	for _, p := range s.CategoryPercentages {
		sum = sum.Add(p)
	}
	return sum
}

// ExpectedAmounts returns revenue * percentage / 100 for every category in cats.
// Categories without a configured percentage expect zero.
func (s Settings) ExpectedAmounts(cats CategorySet) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(cats))
	hundred := decimal.NewFromInt(100)
	for _, c := range cats {
		p, ok := s.CategoryPercentages[c]
		if !ok {
			out[c] = decimal.Zero
			continue
		}
		out[c] = s.MonthlyExpectedRevenue.Mul(p).Div(hundred)
	}
	return out
}

// Clone returns a deep copy so callers can't mutate shared state.
func (s Settings) Clone() Settings {
	pct := make(map[string]decimal.Decimal, len(s.CategoryPercentages))
	for k, v := range s.CategoryPercentages {
		pct[k] = v
	}
	s.CategoryPercentages = pct
	return s
}
