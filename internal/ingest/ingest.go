// Package ingest turns a raw spreadsheet extract into cleaned transactions.
package ingest

import (
	"fmt"
	"strings"
	"time"

	"financeboard/internal/core"
	"financeboard/internal/log"
)

// DefaultDateLayouts are tried in order. Slash dates are day-first.
var DefaultDateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"2/1/2006",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"02-01-2006",
	"2006/01/02",
}

// Columns lists the accepted header names for each field, matched
// case-insensitively.
type Columns struct {
	Date        []string
	Category    []string
	Amount      []string
	Description []string
}

// DefaultColumns matches the spreadsheet's Portuguese headers and their
// English equivalents.
func DefaultColumns() Columns {
	return Columns{
		Date:        []string{"Data", "Date"},
		Category:    []string{"Class", "Category"},
		Amount:      []string{"Value", "Amount"},
		Description: []string{"Description", "Descrição", "Descricao"},
	}
}

type (
	Config struct {
		Columns     Columns
		DateLayouts []string
		Categories  core.CategorySet
		Normalizer  core.Normalizer
		Now         func() time.Time
		Logger      *log.Logger
	}

	// Issue is a data quality problem found in one row. Row is the 1-based
	// row number in the sheet, counting the header as row 1.
	Issue struct {
		Row        int             `json:"row"`
		Reason     core.ReasonCode `json:"reason"`
		Detail     string          `json:"detail"`
		Suggestion string          `json:"suggestion,omitempty"`
	}

	Result struct {
		Month        core.Month
		Transactions []core.Transaction
		Issues       []Issue
		RowsRead     int

		unreadable string
	}

	Ingestor struct {
		columns    Columns
		layouts    []string
		categories core.CategorySet
		normalizer core.Normalizer
		now        func() time.Time
		logger     *log.Logger
	}
)

func New(cfg Config) *Ingestor {
	cols := cfg.Columns
	def := DefaultColumns()
	if len(cols.Date) == 0 {
		cols.Date = def.Date
	}
	if len(cols.Category) == 0 {
		cols.Category = def.Category
	}
	if len(cols.Amount) == 0 {
		cols.Amount = def.Amount
	}
	if len(cols.Description) == 0 {
		cols.Description = def.Description
	}
	layouts := cfg.DateLayouts
	if len(layouts) == 0 {
		layouts = DefaultDateLayouts
	}
	cats := cfg.Categories
	if len(cats) == 0 {
		cats = core.DefaultCategories
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Discard()
	}
	normalizer := cfg.Normalizer
	if normalizer.IsZero() {
		normalizer = core.NewNormalizer()
	}
	return &Ingestor{
		columns:    cols,
		layouts:    layouts,
		categories: cats,
		normalizer: normalizer,
		now:        now,
		logger:     logger.WithComponent(log.ComponentIngest),
	}
}

// Outcome summarizes the result: it fails only when the extract could not be
// read at all because the date column is missing.
func (r Result) Outcome() core.Outcome {
	if r.unreadable != "" {
		return core.Fail(core.ReasonMissingColumn, "%s", r.unreadable)
	}
	return core.OK()
}

// Categories returns the category set used to canonicalize labels.
func (in *Ingestor) Categories() core.CategorySet {
	return in.categories
}

// IngestCurrent ingests the extract for the current month.
func (in *Ingestor) IngestCurrent(extract [][]string) Result {
	return in.Ingest(extract, core.MonthOf(in.now()))
}

// Ingest keeps the rows of extract dated inside month. Rows with unparsable
// dates are dropped and malformed amounts become zero; both are reported as
// issues. An extract without data rows yields an empty result. extract is not
// modified.
func (in *Ingestor) Ingest(extract [][]string, month core.Month) Result {
	res := Result{Month: month}
	if len(extract) < 2 {
		return res
	}

	header := extract[0]
	dateIdx := findColumn(header, in.columns.Date)
	catIdx := findColumn(header, in.columns.Category)
	amountIdx := findColumn(header, in.columns.Amount)
	descIdx := findColumn(header, in.columns.Description)

	if dateIdx < 0 {
		res.unreadable = fmt.Sprintf("no date column (looked for %s)", strings.Join(in.columns.Date, ", "))
		res.Issues = append(res.Issues, Issue{Row: 1, Reason: core.ReasonMissingColumn, Detail: res.unreadable})
		in.logger.Warn("Extract has no date column", log.FieldReason, core.ReasonMissingColumn)
		return res
	}
	if amountIdx < 0 {
		res.Issues = append(res.Issues, Issue{
			Row:    1,
			Reason: core.ReasonMissingColumn,
			Detail: fmt.Sprintf("no amount column (looked for %s), amounts count as zero", strings.Join(in.columns.Amount, ", ")),
		})
	}
	if catIdx < 0 {
		res.Issues = append(res.Issues, Issue{
			Row:    1,
			Reason: core.ReasonMissingColumn,
			Detail: fmt.Sprintf("no category column (looked for %s)", strings.Join(in.columns.Category, ", ")),
		})
	}

	for i, row := range extract[1:] {
		rowNum := i + 2
		if isBlank(row) {
			continue
		}
		res.RowsRead++

		rawDate := safeGet(row, dateIdx)
		date, ok := in.parseDate(rawDate)
		if !ok {
			res.Issues = append(res.Issues, Issue{
				Row:    rowNum,
				Reason: core.ReasonUnparsableDate,
				Detail: fmt.Sprintf("unparsable date %q, row dropped", rawDate),
			})
			continue
		}
		if !month.Contains(date) {
			continue
		}

		rawAmount := safeGet(row, amountIdx)
		amount, out := in.normalizer.Normalize(rawAmount)
		if !out.OK && amountIdx >= 0 {
			res.Issues = append(res.Issues, Issue{
				Row:    rowNum,
				Reason: out.Reason,
				Detail: out.Detail + ", counted as zero",
			})
		}

		category, known := in.categories.Canonical(safeGet(row, catIdx))
		if !known {
			issue := Issue{
				Row:    rowNum,
				Reason: core.ReasonUnknownCategory,
				Detail: fmt.Sprintf("unknown category %q, excluded from category totals", category),
			}
			if s, ok := in.categories.Suggest(category); ok {
				issue.Suggestion = s
			}
			res.Issues = append(res.Issues, issue)
		}

		res.Transactions = append(res.Transactions, core.Transaction{
			Date:        date,
			Category:    category,
			Amount:      amount,
			Description: strings.TrimSpace(safeGet(row, descIdx)),
		})
	}

	in.logger.Debug("Extract ingested",
		log.FieldMonth, month.String(),
		log.FieldRows, res.RowsRead,
		log.FieldTransactions, len(res.Transactions),
		log.FieldIssues, len(res.Issues),
	)
	return res
}

func (in *Ingestor) parseDate(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range in.layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return core.DateOf(t), true
		}
	}
	return time.Time{}, false
}

func findColumn(header []string, names []string) int {
	for _, name := range names {
		for i, h := range header {
			if strings.EqualFold(strings.TrimSpace(h), strings.TrimSpace(name)) {
				return i
			}
		}
	}
	return -1
}

func safeGet(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
