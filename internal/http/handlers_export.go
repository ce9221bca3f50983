package http

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"net/http"

	"financeboard/internal/core"
	"financeboard/internal/log"

	"github.com/gocarina/gocsv"
)

// exportRow is one line of the transactions export.
type exportRow struct {
	Date        string `csv:"date"`
	Category    string `csv:"category"`
	Amount      string `csv:"amount"`
	Description string `csv:"description"`
	Counted     bool   `csv:"counted_in_budget"`
}

func toExportRows(txs []core.Transaction, cats core.CategorySet) []*exportRow {
	rows := make([]*exportRow, 0, len(txs))
	for _, tx := range txs {
		rows = append(rows, &exportRow{
			Date:        core.FormatDate(tx.Date),
			Category:    tx.Category,
			Amount:      tx.Amount.StringFixed(2),
			Description: tx.Description,
			Counted:     cats.Contains(tx.Category),
		})
	}
	return rows
}

// handleExportTransactions streams the month's stored transactions as CSV.
func (s *Server) handleExportTransactions(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodGet); resp != nil {
		resp.Write(w)
		return
	}
	month, err := ParseMonthParam(r.URL.Query(), s.now())
	if err != nil {
		http.Error(w, "month must look like YYYY-MM", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), summaryTimeout)
	defer cancel()
	sum := s.budget.GetMonthlySummary(ctx, month)
	rows := toExportRows(sum.Transactions(), s.budget.Categories())

	var buf bytes.Buffer
	if err := gocsv.MarshalCSV(rows, gocsv.NewSafeCSVWriter(csv.NewWriter(&buf))); err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "CSV export failed",
			log.NewFields().WithOperation(log.OpExport).WithMonth(month).WithError(err).ToSlice()...)
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}

	log.FromContext(ctx).InfoContext(ctx, "Transactions exported",
		log.FieldMonth, month.String(),
		log.FieldTransactions, len(rows),
	)
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="transactions-%s.csv"`, month))
	_, _ = w.Write(buf.Bytes())
}
