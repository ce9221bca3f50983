package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"financeboard/internal/core"

	"github.com/spf13/cobra"
)

func (a *app) summaryCmd() *cobra.Command {
	var (
		month  string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print the budget vs actual summary for a month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := parseMonthFlag(month)
			if err != nil {
				return err
			}
			rt, err := a.runtime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			sum := rt.Budget.GetMonthlySummary(cmd.Context(), m)
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(summaryOutput(sum))
			}
			printSummary(cmd.OutOrStdout(), sum)
			return nil
		},
	}
	cmd.Flags().StringVar(&month, "month", "", "month as YYYY-MM (default: current month)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

// parseMonthFlag returns the zero month, meaning current, for an empty flag.
func parseMonthFlag(s string) (core.Month, error) {
	if s == "" {
		return core.Month{}, nil
	}
	m, err := core.ParseMonth(s)
	if err != nil {
		return core.Month{}, fmt.Errorf("invalid --month: %w", err)
	}
	return m, nil
}

func summaryOutput(sum core.MonthlySummary) map[string]any {
	rows := make([]map[string]any, 0, len(sum.Categories))
	for _, c := range sum.Comparisons() {
		rows = append(rows, map[string]any{
			"category":    c.Category,
			"expected":    c.Expected,
			"actual":      c.Actual,
			"difference":  c.Difference,
			"over_budget": c.OverBudget,
		})
	}
	return map[string]any{
		"month":             sum.Month,
		"expected_revenue":  sum.MonthlyExpectedRevenue,
		"total_amount":      sum.TotalAmount,
		"total_by_category": sum.TotalByCategory,
		"expected_amounts":  sum.ExpectedByCategory,
		"remaining":         sum.Remaining(),
		"spent_percent":     sum.SpentPercent().Round(2),
		"daily_entries":     sum.DailyEntries,
		"comparisons":       rows,
	}
}

func printSummary(out io.Writer, sum core.MonthlySummary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	defer w.Flush()

	fmt.Fprintf(w, "Month\t%s\t\n", sum.Month)
	fmt.Fprintf(w, "Expected revenue\t%s\t\n", sum.MonthlyExpectedRevenue.StringFixed(2))
	fmt.Fprintf(w, "Total spent\t%s\t\n", sum.TotalAmount.StringFixed(2))
	fmt.Fprintf(w, "Remaining\t%s\t\n", sum.Remaining().StringFixed(2))
	fmt.Fprintf(w, "Days recorded\t%d/%d\t\n", sum.DailyEntries, sum.Month.Days())
	fmt.Fprintln(w, "\t\t")
	fmt.Fprintln(w, "CATEGORY\tBUDGETED\tSPENT\tDIFFERENCE\t")
	for _, c := range sum.Comparisons() {
		flag := ""
		if c.OverBudget {
			flag = " !"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s%s\t\n", c.Category,
			c.Expected.StringFixed(2), c.Actual.StringFixed(2), c.Difference.StringFixed(2), flag)
	}
}
