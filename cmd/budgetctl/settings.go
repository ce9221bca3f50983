package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"financeboard/internal/core"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func (a *app) settingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change the budget settings",
	}
	cmd.AddCommand(a.settingsShowCmd())
	cmd.AddCommand(a.settingsSetCmd())
	cmd.AddCommand(a.settingsResetCmd())
	return cmd
}

func (a *app) settingsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print revenue, percentages and expected amounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := a.runtime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			st := rt.Budget.GetSettings(cmd.Context())
			printSettings(cmd.OutOrStdout(), st, rt.Budget.Categories(), rt.Budget.Settings.MaxPercentTotal())
			return nil
		},
	}
}

func (a *app) settingsSetCmd() *cobra.Command {
	var (
		revenue string
		pcts    []string
		replace bool
	)
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Update revenue and category percentages",
		Long: `Update the expected revenue and category percentages.

Percentages given with --pct are merged into the current ones unless --replace
is set, in which case they become the whole table.

  budgetctl settings set --revenue 5200 --pct Rent=22 --pct Leisure=8`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if revenue == "" && len(pcts) == 0 {
				return fmt.Errorf("nothing to change: pass --revenue and/or --pct")
			}
			ctx := cmd.Context()
			rt, err := a.runtime(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			cur := rt.Budget.GetSettings(ctx)
			rev := cur.MonthlyExpectedRevenue
			if revenue != "" {
				rev, err = decimal.NewFromString(strings.TrimSpace(revenue))
				if err != nil {
					return fmt.Errorf("invalid --revenue %q", revenue)
				}
			}

			next := map[string]decimal.Decimal{}
			if !replace {
				for k, v := range cur.CategoryPercentages {
					next[k] = v
				}
			}
			for _, p := range pcts {
				name, value, err := parsePercentFlag(p)
				if err != nil {
					return err
				}
				next[name] = value
			}

			if out := rt.Budget.UpdateSettings(ctx, rev, next); !out.OK {
				return fmt.Errorf("settings not saved: %s", out.Detail)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Settings saved.")
			printSettings(cmd.OutOrStdout(), rt.Budget.GetSettings(ctx), rt.Budget.Categories(), rt.Budget.Settings.MaxPercentTotal())
			return nil
		},
	}
	cmd.Flags().StringVar(&revenue, "revenue", "", "monthly expected revenue")
	cmd.Flags().StringArrayVar(&pcts, "pct", nil, "category percentage as Category=N (repeatable)")
	cmd.Flags().BoolVar(&replace, "replace", false, "replace the percentage table instead of merging")
	return cmd
}

func (a *app) settingsResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Restore the default budget",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := a.runtime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			if out := rt.Budget.Settings.Reset(cmd.Context()); !out.OK {
				return fmt.Errorf("reset failed: %s", out.Detail)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Defaults restored.")
			return nil
		},
	}
}

func parsePercentFlag(s string) (string, decimal.Decimal, error) {
	name, value, ok := strings.Cut(s, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return "", decimal.Zero, fmt.Errorf("invalid --pct %q: want Category=N", s)
	}
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return "", decimal.Zero, fmt.Errorf("invalid --pct %q: %q is not a number", s, value)
	}
	return name, d, nil
}

func printSettings(out io.Writer, st core.Settings, cats core.CategorySet, maxTotal decimal.Decimal) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintf(w, "Expected revenue\t%s\n", st.MonthlyExpectedRevenue.StringFixed(2))
	if !st.LastUpdated.IsZero() {
		fmt.Fprintf(w, "Last updated\t%s\n", st.LastUpdated.Local().Format("2006-01-02 15:04"))
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "CATEGORY\tPERCENT\tEXPECTED")
	expected := st.ExpectedAmounts(cats)
	for _, c := range cats {
		fmt.Fprintf(w, "%s\t%s\t%s\n", c, st.CategoryPercentages[c].String(), expected[c].StringFixed(2))
	}
	// Percentages for categories outside the set still count toward the cap.
	for name, p := range st.CategoryPercentages {
		if !cats.Contains(name) {
			fmt.Fprintf(w, "%s (unused)\t%s\t-\n", name, p.String())
		}
	}
	fmt.Fprintf(w, "TOTAL\t%s\tlimit %s\n", st.PercentTotal().String(), maxTotal.String())
}
