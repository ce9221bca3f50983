package main

import (
	"fmt"
	"time"

	"financeboard/internal/amqp"

	"github.com/spf13/cobra"
)

func (a *app) refreshCmd() *cobra.Command {
	var (
		month string
		queue bool
	)
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Re-read the spreadsheet and record the month's daily rollups",
		Long: `Fetch the extract, clean it and upsert one rollup per date for the month.

With --queue the request is published to AMQP for the refresh worker instead
of running here.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			m, err := parseMonthFlag(month)
			if err != nil {
				return err
			}
			rt, err := a.runtime(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			out := cmd.OutOrStdout()
			if queue {
				if !a.cfg.UsesBroker() {
					return fmt.Errorf("--queue needs AMQP_URL")
				}
				if err := rt.ConnectBroker(); err != nil {
					return err
				}
				req := amqp.NewRefreshRequest(m, amqp.ReasonCLI)
				if err := rt.Broker.PublishRefresh(ctx, req); err != nil {
					return fmt.Errorf("publish refresh: %w", err)
				}
				fmt.Fprintf(out, "Refresh queued (%s)\n", req.ID)
				return nil
			}

			rep := rt.Refresh.ForceRefresh(ctx, m)
			fmt.Fprintf(out, "Month %s: %d rows fetched, %d transactions over %d days in %s\n",
				rep.Month, rep.RowsFetched, rep.Transactions, rep.Days, rep.Duration().Round(time.Millisecond))
			for _, is := range rep.Issues {
				fmt.Fprintf(out, "  row %d: %s", is.Row, is.Detail)
				if is.Suggestion != "" {
					fmt.Fprintf(out, " (did you mean %s?)", is.Suggestion)
				}
				fmt.Fprintln(out)
			}
			if !rep.Outcome.OK {
				return fmt.Errorf("refresh failed: %s", rep.Outcome)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&month, "month", "", "month as YYYY-MM (default: current month)")
	cmd.Flags().BoolVar(&queue, "queue", false, "publish to the refresh worker instead of running here")
	return cmd
}
