package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/warp/towel-workflow/logging"
	"github.com/warp/towel-workflow/production"
	"github.com/warp/towel-workflow/workflow"
)

var (
	flagFrom  string
	flagTo    string
	flagDaily bool
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the worker report for a date range as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		from, err := production.ParseDate(flagFrom)
		if err != nil {
			return fmt.Errorf("--from: %w", err)
		}
		to, err := production.ParseDate(flagTo)
		if err != nil {
			return fmt.Errorf("--to: %w", err)
		}
		period, err := production.NewPeriod(from, to)
		if err != nil {
			return err
		}

		st, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize store: %w", err)
		}
		defer st.close()

		svc := workflow.New(st, logging.Named(logger, "workflow"), nil)

		var out any
		if flagDaily {
			out, err = svc.DailyReport(cmd.Context(), period)
		} else {
			out, err = svc.WorkerReport(cmd.Context(), period)
		}
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	reportCmd.Flags().StringVar(&flagFrom, "from", "", "first day, YYYY-MM-DD")
	reportCmd.Flags().StringVar(&flagTo, "to", "", "last day, YYYY-MM-DD")
	reportCmd.Flags().BoolVar(&flagDaily, "daily", false, "one block per day")
	_ = reportCmd.MarkFlagRequired("from")
	_ = reportCmd.MarkFlagRequired("to")
}
