package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/netsheet-cli/internal/monitoring"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Run-health metrics and alerting",
}

var monitorCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Collect metrics once, evaluate thresholds and send alerts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		collector := monitoring.NewCollector(st, nil)
		checker := monitoring.NewChecker(collector, monitoring.NewAlerter(cfg.Monitoring), cfg.Monitoring)

		dryRun, _ := cmd.Flags().GetBool("dry-run")
		var out any
		if dryRun {
			snap, err := collector.Collect(ctx, cfg.Monitoring.LookbackWindowHours)
			if err != nil {
				return err
			}
			out = map[string]any{
				"metrics": snap,
				"alerts":  monitoring.NewAlerter(cfg.Monitoring).Evaluate(snap),
			}
		} else {
			alerts, sent, err := checker.Check(ctx)
			if err != nil {
				return err
			}
			out = map[string]any{"alerts": alerts, "sent": sent}
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	monitorCheckCmd.Flags().Bool("dry-run", false, "print metrics and triggered alerts without sending")
	monitorCmd.AddCommand(monitorCheckCmd)
	rootCmd.AddCommand(monitorCmd)
}
