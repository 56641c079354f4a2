package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/netsheet-cli/internal/intake"
	"github.com/sells-group/netsheet-cli/internal/monitoring"
	"github.com/sells-group/netsheet-cli/internal/store"
)

var pollOnce bool

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Watch the inbox directory and process new contracts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "poll")
		if err != nil {
			return err
		}
		defer env.Close()

		health := intake.NewHealthState(cfg.Intake.MaxConsecutiveErrors)
		poller := intake.NewPoller(intake.NewDirSource(cfg.Intake.InboxDir), env.Processor, health, cfg.Intake)

		if pollOnce {
			sum, err := poller.PollOnce(ctx)
			if err != nil {
				return err
			}
			zap.L().Info("poll complete",
				zap.Int("listed", sum.Listed),
				zap.Int("processed", sum.Processed),
				zap.Int("failed", sum.Failed),
			)
			return nil
		}

		startMonitoring(ctx, env.Store, health)
		return poller.Run(ctx)
	},
}

func init() {
	pollCmd.Flags().BoolVar(&pollOnce, "once", false, "run a single poll cycle and exit")
	rootCmd.AddCommand(pollCmd)
}

// startMonitoring runs the alert checker in the background when enabled.
// health may be nil when no poller is running.
func startMonitoring(ctx context.Context, st store.Store, health *intake.HealthState) {
	if !cfg.Monitoring.Enabled {
		return
	}
	var reporter monitoring.HealthReporter
	if health != nil {
		reporter = health
	}
	checker := monitoring.NewChecker(
		monitoring.NewCollector(st, reporter),
		monitoring.NewAlerter(cfg.Monitoring),
		cfg.Monitoring,
	)
	go checker.Run(ctx)
}
