package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/netsheet-cli/internal/model"
	"github.com/sells-group/netsheet-cli/internal/pipeline"
)

var processCmd = &cobra.Command{
	Use:   "process <contract.pdf>...",
	Short: "Run the full pipeline for one or more contracts",
	Long:  "Extracts each contract, computes its net sheet, writes artifacts and records the run. Documents are processed one after another.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "process")
		if err != nil {
			return err
		}
		defer env.Close()

		reports := make([]*pipeline.Report, 0, len(args))
		var failed int
		for _, path := range args {
			rep, err := env.Processor.Process(ctx, model.Document{Path: path, Source: "cli"})
			if err != nil {
				if ctx.Err() != nil {
					return eris.Wrap(err, "process")
				}
				zap.L().Error("document failed", zap.String("path", path), zap.Error(err))
				failed++
				continue
			}
			if rep.Outcome == model.OutcomeFailure {
				failed++
			}
			reports = append(reports, rep)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(reports); err != nil {
			return err
		}

		if failed > 0 {
			return eris.Errorf("process: %d of %d documents failed", failed, len(args))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(processCmd)
}
