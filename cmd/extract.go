package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var extractFieldsOnly bool

var extractCmd = &cobra.Command{
	Use:   "extract <contract.pdf>",
	Short: "Run robust field extraction on one contract",
	Long:  "Runs the primary, secondary and minimal strategies against the PDF and prints the extraction result (or only the field map with --fields-only). Nothing is persisted.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("extract"); err != nil {
			return err
		}

		orch, err := initOrchestrator(ctx)
		if err != nil {
			return err
		}

		res, err := orch.Run(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "extract")
		}

		zap.L().Info("extraction complete",
			zap.String("outcome", string(res.Outcome)),
			zap.String("method", string(res.FinalMethod)),
			zap.Int("fields", res.FieldsExtracted),
			zap.Float64("cost_usd", res.TotalCostUSD()),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if extractFieldsOnly {
			return enc.Encode(res.Data)
		}
		return enc.Encode(res)
	},
}

func init() {
	extractCmd.Flags().BoolVar(&extractFieldsOnly, "fields-only", false, "print only the extracted field map")
	rootCmd.AddCommand(extractCmd)
}
