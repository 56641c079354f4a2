package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/netsheet-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "netsheet",
	Short: "Seller net sheets from purchase contract PDFs",
	Long:  "Extracts fields from residential purchase contracts with vision models, computes the seller net sheet, and writes CSV, XLSX, HTML and PDF artifacts.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
