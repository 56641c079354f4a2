package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/netsheet-cli/internal/db"
	"github.com/sells-group/netsheet-cli/internal/listing"
)

var listingsCmd = &cobra.Command{
	Use:   "listings",
	Short: "Manage listing data used for taxes and commission",
}

var listingsImportCmd = &cobra.Command{
	Use:   "import <file.csv|file.xlsx>",
	Short: "Load a listing export into the listing database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if cfg.Listing.DatabaseURL == "" {
			return eris.New("listing database URL is required (NETSHEET_LISTING_DATABASE_URL)")
		}

		file, err := listing.LoadFile(args[0])
		if err != nil {
			return eris.Wrap(err, "load listing file")
		}

		pool, err := db.Open(ctx, cfg.Listing.DatabaseURL, nil, nil)
		if err != nil {
			return eris.Wrap(err, "open listing database")
		}
		defer pool.Close()

		src := listing.NewPostgresSource(pool)
		if err := src.Migrate(ctx); err != nil {
			return err
		}

		n, err := src.Import(ctx, file.Records())
		if err != nil {
			return eris.Wrap(err, "import listings")
		}

		zap.L().Info("listing import complete",
			zap.String("file", args[0]),
			zap.Int("read", file.Len()),
			zap.Int64("upserted", n),
		)
		return nil
	},
}

var listingsLookupCmd = &cobra.Command{
	Use:   "lookup <address>",
	Short: "Resolve taxes and commission for an address",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		src, closeListings, err := initListings(ctx)
		if err != nil {
			return err
		}
		defer closeListings()

		res := listing.Resolve(ctx, src, args[0], listing.DefaultsFromConfig(cfg.NetSheet))

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Address    string             `json:"address"`
			Normalized string             `json:"normalized"`
			Resolution listing.Resolution `json:"resolution"`
		}{args[0], listing.NormalizeAddress(args[0]), res})
	},
}

func init() {
	listingsCmd.AddCommand(listingsImportCmd)
	listingsCmd.AddCommand(listingsLookupCmd)
	rootCmd.AddCommand(listingsCmd)
}
