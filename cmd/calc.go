package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/netsheet-cli/internal/listing"
	"github.com/sells-group/netsheet-cli/internal/model"
	"github.com/sells-group/netsheet-cli/internal/netsheet"
	"github.com/sells-group/netsheet-cli/internal/pipeline"
	"github.com/sells-group/netsheet-cli/internal/report"
)

// calcRequest is a net sheet request built from already-extracted fields.
// Overrides replace whatever the listing lookup found.
type calcRequest struct {
	Fields            model.FieldMap `json:"fields"`
	Address           string         `json:"address,omitempty"`
	AnnualTaxes       *float64       `json:"annual_taxes,omitempty"`
	CommissionPercent *float64       `json:"commission_percent,omitempty"`
}

type calcResponse struct {
	Address     string              `json:"address,omitempty"`
	Listing     listing.Resolution  `json:"listing"`
	NetSheet    netsheet.Output     `json:"net_sheet"`
	Lines       []netsheet.LineItem `json:"lines"`
	NeedsReview bool                `json:"needs_review"`
}

// calculate resolves listing data for req and runs the calculator.
func calculate(ctx context.Context, req calcRequest, src listing.Source, def listing.Defaults, fees netsheet.Fees) calcResponse {
	addr := req.Address
	if addr == "" {
		addr = pipeline.PropertyAddress(req.Fields)
	}
	res := listing.Resolve(ctx, src, addr, def)
	if req.AnnualTaxes != nil && *req.AnnualTaxes > 0 {
		res.AnnualTaxes = decimal.NewFromFloat(*req.AnnualTaxes)
		res.NeedsTaxVerification = false
	}
	if req.CommissionPercent != nil && *req.CommissionPercent > 0 {
		pct := decimal.NewFromFloat(*req.CommissionPercent)
		if pct.GreaterThan(decimal.NewFromInt(1)) {
			pct = pct.Div(decimal.NewFromInt(100))
		}
		res.CommissionPercent = pct
	}

	out := netsheet.Calculate(netsheet.InputFromFields(req.Fields, res.NetSheet(), fees))
	return calcResponse{
		Address:     addr,
		Listing:     res,
		NetSheet:    out,
		Lines:       out.Lines(),
		NeedsReview: out.TaxesDefaulted || out.TaxProrationMissing || out.SurveyEstimated,
	}
}

var calcCmd = &cobra.Command{
	Use:   "calc <fields.json>",
	Short: "Compute a net sheet from an extracted field map",
	Long:  "Reads a JSON field map (as printed by `netsheet extract`) and prints the seller net sheet. No model calls are made.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("calc"); err != nil {
			return err
		}

		data, err := os.ReadFile(args[0])
		if err != nil {
			return eris.Wrap(err, "read fields file")
		}
		var req calcRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return eris.Wrap(err, "parse fields file")
		}
		// A bare field map is accepted as well as a full request.
		if req.Fields == nil {
			if err := json.Unmarshal(data, &req.Fields); err != nil {
				return eris.Wrap(err, "parse fields file")
			}
		}

		if f := cmd.Flags().Lookup("annual-taxes"); f.Changed {
			v, _ := cmd.Flags().GetFloat64("annual-taxes")
			req.AnnualTaxes = &v
		}
		if f := cmd.Flags().Lookup("commission"); f.Changed {
			v, _ := cmd.Flags().GetFloat64("commission")
			req.CommissionPercent = &v
		}

		src, closeListings, err := initListings(ctx)
		if err != nil {
			return err
		}
		defer closeListings()

		resp := calculate(ctx, req, src, listing.DefaultsFromConfig(cfg.NetSheet), netsheet.FeesFromConfig(cfg.NetSheet))

		if outDir, _ := cmd.Flags().GetString("out"); outDir != "" {
			arts, err := report.Generate(ctx, outDir, report.Sheet{
				Address:     resp.Address,
				Outcome:     model.OutcomeFullSuccess,
				NeedsReview: resp.NeedsReview,
				Output:      resp.NetSheet,
				GeneratedAt: time.Now().UTC(),
			}, nil)
			if err != nil {
				return eris.Wrap(err, "generate artifacts")
			}
			zap.L().Info("artifacts written", zap.Strings("paths", arts.Paths()))
		}

		if format, _ := cmd.Flags().GetString("format"); format == "json" {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		}
		formatNetSheet(os.Stdout, resp)
		return nil
	},
}

func init() {
	calcCmd.Flags().Float64("annual-taxes", 0, "annual property taxes, overrides listing data")
	calcCmd.Flags().Float64("commission", 0, "listing commission as a fraction or percent (0.03 or 3)")
	calcCmd.Flags().String("format", "table", "output format (table, json)")
	calcCmd.Flags().String("out", "", "also write CSV/XLSX/HTML artifacts into this directory")
	rootCmd.AddCommand(calcCmd)
}

// formatNetSheet writes the itemized net sheet as a table.
func formatNetSheet(out io.Writer, resp calcResponse) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	if resp.Address != "" {
		_, _ = fmt.Fprintf(w, "Property:\t%s\t\n", resp.Address)
	}
	_, _ = fmt.Fprintf(w, "Sales price\t%s\t\n", resp.NetSheet.SalesPrice.StringFixed(2))
	_, _ = fmt.Fprintln(w, "\t\t")
	for _, l := range resp.Lines {
		note := ""
		if l.Note != "" {
			note = "  (" + l.Note + ")"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", l.Label, l.Amount.StringFixed(2), note)
	}
	_, _ = fmt.Fprintln(w, "\t\t")
	_, _ = fmt.Fprintf(w, "Total costs\t%s\t\n", resp.NetSheet.TotalCosts.StringFixed(2))
	_, _ = fmt.Fprintf(w, "Net to seller\t%s\t\n", resp.NetSheet.NetToSeller.StringFixed(2))
	if resp.NeedsReview {
		_, _ = fmt.Fprintln(w, "\t\t")
		_, _ = fmt.Fprintln(w, "NEEDS REVIEW\t\t")
	}
	_ = w.Flush()
}
