// Package listing looks up annual taxes and commission rates for a property
// from listing records.
package listing

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sells-group/netsheet-cli/internal/config"
	"github.com/sells-group/netsheet-cli/internal/netsheet"
)

// ErrNotFound is returned when no listing matches an address.
var ErrNotFound = errors.New("listing: not found")

// Record is one listing's tax and commission data. A nil field was blank in
// the source.
type Record struct {
	Address           string
	AnnualTaxes       *decimal.Decimal
	CommissionPercent *decimal.Decimal
}

// Source looks up listing data by property address.
type Source interface {
	LookupByAddress(ctx context.Context, address string) (*Record, error)
}

// Defaults are used when listing data is missing.
type Defaults struct {
	AnnualTaxes       decimal.Decimal
	CommissionPercent decimal.Decimal
}

// DefaultsFromConfig reads fallback values from the netsheet config section.
func DefaultsFromConfig(cfg config.NetSheetConfig) Defaults {
	return Defaults{
		AnnualTaxes:       decimal.NewFromFloat(cfg.DefaultAnnualTaxes),
		CommissionPercent: decimal.NewFromFloat(cfg.DefaultCommissionPercent),
	}
}

// Resolution is the tax and commission data handed to the calculator.
type Resolution struct {
	AnnualTaxes       decimal.Decimal `json:"annual_taxes"`
	CommissionPercent decimal.Decimal `json:"commission_percent"`
	Found             bool            `json:"found"`
	// NeedsTaxVerification is set whenever AnnualTaxes is a default.
	NeedsTaxVerification bool `json:"needs_tax_verification"`
}

// NetSheet converts r into calculator input.
func (r Resolution) NetSheet() netsheet.ListingData {
	return netsheet.ListingData{
		AnnualTaxes:       r.AnnualTaxes,
		CommissionPercent: r.CommissionPercent,
		Defaulted:         r.NeedsTaxVerification,
	}
}

// Resolve looks up address and fills gaps from defaults. Lookup failures are
// logged and treated as not found; Resolve never fails.
func Resolve(ctx context.Context, src Source, address string, def Defaults) Resolution {
	res := Resolution{
		AnnualTaxes:          def.AnnualTaxes,
		CommissionPercent:    def.CommissionPercent,
		NeedsTaxVerification: true,
	}
	if src == nil || address == "" {
		return res
	}

	rec, err := src.LookupByAddress(ctx, address)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			zap.L().Warn("listing: lookup failed", zap.String("address", address), zap.Error(err))
		} else {
			zap.L().Info("listing: no listing for address", zap.String("address", address))
		}
		return res
	}

	res.Found = true
	if rec.AnnualTaxes != nil && rec.AnnualTaxes.IsPositive() {
		res.AnnualTaxes = *rec.AnnualTaxes
		res.NeedsTaxVerification = false
	}
	if rec.CommissionPercent != nil && rec.CommissionPercent.IsPositive() {
		res.CommissionPercent = fraction(*rec.CommissionPercent)
	}
	return res
}

var hundred = decimal.NewFromInt(100)

// fraction turns a whole-number percentage (3 or 2.5) into a fraction.
func fraction(d decimal.Decimal) decimal.Decimal {
	if d.GreaterThan(decimal.NewFromInt(1)) {
		return d.Div(hundred)
	}
	return d
}
