package netsheet

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sells-group/netsheet-cli/internal/config"
	"github.com/sells-group/netsheet-cli/internal/model"
)

// ListingData is the tax and commission information resolved for the
// property from listing records.
type ListingData struct {
	AnnualTaxes       decimal.Decimal
	CommissionPercent decimal.Decimal
	// Defaulted marks AnnualTaxes as a configured fallback.
	Defaulted bool
}

// FeesFromConfig builds Fees from the netsheet config section.
func FeesFromConfig(cfg config.NetSheetConfig) Fees {
	return Fees{
		HomeWarrantyDefault: decimal.NewFromFloat(cfg.HomeWarrantyDefault),
		SurveyEstimate:      decimal.NewFromFloat(cfg.SurveyEstimate),
		SettlementFee:       decimal.NewFromFloat(cfg.SettlementFee),
		DocumentPrepFee:     decimal.NewFromFloat(cfg.DocumentPrepFee),
	}
}

var dateLayouts = []string{
	"01/02/2006",
	"1/2/2006",
	"01/02/06",
	"1/2/06",
	"2006-01-02",
	"01-02-2006",
	"1-2-2006",
	"01-02-06",
	"1-2-06",
	"01.02.2006",
	"1.2.2006",
	"January 2, 2006",
	"January 2 2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"2 January 2006",
	"2 January, 2006",
	"2 Jan 2006",
	"2 Jan, 2006",
}

// ParseDate parses the date formats seen in contracts. Ordinal suffixes
// ("October 15th, 2025"), "Sept." abbreviations and the legal "15th day of
// October, 2025" form are accepted.
func ParseDate(s string) (time.Time, bool) {
	s = normalizeDate(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func normalizeDate(s string) string {
	s = ordinalRe.ReplaceAllString(s, "$1")
	s = dayOfRe.ReplaceAllString(s, "$1 ")
	s = septRe.ReplaceAllString(s, "Sep")
	s = monthDotRe.ReplaceAllString(s, "$1")
	s = commaRe.ReplaceAllString(s, ", ")
	return strings.Join(strings.Fields(s), " ")
}

// InputFromFields assembles calculator input from an extracted field map.
func InputFromFields(fields model.FieldMap, listing ListingData, fees Fees) Input {
	in := Input{
		PurchasePrice:      Decimal(fields["purchase_price"]),
		CashAmount:         Decimal(fields["cash_amount"]),
		SellerConcessions:  fields["seller_concessions"],
		BuyerAgencyFee:     textOf(fields["buyer_agency_fee"]),
		AdditionalTerms:    fields.String("additional_terms"),
		TitleOption:        fields.String("title_insurance_option"),
		SurveyOption:       fields.String("survey_option"),
		HomeWarrantyOption: fields.String("home_warranty_option"),
		AnnualTaxes:        listing.AnnualTaxes,
		CommissionPercent:  listing.CommissionPercent,
		TaxesDefaulted:     listing.Defaulted,
		Fees:               fees,
	}

	if t, ok := ParseDate(fields.String("closing_date")); ok {
		in.ClosingDate = &t
	}
	if fields.Has("home_warranty_cost") {
		d := Decimal(fields["home_warranty_cost"])
		in.HomeWarrantyCost = &d
	}
	if fields.Has("home_warranty") {
		b := truthy(fields["home_warranty"])
		in.LegacyHomeWarranty = &b
	}
	if fields.Has("home_warranty_amount") {
		d := Decimal(fields["home_warranty_amount"])
		in.LegacyHomeWarrantyAmount = &d
	}
	return in
}

// textOf renders a numeric fee as a plain figure so feeFromText treats it
// as dollars.
func textOf(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		d := Decimal(t)
		if d.IsZero() {
			return ""
		}
		return d.String()
	}
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "yes", "y", "true", "x", "checked":
			return true
		}
	}
	return false
}
