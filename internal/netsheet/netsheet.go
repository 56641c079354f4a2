// Package netsheet computes a seller's itemized closing costs and net
// proceeds from extracted contract fields.
package netsheet

import (
	"time"

	"github.com/shopspring/decimal"
)

// Title policy choices.
const (
	PolicyOwner  = "owner"
	PolicyLender = "lender"
)

var (
	defaultCommission = decimal.RequireFromString("0.03")
	taxStampRate      = decimal.RequireFromString("0.0033")
	two               = decimal.NewFromInt(2)
	daysPerYear       = decimal.NewFromInt(365)
	hundred           = decimal.NewFromInt(100)
)

// Input is everything Calculate needs. Contract values come from the
// extracted field map; AnnualTaxes and CommissionPercent come from listing
// data.
type Input struct {
	PurchasePrice decimal.Decimal
	CashAmount    decimal.Decimal

	// SellerConcessions is a number or the contract's free text.
	SellerConcessions any
	// BuyerAgencyFee is the explicit fee as written ("3%", "$7,500").
	BuyerAgencyFee  string
	AdditionalTerms string

	ClosingDate *time.Time

	TitleOption  string
	SurveyOption string

	HomeWarrantyOption string
	HomeWarrantyCost   *decimal.Decimal
	// Older payloads carry a yes/no plus amount instead of the option letter.
	LegacyHomeWarranty       *bool
	LegacyHomeWarrantyAmount *decimal.Decimal

	AnnualTaxes decimal.Decimal
	// CommissionPercent is a fraction (0.03 for 3%). Zero means the default.
	CommissionPercent decimal.Decimal
	// TaxesDefaulted marks AnnualTaxes as a fallback rather than listing data.
	TaxesDefaulted bool

	Fees Fees
}

// Fees are the flat amounts that never appear in the contract.
type Fees struct {
	HomeWarrantyDefault decimal.Decimal
	SurveyEstimate      decimal.Decimal
	SettlementFee       decimal.Decimal
	DocumentPrepFee     decimal.Decimal
}

// Output is the itemized net sheet. It is never mutated after Calculate
// returns it.
type Output struct {
	SalesPrice decimal.Decimal `json:"sales_price"`

	TaxesProrated     decimal.Decimal `json:"taxes_prorated"`
	DaysElapsed       int             `json:"days_elapsed"`
	CommissionSeller  decimal.Decimal `json:"commission_seller"`
	CommissionPercent decimal.Decimal `json:"commission_percent"`
	BuyerAgencyFees   decimal.Decimal `json:"buyer_agency_fees"`
	TitleInsurance    decimal.Decimal `json:"title_insurance"`
	TitlePolicy       string          `json:"title_policy"`
	TaxStamps         decimal.Decimal `json:"tax_stamps"`
	HomeWarranty      decimal.Decimal `json:"home_warranty"`
	Survey            decimal.Decimal `json:"survey"`
	SellerConcessions decimal.Decimal `json:"seller_concessions"`
	SettlementFee     decimal.Decimal `json:"settlement_fee"`
	DocumentPrepFee   decimal.Decimal `json:"document_prep_fee"`

	TotalCosts  decimal.Decimal `json:"total_costs"`
	NetToSeller decimal.Decimal `json:"net_to_seller"`

	// TaxesDefaulted means annual taxes were not found in listing data.
	TaxesDefaulted bool `json:"taxes_defaulted"`
	// TaxProrationMissing means proration was skipped for lack of a closing
	// date or annual tax figure.
	TaxProrationMissing bool     `json:"tax_proration_missing"`
	SurveyEstimated     bool     `json:"survey_estimated"`
	Notes               []string `json:"notes,omitempty"`
}

// LineItem is one cost row.
type LineItem struct {
	Key    string          `json:"key"`
	Label  string          `json:"label"`
	Amount decimal.Decimal `json:"amount"`
	Note   string          `json:"note,omitempty"`
}

// Lines returns the cost rows in display order. TotalCosts is their sum.
func (o Output) Lines() []LineItem {
	survey := ""
	if o.SurveyEstimated {
		survey = "estimate, not exact"
	}
	return []LineItem{
		{Key: "taxes_prorated", Label: "Prorated Property Taxes", Amount: o.TaxesProrated},
		{Key: "commission_seller", Label: "Listing Commission", Amount: o.CommissionSeller},
		{Key: "buyer_agency_fees", Label: "Buyer Agency Fees", Amount: o.BuyerAgencyFees},
		{Key: "title_insurance", Label: "Title Insurance (" + o.TitlePolicy + ")", Amount: o.TitleInsurance},
		{Key: "tax_stamps", Label: "Tax Stamps", Amount: o.TaxStamps},
		{Key: "home_warranty", Label: "Home Warranty", Amount: o.HomeWarranty},
		{Key: "survey", Label: "Survey", Amount: o.Survey, Note: survey},
		{Key: "seller_concessions", Label: "Seller Concessions", Amount: o.SellerConcessions},
		{Key: "settlement_fee", Label: "Settlement Fee", Amount: o.SettlementFee},
		{Key: "document_prep_fee", Label: "Document Preparation", Amount: o.DocumentPrepFee},
	}
}

// Calculate computes the net sheet. It never fails: missing numbers count
// as zero and missing options apply no special handling.
func Calculate(in Input) Output {
	out := Output{
		SalesPrice:     salesPrice(in),
		TaxesDefaulted: in.TaxesDefaulted,
	}
	price := out.SalesPrice

	out.TaxesProrated, out.DaysElapsed = prorateTaxes(in.AnnualTaxes, in.ClosingDate)
	if out.DaysElapsed == 0 {
		out.TaxProrationMissing = true
		out.Notes = append(out.Notes, "tax proration skipped: closing date or annual taxes missing")
	}
	if in.TaxesDefaulted {
		out.Notes = append(out.Notes, "annual taxes defaulted: verify with county records")
	}

	out.CommissionPercent = in.CommissionPercent
	if !out.CommissionPercent.IsPositive() {
		out.CommissionPercent = defaultCommission
	}
	out.CommissionSeller = price.Mul(out.CommissionPercent).Round(0)

	out.BuyerAgencyFees = BuyerAgencyFee(in.BuyerAgencyFee, in.AdditionalTerms, price)

	out.TitlePolicy = titlePolicy(in.TitleOption)
	out.TitleInsurance = TitlePremium(price, out.TitlePolicy)

	out.TaxStamps = price.Mul(taxStampRate).Div(two).Round(2)

	out.HomeWarranty = homeWarranty(in)

	out.Survey = surveyCost(in.SurveyOption, in.Fees.SurveyEstimate)
	if out.Survey.IsPositive() {
		out.SurveyEstimated = true
	}

	out.SellerConcessions = Concessions(in.SellerConcessions)
	out.SettlementFee = nonNegative(in.Fees.SettlementFee)
	out.DocumentPrepFee = nonNegative(in.Fees.DocumentPrepFee)

	total := decimal.Zero
	for _, l := range out.Lines() {
		total = total.Add(l.Amount)
	}
	out.TotalCosts = total
	out.NetToSeller = price.Sub(total).Round(2)
	return out
}

func salesPrice(in Input) decimal.Decimal {
	if in.PurchasePrice.IsPositive() {
		return in.PurchasePrice
	}
	if in.CashAmount.IsPositive() {
		return in.CashAmount
	}
	return decimal.Zero
}

// prorateTaxes allocates annual taxes through the closing date, counting
// January 1 as day 1.
func prorateTaxes(annual decimal.Decimal, closing *time.Time) (decimal.Decimal, int) {
	if closing == nil || !annual.IsPositive() {
		return decimal.Zero, 0
	}
	days := closing.YearDay()
	daily := annual.Div(daysPerYear)
	return daily.Mul(decimal.NewFromInt(int64(days))).Round(2), days
}

// titlePolicy maps the contract's title option to a policy. Option B is the
// lender policy; anything else is the owner policy.
func titlePolicy(option string) string {
	if normalizeOption(option) == "B" {
		return PolicyLender
	}
	return PolicyOwner
}

// homeWarranty charges the seller when option A (seller pays) is checked.
// The legacy yes/no shape is consulted only when both modern fields are
// absent.
func homeWarranty(in Input) decimal.Decimal {
	option := normalizeOption(in.HomeWarrantyOption)
	if option != "" || in.HomeWarrantyCost != nil {
		if option != "A" {
			return decimal.Zero
		}
		return amountOrDefault(in.HomeWarrantyCost, in.Fees.HomeWarrantyDefault)
	}
	if in.LegacyHomeWarranty != nil && *in.LegacyHomeWarranty {
		return amountOrDefault(in.LegacyHomeWarrantyAmount, in.Fees.HomeWarrantyDefault)
	}
	return decimal.Zero
}

func amountOrDefault(v *decimal.Decimal, def decimal.Decimal) decimal.Decimal {
	if v != nil && v.IsPositive() {
		return *v
	}
	return nonNegative(def)
}

// surveyCost: A buyer pays, B seller pays, C split equally.
func surveyCost(option string, estimate decimal.Decimal) decimal.Decimal {
	estimate = nonNegative(estimate)
	switch normalizeOption(option) {
	case "B":
		return estimate
	case "C":
		return estimate.Div(two).Round(2)
	default:
		return decimal.Zero
	}
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
