package netsheet

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func dp(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

func date(y int, m time.Month, day int) *time.Time {
	t := time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
	return &t
}

func assertDec(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, d(want).Equal(got), append([]any{"want %s, got %s", want, got.String()}, msgAndArgs...)...)
}

func TestCalculate_OwnerPolicyNoExtras(t *testing.T) {
	t.Parallel()

	out := Calculate(Input{
		PurchasePrice:     d("250000"),
		AnnualTaxes:       d("2000"),
		ClosingDate:       date(2025, time.October, 15),
		CommissionPercent: d("0.03"),
		TitleOption:       "A",
	})

	assert.Equal(t, 288, out.DaysElapsed)
	assertDec(t, "1578.08", out.TaxesProrated)
	assertDec(t, "7500", out.CommissionSeller)
	assertDec(t, "500", out.TitleInsurance)
	assert.Equal(t, PolicyOwner, out.TitlePolicy)
	assertDec(t, "412.50", out.TaxStamps)
	assert.True(t, out.HomeWarranty.IsZero())
	assert.True(t, out.Survey.IsZero())
	assert.True(t, out.BuyerAgencyFees.IsZero())
	assertDec(t, "9990.58", out.TotalCosts)
	assertDec(t, "240009.42", out.NetToSeller)
	assert.False(t, out.TaxProrationMissing)
	assert.False(t, out.SurveyEstimated)
}

func TestCalculate_TotalsMatchLines(t *testing.T) {
	t.Parallel()

	fees := Fees{
		HomeWarrantyDefault: d("550"),
		SurveyEstimate:      d("450"),
		SettlementFee:       d("350"),
		DocumentPrepFee:     d("150"),
	}
	inputs := []Input{
		{},
		{CashAmount: d("180000"), SurveyOption: "C", Fees: fees},
		{
			PurchasePrice:      d("349999.99"),
			AnnualTaxes:        d("3124.17"),
			ClosingDate:        date(2024, time.December, 31),
			TitleOption:        "B",
			SurveyOption:       "B",
			HomeWarrantyOption: "A",
			SellerConcessions:  "Seller to pay up to $4,250.50 of buyer's closing costs",
			BuyerAgencyFee:     "2.5%",
			Fees:               fees,
		},
		{PurchasePrice: d("1450000"), HomeWarrantyCost: dp("725"), HomeWarrantyOption: "a", Fees: fees},
	}

	for i, in := range inputs {
		out := Calculate(in)
		sum := decimal.Zero
		lines := out.Lines()
		assert.LessOrEqual(t, len(lines), 11)
		for _, l := range lines {
			sum = sum.Add(l.Amount)
		}
		assertDec(t, sum.String(), out.TotalCosts, "input %d total", i)
		assertDec(t, out.SalesPrice.Sub(sum).Round(2).String(), out.NetToSeller, "input %d net", i)
	}
}

func TestCalculate_Deterministic(t *testing.T) {
	t.Parallel()

	in := Input{
		PurchasePrice:     d("412000"),
		AnnualTaxes:       d("4100"),
		ClosingDate:       date(2025, time.March, 3),
		SellerConcessions: 3000.0,
		AdditionalTerms:   "Seller to pay buyer's agent 2% of the purchase price.",
		SurveyOption:      "C",
		Fees:              Fees{SurveyEstimate: d("450")},
	}
	assert.Equal(t, Calculate(in), Calculate(in))
}

func TestCalculate_SalesPrice(t *testing.T) {
	t.Parallel()

	assertDec(t, "200000", Calculate(Input{PurchasePrice: d("200000"), CashAmount: d("190000")}).SalesPrice)
	assertDec(t, "190000", Calculate(Input{CashAmount: d("190000")}).SalesPrice)

	out := Calculate(Input{BuyerAgencyFee: "3%", Fees: Fees{SettlementFee: d("350")}})
	assert.True(t, out.SalesPrice.IsZero())
	assert.True(t, out.CommissionSeller.IsZero())
	assert.True(t, out.TitleInsurance.IsZero())
	assert.True(t, out.BuyerAgencyFees.IsZero())
	assertDec(t, "350", out.TotalCosts)
	assertDec(t, "-350", out.NetToSeller)
}

func TestCalculate_TaxFlags(t *testing.T) {
	t.Parallel()

	out := Calculate(Input{PurchasePrice: d("100000"), AnnualTaxes: d("1500"), TaxesDefaulted: true})
	assert.True(t, out.TaxProrationMissing)
	assert.True(t, out.TaxesDefaulted)
	assert.Zero(t, out.DaysElapsed)
	assert.True(t, out.TaxesProrated.IsZero())
	assert.Len(t, out.Notes, 2)

	out = Calculate(Input{PurchasePrice: d("100000"), ClosingDate: date(2025, time.January, 1), AnnualTaxes: d("365")})
	assert.Equal(t, 1, out.DaysElapsed)
	assertDec(t, "1", out.TaxesProrated)
}

func TestCalculate_DefaultCommission(t *testing.T) {
	t.Parallel()

	out := Calculate(Input{PurchasePrice: d("333333")})
	assertDec(t, "0.03", out.CommissionPercent)
	assertDec(t, "10000", out.CommissionSeller)
}

func TestCalculate_HomeWarranty(t *testing.T) {
	t.Parallel()

	yes, no := true, false
	fees := Fees{HomeWarrantyDefault: d("550")}
	tests := []struct {
		name string
		in   Input
		want string
	}{
		{"seller pays explicit cost", Input{HomeWarrantyOption: "A", HomeWarrantyCost: dp("600")}, "600"},
		{"seller pays default", Input{HomeWarrantyOption: "A"}, "550"},
		{"buyer pays", Input{HomeWarrantyOption: "B", HomeWarrantyCost: dp("600")}, "0"},
		{"no warranty", Input{HomeWarrantyOption: "C"}, "0"},
		{"cost without option", Input{HomeWarrantyCost: dp("600"), LegacyHomeWarranty: &yes}, "0"},
		{"legacy yes with amount", Input{LegacyHomeWarranty: &yes, LegacyHomeWarrantyAmount: dp("400")}, "400"},
		{"legacy yes default", Input{LegacyHomeWarranty: &yes}, "550"},
		{"legacy no", Input{LegacyHomeWarranty: &no, LegacyHomeWarrantyAmount: dp("400")}, "0"},
		{"modern wins over legacy", Input{HomeWarrantyOption: "C", LegacyHomeWarranty: &yes}, "0"},
		{"nothing", Input{}, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tt.in.Fees = fees
			assertDec(t, tt.want, Calculate(tt.in).HomeWarranty)
		})
	}
}

func TestCalculate_Survey(t *testing.T) {
	t.Parallel()

	fees := Fees{SurveyEstimate: d("450")}
	tests := []struct {
		option    string
		want      string
		estimated bool
	}{
		{"A", "0", false},
		{"B", "450", true},
		{"C", "225", true},
		{" c ", "225", true},
		{"", "0", false},
	}
	for _, tt := range tests {
		out := Calculate(Input{SurveyOption: tt.option, Fees: fees})
		assertDec(t, tt.want, out.Survey, "option %q", tt.option)
		assert.Equal(t, tt.estimated, out.SurveyEstimated)

		var note string
		for _, l := range out.Lines() {
			if l.Key == "survey" {
				note = l.Note
			}
		}
		if tt.estimated {
			assert.Equal(t, "estimate, not exact", note)
		} else {
			assert.Empty(t, note)
		}
	}
}

func TestTitlePremium(t *testing.T) {
	t.Parallel()

	tests := []struct {
		price  string
		policy string
		want   string
	}{
		{"0", PolicyOwner, "0"},
		{"45000", PolicyOwner, "225"},
		{"50000", PolicyLender, "265.50"},
		{"50001", PolicyOwner, "300"},
		{"250000", PolicyOwner, "500"},
		{"250000", PolicyLender, "590"},
		{"999999", PolicyOwner, "1245"},
		{"1200000", PolicyOwner, "1415"},
		{"1200000", PolicyLender, "1669.70"},
	}
	for _, tt := range tests {
		assertDec(t, tt.want, TitlePremium(d(tt.price), tt.policy), "%s %s", tt.price, tt.policy)
	}

	for _, b := range titleRates {
		owner := d(b.owner)
		assertDec(t, owner.Mul(lenderPremium).Round(2).String(), d(b.lender), "band %d", b.upTo)
	}
}

func TestTitlePolicyFromOption(t *testing.T) {
	t.Parallel()

	assert.Equal(t, PolicyOwner, titlePolicy("A"))
	assert.Equal(t, PolicyLender, titlePolicy("b"))
	assert.Equal(t, PolicyOwner, titlePolicy(""))
	assert.Equal(t, PolicyOwner, titlePolicy("Z"))
}

func TestLinesOrder(t *testing.T) {
	t.Parallel()

	out := Calculate(Input{PurchasePrice: d("100000")})
	lines := out.Lines()
	require.Len(t, lines, 10)
	assert.Equal(t, "taxes_prorated", lines[0].Key)
	assert.Equal(t, "Title Insurance (owner)", lines[3].Label)
	assert.Equal(t, "document_prep_fee", lines[9].Key)
}
