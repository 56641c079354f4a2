package netsheet

import "github.com/shopspring/decimal"

type titleBand struct {
	upTo   int64
	owner  string
	lender string
}

// titleRates is the promulgated premium schedule. The lender column is the
// owner column plus 18%.
var titleRates = []titleBand{
	{50_000, "225", "265.50"},
	{100_000, "300", "354"},
	{150_000, "365", "430.70"},
	{200_000, "435", "513.30"},
	{250_000, "500", "590"},
	{300_000, "560", "660.80"},
	{350_000, "620", "731.60"},
	{400_000, "680", "802.40"},
	{450_000, "735", "867.30"},
	{500_000, "790", "932.20"},
	{600_000, "890", "1050.20"},
	{700_000, "985", "1162.30"},
	{800_000, "1075", "1268.50"},
	{900_000, "1160", "1368.80"},
	{999_999, "1245", "1469.10"},
}

var (
	// titleExcessRate is charged per dollar above the top band.
	titleExcessRate = decimal.RequireFromString("0.00085")
	lenderPremium   = decimal.RequireFromString("1.18")
)

// TitlePremium returns the title insurance premium for price under policy.
func TitlePremium(price decimal.Decimal, policy string) decimal.Decimal {
	if !price.IsPositive() {
		return decimal.Zero
	}
	for _, b := range titleRates {
		if price.LessThanOrEqual(decimal.NewFromInt(b.upTo)) {
			if policy == PolicyLender {
				return decimal.RequireFromString(b.lender)
			}
			return decimal.RequireFromString(b.owner)
		}
	}

	top := titleRates[len(titleRates)-1]
	excess := price.Sub(decimal.NewFromInt(top.upTo))
	owner := decimal.RequireFromString(top.owner).Add(excess.Mul(titleExcessRate)).Round(2)
	if policy == PolicyLender {
		return owner.Mul(lenderPremium).Round(2)
	}
	return owner
}
