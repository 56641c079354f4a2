package netsheet

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	dollarRe    = regexp.MustCompile(`\$\s*(\d[\d,]*(?:\.\d{1,2})?)`)
	percentRe   = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%`)
	plainNumRe  = regexp.MustCompile(`^\d+(?:\.\d+)?$`)
	sentenceRe  = regexp.MustCompile(`[.;]\s+|\n+`)
	concessKwRe = regexp.MustCompile(`(?i)buyer|closing\s+cost|concession`)
	ordinalRe   = regexp.MustCompile(`(\d)(st|nd|rd|th)\b`)
	dayOfRe     = regexp.MustCompile(`(?i)\b(\d{1,2})\s+day\s+of\s+`)
	septRe      = regexp.MustCompile(`(?i)\bsept\b`)
	monthDotRe  = regexp.MustCompile(`(?i)\b(jan|feb|mar|apr|jun|jul|aug|sep|oct|nov|dec)\.`)
	commaRe     = regexp.MustCompile(`\s*,\s*`)
	agencyKwRe  = regexp.MustCompile(`(?i)buyer['’]?s?\s+(agency|agent|broker)|selling\s+(agent|broker)\s+(fee|commission|compensation)`)
)

// Decimal converts a JSON-decoded value to a decimal. Strings may carry a
// dollar sign and thousands separators. Anything else is zero.
func Decimal(v any) decimal.Decimal {
	switch t := v.(type) {
	case nil:
		return decimal.Zero
	case float64:
		return decimal.NewFromFloat(t)
	case int:
		return decimal.NewFromInt(int64(t))
	case int64:
		return decimal.NewFromInt(t)
	case json.Number:
		d, err := decimal.NewFromString(string(t))
		if err != nil {
			return decimal.Zero
		}
		return d
	case decimal.Decimal:
		return t
	case string:
		d, ok := parseMoney(t)
		if !ok {
			return decimal.Zero
		}
		return d
	default:
		return decimal.Zero
	}
}

func parseMoney(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	if !plainNumRe.MatchString(s) {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// Concessions resolves the seller concession amount. Numbers are used as
// is; a bare figure is parsed; otherwise the text is mined for a dollar
// amount. With several amounts, one in a clause mentioning the buyer,
// closing costs or concessions is preferred.
func Concessions(v any) decimal.Decimal {
	s, ok := v.(string)
	if !ok {
		return nonNegative(Decimal(v))
	}
	if d, ok := parseMoney(s); ok {
		return d
	}

	amounts := dollarRe.FindAllStringSubmatch(s, -1)
	if len(amounts) == 0 {
		return decimal.Zero
	}
	if len(amounts) > 1 {
		for _, clause := range sentenceRe.Split(s, -1) {
			if !concessKwRe.MatchString(clause) {
				continue
			}
			if m := dollarRe.FindStringSubmatch(clause); m != nil {
				d, _ := parseMoney(m[1])
				return d
			}
		}
	}
	d, _ := parseMoney(amounts[0][1])
	return d
}

// BuyerAgencyFee resolves the seller-paid buyer agency fee. An explicit fee
// is preferred; without one, the additional terms are searched for buyer
// agency wording alongside a percent or dollar figure.
func BuyerAgencyFee(explicit, terms string, price decimal.Decimal) decimal.Decimal {
	if fee, ok := feeFromText(explicit, price); ok {
		return fee
	}
	for _, sentence := range sentenceRe.Split(terms, -1) {
		if !agencyKwRe.MatchString(sentence) {
			continue
		}
		if fee, ok := feeFromText(sentence, price); ok {
			return fee
		}
	}
	return decimal.Zero
}

// feeFromText reads "3%" as a share of price and "$7,500" or "7500" as a
// flat amount, both rounded to whole dollars.
func feeFromText(s string, price decimal.Decimal) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}
	if m := percentRe.FindStringSubmatch(s); m != nil {
		pct, err := decimal.NewFromString(m[1])
		if err != nil {
			return decimal.Zero, false
		}
		return price.Mul(pct).Div(hundred).Round(0), true
	}
	if d, ok := parseMoney(s); ok {
		return d.Round(0), true
	}
	if m := dollarRe.FindStringSubmatch(s); m != nil {
		d, ok := parseMoney(m[1])
		return d.Round(0), ok
	}
	return decimal.Zero, false
}

func normalizeOption(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
