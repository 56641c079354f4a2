package listing

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var suffixes = map[string]string{
	"street": "st", "avenue": "ave", "av": "ave", "road": "rd", "drive": "dr",
	"lane": "ln", "court": "ct", "boulevard": "blvd", "circle": "cir",
	"place": "pl", "terrace": "ter", "parkway": "pkwy", "highway": "hwy",
	"trail": "trl", "cove": "cv", "square": "sq",
	"north": "n", "south": "s", "east": "e", "west": "w",
	"northeast": "ne", "northwest": "nw", "southeast": "se", "southwest": "sw",
	"apartment": "apt", "suite": "ste",
}

// NormalizeAddress folds case and diacritics, drops punctuation and
// abbreviates street suffixes and directions so that "123 North Main
// Street, Little Rock" and "123 N. Main St., little rock" compare equal.
// Commas are kept as segment separators.
func NormalizeAddress(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = cases.Fold().String(folded)

	folded = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			return r
		case r == ',':
			return r
		default:
			return ' '
		}
	}, folded)

	parts := strings.Split(folded, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		words := strings.Fields(p)
		for i, w := range words {
			if abbr, ok := suffixes[w]; ok {
				words[i] = abbr
			}
		}
		if len(words) > 0 {
			out = append(out, strings.Join(words, " "))
		}
	}
	return strings.Join(out, ", ")
}

// streetPart returns the normalized text before the first comma.
func streetPart(normalized string) string {
	street, _, _ := strings.Cut(normalized, ",")
	return strings.TrimSpace(street)
}
