package extract

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/sells-group/netsheet-cli/internal/model"
)

// Correction is a post-extraction rule. Apply must not mutate in; it returns
// the corrected map and a record when it changed something.
type Correction interface {
	Name() string
	Apply(in model.FieldMap) (model.FieldMap, *model.AppliedCorrection)
}

// ApplyCorrections runs rules in order, each seeing the previous output.
func ApplyCorrections(in model.FieldMap, rules []Correction) (model.FieldMap, []model.AppliedCorrection) {
	out := in
	var applied []model.AppliedCorrection
	for _, r := range rules {
		next, rec := r.Apply(out)
		if rec == nil {
			continue
		}
		out = next
		applied = append(applied, *rec)
	}
	if len(applied) == 0 {
		return in.Clone(), nil
	}
	return out, applied
}

// FirstOptionRule resolves an ambiguous checkbox answer ("A and B",
// "Option B / C") to the first option letter that appears in the text.
// The vision model sometimes reports every printed option when it cannot
// tell which box is checked, so the result is always marked fuzzy.
//
// Letters count only in option positions: "(C)", "Option C", a leading
// "C -" or "C.", or a list of letters such as "B and C". A letter used as a
// word ("declines a home warranty") is never taken as an option.
type FirstOptionRule struct {
	Field   string
	Options []string

	re *regexp.Regexp
}

// NewFirstOptionRule compiles a rule for field with the given letters.
func NewFirstOptionRule(field string, options ...string) *FirstOptionRule {
	quoted := make([]string, len(options))
	for i, o := range options {
		quoted[i] = regexp.QuoteMeta(strings.ToUpper(o))
	}
	letter := `(?:` + strings.Join(quoted, "|") + `)`
	sep := `\s*(?:,|/|&|\b(?i:and|or)\b)\s*`
	alts := []string{
		`\(\s*((?i:` + letter + `))\s*\)`,
		`\b(?i:option|box|choice)\s*((?i:` + letter + `))\b`,
		`^\s*(` + letter + `)\s*[-.:)]`,
		`\b(` + letter + `)\b` + sep + letter + `\b`,
	}
	return &FirstOptionRule{
		Field:   field,
		Options: options,
		re:      regexp.MustCompile(strings.Join(alts, "|")),
	}
}

func (r *FirstOptionRule) Name() string { return "first-option:" + r.Field }

func (r *FirstOptionRule) Apply(in model.FieldMap) (model.FieldMap, *model.AppliedCorrection) {
	raw, ok := in[r.Field].(string)
	if !ok || !model.IsPopulated(raw) {
		return in, nil
	}
	trimmed := strings.ToUpper(strings.TrimSpace(raw))
	if slices.Contains(r.Options, trimmed) {
		return in, nil
	}
	m := r.re.FindStringSubmatch(raw)
	if m == nil {
		return in, nil
	}
	var chosen string
	for _, g := range m[1:] {
		if g != "" {
			chosen = strings.ToUpper(g)
			break
		}
	}
	out := in.Clone()
	out[r.Field] = chosen
	return out, &model.AppliedCorrection{Rule: r.Name(), Field: r.Field, From: raw, To: chosen, Fuzzy: true}
}

// KeywordMatch maps a case-insensitive pattern to the value it implies.
type KeywordMatch struct {
	Pattern string
	Value   any
}

// KeywordRule sets Field when Source text contains one of the patterns. The
// first matching pattern wins. With OnlyIfMissing the rule never overrides a
// populated value; otherwise it replaces values that are not already one of
// the rule's outcomes.
type KeywordRule struct {
	Label         string
	Field         string
	Source        string
	Matches       []KeywordMatch
	OnlyIfMissing bool
	Fuzzy         bool

	compiled []*regexp.Regexp
}

// NewKeywordRule compiles the patterns. Patterns are regular expressions
// matched case-insensitively.
func NewKeywordRule(label, field, source string, onlyIfMissing, fuzzy bool, matches ...KeywordMatch) *KeywordRule {
	r := &KeywordRule{
		Label: label, Field: field, Source: source,
		Matches: matches, OnlyIfMissing: onlyIfMissing, Fuzzy: fuzzy,
	}
	if r.Source == "" {
		r.Source = field
	}
	for _, m := range matches {
		r.compiled = append(r.compiled, regexp.MustCompile(`(?i)`+m.Pattern))
	}
	return r
}

func (r *KeywordRule) Name() string { return "keyword:" + r.Label }

func (r *KeywordRule) Apply(in model.FieldMap) (model.FieldMap, *model.AppliedCorrection) {
	cur, hasCur := in[r.Field]
	populated := hasCur && model.IsPopulated(cur)
	if r.OnlyIfMissing && populated {
		return in, nil
	}
	if populated && r.isOutcome(cur) {
		return in, nil
	}

	text, ok := in[r.Source].(string)
	if !ok || !model.IsPopulated(text) {
		return in, nil
	}
	for i, re := range r.compiled {
		if !re.MatchString(text) {
			continue
		}
		val := r.Matches[i].Value
		out := in.Clone()
		out[r.Field] = val
		return out, &model.AppliedCorrection{Rule: r.Name(), Field: r.Field, From: cur, To: val, Fuzzy: r.Fuzzy}
	}
	return in, nil
}

func (r *KeywordRule) isOutcome(v any) bool {
	for _, m := range r.Matches {
		if fmt.Sprint(m.Value) == fmt.Sprint(v) {
			return true
		}
	}
	return false
}

// DefaultCorrections returns the rules applied to residential contracts.
func DefaultCorrections(s *Schema) []Correction {
	var rules []Correction

	rules = append(rules,
		NewKeywordRule("loan-type", "loan_type", "", false, false,
			KeywordMatch{Pattern: `\bconventional\b`, Value: "conventional"},
			KeywordMatch{Pattern: `\bfha\b|federal housing`, Value: "fha"},
			KeywordMatch{Pattern: `\bva\b|veterans`, Value: "va"},
			KeywordMatch{Pattern: `\busda\b|rural development`, Value: "usda"},
		),
		NewKeywordRule("purchase-method-from-loan", "purchase_method", "loan_type", true, false,
			KeywordMatch{Pattern: `^(conventional|fha|va|usda)$`, Value: "financed"},
		),
		NewKeywordRule("survey-from-terms", "survey_option", "additional_terms", true, true,
			KeywordMatch{Pattern: `(split|equally|50/50)[^.]*survey|survey[^.]*(split|equally|50/50)`, Value: "C"},
			KeywordMatch{Pattern: `seller\s+(shall|to|will)\s+pay[^.]*survey`, Value: "B"},
			KeywordMatch{Pattern: `buyer\s+(shall|to|will)\s+pay[^.]*survey`, Value: "A"},
		),
	)

	for _, f := range s.Fields() {
		if f.IsLetterOption() {
			rules = append(rules, NewFirstOptionRule(f.Key, f.Enum...))
		}
	}
	return rules
}
