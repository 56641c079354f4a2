package model

import "strings"

// FieldMap is a flat mapping from extracted contract field name to value.
// Values are whatever encoding/json produces: string, float64, bool,
// []any, map[string]any or nil.
type FieldMap map[string]any

// Clone returns a deep copy of m.
func (m FieldMap) Clone() FieldMap {
	if m == nil {
		return nil
	}
	out := make(FieldMap, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

// String returns the trimmed string value for key, or "" when the key is
// absent or not a string.
func (m FieldMap) String(key string) string {
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}

// Has reports whether key holds a populated value.
func (m FieldMap) Has(key string) bool {
	v, ok := m[key]
	return ok && IsPopulated(v)
}

// CountFields returns the number of populated leaf fields in m. Nested maps
// are walked; a non-empty array counts as a single leaf.
func CountFields(m FieldMap) int {
	n := 0
	for _, v := range m {
		n += countValue(v)
	}
	return n
}

func countValue(v any) int {
	switch t := v.(type) {
	case map[string]any:
		return CountFields(t)
	case FieldMap:
		return CountFields(t)
	default:
		if IsPopulated(v) {
			return 1
		}
		return 0
	}
}

// IsPopulated reports whether v carries usable data. Booleans (including
// false) and numbers (including zero) are populated. Blank strings, "null"
// and "n/a" are not; other words such as "none" are real answers.
func IsPopulated(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		s := strings.ToLower(strings.TrimSpace(t))
		switch s {
		case "", "null", "n/a":
			return false
		}
		return true
	case []any:
		return len(t) > 0
	case []string:
		return len(t) > 0
	case map[string]any:
		return CountFields(t) > 0
	case FieldMap:
		return CountFields(t) > 0
	default:
		return true
	}
}

// Merge combines base and incoming into a new map without mutating either.
//
// Precedence per key: a populated value beats an unpopulated one; between
// two strings the longer wins; between two arrays the non-empty one wins;
// two maps merge recursively. In every other case, including ties, the base
// value is kept.
func Merge(base, incoming FieldMap) FieldMap {
	out := base.Clone()
	if out == nil {
		out = make(FieldMap, len(incoming))
	}
	for k, in := range incoming {
		cur, exists := out[k]
		if !exists {
			out[k] = cloneValue(in)
			continue
		}
		out[k] = mergeValue(cur, in)
	}
	return out
}

func mergeValue(cur, in any) any {
	curOK, inOK := IsPopulated(cur), IsPopulated(in)
	switch {
	case !inOK:
		return cur
	case !curOK:
		return cloneValue(in)
	}

	switch c := cur.(type) {
	case string:
		if s, ok := in.(string); ok && len(strings.TrimSpace(s)) > len(strings.TrimSpace(c)) {
			return s
		}
	case map[string]any:
		if m, ok := in.(map[string]any); ok {
			return map[string]any(Merge(FieldMap(c), FieldMap(m)))
		}
	}
	return cur
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return map[string]any(FieldMap(t).Clone())
	case FieldMap:
		return t.Clone()
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}
