package extract

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/netsheet-cli/internal/model"
)

// CleanJSON strips markdown fences and surrounding commentary, returning the
// span from the first '{' to the last '}'.
func CleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}

// ParseObject decodes a model response into a FieldMap.
func ParseObject(text string) (model.FieldMap, error) {
	cleaned := CleanJSON(text)
	if cleaned == "" {
		return nil, eris.New("extract: empty response")
	}
	var m model.FieldMap
	if err := json.Unmarshal([]byte(cleaned), &m); err != nil {
		return nil, eris.Wrap(err, "extract: parse response json")
	}
	if m == nil {
		return nil, eris.New("extract: response is not an object")
	}
	return m, nil
}

// coerce normalizes raw model values toward each field's declared shape so
// that "$250,000" validates as a number and "fha" matches its enum. Values
// it cannot coerce are left for validation to drop.
func coerce(m model.FieldMap, defs []FieldDef) model.FieldMap {
	out := make(model.FieldMap, len(m))
	for _, f := range defs {
		v, ok := m[f.Key]
		if !ok {
			continue
		}
		if !model.IsPopulated(v) {
			out[f.Key] = nil
			continue
		}
		out[f.Key] = coerceValue(f, v)
	}
	return out
}

func coerceValue(f FieldDef, v any) any {
	if arr, ok := v.([]any); ok && (f.Type == TypeString || f.Type == TypeDate) {
		// ["Jane Smith", "John Smith"] or ["A", "B"] for a single text field.
		parts := make([]string, 0, len(arr))
		for _, e := range arr {
			if es, ok := e.(string); ok && model.IsPopulated(es) {
				parts = append(parts, strings.TrimSpace(es))
			}
		}
		v = strings.Join(parts, ", ")
	}

	s, isString := v.(string)
	if isString {
		s = strings.TrimSpace(s)
	}

	switch f.Type {
	case TypeNumber:
		if isString {
			if n, ok := ParseMoney(s); ok {
				return n
			}
		}
		return v
	case TypeBoolean:
		if isString {
			switch strings.ToLower(s) {
			case "yes", "true", "checked", "x":
				return true
			case "no", "false", "unchecked":
				return false
			}
		}
		return v
	case TypeAmount:
		if isString {
			if n, ok := ParseMoney(s); ok {
				return n
			}
			return s
		}
		return v
	}

	if !isString {
		return v
	}
	if len(f.Enum) > 0 {
		if f.IsLetterOption() {
			return strings.ToUpper(s)
		}
		return strings.ToLower(s)
	}
	return s
}

// ParseMoney parses a plain dollar figure such as "250000", "$250,000.00" or
// "250,000". Strings with any other text are rejected.
func ParseMoney(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	for _, r := range s {
		if (r < '0' || r > '9') && r != '.' {
			return 0, false
		}
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
