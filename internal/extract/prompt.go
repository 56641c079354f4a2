package extract

import (
	"fmt"
	"strings"
)

// SystemPrompt is shared by every page call so it can be prompt-cached.
const SystemPrompt = `You read single pages of a residential real estate purchase contract.
Extract only the fields you are asked for and respond with one JSON object and nothing else.
Use null for any field that is blank, illegible or not printed on this page.
For checkbox paragraphs return only the letter of the box that is checked.
Copy dollar amounts as numbers without symbols unless the field asks for the exact wording.`

// BuildPagePrompt describes exactly which fields to pull from one page.
func BuildPagePrompt(page int, fields []FieldDef) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "This is page %d of the contract. Extract these fields:\n", page)
	for _, f := range fields {
		fmt.Fprintf(&sb, "- %s (%s", f.Key, promptType(f.Type))
		if len(f.Enum) > 0 {
			fmt.Fprintf(&sb, ", one of: %s", strings.Join(f.Enum, ", "))
		}
		fmt.Fprintf(&sb, "): %s\n", f.Description)
	}
	keys := make([]string, len(fields))
	for i, f := range fields {
		keys[i] = `"` + f.Key + `"`
	}
	fmt.Fprintf(&sb, "\nReturn a JSON object with exactly these keys: %s.", strings.Join(keys, ", "))
	return sb.String()
}

func promptType(t FieldType) string {
	switch t {
	case TypeAmount:
		return "number or exact text"
	case TypeDate:
		return "date as written"
	default:
		return string(t)
	}
}
