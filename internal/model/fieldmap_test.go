package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCountFields(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   FieldMap
		want int
	}{
		{name: "nil map", in: nil, want: 0},
		{name: "empty map", in: FieldMap{}, want: 0},
		{
			name: "scalars",
			in:   FieldMap{"purchase_price": 250000.0, "buyer_names": "Jane Doe", "has_hoa": false},
			want: 3,
		},
		{
			name: "null and blank skipped",
			in:   FieldMap{"a": nil, "b": "", "c": "  ", "d": "null", "e": "N/A", "f": "x"},
			want: 1,
		},
		{
			name: "zero number counts",
			in:   FieldMap{"seller_concessions": 0.0},
			want: 1,
		},
		{
			name: "arrays count once when non-empty",
			in:   FieldMap{"sellers": []any{"A", "B"}, "buyers": []any{}},
			want: 1,
		},
		{
			name: "nested maps walk leaves",
			in: FieldMap{
				"home_warranty": map[string]any{"option": "B", "cost": 550.0, "company": nil},
			},
			want: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, CountFields(tt.in))
		})
	}
}

func TestIsPopulated(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   any
		want bool
	}{
		{nil, false},
		{"", false},
		{"   ", false},
		{"null", false},
		{"NULL", false},
		{"n/a", false},
		{" N/A ", false},
		{"none", true},
		{"None", true},
		{"NA", true},
		{"unknown", true},
		{"B", true},
		{false, true},
		{0.0, true},
		{[]any{}, false},
		{[]any{"x"}, true},
		{map[string]any{"a": "null"}, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsPopulated(tt.in), "%#v", tt.in)
	}
}

func TestMerge_Precedence(t *testing.T) {
	t.Parallel()

	base := FieldMap{
		"purchase_price":   250000.0,
		"buyer_names":      "J. Doe",
		"seller_names":     nil,
		"closing_date":     "",
		"sellers":          []any{},
		"buyers":           []any{"Jane"},
		"additional_terms": "Seller to pay buyer's closing costs",
		"loan_type":        "FHA",
	}
	incoming := FieldMap{
		"purchase_price":   260000.0,
		"buyer_names":      "Jane Doe and John Doe",
		"seller_names":     "Sam Seller",
		"closing_date":     "2025-10-15",
		"sellers":          []any{"Sam"},
		"buyers":           []any{"Jane", "John"},
		"additional_terms": nil,
		"loan_type":        "VA",
		"survey_option":    "C",
	}

	got := Merge(base, incoming)

	assert.Equal(t, 250000.0, got["purchase_price"], "non-string pair keeps base")
	assert.Equal(t, "Jane Doe and John Doe", got["buyer_names"], "longer string wins")
	assert.Equal(t, "Sam Seller", got["seller_names"], "populated beats nil")
	assert.Equal(t, "2025-10-15", got["closing_date"], "populated beats blank")
	assert.Equal(t, []any{"Sam"}, got["sellers"], "non-empty array beats empty")
	assert.Equal(t, []any{"Jane"}, got["buyers"], "two non-empty arrays keep base")
	assert.Equal(t, "Seller to pay buyer's closing costs", got["additional_terms"], "nil never overwrites")
	assert.Equal(t, "FHA", got["loan_type"], "equal-length strings keep base")
	assert.Equal(t, "C", got["survey_option"], "new keys are added")
}

func TestMerge_DoesNotMutateInputs(t *testing.T) {
	t.Parallel()

	base := FieldMap{"a": "x", "nested": map[string]any{"k": "v"}}
	incoming := FieldMap{"a": "longer", "b": 1.0, "nested": map[string]any{"k2": "v2"}}

	got := Merge(base, incoming)
	got["nested"].(map[string]any)["k3"] = "mutated"

	assert.Equal(t, FieldMap{"a": "x", "nested": map[string]any{"k": "v"}}, base)
	assert.Equal(t, FieldMap{"a": "longer", "b": 1.0, "nested": map[string]any{"k2": "v2"}}, incoming)
	assert.Equal(t, map[string]any{"k": "v", "k2": "v2", "k3": "mutated"}, got["nested"])
}

func TestMerge_NilBase(t *testing.T) {
	t.Parallel()
	got := Merge(nil, FieldMap{"a": "b"})
	assert.Equal(t, FieldMap{"a": "b"}, got)
}

func TestMerge_Deterministic(t *testing.T) {
	t.Parallel()
	base := FieldMap{"a": "abc", "b": nil}
	incoming := FieldMap{"a": "xyz", "b": "set"}
	for range 20 {
		assert.Equal(t, FieldMap{"a": "abc", "b": "set"}, Merge(base, incoming))
	}
}

func TestFieldMapAccessors(t *testing.T) {
	t.Parallel()
	m := FieldMap{"name": "  Jane  ", "price": 1.0, "blank": ""}
	assert.Equal(t, "Jane", m.String("name"))
	assert.Equal(t, "", m.String("price"))
	assert.True(t, m.Has("price"))
	assert.False(t, m.Has("blank"))
	assert.False(t, m.Has("missing"))
}
