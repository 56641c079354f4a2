// Package extract pulls contract fields out of a PDF one page at a time.
package extract

// FieldType is the expected JSON shape of an extracted value.
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeNumber  FieldType = "number"
	TypeBoolean FieldType = "boolean"
	// TypeAmount accepts a number or free text such as "not to exceed $5,000".
	TypeAmount FieldType = "amount"
	// TypeDate is a date string in whatever format the contract uses.
	TypeDate FieldType = "date"
)

// FieldDef describes one contract field.
type FieldDef struct {
	Key         string    `yaml:"key"`
	Type        FieldType `yaml:"type"`
	Enum        []string  `yaml:"enum,omitempty"`
	Description string    `yaml:"description"`
}

// IsLetterOption reports whether the field is a checkbox choice labelled by
// single letters (A, B, C).
func (f FieldDef) IsLetterOption() bool {
	if len(f.Enum) == 0 {
		return false
	}
	for _, e := range f.Enum {
		if len(e) != 1 || e[0] < 'A' || e[0] > 'Z' {
			return false
		}
	}
	return true
}

// TotalFields is the size of the residential contract schema.
const TotalFields = 30

// Field group names.
const (
	GroupPartiesPrice    = "parties_price"
	GroupFinancing       = "financing"
	GroupTitleSurvey     = "title_survey"
	GroupInspections     = "inspections"
	GroupWarrantyClosing = "warranty_closing"
	GroupAdditionalTerms = "additional_terms"
	GroupAgents          = "agents"
	GroupSignatures      = "signatures"

	GroupCriticalParties = "critical_parties"
	GroupCriticalClosing = "critical_closing"
)

func contractFields() []FieldDef {
	return []FieldDef{
		// Page 1
		{Key: "buyer_names", Type: TypeString, Description: "Full names of every buyer, comma separated"},
		{Key: "seller_names", Type: TypeString, Description: "Full names of every seller, comma separated"},
		{Key: "property_address", Type: TypeString, Description: "Street address of the property"},
		{Key: "property_city", Type: TypeString, Description: "City of the property"},
		{Key: "property_county", Type: TypeString, Description: "County of the property"},
		{Key: "property_zip", Type: TypeString, Description: "ZIP code of the property"},
		{Key: "purchase_method", Type: TypeString, Enum: []string{"financed", "cash", "assumption"}, Description: "How the buyer is paying"},
		{Key: "purchase_price", Type: TypeNumber, Description: "Total purchase price in dollars when financed"},
		{Key: "cash_amount", Type: TypeNumber, Description: "Purchase price in dollars when paying cash"},
		{Key: "loan_type", Type: TypeString, Enum: []string{"conventional", "fha", "va", "usda", "other"}, Description: "Type of loan checked"},

		// Page 2
		{Key: "loan_amount", Type: TypeNumber, Description: "Loan amount in dollars"},
		{Key: "earnest_money", Type: TypeNumber, Description: "Earnest money deposit in dollars"},
		{Key: "earnest_money_holder", Type: TypeString, Description: "Firm or agent holding the earnest money"},
		{Key: "seller_concessions", Type: TypeAmount, Description: "Amount or exact wording of what the seller pays toward buyer costs"},
		{Key: "buyer_agency_fee", Type: TypeAmount, Description: "Buyer agency fee paid by seller, as written (percent or dollars)"},

		// Page 4
		{Key: "title_insurance_option", Type: TypeString, Enum: []string{"A", "B"}, Description: "Checked title insurance option letter"},
		{Key: "survey_option", Type: TypeString, Enum: []string{"A", "B", "C"}, Description: "Checked survey option letter (A buyer pays, B seller pays, C split equally)"},

		// Page 6
		{Key: "inspection_option", Type: TypeString, Enum: []string{"A", "B"}, Description: "Checked inspection option letter"},
		{Key: "appraisal_option", Type: TypeString, Enum: []string{"A", "B"}, Description: "Checked appraisal option letter"},

		// Page 8
		{Key: "home_warranty_option", Type: TypeString, Enum: []string{"A", "B", "C"}, Description: "Checked home warranty option letter (A seller pays, B buyer pays, C no warranty)"},
		{Key: "home_warranty_cost", Type: TypeNumber, Description: "Home warranty cost limit in dollars"},
		{Key: "home_warranty_provider", Type: TypeString, Description: "Home warranty company"},
		{Key: "closing_date", Type: TypeDate, Description: "Closing date"},
		{Key: "possession_option", Type: TypeString, Enum: []string{"A", "B", "C"}, Description: "Checked possession option letter"},

		// Page 14
		{Key: "additional_terms", Type: TypeString, Description: "Full text of the additional terms and conditions paragraph"},

		// Page 15
		{Key: "listing_firm", Type: TypeString, Description: "Listing brokerage firm"},
		{Key: "listing_agent", Type: TypeString, Description: "Listing agent name"},
		{Key: "selling_firm", Type: TypeString, Description: "Selling brokerage firm"},
		{Key: "selling_agent", Type: TypeString, Description: "Selling agent name"},

		// Page 16
		{Key: "acceptance_date", Type: TypeDate, Description: "Date the offer was accepted"},
	}
}

func contractGroups() map[string][]string {
	return map[string][]string{
		GroupPartiesPrice: {
			"buyer_names", "seller_names", "property_address", "property_city", "property_county",
			"property_zip", "purchase_method", "purchase_price", "cash_amount", "loan_type",
		},
		GroupFinancing:       {"loan_amount", "earnest_money", "earnest_money_holder", "seller_concessions", "buyer_agency_fee"},
		GroupTitleSurvey:     {"title_insurance_option", "survey_option"},
		GroupInspections:     {"inspection_option", "appraisal_option"},
		GroupWarrantyClosing: {"home_warranty_option", "home_warranty_cost", "home_warranty_provider", "closing_date", "possession_option"},
		GroupAdditionalTerms: {"additional_terms"},
		GroupAgents:          {"listing_firm", "listing_agent", "selling_firm", "selling_agent"},
		GroupSignatures:      {"acceptance_date"},

		GroupCriticalParties: {"property_address", "seller_names", "buyer_names", "purchase_price", "cash_amount"},
		GroupCriticalClosing: {"closing_date"},
	}
}
