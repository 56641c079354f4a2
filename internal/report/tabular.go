package report

import (
	"encoding/csv"
	"io"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx/v2"
)

type row struct {
	label  string
	text   string
	amount *decimal.Decimal
	note   string
}

func (r row) value() string {
	if r.amount != nil {
		return r.amount.StringFixed(2)
	}
	return r.text
}

func money(label string, d decimal.Decimal, note string) row {
	return row{label: label, amount: &d, note: note}
}

// summaryRows is the shared row layout for the CSV and XLSX outputs.
func summaryRows(s Sheet) []row {
	o := s.Output
	rows := []row{
		{label: "Property", text: s.Address},
		{label: "Extraction", text: string(s.Outcome)},
		{label: "Needs Review", text: yesNo(s.NeedsReview)},
		money("Sales Price", o.SalesPrice, ""),
	}
	for _, l := range o.Lines() {
		rows = append(rows, money(l.Label, l.Amount, l.Note))
	}
	rows = append(rows,
		money("Total Costs", o.TotalCosts, ""),
		money("Net to Seller", o.NetToSeller, ""),
	)
	for _, n := range o.Notes {
		rows = append(rows, row{label: "Note", text: n})
	}
	return rows
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// WriteCSV writes the net sheet as item,amount,note rows.
func WriteCSV(w io.Writer, s Sheet) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"item", "amount", "note"}); err != nil {
		return eris.Wrap(err, "report: write csv header")
	}
	for _, r := range summaryRows(s) {
		if err := cw.Write([]string{r.label, r.value(), r.note}); err != nil {
			return eris.Wrap(err, "report: write csv row")
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return eris.Wrap(err, "report: flush csv")
	}
	return nil
}

// WriteXLSX writes the net sheet to a single-sheet workbook at path. Money
// cells are numeric so the workbook can be re-totalled.
func WriteXLSX(path string, s Sheet) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Net Sheet")
	if err != nil {
		return eris.Wrap(err, "report: add xlsx sheet")
	}

	header := sheet.AddRow()
	for _, h := range []string{"Item", "Amount", "Note"} {
		header.AddCell().SetString(h)
	}
	for _, r := range summaryRows(s) {
		xr := sheet.AddRow()
		xr.AddCell().SetString(r.label)
		cell := xr.AddCell()
		if r.amount != nil {
			v, _ := r.amount.Float64()
			cell.SetFloatWithFormat(v, "#,##0.00")
		} else {
			cell.SetString(r.text)
		}
		xr.AddCell().SetString(r.note)
	}

	if err := f.Save(path); err != nil {
		return eris.Wrap(err, "report: save xlsx")
	}
	return nil
}
