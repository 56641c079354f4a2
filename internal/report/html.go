package report

import (
	"html/template"
	"io"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
)

var sheetTmpl = template.Must(template.New("netsheet").Funcs(template.FuncMap{
	"usd": func(d decimal.Decimal) string { return "$" + d.StringFixed(2) },
}).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Seller Net Sheet - {{.Address}}</title>
<style>
body { font-family: Helvetica, Arial, sans-serif; margin: 40px; color: #222; }
table { border-collapse: collapse; width: 100%; }
td { padding: 6px 8px; border-bottom: 1px solid #ddd; }
td.amt { text-align: right; }
tr.total td { font-weight: bold; border-top: 2px solid #222; }
.review { background: #fff3cd; padding: 8px; margin-bottom: 16px; }
.note { color: #666; font-size: 0.85em; }
</style>
</head>
<body>
<h1>Seller Net Sheet</h1>
<p>{{.Address}}</p>
{{if .NeedsReview}}<div class="review">Extraction result {{.Outcome}}: review contract values before sending.</div>{{end}}
<table>
<tr><td>Sales Price</td><td class="amt">{{usd .Output.SalesPrice}}</td><td></td></tr>
{{range .Output.Lines}}<tr><td>{{.Label}}</td><td class="amt">{{usd .Amount}}</td><td class="note">{{.Note}}</td></tr>
{{end}}<tr class="total"><td>Total Costs</td><td class="amt">{{usd .Output.TotalCosts}}</td><td></td></tr>
<tr class="total"><td>Net to Seller</td><td class="amt">{{usd .Output.NetToSeller}}</td><td></td></tr>
</table>
{{range .Output.Notes}}<p class="note">{{.}}</p>
{{end}}<p class="note">Generated {{.GeneratedAt.Format "January 2, 2006"}}. Estimates only; final figures come from the settlement statement.</p>
</body>
</html>
`))

// RenderHTML writes the printable net sheet page.
func RenderHTML(w io.Writer, s Sheet) error {
	if err := sheetTmpl.Execute(w, s); err != nil {
		return eris.Wrap(err, "report: render html")
	}
	return nil
}
