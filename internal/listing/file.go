package listing

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"
)

var (
	addressHeaders    = []string{"address", "property_address", "property address", "street address"}
	taxHeaders        = []string{"annual_taxes", "annual taxes", "taxes", "tax amount", "annual tax"}
	commissionHeaders = []string{"commission_percent", "commission percent", "commission", "seller commission", "commission %"}
)

// FileSource serves listings loaded from a CSV or XLSX file. The file is
// read once; lookups are in-memory.
type FileSource struct {
	byAddress map[string]*Record
	byStreet  map[string]*Record
}

// LoadFile reads listings from path. The format is chosen by extension.
func LoadFile(path string) (*FileSource, error) {
	var (
		rows [][]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		rows, err = readCSV(path)
	case ".xlsx":
		rows, err = readXLSX(path)
	default:
		return nil, eris.Errorf("listing: unsupported file type %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}
	return newFileSource(rows)
}

func newFileSource(rows [][]string) (*FileSource, error) {
	if len(rows) == 0 {
		return nil, eris.New("listing: file has no header row")
	}
	header := rows[0]
	addrCol := findColumn(header, addressHeaders)
	if addrCol < 0 {
		return nil, eris.Errorf("listing: no address column in header %v", header)
	}
	taxCol := findColumn(header, taxHeaders)
	commCol := findColumn(header, commissionHeaders)

	fs := &FileSource{byAddress: map[string]*Record{}, byStreet: map[string]*Record{}}
	for _, row := range rows[1:] {
		addr := cell(row, addrCol)
		if addr == "" {
			continue
		}
		rec := &Record{
			Address:           addr,
			AnnualTaxes:       money(cell(row, taxCol)),
			CommissionPercent: money(strings.TrimSuffix(cell(row, commCol), "%")),
		}
		key := NormalizeAddress(addr)
		if _, dup := fs.byAddress[key]; dup {
			zap.L().Warn("listing: duplicate address, keeping first", zap.String("address", addr))
			continue
		}
		fs.byAddress[key] = rec
		if street := streetPart(key); street != "" {
			if _, ok := fs.byStreet[street]; !ok {
				fs.byStreet[street] = rec
			}
		}
	}
	return fs, nil
}

// Len returns the number of loaded listings.
func (f *FileSource) Len() int { return len(f.byAddress) }

// Records returns the loaded listings ordered by normalized address.
func (f *FileSource) Records() []Record {
	keys := make([]string, 0, len(f.byAddress))
	for k := range f.byAddress {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Record, len(keys))
	for i, k := range keys {
		out[i] = *f.byAddress[k]
	}
	return out
}

// LookupByAddress matches the full normalized address, then the street
// portion alone so that "12 Oak St" finds "12 Oak Street, Little Rock, AR".
func (f *FileSource) LookupByAddress(_ context.Context, address string) (*Record, error) {
	key := NormalizeAddress(address)
	if rec, ok := f.byAddress[key]; ok {
		return rec, nil
	}
	if rec, ok := f.byStreet[streetPart(key)]; ok {
		return rec, nil
	}
	return nil, ErrNotFound
}

func findColumn(header []string, names []string) int {
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(h))
		for _, n := range names {
			if h == n {
				return i
			}
		}
	}
	return -1
}

func cell(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}

func money(s string) *decimal.Decimal {
	s = strings.TrimSpace(strings.ReplaceAll(strings.TrimPrefix(strings.TrimSpace(s), "$"), ",", ""))
	if s == "" {
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	return &d
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "listing: open csv")
	}
	defer f.Close() //nolint:errcheck

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var rows [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "listing: read csv row")
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

func readXLSX(path string) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "listing: open xlsx")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("listing: xlsx has no sheets")
	}

	sheet := f.Sheets[0]
	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, c := range row.Cells {
			cells[j] = c.String()
		}
		rows = append(rows, cells)
	}
	return rows, nil
}
