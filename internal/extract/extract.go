// Package extract turns a spreadsheet export into the uniform RawRecord
// shape. Column names are matched case-insensitively against a small alias
// table so minor header drift between export tools does not break imports.
package extract

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx/v2"

	"github.com/daseme/ctv-bookedbiz-db-sub002/internal/model"
)

// Options configures how a spreadsheet is read.
type Options struct {
	SheetIndex int    // default 0
	SheetName  string // if set, overrides SheetIndex
	SkipRows   int    // extra rows above the header row
}

// ReadFile dispatches on extension: .xlsx goes through the sheet reader,
// .csv through gocsv.
func ReadFile(path string, opts Options) ([]model.RawRecord, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return ReadXLSX(path, opts)
	case ".csv":
		return ReadCSV(path)
	default:
		return nil, eris.Errorf("extract: unsupported file type %q", filepath.Ext(path))
	}
}

// ReadCSV parses a CSV export whose header matches the RawRecord csv tags.
func ReadCSV(path string) ([]model.RawRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "extract: open csv")
	}
	defer f.Close()

	var records []model.RawRecord
	if err := gocsv.UnmarshalFile(f, &records); err != nil {
		return nil, eris.Wrap(err, "extract: parse csv")
	}
	return records, nil
}

// ReadXLSX parses one sheet of an XLSX export. The first row after
// SkipRows is the header; every later row becomes a RawRecord.
func ReadXLSX(path string, opts Options) ([]model.RawRecord, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "extract: open xlsx")
	}

	sheet, err := getSheet(f, opts)
	if err != nil {
		return nil, err
	}

	var (
		mapper  *columnMapper
		records []model.RawRecord
	)
	for i, row := range sheet.Rows {
		if i < opts.SkipRows {
			continue
		}
		cells := rowToStrings(row)
		if mapper == nil {
			mapper, err = newColumnMapper(cells)
			if err != nil {
				return nil, err
			}
			continue
		}
		if emptyRow(cells) {
			continue
		}
		rec, err := mapper.record(cells)
		if err != nil {
			return nil, eris.Wrapf(err, "extract: row %d", i+1)
		}
		records = append(records, rec)
	}
	return records, nil
}

func getSheet(f *xlsx.File, opts Options) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("extract: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}
	if opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("extract: sheet index %d out of range (file has %d sheets)", opts.SheetIndex, len(f.Sheets))
	}
	return f.Sheets[opts.SheetIndex], nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}

func emptyRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// headerAliases maps normalized header text to a logical column name.
var headerAliases = map[string]string{
	"month":          "month",
	"broadcastmonth": "month",
	"billcode":       "bill_code",
	"billingcode":    "bill_code",
	"agency":         "agency",
	"agencyname":     "agency",
	"grossrate":      "gross_rate",
	"gross":          "gross_rate",
	"stationnet":     "station_net",
	"net":            "station_net",
	"spottype":       "spot_type",
	"revenuetype":    "revenue_type",
	"revenue":        "revenue_type",
	"timein":         "time_in",
	"timeout":        "time_out",
	"language":       "language_code",
	"languagecode":   "language_code",
	"lang":           "language_code",
	"source":         "source_tag",
	"sourcetag":      "source_tag",
}

// columnMapper resolves logical column names to sheet positions.
type columnMapper struct {
	index map[string]int
}

func newColumnMapper(header []string) (*columnMapper, error) {
	index := make(map[string]int, len(header))
	for i, cell := range header {
		key := normalizeHeader(cell)
		if logical, ok := headerAliases[key]; ok {
			if _, dup := index[logical]; !dup {
				index[logical] = i
			}
		}
	}
	for _, required := range []string{"month", "bill_code"} {
		if _, ok := index[required]; !ok {
			return nil, eris.Errorf("extract: required column %q not found in header", required)
		}
	}
	return &columnMapper{index: index}, nil
}

func normalizeHeader(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '_', '-', '/', '.':
			return -1
		}
		return r
	}, s)
}

func (m *columnMapper) cell(cells []string, logical string) string {
	i, ok := m.index[logical]
	if !ok || i >= len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[i])
}

func (m *columnMapper) record(cells []string) (model.RawRecord, error) {
	gross, err := parseMoney(m.cell(cells, "gross_rate"))
	if err != nil {
		return model.RawRecord{}, eris.Wrap(err, "gross rate")
	}
	net, err := parseMoney(m.cell(cells, "station_net"))
	if err != nil {
		return model.RawRecord{}, eris.Wrap(err, "station net")
	}
	return model.RawRecord{
		Month:        m.cell(cells, "month"),
		BillCode:     m.cell(cells, "bill_code"),
		RawAgency:    m.cell(cells, "agency"),
		GrossRate:    gross,
		StationNet:   net,
		SpotType:     m.cell(cells, "spot_type"),
		RevenueType:  m.cell(cells, "revenue_type"),
		TimeIn:       m.cell(cells, "time_in"),
		TimeOut:      m.cell(cells, "time_out"),
		LanguageCode: m.cell(cells, "language_code"),
		SourceTag:    m.cell(cells, "source_tag"),
	}, nil
}

// parseMoney accepts export-formatted amounts: "$1,234.50", "(100.00)" for
// negatives, and blank for zero.
func parseMoney(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	s = strings.NewReplacer("$", "", ",", "").Replace(s)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, eris.Wrapf(err, "parse amount %q", s)
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}
