package dcf

import (
	"bytes"
	"encoding/csv"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/dealdesk/internal/model"
)

var headerJunk = regexp.MustCompile(`[^a-z0-9_]`)

// column identifies which FinancialRow field a header feeds.
type column int

const (
	colExtra column = iota
	colPeriod
	colRevenue
	colCOGS
	colGrossProfit
	colOpex
	colDepreciation
	colInterest
	colTax
	colNetIncome
	colEBITDA
)

// classifiers are evaluated in order; the first substring match wins.
// COGS precedes revenue so "cost_of_sales" is not read as sales.
var classifiers = []struct {
	col     column
	needles []string
}{
	{colPeriod, []string{"period", "date", "year"}},
	{colCOGS, []string{"cogs", "cost_of_goods", "cost_of_sales"}},
	{colRevenue, []string{"revenue", "sales"}},
	{colGrossProfit, []string{"gross_profit"}},
	{colOpex, []string{"opex", "operating_expense"}},
	{colDepreciation, []string{"depreciation", "d_a"}},
	{colInterest, []string{"interest"}},
	{colTax, []string{"tax"}},
	{colNetIncome, []string{"net_income", "net_profit"}},
	{colEBITDA, []string{"ebitda"}},
}

// NormalizeHeader lowercases a header and replaces anything outside
// [a-z0-9_] with an underscore.
func NormalizeHeader(h string) string {
	return headerJunk.ReplaceAllString(strings.ToLower(strings.TrimSpace(h)), "_")
}

func classify(header string) column {
	for _, c := range classifiers {
		for _, n := range c.needles {
			if strings.Contains(header, n) {
				return c.col
			}
		}
	}
	return colExtra
}

// ParseCSV reads a historical income statement in CSV form.
func ParseCSV(r io.Reader) ([]model.FinancialRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "dcf: read csv")
	}
	return ParseRecords(records)
}

// ParseXLSX reads the first sheet of an XLSX workbook.
func ParseXLSX(data []byte) ([]model.FinancialRow, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, eris.Wrap(err, "dcf: open xlsx")
	}
	if len(f.Sheets) == 0 {
		return nil, ErrNoRows
	}

	var records [][]string
	for _, row := range f.Sheets[0].Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		records = append(records, cells)
	}
	return ParseRecords(records)
}

// Parse picks the XLSX or CSV reader based on the leading bytes of data.
func Parse(data []byte) ([]model.FinancialRow, error) {
	// XLSX files are zip archives.
	if bytes.HasPrefix(data, []byte("PK\x03\x04")) {
		return ParseXLSX(data)
	}
	return ParseCSV(bytes.NewReader(bytes.TrimSpace(data)))
}

// ParseRecords converts a header row plus data rows into FinancialRows.
// Blank or unparseable numeric cells are left unset.
func ParseRecords(records [][]string) ([]model.FinancialRow, error) {
	records = dropBlank(records)
	if len(records) < 2 {
		return nil, ErrNoRows
	}

	headers := make([]string, len(records[0]))
	cols := make([]column, len(records[0]))
	for i, h := range records[0] {
		headers[i] = NormalizeHeader(h)
		cols[i] = classify(headers[i])
	}

	rows := make([]model.FinancialRow, 0, len(records)-1)
	for _, rec := range records[1:] {
		var row model.FinancialRow
		for i, col := range cols {
			if i >= len(rec) {
				break
			}
			value := strings.TrimSpace(rec[i])
			if col == colPeriod {
				row.Period = value
				continue
			}
			if col == colExtra {
				if row.Extra == nil {
					row.Extra = make(map[string]any)
				}
				if n, ok := parseNumber(value); ok {
					row.Extra[headers[i]] = n
				} else {
					row.Extra[headers[i]] = value
				}
				continue
			}
			n, ok := parseNumber(value)
			if !ok {
				continue
			}
			setField(&row, col, n)
		}
		deriveMissing(&row)
		rows = append(rows, row)
	}
	return rows, nil
}

func setField(row *model.FinancialRow, col column, n float64) {
	v := model.Float(n)
	switch col {
	case colRevenue:
		row.Revenue = v
	case colCOGS:
		row.COGS = v
	case colGrossProfit:
		row.GrossProfit = v
	case colOpex:
		row.Opex = v
	case colDepreciation:
		row.Depreciation = v
	case colInterest:
		row.Interest = v
	case colTax:
		row.Tax = v
	case colNetIncome:
		row.NetIncome = v
	case colEBITDA:
		row.EBITDA = v
	}
}

// deriveMissing fills gross profit and EBITDA from their components.
func deriveMissing(row *model.FinancialRow) {
	if row.GrossProfit == nil && row.Revenue != nil && row.COGS != nil {
		row.GrossProfit = model.Float(*row.Revenue - *row.COGS)
	}
	if row.EBITDA == nil && row.GrossProfit != nil && row.Opex != nil {
		row.EBITDA = model.Float(*row.GrossProfit - *row.Opex + model.Value(row.Depreciation))
	}
}

// parseNumber accepts plain numbers plus currency symbols, thousands
// separators, and accounting-style parenthesized negatives.
func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = s[1 : len(s)-1]
	}
	s = strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)
	n, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	if neg {
		n = -n
	}
	return n, true
}

func dropBlank(records [][]string) [][]string {
	out := records[:0:0]
	for _, rec := range records {
		for _, cell := range rec {
			if strings.TrimSpace(cell) != "" {
				out = append(out, rec)
				break
			}
		}
	}
	return out
}
