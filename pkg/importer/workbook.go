package importer

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tealeg/xlsx/v3"

	"library-catalog/internal/models"
)

// Record is one parsed data row. Values are keyed by target field and hold a
// string, a models.Date, or nil for an empty optional date.
type Record struct {
	Row    int
	Values map[string]any
}

// ParsedSheet is a mapped sheet after parsing and validation.
type ParsedSheet struct {
	Name    string
	Config  SheetConfig
	Records []Record
	Skipped int
	Errors  []RowError
}

var dateLayouts = []string{
	models.DateLayout,
	"2006-01-02 15:04:05",
	"01/02/2006",
	"1/2/2006",
	"1/2/06",
	"01-02-06",
}

// ReadWorkbook parses every sheet that has a mapping. Unmapped sheets are ignored.
func ReadWorkbook(data []byte, m *MappingConfig) ([]ParsedSheet, error) {
	wb, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	var out []ParsedSheet
	for _, sheet := range wb.Sheets {
		name, cfg, ok := m.sheetFor(sheet.Name)
		if !ok {
			continue
		}
		ps := parseSheet(sheet, cfg)
		ps.Name = name
		out = append(out, ps)
	}
	return out, nil
}

func (m *MappingConfig) sheetFor(name string) (string, SheetConfig, bool) {
	if cfg, ok := m.Sheets[name]; ok {
		return name, cfg, true
	}
	for key, cfg := range m.Sheets {
		if strings.EqualFold(key, strings.TrimSpace(name)) {
			return key, cfg, true
		}
	}
	return "", SheetConfig{}, false
}

func parseSheet(sheet *xlsx.Sheet, cfg SheetConfig) ParsedSheet {
	ps := ParsedSheet{Config: cfg}

	header, err := sheet.Row(0)
	if err != nil {
		ps.Errors = append(ps.Errors, RowError{Sheet: sheet.Name, Row: 1, Message: "Failed to read header row: " + err.Error()})
		return ps
	}

	columns := map[int]string{}
	seen := map[string]bool{}
	for c := 0; c < sheet.MaxCol; c++ {
		name, ok := cfg.resolveHeader(header.GetCell(c).String())
		if !ok || seen[name] {
			continue
		}
		columns[c] = name
		seen[name] = true
	}
	for name, col := range cfg.Columns {
		if !col.optional() && !seen[name] {
			ps.Errors = append(ps.Errors, RowError{Sheet: sheet.Name, Row: 1, Message: "missing required column " + name})
		}
	}
	if len(ps.Errors) > 0 {
		return ps
	}

	for r := 1; r < sheet.MaxRow; r++ {
		row, err := sheet.Row(r)
		if err != nil {
			break
		}
		raw := map[string]*xlsx.Cell{}
		empty := true
		for c, name := range columns {
			cell := row.GetCell(c)
			if strings.TrimSpace(cell.String()) != "" {
				empty = false
			}
			raw[name] = cell
		}
		if empty {
			ps.Skipped++
			continue
		}

		rec := Record{Row: r + 1, Values: map[string]any{}}
		var problems []string
		for name, col := range cfg.Columns {
			v, err := convertCell(raw[name], col)
			if err != nil {
				problems = append(problems, fmt.Sprintf("%s: %v", name, err))
				continue
			}
			if _, present := raw[name]; present || !col.optional() {
				rec.Values[col.Field] = v
			}
		}
		if len(problems) > 0 {
			sort.Strings(problems)
			ps.Errors = append(ps.Errors, RowError{Sheet: sheet.Name, Row: r + 1, Message: strings.Join(problems, "; ")})
			continue
		}
		ps.Records = append(ps.Records, rec)
	}
	return ps
}

// convertCell validates a cell against its column type. cell is nil when
// the column is absent from the sheet.
func convertCell(cell *xlsx.Cell, col ColumnConfig) (any, error) {
	text := ""
	if cell != nil {
		text = strings.TrimSpace(cell.String())
	}
	if text == "" {
		if !col.optional() {
			return nil, fmt.Errorf("value is required")
		}
		if col.baseType() == "DATE" {
			return nil, nil
		}
		return "", nil
	}

	switch col.baseType() {
	case "DATE":
		return parseDateCell(text, cell)
	case "URL":
		u, err := url.Parse(text)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, fmt.Errorf("invalid URL %q", text)
		}
		if len(text) > 200 {
			return nil, fmt.Errorf("URL longer than 200 characters")
		}
		return text, nil
	default:
		if len(text) > 254 && col.Field != "description" {
			return nil, fmt.Errorf("longer than 254 characters")
		}
		return text, nil
	}
}

// parseDateCell accepts common text layouts and Excel date serials.
func parseDateCell(text string, cell *xlsx.Cell) (models.Date, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return models.NewDate(t), nil
		}
	}
	raw := text
	if cell != nil && cell.Value != "" {
		raw = cell.Value
	}
	if serial, err := strconv.ParseFloat(raw, 64); err == nil && serial > 0 {
		return models.NewDate(xlsx.TimeFromExcelTime(serial, false)), nil
	}
	return models.Date{}, fmt.Errorf(`invalid date %q: must be "YYYY-mm-dd"`, text)
}
