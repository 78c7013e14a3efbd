package importer

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed mapping.yaml
var defaultMapping []byte

// MappingConfig describes how workbook sheets map onto catalog tables.
type MappingConfig struct {
	Version int                    `yaml:"version"`
	Sheets  map[string]SheetConfig `yaml:"sheets"`
}

// SheetConfig maps one sheet. Columns are keyed by canonical header name;
// Aliases lists other header spellings for the same column.
type SheetConfig struct {
	Table      string                  `yaml:"table"`
	NaturalKey string                  `yaml:"natural_key"`
	Aliases    map[string][]string     `yaml:"aliases"`
	Columns    map[string]ColumnConfig `yaml:"columns"`
}

// ColumnConfig names the target field and its type. A trailing "?" marks
// the column optional.
type ColumnConfig struct {
	Field string `yaml:"field"`
	Type  string `yaml:"type"`
}

func (c ColumnConfig) optional() bool {
	return strings.HasSuffix(c.Type, "?")
}

func (c ColumnConfig) baseType() string {
	return strings.ToUpper(strings.TrimSuffix(c.Type, "?"))
}

// writable lists the tables and fields an import may touch.
var writable = map[string]map[string]bool{
	"libraries": {
		"description": true, "active_start_date": true, "active_end_date": true,
	},
	"projects": {
		"name": true, "client_name": true, "description": true, "active_start_date": true,
		"active_end_date": true, "git_url": true, "testing_url": true, "production_url": true,
	},
}

// DefaultMapping returns the built-in mapping for Libraries and Projects sheets.
func DefaultMapping() (*MappingConfig, error) {
	return ParseMapping(defaultMapping)
}

// LoadMapping reads a mapping file, or returns the default when path is empty.
func LoadMapping(path string) (*MappingConfig, error) {
	if path == "" {
		return DefaultMapping()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseMapping(data)
}

// ParseMapping decodes and validates a mapping document.
func ParseMapping(data []byte) (*MappingConfig, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var m MappingConfig
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("parse mapping: %w", err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *MappingConfig) validate() error {
	if len(m.Sheets) == 0 {
		return fmt.Errorf("mapping defines no sheets")
	}
	for name, sheet := range m.Sheets {
		fields, ok := writable[sheet.Table]
		if !ok {
			return fmt.Errorf("sheet %s: table %q cannot be imported", name, sheet.Table)
		}
		if !fields[sheet.NaturalKey] {
			return fmt.Errorf("sheet %s: natural key %q is not a %s field", name, sheet.NaturalKey, sheet.Table)
		}
		keyMapped := false
		for header, col := range sheet.Columns {
			if !fields[col.Field] {
				return fmt.Errorf("sheet %s: column %s maps to unknown field %q", name, header, col.Field)
			}
			switch col.baseType() {
			case "TEXT", "DATE", "URL":
			default:
				return fmt.Errorf("sheet %s: column %s has unsupported type %q", name, header, col.Type)
			}
			if col.Field == sheet.NaturalKey {
				keyMapped = true
			}
		}
		if !keyMapped {
			return fmt.Errorf("sheet %s: natural key %q has no column", name, sheet.NaturalKey)
		}
		for header := range sheet.Aliases {
			if _, ok := sheet.Columns[header]; !ok {
				return fmt.Errorf("sheet %s: aliases for unknown column %s", name, header)
			}
		}
	}
	return nil
}

// resolveHeader returns the canonical column name for a header cell.
func (c SheetConfig) resolveHeader(header string) (string, bool) {
	h := normalizeHeader(header)
	for name := range c.Columns {
		if normalizeHeader(name) == h {
			return name, true
		}
	}
	for name, aliases := range c.Aliases {
		for _, alias := range aliases {
			if normalizeHeader(alias) == h {
				return name, true
			}
		}
	}
	return "", false
}

func normalizeHeader(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "_", " ")
	return strings.Join(strings.Fields(s), " ")
}
