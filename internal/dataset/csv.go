package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
)

// Row represents a single CSV row with column name to value mapping.
type Row map[string]string

// Table is a parsed CSV file. Header keeps the column order of the file.
type Table struct {
	Path    string
	Header  []string
	Records [][]string
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	return len(t.Records)
}

// Row returns the i-th data row keyed by column name.
func (t *Table) Row(i int) Row {
	row := make(Row, len(t.Header))
	for j, h := range t.Header {
		row[h] = t.Records[i][j]
	}
	return row
}

// Column returns the index of the named column, or -1.
func (t *Table) Column(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// LoadCSV reads a CSV file. The first row is treated as headers (column names).
func LoadCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("csv: open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("csv: parse %s: %w", path, err)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("csv: %s is empty (no header row)", path)
	}

	headers := records[0]
	seen := make(map[string]struct{}, len(headers))
	for _, h := range headers {
		if h == "" {
			return nil, fmt.Errorf("csv: %s has an empty column name", path)
		}
		if _, dup := seen[h]; dup {
			return nil, fmt.Errorf("csv: %s has duplicate column %q", path, h)
		}
		seen[h] = struct{}{}
	}

	for i, record := range records[1:] {
		if len(record) != len(headers) {
			return nil, fmt.Errorf("csv: row %d has %d columns, expected %d", i+2, len(record), len(headers))
		}
	}

	return &Table{Path: path, Header: headers, Records: records[1:]}, nil
}
