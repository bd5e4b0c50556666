package export

import (
	"fmt"
	"strconv"
	"strings"
)

// Dataset defines tabular export content. Rows are keyed by header.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
	// Summary lines render after the table, e.g. class average and pass rate.
	Summary []SummaryLine
}

// SummaryLine is a labelled figure shown beneath the table.
type SummaryLine struct {
	Label string
	Value string
}

// Record returns row values in header order; missing keys render empty.
func (d Dataset) Record(row map[string]string) []string {
	record := make([]string, len(d.Headers))
	for i, header := range d.Headers {
		record[i] = row[header]
	}
	return record
}

// SummaryRecord lays a summary line out across the table width: label in the
// first column, value in the second.
func (d Dataset) SummaryRecord(line SummaryLine) []string {
	if len(d.Headers) < 2 {
		return []string{line.Label + ": " + line.Value}
	}
	record := make([]string, len(d.Headers))
	record[0], record[1] = line.Label, line.Value
	return record
}

func (d Dataset) validate(format string) error {
	if len(d.Headers) == 0 {
		return fmt.Errorf("%s requires at least one header", format)
	}
	seen := make(map[string]struct{}, len(d.Headers))
	for _, h := range d.Headers {
		if _, dup := seen[h]; dup {
			return fmt.Errorf("%s: duplicate header %q", format, h)
		}
		seen[h] = struct{}{}
	}
	return nil
}

// numeric reports whether a cell holds a number, including "64%" style values.
func numeric(value string) bool {
	value = strings.TrimSuffix(strings.TrimSpace(value), "%")
	if value == "" {
		return false
	}
	_, err := strconv.ParseFloat(value, 64)
	return err == nil
}
