package data

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the layout dates are written back with.
const DateLayout = "2006-01-02"

var dateLayouts = []string{
	DateLayout, time.RFC3339, "2006/01/02", "02/01/2006",
	"2006-01-02 15:04", "2006-01-02 15:04:05",
}

// Columns with at most this many distinct values are read as categorical.
const maxCategories = 32

func ReadCSV(filename string) (*Table, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	t, err := ReadCSVFrom(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return t, nil
}

// ReadCSVFrom reads a header line followed by records and infers a kind for
// every column. Empty cells are missing.
func ReadCSVFrom(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)

	headers, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("failed to read headers: empty input")
		}
		return nil, fmt.Errorf("failed to read headers: %w", err)
	}

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("error reading records: %w", err)
	}

	columns := make([]Column, len(headers))
	for j, name := range headers {
		columns[j] = Column{Name: strings.TrimSpace(name), Kind: inferKind(records, j)}
	}

	rows := make([][]Value, len(records))
	for i, record := range records {
		row := make([]Value, len(columns))
		for j, col := range columns {
			row[j] = parseCell(record[j], col.Kind)
		}
		rows[i] = row
	}

	return NewTable(columns, rows)
}

func inferKind(records [][]string, j int) Kind {
	seen := 0
	isInt, isNum, isDate := true, true, true
	distinct := make(map[string]struct{})

	for _, record := range records {
		cell := strings.TrimSpace(record[j])
		if cell == "" {
			continue
		}
		seen++
		if isInt {
			if _, err := strconv.ParseInt(cell, 10, 64); err != nil {
				isInt = false
			}
		}
		if isNum && !isInt {
			if _, err := decimal.NewFromString(cell); err != nil {
				isNum = false
			}
		}
		if isDate {
			if _, ok := parseDate(cell); !ok {
				isDate = false
			}
		}
		if len(distinct) <= maxCategories {
			distinct[cell] = struct{}{}
		}
	}

	switch {
	case seen == 0:
		return KindString
	case isInt:
		return KindInt
	case isNum:
		return KindFloat
	case isDate:
		return KindDate
	case len(distinct) <= maxCategories && len(distinct) < seen:
		return KindCategorical
	default:
		return KindString
	}
}

func parseCell(cell string, kind Kind) Value {
	trimmed := strings.TrimSpace(cell)
	if trimmed == "" {
		return NullValue()
	}
	switch kind {
	case KindInt, KindFloat:
		d, err := decimal.NewFromString(trimmed)
		if err != nil {
			return NullValue()
		}
		return Value{Raw: cell, Num: d}
	case KindDate:
		t, ok := parseDate(trimmed)
		if !ok {
			return NullValue()
		}
		return Value{Raw: cell, Time: t}
	default:
		return Value{Raw: cell}
	}
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseNumber coerces free text to a number; ok is false when it cannot.
func ParseNumber(s string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// ParseDate accepts the layouts ReadCSV recognises.
func ParseDate(s string) (time.Time, bool) {
	return parseDate(strings.TrimSpace(s))
}

func WriteCSVTo(t *Table, w io.Writer) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(t.Names()); err != nil {
		return err
	}
	record := make([]string, t.Width())
	for _, row := range t.rows {
		for j, v := range row {
			record[j] = v.Text()
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteCSV replaces filename with the table contents. The file is written
// next to its destination and renamed, so readers never see a partial table.
func WriteCSV(t *Table, filename string) error {
	return WriteFileAtomic(filename, func(w io.Writer) error {
		return WriteCSVTo(t, w)
	})
}

func WriteFileAtomic(filename string, write func(w io.Writer) error) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(filename)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", filename, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", filename, err)
	}
	if err := os.Rename(tmpName, filename); err != nil {
		return fmt.Errorf("rename %s: %w", filename, err)
	}
	return nil
}
