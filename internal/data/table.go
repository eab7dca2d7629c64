package data

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindString      Kind = "string"
	KindCategorical Kind = "categorical"
	KindInt         Kind = "int"
	KindFloat       Kind = "float"
	KindDate        Kind = "date"
)

// Numeric reports whether cells of this kind carry a decimal value.
func (k Kind) Numeric() bool {
	return k == KindInt || k == KindFloat
}

type Column struct {
	Name string
	Kind Kind
}

// Value is one table cell. Raw keeps the text the cell was read from so that
// cells no transform touched are written back unchanged.
type Value struct {
	Raw  string
	Num  decimal.Decimal
	Time time.Time
	Null bool
}

func NullValue() Value {
	return Value{Null: true}
}

func StringValue(s string) Value {
	return Value{Raw: s}
}

func NumberValue(d decimal.Decimal) Value {
	return Value{Raw: d.String(), Num: d}
}

func IntValue(i int64) Value {
	return NumberValue(decimal.NewFromInt(i))
}

func FloatValue(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return NullValue()
	}
	return NumberValue(decimal.NewFromFloat(f))
}

func DateValue(t time.Time) Value {
	return Value{Raw: t.Format(DateLayout), Time: t}
}

func (v Value) Text() string {
	if v.Null {
		return ""
	}
	return v.Raw
}

// Float64 returns NaN for missing cells.
func (v Value) Float64() float64 {
	if v.Null {
		return math.NaN()
	}
	return v.Num.InexactFloat64()
}

// Table is an immutable, column-typed set of rows. Every transform returns a
// new Table; row slices are never written after construction.
type Table struct {
	columns []Column
	index   map[string]int
	rows    [][]Value
}

func NewTable(columns []Column, rows [][]Value) (*Table, error) {
	index := make(map[string]int, len(columns))
	for i, col := range columns {
		if _, dup := index[col.Name]; dup {
			return nil, fmt.Errorf("duplicate column %q", col.Name)
		}
		index[col.Name] = i
	}
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("row %d has %d cells, expected %d", i, len(row), len(columns))
		}
	}
	cols := make([]Column, len(columns))
	copy(cols, columns)
	return &Table{columns: cols, index: index, rows: rows}, nil
}

func (t *Table) Len() int {
	return len(t.rows)
}

func (t *Table) Width() int {
	return len(t.columns)
}

func (t *Table) Columns() []Column {
	cols := make([]Column, len(t.columns))
	copy(cols, t.columns)
	return cols
}

func (t *Table) Names() []string {
	names := make([]string, len(t.columns))
	for i, col := range t.columns {
		names[i] = col.Name
	}
	return names
}

func (t *Table) Column(name string) (Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return Column{}, false
	}
	return t.columns[i], true
}

func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// NumericColumns lists int and float columns in table order.
func (t *Table) NumericColumns() []string {
	var names []string
	for _, col := range t.columns {
		if col.Kind.Numeric() {
			names = append(names, col.Name)
		}
	}
	return names
}

func (t *Table) Row(i int) []Value {
	row := make([]Value, len(t.rows[i]))
	copy(row, t.rows[i])
	return row
}

func (t *Table) Values(name string) ([]Value, error) {
	j, ok := t.index[name]
	if !ok {
		return nil, &ColumnNotFoundError{Column: name, Op: "values"}
	}
	out := make([]Value, len(t.rows))
	for i, row := range t.rows {
		out[i] = row[j]
	}
	return out, nil
}

// Floats returns a numeric column as float64, NaN marking missing cells.
func (t *Table) Floats(name string) ([]float64, error) {
	col, ok := t.Column(name)
	if !ok {
		return nil, &ColumnNotFoundError{Column: name, Op: "floats"}
	}
	if !col.Kind.Numeric() {
		return nil, &ColumnTypeError{Column: name, Want: KindFloat, Got: col.Kind}
	}
	j := t.index[name]
	out := make([]float64, len(t.rows))
	for i, row := range t.rows {
		out[i] = row[j].Float64()
	}
	return out, nil
}

// Select projects the table onto names, in that order.
func (t *Table) Select(names ...string) (*Table, error) {
	idx := make([]int, len(names))
	cols := make([]Column, len(names))
	for i, name := range names {
		j, ok := t.index[name]
		if !ok {
			return nil, &ColumnNotFoundError{Column: name, Op: "select"}
		}
		idx[i] = j
		cols[i] = t.columns[j]
	}
	rows := make([][]Value, len(t.rows))
	for r, row := range t.rows {
		out := make([]Value, len(idx))
		for i, j := range idx {
			out[i] = row[j]
		}
		rows[r] = out
	}
	return NewTable(cols, rows)
}

// Drop removes the named columns; names that are absent are ignored.
func (t *Table) Drop(names ...string) *Table {
	skip := make(map[string]bool, len(names))
	for _, n := range names {
		skip[n] = true
	}
	keep := make([]string, 0, len(t.columns))
	for _, col := range t.columns {
		if !skip[col.Name] {
			keep = append(keep, col.Name)
		}
	}
	out, _ := t.Select(keep...)
	return out
}

// WithColumn replaces the named column in place, or appends it when absent.
func (t *Table) WithColumn(col Column, values []Value) (*Table, error) {
	if len(values) != len(t.rows) {
		return nil, fmt.Errorf("column %q has %d values, table has %d rows", col.Name, len(values), len(t.rows))
	}
	cols := t.Columns()
	j, exists := t.index[col.Name]
	if exists {
		cols[j] = col
	} else {
		j = len(cols)
		cols = append(cols, col)
	}
	rows := make([][]Value, len(t.rows))
	for i, row := range t.rows {
		out := make([]Value, len(cols))
		copy(out, row)
		out[j] = values[i]
		rows[i] = out
	}
	return NewTable(cols, rows)
}

// Filter keeps the rows for which keep returns true, preserving order.
func (t *Table) Filter(keep func(row []Value) bool) *Table {
	rows := make([][]Value, 0, len(t.rows))
	for _, row := range t.rows {
		if keep(row) {
			rows = append(rows, row)
		}
	}
	return &Table{columns: t.Columns(), index: t.index, rows: rows}
}

// Rows returns the table restricted to the given row indices.
func (t *Table) Rows(indices []int) *Table {
	rows := make([][]Value, len(indices))
	for i, r := range indices {
		rows[i] = t.rows[r]
	}
	return &Table{columns: t.Columns(), index: t.index, rows: rows}
}
