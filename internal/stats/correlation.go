package stats

import (
	"fmt"
	"math"

	"github.com/Paul-Berdier/123PandaRoux/internal/data"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// TargetColumnError is returned when the target column needed for
// correlation or training is absent or not numeric.
type TargetColumnError struct {
	Column string
	Reason string
}

func (e *TargetColumnError) Error() string {
	return fmt.Sprintf("target column %q: %s", e.Column, e.Reason)
}

// Matrix is a symmetric Pearson correlation matrix over named columns.
type Matrix struct {
	Columns []string
	Values  *mat.SymDense
	index   map[string]int
}

func (m *Matrix) At(a, b string) (float64, bool) {
	i, okA := m.index[a]
	j, okB := m.index[b]
	if !okA || !okB {
		return math.NaN(), false
	}
	return m.Values.At(i, j), true
}

// Row returns the correlations of column against every column, in order.
func (m *Matrix) Row(column string) ([]float64, bool) {
	i, ok := m.index[column]
	if !ok {
		return nil, false
	}
	row := make([]float64, len(m.Columns))
	for j := range m.Columns {
		row[j] = m.Values.At(i, j)
	}
	return row, true
}

// CorrelationMatrix computes pairwise Pearson correlation between all numeric
// columns, using for each pair only the rows where both cells are present.
// Undefined correlations (fewer than two rows, or a constant column) are NaN.
func CorrelationMatrix(t *data.Table) (*Matrix, error) {
	names := t.NumericColumns()
	columns := make([][]float64, len(names))
	for i, name := range names {
		values, err := t.Floats(name)
		if err != nil {
			return nil, err
		}
		columns[i] = values
	}

	n := len(names)
	m := &Matrix{Columns: names, index: make(map[string]int, n)}
	for i, name := range names {
		m.index[name] = i
	}
	if n == 0 {
		return m, nil
	}
	m.Values = mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			m.Values.SetSym(i, j, pearson(columns[i], columns[j]))
		}
	}
	return m, nil
}

func pearson(a, b []float64) float64 {
	x := make([]float64, 0, len(a))
	y := make([]float64, 0, len(b))
	for i := range a {
		if math.IsNaN(a[i]) || math.IsNaN(b[i]) {
			continue
		}
		x = append(x, a[i])
		y = append(y, b[i])
	}
	if len(x) < 2 || constant(x) || constant(y) {
		return math.NaN()
	}
	r := stat.Correlation(x, y, nil)
	return math.Max(-1, math.Min(1, r))
}

func constant(values []float64) bool {
	for _, v := range values[1:] {
		if v != values[0] {
			return false
		}
	}
	return true
}

// Selection records why each numeric column was kept or dropped.
type Selection struct {
	Target       string             `json:"target"`
	Threshold    float64            `json:"threshold"`
	Correlations map[string]float64 `json:"correlations"`
	Kept         []string           `json:"kept"`
	Dropped      []string           `json:"dropped"`
}

// SelectFeatures keeps the numeric columns whose absolute correlation with
// target is strictly above threshold, plus the target itself and dateColumn
// when present. Columns keep their source order.
func SelectFeatures(t *data.Table, target, dateColumn string, threshold float64) (*data.Table, *Selection, error) {
	col, ok := t.Column(target)
	if !ok {
		return nil, nil, &TargetColumnError{Column: target, Reason: "absent"}
	}
	if !col.Kind.Numeric() {
		return nil, nil, &TargetColumnError{Column: target, Reason: fmt.Sprintf("not numeric (%s)", col.Kind)}
	}

	m, err := CorrelationMatrix(t)
	if err != nil {
		return nil, nil, err
	}
	row, _ := m.Row(target)

	sel := &Selection{
		Target:       target,
		Threshold:    threshold,
		Correlations: make(map[string]float64, len(m.Columns)),
	}
	keep := map[string]bool{target: true}
	for j, name := range m.Columns {
		r := row[j]
		sel.Correlations[name] = r
		switch {
		case name == target:
		case name == dateColumn:
		case !math.IsNaN(r) && math.Abs(r) > threshold:
			keep[name] = true
		default:
			sel.Dropped = append(sel.Dropped, name)
		}
	}

	var projection []string
	for _, c := range t.Columns() {
		if keep[c.Name] || (c.Name == dateColumn && dateColumn != "") {
			projection = append(projection, c.Name)
			if c.Name != dateColumn {
				sel.Kept = append(sel.Kept, c.Name)
			}
		}
	}

	out, err := t.Select(projection...)
	if err != nil {
		return nil, nil, err
	}
	return out, sel, nil
}
