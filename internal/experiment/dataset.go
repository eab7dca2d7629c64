package experiment

import (
	"math"

	"github.com/Paul-Berdier/123PandaRoux/internal/data"
	"github.com/Paul-Berdier/123PandaRoux/internal/stats"
)

// Dataset is a table turned into a feature matrix and integer labels.
type Dataset struct {
	Features []string
	X        [][]float64
	Y        []int
	Dropped  int
}

// BuildDataset uses every column except target and dateColumn as a feature.
// Rows with a missing feature or label are dropped. The target must hold
// integer codes.
func BuildDataset(t *data.Table, target, dateColumn string) (*Dataset, error) {
	col, ok := t.Column(target)
	if !ok {
		return nil, &stats.TargetColumnError{Column: target, Reason: "column is absent"}
	}
	if !col.Kind.Numeric() {
		return nil, &stats.TargetColumnError{Column: target, Reason: "column is " + string(col.Kind) + ", not numeric"}
	}

	features := t.Drop(target, dateColumn)
	if features.Width() == 0 {
		return nil, &data.ColumnNotFoundError{Column: "<feature>", Op: "build training set"}
	}
	columns := make([][]float64, features.Width())
	for j, name := range features.Names() {
		values, err := features.Floats(name)
		if err != nil {
			return nil, err
		}
		columns[j] = values
	}
	labels, err := t.Values(target)
	if err != nil {
		return nil, err
	}

	ds := &Dataset{Features: features.Names()}
	for i, label := range labels {
		if label.Null {
			ds.Dropped++
			continue
		}
		if !label.Num.IsInteger() {
			return nil, &stats.TargetColumnError{Column: target, Reason: "labels must be integer codes, found " + label.Raw}
		}
		row := make([]float64, len(columns))
		complete := true
		for j := range columns {
			v := columns[j][i]
			if math.IsNaN(v) {
				complete = false
				break
			}
			row[j] = v
		}
		if !complete {
			ds.Dropped++
			continue
		}
		ds.X = append(ds.X, row)
		ds.Y = append(ds.Y, int(label.Num.IntPart()))
	}

	if len(ds.X) == 0 {
		return nil, &data.EmptyTableError{Op: "build training set"}
	}
	return ds, nil
}
