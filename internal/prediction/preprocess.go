package prediction

import (
	"math"
	"time"

	"github.com/Paul-Berdier/123PandaRoux/internal/data"
)

// Preprocess turns an input batch into the all-numeric shape the model was
// trained on. The date column, when present, becomes the number of days since
// the earliest date in the batch; every other column is coerced to a number.
// Rows left with a missing value are dropped. kept maps each output row to its
// input row.
func Preprocess(t *data.Table, dateColumn string) (out *data.Table, kept []int, err error) {
	columns := t.Columns()
	converted := make([][]data.Value, len(columns))
	outCols := make([]data.Column, len(columns))

	for j, col := range columns {
		values, err := t.Values(col.Name)
		if err != nil {
			return nil, nil, err
		}
		if col.Name == dateColumn {
			converted[j] = dayOffsets(values)
			outCols[j] = data.Column{Name: col.Name, Kind: data.KindInt}
			continue
		}
		converted[j] = coerce(values)
		outCols[j] = data.Column{Name: col.Name, Kind: data.KindFloat}
	}

	var rows [][]data.Value
	for i := 0; i < t.Len(); i++ {
		row := make([]data.Value, len(columns))
		complete := true
		for j := range columns {
			row[j] = converted[j][i]
			if row[j].Null {
				complete = false
			}
		}
		if complete {
			rows = append(rows, row)
			kept = append(kept, i)
		}
	}
	if len(rows) == 0 {
		return nil, nil, &EmptyInputError{Rows: t.Len()}
	}

	out, err = data.NewTable(outCols, rows)
	if err != nil {
		return nil, nil, err
	}
	return out, kept, nil
}

func dayOffsets(values []data.Value) []data.Value {
	dates := make([]time.Time, len(values))
	valid := make([]bool, len(values))
	var earliest time.Time
	found := false

	for i, v := range values {
		if v.Null {
			continue
		}
		d := v.Time
		if d.IsZero() {
			parsed, ok := data.ParseDate(v.Raw)
			if !ok {
				continue
			}
			d = parsed
		}
		dates[i], valid[i] = d, true
		if !found || d.Before(earliest) {
			earliest, found = d, true
		}
	}

	out := make([]data.Value, len(values))
	for i := range values {
		if !valid[i] {
			out[i] = data.NullValue()
			continue
		}
		days := math.Floor(dates[i].Sub(earliest).Hours() / 24)
		out[i] = data.IntValue(int64(days))
	}
	return out
}

func coerce(values []data.Value) []data.Value {
	out := make([]data.Value, len(values))
	for i, v := range values {
		if v.Null {
			out[i] = data.NullValue()
			continue
		}
		d, ok := data.ParseNumber(v.Raw)
		if !ok {
			out[i] = data.NullValue()
			continue
		}
		out[i] = data.Value{Raw: v.Raw, Num: d}
	}
	return out
}
