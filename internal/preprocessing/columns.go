package preprocessing

import (
	"github.com/Paul-Berdier/123PandaRoux/internal/data"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var hundred = decimal.NewFromInt(100)

// SelectColumns keeps exactly columns, in that order.
func SelectColumns(t *data.Table, columns []string) (*data.Table, error) {
	return t.Select(columns...)
}

// NormalizeHumidity rescales a percentage column to [0, 1]. A table without
// the column is returned unchanged.
func NormalizeHumidity(t *data.Table, column string, log *zap.Logger) (*data.Table, error) {
	if log == nil {
		log = zap.NewNop()
	}

	col, ok := t.Column(column)
	if !ok {
		log.Warn("humidity column absent, skipping rescale", zap.String("column", column))
		return t, nil
	}
	if !col.Kind.Numeric() {
		return nil, &data.ColumnTypeError{Column: column, Want: data.KindFloat, Got: col.Kind}
	}

	values, err := t.Values(column)
	if err != nil {
		return nil, err
	}
	scaled := make([]data.Value, len(values))
	for i, v := range values {
		if v.Null {
			scaled[i] = v
			continue
		}
		scaled[i] = data.NumberValue(v.Num.Div(hundred))
	}

	return t.WithColumn(data.Column{Name: column, Kind: data.KindFloat}, scaled)
}
