package preprocessing

import (
	"fmt"
	"math"

	"github.com/Paul-Berdier/123PandaRoux/internal/data"
	"gonum.org/v1/gonum/stat"
)

// Scaler learns per-feature mean and sample standard deviation. Missing
// values (NaN) are ignored while fitting and stay missing.
type Scaler struct {
	IsFitted    bool
	FeatureMean []float64
	FeatureStd  []float64
}

func NewScaler() *Scaler {
	return &Scaler{}
}

// Fit takes one slice per feature.
func (s *Scaler) Fit(columns [][]float64) error {
	if len(columns) == 0 {
		return fmt.Errorf("empty dataset")
	}

	n := len(columns)
	s.FeatureMean = make([]float64, n)
	s.FeatureStd = make([]float64, n)

	for j, col := range columns {
		present := dropNaN(col)
		if len(present) == 0 {
			s.FeatureStd[j] = 1
			continue
		}
		mean, std := stat.MeanStdDev(present, nil)
		if len(present) < 2 || std == 0 || math.IsNaN(std) {
			std = 1
		}
		s.FeatureMean[j], s.FeatureStd[j] = mean, std
	}

	s.IsFitted = true
	return nil
}

func (s *Scaler) Transform(columns [][]float64) ([][]float64, error) {
	if !s.IsFitted {
		return nil, fmt.Errorf("scaler must be fitted before transform")
	}
	if len(columns) != len(s.FeatureStd) {
		return nil, fmt.Errorf("scaler fitted on %d features, got %d", len(s.FeatureStd), len(columns))
	}

	result := make([][]float64, len(columns))
	for j, col := range columns {
		result[j] = make([]float64, len(col))
		for i, v := range col {
			result[j][i] = (v - s.FeatureMean[j]) / s.FeatureStd[j]
		}
	}

	return result, nil
}

func (s *Scaler) FitTransform(columns [][]float64) ([][]float64, error) {
	if err := s.Fit(columns); err != nil {
		return nil, err
	}
	return s.Transform(columns)
}

func dropNaN(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// Standardize rescales every column except target and dateColumn to zero mean
// and unit sample standard deviation. The excluded columns are carried over
// untouched. A zero-variance column is only centred.
func Standardize(t *data.Table, target, dateColumn string) (*data.Table, error) {
	if !t.HasColumn(target) {
		return nil, &data.MissingColumnError{Column: target, Role: "target"}
	}

	var names []string
	var columns [][]float64
	for _, col := range t.Columns() {
		if col.Name == target || col.Name == dateColumn {
			continue
		}
		if !col.Kind.Numeric() {
			return nil, &data.ColumnTypeError{Column: col.Name, Want: data.KindFloat, Got: col.Kind}
		}
		values, err := t.Floats(col.Name)
		if err != nil {
			return nil, err
		}
		names = append(names, col.Name)
		columns = append(columns, values)
	}
	if len(columns) == 0 {
		return t, nil
	}

	scaled, err := NewScaler().FitTransform(columns)
	if err != nil {
		return nil, err
	}

	out := t
	for j, name := range names {
		values := make([]data.Value, len(scaled[j]))
		for i, v := range scaled[j] {
			values[i] = data.FloatValue(v)
		}
		out, err = out.WithColumn(data.Column{Name: name, Kind: data.KindFloat}, values)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
