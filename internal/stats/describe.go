package stats

import (
	"math"
	"sort"

	"github.com/Paul-Berdier/123PandaRoux/internal/data"
	"gonum.org/v1/gonum/stat"
)

// Summary holds the descriptive statistics of one numeric column. Missing
// cells are excluded; Count is the number of present cells.
type Summary struct {
	Column string  `json:"column"`
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"`
	Min    float64 `json:"min"`
	Q25    float64 `json:"q25"`
	Median float64 `json:"median"`
	Q75    float64 `json:"q75"`
	Max    float64 `json:"max"`
	IQR    float64 `json:"iqr"`
}

var SummaryColumns = []string{"column", "count", "mean", "std", "min", "25%", "50%", "75%", "max", "iqr"}

// Describe summarises every numeric column of t in table order.
func Describe(t *data.Table) ([]Summary, error) {
	var out []Summary
	for _, name := range t.NumericColumns() {
		values, err := t.Floats(name)
		if err != nil {
			return nil, err
		}
		out = append(out, summarize(name, values))
	}
	return out, nil
}

func summarize(name string, values []float64) Summary {
	present := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			present = append(present, v)
		}
	}

	s := Summary{Column: name, Count: len(present)}
	nan := math.NaN()
	if len(present) == 0 {
		s.Mean, s.Std, s.Min, s.Q25, s.Median, s.Q75, s.Max, s.IQR = nan, nan, nan, nan, nan, nan, nan, nan
		return s
	}

	sort.Float64s(present)
	s.Mean = stat.Mean(present, nil)
	s.Std = nan
	if len(present) > 1 {
		s.Std = stat.StdDev(present, nil)
	}
	s.Min = present[0]
	s.Max = present[len(present)-1]
	s.Q25 = Quantile(present, 0.25)
	s.Median = Quantile(present, 0.5)
	s.Q75 = Quantile(present, 0.75)
	s.IQR = s.Q75 - s.Q25
	return s
}

// Quantile interpolates linearly between the closest ranks of sorted values.
func Quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}

// SummaryTable lays summaries out one row per column, ready for WriteCSV.
func SummaryTable(summaries []Summary) (*data.Table, error) {
	cols := make([]data.Column, len(SummaryColumns))
	for i, name := range SummaryColumns {
		kind := data.KindFloat
		switch name {
		case "column":
			kind = data.KindString
		case "count":
			kind = data.KindInt
		}
		cols[i] = data.Column{Name: name, Kind: kind}
	}

	rows := make([][]data.Value, len(summaries))
	for i, s := range summaries {
		rows[i] = []data.Value{
			data.StringValue(s.Column),
			data.IntValue(int64(s.Count)),
			data.FloatValue(s.Mean),
			data.FloatValue(s.Std),
			data.FloatValue(s.Min),
			data.FloatValue(s.Q25),
			data.FloatValue(s.Median),
			data.FloatValue(s.Q75),
			data.FloatValue(s.Max),
			data.FloatValue(s.IQR),
		}
	}
	return data.NewTable(cols, rows)
}
