package prediction

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/Paul-Berdier/123PandaRoux/internal/data"
	"github.com/Paul-Berdier/123PandaRoux/internal/persistence"
)

// Result is the prediction for one input row.
type Result struct {
	Row           int
	Label         int
	Name          string
	Probabilities []float64
	Actual        *int
}

// Correct reports whether the input row carried a label equal to the
// prediction.
func (r Result) Correct() bool {
	return r.Actual != nil && *r.Actual == r.Label
}

type Predictor struct {
	bundle *persistence.ModelBundle
	batch  *data.BatchProcessor
	log    *zap.Logger
}

func NewPredictor(bundle *persistence.ModelBundle, log *zap.Logger) *Predictor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Predictor{
		bundle: bundle,
		batch:  data.NewBatchProcessor(0),
		log:    log,
	}
}

func (p *Predictor) SetBatchSize(size int) {
	p.batch.SetBatchSize(size)
}

// Classes is the label order of Result.Probabilities.
func (p *Predictor) Classes() []int {
	return p.bundle.Classes
}

// Predict scores every usable row of t. A target column, when present, is
// read as the actual label and removed before scoring. The date column is
// removed too unless the model was trained on it.
func (p *Predictor) Predict(ctx context.Context, t *data.Table) ([]Result, error) {
	b := p.bundle
	actual := actualLabels(t, b.Target)

	input := t.Drop(b.Target)
	if !b.UsesDate() {
		input = input.Drop(b.DateColumn)
	}

	prepared, kept, err := Preprocess(input, b.DateColumn)
	if err != nil {
		return nil, err
	}
	if dropped := t.Len() - prepared.Len(); dropped > 0 {
		p.log.Warn("dropped rows with missing values", zap.Int("dropped", dropped), zap.Int("rows", t.Len()))
	}

	if err := checkSchema(b.Features, prepared.Names()); err != nil {
		return nil, err
	}
	prepared, err = prepared.Select(b.Features...)
	if err != nil {
		return nil, err
	}
	X, err := matrix(prepared)
	if err != nil {
		return nil, err
	}

	results := make([]Result, len(X))
	err = p.batch.ProcessRows(len(X), func(start, end int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		window := X[start:end]
		labels := b.Model.Predict(window)
		proba := b.Model.PredictProba(window)
		if len(labels) != len(window) || len(proba) != len(window) {
			return fmt.Errorf("model returned %d predictions for %d rows", len(labels), len(window))
		}
		for i := range window {
			src := kept[start+i]
			results[start+i] = Result{
				Row:           src,
				Label:         labels[i],
				Name:          b.Encoder.Decode(labels[i]),
				Probabilities: proba[i],
				Actual:        actual[src],
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, r := range results {
		fields := []zap.Field{zap.Int("row", r.Row), zap.Int("label", r.Label), zap.String("name", r.Name)}
		if r.Actual != nil {
			fields = append(fields, zap.Int("actual", *r.Actual))
		}
		p.log.Info("prediction", fields...)
	}
	return results, nil
}

func actualLabels(t *data.Table, target string) []*int {
	out := make([]*int, t.Len())
	values, err := t.Values(target)
	if err != nil {
		return out
	}
	for i, v := range values {
		if v.Null {
			continue
		}
		d, ok := data.ParseNumber(v.Raw)
		if !ok || !d.IsInteger() {
			continue
		}
		label := int(d.IntPart())
		out[i] = &label
	}
	return out
}

func matrix(t *data.Table) ([][]float64, error) {
	X := make([][]float64, t.Len())
	for i := range X {
		X[i] = make([]float64, t.Width())
	}
	for j, name := range t.Names() {
		col, err := t.Floats(name)
		if err != nil {
			return nil, err
		}
		for i, v := range col {
			X[i][j] = v
		}
	}
	return X, nil
}

// ResultsTable lays results out one row each: source row, predicted code and
// name, one probability column per class, and the actual label when known.
func ResultsTable(results []Result, classes []int) (*data.Table, error) {
	cols := []data.Column{
		{Name: "row", Kind: data.KindInt},
		{Name: "prediction", Kind: data.KindInt},
		{Name: "prediction_name", Kind: data.KindString},
	}
	for _, c := range classes {
		cols = append(cols, data.Column{Name: "proba_" + strconv.Itoa(c), Kind: data.KindFloat})
	}
	cols = append(cols, data.Column{Name: "actual", Kind: data.KindInt})

	rows := make([][]data.Value, len(results))
	for i, r := range results {
		row := []data.Value{
			data.IntValue(int64(r.Row)),
			data.IntValue(int64(r.Label)),
			data.StringValue(r.Name),
		}
		for k := range classes {
			if k < len(r.Probabilities) {
				row = append(row, data.FloatValue(r.Probabilities[k]))
			} else {
				row = append(row, data.NullValue())
			}
		}
		if r.Actual != nil {
			row = append(row, data.IntValue(int64(*r.Actual)))
		} else {
			row = append(row, data.NullValue())
		}
		rows[i] = row
	}
	return data.NewTable(cols, rows)
}

func WriteResults(results []Result, classes []int, filename string) error {
	t, err := ResultsTable(results, classes)
	if err != nil {
		return err
	}
	return data.WriteCSV(t, filename)
}
