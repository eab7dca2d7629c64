package prediction

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Paul-Berdier/123PandaRoux/internal/data"
	"github.com/Paul-Berdier/123PandaRoux/internal/models"
	"github.com/Paul-Berdier/123PandaRoux/internal/persistence"
	"github.com/Paul-Berdier/123PandaRoux/internal/preprocessing"
)

func readTable(t *testing.T, csv string) *data.Table {
	t.Helper()
	table, err := data.ReadCSVFrom(strings.NewReader(csv))
	require.NoError(t, err)
	return table
}

func trainedBundle(t *testing.T) *persistence.ModelBundle {
	t.Helper()
	var X [][]float64
	var y []int
	for i := 0; i < 40; i++ {
		zone := float64(i%5 + 1)
		hum := float64(i%10) / 10
		seis := float64(i % 4)
		X = append(X, []float64{zone, hum, seis})
		y = append(y, i%4)
	}
	params := models.DefaultBoosterParams()
	params.NEstimators = 10
	model := models.NewGradientBoosting(params)
	require.NoError(t, model.Fit(X, y))

	bundle := persistence.NewModelBundle(model, []string{"quartier", "humidite", "sismicite"}, "catastrophe")
	bundle.DateColumn = "date"
	bundle.Encoder = preprocessing.NewLabelEncoderFromMapping(preprocessing.Mapping{
		"aucun": 0, "[seisme]": 1, "[innondation]": 2, "[innondation; seisme]": 3,
	})
	return bundle
}

func TestPreprocessDayOffsetAndCoercion(t *testing.T) {
	table := readTable(t, "date,humidite,sismicite\n2024-01-03,0.5,2\n2024-01-01,abc,1\n2024-01-11,0.7,x3\n2024-01-02,0.1,4\n")

	out, kept, err := Preprocess(table, "date")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 3}, kept)

	days, err := out.Floats("date")
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 1}, days)

	hum, err := out.Floats("humidite")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 0.1}, hum)
}

func TestPreprocessAllRowsDropped(t *testing.T) {
	table := readTable(t, "humidite,sismicite\nabc,1\n0.2,\n")

	_, _, err := Preprocess(table, "date")
	var empty *EmptyInputError
	require.True(t, errors.As(err, &empty))
	assert.Equal(t, 2, empty.Rows)
}

func TestPredictIsolatedRow(t *testing.T) {
	bundle := trainedBundle(t)
	table := readTable(t, "date,quartier,humidite,sismicite,catastrophe\n2024-03-01,3,0.2,1,1\n")

	results, err := NewPredictor(bundle, nil).Predict(context.Background(), table)
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.Contains(t, []int{0, 1, 2, 3}, r.Label)
	assert.Equal(t, bundle.Encoder.Decode(r.Label), r.Name)
	require.NotNil(t, r.Actual)
	assert.Equal(t, 1, *r.Actual)
	require.Len(t, r.Probabilities, 4)
	sum := 0.0
	for _, p := range r.Probabilities {
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestPredictReordersColumnsAndBatches(t *testing.T) {
	bundle := trainedBundle(t)
	ordered := readTable(t, "quartier,humidite,sismicite\n1,0.1,0\n2,0.5,3\n5,0.9,2\nZone,0.3,1\n")
	shuffled := readTable(t, "sismicite,quartier,humidite\n0,1,0.1\n3,2,0.5\n2,5,0.9\n1,Zone,0.3\n")

	p := NewPredictor(bundle, nil)
	p.SetBatchSize(2)

	a, err := p.Predict(context.Background(), ordered)
	require.NoError(t, err)
	b, err := p.Predict(context.Background(), shuffled)
	require.NoError(t, err)

	require.Len(t, a, 3)
	assert.Equal(t, []int{0, 1, 2}, []int{a[0].Row, a[1].Row, a[2].Row})
	for i := range a {
		assert.Equal(t, a[i].Label, b[i].Label)
		assert.Nil(t, a[i].Actual)
	}
}

func TestPredictSchemaMismatch(t *testing.T) {
	bundle := trainedBundle(t)
	table := readTable(t, "quartier,humidite,vent\n1,0.1,3\n")

	_, err := NewPredictor(bundle, nil).Predict(context.Background(), table)
	var mismatch *SchemaMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, []string{"sismicite"}, mismatch.Missing)
	assert.Equal(t, []string{"vent"}, mismatch.Extra)
}

func TestPredictCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	table := readTable(t, "quartier,humidite,sismicite\n1,0.1,0\n")
	_, err := NewPredictor(trainedBundle(t), nil).Predict(ctx, table)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWriteResults(t *testing.T) {
	actual := 2
	results := []Result{{Row: 0, Label: 2, Name: "[innondation]", Probabilities: []float64{0.1, 0.2, 0.6, 0.1}, Actual: &actual}}
	path := filepath.Join(t.TempDir(), "predictions.csv")
	require.NoError(t, WriteResults(results, []int{0, 1, 2, 3}, path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "row,prediction,prediction_name,proba_0,proba_1,proba_2,proba_3,actual", lines[0])
	assert.Equal(t, "0,2,[innondation],0.1,0.2,0.6,0.1,2", lines[1])
	assert.True(t, results[0].Correct())
}
