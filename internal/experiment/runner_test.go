package experiment

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Paul-Berdier/123PandaRoux/internal/data"
	"github.com/Paul-Berdier/123PandaRoux/internal/persistence"
	"github.com/Paul-Berdier/123PandaRoux/internal/preprocessing"
	"github.com/Paul-Berdier/123PandaRoux/internal/render"
	"github.com/Paul-Berdier/123PandaRoux/internal/search"
	"github.com/Paul-Berdier/123PandaRoux/internal/stats"
)

// catastropheTable has four classes decided by humidity and seismicity.
func catastropheTable(t *testing.T, rows int) *data.Table {
	t.Helper()
	var b strings.Builder
	b.WriteString("date,quartier,humidite,sismicite,catastrophe\n")
	for i := 0; i < rows; i++ {
		hum := float64(i*37%100) / 100
		seis := float64(i*53%100) / 10
		label := 0
		if seis > 5 {
			label |= 1
		}
		if hum > 0.5 {
			label |= 2
		}
		fmt.Fprintf(&b, "2024-01-%02d,%d,%.2f,%.1f,%d\n", i%28+1, i%5+1, hum, seis, label)
	}
	table, err := data.ReadCSVFrom(strings.NewReader(b.String()))
	require.NoError(t, err)
	return table
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.Profile = "full"
	opts.Trials = 6
	opts.StartupTrials = 3
	opts.Encoder = preprocessing.NewLabelEncoderFromMapping(preprocessing.Mapping{
		"aucun": 0, "[seisme]": 1, "[innondation]": 2, "[innondation; seisme]": 3,
	})
	return opts
}

func TestBuildDataset(t *testing.T) {
	table, err := data.ReadCSVFrom(strings.NewReader(
		"date,humidite,sismicite,catastrophe\n2024-01-01,0.5,1,0\n2024-01-02,,2,1\n2024-01-03,0.7,3,\n2024-01-04,0.2,4,3\n"))
	require.NoError(t, err)

	ds, err := BuildDataset(table, "catastrophe", "date")
	require.NoError(t, err)
	assert.Equal(t, []string{"humidite", "sismicite"}, ds.Features)
	assert.Equal(t, [][]float64{{0.5, 1}, {0.2, 4}}, ds.X)
	assert.Equal(t, []int{0, 3}, ds.Y)
	assert.Equal(t, 2, ds.Dropped)
}

func TestBuildDatasetTargetErrors(t *testing.T) {
	table, err := data.ReadCSVFrom(strings.NewReader("humidite,catastrophe\n0.5,aucun\n0.2,[seisme]\n"))
	require.NoError(t, err)

	var targetErr *stats.TargetColumnError
	_, err = BuildDataset(table, "catastrophe", "date")
	assert.True(t, errors.As(err, &targetErr))

	_, err = BuildDataset(table, "label", "date")
	assert.True(t, errors.As(err, &targetErr))

	fractional, err := data.ReadCSVFrom(strings.NewReader("humidite,catastrophe\n0.5,0.5\n0.2,1\n"))
	require.NoError(t, err)
	_, err = BuildDataset(fractional, "catastrophe", "date")
	assert.True(t, errors.As(err, &targetErr))
}

func TestRunSelectsBestTrialAndPredictsKnownLabels(t *testing.T) {
	table := catastropheTable(t, 80)
	var seen []search.Trial
	runner := NewRunner(testOptions(), nil, nil)
	runner.OnTrial(func(tr search.Trial) { seen = append(seen, tr) })

	res, err := runner.Run(context.Background(), table)
	require.NoError(t, err)

	assert.Len(t, seen, 6)
	require.Len(t, res.Trials, 6)
	for _, tr := range res.Trials {
		assert.GreaterOrEqual(t, res.Best.Score, tr.Score)
	}
	assert.Equal(t, 64, res.TrainRows)
	assert.Equal(t, 16, res.TestRows)
	assert.Equal(t, []string{"quartier", "humidite", "sismicite"}, res.Dataset.Features)
	assert.Equal(t, "GradientBoosting", res.Model.GetName())
	assert.Equal(t, []int{0, 1, 2, 3}, res.Model.GetClasses())

	for _, label := range res.Model.Predict(res.Dataset.X) {
		assert.Contains(t, []int{0, 1, 2, 3}, label)
	}

	require.Len(t, res.LearningCurve.Points, 10)
	assert.Equal(t, 6, res.LearningCurve.Points[0].TrainSize)
	assert.Equal(t, 64, res.LearningCurve.Points[9].TrainSize)
	assert.Len(t, res.Metrics.ConfusionMatrix, len(res.Metrics.Classes))
	assert.Equal(t, res.Metrics.Accuracy, res.Bundle.Metadata.Accuracy)
}

func TestRunIsReproducible(t *testing.T) {
	table := catastropheTable(t, 60)
	a, err := NewRunner(testOptions(), nil, nil).Run(context.Background(), table)
	require.NoError(t, err)
	b, err := NewRunner(testOptions(), nil, nil).Run(context.Background(), table)
	require.NoError(t, err)

	assert.Equal(t, a.Best.Point, b.Best.Point)
	assert.Equal(t, a.Metrics.Accuracy, b.Metrics.Accuracy)
}

func TestEmitWritesArtifacts(t *testing.T) {
	table := catastropheTable(t, 60)
	runner := NewRunner(testOptions(), nil, nil)
	res, err := runner.Run(context.Background(), table)
	require.NoError(t, err)

	dir := t.TempDir()
	out := Artifacts{
		Model:    filepath.Join(dir, "models", "ml_model.bin"),
		Metadata: filepath.Join(dir, "models", "ml_model.json"),
		Report:   filepath.Join(dir, "models", "training_report.json"),
		Trials:   filepath.Join(dir, "models", "trials.csv"),
		ROC:      filepath.Join(dir, "docs", "roc.png"),
	}
	require.NoError(t, runner.Emit(res, out, render.Nop{}))

	bundle, err := persistence.LoadModelBundle(out.Model)
	require.NoError(t, err)
	assert.Equal(t, res.Dataset.Features, bundle.Features)
	assert.Equal(t, "[seisme]", bundle.Encoder.Decode(1))

	raw, err := os.ReadFile(out.Report)
	require.NoError(t, err)
	var rep map[string]any
	require.NoError(t, json.Unmarshal(raw, &rep))
	assert.Equal(t, "full", rep["profile"])
	assert.Contains(t, rep["classification_report"], "weighted avg")

	trials, err := data.ReadCSV(out.Trials)
	require.NoError(t, err)
	assert.Equal(t, 6, trials.Len())
	assert.True(t, trials.HasColumn("learning_rate"))
}

func TestExportTrials(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trials.csv")
	trials := []search.Trial{
		{Number: 0, State: search.TrialComplete, Score: 0.75, Point: search.Point{"max_depth": 4, "gamma": 0.5}},
		{Number: 1, State: search.TrialFailed, Err: "bad", Point: search.Point{"max_depth": 9, "gamma": 1}},
	}
	require.NoError(t, ExportTrials(trials, []string{"gamma", "max_depth"}, path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		"Trial,State,Score,DurationMs,gamma,max_depth,Error\n0,complete,0.7500,0,0.5,4,\n1,failed,0.0000,0,1,9,bad\n",
		string(raw))
}
