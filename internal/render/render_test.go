package render

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Paul-Berdier/123PandaRoux/internal/data"
	"github.com/Paul-Berdier/123PandaRoux/internal/evaluation"
	"github.com/Paul-Berdier/123PandaRoux/internal/stats"
)

func assertPNG(t *testing.T, path string) {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Greater(t, len(raw), 8)
	assert.Equal(t, "\x89PNG", string(raw[:4]))
}

func TestCorrelationHeatmap(t *testing.T) {
	table, err := data.ReadCSVFrom(strings.NewReader("a,b,c,k\n1,2,3,7\n2,4,1,7\n3,5,2,7\n4,9,0,7\n"))
	require.NoError(t, err)
	m, err := stats.CorrelationMatrix(table)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "docs", "heatmap.png")
	require.NoError(t, NewPNG(0, 0).CorrelationHeatmap(m, path))
	assertPNG(t, path)
}

func TestConfusionMatrix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "confusion.png")
	matrix := [][]int{{3, 1, 0}, {0, 4, 1}, {0, 0, 0}}
	require.NoError(t, NewPNG(4, 4).ConfusionMatrix(matrix, []string{"aucun", "[seisme]", "[innondation]"}, path))
	assertPNG(t, path)

	assert.Error(t, NewPNG(4, 4).ConfusionMatrix(matrix, []string{"a"}, path))
}

func TestROCAndLearningCurve(t *testing.T) {
	dir := t.TempDir()
	yTrue := []int{0, 1, 2, 0, 1, 2}
	proba := [][]float64{
		{0.7, 0.2, 0.1}, {0.2, 0.6, 0.2}, {0.1, 0.3, 0.6},
		{0.4, 0.4, 0.2}, {0.3, 0.3, 0.4}, {0.2, 0.2, 0.6},
	}
	roc, err := evaluation.OneVsRest(yTrue, proba, []int{0, 1, 2})
	require.NoError(t, err)

	rocPath := filepath.Join(dir, "roc.png")
	require.NoError(t, NewPNG(5, 5).ROC(roc, []string{"aucun", "[seisme]", "[innondation]"}, rocPath))
	assertPNG(t, rocPath)

	curve := &evaluation.LearningCurve{Points: []evaluation.LearningPoint{
		{Fraction: 0.5, TrainSize: 10, PrefixScore: 1, TrainScore: 0.8, TestScore: 0.7},
		{Fraction: 1, TrainSize: 20, PrefixScore: 0.9, TrainScore: 0.9, TestScore: 0.75},
	}}
	lcPath := filepath.Join(dir, "learning_curve.png")
	require.NoError(t, NewPNG(5, 5).LearningCurve(curve, lcPath))
	assertPNG(t, lcPath)

	assert.Error(t, NewPNG(5, 5).LearningCurve(&evaluation.LearningCurve{}, lcPath))
}

func TestNopRenderer(t *testing.T) {
	var r Renderer = Nop{}
	assert.NoError(t, r.ConfusionMatrix(nil, nil, "unused"))
	assert.NoError(t, r.LearningCurve(nil, "unused"))
}
