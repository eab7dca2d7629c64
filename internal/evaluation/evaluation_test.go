package evaluation

import (
	"context"
	"math"
	"sort"
	"strings"
	"testing"

	"github.com/Paul-Berdier/123PandaRoux/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitIndices(t *testing.T) {
	splitter := NewTrainTestSplitter(0.2, 42, true)

	train, test, err := splitter.SplitIndices(11)
	require.NoError(t, err)
	assert.Len(t, test, 3)
	assert.Len(t, train, 8)

	all := append(append([]int{}, train...), test...)
	sort.Ints(all)
	for i, v := range all {
		assert.Equal(t, i, v)
	}

	train2, test2, err := splitter.SplitIndices(11)
	require.NoError(t, err)
	assert.Equal(t, train, train2)
	assert.Equal(t, test, test2)
}

func TestSplitRejectsDegenerateInput(t *testing.T) {
	_, _, err := NewTrainTestSplitter(0.2, 1, true).SplitIndices(0)
	assert.Error(t, err)

	_, _, err = NewTrainTestSplitter(1.5, 1, true).SplitIndices(10)
	assert.Error(t, err)

	_, _, err = NewTrainTestSplitter(0.2, 1, true).SplitIndices(1)
	assert.Error(t, err)

	_, _, _, _, err = DefaultTrainTestSplitter().Split([][]float64{{1}}, []int{0, 1})
	assert.Error(t, err)
}

func TestSplitCopiesRows(t *testing.T) {
	X := [][]float64{{0}, {1}, {2}, {3}, {4}}
	y := []int{0, 1, 2, 3, 4}

	XTrain, XTest, yTrain, yTest, err := NewTrainTestSplitter(0.4, 3, false).Split(X, y)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{2}, {3}, {4}}, XTrain)
	assert.Equal(t, [][]float64{{0}, {1}}, XTest)
	assert.Equal(t, []int{2, 3, 4}, yTrain)
	assert.Equal(t, []int{0, 1}, yTest)

	XTrain[0][0] = 99
	assert.Equal(t, 2.0, X[2][0])
}

func TestCalculateMetrics(t *testing.T) {
	yTrue := []int{0, 0, 1, 1, 2, 2}
	yPred := []int{0, 1, 1, 1, 2, 0}

	m := CalculateMetrics(yTrue, yPred, []int{0, 1, 2})
	require.NotNil(t, m)

	assert.InDelta(t, 4.0/6.0, m.Accuracy, 1e-12)
	assert.Equal(t, [][]int{{1, 1, 0}, {0, 2, 0}, {1, 0, 1}}, m.ConfusionMatrix)
	assert.InDelta(t, 0.5, m.PerClassMetrics[0].Precision, 1e-12)
	assert.InDelta(t, 2.0/3.0, m.PerClassMetrics[1].Precision, 1e-12)
	assert.InDelta(t, 1.0, m.PerClassMetrics[1].Recall, 1e-12)
	assert.Equal(t, 2, m.PerClassMetrics[2].Support)

	report := m.Report()
	assert.Contains(t, report, "precision")
	assert.Contains(t, report, "weighted avg")
	assert.Equal(t, 9, len(strings.Split(strings.TrimRight(report, "\n"), "\n")))

	summary := strings.Split(strings.TrimRight(m.FormatMetrics(), "\n"), "\n")
	require.Len(t, summary, 4)
	assert.Equal(t, "Accuracy: 0.6667", summary[0])
	assert.Equal(t, "Balanced Accuracy: 0.6667", summary[1])
	assert.True(t, strings.HasPrefix(summary[2], "Macro Avg - Precision: "))
}

func TestCalculateMetricsClassOrder(t *testing.T) {
	m := CalculateMetrics([]int{3, 1}, []int{3, 3}, []int{3, 1})
	require.NotNil(t, m)
	assert.Equal(t, [][]int{{1, 0}, {1, 0}}, m.ConfusionMatrix)

	assert.Nil(t, CalculateMetrics(nil, nil, []int{0}))
	assert.Nil(t, CalculateMetrics([]int{1}, []int{1, 2}, []int{1, 2}))
}

func TestLabelSet(t *testing.T) {
	assert.Equal(t, []int{0, 1, 3, 5}, LabelSet([]int{3, 1}, []int{5, 0, 1}))
}

func TestROCCurvePerfectAndRandom(t *testing.T) {
	perfect := ROCCurve("p", []float64{0.9, 0.8, 0.2, 0.1}, []bool{true, true, false, false})
	assert.InDelta(t, 1.0, perfect.AUC, 1e-12)
	assert.Equal(t, 0.0, perfect.FPR[0])
	assert.Equal(t, 1.0, perfect.FPR[len(perfect.FPR)-1])
	assert.Equal(t, 1.0, perfect.TPR[len(perfect.TPR)-1])

	tied := ROCCurve("t", []float64{0.5, 0.5, 0.5, 0.5}, []bool{true, false, true, false})
	assert.InDelta(t, 0.5, tied.AUC, 1e-12)
	assert.Len(t, tied.FPR, 2)

	inverted := ROCCurve("i", []float64{0.1, 0.9}, []bool{true, false})
	assert.InDelta(t, 0.0, inverted.AUC, 1e-12)

	undefined := ROCCurve("u", []float64{0.3, 0.4}, []bool{false, false})
	assert.True(t, math.IsNaN(undefined.AUC))
}

func TestOneVsRest(t *testing.T) {
	yTrue := []int{0, 1, 2, 1}
	proba := [][]float64{
		{0.8, 0.1, 0.1},
		{0.1, 0.7, 0.2},
		{0.2, 0.2, 0.6},
		{0.3, 0.4, 0.3},
	}

	roc, err := OneVsRest(yTrue, proba, []int{0, 1, 2})
	require.NoError(t, err)
	require.Len(t, roc.PerClass, 3)
	for _, c := range roc.PerClass {
		assert.InDelta(t, 1.0, c.AUC, 1e-12, c.Label)
	}
	assert.InDelta(t, 1.0, roc.Micro.AUC, 1e-12)
	assert.Len(t, roc.AUCs(), 3)

	_, err = OneVsRest(yTrue, proba[:2], []int{0, 1, 2})
	assert.Error(t, err)
}

func TestLearningCurve(t *testing.T) {
	X := make([][]float64, 50)
	y := make([]int, 50)
	for i := range X {
		X[i] = []float64{float64(i)}
		y[i] = i % 2
		if i >= 25 {
			y[i] = 2
		}
	}
	params := models.DefaultBoosterParams()
	params.NEstimators = 5
	newModel := func() (models.Model, error) {
		return models.NewGradientBoosting(params), nil
	}

	curve, err := NewLearningCurveBuilder(3).Build(context.Background(), newModel, X[:40], y[:40], X[40:], y[40:])
	require.NoError(t, err)
	require.Len(t, curve.Points, 10)

	assert.Equal(t, 4, curve.Points[0].TrainSize)
	assert.Equal(t, 40, curve.Points[9].TrainSize)
	for i := 1; i < len(curve.Points); i++ {
		assert.GreaterOrEqual(t, curve.Points[i].TrainSize, curve.Points[i-1].TrainSize)
	}
	last := curve.Points[9]
	assert.InDelta(t, last.PrefixScore, last.TrainScore, 1e-12)
	assert.Equal(t, 1.0, last.TestScore)
}

func TestLearningCurveCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	newModel := func() (models.Model, error) {
		return models.NewGradientBoosting(models.DefaultBoosterParams()), nil
	}

	_, err := NewLearningCurveBuilder(1).Build(ctx, newModel, [][]float64{{1}, {2}}, []int{0, 1}, nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
