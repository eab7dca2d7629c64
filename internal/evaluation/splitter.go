package evaluation

import (
	"fmt"
	"math"
	"math/rand"
)

// TrainTestSplitter partitions samples into train and test sets. The split
// is not stratified: class proportions follow the shuffle.
type TrainTestSplitter struct {
	testSize   float64
	randomSeed int64
	shuffle    bool
}

func NewTrainTestSplitter(testSize float64, randomSeed int64, shuffle bool) *TrainTestSplitter {
	return &TrainTestSplitter{
		testSize:   testSize,
		randomSeed: randomSeed,
		shuffle:    shuffle,
	}
}

func DefaultTrainTestSplitter() *TrainTestSplitter {
	return NewTrainTestSplitter(0.2, 42, true)
}

// SplitIndices returns the train and test row indices for n samples. The
// test set holds ceil(testSize*n) rows; both sets must be non-empty.
func (tts *TrainTestSplitter) SplitIndices(n int) ([]int, []int, error) {
	if n == 0 {
		return nil, nil, fmt.Errorf("cannot split empty dataset")
	}

	if tts.testSize <= 0 || tts.testSize >= 1 {
		return nil, nil, fmt.Errorf("test size must be between 0 and 1")
	}

	testCount := int(math.Ceil(float64(n) * tts.testSize))
	trainCount := n - testCount
	if trainCount < 1 {
		return nil, nil, fmt.Errorf("%d samples leave no training rows at test size %.2f", n, tts.testSize)
	}

	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}

	if tts.shuffle {
		rng := rand.New(rand.NewSource(tts.randomSeed))
		rng.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
	}

	return indices[testCount:], indices[:testCount], nil
}

func (tts *TrainTestSplitter) Split(X [][]float64, y []int) ([][]float64, [][]float64, []int, []int, error) {
	if len(X) != len(y) {
		return nil, nil, nil, nil, fmt.Errorf("x and y must have the same length")
	}

	trainIdx, testIdx, err := tts.SplitIndices(len(X))
	if err != nil {
		return nil, nil, nil, nil, err
	}

	XTrain, yTrain := Subset(X, y, trainIdx)
	XTest, yTest := Subset(X, y, testIdx)
	return XTrain, XTest, yTrain, yTest, nil
}

// Subset copies the rows at indices.
func Subset(X [][]float64, y []int, indices []int) ([][]float64, []int) {
	XOut := make([][]float64, len(indices))
	yOut := make([]int, len(indices))
	for i, idx := range indices {
		XOut[i] = make([]float64, len(X[idx]))
		copy(XOut[i], X[idx])
		yOut[i] = y[idx]
	}
	return XOut, yOut
}
