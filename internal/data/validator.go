package data

import (
	"fmt"
	"math"
	"sort"
)

type DataValidator struct{}

func NewDataValidator() *DataValidator {
	return &DataValidator{}
}

// ValidateDataset checks a feature matrix is rectangular, finite and matches
// its labels.
func (dv *DataValidator) ValidateDataset(X [][]float64, y []int) error {
	if len(X) == 0 {
		return &EmptyTableError{Op: "validate dataset"}
	}

	if len(X) != len(y) {
		return fmt.Errorf("feature matrix and labels have different lengths: %d vs %d", len(X), len(y))
	}

	nFeatures := len(X[0])
	if nFeatures == 0 {
		return fmt.Errorf("features cannot be empty")
	}

	for i, sample := range X {
		if len(sample) != nFeatures {
			return fmt.Errorf("inconsistent feature count at sample %d: expected %d, got %d", i, nFeatures, len(sample))
		}
		for j, value := range sample {
			if math.IsNaN(value) || math.IsInf(value, 0) {
				return fmt.Errorf("missing value at sample %d, feature %d", i, j)
			}
		}
	}

	return nil
}

func (dv *DataValidator) ValidateLabels(y []int) error {
	if len(y) == 0 {
		return fmt.Errorf("labels are empty")
	}

	classCount := make(map[int]int)
	for _, label := range y {
		classCount[label]++
	}

	if len(classCount) < 2 {
		return fmt.Errorf("dataset must have at least 2 classes, found %d", len(classCount))
	}

	return nil
}

func (dv *DataValidator) ValidateTrainTestSplit(XTrain, XTest [][]float64, yTrain, yTest []int) error {
	if err := dv.ValidateDataset(XTrain, yTrain); err != nil {
		return fmt.Errorf("training set validation failed: %w", err)
	}

	if err := dv.ValidateDataset(XTest, yTest); err != nil {
		return fmt.Errorf("test set validation failed: %w", err)
	}

	if len(XTrain[0]) != len(XTest[0]) {
		return fmt.Errorf("train and test sets have different feature counts: %d vs %d", len(XTrain[0]), len(XTest[0]))
	}

	return nil
}

type DatasetStats struct {
	Samples           int
	Features          int
	Classes           []int
	ClassDistribution map[int]int
}

func (dv *DataValidator) GetDatasetStats(X [][]float64, y []int) DatasetStats {
	stats := DatasetStats{
		Samples:           len(X),
		ClassDistribution: make(map[int]int),
	}
	if len(X) > 0 {
		stats.Features = len(X[0])
	}

	for _, label := range y {
		stats.ClassDistribution[label]++
	}
	for class := range stats.ClassDistribution {
		stats.Classes = append(stats.Classes, class)
	}
	sort.Ints(stats.Classes)

	return stats
}
