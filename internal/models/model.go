package models

import (
	"errors"
	"sort"
)

var ErrNotFitted = errors.New("model is not fitted")

type Model interface {
	Fit(X [][]float64, y []int) error
	Predict(X [][]float64) []int
	PredictProba(X [][]float64) [][]float64
	GetName() string
	GetParams() map[string]any
	GetClasses() []int
	Reset()
}

type BaseModel struct {
	Name    string
	Classes []int
}

func (bm *BaseModel) GetName() string {
	return bm.Name
}

func (bm *BaseModel) GetClasses() []int {
	classes := make([]int, len(bm.Classes))
	copy(classes, bm.Classes)
	return classes
}

// ExtractClasses returns the distinct labels of y in ascending order.
func ExtractClasses(y []int) []int {
	classMap := make(map[int]bool)
	for _, label := range y {
		classMap[label] = true
	}

	classes := make([]int, 0, len(classMap))
	for class := range classMap {
		classes = append(classes, class)
	}
	sort.Ints(classes)

	return classes
}
