package evaluation

import (
	"context"
	"fmt"
	"sync"

	"github.com/Paul-Berdier/123PandaRoux/internal/models"
)

// LearningPoint scores a model refitted on the first TrainSize training rows.
// PrefixScore is accuracy on that prefix, TrainScore on the whole training
// partition and TestScore on the held-out partition.
type LearningPoint struct {
	Fraction    float64 `json:"fraction"`
	TrainSize   int     `json:"train_size"`
	PrefixScore float64 `json:"prefix_score"`
	TrainScore  float64 `json:"train_score"`
	TestScore   float64 `json:"test_score"`
}

type LearningCurve struct {
	Points []LearningPoint `json:"points"`
}

// DefaultFractions are ten evenly spaced fractions from 0.1 to 1.0.
func DefaultFractions() []float64 {
	fractions := make([]float64, 10)
	for i := range fractions {
		fractions[i] = 0.1 + 0.1*float64(i)
	}
	fractions[9] = 1.0
	return fractions
}

type LearningCurveBuilder struct {
	Fractions  []float64
	MaxWorkers int
}

func NewLearningCurveBuilder(maxWorkers int) *LearningCurveBuilder {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &LearningCurveBuilder{Fractions: DefaultFractions(), MaxWorkers: maxWorkers}
}

// Build fits one fresh model per fraction. newModel must return an
// independent instance on every call.
func (lb *LearningCurveBuilder) Build(
	ctx context.Context,
	newModel func() (models.Model, error),
	XTrain [][]float64, yTrain []int,
	XTest [][]float64, yTest []int,
) (*LearningCurve, error) {
	if len(XTrain) == 0 {
		return nil, fmt.Errorf("cannot build a learning curve without training rows")
	}

	points := make([]LearningPoint, len(lb.Fractions))
	errs := make([]error, len(lb.Fractions))

	workers := lb.MaxWorkers
	if workers > len(lb.Fractions) {
		workers = len(lb.Fractions)
	}

	jobs := make(chan int, len(lb.Fractions))
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				if err := ctx.Err(); err != nil {
					errs[idx] = err
					continue
				}
				points[idx], errs[idx] = lb.evaluatePoint(newModel, lb.Fractions[idx], XTrain, yTrain, XTest, yTest)
			}
		}()
	}

	for i := range lb.Fractions {
		jobs <- i
	}
	close(jobs)

	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("learning curve point %.1f failed: %w", lb.Fractions[i], err)
		}
	}

	return &LearningCurve{Points: points}, nil
}

func (lb *LearningCurveBuilder) evaluatePoint(
	newModel func() (models.Model, error),
	fraction float64,
	XTrain [][]float64, yTrain []int,
	XTest [][]float64, yTest []int,
) (LearningPoint, error) {
	size := int(fraction * float64(len(XTrain)))
	if size < 1 {
		size = 1
	}
	if size > len(XTrain) {
		size = len(XTrain)
	}

	model, err := newModel()
	if err != nil {
		return LearningPoint{}, err
	}
	if err := model.Fit(XTrain[:size], yTrain[:size]); err != nil {
		return LearningPoint{}, err
	}

	point := LearningPoint{
		Fraction:    fraction,
		TrainSize:   size,
		PrefixScore: Accuracy(yTrain[:size], model.Predict(XTrain[:size])),
		TrainScore:  Accuracy(yTrain, model.Predict(XTrain)),
	}
	if len(XTest) > 0 {
		point.TestScore = Accuracy(yTest, model.Predict(XTest))
	}
	return point, nil
}
