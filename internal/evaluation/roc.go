package evaluation

import (
	"fmt"
	"math"
	"sort"
)

// Curve is one receiver operating characteristic curve. AUC is NaN when the
// labels hold no positives or no negatives.
type Curve struct {
	Label string    `json:"label"`
	FPR   []float64 `json:"fpr"`
	TPR   []float64 `json:"tpr"`
	AUC   float64   `json:"-"`
}

// ROC holds one-vs-rest curves per class plus the micro-average over all
// (sample, class) pairs.
type ROC struct {
	Classes  []int   `json:"classes"`
	PerClass []Curve `json:"per_class"`
	Micro    Curve   `json:"micro"`
}

// ROCCurve sweeps the decision threshold over scores from high to low. Tied
// scores move together, so the curve has one point per distinct score.
func ROCCurve(label string, scores []float64, positive []bool) Curve {
	curve := Curve{Label: label, AUC: math.NaN()}

	P, N := 0, 0
	for _, pos := range positive {
		if pos {
			P++
		} else {
			N++
		}
	}
	if P == 0 || N == 0 {
		return curve
	}

	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	curve.FPR = []float64{0}
	curve.TPR = []float64{0}
	tp, fp := 0, 0
	for k, i := range order {
		if positive[i] {
			tp++
		} else {
			fp++
		}
		if k+1 < len(order) && scores[order[k+1]] == scores[i] {
			continue
		}
		curve.FPR = append(curve.FPR, float64(fp)/float64(N))
		curve.TPR = append(curve.TPR, float64(tp)/float64(P))
	}

	curve.AUC = trapezoid(curve.FPR, curve.TPR)
	return curve
}

func trapezoid(x, y []float64) float64 {
	area := 0.0
	for i := 1; i < len(x); i++ {
		area += (x[i] - x[i-1]) * (y[i] + y[i-1]) / 2
	}
	return area
}

// OneVsRest binarises yTrue against each class; proba columns must follow
// classes.
func OneVsRest(yTrue []int, proba [][]float64, classes []int) (*ROC, error) {
	if len(yTrue) != len(proba) {
		return nil, fmt.Errorf("labels and probabilities have different lengths: %d vs %d", len(yTrue), len(proba))
	}
	for i, p := range proba {
		if len(p) != len(classes) {
			return nil, fmt.Errorf("sample %d has %d probabilities, expected %d", i, len(p), len(classes))
		}
	}

	roc := &ROC{Classes: append([]int(nil), classes...)}
	microScores := make([]float64, 0, len(yTrue)*len(classes))
	microPositive := make([]bool, 0, len(yTrue)*len(classes))

	for k, class := range classes {
		scores := make([]float64, len(yTrue))
		positive := make([]bool, len(yTrue))
		for i, label := range yTrue {
			scores[i] = proba[i][k]
			positive[i] = label == class
		}
		roc.PerClass = append(roc.PerClass, ROCCurve(fmt.Sprintf("class %d", class), scores, positive))
	}

	for i, label := range yTrue {
		for k, class := range classes {
			microScores = append(microScores, proba[i][k])
			microPositive = append(microPositive, label == class)
		}
	}
	roc.Micro = ROCCurve("micro-average", microScores, microPositive)

	return roc, nil
}

// AUCs returns the per-class AUC keyed by class, skipping undefined ones.
func (r *ROC) AUCs() map[int]float64 {
	out := make(map[int]float64, len(r.Classes))
	for k, class := range r.Classes {
		if auc := r.PerClass[k].AUC; !math.IsNaN(auc) {
			out[class] = auc
		}
	}
	return out
}
