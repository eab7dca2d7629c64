package evaluation

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

type ClassificationMetrics struct {
	Accuracy          float64              `json:"accuracy"`
	BalancedAccuracy  float64              `json:"balanced_accuracy"`
	MacroPrecision    float64              `json:"macro_precision"`
	MacroRecall       float64              `json:"macro_recall"`
	MacroF1           float64              `json:"macro_f1"`
	WeightedPrecision float64              `json:"weighted_precision"`
	WeightedRecall    float64              `json:"weighted_recall"`
	WeightedF1        float64              `json:"weighted_f1"`
	Classes           []int                `json:"classes"`
	PerClassMetrics   map[int]ClassMetrics `json:"per_class_metrics"`
	ConfusionMatrix   [][]int              `json:"confusion_matrix"`
	ClassSupport      map[int]int          `json:"class_support"`
	NumSamples        int                  `json:"num_samples"`
	NumClasses        int                  `json:"num_classes"`
}

type ClassMetrics struct {
	Precision   float64 `json:"precision"`
	Recall      float64 `json:"recall"`
	F1Score     float64 `json:"f1_score"`
	Specificity float64 `json:"specificity"`
	Support     int     `json:"support"`
}

// Accuracy is the fraction of matching labels; 0 for empty input.
func Accuracy(yTrue, yPred []int) float64 {
	if len(yTrue) == 0 || len(yTrue) != len(yPred) {
		return 0
	}
	correct := 0
	for i, pred := range yPred {
		if pred == yTrue[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(yTrue))
}

// LabelSet merges label lists into one ascending list without duplicates.
func LabelSet(lists ...[]int) []int {
	seen := make(map[int]bool)
	var out []int
	for _, list := range lists {
		for _, v := range list {
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	sort.Ints(out)
	return out
}

// CalculateMetrics scores predictions against truth. Rows and columns of the
// confusion matrix follow classes (rows true, columns predicted). Returns nil
// when the inputs are empty or of different lengths.
func CalculateMetrics(yTrue, yPred []int, classes []int) *ClassificationMetrics {
	if len(yTrue) != len(yPred) || len(yTrue) == 0 || len(classes) == 0 {
		return nil
	}

	numSamples := len(yTrue)
	numClasses := len(classes)

	confusionMatrix := buildConfusionMatrix(yTrue, yPred, classes)

	classSupport := make(map[int]int)
	for _, class := range yTrue {
		classSupport[class]++
	}

	perClassMetrics := make(map[int]ClassMetrics)
	var macroPrec, macroRec, macroF1 float64
	var weightedPrec, weightedRec, weightedF1 float64
	totalSupport := 0

	for i, class := range classes {
		tp := confusionMatrix[i][i]
		fp := 0
		fn := 0
		tn := 0

		for j := range classes {
			if j != i {
				fp += confusionMatrix[j][i]
				fn += confusionMatrix[i][j]
			}
		}

		for j := range classes {
			for k := range classes {
				if j != i && k != i {
					tn += confusionMatrix[j][k]
				}
			}
		}

		precision := safeDivide(float64(tp), float64(tp+fp))
		recall := safeDivide(float64(tp), float64(tp+fn))
		f1 := safeDivide(2*precision*recall, precision+recall)
		specificity := safeDivide(float64(tn), float64(tn+fp))

		support := classSupport[class]
		perClassMetrics[class] = ClassMetrics{
			Precision:   precision,
			Recall:      recall,
			F1Score:     f1,
			Specificity: specificity,
			Support:     support,
		}

		macroPrec += precision
		macroRec += recall
		macroF1 += f1

		weightedPrec += precision * float64(support)
		weightedRec += recall * float64(support)
		weightedF1 += f1 * float64(support)
		totalSupport += support
	}

	macroPrec /= float64(numClasses)
	macroRec /= float64(numClasses)
	macroF1 /= float64(numClasses)

	weightedPrec = safeDivide(weightedPrec, float64(totalSupport))
	weightedRec = safeDivide(weightedRec, float64(totalSupport))
	weightedF1 = safeDivide(weightedF1, float64(totalSupport))

	balancedAccuracy := 0.0
	present := 0
	for _, class := range classes {
		if classSupport[class] > 0 {
			balancedAccuracy += perClassMetrics[class].Recall
			present++
		}
	}
	balancedAccuracy = safeDivide(balancedAccuracy, float64(present))

	return &ClassificationMetrics{
		Accuracy:          Accuracy(yTrue, yPred),
		BalancedAccuracy:  balancedAccuracy,
		MacroPrecision:    macroPrec,
		MacroRecall:       macroRec,
		MacroF1:           macroF1,
		WeightedPrecision: weightedPrec,
		WeightedRecall:    weightedRec,
		WeightedF1:        weightedF1,
		Classes:           append([]int(nil), classes...),
		PerClassMetrics:   perClassMetrics,
		ConfusionMatrix:   confusionMatrix,
		ClassSupport:      classSupport,
		NumSamples:        numSamples,
		NumClasses:        numClasses,
	}
}

func buildConfusionMatrix(yTrue, yPred []int, classes []int) [][]int {
	numClasses := len(classes)
	matrix := make([][]int, numClasses)
	for i := range matrix {
		matrix[i] = make([]int, numClasses)
	}

	classToIdx := make(map[int]int)
	for i, class := range classes {
		classToIdx[class] = i
	}

	for i := range yTrue {
		trueIdx, trueOk := classToIdx[yTrue[i]]
		predIdx, predOk := classToIdx[yPred[i]]
		if trueOk && predOk {
			matrix[trueIdx][predIdx]++
		}
	}

	return matrix
}

func safeDivide(numerator, denominator float64) float64 {
	if denominator == 0 {
		return 0.0
	}
	result := numerator / denominator
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return 0.0
	}
	return result
}

// FormatMetrics summarises the run-level scores, one per line.
func (m *ClassificationMetrics) FormatMetrics() string {
	result := fmt.Sprintf("Accuracy: %.4f\n", m.Accuracy)
	result += fmt.Sprintf("Balanced Accuracy: %.4f\n", m.BalancedAccuracy)
	result += fmt.Sprintf("Macro Avg - Precision: %.4f, Recall: %.4f, F1: %.4f\n",
		m.MacroPrecision, m.MacroRecall, m.MacroF1)
	result += fmt.Sprintf("Weighted Avg - Precision: %.4f, Recall: %.4f, F1: %.4f\n",
		m.WeightedPrecision, m.WeightedRecall, m.WeightedF1)
	return result
}

// Report renders per-class precision, recall, F1 and support followed by
// accuracy and the macro and weighted averages.
func (m *ClassificationMetrics) Report() string {
	var b strings.Builder
	row := "%12s %9.2f %9.2f %9.2f %9d\n"

	fmt.Fprintf(&b, "%12s %9s %9s %9s %9s\n\n", "", "precision", "recall", "f1-score", "support")
	for _, class := range m.Classes {
		c := m.PerClassMetrics[class]
		fmt.Fprintf(&b, row, fmt.Sprint(class), c.Precision, c.Recall, c.F1Score, c.Support)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "%12s %9s %9s %9.2f %9d\n", "accuracy", "", "", m.Accuracy, m.NumSamples)
	fmt.Fprintf(&b, row, "macro avg", m.MacroPrecision, m.MacroRecall, m.MacroF1, m.NumSamples)
	fmt.Fprintf(&b, row, "weighted avg", m.WeightedPrecision, m.WeightedRecall, m.WeightedF1, m.NumSamples)
	return b.String()
}
