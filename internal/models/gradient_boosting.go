package models

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

const hessianFloor = 1e-16

// BoosterParams are the hyperparameters of GradientBoosting. They are fixed
// once the model is fitted.
type BoosterParams struct {
	NEstimators     int     `json:"n_estimators" yaml:"n_estimators"`
	LearningRate    float64 `json:"learning_rate" yaml:"learning_rate"`
	MaxDepth        int     `json:"max_depth" yaml:"max_depth"`
	Subsample       float64 `json:"subsample" yaml:"subsample"`
	ColsampleByTree float64 `json:"colsample_bytree" yaml:"colsample_bytree"`
	Gamma           float64 `json:"gamma" yaml:"gamma"`
	MinChildWeight  float64 `json:"min_child_weight" yaml:"min_child_weight"`
	RegAlpha        float64 `json:"reg_alpha" yaml:"reg_alpha"`
	RegLambda       float64 `json:"reg_lambda" yaml:"reg_lambda"`
	RandomState     int64   `json:"random_state" yaml:"random_state"`
}

func DefaultBoosterParams() BoosterParams {
	return BoosterParams{
		NEstimators:     100,
		LearningRate:    0.3,
		MaxDepth:        6,
		Subsample:       1,
		ColsampleByTree: 1,
		Gamma:           0,
		MinChildWeight:  1,
		RegAlpha:        0,
		RegLambda:       1,
	}
}

func (p BoosterParams) Validate() error {
	switch {
	case p.NEstimators < 1:
		return fmt.Errorf("n_estimators must be >= 1, got %d", p.NEstimators)
	case !(p.LearningRate > 0):
		return fmt.Errorf("learning_rate must be > 0, got %g", p.LearningRate)
	case p.MaxDepth < 1:
		return fmt.Errorf("max_depth must be >= 1, got %d", p.MaxDepth)
	case !(p.Subsample > 0 && p.Subsample <= 1):
		return fmt.Errorf("subsample must be in (0, 1], got %g", p.Subsample)
	case !(p.ColsampleByTree > 0 && p.ColsampleByTree <= 1):
		return fmt.Errorf("colsample_bytree must be in (0, 1], got %g", p.ColsampleByTree)
	case !(p.Gamma >= 0):
		return fmt.Errorf("gamma must be >= 0, got %g", p.Gamma)
	case !(p.MinChildWeight >= 0):
		return fmt.Errorf("min_child_weight must be >= 0, got %g", p.MinChildWeight)
	case !(p.RegAlpha >= 0):
		return fmt.Errorf("reg_alpha must be >= 0, got %g", p.RegAlpha)
	case !(p.RegLambda >= 0):
		return fmt.Errorf("reg_lambda must be >= 0, got %g", p.RegLambda)
	}
	return nil
}

// GradientBoosting is a multi-class classifier built from second-order
// regression trees on the softmax loss, one tree per class per round.
type GradientBoosting struct {
	BaseModel
	Params    BoosterParams
	Trees     [][]*TreeNode
	NFeatures int
	Fitted    bool
}

func NewGradientBoosting(params BoosterParams) *GradientBoosting {
	return &GradientBoosting{
		BaseModel: BaseModel{Name: "GradientBoosting"},
		Params:    params,
	}
}

func (gb *GradientBoosting) GetParams() map[string]any {
	p := gb.Params
	return map[string]any{
		"n_estimators":     p.NEstimators,
		"learning_rate":    p.LearningRate,
		"max_depth":        p.MaxDepth,
		"subsample":        p.Subsample,
		"colsample_bytree": p.ColsampleByTree,
		"gamma":            p.Gamma,
		"min_child_weight": p.MinChildWeight,
		"reg_alpha":        p.RegAlpha,
		"reg_lambda":       p.RegLambda,
		"random_state":     p.RandomState,
	}
}

func (gb *GradientBoosting) Reset() {
	gb.Trees = nil
	gb.Classes = nil
	gb.NFeatures = 0
	gb.Fitted = false
}

func (gb *GradientBoosting) Fit(X [][]float64, y []int) error {
	if err := gb.Params.Validate(); err != nil {
		return err
	}
	if len(X) == 0 {
		return fmt.Errorf("cannot fit on an empty dataset")
	}
	if len(X) != len(y) {
		return fmt.Errorf("x and y must have the same length: %d vs %d", len(X), len(y))
	}
	nFeatures := len(X[0])
	for i, row := range X {
		if len(row) != nFeatures {
			return fmt.Errorf("inconsistent feature count at sample %d: expected %d, got %d", i, nFeatures, len(row))
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("non-finite value at sample %d, feature %d", i, j)
			}
		}
	}

	gb.Reset()
	gb.Classes = ExtractClasses(y)
	gb.NFeatures = nFeatures
	nClasses := len(gb.Classes)
	if nClasses == 1 {
		gb.Fitted = true
		return nil
	}

	classIdx := make(map[int]int, nClasses)
	for k, c := range gb.Classes {
		classIdx[c] = k
	}
	target := make([]int, len(y))
	for i, label := range y {
		target[i] = classIdx[label]
	}

	builder := &treeBuilder{X: X, order: sortedOrders(X), params: gb.Params}
	rng := rand.New(rand.NewSource(gb.Params.RandomState))

	n := len(X)
	margins := make([][]float64, n)
	for i := range margins {
		margins[i] = make([]float64, nClasses)
	}
	probs := make([]float64, nClasses)
	grad := make([][]float64, nClasses)
	hess := make([][]float64, nClasses)
	for k := range grad {
		grad[k] = make([]float64, n)
		hess[k] = make([]float64, n)
	}

	gb.Trees = make([][]*TreeNode, 0, gb.Params.NEstimators)
	for round := 0; round < gb.Params.NEstimators; round++ {
		for i := 0; i < n; i++ {
			softmax(margins[i], probs)
			for k := 0; k < nClasses; k++ {
				p := probs[k]
				label := 0.0
				if target[i] == k {
					label = 1
				}
				grad[k][i] = p - label
				hess[k][i] = math.Max(2*p*(1-p), hessianFloor)
			}
		}

		trees := make([]*TreeNode, nClasses)
		for k := 0; k < nClasses; k++ {
			rows := sampleRows(rng, n, gb.Params.Subsample)
			features := sampleFeatures(rng, nFeatures, gb.Params.ColsampleByTree)
			trees[k] = builder.build(grad[k], hess[k], rows, features)
		}
		for i := 0; i < n; i++ {
			for k, tree := range trees {
				margins[i][k] += tree.predict(X[i])
			}
		}
		gb.Trees = append(gb.Trees, trees)
	}

	gb.Fitted = true
	return nil
}

func (gb *GradientBoosting) PredictProba(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	nClasses := len(gb.Classes)
	if !gb.Fitted || nClasses == 0 {
		return out
	}
	for i, x := range X {
		p := make([]float64, nClasses)
		if nClasses == 1 {
			p[0] = 1
			out[i] = p
			continue
		}
		margin := make([]float64, nClasses)
		for _, round := range gb.Trees {
			for k, tree := range round {
				margin[k] += tree.predict(x)
			}
		}
		softmax(margin, p)
		out[i] = p
	}
	return out
}

func (gb *GradientBoosting) Predict(X [][]float64) []int {
	proba := gb.PredictProba(X)
	out := make([]int, len(proba))
	for i, p := range proba {
		best := 0
		for k := 1; k < len(p); k++ {
			if p[k] > p[best] {
				best = k
			}
		}
		if len(gb.Classes) > 0 {
			out[i] = gb.Classes[best]
		}
	}
	return out
}

// FeatureImportance is the total split gain per feature, normalised to sum
// to one. All zeros when no tree split.
func (gb *GradientBoosting) FeatureImportance() []float64 {
	importance := make([]float64, gb.NFeatures)
	for _, round := range gb.Trees {
		for _, tree := range round {
			tree.addGain(importance)
		}
	}
	total := 0.0
	for _, v := range importance {
		total += v
	}
	if total > 0 {
		for j := range importance {
			importance[j] /= total
		}
	}
	return importance
}

// TreeStats reports the number of trees, total leaves and deepest tree.
func (gb *GradientBoosting) TreeStats() (trees, leaves, maxDepth int) {
	for _, round := range gb.Trees {
		for _, tree := range round {
			trees++
			leaves += tree.leaves()
			if d := tree.depth(); d > maxDepth {
				maxDepth = d
			}
		}
	}
	return trees, leaves, maxDepth
}

func softmax(margin, out []float64) {
	maxM := margin[0]
	for _, m := range margin[1:] {
		if m > maxM {
			maxM = m
		}
	}
	sum := 0.0
	for k, m := range margin {
		out[k] = math.Exp(m - maxM)
		sum += out[k]
	}
	for k := range out {
		out[k] /= sum
	}
}

func sortedOrders(X [][]float64) [][]int {
	nFeatures := len(X[0])
	orders := make([][]int, nFeatures)
	for f := 0; f < nFeatures; f++ {
		idx := make([]int, len(X))
		for i := range idx {
			idx[i] = i
		}
		sort.SliceStable(idx, func(a, b int) bool {
			return X[idx[a]][f] < X[idx[b]][f]
		})
		orders[f] = idx
	}
	return orders
}

func sampleRows(rng *rand.Rand, n int, rate float64) []bool {
	rows := make([]bool, n)
	if rate >= 1 {
		for i := range rows {
			rows[i] = true
		}
		return rows
	}
	picked := 0
	for i := range rows {
		if rng.Float64() < rate {
			rows[i] = true
			picked++
		}
	}
	if picked == 0 {
		rows[rng.Intn(n)] = true
	}
	return rows
}

func sampleFeatures(rng *rand.Rand, n int, rate float64) []int {
	features := make([]int, n)
	for i := range features {
		features[i] = i
	}
	if rate >= 1 {
		return features
	}
	k := int(rate * float64(n))
	if k < 1 {
		k = 1
	}
	rng.Shuffle(n, func(i, j int) {
		features[i], features[j] = features[j], features[i]
	})
	features = features[:k]
	sort.Ints(features)
	return features
}
