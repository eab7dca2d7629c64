package models

import (
	"fmt"
	"math"
)

// ModelConfig selects and configures a model by algorithm name.
type ModelConfig struct {
	Algorithm string
	Params    BoosterParams
}

func CreateModel(config ModelConfig) (Model, error) {
	switch config.Algorithm {
	case "", "gradient_boosting", "xgboost":
		if err := config.Params.Validate(); err != nil {
			return nil, fmt.Errorf("invalid parameters: %w", err)
		}
		return NewGradientBoosting(config.Params), nil
	default:
		return nil, fmt.Errorf("unknown algorithm: %s", config.Algorithm)
	}
}

// ParamsFromPoint overlays named values onto the defaults. Integer
// parameters are rounded; unknown names are an error.
func ParamsFromPoint(point map[string]float64, randomState int64) (BoosterParams, error) {
	p := DefaultBoosterParams()
	p.RandomState = randomState
	for name, v := range point {
		switch name {
		case "n_estimators":
			p.NEstimators = int(math.Round(v))
		case "learning_rate":
			p.LearningRate = v
		case "max_depth":
			p.MaxDepth = int(math.Round(v))
		case "subsample":
			p.Subsample = v
		case "colsample_bytree":
			p.ColsampleByTree = v
		case "gamma":
			p.Gamma = v
		case "min_child_weight":
			p.MinChildWeight = math.Round(v)
		case "reg_alpha":
			p.RegAlpha = v
		case "reg_lambda":
			p.RegLambda = v
		default:
			return p, fmt.Errorf("unknown hyperparameter %q", name)
		}
	}
	return p, nil
}
