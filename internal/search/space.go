// Package search drives hyperparameter optimisation: a configuration space,
// pluggable samplers and a study that runs and records trials.
package search

import (
	"fmt"
	"math"
	"sort"
)

type ParamKind string

const (
	IntParam   ParamKind = "int"
	FloatParam ParamKind = "float"
)

// Param is one tunable hyperparameter with closed bounds.
type Param struct {
	Name string    `json:"name" yaml:"name" mapstructure:"name"`
	Kind ParamKind `json:"kind" yaml:"kind" mapstructure:"kind"`
	Low  float64   `json:"low" yaml:"low" mapstructure:"low"`
	High float64   `json:"high" yaml:"high" mapstructure:"high"`
}

type Space []Param

// Point assigns a value to every parameter of a Space.
type Point map[string]float64

func (p Point) Clone() Point {
	out := make(Point, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// DefaultSpace is the gradient boosting search space.
func DefaultSpace() Space {
	return Space{
		{Name: "n_estimators", Kind: IntParam, Low: 50, High: 200},
		{Name: "learning_rate", Kind: FloatParam, Low: 0.01, High: 0.2},
		{Name: "max_depth", Kind: IntParam, Low: 3, High: 10},
		{Name: "subsample", Kind: FloatParam, Low: 0.6, High: 1.0},
		{Name: "colsample_bytree", Kind: FloatParam, Low: 0.6, High: 1.0},
		{Name: "gamma", Kind: FloatParam, Low: 0, High: 10},
		{Name: "min_child_weight", Kind: IntParam, Low: 1, High: 10},
		{Name: "reg_alpha", Kind: FloatParam, Low: 0, High: 1},
		{Name: "reg_lambda", Kind: FloatParam, Low: 0, High: 1},
	}
}

func (s Space) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("search space is empty")
	}
	seen := make(map[string]bool, len(s))
	for _, p := range s {
		if p.Name == "" {
			return fmt.Errorf("parameter without a name")
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate parameter %q", p.Name)
		}
		seen[p.Name] = true
		if p.Kind != IntParam && p.Kind != FloatParam {
			return fmt.Errorf("parameter %q: unknown kind %q", p.Name, p.Kind)
		}
		if math.IsNaN(p.Low) || math.IsNaN(p.High) || p.Low > p.High {
			return fmt.Errorf("parameter %q: invalid bounds [%g, %g]", p.Name, p.Low, p.High)
		}
	}
	return nil
}

// Contains reports whether every parameter of s has an in-bounds value in p,
// integral for integer parameters.
func (s Space) Contains(p Point) bool {
	for _, param := range s {
		v, ok := p[param.Name]
		if !ok || v < param.Low || v > param.High {
			return false
		}
		if param.Kind == IntParam && v != math.Trunc(v) {
			return false
		}
	}
	return true
}

// Names lists parameter names in ascending order.
func (s Space) Names() []string {
	names := make([]string, len(s))
	for i, p := range s {
		names[i] = p.Name
	}
	sort.Strings(names)
	return names
}

// normalize maps v into [0, 1] over the parameter bounds.
func (p Param) normalize(v float64) float64 {
	if p.High == p.Low {
		return 0.5
	}
	return (v - p.Low) / (p.High - p.Low)
}

// denormalize maps u in [0, 1] back into bounds, rounding integers.
func (p Param) denormalize(u float64) float64 {
	u = math.Max(0, math.Min(1, u))
	v := p.Low + u*(p.High-p.Low)
	if p.Kind == IntParam {
		v = math.Round(v)
	}
	return math.Max(p.Low, math.Min(p.High, v))
}
