// Package render draws the evaluation figures of a run as PNG files.
package render

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/Paul-Berdier/123PandaRoux/internal/evaluation"
	"github.com/Paul-Berdier/123PandaRoux/internal/stats"
)

// Renderer writes figures. Callers treat failures as non-fatal.
type Renderer interface {
	CorrelationHeatmap(m *stats.Matrix, path string) error
	ConfusionMatrix(matrix [][]int, labels []string, path string) error
	ROC(roc *evaluation.ROC, names []string, path string) error
	LearningCurve(curve *evaluation.LearningCurve, path string) error
}

// Nop discards every figure.
type Nop struct{}

func (Nop) CorrelationHeatmap(*stats.Matrix, string) error { return nil }
func (Nop) ConfusionMatrix([][]int, []string, string) error { return nil }
func (Nop) ROC(*evaluation.ROC, []string, string) error { return nil }
func (Nop) LearningCurve(*evaluation.LearningCurve, string) error { return nil }

// PNG renders with gonum/plot. Width and Height are in inches.
type PNG struct {
	Width  float64
	Height float64
}

func NewPNG(width, height float64) *PNG {
	if width <= 0 {
		width = 6
	}
	if height <= 0 {
		height = 5
	}
	return &PNG{Width: width, Height: height}
}

func (r *PNG) save(p *plot.Plot, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := p.Save(vg.Length(r.Width)*vg.Inch, vg.Length(r.Height)*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}

// grid adapts a row-major matrix to plotter.GridXYZ. Row 0 is drawn at the
// top.
type grid struct {
	values [][]float64
}

func (g grid) Dims() (c, r int) {
	if len(g.values) == 0 {
		return 0, 0
	}
	return len(g.values[0]), len(g.values)
}

func (g grid) Z(c, r int) float64 {
	return g.values[len(g.values)-1-r][c]
}

func (g grid) X(c int) float64 { return float64(c) }
func (g grid) Y(r int) float64 { return float64(r) }

func reversed(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[len(names)-1-i] = n
	}
	return out
}

// cellLabels annotates every cell of a grid with text.
func cellLabels(g grid, text func(v float64) string) (*plotter.Labels, error) {
	cols, rows := g.Dims()
	xys := make(plotter.XYs, 0, cols*rows)
	labels := make([]string, 0, cols*rows)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			xys = append(xys, plotter.XY{X: g.X(c), Y: g.Y(r)})
			labels = append(labels, text(g.Z(c, r)))
		}
	}
	return plotter.NewLabels(plotter.XYLabels{XYs: xys, Labels: labels})
}

func heatmap(g grid, min, max float64) *plotter.HeatMap {
	h := plotter.NewHeatMap(g, palette.Heat(32, 1))
	h.Min, h.Max = min, max
	h.NaN = color.Gray{Y: 200}
	return h
}

func (r *PNG) CorrelationHeatmap(m *stats.Matrix, path string) error {
	if m == nil || len(m.Columns) == 0 {
		return fmt.Errorf("correlation matrix is empty")
	}
	values := make([][]float64, len(m.Columns))
	for i, name := range m.Columns {
		row, _ := m.Row(name)
		values[i] = row
	}
	g := grid{values: values}

	p := plot.New()
	p.Title.Text = "Correlation matrix"
	p.Add(heatmap(g, -1, 1))
	labels, err := cellLabels(g, func(v float64) string {
		if math.IsNaN(v) {
			return "n/a"
		}
		return fmt.Sprintf("%.2f", v)
	})
	if err != nil {
		return err
	}
	p.Add(labels)
	p.NominalX(m.Columns...)
	p.NominalY(reversed(m.Columns)...)
	return r.save(p, path)
}

func (r *PNG) ConfusionMatrix(matrix [][]int, labels []string, path string) error {
	if len(matrix) == 0 || len(matrix) != len(labels) {
		return fmt.Errorf("confusion matrix has %d rows for %d labels", len(matrix), len(labels))
	}
	values := make([][]float64, len(matrix))
	max := 1.0
	for i, row := range matrix {
		if len(row) != len(labels) {
			return fmt.Errorf("confusion matrix row %d has %d cells, expected %d", i, len(row), len(labels))
		}
		values[i] = make([]float64, len(row))
		for j, v := range row {
			values[i][j] = float64(v)
			max = math.Max(max, float64(v))
		}
	}
	g := grid{values: values}

	p := plot.New()
	p.Title.Text = "Confusion matrix"
	p.X.Label.Text = "Predicted"
	p.Y.Label.Text = "Actual"
	p.Add(heatmap(g, 0, max))
	cells, err := cellLabels(g, func(v float64) string { return fmt.Sprintf("%d", int(v)) })
	if err != nil {
		return err
	}
	p.Add(cells)
	p.NominalX(labels...)
	p.NominalY(reversed(labels)...)
	return r.save(p, path)
}

func curveXYs(c evaluation.Curve) plotter.XYs {
	xys := make(plotter.XYs, len(c.FPR))
	for i := range c.FPR {
		xys[i] = plotter.XY{X: c.FPR[i], Y: c.TPR[i]}
	}
	return xys
}

func legend(name string, auc float64) string {
	if math.IsNaN(auc) {
		return name + " (AUC n/a)"
	}
	return fmt.Sprintf("%s (AUC = %.2f)", name, auc)
}

// ROC draws one curve per class with a defined AUC plus the micro-average.
func (r *PNG) ROC(roc *evaluation.ROC, names []string, path string) error {
	if roc == nil {
		return fmt.Errorf("no ROC curves")
	}
	p := plot.New()
	p.Title.Text = "ROC curves (one-vs-rest)"
	p.X.Label.Text = "False positive rate"
	p.Y.Label.Text = "True positive rate"
	p.X.Min, p.X.Max = 0, 1
	p.Y.Min, p.Y.Max = 0, 1
	p.Legend.Top = false
	p.Legend.Left = false

	var lines []interface{}
	for k, curve := range roc.PerClass {
		if len(curve.FPR) == 0 {
			continue
		}
		name := curve.Label
		if k < len(names) {
			name = names[k]
		}
		lines = append(lines, legend(name, curve.AUC), curveXYs(curve))
	}
	if len(roc.Micro.FPR) > 0 {
		lines = append(lines, legend("micro-average", roc.Micro.AUC), curveXYs(roc.Micro))
	}
	if len(lines) == 0 {
		return fmt.Errorf("no class has both positive and negative samples")
	}
	if err := plotutil.AddLines(p, lines...); err != nil {
		return err
	}

	chance, err := plotter.NewLine(plotter.XYs{{X: 0, Y: 0}, {X: 1, Y: 1}})
	if err != nil {
		return err
	}
	chance.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
	chance.Color = color.Gray{Y: 128}
	p.Add(chance)
	return r.save(p, path)
}

func (r *PNG) LearningCurve(curve *evaluation.LearningCurve, path string) error {
	if curve == nil || len(curve.Points) == 0 {
		return fmt.Errorf("learning curve has no points")
	}
	prefix := make(plotter.XYs, len(curve.Points))
	train := make(plotter.XYs, len(curve.Points))
	test := make(plotter.XYs, len(curve.Points))
	for i, pt := range curve.Points {
		x := float64(pt.TrainSize)
		prefix[i] = plotter.XY{X: x, Y: pt.PrefixScore}
		train[i] = plotter.XY{X: x, Y: pt.TrainScore}
		test[i] = plotter.XY{X: x, Y: pt.TestScore}
	}

	p := plot.New()
	p.Title.Text = "Learning curve"
	p.X.Label.Text = "Training examples"
	p.Y.Label.Text = "Accuracy"
	p.Y.Min, p.Y.Max = 0, 1
	p.Legend.Top = false
	if err := plotutil.AddLinePoints(p,
		"Training subset", prefix,
		"Full training set", train,
		"Test set", test,
	); err != nil {
		return err
	}
	return r.save(p, path)
}
