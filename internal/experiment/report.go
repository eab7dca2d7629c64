package experiment

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/Paul-Berdier/123PandaRoux/internal/data"
	"github.com/Paul-Berdier/123PandaRoux/internal/evaluation"
	"github.com/Paul-Berdier/123PandaRoux/internal/render"
	"github.com/Paul-Berdier/123PandaRoux/internal/search"
)

// Artifacts are the output paths of one training run. Empty paths are
// skipped.
type Artifacts struct {
	Model           string
	Metadata        string
	Report          string
	Trials          string
	ConfusionMatrix string
	ROC             string
	LearningCurve   string
}

// Emit persists the model and its reports, then renders the figures. Render
// failures are logged and do not fail the run.
func (r *ExperimentRunner) Emit(res *ExperimentResult, out Artifacts, renderer render.Renderer) error {
	if out.Model != "" {
		if err := res.Bundle.Save(out.Model); err != nil {
			return fmt.Errorf("save model: %w", err)
		}
		r.log.Info("model saved", zap.String("path", out.Model))
	}
	if out.Metadata != "" {
		if err := res.Bundle.SaveMetadata(out.Metadata); err != nil {
			return fmt.Errorf("save model metadata: %w", err)
		}
	}
	if out.Report != "" {
		if err := WriteReport(r.NewReport(res), out.Report); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}
	if out.Trials != "" {
		if err := ExportTrials(res.Trials, r.opts.Space.Names(), out.Trials); err != nil {
			return fmt.Errorf("export trials: %w", err)
		}
	}

	if renderer == nil {
		return nil
	}
	names := r.classNames(res.Metrics.Classes)
	figures := []struct {
		path string
		draw func() error
	}{
		{out.ConfusionMatrix, func() error {
			return renderer.ConfusionMatrix(res.Metrics.ConfusionMatrix, names, out.ConfusionMatrix)
		}},
		{out.ROC, func() error {
			return renderer.ROC(res.ROC, r.classNames(res.ROC.Classes), out.ROC)
		}},
		{out.LearningCurve, func() error {
			return renderer.LearningCurve(res.LearningCurve, out.LearningCurve)
		}},
	}
	for _, fig := range figures {
		if fig.path == "" {
			continue
		}
		if err := fig.draw(); err != nil {
			r.log.Warn("render failed", zap.String("path", fig.path), zap.Error(err))
		}
	}
	return nil
}

func (r *ExperimentRunner) classNames(classes []int) []string {
	names := make([]string, len(classes))
	for i, c := range classes {
		names[i] = r.opts.Encoder.Decode(c)
	}
	return names
}

// Report is the JSON summary written next to the model.
type Report struct {
	RunID                string                            `json:"run_id"`
	Profile              string                            `json:"profile"`
	CreatedAt            time.Time                         `json:"created_at"`
	Target               string                            `json:"target"`
	Features             []string                          `json:"features"`
	TrainRows            int                               `json:"train_rows"`
	TestRows             int                               `json:"test_rows"`
	DroppedRows          int                               `json:"dropped_rows"`
	Sampler              string                            `json:"sampler"`
	Trials               int                               `json:"trials"`
	FailedTrials         int                               `json:"failed_trials"`
	BestTrial            int                               `json:"best_trial"`
	BestScore            float64                           `json:"best_score"`
	BestParams           search.Point                      `json:"best_params"`
	Accuracy             float64                           `json:"accuracy"`
	ClassificationReport string                            `json:"classification_report"`
	Metrics              *evaluation.ClassificationMetrics `json:"metrics"`
	ClassNames           map[int]string                    `json:"class_names"`
	AUC                  map[int]float64                   `json:"auc"`
	MicroAUC             *float64                          `json:"micro_auc"`
	LearningCurve        *evaluation.LearningCurve         `json:"learning_curve"`
	DurationSeconds      float64                           `json:"duration_seconds"`
}

func (r *ExperimentRunner) NewReport(res *ExperimentResult) *Report {
	rep := &Report{
		Profile:              r.opts.Profile,
		CreatedAt:            time.Now().UTC(),
		Target:               r.opts.Target,
		Features:             res.Dataset.Features,
		TrainRows:            res.TrainRows,
		TestRows:             res.TestRows,
		DroppedRows:          res.Dataset.Dropped,
		Sampler:              res.Sampler,
		Trials:               len(res.Trials),
		BestTrial:            res.Best.Number,
		BestScore:            res.Best.Score,
		BestParams:           res.Best.Point,
		Accuracy:             res.Metrics.Accuracy,
		ClassificationReport: res.Metrics.Report(),
		Metrics:              res.Metrics,
		ClassNames:           make(map[int]string),
		AUC:                  res.ROC.AUCs(),
		LearningCurve:        res.LearningCurve,
		DurationSeconds:      res.Duration.Seconds(),
	}
	if res.Bundle != nil {
		rep.RunID = res.Bundle.Metadata.RunID
	}
	for _, t := range res.Trials {
		if t.State == search.TrialFailed {
			rep.FailedTrials++
		}
	}
	for _, c := range res.Metrics.Classes {
		rep.ClassNames[c] = r.opts.Encoder.Decode(c)
	}
	if auc := res.ROC.Micro.AUC; !math.IsNaN(auc) {
		rep.MicroAUC = &auc
	}
	return rep
}

func WriteReport(rep *Report, filename string) error {
	return data.WriteFileAtomic(filename, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	})
}

// ExportTrials writes one CSV row per trial with its parameters in params
// order.
func ExportTrials(trials []search.Trial, params []string, filename string) error {
	return data.WriteFileAtomic(filename, func(w io.Writer) error {
		writer := csv.NewWriter(w)

		header := []string{"Trial", "State", "Score", "DurationMs"}
		header = append(header, params...)
		header = append(header, "Error")
		if err := writer.Write(header); err != nil {
			return err
		}

		for _, t := range trials {
			record := []string{
				strconv.Itoa(t.Number),
				string(t.State),
				fmt.Sprintf("%.4f", t.Score),
				fmt.Sprintf("%d", t.Duration.Milliseconds()),
			}
			for _, name := range params {
				record = append(record, strconv.FormatFloat(t.Point[name], 'g', -1, 64))
			}
			record = append(record, t.Err)
			if err := writer.Write(record); err != nil {
				return err
			}
		}

		writer.Flush()
		return writer.Error()
	})
}
