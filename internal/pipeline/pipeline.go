// Package pipeline runs the clean, isolate, train and predict stages for a
// feature profile. Every stage reads the files written by the stage before
// it, so a failed run can be resumed from the failing stage.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Paul-Berdier/123PandaRoux/internal/config"
	"github.com/Paul-Berdier/123PandaRoux/internal/jobs"
	"github.com/Paul-Berdier/123PandaRoux/internal/logger"
	"github.com/Paul-Berdier/123PandaRoux/internal/metrics"
	"github.com/Paul-Berdier/123PandaRoux/internal/render"
)

type Stage string

const (
	StageClean   Stage = "clean"
	StageIsolate Stage = "isolate"
	StageTrain   Stage = "train"
	StagePredict Stage = "predict"
)

// AllStages in execution order.
var AllStages = []Stage{StageClean, StageIsolate, StageTrain, StagePredict}

func (s Stage) Description() string {
	switch s {
	case StageClean:
		return "Clean and reduce the data"
	case StageIsolate:
		return "Isolate one row of the dataset"
	case StageTrain:
		return "Train a model"
	case StagePredict:
		return "Predict the isolated row"
	}
	return string(s)
}

// ParseStages accepts stage names and returns them in execution order
// without duplicates. No names means every stage.
func ParseStages(names []string) ([]Stage, error) {
	if len(names) == 0 {
		return append([]Stage(nil), AllStages...), nil
	}
	want := make(map[Stage]bool)
	for _, name := range names {
		s := Stage(strings.ToLower(strings.TrimSpace(name)))
		known := false
		for _, st := range AllStages {
			if st == s {
				known = true
			}
		}
		if !known {
			return nil, fmt.Errorf("unknown stage %q", name)
		}
		want[s] = true
	}
	var out []Stage
	for _, st := range AllStages {
		if want[st] {
			out = append(out, st)
		}
	}
	return out, nil
}

// StageError reports which stage of which profile failed.
type StageError struct {
	Stage   Stage
	Profile string
	Err     error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s (profile %s): %v", e.Stage, e.Profile, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Outputs are the files a profile reads and writes.
type Outputs struct {
	Raw             string
	Normalized      string
	Clean           string
	Statistics      string
	Heatmap         string
	Isolated        string
	Remainder       string
	Model           string
	Metadata        string
	Report          string
	Trials          string
	ConfusionMatrix string
	ROC             string
	LearningCurve   string
	Predictions     string
}

func OutputsFor(cfg *config.Config, p config.Profile) Outputs {
	data := func(name string) string { return filepath.Join(cfg.Paths.DataDir, name+p.Suffix+".csv") }
	docs := func(name string) string { return filepath.Join(cfg.Paths.DocsDir, name+p.Suffix+".png") }
	model := func(name, ext string) string { return filepath.Join(cfg.Paths.ModelsDir, name+p.Suffix+ext) }
	return Outputs{
		Raw:             cfg.Paths.RawData,
		Normalized:      data("normalized_catastrophes_naturelles"),
		Clean:           data("clean_catastrophes_naturelles"),
		Statistics:      data("statistics_data"),
		Heatmap:         docs("correlation_matrix"),
		Isolated:        data("random_row"),
		Remainder:       data("reformed_catastrophes_naturelles_data"),
		Model:           model("ml_model", ".bin"),
		Metadata:        model("ml_model", ".json"),
		Report:          model("training_report", ".json"),
		Trials:          model("trials", ".csv"),
		ConfusionMatrix: docs("confusion_matrix"),
		ROC:             docs("output_roc_curve"),
		LearningCurve:   docs("learning_curve"),
		Predictions:     data("predictions"),
	}
}

type Runner struct {
	cfg      *config.Config
	log      *zap.Logger
	jobs     *jobs.Manager
	metrics  *metrics.Recorder
	renderer render.Renderer
}

type Option func(*Runner)

func WithJobs(m *jobs.Manager) Option {
	return func(r *Runner) { r.jobs = m }
}

func WithMetrics(rec *metrics.Recorder) Option {
	return func(r *Runner) { r.metrics = rec }
}

func WithRenderer(renderer render.Renderer) Option {
	return func(r *Runner) { r.renderer = renderer }
}

func New(cfg *config.Config, log *zap.Logger, opts ...Option) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Runner{
		cfg:      cfg,
		log:      log,
		jobs:     jobs.NewManager(),
		renderer: render.Nop{},
	}
	if cfg.Render.Enabled {
		r.renderer = render.NewPNG(cfg.Render.Width, cfg.Render.Height)
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Runner) Jobs() *jobs.Manager {
	return r.jobs
}

// Run executes stages for every named profile. The first failure stops the
// run and is returned as a *StageError; outputs of completed stages stay on
// disk.
func (r *Runner) Run(ctx context.Context, profiles []string, stages []Stage) error {
	if len(profiles) == 0 {
		profiles = r.cfg.ProfileNames()[:1]
	}
	resolved := make([]config.Profile, len(profiles))
	for i, name := range profiles {
		p, err := r.cfg.Profile(name)
		if err != nil {
			return err
		}
		resolved[i] = p
	}

	defer r.writeMetrics()
	for _, p := range resolved {
		for _, stage := range stages {
			if err := r.RunStage(ctx, p, stage); err != nil {
				return err
			}
		}
	}
	return nil
}

// RunStage executes one stage for profile p.
func (r *Runner) RunStage(ctx context.Context, p config.Profile, stage Stage) error {
	job, ctx := r.jobs.Start(ctx, string(stage), p.Name, stage.Description())
	log := logger.ForStage(r.log, r.jobs.RunID(), p.Name, string(stage))
	log.Info("stage started", zap.String("description", stage.Description()))

	start := time.Now()
	rows, err := r.dispatch(ctx, job, log, p, stage)
	elapsed := time.Since(start)

	r.metrics.ObserveStage(p.Name, string(stage), elapsed, err)
	job.Finish(err)
	if err != nil {
		log.Error("stage failed", zap.Error(err), zap.Duration("elapsed", elapsed))
		return &StageError{Stage: stage, Profile: p.Name, Err: err}
	}
	r.metrics.SetRows(p.Name, string(stage), rows)
	job.Logf("%s finished: %d rows in %s", stage, rows, elapsed.Round(time.Millisecond))
	log.Info("stage finished", zap.Int("rows", rows), zap.Duration("elapsed", elapsed))
	return nil
}

func (r *Runner) dispatch(ctx context.Context, job *jobs.Job, log *zap.Logger, p config.Profile, stage Stage) (int, error) {
	out := OutputsFor(r.cfg, p)
	switch stage {
	case StageClean:
		t, err := r.Clean(log, p, out)
		if err != nil {
			return 0, err
		}
		return t.Len(), nil
	case StageIsolate:
		_, remainder, err := r.Isolate(log, out)
		if err != nil {
			return 0, err
		}
		return remainder.Len(), nil
	case StageTrain:
		res, err := r.Train(ctx, job, log, p, out)
		if err != nil {
			return 0, err
		}
		return res.TrainRows + res.TestRows, nil
	case StagePredict:
		results, err := r.Predict(ctx, log, out)
		if err != nil {
			return 0, err
		}
		return len(results), nil
	}
	return 0, fmt.Errorf("unknown stage %q", stage)
}

func (r *Runner) writeMetrics() {
	if !r.cfg.Metrics.Enabled {
		return
	}
	if err := r.metrics.WriteTextfile(r.cfg.Metrics.Textfile); err != nil {
		r.log.Warn("failed to write metrics", zap.Error(err))
	}
}
