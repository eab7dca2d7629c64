package experiment

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Paul-Berdier/123PandaRoux/internal/data"
	"github.com/Paul-Berdier/123PandaRoux/internal/evaluation"
	"github.com/Paul-Berdier/123PandaRoux/internal/metrics"
	"github.com/Paul-Berdier/123PandaRoux/internal/models"
	"github.com/Paul-Berdier/123PandaRoux/internal/persistence"
	"github.com/Paul-Berdier/123PandaRoux/internal/preprocessing"
	"github.com/Paul-Berdier/123PandaRoux/internal/search"
)

// Options fixes everything about one training invocation except its data.
type Options struct {
	Profile       string
	Target        string
	DateColumn    string
	Trials        int
	Seed          int64
	Sampler       string
	StartupTrials int
	Workers       int
	Timeout       time.Duration
	TestSize      float64
	Space         search.Space
	Encoder       *preprocessing.LabelEncoder
}

func DefaultOptions() Options {
	return Options{
		Target:        "catastrophe",
		DateColumn:    "date",
		Trials:        100,
		Seed:          42,
		Sampler:       "tpe",
		StartupTrials: 10,
		Workers:       1,
		TestSize:      0.2,
		Space:         search.DefaultSpace(),
	}
}

type ExperimentRunner struct {
	opts    Options
	log     *zap.Logger
	metrics *metrics.Recorder
	onTrial func(search.Trial)
}

func NewRunner(opts Options, log *zap.Logger, rec *metrics.Recorder) *ExperimentRunner {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Space == nil {
		opts.Space = search.DefaultSpace()
	}
	return &ExperimentRunner{opts: opts, log: log, metrics: rec}
}

// OnTrial registers a callback invoked after every trial.
func (r *ExperimentRunner) OnTrial(fn func(search.Trial)) {
	r.onTrial = fn
}

// ExperimentResult is the outcome of one training invocation.
type ExperimentResult struct {
	Dataset       *Dataset
	TrainRows     int
	TestRows      int
	Sampler       string
	Trials        []search.Trial
	Best          search.Trial
	Params        models.BoosterParams
	Model         models.Model
	Metrics       *evaluation.ClassificationMetrics
	ROC           *evaluation.ROC
	LearningCurve *evaluation.LearningCurve
	Bundle        *persistence.ModelBundle
	Duration      time.Duration
}

// Run splits t, searches the configuration space, refits the best
// configuration on the training partition and evaluates it on the test
// partition.
func (r *ExperimentRunner) Run(ctx context.Context, t *data.Table) (*ExperimentResult, error) {
	start := time.Now()
	opts := r.opts

	ds, err := BuildDataset(t, opts.Target, opts.DateColumn)
	if err != nil {
		return nil, err
	}
	if ds.Dropped > 0 {
		r.log.Warn("dropped rows with missing values", zap.Int("dropped", ds.Dropped), zap.Int("rows", t.Len()))
	}

	validator := data.NewDataValidator()
	if err := validator.ValidateDataset(ds.X, ds.Y); err != nil {
		return nil, err
	}

	splitter := evaluation.NewTrainTestSplitter(opts.TestSize, opts.Seed, true)
	XTrain, XTest, yTrain, yTest, err := splitter.Split(ds.X, ds.Y)
	if err != nil {
		return nil, fmt.Errorf("split: %w", err)
	}
	if err := validator.ValidateTrainTestSplit(XTrain, XTest, yTrain, yTest); err != nil {
		return nil, err
	}
	r.log.Info("dataset split",
		zap.Strings("features", ds.Features),
		zap.Int("train", len(XTrain)),
		zap.Int("test", len(XTest)),
		zap.Ints("classes", validator.GetDatasetStats(ds.X, ds.Y).Classes))

	sampler, ok := search.NewSampler(opts.Sampler, opts.Seed, opts.StartupTrials)
	if !ok {
		return nil, fmt.Errorf("unknown sampler %q", opts.Sampler)
	}
	study, err := search.NewStudy(opts.Space, sampler,
		search.WithWorkers(opts.Workers),
		search.WithTimeout(opts.Timeout),
		search.WithLogger(r.log),
		search.WithTrialCallback(func(trial search.Trial) {
			r.metrics.ObserveTrial(opts.Profile, trial.State == search.TrialFailed, trial.Duration)
			if r.onTrial != nil {
				r.onTrial(trial)
			}
		}))
	if err != nil {
		return nil, err
	}

	objective := func(_ context.Context, point search.Point) (float64, error) {
		params, err := models.ParamsFromPoint(point, opts.Seed)
		if err != nil {
			return 0, err
		}
		model, err := newModel(params)
		if err != nil {
			return 0, err
		}
		if err := model.Fit(XTrain, yTrain); err != nil {
			return 0, err
		}
		return evaluation.Accuracy(yTest, model.Predict(XTest)), nil
	}

	if err := study.Optimize(ctx, objective, opts.Trials); err != nil {
		return nil, fmt.Errorf("hyperparameter search: %w", err)
	}
	best, err := study.BestTrial()
	if err != nil {
		return nil, err
	}
	trials := study.Trials()
	r.metrics.SetBestScore(opts.Profile, best.Score)
	r.log.Info("best trial",
		zap.Int("trial", best.Number),
		zap.Float64("score", best.Score),
		zap.Int("trials", len(trials)),
		zap.Any("params", best.Point))

	params, err := models.ParamsFromPoint(best.Point, opts.Seed)
	if err != nil {
		return nil, err
	}
	model, err := newModel(params)
	if err != nil {
		return nil, err
	}
	if err := model.Fit(XTrain, yTrain); err != nil {
		return nil, fmt.Errorf("final fit: %w", err)
	}

	yPred := model.Predict(XTest)
	classes := evaluation.LabelSet(model.GetClasses(), yTest)
	scores := evaluation.CalculateMetrics(yTest, yPred, classes)
	r.metrics.SetTestAccuracy(opts.Profile, scores.Accuracy)
	r.log.Info("final model evaluated", zap.Float64("accuracy", scores.Accuracy))

	roc, err := evaluation.OneVsRest(yTest, model.PredictProba(XTest), model.GetClasses())
	if err != nil {
		return nil, err
	}

	curve, err := evaluation.NewLearningCurveBuilder(opts.Workers).Build(ctx,
		func() (models.Model, error) { return newModel(params) },
		XTrain, yTrain, XTest, yTest)
	if err != nil {
		return nil, err
	}

	result := &ExperimentResult{
		Dataset:       ds,
		TrainRows:     len(XTrain),
		TestRows:      len(XTest),
		Sampler:       sampler.Name(),
		Trials:        trials,
		Best:          best,
		Params:        params,
		Model:         model,
		Metrics:       scores,
		ROC:           roc,
		LearningCurve: curve,
		Duration:      time.Since(start),
	}
	result.Bundle = r.bundle(result)
	return result, nil
}

func newModel(params models.BoosterParams) (models.Model, error) {
	return models.CreateModel(models.ModelConfig{Params: params})
}

func (r *ExperimentRunner) bundle(res *ExperimentResult) *persistence.ModelBundle {
	b := persistence.NewModelBundle(res.Model, res.Dataset.Features, r.opts.Target)
	b.DateColumn = r.opts.DateColumn
	b.Encoder = r.opts.Encoder
	b.Metadata.Profile = r.opts.Profile
	b.Metadata.Accuracy = res.Metrics.Accuracy
	b.Metadata.BestScore = res.Best.Score
	b.Metadata.BestTrial = res.Best.Number
	b.Metadata.Trials = len(res.Trials)
	b.Metadata.TrainingTime = res.Duration
	for name, v := range res.Best.Point {
		b.Metadata.Parameters[name] = v
	}
	return b
}
