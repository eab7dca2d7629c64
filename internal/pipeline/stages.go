package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Paul-Berdier/123PandaRoux/internal/config"
	"github.com/Paul-Berdier/123PandaRoux/internal/data"
	"github.com/Paul-Berdier/123PandaRoux/internal/experiment"
	"github.com/Paul-Berdier/123PandaRoux/internal/jobs"
	"github.com/Paul-Berdier/123PandaRoux/internal/persistence"
	"github.com/Paul-Berdier/123PandaRoux/internal/prediction"
	"github.com/Paul-Berdier/123PandaRoux/internal/preprocessing"
	"github.com/Paul-Berdier/123PandaRoux/internal/search"
	"github.com/Paul-Berdier/123PandaRoux/internal/stats"
)

// Clean normalizes the raw file into an intermediate copy, maps categories
// to codes, keeps the profile's features, rescales humidity, writes summary
// statistics and drops features weakly correlated with the target.
func (r *Runner) Clean(log *zap.Logger, p config.Profile, out Outputs) (*data.Table, error) {
	cols := r.cfg.Columns

	lines, err := preprocessing.NormalizeRawFile(out.Raw, out.Normalized)
	if err != nil {
		return nil, fmt.Errorf("normalize raw data: %w", err)
	}
	t, err := data.ReadCSV(out.Normalized)
	if err != nil {
		return nil, err
	}
	log.Info("raw data loaded", zap.Int("lines", lines), zap.Int("rows", t.Len()), zap.Strings("columns", t.Names()))

	t, err = r.mapColumn(log, t, cols.Target, config.ToMapping(r.cfg.Mappings.Catastrophe))
	if err != nil {
		return nil, err
	}
	if contains(p.Features, cols.Zone) {
		t, err = r.mapColumn(log, t, cols.Zone, config.ToMapping(r.cfg.Mappings.Zone))
		if err != nil {
			return nil, err
		}
	}

	t, err = preprocessing.SelectColumns(t, p.Features)
	if err != nil {
		return nil, err
	}
	t, err = preprocessing.NormalizeHumidity(t, cols.Humidity, log)
	if err != nil {
		return nil, err
	}

	summaries, err := stats.Describe(t)
	if err != nil {
		return nil, err
	}
	summary, err := stats.SummaryTable(summaries)
	if err != nil {
		return nil, err
	}
	if err := data.WriteCSV(summary, out.Statistics); err != nil {
		return nil, err
	}

	matrix, err := stats.CorrelationMatrix(t)
	if err != nil {
		return nil, err
	}
	if err := r.renderer.CorrelationHeatmap(matrix, out.Heatmap); err != nil {
		log.Warn("render failed", zap.String("path", out.Heatmap), zap.Error(err))
	}

	t, selection, err := stats.SelectFeatures(t, cols.Target, cols.Date, p.Threshold())
	if err != nil {
		return nil, err
	}
	log.Info("features selected",
		zap.Float64("threshold", selection.Threshold),
		zap.Strings("kept", selection.Kept),
		zap.Strings("dropped", selection.Dropped))

	if p.Standardize {
		t, err = preprocessing.Standardize(t, cols.Target, cols.Date)
		if err != nil {
			return nil, err
		}
	}

	if err := data.WriteCSV(t, out.Clean); err != nil {
		return nil, err
	}
	log.Info("clean data written", zap.String("path", out.Clean), zap.Int("rows", t.Len()))
	return t, nil
}

func (r *Runner) mapColumn(log *zap.Logger, t *data.Table, column string, m preprocessing.Mapping) (*data.Table, error) {
	if n := preprocessing.Unmapped(t, column, m); n > 0 {
		log.Warn("values outside mapping become missing", zap.String("column", column), zap.Int("cells", n))
	}
	return preprocessing.MapColumn(t, column, m)
}

// Isolate holds one seeded row of the clean table out of training.
func (r *Runner) Isolate(log *zap.Logger, out Outputs) (isolated, remainder *data.Table, err error) {
	t, err := data.ReadCSV(out.Clean)
	if err != nil {
		return nil, nil, err
	}
	isolated, remainder, err = data.IsolateRow(t, r.cfg.IsolationSeed)
	if err != nil {
		return nil, nil, err
	}
	if err := data.WriteCSV(isolated, out.Isolated); err != nil {
		return nil, nil, err
	}
	if err := data.WriteCSV(remainder, out.Remainder); err != nil {
		return nil, nil, err
	}
	log.Info("row isolated",
		zap.Int("row", data.IsolatedIndex(t.Len(), r.cfg.IsolationSeed)),
		zap.String("isolated", out.Isolated),
		zap.Int("remaining", remainder.Len()))
	return isolated, remainder, nil
}

func (r *Runner) encoder() *preprocessing.LabelEncoder {
	return preprocessing.NewLabelEncoderFromMapping(config.ToMapping(r.cfg.Mappings.Catastrophe))
}

// Train searches hyperparameters on the remainder table and writes the model
// with its reports and figures.
func (r *Runner) Train(ctx context.Context, job *jobs.Job, log *zap.Logger, p config.Profile, out Outputs) (*experiment.ExperimentResult, error) {
	t, err := data.ReadCSV(out.Remainder)
	if err != nil {
		return nil, err
	}

	s := r.cfg.Search
	opts := experiment.Options{
		Profile:       p.Name,
		Target:        r.cfg.Columns.Target,
		DateColumn:    r.cfg.Columns.Date,
		Trials:        s.Trials,
		Seed:          s.Seed,
		Sampler:       s.Sampler,
		StartupTrials: s.StartupTrials,
		Workers:       s.Workers,
		Timeout:       s.Timeout,
		TestSize:      s.TestSize,
		Space:         search.DefaultSpace(),
		Encoder:       r.encoder(),
	}
	runner := experiment.NewRunner(opts, log, r.metrics)
	done := 0
	runner.OnTrial(func(search.Trial) {
		done++
		job.SetProgress(float64(done) / float64(s.Trials))
	})

	res, err := runner.Run(ctx, t)
	if err != nil {
		return nil, err
	}
	job.SetResult(res.Metrics)
	log.Info("classification report\n" + res.Metrics.Report() + "\n" + res.Metrics.FormatMetrics())

	err = runner.Emit(res, experiment.Artifacts{
		Model:           out.Model,
		Metadata:        out.Metadata,
		Report:          out.Report,
		Trials:          out.Trials,
		ConfusionMatrix: out.ConfusionMatrix,
		ROC:             out.ROC,
		LearningCurve:   out.LearningCurve,
	}, r.renderer)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Predict scores the isolated row with the saved model.
func (r *Runner) Predict(ctx context.Context, log *zap.Logger, out Outputs) ([]prediction.Result, error) {
	bundle, err := persistence.LoadModelBundle(out.Model)
	if err != nil {
		return nil, err
	}
	if bundle.Encoder == nil {
		bundle.Encoder = r.encoder()
	}
	t, err := data.ReadCSV(out.Isolated)
	if err != nil {
		return nil, err
	}

	predictor := prediction.NewPredictor(bundle, log)
	results, err := predictor.Predict(ctx, t)
	if err != nil {
		return nil, err
	}
	if err := prediction.WriteResults(results, predictor.Classes(), out.Predictions); err != nil {
		return nil, err
	}
	return results, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
