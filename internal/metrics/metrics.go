// Package metrics records run metrics with Prometheus and exports them as a
// node-exporter textfile, since a pipeline run is too short-lived to scrape.
//
// A nil *Recorder is valid and records nothing, so callers never need to
// check whether metrics are enabled.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "catnat"

type Recorder struct {
	registry      *prometheus.Registry
	trials        *prometheus.CounterVec
	trialDuration prometheus.Histogram
	bestScore     *prometheus.GaugeVec
	testAccuracy  *prometheus.GaugeVec
	stageDuration *prometheus.GaugeVec
	stageRuns     *prometheus.CounterVec
	rows          *prometheus.GaugeVec
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		trials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_trials_total",
			Help:      "Hyperparameter search trials by final state.",
		}, []string{"profile", "state"}),
		trialDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_trial_duration_seconds",
			Help:      "Wall-clock time of one trial.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		bestScore: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "search_best_score",
			Help:      "Best trial accuracy of the last search.",
		}, []string{"profile"}),
		testAccuracy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_test_accuracy",
			Help:      "Test-partition accuracy of the final model.",
		}, []string{"profile"}),
		stageDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of the last run of each stage.",
		}, []string{"profile", "stage"}),
		stageRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_runs_total",
			Help:      "Stage runs by outcome.",
		}, []string{"profile", "stage", "outcome"}),
		rows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stage_rows",
			Help:      "Rows written by the last run of each stage.",
		}, []string{"profile", "stage"}),
	}
	r.registry.MustRegister(r.trials, r.trialDuration, r.bestScore, r.testAccuracy,
		r.stageDuration, r.stageRuns, r.rows)
	return r
}

func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

func (r *Recorder) ObserveTrial(profile string, failed bool, d time.Duration) {
	if r == nil {
		return
	}
	state := "complete"
	if failed {
		state = "failed"
	}
	r.trials.WithLabelValues(profile, state).Inc()
	r.trialDuration.Observe(d.Seconds())
}

func (r *Recorder) SetBestScore(profile string, score float64) {
	if r == nil {
		return
	}
	r.bestScore.WithLabelValues(profile).Set(score)
}

func (r *Recorder) SetTestAccuracy(profile string, accuracy float64) {
	if r == nil {
		return
	}
	r.testAccuracy.WithLabelValues(profile).Set(accuracy)
}

func (r *Recorder) ObserveStage(profile, stage string, d time.Duration, err error) {
	if r == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	r.stageRuns.WithLabelValues(profile, stage, outcome).Inc()
	r.stageDuration.WithLabelValues(profile, stage).Set(d.Seconds())
}

func (r *Recorder) SetRows(profile, stage string, n int) {
	if r == nil {
		return
	}
	r.rows.WithLabelValues(profile, stage).Set(float64(n))
}

// WriteTextfile writes every metric to filename in the Prometheus text
// format.
func (r *Recorder) WriteTextfile(filename string) error {
	if r == nil || filename == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return err
	}
	if err := prometheus.WriteToTextfile(filename, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}
