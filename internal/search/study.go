package search

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var ErrNoCompletedTrials = errors.New("no trial completed")

type TrialState string

const (
	TrialComplete TrialState = "complete"
	TrialFailed   TrialState = "failed"
)

// Trial is one evaluated point. Failed trials keep their error text and are
// never considered for selection.
type Trial struct {
	Number   int           `json:"number"`
	Point    Point         `json:"params"`
	Score    float64       `json:"score"`
	State    TrialState    `json:"state"`
	Err      string        `json:"error,omitempty"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
}

// Objective trains and scores one configuration. Higher scores are better.
type Objective func(ctx context.Context, point Point) (float64, error)

type Study struct {
	space   Space
	sampler Sampler
	workers int
	timeout time.Duration
	onTrial func(Trial)
	log     *zap.Logger

	mu      sync.Mutex
	trials  []Trial
	pending int
}

type Option func(*Study)

// WithWorkers bounds how many trials run at once. Results are only
// reproducible for a fixed seed with a single worker.
func WithWorkers(n int) Option {
	return func(s *Study) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithTimeout stops launching new trials once d has elapsed. Running
// trials are allowed to finish.
func WithTimeout(d time.Duration) Option {
	return func(s *Study) { s.timeout = d }
}

// WithTrialCallback is called once per finished trial, serialised.
func WithTrialCallback(fn func(Trial)) Option {
	return func(s *Study) { s.onTrial = fn }
}

func WithLogger(log *zap.Logger) Option {
	return func(s *Study) {
		if log != nil {
			s.log = log
		}
	}
}

func NewStudy(space Space, sampler Sampler, opts ...Option) (*Study, error) {
	if err := space.Validate(); err != nil {
		return nil, err
	}
	if sampler == nil {
		return nil, fmt.Errorf("study needs a sampler")
	}
	s := &Study{
		space:   space,
		sampler: sampler,
		workers: 1,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Optimize runs up to nTrials trials of objective. A trial that returns an
// error, panics or yields a non-finite score is recorded as failed and the
// search continues. Optimize fails only when no trial completed.
func (s *Study) Optimize(ctx context.Context, objective Objective, nTrials int) error {
	if nTrials < 1 {
		return fmt.Errorf("number of trials must be >= 1, got %d", nTrials)
	}

	budget := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		budget, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	var g errgroup.Group
	g.SetLimit(s.workers)

	launched := 0
	for ; launched < nTrials; launched++ {
		if budget.Err() != nil {
			break
		}
		g.Go(func() error {
			if budget.Err() != nil {
				return nil
			}
			number, point := s.propose()
			s.record(s.run(ctx, objective, number, point))
			return nil
		})
	}
	_ = g.Wait()

	if budget.Err() != nil && ctx.Err() == nil {
		s.log.Info("search budget exhausted",
			zap.Duration("timeout", s.timeout),
			zap.Int("trials", len(s.Trials())))
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	if _, err := s.BestTrial(); err != nil {
		return err
	}
	return nil
}

func (s *Study) propose() (int, Point) {
	s.mu.Lock()
	defer s.mu.Unlock()
	number := len(s.trials) + s.pending
	s.pending++
	history := make([]Trial, len(s.trials))
	copy(history, s.trials)
	return number, s.sampler.Propose(s.space, history)
}

func (s *Study) run(ctx context.Context, objective Objective, number int, point Point) (trial Trial) {
	trial = Trial{Number: number, Point: point.Clone(), Started: time.Now()}
	defer func() {
		if r := recover(); r != nil {
			trial.State = TrialFailed
			trial.Err = fmt.Sprintf("panic: %v", r)
		}
		trial.Duration = time.Since(trial.Started)
	}()

	score, err := objective(ctx, point.Clone())
	switch {
	case err != nil:
		trial.State = TrialFailed
		trial.Err = err.Error()
	case math.IsNaN(score) || math.IsInf(score, 0):
		trial.State = TrialFailed
		trial.Err = fmt.Sprintf("non-finite score %v", score)
	default:
		trial.State = TrialComplete
		trial.Score = score
	}
	return trial
}

func (s *Study) record(trial Trial) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending--
	s.trials = append(s.trials, trial)
	sort.SliceStable(s.trials, func(i, j int) bool {
		return s.trials[i].Number < s.trials[j].Number
	})
	s.sampler.Report(trial)

	if trial.State == TrialFailed {
		s.log.Warn("trial failed", zap.Int("trial", trial.Number), zap.String("error", trial.Err))
	} else {
		s.log.Debug("trial finished",
			zap.Int("trial", trial.Number),
			zap.Float64("score", trial.Score),
			zap.Duration("duration", trial.Duration))
	}
	if s.onTrial != nil {
		s.onTrial(trial)
	}
}

// Trials returns the recorded trials ordered by number.
func (s *Study) Trials() []Trial {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Trial, len(s.trials))
	copy(out, s.trials)
	return out
}

// BestTrial is the completed trial with the highest score; ties go to the
// lowest trial number.
func (s *Study) BestTrial() (Trial, error) {
	return Best(s.Trials())
}

func Best(trials []Trial) (Trial, error) {
	var best Trial
	found := false
	for _, t := range trials {
		if t.State != TrialComplete {
			continue
		}
		if !found || t.Score > best.Score || (t.Score == best.Score && t.Number < best.Number) {
			best = t
			found = true
		}
	}
	if !found {
		return Trial{}, ErrNoCompletedTrials
	}
	return best, nil
}
