package search

import (
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

// Sampler proposes the next point to evaluate from the trials seen so far.
// Study serialises every call, so implementations need no locking.
type Sampler interface {
	Name() string
	Propose(space Space, history []Trial) Point
	Report(trial Trial)
}

// NewSampler returns the sampler registered under name.
func NewSampler(name string, seed int64, startupTrials int) (Sampler, bool) {
	switch name {
	case "random":
		return NewRandomSampler(seed), true
	case "tpe", "":
		return NewTPESampler(seed, startupTrials), true
	default:
		return nil, false
	}
}

type RandomSampler struct {
	rng *rand.Rand
}

func NewRandomSampler(seed int64) *RandomSampler {
	return &RandomSampler{rng: rand.New(rand.NewSource(seed))}
}

func (rs *RandomSampler) Name() string { return "random" }

func (rs *RandomSampler) Propose(space Space, _ []Trial) Point {
	return uniformPoint(rs.rng, space)
}

func (rs *RandomSampler) Report(Trial) {}

func uniformPoint(rng *rand.Rand, space Space) Point {
	p := make(Point, len(space))
	for _, param := range space {
		p[param.Name] = uniformValue(rng, param)
	}
	return p
}

func uniformValue(rng *rand.Rand, param Param) float64 {
	if param.Kind == IntParam {
		lo, hi := int64(math.Ceil(param.Low)), int64(math.Floor(param.High))
		if hi <= lo {
			return float64(lo)
		}
		return float64(lo + rng.Int63n(hi-lo+1))
	}
	return param.Low + rng.Float64()*(param.High-param.Low)
}

// TPESampler is an independent tree-structured Parzen estimator. After
// StartupTrials random trials it splits completed trials into a good and a
// bad group, fits one density per group and parameter, and keeps the
// candidate drawn from the good density with the best density ratio.
type TPESampler struct {
	StartupTrials int
	Candidates    int
	rng           *rand.Rand
}

func NewTPESampler(seed int64, startupTrials int) *TPESampler {
	if startupTrials <= 0 {
		startupTrials = 10
	}
	return &TPESampler{
		StartupTrials: startupTrials,
		Candidates:    24,
		rng:           rand.New(rand.NewSource(seed)),
	}
}

func (ts *TPESampler) Name() string { return "tpe" }

func (ts *TPESampler) Report(Trial) {}

func (ts *TPESampler) Propose(space Space, history []Trial) Point {
	var done []Trial
	for _, t := range history {
		if t.State == TrialComplete {
			done = append(done, t)
		}
	}
	if len(done) < ts.StartupTrials {
		return uniformPoint(ts.rng, space)
	}

	sort.SliceStable(done, func(i, j int) bool {
		if done[i].Score != done[j].Score {
			return done[i].Score > done[j].Score
		}
		return done[i].Number < done[j].Number
	})
	nGood := int(math.Min(math.Ceil(0.1*float64(len(done))), 25))
	if nGood < 1 {
		nGood = 1
	}
	good, bad := done[:nGood], done[nGood:]

	p := make(Point, len(space))
	for _, param := range space {
		l := newParzen(observations(param, good))
		g := newParzen(observations(param, bad))

		best, bestRatio := 0.0, math.Inf(-1)
		for c := 0; c < ts.Candidates; c++ {
			u := l.sample(ts.rng)
			ratio := l.logDensity(u) - g.logDensity(u)
			if ratio > bestRatio {
				best, bestRatio = u, ratio
			}
		}
		p[param.Name] = param.denormalize(best)
	}
	return p
}

func observations(param Param, trials []Trial) []float64 {
	out := make([]float64, 0, len(trials))
	for _, t := range trials {
		if v, ok := t.Point[param.Name]; ok {
			out = append(out, param.normalize(v))
		}
	}
	return out
}

// parzen is a mixture of normals truncated to [0, 1], one per observation
// plus a unit-width prior centred on the interval.
type parzen struct {
	mus    []float64
	sigmas []float64
}

func newParzen(obs []float64) *parzen {
	sorted := append([]float64(nil), obs...)
	sort.Float64s(sorted)

	minSigma := 1 / math.Min(100, float64(len(sorted)+2))
	mus := append([]float64{0.5}, sorted...)
	sigmas := append([]float64{1}, make([]float64, len(sorted))...)
	for i, mu := range sorted {
		left := mu
		if i > 0 {
			left = mu - sorted[i-1]
		}
		right := 1 - mu
		if i+1 < len(sorted) {
			right = sorted[i+1] - mu
		}
		sigmas[i+1] = math.Max(minSigma, math.Min(1, math.Max(left, right)))
	}
	return &parzen{mus: mus, sigmas: sigmas}
}

func (pz *parzen) sample(rng *rand.Rand) float64 {
	k := rng.Intn(len(pz.mus))
	mu, sigma := pz.mus[k], pz.sigmas[k]
	for attempt := 0; attempt < 100; attempt++ {
		x := mu + sigma*rng.NormFloat64()
		if x >= 0 && x <= 1 {
			return x
		}
	}
	return math.Max(0, math.Min(1, mu))
}

func (pz *parzen) logDensity(x float64) float64 {
	total := 0.0
	w := 1 / float64(len(pz.mus))
	for k, mu := range pz.mus {
		n := distuv.Normal{Mu: mu, Sigma: pz.sigmas[k]}
		z := n.CDF(1) - n.CDF(0)
		if z <= 0 {
			continue
		}
		total += w * n.Prob(x) / z
	}
	if total <= 0 {
		return math.Inf(-1)
	}
	return math.Log(total)
}
