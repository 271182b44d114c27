// Package splithalf implements C7: a Monte-Carlo split-half reliability
// coefficient. Verdicts are repeatedly shuffled and partitioned into two
// halves, each half fit independently, and the resulting theta rankings
// compared with a Spearman correlation; the averaged, Spearman-Brown
// corrected coefficient estimates how reliable the fit is given the
// current amount of evidence (spec.md §4.7).
package splithalf

import (
	"context"
	"errors"
	"math"
	"runtime"
	"sort"
	"sync"

	"github.com/cmpjudge/engine/btfit"
	"github.com/cmpjudge/engine/cohort"
)

// ErrCancelled is returned when ctx is done between splits.
var ErrCancelled = errors.New("splithalf: cancelled")

// minTexts and minVerdicts gate the whole routine off when there is too
// little evidence for a split-half estimate to mean anything.
const (
	minTexts    = 3
	minVerdicts = 6
)

// defaultSeed is the fixed base seed named in spec.md §4.7.
const defaultSeed uint32 = 42

// Options configures the Monte-Carlo procedure.
type Options struct {
	NumSplits     int     // default 20
	Lambda        float64 // ridge parameter reused from the C3 equations, default 0.1
	MaxIterations int     // default 60, deliberately lower than C3's
	Tolerance     float64 // default 1e-6
	Seed          uint32  // default 42
}

// DefaultOptions returns the spec's default Monte-Carlo parameters.
func DefaultOptions() Options {
	return Options{NumSplits: 20, Lambda: 0.1, MaxIterations: 60, Tolerance: 1e-6, Seed: defaultSeed}
}

// Result is the split-half coefficient plus the raw per-split correlations
// that fed into it, so callers can inspect variance across splits.
type Result struct {
	Coefficient     float64
	RawCorrelations []float64
	NumSplits       int
}

// Estimate implements C7. Returns (nil, nil) when the precondition of
// spec.md §4.7 ("at least 3 texts and at least 6 verdicts") is not met, in
// which case the caller should treat the coefficient as "not available"
// rather than an error. ctx is checked between splits.
func Estimate(ctx context.Context, texts []cohort.Text, verdicts []cohort.Verdict, opts Options) (*Result, error) {
	if len(texts) < minTexts || len(verdicts) < minVerdicts {
		return nil, nil
	}
	if opts.NumSplits <= 0 {
		opts = DefaultOptions()
	}
	seed := opts.Seed
	if seed == 0 {
		seed = defaultSeed
	}

	results, err := runSplits(ctx, texts, verdicts, seed, opts)
	if err != nil {
		return nil, err
	}
	correlations := make([]float64, 0, len(results))
	for _, r := range results {
		if r.ok {
			correlations = append(correlations, r.rho)
		}
	}

	if len(correlations) == 0 {
		return &Result{Coefficient: 0, RawCorrelations: correlations, NumSplits: opts.NumSplits}, nil
	}

	var sum float64
	for _, r := range correlations {
		sum += r
	}
	rhoBar := sum / float64(len(correlations))

	coefficient := 0.0
	if rhoBar > -1 {
		coefficient = 2 * rhoBar / (1 + rhoBar)
	}
	coefficient = math.Max(0, math.Min(1, coefficient))

	return &Result{Coefficient: coefficient, RawCorrelations: correlations, NumSplits: opts.NumSplits}, nil
}

type splitResult struct {
	rho float64
	ok  bool
}

// runSplits fits every split concurrently with a bounded worker pool. Each
// worker derives its own xorshift32 stream from (seed, splitIndex), so
// results are independent of how goroutines are scheduled onto workers.
// The first split-level error (including cancellation) wins; results are
// written into a pre-sized slice so ordering never depends on completion
// order.
func runSplits(ctx context.Context, texts []cohort.Text, verdicts []cohort.Verdict, seed uint32, opts Options) ([]splitResult, error) {
	workers := runtime.GOMAXPROCS(0)
	if workers > opts.NumSplits {
		workers = opts.NumSplits
	}
	if workers < 1 {
		workers = 1
	}

	results := make([]splitResult, opts.NumSplits)
	jobs := make(chan int)
	var firstErr error
	var errOnce sync.Once
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for split := range jobs {
				select {
				case <-ctx.Done():
					errOnce.Do(func() { firstErr = ErrCancelled })
					continue
				default:
				}
				rho, ok, err := oneSplit(ctx, texts, verdicts, seed, split, opts)
				if err != nil {
					errOnce.Do(func() { firstErr = err })
					continue
				}
				results[split] = splitResult{rho: rho, ok: ok}
			}
		}()
	}

	for split := 0; split < opts.NumSplits; split++ {
		jobs <- split
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}

// oneSplit runs steps 1-4 of spec.md §4.7 for a single split index. ok is
// false when the two halves share fewer than 3 texts, in which case this
// split contributes no correlation.
func oneSplit(ctx context.Context, texts []cohort.Text, verdicts []cohort.Verdict, seed uint32, split int, opts Options) (rho float64, ok bool, err error) {
	rng := newXorshift32(seed, uint32(split))

	shuffled := make([]cohort.Verdict, len(verdicts))
	copy(shuffled, verdicts)
	fisherYates(shuffled, rng)

	mid := len(shuffled) / 2
	halfA := shuffled[:mid]
	halfB := shuffled[mid:]

	thetaA, err := btfit.LightFit(ctx, texts, halfA, opts.Lambda, opts.MaxIterations, opts.Tolerance)
	if err != nil {
		return 0, false, err
	}
	thetaB, err := btfit.LightFit(ctx, texts, halfB, opts.Lambda, opts.MaxIterations, opts.Tolerance)
	if err != nil {
		return 0, false, err
	}

	shared := sharedIDsWithEvidence(texts, halfA, halfB)
	if len(shared) < 3 {
		return 0, false, nil
	}

	rho = spearman(shared, thetaA, thetaB)
	return rho, true, nil
}

// sharedIDsWithEvidence returns the text ids that appear in at least one
// verdict in each half, so the Spearman correlation is computed only on
// texts both halves actually say something about.
func sharedIDsWithEvidence(texts []cohort.Text, halfA, halfB []cohort.Verdict) []int64 {
	seenA := textsTouchedBy(halfA)
	seenB := textsTouchedBy(halfB)

	shared := make([]int64, 0, len(texts))
	for _, t := range texts {
		if seenA[t.ID] && seenB[t.ID] {
			shared = append(shared, t.ID)
		}
	}
	sort.Slice(shared, func(i, j int) bool { return shared[i] < shared[j] })
	return shared
}

func textsTouchedBy(vs []cohort.Verdict) map[int64]bool {
	touched := make(map[int64]bool, 2*len(vs))
	for _, v := range vs {
		touched[v.TextAID] = true
		touched[v.TextBID] = true
	}
	return touched
}

// spearman computes the rank correlation of spec.md §4.7 point 4 between
// thetaA and thetaB restricted to ids, ranking by descending theta.
func spearman(ids []int64, thetaA, thetaB map[int64]float64) float64 {
	n := len(ids)
	rankA := descendingRanks(ids, thetaA)
	rankB := descendingRanks(ids, thetaB)

	var sumDSq float64
	for _, id := range ids {
		d := float64(rankA[id] - rankB[id])
		sumDSq += d * d
	}
	denom := float64(n) * float64(n*n-1)
	return 1 - 6*sumDSq/denom
}

// descendingRanks ranks ids by theta descending (rank 1 = highest theta),
// ties broken by larger id ranking higher for determinism.
func descendingRanks(ids []int64, theta map[int64]float64) map[int64]int {
	ordered := make([]int64, len(ids))
	copy(ordered, ids)
	sort.Slice(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if theta[a] != theta[b] {
			return theta[a] > theta[b]
		}
		return a > b
	})
	ranks := make(map[int64]int, len(ordered))
	for pos, id := range ordered {
		ranks[id] = pos + 1
	}
	return ranks
}
