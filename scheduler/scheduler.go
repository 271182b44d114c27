// Package scheduler implements C8: the adaptive pair scheduler that picks
// the next batch of text pairs to present for judgement, favouring graph
// connectivity, under-exposed texts and (once theta/SE estimates exist)
// informative comparisons (spec.md §4.8).
package scheduler

import (
	"math"
	"math/rand"
	"sort"

	"github.com/cmpjudge/engine/cohort"
	"github.com/cmpjudge/engine/connectivity"
)

// Pair is one scheduled comparison. TextAID/TextBID orientation is decided
// by a coin flip, not by id ordering.
type Pair struct {
	TextAID int64
	TextBID int64
}

// Options configures the scheduler.
type Options struct {
	TargetPerText       int        // default 10
	BatchSize           int        // 0 means "derive dynamically", per spec.md §4.8
	AllowRepeats        bool
	MaxPairRejudgements int        // used only when AllowRepeats
	SEInformThreshold   float64    // default 0.30
	Rand                *rand.Rand // nil uses a fixed default seed for determinism
}

// DefaultOptions returns the spec's default scheduling parameters.
func DefaultOptions() Options {
	return Options{TargetPerText: 10, SEInformThreshold: 0.30}
}

const (
	exposureFloor         = 5
	seNeedsWorkThreshold  = 0.75
	connectivityBonus     = 1000.0
	thetaInformWeight     = 10.0
	seInformWeight        = 5.0
	oppositeWingThreshold = 1.0
	jitterScale           = 0.01
	defaultSchedulerSeed  = 7
)

// NextPairs implements C8. theta/se may be nil (scored without the
// informativeness terms); observedPairCount may be nil (treated as all
// zero).
func NextPairs(texts []cohort.Text, verdicts []cohort.Verdict, theta, se map[int64]float64, observedPairCount map[string]int, opts Options) []Pair {
	if len(texts) < 2 {
		return nil
	}
	if opts.TargetPerText <= 0 {
		opts.TargetPerText = DefaultOptions().TargetPerText
	}
	if opts.SEInformThreshold <= 0 {
		opts.SEInformThreshold = DefaultOptions().SEInformThreshold
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(defaultSchedulerSeed))
	}

	exposure := exposureByText(texts, verdicts)
	report := connectivity.Analyze(texts, verdicts)
	judged := judgedPairKeys(verdicts)

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = dynamicBatchSize(texts, exposure, se)
	}

	for _, relaxed := range relaxationLadder(opts) {
		batch := selectBatch(texts, exposure, report, theta, se, judged, observedPairCount, relaxed, batchSize, rng)
		if len(batch) > 0 {
			return batch
		}
	}
	return nil
}

// dynamicBatchSize implements spec.md §4.8's "dynamic batch size" rule.
func dynamicBatchSize(texts []cohort.Text, exposure map[int64]int, se map[int64]float64) int {
	n := len(texts)
	needsWork := 0
	for _, t := range texts {
		if exposure[t.ID] < exposureFloor || se[t.ID] > seNeedsWorkThreshold {
			needsWork++
		}
	}
	if n > 0 && float64(needsWork)/float64(n) <= 0.30 {
		batch := 2 * needsWork
		if batch < 2 {
			batch = 2
		}
		return batch
	}
	return 8
}

// relaxationLadder returns the sequence of option variants to try, per the
// fallback ladder of spec.md §4.8: strict first, then progressively
// relaxed, stopping at whichever step first yields >= 1 pair.
func relaxationLadder(opts Options) []Options {
	strict := opts
	noSEOverride := opts
	noSEOverride.SEInformThreshold = 0 // handled via a flag below

	withRepeats10 := opts
	withRepeats10.AllowRepeats = true
	withRepeats10.MaxPairRejudgements = 10

	withRepeats100 := opts
	withRepeats100.AllowRepeats = true
	withRepeats100.MaxPairRejudgements = 100

	return []Options{strict, noSEOverride, withRepeats10, withRepeats100}
}

// underCap reports whether text t may still be scheduled, per spec.md
// §4.8's under-cap predicate. dropSEOverride corresponds to fallback ladder
// step 1 ("drop the SE-override component of under-cap").
func underCap(id int64, exposure map[int64]int, theta, se map[int64]float64, target int, seThreshold float64, dropSEOverride bool) bool {
	exp := exposure[id]
	if exp < target {
		return true
	}
	if dropSEOverride {
		return false
	}
	if theta == nil || se == nil {
		return false
	}
	if _, ok := se[id]; !ok {
		return false
	}
	return se[id] > seThreshold
}

type candidate struct {
	a, b  int64
	score float64
}

// selectBatch runs one pass of candidate generation, scoring and greedy
// selection for one point on the relaxation ladder.
func selectBatch(texts []cohort.Text, exposure map[int64]int, report connectivity.Report, theta, se map[int64]float64, judged map[string]bool, observedPairCount map[string]int, opts Options, batchSize int, rng *rand.Rand) []Pair {
	dropSEOverride := opts.SEInformThreshold == 0

	ids := make([]int64, len(texts))
	for i, t := range texts {
		ids[i] = t.ID
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	candidates := make([]candidate, 0)
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			a, b := ids[i], ids[j]
			if !underCap(a, exposure, theta, se, opts.TargetPerText, opts.SEInformThreshold, dropSEOverride) &&
				!underCap(b, exposure, theta, se, opts.TargetPerText, opts.SEInformThreshold, dropSEOverride) {
				continue
			}
			key := cohort.PairKeyOf(a, b)
			if !opts.AllowRepeats {
				if judged[key] {
					continue
				}
			} else if observedPairCount[key] >= opts.MaxPairRejudgements {
				continue
			}
			if excludedOppositeWings(a, b, theta) {
				continue
			}
			score := candidateScore(a, b, exposure, report, theta, se, rng)
			candidates = append(candidates, candidate{a: a, b: b, score: score})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })

	used := make(map[int64]bool, 2*batchSize)
	out := make([]Pair, 0, batchSize)
	for _, c := range candidates {
		if len(out) >= batchSize {
			break
		}
		if used[c.a] || used[c.b] {
			continue
		}
		used[c.a] = true
		used[c.b] = true
		a, b := c.a, c.b
		if rng.Intn(2) == 1 {
			a, b = b, a
		}
		out = append(out, Pair{TextAID: a, TextBID: b})
	}
	return out
}

func excludedOppositeWings(a, b int64, theta map[int64]float64) bool {
	if theta == nil {
		return false
	}
	ta, okA := theta[a]
	tb, okB := theta[b]
	if !okA || !okB {
		return false
	}
	if math.Abs(ta) <= oppositeWingThreshold || math.Abs(tb) <= oppositeWingThreshold {
		return false
	}
	return (ta > 0) != (tb > 0)
}

func candidateScore(a, b int64, exposure map[int64]int, report connectivity.Report, theta, se map[int64]float64, rng *rand.Rand) float64 {
	score := -(float64(exposure[a]) + float64(exposure[b]))

	if report.ComponentOf[a] != report.ComponentOf[b] {
		score += connectivityBonus
	}

	if theta != nil {
		ta, okA := theta[a]
		tb, okB := theta[b]
		if okA && okB {
			delta := math.Abs(ta - tb)
			if delta > 1 {
				delta = 1
			}
			score += thetaInformWeight * (1 - delta)
		}
	}
	if se != nil {
		sa, okA := se[a]
		sb, okB := se[b]
		if okA && okB {
			sum := sa + sb
			if sum > 2 {
				sum = 2
			}
			score += seInformWeight * sum
		}
	}

	score += rng.Float64() * jitterScale
	return score
}

func exposureByText(texts []cohort.Text, verdicts []cohort.Verdict) map[int64]int {
	exposure := make(map[int64]int, len(texts))
	for _, t := range texts {
		exposure[t.ID] = 0
	}
	for _, v := range verdicts {
		exposure[v.TextAID]++
		exposure[v.TextBID]++
	}
	return exposure
}

func judgedPairKeys(verdicts []cohort.Verdict) map[string]bool {
	judged := make(map[string]bool, len(verdicts))
	for _, v := range verdicts {
		judged[v.EffectivePairKey()] = true
	}
	return judged
}
