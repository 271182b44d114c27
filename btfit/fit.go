package btfit

import (
	"context"
	"math"
	"sort"

	"github.com/cmpjudge/engine/cohort"
)

// Options configures the Bradley-Terry fit.
type Options struct {
	Lambda        float64 // ridge parameter, default 0.1
	TopPercentile float64 // "top" label cutoff, default 0.1
	MaxIterations int     // default 100
	Tolerance     float64 // default 1e-6
}

// DefaultOptions returns the spec's default fit parameters.
func DefaultOptions() Options {
	return Options{Lambda: 0.1, TopPercentile: 0.1, MaxIterations: 100, Tolerance: 1e-6}
}

// Result is the output of Fit: per-text rows plus a basic cohort verdict.
type Result struct {
	Rows   []cohort.ScoreRow
	Cohort cohort.CohortVerdict
}

// Fit computes C3: the regularised Bradley-Terry MLE, Hessian-diagonal
// standard errors, infit residuals, ranks, qualitative labels and raw
// grades for every text (spec.md §4.3).
//
// Degenerate cases never error (spec.md §7 "degenerate-fit"): 0 texts
// yields an empty result; 1 text yields a single row with Theta=0,
// SE=+Inf, Rank=1. ctx is checked between Newton iterations; a cancelled
// context returns ErrCancelled with a zero Result.
func Fit(ctx context.Context, texts []cohort.Text, verdicts []cohort.Verdict, opts Options, grading cohort.GradingConfig) (Result, error) {
	if len(texts) == 0 {
		return Result{Cohort: cohort.CohortVerdict{Label: "insufficient"}}, nil
	}
	if len(texts) == 1 {
		row := cohort.ScoreRow{
			TextID:      texts[0].ID,
			Theta:       0,
			SE:          math.Inf(1),
			Rank:        1,
			Label:       "top",
			GradeRaw:    clampRound(grading.Base, grading),
			Reliability: "insufficient",
		}
		rows := []cohort.ScoreRow{row}
		return Result{Rows: rows, Cohort: cohort.BasicCohortVerdict(rows)}, nil
	}

	p := preaggregate(texts, verdicts)
	nr, err := fitTheta(ctx, p, opts.Lambda, opts.MaxIterations, opts.Tolerance)
	if err != nil {
		return Result{}, err
	}

	sigmaTheta := sampleSD(nr.theta)
	infits, hasInfit := computeInfit(p, nr.theta)
	ranks := rankOrder(p.ids, nr.theta)

	rows := make([]cohort.ScoreRow, p.n)
	for idx, id := range p.ids {
		exposure := p.exposure(idx)
		se := math.Inf(1)
		if exposure > 0 {
			se = 1.0 / math.Sqrt(math.Max(nr.hessDiag[idx], epsilon))
		}

		z := 0.0
		if sigmaTheta > epsilon {
			z = nr.theta[idx] / sigmaTheta
		}
		gradeRaw := clampRound(grading.Base+grading.Scale*z, grading)

		row := cohort.ScoreRow{
			TextID:       id,
			Theta:        nr.theta[idx],
			SE:           se,
			Rank:         ranks[idx],
			Label:        qualitativeLabel(ranks[idx], p.n, opts.TopPercentile),
			GradeRaw:     gradeRaw,
			VerdictCount: int(exposure),
			Reliability:  reliabilityLabel(se),
		}
		if hasInfit[idx] {
			row.HasInfit = true
			row.Infit = infits[idx]
			row.InfitLabel = "misfit"
			if infits[idx] >= 0.7 && infits[idx] <= 1.3 {
				row.InfitLabel = "good-fit"
			}
		}
		rows[idx] = row
	}

	return Result{Rows: rows, Cohort: cohort.BasicCohortVerdict(rows)}, nil
}

// LightFit runs the same Newton solver as Fit but skips standard errors,
// infit and grading, returning only the converged theta per text id. Used
// by package splithalf (C7) to fit each half with a much lower iteration
// cap (spec.md §4.7 point 3).
func LightFit(ctx context.Context, texts []cohort.Text, verdicts []cohort.Verdict, lambda float64, maxIter int, tol float64) (map[int64]float64, error) {
	if len(texts) == 0 {
		return map[int64]float64{}, nil
	}
	p := preaggregate(texts, verdicts)
	nr, err := fitTheta(ctx, p, lambda, maxIter, tol)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]float64, p.n)
	for idx, id := range p.ids {
		out[id] = nr.theta[idx]
	}
	return out, nil
}

// SigmaTheta recomputes the sample standard deviation of centred theta
// values from a set of rows, as used by package grading for anchor
// calibration (spec.md §4.4 reuses C3's sigma_theta).
func SigmaTheta(rows []cohort.ScoreRow) float64 {
	thetas := make([]float64, len(rows))
	for i, r := range rows {
		thetas[i] = r.Theta
	}
	return sampleSD(thetas)
}

func reliabilityLabel(se float64) string {
	switch {
	case se <= cohort.SEReliable:
		return "reliable"
	case se <= cohort.SERepeat:
		return "almost"
	default:
		return "insufficient"
	}
}

// qualitativeLabel maps a 1-based rank to the percentile label of
// spec.md §4.3.
func qualitativeLabel(rank, n int, topPct float64) string {
	p := float64(rank) / float64(n)
	switch {
	case p <= topPct:
		return "top"
	case p <= 0.5:
		return "above-average"
	case p <= 0.9:
		return "average"
	default:
		return "below-average"
	}
}

// rankOrder returns, for each index into ids/theta, the 1-based rank under
// "sort by theta descending, ties broken by larger id ranking higher".
func rankOrder(ids []int64, theta []float64) []int {
	n := len(ids)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		ia, ib := order[a], order[b]
		if theta[ia] != theta[ib] {
			return theta[ia] > theta[ib]
		}
		return ids[ia] > ids[ib]
	})
	ranks := make([]int, n)
	for pos, idx := range order {
		ranks[idx] = pos + 1
	}
	return ranks
}

// computeInfit returns, per index, the infit mean-square of spec.md §4.3
// and whether it was computable (exposure > 0 for at least one neighbour).
func computeInfit(p preaggregated, theta []float64) ([]float64, []bool) {
	n := p.n
	infit := make([]float64, n)
	has := make([]bool, n)
	for i := 0; i < n; i++ {
		var numerator, denominator float64
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			nij := p.nMat[i*n+j]
			if nij == 0 {
				continue
			}
			pij := sigma(theta[i] - theta[j])
			obs := p.wMat[i*n+j] / nij
			numerator += (obs - pij) * (obs - pij) * nij
			denominator += nij * pij * (1 - pij)
		}
		if denominator > epsilon {
			infit[i] = numerator / denominator
			has[i] = true
		}
	}
	return infit, has
}

// sampleSD returns the sample standard deviation (n-1 denominator) of a
// zero-mean series; for n<2 it returns 0 (no spread is observable).
func sampleSD(xs []float64) float64 {
	n := len(xs)
	if n < 2 {
		return 0
	}
	var mean float64
	for _, x := range xs {
		mean += x
	}
	mean /= float64(n)
	var ss float64
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(n-1))
}

// clampRound rounds to one decimal (g.Rounding granularity, fixed at 0.1
// per spec.md §4.3) and clamps into [g.Min, g.Max].
func clampRound(v float64, g cohort.GradingConfig) float64 {
	rounded := math.Round(v*10) / 10
	if rounded < g.Min {
		return g.Min
	}
	if rounded > g.Max {
		return g.Max
	}
	return rounded
}
