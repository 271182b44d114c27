package cohort

import (
	"math"
	"sort"
)

// Reliability thresholds shared by C3's basic cohort verdict and C5's fuller
// robust assessment (spec.md §4.3, §4.5).
const (
	SEReliable = 0.75
	SERepeat   = 1.00
)

// ScoreRow is the per-text output of the Bradley-Terry fit (C3).
type ScoreRow struct {
	TextID       int64
	Theta        float64
	SE           float64 // math.Inf(1) when the text has zero exposure
	Rank         int     // 1-based, 1 = best
	Label        string  // "top" | "above-average" | "average" | "below-average"
	GradeRaw     float64
	HasInfit     bool
	Infit        float64
	InfitLabel   string // "good-fit" | "misfit", meaningful only when HasInfit
	VerdictCount int     // total exposure, i.e. sum_j n_ij
	Reliability  string // "reliable" | "almost" | "insufficient"
}

// CohortVerdict is the coarse, cohort-wide reliability label.
// SplitHalfCoefficient/HasSplitHalf are zero until a caller merges in a C7
// estimate via WithSplitHalf (spec.md §3: "split-half coefficient when
// available"); BasicCohortVerdict itself has no C7 evidence to draw on.
type CohortVerdict struct {
	Label                string // "reliable" | "almost" | "insufficient"
	MedianSE             float64
	MaxSE                float64
	SplitHalfCoefficient float64
	HasSplitHalf         bool
}

// WithSplitHalf returns cv with a C7 split-half coefficient merged in.
func (cv CohortVerdict) WithSplitHalf(coefficient float64) CohortVerdict {
	cv.SplitHalfCoefficient = coefficient
	cv.HasSplitHalf = true
	return cv
}

// BasicCohortVerdict applies the first-match-wins rules of spec.md §4.5
// using the default SERepeat "almost" cutoff. It is BasicCohortVerdictWithRepeatThreshold(rows, SERepeat).
func BasicCohortVerdict(rows []ScoreRow) CohortVerdict {
	return BasicCohortVerdictWithRepeatThreshold(rows, SERepeat)
}

// BasicCohortVerdictWithRepeatThreshold applies the first-match-wins rules
// of spec.md §4.5 (the cohort-level rules only; the robust
// ladder/core-subset/convergence checks live in package reliability, which
// layers on top of this). repeatThreshold overrides the "almost" cutoff,
// e.g. from AssignmentMeta.SERepeatThreshold; <= 0 falls back to SERepeat.
func BasicCohortVerdictWithRepeatThreshold(rows []ScoreRow, repeatThreshold float64) CohortVerdict {
	if repeatThreshold <= 0 {
		repeatThreshold = SERepeat
	}
	if len(rows) == 0 {
		return CohortVerdict{Label: "insufficient"}
	}

	finiteSEs := make([]float64, 0, len(rows))
	reliableCount := 0
	for _, r := range rows {
		if !math.IsInf(r.SE, 1) && !math.IsNaN(r.SE) {
			finiteSEs = append(finiteSEs, r.SE)
		}
		if r.SE <= SEReliable {
			reliableCount++
		}
	}

	medianSE, maxSE, hasFinite := medianAndMax(finiteSEs)
	if !hasFinite {
		// No text has a finite standard error: there is no evidence at all
		// (e.g. zero verdicts, or every text is isolated), so the cohort
		// cannot be reliable regardless of what the threshold comparisons
		// below would otherwise say.
		return CohortVerdict{Label: "insufficient"}
	}
	pctReliable := float64(reliableCount) / float64(len(rows))

	label := "insufficient"
	switch {
	case pctReliable >= 0.70 || (medianSE <= 0.80 && maxSE <= 1.40):
		label = "reliable"
	case medianSE <= repeatThreshold:
		label = "almost"
	}

	return CohortVerdict{Label: label, MedianSE: medianSE, MaxSE: maxSE}
}

// medianAndMax returns the median and max of vs, and whether vs was
// non-empty. Both numeric results are 0 when vs is empty (there is nothing
// finite to report, e.g. every text is isolated) — callers must check ok
// rather than trusting the zero values.
func medianAndMax(vs []float64) (median, max float64, ok bool) {
	if len(vs) == 0 {
		return 0, 0, false
	}
	sorted := make([]float64, len(vs))
	copy(sorted, vs)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		median = sorted[mid]
	} else {
		median = (sorted[mid-1] + sorted[mid]) / 2
	}
	max = sorted[len(sorted)-1]
	return median, max, true
}
