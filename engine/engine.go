// Package engine wires the eight analytic components (C1-C8) into the
// public operations named by spec.md §6: EffectiveVerdicts, IsConnected,
// FitBradleyTerry, CalibrateAnchored, AssessReliability, AnalyseRaters,
// SplitHalfReliability and NextPairs. It adds no behaviour of its own
// beyond data-flow wiring and the "invalid-input" validation spec.md §7
// assigns to the core boundary.
package engine

import (
	"context"
	"fmt"

	"github.com/cmpjudge/engine/btfit"
	"github.com/cmpjudge/engine/cohort"
	"github.com/cmpjudge/engine/connectivity"
	"github.com/cmpjudge/engine/grading"
	"github.com/cmpjudge/engine/raterstats"
	"github.com/cmpjudge/engine/reliability"
	"github.com/cmpjudge/engine/scheduler"
	"github.com/cmpjudge/engine/splithalf"
	"github.com/cmpjudge/engine/verdict"
)

// EffectiveVerdicts implements C1 (spec.md §4.1).
func EffectiveVerdicts(texts []cohort.Text, verdicts []cohort.Verdict) []cohort.Verdict {
	return verdict.EffectiveVerdicts(texts, verdicts)
}

// IsConnected implements C2 (spec.md §4.2).
func IsConnected(texts []cohort.Text, verdicts []cohort.Verdict) connectivity.Report {
	return connectivity.Analyze(texts, verdicts)
}

// FitBradleyTerry implements C3 (spec.md §4.3).
func FitBradleyTerry(ctx context.Context, texts []cohort.Text, verdicts []cohort.Verdict, opts btfit.Options, gradingCfg cohort.GradingConfig) (btfit.Result, error) {
	return btfit.Fit(ctx, texts, verdicts, opts, gradingCfg)
}

// CalibrateAnchored implements C4 (spec.md §4.4). It validates that every
// anchor grade lies within the configured bounds before delegating,
// returning cohort.ErrInvalidInput for the first offender found.
func CalibrateAnchored(rows []cohort.ScoreRow, anchors []cohort.Anchor, gradingCfg cohort.GradingConfig) ([]grading.CalibratedRow, bool, error) {
	for _, a := range anchors {
		if a.Grade < gradingCfg.Min || a.Grade > gradingCfg.Max {
			return nil, false, fmt.Errorf("%w: anchor grade %v for text %d outside [%v, %v]",
				cohort.ErrInvalidInput, a.Grade, a.TextID, gradingCfg.Min, gradingCfg.Max)
		}
	}
	out, ok := grading.Calibrate(rows, anchors, gradingCfg)
	return out, ok, nil
}

// AssessReliability implements C5 (spec.md §4.5). repeatThreshold is
// normally meta.SERepeatThreshold from the AssignmentMeta for this cohort
// (0 uses cohort.SERepeat). splitHalf, when non-nil, is merged into
// Report.Cohort so a caller that already ran SplitHalfReliability for this
// cohort can surface the coefficient on the final verdict.
func AssessReliability(rows []cohort.ScoreRow, texts []cohort.Text, verdicts []cohort.Verdict, previous *reliability.PreviousFit, seThreshold, repeatThreshold float64, splitHalf *splithalf.Result) reliability.Report {
	return reliability.Assess(rows, texts, verdicts, previous, seThreshold, repeatThreshold, splitHalf)
}

// AnalyseRaters implements C6 (spec.md §4.6).
func AnalyseRaters(verdicts []cohort.Verdict, texts []cohort.Text, theta map[int64]float64) raterstats.Report {
	return raterstats.Analyze(verdicts, texts, theta)
}

// SplitHalfReliability implements C7 (spec.md §4.7).
func SplitHalfReliability(ctx context.Context, texts []cohort.Text, verdicts []cohort.Verdict, opts splithalf.Options) (*splithalf.Result, error) {
	return splithalf.Estimate(ctx, texts, verdicts, opts)
}

// NextPairs implements C8 (spec.md §4.8). It validates TargetPerText
// before delegating, returning cohort.ErrInvalidInput for a negative value.
func NextPairs(texts []cohort.Text, verdicts []cohort.Verdict, theta, se map[int64]float64, observedPairCount map[string]int, opts scheduler.Options) ([]scheduler.Pair, error) {
	if opts.TargetPerText < 0 {
		return nil, fmt.Errorf("%w: negative targetPerText %d", cohort.ErrInvalidInput, opts.TargetPerText)
	}
	return scheduler.NextPairs(texts, verdicts, theta, se, observedPairCount, opts), nil
}
